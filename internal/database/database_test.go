package database

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := NewDB(DriverSQLite, ":memory:")
	if err != nil {
		t.Fatalf("NewDB: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestNewDBCreatesSchema(t *testing.T) {
	db := newTestDB(t)

	for _, table := range []string{"employees", "employee_points", "badges", "employee_badges", "reward_history", "weekly_performance", "alerts"} {
		var n int
		if err := db.Get(&n, `SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?`, table); err != nil {
			t.Fatalf("lookup %s: %v", table, err)
		}
		if n != 1 {
			t.Fatalf("table %s missing", table)
		}
	}
}

func TestNewDBUnsupportedDriver(t *testing.T) {
	if _, err := NewDB("mysql", "x"); err == nil {
		t.Fatal("expected error for unsupported driver")
	}
}

func TestBadgeAwardUniqueness(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	now := time.Now().UTC()

	id, err := InsertID(ctx, db, `INSERT INTO employees (username, password_hash, display_name, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?) RETURNING id`, "ana", "x", "Ana", now, now)
	if err != nil {
		t.Fatalf("insert employee: %v", err)
	}
	if _, err := Exec(ctx, db, `INSERT INTO badges (id, name, requirement_type, requirement_value, created_at) VALUES (?, ?, ?, ?, ?)`,
		"perfect-3", "Perfect", "perfect_weeks", 3, now); err != nil {
		t.Fatalf("insert badge: %v", err)
	}

	insert := `INSERT INTO employee_badges (employee_id, badge_id, awarded_at) VALUES (?, ?, ?)`
	if _, err := Exec(ctx, db, insert, id, "perfect-3", now); err != nil {
		t.Fatalf("first award: %v", err)
	}
	_, err = Exec(ctx, db, insert, id, "perfect-3", now)
	if err == nil {
		t.Fatal("expected duplicate award to be rejected")
	}
	if !IsUniqueViolation(err) {
		t.Fatalf("expected unique violation, got %v", err)
	}
}

func TestInTxRollsBackOnError(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	now := time.Now().UTC()
	boom := errors.New("boom")

	err := db.InTx(ctx, func(tx *sqlx.Tx) error {
		if _, err := Exec(ctx, tx, `INSERT INTO ingredients (name, unit, created_at, updated_at) VALUES (?, ?, ?, ?)`,
			"flour", "kg", now, now); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("InTx: want=%v got=%v", boom, err)
	}

	var n int
	if err := Get(ctx, db, &n, `SELECT COUNT(*) FROM ingredients`); err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 0 {
		t.Fatalf("expected rollback, found %d rows", n)
	}
}
