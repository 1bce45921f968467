package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"testing"
	"time"

	"github.com/tahcohcat/pizzeria-ops/internal/database"
	"github.com/tahcohcat/pizzeria-ops/internal/models"
	"github.com/tahcohcat/pizzeria-ops/internal/notify"
	"github.com/tahcohcat/pizzeria-ops/internal/services"
)

func newTestDB(t *testing.T) *database.DB {
	t.Helper()
	db, err := database.NewDB(database.DriverSQLite, ":memory:")
	if err != nil {
		t.Fatalf("NewDB: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func createEmployee(t *testing.T, db *database.DB, name string) int {
	t.Helper()
	e, err := services.NewEmployeeService(db).CreateEmployee(context.Background(), &models.CreateEmployeeRequest{
		Username: name, Password: "secret123", DisplayName: name, Role: models.RoleStaff,
	})
	if err != nil {
		t.Fatalf("CreateEmployee: %v", err)
	}
	return e.ID
}

func addWeek(t *testing.T, db *database.DB, employeeID int, week time.Time, done, total int) {
	t.Helper()
	_, err := database.Exec(context.Background(), db, `
		INSERT INTO weekly_performance (employee_id, week_start, tasks_completed, total_tasks) VALUES (?, ?, ?, ?)`,
		employeeID, services.WeekKey(week), done, total)
	if err != nil {
		t.Fatalf("insert week: %v", err)
	}
}

func newWeekly(t *testing.T, db *database.DB, badges []models.Badge) (*WeeklyRewards, *services.RewardService, *notify.Recorder) {
	t.Helper()
	rewards := services.NewRewardService(db)
	if err := rewards.SeedBadges(context.Background(), badges); err != nil {
		t.Fatalf("SeedBadges: %v", err)
	}
	rec := &notify.Recorder{}
	return NewWeeklyRewards(db, rewards, rec), rewards, rec
}

var monday = time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC)

func TestWeeklyRunTopTier(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	ana := createEmployee(t, db, "Ana")
	addWeek(t, db, ana, monday, 10, 10)

	weekly, rewards, rec := newWeekly(t, db, nil)
	summary, err := weekly.Run(ctx, monday)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if len(summary.Rewards) != 1 {
		t.Fatalf("rewards: want=1 got=%d", len(summary.Rewards))
	}
	r := summary.Rewards[0]
	if r.Reward == nil || *r.Reward != services.LabelTopTier {
		t.Fatalf("label: want=%s got=%v", services.LabelTopTier, r.Reward)
	}
	if r.PointsEarned != 100 || r.CurrentStreak != 1 || r.CompletionRate != 100 {
		t.Fatalf("unexpected result %+v", r)
	}

	state, err := rewards.GetPointsState(ctx, ana)
	if err != nil {
		t.Fatalf("GetPointsState: %v", err)
	}
	if state.TotalPoints != 100 || state.Level != 1 || state.CurrentStreak != 1 {
		t.Fatalf("unexpected state %+v", state)
	}

	records, _ := rewards.WeeklyRecords(ctx, services.WeekKey(monday))
	if records[0].Reward == nil || *records[0].Reward != services.LabelTopTier {
		t.Fatalf("label not stored on weekly record: %v", records[0].Reward)
	}

	if _, ok := rec.Find(notify.EventWeeklyRewards); !ok {
		t.Fatal("expected weekly_rewards event")
	}
	if _, ok := rec.Find(notify.EventLevelUps); ok {
		t.Fatal("no level up expected at 100 points")
	}
}

func TestWeeklyRunStreakAcrossWeeks(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	luis := createEmployee(t, db, "Luis")
	weekly, rewards, _ := newWeekly(t, db, nil)

	for i := 0; i < 3; i++ {
		week := monday.AddDate(0, 0, 7*i)
		addWeek(t, db, luis, week, 9, 10)
		summary, err := weekly.Run(ctx, week)
		if err != nil {
			t.Fatalf("week %d: %v", i, err)
		}
		r := summary.Rewards[0]
		if r.Reward == nil || *r.Reward != services.LabelMidTier || r.PointsEarned != 50 {
			t.Fatalf("week %d: unexpected result %+v", i, r)
		}
	}

	state, _ := rewards.GetPointsState(ctx, luis)
	if state.CurrentStreak != 3 || state.LongestStreak != 3 {
		t.Fatalf("streak: want=3 got=%d/%d", state.CurrentStreak, state.LongestStreak)
	}
	if state.TotalPoints != 150 || state.Level != 2 {
		t.Fatalf("points: %+v", state)
	}
}

func TestWeeklyRunLevelUpEvent(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	ana := createEmployee(t, db, "Ana")
	weekly, rewards, rec := newWeekly(t, db, nil)

	if _, err := rewards.AddPoints(ctx, ana, 100); err != nil {
		t.Fatalf("AddPoints: %v", err)
	}
	addWeek(t, db, ana, monday, 10, 10)

	if _, err := weekly.Run(ctx, monday); err != nil {
		t.Fatalf("Run: %v", err)
	}

	ev, ok := rec.Find(notify.EventLevelUps)
	if !ok {
		t.Fatal("expected level_ups event")
	}
	ups := ev.Data.([]LevelUp)
	if len(ups) != 1 || ups[0].NewLevel != 2 || ups[0].TotalPoints != 200 || ups[0].EmployeeName != "Ana" {
		t.Fatalf("unexpected level ups %+v", ups)
	}
}

func TestWeeklyRunZeroEmployees(t *testing.T) {
	db := newTestDB(t)
	weekly, _, rec := newWeekly(t, db, nil)

	summary, err := weekly.Run(context.Background(), monday)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(summary.Rewards) != 0 {
		t.Fatalf("rewards: %+v", summary.Rewards)
	}

	events := rec.Events()
	if len(events) != 1 || events[0].Event != notify.EventWeeklyRewards {
		t.Fatalf("want only weekly_rewards, got %+v", events)
	}
	raw, _ := json.Marshal(events[0].Data)
	if string(raw) != "[]" {
		t.Fatalf("rewards payload: want=[] got=%s", raw)
	}
}

func TestWeeklyRunPerfectWeeksBadge(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	maria := createEmployee(t, db, "Maria")
	weekly, rewards, _ := newWeekly(t, db, []models.Badge{
		{ID: "flawless-trio", Name: "Flawless Trio", RequirementType: models.RequirementPerfectWeeks, RequirementValue: 3, PointsValue: 100, Active: true},
	})

	weeks := [][2]int{{5, 5}, {4, 5}, {5, 5}, {5, 5}}
	for i, w := range weeks {
		week := monday.AddDate(0, 0, 7*i)
		addWeek(t, db, maria, week, w[0], w[1])

		rec := &notify.Recorder{}
		weekly.notifier = rec
		summary, err := weekly.Run(ctx, week)
		if err != nil {
			t.Fatalf("week %d: %v", i, err)
		}

		_, badgeEvent := rec.Find(notify.EventBadgesAwarded)
		if i < 3 && (len(summary.Badges) != 0 || badgeEvent) {
			t.Fatalf("week %d: badge awarded too early", i)
		}
		if i == 3 {
			if len(summary.Badges) != 1 || summary.Badges[0].Badges[0].ID != "flawless-trio" || !badgeEvent {
				t.Fatalf("week %d: expected flawless-trio, got %+v", i, summary.Badges)
			}
		}
	}

	profile, err := rewards.GetProfile(ctx, maria, 50)
	if err != nil {
		t.Fatalf("GetProfile: %v", err)
	}
	if len(profile.Badges) != 1 {
		t.Fatalf("badges: want=1 got=%d", len(profile.Badges))
	}

	// Weeks: 100 + 25 + 100 + 100 points, plus the badge.
	if profile.Points.TotalPoints != 425 {
		t.Fatalf("total points: want=425 got=%d", profile.Points.TotalPoints)
	}

	// Running the last week again must not award the badge twice.
	summary, err := weekly.Run(ctx, monday.AddDate(0, 0, 21))
	if err != nil {
		t.Fatalf("rerun: %v", err)
	}
	if len(summary.Badges) != 0 {
		t.Fatalf("badge awarded twice: %+v", summary.Badges)
	}
	if len(summary.Rewards) != 0 || summary.Skipped != 1 {
		t.Fatalf("rerun should skip the scored week: rewards=%d skipped=%d", len(summary.Rewards), summary.Skipped)
	}
	state, _ := rewards.GetPointsState(ctx, maria)
	if state.TotalPoints != 425 {
		t.Fatalf("points after rerun: want=425 got=%d", state.TotalPoints)
	}
}

func TestWeeklyRunScoresWeekOnce(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	ana := createEmployee(t, db, "Ana")
	addWeek(t, db, ana, monday, 10, 10)
	weekly, rewards, _ := newWeekly(t, db, nil)

	for i := 0; i < 3; i++ {
		summary, err := weekly.Run(ctx, monday)
		if err != nil {
			t.Fatalf("run %d: %v", i, err)
		}
		wantRewards, wantSkipped := 0, 1
		if i == 0 {
			wantRewards, wantSkipped = 1, 0
		}
		if len(summary.Rewards) != wantRewards || summary.Skipped != wantSkipped {
			t.Fatalf("run %d: want rewards=%d skipped=%d got rewards=%d skipped=%d",
				i, wantRewards, wantSkipped, len(summary.Rewards), summary.Skipped)
		}
	}

	profile, err := rewards.GetProfile(ctx, ana, 50)
	if err != nil {
		t.Fatalf("GetProfile: %v", err)
	}
	p := profile.Points
	if p.TotalPoints != 100 || p.CurrentStreak != 1 || p.LongestStreak != 1 {
		t.Fatalf("want total=100 streak=1 longest=1 got total=%d streak=%d longest=%d",
			p.TotalPoints, p.CurrentStreak, p.LongestStreak)
	}
	if len(profile.History) != 1 {
		t.Fatalf("history: want=1 got=%d", len(profile.History))
	}

	// A record added after the week was closed is still scored.
	bob := createEmployee(t, db, "Bob")
	addWeek(t, db, bob, monday, 9, 10)
	summary, err := weekly.Run(ctx, monday)
	if err != nil {
		t.Fatalf("late run: %v", err)
	}
	if len(summary.Rewards) != 1 || summary.Rewards[0].EmployeeID != bob || summary.Skipped != 1 {
		t.Fatalf("late run: %+v", summary)
	}
}

func TestWeeklyRunCancelledListsRemaining(t *testing.T) {
	db := newTestDB(t)
	ana := createEmployee(t, db, "Ana")
	bob := createEmployee(t, db, "Bob")
	addWeek(t, db, ana, monday, 10, 10)
	addWeek(t, db, bob, monday, 6, 10)
	weekly, rewards, _ := newWeekly(t, db, nil)

	records, err := rewards.WeeklyRecords(context.Background(), services.WeekKey(monday))
	if err != nil {
		t.Fatalf("WeeklyRecords: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	summary := &RunSummary{WeekStart: services.WeekKey(monday)}
	errs := weekly.score(ctx, records, summary)
	if len(errs) != 1 || !errors.Is(errs[0], context.Canceled) {
		t.Fatalf("want=[%v] got=%v", context.Canceled, errs)
	}
	if len(summary.Rewards) != 0 {
		t.Fatalf("rewards: %+v", summary.Rewards)
	}
	if len(summary.Failed) != 2 || summary.Failed[0].EmployeeID != ana || summary.Failed[1].EmployeeID != bob {
		t.Fatalf("failed: %+v", summary.Failed)
	}

	records, _ = rewards.WeeklyRecords(context.Background(), services.WeekKey(monday))
	for _, r := range records {
		if r.ScoredAt != nil {
			t.Fatalf("employee %d scored by a cancelled run", r.EmployeeID)
		}
	}
}

func TestWeeklyRunSerialized(t *testing.T) {
	db := newTestDB(t)
	weekly, _, _ := newWeekly(t, db, nil)

	weekly.mu.Lock()
	_, err := weekly.Run(context.Background(), monday)
	weekly.mu.Unlock()
	if !errors.Is(err, ErrRunInProgress) {
		t.Fatalf("want=%v got=%v", ErrRunInProgress, err)
	}
}

func TestWeeklyRunPartialFailure(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	ana := createEmployee(t, db, "Ana")
	bob := createEmployee(t, db, "Bob")
	addWeek(t, db, ana, monday, 10, 10)
	addWeek(t, db, bob, monday, 5, 10)

	weekly, rewards, rec := newWeekly(t, db, nil)

	// Bob's points row rejects updates, so his transaction fails.
	if _, err := rewards.AddPoints(ctx, bob, 0); err != nil {
		t.Fatalf("AddPoints: %v", err)
	}
	_, err := database.Exec(ctx, db, `
		CREATE TRIGGER block_bob BEFORE UPDATE ON employee_points
		WHEN OLD.employee_id = `+strconv.Itoa(bob)+`
		BEGIN SELECT RAISE(ABORT, 'blocked'); END`)
	if err != nil {
		t.Fatalf("create trigger: %v", err)
	}

	summary, err := weekly.Run(ctx, monday)
	if !errors.Is(err, ErrPartialRun) {
		t.Fatalf("want=%v got=%v", ErrPartialRun, err)
	}
	if len(summary.Rewards) != 1 || summary.Rewards[0].EmployeeID != ana {
		t.Fatalf("committed rewards: %+v", summary.Rewards)
	}
	if len(summary.Failed) != 1 || summary.Failed[0].EmployeeID != bob {
		t.Fatalf("failed: %+v", summary.Failed)
	}

	state, _ := rewards.GetPointsState(ctx, ana)
	if state.TotalPoints != 100 {
		t.Fatalf("ana should stay committed, points=%d", state.TotalPoints)
	}

	ev, ok := rec.Find(notify.EventWeeklyRewards)
	if !ok {
		t.Fatal("expected weekly_rewards event")
	}
	if got := ev.Data.([]RewardResult); len(got) != 1 {
		t.Fatalf("event should list committed employees only: %+v", got)
	}

	// Bob's rolled back record is picked up by the next run, Ana's is not rescored.
	if _, err := database.Exec(ctx, db, `DROP TRIGGER block_bob`); err != nil {
		t.Fatalf("drop trigger: %v", err)
	}
	summary, err = weekly.Run(ctx, monday)
	if err != nil {
		t.Fatalf("rerun: %v", err)
	}
	if len(summary.Rewards) != 1 || summary.Rewards[0].EmployeeID != bob || summary.Skipped != 1 {
		t.Fatalf("rerun: %+v", summary)
	}
	state, _ = rewards.GetPointsState(ctx, ana)
	if state.TotalPoints != 100 {
		t.Fatalf("ana rescored, points=%d", state.TotalPoints)
	}
}
