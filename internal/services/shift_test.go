package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/tahcohcat/pizzeria-ops/internal/models"
)

func addShift(t *testing.T, svc *ShiftService, employeeID int, day string, done, total int) {
	t.Helper()
	ctx := context.Background()
	shift, err := svc.CreateShift(ctx, &models.CreateShiftRequest{
		EmployeeID: employeeID, ShiftDate: day, StartTime: "10:00", EndTime: "18:00", TotalTasks: total,
	})
	if err != nil {
		t.Fatalf("CreateShift: %v", err)
	}
	if _, err := svc.UpdateTasks(ctx, shift.ID, &models.UpdateTasksRequest{TasksCompleted: done}); err != nil {
		t.Fatalf("UpdateTasks: %v", err)
	}
}

func TestAggregateWeekUpdatesUnscoredRecord(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	svc := NewShiftService(db)
	rewards := NewRewardService(db)
	e := createEmployee(t, db, "luis")

	week := time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC)
	for _, day := range []string{"2024-03-04", "2024-03-06", "2024-03-11"} {
		addShift(t, svc, e.ID, day, 5, 5)
	}

	n, err := svc.AggregateWeek(ctx, week)
	if err != nil {
		t.Fatalf("AggregateWeek: %v", err)
	}
	if n != 1 {
		t.Fatalf("records: want=1 got=%d", n)
	}

	records, err := rewards.WeeklyRecords(ctx, "2024-03-04")
	if err != nil {
		t.Fatalf("WeeklyRecords: %v", err)
	}
	if len(records) != 1 || records[0].TasksCompleted != 10 || records[0].TotalTasks != 10 {
		t.Fatalf("unexpected records %+v", records)
	}
	if records[0].ScoredAt != nil {
		t.Fatalf("fresh record already scored: %v", records[0].ScoredAt)
	}

	if err := rewards.SetWeeklyReward(ctx, records[0].ID, LabelTopTier); err != nil {
		t.Fatalf("SetWeeklyReward: %v", err)
	}

	// A late shift drags the week below the reward threshold.
	addShift(t, svc, e.ID, "2024-03-10", 0, 4)

	if _, err := svc.AggregateWeek(ctx, week.AddDate(0, 0, 3)); err != nil {
		t.Fatalf("AggregateWeek again: %v", err)
	}
	records, _ = rewards.WeeklyRecords(ctx, "2024-03-04")
	if records[0].TasksCompleted != 10 || records[0].TotalTasks != 14 {
		t.Fatalf("re-aggregation totals %+v", records[0])
	}
	if records[0].Reward != nil {
		t.Fatalf("stale reward label kept: %v", *records[0].Reward)
	}
}

func TestAggregateWeekLeavesScoredRecord(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	svc := NewShiftService(db)
	rewards := NewRewardService(db)
	e := createEmployee(t, db, "nina")

	week := time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC)
	addShift(t, svc, e.ID, "2024-03-05", 8, 8)

	if _, err := svc.AggregateWeek(ctx, week); err != nil {
		t.Fatalf("AggregateWeek: %v", err)
	}
	records, _ := rewards.WeeklyRecords(ctx, "2024-03-04")

	claimed, err := rewards.MarkScored(ctx, records[0].ID)
	if err != nil {
		t.Fatalf("MarkScored: %v", err)
	}
	if !claimed {
		t.Fatalf("first MarkScored: want=true got=false")
	}
	if claimed, _ := rewards.MarkScored(ctx, records[0].ID); claimed {
		t.Fatalf("second MarkScored: want=false got=true")
	}
	if err := rewards.SetWeeklyReward(ctx, records[0].ID, LabelTopTier); err != nil {
		t.Fatalf("SetWeeklyReward: %v", err)
	}

	addShift(t, svc, e.ID, "2024-03-07", 0, 8)

	n, err := svc.AggregateWeek(ctx, week)
	if err != nil {
		t.Fatalf("AggregateWeek again: %v", err)
	}
	if n != 0 {
		t.Fatalf("records written: want=0 got=%d", n)
	}

	records, _ = rewards.WeeklyRecords(ctx, "2024-03-04")
	if records[0].TasksCompleted != 8 || records[0].TotalTasks != 8 {
		t.Fatalf("scored record changed %+v", records[0])
	}
	if records[0].Reward == nil || *records[0].Reward != LabelTopTier {
		t.Fatalf("reward label lost: %v", records[0].Reward)
	}
	if records[0].ScoredAt == nil {
		t.Fatalf("scored_at not returned")
	}
}

func TestUpdateTasksBounds(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	svc := NewShiftService(db)
	e := createEmployee(t, db, "ana")

	shift, err := svc.CreateShift(ctx, &models.CreateShiftRequest{
		EmployeeID: e.ID, ShiftDate: "2024-03-04", StartTime: "10:00", EndTime: "18:00", TotalTasks: 3,
	})
	if err != nil {
		t.Fatalf("CreateShift: %v", err)
	}

	if _, err := svc.UpdateTasks(ctx, shift.ID, &models.UpdateTasksRequest{TasksCompleted: 4}); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("want=%v got=%v", ErrInvalidInput, err)
	}
	if _, err := svc.UpdateTasks(ctx, 9999, &models.UpdateTasksRequest{}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("want=%v got=%v", ErrNotFound, err)
	}
	if _, err := svc.CreateShift(ctx, &models.CreateShiftRequest{
		EmployeeID: 9999, ShiftDate: "2024-03-04", StartTime: "10:00", EndTime: "18:00",
	}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("unknown employee: want=%v got=%v", ErrNotFound, err)
	}

	shifts, err := svc.ListShifts(ctx, ShiftFilter{EmployeeID: e.ID, From: "2024-03-01", To: "2024-03-04"})
	if err != nil {
		t.Fatalf("ListShifts: %v", err)
	}
	if len(shifts) != 1 {
		t.Fatalf("ListShifts: want=1 got=%d", len(shifts))
	}
}
