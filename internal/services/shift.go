package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/tahcohcat/pizzeria-ops/internal/database"
	"github.com/tahcohcat/pizzeria-ops/internal/logger"
	"github.com/tahcohcat/pizzeria-ops/internal/models"
)

type ShiftService struct {
	db  *database.DB
	log *logger.Log
}

func NewShiftService(db *database.DB) *ShiftService {
	return &ShiftService{db: db, log: logger.New().With("service", "shifts")}
}

// ShiftFilter narrows ListShifts. Zero values match everything; dates are
// inclusive YYYY-MM-DD bounds.
type ShiftFilter struct {
	EmployeeID int
	From       string
	To         string
}

const shiftColumns = `id, employee_id, shift_date, start_time, end_time, tasks_completed, total_tasks, notes, created_at`

func (s *ShiftService) CreateShift(ctx context.Context, req *models.CreateShiftRequest) (*models.Shift, error) {
	if _, err := time.Parse(dateLayout, req.ShiftDate); err != nil {
		return nil, fmt.Errorf("%w: shift_date must be YYYY-MM-DD", ErrInvalidInput)
	}
	if req.TotalTasks < 0 {
		return nil, fmt.Errorf("%w: total_tasks must not be negative", ErrInvalidInput)
	}

	var exists int
	if err := database.Get(ctx, s.db, &exists, `SELECT COUNT(*) FROM employees WHERE id = ?`, req.EmployeeID); err != nil {
		return nil, fmt.Errorf("failed to check employee: %w", err)
	}
	if exists == 0 {
		return nil, fmt.Errorf("%w: employee %d", ErrNotFound, req.EmployeeID)
	}

	shift := &models.Shift{
		EmployeeID: req.EmployeeID,
		ShiftDate:  req.ShiftDate,
		StartTime:  req.StartTime,
		EndTime:    req.EndTime,
		TotalTasks: req.TotalTasks,
		Notes:      req.Notes,
		CreatedAt:  time.Now().UTC(),
	}

	id, err := database.InsertID(ctx, s.db, `
		INSERT INTO shifts (employee_id, shift_date, start_time, end_time, tasks_completed, total_tasks, notes, created_at)
		VALUES (?, ?, ?, ?, 0, ?, ?, ?)
		RETURNING id`,
		shift.EmployeeID, shift.ShiftDate, shift.StartTime, shift.EndTime, shift.TotalTasks, shift.Notes, shift.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create shift: %w", err)
	}
	shift.ID = id
	return shift, nil
}

func (s *ShiftService) GetShift(ctx context.Context, id int) (*models.Shift, error) {
	var shift models.Shift
	err := database.Get(ctx, s.db, &shift, `SELECT `+shiftColumns+` FROM shifts WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: shift %d", ErrNotFound, id)
	} else if err != nil {
		return nil, fmt.Errorf("failed to get shift: %w", err)
	}
	return &shift, nil
}

func (s *ShiftService) ListShifts(ctx context.Context, f ShiftFilter) ([]models.Shift, error) {
	shifts := []models.Shift{}
	query := `SELECT ` + shiftColumns + ` FROM shifts WHERE 1 = 1`
	var args []interface{}
	if f.EmployeeID > 0 {
		query += ` AND employee_id = ?`
		args = append(args, f.EmployeeID)
	}
	if f.From != "" {
		query += ` AND shift_date >= ?`
		args = append(args, f.From)
	}
	if f.To != "" {
		query += ` AND shift_date <= ?`
		args = append(args, f.To)
	}
	query += ` ORDER BY shift_date, start_time, id`

	if err := database.Select(ctx, s.db, &shifts, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list shifts: %w", err)
	}
	return shifts, nil
}

// UpdateTasks records how many of the shift's tasks were done.
func (s *ShiftService) UpdateTasks(ctx context.Context, id int, req *models.UpdateTasksRequest) (*models.Shift, error) {
	shift, err := s.GetShift(ctx, id)
	if err != nil {
		return nil, err
	}
	if req.TasksCompleted < 0 || req.TasksCompleted > shift.TotalTasks {
		return nil, fmt.Errorf("%w: tasks_completed must be between 0 and %d", ErrInvalidInput, shift.TotalTasks)
	}

	if _, err := database.Exec(ctx, s.db, `UPDATE shifts SET tasks_completed = ? WHERE id = ?`, req.TasksCompleted, id); err != nil {
		return nil, fmt.Errorf("failed to update shift tasks: %w", err)
	}
	shift.TasksCompleted = req.TasksCompleted
	return shift, nil
}

// AggregateWeek sums the shifts of the week starting at weekStart into one
// weekly record per employee. Records already scored by a weekly run are left
// as they are; an unscored record loses any reward label since labels belong
// to scoring. It returns the number of records written.
func (s *ShiftService) AggregateWeek(ctx context.Context, weekStart time.Time) (int, error) {
	start := StartOfWeek(weekStart)
	from := start.Format(dateLayout)
	to := start.AddDate(0, 0, 7).Format(dateLayout)

	var written int
	err := s.db.InTx(ctx, func(tx *sqlx.Tx) error {
		var totals []struct {
			EmployeeID     int `db:"employee_id"`
			TasksCompleted int `db:"tasks_completed"`
			TotalTasks     int `db:"total_tasks"`
		}
		err := database.Select(ctx, tx, &totals, `
			SELECT employee_id, SUM(tasks_completed) AS tasks_completed, SUM(total_tasks) AS total_tasks
			FROM shifts
			WHERE shift_date >= ? AND shift_date < ?
			GROUP BY employee_id
			ORDER BY employee_id`, from, to)
		if err != nil {
			return fmt.Errorf("failed to sum shifts: %w", err)
		}

		for _, t := range totals {
			res, err := database.Exec(ctx, tx, `
				INSERT INTO weekly_performance (employee_id, week_start, tasks_completed, total_tasks)
				VALUES (?, ?, ?, ?)
				ON CONFLICT (employee_id, week_start)
				DO UPDATE SET tasks_completed = excluded.tasks_completed, total_tasks = excluded.total_tasks, reward = NULL
				WHERE weekly_performance.scored_at IS NULL`,
				t.EmployeeID, from, t.TasksCompleted, t.TotalTasks)
			if err != nil {
				return fmt.Errorf("failed to store weekly record for employee %d: %w", t.EmployeeID, err)
			}
			n, err := res.RowsAffected()
			if err != nil {
				return fmt.Errorf("failed to store weekly record for employee %d: %w", t.EmployeeID, err)
			}
			written += int(n)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	s.log.Info("week aggregated", "week_start", from, "records", written)
	return written, nil
}
