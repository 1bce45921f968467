package models

import "time"

type Shift struct {
	ID             int       `json:"id" db:"id"`
	EmployeeID     int       `json:"employee_id" db:"employee_id"`
	ShiftDate      string    `json:"shift_date" db:"shift_date"` // YYYY-MM-DD
	StartTime      string    `json:"start_time" db:"start_time"` // HH:MM
	EndTime        string    `json:"end_time" db:"end_time"`
	TasksCompleted int       `json:"tasks_completed" db:"tasks_completed"`
	TotalTasks     int       `json:"total_tasks" db:"total_tasks"`
	Notes          string    `json:"notes" db:"notes"`
	CreatedAt      time.Time `json:"created_at" db:"created_at"`
}

type CreateShiftRequest struct {
	EmployeeID int    `json:"employee_id" validate:"required,gt=0"`
	ShiftDate  string `json:"shift_date" validate:"required,datetime=2006-01-02"`
	StartTime  string `json:"start_time" validate:"required,datetime=15:04"`
	EndTime    string `json:"end_time" validate:"required,datetime=15:04"`
	TotalTasks int    `json:"total_tasks" validate:"gte=0"`
	Notes      string `json:"notes" validate:"max=500"`
}

type UpdateTasksRequest struct {
	TasksCompleted int `json:"tasks_completed" validate:"gte=0"`
}
