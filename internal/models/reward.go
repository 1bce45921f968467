package models

import (
	"time"
)

type RequirementType string

const (
	RequirementCompletionRate RequirementType = "completion_rate"
	RequirementStreak         RequirementType = "streak"
	RequirementTotalTasks     RequirementType = "total_tasks"
	RequirementRewardsCount   RequirementType = "rewards_count"
	RequirementPerfectWeeks   RequirementType = "perfect_weeks"
)

// WeeklyRecord is one employee's task tally for a week starting on Monday.
// ScoredAt is set once the weekly rewards run has counted the record.
type WeeklyRecord struct {
	ID             int        `json:"id" db:"id"`
	EmployeeID     int        `json:"employee_id" db:"employee_id"`
	EmployeeName   string     `json:"employee_name" db:"employee_name"`
	WeekStart      string     `json:"week_start" db:"week_start"` // YYYY-MM-DD
	TasksCompleted int        `json:"tasks_completed" db:"tasks_completed"`
	TotalTasks     int        `json:"total_tasks" db:"total_tasks"`
	Reward         *string    `json:"reward" db:"reward"`
	ScoredAt       *time.Time `json:"scored_at" db:"scored_at"`
}

// CompletionRate is tasks_completed / total_tasks * 100, or 0 for an empty week.
func (w WeeklyRecord) CompletionRate() float64 {
	if w.TotalTasks <= 0 {
		return 0
	}
	return float64(w.TasksCompleted) / float64(w.TotalTasks) * 100
}

type PointsState struct {
	EmployeeID    int       `json:"employee_id" db:"employee_id"`
	TotalPoints   int       `json:"total_points" db:"total_points"`
	CurrentStreak int       `json:"current_streak" db:"current_streak"`
	LongestStreak int       `json:"longest_streak" db:"longest_streak"`
	Level         int       `json:"level" db:"level"`
	UpdatedAt     time.Time `json:"updated_at" db:"updated_at"`
}

type Badge struct {
	ID               string          `json:"id" db:"id" yaml:"id"`
	Name             string          `json:"name" db:"name" yaml:"name"`
	Description      string          `json:"description" db:"description" yaml:"description"`
	Icon             string          `json:"icon" db:"icon" yaml:"icon"`
	RequirementType  RequirementType `json:"requirement_type" db:"requirement_type" yaml:"requirement_type"`
	RequirementValue float64         `json:"requirement_value" db:"requirement_value" yaml:"requirement_value"`
	PointsValue      int             `json:"points_value" db:"points_value" yaml:"points_value"`
	Active           bool            `json:"active" db:"active" yaml:"-"`
	CreatedAt        time.Time       `json:"created_at" db:"created_at" yaml:"-"`
}

type EmployeeBadge struct {
	Badge
	AwardedAt time.Time `json:"awarded_at" db:"awarded_at"`
}

// AwardedBadge is a badge granted during the current evaluation.
type AwardedBadge struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	Icon          string `json:"icon"`
	PointsAwarded int    `json:"points_awarded"`
}

type RewardHistoryEntry struct {
	ID           int       `json:"id" db:"id"`
	EmployeeID   int       `json:"employee_id" db:"employee_id"`
	Title        string    `json:"title" db:"title"`
	Description  string    `json:"description" db:"description"`
	Icon         string    `json:"icon" db:"icon"`
	PointsEarned int       `json:"points_earned" db:"points_earned"`
	Reason       string    `json:"reason" db:"reason"`
	WeekStart    *string   `json:"week_start" db:"week_start"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
}

type PointsUpdate struct {
	NewTotal  int  `json:"new_total"`
	NewLevel  int  `json:"new_level"`
	LeveledUp bool `json:"leveled_up"`
}

type StreakUpdate struct {
	NewStreak     int `json:"new_streak"`
	LongestStreak int `json:"longest_streak"`
}

// LeaderboardEntry joins points state with the employee's display name.
type LeaderboardEntry struct {
	EmployeeID    int    `json:"employee_id" db:"employee_id"`
	DisplayName   string `json:"display_name" db:"display_name"`
	TotalPoints   int    `json:"total_points" db:"total_points"`
	Level         int    `json:"level" db:"level"`
	CurrentStreak int    `json:"current_streak" db:"current_streak"`
	BadgeCount    int    `json:"badge_count" db:"badge_count"`
}

type RewardProfile struct {
	Points  PointsState          `json:"points"`
	Badges  []EmployeeBadge      `json:"badges"`
	History []RewardHistoryEntry `json:"history"`
}
