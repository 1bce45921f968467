package models

import "time"

type AlertKind string

const (
	AlertLowStock AlertKind = "low_stock"
	AlertManual   AlertKind = "manual"
)

type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

type Alert struct {
	ID           int        `json:"id" db:"id"`
	Kind         AlertKind  `json:"kind" db:"kind"`
	Severity     Severity   `json:"severity" db:"severity"`
	Message      string     `json:"message" db:"message"`
	IngredientID *int       `json:"ingredient_id" db:"ingredient_id"`
	Resolved     bool       `json:"resolved" db:"resolved"`
	CreatedAt    time.Time  `json:"created_at" db:"created_at"`
	ResolvedAt   *time.Time `json:"resolved_at" db:"resolved_at"`
}

type CreateAlertRequest struct {
	Severity Severity `json:"severity" validate:"required,oneof=info warning critical"`
	Message  string   `json:"message" validate:"required,min=1,max=500"`
}
