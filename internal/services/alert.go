package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/tahcohcat/pizzeria-ops/internal/database"
	"github.com/tahcohcat/pizzeria-ops/internal/logger"
	"github.com/tahcohcat/pizzeria-ops/internal/models"
	"github.com/tahcohcat/pizzeria-ops/internal/notify"
)

type AlertService struct {
	db       database.Handle
	notifier notify.Notifier
	log      *logger.Log
}

func NewAlertService(db database.Handle, notifier notify.Notifier) *AlertService {
	if notifier == nil {
		notifier = notify.Nop
	}
	return &AlertService{db: db, notifier: notifier, log: logger.New().With("service", "alerts")}
}

const alertColumns = `id, kind, severity, message, ingredient_id, resolved, created_at, resolved_at`

// ListAlerts returns alerts newest first. A nil resolved returns all of them.
func (s *AlertService) ListAlerts(ctx context.Context, resolved *bool) ([]models.Alert, error) {
	alerts := []models.Alert{}
	query := `SELECT ` + alertColumns + ` FROM alerts`
	var args []interface{}
	if resolved != nil {
		query += ` WHERE resolved = ?`
		args = append(args, *resolved)
	}
	query += ` ORDER BY created_at DESC, id DESC`

	if err := database.Select(ctx, s.db, &alerts, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list alerts: %w", err)
	}
	return alerts, nil
}

func (s *AlertService) GetAlert(ctx context.Context, id int) (*models.Alert, error) {
	var alert models.Alert
	err := database.Get(ctx, s.db, &alert, `SELECT `+alertColumns+` FROM alerts WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: alert %d", ErrNotFound, id)
	} else if err != nil {
		return nil, fmt.Errorf("failed to get alert: %w", err)
	}
	return &alert, nil
}

func (s *AlertService) insert(ctx context.Context, alert *models.Alert) error {
	alert.CreatedAt = time.Now().UTC()
	id, err := database.InsertID(ctx, s.db, `
		INSERT INTO alerts (kind, severity, message, ingredient_id, resolved, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		RETURNING id`, alert.Kind, alert.Severity, alert.Message, alert.IngredientID, false, alert.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create alert: %w", err)
	}
	alert.ID = id
	return nil
}

func (s *AlertService) broadcast(ctx context.Context, alert *models.Alert) {
	if err := s.notifier.Notify(ctx, notify.EventInventoryAlert, alert); err != nil {
		s.log.WithError(err).Warn("failed to broadcast alert", "alert_id", alert.ID)
	}
}

// CreateAlert records a manual alert raised by a manager.
func (s *AlertService) CreateAlert(ctx context.Context, req *models.CreateAlertRequest) (*models.Alert, error) {
	alert := &models.Alert{Kind: models.AlertManual, Severity: req.Severity, Message: req.Message}
	if err := s.insert(ctx, alert); err != nil {
		return nil, err
	}
	s.broadcast(ctx, alert)
	return alert, nil
}

// ResolveAlert marks an alert as resolved. Resolving twice is a no-op.
func (s *AlertService) ResolveAlert(ctx context.Context, id int) (*models.Alert, error) {
	alert, err := s.GetAlert(ctx, id)
	if err != nil {
		return nil, err
	}
	if alert.Resolved {
		return alert, nil
	}

	now := time.Now().UTC()
	if _, err := database.Exec(ctx, s.db, `UPDATE alerts SET resolved = ?, resolved_at = ? WHERE id = ?`, true, now, id); err != nil {
		return nil, fmt.Errorf("failed to resolve alert: %w", err)
	}
	alert.Resolved = true
	alert.ResolvedAt = &now
	return alert, nil
}

// CheckLowStock opens a low-stock alert for the ingredient when it is at or
// under its minimum and no unresolved one exists. It returns the new alert,
// or nil when nothing was raised.
func (s *AlertService) CheckLowStock(ctx context.Context, ing *models.Ingredient) (*models.Alert, error) {
	if !ing.LowStock() {
		return nil, nil
	}

	var open int
	err := database.Get(ctx, s.db, &open, `
		SELECT COUNT(*) FROM alerts WHERE kind = ? AND ingredient_id = ? AND resolved = ?`,
		models.AlertLowStock, ing.ID, false)
	if err != nil {
		return nil, fmt.Errorf("failed to check open alerts: %w", err)
	}
	if open > 0 {
		return nil, nil
	}

	severity := models.SeverityWarning
	if ing.Quantity <= 0 {
		severity = models.SeverityCritical
	}

	id := ing.ID
	alert := &models.Alert{
		Kind:         models.AlertLowStock,
		Severity:     severity,
		Message:      fmt.Sprintf("%s is low: %.2f %s left (minimum %.2f)", ing.Name, ing.Quantity, ing.Unit, ing.MinQuantity),
		IngredientID: &id,
	}
	if err := s.insert(ctx, alert); err != nil {
		return nil, err
	}

	s.log.Info("low stock alert raised", "ingredient", ing.Name, "severity", severity)
	s.broadcast(ctx, alert)
	return alert, nil
}

// ResolveLowStock closes open low-stock alerts once the ingredient is back
// above its minimum.
func (s *AlertService) ResolveLowStock(ctx context.Context, ing *models.Ingredient) error {
	if ing.LowStock() {
		return nil
	}
	_, err := database.Exec(ctx, s.db, `
		UPDATE alerts SET resolved = ?, resolved_at = ?
		WHERE kind = ? AND ingredient_id = ? AND resolved = ?`,
		true, time.Now().UTC(), models.AlertLowStock, ing.ID, false)
	if err != nil {
		return fmt.Errorf("failed to resolve low stock alerts: %w", err)
	}
	return nil
}

// DeleteResolvedBefore removes resolved alerts older than cutoff.
func (s *AlertService) DeleteResolvedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := database.Exec(ctx, s.db, `DELETE FROM alerts WHERE resolved = ? AND resolved_at < ?`, true, cutoff.UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to delete resolved alerts: %w", err)
	}
	return res.RowsAffected()
}
