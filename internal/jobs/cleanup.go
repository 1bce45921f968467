package jobs

import (
	"context"
	"time"

	"github.com/tahcohcat/pizzeria-ops/internal/logger"
	"github.com/tahcohcat/pizzeria-ops/internal/services"
)

// Cleanup prunes resolved alerts and old inventory ledger rows. Reward
// history is never touched.
type Cleanup struct {
	alerts             *services.AlertService
	inventory          *services.InventoryService
	alertRetention     time.Duration
	inventoryRetention time.Duration
	now                func() time.Time
	log                *logger.Log
}

type CleanupResult struct {
	AlertsDeleted       int64 `json:"alerts_deleted"`
	TransactionsDeleted int64 `json:"transactions_deleted"`
}

func NewCleanup(alerts *services.AlertService, inventory *services.InventoryService, alertDays, inventoryDays int) *Cleanup {
	return &Cleanup{
		alerts:             alerts,
		inventory:          inventory,
		alertRetention:     time.Duration(alertDays) * 24 * time.Hour,
		inventoryRetention: time.Duration(inventoryDays) * 24 * time.Hour,
		now:                time.Now,
		log:                logger.New().With("job", "cleanup"),
	}
}

func (c *Cleanup) Run(ctx context.Context) (*CleanupResult, error) {
	now := c.now().UTC()
	res := &CleanupResult{}

	var err error
	if c.alertRetention > 0 {
		if res.AlertsDeleted, err = c.alerts.DeleteResolvedBefore(ctx, now.Add(-c.alertRetention)); err != nil {
			return res, err
		}
	}
	if c.inventoryRetention > 0 {
		if res.TransactionsDeleted, err = c.inventory.DeleteTransactionsBefore(ctx, now.Add(-c.inventoryRetention)); err != nil {
			return res, err
		}
	}

	c.log.Info("cleanup finished", "alerts_deleted", res.AlertsDeleted, "transactions_deleted", res.TransactionsDeleted)
	return res, nil
}
