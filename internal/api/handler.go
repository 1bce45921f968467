// Package api exposes the REST surface under /api/v1.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/tahcohcat/pizzeria-ops/internal/auth"
	"github.com/tahcohcat/pizzeria-ops/internal/jobs"
	"github.com/tahcohcat/pizzeria-ops/internal/services"
)

// WeeklyRunner closes one week of rewards.
type WeeklyRunner interface {
	Run(ctx context.Context, weekStart time.Time) (*jobs.RunSummary, error)
}

// JobRunner triggers a registered background job.
type JobRunner interface {
	RunNow(ctx context.Context, name string) (string, error)
	Names() []string
}

// Handler holds the services behind every endpoint.
type Handler struct {
	auth      *auth.Manager
	employees *services.EmployeeService
	inventory *services.InventoryService
	recipes   *services.RecipeService
	sales     *services.SaleService
	shifts    *services.ShiftService
	rewards   *services.RewardService
	alerts    *services.AlertService
	weekly    WeeklyRunner
	jobs      JobRunner
	events    http.Handler
	now       func() time.Time
}

type Deps struct {
	Auth      *auth.Manager
	Employees *services.EmployeeService
	Inventory *services.InventoryService
	Recipes   *services.RecipeService
	Sales     *services.SaleService
	Shifts    *services.ShiftService
	Rewards   *services.RewardService
	Alerts    *services.AlertService
	Weekly    WeeklyRunner
	Jobs      JobRunner
	// Events serves the websocket endpoint.
	Events http.Handler
}

func NewHandler(d Deps) *Handler {
	return &Handler{
		auth:      d.Auth,
		employees: d.Employees,
		inventory: d.Inventory,
		recipes:   d.Recipes,
		sales:     d.Sales,
		shifts:    d.Shifts,
		rewards:   d.Rewards,
		alerts:    d.Alerts,
		weekly:    d.Weekly,
		jobs:      d.Jobs,
		events:    d.Events,
		now:       time.Now,
	}
}

type healthResponse struct {
	Status  string `json:"status"`
	Service string `json:"service"`
}

// GET /healthz
func (h *Handler) Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{Status: "ok", Service: "pizzeria-ops"})
}
