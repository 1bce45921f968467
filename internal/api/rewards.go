package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/tahcohcat/pizzeria-ops/internal/apierr"
	"github.com/tahcohcat/pizzeria-ops/internal/auth"
	"github.com/tahcohcat/pizzeria-ops/internal/jobs"
	"github.com/tahcohcat/pizzeria-ops/internal/models"
	"github.com/tahcohcat/pizzeria-ops/internal/services"
)

// POST /api/v1/shifts
func (h *Handler) CreateShift(w http.ResponseWriter, r *http.Request) {
	var req models.CreateShiftRequest
	if err := decode(r, &req); err != nil {
		apierr.WriteError(w, r, err)
		return
	}

	shift, err := h.shifts.CreateShift(r.Context(), &req)
	if err != nil {
		apierr.WriteError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, shift)
}

// GET /api/v1/shifts?employee_id=&from=&to= - Staff only see their own shifts
func (h *Handler) ListShifts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := services.ShiftFilter{From: q.Get("from"), To: q.Get("to")}

	if raw := q.Get("employee_id"); raw != "" {
		id, err := strconv.Atoi(raw)
		if err != nil {
			apierr.Write(w, r, apierr.CodeBadRequest, "employee_id must be an integer")
			return
		}
		filter.EmployeeID = id
	}

	p, _ := auth.FromContext(r.Context())
	if !p.Role.AtLeast(models.RoleManager) {
		filter.EmployeeID = p.EmployeeID
	}

	shifts, err := h.shifts.ListShifts(r.Context(), filter)
	if err != nil {
		apierr.WriteError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, shifts)
}

// PATCH /api/v1/shifts/{id}/tasks
func (h *Handler) UpdateShiftTasks(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		apierr.WriteError(w, r, err)
		return
	}

	var req models.UpdateTasksRequest
	if err := decode(r, &req); err != nil {
		apierr.WriteError(w, r, err)
		return
	}

	shift, err := h.shifts.GetShift(r.Context(), id)
	if err != nil {
		apierr.WriteError(w, r, err)
		return
	}
	p, _ := auth.FromContext(r.Context())
	if shift.EmployeeID != p.EmployeeID && !p.Role.AtLeast(models.RoleManager) {
		apierr.Write(w, r, apierr.CodeForbidden, "cannot update another employee's shift")
		return
	}

	shift, err = h.shifts.UpdateTasks(r.Context(), id, &req)
	if err != nil {
		apierr.WriteError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, shift)
}

// GET /api/v1/rewards/weekly?week_start= - Defaults to the current week
func (h *Handler) WeeklyRecords(w http.ResponseWriter, r *http.Request) {
	week := services.StartOfWeek(h.now())
	if raw := r.URL.Query().Get("week_start"); raw != "" {
		var err error
		if week, err = services.ParseWeek(raw); err != nil {
			apierr.WriteError(w, r, err)
			return
		}
	}

	records, err := h.rewards.WeeklyRecords(r.Context(), services.WeekKey(week))
	if err != nil {
		apierr.WriteError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, records)
}

// GET /api/v1/rewards/leaderboard?limit=
func (h *Handler) Leaderboard(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit", 10)
	if err != nil {
		apierr.WriteError(w, r, err)
		return
	}

	entries, err := h.rewards.Leaderboard(r.Context(), limit)
	if err != nil {
		apierr.WriteError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

// GET /api/v1/rewards/badges
func (h *Handler) ListBadges(w http.ResponseWriter, r *http.Request) {
	badges, err := h.rewards.ListBadges(r.Context())
	if err != nil {
		apierr.WriteError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, badges)
}

// GET /api/v1/rewards/employees/{id}?history= - Points, badges and recent history
func (h *Handler) RewardProfile(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		apierr.WriteError(w, r, err)
		return
	}
	limit, err := queryInt(r, "history", 20)
	if err != nil {
		apierr.WriteError(w, r, err)
		return
	}

	if _, err := h.employees.GetEmployeeByID(r.Context(), id); err != nil {
		apierr.WriteError(w, r, err)
		return
	}

	profile, err := h.rewards.GetProfile(r.Context(), id, limit)
	if err != nil {
		apierr.WriteError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

// POST /api/v1/rewards/run?week_start= - Aggregates the week's shifts and closes it.
// A run with failed employees still answers 200; they are listed in "failed".
func (h *Handler) RunWeeklyRewards(w http.ResponseWriter, r *http.Request) {
	week := services.StartOfWeek(h.now())
	if raw := r.URL.Query().Get("week_start"); raw != "" {
		var err error
		if week, err = services.ParseWeek(raw); err != nil {
			apierr.WriteError(w, r, err)
			return
		}
	}

	if _, err := h.shifts.AggregateWeek(r.Context(), week); err != nil {
		apierr.WriteError(w, r, err)
		return
	}

	summary, err := h.weekly.Run(r.Context(), week)
	switch {
	case errors.Is(err, jobs.ErrRunInProgress):
		apierr.Write(w, r, apierr.CodeConflict, err.Error())
		return
	case err != nil && !errors.Is(err, jobs.ErrPartialRun):
		apierr.WriteError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

type jobRunResponse struct {
	Job   string `json:"job"`
	RunID string `json:"run_id"`
}

// GET /api/v1/jobs
func (h *Handler) ListJobs(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.jobs.Names())
}

// POST /api/v1/jobs/{name}/run - Runs a background job now and waits for it
func (h *Handler) RunJob(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]

	runID, err := h.jobs.RunNow(r.Context(), name)
	switch {
	case errors.Is(err, jobs.ErrUnknownJob):
		apierr.Write(w, r, apierr.CodeNotFound, err.Error())
		return
	case errors.Is(err, jobs.ErrRunInProgress), errors.Is(err, jobs.ErrSchedulerStopped):
		apierr.Write(w, r, apierr.CodeConflict, err.Error())
		return
	case err != nil:
		apierr.WriteError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, jobRunResponse{Job: name, RunID: runID})
}
