package api

import (
	"net/http"
	"time"

	"github.com/tahcohcat/pizzeria-ops/internal/apierr"
	"github.com/tahcohcat/pizzeria-ops/internal/auth"
	"github.com/tahcohcat/pizzeria-ops/internal/models"
)

type loginResponse struct {
	Token     string           `json:"token"`
	ExpiresAt time.Time        `json:"expires_at"`
	Employee  *models.Employee `json:"employee"`
}

// POST /api/v1/auth/login - Start a session and issue a bearer token
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req models.LoginRequest
	if err := decode(r, &req); err != nil {
		apierr.WriteError(w, r, err)
		return
	}

	employee, err := h.employees.Authenticate(r.Context(), &req)
	if err != nil {
		apierr.WriteError(w, r, err)
		return
	}

	if err := h.auth.StartSession(w, r, employee); err != nil {
		apierr.WriteError(w, r, err)
		return
	}

	token, expires, err := h.auth.IssueToken(employee)
	if err != nil {
		apierr.WriteError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, loginResponse{Token: token, ExpiresAt: expires, Employee: employee})
}

// POST /api/v1/auth/logout
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	if err := h.auth.EndSession(w, r); err != nil {
		apierr.WriteError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GET /api/v1/auth/me
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	p, _ := auth.FromContext(r.Context())
	employee, err := h.employees.GetEmployeeByID(r.Context(), p.EmployeeID)
	if err != nil {
		apierr.WriteError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, employee)
}

// POST /api/v1/auth/password
func (h *Handler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	var req models.PasswordChangeRequest
	if err := decode(r, &req); err != nil {
		apierr.WriteError(w, r, err)
		return
	}

	p, _ := auth.FromContext(r.Context())
	if err := h.employees.ChangePassword(r.Context(), p.EmployeeID, req.CurrentPassword, req.NewPassword); err != nil {
		apierr.WriteError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GET /api/v1/employees?include_inactive=
func (h *Handler) ListEmployees(w http.ResponseWriter, r *http.Request) {
	includeInactive, err := queryBool(r, "include_inactive")
	if err != nil {
		apierr.WriteError(w, r, err)
		return
	}

	employees, err := h.employees.ListEmployees(r.Context(), includeInactive != nil && *includeInactive)
	if err != nil {
		apierr.WriteError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, employees)
}

// GET /api/v1/employees/{id} - Managers see everyone, staff only themselves
func (h *Handler) GetEmployee(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		apierr.WriteError(w, r, err)
		return
	}

	p, _ := auth.FromContext(r.Context())
	if p.EmployeeID != id && !p.Role.AtLeast(models.RoleManager) {
		apierr.Write(w, r, apierr.CodeForbidden, "cannot view other employees")
		return
	}

	employee, err := h.employees.GetEmployeeByID(r.Context(), id)
	if err != nil {
		apierr.WriteError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, employee)
}

// POST /api/v1/employees
func (h *Handler) CreateEmployee(w http.ResponseWriter, r *http.Request) {
	var req models.CreateEmployeeRequest
	if err := decode(r, &req); err != nil {
		apierr.WriteError(w, r, err)
		return
	}

	employee, err := h.employees.CreateEmployee(r.Context(), &req)
	if err != nil {
		apierr.WriteError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, employee)
}

// PUT /api/v1/employees/{id}
func (h *Handler) UpdateEmployee(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		apierr.WriteError(w, r, err)
		return
	}

	var req models.UpdateEmployeeRequest
	if err := decode(r, &req); err != nil {
		apierr.WriteError(w, r, err)
		return
	}

	employee, err := h.employees.UpdateEmployee(r.Context(), id, &req)
	if err != nil {
		apierr.WriteError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, employee)
}

// DELETE /api/v1/employees/{id} - Deactivates; history stays attached
func (h *Handler) DeactivateEmployee(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		apierr.WriteError(w, r, err)
		return
	}

	p, _ := auth.FromContext(r.Context())
	if p.EmployeeID == id {
		apierr.Write(w, r, apierr.CodeBadRequest, "cannot deactivate your own account")
		return
	}

	if err := h.employees.DeactivateEmployee(r.Context(), id); err != nil {
		apierr.WriteError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
