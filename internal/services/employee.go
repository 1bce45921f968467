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
)

type EmployeeService struct {
	db database.Handle
}

func NewEmployeeService(db database.Handle) *EmployeeService {
	return &EmployeeService{db: db}
}

const employeeColumns = `id, username, display_name, role, hourly_rate, is_active, created_at, updated_at, last_login_at`

// CreateEmployee creates a new employee account
func (s *EmployeeService) CreateEmployee(ctx context.Context, req *models.CreateEmployeeRequest) (*models.Employee, error) {
	if exists, err := s.UsernameExists(ctx, req.Username); err != nil {
		return nil, err
	} else if exists {
		return nil, fmt.Errorf("%w: username already exists", ErrConflict)
	}

	now := time.Now().UTC()
	employee := &models.Employee{
		Username:    req.Username,
		DisplayName: req.DisplayName,
		Role:        req.Role,
		HourlyRate:  req.HourlyRate,
		IsActive:    true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := employee.SetPassword(req.Password); err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	id, err := database.InsertID(ctx, s.db, `
		INSERT INTO employees (username, password_hash, display_name, role, hourly_rate, is_active, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING id`,
		employee.Username, employee.Password, employee.DisplayName, employee.Role, employee.HourlyRate,
		employee.IsActive, employee.CreatedAt, employee.UpdatedAt)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return nil, fmt.Errorf("%w: username already exists", ErrConflict)
		}
		return nil, fmt.Errorf("failed to create employee: %w", err)
	}

	employee.ID = id
	return employee, nil
}

// Authenticate validates login credentials and returns the employee
func (s *EmployeeService) Authenticate(ctx context.Context, req *models.LoginRequest) (*models.Employee, error) {
	employee, err := s.getWithPassword(ctx, `username = ?`, req.Username)
	if err != nil {
		return nil, ErrInvalidCredentials
	}

	if !employee.CheckPassword(req.Password) {
		return nil, ErrInvalidCredentials
	}

	if !employee.IsActive {
		return nil, ErrAccountDisabled
	}

	if err := s.UpdateLastLogin(ctx, employee.ID); err != nil {
		// Non-fatal error, just log it
		logger.New().WithError(err).Warn("failed to update last login", "employee_id", employee.ID)
	}

	return employee, nil
}

func (s *EmployeeService) getWithPassword(ctx context.Context, where string, arg interface{}) (*models.Employee, error) {
	var employee models.Employee
	err := database.Get(ctx, s.db, &employee, `SELECT `+employeeColumns+`, password_hash FROM employees WHERE `+where, arg)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: employee", ErrNotFound)
	} else if err != nil {
		return nil, fmt.Errorf("failed to get employee: %w", err)
	}
	return &employee, nil
}

// GetEmployeeByID retrieves an employee by ID
func (s *EmployeeService) GetEmployeeByID(ctx context.Context, id int) (*models.Employee, error) {
	var employee models.Employee
	err := database.Get(ctx, s.db, &employee, `SELECT `+employeeColumns+` FROM employees WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: employee %d", ErrNotFound, id)
	} else if err != nil {
		return nil, fmt.Errorf("failed to get employee: %w", err)
	}

	return &employee, nil
}

// ListEmployees returns employees ordered by name
func (s *EmployeeService) ListEmployees(ctx context.Context, includeInactive bool) ([]models.Employee, error) {
	employees := []models.Employee{}
	query := `SELECT ` + employeeColumns + ` FROM employees`
	var args []interface{}
	if !includeInactive {
		query += ` WHERE is_active = ?`
		args = append(args, true)
	}
	query += ` ORDER BY display_name`

	if err := database.Select(ctx, s.db, &employees, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list employees: %w", err)
	}
	return employees, nil
}

// UsernameExists checks if a username is already taken
func (s *EmployeeService) UsernameExists(ctx context.Context, username string) (bool, error) {
	var count int
	err := database.Get(ctx, s.db, &count, `SELECT COUNT(*) FROM employees WHERE username = ?`, username)
	return count > 0, err
}

// UpdateLastLogin updates the employee's last login timestamp
func (s *EmployeeService) UpdateLastLogin(ctx context.Context, id int) error {
	_, err := database.Exec(ctx, s.db, `UPDATE employees SET last_login_at = ? WHERE id = ?`, time.Now().UTC(), id)
	return err
}

// UpdateEmployee changes display name, role, rate and active flag
func (s *EmployeeService) UpdateEmployee(ctx context.Context, id int, req *models.UpdateEmployeeRequest) (*models.Employee, error) {
	res, err := database.Exec(ctx, s.db, `
		UPDATE employees SET display_name = ?, role = ?, hourly_rate = ?, is_active = ?, updated_at = ?
		WHERE id = ?`, req.DisplayName, req.Role, req.HourlyRate, req.IsActive, time.Now().UTC(), id)
	if err != nil {
		return nil, fmt.Errorf("failed to update employee: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, fmt.Errorf("%w: employee %d", ErrNotFound, id)
	}
	return s.GetEmployeeByID(ctx, id)
}

// DeactivateEmployee disables the account. Employees are never deleted so
// that their shifts and reward history stay attributable.
func (s *EmployeeService) DeactivateEmployee(ctx context.Context, id int) error {
	res, err := database.Exec(ctx, s.db, `UPDATE employees SET is_active = ?, updated_at = ? WHERE id = ?`, false, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to deactivate employee: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: employee %d", ErrNotFound, id)
	}
	return nil
}

// ChangePassword allows employees to change their password
func (s *EmployeeService) ChangePassword(ctx context.Context, id int, currentPassword, newPassword string) error {
	employee, err := s.getWithPassword(ctx, `id = ?`, id)
	if err != nil {
		return err
	}

	if !employee.CheckPassword(currentPassword) {
		return fmt.Errorf("%w: current password is incorrect", ErrInvalidCredentials)
	}

	if err := employee.SetPassword(newPassword); err != nil {
		return fmt.Errorf("failed to hash new password: %w", err)
	}

	_, err = database.Exec(ctx, s.db, `UPDATE employees SET password_hash = ?, updated_at = ? WHERE id = ?`,
		employee.Password, time.Now().UTC(), id)
	return err
}

// MigrateLegacyPasswords hashes any password stored in clear text by older
// deployments. It returns the number of rows rewritten.
func (s *EmployeeService) MigrateLegacyPasswords(ctx context.Context) (int, error) {
	var rows []struct {
		ID       int    `db:"id"`
		Password string `db:"password_hash"`
	}
	if err := database.Select(ctx, s.db, &rows, `SELECT id, password_hash FROM employees`); err != nil {
		return 0, fmt.Errorf("failed to load passwords: %w", err)
	}

	migrated := 0
	for _, row := range rows {
		if models.IsHashed(row.Password) {
			continue
		}

		var e models.Employee
		if err := e.SetPassword(row.Password); err != nil {
			return migrated, fmt.Errorf("failed to hash password for employee %d: %w", row.ID, err)
		}
		if _, err := database.Exec(ctx, s.db, `UPDATE employees SET password_hash = ?, updated_at = ? WHERE id = ?`,
			e.Password, time.Now().UTC(), row.ID); err != nil {
			return migrated, fmt.Errorf("failed to store password for employee %d: %w", row.ID, err)
		}
		migrated++
	}

	return migrated, nil
}

// EnsureAdmin creates the first admin account when no employees exist.
func (s *EmployeeService) EnsureAdmin(ctx context.Context, username, password string) (bool, error) {
	var count int
	if err := database.Get(ctx, s.db, &count, `SELECT COUNT(*) FROM employees`); err != nil {
		return false, fmt.Errorf("failed to count employees: %w", err)
	}
	if count > 0 || password == "" {
		return false, nil
	}

	_, err := s.CreateEmployee(ctx, &models.CreateEmployeeRequest{
		Username:    username,
		Password:    password,
		DisplayName: "Administrator",
		Role:        models.RoleAdmin,
	})
	if err != nil {
		return false, err
	}
	return true, nil
}
