package models

import (
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"
)

type Role string

const (
	RoleAdmin   Role = "admin"
	RoleManager Role = "manager"
	RoleStaff   Role = "staff"
)

// rank orders roles so that admin satisfies any manager requirement.
func (r Role) rank() int {
	switch r {
	case RoleAdmin:
		return 3
	case RoleManager:
		return 2
	case RoleStaff:
		return 1
	}
	return 0
}

// AtLeast reports whether r grants at least the privileges of min.
func (r Role) AtLeast(min Role) bool {
	return r.rank() >= min.rank() && r.rank() > 0
}

// Employee represents a staff account
type Employee struct {
	ID          int        `json:"id" db:"id"`
	Username    string     `json:"username" db:"username"`
	Password    string     `json:"-" db:"password_hash"` // Never expose in JSON
	DisplayName string     `json:"display_name" db:"display_name"`
	Role        Role       `json:"role" db:"role"`
	HourlyRate  float64    `json:"hourly_rate" db:"hourly_rate"`
	IsActive    bool       `json:"is_active" db:"is_active"`
	CreatedAt   time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at" db:"updated_at"`
	LastLoginAt *time.Time `json:"last_login_at" db:"last_login_at"`
}

// CreateEmployeeRequest represents the request to create a new employee
type CreateEmployeeRequest struct {
	Username    string  `json:"username" validate:"required,min=3,max=20,alphanum"`
	Password    string  `json:"password" validate:"required,min=6"`
	DisplayName string  `json:"display_name" validate:"required,min=1,max=50"`
	Role        Role    `json:"role" validate:"required,oneof=admin manager staff"`
	HourlyRate  float64 `json:"hourly_rate" validate:"gte=0"`
}

// UpdateEmployeeRequest carries the mutable employee fields
type UpdateEmployeeRequest struct {
	DisplayName string  `json:"display_name" validate:"required,min=1,max=50"`
	Role        Role    `json:"role" validate:"required,oneof=admin manager staff"`
	HourlyRate  float64 `json:"hourly_rate" validate:"gte=0"`
	IsActive    bool    `json:"is_active"`
}

// LoginRequest represents a login attempt
type LoginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// PasswordChangeRequest represents a password change request
type PasswordChangeRequest struct {
	CurrentPassword string `json:"current_password" validate:"required"`
	NewPassword     string `json:"new_password" validate:"required,min=6"`
}

// SetPassword hashes and sets the employee's password
func (e *Employee) SetPassword(password string) error {
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	e.Password = string(hashedPassword)
	return nil
}

// CheckPassword verifies a password against the employee's hash
func (e *Employee) CheckPassword(password string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(e.Password), []byte(password))
	return err == nil
}

// IsHashed reports whether a stored password value is already a bcrypt hash.
func IsHashed(stored string) bool {
	if !strings.HasPrefix(stored, "$2") {
		return false
	}
	_, err := bcrypt.Cost([]byte(stored))
	return err == nil
}
