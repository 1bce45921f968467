package services

import "errors"

var (
	// ErrNotFound indicates the requested row does not exist.
	ErrNotFound = errors.New("not found")

	// ErrConflict indicates a uniqueness rule would be broken.
	ErrConflict = errors.New("conflict")

	// ErrInvalidInput indicates a request that is well-formed but not acceptable.
	ErrInvalidInput = errors.New("invalid input")

	// ErrInsufficientStock indicates an ingredient would go below zero.
	ErrInsufficientStock = errors.New("insufficient stock")

	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrAccountDisabled    = errors.New("account is disabled")
)
