package api

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
)

var ErrNotFound = errors.New("requested item not found")
var ErrConflict = errors.New("item already exists or conflict")
var ErrBadRequest = errors.New("invalid request")

// ConflictError identifies which uniqueness-governed field caused a
// rejected write. It unwraps to ErrConflict so callers can dispatch
// with errors.Is while still naming the field in responses.
type ConflictError struct {
	Field string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("%s already exists", e.Field)
}

func (e *ConflictError) Unwrap() error { return ErrConflict }

// ValidationError carries a field -> message map for every field that
// failed syntactic validation. No storage was touched when it is returned.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return fmt.Sprintf("validation failed: %s", strings.Join(keys, ", "))
}

// User is the canonical directory record. PasswordHash is excluded from
// every JSON response; only the bcrypt hash is ever persisted.
type User struct {
	ID           int64     `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	Phone        *string   `json:"phone,omitempty"` // Optional, unique when present
	PasswordHash string    `json:"-"`
	Status       bool      `json:"status"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// CreateUserParams is the expected JSON body for user creation.
type CreateUserParams struct {
	Name     string  `json:"name"`
	Email    string  `json:"email"`
	Phone    *string `json:"phone,omitempty"`
	Password string  `json:"password"`
}

// UpdateUserParams defines the fields allowed for partial updates.
// Pointers distinguish "not provided" from zero values; absent fields
// are left untouched.
type UpdateUserParams struct {
	Name     *string `json:"name,omitempty"`
	Email    *string `json:"email,omitempty"`
	Phone    *string `json:"phone,omitempty"`
	Status   *bool   `json:"status,omitempty"`
	Password *string `json:"password,omitempty"`
}

// SearchFilters holds the parsed query of a search request. Keyword is
// used in keyword mode (OR across name/email/phone); the per-field
// filters are used in faceted mode (AND over the supplied ones).
type SearchFilters struct {
	Keyword string
	Name    string
	Email   string
	Phone   string
}

// Response is a generic API response for simple success/error messages.
type Response struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}
