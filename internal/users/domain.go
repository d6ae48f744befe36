package users

import (
	"time"

	"github.com/google/uuid"

	"github.com/atelier-crm/atelier-crm/internal/authz"
)

// User is an account managed through the admin surface. PasswordHash never
// leaves the repository layer; handlers serialize this struct directly.
type User struct {
	ID       uuid.UUID    `json:"id"`
	Username string       `json:"username"`
	TeamID   *uuid.UUID   `json:"team_id,omitempty"`
	IsActive bool         `json:"is_active"`
	Roles    []authz.Role `json:"roles"`
	// Permissions is the resolved effective set; populated on single-user
	// reads, omitted from listings.
	Permissions []string  `json:"permissions,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// CreateInput carries the fields needed to provision an account.
type CreateInput struct {
	Username string
	Password string
	TeamID   *uuid.UUID
	Roles    []string
}

// UpdateInput carries mutable account fields. Nil pointers mean "leave as is".
type UpdateInput struct {
	Password *string
	TeamID   *uuid.UUID
	IsActive *bool
}
