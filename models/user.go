package models

import (
	"time"

	"github.com/google/uuid"
)

// UserRole represents the role of a user within a tenant
type UserRole string

const (
	RoleAdmin UserRole = "ADMIN"
	RoleTeam  UserRole = "TEAM"
)

// Valid reports whether r is a known role.
func (r UserRole) Valid() bool {
	return r == RoleAdmin || r == RoleTeam
}

// User is a staff member who responds to and resolves calls.
// Email is unique across all tenants.
type User struct {
	ID           uuid.UUID  `json:"id" db:"id"`
	TenantID     uuid.UUID  `json:"tenant_id" db:"tenant_id"`
	Name         string     `json:"name" db:"name"`
	Email        string     `json:"email" db:"email"`
	PasswordHash string     `json:"-" db:"password_hash"`
	Role         UserRole   `json:"role" db:"role"`
	DivisionID   *uuid.UUID `json:"division_id,omitempty" db:"division_id"`
	CreatedAt    time.Time  `json:"created_at" db:"created_at"`
}

// TableName returns the table name for the User model
func (User) TableName() string {
	return "users"
}

// NewUser creates a new User instance
func NewUser(tenantID uuid.UUID, name, email, passwordHash string, role UserRole, divisionID *uuid.UUID) *User {
	return &User{
		ID:           uuid.New(),
		TenantID:     tenantID,
		Name:         name,
		Email:        email,
		PasswordHash: passwordHash,
		Role:         role,
		DivisionID:   divisionID,
		CreatedAt:    time.Now(),
	}
}

// IsAdmin returns true if the user has admin role
func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}
