package models

import (
	"regexp"
	"time"

	"github.com/google/uuid"
)

var slugPattern = regexp.MustCompile(`^[a-z0-9]+(?:-[a-z0-9]+)*$`)

// Tenant is the root of isolation. Every other entity carries its ID.
type Tenant struct {
	ID        uuid.UUID `json:"id" db:"id"`
	Name      string    `json:"name" db:"name"`
	Slug      string    `json:"slug" db:"slug"` // URL-safe, immutable after creation
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// TableName returns the table name for the Tenant model
func (Tenant) TableName() string {
	return "tenants"
}

// NewTenant creates a new Tenant instance
func NewTenant(name, slug string) *Tenant {
	return &Tenant{
		ID:        uuid.New(),
		Name:      name,
		Slug:      slug,
		CreatedAt: time.Now(),
	}
}

// ValidSlug reports whether s is a lowercase, hyphen-separated URL-safe slug.
func ValidSlug(s string) bool {
	return len(s) <= 100 && slugPattern.MatchString(s)
}
