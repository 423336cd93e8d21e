package models

import (
	"time"

	"github.com/google/uuid"
)

// Location groups machines on the shop floor.
type Location struct {
	ID        uuid.UUID `json:"id" db:"id"`
	TenantID  uuid.UUID `json:"tenant_id" db:"tenant_id"`
	Name      string    `json:"name" db:"name"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// TableName returns the table name for the Location model
func (Location) TableName() string {
	return "locations"
}

// NewLocation creates a new Location instance
func NewLocation(tenantID uuid.UUID, name string) *Location {
	return &Location{
		ID:        uuid.New(),
		TenantID:  tenantID,
		Name:      name,
		CreatedAt: time.Now(),
	}
}

// Machine is the unit a call is raised against. Code is what the QR label encodes
// and is unique within a tenant.
type Machine struct {
	ID           uuid.UUID `json:"id" db:"id"`
	TenantID     uuid.UUID `json:"tenant_id" db:"tenant_id"`
	LocationID   uuid.UUID `json:"location_id" db:"location_id"`
	LocationName string    `json:"location_name,omitempty" db:"-"`
	Name         string    `json:"name" db:"name"`
	Code         string    `json:"code" db:"code"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
}

// TableName returns the table name for the Machine model
func (Machine) TableName() string {
	return "machines"
}

// NewMachine creates a new Machine instance
func NewMachine(tenantID, locationID uuid.UUID, name, code string) *Machine {
	return &Machine{
		ID:         uuid.New(),
		TenantID:   tenantID,
		LocationID: locationID,
		Name:       name,
		Code:       code,
		CreatedAt:  time.Now(),
	}
}

// Division is an optional routing target for calls.
type Division struct {
	ID        uuid.UUID `json:"id" db:"id"`
	TenantID  uuid.UUID `json:"tenant_id" db:"tenant_id"`
	Name      string    `json:"name" db:"name"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// TableName returns the table name for the Division model
func (Division) TableName() string {
	return "divisions"
}

// NewDivision creates a new Division instance
func NewDivision(tenantID uuid.UUID, name string) *Division {
	return &Division{
		ID:        uuid.New(),
		TenantID:  tenantID,
		Name:      name,
		CreatedAt: time.Now(),
	}
}
