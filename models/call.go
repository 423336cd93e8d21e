package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// CallStatus is the lifecycle state of a call.
type CallStatus string

const (
	CallStatusActive     CallStatus = "ACTIVE"
	CallStatusInProgress CallStatus = "IN_PROGRESS"
	CallStatusResolved   CallStatus = "RESOLVED"
)

// Valid reports whether s is a known status.
func (s CallStatus) Valid() bool {
	switch s {
	case CallStatusActive, CallStatusInProgress, CallStatusResolved:
		return true
	}
	return false
}

// Open reports whether the call still needs attention.
func (s CallStatus) Open() bool {
	return s == CallStatusActive || s == CallStatusInProgress
}

// CallAction names a lifecycle transition.
type CallAction string

const (
	CallActionRespond CallAction = "respond"
	CallActionResolve CallAction = "resolve"
)

var callTransitions = map[CallAction][]CallStatus{
	CallActionRespond: {CallStatusActive},
	CallActionResolve: {CallStatusActive, CallStatusInProgress},
}

// CanTransition reports whether action may be applied to a call in status from.
func CanTransition(action CallAction, from CallStatus) bool {
	for _, s := range callTransitions[action] {
		if s == from {
			return true
		}
	}
	return false
}

// AllowedFrom returns the statuses action may be applied to.
func AllowedFrom(action CallAction) []CallStatus {
	return callTransitions[action]
}

// UnassignedDivisionLabel is shown wherever a call has no target division.
const UnassignedDivisionLabel = "Maintenance"

// DivisionRoute says where a call is routed: either a named division or the
// general maintenance board.
type DivisionRoute struct {
	id       uuid.UUID
	name     string
	assigned bool
}

// Unassigned routes a call to the general board.
func Unassigned() DivisionRoute {
	return DivisionRoute{}
}

// AssignedTo routes a call to a division.
func AssignedTo(id uuid.UUID, name string) DivisionRoute {
	return DivisionRoute{id: id, name: name, assigned: true}
}

// IsAssigned reports whether the route targets a division.
func (r DivisionRoute) IsAssigned() bool {
	return r.assigned
}

// DivisionID returns the target division and whether one is set.
func (r DivisionRoute) DivisionID() (uuid.UUID, bool) {
	return r.id, r.assigned
}

// Label is the display name for the route.
func (r DivisionRoute) Label() string {
	if !r.assigned || r.name == "" {
		return UnassignedDivisionLabel
	}
	return r.name
}

// IDPtr returns the division ID as a nullable column value.
func (r DivisionRoute) IDPtr() *uuid.UUID {
	if !r.assigned {
		return nil
	}
	id := r.id
	return &id
}

type divisionRouteJSON struct {
	Assigned   bool       `json:"assigned"`
	DivisionID *uuid.UUID `json:"division_id,omitempty"`
	Label      string     `json:"label"`
}

// MarshalJSON renders the route with its display label.
func (r DivisionRoute) MarshalJSON() ([]byte, error) {
	return json.Marshal(divisionRouteJSON{
		Assigned:   r.assigned,
		DivisionID: r.IDPtr(),
		Label:      r.Label(),
	})
}

// UnmarshalJSON restores a route from its JSON form.
func (r *DivisionRoute) UnmarshalJSON(data []byte) error {
	var v divisionRouteJSON
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	if v.Assigned && v.DivisionID != nil {
		*r = AssignedTo(*v.DivisionID, v.Label)
		return nil
	}
	*r = Unassigned()
	return nil
}

// Call is a help request raised against a machine.
type Call struct {
	ID          uuid.UUID     `json:"id" db:"id"`
	Number      int64         `json:"number" db:"number"`
	TenantID    uuid.UUID     `json:"tenant_id" db:"tenant_id"`
	MachineID   uuid.UUID     `json:"machine_id" db:"machine_id"`
	Route       DivisionRoute `json:"division" db:"target_division_id"`
	Status      CallStatus    `json:"status" db:"status"`
	CreatedAt   time.Time     `json:"created_at" db:"created_at"`
	RespondedAt *time.Time    `json:"responded_at,omitempty" db:"responded_at"`
	ResolvedAt  *time.Time    `json:"resolved_at,omitempty" db:"resolved_at"`
	ResponderID *uuid.UUID    `json:"responder_id,omitempty" db:"responder_id"`
	ResolverID  *uuid.UUID    `json:"resolver_id,omitempty" db:"resolver_id"`

	// Joined for display; not persisted on the calls row.
	MachineName   string    `json:"machine_name,omitempty" db:"-"`
	MachineCode   string    `json:"machine_code,omitempty" db:"-"`
	LocationID    uuid.UUID `json:"location_id,omitempty" db:"-"`
	LocationName  string    `json:"location_name,omitempty" db:"-"`
	ResponderName string    `json:"responder_name,omitempty" db:"-"`
	ResolverName  string    `json:"resolver_name,omitempty" db:"-"`
	Report        *Report   `json:"report,omitempty" db:"-"`
}

// TableName returns the table name for the Call model
func (Call) TableName() string {
	return "calls"
}

// NewCall creates an ACTIVE call. The number is assigned by the store.
func NewCall(tenantID, machineID uuid.UUID, route DivisionRoute, now time.Time) *Call {
	return &Call{
		ID:        uuid.New(),
		TenantID:  tenantID,
		MachineID: machineID,
		Route:     route,
		Status:    CallStatusActive,
		CreatedAt: now,
	}
}

// ResponseDuration is resolvedAt minus respondedAt; ok is false unless both are set.
func (c *Call) ResponseDuration() (time.Duration, bool) {
	if c.RespondedAt == nil || c.ResolvedAt == nil {
		return 0, false
	}
	return c.ResolvedAt.Sub(*c.RespondedAt), true
}

// Downtime is resolvedAt minus createdAt, including the wait before response.
func (c *Call) Downtime() (time.Duration, bool) {
	if c.Status != CallStatusResolved || c.ResolvedAt == nil {
		return 0, false
	}
	return c.ResolvedAt.Sub(c.CreatedAt), true
}

// Report is the write-up attached to a call when it is resolved.
type Report struct {
	ID        uuid.UUID `json:"id" db:"id"`
	CallID    uuid.UUID `json:"call_id" db:"call_id"`
	Content   string    `json:"content" db:"content"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// TableName returns the table name for the Report model
func (Report) TableName() string {
	return "reports"
}

// NewReport creates a new Report instance
func NewReport(callID uuid.UUID, content string, now time.Time) *Report {
	return &Report{
		ID:        uuid.New(),
		CallID:    callID,
		Content:   content,
		CreatedAt: now,
	}
}
