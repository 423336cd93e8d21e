package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// CallEventAction represents the type of action being recorded
type CallEventAction string

const (
	CallEventCreated       CallEventAction = "call_created"
	CallEventDuplicateScan CallEventAction = "duplicate_scan"
	CallEventResponded     CallEventAction = "call_responded"
	CallEventResolved      CallEventAction = "call_resolved"
	CallEventNotifyFailed  CallEventAction = "notification_failed"
	CallEventMachineAdded  CallEventAction = "machine_created"
	CallEventUserAdded     CallEventAction = "user_created"
)

// CallEvent is an append-only audit trail entry for the board.
type CallEvent struct {
	ID           uuid.UUID       `json:"id" db:"id"`
	TenantID     uuid.UUID       `json:"tenant_id" db:"tenant_id"`
	CallID       *uuid.UUID      `json:"call_id,omitempty" db:"call_id"`
	ActorID      *uuid.UUID      `json:"actor_id,omitempty" db:"actor_id"`
	Action       CallEventAction `json:"action" db:"action"`
	ResourceType string          `json:"resource_type" db:"resource_type"` // call, machine, user
	ResourceID   *uuid.UUID      `json:"resource_id,omitempty" db:"resource_id"`
	Details      json.RawMessage `json:"details,omitempty" db:"details"` // JSONB
	RequestID    string          `json:"request_id,omitempty" db:"request_id"`
	OccurredAt   time.Time       `json:"occurred_at" db:"occurred_at"`
}

// TableName returns the table name for the CallEvent model
func (CallEvent) TableName() string {
	return "call_events"
}

// NewCallEvent creates a new CallEvent instance
func NewCallEvent(tenantID uuid.UUID, action CallEventAction, resourceType string) *CallEvent {
	return &CallEvent{
		ID:           uuid.New(),
		TenantID:     tenantID,
		Action:       action,
		ResourceType: resourceType,
		OccurredAt:   time.Now(),
	}
}

// WithCall sets the call ID
func (e *CallEvent) WithCall(callID uuid.UUID) *CallEvent {
	e.CallID = &callID
	return e
}

// WithActor sets the acting user
func (e *CallEvent) WithActor(actorID uuid.UUID) *CallEvent {
	e.ActorID = &actorID
	return e
}

// WithResource sets the resource ID
func (e *CallEvent) WithResource(resourceID uuid.UUID) *CallEvent {
	e.ResourceID = &resourceID
	return e
}

// WithDetails sets the details
func (e *CallEvent) WithDetails(details interface{}) *CallEvent {
	if data, err := json.Marshal(details); err == nil {
		e.Details = data
	}
	return e
}

// WithRequest sets the originating request ID
func (e *CallEvent) WithRequest(requestID string) *CallEvent {
	e.RequestID = requestID
	return e
}
