// Package notify delivers board notifications to an external channel.
// Delivery is best effort: Notify never returns an error and never fails the
// lifecycle operation that triggered it.
package notify

import (
	"context"

	"github.com/google/uuid"
)

// Message is one outbound notification
type Message struct {
	TenantID uuid.UUID
	CallID   *uuid.UUID
	Text     string
}

// Notifier sends a message and swallows delivery failures
type Notifier interface {
	Notify(ctx context.Context, msg Message)
}

// FailureRecorder is told about messages that could not be delivered
type FailureRecorder interface {
	NotificationFailed(ctx context.Context, tenantID uuid.UUID, callID *uuid.UUID, cause error)
}

// NopNotifier is used when no channel is configured
type NopNotifier struct{}

func (NopNotifier) Notify(context.Context, Message) {}
