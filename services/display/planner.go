// Package display plans audio announcements for the division TV boards.
// The board keeps no server-side memory; the client sends back the state it
// was given on the previous poll.
package display

import (
	"time"

	"github.com/google/uuid"
	"github.com/upb/andon-board/models"
)

// DefaultReminderInterval is how often a still-waiting call is announced again
const DefaultReminderInterval = 2 * time.Minute

// State maps a call to the last time it was announced
type State map[uuid.UUID]time.Time

// Plan is the result of one poll
type Plan struct {
	Announce []*models.Call `json:"announce"`
	State    State          `json:"state"`
}

// Planner decides which queued calls to announce
type Planner struct {
	interval time.Duration
}

// NewPlanner creates a Planner; a non-positive interval uses the default
func NewPlanner(interval time.Duration) *Planner {
	if interval <= 0 {
		interval = DefaultReminderInterval
	}
	return &Planner{interval: interval}
}

// Plan returns the ACTIVE calls in queue that were never announced or were
// last announced at least one interval ago, and the state for the next poll.
// Entries for calls that left the queue or are being handled are dropped.
// The input state is not modified.
func (p *Planner) Plan(state State, queue []*models.Call, now time.Time) Plan {
	next := make(State, len(queue))
	announce := []*models.Call{}

	for _, call := range queue {
		if call.Status != models.CallStatusActive {
			continue
		}
		last, seen := state[call.ID]
		if !seen || now.Sub(last) >= p.interval {
			announce = append(announce, call)
			next[call.ID] = now
			continue
		}
		next[call.ID] = last
	}

	return Plan{Announce: announce, State: next}
}
