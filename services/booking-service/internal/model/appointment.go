package model

import (
	"fmt"
	"time"
)

// Status is the closed set of appointment lifecycle states.
type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusCancelled Status = "cancelled"
)

func ParseStatus(raw string) (Status, error) {
	switch Status(raw) {
	case StatusPending, StatusConfirmed, StatusCancelled:
		return Status(raw), nil
	}
	return "", fmt.Errorf("unknown status %q", raw)
}

// Active reports whether the appointment occupies its slot on the timeline.
// Cancelled appointments are kept as history but never block other bookings.
func (s Status) Active() bool {
	return s == StatusPending || s == StatusConfirmed
}

// transitions is the legal status graph. The provider drives every edge;
// a client may only take edges into cancelled on their own appointment.
var transitions = map[Status][]Status{
	StatusPending:   {StatusConfirmed, StatusCancelled},
	StatusConfirmed: {StatusPending, StatusCancelled},
	StatusCancelled: {StatusPending, StatusConfirmed},
}

// CanTransition reports whether the status graph permits moving from one
// status to another.
// Self-transitions are not in the graph: cancelling an already cancelled
// appointment is an illegal transition, not a no-op.
func CanTransition(from, to Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Actor is the identity invoking a lifecycle transition.
type Actor struct {
	ID       string
	Provider bool
}

// Appointment is the persistent unit of booking. All fields except Status
// are immutable after creation; a different time or service set requires
// cancel-and-recreate.
type Appointment struct {
	ID         string
	ClientID   string
	ProviderID string
	Services   []string
	StartTime  time.Time
	EndTime    time.Time
	Status     Status
	CreatedAt  time.Time
}

// Overlaps reports whether the appointment's [StartTime, EndTime) interval
// shares any instant with [start, end).
func (a Appointment) Overlaps(start, end time.Time) bool {
	return a.StartTime.Before(end) && start.Before(a.EndTime)
}
