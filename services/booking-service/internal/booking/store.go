package booking

import (
	"context"
	"time"

	"github.com/okulik/barberbook/services/booking-service/internal/model"
	"github.com/okulik/barberbook/services/booking-service/internal/outbox"
)

// Store is the persistence contract the engine is written against.
//
// Create and UpdateStatus carry the outbox event for the state change so
// implementations persist both as one atomic unit (mutate, then emit).
// Implementations must guarantee that no two concurrent writes can both
// claim overlapping time ranges on the same provider timeline:
//
//   - Create fails with ErrSlotTaken when the appointment's interval
//     overlaps any non-cancelled appointment at commit time.
//   - UpdateStatus compares-and-swaps on the previous status and fails with
//     ErrIllegalTransition when it changed concurrently; a transition back
//     onto the timeline (cancelled to an active status) re-checks overlap
//     and fails with ErrSlotNoLongerAvailable when the slot has been taken.
//
// Writes to disjoint time ranges may proceed in parallel.
type Store interface {
	Appointment(ctx context.Context, id string) (model.Appointment, error)

	// ListActive returns non-cancelled appointments overlapping [from, to),
	// in chronological order. A zero "to" means no upper bound.
	ListActive(ctx context.Context, from, to time.Time) ([]model.Appointment, error)

	ListByClient(ctx context.Context, clientID string) ([]model.Appointment, error)

	Create(ctx context.Context, appt model.Appointment, evt outbox.Event) error

	UpdateStatus(ctx context.Context, id string, from, to model.Status, evt outbox.Event) (model.Appointment, error)
}
