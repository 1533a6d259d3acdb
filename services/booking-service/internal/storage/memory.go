package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/okulik/barberbook/services/booking-service/internal/booking"
	"github.com/okulik/barberbook/services/booking-service/internal/model"
	"github.com/okulik/barberbook/services/booking-service/internal/outbox"
)

// MemoryStore implements booking.Store for local development (no
// DATABASE_URL) and tests. A single mutex serializes writes, which gives the
// same atomicity contract as the Postgres exclusion constraint. Events that
// would go to the outbox table are buffered on a channel instead; when the
// buffer is full the oldest event is dropped, matching the fire-and-forget
// notification contract.
type MemoryStore struct {
	mu     sync.Mutex
	appts  map[string]model.Appointment
	events chan outbox.Event
}

var _ booking.Store = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		appts:  map[string]model.Appointment{},
		events: make(chan outbox.Event, 256),
	}
}

// Events exposes the emitted lifecycle events for a drain loop or a test.
func (s *MemoryStore) Events() <-chan outbox.Event {
	return s.events
}

func (s *MemoryStore) Appointment(_ context.Context, id string) (model.Appointment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	appt, ok := s.appts[id]
	if !ok {
		return model.Appointment{}, booking.ErrNotFound
	}
	return appt, nil
}

func (s *MemoryStore) ListActive(_ context.Context, from, to time.Time) ([]model.Appointment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var appts []model.Appointment
	for _, appt := range s.appts {
		if !appt.Status.Active() {
			continue
		}
		if !appt.EndTime.After(from) {
			continue
		}
		if !to.IsZero() && !appt.StartTime.Before(to) {
			continue
		}
		appts = append(appts, appt)
	}
	sort.Slice(appts, func(i, j int) bool { return appts[i].StartTime.Before(appts[j].StartTime) })
	return appts, nil
}

func (s *MemoryStore) ListByClient(_ context.Context, clientID string) ([]model.Appointment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var appts []model.Appointment
	for _, appt := range s.appts {
		if appt.ClientID == clientID {
			appts = append(appts, appt)
		}
	}
	sort.Slice(appts, func(i, j int) bool { return appts[i].StartTime.After(appts[j].StartTime) })
	return appts, nil
}

func (s *MemoryStore) Create(_ context.Context, appt model.Appointment, evt outbox.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.overlapsActiveLocked(appt.ProviderID, appt.StartTime, appt.EndTime, "") {
		return booking.ErrSlotTaken
	}
	s.appts[appt.ID] = appt
	s.emitLocked(evt)
	return nil
}

func (s *MemoryStore) UpdateStatus(_ context.Context, id string, from, to model.Status, evt outbox.Event) (model.Appointment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	appt, ok := s.appts[id]
	if !ok {
		return model.Appointment{}, booking.ErrNotFound
	}
	if appt.Status != from {
		return model.Appointment{}, fmt.Errorf("%w: status changed concurrently", booking.ErrIllegalTransition)
	}
	if !from.Active() && to.Active() {
		// Reviving a cancelled appointment re-claims its slot.
		if s.overlapsActiveLocked(appt.ProviderID, appt.StartTime, appt.EndTime, id) {
			return model.Appointment{}, booking.ErrSlotNoLongerAvailable
		}
	}
	appt.Status = to
	s.appts[id] = appt
	s.emitLocked(evt)
	return appt, nil
}

func (s *MemoryStore) overlapsActiveLocked(providerID string, start, end time.Time, excludeID string) bool {
	for _, other := range s.appts {
		if other.ID == excludeID || other.ProviderID != providerID || !other.Status.Active() {
			continue
		}
		if other.Overlaps(start, end) {
			return true
		}
	}
	return false
}

func (s *MemoryStore) emitLocked(evt outbox.Event) {
	for {
		select {
		case s.events <- evt:
			return
		default:
			select {
			case <-s.events:
			default:
			}
		}
	}
}
