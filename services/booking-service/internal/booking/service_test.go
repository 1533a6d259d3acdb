package booking_test

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/okulik/barberbook/services/booking-service/internal/booking"
	"github.com/okulik/barberbook/services/booking-service/internal/catalog"
	"github.com/okulik/barberbook/services/booking-service/internal/model"
	"github.com/okulik/barberbook/services/booking-service/internal/outbox"
	"github.com/okulik/barberbook/services/booking-service/internal/schedule"
	"github.com/okulik/barberbook/services/booking-service/internal/storage"
)

const testProviderID = "barber-1"

// Fixed clock: Tuesday morning. Bookings target the following Wednesday.
var testNow = time.Date(2026, 9, 1, 8, 0, 0, 0, time.UTC)

func wednesday(h, m int) time.Time {
	return time.Date(2026, 9, 2, h, m, 0, 0, time.UTC)
}

func newTestService(t *testing.T) (*booking.Service, *storage.MemoryStore) {
	t.Helper()

	cat, err := catalog.Parse("Haircut=30,Beard trim=30,Royal shave=45,Coloring=60")
	if err != nil {
		t.Fatalf("catalog parse failed: %v", err)
	}
	hours, err := schedule.ParseWeekly("mon=09:00-18:00,tue=09:00-18:00,wed=09:00-18:00,thu=09:00-18:00,fri=09:00-18:00,sat=09:00-18:00")
	if err != nil {
		t.Fatalf("hours parse failed: %v", err)
	}

	store := storage.NewMemoryStore()
	svc := booking.New(store, booking.Config{
		Catalog:    cat,
		Hours:      hours,
		SlotStep:   30 * time.Minute,
		ProviderID: testProviderID,
		Location:   time.UTC,
		Now:        func() time.Time { return testNow },
	}, slog.New(slog.NewTextHandler(testWriter{t}, nil)))
	return svc, store
}

type testWriter struct{ t *testing.T }

func (w testWriter) Write(p []byte) (int, error) {
	w.t.Log(string(p))
	return len(p), nil
}

func drainEvents(store *storage.MemoryStore) []outbox.Event {
	var events []outbox.Event
	for {
		select {
		case evt := <-store.Events():
			events = append(events, evt)
		default:
			return events
		}
	}
}

func mustBook(t *testing.T, svc *booking.Service, clientID string, services []string, start time.Time) model.Appointment {
	t.Helper()
	appt, err := svc.Book(context.Background(), clientID, services, start)
	if err != nil {
		t.Fatalf("Book failed: %v", err)
	}
	return appt
}

func slotStarts(slots []schedule.Interval) map[string]bool {
	starts := map[string]bool{}
	for _, s := range slots {
		starts[s.Start.Format("15:04")] = true
	}
	return starts
}

func TestBookRoundTrip(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	appt := mustBook(t, svc, "client-7", []string{"Haircut", "Beard trim"}, wednesday(14, 0))

	got, err := svc.Appointment(ctx, appt.ID)
	if err != nil {
		t.Fatalf("Appointment failed: %v", err)
	}
	if got.Status != model.StatusPending {
		t.Fatalf("expected pending status, got %s", got.Status)
	}
	if !got.StartTime.Equal(wednesday(14, 0)) || !got.EndTime.Equal(wednesday(15, 0)) {
		t.Fatalf("unexpected time range: %s to %s", got.StartTime, got.EndTime)
	}
	if len(got.Services) != 2 || got.Services[0] != "Haircut" || got.Services[1] != "Beard trim" {
		t.Fatalf("unexpected services: %v", got.Services)
	}
	if got.ClientID != "client-7" || got.ProviderID != testProviderID {
		t.Fatalf("unexpected identities: client=%s provider=%s", got.ClientID, got.ProviderID)
	}
}

func TestBookValidation(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	if _, err := svc.Book(ctx, "client-1", []string{"Massage"}, wednesday(10, 0)); !errors.Is(err, booking.ErrInvalidServices) {
		t.Fatalf("expected ErrInvalidServices for unknown service, got %v", err)
	}
	if _, err := svc.Book(ctx, "client-1", nil, wednesday(10, 0)); !errors.Is(err, booking.ErrInvalidServices) {
		t.Fatalf("expected ErrInvalidServices for empty selection, got %v", err)
	}
	if _, err := svc.Book(ctx, "client-1", []string{"Haircut"}, testNow.Add(-time.Hour)); !errors.Is(err, booking.ErrInvalidDate) {
		t.Fatalf("expected ErrInvalidDate for past start, got %v", err)
	}
	// 17:45 + 30m would run past the 18:00 close.
	if _, err := svc.Book(ctx, "client-1", []string{"Haircut"}, wednesday(17, 45)); !errors.Is(err, booking.ErrInvalidDate) {
		t.Fatalf("expected ErrInvalidDate past close, got %v", err)
	}
	// Sunday is closed.
	sunday := time.Date(2026, 9, 6, 10, 0, 0, 0, time.UTC)
	if _, err := svc.Book(ctx, "client-1", []string{"Haircut"}, sunday); !errors.Is(err, booking.ErrInvalidDate) {
		t.Fatalf("expected ErrInvalidDate on closed day, got %v", err)
	}
}

func TestBookAdjacentSlotsDoNotConflict(t *testing.T) {
	svc, _ := newTestService(t)

	mustBook(t, svc, "client-1", []string{"Coloring"}, wednesday(10, 0)) // 10:00-11:00
	// Ends exactly when the other begins: allowed.
	mustBook(t, svc, "client-2", []string{"Haircut"}, wednesday(9, 30))
	// Starts exactly when the other ends: allowed.
	mustBook(t, svc, "client-3", []string{"Haircut"}, wednesday(11, 0))

	if _, err := svc.Book(context.Background(), "client-4", []string{"Haircut"}, wednesday(10, 30)); !errors.Is(err, booking.ErrSlotTaken) {
		t.Fatalf("expected ErrSlotTaken for overlapping booking, got %v", err)
	}
}

func TestAvailableSlotsScenario(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	// One confirmed appointment 10:00-11:00.
	appt := mustBook(t, svc, "client-1", []string{"Coloring"}, wednesday(10, 0))
	if _, err := svc.Transition(ctx, appt.ID, model.StatusConfirmed, svc.ActorFor(testProviderID)); err != nil {
		t.Fatalf("confirm failed: %v", err)
	}

	slots, err := svc.AvailableSlots(ctx, wednesday(0, 0), []string{"Haircut"})
	if err != nil {
		t.Fatalf("AvailableSlots failed: %v", err)
	}
	starts := slotStarts(slots)

	if !starts["09:00"] || !starts["09:30"] {
		t.Fatal("expected 09:00 and 09:30 to be free (09:30 ends exactly at the booking start)")
	}
	if starts["10:00"] || starts["10:30"] {
		t.Fatal("expected 10:00 and 10:30 to be excluded by the confirmed booking")
	}
	if !starts["11:00"] {
		t.Fatal("expected availability to resume at 11:00")
	}
	if !starts["17:30"] {
		t.Fatal("expected 17:30 to be the last free 30-minute slot")
	}
	for i := 1; i < len(slots); i++ {
		if !slots[i].Start.After(slots[i-1].Start) {
			t.Fatal("expected slots in ascending chronological order")
		}
	}
}

func TestAvailableSlotsValidation(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	if _, err := svc.AvailableSlots(ctx, wednesday(0, 0), []string{"Massage"}); !errors.Is(err, booking.ErrInvalidServices) {
		t.Fatalf("expected ErrInvalidServices, got %v", err)
	}
	yesterday := testNow.AddDate(0, 0, -1)
	if _, err := svc.AvailableSlots(ctx, yesterday, []string{"Haircut"}); !errors.Is(err, booking.ErrInvalidDate) {
		t.Fatalf("expected ErrInvalidDate for past date, got %v", err)
	}

	// A closed day yields no slots, not an error.
	sunday := time.Date(2026, 9, 6, 0, 0, 0, 0, time.UTC)
	slots, err := svc.AvailableSlots(ctx, sunday, []string{"Haircut"})
	if err != nil {
		t.Fatalf("AvailableSlots on closed day failed: %v", err)
	}
	if len(slots) != 0 {
		t.Fatalf("expected no slots on a closed day, got %d", len(slots))
	}
}

func TestConcurrentBookingsSameSlot(t *testing.T) {
	svc, _ := newTestService(t)
	start := wednesday(15, 0)

	const attempts = 8
	var wg sync.WaitGroup
	errs := make([]error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc.Book(context.Background(), "client-"+string(rune('a'+i)), []string{"Royal shave"}, start)
		}(i)
	}
	wg.Wait()

	var won, lost int
	for _, err := range errs {
		switch {
		case err == nil:
			won++
		case errors.Is(err, booking.ErrSlotTaken):
			lost++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if won != 1 || lost != attempts-1 {
		t.Fatalf("expected exactly one winner, got %d winners and %d losers", won, lost)
	}
}

func TestLifecycleWithNotifications(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()
	provider := svc.ActorFor(testProviderID)

	appt := mustBook(t, svc, "client-9", []string{"Haircut"}, wednesday(14, 0))

	confirmed, err := svc.Transition(ctx, appt.ID, model.StatusConfirmed, provider)
	if err != nil {
		t.Fatalf("confirm failed: %v", err)
	}
	if confirmed.Status != model.StatusConfirmed {
		t.Fatalf("expected confirmed, got %s", confirmed.Status)
	}

	cancelled, err := svc.Transition(ctx, appt.ID, model.StatusCancelled, provider)
	if err != nil {
		t.Fatalf("cancel failed: %v", err)
	}
	if cancelled.Status != model.StatusCancelled {
		t.Fatalf("expected cancelled, got %s", cancelled.Status)
	}

	events := drainEvents(store)
	if len(events) != 3 {
		t.Fatalf("expected 3 events, got %d", len(events))
	}
	if events[0].EventType != booking.TopicCreated ||
		events[1].EventType != booking.TopicConfirmed ||
		events[2].EventType != booking.TopicCancelled {
		t.Fatalf("unexpected event sequence: %s, %s, %s", events[0].EventType, events[1].EventType, events[2].EventType)
	}

	var payload struct {
		AppointmentID  string `json:"appointment_id"`
		PreviousStatus string `json:"previous_status"`
		CancelledBy    string `json:"cancelled_by"`
	}
	if err := json.Unmarshal(events[2].Payload, &payload); err != nil {
		t.Fatalf("payload unmarshal failed: %v", err)
	}
	if payload.AppointmentID != appt.ID || payload.PreviousStatus != "confirmed" || payload.CancelledBy != "provider" {
		t.Fatalf("unexpected cancel payload: %+v", payload)
	}

	// The cancelled slot is bookable again.
	slots, err := svc.AvailableSlots(ctx, wednesday(0, 0), []string{"Haircut"})
	if err != nil {
		t.Fatalf("AvailableSlots failed: %v", err)
	}
	if !slotStarts(slots)["14:00"] {
		t.Fatal("expected 14:00 to reappear after cancellation")
	}
}

func TestClientAuthorization(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	appt := mustBook(t, svc, "client-1", []string{"Haircut"}, wednesday(9, 0))

	if _, err := svc.Transition(ctx, appt.ID, model.StatusConfirmed, svc.ActorFor("client-1")); !errors.Is(err, booking.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized for client confirm, got %v", err)
	}
	if _, err := svc.Transition(ctx, appt.ID, model.StatusCancelled, svc.ActorFor("client-2")); !errors.Is(err, booking.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized for foreign cancel, got %v", err)
	}

	got, err := svc.Appointment(ctx, appt.ID)
	if err != nil || got.Status != model.StatusPending {
		t.Fatalf("unauthorized attempts must not change state: %v %s", err, got.Status)
	}

	if _, err := svc.Transition(ctx, appt.ID, model.StatusCancelled, svc.ActorFor("client-1")); err != nil {
		t.Fatalf("own cancel failed: %v", err)
	}
}

func TestIllegalTransitions(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	provider := svc.ActorFor(testProviderID)

	appt := mustBook(t, svc, "client-1", []string{"Haircut"}, wednesday(9, 0))
	if _, err := svc.Transition(ctx, appt.ID, model.StatusCancelled, provider); err != nil {
		t.Fatalf("cancel failed: %v", err)
	}

	// Cancelling an already cancelled appointment is rejected, not a no-op.
	if _, err := svc.Transition(ctx, appt.ID, model.StatusCancelled, svc.ActorFor("client-1")); !errors.Is(err, booking.ErrIllegalTransition) {
		t.Fatalf("expected ErrIllegalTransition, got %v", err)
	}
	if _, err := svc.Transition(ctx, appt.ID, model.StatusCancelled, provider); !errors.Is(err, booking.ErrIllegalTransition) {
		t.Fatalf("expected ErrIllegalTransition for provider too, got %v", err)
	}

	if _, err := svc.Transition(ctx, "no-such-id", model.StatusCancelled, provider); !errors.Is(err, booking.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestReviveCancelledAppointment(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()
	provider := svc.ActorFor(testProviderID)

	appt := mustBook(t, svc, "client-1", []string{"Coloring"}, wednesday(10, 0))
	if _, err := svc.Transition(ctx, appt.ID, model.StatusCancelled, provider); err != nil {
		t.Fatalf("cancel failed: %v", err)
	}
	drainEvents(store)

	// Slot still free: restore as confirmed succeeds.
	restored, err := svc.Transition(ctx, appt.ID, model.StatusConfirmed, provider)
	if err != nil {
		t.Fatalf("restore failed: %v", err)
	}
	if restored.Status != model.StatusConfirmed {
		t.Fatalf("expected confirmed after restore, got %s", restored.Status)
	}
	events := drainEvents(store)
	if len(events) != 1 || events[0].EventType != booking.TopicConfirmed {
		t.Fatalf("expected a confirmed event for the restore, got %+v", events)
	}
}

func TestReviveFailsWhenSlotTaken(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	provider := svc.ActorFor(testProviderID)

	appt := mustBook(t, svc, "client-1", []string{"Coloring"}, wednesday(10, 0))
	if _, err := svc.Transition(ctx, appt.ID, model.StatusCancelled, provider); err != nil {
		t.Fatalf("cancel failed: %v", err)
	}

	// Another client takes part of the freed slot.
	mustBook(t, svc, "client-2", []string{"Haircut"}, wednesday(10, 30))

	if _, err := svc.Transition(ctx, appt.ID, model.StatusPending, provider); !errors.Is(err, booking.ErrSlotNoLongerAvailable) {
		t.Fatalf("expected ErrSlotNoLongerAvailable, got %v", err)
	}
	got, err := svc.Appointment(ctx, appt.ID)
	if err != nil || got.Status != model.StatusCancelled {
		t.Fatalf("failed revive must leave status cancelled: %v %s", err, got.Status)
	}
}

func TestAgenda(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	provider := svc.ActorFor(testProviderID)

	a := mustBook(t, svc, "client-1", []string{"Haircut"}, wednesday(9, 0))
	b := mustBook(t, svc, "client-2", []string{"Haircut"}, time.Date(2026, 9, 3, 9, 0, 0, 0, time.UTC))
	if _, err := svc.Transition(ctx, a.ID, model.StatusCancelled, provider); err != nil {
		t.Fatalf("cancel failed: %v", err)
	}

	day := wednesday(0, 0)
	onDay, err := svc.Agenda(ctx, &day)
	if err != nil {
		t.Fatalf("Agenda failed: %v", err)
	}
	if len(onDay) != 0 {
		t.Fatalf("cancelled appointments must not appear in the agenda, got %d", len(onDay))
	}

	upcoming, err := svc.Agenda(ctx, nil)
	if err != nil {
		t.Fatalf("Agenda failed: %v", err)
	}
	if len(upcoming) != 1 || upcoming[0].ID != b.ID {
		t.Fatalf("expected only the active appointment, got %+v", upcoming)
	}
}

func TestClientAppointmentsIncludeHistory(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	a := mustBook(t, svc, "client-1", []string{"Haircut"}, wednesday(9, 0))
	mustBook(t, svc, "client-1", []string{"Haircut"}, wednesday(12, 0))
	mustBook(t, svc, "client-2", []string{"Haircut"}, wednesday(13, 0))
	if _, err := svc.Transition(ctx, a.ID, model.StatusCancelled, svc.ActorFor("client-1")); err != nil {
		t.Fatalf("cancel failed: %v", err)
	}

	mine, err := svc.ClientAppointments(ctx, "client-1")
	if err != nil {
		t.Fatalf("ClientAppointments failed: %v", err)
	}
	if len(mine) != 2 {
		t.Fatalf("expected both own appointments (history included), got %d", len(mine))
	}
}
