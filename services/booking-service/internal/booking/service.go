package booking

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/okulik/barberbook/services/booking-service/internal/catalog"
	"github.com/okulik/barberbook/services/booking-service/internal/model"
	"github.com/okulik/barberbook/services/booking-service/internal/schedule"
)

const DefaultProviderID = "default-provider"

type Config struct {
	Catalog    *catalog.Catalog
	Hours      schedule.WeeklyHours
	SlotStep   time.Duration
	ProviderID string
	Location   *time.Location

	// Now is overridable in tests; defaults to time.Now.
	Now func() time.Time
}

// Service is the appointment scheduling and lifecycle engine: it computes
// free slots, admits bookings against the provider timeline, and drives the
// appointment status state machine. It is the sole creator of appointments
// and the sole mutator of their status.
type Service struct {
	store  Store
	cfg    Config
	logger *slog.Logger
}

func New(store Store, cfg Config, logger *slog.Logger) *Service {
	if cfg.SlotStep <= 0 {
		cfg.SlotStep = 30 * time.Minute
	}
	if cfg.ProviderID == "" {
		cfg.ProviderID = DefaultProviderID
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Service{store: store, cfg: cfg, logger: logger}
}

// Catalog returns the bookable services in menu order.
func (s *Service) Catalog() []catalog.Service {
	return s.cfg.Catalog.Services()
}

// ActorFor resolves an external identity into an actor. The provider is a
// single fixed privileged identity from configuration.
func (s *Service) ActorFor(id string) model.Actor {
	return model.Actor{ID: id, Provider: id == s.cfg.ProviderID}
}

// Day parses a YYYY-MM-DD value in the engine's timezone.
func (s *Service) Day(raw string) (time.Time, error) {
	day, err := time.ParseInLocation("2006-01-02", raw, s.cfg.Location)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q (want YYYY-MM-DD)", ErrInvalidDate, raw)
	}
	return day, nil
}

// AvailableSlots returns the free start times on the given day for a booking
// covering the selected services. The result is computed from a snapshot of
// the timeline; admission re-checks overlap atomically (see Book).
func (s *Service) AvailableSlots(ctx context.Context, day time.Time, services []string) ([]schedule.Interval, error) {
	_, total, err := s.cfg.Catalog.Selection(services)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidServices, err)
	}

	day = day.In(s.cfg.Location)
	now := s.cfg.Now().In(s.cfg.Location)
	if beforeToday(day, now) {
		return nil, fmt.Errorf("%w: %s is in the past", ErrInvalidDate, day.Format("2006-01-02"))
	}

	_, closeAt, open := s.cfg.Hours.Window(day)
	if !open {
		return nil, nil
	}

	dayStart := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, s.cfg.Location)
	busy, err := s.listBusy(ctx, dayStart, dayStart.AddDate(0, 0, 1))
	if err != nil {
		return nil, err
	}

	candidates := schedule.Candidates(day, s.cfg.Hours[day.Weekday()], s.cfg.SlotStep)
	starts := schedule.Available(candidates, total, closeAt, busy, now)

	slots := make([]schedule.Interval, 0, len(starts))
	for _, start := range starts {
		slots = append(slots, schedule.Interval{Start: start, End: start.Add(total)})
	}
	return slots, nil
}

// Book validates and admits a new appointment. The overlap check and the
// write execute as one atomic unit in the store: of two concurrent requests
// for overlapping slots exactly one succeeds, the other gets ErrSlotTaken.
func (s *Service) Book(ctx context.Context, clientID string, services []string, start time.Time) (model.Appointment, error) {
	if clientID == "" {
		return model.Appointment{}, fmt.Errorf("%w: client id required", ErrUnauthorized)
	}

	names, total, err := s.cfg.Catalog.Selection(services)
	if err != nil {
		return model.Appointment{}, fmt.Errorf("%w: %v", ErrInvalidServices, err)
	}

	start = start.In(s.cfg.Location)
	now := s.cfg.Now().In(s.cfg.Location)
	if start.Before(now) {
		return model.Appointment{}, fmt.Errorf("%w: start %s is in the past", ErrInvalidDate, start.Format(time.RFC3339))
	}

	end := start.Add(total)
	openAt, closeAt, open := s.cfg.Hours.Window(start)
	if !open || start.Before(openAt) || end.After(closeAt) {
		return model.Appointment{}, fmt.Errorf("%w: booking must fit within business hours", ErrInvalidDate)
	}

	appt := model.Appointment{
		ID:         uuid.NewString(),
		ClientID:   clientID,
		ProviderID: s.cfg.ProviderID,
		Services:   names,
		StartTime:  start,
		EndTime:    end,
		Status:     model.StatusPending,
		CreatedAt:  now,
	}

	if err := s.store.Create(ctx, appt, createdEvent(appt)); err != nil {
		return model.Appointment{}, err
	}

	s.logger.Info("appointment created",
		"appointment_id", appt.ID,
		"client_id", appt.ClientID,
		"start_time", appt.StartTime.Format(time.RFC3339),
		"duration", total.String(),
	)
	return appt, nil
}

// Transition moves an appointment to the target status on behalf of an
// actor. The provider may drive any edge of the status graph; a client may
// only cancel their own appointment. A transition out of cancelled back onto
// the timeline re-checks overlap atomically and fails with
// ErrSlotNoLongerAvailable when the slot has been taken in the meantime.
func (s *Service) Transition(ctx context.Context, id string, target model.Status, actor model.Actor) (model.Appointment, error) {
	appt, err := s.store.Appointment(ctx, id)
	if err != nil {
		return model.Appointment{}, err
	}

	if !actor.Provider {
		if target != model.StatusCancelled {
			return model.Appointment{}, fmt.Errorf("%w: only the provider may set status %s", ErrUnauthorized, target)
		}
		if actor.ID != appt.ClientID {
			return model.Appointment{}, fmt.Errorf("%w: appointment belongs to another client", ErrUnauthorized)
		}
	}

	if !model.CanTransition(appt.Status, target) {
		return model.Appointment{}, fmt.Errorf("%w: %s to %s", ErrIllegalTransition, appt.Status, target)
	}

	evt := transitionEvent(appt, target, appt.Status, actor)
	updated, err := s.store.UpdateStatus(ctx, id, appt.Status, target, evt)
	if err != nil {
		return model.Appointment{}, err
	}

	s.logger.Info("appointment status changed",
		"appointment_id", id,
		"from", string(appt.Status),
		"to", string(target),
		"actor", actor.ID,
	)
	return updated, nil
}

// Appointment returns a single appointment by id.
func (s *Service) Appointment(ctx context.Context, id string) (model.Appointment, error) {
	return s.store.Appointment(ctx, id)
}

// ClientAppointments returns all appointments, history included, belonging
// to one client.
func (s *Service) ClientAppointments(ctx context.Context, clientID string) ([]model.Appointment, error) {
	return s.store.ListByClient(ctx, clientID)
}

// Agenda returns the provider's view of active appointments: a single day
// when one is given, otherwise everything from now on.
func (s *Service) Agenda(ctx context.Context, day *time.Time) ([]model.Appointment, error) {
	if day == nil {
		return s.store.ListActive(ctx, s.cfg.Now(), time.Time{})
	}
	d := day.In(s.cfg.Location)
	dayStart := time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, s.cfg.Location)
	return s.store.ListActive(ctx, dayStart, dayStart.AddDate(0, 0, 1))
}

func (s *Service) listBusy(ctx context.Context, from, to time.Time) ([]schedule.Interval, error) {
	appts, err := s.store.ListActive(ctx, from, to)
	if err != nil {
		return nil, err
	}
	busy := make([]schedule.Interval, 0, len(appts))
	for _, a := range appts {
		busy = append(busy, schedule.Interval{Start: a.StartTime, End: a.EndTime})
	}
	return busy, nil
}

func beforeToday(day, now time.Time) bool {
	y1, m1, d1 := day.Date()
	y2, m2, d2 := now.Date()
	if y1 != y2 {
		return y1 < y2
	}
	if m1 != m2 {
		return m1 < m2
	}
	return d1 < d2
}
