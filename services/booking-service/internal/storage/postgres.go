package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/okulik/barberbook/libs/db"
	"github.com/okulik/barberbook/services/booking-service/internal/booking"
	"github.com/okulik/barberbook/services/booking-service/internal/model"
	"github.com/okulik/barberbook/services/booking-service/internal/outbox"
)

// exclusionViolation is the SQLSTATE raised by the appointments_no_overlap
// EXCLUDE constraint (per provider, non-cancelled rows only). It fires on
// insert and on any status update that puts a row back onto the timeline,
// so the no-double-booking invariant holds without advisory locks.
const exclusionViolation = "23P01"

// PostgresStore implements booking.Store on a shared Postgres database.
// Appointment writes and their outbox events commit in one transaction.
type PostgresStore struct {
	pool   *db.Pool
	outbox *outbox.Repository
}

var _ booking.Store = (*PostgresStore)(nil)

func NewPostgresStore(pool *db.Pool, outboxRepo *outbox.Repository) *PostgresStore {
	return &PostgresStore{pool: pool, outbox: outboxRepo}
}

const appointmentColumns = `id, client_id, provider_id, services, start_time, end_time, status, created_at`

func (s *PostgresStore) Appointment(ctx context.Context, id string) (model.Appointment, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE id = $1
	`, id)
	appt, err := scanAppointment(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Appointment{}, booking.ErrNotFound
		}
		return model.Appointment{}, storeErr(err)
	}
	return appt, nil
}

func (s *PostgresStore) ListActive(ctx context.Context, from, to time.Time) ([]model.Appointment, error) {
	var upper *time.Time
	if !to.IsZero() {
		upper = &to
	}
	rows, err := s.pool.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE status <> 'cancelled'
			AND end_time > $1
			AND ($2::timestamptz IS NULL OR start_time < $2)
		ORDER BY start_time ASC
	`, from, upper)
	if err != nil {
		return nil, storeErr(err)
	}
	return collectAppointments(rows)
}

func (s *PostgresStore) ListByClient(ctx context.Context, clientID string) ([]model.Appointment, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE client_id = $1
		ORDER BY start_time DESC
	`, clientID)
	if err != nil {
		return nil, storeErr(err)
	}
	return collectAppointments(rows)
}

func (s *PostgresStore) Create(ctx context.Context, appt model.Appointment, evt outbox.Event) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return storeErr(err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	_, err = tx.Exec(ctx, `
		INSERT INTO appointments (id, client_id, provider_id, services, start_time, end_time, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, appt.ID, appt.ClientID, appt.ProviderID, appt.Services, appt.StartTime, appt.EndTime, string(appt.Status), appt.CreatedAt)
	if err != nil {
		if isExclusionViolation(err) {
			return booking.ErrSlotTaken
		}
		return storeErr(err)
	}

	if err := s.outbox.Insert(ctx, tx, evt); err != nil {
		return storeErr(err)
	}
	if err := tx.Commit(ctx); err != nil {
		if isExclusionViolation(err) {
			return booking.ErrSlotTaken
		}
		return storeErr(err)
	}
	return nil
}

func (s *PostgresStore) UpdateStatus(ctx context.Context, id string, from, to model.Status, evt outbox.Event) (model.Appointment, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return model.Appointment{}, storeErr(err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	row := tx.QueryRow(ctx, `
		UPDATE appointments
		SET status = $3
		WHERE id = $1 AND status = $2
		RETURNING `+appointmentColumns+`
	`, id, string(from), string(to))
	appt, err := scanAppointment(row)
	if err != nil {
		if isExclusionViolation(err) {
			return model.Appointment{}, booking.ErrSlotNoLongerAvailable
		}
		if errors.Is(err, pgx.ErrNoRows) {
			// Either the appointment is gone or its status changed under us.
			var current string
			lookupErr := s.pool.QueryRow(ctx, `SELECT status FROM appointments WHERE id = $1`, id).Scan(&current)
			if errors.Is(lookupErr, pgx.ErrNoRows) {
				return model.Appointment{}, booking.ErrNotFound
			}
			return model.Appointment{}, fmt.Errorf("%w: status changed concurrently", booking.ErrIllegalTransition)
		}
		return model.Appointment{}, storeErr(err)
	}

	if err := s.outbox.Insert(ctx, tx, evt); err != nil {
		return model.Appointment{}, storeErr(err)
	}
	if err := tx.Commit(ctx); err != nil {
		if isExclusionViolation(err) {
			return model.Appointment{}, booking.ErrSlotNoLongerAvailable
		}
		return model.Appointment{}, storeErr(err)
	}
	return appt, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAppointment(row rowScanner) (model.Appointment, error) {
	var appt model.Appointment
	var status string
	err := row.Scan(
		&appt.ID,
		&appt.ClientID,
		&appt.ProviderID,
		&appt.Services,
		&appt.StartTime,
		&appt.EndTime,
		&status,
		&appt.CreatedAt,
	)
	if err != nil {
		return model.Appointment{}, err
	}
	appt.Status = model.Status(status)
	return appt, nil
}

func collectAppointments(rows pgx.Rows) ([]model.Appointment, error) {
	defer rows.Close()
	var appts []model.Appointment
	for rows.Next() {
		appt, err := scanAppointment(rows)
		if err != nil {
			return nil, storeErr(err)
		}
		appts = append(appts, appt)
	}
	if rows.Err() != nil {
		return nil, storeErr(rows.Err())
	}
	return appts, nil
}

func isExclusionViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == exclusionViolation
}

func storeErr(err error) error {
	return fmt.Errorf("%w: %v", booking.ErrStoreUnavailable, err)
}
