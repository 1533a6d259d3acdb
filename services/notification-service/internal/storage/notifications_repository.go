package storage

import (
	"context"
	"encoding/json"

	"github.com/okulik/barberbook/libs/db"
)

// Notification is the delivery record kept for every message sent (or
// attempted) over an outbound channel.
type Notification struct {
	AppointmentID string
	Recipient     string
	Channel       string
	Payload       map[string]any
	Status        string
}

type Repository struct {
	pool *db.Pool
}

func NewRepository(pool *db.Pool) *Repository {
	return &Repository{pool: pool}
}

func (r *Repository) Insert(ctx context.Context, n Notification) error {
	payload, err := json.Marshal(n.Payload)
	if err != nil {
		return err
	}

	_, err = r.pool.Exec(ctx, `
		INSERT INTO notifications (appointment_id, recipient, channel, payload, status)
		VALUES ($1, $2, $3, $4, $5)
	`, n.AppointmentID, n.Recipient, n.Channel, payload, n.Status)
	return err
}
