package booking

import (
	"encoding/json"
	"time"

	"github.com/okulik/barberbook/services/booking-service/internal/model"
	"github.com/okulik/barberbook/services/booking-service/internal/outbox"
)

// Kafka topics for appointment lifecycle events. The notification service
// consumes these and delivers chat messages; delivery is decoupled from
// booking correctness via the outbox.
const (
	TopicCreated   = "booking.appointment.created.v1"
	TopicConfirmed = "booking.appointment.confirmed.v1"
	TopicCancelled = "booking.appointment.cancelled.v1"
	TopicReverted  = "booking.appointment.reverted.v1"
)

const aggregateAppointment = "appointment"

func createdEvent(appt model.Appointment) outbox.Event {
	payload := appointmentPayload(appt)
	raw, _ := json.Marshal(payload)
	return outbox.NewEvent(aggregateAppointment, appt.ID, TopicCreated, raw)
}

func transitionEvent(appt model.Appointment, to, previous model.Status, actor model.Actor) outbox.Event {
	var topic string
	switch to {
	case model.StatusConfirmed:
		topic = TopicConfirmed
	case model.StatusCancelled:
		topic = TopicCancelled
	default:
		topic = TopicReverted
	}

	payload := appointmentPayload(appt)
	payload["status"] = string(to)
	payload["previous_status"] = string(previous)
	if to == model.StatusCancelled {
		by := "provider"
		if !actor.Provider {
			by = "client"
		}
		payload["cancelled_by"] = by
	}
	raw, _ := json.Marshal(payload)
	return outbox.NewEvent(aggregateAppointment, appt.ID, topic, raw)
}

func appointmentPayload(appt model.Appointment) map[string]any {
	return map[string]any{
		"appointment_id": appt.ID,
		"client_id":      appt.ClientID,
		"provider_id":    appt.ProviderID,
		"services":       appt.Services,
		"start_time":     appt.StartTime.UTC().Format(time.RFC3339),
		"end_time":       appt.EndTime.UTC().Format(time.RFC3339),
		"status":         string(appt.Status),
	}
}
