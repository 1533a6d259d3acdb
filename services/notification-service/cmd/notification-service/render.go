package main

import (
	"fmt"
	"strings"
	"time"
)

type appointmentEvent struct {
	AppointmentID  string   `json:"appointment_id"`
	ClientID       string   `json:"client_id"`
	ProviderID     string   `json:"provider_id"`
	Services       []string `json:"services"`
	StartTime      string   `json:"start_time"`
	EndTime        string   `json:"end_time"`
	Status         string   `json:"status"`
	PreviousStatus string   `json:"previous_status"`
	CancelledBy    string   `json:"cancelled_by"`
}

const (
	audienceClient   = "client"
	audienceProvider = "provider"
)

// renderMessage turns a lifecycle event into a chat message and says who
// should receive it. The provider hears about new requests and client
// cancellations; the client hears about everything the provider decides.
func renderMessage(topic string, evt appointmentEvent, loc *time.Location) (audience string, text string, err error) {
	start, err := time.Parse(time.RFC3339, evt.StartTime)
	if err != nil {
		return "", "", fmt.Errorf("invalid start_time %q: %w", evt.StartTime, err)
	}
	when := start.In(loc).Format("02.01.2006 15:04")
	services := strings.Join(evt.Services, ", ")

	switch topic {
	case "booking.appointment.created.v1":
		return audienceProvider,
			fmt.Sprintf("New booking request: %s on %s (client %s).", services, when, evt.ClientID),
			nil
	case "booking.appointment.confirmed.v1":
		return audienceClient,
			fmt.Sprintf("Your appointment on %s is confirmed. Services: %s.", when, services),
			nil
	case "booking.appointment.cancelled.v1":
		if evt.CancelledBy == "client" {
			return audienceProvider,
				fmt.Sprintf("Client %s cancelled the appointment on %s (%s).", evt.ClientID, when, services),
				nil
		}
		return audienceClient,
			fmt.Sprintf("Your appointment on %s was cancelled.", when),
			nil
	case "booking.appointment.reverted.v1":
		return audienceClient,
			fmt.Sprintf("Your appointment on %s is back to pending confirmation.", when),
			nil
	default:
		return "", "", fmt.Errorf("unknown topic %q", topic)
	}
}
