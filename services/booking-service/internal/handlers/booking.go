package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/okulik/barberbook/libs/httpx"
	"github.com/okulik/barberbook/services/booking-service/internal/booking"
	"github.com/okulik/barberbook/services/booking-service/internal/model"
)

type BookingHandler struct {
	svc    *booking.Service
	logger *slog.Logger
}

func NewBookingHandler(svc *booking.Service, logger *slog.Logger) *BookingHandler {
	return &BookingHandler{svc: svc, logger: logger}
}

type serviceItem struct {
	Name            string `json:"name"`
	DurationMinutes int    `json:"duration_minutes"`
}

type slotItem struct {
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
}

type appointmentItem struct {
	ID        string   `json:"id"`
	ClientID  string   `json:"client_id"`
	Services  []string `json:"services"`
	StartTime string   `json:"start_time"`
	EndTime   string   `json:"end_time"`
	Status    string   `json:"status"`
	CreatedAt string   `json:"created_at"`
}

type createBookingRequest struct {
	ClientID  string   `json:"client_id"`
	Services  []string `json:"services"`
	StartTime string   `json:"start_time"`
}

type statusChangeRequest struct {
	AppointmentID string `json:"appointment_id"`
	Status        string `json:"status"`
	ActorID       string `json:"actor_id"`
}

type errorResponse struct {
	Error  string `json:"error"`
	Reason string `json:"reason"`
}

func (h *BookingHandler) Services(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var items []serviceItem
	for _, svc := range h.svc.Catalog() {
		items = append(items, serviceItem{
			Name:            svc.Name,
			DurationMinutes: int(svc.Duration.Minutes()),
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"services": items})
}

func (h *BookingHandler) Slots(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	day, err := h.svc.Day(strings.TrimSpace(r.URL.Query().Get("date")))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	services := splitList(r.URL.Query().Get("services"))

	slots, err := h.svc.AvailableSlots(r.Context(), day, services)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	items := make([]slotItem, 0, len(slots))
	for _, s := range slots {
		items = append(items, slotItem{
			StartTime: s.Start.Format(time.RFC3339),
			EndTime:   s.End.Format(time.RFC3339),
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"date":  day.Format("2006-01-02"),
		"slots": items,
	})
}

func (h *BookingHandler) Create(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req createBookingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	req.ClientID = strings.TrimSpace(req.ClientID)
	if req.ClientID == "" {
		http.Error(w, "client_id required", http.StatusBadRequest)
		return
	}
	start, err := time.Parse(time.RFC3339, strings.TrimSpace(req.StartTime))
	if err != nil {
		http.Error(w, "invalid start_time", http.StatusBadRequest)
		return
	}

	appt, err := h.svc.Book(r.Context(), req.ClientID, req.Services, start)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toAppointmentItem(appt))
}

func (h *BookingHandler) List(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	clientID := strings.TrimSpace(r.URL.Query().Get("client_id"))
	if clientID == "" {
		http.Error(w, "client_id required", http.StatusBadRequest)
		return
	}

	appts, err := h.svc.ClientAppointments(r.Context(), clientID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"appointments": toAppointmentItems(appts)})
}

func (h *BookingHandler) Agenda(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	actor := h.svc.ActorFor(actorID(r))
	if !actor.Provider {
		h.writeError(w, r, booking.ErrUnauthorized)
		return
	}

	var day *time.Time
	if raw := strings.TrimSpace(r.URL.Query().Get("date")); raw != "" {
		d, err := h.svc.Day(raw)
		if err != nil {
			h.writeError(w, r, err)
			return
		}
		day = &d
	}

	appts, err := h.svc.Agenda(r.Context(), day)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"appointments": toAppointmentItems(appts)})
}

func (h *BookingHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req statusChangeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	req.AppointmentID = strings.TrimSpace(req.AppointmentID)
	req.ActorID = strings.TrimSpace(req.ActorID)
	if req.AppointmentID == "" || req.ActorID == "" {
		http.Error(w, "appointment_id and actor_id required", http.StatusBadRequest)
		return
	}
	target, err := model.ParseStatus(strings.TrimSpace(req.Status))
	if err != nil {
		http.Error(w, "invalid status", http.StatusBadRequest)
		return
	}

	appt, err := h.svc.Transition(r.Context(), req.AppointmentID, target, h.svc.ActorFor(req.ActorID))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toAppointmentItem(appt))
}

func (h *BookingHandler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var status int
	var reason string
	switch {
	case errors.Is(err, booking.ErrInvalidServices):
		status, reason = http.StatusBadRequest, "invalid_services"
	case errors.Is(err, booking.ErrInvalidDate):
		status, reason = http.StatusBadRequest, "invalid_date"
	case errors.Is(err, booking.ErrUnauthorized):
		status, reason = http.StatusForbidden, "unauthorized"
	case errors.Is(err, booking.ErrNotFound):
		status, reason = http.StatusNotFound, "not_found"
	case errors.Is(err, booking.ErrSlotTaken):
		// The caller should re-query availability and pick again.
		status, reason = http.StatusConflict, "slot_taken"
	case errors.Is(err, booking.ErrSlotNoLongerAvailable):
		status, reason = http.StatusConflict, "slot_no_longer_available"
	case errors.Is(err, booking.ErrIllegalTransition):
		status, reason = http.StatusConflict, "illegal_transition"
	case errors.Is(err, booking.ErrStoreUnavailable):
		status, reason = http.StatusServiceUnavailable, "store_unavailable"
	default:
		h.logger.Error("request failed", "err", err, "request_id", httpx.RequestIDFromContext(r.Context()))
		status, reason = http.StatusInternalServerError, "internal"
	}
	writeJSON(w, status, errorResponse{Error: err.Error(), Reason: reason})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func toAppointmentItem(appt model.Appointment) appointmentItem {
	return appointmentItem{
		ID:        appt.ID,
		ClientID:  appt.ClientID,
		Services:  appt.Services,
		StartTime: appt.StartTime.Format(time.RFC3339),
		EndTime:   appt.EndTime.Format(time.RFC3339),
		Status:    string(appt.Status),
		CreatedAt: appt.CreatedAt.Format(time.RFC3339),
	}
}

func toAppointmentItems(appts []model.Appointment) []appointmentItem {
	items := make([]appointmentItem, 0, len(appts))
	for _, appt := range appts {
		items = append(items, toAppointmentItem(appt))
	}
	return items
}

func actorID(r *http.Request) string {
	if id := strings.TrimSpace(r.Header.Get("X-Actor-Id")); id != "" {
		return id
	}
	return strings.TrimSpace(r.URL.Query().Get("actor_id"))
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}
