package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/rdavydov/node-laundry/internal/domain"
)

// Service is implemented by reservation.Manager.
type Service interface {
	RegisterUser(ctx context.Context, key string, reg domain.Registration) (*domain.User, error)
	LookupUser(ctx context.Context, key string) (*domain.User, error)
	CreateReservation(ctx context.Context, key string, iv domain.Interval) (*domain.Reservation, error)
	ListReservations(ctx context.Context, key string) ([]domain.Reservation, error)
	ListAllReservations(ctx context.Context) ([]domain.Reservation, error)
	CancelReservation(ctx context.Context, key string, id int64) (*domain.Reservation, error)
	GetOrCreatePreferences(ctx context.Context, key string) (domain.NotificationPreference, error)
	UpdatePreferences(ctx context.Context, key string, enabled bool, leadMinutes int) (domain.NotificationPreference, error)
}

// PendingLister reports armed reminders. Implemented by scheduler.Scheduler.
type PendingLister interface {
	PendingForUser(userID int64) []domain.ScheduledNotification
}

type RegisterRequest struct {
	DisplayName string `json:"displayName" validate:"required,max=128"`
	Room        string `json:"room" validate:"required,max=32"`
	Contact     string `json:"contact" validate:"required,max=32"`
}

type ReservationRequest struct {
	Start time.Time `json:"start" validate:"required"`
	End   time.Time `json:"end" validate:"required"`
}

type SettingsRequest struct {
	Enabled     *bool `json:"enabled" validate:"required"`
	LeadMinutes *int  `json:"leadMinutes" validate:"required"`
}

type UserResponse struct {
	ID          int64     `json:"id"`
	DisplayName string    `json:"displayName"`
	Room        string    `json:"room"`
	Contact     string    `json:"contact"`
	CreatedAt   time.Time `json:"createdAt"`
}

type ReservationResponse struct {
	ID    int64     `json:"id"`
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// ScheduleEntry is one booked slot of the room. Owners are not disclosed.
type ScheduleEntry struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
	Mine  bool      `json:"mine"`
}

type SettingsResponse struct {
	Enabled     bool `json:"enabled"`
	LeadMinutes int  `json:"leadMinutes"`
}

type NotificationResponse struct {
	ReservationID int64       `json:"reservationId"`
	Kind          domain.Kind `json:"kind"`
	FireAt        time.Time   `json:"fireAt"`
}

func toReservationResponse(r domain.Reservation) ReservationResponse {
	return ReservationResponse{ID: r.ID, Start: r.Start, End: r.End}
}

func toSettingsResponse(p domain.NotificationPreference) SettingsResponse {
	return SettingsResponse{Enabled: p.Enabled, LeadMinutes: p.LeadMinutes}
}

// Handler serves the reservation API for the authenticated caller.
type Handler struct {
	svc     Service
	pending PendingLister
}

func NewHandler(svc Service, pending PendingLister) *Handler {
	return &Handler{svc: svc, pending: pending}
}

func Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, Envelope{Success: true, Message: "ok"})
}

func callerKey(w http.ResponseWriter, r *http.Request) (string, bool) {
	claims, ok := ClaimsFromContext(r.Context())
	if !ok {
		writeFail(w, http.StatusUnauthorized, "unauthorized")
		return "", false
	}
	return claims.Subject, true
}

// decode reads a JSON body into v and validates it. It writes the error
// response itself and reports whether the handler should go on.
func decode(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeFail(w, http.StatusBadRequest, "invalidBody")
		return false
	}
	if err := validateStruct(v); err != nil {
		writeJSON(w, http.StatusUnprocessableEntity, Envelope{Message: "validationError", Error: err.Error()})
		return false
	}
	return true
}

func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	key, ok := callerKey(w, r)
	if !ok {
		return
	}
	var req RegisterRequest
	if !decode(w, r, &req) {
		return
	}
	u, err := h.svc.RegisterUser(r.Context(), key, domain.Registration{
		DisplayName: req.DisplayName,
		Room:        req.Room,
		Contact:     req.Contact,
	})
	if err != nil {
		writeOutcome(w, err)
		return
	}
	writeOK(w, http.StatusCreated, domain.MsgRegisterSuccess, UserResponse{
		ID:          u.ID,
		DisplayName: u.DisplayName,
		Room:        u.Room,
		Contact:     u.Contact,
		CreatedAt:   u.CreatedAt,
	})
}

func (h *Handler) ListReservations(w http.ResponseWriter, r *http.Request) {
	key, ok := callerKey(w, r)
	if !ok {
		return
	}
	list, err := h.svc.ListReservations(r.Context(), key)
	if err != nil {
		writeOutcome(w, err)
		return
	}
	out := make([]ReservationResponse, 0, len(list))
	for _, res := range list {
		out = append(out, toReservationResponse(res))
	}
	writeJSON(w, http.StatusOK, Envelope{Success: true, Data: out})
}

// Schedule lists every booking in the room so a caller can see which
// slots are taken.
func (h *Handler) Schedule(w http.ResponseWriter, r *http.Request) {
	key, ok := callerKey(w, r)
	if !ok {
		return
	}
	u, err := h.svc.LookupUser(r.Context(), key)
	if err != nil {
		writeOutcome(w, err)
		return
	}
	all, err := h.svc.ListAllReservations(r.Context())
	if err != nil {
		writeOutcome(w, err)
		return
	}
	out := make([]ScheduleEntry, 0, len(all))
	for _, res := range all {
		out = append(out, ScheduleEntry{Start: res.Start, End: res.End, Mine: res.UserID == u.ID})
	}
	writeJSON(w, http.StatusOK, Envelope{Success: true, Data: out})
}

func (h *Handler) CreateReservation(w http.ResponseWriter, r *http.Request) {
	key, ok := callerKey(w, r)
	if !ok {
		return
	}
	var req ReservationRequest
	if !decode(w, r, &req) {
		return
	}
	res, err := h.svc.CreateReservation(r.Context(), key, domain.NewInterval(req.Start, req.End))
	if err != nil {
		writeOutcome(w, err)
		return
	}
	writeOK(w, http.StatusCreated, domain.MsgReserveSuccess, toReservationResponse(*res))
}

func (h *Handler) CancelReservation(w http.ResponseWriter, r *http.Request) {
	key, ok := callerKey(w, r)
	if !ok {
		return
	}
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		writeFail(w, http.StatusBadRequest, "invalidId")
		return
	}
	res, err := h.svc.CancelReservation(r.Context(), key, id)
	if err != nil {
		writeOutcome(w, err)
		return
	}
	writeOK(w, http.StatusOK, domain.MsgCancelSuccess, toReservationResponse(*res))
}

func (h *Handler) GetSettings(w http.ResponseWriter, r *http.Request) {
	key, ok := callerKey(w, r)
	if !ok {
		return
	}
	p, err := h.svc.GetOrCreatePreferences(r.Context(), key)
	if err != nil {
		writeOutcome(w, err)
		return
	}
	writeJSON(w, http.StatusOK, Envelope{Success: true, Data: toSettingsResponse(p)})
}

func (h *Handler) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	key, ok := callerKey(w, r)
	if !ok {
		return
	}
	var req SettingsRequest
	if !decode(w, r, &req) {
		return
	}
	p, err := h.svc.UpdatePreferences(r.Context(), key, *req.Enabled, *req.LeadMinutes)
	if err != nil {
		writeOutcome(w, err)
		return
	}
	writeOK(w, http.StatusOK, domain.MsgSettingsSuccess, toSettingsResponse(p))
}

func (h *Handler) ListNotifications(w http.ResponseWriter, r *http.Request) {
	key, ok := callerKey(w, r)
	if !ok {
		return
	}
	u, err := h.svc.LookupUser(r.Context(), key)
	if err != nil {
		writeOutcome(w, err)
		return
	}
	pending := h.pending.PendingForUser(u.ID)
	out := make([]NotificationResponse, 0, len(pending))
	for _, n := range pending {
		out = append(out, NotificationResponse{ReservationID: n.ReservationID, Kind: n.Kind, FireAt: n.FireAt})
	}
	writeJSON(w, http.StatusOK, Envelope{Success: true, Data: out})
}
