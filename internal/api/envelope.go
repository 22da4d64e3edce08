package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rdavydov/node-laundry/internal/domain"
)

// Envelope wraps every response. Message carries a message key on outcomes
// and a short code on transport errors.
type Envelope struct {
	Success bool        `json:"success"`
	Message string      `json:"message,omitempty"`
	Error   string      `json:"error,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeOK(w http.ResponseWriter, status int, key domain.MessageKey, data interface{}) {
	writeJSON(w, status, Envelope{Success: true, Message: string(key), Data: data})
}

func writeFail(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, Envelope{Success: false, Message: msg})
}

// writeOutcome renders a failed operation with its message key and the
// status matching its error category.
func writeOutcome(w http.ResponseWriter, err error) {
	writeJSON(w, statusFor(err), Envelope{Success: false, Message: string(domain.KeyFor(err))})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrValidation):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}
