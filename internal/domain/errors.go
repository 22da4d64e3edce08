package domain

import (
	"errors"
	"fmt"
)

// Error categories. Every rejection unwraps to exactly one of them so
// surfaces can map results without inspecting reasons.
var (
	ErrValidation  = errors.New("validation failed")
	ErrConflict    = errors.New("conflict")
	ErrNotFound    = errors.New("not found")
	ErrPersistence = errors.New("persistence failure")
)

// Reason names why an operation was rejected.
type Reason string

const (
	ReasonPastStart          Reason = "PastStart"
	ReasonInvertedInterval   Reason = "InvertedInterval"
	ReasonTooLong            Reason = "TooLong"
	ReasonOverlap            Reason = "Overlap"
	ReasonUnknownUser        Reason = "UnknownUser"
	ReasonNotFound           Reason = "NotFound"
	ReasonInvalidLeadMinutes Reason = "InvalidLeadMinutes"
	ReasonAlreadyRegistered  Reason = "AlreadyRegistered"
)

// RejectError is returned when a request is refused for a domain reason.
type RejectError struct {
	Reason Reason
}

// Reject builds a *RejectError for r.
func Reject(r Reason) *RejectError {
	return &RejectError{Reason: r}
}

func (e *RejectError) Error() string {
	return fmt.Sprintf("rejected: %s", e.Reason)
}

// Unwrap exposes the category so errors.Is(err, ErrConflict) works.
func (e *RejectError) Unwrap() error {
	switch e.Reason {
	case ReasonOverlap, ReasonAlreadyRegistered:
		return ErrConflict
	case ReasonUnknownUser, ReasonNotFound:
		return ErrNotFound
	default:
		return ErrValidation
	}
}

// ReasonOf extracts the rejection reason from err, if any.
func ReasonOf(err error) (Reason, bool) {
	var re *RejectError
	if errors.As(err, &re) {
		return re.Reason, true
	}
	return "", false
}

// MessageKey is a user-facing message identifier; each surface renders it.
type MessageKey string

const (
	MsgReserveSuccess             MessageKey = "reserveSuccess"
	MsgReservePastStart           MessageKey = "reservePastStart"
	MsgReserveInvertedInterval    MessageKey = "reserveInvertedInterval"
	MsgReserveTooLong             MessageKey = "reserveTooLong"
	MsgReserveOverlap             MessageKey = "reserveOverlap"
	MsgRegistrationPrompt         MessageKey = "registrationPrompt"
	MsgRegisterSuccess            MessageKey = "registerSuccess"
	MsgRegisterDuplicate          MessageKey = "registerDuplicate"
	MsgCancelSuccess              MessageKey = "cancelSuccess"
	MsgCancelNotFound             MessageKey = "cancelNotFound"
	MsgSettingsSuccess            MessageKey = "settingsSuccess"
	MsgSettingsInvalidLeadMinutes MessageKey = "settingsInvalidLeadMinutes"
	MsgGenericError               MessageKey = "genericError"
)

var reasonKeys = map[Reason]MessageKey{
	ReasonPastStart:          MsgReservePastStart,
	ReasonInvertedInterval:   MsgReserveInvertedInterval,
	ReasonTooLong:            MsgReserveTooLong,
	ReasonOverlap:            MsgReserveOverlap,
	ReasonUnknownUser:        MsgRegistrationPrompt,
	ReasonNotFound:           MsgCancelNotFound,
	ReasonInvalidLeadMinutes: MsgSettingsInvalidLeadMinutes,
	ReasonAlreadyRegistered:  MsgRegisterDuplicate,
}

// KeyFor maps a failed result to its message key. Anything that is not a
// domain rejection is reported as a generic error.
func KeyFor(err error) MessageKey {
	if r, ok := ReasonOf(err); ok {
		if k, ok := reasonKeys[r]; ok {
			return k
		}
	}
	return MsgGenericError
}
