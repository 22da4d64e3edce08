package domain

import "time"

// MaxDuration caps a single reservation.
const MaxDuration = time.Hour

// CheckAdmissible decides whether candidate may be booked given the owner's
// existing reservations. It returns nil or a *RejectError. Overlap is checked
// against every existing interval, past ones included.
func CheckAdmissible(candidate Interval, existing []Interval, now time.Time) error {
	if !candidate.Start.After(now) {
		return Reject(ReasonPastStart)
	}
	if !candidate.End.After(candidate.Start) {
		return Reject(ReasonInvertedInterval)
	}
	if candidate.Duration() > MaxDuration {
		return Reject(ReasonTooLong)
	}
	for _, iv := range existing {
		if candidate.Overlaps(iv) {
			return Reject(ReasonOverlap)
		}
	}
	return nil
}

// IsAdmissible is the boolean form of CheckAdmissible.
func IsAdmissible(candidate Interval, existing []Interval, now time.Time) bool {
	return CheckAdmissible(candidate, existing, now) == nil
}
