package domain

import "time"

// Interval is a half-open time range [Start, End) with millisecond precision.
type Interval struct {
	Start time.Time
	End   time.Time
}

// NewInterval truncates both bounds to milliseconds, the precision the store keeps.
func NewInterval(start, end time.Time) Interval {
	return Interval{
		Start: time.UnixMilli(start.UnixMilli()).UTC(),
		End:   time.UnixMilli(end.UnixMilli()).UTC(),
	}
}

// Duration returns End - Start.
func (iv Interval) Duration() time.Duration {
	return iv.End.Sub(iv.Start)
}

// Overlaps reports whether two half-open intervals share any instant:
// s1 < e2 && s2 < e1. Touching intervals do not overlap.
func (iv Interval) Overlaps(o Interval) bool {
	return iv.Start.Before(o.End) && o.Start.Before(iv.End)
}

// Reservation is a booked slot owned by one user.
type Reservation struct {
	ID     int64
	UserID int64
	Interval
}

// Kind selects which reservation boundary a reminder refers to.
type Kind string

const (
	KindStart Kind = "start"
	KindEnd   Kind = "end"
)

// Kinds lists every reminder kind in firing order.
var Kinds = []Kind{KindStart, KindEnd}

// ScheduledNotification is a reminder derived from a reservation and a preference.
// It is never stored; it is recomputed whenever needed.
type ScheduledNotification struct {
	ReservationID int64
	UserID        int64
	Kind          Kind
	FireAt        time.Time
}
