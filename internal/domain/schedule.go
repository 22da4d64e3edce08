package domain

import "time"

// FireInstant returns when the reminder of the given kind should fire:
// the boundary minus the lead time.
func FireInstant(r Reservation, p NotificationPreference, kind Kind) time.Time {
	boundary := r.Start
	if kind == KindEnd {
		boundary = r.End
	}
	return boundary.Add(-p.Lead())
}

// FireInstants derives both reminders for a reservation. It returns nothing
// when the owner disabled notifications. Instants may lie in the past; the
// caller decides what to do with them.
func FireInstants(r Reservation, p NotificationPreference) []ScheduledNotification {
	if !p.Enabled {
		return nil
	}
	out := make([]ScheduledNotification, 0, len(Kinds))
	for _, k := range Kinds {
		out = append(out, ScheduledNotification{
			ReservationID: r.ID,
			UserID:        r.UserID,
			Kind:          k,
			FireAt:        FireInstant(r, p, k),
		})
	}
	return out
}
