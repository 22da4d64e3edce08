package store

import (
	"time"

	"github.com/rdavydov/node-laundry/internal/domain"
)

type userRow struct {
	ID          int64  `db:"id"`
	ExternalKey string `db:"external_key"`
	DisplayName string `db:"display_name"`
	Room        string `db:"room"`
	Contact     string `db:"contact"`
	CreatedAt   int64  `db:"created_at"` // unix seconds
}

func (r userRow) toDomain() *domain.User {
	return &domain.User{
		ID:          r.ID,
		ExternalKey: r.ExternalKey,
		DisplayName: r.DisplayName,
		Room:        r.Room,
		Contact:     r.Contact,
		CreatedAt:   time.Unix(r.CreatedAt, 0).UTC(),
	}
}

type reservationRow struct {
	ID        int64 `db:"id"`
	UserID    int64 `db:"user_id"`
	StartTime int64 `db:"start_time"` // unix ms
	EndTime   int64 `db:"end_time"`   // unix ms
}

func (r reservationRow) toDomain() domain.Reservation {
	return domain.Reservation{
		ID:     r.ID,
		UserID: r.UserID,
		Interval: domain.Interval{
			Start: time.UnixMilli(r.StartTime).UTC(),
			End:   time.UnixMilli(r.EndTime).UTC(),
		},
	}
}

func toReservations(rows []reservationRow) []domain.Reservation {
	out := make([]domain.Reservation, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toDomain())
	}
	return out
}

type settingsRow struct {
	UserID      int64 `db:"user_id"`
	Enabled     int   `db:"enabled"`
	LeadMinutes int   `db:"lead_minutes"`
}

func (r settingsRow) toDomain() domain.NotificationPreference {
	return domain.NotificationPreference{
		UserID:      r.UserID,
		Enabled:     r.Enabled != 0,
		LeadMinutes: r.LeadMinutes,
	}
}

// boolToInt converts a boolean to 1/0 for SQLite.
func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
