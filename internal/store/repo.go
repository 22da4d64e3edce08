package store

import (
	"context"

	"github.com/rdavydov/node-laundry/internal/domain"
)

// AdmitFunc decides, inside the insert transaction, whether a new interval
// may be stored next to the owner's existing ones.
type AdmitFunc func(existing []domain.Interval) error

// Repo defines storage operations for users, reservations and notification settings.
type Repo interface {
	CreateUser(ctx context.Context, u *domain.User) error
	UserByKey(ctx context.Context, key string) (*domain.User, error)
	UserByID(ctx context.Context, id int64) (*domain.User, error)

	// InsertReservation reads the user's reservations, runs admit and inserts
	// the new row in one transaction.
	InsertReservation(ctx context.Context, userID int64, iv domain.Interval, admit AdmitFunc) (*domain.Reservation, error)
	ReservationByID(ctx context.Context, id int64) (*domain.Reservation, error)
	ReservationsByUser(ctx context.Context, userID int64) ([]domain.Reservation, error)
	AllReservations(ctx context.Context) ([]domain.Reservation, error)
	DeleteReservation(ctx context.Context, id int64) error

	GetOrCreatePreference(ctx context.Context, userID int64) (domain.NotificationPreference, error)
	UpsertPreference(ctx context.Context, p domain.NotificationPreference) error

	Close() error
}
