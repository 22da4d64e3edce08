package reservation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/rdavydov/node-laundry/internal/domain"
	"github.com/rdavydov/node-laundry/internal/store"
)

// Scheduler is what the manager needs from the notification scheduler.
type Scheduler interface {
	ScheduleForReservation(r domain.Reservation, pref domain.NotificationPreference, now time.Time) int
	CancelForReservation(reservationID int64) int
}

// Manager is the transactional boundary for bookings and reminder settings.
// Both the bot and the web API go through it.
type Manager struct {
	repo  store.Repo
	sched Scheduler
	log   *zap.Logger
	now   func() time.Time
	locks *userLocks
}

// NewManager creates a Manager that reads the wall clock in UTC.
func NewManager(repo store.Repo, sched Scheduler, log *zap.Logger) *Manager {
	return &Manager{
		repo:  repo,
		sched: sched,
		log:   log,
		now:   func() time.Time { return time.Now().UTC() },
		locks: newUserLocks(),
	}
}

// persistence logs a store failure and wraps it as ErrPersistence.
func (m *Manager) persistence(op string, err error, fields ...zap.Field) error {
	m.log.Error(op+" failed", append(fields, zap.Error(err))...)
	return fmt.Errorf("%s: %w: %w", op, domain.ErrPersistence, err)
}

// RegisterUser stores a new resident under an external key.
func (m *Manager) RegisterUser(ctx context.Context, key string, reg domain.Registration) (*domain.User, error) {
	u := &domain.User{
		ExternalKey: key,
		DisplayName: reg.DisplayName,
		Room:        reg.Room,
		Contact:     reg.Contact,
		CreatedAt:   m.now(),
	}
	if err := m.repo.CreateUser(ctx, u); err != nil {
		if errors.Is(err, store.ErrDuplicateKey) {
			return nil, domain.Reject(domain.ReasonAlreadyRegistered)
		}
		return nil, m.persistence("register user", err, zap.String("userKey", key))
	}
	m.log.Info("user registered", zap.String("userKey", key), zap.Int64("userID", u.ID))
	return u, nil
}

// LookupUser resolves an external key; unknown keys yield UnknownUser.
func (m *Manager) LookupUser(ctx context.Context, key string) (*domain.User, error) {
	u, err := m.repo.UserByKey(ctx, key)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, domain.Reject(domain.ReasonUnknownUser)
		}
		return nil, m.persistence("lookup user", err, zap.String("userKey", key))
	}
	return u, nil
}

// CreateReservation books iv for the user if it passes the conflict check,
// then arms its reminders. A scheduling problem never undoes the booking.
func (m *Manager) CreateReservation(ctx context.Context, key string, iv domain.Interval) (*domain.Reservation, error) {
	u, err := m.LookupUser(ctx, key)
	if err != nil {
		return nil, err
	}
	iv = domain.NewInterval(iv.Start, iv.End)

	unlock := m.locks.Lock(u.ID)
	defer unlock()

	now := m.now()
	r, err := m.repo.InsertReservation(ctx, u.ID, iv, func(existing []domain.Interval) error {
		return domain.CheckAdmissible(iv, existing, now)
	})
	if err != nil {
		if _, ok := domain.ReasonOf(err); ok {
			return nil, err
		}
		if errors.Is(err, store.ErrForeignKey) {
			// the user row vanished after the lookup
			return nil, domain.Reject(domain.ReasonUnknownUser)
		}
		return nil, m.persistence("insert reservation", err, zap.Int64("userID", u.ID))
	}
	m.log.Info("reservation created",
		zap.Int64("reservationID", r.ID),
		zap.Int64("userID", u.ID),
		zap.Time("start", r.Start),
		zap.Time("end", r.End),
	)

	m.schedule(ctx, *r, now)
	return r, nil
}

// schedule arms reminders for r; failures are only logged since Rehydrate
// recovers them on the next start.
func (m *Manager) schedule(ctx context.Context, r domain.Reservation, now time.Time) {
	pref, err := m.repo.GetOrCreatePreference(ctx, r.UserID)
	if err != nil {
		m.log.Warn("reminders not scheduled", zap.Error(err), zap.Int64("reservationID", r.ID))
		return
	}
	m.sched.ScheduleForReservation(r, pref, now)
}

// ListReservations returns the user's reservations in chronological order.
func (m *Manager) ListReservations(ctx context.Context, key string) ([]domain.Reservation, error) {
	u, err := m.LookupUser(ctx, key)
	if err != nil {
		return nil, err
	}
	list, err := m.repo.ReservationsByUser(ctx, u.ID)
	if err != nil {
		return nil, m.persistence("list reservations", err, zap.Int64("userID", u.ID))
	}
	if list == nil {
		list = []domain.Reservation{}
	}
	return list, nil
}

// ListAllReservations returns every booking of the room in chronological
// order, for showing which slots are taken.
func (m *Manager) ListAllReservations(ctx context.Context) ([]domain.Reservation, error) {
	list, err := m.repo.AllReservations(ctx)
	if err != nil {
		return nil, m.persistence("list all reservations", err)
	}
	if list == nil {
		list = []domain.Reservation{}
	}
	return list, nil
}

// CancelReservation deletes one of the user's reservations by global id.
// Reminders are disarmed before the row is removed.
func (m *Manager) CancelReservation(ctx context.Context, key string, id int64) (*domain.Reservation, error) {
	u, err := m.LookupUser(ctx, key)
	if err != nil {
		return nil, err
	}

	unlock := m.locks.Lock(u.ID)
	defer unlock()

	r, err := m.repo.ReservationByID(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, domain.Reject(domain.ReasonNotFound)
		}
		return nil, m.persistence("load reservation", err, zap.Int64("reservationID", id))
	}
	if r.UserID != u.ID {
		return nil, domain.Reject(domain.ReasonNotFound)
	}

	m.sched.CancelForReservation(r.ID)
	if err := m.repo.DeleteReservation(ctx, r.ID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, domain.Reject(domain.ReasonNotFound)
		}
		// The row survived; put its reminders back.
		m.schedule(ctx, *r, m.now())
		return nil, m.persistence("delete reservation", err, zap.Int64("reservationID", r.ID))
	}
	m.log.Info("reservation cancelled", zap.Int64("reservationID", r.ID), zap.Int64("userID", u.ID))
	return r, nil
}

// CancelReservationByOrdinal cancels the n-th (1-based) entry of the user's
// chronological list.
func (m *Manager) CancelReservationByOrdinal(ctx context.Context, key string, ordinal int) (*domain.Reservation, error) {
	list, err := m.ListReservations(ctx, key)
	if err != nil {
		return nil, err
	}
	if ordinal < 1 || ordinal > len(list) {
		return nil, domain.Reject(domain.ReasonNotFound)
	}
	return m.CancelReservation(ctx, key, list[ordinal-1].ID)
}

// GetOrCreatePreferences returns the user's reminder settings, storing the
// defaults on first access.
func (m *Manager) GetOrCreatePreferences(ctx context.Context, key string) (domain.NotificationPreference, error) {
	u, err := m.LookupUser(ctx, key)
	if err != nil {
		return domain.NotificationPreference{}, err
	}

	unlock := m.locks.Lock(u.ID)
	defer unlock()

	p, err := m.repo.GetOrCreatePreference(ctx, u.ID)
	if err != nil {
		return domain.NotificationPreference{}, m.persistence("load preferences", err, zap.Int64("userID", u.ID))
	}
	return p, nil
}

// UpdatePreferences stores new reminder settings and re-derives the timers
// of all the user's reservations.
func (m *Manager) UpdatePreferences(ctx context.Context, key string, enabled bool, leadMinutes int) (domain.NotificationPreference, error) {
	if !domain.ValidLeadMinutes(leadMinutes) {
		return domain.NotificationPreference{}, domain.Reject(domain.ReasonInvalidLeadMinutes)
	}
	u, err := m.LookupUser(ctx, key)
	if err != nil {
		return domain.NotificationPreference{}, err
	}

	unlock := m.locks.Lock(u.ID)
	defer unlock()

	p := domain.NotificationPreference{UserID: u.ID, Enabled: enabled, LeadMinutes: leadMinutes}
	if err := m.repo.UpsertPreference(ctx, p); err != nil {
		return domain.NotificationPreference{}, m.persistence("update preferences", err, zap.Int64("userID", u.ID))
	}

	list, err := m.repo.ReservationsByUser(ctx, u.ID)
	if err != nil {
		m.log.Warn("reminders not rescheduled", zap.Error(err), zap.Int64("userID", u.ID))
		return p, nil
	}
	now := m.now()
	armed := 0
	for _, r := range list {
		m.sched.CancelForReservation(r.ID)
		armed += m.sched.ScheduleForReservation(r, p, now)
	}
	m.log.Info("preferences updated",
		zap.Int64("userID", u.ID),
		zap.Bool("enabled", enabled),
		zap.Int("leadMinutes", leadMinutes),
		zap.Int("armed", armed),
	)
	return p, nil
}

// Outcome reduces an operation result to a success flag and a message key
// that each surface renders on its own.
func Outcome(err error, success domain.MessageKey) (bool, domain.MessageKey) {
	if err == nil {
		return true, success
	}
	return false, domain.KeyFor(err)
}
