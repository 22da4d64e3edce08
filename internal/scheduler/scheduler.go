package scheduler

import (
	"context"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/rdavydov/node-laundry/internal/domain"
)

// Messenger delivers a reminder of the given kind to a user's address.
// telegram.Router and the messenger package implement it.
type Messenger interface {
	Send(ctx context.Context, address string, kind domain.Kind) error
}

// Source is the part of the store the scheduler reads.
type Source interface {
	UserByID(ctx context.Context, id int64) (*domain.User, error)
	AllReservations(ctx context.Context) ([]domain.Reservation, error)
	GetOrCreatePreference(ctx context.Context, userID int64) (domain.NotificationPreference, error)
}

type key struct {
	reservationID int64
	kind          domain.Kind
}

// entry is one armed reminder. Identity matters: a fire only proceeds while
// the registry still holds the same *entry.
type entry struct {
	n     domain.ScheduledNotification
	timer Timer
}

// Scheduler keeps an in-memory registry of armed reminders keyed by
// (reservation id, kind). Timers do not survive a restart; Rehydrate
// rebuilds the registry from the store.
type Scheduler struct {
	src         Source
	messenger   Messenger
	log         *zap.Logger
	clock       Clock
	sendTimeout time.Duration

	mu      sync.Mutex
	pending map[key]*entry
	stopped bool
}

// New creates a Scheduler backed by the wall clock.
func New(src Source, messenger Messenger, log *zap.Logger, sendTimeout time.Duration) *Scheduler {
	if sendTimeout <= 0 {
		sendTimeout = 10 * time.Second
	}
	return &Scheduler{
		src:         src,
		messenger:   messenger,
		log:         log,
		clock:       realClock{},
		sendTimeout: sendTimeout,
		pending:     make(map[key]*entry),
	}
}

// ScheduleForReservation arms a timer for every reminder of r whose fire
// instant lies strictly after now. Reminders that are already due are
// skipped, not fired late. Re-scheduling a (reservation, kind) pair replaces
// the previous timer. It returns the number of timers armed.
func (s *Scheduler) ScheduleForReservation(r domain.Reservation, pref domain.NotificationPreference, now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return 0
	}

	armed := 0
	for _, n := range domain.FireInstants(r, pref) {
		k := key{reservationID: n.ReservationID, kind: n.Kind}
		if old, ok := s.pending[k]; ok {
			old.timer.Stop()
			delete(s.pending, k)
		}
		if !n.FireAt.After(now) {
			s.log.Debug("reminder already due, skipping",
				zap.Int64("reservationID", n.ReservationID),
				zap.String("kind", string(n.Kind)),
				zap.Time("fireAt", n.FireAt),
			)
			continue
		}
		e := &entry{n: n}
		e.timer = s.clock.AfterFunc(n.FireAt.Sub(now), func() { s.fire(k, e) })
		s.pending[k] = e
		armed++
	}
	return armed
}

// CancelForReservation drops every pending reminder of a reservation.
// A reminder whose delivery is already in flight is not recalled.
func (s *Scheduler) CancelForReservation(reservationID int64) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	cancelled := 0
	for _, kind := range domain.Kinds {
		k := key{reservationID: reservationID, kind: kind}
		if e, ok := s.pending[k]; ok {
			e.timer.Stop()
			delete(s.pending, k)
			cancelled++
		}
	}
	return cancelled
}

// Rehydrate re-arms reminders for every stored reservation. It is called
// once at process start; reminders whose instant elapsed while the process
// was down are lost.
func (s *Scheduler) Rehydrate(ctx context.Context) error {
	reservations, err := s.src.AllReservations(ctx)
	if err != nil {
		return err
	}

	now := s.clock.Now()
	prefs := make(map[int64]domain.NotificationPreference)
	armed := 0
	for _, r := range reservations {
		pref, ok := prefs[r.UserID]
		if !ok {
			pref, err = s.src.GetOrCreatePreference(ctx, r.UserID)
			if err != nil {
				s.log.Error("load preference failed", zap.Error(err), zap.Int64("userID", r.UserID))
				continue
			}
			prefs[r.UserID] = pref
		}
		armed += s.ScheduleForReservation(r, pref, now)
	}
	s.log.Info("scheduler rehydrated",
		zap.Int("reservations", len(reservations)),
		zap.Int("armed", armed),
	)
	return nil
}

// Pending returns a snapshot of armed reminders ordered by fire time.
func (s *Scheduler) Pending() []domain.ScheduledNotification {
	s.mu.Lock()
	out := make([]domain.ScheduledNotification, 0, len(s.pending))
	for _, e := range s.pending {
		out = append(out, e.n)
	}
	s.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].FireAt.Equal(out[j].FireAt) {
			return out[i].ReservationID < out[j].ReservationID
		}
		return out[i].FireAt.Before(out[j].FireAt)
	})
	return out
}

// PendingForUser returns the armed reminders that belong to one user.
func (s *Scheduler) PendingForUser(userID int64) []domain.ScheduledNotification {
	var out []domain.ScheduledNotification
	for _, n := range s.Pending() {
		if n.UserID == userID {
			out = append(out, n)
		}
	}
	return out
}

// Stop disarms every timer. Further scheduling is ignored.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for k, e := range s.pending {
		e.timer.Stop()
		delete(s.pending, k)
	}
	s.stopped = true
	s.log.Info("scheduler stopped")
}

// fire runs on the timer's goroutine.
func (s *Scheduler) fire(k key, e *entry) {
	s.mu.Lock()
	if cur, ok := s.pending[k]; !ok || cur != e {
		// cancelled or replaced after the timer elapsed
		s.mu.Unlock()
		return
	}
	delete(s.pending, k)
	s.mu.Unlock()

	s.deliver(e.n)
}

// deliver resolves the owner's current address and hands the reminder to
// the messenger. Failures are logged and never retried.
func (s *Scheduler) deliver(n domain.ScheduledNotification) {
	ctx, cancel := context.WithTimeout(context.Background(), s.sendTimeout)
	defer cancel()

	fields := []zap.Field{
		zap.Int64("reservationID", n.ReservationID),
		zap.Int64("userID", n.UserID),
		zap.String("kind", string(n.Kind)),
	}

	u, err := s.src.UserByID(ctx, n.UserID)
	if err != nil {
		s.log.Error("reminder owner lookup failed", append(fields, zap.Error(err))...)
		return
	}
	if u.Address() == "" {
		s.log.Error("reminder owner has no address", fields...)
		return
	}
	if err := s.messenger.Send(ctx, u.Address(), n.Kind); err != nil {
		s.log.Error("reminder delivery failed", append(fields, zap.Error(err))...)
		return
	}
	s.log.Info("reminder sent", fields...)
}
