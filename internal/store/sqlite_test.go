package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/rdavydov/node-laundry/internal/domain"
)

func newTestRepo(t *testing.T) *SQLiteRepo {
	t.Helper()
	repo, err := OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "laundry.db"), zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })
	return repo
}

func mustUser(t *testing.T, repo *SQLiteRepo, key string) *domain.User {
	t.Helper()
	u := &domain.User{ExternalKey: key, DisplayName: "Ivan Petrov", Room: "412", Contact: "+70000000000"}
	require.NoError(t, repo.CreateUser(context.Background(), u))
	return u
}

var t0 = time.Date(2025, time.May, 5, 12, 0, 0, 0, time.UTC)

func slot(from, to int) domain.Interval {
	return domain.NewInterval(t0.Add(time.Duration(from)*time.Minute), t0.Add(time.Duration(to)*time.Minute))
}

func TestOpenSQLite_MigrationsAreIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "laundry.db")
	ctx := context.Background()

	repo, err := OpenSQLite(ctx, path, zap.NewNop())
	require.NoError(t, err)
	mustUser(t, repo, "100")
	require.NoError(t, repo.Close())

	repo, err = OpenSQLite(ctx, path, zap.NewNop())
	require.NoError(t, err)
	defer repo.Close()

	u, err := repo.UserByKey(ctx, "100")
	require.NoError(t, err)
	assert.Equal(t, "412", u.Room)
}

func TestCreateUser_DuplicateKey(t *testing.T) {
	repo := newTestRepo(t)
	mustUser(t, repo, "100")

	err := repo.CreateUser(context.Background(), &domain.User{ExternalKey: "100", DisplayName: "x", Room: "1", Contact: "2"})
	assert.True(t, errors.Is(err, ErrDuplicateKey), "got %v", err)
}

func TestUserLookup_NotFound(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	_, err := repo.UserByKey(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = repo.UserByID(ctx, 42)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestInsertReservation_RoundTripAndOrder(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	u := mustUser(t, repo, "100")

	later, err := repo.InsertReservation(ctx, u.ID, slot(60, 90), nil)
	require.NoError(t, err)
	earlier, err := repo.InsertReservation(ctx, u.ID, slot(10, 40), nil)
	require.NoError(t, err)
	assert.Greater(t, earlier.ID, later.ID, "ids are assigned monotonically")

	list, err := repo.ReservationsByUser(ctx, u.ID)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, earlier.ID, list[0].ID)
	assert.True(t, list[0].Start.Equal(slot(10, 40).Start))
	assert.True(t, list[1].End.Equal(slot(60, 90).End))

	got, err := repo.ReservationByID(ctx, later.ID)
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.UserID)
}

func TestInsertReservation_AdmitSeesExistingAndCanVeto(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	u := mustUser(t, repo, "100")
	_, err := repo.InsertReservation(ctx, u.ID, slot(10, 40), nil)
	require.NoError(t, err)

	veto := errors.New("veto")
	var seen []domain.Interval
	_, err = repo.InsertReservation(ctx, u.ID, slot(30, 50), func(existing []domain.Interval) error {
		seen = existing
		return veto
	})
	assert.ErrorIs(t, err, veto)
	require.Len(t, seen, 1)

	all, err := repo.AllReservations(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1, "vetoed insert must not be committed")
}

func TestInsertReservation_UnknownUserViolatesForeignKey(t *testing.T) {
	repo := newTestRepo(t)
	_, err := repo.InsertReservation(context.Background(), 999, slot(10, 40), nil)
	assert.ErrorIs(t, err, ErrForeignKey)
}

func TestDeleteReservation(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	u := mustUser(t, repo, "100")
	r, err := repo.InsertReservation(ctx, u.ID, slot(10, 40), nil)
	require.NoError(t, err)

	require.NoError(t, repo.DeleteReservation(ctx, r.ID))
	assert.ErrorIs(t, repo.DeleteReservation(ctx, r.ID), ErrNotFound)
	_, err = repo.ReservationByID(ctx, r.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDeleteReservation_IDsAreNeverReused(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	u := mustUser(t, repo, "100")

	first, err := repo.InsertReservation(ctx, u.ID, slot(10, 40), nil)
	require.NoError(t, err)
	require.NoError(t, repo.DeleteReservation(ctx, first.ID))

	next, err := repo.InsertReservation(ctx, u.ID, slot(100, 130), nil)
	require.NoError(t, err)
	assert.Greater(t, next.ID, first.ID)

	// The stale id still refers to nothing.
	assert.ErrorIs(t, repo.DeleteReservation(ctx, first.ID), ErrNotFound)
}

func TestGetOrCreatePreference_SingleRowWithDefaults(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	u := mustUser(t, repo, "100")

	first, err := repo.GetOrCreatePreference(ctx, u.ID)
	require.NoError(t, err)
	second, err := repo.GetOrCreatePreference(ctx, u.ID)
	require.NoError(t, err)

	assert.Equal(t, domain.DefaultPreference(u.ID), first)
	assert.Equal(t, first, second)

	var n int
	require.NoError(t, repo.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM notification_settings WHERE user_id = ?`, u.ID))
	assert.Equal(t, 1, n)
}

func TestUpsertPreference_UpdatesInPlace(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	u := mustUser(t, repo, "100")

	_, err := repo.GetOrCreatePreference(ctx, u.ID)
	require.NoError(t, err)
	want := domain.NotificationPreference{UserID: u.ID, Enabled: false, LeadMinutes: 5}
	require.NoError(t, repo.UpsertPreference(ctx, want))

	got, err := repo.GetOrCreatePreference(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}
