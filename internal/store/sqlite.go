package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	// Registers the "sqlite" driver (pure Go).
	_ "modernc.org/sqlite"

	"github.com/rdavydov/node-laundry/internal/domain"
)

// SQLiteRepo implements Repo using an embedded SQLite database.
type SQLiteRepo struct{ db *sqlx.DB }

// OpenSQLite opens (or creates) the SQLite database at the given path,
// applies recommended PRAGMAs, runs migrations, and returns a repository.
func OpenSQLite(ctx context.Context, path string, log *zap.Logger) (*SQLiteRepo, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sqlx.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	// SQLite is a single-writer engine; one connection also serialises
	// every transaction.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := applyPragmas(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply pragmas: %w", err)
	}
	if err := RunMigrations(db.DB, log); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrations: %w", err)
	}

	return &SQLiteRepo{db: db}, nil
}

// applyPragmas configures the SQLite connection for durability and concurrency.
func applyPragmas(ctx context.Context, db *sqlx.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA foreign_keys=ON;",
	}
	for _, p := range pragmas {
		if _, err := db.ExecContext(ctx, p); err != nil {
			return err
		}
	}
	return nil
}

// Close releases the underlying database resources.
func (r *SQLiteRepo) Close() error {
	return r.db.Close()
}

// CreateUser inserts a new user and sets u.ID. A taken external key yields ErrDuplicateKey.
func (r *SQLiteRepo) CreateUser(ctx context.Context, u *domain.User) error {
	if u == nil {
		return errors.New("nil user")
	}
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now().UTC()
	}
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO users (external_key, display_name, room, contact, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		u.ExternalKey, u.DisplayName, u.Room, u.Contact, u.CreatedAt.UTC().Unix(),
	)
	if err != nil {
		return classify(err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	u.ID = id
	return nil
}

const userColumns = `id, external_key, display_name, room, contact, created_at`

// UserByKey returns the user registered under an external key.
func (r *SQLiteRepo) UserByKey(ctx context.Context, key string) (*domain.User, error) {
	var row userRow
	if err := r.db.GetContext(ctx, &row, `SELECT `+userColumns+` FROM users WHERE external_key = ?`, key); err != nil {
		return nil, classify(err)
	}
	return row.toDomain(), nil
}

// UserByID returns the user with the given internal id.
func (r *SQLiteRepo) UserByID(ctx context.Context, id int64) (*domain.User, error) {
	var row userRow
	if err := r.db.GetContext(ctx, &row, `SELECT `+userColumns+` FROM users WHERE id = ?`, id); err != nil {
		return nil, classify(err)
	}
	return row.toDomain(), nil
}

const reservationColumns = `id, user_id, start_time, end_time`

// InsertReservation runs admit against the user's stored intervals and
// inserts iv in the same transaction.
func (r *SQLiteRepo) InsertReservation(ctx context.Context, userID int64, iv domain.Interval, admit AdmitFunc) (*domain.Reservation, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	var rows []reservationRow
	if err := tx.SelectContext(ctx, &rows, `
		SELECT `+reservationColumns+`
		FROM reservations
		WHERE user_id = ?
		ORDER BY start_time ASC, id ASC`,
		userID,
	); err != nil {
		return nil, err
	}

	if admit != nil {
		existing := make([]domain.Interval, 0, len(rows))
		for _, row := range rows {
			existing = append(existing, row.toDomain().Interval)
		}
		if err := admit(existing); err != nil {
			return nil, err
		}
	}

	res, err := tx.ExecContext(ctx, `
		INSERT INTO reservations (user_id, start_time, end_time)
		VALUES (?, ?, ?)`,
		userID, iv.Start.UnixMilli(), iv.End.UnixMilli(),
	)
	if err != nil {
		return nil, classify(err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return &domain.Reservation{ID: id, UserID: userID, Interval: domain.NewInterval(iv.Start, iv.End)}, nil
}

// ReservationByID returns one reservation or ErrNotFound.
func (r *SQLiteRepo) ReservationByID(ctx context.Context, id int64) (*domain.Reservation, error) {
	var row reservationRow
	if err := r.db.GetContext(ctx, &row, `SELECT `+reservationColumns+` FROM reservations WHERE id = ?`, id); err != nil {
		return nil, classify(err)
	}
	res := row.toDomain()
	return &res, nil
}

// ReservationsByUser returns the user's reservations in chronological order.
func (r *SQLiteRepo) ReservationsByUser(ctx context.Context, userID int64) ([]domain.Reservation, error) {
	var rows []reservationRow
	if err := r.db.SelectContext(ctx, &rows, `
		SELECT `+reservationColumns+`
		FROM reservations
		WHERE user_id = ?
		ORDER BY start_time ASC, id ASC`,
		userID,
	); err != nil {
		return nil, err
	}
	return toReservations(rows), nil
}

// AllReservations returns every stored reservation ordered by start time.
func (r *SQLiteRepo) AllReservations(ctx context.Context) ([]domain.Reservation, error) {
	var rows []reservationRow
	if err := r.db.SelectContext(ctx, &rows, `
		SELECT `+reservationColumns+`
		FROM reservations
		ORDER BY start_time ASC, id ASC`,
	); err != nil {
		return nil, err
	}
	return toReservations(rows), nil
}

// DeleteReservation removes a reservation permanently.
func (r *SQLiteRepo) DeleteReservation(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM reservations WHERE id = ?`, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// GetOrCreatePreference returns the user's settings, inserting the defaults
// on first access. Concurrent callers end up with a single row.
func (r *SQLiteRepo) GetOrCreatePreference(ctx context.Context, userID int64) (domain.NotificationPreference, error) {
	def := domain.DefaultPreference(userID)
	if _, err := r.db.ExecContext(ctx, `
		INSERT INTO notification_settings (user_id, enabled, lead_minutes)
		VALUES (?, ?, ?)
		ON CONFLICT(user_id) DO NOTHING`,
		userID, boolToInt(def.Enabled), def.LeadMinutes,
	); err != nil {
		return domain.NotificationPreference{}, classify(err)
	}

	var row settingsRow
	if err := r.db.GetContext(ctx, &row, `
		SELECT user_id, enabled, lead_minutes
		FROM notification_settings
		WHERE user_id = ?`,
		userID,
	); err != nil {
		return domain.NotificationPreference{}, classify(err)
	}
	return row.toDomain(), nil
}

// UpsertPreference inserts or updates a user's settings in place.
func (r *SQLiteRepo) UpsertPreference(ctx context.Context, p domain.NotificationPreference) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO notification_settings (user_id, enabled, lead_minutes)
		VALUES (?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
			enabled      = excluded.enabled,
			lead_minutes = excluded.lead_minutes`,
		p.UserID, boolToInt(p.Enabled), p.LeadMinutes,
	)
	return classify(err)
}
