package store

import (
	"database/sql"
	"errors"
	"strings"
)

var (
	// ErrNotFound is returned when a query matches no rows.
	ErrNotFound = errors.New("store: record not found")
	// ErrDuplicateKey is returned on unique constraint violations.
	ErrDuplicateKey = errors.New("store: duplicate key")
	// ErrForeignKey is returned when a referenced row is missing.
	ErrForeignKey = errors.New("store: foreign key violation")
)

// classify maps driver errors onto the package sentinels, keeping the
// original error in the chain.
func classify(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	s := err.Error()
	switch {
	case strings.Contains(s, "UNIQUE constraint failed"):
		return errors.Join(ErrDuplicateKey, err)
	case strings.Contains(s, "FOREIGN KEY constraint failed"):
		return errors.Join(ErrForeignKey, err)
	}
	return err
}
