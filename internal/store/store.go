// Package store wraps the gorm tables behind small, context-aware types.
// Single-use rows (OAuth states, authorization codes) are consumed with a
// conditional delete whose affected-row count decides the winner.
package store

import (
	"context"
	"errors"

	"gorm.io/gorm"
)

var (
	// ErrNotFound is returned when a lookup matches no live row.
	ErrNotFound = errors.New("store: not found")
	// ErrAlreadyExists is returned when a unique key is already taken.
	ErrAlreadyExists = errors.New("store: already exists")
)

// Store groups every table accessor over one *gorm.DB, which may be a
// transaction.
type Store struct {
	db *gorm.DB

	Accounts           *Accounts
	OAuthStates        *OAuthStates
	AuthorizationCodes *AuthorizationCodes
	Grants             *Grants
	Services           *Services
}

// New builds a Store over database.
func New(database *gorm.DB) *Store {
	return &Store{
		db:                 database,
		Accounts:           &Accounts{db: database},
		OAuthStates:        &OAuthStates{db: database},
		AuthorizationCodes: &AuthorizationCodes{db: database},
		Grants:             &Grants{db: database},
		Services:           &Services{db: database},
	}
}

// Transaction runs fn against a Store bound to a single transaction. The
// transaction commits when fn returns nil and rolls back otherwise.
func (s *Store) Transaction(ctx context.Context, fn func(tx *Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(New(tx))
	})
}

// DB exposes the underlying handle for health checks.
func (s *Store) DB() *gorm.DB {
	return s.db
}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}
