// Package account implements e-mail/password registration, login and
// session lookup.
package account

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/connectedhome/connectedhome/internal/db/models"
	"github.com/connectedhome/connectedhome/internal/security"
	"github.com/connectedhome/connectedhome/internal/store"
	"github.com/rs/zerolog"
)

var (
	// ErrInvalidCredentials covers both an unknown address and a wrong
	// password so callers cannot tell which one it was.
	ErrInvalidCredentials = errors.New("E-mail address and password combination is invalid")
	// ErrEmailTaken is returned by Register for an address already in use.
	ErrEmailTaken = errors.New("an account with this e-mail address already exists")
	// ErrInvalidSession is returned when a session id resolves to nobody.
	ErrInvalidSession = errors.New("invalid session")
)

// Service runs the account flows.
type Service struct {
	store  *store.Store
	hasher *security.PasswordHasher
	log    zerolog.Logger

	dummyOnce sync.Once
	dummySalt string
	dummyHash string
}

// NewService creates an account service.
func NewService(st *store.Store, hasher *security.PasswordHasher, log zerolog.Logger) *Service {
	return &Service{
		store:  st,
		hasher: hasher,
		log:    log.With().Str("component", "account").Logger(),
	}
}

// Register creates an account and logs it in, returning the new session id.
func (s *Service) Register(ctx context.Context, email, password string) (string, error) {
	if _, err := s.store.Accounts.FindByEmail(ctx, email); err == nil {
		return "", ErrEmailTaken
	} else if !errors.Is(err, store.ErrNotFound) {
		return "", err
	}

	salt, err := security.NewSalt()
	if err != nil {
		return "", err
	}
	hash, err := s.hasher.Hash(ctx, password, salt)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	accountID, err := security.RandomString(security.AccountIDLength)
	if err != nil {
		return "", err
	}
	sessionID, err := security.RandomString(security.SessionIDLength)
	if err != nil {
		return "", err
	}

	acc := &models.Account{
		AccountID:    accountID,
		Email:        email,
		PasswordHash: hash,
		Salt:         salt,
		SessionID:    &sessionID,
	}
	if err := s.store.Accounts.Create(ctx, acc); err != nil {
		if errors.Is(err, store.ErrAlreadyExists) {
			return "", ErrEmailTaken
		}
		return "", err
	}

	s.log.Info().Str("account_id", accountID).Msg("account registered")
	return sessionID, nil
}

// Login verifies the credentials and starts a fresh session for that
// account, replacing any previous one.
func (s *Service) Login(ctx context.Context, email, password string) (string, error) {
	acc, err := s.store.Accounts.FindByEmail(ctx, email)
	if errors.Is(err, store.ErrNotFound) {
		s.burnVerify(ctx, password)
		return "", ErrInvalidCredentials
	}
	if err != nil {
		return "", err
	}

	ok, err := s.hasher.Verify(ctx, password, acc.Salt, acc.PasswordHash)
	if err != nil {
		return "", fmt.Errorf("failed to verify password: %w", err)
	}
	if !ok {
		return "", ErrInvalidCredentials
	}

	sessionID, err := security.RandomString(security.SessionIDLength)
	if err != nil {
		return "", err
	}
	if err := s.store.Accounts.SetSession(ctx, acc.AccountID, sessionID); err != nil {
		return "", err
	}
	return sessionID, nil
}

// Session resolves a session id to its account.
func (s *Service) Session(ctx context.Context, sessionID string) (models.Account, error) {
	acc, err := s.store.Accounts.FindBySession(ctx, sessionID)
	if errors.Is(err, store.ErrNotFound) {
		return acc, ErrInvalidSession
	}
	return acc, err
}

// burnVerify spends the same bcrypt work as a real check so an unknown
// address takes as long as a wrong password.
func (s *Service) burnVerify(ctx context.Context, password string) {
	s.dummyOnce.Do(func() {
		salt, err := security.NewSalt()
		if err != nil {
			return
		}
		hash, err := s.hasher.Hash(context.Background(), "connectedhome-dummy", salt)
		if err != nil {
			s.log.Error().Err(err).Msg("failed to prepare dummy hash")
			return
		}
		s.dummySalt, s.dummyHash = salt, hash
	})
	if s.dummyHash == "" {
		return
	}
	_, _ = s.hasher.Verify(ctx, password, s.dummySalt, s.dummyHash)
}
