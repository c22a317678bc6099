package security

import (
	"context"
	"crypto/sha512"
	"encoding/base64"
	"errors"
	"fmt"
	"runtime"

	"golang.org/x/crypto/bcrypt"
	"golang.org/x/sync/semaphore"
)

// PasswordCost is the bcrypt work factor used for account passwords.
const PasswordCost = 10

var ErrEmptyPassword = errors.New("password must not be empty")

// PasswordHasher hashes account passwords. The password is first digested
// together with the per-account salt and the process-wide pepper, then the
// fixed-length digest is run through bcrypt.
type PasswordHasher struct {
	pepper string
	cost   int
	slots  *semaphore.Weighted
}

// NewPasswordHasher returns a hasher that runs at most GOMAXPROCS bcrypt
// computations at a time.
func NewPasswordHasher(pepper string) (*PasswordHasher, error) {
	if pepper == "" {
		return nil, ErrEmptyPepper
	}
	return &PasswordHasher{
		pepper: pepper,
		cost:   PasswordCost,
		slots:  semaphore.NewWeighted(int64(runtime.GOMAXPROCS(0))),
	}, nil
}

// NewSalt returns a fresh per-account salt.
func NewSalt() (string, error) {
	return RandomString(SaltLength)
}

func (h *PasswordHasher) digest(password, salt string) []byte {
	sum := sha512.New512_256()
	sum.Write([]byte(password))
	sum.Write([]byte(salt))
	sum.Write([]byte(h.pepper))

	out := make([]byte, base64.StdEncoding.EncodedLen(sum.Size()))
	base64.StdEncoding.Encode(out, sum.Sum(nil))
	return out
}

// Hash returns the bcrypt-encoded digest to store for the account.
func (h *PasswordHasher) Hash(ctx context.Context, password, salt string) (string, error) {
	if password == "" {
		return "", ErrEmptyPassword
	}

	if err := h.slots.Acquire(ctx, 1); err != nil {
		return "", err
	}
	defer h.slots.Release(1)

	hash, err := bcrypt.GenerateFromPassword(h.digest(password, salt), h.cost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hash), nil
}

// Verify reports whether password and salt produce stored. The comparison
// inside bcrypt is constant time.
func (h *PasswordHasher) Verify(ctx context.Context, password, salt, stored string) (bool, error) {
	if err := h.slots.Acquire(ctx, 1); err != nil {
		return false, err
	}
	defer h.slots.Release(1)

	err := bcrypt.CompareHashAndPassword([]byte(stored), h.digest(password, salt))
	if err == nil {
		return true, nil
	}
	if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
		return false, nil
	}
	return false, fmt.Errorf("failed to verify password: %w", err)
}
