package security

import (
	"crypto/rand"
	"fmt"
)

// Token lengths handed out to clients. These are part of the wire contract.
const (
	SaltLength              = 16
	ClientIDLength          = 16
	AccessTokenLength       = 32
	ClientSecretLength      = 32
	RefreshTokenLength      = 64
	AuthorizationCodeLength = 64
	InternalStateLength     = 64
	SessionIDLength         = 64
	AccountIDLength         = 64
	ServiceIDLength         = 64
)

const alphanumeric = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

// RandomString returns n characters drawn uniformly from [A-Za-z0-9]
// using crypto/rand.
func RandomString(n int) (string, error) {
	if n <= 0 {
		return "", nil
	}

	// 62 * 4 = 248; bytes >= 248 are rejected to avoid modulo bias.
	const limit = 248

	out := make([]byte, 0, n)
	buf := make([]byte, n+n/4+8)
	for len(out) < n {
		if _, err := rand.Read(buf); err != nil {
			return "", fmt.Errorf("failed to read random bytes: %w", err)
		}
		for _, b := range buf {
			if b >= limit {
				continue
			}
			out = append(out, alphanumeric[int(b)%len(alphanumeric)])
			if len(out) == n {
				break
			}
		}
	}
	return string(out), nil
}
