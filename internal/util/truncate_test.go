package util

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTruncate(t *testing.T) {
	tests := []struct {
		name   string
		in     string
		maxLen int
		want   string
	}{
		{"short", "ok", 10, "ok"},
		{"exact", "0123456789", 10, "0123456789"},
		{"long", "0123456789abcdef", 10, "0123456789...(16 bytes)"},
		{"empty", "", 4, ""},
		{"multibyte boundary", "aé€", 3, "aé...(6 bytes)"},
		{"cut inside rune", "€€", 4, "€...(6 bytes)"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Truncate(tt.in, tt.maxLen))
		})
	}
}

func TestLogBody(t *testing.T) {
	body := []byte(strings.Repeat("x", 2*MaxLoggedBody))
	got := LogBody(body)
	assert.True(t, strings.HasPrefix(got, strings.Repeat("x", MaxLoggedBody)))
	assert.True(t, strings.HasSuffix(got, "...(1024 bytes)"))
	assert.Equal(t, "{}", LogBody([]byte("{}")))
}
