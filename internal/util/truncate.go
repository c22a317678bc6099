// Package util holds small helpers shared by the service clients.
package util

import (
	"fmt"
	"unicode/utf8"
)

// MaxLoggedBody caps how much of an upstream body ends up in a log line.
const MaxLoggedBody = 512

// Truncate shortens s to at most maxLen bytes without splitting a UTF-8
// sequence and notes the original size.
func Truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	cut := maxLen
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + fmt.Sprintf("...(%d bytes)", len(s))
}

// LogBody renders an upstream response body for logging.
func LogBody(b []byte) string {
	return Truncate(string(b), MaxLoggedBody)
}
