package logutil

import "strings"

// SanitizeForLog flattens user-supplied text onto one log line: newlines
// and tabs become spaces and other control characters are dropped.
func SanitizeForLog(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r == '\n' || r == '\r' || r == '\t':
			return ' '
		case r < 32 || r == 0x7f:
			return -1
		}
		return r
	}, s)
}

// Truncate shortens s to at most n bytes for log output, marking the cut.
func Truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return strings.ToValidUTF8(s[:n], "") + "..."
}
