package textutil

import "unicode/utf8"

// TruncateBytes cuts s down to at most max bytes without splitting a UTF-8
// rune; max <= 0 disables the limit.
func TruncateBytes(s string, max int) string {
	if max <= 0 || len(s) <= max {
		return s
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}
