package textutil

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func TestTruncateBytes(t *testing.T) {
	if got := TruncateBytes("short", 100); got != "short" {
		t.Fatalf("unexpected result: %q", got)
	}
	if got := TruncateBytes("anything", 0); got != "anything" {
		t.Fatalf("zero limit must disable truncation, got %q", got)
	}
	if got := TruncateBytes("abcdef", 3); got != "abc" {
		t.Fatalf("unexpected result: %q", got)
	}
}

func TestTruncateBytesKeepsRuneBoundary(t *testing.T) {
	// Each rune is 3 bytes; a 10 byte limit lands mid-rune.
	s := strings.Repeat("世", 5)
	got := TruncateBytes(s, 10)
	if !utf8.ValidString(got) {
		t.Fatalf("truncated string is not valid UTF-8: %q", got)
	}
	if got != strings.Repeat("世", 3) {
		t.Fatalf("unexpected result: %q", got)
	}
	if len(got) > 10 {
		t.Fatalf("limit exceeded: %d bytes", len(got))
	}
}
