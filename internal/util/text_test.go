package util

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func TestTruncate(t *testing.T) {
	tests := []struct {
		name string
		in   string
		n    int
		want string
	}{
		{"shorter than limit", "hello", 10, "hello"},
		{"exactly at limit", "hello", 5, "hello"},
		{"needs ellipsis", "hello world", 8, "hello..."},
		{"zero", "hello", 0, ""},
		{"negative", "hello", -1, ""},
		{"tiny limit", "hello", 2, "he"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Truncate(tt.in, tt.n); got != tt.want {
				t.Errorf("Truncate(%q, %d) = %q, want %q", tt.in, tt.n, got, tt.want)
			}
		})
	}
}

func TestTruncateMultibyte(t *testing.T) {
	s := strings.Repeat("日", 20)
	got := Truncate(s, 16)
	if !utf8.ValidString(got) {
		t.Errorf("Truncate produced invalid UTF-8: %q", got)
	}
	if len(got) > 16 {
		t.Errorf("Truncate result too long: %d bytes", len(got))
	}
}

func TestTailBytes(t *testing.T) {
	t.Run("short string unchanged", func(t *testing.T) {
		if got := TailBytes("abc", 10); got != "abc" {
			t.Errorf("got %q, want %q", got, "abc")
		}
	})

	t.Run("keeps the tail", func(t *testing.T) {
		if got := TailBytes("0123456789", 4); got != "6789" {
			t.Errorf("got %q, want %q", got, "6789")
		}
	})

	t.Run("trims whitespace before cutting", func(t *testing.T) {
		if got := TailBytes("  abc  ", 10); got != "abc" {
			t.Errorf("got %q, want %q", got, "abc")
		}
	})

	t.Run("respects rune boundaries", func(t *testing.T) {
		s := strings.Repeat("日", 10) // 3 bytes each
		got := TailBytes(s, 10)
		if !utf8.ValidString(got) {
			t.Errorf("invalid UTF-8: %q", got)
		}
		if len(got) > 10 {
			t.Errorf("result too long: %d bytes", len(got))
		}
	})
}
