package pattern

import (
	"strings"
	"testing"
)

func TestMatcherLiteral(t *testing.T) {
	m, err := New([]string{"error", "Continue?"})
	if err != nil {
		t.Fatal(err)
	}

	match, ok := m.Match("step 1 done\nDo you want to Continue? [y/N]\n")
	if !ok {
		t.Fatal("expected a match")
	}
	if match.Pattern != "Continue?" {
		t.Errorf("Pattern = %q", match.Pattern)
	}
	if match.Text != "Do you want to Continue? [y/N]" {
		t.Errorf("Text = %q", match.Text)
	}

	if _, ok := m.Match("all quiet"); ok {
		t.Error("unexpected match")
	}
}

func TestMatcherFirstPatternWins(t *testing.T) {
	m, err := New([]string{"alpha", "beta"})
	if err != nil {
		t.Fatal(err)
	}
	match, ok := m.Match("beta came first in the text but alpha is listed first")
	if !ok || match.Pattern != "alpha" {
		t.Errorf("match = %+v, ok = %v", match, ok)
	}
}

func TestMatcherRegexp(t *testing.T) {
	m, err := NewRegexp([]string{`rate limit.*\d+s`})
	if err != nil {
		t.Fatal(err)
	}
	match, ok := m.Match("API error: rate limit hit, retry in 30s")
	if !ok {
		t.Fatal("expected a match")
	}
	if match.Text != "rate limit hit, retry in 30s" {
		t.Errorf("Text = %q", match.Text)
	}
}

func TestMatcherRegexpInvalid(t *testing.T) {
	if _, err := NewRegexp([]string{"ok", "(unclosed"}); err == nil {
		t.Fatal("expected error for invalid regex")
	}
}

func TestMatcherEmptyPatterns(t *testing.T) {
	if _, err := New(nil); err == nil {
		t.Error("New(nil) should fail")
	}
	if _, err := NewRegexp(nil); err == nil {
		t.Error("NewRegexp(nil) should fail")
	}
}

func TestMatcherFuzzy(t *testing.T) {
	m, err := New([]string{"Permission  Denied"}, WithFuzzy(80))
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name     string
		snapshot string
		want     bool
	}{
		{"case and whitespace differ", "open failed: permission denied (os error 13)", true},
		{"near miss", "permission denged", true},
		{"unrelated", "everything is fine", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, ok := m.Match(tt.snapshot)
			if ok != tt.want {
				t.Errorf("Match(%q) = %v, want %v", tt.snapshot, ok, tt.want)
			}
		})
	}
}

func TestMatcherTextBounded(t *testing.T) {
	m, err := New([]string{"needle"})
	if err != nil {
		t.Fatal(err)
	}
	match, ok := m.Match("needle " + strings.Repeat("x", 500))
	if !ok {
		t.Fatal("expected a match")
	}
	if len(match.Text) > 103 { // 100 runes plus ellipsis
		t.Errorf("Text not bounded: %d bytes", len(match.Text))
	}
}

func TestSimilarity(t *testing.T) {
	if got := similarity("abc", "abc"); got != 100 {
		t.Errorf("identical = %v", got)
	}
	if got := similarity("", "abc"); got != 0 {
		t.Errorf("empty = %v", got)
	}
	if got := similarity("abcdef", "abc"); got < 80 {
		t.Errorf("substring floor = %v, want >= 80", got)
	}
}
