// Package pattern matches text patterns against captured session output and
// drives the pattern watch loop with optional auto-type intervention.
package pattern

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/swarmkeep/swarmkeep/internal/util"
)

// Match describes a successful pattern hit.
type Match struct {
	Pattern string
	Text    string
}

// Matcher checks snapshots against a set of patterns with OR logic: the
// first pattern that hits wins, in the order they were given.
type Matcher struct {
	patterns []string
	regexes  []*regexp.Regexp
	fuzzy    bool
	// threshold is the minimum similarity percentage for fuzzy hits.
	threshold float64
}

// Option configures a Matcher.
type Option func(*Matcher)

// WithFuzzy enables whitespace-normalized, case-insensitive matching with
// the given similarity threshold (0..100). Non-positive values keep the
// default of 80.
func WithFuzzy(threshold float64) Option {
	return func(m *Matcher) {
		m.fuzzy = true
		if threshold > 0 {
			m.threshold = threshold
		}
	}
}

// New builds a literal (or fuzzy) matcher.
func New(patterns []string, opts ...Option) (*Matcher, error) {
	if len(patterns) == 0 {
		return nil, fmt.Errorf("at least one pattern is required")
	}
	m := &Matcher{patterns: patterns, threshold: 80}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// NewRegexp builds a matcher that treats every pattern as a regular
// expression. Invalid patterns are rejected up front rather than silently
// skipped at match time.
func NewRegexp(patterns []string) (*Matcher, error) {
	if len(patterns) == 0 {
		return nil, fmt.Errorf("at least one pattern is required")
	}
	m := &Matcher{patterns: patterns}
	for _, p := range patterns {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("invalid pattern %q: %w", p, err)
		}
		m.regexes = append(m.regexes, re)
	}
	return m, nil
}

// Patterns returns the configured pattern list.
func (m *Matcher) Patterns() []string {
	return m.patterns
}

// Match reports the first pattern found in snapshot, if any. The returned
// text is the matched line (or regex submatch), bounded for display.
func (m *Matcher) Match(snapshot string) (Match, bool) {
	if m.regexes != nil {
		for i, re := range m.regexes {
			if loc := re.FindString(snapshot); loc != "" {
				return Match{Pattern: m.patterns[i], Text: util.Truncate(loc, 100)}, true
			}
		}
		return Match{}, false
	}

	for _, p := range m.patterns {
		if m.fuzzy {
			if text, ok := fuzzyFind(snapshot, p, m.threshold); ok {
				return Match{Pattern: p, Text: util.Truncate(text, 100)}, true
			}
			continue
		}
		if strings.Contains(snapshot, p) {
			return Match{Pattern: p, Text: util.Truncate(matchingLine(snapshot, p), 100)}, true
		}
	}
	return Match{}, false
}

// matchingLine returns the first line containing the literal pattern.
func matchingLine(snapshot, pattern string) string {
	for _, line := range strings.Split(snapshot, "\n") {
		if strings.Contains(line, pattern) {
			return strings.TrimSpace(line)
		}
	}
	return pattern
}

var whitespace = regexp.MustCompile(`\s+`)

// normalize lowercases and collapses whitespace runs to single spaces.
func normalize(s string) string {
	return strings.TrimSpace(whitespace.ReplaceAllString(strings.ToLower(s), " "))
}

// fuzzyFind looks for the pattern in the snapshot after normalization,
// falling back to per-line similarity scoring.
func fuzzyFind(snapshot, pattern string, threshold float64) (string, bool) {
	np := normalize(pattern)
	if np == "" {
		return "", false
	}

	for _, line := range strings.Split(snapshot, "\n") {
		nl := normalize(line)
		if nl == "" {
			continue
		}
		if strings.Contains(nl, np) {
			return strings.TrimSpace(line), true
		}
		if similarity(nl, np) >= threshold {
			return strings.TrimSpace(line), true
		}
	}
	return "", false
}

// similarity scores two normalized strings from 0 to 100 using positional
// character agreement, with a floor of 80 when one contains the other.
func similarity(a, b string) float64 {
	if a == "" || b == "" {
		return 0
	}
	if a == b {
		return 100
	}

	maxLen := len(a)
	if len(b) > maxLen {
		maxLen = len(b)
	}
	minLen := len(a)
	if len(b) < minLen {
		minLen = len(b)
	}

	matches := 0
	for i := 0; i < minLen; i++ {
		if a[i] == b[i] {
			matches++
		}
	}
	score := float64(matches) / float64(maxLen) * 100

	if strings.Contains(a, b) || strings.Contains(b, a) {
		if score < 80 {
			score = 80
		}
	}
	return score
}
