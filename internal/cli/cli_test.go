package cli

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/swarmkeep/swarmkeep/internal/monitor"
	"github.com/swarmkeep/swarmkeep/internal/output"
	"github.com/swarmkeep/swarmkeep/internal/status"
)

func TestBuildMatcher(t *testing.T) {
	t.Run("literal", func(t *testing.T) {
		m, err := buildMatcher(patternOptions{patterns: []string{"Continue?"}})
		if err != nil {
			t.Fatalf("buildMatcher: %v", err)
		}
		if _, ok := m.Match("Done. Continue? [y/N]"); !ok {
			t.Error("literal pattern did not match")
		}
	})

	t.Run("regex", func(t *testing.T) {
		m, err := buildMatcher(patternOptions{patterns: []string{`panic: .+`}, regex: true})
		if err != nil {
			t.Fatalf("buildMatcher: %v", err)
		}
		if _, ok := m.Match("panic: nil deref"); !ok {
			t.Error("regex pattern did not match")
		}
	})

	t.Run("fuzzy threshold from flag", func(t *testing.T) {
		m, err := buildMatcher(patternOptions{patterns: []string{"continue?"}, fuzzy: 70})
		if err != nil {
			t.Fatalf("buildMatcher: %v", err)
		}
		if _, ok := m.Match("  CONTINUE?   "); !ok {
			t.Error("fuzzy pattern did not match normalized text")
		}
	})

	t.Run("invalid regex rejected", func(t *testing.T) {
		if _, err := buildMatcher(patternOptions{patterns: []string{"["}, regex: true}); err == nil {
			t.Error("expected error for invalid regex")
		}
	})
}

func TestHumanAge(t *testing.T) {
	tests := []struct {
		name string
		t    time.Time
		want string
	}{
		{"zero time", time.Time{}, ""},
		{"seconds", time.Now().Add(-30 * time.Second), "just now"},
		{"minutes", time.Now().Add(-5 * time.Minute), "5m ago"},
		{"hours", time.Now().Add(-3 * time.Hour), "3h ago"},
		{"days", time.Now().Add(-49 * time.Hour), "2d ago"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := humanAge(tt.t); got != tt.want {
				t.Errorf("humanAge() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestVersionCommand(t *testing.T) {
	var buf bytes.Buffer
	cmd := newVersionCmd()
	cmd.SetOut(&buf)
	cmd.Run(cmd, nil)

	if !strings.Contains(buf.String(), "swarmkeep dev") {
		t.Errorf("version output = %q, want it to mention swarmkeep dev", buf.String())
	}
}

func TestPrintReport(t *testing.T) {
	var buf bytes.Buffer
	f := output.New(&buf, false, true)

	report := &monitor.Report{
		Entries: []monitor.Entry{
			{Name: "agent-01-bee", Status: status.Working, Log: "editing files"},
			{Name: "agent-02-ant", Status: status.Stopped, Log: "waiting for input"},
			{Name: "agent-03-wasp", Status: status.Dead, Log: "session no longer exists"},
		},
	}
	printReport(f, report)

	out := buf.String()
	for _, want := range []string{
		"agent-01-bee",
		"working",
		"waiting for input",
		"1 working, 1 stopped, 0 error, 1 dead",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("report output missing %q:\n%s", want, out)
		}
	}
}
