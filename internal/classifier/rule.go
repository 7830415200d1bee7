package classifier

import (
	"context"
	"regexp"
	"strings"

	"github.com/swarmkeep/swarmkeep/internal/status"
	"github.com/swarmkeep/swarmkeep/internal/util"
)

// ansiRegex matches ANSI escape sequences so heuristics see plain text.
var ansiRegex = regexp.MustCompile(`\x1b\[[0-9;?]*[a-zA-Z]`)

// errorMarkers flag output that indicates the session itself hit a failure.
var errorMarkers = []string{
	"traceback (most recent call last)",
	"panic:",
	"fatal:",
	"segmentation fault",
	"rate limit",
	"out of memory",
	"command not found",
}

// promptEndings are characters a shell or agent prompt typically ends with.
var promptEndings = []string{">", "$", "%", "❯", "→", "»", "#"}

// doneMarkers indicate the program announced completion and is now idle.
var doneMarkers = []string{"completed", "finished", "done", "ready", "success"}

// Rules judges a snapshot with offline heuristics, used when no classifier
// endpoint is configured: error markers anywhere in the scrollback win, then
// the last visible line decides whether the session is waiting at a prompt.
type Rules struct{}

// NewRules returns the heuristic classifier.
func NewRules() Rules {
	return Rules{}
}

// Classify implements Classifier. The context is accepted for interface
// symmetry; the heuristics never block.
func (Rules) Classify(_ context.Context, snapshot string) Result {
	if res, ok := emptySnapshot(snapshot); ok {
		return res
	}

	clean := strings.TrimSpace(ansiRegex.ReplaceAllString(snapshot, ""))
	lower := strings.ToLower(clean)

	for _, marker := range errorMarkers {
		if strings.Contains(lower, marker) {
			return Result{Status: status.Error, Log: util.Truncate("output contains error marker: "+marker, maxLogLen)}
		}
	}

	lastLine := lastNonEmptyLine(clean)
	if looksIdle(lastLine) {
		return Result{Status: status.Stopped, Log: util.Truncate("waiting at prompt: "+lastLine, maxLogLen)}
	}

	return Result{Status: status.Working, Log: util.Truncate("active: "+lastLine, maxLogLen)}
}

func lastNonEmptyLine(s string) string {
	lines := strings.Split(s, "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		if line := strings.TrimSpace(lines[i]); line != "" {
			return line
		}
	}
	return ""
}

// looksIdle applies the prompt heuristics: a very short last line, a line
// ending in a prompt character, or an explicit completion announcement.
func looksIdle(lastLine string) bool {
	if lastLine == "" {
		return false
	}
	if len(lastLine) < 20 {
		return true
	}
	for _, ending := range promptEndings {
		if strings.HasSuffix(lastLine, ending) || strings.HasSuffix(lastLine, ending+" ") {
			return true
		}
	}
	lower := strings.ToLower(lastLine)
	for _, marker := range doneMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}
