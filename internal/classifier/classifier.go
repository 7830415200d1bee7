// Package classifier turns a rendered session snapshot into a coarse health
// judgment. It is the sole trust boundary between untrusted external output
// (LLM responses, terminal scrollback) and the closed status vocabulary:
// nothing outside {working, stopped, error, dead} ever escapes this package,
// and Classify never fails to its caller.
package classifier

import (
	"context"
	"strings"

	"github.com/swarmkeep/swarmkeep/internal/status"
	"github.com/swarmkeep/swarmkeep/internal/util"
)

// maxLogLen bounds the free-text log carried on a result.
const maxLogLen = 120

// Result is a normalized health judgment.
type Result struct {
	Status status.Status `json:"status"`
	Log    string        `json:"log"`
}

// Classifier converts a snapshot into a Result. Implementations must not
// return errors: every failure mode maps into the closed status set.
type Classifier interface {
	Classify(ctx context.Context, snapshot string) Result
}

// emptySnapshot handles the shared contract that an empty or whitespace-only
// snapshot classifies as dead.
func emptySnapshot(snapshot string) (Result, bool) {
	if strings.TrimSpace(snapshot) == "" {
		return Result{Status: status.Dead, Log: "no visible output"}, true
	}
	return Result{}, false
}

// errorResult builds a degraded result with a bounded log.
func errorResult(log string) Result {
	return Result{Status: status.Error, Log: util.Truncate(log, maxLogLen)}
}
