// Package status defines the closed health vocabulary for tracked sessions
// and the policy that maps a health status to a follow-up action.
package status

import "fmt"

// Status is the coarse health judgment for one session at one instant.
// The set is closed: anything an external component reports outside of it is
// rejected at the adapter boundary and degraded to Error.
type Status string

const (
	// Working means the session is visibly making progress.
	Working Status = "working"
	// Stopped means the session is idle, waiting, or finished.
	Stopped Status = "stopped"
	// Error means the health check itself failed (classifier transport,
	// malformed response, capture failure) or the session shows an error.
	Error Status = "error"
	// Dead means the session no longer exists in the multiplexer.
	Dead Status = "dead"
)

// Parse validates a status string against the closed set.
func Parse(s string) (Status, error) {
	switch Status(s) {
	case Working, Stopped, Error, Dead:
		return Status(s), nil
	}
	return "", fmt.Errorf("unknown status %q", s)
}

// IsTerminal reports whether the status ends a session's useful life for the
// purposes of the watch loop (the loop counts these toward confirmation).
func (s Status) IsTerminal() bool {
	return s != Working
}

// Action is the follow-up a caller should take after a check.
type Action string

const (
	// ActionSkip means leave the session alone.
	ActionSkip Action = "skip"
	// ActionNudge means send a gentle prompt to the session.
	ActionNudge Action = "nudge"
	// ActionEscalate means surface the session to a human.
	ActionEscalate Action = "escalate"
)

// Mode selects how stopped sessions are handled. Interactive callers nudge,
// unattended callers escalate. Callers state their mode explicitly; it is
// never inferred here.
type Mode string

const (
	ModeInteractive Mode = "interactive"
	ModeUnattended  Mode = "unattended"
)

// Decide maps a status to an action. It is pure and total over the closed
// status set: working->skip, error->escalate, dead->skip (the session is
// already gone), stopped->nudge or escalate depending on mode.
func Decide(s Status, mode Mode) Action {
	switch s {
	case Working:
		return ActionSkip
	case Stopped:
		if mode == ModeUnattended {
			return ActionEscalate
		}
		return ActionNudge
	case Error:
		return ActionEscalate
	case Dead:
		return ActionSkip
	}
	// Unreachable for values produced by Parse; treat like an error status.
	return ActionEscalate
}
