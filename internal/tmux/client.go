// Package tmux wraps the tmux binary for session-level operations: existence
// checks, pane capture, key injection, and lifecycle management.
package tmux

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
)

// run executes a tmux command and returns stdout.
func run(ctx context.Context, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, "tmux", args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", fmt.Errorf("tmux %s: %w", strings.Join(args, " "), ctxErr)
		}
		return "", fmt.Errorf("tmux %s: %w: %s", strings.Join(args, " "), err, stderr.String())
	}
	return strings.TrimSpace(stdout.String()), nil
}

// runSilent executes a tmux command ignoring output.
func runSilent(ctx context.Context, args ...string) error {
	cmd := exec.CommandContext(ctx, "tmux", args...)
	return cmd.Run()
}

// IsInstalled checks if tmux is available.
func IsInstalled() bool {
	_, err := exec.LookPath("tmux")
	return err == nil
}

// EnsureInstalled returns an error if tmux is not installed.
func EnsureInstalled() error {
	if !IsInstalled() {
		return errors.New("tmux is not installed. Install it with: brew install tmux (macOS) or apt install tmux (Linux)")
	}
	return nil
}

// InTmux returns true if currently inside a tmux session.
func InTmux() bool {
	return os.Getenv("TMUX") != ""
}

// SessionExists checks if a session exists.
func SessionExists(ctx context.Context, name string) bool {
	return runSilent(ctx, "has-session", "-t", name) == nil
}

// Session describes one live tmux session.
type Session struct {
	Name     string
	Windows  int
	Attached bool
	Created  string
}

// ListSessions returns all tmux sessions. No running server is not an error.
func ListSessions(ctx context.Context) ([]Session, error) {
	output, err := run(ctx, "list-sessions", "-F", "#{session_name}:#{session_windows}:#{session_attached}:#{session_created_string}")
	if err != nil {
		errMsg := err.Error()
		if strings.Contains(errMsg, "no server running") ||
			strings.Contains(errMsg, "no sessions") ||
			strings.Contains(errMsg, "No such file or directory") ||
			strings.Contains(errMsg, "error connecting to") {
			return nil, nil
		}
		return nil, err
	}
	return parseSessions(output), nil
}

func parseSessions(output string) []Session {
	if output == "" {
		return nil
	}

	var sessions []Session
	for _, line := range strings.Split(output, "\n") {
		parts := strings.SplitN(line, ":", 4)
		if len(parts) < 4 {
			continue
		}

		windows, _ := strconv.Atoi(parts[1])
		attached := parts[2] == "1"

		sessions = append(sessions, Session{
			Name:     parts[0],
			Windows:  windows,
			Attached: attached,
			Created:  parts[3],
		})
	}
	return sessions
}

// CreateSession creates a new detached session, optionally running a command.
func CreateSession(ctx context.Context, name, directory, command string) error {
	args := []string{"new-session", "-d", "-s", name, "-c", directory}
	if command != "" {
		args = append(args, command)
	}
	return runSilent(ctx, args...)
}

// CapturePane captures the last `lines` lines of a session's visible output.
// An empty string is a valid result and distinct from the session being gone;
// absence is only reported through SessionExists or IsAbsenceError.
func CapturePane(ctx context.Context, target string, lines int) (string, error) {
	return run(ctx, "capture-pane", "-t", target, "-p", "-S", fmt.Sprintf("-%d", lines))
}

// SendKeys sends literal text to a session, optionally followed by Enter.
func SendKeys(ctx context.Context, target, keys string, enter bool) error {
	if err := runSilent(ctx, "send-keys", "-t", target, "-l", "--", keys); err != nil {
		return err
	}
	if enter {
		return runSilent(ctx, "send-keys", "-t", target, "C-m")
	}
	return nil
}

// SendInterrupt sends Ctrl+C to a session.
func SendInterrupt(ctx context.Context, target string) error {
	return runSilent(ctx, "send-keys", "-t", target, "C-c")
}

// KillSession kills a tmux session.
func KillSession(ctx context.Context, name string) error {
	return runSilent(ctx, "kill-session", "-t", name)
}

// AttachOrSwitch attaches to a session, or switches if already inside tmux.
func AttachOrSwitch(name string) error {
	if InTmux() {
		return runSilent(context.Background(), "switch-client", "-t", name)
	}

	cmd := exec.Command("tmux", "attach", "-t", name)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	return cmd.Run()
}

// ValidateSessionName checks if a session name is usable. tmux treats ':' and
// '.' as target separators, so they are forbidden.
func ValidateSessionName(name string) error {
	if name == "" {
		return errors.New("session name cannot be empty")
	}
	if strings.ContainsAny(name, ":.") {
		return errors.New("session name cannot contain ':' or '.'")
	}
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
		default:
			return fmt.Errorf("session name contains invalid character %q (letters, digits, '-' and '_' only)", r)
		}
	}
	return nil
}

// IsAbsenceError reports whether a tmux error means the target session (or
// the whole server) is gone, as opposed to a transient I/O failure.
func IsAbsenceError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "can't find session") ||
		strings.Contains(msg, "session not found") ||
		strings.Contains(msg, "can't find pane") ||
		strings.Contains(msg, "no server running") ||
		strings.Contains(msg, "error connecting to") ||
		strings.Contains(msg, "No such file or directory")
}
