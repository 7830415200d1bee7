// Package notify delivers watch events to desktop, webhook, shell, and log
// channels.
package notify

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"text/template"
	"time"
)

// EventType identifies a notification event.
type EventType string

const (
	EventSessionStopped EventType = "session.stopped" // confirmed non-working
	EventSessionDead    EventType = "session.dead"    // removed from registry
	EventSessionError   EventType = "session.error"   // check failed
	EventSessionCreated EventType = "session.created"
	EventSessionKilled  EventType = "session.killed"
	EventPatternMatched EventType = "pattern.matched"
	EventWatchEnded     EventType = "watch.ended"
)

// Event is one notification payload.
type Event struct {
	Type      EventType         `json:"type"`
	Timestamp time.Time         `json:"timestamp"`
	Session   string            `json:"session,omitempty"`
	Message   string            `json:"message"`
	Details   map[string]string `json:"details,omitempty"`
}

// Config selects which events fire and where they go.
type Config struct {
	Enabled bool     `toml:"enabled"`
	Events  []string `toml:"events"`

	// Primary and Fallback, when set, try channels in order and stop at
	// the first success. Routing overrides both per event type.
	Primary  string              `toml:"primary"`
	Fallback string              `toml:"fallback"`
	Routing  map[string][]string `toml:"routing"`

	Desktop DesktopConfig `toml:"desktop"`
	Webhook WebhookConfig `toml:"webhook"`
	Shell   ShellConfig   `toml:"shell"`
	Log     LogConfig     `toml:"log"`
}

type DesktopConfig struct {
	Enabled bool   `toml:"enabled"`
	Title   string `toml:"title"`
}

type WebhookConfig struct {
	Enabled  bool              `toml:"enabled"`
	URL      string            `toml:"url"`
	Template string            `toml:"template"`
	Method   string            `toml:"method"`
	Headers  map[string]string `toml:"headers"`
}

type ShellConfig struct {
	Enabled  bool   `toml:"enabled"`
	Command  string `toml:"command"`
	PassJSON bool   `toml:"pass_json"`
}

type LogConfig struct {
	Enabled bool   `toml:"enabled"`
	Path    string `toml:"path"`
}

// DefaultConfig enables desktop notifications for the stop-worthy events.
func DefaultConfig() Config {
	return Config{
		Enabled: true,
		Events: []string{
			string(EventSessionStopped),
			string(EventSessionDead),
			string(EventPatternMatched),
		},
		Desktop: DesktopConfig{Enabled: true, Title: "swarmkeep"},
		Webhook: WebhookConfig{Method: "POST"},
		Shell:   ShellConfig{PassJSON: true},
		Log:     LogConfig{Path: "~/.local/share/swarmkeep/notifications.log"},
	}
}

// ChannelName identifies a delivery channel.
type ChannelName string

const (
	ChannelDesktop ChannelName = "desktop"
	ChannelWebhook ChannelName = "webhook"
	ChannelShell   ChannelName = "shell"
	ChannelLog     ChannelName = "log"
)

// Notifier fans events out to the enabled channels.
type Notifier struct {
	config     Config
	enabled    map[EventType]bool
	channels   map[ChannelName]bool
	httpClient *http.Client
	mu         sync.Mutex
}

// New builds a notifier. Environment variables in channel settings are
// expanded once, at construction.
func New(cfg Config) *Notifier {
	cfg.Webhook.URL = os.ExpandEnv(cfg.Webhook.URL)
	cfg.Shell.Command = os.ExpandEnv(cfg.Shell.Command)
	cfg.Log.Path = os.ExpandEnv(cfg.Log.Path)
	for k, v := range cfg.Webhook.Headers {
		cfg.Webhook.Headers[k] = os.ExpandEnv(v)
	}

	n := &Notifier{
		config:     cfg,
		enabled:    make(map[EventType]bool),
		channels:   make(map[ChannelName]bool),
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
	for _, e := range cfg.Events {
		n.enabled[EventType(e)] = true
	}
	if cfg.Desktop.Enabled {
		n.channels[ChannelDesktop] = true
	}
	if cfg.Webhook.Enabled && cfg.Webhook.URL != "" {
		n.channels[ChannelWebhook] = true
	}
	if cfg.Shell.Enabled && cfg.Shell.Command != "" {
		n.channels[ChannelShell] = true
	}
	if cfg.Log.Enabled && cfg.Log.Path != "" {
		n.channels[ChannelLog] = true
	}
	return n
}

// Notify delivers an event. Disabled notifiers and unselected event types
// are silent no-ops.
func (n *Notifier) Notify(event Event) error {
	if !n.config.Enabled || !n.enabled[event.Type] {
		return nil
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	channels := n.channelsFor(event.Type)
	if len(channels) == 0 {
		return nil
	}

	// Ordered delivery stops at the first channel that succeeds.
	if n.config.Routing != nil || n.config.Primary != "" {
		var lastErr error
		for _, ch := range channels {
			if err := n.send(ch, event); err != nil {
				lastErr = err
				continue
			}
			return nil
		}
		if lastErr != nil {
			return fmt.Errorf("all channels failed: %w", lastErr)
		}
		return nil
	}

	// Default: all enabled channels in parallel.
	var (
		wg    sync.WaitGroup
		errMu sync.Mutex
		errs  []error
	)
	for _, ch := range channels {
		ch := ch
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := n.send(ch, event); err != nil {
				errMu.Lock()
				errs = append(errs, fmt.Errorf("%s: %w", ch, err))
				errMu.Unlock()
			}
		}()
	}
	wg.Wait()
	if len(errs) > 0 {
		return fmt.Errorf("notification errors: %v", errs)
	}
	return nil
}

func (n *Notifier) channelsFor(eventType EventType) []ChannelName {
	if routed, ok := n.config.Routing[string(eventType)]; ok && len(routed) > 0 {
		out := make([]ChannelName, 0, len(routed))
		for _, ch := range routed {
			out = append(out, ChannelName(ch))
		}
		return out
	}
	if n.config.Primary != "" {
		out := []ChannelName{ChannelName(n.config.Primary)}
		if n.config.Fallback != "" {
			out = append(out, ChannelName(n.config.Fallback))
		}
		return out
	}
	var out []ChannelName
	for ch := range n.channels {
		out = append(out, ch)
	}
	return out
}

func (n *Notifier) send(ch ChannelName, event Event) error {
	if !n.channels[ch] {
		return fmt.Errorf("channel %s not enabled", ch)
	}
	switch ch {
	case ChannelDesktop:
		return n.sendDesktop(event)
	case ChannelWebhook:
		return n.sendWebhook(event)
	case ChannelShell:
		return n.sendShell(event)
	case ChannelLog:
		return n.sendLog(event)
	default:
		return fmt.Errorf("unknown channel: %s", ch)
	}
}

func (n *Notifier) sendDesktop(event Event) error {
	title := n.config.Desktop.Title
	if title == "" {
		title = "swarmkeep"
	}
	if event.Session != "" {
		title = fmt.Sprintf("%s [%s]", title, event.Session)
	}
	message := event.Message
	if message == "" {
		message = string(event.Type)
	}

	switch runtime.GOOS {
	case "darwin":
		script := fmt.Sprintf(`display notification %q with title %q`, message, title)
		return exec.Command("osascript", "-e", script).Run()
	case "linux":
		if _, err := exec.LookPath("notify-send"); err != nil {
			return fmt.Errorf("notify-send not found")
		}
		return exec.Command("notify-send", title, message).Run()
	default:
		return fmt.Errorf("desktop notifications not supported on %s", runtime.GOOS)
	}
}

// jsonEscape makes a string safe to embed inside a JSON template.
func jsonEscape(s string) string {
	b, err := json.Marshal(s)
	if err != nil {
		return ""
	}
	return string(b[1 : len(b)-1])
}

func (n *Notifier) sendWebhook(event Event) error {
	tmplStr := n.config.Webhook.Template
	if tmplStr == "" {
		tmplStr = `{"event":"{{.Type}}","session":"{{jsonEscape .Session}}","message":"{{jsonEscape .Message}}","timestamp":"{{.Timestamp.Format "2006-01-02T15:04:05Z07:00"}}"}`
	}
	tmpl, err := template.New("webhook").Funcs(template.FuncMap{"jsonEscape": jsonEscape}).Parse(tmplStr)
	if err != nil {
		return fmt.Errorf("invalid template: %w", err)
	}
	var body bytes.Buffer
	if err := tmpl.Execute(&body, event); err != nil {
		return fmt.Errorf("template execution failed: %w", err)
	}

	method := n.config.Webhook.Method
	if method == "" {
		method = http.MethodPost
	}
	req, err := http.NewRequest(method, n.config.Webhook.URL, &body)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range n.config.Webhook.Headers {
		req.Header.Set(k, v)
	}

	resp, err := n.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("webhook returned %d: %s", resp.StatusCode, string(data))
	}
	return nil
}

func (n *Notifier) sendShell(event Event) error {
	cmdStr := expandHome(n.config.Shell.Command)
	cmd := exec.Command("sh", "-c", cmdStr)
	if n.config.Shell.PassJSON {
		payload, err := json.Marshal(event)
		if err != nil {
			return err
		}
		cmd.Stdin = bytes.NewReader(payload)
	}
	cmd.Env = append(os.Environ(),
		"SWARMKEEP_EVENT_TYPE="+string(event.Type),
		"SWARMKEEP_EVENT_SESSION="+event.Session,
		"SWARMKEEP_EVENT_MESSAGE="+event.Message,
	)
	return cmd.Run()
}

func (n *Notifier) sendLog(event Event) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	path := expandHome(n.config.Log.Path)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	line := fmt.Sprintf("[%s] %s: %s", event.Timestamp.Format(time.RFC3339), event.Type, event.Message)
	if event.Session != "" {
		line = fmt.Sprintf("[%s] [%s] %s: %s", event.Timestamp.Format(time.RFC3339), event.Session, event.Type, event.Message)
	}
	_, err = fmt.Fprintln(f, line)
	return err
}

func expandHome(path string) string {
	if strings.HasPrefix(path, "~") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, path[1:])
		}
	}
	return path
}

// NewSessionStoppedEvent reports a session confirmed as no longer working.
func NewSessionStoppedEvent(session, log string) Event {
	return Event{
		Type:    EventSessionStopped,
		Session: session,
		Message: fmt.Sprintf("Session %s stopped: %s", session, log),
	}
}

// NewSessionDeadEvent reports a session that vanished and was untracked.
func NewSessionDeadEvent(session string) Event {
	return Event{
		Type:    EventSessionDead,
		Session: session,
		Message: fmt.Sprintf("Session %s no longer exists and was removed", session),
	}
}

// NewPatternMatchedEvent reports a pattern hit during a watch.
func NewPatternMatchedEvent(session, pattern, text string) Event {
	return Event{
		Type:    EventPatternMatched,
		Session: session,
		Message: fmt.Sprintf("Pattern %q matched in %s", pattern, session),
		Details: map[string]string{"pattern": pattern, "text": text},
	}
}

// NewWatchEndedEvent reports the end of a watch loop.
func NewWatchEndedEvent(reason string, cycles int, sessions []string) Event {
	msg := fmt.Sprintf("Watch ended after %d cycle(s): %s", cycles, reason)
	if len(sessions) > 0 {
		msg += " (" + strings.Join(sessions, ", ") + ")"
	}
	return Event{
		Type:    EventWatchEnded,
		Message: msg,
		Details: map[string]string{"reason": reason, "cycles": fmt.Sprintf("%d", cycles)},
	}
}
