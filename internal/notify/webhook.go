package notify

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"gopkg.in/yaml.v3"
)

// WebhookDef is one entry of the `webhooks:` list in a project-level
// .swarmkeep.yaml. These hooks receive the raw event JSON and live alongside
// the repository being worked on, unlike the single webhook channel in the
// user config.
type WebhookDef struct {
	Name    string          `yaml:"name"`
	URL     string          `yaml:"url"`
	Events  []string        `yaml:"events"`
	Timeout string          `yaml:"timeout"`
	Secret  string          `yaml:"secret"`
	Retry   WebhookRetryDef `yaml:"retry"`
}

type WebhookRetryDef struct {
	MaxAttempts int    `yaml:"max_attempts"`
	Backoff     string `yaml:"backoff"`
}

func (d *WebhookDef) applyDefaults() {
	if strings.TrimSpace(d.Timeout) == "" {
		d.Timeout = "10s"
	}
	if d.Retry.MaxAttempts == 0 {
		d.Retry.MaxAttempts = 3
	}
	if strings.TrimSpace(d.Retry.Backoff) == "" {
		d.Retry.Backoff = "exponential"
	}
}

func (d *WebhookDef) validate() error {
	if strings.TrimSpace(d.Name) == "" {
		return errors.New("name is required")
	}
	urlStr := strings.TrimSpace(d.URL)
	if urlStr == "" {
		return errors.New("url is required")
	}
	parsed, err := url.Parse(urlStr)
	if err != nil {
		return fmt.Errorf("invalid url %q: %w", urlStr, err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("invalid url scheme %q (must be http or https)", parsed.Scheme)
	}
	if parsed.Host == "" {
		return fmt.Errorf("invalid url %q: missing host", urlStr)
	}
	if _, err := time.ParseDuration(strings.TrimSpace(d.Timeout)); err != nil {
		return fmt.Errorf("invalid timeout %q: %w", d.Timeout, err)
	}
	for _, ev := range d.Events {
		if !recognizedEvent(ev) {
			return fmt.Errorf("unknown event %q", ev)
		}
	}
	if b := strings.ToLower(strings.TrimSpace(d.Retry.Backoff)); b != "exponential" {
		return fmt.Errorf("invalid retry.backoff %q (supported: exponential)", d.Retry.Backoff)
	}
	if d.Retry.MaxAttempts < 0 {
		return fmt.Errorf("invalid retry.max_attempts %d (must be >= 0)", d.Retry.MaxAttempts)
	}
	return nil
}

// wants reports whether the hook subscribes to an event type. An empty
// events list subscribes to everything.
func (d *WebhookDef) wants(t EventType) bool {
	if len(d.Events) == 0 {
		return true
	}
	for _, ev := range d.Events {
		if strings.EqualFold(strings.TrimSpace(ev), string(t)) {
			return true
		}
	}
	return false
}

func recognizedEvent(ev string) bool {
	switch strings.ToLower(strings.TrimSpace(ev)) {
	case string(EventSessionStopped), string(EventSessionDead), string(EventSessionError),
		string(EventSessionCreated), string(EventSessionKilled),
		string(EventPatternMatched), string(EventWatchEnded):
		return true
	default:
		return false
	}
}

// ParseWebhookDefs extracts and validates the `webhooks:` list from a
// .swarmkeep.yaml file. Other top-level keys are ignored. ${VAR} placeholders
// must resolve from the environment.
func ParseWebhookDefs(yamlBytes []byte) ([]WebhookDef, error) {
	if len(bytes.TrimSpace(yamlBytes)) == 0 {
		return nil, nil
	}

	expanded, err := expandEnvPlaceholders(yamlBytes)
	if err != nil {
		return nil, err
	}

	var root yaml.Node
	if err := yaml.Unmarshal(expanded, &root); err != nil {
		return nil, err
	}
	hooksNode := topLevelKey(&root, "webhooks")
	if hooksNode == nil {
		return nil, nil
	}
	if hooksNode.Kind != yaml.SequenceNode {
		return nil, fmt.Errorf("webhooks: expected a list")
	}

	out := make([]WebhookDef, 0, len(hooksNode.Content))
	for idx, item := range hooksNode.Content {
		raw, err := yaml.Marshal(item)
		if err != nil {
			return nil, fmt.Errorf("webhooks[%d]: marshal: %w", idx, err)
		}
		var def WebhookDef
		dec := yaml.NewDecoder(bytes.NewReader(raw))
		dec.KnownFields(true)
		if err := dec.Decode(&def); err != nil {
			return nil, fmt.Errorf("webhooks[%d]: %w", idx, err)
		}
		def.applyDefaults()
		if err := def.validate(); err != nil {
			name := strings.TrimSpace(def.Name)
			if name == "" {
				name = "(unnamed)"
			}
			return nil, fmt.Errorf("webhooks[%d] %s: %w", idx, name, err)
		}
		out = append(out, def)
	}
	return out, nil
}

// LoadProjectWebhooks reads webhook definitions from .swarmkeep.yaml or
// .swarmkeep.yml in dir. A missing file yields an empty list.
func LoadProjectWebhooks(dir string) ([]WebhookDef, error) {
	for _, p := range []string{
		filepath.Join(dir, ".swarmkeep.yaml"),
		filepath.Join(dir, ".swarmkeep.yml"),
	} {
		data, err := os.ReadFile(p)
		if err != nil {
			continue
		}
		return ParseWebhookDefs(data)
	}
	return nil, nil
}

// Dispatcher posts events to project webhooks with per-hook retry budgets.
type Dispatcher struct {
	defs   []WebhookDef
	client *http.Client
}

// NewDispatcher builds a dispatcher over validated definitions.
func NewDispatcher(defs []WebhookDef) *Dispatcher {
	return &Dispatcher{defs: defs, client: &http.Client{}}
}

// Dispatch sends the event to every subscribed hook. Failures are collected,
// not fatal to other hooks.
func (dp *Dispatcher) Dispatch(event Event) error {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}

	var errs []error
	for _, def := range dp.defs {
		if !def.wants(event.Type) {
			continue
		}
		if err := dp.post(def, payload); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", def.Name, err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("webhook dispatch: %v", errs)
	}
	return nil
}

func (dp *Dispatcher) post(def WebhookDef, payload []byte) error {
	timeout, _ := time.ParseDuration(def.Timeout)
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	operation := func() error {
		req, err := http.NewRequest(http.MethodPost, def.URL, bytes.NewReader(payload))
		if err != nil {
			return backoff.Permanent(err)
		}
		req.Header.Set("Content-Type", "application/json")
		if def.Secret != "" {
			req.Header.Set("Authorization", "Bearer "+def.Secret)
		}

		client := *dp.client
		client.Timeout = timeout
		resp, err := client.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

		if resp.StatusCode >= 400 {
			err := fmt.Errorf("hook returned HTTP %d", resp.StatusCode)
			if resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
				return backoff.Permanent(err)
			}
			return err
		}
		return nil
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 250 * time.Millisecond
	retries := uint64(0)
	if def.Retry.MaxAttempts > 1 {
		retries = uint64(def.Retry.MaxAttempts - 1)
	}
	return backoff.Retry(operation, backoff.WithMaxRetries(bo, retries))
}

var envPlaceholderRe = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

func expandEnvPlaceholders(in []byte) ([]byte, error) {
	missing := make(map[string]struct{})
	out := envPlaceholderRe.ReplaceAllStringFunc(string(in), func(m string) string {
		key := strings.TrimSuffix(strings.TrimPrefix(m, "${"), "}")
		if v, ok := os.LookupEnv(key); ok {
			return v
		}
		missing[key] = struct{}{}
		return m
	})
	if len(missing) == 0 {
		return []byte(out), nil
	}
	keys := make([]string, 0, len(missing))
	for k := range missing {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return nil, fmt.Errorf("missing environment variables: %s", strings.Join(keys, ", "))
}

func topLevelKey(root *yaml.Node, key string) *yaml.Node {
	n := root
	if n == nil {
		return nil
	}
	if n.Kind == yaml.DocumentNode && len(n.Content) == 1 {
		n = n.Content[0]
	}
	if n.Kind != yaml.MappingNode {
		return nil
	}
	for i := 0; i+1 < len(n.Content); i += 2 {
		if n.Content[i].Kind == yaml.ScalarNode && n.Content[i].Value == key {
			return n.Content[i+1]
		}
	}
	return nil
}
