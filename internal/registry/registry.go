// Package registry tracks the set of monitored sessions and their check
// history, and persists them as a single atomic JSON snapshot.
package registry

import (
	"encoding/json"
	"sort"
	"time"

	"github.com/swarmkeep/swarmkeep/internal/status"
)

// DefaultMaxChecks caps the per-session check history. Oldest entries are
// dropped first; checks are otherwise append-only and never mutated.
const DefaultMaxChecks = 50

// Check records one health observation of a session.
type Check struct {
	Time   time.Time     `json:"time"`
	Status status.Status `json:"status"`
	Log    string        `json:"log"`
}

// Session is one tracked long-running interactive program instance.
type Session struct {
	Command string    `json:"command,omitempty"`
	Created time.Time `json:"created"`
	Checks  []Check   `json:"checks"`
}

// NewSession creates a session entry for a command started now.
func NewSession(command string) *Session {
	return &Session{
		Command: command,
		Created: time.Now().UTC(),
		Checks:  []Check{},
	}
}

// AddCheck appends a check, dropping the oldest entries beyond maxChecks.
// A maxChecks of zero or less means unbounded.
func (s *Session) AddCheck(c Check, maxChecks int) {
	s.Checks = append(s.Checks, c)
	if maxChecks > 0 && len(s.Checks) > maxChecks {
		s.Checks = s.Checks[len(s.Checks)-maxChecks:]
	}
}

// LastCheck returns the most recent check, if any.
func (s *Session) LastCheck() (Check, bool) {
	if len(s.Checks) == 0 {
		return Check{}, false
	}
	return s.Checks[len(s.Checks)-1], true
}

// Registry maps session names to their tracked state. Names are unique; the
// zero value is not usable, construct with New.
type Registry struct {
	sessions map[string]*Session
}

// New returns an empty registry.
func New() *Registry {
	return &Registry{sessions: make(map[string]*Session)}
}

// Get returns the session for name, or nil if untracked.
func (r *Registry) Get(name string) *Session {
	return r.sessions[name]
}

// Has reports whether name is tracked.
func (r *Registry) Has(name string) bool {
	_, ok := r.sessions[name]
	return ok
}

// Put adds or replaces a session entry.
func (r *Registry) Put(name string, s *Session) {
	r.sessions[name] = s
}

// Remove drops a session entry. Removing an absent name is a no-op.
func (r *Registry) Remove(name string) {
	delete(r.sessions, name)
}

// Len returns the number of tracked sessions.
func (r *Registry) Len() int {
	return len(r.sessions)
}

// Names returns all tracked names in lexicographic order. The order is fixed
// so cycle reports are deterministic.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.sessions))
	for name := range r.sessions {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// MarshalJSON serializes the registry as a name->session object. Map keys are
// sorted by encoding/json, so the serialized form is stable.
func (r *Registry) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.sessions)
}

// UnmarshalJSON replaces the registry contents from a name->session object.
// Unknown fields inside sessions are ignored and missing fields default.
func (r *Registry) UnmarshalJSON(data []byte) error {
	sessions := make(map[string]*Session)
	if err := json.Unmarshal(data, &sessions); err != nil {
		return err
	}
	for _, s := range sessions {
		if s.Checks == nil {
			s.Checks = []Check{}
		}
	}
	r.sessions = sessions
	return nil
}
