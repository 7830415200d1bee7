package monitor

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/swarmkeep/swarmkeep/internal/classifier"
	"github.com/swarmkeep/swarmkeep/internal/registry"
	"github.com/swarmkeep/swarmkeep/internal/status"
)

// fakeTerminal is an in-memory Terminal for tests. Capture returns the
// snapshot stored for the session, so tests key classifier scripts by name.
type fakeTerminal struct {
	mu         sync.Mutex
	sessions   map[string]string
	captureErr map[string]error
	sent       []string
}

func newFakeTerminal() *fakeTerminal {
	return &fakeTerminal{sessions: make(map[string]string), captureErr: make(map[string]error)}
}

func (f *fakeTerminal) add(name, snapshot string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sessions[name] = snapshot
}

func (f *fakeTerminal) kill(name string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.sessions, name)
}

func (f *fakeTerminal) Exists(_ context.Context, name string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.sessions[name]
	return ok
}

func (f *fakeTerminal) Capture(_ context.Context, name string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.captureErr[name]; err != nil {
		return "", err
	}
	return f.sessions[name], nil
}

func (f *fakeTerminal) Send(_ context.Context, name, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, name+":"+text)
	return nil
}

// scriptClassifier replays queued results per snapshot, falling back to a
// default once a queue drains.
type scriptClassifier struct {
	mu     sync.Mutex
	queues map[string][]classifier.Result
	def    classifier.Result
}

func newScriptClassifier(def classifier.Result) *scriptClassifier {
	return &scriptClassifier{queues: make(map[string][]classifier.Result), def: def}
}

func (s *scriptClassifier) push(snapshot string, results ...classifier.Result) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queues[snapshot] = append(s.queues[snapshot], results...)
}

func (s *scriptClassifier) Classify(_ context.Context, snapshot string) classifier.Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	if q := s.queues[snapshot]; len(q) > 0 {
		s.queues[snapshot] = q[1:]
		return q[0]
	}
	return s.def
}

func working(log string) classifier.Result { return classifier.Result{Status: status.Working, Log: log} }
func stopped(log string) classifier.Result { return classifier.Result{Status: status.Stopped, Log: log} }

func TestObserveMissingSessionIsDead(t *testing.T) {
	m := New(newFakeTerminal(), newScriptClassifier(working("busy")), 0)

	check := m.Observe(context.Background(), "ghost")
	if check.Status != status.Dead {
		t.Errorf("Status = %s, want dead", check.Status)
	}
	if check.Log != "session no longer exists" {
		t.Errorf("Log = %q", check.Log)
	}
}

func TestObserveCaptureAbsenceIsDead(t *testing.T) {
	term := newFakeTerminal()
	term.add("racer", "output")
	// The session vanished between the existence probe and the capture.
	term.captureErr["racer"] = errors.New("tmux capture-pane failed: can't find session: racer")

	m := New(term, newScriptClassifier(working("busy")), 0)
	check := m.Observe(context.Background(), "racer")
	if check.Status != status.Dead {
		t.Errorf("Status = %s, want dead", check.Status)
	}
}

func TestObserveCaptureFailureIsError(t *testing.T) {
	term := newFakeTerminal()
	term.add("agent-01-wasp", "output")
	term.captureErr["agent-01-wasp"] = errors.New("tmux exited with status 1")

	m := New(term, newScriptClassifier(working("busy")), 0)
	check := m.Observe(context.Background(), "agent-01-wasp")
	if check.Status != status.Error {
		t.Errorf("Status = %s, want error", check.Status)
	}
	if !strings.Contains(check.Log, "capture failed") {
		t.Errorf("Log = %q", check.Log)
	}
}

func TestObserveClassifies(t *testing.T) {
	term := newFakeTerminal()
	term.add("agent-01-wasp", "compiling...")

	cls := newScriptClassifier(working("default"))
	cls.push("compiling...", stopped("waiting at prompt"))

	m := New(term, cls, 0)
	check := m.Observe(context.Background(), "agent-01-wasp")
	if check.Status != status.Stopped {
		t.Errorf("Status = %s, want stopped", check.Status)
	}
	if check.Log != "waiting at prompt" {
		t.Errorf("Log = %q", check.Log)
	}
	if check.Time.IsZero() {
		t.Error("check time not set")
	}
}

func TestCheckOneAppendsHistory(t *testing.T) {
	term := newFakeTerminal()
	term.add("agent-01-wasp", "output")

	reg := registry.New()
	reg.Put("agent-01-wasp", registry.NewSession("claude"))

	m := New(term, newScriptClassifier(working("busy")), 3)
	for i := 0; i < 5; i++ {
		m.CheckOne(context.Background(), reg, "agent-01-wasp")
	}

	sess := reg.Get("agent-01-wasp")
	if len(sess.Checks) != 3 {
		t.Errorf("history length = %d, want capped at 3", len(sess.Checks))
	}
	last, ok := sess.LastCheck()
	if !ok || last.Status != status.Working {
		t.Errorf("last check = %+v", last)
	}
}
