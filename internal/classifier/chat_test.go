package classifier

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/swarmkeep/swarmkeep/internal/status"
)

// chatServer returns a test server that responds with the given message
// content wrapped in a chat-completions envelope.
func chatServer(t *testing.T, content string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		resp := map[string]any{
			"choices": []map[string]any{
				{"message": map[string]any{"content": content}},
			},
		}
		json.NewEncoder(w).Encode(resp)
	}))
}

func newTestClassifier(url string) *ChatClassifier {
	c := NewChatClassifier(url, "test-key", "test-model")
	c.MaxRetries = 0
	c.Timeout = 5 * time.Second
	return c
}

func TestChatClassifyWorking(t *testing.T) {
	srv := chatServer(t, `{"status": "working", "log": "running the test suite"}`)
	defer srv.Close()

	res := newTestClassifier(srv.URL).Classify(context.Background(), "$ go test ./...\nok  pkg/a  0.3s")
	if res.Status != status.Working {
		t.Errorf("Status = %s, want working", res.Status)
	}
	if res.Log != "running the test suite" {
		t.Errorf("Log = %q", res.Log)
	}
}

func TestChatClassifyStopped(t *testing.T) {
	srv := chatServer(t, `{"status": "stopped", "log": "waiting for user input"}`)
	defer srv.Close()

	res := newTestClassifier(srv.URL).Classify(context.Background(), "Done. What next?\n> ")
	if res.Status != status.Stopped {
		t.Errorf("Status = %s, want stopped", res.Status)
	}
}

func TestChatClassifyEmptySnapshotIsDead(t *testing.T) {
	// No server needed: the empty-snapshot rule short-circuits the transport.
	c := newTestClassifier("http://127.0.0.1:0")

	for _, snapshot := range []string{"", "   ", "\n\t\n"} {
		res := c.Classify(context.Background(), snapshot)
		if res.Status != status.Dead {
			t.Errorf("Classify(%q).Status = %s, want dead", snapshot, res.Status)
		}
	}
}

func TestChatClassifyMalformedContent(t *testing.T) {
	srv := chatServer(t, `the agent is working hard, trust me`)
	defer srv.Close()

	res := newTestClassifier(srv.URL).Classify(context.Background(), "some output")
	if res.Status != status.Error {
		t.Errorf("Status = %s, want error", res.Status)
	}
	if !strings.Contains(res.Log, "malformed") {
		t.Errorf("Log should name the failure class, got %q", res.Log)
	}
}

func TestChatClassifyOutOfVocabularyStatus(t *testing.T) {
	srv := chatServer(t, `{"status": "sleeping", "log": "zzz"}`)
	defer srv.Close()

	res := newTestClassifier(srv.URL).Classify(context.Background(), "some output")
	if res.Status != status.Error {
		t.Errorf("Status = %s, want error", res.Status)
	}
	if !strings.Contains(res.Log, "out-of-vocabulary") {
		t.Errorf("Log = %q", res.Log)
	}
}

func TestChatClassifyMissingFields(t *testing.T) {
	srv := chatServer(t, `{"status": "working"}`)
	defer srv.Close()

	res := newTestClassifier(srv.URL).Classify(context.Background(), "some output")
	if res.Status != status.Error {
		t.Errorf("Status = %s, want error", res.Status)
	}
}

func TestChatClassifyTransportFailure(t *testing.T) {
	srv := chatServer(t, "")
	srv.Close() // connection refused from here on

	res := newTestClassifier(srv.URL).Classify(context.Background(), "some output")
	if res.Status != status.Error {
		t.Errorf("Status = %s, want error", res.Status)
	}
	if !strings.Contains(res.Log, "transport") {
		t.Errorf("Log = %q", res.Log)
	}
}

func TestChatClassifyHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
	}))
	defer srv.Close()

	res := newTestClassifier(srv.URL).Classify(context.Background(), "some output")
	if res.Status != status.Error {
		t.Errorf("Status = %s, want error", res.Status)
	}
}

func TestChatClassifyTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(2 * time.Second)
	}))
	defer srv.Close()

	c := newTestClassifier(srv.URL)
	c.Timeout = 100 * time.Millisecond

	res := c.Classify(context.Background(), "some output")
	if res.Status != status.Error {
		t.Errorf("Status = %s, want error", res.Status)
	}
	if !strings.Contains(res.Log, "timed out") {
		t.Errorf("Log should contain a timeout marker, got %q", res.Log)
	}
}

func TestChatClassifyRetriesServerErrors(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			http.Error(w, "try again", http.StatusServiceUnavailable)
			return
		}
		fmt.Fprint(w, `{"choices":[{"message":{"content":"{\"status\":\"working\",\"log\":\"back up\"}"}}]}`)
	}))
	defer srv.Close()

	c := newTestClassifier(srv.URL)
	c.MaxRetries = 2

	res := c.Classify(context.Background(), "some output")
	if res.Status != status.Working {
		t.Errorf("Status = %s, want working after retry (calls=%d, log=%q)", res.Status, calls, res.Log)
	}
	if calls != 2 {
		t.Errorf("expected 2 calls, got %d", calls)
	}
}

func TestChatClassifyLongLogTruncated(t *testing.T) {
	long := strings.Repeat("x", 500)
	srv := chatServer(t, `{"status": "working", "log": "`+long+`"}`)
	defer srv.Close()

	res := newTestClassifier(srv.URL).Classify(context.Background(), "some output")
	if len(res.Log) > maxLogLen {
		t.Errorf("log not truncated: %d bytes", len(res.Log))
	}
}
