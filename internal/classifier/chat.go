package classifier

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/swarmkeep/swarmkeep/internal/status"
	"github.com/swarmkeep/swarmkeep/internal/util"
)

// maxSnapshotBytes bounds how much scrollback is sent per request. The tail
// carries the freshest signal, so older output is dropped first.
const maxSnapshotBytes = 16 * 1024

const systemPrompt = `You analyze the captured output of a terminal session running a long-lived
interactive program (usually an AI coding agent). Decide whether the program is
actively working or has stopped and is waiting for input.

Respond with a single JSON object and nothing else:
{"status": "working" or "stopped", "log": "one short sentence describing what the program was doing"}`

// ChatClassifier asks an OpenAI-compatible chat-completions endpoint to judge
// a snapshot. Transport failures, malformed responses, and out-of-vocabulary
// statuses all degrade to status=error; a timeout is reported with an explicit
// marker in the log.
type ChatClassifier struct {
	BaseURL string
	APIKey  string
	Model   string

	// Temperature for the completion request.
	Temperature float64

	// Timeout bounds the whole classification, retries included.
	Timeout time.Duration
	// MaxRetries is the number of transport-level retry attempts.
	MaxRetries uint64

	// HTTPClient is replaceable for tests; nil uses http.DefaultClient.
	HTTPClient *http.Client
}

// NewChatClassifier creates a classifier with production defaults.
func NewChatClassifier(baseURL, apiKey, model string) *ChatClassifier {
	return &ChatClassifier{
		BaseURL:     baseURL,
		APIKey:      apiKey,
		Model:       model,
		Temperature: 0.2,
		Timeout:     30 * time.Second,
		MaxRetries:  2,
	}
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// verdict is the structured object the model must return.
type verdict struct {
	Status string `json:"status"`
	Log    string `json:"log"`
}

// Classify implements Classifier. It never returns an error.
func (c *ChatClassifier) Classify(ctx context.Context, snapshot string) Result {
	if res, ok := emptySnapshot(snapshot); ok {
		return res
	}

	timeout := c.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	content, err := c.complete(ctx, snapshot)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return errorResult(fmt.Sprintf("classifier timed out after %s", timeout))
		}
		return errorResult(fmt.Sprintf("classifier transport failed: %v", err))
	}

	var v verdict
	if err := json.Unmarshal([]byte(content), &v); err != nil {
		return errorResult(fmt.Sprintf("classifier returned malformed JSON: %v", err))
	}
	if v.Status == "" || v.Log == "" {
		return errorResult("classifier response missing status or log field")
	}

	st, err := status.Parse(v.Status)
	if err != nil {
		return errorResult(fmt.Sprintf("classifier returned out-of-vocabulary status %q", v.Status))
	}

	return Result{Status: st, Log: util.Truncate(v.Log, maxLogLen)}
}

// complete performs the chat-completions call with exponential-backoff retries
// on transport errors, bounded by the caller's deadline.
func (c *ChatClassifier) complete(ctx context.Context, snapshot string) (string, error) {
	body, err := json.Marshal(chatRequest{
		Model: c.Model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: util.TailBytes(snapshot, maxSnapshotBytes)},
		},
		Temperature: c.Temperature,
	})
	if err != nil {
		return "", fmt.Errorf("encoding request: %w", err)
	}

	var content string
	operation := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/chat/completions", bytes.NewReader(body))
		if err != nil {
			return backoff.Permanent(err)
		}
		req.Header.Set("Content-Type", "application/json")
		if c.APIKey != "" {
			req.Header.Set("Authorization", "Bearer "+c.APIKey)
		}

		client := c.HTTPClient
		if client == nil {
			client = http.DefaultClient
		}
		resp, err := client.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		if err != nil {
			return err
		}
		if resp.StatusCode != http.StatusOK {
			err := fmt.Errorf("endpoint returned HTTP %d", resp.StatusCode)
			// Client errors will not improve with retries; server errors might.
			if resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
				return backoff.Permanent(err)
			}
			return err
		}

		var parsed chatResponse
		if err := json.Unmarshal(data, &parsed); err != nil {
			return backoff.Permanent(fmt.Errorf("decoding response: %w", err))
		}
		if len(parsed.Choices) == 0 {
			return backoff.Permanent(errors.New("response contained no choices"))
		}
		content = parsed.Choices[0].Message.Content
		return nil
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 500 * time.Millisecond
	policy := backoff.WithContext(backoff.WithMaxRetries(bo, c.MaxRetries), ctx)
	if err := backoff.Retry(operation, policy); err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", err
	}
	return content, nil
}
