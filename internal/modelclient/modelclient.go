// Package modelclient invokes a chat-completions-shaped model endpoint and
// classifies the outcome for the execution pipeline.
package modelclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/kadirpekel-labs/lcbench/internal/httpclient"
)

// Status classifies the outcome of a single model call.
type Status string

const (
	StatusSuccess Status = "success"
	StatusTimeout Status = "timeout"
	StatusError   Status = "error"
	StatusRefused Status = "refused"
)

// Invoker is the interface the execution pipeline depends on; tests supply
// a fake implementation so pipeline tests never make network calls.
type Invoker interface {
	Call(ctx context.Context, system, user string) (string, Status, error)
}

// DefaultRefusalPrefixes are checked, case-insensitively, against the start
// of a successful response body to detect a model declining to answer.
var DefaultRefusalPrefixes = []string{
	"i cannot", "i can't", "i'm sorry", "i am sorry", "as an ai",
}

// Client calls an OpenAI-chat-completions-shaped HTTP endpoint.
type Client struct {
	http            *httpclient.Client
	endpoint        string
	apiKey          string
	model           string
	perCallTimeout  time.Duration
	refusalPrefixes []string
}

// Config parameterizes New.
type Config struct {
	Endpoint        string
	APIKey          string
	Model           string
	PerCallTimeout  time.Duration
	RefusalPrefixes []string
	HTTPOptions     []httpclient.Option
}

// New builds a Client. An empty RefusalPrefixes uses DefaultRefusalPrefixes.
func New(cfg Config) *Client {
	prefixes := cfg.RefusalPrefixes
	if len(prefixes) == 0 {
		prefixes = DefaultRefusalPrefixes
	}
	timeout := cfg.PerCallTimeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Client{
		http:            httpclient.New(cfg.HTTPOptions...),
		endpoint:        cfg.Endpoint,
		apiKey:          cfg.APIKey,
		model:           cfg.Model,
		perCallTimeout:  timeout,
		refusalPrefixes: prefixes,
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatChoice struct {
	Message chatMessage `json:"message"`
}

type chatResponse struct {
	Choices []chatChoice `json:"choices"`
}

// Call sends one system/user turn and returns the assistant's reply text.
// Retries against transient HTTP failures happen inside this call; by the
// time Call returns, the outcome is final.
func (c *Client) Call(ctx context.Context, system, user string) (string, Status, error) {
	ctx, cancel := context.WithTimeout(ctx, c.perCallTimeout)
	defer cancel()

	body, err := json.Marshal(chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
	})
	if err != nil {
		return "", StatusError, fmt.Errorf("modelclient: encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", StatusError, fmt.Errorf("modelclient: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return "", StatusTimeout, ctx.Err()
		}
		return "", StatusError, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", StatusError, fmt.Errorf("modelclient: read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", StatusError, fmt.Errorf("modelclient: HTTP %d: %s", resp.StatusCode, string(raw))
	}

	var parsed chatResponse
	if err := json.Unmarshal(raw, &parsed); err != nil || len(parsed.Choices) == 0 {
		return "", StatusError, fmt.Errorf("modelclient: unexpected response shape: %s", string(raw))
	}

	reply := parsed.Choices[0].Message.Content
	if isRefusal(reply, c.refusalPrefixes) {
		return reply, StatusRefused, nil
	}

	return reply, StatusSuccess, nil
}

func isRefusal(reply string, prefixes []string) bool {
	trimmed := strings.ToLower(strings.TrimSpace(reply))
	if trimmed == "" {
		return true
	}
	for _, p := range prefixes {
		if strings.HasPrefix(trimmed, p) {
			return true
		}
	}
	return false
}
