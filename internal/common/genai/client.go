// Package genai is the HTTP client for the text-completion service used by
// the planner's model-backed stages.
package genai

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	httpclient "scrape-planner/internal/common/http"
	"scrape-planner/internal/common/logger"
)

var (
	ErrLLMRequestFailed = errors.New("LLM_REQUEST_FAILED")
	ErrLLMTimeout       = errors.New("LLM_TIMEOUT")
	ErrEmptyCompletion  = errors.New("LLM_EMPTY_COMPLETION")
)

// CompletionOptions are the generation parameters sent with a prompt.
type CompletionOptions struct {
	Temperature float64
	MaxTokens   int
}

// Completer issues one single-shot completion. Implementations do not retry.
type Completer interface {
	Complete(ctx context.Context, prompt, task string, opts CompletionOptions) (string, error)
}

// CompleterFunc adapts a function to Completer.
type CompleterFunc func(ctx context.Context, prompt, task string, opts CompletionOptions) (string, error)

func (f CompleterFunc) Complete(ctx context.Context, prompt, task string, opts CompletionOptions) (string, error) {
	return f(ctx, prompt, task, opts)
}

type Config struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

// Client posts prompts to <BaseURL>/api/ai/generate.
type Client struct {
	config   *Config
	endpoint string
	client   *httpclient.Client
	logger   logger.Logger
}

func NewClient(config *Config, log logger.Logger) *Client {
	return &Client{
		config:   config,
		endpoint: strings.TrimRight(config.BaseURL, "/") + "/api/ai/generate",
		client:   httpclient.NewClient(config.Timeout).WithBearer(config.APIKey),
		logger:   log.With(map[string]interface{}{"component": "genai"}),
	}
}

type generateRequest struct {
	Prompt      string  `json:"prompt"`
	Task        string  `json:"task"`
	Temperature float64 `json:"temperature"`
	MaxTokens   int     `json:"max_tokens"`
}

type generateResponse struct {
	Text string `json:"text"`
}

func (c *Client) Complete(ctx context.Context, prompt, task string, opts CompletionOptions) (string, error) {
	in := generateRequest{
		Prompt:      prompt,
		Task:        task,
		Temperature: opts.Temperature,
		MaxTokens:   opts.MaxTokens,
	}

	start := time.Now()
	var out generateResponse
	if err := c.client.PostJSON(ctx, c.endpoint, in, &out); err != nil {
		if ctx.Err() != nil || errors.Is(err, context.DeadlineExceeded) || isTimeout(err) {
			return "", ErrLLMTimeout
		}
		return "", fmt.Errorf("%w: %v", ErrLLMRequestFailed, err)
	}
	if strings.TrimSpace(out.Text) == "" {
		return "", ErrEmptyCompletion
	}

	c.logger.Debug("completion received", map[string]interface{}{
		"task":       task,
		"durationMs": time.Since(start).Milliseconds(),
		"chars":      len(out.Text),
	})

	return out.Text, nil
}

func isTimeout(err error) bool {
	var t interface{ Timeout() bool }
	return errors.As(err, &t) && t.Timeout()
}

// ExtractJSON strips markdown code fences and any prose around the first
// JSON object in a completion.
func ExtractJSON(text string) string {
	s := strings.TrimSpace(text)

	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```")
		if nl := strings.IndexByte(s, '\n'); nl >= 0 {
			s = s[nl+1:]
		} else {
			s = strings.TrimPrefix(s, "json")
		}
		if end := strings.LastIndex(s, "```"); end >= 0 {
			s = s[:end]
		}
		s = strings.TrimSpace(s)
	}

	start := strings.IndexByte(s, '{')
	end := strings.LastIndexByte(s, '}')
	if start >= 0 && end > start {
		return s[start : end+1]
	}
	return s
}
