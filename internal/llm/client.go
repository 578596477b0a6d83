// Package llm wraps Genkit model calls with timeout, rate limiting, and
// bounded retry.
package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
	"golang.org/x/time/rate"
)

// Client issues completions against a single configured model.
// Failures are returned to the caller; nothing here degrades silently.
type Client struct {
	g       *genkit.Genkit
	model   string
	timeout time.Duration
	retry   RetryConfig
	limiter *rate.Limiter
	logger  *slog.Logger
}

// NewClient creates a model client. limiter may be nil to disable rate
// limiting (tests).
func NewClient(g *genkit.Genkit, model string, timeout time.Duration, retry RetryConfig, limiter *rate.Limiter, logger *slog.Logger) *Client {
	return &Client{
		g:       g,
		model:   model,
		timeout: timeout,
		retry:   retry,
		limiter: limiter,
		logger:  logger,
	}
}

// Complete sends a prompt and returns the model's trimmed text response.
func (c *Client) Complete(ctx context.Context, prompt string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	resp, err := c.generateWithRetry(ctx, prompt)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(resp.Text()), nil
}

// CompleteJSON sends a prompt that must yield a JSON document and unmarshals
// it into out. Code fences around the payload are tolerated; anything else
// malformed is an error.
func (c *Client) CompleteJSON(ctx context.Context, prompt string, out any) error {
	text, err := c.Complete(ctx, prompt)
	if err != nil {
		return err
	}

	text = stripCodeFences(text)
	if err := json.Unmarshal([]byte(text), out); err != nil {
		return fmt.Errorf("parsing model output: %w (raw: %q)", err, truncate(text, 200))
	}
	return nil
}

// generateWithRetry runs the model call with exponential backoff.
// Each attempt waits on the rate limiter first.
func (c *Client) generateWithRetry(ctx context.Context, prompt string) (*ai.ModelResponse, error) {
	var lastErr error
	delay := c.retry.InitialInterval
	start := time.Now()

	for attempt := 0; attempt <= c.retry.MaxRetries; attempt++ {
		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return nil, fmt.Errorf("rate limit wait: %w", err)
			}
		}

		resp, err := genkit.Generate(ctx, c.g,
			ai.WithModelName(c.model),
			ai.WithPrompt(prompt),
		)
		if err == nil {
			c.logger.Debug("model call succeeded",
				"attempts", attempt+1,
				"elapsed", time.Since(start),
			)
			return resp, nil
		}

		lastErr = err

		if !retryableError(err) {
			return nil, fmt.Errorf("generating response: %w", err)
		}
		if attempt == c.retry.MaxRetries {
			break
		}

		c.logger.Debug("retrying model call",
			"attempt", attempt+1,
			"delay", delay,
			"error", err,
		)

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("context canceled during retry: %w", ctx.Err())
		case <-time.After(delay):
			delay = min(delay*2, c.retry.MaxInterval)
		}
	}

	return nil, fmt.Errorf("generating response after %d retries (elapsed: %v): %w",
		c.retry.MaxRetries, time.Since(start), lastErr)
}

// stripCodeFences removes ```json ... ``` wrapping from model output.
func stripCodeFences(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		if idx := strings.Index(s, "\n"); idx != -1 {
			s = s[idx+1:]
		}
		if idx := strings.LastIndex(s, "```"); idx != -1 {
			s = s[:idx]
		}
		s = strings.TrimSpace(s)
	}
	return s
}

// truncate shortens s to at most n bytes for error messages.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
