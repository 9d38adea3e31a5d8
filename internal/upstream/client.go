// Package upstream dispatches requests to configured backend services: a
// shared pooled HTTP client, an outbound rate-shaping limiter per base URL, and
// helpers for reading both unary JSON and SSE streaming responses.
package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/funnycups/toolify-go/internal/retry"
	"github.com/funnycups/toolify-go/internal/router"
)

// DefaultClient is shared across all upstreams; individual dial shaping is
// done per-upstream via the limiter in Pool, not via per-host clients.
var DefaultClient = &http.Client{
	Timeout: 180 * time.Second,
	Transport: &http.Transport{
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 20,
		IdleConnTimeout:     90 * time.Second,
	},
}

// Pool hands out a rate limiter per upstream base URL, so a single slow
// or misbehaving backend can be dial-shaped without affecting others.
// This is a defensive outbound ceiling, not client-facing quota
// enforcement.
type Pool struct {
	client     *http.Client
	ratePerSec float64
	burst      int

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

// NewPool builds a Pool. ratePerSec<=0 disables rate shaping entirely.
func NewPool(client *http.Client, ratePerSec float64, burst int) *Pool {
	if client == nil {
		client = DefaultClient
	}
	return &Pool{client: client, ratePerSec: ratePerSec, burst: burst, limiters: map[string]*rate.Limiter{}}
}

func (p *Pool) limiterFor(baseURL string) *rate.Limiter {
	if p.ratePerSec <= 0 {
		return nil
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	l, ok := p.limiters[baseURL]
	if !ok {
		l = rate.NewLimiter(rate.Limit(p.ratePerSec), p.burst)
		p.limiters[baseURL] = l
	}
	return l
}

// Dispatch sends body to one upstream's chat/completions endpoint and
// returns the raw HTTP response with the caller owning Body.Close(). The
// caller is responsible for checking StatusCode.
func (p *Pool) Dispatch(ctx context.Context, up router.Upstream, body []byte) (*http.Response, error) {
	if l := p.limiterFor(up.BaseURL); l != nil {
		if err := l.Wait(ctx); err != nil {
			return nil, fmt.Errorf("upstream: rate limiter wait: %w", err)
		}
	}

	url := up.BaseURL + "/chat/completions"

	var resp *http.Response
	retryCfg := retry.Config{MaxRetries: 2, InitialDelay: 200 * time.Millisecond, MaxDelay: 2 * time.Second, Multiplier: 2.0, Jitter: true, ShouldRetry: retry.IsRetryable}
	err := retry.Do(ctx, retryCfg, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
		if err != nil {
			return fmt.Errorf("upstream: build request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+up.APIKey)

		r, err := p.client.Do(req)
		if err != nil {
			return err
		}
		resp = r
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("upstream: request to %s: %w", up.Name, err)
	}
	return resp, nil
}

// ReadErrorBody reads and returns the body of a non-2xx response for
// logging/propagation, capped to avoid buffering an unbounded error page.
func ReadErrorBody(resp *http.Response) string {
	defer resp.Body.Close()
	limited := io.LimitReader(resp.Body, 64*1024)
	b, _ := io.ReadAll(limited)
	return string(b)
}

// UnaryDelta is the minimal shape read out of a non-streaming upstream
// chat-completion response, sufficient for the gateway to run the parser
// and rewrite the finish reason without depending on every optional
// OpenAI-compatible field.
type UnaryDelta struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Choices []struct {
		Index   int `json:"index"`
		Message struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage *struct {
		PromptTokens     int64 `json:"prompt_tokens"`
		CompletionTokens int64 `json:"completion_tokens"`
		TotalTokens      int64 `json:"total_tokens"`
	} `json:"usage"`
}

// DecodeUnary reads and parses a complete (non-streaming) JSON body.
func DecodeUnary(resp *http.Response) (*UnaryDelta, error) {
	defer resp.Body.Close()
	var out UnaryDelta
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("upstream: decode unary response: %w", err)
	}
	return &out, nil
}
