// Package tokenest estimates token usage with tiktoken-go when an
// upstream's response omits the usage object. It is a best-effort
// fallback, never authoritative: callers must prefer any usage reported
// directly by an upstream.
package tokenest

import (
	"github.com/pkoukk/tiktoken-go"

	"github.com/funnycups/toolify-go/internal/toolcall"
)

const defaultEncoding = "cl100k_base"

// per-message chat formatting overhead, following OpenAI's published
// counting convention.
const (
	messageOverhead = 4
	replyPriming    = 2
)

// Estimator wraps a tiktoken encoder.
type Estimator struct {
	enc *tiktoken.Tiktoken
}

// New builds an Estimator, falling back to cl100k_base if the requested
// model has no known encoding.
func New(model string) (*Estimator, error) {
	enc, err := tiktoken.EncodingForModel(model)
	if err != nil {
		enc, err = tiktoken.GetEncoding(defaultEncoding)
		if err != nil {
			return nil, err
		}
	}
	return &Estimator{enc: enc}, nil
}

// Count returns the token length of text.
func (e *Estimator) Count(text string) int {
	if text == "" {
		return 0
	}
	return len(e.enc.Encode(text, nil, nil))
}

// CountMessages sums token counts across messages, with per-message
// overhead and the assistant-reply priming tokens.
func (e *Estimator) CountMessages(messages []toolcall.Message) int {
	if len(messages) == 0 {
		return 0
	}
	total := replyPriming
	for _, m := range messages {
		total += messageOverhead
		total += e.Count(string(m.Role))
		total += e.Count(toolcall.ContentText(m.Content))
		for _, tc := range m.ToolCalls {
			total += e.Count(tc.Function.Name)
			total += e.Count(tc.Function.Arguments)
		}
	}
	return total
}

// EstimateUsage produces a best-effort Usage block from the request
// messages and the completion text, for upstreams that omit usage.
func EstimateUsage(model string, reqMessages []toolcall.Message, completionText string) (toolcall.Usage, error) {
	est, err := New(model)
	if err != nil {
		return toolcall.Usage{}, err
	}
	prompt := int64(est.CountMessages(reqMessages))
	completion := int64(est.Count(completionText))
	return toolcall.Usage{
		PromptTokens:     prompt,
		CompletionTokens: completion,
		TotalTokens:      prompt + completion,
	}, nil
}
