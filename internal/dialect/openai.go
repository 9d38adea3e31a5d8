// Package dialect translates between the canonical, OpenAI-shaped request
// and the two public wire dialects the gateway accepts from clients:
// OpenAI Chat Completions (the canonical shape itself) and Anthropic
// Messages.
package dialect

import (
	"encoding/json"

	"github.com/funnycups/toolify-go/internal/toolcall"
)

// Dialect identifies which public wire format a request/response pair uses.
type Dialect string

const (
	OpenAI    Dialect = "openai"
	Anthropic Dialect = "anthropic"
)

// DecodeOpenAIRequest parses an OpenAI-shaped request body directly into
// the canonical Request, since OpenAI Chat Completions is the pipeline's
// canonical shape.
func DecodeOpenAIRequest(body []byte) (*toolcall.Request, error) {
	var req toolcall.Request
	if err := json.Unmarshal(body, &req); err != nil {
		return nil, err
	}
	return &req, nil
}

// EncodeOpenAIResponse serializes a canonical Response unchanged, as the
// OpenAI Chat Completions wire shape.
func EncodeOpenAIResponse(resp *toolcall.Response) ([]byte, error) {
	return json.Marshal(resp)
}

// OpenAIStreamChunk is one "chat.completion.chunk" SSE payload.
type OpenAIStreamChunk struct {
	ID      string               `json:"id"`
	Object  string               `json:"object"`
	Created int64                `json:"created"`
	Model   string               `json:"model"`
	Choices []OpenAIStreamChoice `json:"choices"`
}

// OpenAIStreamChoice is one choice within a streamed chunk.
type OpenAIStreamChoice struct {
	Index        int                 `json:"index"`
	Delta        OpenAIStreamDelta   `json:"delta"`
	FinishReason *string             `json:"finish_reason"`
}

// OpenAIStreamDelta is the incremental content of a streamed chunk.
type OpenAIStreamDelta struct {
	Role      string              `json:"role,omitempty"`
	Content   *string             `json:"content,omitempty"`
	ToolCalls []OpenAIToolCallDelta `json:"tool_calls,omitempty"`
}

// OpenAIToolCallDelta is one tool-call fragment within a streamed delta.
type OpenAIToolCallDelta struct {
	Index    int                      `json:"index"`
	ID       string                   `json:"id,omitempty"`
	Type     string                   `json:"type,omitempty"`
	Function OpenAIFunctionCallDelta  `json:"function"`
}

// OpenAIFunctionCallDelta carries the name/arguments fragment of a
// streamed tool-call delta.
type OpenAIFunctionCallDelta struct {
	Name      string `json:"name,omitempty"`
	Arguments string `json:"arguments,omitempty"`
}
