// Package toolcall defines the canonical, OpenAI-shaped request/response
// representation that the dialect adapters translate into and the core
// pipeline (prompt injection, message rewriting, streaming detection)
// operates on.
package toolcall

import "encoding/json"

// Role is the canonical message role.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
	RoleDeveloper Role = "developer"
)

// Message is a single turn in a canonical conversation. Content is kept as
// raw JSON because both public dialects allow either a plain string or an
// array of content parts, and the core only needs to read/rewrite text —
// it never needs to round-trip image or file parts structurally.
type Message struct {
	Role       Role            `json:"role"`
	Content    json.RawMessage `json:"content,omitempty"`
	Name       string          `json:"name,omitempty"`
	ToolCalls  []ToolCall      `json:"tool_calls,omitempty"`
	ToolCallID string          `json:"tool_call_id,omitempty"`
}

// ToolCall is the canonical function-call shape shared by both dialects.
type ToolCall struct {
	ID       string       `json:"id"`
	Type     string       `json:"type"`
	Function FunctionCall `json:"function"`
}

// FunctionCall carries the tool name and its JSON-encoded argument object.
type FunctionCall struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// ToolSchema is a client-declared tool, read-only to the core.
type ToolSchema struct {
	Type     string       `json:"type"`
	Function FunctionSpec `json:"function"`
}

// FunctionSpec describes one callable function.
type FunctionSpec struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description,omitempty"`
	Parameters  map[string]interface{} `json:"parameters,omitempty"`
}

// ToolChoice mirrors OpenAI's tool_choice union: either the bare strings
// "auto"/"none"/"required", or {"type":"function","function":{"name":...}}.
type ToolChoice struct {
	raw json.RawMessage
}

// UnmarshalJSON accepts both the string and object forms.
func (t *ToolChoice) UnmarshalJSON(data []byte) error {
	t.raw = append([]byte(nil), data...)
	return nil
}

// MarshalJSON re-emits whatever was parsed.
func (t ToolChoice) MarshalJSON() ([]byte, error) {
	if t.raw == nil {
		return []byte("null"), nil
	}
	return t.raw, nil
}

// IsZero reports whether no tool_choice was supplied.
func (t ToolChoice) IsZero() bool {
	return len(t.raw) == 0 || string(t.raw) == "null"
}

// AsString returns the bare-string form ("none", "auto", "required") and
// whether the value was in fact a string.
func (t ToolChoice) AsString() (string, bool) {
	if t.IsZero() {
		return "", false
	}
	var s string
	if err := json.Unmarshal(t.raw, &s); err != nil {
		return "", false
	}
	return s, true
}

// AsNamedFunction returns the forced tool name when tool_choice has the
// {"type":"function","function":{"name":...}} shape.
func (t ToolChoice) AsNamedFunction() (string, bool) {
	if t.IsZero() {
		return "", false
	}
	var obj struct {
		Type     string `json:"type"`
		Function struct {
			Name string `json:"name"`
		} `json:"function"`
	}
	if err := json.Unmarshal(t.raw, &obj); err != nil {
		return "", false
	}
	if obj.Type != "function" || obj.Function.Name == "" {
		return "", false
	}
	return obj.Function.Name, true
}

// Usage is the token accounting block shared by both dialects on the wire.
type Usage struct {
	PromptTokens     int64 `json:"prompt_tokens,omitempty"`
	CompletionTokens int64 `json:"completion_tokens,omitempty"`
	TotalTokens      int64 `json:"total_tokens,omitempty"`
}

// Request is the canonical chat-completion request the core pipeline
// works from: the prompt injector adds the system prompt, the rewriter
// folds tool turns into plain text, and the gateway clears
// Tools/ToolChoice on the copy it sends upstream.
type Request struct {
	Model       string      `json:"model"`
	Messages    []Message   `json:"messages"`
	Tools       []ToolSchema `json:"tools,omitempty"`
	ToolChoice  ToolChoice  `json:"tool_choice,omitempty"`
	Stream      bool        `json:"stream,omitempty"`
	Temperature *float64    `json:"temperature,omitempty"`
	TopP        *float64    `json:"top_p,omitempty"`
	MaxTokens   *int64      `json:"max_tokens,omitempty"`
	Stop        interface{} `json:"stop,omitempty"`
}

// Choice is one completion choice in a canonical (unary) response.
type Choice struct {
	Index        int       `json:"index"`
	Message      Message   `json:"message"`
	FinishReason string    `json:"finish_reason"`
}

// Response is the canonical chat-completion response.
type Response struct {
	ID      string   `json:"id"`
	Object  string   `json:"object"`
	Created int64    `json:"created"`
	Model   string   `json:"model"`
	Choices []Choice `json:"choices"`
	Usage   *Usage   `json:"usage,omitempty"`
}

// ContentText extracts the plain-text reading of a message's Content field,
// whether it was encoded as a bare JSON string or an array of
// {"type":"text","text":...} parts (the shape both dialects allow).
func ContentText(content json.RawMessage) string {
	if len(content) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(content, &s); err == nil {
		return s
	}
	var parts []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	}
	if err := json.Unmarshal(content, &parts); err == nil {
		out := ""
		for _, p := range parts {
			if p.Type == "text" || p.Type == "" {
				out += p.Text
			}
		}
		return out
	}
	return ""
}

// TextContent wraps a plain string as a Content value.
func TextContent(text string) json.RawMessage {
	b, _ := json.Marshal(text)
	return b
}
