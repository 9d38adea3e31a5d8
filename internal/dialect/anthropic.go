package dialect

import (
	"encoding/json"
	"fmt"

	"github.com/funnycups/toolify-go/internal/toolcall"
)

// AnthropicRequest is the Messages API request shape.
type AnthropicRequest struct {
	Model       string              `json:"model"`
	MaxTokens   int64               `json:"max_tokens"`
	System      json.RawMessage     `json:"system,omitempty"`
	Messages    []AnthropicMessage  `json:"messages"`
	Tools       []AnthropicTool     `json:"tools,omitempty"`
	ToolChoice  json.RawMessage     `json:"tool_choice,omitempty"`
	Stream      bool                `json:"stream,omitempty"`
	Temperature *float64            `json:"temperature,omitempty"`
	TopP        *float64            `json:"top_p,omitempty"`
}

// AnthropicMessage is one turn; Content may be a string or a block array.
type AnthropicMessage struct {
	Role    string          `json:"role"`
	Content json.RawMessage `json:"content"`
}

// AnthropicContentBlock is one element of a block-array message content.
type AnthropicContentBlock struct {
	Type      string          `json:"type"`
	Text      string          `json:"text,omitempty"`
	ID        string          `json:"id,omitempty"`
	Name      string          `json:"name,omitempty"`
	Input     json.RawMessage `json:"input,omitempty"`
	ToolUseID string          `json:"tool_use_id,omitempty"`
	Content   json.RawMessage `json:"content,omitempty"`
}

// AnthropicTool is a client-declared tool in Anthropic's shape.
type AnthropicTool struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description,omitempty"`
	InputSchema map[string]interface{} `json:"input_schema"`
}

// AnthropicResponse is the non-streaming Messages API response.
type AnthropicResponse struct {
	ID         string                  `json:"id"`
	Type       string                  `json:"type"`
	Role       string                  `json:"role"`
	Model      string                  `json:"model"`
	Content    []AnthropicContentBlock `json:"content"`
	StopReason string                  `json:"stop_reason"`
	Usage      AnthropicUsage          `json:"usage"`
}

// AnthropicUsage is the token accounting block in Anthropic's naming.
type AnthropicUsage struct {
	InputTokens  int64 `json:"input_tokens"`
	OutputTokens int64 `json:"output_tokens"`
}

// DecodeAnthropicRequest converts an Anthropic Messages request into the
// canonical shape: system becomes the first system message, content
// blocks collapse to text plus structured tool_use/tool_result turns.
func DecodeAnthropicRequest(body []byte) (*toolcall.Request, error) {
	var req AnthropicRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return nil, err
	}

	var messages []toolcall.Message
	if len(req.System) > 0 {
		messages = append(messages, toolcall.Message{Role: toolcall.RoleSystem, Content: toolcall.TextContent(toolcall.ContentText(req.System))})
	}

	for _, m := range req.Messages {
		messages = append(messages, anthropicMessageToCanonical(m)...)
	}

	maxTok := req.MaxTokens
	canonical := &toolcall.Request{
		Model:       req.Model,
		Messages:    messages,
		Stream:      req.Stream,
		Temperature: req.Temperature,
		TopP:        req.TopP,
		MaxTokens:   &maxTok,
	}
	for _, t := range req.Tools {
		canonical.Tools = append(canonical.Tools, toolcall.ToolSchema{
			Type: "function",
			Function: toolcall.FunctionSpec{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  t.InputSchema,
			},
		})
	}
	if len(req.ToolChoice) > 0 {
		_ = canonical.ToolChoice.UnmarshalJSON(anthropicToolChoiceToOpenAI(req.ToolChoice))
	}
	return canonical, nil
}

func anthropicToolChoiceToOpenAI(raw json.RawMessage) []byte {
	var obj struct {
		Type string `json:"type"`
		Name string `json:"name"`
	}
	if err := json.Unmarshal(raw, &obj); err != nil {
		return []byte(`"auto"`)
	}
	switch obj.Type {
	case "auto":
		return []byte(`"auto"`)
	case "any":
		return []byte(`"required"`)
	case "tool":
		b, _ := json.Marshal(map[string]interface{}{"type": "function", "function": map[string]string{"name": obj.Name}})
		return b
	default:
		return []byte(`"auto"`)
	}
}

func anthropicMessageToCanonical(m AnthropicMessage) []toolcall.Message {
	role := toolcall.RoleUser
	if m.Role == "assistant" {
		role = toolcall.RoleAssistant
	}

	var asString string
	if err := json.Unmarshal(m.Content, &asString); err == nil {
		return []toolcall.Message{{Role: role, Content: toolcall.TextContent(asString)}}
	}

	var blocks []AnthropicContentBlock
	if err := json.Unmarshal(m.Content, &blocks); err != nil {
		return []toolcall.Message{{Role: role, Content: toolcall.TextContent("")}}
	}

	var text string
	var toolCalls []toolcall.ToolCall
	var toolResults []toolcall.Message
	for _, b := range blocks {
		switch b.Type {
		case "text":
			text += b.Text
		case "tool_use":
			toolCalls = append(toolCalls, toolcall.ToolCall{
				ID:   b.ID,
				Type: "function",
				Function: toolcall.FunctionCall{
					Name:      b.Name,
					Arguments: string(b.Input),
				},
			})
		case "tool_result":
			toolResults = append(toolResults, toolcall.Message{
				Role:       toolcall.RoleTool,
				ToolCallID: b.ToolUseID,
				Content:    toolcall.TextContent(toolcall.ContentText(b.Content)),
			})
		}
	}

	var out []toolcall.Message
	if role == toolcall.RoleUser && len(toolResults) > 0 {
		out = append(out, toolResults...)
		if text != "" {
			out = append(out, toolcall.Message{Role: toolcall.RoleUser, Content: toolcall.TextContent(text)})
		}
		return out
	}

	msg := toolcall.Message{Role: role, Content: toolcall.TextContent(text)}
	if len(toolCalls) > 0 {
		msg.ToolCalls = toolCalls
	}
	return []toolcall.Message{msg}
}

// EncodeAnthropicResponse converts a canonical Response into an Anthropic
// Messages response, re-segmenting the assistant message's text and tool
// calls into content blocks.
func EncodeAnthropicResponse(resp *toolcall.Response) (*AnthropicResponse, error) {
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("dialect: response has no choices to encode")
	}
	choice := resp.Choices[0]

	var blocks []AnthropicContentBlock
	if text := toolcall.ContentText(choice.Message.Content); text != "" {
		blocks = append(blocks, AnthropicContentBlock{Type: "text", Text: text})
	}
	for _, tc := range choice.Message.ToolCalls {
		blocks = append(blocks, AnthropicContentBlock{
			Type:  "tool_use",
			ID:    tc.ID,
			Name:  tc.Function.Name,
			Input: json.RawMessage(tc.Function.Arguments),
		})
	}

	return &AnthropicResponse{
		ID:         resp.ID,
		Type:       "message",
		Role:       "assistant",
		Model:      resp.Model,
		Content:    blocks,
		StopReason: mapFinishReasonToAnthropic(choice.FinishReason),
		Usage:      usageToAnthropic(resp.Usage),
	}, nil
}

func mapFinishReasonToAnthropic(reason string) string {
	switch reason {
	case "stop":
		return "end_turn"
	case "length":
		return "max_tokens"
	case "tool_calls":
		return "tool_use"
	default:
		return "end_turn"
	}
}

func usageToAnthropic(u *toolcall.Usage) AnthropicUsage {
	if u == nil {
		return AnthropicUsage{}
	}
	return AnthropicUsage{InputTokens: u.PromptTokens, OutputTokens: u.CompletionTokens}
}
