package dialect

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/funnycups/toolify-go/internal/toolcall"
)

func TestDecodeOpenAIRequest(t *testing.T) {
	body := []byte(`{"model":"gpt-4","messages":[{"role":"user","content":"hi"}]}`)
	req, err := DecodeOpenAIRequest(body)
	require.NoError(t, err)
	assert.Equal(t, "gpt-4", req.Model)
	require.Len(t, req.Messages, 1)
}

func TestDecodeAnthropicRequestBasic(t *testing.T) {
	body := []byte(`{
		"model": "claude-3-opus",
		"max_tokens": 1024,
		"system": "Be terse.",
		"messages": [{"role":"user","content":"hello"}]
	}`)
	req, err := DecodeAnthropicRequest(body)
	require.NoError(t, err)
	require.Len(t, req.Messages, 2)
	assert.Equal(t, toolcall.RoleSystem, req.Messages[0].Role)
	assert.Equal(t, "Be terse.", toolcall.ContentText(req.Messages[0].Content))
	assert.Equal(t, toolcall.RoleUser, req.Messages[1].Role)
}

func TestDecodeAnthropicRequestWithToolUseAndResult(t *testing.T) {
	body := []byte(`{
		"model": "claude-3-opus",
		"max_tokens": 1024,
		"messages": [
			{"role":"assistant","content":[{"type":"text","text":"checking"},{"type":"tool_use","id":"call_1","name":"search","input":{"q":"go"}}]},
			{"role":"user","content":[{"type":"tool_result","tool_use_id":"call_1","content":"3 results"}]}
		]
	}`)
	req, err := DecodeAnthropicRequest(body)
	require.NoError(t, err)
	require.Len(t, req.Messages, 2)

	assistant := req.Messages[0]
	assert.Equal(t, toolcall.RoleAssistant, assistant.Role)
	require.Len(t, assistant.ToolCalls, 1)
	assert.Equal(t, "search", assistant.ToolCalls[0].Function.Name)

	toolMsg := req.Messages[1]
	assert.Equal(t, toolcall.RoleTool, toolMsg.Role)
	assert.Equal(t, "call_1", toolMsg.ToolCallID)
	assert.Equal(t, "3 results", toolcall.ContentText(toolMsg.Content))
}

func TestDecodeAnthropicToolsAndToolChoice(t *testing.T) {
	body := []byte(`{
		"model": "claude-3-opus",
		"max_tokens": 100,
		"messages": [{"role":"user","content":"hi"}],
		"tools": [{"name":"search","description":"search the web","input_schema":{"type":"object"}}],
		"tool_choice": {"type":"tool","name":"search"}
	}`)
	req, err := DecodeAnthropicRequest(body)
	require.NoError(t, err)
	require.Len(t, req.Tools, 1)
	assert.Equal(t, "search", req.Tools[0].Function.Name)

	name, ok := req.ToolChoice.AsNamedFunction()
	require.True(t, ok)
	assert.Equal(t, "search", name)
}

func TestEncodeAnthropicResponse(t *testing.T) {
	resp := &toolcall.Response{
		ID:    "chatcmpl-1",
		Model: "gpt-4",
		Choices: []toolcall.Choice{
			{
				Message: toolcall.Message{
					Role:    toolcall.RoleAssistant,
					Content: toolcall.TextContent("here you go"),
					ToolCalls: []toolcall.ToolCall{
						{ID: "call_1", Type: "function", Function: toolcall.FunctionCall{Name: "search", Arguments: `{"q":"go"}`}},
					},
				},
				FinishReason: "tool_calls",
			},
		},
		Usage: &toolcall.Usage{PromptTokens: 10, CompletionTokens: 5},
	}

	out, err := EncodeAnthropicResponse(resp)
	require.NoError(t, err)
	assert.Equal(t, "tool_use", out.StopReason)
	require.Len(t, out.Content, 2)
	assert.Equal(t, "text", out.Content[0].Type)
	assert.Equal(t, "tool_use", out.Content[1].Type)
	assert.Equal(t, int64(10), out.Usage.InputTokens)
}

func TestAnthropicStreamEncoderSequence(t *testing.T) {
	enc := NewAnthropicStreamEncoder()
	start := enc.MessageStart("msg_1", "gpt-4")
	assert.Equal(t, "message_start", start.Name)

	deltas := enc.TextDelta("hello")
	require.Len(t, deltas, 2)
	assert.Equal(t, "content_block_start", deltas[0].Name)
	assert.Equal(t, "content_block_delta", deltas[1].Name)

	closeEvents := enc.CloseText()
	require.Len(t, closeEvents, 1)
	assert.Equal(t, "content_block_stop", closeEvents[0].Name)

	toolEvents := enc.ToolCall("call_1", "search", `{"q":"go"}`)
	require.Len(t, toolEvents, 3)
	assert.Equal(t, "content_block_start", toolEvents[0].Name)
	assert.Equal(t, "content_block_delta", toolEvents[1].Name)
	assert.Equal(t, "content_block_stop", toolEvents[2].Name)

	var block map[string]interface{}
	require.NoError(t, json.Unmarshal(toolEvents[0].Data, &block))
	assert.Equal(t, float64(1), block["index"])

	stopEvents := enc.MessageStop("tool_use", AnthropicUsage{InputTokens: 1, OutputTokens: 2})
	require.Len(t, stopEvents, 2)
	assert.Equal(t, "message_delta", stopEvents[0].Name)
	assert.Equal(t, "message_stop", stopEvents[1].Name)
}
