package rewriter

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/funnycups/toolify-go/internal/idmap"
	"github.com/funnycups/toolify-go/internal/toolcall"
)

const signal = "<Function_Ab1c_Start/>"

func TestRewriteToolResultWithKnownMapping(t *testing.T) {
	m := idmap.New(10, time.Hour, 0)
	defer m.Close()
	m.Store("call_1", "search", `{"q":"go"}`, "")

	msgs := []toolcall.Message{
		{Role: toolcall.RoleTool, ToolCallID: "call_1", Content: toolcall.TextContent("3 results found")},
	}
	out := Rewrite(msgs, signal, m, true)
	require.Len(t, out, 1)
	assert.Equal(t, toolcall.RoleUser, out[0].Role)
	text := toolcall.ContentText(out[0].Content)
	assert.Contains(t, text, "search")
	assert.Contains(t, text, "<tool_result>")
	assert.Contains(t, text, "3 results found")
}

func TestRewriteToolResultWithoutMapping(t *testing.T) {
	m := idmap.New(10, time.Hour, 0)
	defer m.Close()

	msgs := []toolcall.Message{
		{Role: toolcall.RoleTool, ToolCallID: "call_unknown", Content: toolcall.TextContent("result")},
	}
	out := Rewrite(msgs, signal, m, true)
	require.Len(t, out, 1)
	text := toolcall.ContentText(out[0].Content)
	assert.Contains(t, text, "<tool_result>")
	assert.NotContains(t, text, "Tool name:")
}

func TestRewriteSkipsInvalidToolMessage(t *testing.T) {
	m := idmap.New(10, time.Hour, 0)
	defer m.Close()

	msgs := []toolcall.Message{
		{Role: toolcall.RoleTool, ToolCallID: "", Content: toolcall.TextContent("result")},
	}
	out := Rewrite(msgs, signal, m, true)
	assert.Len(t, out, 0)
}

func TestRewriteAssistantToolCalls(t *testing.T) {
	m := idmap.New(10, time.Hour, 0)
	defer m.Close()

	msgs := []toolcall.Message{
		{
			Role:    toolcall.RoleAssistant,
			Content: toolcall.TextContent("Let me check."),
			ToolCalls: []toolcall.ToolCall{
				{ID: "call_1", Type: "function", Function: toolcall.FunctionCall{Name: "search", Arguments: `{"q":"go channels"}`}},
			},
		},
	}
	out := Rewrite(msgs, signal, m, true)
	require.Len(t, out, 1)
	text := toolcall.ContentText(out[0].Content)
	assert.Contains(t, text, "Let me check.")
	assert.Contains(t, text, signal)
	assert.Contains(t, text, "<tool>search</tool>")
	assert.Contains(t, text, `<q>"go channels"</q>`)
}

func TestRewriteDeveloperToSystem(t *testing.T) {
	m := idmap.New(10, time.Hour, 0)
	defer m.Close()

	msgs := []toolcall.Message{{Role: toolcall.RoleDeveloper, Content: toolcall.TextContent("be terse")}}
	out := Rewrite(msgs, signal, m, true)
	require.Len(t, out, 1)
	assert.Equal(t, toolcall.RoleSystem, out[0].Role)
}

func TestRewriteDeveloperKeptWhenNotConverting(t *testing.T) {
	m := idmap.New(10, time.Hour, 0)
	defer m.Close()

	msgs := []toolcall.Message{{Role: toolcall.RoleDeveloper, Content: toolcall.TextContent("be terse")}}
	out := Rewrite(msgs, signal, m, false)
	require.Len(t, out, 1)
	assert.Equal(t, toolcall.RoleDeveloper, out[0].Role)
}

func TestRewritePassesOtherRolesUnchanged(t *testing.T) {
	m := idmap.New(10, time.Hour, 0)
	defer m.Close()

	msgs := []toolcall.Message{{Role: toolcall.RoleUser, Content: toolcall.TextContent("hi")}}
	out := Rewrite(msgs, signal, m, true)
	require.Len(t, out, 1)
	assert.Equal(t, msgs[0], out[0])
}

func TestToolChoiceInstructionNone(t *testing.T) {
	var tc toolcall.ToolChoice
	require.NoError(t, tc.UnmarshalJSON([]byte(`"none"`)))
	assert.Contains(t, ToolChoiceInstruction(tc), "prohibited")
}

func TestToolChoiceInstructionNamedFunction(t *testing.T) {
	var tc toolcall.ToolChoice
	require.NoError(t, tc.UnmarshalJSON([]byte(`{"type":"function","function":{"name":"search"}}`)))
	assert.Contains(t, ToolChoiceInstruction(tc), "`search`")
}

func TestToolChoiceInstructionAutoIsEmpty(t *testing.T) {
	var tc toolcall.ToolChoice
	require.NoError(t, tc.UnmarshalJSON([]byte(`"auto"`)))
	assert.Equal(t, "", ToolChoiceInstruction(tc))
}

func TestToolChoiceInstructionZero(t *testing.T) {
	var tc toolcall.ToolChoice
	assert.Equal(t, "", ToolChoiceInstruction(tc))
}
