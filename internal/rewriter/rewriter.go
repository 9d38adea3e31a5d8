// Package rewriter implements the message rewriter (C2): it folds
// tool-role turns and assistant tool_calls back into plain text the
// backend can read, since the backend has no native notion of either.
package rewriter

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/funnycups/toolify-go/internal/idmap"
	"github.com/funnycups/toolify-go/internal/toolcall"
)

// Rewrite returns a new message slice where every "tool" role message and
// every assistant message carrying ToolCalls has been converted to an
// ordinary user/assistant text turn. idMap supplies the original tool
// name for a tool-result message; convertDeveloper controls whether
// "developer" role messages become "system" for upstream compatibility.
func Rewrite(messages []toolcall.Message, signal string, idMap *idmap.Map, convertDeveloper bool) []toolcall.Message {
	out := make([]toolcall.Message, 0, len(messages))
	for _, msg := range messages {
		switch {
		case msg.Role == toolcall.RoleTool:
			if rewritten, ok := rewriteToolResult(msg, idMap); ok {
				out = append(out, rewritten)
			}
		case msg.Role == toolcall.RoleAssistant && len(msg.ToolCalls) > 0:
			out = append(out, rewriteAssistantToolCalls(msg, signal))
		case msg.Role == toolcall.RoleDeveloper && convertDeveloper:
			converted := msg
			converted.Role = toolcall.RoleSystem
			out = append(out, converted)
		default:
			out = append(out, msg)
		}
	}
	return out
}

// rewriteToolResult converts a tool-role message into a user message
// wrapping the result in the <tool_result> envelope the prompt tells the
// model to expect.
func rewriteToolResult(msg toolcall.Message, idMap *idmap.Map) (toolcall.Message, bool) {
	content := toolcall.ContentText(msg.Content)
	if msg.ToolCallID == "" || content == "" {
		return toolcall.Message{}, false
	}

	var formatted string
	if entry, ok := idMap.Get(msg.ToolCallID); ok {
		formatted = fmt.Sprintf("Tool execution result:\n- Tool name: %s\n- Execution result:\n<tool_result>\n%s\n</tool_result>", entry.Name, content)
	} else {
		formatted = fmt.Sprintf("Tool execution result:\n<tool_result>\n%s\n</tool_result>", content)
	}

	return toolcall.Message{
		Role:    toolcall.RoleUser,
		Content: toolcall.TextContent(formatted),
	}, true
}

// rewriteAssistantToolCalls re-encodes an assistant message's structured
// ToolCalls as the same XML block the model is asked to emit, appended
// after any existing text content, so that multi-turn tool conversations
// stay legible to a backend replaying its own prior turn.
func rewriteAssistantToolCalls(msg toolcall.Message, signal string) toolcall.Message {
	var blocks []string
	for _, tc := range msg.ToolCalls {
		blocks = append(blocks, formatToolCallXML(tc))
	}
	xmlBlock := fmt.Sprintf("%s\n<function_calls>\n%s\n</function_calls>", signal, strings.Join(blocks, "\n"))

	original := toolcall.ContentText(msg.Content)
	final := strings.TrimSpace(original + "\n" + xmlBlock)

	return toolcall.Message{
		Role:    toolcall.RoleAssistant,
		Content: toolcall.TextContent(final),
		Name:    msg.Name,
	}
}

func formatToolCallXML(tc toolcall.ToolCall) string {
	argsMap := map[string]interface{}{}
	if err := json.Unmarshal([]byte(tc.Function.Arguments), &argsMap); err != nil {
		argsMap = map[string]interface{}{"raw_arguments": tc.Function.Arguments}
	}

	var argParts []string
	for key, value := range argsMap {
		jsonVal, err := json.Marshal(value)
		if err != nil {
			continue
		}
		argParts = append(argParts, fmt.Sprintf("<%s>%s</%s>", key, jsonVal, key))
	}

	return fmt.Sprintf("<function_call>\n<tool>%s</tool>\n<args>\n%s\n</args>\n</function_call>",
		tc.Function.Name, strings.Join(argParts, "\n"))
}

// ToolChoiceInstruction mirrors safe_process_tool_choice: it returns the
// extra instruction text to append to the injected system prompt for a
// given tool_choice value, or "" when none applies.
func ToolChoiceInstruction(tc toolcall.ToolChoice) string {
	if tc.IsZero() {
		return ""
	}
	if s, ok := tc.AsString(); ok {
		if s == "none" {
			return "\n\n**IMPORTANT:** You are prohibited from using any tools in this round. Please respond like a normal chat assistant and answer the user's question directly."
		}
		return ""
	}
	if name, ok := tc.AsNamedFunction(); ok {
		return fmt.Sprintf("\n\n**IMPORTANT:** In this round, you must use ONLY the tool named `%s`. Generate the necessary parameters and output in the specified XML format.", name)
	}
	return ""
}
