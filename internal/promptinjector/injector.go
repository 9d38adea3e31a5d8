// Package promptinjector builds the system-prompt text (C3) that teaches a
// tool-naive backend the textual calling convention and injects it as the
// first system message of a request.
package promptinjector

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/funnycups/toolify-go/internal/toolcall"
)

// DefaultTemplate is used when no CustomTemplate is configured. It mirrors
// the structure of the source instructions exactly: the trigger signal on
// its own line, followed immediately by the XML block, plus the strict
// argument-key rules (hyphen-prefixed keys must keep their hyphen).
const DefaultTemplate = `You have access to the following powerful tools to help solve problems efficiently:

{{tools_list}}

**TOOL USAGE PRIORITY:**
Use tools proactively whenever a task can be accomplished with them instead of describing what you could do.

**TOOL CALL FORMAT:**
When you need to use tools, you MUST strictly follow this format. Do NOT include any extra text, explanations, or dialogue on the first and second lines of the tool call syntax:

1. When starting tool calls, begin on a new line with exactly:
{{trigger_signal}}
No leading or trailing spaces, output exactly as shown above. The trigger signal MUST be on its own line and appear only once.

2. Starting from the second line, immediately follow with the complete <function_calls> XML block.

3. For multiple tool calls, include multiple <function_call> blocks within the same <function_calls> wrapper.

4. Do not add any text or explanation after the closing </function_calls> tag.

STRICT ARGUMENT KEY RULES:
- You MUST use parameter keys EXACTLY as defined (case- and punctuation-sensitive). Do NOT rename, add, or remove characters.
- If a key starts with a hyphen (e.g., -i, -C), you MUST keep the hyphen in the tag name. Example: <-i>true</-i>, <-C>2</-C>.
- The <tool> tag must contain the exact name of a tool from the list. Any other tool name is invalid.
- The <args> must contain all required arguments for that tool.

Now please be ready to strictly follow the above specifications.
`

// Options configures prompt generation.
type Options struct {
	// CustomTemplate overrides DefaultTemplate. It must contain both the
	// "{{trigger_signal}}" and "{{tools_list}}" placeholders.
	CustomTemplate string
	// Optimize produces a shorter tool listing to reduce prompt token
	// usage, at the cost of parameter detail.
	Optimize bool
}

// Build renders the full injected system prompt text for the given tools
// and trigger signal.
func Build(tools []toolcall.ToolSchema, signal string, opts Options) string {
	template := opts.CustomTemplate
	if template == "" {
		template = DefaultTemplate
	}

	var listing []string
	for i, tool := range tools {
		listing = append(listing, describeTool(i, tool, opts.Optimize))
	}

	rendered := strings.ReplaceAll(template, "{{trigger_signal}}", signal)
	rendered = strings.ReplaceAll(rendered, "{{tools_list}}", strings.Join(listing, "\n\n"))
	return rendered
}

// Inject prepends the built prompt as a new system message if no system
// message exists yet, or appends it to the existing first system
// message's content otherwise, and returns the full message slice. Any
// tool-choice instruction must already be part of prompt.
func Inject(messages []toolcall.Message, prompt string) []toolcall.Message {
	for i, msg := range messages {
		if msg.Role == toolcall.RoleSystem {
			existing := toolcall.ContentText(msg.Content)
			merged := strings.TrimSpace(existing + "\n\n" + prompt)
			out := make([]toolcall.Message, len(messages))
			copy(out, messages)
			out[i].Content = toolcall.TextContent(merged)
			return out
		}
	}
	out := make([]toolcall.Message, 0, len(messages)+1)
	out = append(out, toolcall.Message{Role: toolcall.RoleSystem, Content: toolcall.TextContent(prompt)})
	out = append(out, messages...)
	return out
}

// constraintLines renders the remaining JSON-Schema fields a model needs
// to construct a valid argument: enum, default, examples, and the
// standard numeric/string/array constraints. Fields absent from info are
// skipped rather than rendered as empty.
func constraintLines(info map[string]interface{}) []string {
	var lines []string

	jsonLine := func(label string, key string) {
		if v, ok := info[key]; ok {
			if b, err := json.Marshal(v); err == nil {
				lines = append(lines, fmt.Sprintf("  - %s: %s", label, b))
			}
		}
	}
	jsonLine("enum", "enum")
	jsonLine("default", "default")
	jsonLine("examples", "examples")

	scalarLine := func(label string, key string) {
		if v, ok := info[key]; ok {
			lines = append(lines, fmt.Sprintf("  - %s: %v", label, v))
		}
	}
	scalarLine("minimum", "minimum")
	scalarLine("maximum", "maximum")
	scalarLine("minLength", "minLength")
	scalarLine("maxLength", "maxLength")
	scalarLine("pattern", "pattern")
	scalarLine("format", "format")
	scalarLine("uniqueItems", "uniqueItems")

	if items, ok := info["items"].(map[string]interface{}); ok {
		if itemType, ok := items["type"].(string); ok && itemType != "" {
			lines = append(lines, fmt.Sprintf("  - items.type: %s", itemType))
		}
	}

	return lines
}

func describeTool(index int, tool toolcall.ToolSchema, optimize bool) string {
	fn := tool.Function
	props, _ := fn.Parameters["properties"].(map[string]interface{})
	requiredRaw, _ := fn.Parameters["required"].([]interface{})
	required := make(map[string]bool, len(requiredRaw))
	for _, r := range requiredRaw {
		if s, ok := r.(string); ok {
			required[s] = true
		}
	}

	var detail []string
	for name, raw := range props {
		info, _ := raw.(map[string]interface{})
		ptype, _ := info["type"].(string)
		if ptype == "" {
			ptype = "any"
		}
		desc, _ := info["description"].(string)

		if optimize {
			status := "optional"
			if required[name] {
				status = "required"
			}
			if desc != "" {
				detail = append(detail, fmt.Sprintf("  - %s (%s, %s): %s", name, ptype, status, desc))
			} else {
				detail = append(detail, fmt.Sprintf("  - %s (%s, %s)", name, ptype, status))
			}
			continue
		}

		yn := "No"
		if required[name] {
			yn = "Yes"
		}
		detail = append(detail, fmt.Sprintf("- %s:\n  - type: %s\n  - required: %s", name, ptype, yn))
		if desc != "" {
			detail = append(detail, fmt.Sprintf("  - description: %s", desc))
		}
		detail = append(detail, constraintLines(info)...)
	}

	detailBlock := "(no parameter details)"
	if len(detail) > 0 {
		detailBlock = strings.Join(detail, "\n")
	}

	var requiredNames []string
	for name := range required {
		requiredNames = append(requiredNames, name)
	}
	requiredStr := "None"
	if len(requiredNames) > 0 {
		requiredStr = strings.Join(requiredNames, ", ")
	}

	desc := fn.Description
	if desc == "" {
		desc = "None"
	}

	if optimize {
		return fmt.Sprintf("%d. %s\n   %s\n   Parameters: %s\n%s", index+1, fn.Name, desc, requiredStr, detailBlock)
	}
	return fmt.Sprintf("%d. <tool name=\"%s\">\n   Description:\n   %s\n   Required parameters: %s\n   Parameter details:\n%s",
		index+1, fn.Name, desc, requiredStr, detailBlock)
}
