// Package xmlparse extracts the textual <function_calls> block the
// pipeline asks backends to emit and decodes it into structured tool
// calls. It is deliberately regex/scan-based rather than a real XML
// parser: the wire format is not well-formed XML (hyphen-prefixed tag
// names, unescaped values) and a strict parser would reject exactly the
// inputs this exists to handle.
package xmlparse

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/funnycups/toolify-go/internal/jsonrepair"
)

// Call is one parsed tool invocation: Name plus its raw argument tags, in
// first-seen-wins order is not required — last duplicate key wins, as in
// a normal map assignment.
type Call struct {
	Name string
	Args map[string]string
}

var (
	funcCallsRe = regexp.MustCompile(`(?s)<function_calls>(.*?)</function_calls>`)
	funcCallRe  = regexp.MustCompile(`(?s)<function_call>(.*?)</function_call>`)
	toolRe      = regexp.MustCompile(`(?s)<tool>(.*?)</tool>`)
	argsBlockRe = regexp.MustCompile(`(?s)<args>(.*?)</args>`)
)

// StripThinkBlocks removes every <think>...</think> span, honoring nesting,
// so that a tool-call sentinel or XML tag the model happens to echo inside
// its reasoning trace never confuses the parser. The original text is
// untouched by the caller; the stripped copy is only used for parsing.
func StripThinkBlocks(text string) string {
	const open, close = "<think>", "</think>"
	for strings.Contains(text, open) && strings.Contains(text, close) {
		start := strings.Index(text, open)
		if start == -1 {
			break
		}
		pos := start + len(open)
		depth := 1
		for pos < len(text) && depth > 0 {
			switch {
			case strings.HasPrefix(text[pos:], open):
				depth++
				pos += len(open)
			case strings.HasPrefix(text[pos:], close):
				depth--
				pos += len(close)
			default:
				pos++
			}
		}
		if depth == 0 {
			text = text[:start] + text[pos:]
		} else {
			break
		}
	}
	return text
}

// Parse strips <think> blocks from text, finds the last occurrence of
// signal in the result, then decodes the <function_calls> block that
// follows it. It returns nil if the signal or a well-formed
// block is not present.
func Parse(text, signal string) []Call {
	if text == "" || !strings.Contains(text, signal) {
		return nil
	}

	cleaned := StripThinkBlocks(text)

	lastPos := strings.LastIndex(cleaned, signal)
	if lastPos == -1 {
		return nil
	}
	afterSignal := cleaned[lastPos:]

	blockMatch := funcCallsRe.FindStringSubmatch(afterSignal)
	if blockMatch == nil {
		return nil
	}
	callsContent := blockMatch[1]

	callBlocks := funcCallRe.FindAllStringSubmatch(callsContent, -1)
	var results []Call
	for _, cb := range callBlocks {
		block := cb[1]
		toolMatch := toolRe.FindStringSubmatch(block)
		if toolMatch == nil {
			continue
		}
		name := strings.TrimSpace(toolMatch[1])
		args := map[string]string{}
		if argsMatch := argsBlockRe.FindStringSubmatch(block); argsMatch != nil {
			for k, v := range parseArgTags(argsMatch[1]) {
				args[k] = v
			}
		}
		results = append(results, Call{Name: name, Args: args})
	}
	if len(results) == 0 {
		return nil
	}
	return results
}

// parseArgTags scans a run of <KEY>VALUE</KEY> pairs where KEY may contain
// hyphens (e.g. "-i", "-C") and may repeat, last write wins. A hand-rolled
// scanner is used instead of a single backreference regexp, since Go's
// RE2 engine does not support backreferences.
func parseArgTags(content string) map[string]string {
	out := map[string]string{}
	i := 0
	for i < len(content) {
		if content[i] != '<' {
			i++
			continue
		}
		end := strings.IndexByte(content[i+1:], '>')
		if end == -1 {
			break
		}
		tag := content[i+1 : i+1+end]
		if tag == "" || strings.ContainsAny(tag, " />") {
			i += 1 + end + 1
			continue
		}
		closeTag := "</" + tag + ">"
		bodyStart := i + 1 + end + 1
		closeIdx := strings.Index(content[bodyStart:], closeTag)
		if closeIdx == -1 {
			i = bodyStart
			continue
		}
		out[tag] = content[bodyStart : bodyStart+closeIdx]
		i = bodyStart + closeIdx + len(closeTag)
	}
	return out
}

// CoerceValue mirrors the Python source's best-effort json.loads: a raw
// argument value is decoded as JSON when possible (so "true", "3", and
// `["a","b"]` become their native types), otherwise kept as the literal
// string.
func CoerceValue(raw string) interface{} {
	var v interface{}
	if err := json.Unmarshal([]byte(raw), &v); err == nil {
		return v
	}

	trimmed := strings.TrimSpace(raw)
	if strings.HasPrefix(trimmed, "{") || strings.HasPrefix(trimmed, "[") {
		if fixed, err := jsonrepair.Fix(trimmed); err == nil {
			if err := json.Unmarshal([]byte(fixed), &v); err == nil {
				return v
			}
		}
	}
	return raw
}

// ArgsToJSON converts a Call's raw string args into a JSON object string
// suitable for FunctionCall.Arguments, coercing each value the way
// CoerceValue does.
func ArgsToJSON(args map[string]string) string {
	coerced := make(map[string]interface{}, len(args))
	for k, v := range args {
		coerced[k] = CoerceValue(v)
	}
	b, err := json.Marshal(coerced)
	if err != nil {
		return "{}"
	}
	return string(b)
}
