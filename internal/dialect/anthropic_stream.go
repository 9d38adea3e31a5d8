package dialect

import "encoding/json"

// AnthropicStreamEncoder re-segments the gateway's internal text/tool-call
// delta stream into the sequence of content_block_start/delta/stop events
// the Anthropic Messages streaming API expects. Anthropic requires each
// content block (a text run, then each tool_use) to be explicitly opened
// and closed, unlike OpenAI's flatter delta stream.
type AnthropicStreamEncoder struct {
	blockIndex   int
	textOpen     bool
	toolOpenIdx  map[int]bool
}

// NewAnthropicStreamEncoder creates an encoder for one response stream.
func NewAnthropicStreamEncoder() *AnthropicStreamEncoder {
	return &AnthropicStreamEncoder{toolOpenIdx: map[int]bool{}}
}

// Event is one SSE event: a name and its JSON data payload.
type Event struct {
	Name string
	Data []byte
}

// MessageStart returns the initial message_start event.
func (e *AnthropicStreamEncoder) MessageStart(id, model string) Event {
	payload := map[string]interface{}{
		"type": "message_start",
		"message": map[string]interface{}{
			"id": id, "type": "message", "role": "assistant",
			"model": model, "content": []interface{}{},
			"usage": map[string]int64{"input_tokens": 0, "output_tokens": 0},
		},
	}
	b, _ := json.Marshal(payload)
	return Event{Name: "message_start", Data: b}
}

// TextDelta emits the events for a plain-text content fragment, opening a
// text content block on first use.
func (e *AnthropicStreamEncoder) TextDelta(text string) []Event {
	var events []Event
	if !e.textOpen {
		events = append(events, e.openBlock(map[string]interface{}{"type": "text", "text": ""}))
		e.textOpen = true
	}
	b, _ := json.Marshal(map[string]interface{}{
		"type": "content_block_delta", "index": e.blockIndex - 1,
		"delta": map[string]interface{}{"type": "text_delta", "text": text},
	})
	events = append(events, Event{Name: "content_block_delta", Data: b})
	return events
}

// CloseText closes the open text block, if any.
func (e *AnthropicStreamEncoder) CloseText() []Event {
	if !e.textOpen {
		return nil
	}
	e.textOpen = false
	return []Event{e.closeBlock(e.blockIndex - 1)}
}

// ToolCall emits the full open/delta/close sequence for one complete tool
// call, since the gateway only learns of tool calls after parsing the
// full buffered XML block rather than incrementally.
func (e *AnthropicStreamEncoder) ToolCall(id, name, argumentsJSON string) []Event {
	var events []Event
	events = append(events, e.openBlock(map[string]interface{}{"type": "tool_use", "id": id, "name": name, "input": map[string]interface{}{}}))
	idx := e.blockIndex - 1
	b, _ := json.Marshal(map[string]interface{}{
		"type": "content_block_delta", "index": idx,
		"delta": map[string]interface{}{"type": "input_json_delta", "partial_json": argumentsJSON},
	})
	events = append(events, Event{Name: "content_block_delta", Data: b})
	events = append(events, e.closeBlock(idx))
	return events
}

// MessageStop emits the message_delta (with stop_reason) and message_stop
// events that terminate the stream.
func (e *AnthropicStreamEncoder) MessageStop(stopReason string, usage AnthropicUsage) []Event {
	deltaPayload, _ := json.Marshal(map[string]interface{}{
		"type":  "message_delta",
		"delta": map[string]interface{}{"stop_reason": stopReason},
		"usage": usage,
	})
	stopPayload, _ := json.Marshal(map[string]interface{}{"type": "message_stop"})
	return []Event{
		{Name: "message_delta", Data: deltaPayload},
		{Name: "message_stop", Data: stopPayload},
	}
}

func (e *AnthropicStreamEncoder) openBlock(block map[string]interface{}) Event {
	idx := e.blockIndex
	e.blockIndex++
	b, _ := json.Marshal(map[string]interface{}{
		"type": "content_block_start", "index": idx, "content_block": block,
	})
	return Event{Name: "content_block_start", Data: b}
}

func (e *AnthropicStreamEncoder) closeBlock(idx int) Event {
	b, _ := json.Marshal(map[string]interface{}{"type": "content_block_stop", "index": idx})
	return Event{Name: "content_block_stop", Data: b}
}
