package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/funnycups/toolify-go/internal/apierr"
	"github.com/funnycups/toolify-go/internal/dialect"
	"github.com/funnycups/toolify-go/internal/router"
	"github.com/funnycups/toolify-go/internal/streamdetector"
	"github.com/funnycups/toolify-go/internal/upstream"
	"github.com/funnycups/toolify-go/internal/xmlparse"
)

// SSEWriter is the minimal surface a streaming transport needs: emit one
// event (name may be empty for OpenAI's bare "data:" framing) and flush it
// to the client immediately.
type SSEWriter interface {
	WriteEvent(event string, data []byte) error
	Flush()
}

// streamOutcome is what runDetectedStream reports besides the forwarded
// text: any parsed tool calls and the finish reason.
type streamOutcome struct {
	calls        []xmlparse.Call
	finishReason string
}

// runDetectedStream runs the detector over one upstream's SSE response and
// reports only plain text plus any parsed tool calls; it does not know
// about either wire dialect, so both DispatchStreamOpenAI and
// DispatchStreamAnthropic build on it.
func (g *Gateway) runDetectedStream(ctx context.Context, up router.Upstream, body []byte, onText func(string) error) (*streamOutcome, error) {
	resp, err := g.Upstream.Dispatch(ctx, up, body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != 200 {
		errBody := upstream.ReadErrorBody(resp)
		return nil, fmt.Errorf("upstream %s returned status %d: %s", up.Name, resp.StatusCode, errBody)
	}

	det := streamdetector.New(g.Signal)
	outcome := &streamOutcome{finishReason: "stop"}

	err = upstream.ReadSSE(resp.Body, func(delta upstream.StreamChunkDelta) error {
		if delta.Done {
			return nil
		}
		toYield, detected := det.ProcessChunk(delta.Content)
		if toYield != "" {
			if err := onText(toYield); err != nil {
				return err
			}
		}
		if detected {
			outcome.finishReason = "tool_calls"
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if det.State() == streamdetector.StateToolParsing {
		outcome.calls = det.Finalize()
		outcome.finishReason = "tool_calls"
	} else if tail := det.FlushTail(); tail != "" {
		if err := onText(tail); err != nil {
			return nil, err
		}
	}
	return outcome, nil
}

// DispatchStreamOpenAI streams res.Upstreams[0]'s response to w using the
// OpenAI chat-completion-chunk framing. Streaming never fails over across
// upstreams: once bytes have reached the client, switching backends mid
// response would produce an inconsistent transcript.
func (g *Gateway) DispatchStreamOpenAI(ctx context.Context, res router.Resolution, body []byte, w SSEWriter) error {
	if len(res.Upstreams) == 0 {
		return apierr.ErrNoUpstream
	}
	up := res.Upstreams[0]
	id := "chatcmpl-" + uuid.New().String()
	created := time.Now().Unix()
	roleSent := false

	emit := func(delta dialect.OpenAIStreamDelta, finish *string) error {
		chunk := dialect.OpenAIStreamChunk{
			ID: id, Object: "chat.completion.chunk", Created: created, Model: res.ActualModel,
			Choices: []dialect.OpenAIStreamChoice{{Index: 0, Delta: delta, FinishReason: finish}},
		}
		b, err := json.Marshal(chunk)
		if err != nil {
			return err
		}
		if err := w.WriteEvent("", b); err != nil {
			return err
		}
		w.Flush()
		return nil
	}

	outcome, err := g.runDetectedStream(ctx, up, withModel(body, res.ActualModel), func(text string) error {
		delta := dialect.OpenAIStreamDelta{Content: &text}
		if !roleSent {
			delta.Role = "assistant"
			roleSent = true
		}
		return emit(delta, nil)
	})
	if err != nil {
		return apierr.Wrap(502, "upstream_stream_failed", "streaming upstream request failed", err)
	}

	if len(outcome.calls) > 0 {
		var toolDeltas []dialect.OpenAIToolCallDelta
		for i, call := range outcome.calls {
			callID := newToolCallID()
			argsJSON := xmlparse.ArgsToJSON(call.Args)
			g.IDMap.Store(callID, call.Name, argsJSON, fmt.Sprintf("Calling tool %s", call.Name))
			toolDeltas = append(toolDeltas, dialect.OpenAIToolCallDelta{
				Index: i, ID: callID, Type: "function",
				Function: dialect.OpenAIFunctionCallDelta{Name: call.Name, Arguments: argsJSON},
			})
		}
		delta := dialect.OpenAIStreamDelta{ToolCalls: toolDeltas}
		if !roleSent {
			delta.Role = "assistant"
		}
		if err := emit(delta, nil); err != nil {
			return err
		}
	}

	finish := outcome.finishReason
	if err := emit(dialect.OpenAIStreamDelta{}, &finish); err != nil {
		return err
	}
	return w.WriteEvent("", []byte("[DONE]"))
}

// DispatchStreamAnthropic streams res.Upstreams[0]'s response to w using
// Anthropic's explicit content-block open/delta/close event sequence.
func (g *Gateway) DispatchStreamAnthropic(ctx context.Context, res router.Resolution, body []byte, w SSEWriter) error {
	if len(res.Upstreams) == 0 {
		return apierr.ErrNoUpstream
	}
	up := res.Upstreams[0]
	enc := dialect.NewAnthropicStreamEncoder()
	id := newToolCallID()

	writeAll := func(events []dialect.Event) error {
		for _, ev := range events {
			if err := w.WriteEvent(ev.Name, ev.Data); err != nil {
				return err
			}
		}
		w.Flush()
		return nil
	}

	startEvt := enc.MessageStart(id, res.ActualModel)
	if err := writeAll([]dialect.Event{startEvt}); err != nil {
		return err
	}

	outcome, err := g.runDetectedStream(ctx, up, withModel(body, res.ActualModel), func(text string) error {
		return writeAll(enc.TextDelta(text))
	})
	if err != nil {
		return apierr.Wrap(502, "upstream_stream_failed", "streaming upstream request failed", err)
	}

	if err := writeAll(enc.CloseText()); err != nil {
		return err
	}

	stopReason := "end_turn"
	if len(outcome.calls) > 0 {
		stopReason = "tool_use"
		for _, call := range outcome.calls {
			callID := newToolCallID()
			argsJSON := xmlparse.ArgsToJSON(call.Args)
			g.IDMap.Store(callID, call.Name, argsJSON, fmt.Sprintf("Calling tool %s", call.Name))
			if err := writeAll(enc.ToolCall(callID, call.Name, argsJSON)); err != nil {
				return err
			}
		}
	}

	return writeAll(enc.MessageStop(stopReason, dialect.AnthropicUsage{}))
}
