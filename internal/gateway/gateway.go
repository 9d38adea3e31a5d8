// Package gateway orchestrates the full request pipeline: inject the
// calling-convention prompt, rewrite prior tool turns, dispatch to the
// routed upstream(s) with unary failover, detect and parse a tool call in
// the response, and map synthetic tool-call IDs back to their origin for
// later turns.
package gateway

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/funnycups/toolify-go/internal/apierr"
	"github.com/funnycups/toolify-go/internal/idmap"
	"github.com/funnycups/toolify-go/internal/promptinjector"
	"github.com/funnycups/toolify-go/internal/rewriter"
	"github.com/funnycups/toolify-go/internal/router"
	"github.com/funnycups/toolify-go/internal/streamdetector"
	"github.com/funnycups/toolify-go/internal/tokenest"
	"github.com/funnycups/toolify-go/internal/toolcall"
	"github.com/funnycups/toolify-go/internal/upstream"
	"github.com/funnycups/toolify-go/internal/xmlparse"
)

// Gateway holds everything shared across requests: the routing table, the
// tool-call ID map, the upstream dispatch pool, and the per-process
// trigger signal.
type Gateway struct {
	Router   router.Config
	IDMap    *idmap.Map
	Upstream *upstream.Pool
	Signal   string
	Logger   *zap.Logger

	ConvertDeveloperToSystem bool
	PromptOptions            promptinjector.Options
	KeyPassthrough           bool
}

func newToolCallID() string {
	u := uuid.New()
	return "call_" + hex.EncodeToString(u[:])
}

// PrepareUpstreamRequest builds the body to send upstream from an inbound
// canonical request: it injects the calling-convention prompt (when the
// client declared tools), rewrites prior tool turns into plain text, and
// strips the OpenAI-native Tools/ToolChoice fields the backend wouldn't
// understand natively.
func (g *Gateway) PrepareUpstreamRequest(req *toolcall.Request) []byte {
	messages := rewriter.Rewrite(req.Messages, g.Signal, g.IDMap, g.ConvertDeveloperToSystem)

	if len(req.Tools) > 0 {
		prompt := promptinjector.Build(req.Tools, g.Signal, g.PromptOptions)
		prompt += rewriter.ToolChoiceInstruction(req.ToolChoice)
		messages = promptinjector.Inject(messages, prompt)
	}

	out := *req
	out.Messages = messages
	out.Tools = nil
	var zeroChoice toolcall.ToolChoice
	out.ToolChoice = zeroChoice

	b, _ := json.Marshal(out)
	return b
}

// UnaryResult is the outcome of a completed non-streaming dispatch.
type UnaryResult struct {
	Response     *toolcall.Response
	UsedUpstream router.Upstream
}

// DispatchUnary tries each upstream in res.Upstreams in priority order
// until one returns a usable response, parsing a tool call out of the
// completion text when present. This is the only path that fails over
// across multiple upstreams; streaming uses only the first.
func (g *Gateway) DispatchUnary(ctx context.Context, res router.Resolution, body []byte) (*UnaryResult, error) {
	var lastErr error
	for _, up := range res.Upstreams {
		resp, err := g.Upstream.Dispatch(ctx, up, withModel(body, res.ActualModel))
		if err != nil {
			lastErr = err
			g.Logger.Warn("upstream dispatch failed", zap.String("upstream", up.Name), zap.Error(err))
			continue
		}
		if resp.StatusCode != 200 {
			errBody := upstream.ReadErrorBody(resp)
			if isClientError(resp.StatusCode) {
				return nil, apierr.Wrap(resp.StatusCode, "upstream_client_error", errBody, fmt.Errorf("upstream %s returned status %d", up.Name, resp.StatusCode))
			}
			lastErr = fmt.Errorf("upstream %s returned status %d: %s", up.Name, resp.StatusCode, errBody)
			g.Logger.Warn("upstream returned error status", zap.String("upstream", up.Name), zap.Int("status", resp.StatusCode))
			continue
		}

		delta, err := upstream.DecodeUnary(resp)
		if err != nil {
			lastErr = err
			continue
		}

		canonical := g.toCanonicalResponse(delta, res.ActualModel)
		return &UnaryResult{Response: canonical, UsedUpstream: up}, nil
	}

	if lastErr != nil {
		return nil, apierr.Wrap(502, "no_upstream_available", "all configured upstreams failed", lastErr)
	}
	return nil, apierr.ErrNoUpstream
}

// isClientError reports whether status indicates a problem with the
// request itself rather than the upstream's availability: failing over to
// a different upstream wouldn't make a malformed request or a bad
// credential valid, so these are surfaced immediately instead of
// advancing the failover loop.
func isClientError(status int) bool {
	switch status {
	case 400, 401, 403:
		return true
	default:
		return false
	}
}

func (g *Gateway) toCanonicalResponse(delta *upstream.UnaryDelta, model string) *toolcall.Response {
	resp := &toolcall.Response{
		ID:      delta.ID,
		Object:  "chat.completion",
		Created: time.Now().Unix(),
		Model:   model,
	}
	if delta.Usage != nil {
		resp.Usage = &toolcall.Usage{
			PromptTokens:     delta.Usage.PromptTokens,
			CompletionTokens: delta.Usage.CompletionTokens,
			TotalTokens:      delta.Usage.TotalTokens,
		}
	}

	for _, c := range delta.Choices {
		msg := toolcall.Message{Role: toolcall.RoleAssistant}
		finish := c.FinishReason

		calls := xmlparse.Parse(c.Message.Content, g.Signal)
		if len(calls) > 0 {
			for _, call := range calls {
				id := newToolCallID()
				argsJSON := xmlparse.ArgsToJSON(call.Args)
				g.IDMap.Store(id, call.Name, argsJSON, fmt.Sprintf("Calling tool %s", call.Name))
				msg.ToolCalls = append(msg.ToolCalls, toolcall.ToolCall{
					ID:   id,
					Type: "function",
					Function: toolcall.FunctionCall{
						Name:      call.Name,
						Arguments: argsJSON,
					},
				})
			}
			msg.Content = toolcall.TextContent("")
			finish = "tool_calls"
		} else {
			msg.Content = toolcall.TextContent(c.Message.Content)
		}

		resp.Choices = append(resp.Choices, toolcall.Choice{
			Index:        c.Index,
			Message:      msg,
			FinishReason: finish,
		})
	}

	if resp.Usage == nil && len(resp.Choices) > 0 {
		if est, err := tokenest.EstimateUsage(model, nil, toolcall.ContentText(resp.Choices[0].Message.Content)); err == nil {
			resp.Usage = &est
		}
	}

	return resp
}

// withModel rewrites the "model" field of an already-marshaled request
// body to actualModel, since the router may resolve an alias or strip a
// provider prefix after the body was first built.
func withModel(body []byte, actualModel string) []byte {
	var m map[string]json.RawMessage
	if err := json.Unmarshal(body, &m); err != nil {
		return body
	}
	encoded, _ := json.Marshal(actualModel)
	m["model"] = encoded
	out, err := json.Marshal(m)
	if err != nil {
		return body
	}
	return out
}
