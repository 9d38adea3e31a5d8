package server

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"go.uber.org/zap"

	"github.com/funnycups/toolify-go/internal/apierr"
	"github.com/funnycups/toolify-go/internal/dialect"
	"github.com/funnycups/toolify-go/internal/router"
)

// flushWriter adapts an http.ResponseWriter into gateway.SSEWriter, using
// OpenAI's bare "data:" framing when event is empty and a named "event:"
// line otherwise (the shape Anthropic's Messages streaming API expects).
type flushWriter struct {
	w http.ResponseWriter
	f http.Flusher
}

func (fw *flushWriter) WriteEvent(event string, data []byte) error {
	var err error
	if event != "" {
		_, err = fmt.Fprintf(fw.w, "event: %s\ndata: %s\n\n", event, data)
	} else {
		_, err = fmt.Fprintf(fw.w, "data: %s\n\n", data)
	}
	return err
}

func (fw *flushWriter) Flush() {
	if fw.f != nil {
		fw.f.Flush()
	}
}

func (s *Server) handleModels(w http.ResponseWriter, r *http.Request) {
	app := s.loader.Current()
	seen := map[string]bool{}
	type modelEntry struct {
		ID string `json:"id"`
	}
	var models []modelEntry
	for _, svc := range app.UpstreamServices {
		for _, m := range svc.Models {
			if seen[m] {
				continue
			}
			seen[m] = true
			models = append(models, modelEntry{ID: m})
		}
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]interface{}{"object": "list", "data": models})
}

func (s *Server) handleChatCompletions(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, 16<<20))
	if err != nil {
		writeError(w, apierr.ErrBadRequest)
		return
	}

	req, err := dialect.DecodeOpenAIRequest(body)
	if err != nil {
		writeError(w, apierr.Wrap(http.StatusBadRequest, "invalid_request_error", "could not parse request body", err))
		return
	}

	gw := s.gw()
	res, rerr := router.Resolve(gw.Router, req.Model)
	if rerr != nil {
		writeError(w, apierr.Wrap(http.StatusNotFound, "model_not_found", rerr.Error(), rerr))
		return
	}

	upstreamBody := gw.PrepareUpstreamRequest(req)

	if req.Stream {
		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")
		flusher, _ := w.(http.Flusher)
		sw := &flushWriter{w: w, f: flusher}
		if err := gw.DispatchStreamOpenAI(r.Context(), res, upstreamBody, sw); err != nil {
			s.logger.Error("streaming dispatch failed", zap.Error(err))
		}
		return
	}

	result, derr := gw.DispatchUnary(r.Context(), res, upstreamBody)
	if derr != nil {
		writeClientOrUnknown(w, derr)
		return
	}

	out, err := dialect.EncodeOpenAIResponse(result.Response)
	if err != nil {
		writeError(w, apierr.Wrap(http.StatusInternalServerError, "internal_error", "failed to encode response", err))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(out)
}

func (s *Server) handleMessages(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, 16<<20))
	if err != nil {
		writeError(w, apierr.ErrBadRequest)
		return
	}

	req, err := dialect.DecodeAnthropicRequest(body)
	if err != nil {
		writeError(w, apierr.Wrap(http.StatusBadRequest, "invalid_request_error", "could not parse request body", err))
		return
	}

	gw := s.gw()
	res, rerr := router.Resolve(gw.Router, req.Model)
	if rerr != nil {
		writeError(w, apierr.Wrap(http.StatusNotFound, "model_not_found", rerr.Error(), rerr))
		return
	}

	upstreamBody := gw.PrepareUpstreamRequest(req)

	if req.Stream {
		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")
		flusher, _ := w.(http.Flusher)
		sw := &flushWriter{w: w, f: flusher}
		if err := gw.DispatchStreamAnthropic(r.Context(), res, upstreamBody, sw); err != nil {
			s.logger.Error("streaming dispatch failed", zap.Error(err))
		}
		return
	}

	result, derr := gw.DispatchUnary(r.Context(), res, upstreamBody)
	if derr != nil {
		writeClientOrUnknown(w, derr)
		return
	}

	out, err := dialect.EncodeAnthropicResponse(result.Response)
	if err != nil {
		writeError(w, apierr.Wrap(http.StatusInternalServerError, "internal_error", "failed to encode response", err))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(out)
}

func writeClientOrUnknown(w http.ResponseWriter, err error) {
	if cerr, ok := err.(*apierr.ClientError); ok {
		writeError(w, cerr)
		return
	}
	writeError(w, apierr.Wrap(http.StatusBadGateway, "upstream_error", err.Error(), err))
}
