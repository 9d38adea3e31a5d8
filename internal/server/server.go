// Package server wires the public-facing chi router: client authentication,
// CORS, and the chat-completion/messages/models endpoints backed by the
// gateway pipeline.
package server

import (
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/funnycups/toolify-go/internal/apierr"
	"github.com/funnycups/toolify-go/internal/config"
	"github.com/funnycups/toolify-go/internal/gateway"
)

// Server exposes the client-facing HTTP surface. The gateway is fetched
// through gw and the allowed keys through loader on every request, so a
// config reload takes effect without rebuilding the Server.
type Server struct {
	loader *config.Loader
	logger *zap.Logger
	gw     func() *gateway.Gateway
}

// New builds the chi mux. gw is called per-request so a config reload can
// swap in a freshly built Gateway without restarting the process.
func New(loader *config.Loader, logger *zap.Logger, gw func() *gateway.Gateway) http.Handler {
	s := &Server{loader: loader, logger: logger, gw: gw}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Logger)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type", "X-Api-Key", "anthropic-version"},
		AllowCredentials: false,
	}))

	r.Get("/healthz", s.handleHealthz)
	r.Get("/v1/models", s.withAuth(s.handleModels))
	r.Post("/v1/chat/completions", s.withAuth(s.handleChatCompletions))
	r.Post("/v1/messages", s.withAuth(s.handleMessages))

	return r
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}

func (s *Server) withAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		app := s.loader.Current()
		if len(app.ClientAuth.AllowedKeys) == 0 {
			next(w, r)
			return
		}
		key := extractKey(r)
		if key == "" || !keyAllowed(key, app.ClientAuth.AllowedKeys) {
			writeError(w, apierr.New(http.StatusUnauthorized, "invalid_api_key", "missing or invalid API key"))
			return
		}
		next(w, r)
	}
}

func extractKey(r *http.Request) string {
	if auth := r.Header.Get("Authorization"); strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimPrefix(auth, "Bearer ")
	}
	return r.Header.Get("X-Api-Key")
}

func keyAllowed(key string, allowed []string) bool {
	for _, k := range allowed {
		if subtle.ConstantTimeCompare([]byte(k), []byte(key)) == 1 {
			return true
		}
	}
	return false
}

func writeError(w http.ResponseWriter, cerr *apierr.ClientError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(cerr.Status)
	_ = json.NewEncoder(w).Encode(apierr.ToEnvelope(cerr))
}
