package relay

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/cors"
	"go.uber.org/zap"

	"github.com/Suhaibinator/GOAuthRelay/pkg/auth"
	"github.com/Suhaibinator/GOAuthRelay/pkg/session"
)

type ctxKey int

const requestIDKey ctxKey = iota

// Server exposes the relay over HTTP. The callback route never returns a
// non-redirect response; the remaining routes answer programmatic clients
// with plain status codes and a reason.
type Server struct {
	controller         *Controller
	logger             *zap.Logger
	providerConfigured bool
	handler            http.Handler
}

// NewServer builds the route table and middleware chain around controller.
// allowedOrigins feeds the CORS layer; an empty list allows any origin.
func NewServer(logger *zap.Logger, controller *Controller, allowedOrigins []string, providerConfigured bool) *Server {
	s := &Server{
		controller:         controller,
		logger:             logger,
		providerConfigured: providerConfigured,
	}

	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(s.loggingMiddleware)

	r.Get("/", s.handleRoot)
	r.Get("/health", s.handleHealth)
	r.Get("/auth/login", s.handleLogin)
	r.Get("/auth/callback", s.handleCallback)
	r.Get("/profile", s.handleProfile)

	s.handler = cors.New(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodOptions},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		AllowCredentials: true,
	}).Handler(r)

	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

// LogEnricher returns an enricher that annotates log entries with the
// request id assigned by the server middleware.
func LogEnricher() auth.LogEnricher {
	return func(ctx context.Context, logger *zap.Logger) *zap.Logger {
		if id, ok := ctx.Value(requestIDKey).(string); ok {
			return logger.With(zap.String("request_id", id))
		}
		return logger
	}
}

// handleRoot serves the service banner.
func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"message": "GOAuthRelay",
	})
}

// handleHealth reports liveness and configuration presence.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":              "healthy",
		"timestamp":           time.Now().UTC().Format(time.RFC3339),
		"provider_configured": s.providerConfigured,
	})
}

// handleLogin initiates the OAuth flow and redirects the browser to the
// provider. The caller here is programmatic, so failures are plain status
// codes rather than redirects.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	returnAddress := r.URL.Query().Get("return_address")
	if returnAddress == "" {
		writeJSONError(w, http.StatusBadRequest, "return_address query parameter is required")
		return
	}

	authURL, err := s.controller.Initiate(r.Context(), returnAddress)
	if errors.Is(err, ErrNotConfigured) {
		writeJSONError(w, http.StatusInternalServerError,
			"Google OAuth not configured. Set AUTH_RELAY_GOOGLE_CLIENT_ID and AUTH_RELAY_GOOGLE_CLIENT_SECRET")
		return
	}
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, "failed to initiate login")
		return
	}

	http.Redirect(w, r, authURL, http.StatusFound)
}

// handleCallback receives the provider redirect. It always answers with a
// 302: the end user is a browser mid-navigation.
func (s *Server) handleCallback(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	redirect := s.controller.Complete(r.Context(), q.Get("code"), q.Get("state"))
	http.Redirect(w, r, redirect.Target, http.StatusFound)
}

// handleProfile returns the profile embedded in a presented session token.
func (s *Server) handleProfile(w http.ResponseWriter, r *http.Request) {
	profile, err := s.controller.Profile(r.Header.Get("Authorization"))
	if err != nil {
		writeJSON(w, http.StatusUnauthorized, map[string]any{
			"error":   authReason(err),
			"message": err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

// authReason maps session verification failures to the reason strings the
// downstream application switches on.
func authReason(err error) string {
	switch {
	case errors.Is(err, session.ErrMissing):
		return "missing"
	case errors.Is(err, session.ErrMalformedHeader):
		return "malformed"
	case errors.Is(err, session.ErrExpired):
		return "expired"
	default:
		return "invalid"
	}
}

// requestIDMiddleware assigns each request a uuid and stores it in the
// context for log enrichment.
func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := uuid.NewString()
		w.Header().Set("X-Request-Id", id)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), requestIDKey, id)))
	})
}

// loggingMiddleware logs request details.
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		LogEnricher()(r.Context(), s.logger).Info("HTTP Request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.String("remote_addr", r.RemoteAddr),
			zap.Duration("duration", time.Since(start)),
		)
	})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeJSONError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
