// Package api provides the HTTP server for the reward control plane.
// Callers authenticate with a bearer token naming their principal; every
// mutating route acts on behalf of that principal.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/learnreward/rewardplane/internal/app/gate"
	"github.com/learnreward/rewardplane/internal/app/governance"
	"github.com/learnreward/rewardplane/internal/app/issuance"
	"github.com/learnreward/rewardplane/internal/app/program"
	"github.com/learnreward/rewardplane/internal/app/treasury"
	"github.com/learnreward/rewardplane/internal/domain"
	"github.com/learnreward/rewardplane/internal/infra/observability"
)

// TokenValidator resolves a bearer token to the principal it was issued to.
type TokenValidator interface {
	ValidateToken(token string) (string, error)
}

// Services bundles the application services the API exposes.
type Services struct {
	Program    *program.Service
	Gate       *gate.Gate
	Governance *governance.Engine
	Issuance   *issuance.Service
	Treasury   *treasury.Service
}

// Server is the control plane HTTP API server.
type Server struct {
	svc            Services
	tokens         TokenValidator
	tracer         *observability.Tracer
	log            zerolog.Logger
	metricsEnabled bool
}

// NewServer creates a new API server.
func NewServer(svc Services, tokens TokenValidator, tracer *observability.Tracer, log zerolog.Logger) *Server {
	return &Server{
		svc:    svc,
		tokens: tokens,
		tracer: tracer,
		log:    log.With().Str("component", "api").Logger(),
	}
}

// EnableMetrics enables the /metrics Prometheus endpoint.
func (s *Server) EnableMetrics() { s.metricsEnabled = true }

// Handler returns the chi router with all routes mounted.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(s.traceID)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{
			"status": "ok",
		})
	})

	r.Route("/api", func(r chi.Router) {
		// Read models
		r.Get("/status", s.handleStatus)
		r.Get("/gate", s.handleGateState)
		r.Get("/registries/{kind}", s.handleGetRegistry)
		r.Get("/registries/{kind}/proposals", s.handleListProposals)
		r.Get("/registries/{kind}/proposals/{index}", s.handleGetProposal)
		r.Get("/issuers", s.handleListIssuers)
		r.Get("/issuers/{id}", s.handleGetIssuer)
		r.Get("/issuers/{id}/courses", s.handleListCourses)
		r.Get("/issuers/{id}/courses/{course}", s.handleGetCourse)
		r.Get("/issuers/{id}/courses/{course}/history", s.handleCourseHistory)
		r.Get("/recipients/{recipient}", s.handleGetRecipient)
		r.Get("/recipients/{recipient}/completions/{course}", s.handleGetCompletion)
		r.Get("/balances/{account}", s.handleBalance)
		r.Get("/traces", s.handleTraces)

		// Authenticated mutations
		r.Group(func(r chi.Router) {
			r.Use(s.requireAuth)

			r.Patch("/config", s.handleUpdateConfig)
			r.Post("/gate/global", s.handleSetGlobal)
			r.Post("/gate/flags", s.handleSetFlags)

			r.Post("/registries/{kind}", s.handleCreateRegistry)
			r.Post("/registries/{kind}/proposals", s.handleCreateProposal)
			r.Post("/registries/{kind}/proposals/{index}/approve", s.handleApprove)
			r.Post("/registries/{kind}/proposals/{index}/execute", s.handleExecute)
			r.Post("/registries/{kind}/proposals/{index}/cancel", s.handleCancel)

			r.Post("/issuers", s.handleRegisterIssuer)
			r.Patch("/issuers/{id}", s.handleSetIssuerStatus)
			r.Post("/issuers/{id}/courses", s.handleCreateCourse)
			r.Patch("/issuers/{id}/courses/{course}", s.handleUpdateCourse)
			r.Post("/issuers/{id}/issue", s.handleIssue)
			r.Post("/recipients", s.handleRegisterRecipient)

			r.Post("/transfers", s.handleTransfer)
			r.Post("/burns", s.handleBurn)
		})
	})

	// Prometheus metrics endpoint
	if s.metricsEnabled {
		r.Handle("/metrics", promhttp.Handler())
	}

	return r
}

// ─── Authentication ─────────────────────────────────────────────────────────

type contextKey string

const principalKey contextKey = "rewardplane-principal"

// requireAuth resolves the bearer token to a principal or answers 401.
func (s *Server) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !ok || token == "" {
			writeError(w, http.StatusUnauthorized, "missing bearer token", "unauthenticated")
			return
		}
		principal, err := s.tokens.ValidateToken(token)
		if err != nil {
			writeError(w, http.StatusUnauthorized, err.Error(), "unauthenticated")
			return
		}
		ctx := context.WithValue(r.Context(), principalKey, principal)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// principal returns the authenticated caller.
func principal(r *http.Request) string {
	p, _ := r.Context().Value(principalKey).(string)
	return p
}

// traceID carries the chi request ID into operation spans.
func (s *Server) traceID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if id := middleware.GetReqID(r.Context()); id != "" {
			r = r.WithContext(observability.WithTraceID(r.Context(), id))
		}
		next.ServeHTTP(w, r)
	})
}

// ─── Responses ──────────────────────────────────────────────────────────────

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, msg, typ string) {
	writeJSON(w, status, map[string]interface{}{
		"error": map[string]interface{}{
			"message": msg,
			"type":    typ,
		},
	})
}

// statusFor maps a domain error kind to an HTTP status.
func statusFor(kind domain.ErrorKind) int {
	switch kind {
	case domain.KindAuthorization:
		return http.StatusForbidden
	case domain.KindValidation:
		return http.StatusBadRequest
	case domain.KindConflict:
		return http.StatusConflict
	case domain.KindPolicy:
		return http.StatusLocked
	case domain.KindArithmetic:
		return http.StatusUnprocessableEntity
	case domain.KindNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// fail writes err with the status of its domain kind.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	kind := domain.KindOf(err)
	status := statusFor(kind)
	if status == http.StatusInternalServerError {
		s.log.Error().Err(err).Str("path", r.URL.Path).Str("request_id", middleware.GetReqID(r.Context())).Msg("request failed")
	}
	writeError(w, status, err.Error(), kind.String())
}

var errBadBody = errors.New("malformed request body")

// decode reads a JSON body into v, answering 400 on failure.
func decode(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, errBadBody.Error()+": "+err.Error(), domain.KindValidation.String())
		return false
	}
	return true
}
