// Package server exposes cashier sessions over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	"github.com/rs/zerolog/log"

	"github.com/ahinestrog/mypos/internal/checkout"
	"github.com/ahinestrog/mypos/internal/customer"
	"github.com/ahinestrog/mypos/internal/httpx"
	"github.com/ahinestrog/mypos/internal/inventory"
	"github.com/ahinestrog/mypos/internal/metrics"
	"github.com/ahinestrog/mypos/internal/receipts"
)

// Catalog is what the API needs from the inventory snapshot holder.
type Catalog interface {
	checkout.Catalog
	Search(term string) []checkout.Item
	Refresh(ctx context.Context) (*inventory.Snapshot, error)
}

type Deps struct {
	Catalog   Catalog
	Customers checkout.CustomerService
	Submitter *checkout.Submitter
	Receipts  receipts.Store
	Timeout   time.Duration
}

type Server struct {
	deps     Deps
	sessions *registry
	validate *validator.Validate
}

func New(d Deps) *Server {
	if d.Timeout <= 0 {
		d.Timeout = 15 * time.Second
	}
	return &Server{
		deps:     d,
		sessions: newRegistry(d.Catalog),
		validate: validator.New(),
	}
}

// Routes builds the router. origins feeds the CORS policy for the browser
// register.
func (s *Server) Routes(origins []string) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(cors.New(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Content-Type", "X-Request-ID"},
		AllowCredentials: true,
	}).Handler)

	r.Get("/healthz", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Timeout(s.deps.Timeout))

		r.Get("/items", s.handleSearchItems)
		r.Post("/items/refresh", s.handleRefreshItems)

		r.Get("/receipts", s.handleListReceipts)
		r.Get("/receipts/{txnID}", s.handleGetReceipt)

		r.Post("/sessions", s.handleCreateSession)
		r.Route("/sessions/{id}", func(r chi.Router) {
			r.Get("/", s.withSession(s.handleGetSession))
			r.Delete("/", s.handleDeleteSession)
			r.Post("/abandon", s.withSession(s.handleAbandon))
			r.Put("/type", s.withSession(s.handleSetType))
			r.Post("/lines", s.withSession(s.handleAddLine))
			r.Patch("/lines/{itemID}", s.withSession(s.handleAdjustLine))
			r.Delete("/lines", s.withSession(s.handleClearLines))
			r.Put("/context", s.withSession(s.handleSetContext))
			r.Post("/customer/lookup", s.withSession(s.handleLookupCustomer))
			r.Post("/customer", s.withSession(s.handleCreateCustomer))
			r.Delete("/customer", s.withSession(s.handleClearCustomer))
			r.Post("/customer/credit", s.withSession(s.handleAddFunds))
			r.Post("/checkout", s.handleCheckout)
		})
	})
	return r
}

type sessionHandler func(w http.ResponseWriter, r *http.Request, sess *checkout.Session)

// withSession resolves {id} and holds the session lock for the handler.
func (s *Server) withSession(h sessionHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		e, ok := s.sessions.get(chi.URLParam(r, "id"))
		if !ok {
			respondError(w, http.StatusNotFound, "session_not_found", "session not found")
			return
		}
		e.mu.Lock()
		defer e.mu.Unlock()
		h(w, r, e.sess)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{"status": "ok", "sessions": s.sessions.len()})
}

// decode reads a JSON body into v and validates it.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(v); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return false
	}
	if err := s.validate.Struct(v); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return false
	}
	return true
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Error().Err(err).Msg("failed to encode response")
	}
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, errorResponse{Error: message, Code: code})
}

// respondEngineError maps engine and upstream errors onto HTTP answers.
func respondEngineError(w http.ResponseWriter, err error) {
	var rej *checkout.SubmissionRejectedError
	switch {
	case errors.As(err, &rej):
		respondError(w, http.StatusBadGateway, checkout.Code(err), rej.Message)
	case errors.Is(err, checkout.ErrTransportFailure), errors.Is(err, httpx.ErrUnavailable):
		respondError(w, http.StatusServiceUnavailable, "transport_failure", err.Error())
	case errors.Is(err, customer.ErrCustomerExists):
		respondError(w, http.StatusConflict, "customer_exists", err.Error())
	case errors.Is(err, customer.ErrCustomerNotFound):
		respondError(w, http.StatusNotFound, "customer_not_found", err.Error())
	case checkout.Code(err) != "":
		code := checkout.Code(err)
		metrics.CartRejections.WithLabelValues(code).Inc()
		respondError(w, http.StatusUnprocessableEntity, code, err.Error())
	default:
		log.Error().Err(err).Msg("upstream call failed")
		respondError(w, http.StatusBadGateway, "upstream_error", err.Error())
	}
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		log.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("took", time.Since(start)).
			Str("req_id", middleware.GetReqID(r.Context())).
			Msg("http")
	})
}
