// Package http is the JSON surface the screens consume. It stays thin: DTO
// validation, error mapping and a short-lived cache for reference data. All
// lifecycle decisions live in the service layer.
package http

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"fido/internal/cache"
	"fido/internal/core"
	"fido/internal/services"
)

const (
	banksCacheKey  = "banks"
	totalsCacheKey = "totals"
)

type Server struct {
	service  *services.LifecycleService
	validate *validator.Validate
	banks    *cache.LRUCache[[]core.Bank]
	totals   *cache.LRUCache[core.StatusTotals]
}

func NewServer(service *services.LifecycleService, cacheSize int, cacheTTL time.Duration) *Server {
	return &Server{
		service:  service,
		validate: validator.New(),
		banks:    cache.NewLRUCache[[]core.Bank](cacheSize, cacheTTL),
		totals:   cache.NewLRUCache[core.StatusTotals](cacheSize, cacheTTL),
	}
}

// StartCacheJanitors evicts expired reference-data entries on an interval
// until ctx is done, so a quiet cache does not pin stale banks or totals.
func (s *Server) StartCacheJanitors(ctx context.Context, interval time.Duration) {
	s.banks.StartJanitor(ctx, interval)
	s.totals.StartJanitor(ctx, interval)
}

// Handler returns the chi router with all routes mounted.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(chimw.Timeout(60 * time.Second))
	r.Use(securityHeaders)
	r.Use(requestLogger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Get("/readyz", s.handleReady)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Route("/expenses", func(r chi.Router) {
			r.Get("/", s.handleListExpenses)
			r.Post("/", s.handleCreateExpense)
			r.Get("/totals", s.handleTotals)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.handleGetExpense)
				r.Delete("/", s.handleDeleteExpense)
				r.Put("/status", s.handleUpdateStatus)
				r.Post("/payments", s.handleMakePayment)
				r.Post("/payments/preview", s.handlePreviewPayment)
				r.Post("/notes", s.handleAddNote)
				r.Delete("/notes/{index}", s.handleDeleteNote)
				r.Post("/reset", s.handleReset)
			})
		})
		r.Get("/banks", s.handleListBanks)
	})

	return r
}

// handleReady probes the backend with a cheap read so load balancers stop
// routing when the ledger is unreachable.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if _, err := s.cachedBanks(r); err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}
