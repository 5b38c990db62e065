package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/alanyoungcy/battleoracle/internal/domain"
	"github.com/alanyoungcy/battleoracle/internal/metrics"
	"github.com/alanyoungcy/battleoracle/internal/server/handler"
	"github.com/alanyoungcy/battleoracle/internal/server/middleware"
	"github.com/alanyoungcy/battleoracle/internal/server/ws"
)

// Config holds the HTTP server configuration.
type Config struct {
	Port        int
	CORSOrigins []string
	APIKey      string // if empty, authentication is disabled
	RateLimit   int    // requests per window per client IP; 0 disables
	RateWindow  time.Duration
}

// Handlers aggregates all HTTP handlers that the server registers. Nil
// handlers leave their routes unregistered.
type Handlers struct {
	Oracle      *handler.OracleHandler
	Health      *handler.HealthHandler
	Status      *handler.StatusHandler
	Trigger     *handler.TriggerHandler
	Markets     *handler.MarketHandler
	Detections  *handler.DetectionHandler
	Settlements *handler.SettlementHandler
	Games       *handler.GameHandler
	Events      *handler.EventsHandler
	Audit       *handler.AuditHandler
}

// Deps are the optional infrastructure pieces the router uses.
type Deps struct {
	Hub     *ws.Hub
	Limiter domain.RateLimiter
	Metrics *metrics.OracleMetrics
}

// Server is the HTTP + websocket API of the oracle.
type Server struct {
	httpServer *http.Server
	router     chi.Router
	logger     *slog.Logger
}

// NewServer creates a Server with every route registered.
func NewServer(cfg Config, handlers Handlers, deps Deps, logger *slog.Logger) *Server {
	logger = logger.With(slog.String("component", "server"))
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.Recoverer)
	r.Use(middleware.CORS(cfg.CORSOrigins))
	r.Use(middleware.Logging(logger))
	r.Use(middleware.Metrics(deps.Metrics))

	admin := middleware.Auth(cfg.APIKey)

	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.RateLimit(deps.Limiter, cfg.RateLimit, cfg.RateWindow))

		if h := handlers.Health; h != nil {
			r.Get("/health", h.HealthCheck)
		}
		if h := handlers.Status; h != nil {
			r.Get("/status", h.GetStatus)
		}
		if h := handlers.Oracle; h != nil {
			r.Get("/oracle", h.Handle)
			r.Post("/oracle", h.Handle)
		}
		if h := handlers.Markets; h != nil {
			r.Get("/markets", h.ListMarkets)
			r.Get("/markets/{id}", h.GetMarket)
		}
		if h := handlers.Detections; h != nil {
			r.Get("/detections", h.ListDetections)
			r.Post("/detect", h.Preview)
		}
		if h := handlers.Events; h != nil {
			r.Get("/events", h.ListEvents)
		}
		if h := handlers.Games; h != nil {
			r.Get("/games", h.ListGames)
		}

		r.Group(func(r chi.Router) {
			r.Use(admin)
			if h := handlers.Settlements; h != nil {
				r.Get("/settlements/review", h.ListReview)
				r.Post("/settlements/{id}/settle", h.Settle)
				r.Post("/settlements/{id}/reject", h.Reject)
			}
			if h := handlers.Games; h != nil {
				r.Post("/games/discover", h.Discover)
				r.Put("/games/{id}", h.SetActive)
			}
			if h := handlers.Audit; h != nil {
				r.Get("/audit", h.ListAudit)
			}
			if h := handlers.Trigger; h != nil {
				r.Post("/monitor/trigger", h.Trigger)
			}
		})
	})

	if deps.Hub != nil {
		r.Get("/ws", deps.Hub.HandleWS)
	}
	if deps.Metrics != nil {
		r.Handle("/metrics", deps.Metrics.Handler())
	}

	return &Server{
		httpServer: &http.Server{
			Addr:         fmt.Sprintf(":%d", cfg.Port),
			Handler:      r,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 60 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		router: r,
		logger: logger,
	}
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start begins listening for HTTP requests. It blocks until the server
// encounters an error or is shut down.
func (s *Server) Start() error {
	s.logger.Info("server: starting", slog.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server: listen: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server, waiting for in-flight requests
// to complete within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("server: shutting down")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server: shutdown: %w", err)
	}
	return nil
}
