// Package api exposes the scraper and the property cache over HTTP.
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"propscout/utils"
)

// Server is the REST API server.
type Server struct {
	httpServer *http.Server
	logger     *utils.Logger
}

// NewServer wires the router around h and listens on port.
func NewServer(port string, origins []string, h *Handlers, logger *utils.Logger) *Server {
	return &Server{
		httpServer: &http.Server{
			Addr:              ":" + port,
			Handler:           NewRouter(h, origins, logger),
			ReadHeaderTimeout: 10 * time.Second,
		},
		logger: logger,
	}
}

// NewRouter builds the route table. Exposed separately so tests can drive it
// through httptest without a listener.
func NewRouter(h *Handlers, origins []string, logger *utils.Logger) http.Handler {
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	r := chi.NewRouter()
	r.Use(middleware.RealIP, LoggerMiddleware(logger), middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Route("/api", func(r chi.Router) {
		r.Get("/status", h.Status)
		r.Post("/scrape-property", h.ScrapeProperty)
		r.Post("/convert-image", h.ConvertImage)

		r.Route("/properties", func(r chi.Router) {
			r.Get("/search", h.Search)
			r.Get("/clear-cache", h.CacheStats)
			r.Post("/clear-cache", h.ClearCache)
			r.Get("/debug", h.Debug)
			r.Get("/insights", h.Insights)
			r.Get("/export.csv", h.ExportCSV)
			r.Get("/{id}", h.GetProperty)
			r.Get("/{id}/details", h.PropertyDetails)
		})
	})

	return r
}

// Start blocks serving HTTP until Stop is called.
func (s *Server) Start() error {
	s.logger.Info("[api] Listening on %s", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("could not start server: %w", err)
	}
	return nil
}

// Stop drains in-flight requests.
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("[api] Shutting down")
	return s.httpServer.Shutdown(ctx)
}
