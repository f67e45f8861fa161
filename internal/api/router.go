package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// NewRouter wires the HTTP surface onto a chi router.
func NewRouter(h *Handlers) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", h.Health)

	r.Route("/api", func(r chi.Router) {
		r.Post("/scrape-store", h.ScrapeStore)
		r.Get("/scrape-store", h.GetScrapeStore)
		r.Post("/scrape-store/stop", h.StopJob)

		r.Post("/scrape-product", h.ScrapeProduct)

		r.Post("/scrape-auto", h.ScrapeAuto)
		r.Get("/scrape-auto", h.GetScrapeAuto)
		r.Post("/scrape-auto/stop", h.StopJob)

		r.Get("/cron/daily-scrape", h.CronDailyScrape)
	})

	return r
}
