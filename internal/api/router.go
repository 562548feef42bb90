// Package api provides the HTTP API over the food data service.
package api

import (
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/nutriplan/nutriplan/internal/api/handler"
	"github.com/nutriplan/nutriplan/internal/api/middleware"
	"github.com/nutriplan/nutriplan/internal/fooddata"
)

// RouterConfig holds configuration for the router.
type RouterConfig struct {
	Version     string
	BuildTime   string
	Logger      zerolog.Logger
	FoodService *fooddata.Service
}

// NewRouter creates a chi router with all API routes configured.
func NewRouter(cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	// Global middleware - order matters
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(cfg.Logger))
	r.Use(middleware.Recovery(cfg.Logger))
	r.Use(chimiddleware.RealIP)

	opsHandler := handler.NewOpsHandler(cfg.Version, cfg.BuildTime, cfg.FoodService)
	foodsHandler := handler.NewFoodsHandler(cfg.FoodService)
	recipesHandler := handler.NewRecipesHandler(cfg.FoodService)

	searchRateLimit := middleware.RateLimitByIP(middleware.SearchRateLimit)
	standardRateLimit := middleware.RateLimitByIP(middleware.StandardRateLimit)

	r.Route("/v1", func(r chi.Router) {
		r.Route("/ops", func(r chi.Router) {
			r.Get("/health", opsHandler.HealthCheck)
			r.Get("/status", opsHandler.Status)
			r.Post("/cache/invalidate", opsHandler.InvalidateCaches)
		})

		r.Route("/foods", func(r chi.Router) {
			r.With(searchRateLimit).Get("/", foodsHandler.Search)
			r.With(searchRateLimit).Get("/autocomplete", foodsHandler.Autocomplete)
			r.With(standardRateLimit).Get("/barcode/{barcode}", foodsHandler.GetByBarcode)
			r.With(standardRateLimit).Get("/{foodID}", foodsHandler.Get)
		})

		r.Route("/recipes", func(r chi.Router) {
			r.With(searchRateLimit).Get("/", recipesHandler.Search)
			r.With(standardRateLimit).Get("/{recipeID}", recipesHandler.Get)
		})
	})

	return r
}
