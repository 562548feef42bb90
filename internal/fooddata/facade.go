package fooddata

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/nutriplan/nutriplan/internal/fooddata/cache"
	"github.com/nutriplan/nutriplan/internal/resilience"
	"github.com/nutriplan/nutriplan/internal/telemetry"
)

// Cache namespace defaults. Details tolerate a long TTL because nutrition
// facts rarely change; search results turn over faster.
const (
	foodSearchCapacity    = 500
	foodSearchTTL         = time.Hour
	foodDetailsCapacity   = 1000
	foodDetailsTTL        = 24 * time.Hour
	recipeSearchCapacity  = 200
	recipeSearchTTL       = time.Hour
	recipeDetailsCapacity = 200
	recipeDetailsTTL      = time.Hour
)

// Default pagination applied when the caller passes zero values.
const (
	defaultFoodResults   = 20
	defaultRecipeResults = 10
)

// BarcodeResolver is the optional barcode-to-id lookup implemented by the
// upstream client only.
type BarcodeResolver interface {
	FindFoodIDForBarcode(ctx context.Context, barcode string) (string, error)
}

// BreakerStater exposes circuit breaker state for providers that have one.
type BreakerStater interface {
	BreakerState() resilience.State
}

// ServiceConfig holds configuration for the food data service.
type ServiceConfig struct {
	// Upstream is the live provider. Nil means unconfigured: every call
	// routes to Fallback and no cache tiers are consulted.
	Upstream Provider

	// Fallback serves queries when Upstream is nil or its circuit is open
	// (required).
	Fallback Provider

	// Shared is the optional L2 cache store shared across processes.
	Shared cache.SharedStore

	// Logger for service operations.
	Logger zerolog.Logger

	// Metrics for cache and provider instrumentation (optional).
	Metrics *telemetry.Metrics
}

// Service is the single public entry point for food data. It composes the
// upstream client, the tiered cache, and the local fallback; callers never
// talk to a provider directly.
type Service struct {
	upstream Provider
	fallback Provider
	logger   zerolog.Logger
	metrics  *telemetry.Metrics

	foodSearch    *cache.Tier[[]FoodSearchResult]
	foodDetails   *cache.Tier[FoodDetails]
	recipeSearch  *cache.Tier[[]RecipeSearchResult]
	recipeDetails *cache.Tier[RecipeDetails]
}

// NewService creates the food data service.
func NewService(cfg ServiceConfig) *Service {
	return &Service{
		upstream: cfg.Upstream,
		fallback: cfg.Fallback,
		logger:   cfg.Logger,
		metrics:  cfg.Metrics,
		foodSearch: cache.NewTier[[]FoodSearchResult](cache.Config{
			Name:     "food_search",
			Capacity: foodSearchCapacity,
			TTL:      foodSearchTTL,
			Shared:   cfg.Shared,
			Logger:   cfg.Logger,
		}),
		foodDetails: cache.NewTier[FoodDetails](cache.Config{
			Name:     "food_details",
			Capacity: foodDetailsCapacity,
			TTL:      foodDetailsTTL,
			Shared:   cfg.Shared,
			Logger:   cfg.Logger,
		}),
		recipeSearch: cache.NewTier[[]RecipeSearchResult](cache.Config{
			Name:     "recipe_search",
			Capacity: recipeSearchCapacity,
			TTL:      recipeSearchTTL,
			Shared:   cfg.Shared,
			Logger:   cfg.Logger,
		}),
		recipeDetails: cache.NewTier[RecipeDetails](cache.Config{
			Name:     "recipe_details",
			Capacity: recipeDetailsCapacity,
			TTL:      recipeDetailsTTL,
			Shared:   cfg.Shared,
			Logger:   cfg.Logger,
		}),
	}
}

// Configured reports whether a live upstream provider is wired in.
func (s *Service) Configured() bool {
	return s.upstream != nil
}

// SearchFoods returns ranked foods for query. Results are cached per
// (query, maxResults, page); empty result sets are cached too, so a negative
// query does not hit the upstream repeatedly.
func (s *Service) SearchFoods(ctx context.Context, query string, maxResults, page int) ([]FoodSearchResult, error) {
	if maxResults <= 0 {
		maxResults = defaultFoodResults
	}
	if page < 0 {
		page = 0
	}
	if s.upstream == nil {
		return s.fallback.SearchFoods(ctx, query, maxResults, page)
	}

	key := cache.Key(query, maxResults, page)
	if results, ok := s.foodSearch.Get(ctx, key); ok {
		s.metrics.RecordCacheLookup(ctx, "food_search", true)
		return results, nil
	}
	s.metrics.RecordCacheLookup(ctx, "food_search", false)

	results, err := s.upstream.SearchFoods(ctx, query, maxResults, page)
	s.recordUpstream(ctx, "foods.search", err)
	if err != nil {
		if errors.Is(err, resilience.ErrCircuitOpen) {
			s.logFallback("searchFoods", err)
			return s.fallback.SearchFoods(ctx, query, maxResults, page)
		}
		return nil, err
	}

	s.foodSearch.Set(ctx, key, results)
	return results, nil
}

// GetFood returns full details for a food, cached for 24 hours.
func (s *Service) GetFood(ctx context.Context, foodID string) (*FoodDetails, error) {
	if s.upstream == nil {
		return s.fallback.GetFood(ctx, foodID)
	}

	key := cache.Key(foodID)
	if details, ok := s.foodDetails.Get(ctx, key); ok {
		s.metrics.RecordCacheLookup(ctx, "food_details", true)
		return &details, nil
	}
	s.metrics.RecordCacheLookup(ctx, "food_details", false)

	details, err := s.upstream.GetFood(ctx, foodID)
	s.recordUpstream(ctx, "food.get", err)
	if err != nil {
		if errors.Is(err, resilience.ErrCircuitOpen) {
			s.logFallback("getFood", err)
			// The fallback catalog does not share upstream ids: a miss there
			// means "could not consult the upstream", not "does not exist".
			if details, fbErr := s.fallback.GetFood(ctx, foodID); fbErr == nil {
				return details, nil
			}
			return nil, fmt.Errorf("%w: %w", ErrProviderUnavailable, err)
		}
		return nil, err
	}

	s.foodDetails.Set(ctx, key, *details)
	return details, nil
}

// GetFoodByBarcode resolves a barcode to food details. The resolved id goes
// through GetFood so repeated scans of the same item share the details cache.
// Barcode lookup is a best-effort upstream-only path: unconfigured clients and
// lookup failures both yield (nil, nil).
func (s *Service) GetFoodByBarcode(ctx context.Context, barcode string) (*FoodDetails, error) {
	br, ok := s.upstream.(BarcodeResolver)
	if !ok {
		return nil, nil
	}

	foodID, err := br.FindFoodIDForBarcode(ctx, barcode)
	if err != nil {
		s.logger.Debug().Err(err).Str("barcode", barcode).Msg("barcode lookup failed")
		return nil, nil
	}

	details, err := s.GetFood(ctx, foodID)
	if err != nil {
		s.logger.Debug().Err(err).Str("barcode", barcode).Msg("barcode food fetch failed")
		return nil, nil
	}
	return details, nil
}

// SearchRecipes returns ranked recipes for query.
func (s *Service) SearchRecipes(ctx context.Context, query string, maxResults int) ([]RecipeSearchResult, error) {
	if maxResults <= 0 {
		maxResults = defaultRecipeResults
	}
	if s.upstream == nil {
		return s.fallback.SearchRecipes(ctx, query, maxResults)
	}

	key := cache.Key(query, maxResults)
	if results, ok := s.recipeSearch.Get(ctx, key); ok {
		s.metrics.RecordCacheLookup(ctx, "recipe_search", true)
		return results, nil
	}
	s.metrics.RecordCacheLookup(ctx, "recipe_search", false)

	results, err := s.upstream.SearchRecipes(ctx, query, maxResults)
	s.recordUpstream(ctx, "recipes.search", err)
	if err != nil {
		if errors.Is(err, resilience.ErrCircuitOpen) {
			s.logFallback("searchRecipes", err)
			return s.fallback.SearchRecipes(ctx, query, maxResults)
		}
		return nil, err
	}

	s.recipeSearch.Set(ctx, key, results)
	return results, nil
}

// GetRecipe returns full details for a recipe.
func (s *Service) GetRecipe(ctx context.Context, recipeID string) (*RecipeDetails, error) {
	if s.upstream == nil {
		return s.fallback.GetRecipe(ctx, recipeID)
	}

	key := cache.Key(recipeID)
	if details, ok := s.recipeDetails.Get(ctx, key); ok {
		s.metrics.RecordCacheLookup(ctx, "recipe_details", true)
		return &details, nil
	}
	s.metrics.RecordCacheLookup(ctx, "recipe_details", false)

	details, err := s.upstream.GetRecipe(ctx, recipeID)
	s.recordUpstream(ctx, "recipe.get", err)
	if err != nil {
		if errors.Is(err, resilience.ErrCircuitOpen) {
			s.logFallback("getRecipe", err)
			if details, fbErr := s.fallback.GetRecipe(ctx, recipeID); fbErr == nil {
				return details, nil
			}
			return nil, fmt.Errorf("%w: %w", ErrProviderUnavailable, err)
		}
		return nil, err
	}

	s.recipeDetails.Set(ctx, key, *details)
	return details, nil
}

// Autocomplete returns name suggestions for a partial query. Suggestions are
// cheap and short-lived upstream, so they bypass the result caches.
func (s *Service) Autocomplete(ctx context.Context, query string) ([]string, error) {
	if s.upstream == nil {
		return s.fallback.Autocomplete(ctx, query)
	}
	suggestions, err := s.upstream.Autocomplete(ctx, query)
	s.recordUpstream(ctx, "foods.autocomplete", err)
	if err != nil {
		if errors.Is(err, resilience.ErrCircuitOpen) {
			s.logFallback("autocomplete", err)
			return s.fallback.Autocomplete(ctx, query)
		}
		return nil, err
	}
	return suggestions, nil
}

// CacheStats returns hit/miss counters and sizes per cache namespace.
func (s *Service) CacheStats() map[string]cache.Stats {
	return map[string]cache.Stats{
		"food_search":    s.foodSearch.Stats(),
		"food_details":   s.foodDetails.Stats(),
		"recipe_search":  s.recipeSearch.Stats(),
		"recipe_details": s.recipeDetails.Stats(),
	}
}

// ClearCaches drops every namespace and resets the counters.
func (s *Service) ClearCaches() {
	s.foodSearch.Clear()
	s.foodDetails.Clear()
	s.recipeSearch.Clear()
	s.recipeDetails.Clear()
}

// BreakerState returns the upstream circuit breaker state, "closed" when no
// breaker-carrying provider is wired in.
func (s *Service) BreakerState() resilience.State {
	if bs, ok := s.upstream.(BreakerStater); ok {
		return bs.BreakerState()
	}
	return resilience.StateClosed
}

// recordUpstream classifies an upstream call outcome for the request counter.
func (s *Service) recordUpstream(ctx context.Context, method string, err error) {
	outcome := "ok"
	switch {
	case err == nil:
	case errors.Is(err, ErrNotFound):
		outcome = "not_found"
	case errors.Is(err, resilience.ErrCircuitOpen):
		outcome = "circuit_open"
	default:
		outcome = "error"
	}
	s.metrics.RecordUpstreamRequest(ctx, method, outcome)
}

func (s *Service) logFallback(op string, err error) {
	s.logger.Warn().Err(err).Str("op", op).Str("provider", s.fallback.Name()).
		Msg("upstream unavailable, serving from fallback")
}
