// Package fooddata provides nutrition data lookup with caching, circuit
// breaking, and local fallback. Service is the single entry point; the actual
// data comes from the configured provider (upstream API, Postgres catalog, or
// the bundled dataset).
package fooddata

import (
	"context"
	"errors"
)

// Food data errors.
var (
	// ErrNotFound means the entity does not exist at the provider. It is a
	// valid outcome, not a provider failure.
	ErrNotFound = errors.New("food data not found")

	// ErrProviderUnavailable means the upstream provider could not serve the
	// request after retries, or the circuit breaker is open.
	ErrProviderUnavailable = errors.New("food data provider unavailable")
)

// FoodSearchResult is the lightweight list-view projection of a food.
type FoodSearchResult struct {
	FoodID      string `json:"foodId"`
	Name        string `json:"name"`
	Description string `json:"description"`
	BrandName   string `json:"brandName,omitempty"`
}

// FoodDetails carries the full serving breakdown for a single food.
type FoodDetails struct {
	FoodID    string        `json:"foodId"`
	Name      string        `json:"name"`
	BrandName string        `json:"brandName,omitempty"`
	Servings  []FoodServing `json:"servings"`
}

// FoodServing holds per-serving nutrition values. Values are not normalized to
// a common base; callers scale by quantity.
type FoodServing struct {
	ServingID           string   `json:"servingId"`
	ServingDescription  string   `json:"servingDescription"`
	MetricServingAmount *float64 `json:"metricServingAmount,omitempty"`
	MetricServingUnit   string   `json:"metricServingUnit,omitempty"`
	Calories            float64  `json:"calories"`
	Protein             float64  `json:"protein"`
	Carbohydrate        float64  `json:"carbohydrate"`
	Fat                 float64  `json:"fat"`
	Fiber               *float64 `json:"fiber,omitempty"`
}

// RecipeSearchResult is the list-view projection of a recipe.
type RecipeSearchResult struct {
	RecipeID    string `json:"recipeId"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// RecipeDetails carries a recipe with its ordered ingredients and directions.
type RecipeDetails struct {
	RecipeID    string             `json:"recipeId"`
	Name        string             `json:"name"`
	Description string             `json:"description"`
	Ingredients []RecipeIngredient `json:"ingredients"`
	Directions  []RecipeDirection  `json:"directions"`
}

// RecipeIngredient is one entry of a recipe's ingredient list.
type RecipeIngredient struct {
	FoodID      string `json:"foodId,omitempty"`
	Description string `json:"description"`
}

// RecipeDirection is one step of a recipe, 1-indexed.
type RecipeDirection struct {
	Number      int    `json:"number"`
	Description string `json:"description"`
}

// Provider is the common read contract implemented by the upstream client, the
// Postgres catalog, and the bundled local dataset.
type Provider interface {
	// SearchFoods returns ranked results for query, paginated by maxResults/page.
	SearchFoods(ctx context.Context, query string, maxResults, page int) ([]FoodSearchResult, error)

	// GetFood returns full details for a food, or ErrNotFound.
	GetFood(ctx context.Context, foodID string) (*FoodDetails, error)

	// SearchRecipes returns up to maxResults ranked recipes for query.
	SearchRecipes(ctx context.Context, query string, maxResults int) ([]RecipeSearchResult, error)

	// GetRecipe returns full details for a recipe, or ErrNotFound.
	GetRecipe(ctx context.Context, recipeID string) (*RecipeDetails, error)

	// Autocomplete returns name suggestions for a partial query.
	Autocomplete(ctx context.Context, query string) ([]string, error)

	// Name returns the provider name for logging.
	Name() string
}
