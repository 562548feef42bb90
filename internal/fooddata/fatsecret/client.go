// Package fatsecret is the client for the FatSecret platform API. It signs
// requests with an OAuth2 client-credentials token, routes every call through
// a shared circuit breaker with a per-call timeout, retries transient HTTP
// failures with backoff, and normalizes the provider's XML-flavoured JSON into
// the internal result shapes.
package fatsecret

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/nutriplan/nutriplan/internal/fooddata"
	"github.com/nutriplan/nutriplan/internal/resilience"
)

const (
	// ProviderName identifies this provider.
	ProviderName = "fatsecret"

	// DefaultBaseURL is the REST data endpoint.
	DefaultBaseURL = "https://platform.fatsecret.com/rest/server.api"

	// DefaultTokenURL is the OAuth2 token endpoint.
	DefaultTokenURL = "https://oauth.fatsecret.com/connect/token"
)

// API error codes documented by the provider.
const (
	errCodeInvalidID = 106
)

// TransientError is an HTTP 429 or 5xx response: retried with backoff, and
// counted once against the circuit breaker when retries run out.
type TransientError struct {
	StatusCode int
}

func (e *TransientError) Error() string {
	return "transient upstream error: status " + strconv.Itoa(e.StatusCode)
}

// APIError is an application-level error returned in a 200 response body.
type APIError struct {
	Code    int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("upstream api error %d: %s", e.Code, e.Message)
}

// ClientConfig holds configuration for the FatSecret client.
type ClientConfig struct {
	// ClientID and ClientSecret are the OAuth2 credentials (required).
	ClientID     string
	ClientSecret string

	// BaseURL is the data endpoint (optional).
	BaseURL string

	// TokenURL is the token endpoint (optional).
	TokenURL string

	// HTTPClient is the HTTP client for data and token requests (optional).
	HTTPClient *http.Client

	// Breaker protects all data calls. One instance is shared process-wide;
	// if nil, the client creates its own with defaults.
	Breaker *resilience.Breaker[[]byte]

	// MaxRetries is the number of additional attempts for transient failures.
	// Default: 2.
	MaxRetries uint64

	// RequestTimeout bounds each individual attempt, aborting its connection.
	// Default: 10 seconds.
	RequestTimeout time.Duration

	// BackoffBase overrides the first exponential retry delay (tests).
	BackoffBase time.Duration

	// Logger for client operations.
	Logger zerolog.Logger
}

// Client is the upstream food data provider.
type Client struct {
	baseURL        string
	httpClient     *http.Client
	tokens         *TokenSource
	breaker        *resilience.Breaker[[]byte]
	maxRetries     uint64
	backoffBase    time.Duration
	requestTimeout time.Duration
	logger         zerolog.Logger
}

// NewClient creates a FatSecret client.
func NewClient(cfg ClientConfig) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	tokenURL := cfg.TokenURL
	if tokenURL == "" {
		tokenURL = DefaultTokenURL
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		// No client-level timeout: the breaker bounds every call and cancels
		// the request context when its deadline fires.
		httpClient = &http.Client{}
	}
	breaker := cfg.Breaker
	if breaker == nil {
		breaker = resilience.NewBreaker[[]byte](resilience.BreakerConfig{
			Name:         ProviderName,
			IsSuccessful: BreakerSuccess,
		})
	}
	maxRetries := cfg.MaxRetries
	if maxRetries == 0 {
		maxRetries = 2
	}
	requestTimeout := cfg.RequestTimeout
	if requestTimeout == 0 {
		requestTimeout = 10 * time.Second
	}

	return &Client{
		baseURL:    baseURL,
		httpClient: httpClient,
		tokens: NewTokenSource(TokenSourceConfig{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			TokenURL:     tokenURL,
			HTTPClient:   httpClient,
			Logger:       cfg.Logger,
		}),
		breaker:        breaker,
		maxRetries:     maxRetries,
		backoffBase:    cfg.BackoffBase,
		requestTimeout: requestTimeout,
		logger:         cfg.Logger,
	}
}

// BreakerSuccess classifies call outcomes for the circuit breaker. A missing
// entity is a valid answer from a healthy upstream, not a failure.
func BreakerSuccess(err error) bool {
	return err == nil || errors.Is(err, fooddata.ErrNotFound)
}

// Name returns the provider name.
func (c *Client) Name() string {
	return ProviderName
}

// BreakerState returns the shared circuit breaker state.
func (c *Client) BreakerState() resilience.State {
	return c.breaker.State()
}

// SearchFoods searches the upstream food database.
func (c *Client) SearchFoods(ctx context.Context, query string, maxResults, page int) ([]fooddata.FoodSearchResult, error) {
	params := url.Values{}
	params.Set("search_expression", query)
	params.Set("max_results", strconv.Itoa(maxResults))
	params.Set("page_number", strconv.Itoa(page))

	body, err := c.callMethod(ctx, "foods.search", params)
	if err != nil {
		return nil, err
	}

	var env foodsSearchEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("decoding foods.search response: %w", err)
	}

	results := make([]fooddata.FoodSearchResult, 0, len(env.Foods.Food))
	for _, f := range env.Foods.Food {
		results = append(results, fooddata.FoodSearchResult{
			FoodID:      f.FoodID,
			Name:        f.FoodName,
			Description: f.FoodDescription,
			BrandName:   f.BrandName,
		})
	}
	return results, nil
}

// GetFood fetches full details for a single food.
func (c *Client) GetFood(ctx context.Context, foodID string) (*fooddata.FoodDetails, error) {
	params := url.Values{}
	params.Set("food_id", foodID)

	body, err := c.callMethod(ctx, "food.get.v4", params)
	if err != nil {
		return nil, err
	}

	var env foodEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("decoding food.get response: %w", err)
	}

	details := &fooddata.FoodDetails{
		FoodID:    env.Food.FoodID,
		Name:      env.Food.FoodName,
		BrandName: env.Food.BrandName,
		Servings:  make([]fooddata.FoodServing, 0, len(env.Food.Servings.Serving)),
	}
	for _, s := range env.Food.Servings.Serving {
		details.Servings = append(details.Servings, fooddata.FoodServing{
			ServingID:           s.ServingID,
			ServingDescription:  s.ServingDescription,
			MetricServingAmount: parseOptFloat(s.MetricServingAmount),
			MetricServingUnit:   s.MetricServingUnit,
			Calories:            parseFloat(s.Calories),
			Protein:             parseFloat(s.Protein),
			Carbohydrate:        parseFloat(s.Carbohydrate),
			Fat:                 parseFloat(s.Fat),
			Fiber:               parseOptFloat(s.Fiber),
		})
	}
	return details, nil
}

// FindFoodIDForBarcode resolves a barcode to an upstream food id, or
// ErrNotFound when no food matches. The provider signals "no match" with a
// zero id.
func (c *Client) FindFoodIDForBarcode(ctx context.Context, barcode string) (string, error) {
	params := url.Values{}
	params.Set("barcode", barcode)

	body, err := c.callMethod(ctx, "food.find_id_for_barcode", params)
	if err != nil {
		return "", err
	}

	var env barcodeEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return "", fmt.Errorf("decoding barcode response: %w", err)
	}
	if env.FoodID.Value == "" || env.FoodID.Value == "0" {
		return "", fooddata.ErrNotFound
	}
	return env.FoodID.Value, nil
}

// GetFoodByBarcode resolves a barcode and fetches the food's details. Barcode
// lookup is a best-effort convenience path: any failure yields (nil, nil)
// rather than propagating.
func (c *Client) GetFoodByBarcode(ctx context.Context, barcode string) (*fooddata.FoodDetails, error) {
	foodID, err := c.FindFoodIDForBarcode(ctx, barcode)
	if err != nil {
		c.logger.Debug().Err(err).Str("barcode", barcode).Msg("barcode lookup failed")
		return nil, nil
	}

	details, err := c.GetFood(ctx, foodID)
	if err != nil {
		c.logger.Debug().Err(err).Str("barcode", barcode).Msg("barcode food fetch failed")
		return nil, nil
	}
	return details, nil
}

// SearchRecipes searches the upstream recipe database.
func (c *Client) SearchRecipes(ctx context.Context, query string, maxResults int) ([]fooddata.RecipeSearchResult, error) {
	params := url.Values{}
	params.Set("search_expression", query)
	params.Set("max_results", strconv.Itoa(maxResults))

	body, err := c.callMethod(ctx, "recipes.search", params)
	if err != nil {
		return nil, err
	}

	var env recipesSearchEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("decoding recipes.search response: %w", err)
	}

	results := make([]fooddata.RecipeSearchResult, 0, len(env.Recipes.Recipe))
	for _, r := range env.Recipes.Recipe {
		results = append(results, fooddata.RecipeSearchResult{
			RecipeID:    r.RecipeID,
			Name:        r.RecipeName,
			Description: r.RecipeDescription,
		})
	}
	return results, nil
}

// GetRecipe fetches full details for a single recipe.
func (c *Client) GetRecipe(ctx context.Context, recipeID string) (*fooddata.RecipeDetails, error) {
	params := url.Values{}
	params.Set("recipe_id", recipeID)

	body, err := c.callMethod(ctx, "recipe.get.v2", params)
	if err != nil {
		return nil, err
	}

	var env recipeEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("decoding recipe.get response: %w", err)
	}

	details := &fooddata.RecipeDetails{
		RecipeID:    env.Recipe.RecipeID,
		Name:        env.Recipe.RecipeName,
		Description: env.Recipe.RecipeDescription,
		Ingredients: make([]fooddata.RecipeIngredient, 0, len(env.Recipe.Ingredients.Ingredient)),
		Directions:  make([]fooddata.RecipeDirection, 0, len(env.Recipe.Directions.Direction)),
	}
	for _, ing := range env.Recipe.Ingredients.Ingredient {
		details.Ingredients = append(details.Ingredients, fooddata.RecipeIngredient{
			FoodID:      ing.FoodID,
			Description: ing.IngredientDescription,
		})
	}
	for _, dir := range env.Recipe.Directions.Direction {
		details.Directions = append(details.Directions, fooddata.RecipeDirection{
			Number:      parseInt(dir.DirectionNumber),
			Description: dir.DirectionDescription,
		})
	}
	return details, nil
}

// Autocomplete returns search suggestions for a partial query.
func (c *Client) Autocomplete(ctx context.Context, query string) ([]string, error) {
	params := url.Values{}
	params.Set("expression", query)

	body, err := c.callMethod(ctx, "foods.autocomplete", params)
	if err != nil {
		return nil, err
	}

	var env autocompleteEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("decoding autocomplete response: %w", err)
	}
	return []string(env.Suggestions.Suggestion), nil
}

// callMethod executes one API method through the circuit breaker. Transient
// failures retry inside the breaker's single execution, so however many
// attempts the backoff consumes, the breaker observes exactly one outcome for
// this call site.
func (c *Client) callMethod(ctx context.Context, method string, params url.Values) ([]byte, error) {
	return c.breaker.Execute(ctx, func(ctx context.Context) ([]byte, error) {
		policy := &resilience.UpstreamBackOff{Base: c.backoffBase}
		return resilience.Retry(ctx, policy, c.maxRetries, func(ctx context.Context) ([]byte, error) {
			return c.doRequest(ctx, method, params, policy)
		})
	})
}

// ErrRequestTimeout marks a single attempt aborted by the per-request timeout.
// Retryable, and counted as a failure when retries run out.
var ErrRequestTimeout = errors.New("upstream request timed out")

// doRequest performs a single signed attempt against the data endpoint. Each
// attempt carries its own timeout so a hung connection is aborted instead of
// consuming the remaining retry budget.
func (c *Client) doRequest(parent context.Context, method string, params url.Values, policy *resilience.UpstreamBackOff) ([]byte, error) {
	ctx, cancel := context.WithTimeout(parent, c.requestTimeout)
	defer cancel()

	token, err := c.tokens.Token(ctx)
	if err != nil {
		// Auth failures are configuration errors; retrying the data call
		// would just repeat the same token exchange.
		return nil, resilience.Permanent(err)
	}

	q := url.Values{}
	q.Set("method", method)
	q.Set("format", "json")
	for k, vs := range params {
		for _, v := range vs {
			q.Add(k, v)
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+q.Encode(), http.NoBody)
	if err != nil {
		return nil, resilience.Permanent(fmt.Errorf("creating request: %w", err))
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if parent.Err() != nil {
			// Caller gone; stop retrying.
			return nil, resilience.Permanent(parent.Err())
		}
		if ctx.Err() != nil {
			return nil, fmt.Errorf("%s: %w", method, ErrRequestTimeout)
		}
		// Network-level failure, retryable.
		return nil, fmt.Errorf("%s: %w", method, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%s: reading response: %w", method, err)
	}

	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
		if after := parseRetryAfter(resp.Header.Get("Retry-After")); after > 0 {
			policy.SetRetryAfter(after)
		}
		c.logger.Warn().Str("method", method).Int("status", resp.StatusCode).
			Msg("transient upstream failure")
		return nil, &TransientError{StatusCode: resp.StatusCode}
	}
	if resp.StatusCode != http.StatusOK {
		return nil, resilience.Permanent(fmt.Errorf("%s: unexpected status %d", method, resp.StatusCode))
	}

	// The provider reports application errors in a 200 body.
	var errEnv apiErrorEnvelope
	if err := json.Unmarshal(body, &errEnv); err == nil && errEnv.Error != nil {
		if errEnv.Error.Code == errCodeInvalidID {
			return nil, resilience.Permanent(fooddata.ErrNotFound)
		}
		return nil, resilience.Permanent(&APIError{
			Code:    errEnv.Error.Code,
			Message: errEnv.Error.Message,
		})
	}

	return body, nil
}

// parseRetryAfter reads a Retry-After header given in seconds.
func parseRetryAfter(v string) time.Duration {
	if v == "" {
		return 0
	}
	secs, err := strconv.Atoi(v)
	if err != nil || secs <= 0 {
		return 0
	}
	return time.Duration(secs) * time.Second
}
