// Package postgres is the catalog-database food data provider. It implements
// the same contract as the upstream client over a relational store with
// full-text search, usable as a drop-in replacement for either the upstream
// API or the bundled dataset.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/nutriplan/nutriplan/internal/fooddata"
)

// ProviderName identifies the catalog provider.
const ProviderName = "catalog"

const autocompleteLimit = 8

// Provider serves food data from the catalog database.
type Provider struct {
	pool   *pgxpool.Pool
	logger zerolog.Logger
}

// NewProvider creates a catalog provider over the given pool.
func NewProvider(pool *pgxpool.Pool, logger zerolog.Logger) *Provider {
	return &Provider{pool: pool, logger: logger}
}

// Name returns the provider name.
func (p *Provider) Name() string {
	return ProviderName
}

// SearchFoods queries the precomputed search vector first; when that yields
// nothing it falls back to substring matching requiring every query word,
// shorter names first.
func (p *Provider) SearchFoods(ctx context.Context, query string, maxResults, page int) ([]fooddata.FoodSearchResult, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return []fooddata.FoodSearchResult{}, nil
	}
	offset := page * maxResults

	const ftsQuery = `
		SELECT id, name, COALESCE(brand_name, ''), description
		FROM foods
		WHERE search_vector @@ websearch_to_tsquery('english', $1)
		ORDER BY ts_rank(search_vector, websearch_to_tsquery('english', $1)) DESC, id
		LIMIT $2 OFFSET $3
	`
	results, err := p.scanSearchRows(ctx, ftsQuery, query, maxResults, offset)
	if err != nil {
		return nil, fmt.Errorf("food text search: %w", err)
	}
	if len(results) > 0 {
		return results, nil
	}

	sql, args := substringFallbackQuery(query, maxResults, offset)
	if sql == "" {
		return []fooddata.FoodSearchResult{}, nil
	}
	results, err = p.scanSearchRows(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("food substring search: %w", err)
	}
	return results, nil
}

func (p *Provider) scanSearchRows(ctx context.Context, sql string, args ...any) ([]fooddata.FoodSearchResult, error) {
	rows, err := p.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	results := []fooddata.FoodSearchResult{}
	for rows.Next() {
		var r fooddata.FoodSearchResult
		if err := rows.Scan(&r.FoodID, &r.Name, &r.BrandName, &r.Description); err != nil {
			return nil, err
		}
		results = append(results, r)
	}
	return results, rows.Err()
}

// substringFallbackQuery builds an ILIKE query requiring all words of the
// query to appear in the name, ordered by ascending name length so shorter,
// more specific names come first.
func substringFallbackQuery(query string, limit, offset int) (string, []any) {
	words := strings.Fields(strings.ToLower(query))
	if len(words) == 0 {
		return "", nil
	}

	var b strings.Builder
	b.WriteString(`SELECT id, name, COALESCE(brand_name, ''), description FROM foods WHERE `)
	args := make([]any, 0, len(words)+2)
	for i, w := range words {
		if i > 0 {
			b.WriteString(" AND ")
		}
		fmt.Fprintf(&b, "name ILIKE $%d", i+1)
		args = append(args, "%"+w+"%")
	}
	fmt.Fprintf(&b, " ORDER BY length(name), id LIMIT $%d OFFSET $%d", len(words)+1, len(words)+2)
	args = append(args, limit, offset)
	return b.String(), args
}

// GetFood returns full details for a food. The serving list always starts with
// the canonical 100 g serving, followed by one serving per known common
// portion, scaled linearly from the 100 g baseline.
func (p *Provider) GetFood(ctx context.Context, foodID string) (*fooddata.FoodDetails, error) {
	const foodQuery = `
		SELECT id, name, COALESCE(brand_name, ''),
		       calories_100g, protein_100g, carbohydrate_100g, fat_100g, fiber_100g
		FROM foods
		WHERE id = $1
	`
	var (
		base  baseline
		id    string
		name  string
		brand string
	)
	err := p.pool.QueryRow(ctx, foodQuery, foodID).Scan(
		&id, &name, &brand,
		&base.Calories, &base.Protein, &base.Carbohydrate, &base.Fat, &base.Fiber,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fooddata.ErrNotFound
		}
		return nil, fmt.Errorf("food lookup: %w", err)
	}

	details := &fooddata.FoodDetails{
		FoodID:    id,
		Name:      name,
		BrandName: brand,
		Servings:  []fooddata.FoodServing{base.canonicalServing(id)},
	}

	const portionQuery = `
		SELECT description, gram_weight
		FROM food_portions
		WHERE food_id = $1
		ORDER BY position
	`
	rows, err := p.pool.Query(ctx, portionQuery, foodID)
	if err != nil {
		return nil, fmt.Errorf("portion lookup: %w", err)
	}
	defer rows.Close()

	seq := 0
	for rows.Next() {
		var (
			description string
			gramWeight  float64
		)
		if err := rows.Scan(&description, &gramWeight); err != nil {
			return nil, err
		}
		seq++
		details.Servings = append(details.Servings, base.portionServing(id, seq, description, gramWeight))
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return details, nil
}

// SearchRecipes mirrors the food search strategy over the recipes table.
func (p *Provider) SearchRecipes(ctx context.Context, query string, maxResults int) ([]fooddata.RecipeSearchResult, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return []fooddata.RecipeSearchResult{}, nil
	}

	const ftsQuery = `
		SELECT id, name, description
		FROM recipes
		WHERE search_vector @@ websearch_to_tsquery('english', $1)
		ORDER BY ts_rank(search_vector, websearch_to_tsquery('english', $1)) DESC, id
		LIMIT $2
	`
	rows, err := p.pool.Query(ctx, ftsQuery, query, maxResults)
	if err != nil {
		return nil, fmt.Errorf("recipe text search: %w", err)
	}
	defer rows.Close()

	results := []fooddata.RecipeSearchResult{}
	for rows.Next() {
		var r fooddata.RecipeSearchResult
		if err := rows.Scan(&r.RecipeID, &r.Name, &r.Description); err != nil {
			return nil, err
		}
		results = append(results, r)
	}
	return results, rows.Err()
}

// GetRecipe returns a recipe with its ordered ingredients and directions.
func (p *Provider) GetRecipe(ctx context.Context, recipeID string) (*fooddata.RecipeDetails, error) {
	const recipeQuery = `SELECT id, name, description FROM recipes WHERE id = $1`

	details := &fooddata.RecipeDetails{}
	err := p.pool.QueryRow(ctx, recipeQuery, recipeID).
		Scan(&details.RecipeID, &details.Name, &details.Description)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fooddata.ErrNotFound
		}
		return nil, fmt.Errorf("recipe lookup: %w", err)
	}

	const ingredientQuery = `
		SELECT COALESCE(food_id, ''), description
		FROM recipe_ingredients
		WHERE recipe_id = $1
		ORDER BY position
	`
	rows, err := p.pool.Query(ctx, ingredientQuery, recipeID)
	if err != nil {
		return nil, fmt.Errorf("ingredient lookup: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var ing fooddata.RecipeIngredient
		if err := rows.Scan(&ing.FoodID, &ing.Description); err != nil {
			return nil, err
		}
		details.Ingredients = append(details.Ingredients, ing)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	const directionQuery = `
		SELECT step_number, description
		FROM recipe_directions
		WHERE recipe_id = $1
		ORDER BY step_number
	`
	rows, err = p.pool.Query(ctx, directionQuery, recipeID)
	if err != nil {
		return nil, fmt.Errorf("direction lookup: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var dir fooddata.RecipeDirection
		if err := rows.Scan(&dir.Number, &dir.Description); err != nil {
			return nil, err
		}
		details.Directions = append(details.Directions, dir)
	}
	return details, rows.Err()
}

// Autocomplete returns up to 8 food names containing the query.
func (p *Provider) Autocomplete(ctx context.Context, query string) ([]string, error) {
	query = strings.TrimSpace(query)
	if len(query) < 2 {
		return []string{}, nil
	}

	const sql = `SELECT name FROM foods WHERE name ILIKE $1 ORDER BY length(name), id LIMIT $2`
	rows, err := p.pool.Query(ctx, sql, "%"+query+"%", autocompleteLimit)
	if err != nil {
		return nil, fmt.Errorf("autocomplete: %w", err)
	}
	defer rows.Close()

	suggestions := []string{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		suggestions = append(suggestions, name)
	}
	return suggestions, rows.Err()
}
