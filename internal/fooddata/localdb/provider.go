// Package localdb is the bundled fallback food data provider. It serves the
// same search, details, and autocomplete contract as the upstream client from
// an embedded dataset, so the application works without credentials or network
// access.
package localdb

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/nutriplan/nutriplan/internal/fooddata"
)

// ProviderName identifies the fallback provider.
const ProviderName = "local"

// exactPhraseScore is the score assigned when the full query appears in the
// entry name, ranking exact-phrase hits above any word-count score.
const exactPhraseScore = 100

// autocompleteLimit caps the number of suggestions returned.
const autocompleteLimit = 8

//go:embed data/foods.json
var foodsJSON []byte

//go:embed data/recipes.json
var recipesJSON []byte

type catalogFood struct {
	fooddata.FoodDetails
	Description string `json:"description"`
}

type catalog struct {
	foods       []catalogFood
	foodsByID   map[string]*catalogFood
	recipes     []fooddata.RecipeDetails
	recipesByID map[string]*fooddata.RecipeDetails
}

var (
	loadOnce sync.Once
	loaded   *catalog
	loadErr  error
)

func loadCatalog() (*catalog, error) {
	loadOnce.Do(func() {
		c := &catalog{
			foodsByID:   make(map[string]*catalogFood),
			recipesByID: make(map[string]*fooddata.RecipeDetails),
		}
		if err := json.Unmarshal(foodsJSON, &c.foods); err != nil {
			loadErr = fmt.Errorf("loading bundled foods: %w", err)
			return
		}
		if err := json.Unmarshal(recipesJSON, &c.recipes); err != nil {
			loadErr = fmt.Errorf("loading bundled recipes: %w", err)
			return
		}
		for i := range c.foods {
			c.foodsByID[c.foods[i].FoodID] = &c.foods[i]
		}
		for i := range c.recipes {
			c.recipesByID[c.recipes[i].RecipeID] = &c.recipes[i]
		}
		loaded = c
	})
	return loaded, loadErr
}

// Provider serves food data from the embedded dataset.
type Provider struct {
	catalog *catalog
}

// NewProvider creates the fallback provider, loading the dataset on first use.
func NewProvider() (*Provider, error) {
	c, err := loadCatalog()
	if err != nil {
		return nil, err
	}
	return &Provider{catalog: c}, nil
}

// Name returns the provider name.
func (p *Provider) Name() string {
	return ProviderName
}

// SearchFoods ranks the catalog against query and returns the requested page.
func (p *Provider) SearchFoods(_ context.Context, query string, maxResults, page int) ([]fooddata.FoodSearchResult, error) {
	ranked := rank(query, len(p.catalog.foods), func(i int) (string, string) {
		return p.catalog.foods[i].Name, ""
	})

	offset := page * maxResults
	if offset >= len(ranked) {
		return []fooddata.FoodSearchResult{}, nil
	}
	end := offset + maxResults
	if end > len(ranked) {
		end = len(ranked)
	}

	results := make([]fooddata.FoodSearchResult, 0, end-offset)
	for _, idx := range ranked[offset:end] {
		f := p.catalog.foods[idx]
		results = append(results, fooddata.FoodSearchResult{
			FoodID:      f.FoodID,
			Name:        f.Name,
			Description: f.Description,
			BrandName:   f.BrandName,
		})
	}
	return results, nil
}

// GetFood returns a food by id, or ErrNotFound.
func (p *Provider) GetFood(_ context.Context, foodID string) (*fooddata.FoodDetails, error) {
	f, ok := p.catalog.foodsByID[foodID]
	if !ok {
		return nil, fooddata.ErrNotFound
	}
	details := f.FoodDetails
	return &details, nil
}

// SearchRecipes ranks recipes against query. Name-word matches weigh double
// description-word matches. Recipes are not paginated.
func (p *Provider) SearchRecipes(_ context.Context, query string, maxResults int) ([]fooddata.RecipeSearchResult, error) {
	ranked := rank(query, len(p.catalog.recipes), func(i int) (string, string) {
		return p.catalog.recipes[i].Name, p.catalog.recipes[i].Description
	})

	if len(ranked) > maxResults {
		ranked = ranked[:maxResults]
	}
	results := make([]fooddata.RecipeSearchResult, 0, len(ranked))
	for _, idx := range ranked {
		r := p.catalog.recipes[idx]
		results = append(results, fooddata.RecipeSearchResult{
			RecipeID:    r.RecipeID,
			Name:        r.Name,
			Description: r.Description,
		})
	}
	return results, nil
}

// GetRecipe returns a recipe by id, or ErrNotFound.
func (p *Provider) GetRecipe(_ context.Context, recipeID string) (*fooddata.RecipeDetails, error) {
	r, ok := p.catalog.recipesByID[recipeID]
	if !ok {
		return nil, fooddata.ErrNotFound
	}
	details := *r
	return &details, nil
}

// Autocomplete returns up to 8 catalog names containing the query as a
// substring, in catalog order. Queries shorter than 2 characters match nothing.
func (p *Provider) Autocomplete(_ context.Context, query string) ([]string, error) {
	q := strings.ToLower(strings.TrimSpace(query))
	if len(q) < 2 {
		return []string{}, nil
	}

	suggestions := make([]string, 0, autocompleteLimit)
	for i := range p.catalog.foods {
		if strings.Contains(strings.ToLower(p.catalog.foods[i].Name), q) {
			suggestions = append(suggestions, p.catalog.foods[i].Name)
			if len(suggestions) == autocompleteLimit {
				break
			}
		}
	}
	return suggestions, nil
}

// rank scores every catalog entry against query and returns the indexes of
// nonzero-scoring entries, highest score first, catalog order preserved for
// ties. entry returns an item's name and optional description.
func rank(query string, n int, entry func(i int) (name, description string)) []int {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return nil
	}
	words := queryWords(q)

	type scored struct {
		idx   int
		score int
	}
	var matches []scored
	for i := 0; i < n; i++ {
		name, description := entry(i)
		s := score(q, words, name, description)
		if s > 0 {
			matches = append(matches, scored{idx: i, score: s})
		}
	}

	sort.SliceStable(matches, func(a, b int) bool {
		return matches[a].score > matches[b].score
	})

	out := make([]int, len(matches))
	for i, m := range matches {
		out[i] = m.idx
	}
	return out
}

// score gives an exact-phrase name hit the maximum tier; otherwise it counts
// query words found in the name (double weight when a description is present)
// and in the description.
func score(query string, words []string, name, description string) int {
	lowerName := strings.ToLower(name)
	if strings.Contains(lowerName, query) {
		return exactPhraseScore
	}

	s := 0
	lowerDesc := strings.ToLower(description)
	for _, w := range words {
		if strings.Contains(lowerName, w) {
			if description != "" {
				s += 2
			} else {
				s++
			}
		} else if description != "" && strings.Contains(lowerDesc, w) {
			s++
		}
	}
	return s
}

// queryWords splits a normalized query into words of length >= 2.
func queryWords(q string) []string {
	var words []string
	for _, w := range strings.Fields(q) {
		if len(w) >= 2 {
			words = append(words, w)
		}
	}
	return words
}
