package localdb_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nutriplan/nutriplan/internal/fooddata"
	"github.com/nutriplan/nutriplan/internal/fooddata/localdb"
)

func newProvider(t *testing.T) *localdb.Provider {
	t.Helper()
	p, err := localdb.NewProvider()
	require.NoError(t, err)
	return p
}

func TestSearchFoodsExactPhraseRanksFirst(t *testing.T) {
	p := newProvider(t)

	results, err := p.SearchFoods(context.Background(), "chicken breast", 20, 0)
	require.NoError(t, err)
	require.NotEmpty(t, results)

	assert.Equal(t, "Chicken Breast", results[0].Name)

	// Single-word matches follow, in catalog order.
	names := make([]string, 0, len(results))
	for _, r := range results {
		names = append(names, r.Name)
	}
	assert.Equal(t, []string{"Chicken Breast", "Chicken Thigh", "Chicken Drumstick"}, names)
}

func TestSearchFoodsTiesKeepCatalogOrder(t *testing.T) {
	p := newProvider(t)

	results, err := p.SearchFoods(context.Background(), "chicken", 20, 0)
	require.NoError(t, err)

	names := make([]string, 0, len(results))
	for _, r := range results {
		names = append(names, r.Name)
	}
	assert.Equal(t, []string{"Chicken Breast", "Chicken Thigh", "Chicken Drumstick"}, names)
}

func TestSearchFoodsCaseInsensitive(t *testing.T) {
	p := newProvider(t)

	upper, err := p.SearchFoods(context.Background(), "CHICKEN BREAST", 20, 0)
	require.NoError(t, err)
	lower, err := p.SearchFoods(context.Background(), "chicken breast", 20, 0)
	require.NoError(t, err)
	assert.Equal(t, lower, upper)
}

func TestSearchFoodsPagination(t *testing.T) {
	p := newProvider(t)
	ctx := context.Background()

	page0, err := p.SearchFoods(ctx, "chicken", 2, 0)
	require.NoError(t, err)
	require.Len(t, page0, 2)

	page1, err := p.SearchFoods(ctx, "chicken", 2, 1)
	require.NoError(t, err)
	require.Len(t, page1, 1)
	assert.Equal(t, "Chicken Drumstick", page1[0].Name)

	// A page past the end is empty, not an error.
	page9, err := p.SearchFoods(ctx, "chicken", 2, 9)
	require.NoError(t, err)
	assert.Empty(t, page9)
}

func TestSearchFoodsNoMatches(t *testing.T) {
	p := newProvider(t)

	results, err := p.SearchFoods(context.Background(), "xylophone", 20, 0)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestSearchFoodsShortWordsIgnored(t *testing.T) {
	p := newProvider(t)

	// Single-character words never match anything on their own.
	results, err := p.SearchFoods(context.Background(), "a b c", 20, 0)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestGetFood(t *testing.T) {
	p := newProvider(t)

	details, err := p.GetFood(context.Background(), "local-1")
	require.NoError(t, err)
	assert.Equal(t, "Chicken Breast", details.Name)
	require.NotEmpty(t, details.Servings)
	assert.InDelta(t, 165, details.Servings[0].Calories, 0.001)
}

func TestGetFoodUnknownID(t *testing.T) {
	p := newProvider(t)

	_, err := p.GetFood(context.Background(), "local-999")
	assert.ErrorIs(t, err, fooddata.ErrNotFound)
}

func TestSearchRecipesNameOutweighsDescription(t *testing.T) {
	p := newProvider(t)

	results, err := p.SearchRecipes(context.Background(), "chicken rice", 10)
	require.NoError(t, err)
	require.NotEmpty(t, results)

	// Both query words hit the name of the fried rice recipe; the salad only
	// matches "chicken".
	assert.Equal(t, "Chicken Fried Rice", results[0].Name)
}

func TestSearchRecipesCapped(t *testing.T) {
	p := newProvider(t)

	results, err := p.SearchRecipes(context.Background(), "chicken", 1)
	require.NoError(t, err)
	assert.Len(t, results, 1)
}

func TestGetRecipe(t *testing.T) {
	p := newProvider(t)

	details, err := p.GetRecipe(context.Background(), "local-r1")
	require.NoError(t, err)
	assert.Equal(t, "Grilled Chicken Salad", details.Name)
	require.NotEmpty(t, details.Ingredients)
	require.NotEmpty(t, details.Directions)
	assert.Equal(t, 1, details.Directions[0].Number)
}

func TestGetRecipeUnknownID(t *testing.T) {
	p := newProvider(t)

	_, err := p.GetRecipe(context.Background(), "local-r999")
	assert.ErrorIs(t, err, fooddata.ErrNotFound)
}

func TestAutocomplete(t *testing.T) {
	p := newProvider(t)

	suggestions, err := p.Autocomplete(context.Background(), "chick")
	require.NoError(t, err)

	// Substring matches in catalog order, capped.
	assert.Equal(t, []string{"Chicken Breast", "Chicken Thigh", "Chickpeas", "Chicken Drumstick"}, suggestions)
	assert.LessOrEqual(t, len(suggestions), 8)
}

func TestAutocompleteShortQuery(t *testing.T) {
	p := newProvider(t)

	suggestions, err := p.Autocomplete(context.Background(), "c")
	require.NoError(t, err)
	assert.Empty(t, suggestions)
}
