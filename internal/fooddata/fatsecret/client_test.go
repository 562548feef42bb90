package fatsecret_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nutriplan/nutriplan/internal/fooddata"
	"github.com/nutriplan/nutriplan/internal/fooddata/fatsecret"
)

// newTestClient wires a client against a stub data endpoint, with a stub token
// endpoint that always issues "test-token".
func newTestClient(t *testing.T, dataHandler http.HandlerFunc) (*fatsecret.Client, func()) {
	t.Helper()

	tokenSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"test-token","token_type":"Bearer","expires_in":3600}`))
	}))
	dataSrv := httptest.NewServer(dataHandler)

	client := fatsecret.NewClient(fatsecret.ClientConfig{
		ClientID:     "client-id",
		ClientSecret: "client-secret",
		BaseURL:      dataSrv.URL,
		TokenURL:     tokenSrv.URL,
		BackoffBase:  time.Millisecond,
	})

	return client, func() {
		dataSrv.Close()
		tokenSrv.Close()
	}
}

func TestSearchFoodsArrayResponse(t *testing.T) {
	client, done := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "foods.search", r.URL.Query().Get("method"))
		assert.Equal(t, "json", r.URL.Query().Get("format"))
		assert.Equal(t, "chicken", r.URL.Query().Get("search_expression"))
		assert.Equal(t, "20", r.URL.Query().Get("max_results"))
		assert.Equal(t, "0", r.URL.Query().Get("page_number"))
		assert.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))

		_, _ = w.Write([]byte(`{"foods":{"food":[
			{"food_id":"1","food_name":"Chicken Breast","food_description":"Per 100g","brand_name":""},
			{"food_id":"2","food_name":"Chicken Thigh","food_description":"Per 100g","brand_name":"Acme"}
		]}}`))
	})
	defer done()

	results, err := client.SearchFoods(context.Background(), "chicken", 20, 0)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "Chicken Breast", results[0].Name)
	assert.Equal(t, "Acme", results[1].BrandName)
}

func TestSearchFoodsSingleObjectResponse(t *testing.T) {
	// A single match comes back as a bare object rather than a one-element
	// array. Both shapes must decode identically.
	client, done := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"foods":{"food":
			{"food_id":"1","food_name":"Chicken Breast","food_description":"Per 100g"}
		}}`))
	})
	defer done()

	results, err := client.SearchFoods(context.Background(), "chicken breast", 20, 0)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "1", results[0].FoodID)
	assert.Equal(t, "Chicken Breast", results[0].Name)
}

func TestSearchFoodsEmptyResponse(t *testing.T) {
	client, done := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"foods":{"food":null}}`))
	})
	defer done()

	results, err := client.SearchFoods(context.Background(), "xyzzy", 20, 0)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestGetFoodCoercesNumericStrings(t *testing.T) {
	client, done := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "food.get.v4", r.URL.Query().Get("method"))
		assert.Equal(t, "1", r.URL.Query().Get("food_id"))

		_, _ = w.Write([]byte(`{"food":{"food_id":"1","food_name":"Chicken Breast","servings":{"serving":
			{"serving_id":"10","serving_description":"100 g","metric_serving_amount":"100.000",
			 "metric_serving_unit":"g","calories":"165","protein":"31.02","carbohydrate":"0",
			 "fat":"3.57","fiber":"0.0"}
		}}}`))
	})
	defer done()

	details, err := client.GetFood(context.Background(), "1")
	require.NoError(t, err)
	require.Len(t, details.Servings, 1)

	s := details.Servings[0]
	assert.Equal(t, "100 g", s.ServingDescription)
	require.NotNil(t, s.MetricServingAmount)
	assert.InDelta(t, 100.0, *s.MetricServingAmount, 0.001)
	assert.InDelta(t, 165.0, s.Calories, 0.001)
	assert.InDelta(t, 31.02, s.Protein, 0.001)
	require.NotNil(t, s.Fiber)
	assert.InDelta(t, 0.0, *s.Fiber, 0.001)
}

func TestGetFoodMissingOptionalFields(t *testing.T) {
	client, done := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"food":{"food_id":"1","food_name":"Broth","servings":{"serving":
			{"serving_id":"10","serving_description":"1 cup","calories":"10","protein":"1",
			 "carbohydrate":"1","fat":"0"}
		}}}`))
	})
	defer done()

	details, err := client.GetFood(context.Background(), "1")
	require.NoError(t, err)
	require.Len(t, details.Servings, 1)
	assert.Nil(t, details.Servings[0].MetricServingAmount)
	assert.Nil(t, details.Servings[0].Fiber)
}

func TestGetFoodUnknownIDIsNotFound(t *testing.T) {
	var calls atomic.Int64
	client, done := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		_, _ = w.Write([]byte(`{"error":{"code":106,"message":"Invalid ID: food_id '999' does not exist"}}`))
	})
	defer done()

	_, err := client.GetFood(context.Background(), "999")
	require.ErrorIs(t, err, fooddata.ErrNotFound)
	assert.Equal(t, int64(1), calls.Load(), "invalid id must not be retried")
}

func TestCallRetriesServerErrors(t *testing.T) {
	var calls atomic.Int64
	client, done := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(`{"foods":{"food":null}}`))
	})
	defer done()

	_, err := client.SearchFoods(context.Background(), "chicken", 20, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(3), calls.Load())
}

func TestCallRetriesRateLimitWithRetryAfter(t *testing.T) {
	var calls atomic.Int64
	client, done := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) == 1 {
			w.Header().Set("Retry-After", "1")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		_, _ = w.Write([]byte(`{"foods":{"food":null}}`))
	})
	defer done()

	start := time.Now()
	_, err := client.SearchFoods(context.Background(), "chicken", 20, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(2), calls.Load())
	assert.GreaterOrEqual(t, time.Since(start), time.Second, "Retry-After must be honored")
}

func TestCallGivesUpAfterRetriesExhausted(t *testing.T) {
	var calls atomic.Int64
	client, done := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	})
	defer done()

	_, err := client.SearchFoods(context.Background(), "chicken", 20, 0)
	require.Error(t, err)

	var transient *fatsecret.TransientError
	require.True(t, errors.As(err, &transient))
	assert.Equal(t, http.StatusInternalServerError, transient.StatusCode)
	assert.Equal(t, int64(3), calls.Load(), "initial attempt plus two retries")
}

func TestCallClientErrorNotRetried(t *testing.T) {
	var calls atomic.Int64
	client, done := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
	})
	defer done()

	_, err := client.SearchFoods(context.Background(), "chicken", 20, 0)
	require.Error(t, err)
	assert.Equal(t, int64(1), calls.Load())
}

func TestFindFoodIDForBarcode(t *testing.T) {
	client, done := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "food.find_id_for_barcode", r.URL.Query().Get("method"))
		_, _ = w.Write([]byte(`{"food_id":{"value":"42"}}`))
	})
	defer done()

	foodID, err := client.FindFoodIDForBarcode(context.Background(), "0123456789012")
	require.NoError(t, err)
	assert.Equal(t, "42", foodID)
}

func TestFindFoodIDForBarcodeZeroIDIsNotFound(t *testing.T) {
	client, done := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"food_id":{"value":"0"}}`))
	})
	defer done()

	_, err := client.FindFoodIDForBarcode(context.Background(), "0000000000000")
	assert.ErrorIs(t, err, fooddata.ErrNotFound)
}

func TestGetFoodByBarcodeResolvesFood(t *testing.T) {
	client, done := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Query().Get("method") {
		case "food.find_id_for_barcode":
			assert.Equal(t, "0123456789012", r.URL.Query().Get("barcode"))
			_, _ = w.Write([]byte(`{"food_id":{"value":"42"}}`))
		case "food.get.v4":
			assert.Equal(t, "42", r.URL.Query().Get("food_id"))
			_, _ = w.Write([]byte(`{"food":{"food_id":"42","food_name":"Granola Bar","servings":{"serving":[]}}}`))
		default:
			t.Errorf("unexpected method %q", r.URL.Query().Get("method"))
		}
	})
	defer done()

	details, err := client.GetFoodByBarcode(context.Background(), "0123456789012")
	require.NoError(t, err)
	require.NotNil(t, details)
	assert.Equal(t, "Granola Bar", details.Name)
}

func TestGetFoodByBarcodeUnknownIsNil(t *testing.T) {
	client, done := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		// The provider signals "no match" with a zero id.
		_, _ = w.Write([]byte(`{"food_id":{"value":"0"}}`))
	})
	defer done()

	details, err := client.GetFoodByBarcode(context.Background(), "0000000000000")
	require.NoError(t, err)
	assert.Nil(t, details)
}

func TestGetFoodByBarcodeSwallowsFailures(t *testing.T) {
	client, done := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	})
	defer done()

	details, err := client.GetFoodByBarcode(context.Background(), "0123456789012")
	require.NoError(t, err)
	assert.Nil(t, details)
}

func TestSearchRecipes(t *testing.T) {
	client, done := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "recipes.search", r.URL.Query().Get("method"))
		_, _ = w.Write([]byte(`{"recipes":{"recipe":
			{"recipe_id":"7","recipe_name":"Grilled Chicken Salad","recipe_description":"A light salad."}
		}}`))
	})
	defer done()

	results, err := client.SearchRecipes(context.Background(), "chicken salad", 10)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "Grilled Chicken Salad", results[0].Name)
}

func TestGetRecipeNormalizesDirections(t *testing.T) {
	client, done := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "recipe.get.v2", r.URL.Query().Get("method"))
		_, _ = w.Write([]byte(`{"recipe":{"recipe_id":"7","recipe_name":"Grilled Chicken Salad",
			"recipe_description":"A light salad.",
			"ingredients":{"ingredient":[
				{"food_id":"1","ingredient_description":"200 g chicken breast"},
				{"food_id":"3","ingredient_description":"2 cups lettuce"}
			]},
			"directions":{"direction":
				{"direction_number":"1","direction_description":"Grill the chicken."}
			}}}`))
	})
	defer done()

	details, err := client.GetRecipe(context.Background(), "7")
	require.NoError(t, err)
	require.Len(t, details.Ingredients, 2)
	assert.Equal(t, "1", details.Ingredients[0].FoodID)
	require.Len(t, details.Directions, 1)
	assert.Equal(t, 1, details.Directions[0].Number)
	assert.Equal(t, "Grill the chicken.", details.Directions[0].Description)
}

func TestAutocomplete(t *testing.T) {
	client, done := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "foods.autocomplete", r.URL.Query().Get("method"))
		assert.Equal(t, "chick", r.URL.Query().Get("expression"))
		_, _ = w.Write([]byte(`{"suggestions":{"suggestion":["chicken","chicken breast","chickpeas"]}}`))
	})
	defer done()

	suggestions, err := client.Autocomplete(context.Background(), "chick")
	require.NoError(t, err)
	assert.Equal(t, []string{"chicken", "chicken breast", "chickpeas"}, suggestions)
}

func TestAutocompleteSingleSuggestion(t *testing.T) {
	client, done := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"suggestions":{"suggestion":"chicken"}}`))
	})
	defer done()

	suggestions, err := client.Autocomplete(context.Background(), "chicken")
	require.NoError(t, err)
	assert.Equal(t, []string{"chicken"}, suggestions)
}

func TestRequestTimeoutAbortsHungAttempt(t *testing.T) {
	var calls atomic.Int64
	tokenSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"test-token","token_type":"Bearer","expires_in":3600}`))
	}))
	defer tokenSrv.Close()
	dataSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			// Hang until the per-attempt timeout aborts the connection.
			select {
			case <-time.After(5 * time.Second):
			case <-r.Context().Done():
			}
			return
		}
		_, _ = w.Write([]byte(`{"foods":{"food":null}}`))
	}))
	defer dataSrv.Close()

	client := fatsecret.NewClient(fatsecret.ClientConfig{
		ClientID:       "client-id",
		ClientSecret:   "client-secret",
		BaseURL:        dataSrv.URL,
		TokenURL:       tokenSrv.URL,
		BackoffBase:    time.Millisecond,
		RequestTimeout: 50 * time.Millisecond,
	})

	start := time.Now()
	_, err := client.SearchFoods(context.Background(), "chicken", 20, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(2), calls.Load(), "the hung attempt must be retried")
	assert.Less(t, time.Since(start), 3*time.Second)
}

func TestRequestTimeoutExhaustedSurfacesTypedError(t *testing.T) {
	tokenSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"test-token","token_type":"Bearer","expires_in":3600}`))
	}))
	defer tokenSrv.Close()
	dataSrv := httptest.NewServer(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer dataSrv.Close()

	client := fatsecret.NewClient(fatsecret.ClientConfig{
		ClientID:       "client-id",
		ClientSecret:   "client-secret",
		BaseURL:        dataSrv.URL,
		TokenURL:       tokenSrv.URL,
		BackoffBase:    time.Millisecond,
		RequestTimeout: 50 * time.Millisecond,
	})

	_, err := client.SearchFoods(context.Background(), "chicken", 20, 0)
	assert.ErrorIs(t, err, fatsecret.ErrRequestTimeout)
}

func TestAuthFailureSurfacesAsAuthError(t *testing.T) {
	tokenSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer tokenSrv.Close()
	dataSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		t.Error("data endpoint must not be reached without a token")
	}))
	defer dataSrv.Close()

	client := fatsecret.NewClient(fatsecret.ClientConfig{
		ClientID:     "client-id",
		ClientSecret: "bad-secret",
		BaseURL:      dataSrv.URL,
		TokenURL:     tokenSrv.URL,
	})

	_, err := client.SearchFoods(context.Background(), "chicken", 20, 0)
	require.Error(t, err)

	var authErr *fatsecret.AuthError
	assert.True(t, errors.As(err, &authErr))
}
