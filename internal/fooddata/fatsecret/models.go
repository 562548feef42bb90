package fatsecret

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
)

// oneOrMany accepts both a single JSON value and an array for a repeated
// field. The upstream API is XML translated to JSON, so a field that held one
// element arrives as an object and the same field with several arrives as an
// array; internally both become a slice.
type oneOrMany[T any] []T

func (o *oneOrMany[T]) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*o = nil
		return nil
	}
	if data[0] == '[' {
		var items []T
		if err := json.Unmarshal(data, &items); err != nil {
			return err
		}
		*o = items
		return nil
	}
	var single T
	if err := json.Unmarshal(data, &single); err != nil {
		return err
	}
	*o = oneOrMany[T]{single}
	return nil
}

// parseFloat coerces an upstream numeric string, defaulting to 0 when absent
// or malformed. Used for calories and macros, which are always reported.
func parseFloat(s string) float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0
	}
	return v
}

// parseOptFloat coerces an optional numeric string, nil when absent or empty.
func parseOptFloat(s string) *float64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil
	}
	return &v
}

// parseInt coerces an upstream integer string, defaulting to 0.
func parseInt(s string) int {
	v, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0
	}
	return v
}

// Wire shapes. All scalar values arrive as strings.

type foodsSearchEnvelope struct {
	Foods struct {
		Food         oneOrMany[wireSearchFood] `json:"food"`
		MaxResults   string                    `json:"max_results"`
		PageNumber   string                    `json:"page_number"`
		TotalResults string                    `json:"total_results"`
	} `json:"foods"`
}

type wireSearchFood struct {
	FoodID          string `json:"food_id"`
	FoodName        string `json:"food_name"`
	FoodDescription string `json:"food_description"`
	BrandName       string `json:"brand_name"`
	FoodType        string `json:"food_type"`
}

type foodEnvelope struct {
	Food wireFood `json:"food"`
}

type wireFood struct {
	FoodID    string `json:"food_id"`
	FoodName  string `json:"food_name"`
	BrandName string `json:"brand_name"`
	Servings  struct {
		Serving oneOrMany[wireServing] `json:"serving"`
	} `json:"servings"`
}

type wireServing struct {
	ServingID           string `json:"serving_id"`
	ServingDescription  string `json:"serving_description"`
	MetricServingAmount string `json:"metric_serving_amount"`
	MetricServingUnit   string `json:"metric_serving_unit"`
	Calories            string `json:"calories"`
	Protein             string `json:"protein"`
	Carbohydrate        string `json:"carbohydrate"`
	Fat                 string `json:"fat"`
	Fiber               string `json:"fiber"`
}

type autocompleteEnvelope struct {
	Suggestions struct {
		Suggestion oneOrMany[string] `json:"suggestion"`
	} `json:"suggestions"`
}

type recipesSearchEnvelope struct {
	Recipes struct {
		Recipe oneOrMany[wireRecipeSummary] `json:"recipe"`
	} `json:"recipes"`
}

type wireRecipeSummary struct {
	RecipeID          string `json:"recipe_id"`
	RecipeName        string `json:"recipe_name"`
	RecipeDescription string `json:"recipe_description"`
}

type recipeEnvelope struct {
	Recipe wireRecipe `json:"recipe"`
}

type wireRecipe struct {
	RecipeID          string `json:"recipe_id"`
	RecipeName        string `json:"recipe_name"`
	RecipeDescription string `json:"recipe_description"`
	Ingredients       struct {
		Ingredient oneOrMany[wireIngredient] `json:"ingredient"`
	} `json:"ingredients"`
	Directions struct {
		Direction oneOrMany[wireDirection] `json:"direction"`
	} `json:"directions"`
}

type wireIngredient struct {
	FoodID                string `json:"food_id"`
	IngredientDescription string `json:"ingredient_description"`
}

type wireDirection struct {
	DirectionNumber      string `json:"direction_number"`
	DirectionDescription string `json:"direction_description"`
}

type barcodeEnvelope struct {
	FoodID struct {
		Value string `json:"value"`
	} `json:"food_id"`
}

type apiErrorEnvelope struct {
	Error *apiError `json:"error"`
}

type apiError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}
