package handler

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/nutriplan/nutriplan/internal/api/response"
	"github.com/nutriplan/nutriplan/internal/fooddata"
)

// RecipesHandler handles recipe search and lookup endpoints.
type RecipesHandler struct {
	foods *fooddata.Service
}

// NewRecipesHandler creates a new RecipesHandler.
func NewRecipesHandler(foods *fooddata.Service) *RecipesHandler {
	return &RecipesHandler{foods: foods}
}

// Search handles GET /v1/recipes?q=...&max_results=...
func (h *RecipesHandler) Search(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	if query == "" {
		response.BadRequest(w, r, "query parameter q is required")
		return
	}
	maxResults := intParam(r, "max_results", 0)

	results, err := h.foods.SearchRecipes(r.Context(), query, maxResults)
	if err != nil {
		response.ServiceUnavailable(w, r, unavailableDetail)
		return
	}
	response.JSON(w, r, http.StatusOK, map[string]interface{}{"recipes": results})
}

// Get handles GET /v1/recipes/{recipeID}
func (h *RecipesHandler) Get(w http.ResponseWriter, r *http.Request) {
	recipeID := chi.URLParam(r, "recipeID")

	details, err := h.foods.GetRecipe(r.Context(), recipeID)
	if err != nil {
		if errors.Is(err, fooddata.ErrNotFound) {
			response.NotFound(w, r, "recipe not found")
			return
		}
		response.ServiceUnavailable(w, r, unavailableDetail)
		return
	}
	response.JSON(w, r, http.StatusOK, details)
}
