// Package handler provides HTTP handlers for the food data API.
package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/nutriplan/nutriplan/internal/api/response"
	"github.com/nutriplan/nutriplan/internal/fooddata"
)

const unavailableDetail = "food data temporarily unavailable"

// FoodsHandler handles food search and lookup endpoints.
type FoodsHandler struct {
	foods *fooddata.Service
}

// NewFoodsHandler creates a new FoodsHandler.
func NewFoodsHandler(foods *fooddata.Service) *FoodsHandler {
	return &FoodsHandler{foods: foods}
}

// Search handles GET /v1/foods?q=...&max_results=...&page=...
func (h *FoodsHandler) Search(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	if query == "" {
		response.BadRequest(w, r, "query parameter q is required")
		return
	}
	maxResults := intParam(r, "max_results", 0)
	page := intParam(r, "page", 0)

	results, err := h.foods.SearchFoods(r.Context(), query, maxResults, page)
	if err != nil {
		response.ServiceUnavailable(w, r, unavailableDetail)
		return
	}
	response.JSON(w, r, http.StatusOK, map[string]interface{}{"foods": results})
}

// Get handles GET /v1/foods/{foodID}
func (h *FoodsHandler) Get(w http.ResponseWriter, r *http.Request) {
	foodID := chi.URLParam(r, "foodID")

	details, err := h.foods.GetFood(r.Context(), foodID)
	if err != nil {
		if errors.Is(err, fooddata.ErrNotFound) {
			response.NotFound(w, r, "food not found")
			return
		}
		response.ServiceUnavailable(w, r, unavailableDetail)
		return
	}
	response.JSON(w, r, http.StatusOK, details)
}

// GetByBarcode handles GET /v1/foods/barcode/{barcode}
func (h *FoodsHandler) GetByBarcode(w http.ResponseWriter, r *http.Request) {
	barcode := chi.URLParam(r, "barcode")

	details, err := h.foods.GetFoodByBarcode(r.Context(), barcode)
	if err != nil {
		response.ServiceUnavailable(w, r, unavailableDetail)
		return
	}
	if details == nil {
		response.NotFound(w, r, "no food matches this barcode")
		return
	}
	response.JSON(w, r, http.StatusOK, details)
}

// Autocomplete handles GET /v1/foods/autocomplete?q=...
func (h *FoodsHandler) Autocomplete(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")

	suggestions, err := h.foods.Autocomplete(r.Context(), query)
	if err != nil {
		response.ServiceUnavailable(w, r, unavailableDetail)
		return
	}
	response.JSON(w, r, http.StatusOK, map[string]interface{}{"suggestions": suggestions})
}

// intParam reads an integer query parameter, falling back when absent or
// malformed.
func intParam(r *http.Request, name string, fallback int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return v
}
