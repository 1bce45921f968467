package api

import (
	"net/http"

	"github.com/tahcohcat/pizzeria-ops/internal/apierr"
	"github.com/tahcohcat/pizzeria-ops/internal/auth"
	"github.com/tahcohcat/pizzeria-ops/internal/models"
)

// GET /api/v1/recipes?include_inactive=
func (h *Handler) ListRecipes(w http.ResponseWriter, r *http.Request) {
	includeInactive, err := queryBool(r, "include_inactive")
	if err != nil {
		apierr.WriteError(w, r, err)
		return
	}

	recipes, err := h.recipes.ListRecipes(r.Context(), includeInactive != nil && *includeInactive)
	if err != nil {
		apierr.WriteError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, recipes)
}

// GET /api/v1/recipes/{id}
func (h *Handler) GetRecipe(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		apierr.WriteError(w, r, err)
		return
	}

	recipe, err := h.recipes.GetRecipe(r.Context(), id)
	if err != nil {
		apierr.WriteError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, recipe)
}

// POST /api/v1/recipes
func (h *Handler) CreateRecipe(w http.ResponseWriter, r *http.Request) {
	var req models.RecipeRequest
	if err := decode(r, &req); err != nil {
		apierr.WriteError(w, r, err)
		return
	}

	recipe, err := h.recipes.CreateRecipe(r.Context(), &req)
	if err != nil {
		apierr.WriteError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, recipe)
}

// PUT /api/v1/recipes/{id} - Replaces the ingredient lines
func (h *Handler) UpdateRecipe(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		apierr.WriteError(w, r, err)
		return
	}

	var req models.RecipeRequest
	if err := decode(r, &req); err != nil {
		apierr.WriteError(w, r, err)
		return
	}

	recipe, err := h.recipes.UpdateRecipe(r.Context(), id, &req)
	if err != nil {
		apierr.WriteError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, recipe)
}

// DELETE /api/v1/recipes/{id} - Recipes that were sold are only deactivated
func (h *Handler) DeleteRecipe(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		apierr.WriteError(w, r, err)
		return
	}

	if err := h.recipes.DeleteRecipe(r.Context(), id); err != nil {
		apierr.WriteError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GET /api/v1/recipes/{id}/cost
func (h *Handler) RecipeCost(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		apierr.WriteError(w, r, err)
		return
	}

	cost, err := h.recipes.Cost(r.Context(), id)
	if err != nil {
		apierr.WriteError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, cost)
}

// POST /api/v1/sales - Records a sale and deducts stock for every line
func (h *Handler) CreateSale(w http.ResponseWriter, r *http.Request) {
	var req models.CreateSaleRequest
	if err := decode(r, &req); err != nil {
		apierr.WriteError(w, r, err)
		return
	}

	p, _ := auth.FromContext(r.Context())
	employeeID := p.EmployeeID

	sale, err := h.sales.CreateSale(r.Context(), &employeeID, &req)
	if err != nil {
		apierr.WriteError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, sale)
}

// GET /api/v1/sales?from=&to=
func (h *Handler) ListSales(w http.ResponseWriter, r *http.Request) {
	from, to, err := queryRange(r, h.now())
	if err != nil {
		apierr.WriteError(w, r, err)
		return
	}

	sales, err := h.sales.ListSales(r.Context(), from, to)
	if err != nil {
		apierr.WriteError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sales)
}

// GET /api/v1/sales/summary?from=&to=
func (h *Handler) SalesSummary(w http.ResponseWriter, r *http.Request) {
	from, to, err := queryRange(r, h.now())
	if err != nil {
		apierr.WriteError(w, r, err)
		return
	}

	summary, err := h.sales.Summary(r.Context(), from, to)
	if err != nil {
		apierr.WriteError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

// GET /api/v1/sales/{id}
func (h *Handler) GetSale(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		apierr.WriteError(w, r, err)
		return
	}

	sale, err := h.sales.GetSale(r.Context(), id)
	if err != nil {
		apierr.WriteError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sale)
}
