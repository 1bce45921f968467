package api

import (
	"context"
	"net/http"

	"github.com/tahcohcat/pizzeria-ops/internal/apierr"
	"github.com/tahcohcat/pizzeria-ops/internal/models"
)

// GET /api/v1/ingredients
func (h *Handler) ListIngredients(w http.ResponseWriter, r *http.Request) {
	ingredients, err := h.inventory.ListIngredients(r.Context())
	if err != nil {
		apierr.WriteError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ingredients)
}

// GET /api/v1/ingredients/low-stock
func (h *Handler) LowStock(w http.ResponseWriter, r *http.Request) {
	ingredients, err := h.inventory.LowStock(r.Context())
	if err != nil {
		apierr.WriteError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ingredients)
}

// GET /api/v1/ingredients/search?q= - Substring matches plus spelling suggestions
func (h *Handler) SearchIngredients(w http.ResponseWriter, r *http.Request) {
	result, err := h.inventory.Search(r.Context(), r.URL.Query().Get("q"))
	if err != nil {
		apierr.WriteError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// GET /api/v1/ingredients/{id}
func (h *Handler) GetIngredient(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		apierr.WriteError(w, r, err)
		return
	}

	ingredient, err := h.inventory.GetIngredient(r.Context(), id)
	if err != nil {
		apierr.WriteError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ingredient)
}

// POST /api/v1/ingredients
func (h *Handler) CreateIngredient(w http.ResponseWriter, r *http.Request) {
	var req models.IngredientRequest
	if err := decode(r, &req); err != nil {
		apierr.WriteError(w, r, err)
		return
	}

	ingredient, err := h.inventory.CreateIngredient(r.Context(), &req)
	if err != nil {
		apierr.WriteError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, ingredient)
}

// PUT /api/v1/ingredients/{id} - Quantity is changed only through stock movements
func (h *Handler) UpdateIngredient(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		apierr.WriteError(w, r, err)
		return
	}

	var req models.IngredientRequest
	if err := decode(r, &req); err != nil {
		apierr.WriteError(w, r, err)
		return
	}

	ingredient, err := h.inventory.UpdateIngredient(r.Context(), id, &req)
	if err != nil {
		apierr.WriteError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ingredient)
}

// DELETE /api/v1/ingredients/{id}
func (h *Handler) DeleteIngredient(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		apierr.WriteError(w, r, err)
		return
	}

	if err := h.inventory.DeleteIngredient(r.Context(), id); err != nil {
		apierr.WriteError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// POST /api/v1/ingredients/{id}/restock
func (h *Handler) Restock(w http.ResponseWriter, r *http.Request) {
	h.stockChange(w, r, h.inventory.Restock)
}

// POST /api/v1/ingredients/{id}/waste
func (h *Handler) Waste(w http.ResponseWriter, r *http.Request) {
	h.stockChange(w, r, h.inventory.Waste)
}

func (h *Handler) stockChange(w http.ResponseWriter, r *http.Request,
	apply func(ctx context.Context, id int, req *models.StockChangeRequest) (*models.Ingredient, error)) {
	id, err := pathID(r, "id")
	if err != nil {
		apierr.WriteError(w, r, err)
		return
	}

	var req models.StockChangeRequest
	if err := decode(r, &req); err != nil {
		apierr.WriteError(w, r, err)
		return
	}

	ingredient, err := apply(r.Context(), id, &req)
	if err != nil {
		apierr.WriteError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ingredient)
}

// POST /api/v1/ingredients/{id}/adjust - Set the counted quantity
func (h *Handler) AdjustIngredient(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		apierr.WriteError(w, r, err)
		return
	}

	var req models.AdjustRequest
	if err := decode(r, &req); err != nil {
		apierr.WriteError(w, r, err)
		return
	}

	ingredient, err := h.inventory.Adjust(r.Context(), id, &req)
	if err != nil {
		apierr.WriteError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ingredient)
}

// GET /api/v1/ingredients/{id}/transactions?limit=
func (h *Handler) IngredientTransactions(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		apierr.WriteError(w, r, err)
		return
	}
	limit, err := queryInt(r, "limit", 50)
	if err != nil {
		apierr.WriteError(w, r, err)
		return
	}

	if _, err := h.inventory.GetIngredient(r.Context(), id); err != nil {
		apierr.WriteError(w, r, err)
		return
	}

	txs, err := h.inventory.Transactions(r.Context(), id, limit)
	if err != nil {
		apierr.WriteError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, txs)
}

// GET /api/v1/alerts?resolved=
func (h *Handler) ListAlerts(w http.ResponseWriter, r *http.Request) {
	resolved, err := queryBool(r, "resolved")
	if err != nil {
		apierr.WriteError(w, r, err)
		return
	}

	alerts, err := h.alerts.ListAlerts(r.Context(), resolved)
	if err != nil {
		apierr.WriteError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, alerts)
}

// POST /api/v1/alerts
func (h *Handler) CreateAlert(w http.ResponseWriter, r *http.Request) {
	var req models.CreateAlertRequest
	if err := decode(r, &req); err != nil {
		apierr.WriteError(w, r, err)
		return
	}

	alert, err := h.alerts.CreateAlert(r.Context(), &req)
	if err != nil {
		apierr.WriteError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, alert)
}

// POST /api/v1/alerts/{id}/resolve
func (h *Handler) ResolveAlert(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		apierr.WriteError(w, r, err)
		return
	}

	alert, err := h.alerts.ResolveAlert(r.Context(), id)
	if err != nil {
		apierr.WriteError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, alert)
}
