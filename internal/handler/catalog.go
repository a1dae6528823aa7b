package handler

import (
	"net/http"

	"baklava-be/internal/auth"
	"baklava-be/internal/cart"
	"baklava-be/internal/utils"

	"github.com/go-chi/chi/v5"
)

type cartRequest struct {
	Items []cart.Item `json:"items"`
}

func (h *Handler) listProducts(w http.ResponseWriter, r *http.Request) {
	views, err := h.products.List(r.Context(), auth.FromContext(r.Context()), langOf(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, views)
}

func (h *Handler) getProduct(w http.ResponseWriter, r *http.Request) {
	view, err := h.products.Get(r.Context(), auth.FromContext(r.Context()), chi.URLParam(r, "id"), langOf(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, view)
}

func (h *Handler) quote(w http.ResponseWriter, r *http.Request) {
	var in cartRequest
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, r, err)
		return
	}

	q, err := h.cart.Quote(r.Context(), auth.FromContext(r.Context()), in.Items, langOf(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, q)
}
