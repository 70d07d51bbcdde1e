package httpapi

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/nikolayk812/storefront/internal/domain"
)

type CartService interface {
	GetCartView(ctx context.Context, userID string) (domain.CartView, error)
	SetItem(ctx context.Context, userID, productID string, quantity int) (domain.Cart, error)
	RemoveItem(ctx context.Context, userID, productID string) (domain.Cart, error)
	Clear(ctx context.Context, userID string) error
}

type cartHandler struct {
	carts CartService
	log   *slog.Logger
}

func (h *cartHandler) getCart(w http.ResponseWriter, r *http.Request) {
	view, err := h.carts.GetCartView(r.Context(), actorFrom(r.Context()).UserID)
	if err != nil {
		respondDomainError(w, r, h.log, err)
		return
	}

	respondJSON(w, http.StatusOK, toCartViewDTO(view))
}

func (h *cartHandler) setItem(w http.ResponseWriter, r *http.Request) {
	var req setItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	quantity, err := req.quantity()
	if err != nil {
		respondDomainError(w, r, h.log, err)
		return
	}

	cart, err := h.carts.SetItem(r.Context(), actorFrom(r.Context()).UserID, chi.URLParam(r, "productID"), quantity)
	if err != nil {
		respondDomainError(w, r, h.log, err)
		return
	}

	respondJSON(w, http.StatusOK, toCartDTO(cart))
}

func (h *cartHandler) removeItem(w http.ResponseWriter, r *http.Request) {
	cart, err := h.carts.RemoveItem(r.Context(), actorFrom(r.Context()).UserID, chi.URLParam(r, "productID"))
	if err != nil {
		respondDomainError(w, r, h.log, err)
		return
	}

	respondJSON(w, http.StatusOK, toCartDTO(cart))
}

func (h *cartHandler) clear(w http.ResponseWriter, r *http.Request) {
	if err := h.carts.Clear(r.Context(), actorFrom(r.Context()).UserID); err != nil {
		respondDomainError(w, r, h.log, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
