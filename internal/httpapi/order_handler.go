package httpapi

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/nikolayk812/storefront/internal/domain"
)

const idempotencyKeyHeader = "Idempotency-Key"

type OrderService interface {
	PlaceOrder(ctx context.Context, userID string, req domain.PlaceOrderRequest) (domain.Order, error)
	GetOrder(ctx context.Context, actor domain.Actor, orderID uuid.UUID) (domain.Order, error)
	ListMyOrders(ctx context.Context, userID string) ([]domain.Order, error)
	ListAllOrders(ctx context.Context, actor domain.Actor, filter domain.OrderFilter, page domain.Page) (domain.OrderPage, error)
	UpdateOrderStatus(ctx context.Context, actor domain.Actor, orderID uuid.UUID, update domain.StatusUpdate) (domain.Order, error)
	CancelOrder(ctx context.Context, actor domain.Actor, orderID uuid.UUID) (domain.Order, error)
}

type orderHandler struct {
	orders OrderService
	log    *slog.Logger
}

func (h *orderHandler) placeOrder(w http.ResponseWriter, r *http.Request) {
	var body placeOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	req, err := body.toDomain(strings.TrimSpace(r.Header.Get(idempotencyKeyHeader)))
	if err != nil {
		respondDomainError(w, r, h.log, err)
		return
	}

	order, err := h.orders.PlaceOrder(r.Context(), actorFrom(r.Context()).UserID, req)
	if err != nil {
		respondDomainError(w, r, h.log, err)
		return
	}

	respondJSON(w, http.StatusCreated, toOrderDTO(order))
}

func (h *orderHandler) getOrder(w http.ResponseWriter, r *http.Request) {
	orderID, ok := orderIDParam(w, r)
	if !ok {
		return
	}

	order, err := h.orders.GetOrder(r.Context(), actorFrom(r.Context()), orderID)
	if err != nil {
		respondDomainError(w, r, h.log, err)
		return
	}

	respondJSON(w, http.StatusOK, toOrderDTO(order))
}

func (h *orderHandler) listMyOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := h.orders.ListMyOrders(r.Context(), actorFrom(r.Context()).UserID)
	if err != nil {
		respondDomainError(w, r, h.log, err)
		return
	}

	respondJSON(w, http.StatusOK, toOrderDTOs(orders))
}

func (h *orderHandler) listAllOrders(w http.ResponseWriter, r *http.Request) {
	filter, page, err := parseOrderQuery(r.URL.Query())
	if err != nil {
		respondDomainError(w, r, h.log, err)
		return
	}

	result, err := h.orders.ListAllOrders(r.Context(), actorFrom(r.Context()), filter, page)
	if err != nil {
		respondDomainError(w, r, h.log, err)
		return
	}

	respondJSON(w, http.StatusOK, toOrderPageDTO(result))
}

func (h *orderHandler) updateStatus(w http.ResponseWriter, r *http.Request) {
	orderID, ok := orderIDParam(w, r)
	if !ok {
		return
	}

	var body statusUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	update, err := body.toDomain()
	if err != nil {
		respondDomainError(w, r, h.log, err)
		return
	}

	order, err := h.orders.UpdateOrderStatus(r.Context(), actorFrom(r.Context()), orderID, update)
	if err != nil {
		respondDomainError(w, r, h.log, err)
		return
	}

	respondJSON(w, http.StatusOK, toOrderDTO(order))
}

func (h *orderHandler) cancelOrder(w http.ResponseWriter, r *http.Request) {
	orderID, ok := orderIDParam(w, r)
	if !ok {
		return
	}

	order, err := h.orders.CancelOrder(r.Context(), actorFrom(r.Context()), orderID)
	if err != nil {
		respondDomainError(w, r, h.log, err)
		return
	}

	respondJSON(w, http.StatusOK, toOrderDTO(order))
}

// orderIDParam treats a malformed id as an unknown order.
func orderIDParam(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	orderID, err := uuid.Parse(chi.URLParam(r, "orderID"))
	if err != nil {
		respondError(w, http.StatusNotFound, "not_found", domain.ErrNotFound.Error())
		return uuid.Nil, false
	}
	return orderID, true
}

// parseOrderQuery reads status, paymentStatus, userId, search, dateFrom, dateTo, page and limit.
// List values are comma separated. Dates are RFC 3339 or YYYY-MM-DD; a bare dateTo covers the whole day.
func parseOrderQuery(q url.Values) (domain.OrderFilter, domain.Page, error) {
	var (
		filter domain.OrderFilter
		page   domain.Page
	)

	for _, s := range splitList(q.Get("status")) {
		status, err := domain.ToOrderStatus(s)
		if err != nil {
			return filter, page, err
		}
		filter.Statuses = append(filter.Statuses, status)
	}

	for _, s := range splitList(q.Get("paymentStatus")) {
		status, err := domain.ToPaymentStatus(s)
		if err != nil {
			return filter, page, err
		}
		filter.PaymentStatuses = append(filter.PaymentStatuses, status)
	}

	filter.OwnerIDs = splitList(q.Get("userId"))
	filter.Search = strings.TrimSpace(q.Get("search"))

	after, err := parseDate(q.Get("dateFrom"), false)
	if err != nil {
		return filter, page, fmt.Errorf("dateFrom: %w", err)
	}
	before, err := parseDate(q.Get("dateTo"), true)
	if err != nil {
		return filter, page, fmt.Errorf("dateTo: %w", err)
	}
	if after != nil || before != nil {
		filter.CreatedAt = &domain.TimeRange{After: after, Before: before}
	}

	if err := filter.Validate(); err != nil {
		return filter, page, err
	}

	number, err := parseInt(q.Get("page"))
	if err != nil {
		return filter, page, fmt.Errorf("page: %w", err)
	}
	limit, err := parseInt(q.Get("limit"))
	if err != nil {
		return filter, page, fmt.Errorf("limit: %w", err)
	}

	page, err = domain.NewPage(number, limit)
	if err != nil {
		return filter, page, err
	}

	return filter, page, nil
}

func splitList(s string) []string {
	var result []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			result = append(result, part)
		}
	}
	return result
}

func parseInt(s string) (int, error) {
	if s == "" {
		return 0, nil
	}

	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("%q is not a number: %w", s, domain.ErrInvalidInput)
	}

	return n, nil
}

func parseDate(s string, endOfDay bool) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}

	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return &t, nil
	}

	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return nil, fmt.Errorf("%q is not a date: %w", s, domain.ErrInvalidInput)
	}
	if endOfDay {
		t = t.Add(24*time.Hour - time.Microsecond)
	}

	return &t, nil
}
