package httpapi

import (
	"encoding/json"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/nikolayk812/storefront/internal/domain"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
)

type setItemRequest struct {
	Quantity json.Number `json:"quantity"`
}

// quantity rejects fractional and out-of-range numbers as invalid quantities.
func (r setItemRequest) quantity() (int, error) {
	n, err := r.Quantity.Int64()
	if err != nil {
		return 0, fmt.Errorf("quantity[%s] is not an integer: %w", r.Quantity, domain.ErrInvalidQuantity)
	}
	if n < math.MinInt32 || n > math.MaxInt32 {
		return 0, fmt.Errorf("quantity[%d] is out of range: %w", n, domain.ErrInvalidQuantity)
	}
	return int(n), nil
}

// addressDTO accepts zipCode as an alias of postalCode.
type addressDTO struct {
	domain.Address
	ZipCode string `json:"zipCode,omitempty"`
}

func (a addressDTO) toDomain() domain.Address {
	addr := a.Address
	if addr.PostalCode == "" {
		addr.PostalCode = a.ZipCode
	}
	return addr
}

type placeOrderRequest struct {
	ShippingAddress addressDTO `json:"shippingAddress"`
	// BillingAddress defaults to the shipping address.
	BillingAddress *addressDTO `json:"billingAddress"`
	PaymentMethod  string      `json:"paymentMethod"`
	PaymentStatus  *string     `json:"paymentStatus"`
}

func (r placeOrderRequest) toDomain(idempotencyKey string) (domain.PlaceOrderRequest, error) {
	req := domain.PlaceOrderRequest{
		ShippingAddress: r.ShippingAddress.toDomain(),
		BillingAddress:  r.ShippingAddress.toDomain(),
		PaymentMethod:   r.PaymentMethod,
		IdempotencyKey:  idempotencyKey,
	}

	if r.BillingAddress != nil {
		req.BillingAddress = r.BillingAddress.toDomain()
	}

	if r.PaymentStatus != nil {
		status, err := domain.ToPaymentStatus(*r.PaymentStatus)
		if err != nil {
			return req, err
		}
		req.PaymentStatus = &status
	}

	return req, nil
}

type statusUpdateRequest struct {
	OrderStatus    *string `json:"orderStatus"`
	PaymentStatus  *string `json:"paymentStatus"`
	TrackingNumber *string `json:"trackingNumber"`
	Notes          *string `json:"notes"`
}

func (r statusUpdateRequest) toDomain() (domain.StatusUpdate, error) {
	update := domain.StatusUpdate{
		TrackingNumber: r.TrackingNumber,
		Notes:          r.Notes,
	}

	if r.OrderStatus != nil {
		status, err := domain.ToOrderStatus(*r.OrderStatus)
		if err != nil {
			return update, err
		}
		update.OrderStatus = &status
	}

	if r.PaymentStatus != nil {
		status, err := domain.ToPaymentStatus(*r.PaymentStatus)
		if err != nil {
			return update, err
		}
		update.PaymentStatus = &status
	}

	return update, nil
}

type productDTO struct {
	ID       string          `json:"id"`
	Name     string          `json:"name"`
	Category string          `json:"category,omitempty"`
	Image    string          `json:"image,omitempty"`
	Price    decimal.Decimal `json:"price"`
	Currency string          `json:"currency"`
	Stock    int             `json:"stock"`
}

func toProductDTO(p *domain.Product) *productDTO {
	if p == nil {
		return nil
	}
	return &productDTO{
		ID:       p.ID,
		Name:     p.Name,
		Category: p.Category,
		Image:    p.Image,
		Price:    p.Price.Amount,
		Currency: p.Price.Currency.String(),
		Stock:    p.Stock,
	}
}

type cartItemDTO struct {
	ProductID string      `json:"productId"`
	Quantity  int         `json:"quantity"`
	Product   *productDTO `json:"product"`
	AddedAt   time.Time   `json:"addedAt"`
	UpdatedAt time.Time   `json:"updatedAt"`
}

type cartDTO struct {
	OwnerID       string        `json:"ownerId"`
	Version       int64         `json:"version"`
	Items         []cartItemDTO `json:"items"`
	TotalQuantity int           `json:"totalQuantity"`
}

func toCartDTO(cart domain.Cart) cartDTO {
	return cartDTO{
		OwnerID: cart.OwnerID,
		Version: cart.Version,
		Items: lo.Map(cart.Items, func(item domain.CartItem, _ int) cartItemDTO {
			return cartItemDTO{
				ProductID: item.ProductID,
				Quantity:  item.Quantity,
				AddedAt:   item.CreatedAt,
				UpdatedAt: item.UpdatedAt,
			}
		}),
		TotalQuantity: cart.TotalQuantity(),
	}
}

func toCartViewDTO(view domain.CartView) cartDTO {
	dto := toCartDTO(view.Cart)
	dto.Items = lo.Map(view.Lines, func(line domain.CartLine, _ int) cartItemDTO {
		return cartItemDTO{
			ProductID: line.Item.ProductID,
			Quantity:  line.Item.Quantity,
			Product:   toProductDTO(line.Product),
			AddedAt:   line.Item.CreatedAt,
			UpdatedAt: line.Item.UpdatedAt,
		}
	})
	return dto
}

type orderItemDTO struct {
	ProductID string          `json:"productId"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unitPrice"`
	LineTotal decimal.Decimal `json:"lineTotal"`
	Product   *productDTO     `json:"product"`
}

type orderDTO struct {
	ID                uuid.UUID       `json:"id"`
	OwnerID           string          `json:"userId"`
	Items             []orderItemDTO  `json:"items"`
	Currency          string          `json:"currency"`
	Subtotal          decimal.Decimal `json:"subtotal"`
	ShippingCost      decimal.Decimal `json:"shippingCost"`
	Tax               decimal.Decimal `json:"tax"`
	TotalAmount       decimal.Decimal `json:"totalAmount"`
	ShippingAddress   domain.Address  `json:"shippingAddress"`
	BillingAddress    domain.Address  `json:"billingAddress"`
	PaymentMethod     string          `json:"paymentMethod"`
	PaymentStatus     string          `json:"paymentStatus"`
	OrderStatus       string          `json:"orderStatus"`
	TrackingNumber    *string         `json:"trackingNumber"`
	Notes             *string         `json:"notes"`
	EstimatedDelivery time.Time       `json:"estimatedDelivery"`
	CreatedAt         time.Time       `json:"createdAt"`
	UpdatedAt         time.Time       `json:"updatedAt"`
}

func toOrderDTO(o domain.Order) orderDTO {
	return orderDTO{
		ID:      o.ID,
		OwnerID: o.OwnerID,
		Items: lo.Map(o.Items, func(item domain.OrderItem, _ int) orderItemDTO {
			return orderItemDTO{
				ProductID: item.ProductID,
				Quantity:  item.Quantity,
				UnitPrice: item.UnitPrice.Amount,
				LineTotal: item.LineTotal().Amount,
				Product:   toProductDTO(item.Product),
			}
		}),
		Currency:          o.TotalAmount.Currency.String(),
		Subtotal:          o.Subtotal.Amount,
		ShippingCost:      o.ShippingCost.Amount,
		Tax:               o.Tax.Amount,
		TotalAmount:       o.TotalAmount.Amount,
		ShippingAddress:   o.ShippingAddress,
		BillingAddress:    o.BillingAddress,
		PaymentMethod:     o.PaymentMethod,
		PaymentStatus:     string(o.PaymentStatus),
		OrderStatus:       string(o.Status),
		TrackingNumber:    o.TrackingNumber,
		Notes:             o.Notes,
		EstimatedDelivery: o.EstimatedDelivery,
		CreatedAt:         o.CreatedAt,
		UpdatedAt:         o.UpdatedAt,
	}
}

func toOrderDTOs(orders []domain.Order) []orderDTO {
	return lo.Map(orders, func(o domain.Order, _ int) orderDTO { return toOrderDTO(o) })
}

type paginationDTO struct {
	CurrentPage int  `json:"currentPage"`
	TotalPages  int  `json:"totalPages"`
	TotalOrders int  `json:"totalOrders"`
	HasNext     bool `json:"hasNext"`
	HasPrev     bool `json:"hasPrev"`
}

type orderPageDTO struct {
	Orders     []orderDTO    `json:"orders"`
	Pagination paginationDTO `json:"pagination"`
}

func toOrderPageDTO(p domain.OrderPage) orderPageDTO {
	return orderPageDTO{
		Orders: toOrderDTOs(p.Orders),
		Pagination: paginationDTO{
			CurrentPage: p.Page.Number,
			TotalPages:  p.TotalPages(),
			TotalOrders: p.Total,
			HasNext:     p.HasNext(),
			HasPrev:     p.HasPrev(),
		},
	}
}
