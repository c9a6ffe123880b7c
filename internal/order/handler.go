package order

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"lmp-be/internal/delivery"
	"lmp-be/internal/logger"
	"lmp-be/internal/transport"
	"lmp-be/internal/utils"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const maxOrderBody = 1 << 20

type itemRequest struct {
	MealID   string          `json:"mealId"`
	MealName string          `json:"mealName"`
	Quantity int             `json:"quantity"`
	Price    decimal.Decimal `json:"price"`
}

// createOrderRequest is the checkout form as posted by the storefront.
type createOrderRequest struct {
	Name           string          `json:"name"`
	Email          string          `json:"email"`
	Phone          string          `json:"phone"`
	Street         string          `json:"street"`
	City           string          `json:"city"`
	Zip            string          `json:"zip"`
	DeliveryDate   string          `json:"deliveryDate"`
	Items          []itemRequest   `json:"items"`
	Total          decimal.Decimal `json:"total"`
	TurnstileToken string          `json:"turnstileToken"`
}

type createOrderResponse struct {
	Success     bool   `json:"success"`
	OrderID     string `json:"orderId"`
	OrderNumber string `json:"orderNumber"`
}

// DeliveryReader looks up the delivery of a paid order for the admin view.
type DeliveryReader interface {
	ForOrder(ctx context.Context, orderID uuid.UUID) (*delivery.Delivery, error)
}

type Handler struct {
	svc        Service
	deliveries DeliveryReader
}

// NewHandler builds the order endpoints. deliveries may be nil, in which
// case the admin view omits the delivery.
func NewHandler(svc Service, deliveries DeliveryReader) *Handler {
	return &Handler{svc: svc, deliveries: deliveries}
}

// toInput converts the request into the typed service input. Only the
// delivery date can fail here; everything else is checked by the service.
func (req createOrderRequest) toInput() (CreateOrderInput, error) {
	in := CreateOrderInput{
		CustomerName:      req.Name,
		CustomerEmail:     req.Email,
		CustomerPhone:     req.Phone,
		ShippingStreet:    req.Street,
		ShippingCity:      req.City,
		ShippingZip:       req.Zip,
		Total:             req.Total,
		VerificationToken: req.TurnstileToken,
		Items:             make([]ItemInput, 0, len(req.Items)),
	}

	if d := strings.TrimSpace(req.DeliveryDate); d != "" {
		parsed, err := time.Parse(time.DateOnly, d)
		if err != nil {
			return in, newValidationError(KindInvalidRequest, "deliveryDate must be YYYY-MM-DD")
		}
		in.DeliveryDate = &parsed
	}

	for _, it := range req.Items {
		in.Items = append(in.Items, ItemInput{
			MealID:    it.MealID,
			MealName:  it.MealName,
			Quantity:  it.Quantity,
			UnitPrice: it.Price,
		})
	}
	return in, nil
}

// CreateOrder handles POST /api/orders.
func (h *Handler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.FromCtx(ctx).With(zap.String("handler", "CreateOrder"))

	var req createOrderRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxOrderBody))
	if err := dec.Decode(&req); err != nil {
		log.Info("invalid order payload", zap.Error(err))
		utils.WriteJSONError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	in, err := req.toInput()
	var o *Order
	if err == nil {
		in.RemoteIP = transport.ClientIP(r)
		if uid, ok := utils.GetUserIDFromContext(ctx); ok {
			in.UserID = &uid
		}
		o, err = h.svc.CreatePendingOrder(ctx, in)
	}
	if err != nil {
		if ve, ok := AsValidationError(err); ok {
			utils.WriteJSONError(w, ve.Message, http.StatusBadRequest)
			return
		}
		log.Error("create order failed", zap.Error(err))
		utils.WriteJSONError(w, "could not create order, please try again", http.StatusInternalServerError)
		return
	}

	utils.WriteJSON(w, http.StatusCreated, createOrderResponse{
		Success:     true,
		OrderID:     o.ID.String(),
		OrderNumber: o.OrderNumber,
	})
}

type itemResponse struct {
	MealID    string `json:"mealId"`
	MealName  string `json:"mealName"`
	Quantity  int    `json:"quantity"`
	UnitPrice string `json:"unitPrice"`
	LineTotal string `json:"lineTotal"`
}

type orderResponse struct {
	ID            string             `json:"id"`
	OrderNumber   string             `json:"orderNumber"`
	Status        OrderStatus        `json:"status"`
	Name          string             `json:"name"`
	Email         string             `json:"email"`
	Street        string             `json:"street"`
	City          string             `json:"city"`
	Zip           string             `json:"zip"`
	DeliveryDate  *string            `json:"deliveryDate,omitempty"`
	Total         string             `json:"total"`
	TotalQuantity int                `json:"totalQuantity"`
	PaidAt        *time.Time         `json:"paidAt,omitempty"`
	CreatedAt     time.Time          `json:"createdAt"`
	Items         []itemResponse     `json:"items"`
	Delivery      *delivery.Delivery `json:"delivery"`
}

func toOrderResponse(o *Order) orderResponse {
	res := orderResponse{
		ID:            o.ID.String(),
		OrderNumber:   o.OrderNumber,
		Status:        o.Status,
		Name:          o.CustomerName,
		Email:         o.CustomerEmail,
		Street:        o.ShippingStreet,
		City:          o.ShippingCity,
		Zip:           o.ShippingZip,
		Total:         o.Total.StringFixed(2),
		TotalQuantity: o.TotalQuantity(),
		PaidAt:        o.PaidAt,
		CreatedAt:     o.CreatedAt,
		Items:         make([]itemResponse, 0, len(o.Items)),
	}
	if o.DeliveryDate != nil {
		d := o.DeliveryDate.Format(time.DateOnly)
		res.DeliveryDate = &d
	}
	for _, it := range o.Items {
		res.Items = append(res.Items, itemResponse{
			MealID:    it.MealID,
			MealName:  it.MealName,
			Quantity:  it.Quantity,
			UnitPrice: it.UnitPrice.StringFixed(2),
			LineTotal: it.Subtotal().StringFixed(2),
		})
	}
	return res
}

// GetOrder handles GET /api/admin/orders/{id}.
func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	o, err := h.svc.GetOrder(ctx, chi.URLParam(r, "id"))
	switch {
	case errors.Is(err, ErrMissingOrderID), errors.Is(err, ErrInvalidOrderID):
		utils.WriteJSONError(w, err.Error(), http.StatusBadRequest)
		return
	case errors.Is(err, ErrOrderNotFound):
		utils.WriteJSONError(w, err.Error(), http.StatusNotFound)
		return
	case err != nil:
		logger.FromCtx(ctx).Error("get order failed", zap.Error(err))
		utils.WriteJSONError(w, "internal error", http.StatusInternalServerError)
		return
	}

	res := toOrderResponse(o)
	if h.deliveries != nil {
		d, err := h.deliveries.ForOrder(ctx, o.ID)
		if err != nil && !errors.Is(err, delivery.ErrDeliveryNotFound) {
			logger.FromCtx(ctx).Error("get delivery failed", zap.String("order_id", o.ID.String()), zap.Error(err))
			utils.WriteJSONError(w, "internal error", http.StatusInternalServerError)
			return
		}
		res.Delivery = d
	}

	utils.WriteJSON(w, http.StatusOK, map[string]any{"success": true, "order": res})
}
