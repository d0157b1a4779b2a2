package transport

import (
	"errors"
	"fmt"
	"net/http"

	"shopfront/internal/domain"
	"shopfront/internal/middleware"
	"shopfront/internal/repository"
	"shopfront/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// CheckoutItemRequest is one requested (product, quantity) pair. Prices are
// never accepted from the client.
type CheckoutItemRequest struct {
	ProductID string `json:"product_id" validate:"required,uuid"`
	Quantity  int    `json:"quantity" validate:"required,gte=1"`
}

// CreateOrderRequest represents the checkout payload
type CreateOrderRequest struct {
	Items []CheckoutItemRequest `json:"items" validate:"required,min=1,dive"`
}

// ApproveOrderRequest carries the optional staff note
type ApproveOrderRequest struct {
	Note *string `json:"note"`
}

// ApproveOrderResponse reports the approval and its loyalty effect
type ApproveOrderResponse struct {
	Message           string `json:"message"`
	VIPCredited       bool   `json:"vip_credited"`
	VIPApprovedOrders int    `json:"vip_approved_orders,omitempty"`
	RewardMilestone   bool   `json:"reward_milestone"`
}

// OrderHandler handles HTTP requests for order operations
type OrderHandler struct {
	orderService   service.OrderService
	accountService service.AccountService
	logger         *zap.Logger
}

// NewOrderHandler creates a new OrderHandler
func NewOrderHandler(orderService service.OrderService, accountService service.AccountService, logger *zap.Logger) *OrderHandler {
	return &OrderHandler{
		orderService:   orderService,
		accountService: accountService,
		logger:         logger,
	}
}

// RegisterRoutes registers all order routes
func (h *OrderHandler) RegisterRoutes(r chi.Router, authMiddleware, staffMiddleware func(http.Handler) http.Handler) {
	r.Route("/api/orders", func(r chi.Router) {
		r.Use(authMiddleware)

		r.Post("/", h.Create)
		r.Get("/", h.List)
		r.Get("/{id}", h.Get)

		r.Group(func(r chi.Router) {
			r.Use(staffMiddleware)
			r.Post("/{id}/approve", h.Approve)
			r.Post("/{id}/discard", h.Discard)
		})
	})

	r.Group(func(r chi.Router) {
		r.Use(authMiddleware)
		r.Use(staffMiddleware)
		r.Get("/api/admin/analytics", h.Analytics)
	})
}

// Create handles checkout: it turns the submitted (product, quantity)
// pairs into a pending order with price snapshots. Stock is not touched.
func (h *OrderHandler) Create(w http.ResponseWriter, r *http.Request) {
	requester, ok := h.requireAccountID(w, r)
	if !ok {
		return
	}

	var req CreateOrderRequest
	if err := middleware.DecodeAndValidate(r, &req); err != nil {
		if validationErrors := middleware.FormatValidationErrors(err); len(validationErrors) > 0 {
			middleware.RespondWithValidationErrors(w, validationErrors)
			return
		}

		middleware.RespondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	lines := make([]service.CheckoutLine, 0, len(req.Items))
	for _, item := range req.Items {
		productID, err := uuid.Parse(item.ProductID)
		if err != nil {
			middleware.RespondWithError(w, http.StatusBadRequest, "invalid product id")
			return
		}
		lines = append(lines, service.CheckoutLine{ProductID: productID, Quantity: item.Quantity})
	}

	order, err := h.orderService.Checkout(r.Context(), requester, lines)
	if err != nil {
		var stockErr *service.InsufficientStockError
		switch {
		case errors.As(err, &stockErr):
			middleware.RespondWithError(w, http.StatusBadRequest,
				fmt.Sprintf("insufficient stock for %s", stockErr.ProductName))
		case errors.Is(err, repository.ErrProductNotFound):
			middleware.RespondWithError(w, http.StatusBadRequest, "product not found")
		case errors.Is(err, service.ErrStaffCannotOrder):
			middleware.RespondWithError(w, http.StatusForbidden, "staff accounts cannot place orders")
		case errors.Is(err, service.ErrEmptyOrder), errors.Is(err, service.ErrInvalidQuantity):
			middleware.RespondWithError(w, http.StatusBadRequest, err.Error())
		default:
			h.logger.Error("Checkout failed", zap.Error(err))
			middleware.RespondWithError(w, http.StatusInternalServerError, "failed to place order")
		}
		return
	}

	h.logger.Info("Order placed",
		zap.String("order_id", order.ID.String()),
		zap.String("order_number", order.OrderNumber),
		zap.String("account_id", order.AccountID.String()),
	)
	middleware.RespondWithJSON(w, http.StatusCreated, map[string]interface{}{
		"order":   order,
		"message": "Order placed successfully! Please visit the store for pickup.",
	})
}

// List returns the requester's orders, or every order for staff
func (h *OrderHandler) List(w http.ResponseWriter, r *http.Request) {
	requester, ok := h.loadRequester(w, r)
	if !ok {
		return
	}

	orders, err := h.orderService.ListFor(r.Context(), requester)
	if err != nil {
		h.logger.Error("Order listing failed", zap.Error(err))
		middleware.RespondWithError(w, http.StatusInternalServerError, "failed to list orders")
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, map[string]interface{}{"orders": orders})
}

// Get returns a single order visible to the requester
func (h *OrderHandler) Get(w http.ResponseWriter, r *http.Request) {
	requester, ok := h.loadRequester(w, r)
	if !ok {
		return
	}

	id, ok := parseIDParam(w, r)
	if !ok {
		return
	}

	order, err := h.orderService.Get(r.Context(), id, requester)
	if err != nil {
		if errors.Is(err, repository.ErrOrderNotFound) {
			middleware.RespondWithError(w, http.StatusNotFound, "order not found")
			return
		}

		h.logger.Error("Failed to get order", zap.Error(err))
		middleware.RespondWithError(w, http.StatusInternalServerError, "failed to get order")
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, map[string]interface{}{"order": order})
}

// Approve commits a pending order: stock decrement plus VIP credit
func (h *OrderHandler) Approve(w http.ResponseWriter, r *http.Request) {
	id, ok := parseIDParam(w, r)
	if !ok {
		return
	}

	// The note is optional and so is the body itself
	var req ApproveOrderRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := middleware.DecodeAndValidate(r, &req); err != nil {
			middleware.RespondWithError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}

	result, err := h.orderService.Approve(r.Context(), id, req.Note)
	if err != nil {
		if !h.respondOrderTransitionError(w, err) {
			h.logger.Error("Order approval failed", zap.Error(err))
			middleware.RespondWithError(w, http.StatusInternalServerError, "failed to approve order")
		}
		return
	}

	h.logger.Info("Order approved",
		zap.String("order_id", id.String()),
		zap.Bool("vip_credited", result.VIPCredited),
		zap.Bool("reward_milestone", result.RewardMilestone),
	)
	middleware.RespondWithJSON(w, http.StatusOK, ApproveOrderResponse{
		Message:           "Order approved successfully",
		VIPCredited:       result.VIPCredited,
		VIPApprovedOrders: result.VIPApprovedOrders,
		RewardMilestone:   result.RewardMilestone,
	})
}

// Discard closes a pending order without touching stock
func (h *OrderHandler) Discard(w http.ResponseWriter, r *http.Request) {
	id, ok := parseIDParam(w, r)
	if !ok {
		return
	}

	if _, err := h.orderService.Discard(r.Context(), id); err != nil {
		if !h.respondOrderTransitionError(w, err) {
			h.logger.Error("Order discard failed", zap.Error(err))
			middleware.RespondWithError(w, http.StatusInternalServerError, "failed to discard order")
		}
		return
	}

	h.logger.Info("Order discarded", zap.String("order_id", id.String()))
	middleware.RespondWithJSON(w, http.StatusOK, map[string]string{
		"message": "Order discarded successfully",
	})
}

// Analytics returns the monthly sales aggregation for staff
func (h *OrderHandler) Analytics(w http.ResponseWriter, r *http.Request) {
	sales, err := h.orderService.MonthlySales(r.Context())
	if err != nil {
		h.logger.Error("Analytics query failed", zap.Error(err))
		middleware.RespondWithError(w, http.StatusInternalServerError, "failed to load analytics")
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, map[string]interface{}{"data": sales})
}

// respondOrderTransitionError writes the response for the shared
// approve/discard failure modes and reports whether it handled the error.
func (h *OrderHandler) respondOrderTransitionError(w http.ResponseWriter, err error) bool {
	switch {
	case errors.Is(err, repository.ErrOrderNotFound):
		middleware.RespondWithError(w, http.StatusNotFound, "order not found")
		return true
	case errors.Is(err, repository.ErrOrderAlreadyProcessed):
		middleware.RespondWithError(w, http.StatusBadRequest, "order already processed")
		return true
	}
	return false
}

func (h *OrderHandler) requireAccountID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	accountIDStr, ok := middleware.GetAccountID(r.Context())
	if !ok {
		middleware.RespondWithError(w, http.StatusUnauthorized, "unauthorized")
		return uuid.Nil, false
	}

	accountID, err := uuid.Parse(accountIDStr)
	if err != nil {
		middleware.RespondWithError(w, http.StatusBadRequest, "invalid account ID")
		return uuid.Nil, false
	}

	return accountID, true
}

func (h *OrderHandler) loadRequester(w http.ResponseWriter, r *http.Request) (*domain.Account, bool) {
	accountID, ok := h.requireAccountID(w, r)
	if !ok {
		return nil, false
	}

	account, err := h.accountService.GetByID(r.Context(), accountID)
	if err != nil {
		h.logger.Error("Failed to load requesting account", zap.Error(err))
		middleware.RespondWithError(w, http.StatusInternalServerError, "failed to load account")
		return nil, false
	}

	return account, true
}
