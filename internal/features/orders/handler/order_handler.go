package handler

import (
	"fmt"

	"commerce-backend/internal/core/apperr"
	"commerce-backend/internal/core/auth"
	"commerce-backend/internal/core/response"
	"commerce-backend/internal/features/orders/domain"
	"commerce-backend/internal/features/orders/ports"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
)

// OrderHandler handles HTTP requests related to orders.
type OrderHandler struct {
	// service is the order use-case port.
	service ports.OrderService
}

// NewOrderHandler creates a new instance of OrderHandler.
func NewOrderHandler(s ports.OrderService) *OrderHandler {
	return &OrderHandler{
		service: s,
	}
}

// LineItemRequest is one product in a create-order request. Name, price and
// discount may be omitted when a catalog is configured.
type LineItemRequest struct {
	ProductID string          `json:"productId"`
	Name      string          `json:"name"`
	Price     decimal.Decimal `json:"price"`
	Discount  decimal.Decimal `json:"discount"`
	Quantity  int             `json:"quantity"`
}

// CreateOrderRequest represents the request body for creating an order.
type CreateOrderRequest struct {
	UserID    string            `json:"userId"`
	AddressID string            `json:"addressId"`
	Products  []LineItemRequest `json:"products"`
}

// UpdateStatusRequest represents the request body for an administrative status change.
type UpdateStatusRequest struct {
	Status domain.Status `json:"status"`
}

// CreateOrder handles POST /orders.
// @Summary Create an order
// @Tags Orders
// @Accept json
// @Produce json
// @Param order body CreateOrderRequest true "Order details"
// @Success 201 {object} domain.Order
// @Failure 400 {object} response.ErrorResponse
// @Router /orders [post]
func (h *OrderHandler) CreateOrder(c *fiber.Ctx) error {
	var req CreateOrderRequest
	if err := c.BodyParser(&req); err != nil {
		return response.Error(c, fmt.Errorf("%w: invalid request body", apperr.ErrValidation))
	}

	if req.UserID == "" {
		req.UserID = auth.UserID(c)
	}
	if !auth.CanAccess(c, req.UserID) {
		return response.Error(c, fmt.Errorf("%w: cannot place orders for another user", apperr.ErrForbidden))
	}

	items := make([]domain.LineItem, len(req.Products))
	for i, p := range req.Products {
		items[i] = domain.LineItem{
			ProductID: p.ProductID,
			Name:      p.Name,
			Price:     p.Price,
			Discount:  p.Discount,
			Quantity:  p.Quantity,
		}
	}

	order, err := h.service.Create(c.UserContext(), ports.CreateOrderInput{
		UserID:    req.UserID,
		AddressID: req.AddressID,
		Items:     items,
	})
	if err != nil {
		return response.Error(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(order)
}

// GetOrder handles GET /orders/:orderId.
// @Summary Get an order
// @Tags Orders
// @Produce json
// @Param orderId path string true "Order ID"
// @Success 200 {object} domain.Order
// @Failure 404 {object} response.ErrorResponse
// @Router /orders/{orderId} [get]
func (h *OrderHandler) GetOrder(c *fiber.Ctx) error {
	order, err := h.service.Get(c.UserContext(), c.Params("orderId"))
	if err != nil {
		return response.Error(c, err)
	}
	if !auth.CanAccess(c, order.UserID) {
		return response.Error(c, fmt.Errorf("%w: order belongs to another user", apperr.ErrForbidden))
	}

	return c.Status(fiber.StatusOK).JSON(order)
}

// ListUserOrders handles GET /orders/user/:userId.
// @Summary List orders of a user
// @Tags Orders
// @Produce json
// @Param userId path string true "User ID"
// @Success 200 {array} domain.Order
// @Router /orders/user/{userId} [get]
func (h *OrderHandler) ListUserOrders(c *fiber.Ctx) error {
	userID := c.Params("userId")
	if !auth.CanAccess(c, userID) {
		return response.Error(c, fmt.Errorf("%w: orders belong to another user", apperr.ErrForbidden))
	}

	orders, err := h.service.ListByUser(c.UserContext(), userID)
	if err != nil {
		return response.Error(c, err)
	}

	return c.Status(fiber.StatusOK).JSON(orders)
}

// ListOrders handles GET /orders.
// @Summary List all orders (admin)
// @Tags Orders
// @Produce json
// @Success 200 {array} domain.Order
// @Failure 403 {object} response.ErrorResponse
// @Router /orders [get]
func (h *OrderHandler) ListOrders(c *fiber.Ctx) error {
	orders, err := h.service.ListAll(c.UserContext())
	if err != nil {
		return response.Error(c, err)
	}

	return c.Status(fiber.StatusOK).JSON(orders)
}

// UpdateStatus handles PUT /orders/:orderId/status.
// @Summary Set an order status (admin)
// @Tags Orders
// @Accept json
// @Produce json
// @Param orderId path string true "Order ID"
// @Param status body UpdateStatusRequest true "New status"
// @Success 200 {object} domain.Order
// @Failure 404 {object} response.ErrorResponse
// @Router /orders/{orderId}/status [put]
func (h *OrderHandler) UpdateStatus(c *fiber.Ctx) error {
	var req UpdateStatusRequest
	if err := c.BodyParser(&req); err != nil {
		return response.Error(c, fmt.Errorf("%w: invalid request body", apperr.ErrValidation))
	}

	order, err := h.service.UpdateStatus(c.UserContext(), c.Params("orderId"), req.Status)
	if err != nil {
		return response.Error(c, err)
	}

	return c.Status(fiber.StatusOK).JSON(order)
}
