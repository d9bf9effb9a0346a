package handler

import (
	"fmt"

	"commerce-backend/internal/core/apperr"
	"commerce-backend/internal/core/auth"
	"commerce-backend/internal/core/response"
	orderdomain "commerce-backend/internal/features/orders/domain"
	"commerce-backend/internal/features/settlement/ports"

	"github.com/gofiber/fiber/v2"
)

// SignatureHeader carries the gateway's webhook signature.
const SignatureHeader = "Stripe-Signature"

// SettlementHandler handles HTTP requests that move money for orders.
type SettlementHandler struct {
	service  ports.SettlementService
	webhooks ports.WebhookReconciler
	orders   ports.OrderLookup
}

// NewSettlementHandler creates a new SettlementHandler.
func NewSettlementHandler(service ports.SettlementService, webhooks ports.WebhookReconciler, orders ports.OrderLookup) *SettlementHandler {
	return &SettlementHandler{
		service:  service,
		webhooks: webhooks,
		orders:   orders,
	}
}

// OrderResponse wraps an order with a human-readable outcome.
type OrderResponse struct {
	Message string             `json:"message"`
	Order   *orderdomain.Order `json:"order"`
}

// ReturnProductRequest represents the request body for returning one line.
type ReturnProductRequest struct {
	OrderID   string `json:"orderId"`
	ProductID string `json:"productId"`
	Reason    string `json:"reason"`
}

// InitiatePaymentRequest represents the request body for starting a payment.
type InitiatePaymentRequest struct {
	OrderID       string `json:"orderId"`
	PaymentMethod string `json:"paymentMethod"`
}

// PaymentResponse is either a settled order or a checkout URL to redirect to.
type PaymentResponse struct {
	Message string             `json:"message,omitempty"`
	Order   *orderdomain.Order `json:"order,omitempty"`
	URL     string             `json:"url,omitempty"`
}

// RefundRequest represents the request body for refunding a paid order.
type RefundRequest struct {
	OrderID string `json:"orderId"`
}

// WebhookResponse acknowledges a webhook delivery.
type WebhookResponse struct {
	Received  bool `json:"received"`
	Duplicate bool `json:"duplicate"`
}

// authorize checks that the caller owns orderID or is an admin.
func (h *SettlementHandler) authorize(c *fiber.Ctx, orderID string) error {
	if orderID == "" {
		return fmt.Errorf("%w: orderId is required", apperr.ErrValidation)
	}
	if auth.UserID(c) == "" || auth.IsAdmin(c) {
		return nil
	}

	order, err := h.orders.Get(c.UserContext(), orderID)
	if err != nil {
		return err
	}
	if !auth.CanAccess(c, order.UserID) {
		return fmt.Errorf("%w: order belongs to another user", apperr.ErrForbidden)
	}
	return nil
}

// CancelOrder handles POST /orders/:orderId/cancel.
// @Summary Cancel a processing order
// @Description Credits the order's net amount to the owner's wallet.
// @Tags Orders
// @Produce json
// @Param orderId path string true "Order ID"
// @Success 200 {object} OrderResponse
// @Failure 409 {object} response.ErrorResponse
// @Router /orders/{orderId}/cancel [post]
func (h *SettlementHandler) CancelOrder(c *fiber.Ctx) error {
	orderID := c.Params("orderId")
	if err := h.authorize(c, orderID); err != nil {
		return response.Error(c, err)
	}

	order, err := h.service.CancelOrder(c.UserContext(), orderID)
	if err != nil {
		return response.Error(c, err)
	}

	return c.Status(fiber.StatusOK).JSON(OrderResponse{Message: "Order cancelled successfully", Order: order})
}

// ReturnOrder handles POST /orders/:orderId/return.
// @Summary Return a delivered order
// @Description Credits the order's net amount to the owner's wallet.
// @Tags Orders
// @Produce json
// @Param orderId path string true "Order ID"
// @Success 200 {object} OrderResponse
// @Failure 409 {object} response.ErrorResponse
// @Router /orders/{orderId}/return [post]
func (h *SettlementHandler) ReturnOrder(c *fiber.Ctx) error {
	orderID := c.Params("orderId")
	if err := h.authorize(c, orderID); err != nil {
		return response.Error(c, err)
	}

	order, err := h.service.ReturnOrder(c.UserContext(), orderID)
	if err != nil {
		return response.Error(c, err)
	}

	return c.Status(fiber.StatusOK).JSON(OrderResponse{Message: "Order returned successfully", Order: order})
}

// ReturnProduct handles POST /orders/return-product.
// @Summary Return a single product of an order
// @Tags Orders
// @Accept json
// @Produce json
// @Param request body ReturnProductRequest true "Line to return"
// @Success 200 {object} OrderResponse
// @Failure 404 {object} response.ErrorResponse
// @Router /orders/return-product [post]
func (h *SettlementHandler) ReturnProduct(c *fiber.Ctx) error {
	var req ReturnProductRequest
	if err := c.BodyParser(&req); err != nil {
		return response.Error(c, fmt.Errorf("%w: invalid request body", apperr.ErrValidation))
	}
	if err := h.authorize(c, req.OrderID); err != nil {
		return response.Error(c, err)
	}

	order, err := h.service.ReturnProduct(c.UserContext(), req.OrderID, req.ProductID, req.Reason)
	if err != nil {
		return response.Error(c, err)
	}

	return c.Status(fiber.StatusOK).JSON(OrderResponse{Message: "Product returned successfully", Order: order})
}

// InitiatePayment handles POST /payments/initiate.
// @Summary Pay for an order
// @Description wallet and cod settle immediately; stripe returns a hosted checkout URL.
// @Tags Payments
// @Accept json
// @Produce json
// @Param Idempotency-Key header string false "Replay protection key"
// @Param request body InitiatePaymentRequest true "Payment details"
// @Success 200 {object} PaymentResponse
// @Failure 402 {object} response.ErrorResponse
// @Failure 409 {object} response.ErrorResponse
// @Router /payments/initiate [post]
func (h *SettlementHandler) InitiatePayment(c *fiber.Ctx) error {
	var req InitiatePaymentRequest
	if err := c.BodyParser(&req); err != nil {
		return response.Error(c, fmt.Errorf("%w: invalid request body", apperr.ErrValidation))
	}
	if err := h.authorize(c, req.OrderID); err != nil {
		return response.Error(c, err)
	}

	result, err := h.service.InitiatePayment(c.UserContext(), req.OrderID, req.PaymentMethod)
	if err != nil {
		return response.Error(c, err)
	}

	if result.CheckoutURL != "" {
		return c.Status(fiber.StatusOK).JSON(PaymentResponse{URL: result.CheckoutURL})
	}
	return c.Status(fiber.StatusOK).JSON(PaymentResponse{Message: result.Message, Order: result.Order})
}

// RefundPayment handles POST /payments/refund.
// @Summary Refund a paid order
// @Tags Payments
// @Accept json
// @Produce json
// @Param Idempotency-Key header string false "Replay protection key"
// @Param request body RefundRequest true "Order to refund"
// @Success 200 {object} OrderResponse
// @Failure 400 {object} response.ErrorResponse
// @Failure 502 {object} response.ErrorResponse
// @Router /payments/refund [post]
func (h *SettlementHandler) RefundPayment(c *fiber.Ctx) error {
	var req RefundRequest
	if err := c.BodyParser(&req); err != nil {
		return response.Error(c, fmt.Errorf("%w: invalid request body", apperr.ErrValidation))
	}
	if err := h.authorize(c, req.OrderID); err != nil {
		return response.Error(c, err)
	}

	order, err := h.service.RefundPayment(c.UserContext(), req.OrderID)
	if err != nil {
		return response.Error(c, err)
	}

	return c.Status(fiber.StatusOK).JSON(OrderResponse{Message: "Refund processed successfully", Order: order})
}

// Webhook handles POST /payments/webhook.
// @Summary Receive payment gateway events
// @Description The raw body is verified against the Stripe-Signature header.
// @Tags Payments
// @Accept json
// @Produce json
// @Param Stripe-Signature header string true "Gateway signature"
// @Success 200 {object} WebhookResponse
// @Failure 400 {object} response.ErrorResponse
// @Router /payments/webhook [post]
func (h *SettlementHandler) Webhook(c *fiber.Ctx) error {
	signature := c.Get(SignatureHeader)
	if signature == "" {
		return response.Error(c, fmt.Errorf("%w: missing %s header", apperr.ErrSignature, SignatureHeader))
	}

	result, err := h.webhooks.Handle(c.UserContext(), c.Body(), signature)
	if err != nil {
		return response.Error(c, err)
	}

	return c.Status(fiber.StatusOK).JSON(WebhookResponse{Received: true, Duplicate: result.Duplicate})
}
