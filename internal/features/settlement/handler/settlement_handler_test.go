package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"commerce-backend/internal/core/apperr"
	"commerce-backend/internal/core/auth"
	orderdomain "commerce-backend/internal/features/orders/domain"
	"commerce-backend/internal/features/settlement/ports"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockSettlementService is a mock implementation of ports.SettlementService
type MockSettlementService struct {
	mock.Mock
}

func (m *MockSettlementService) order(args mock.Arguments) (*orderdomain.Order, error) {
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*orderdomain.Order), args.Error(1)
}

func (m *MockSettlementService) CancelOrder(ctx context.Context, orderID string) (*orderdomain.Order, error) {
	return m.order(m.Called(ctx, orderID))
}

func (m *MockSettlementService) ReturnOrder(ctx context.Context, orderID string) (*orderdomain.Order, error) {
	return m.order(m.Called(ctx, orderID))
}

func (m *MockSettlementService) ReturnProduct(ctx context.Context, orderID, productID, reason string) (*orderdomain.Order, error) {
	return m.order(m.Called(ctx, orderID, productID, reason))
}

func (m *MockSettlementService) InitiatePayment(ctx context.Context, orderID, method string) (*ports.PaymentResult, error) {
	args := m.Called(ctx, orderID, method)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ports.PaymentResult), args.Error(1)
}

func (m *MockSettlementService) RefundPayment(ctx context.Context, orderID string) (*orderdomain.Order, error) {
	return m.order(m.Called(ctx, orderID))
}

// MockReconciler is a mock implementation of ports.WebhookReconciler
type MockReconciler struct {
	mock.Mock
}

func (m *MockReconciler) Handle(ctx context.Context, payload []byte, signature string) (*ports.WebhookResult, error) {
	args := m.Called(ctx, payload, signature)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ports.WebhookResult), args.Error(1)
}

// MockOrderLookup is a mock implementation of ports.OrderLookup
type MockOrderLookup struct {
	mock.Mock
}

func (m *MockOrderLookup) Get(ctx context.Context, id string) (*orderdomain.Order, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*orderdomain.Order), args.Error(1)
}

type testDeps struct {
	svc      *MockSettlementService
	webhooks *MockReconciler
	orders   *MockOrderLookup
	authn    *auth.Middleware
	app      *fiber.App
}

func setupApp(secret string) *testDeps {
	deps := &testDeps{
		svc:      new(MockSettlementService),
		webhooks: new(MockReconciler),
		orders:   new(MockOrderLookup),
		authn:    auth.New(secret),
	}
	h := NewSettlementHandler(deps.svc, deps.webhooks, deps.orders)

	app := fiber.New()
	app.Post("/payments/webhook", h.Webhook)
	app.Use(deps.authn.Authenticate())
	app.Post("/orders/return-product", h.ReturnProduct)
	app.Post("/orders/:orderId/cancel", h.CancelOrder)
	app.Post("/orders/:orderId/return", h.ReturnOrder)
	app.Post("/payments/initiate", h.InitiatePayment)
	app.Post("/payments/refund", h.RefundPayment)
	deps.app = app
	return deps
}

func sampleOrder(t *testing.T) *orderdomain.Order {
	t.Helper()
	o, err := orderdomain.NewOrder("user-1", "", []orderdomain.LineItem{
		{ProductID: "p1", Name: "Shirt", Price: decimal.NewFromInt(50), Quantity: 1},
	})
	require.NoError(t, err)
	return o
}

func send(t *testing.T, app *fiber.App, path, body string, headers map[string]string) *http.Response {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := app.Test(req)
	require.NoError(t, err)
	return resp
}

func bearer(t *testing.T, authn *auth.Middleware, userID, role string) map[string]string {
	t.Helper()
	token, err := authn.Issue(userID, role)
	require.NoError(t, err)
	return map[string]string{"Authorization": "Bearer " + token}
}

func decode(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	return body
}

func TestSettlementHandler_CancelOrder(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		deps := setupApp("")
		order := sampleOrder(t)
		deps.svc.On("CancelOrder", mock.Anything, order.ID).Return(order, nil).Once()

		resp := send(t, deps.app, "/orders/"+order.ID+"/cancel", "", nil)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "Order cancelled successfully", decode(t, resp)["message"])
		deps.orders.AssertNotCalled(t, "Get", mock.Anything, mock.Anything)
	})

	t.Run("InvalidState", func(t *testing.T) {
		deps := setupApp("")
		deps.svc.On("CancelOrder", mock.Anything, "order-1").
			Return(nil, fmt.Errorf("%w: cannot cancel this order", apperr.ErrInvalidState)).Once()

		resp := send(t, deps.app, "/orders/order-1/cancel", "", nil)
		assert.Equal(t, http.StatusConflict, resp.StatusCode)
		body := decode(t, resp)
		assert.Equal(t, "invalid_state", body["kind"])
		assert.Contains(t, body["message"], "cannot cancel this order")
	})

	t.Run("Owner", func(t *testing.T) {
		deps := setupApp("s3cret")
		order := sampleOrder(t)
		deps.orders.On("Get", mock.Anything, order.ID).Return(order, nil).Once()
		deps.svc.On("CancelOrder", mock.Anything, order.ID).Return(order, nil).Once()

		resp := send(t, deps.app, "/orders/"+order.ID+"/cancel", "", bearer(t, deps.authn, "user-1", ""))
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	})

	t.Run("OtherUser", func(t *testing.T) {
		deps := setupApp("s3cret")
		order := sampleOrder(t)
		deps.orders.On("Get", mock.Anything, order.ID).Return(order, nil).Once()

		resp := send(t, deps.app, "/orders/"+order.ID+"/cancel", "", bearer(t, deps.authn, "user-2", ""))
		assert.Equal(t, http.StatusForbidden, resp.StatusCode)
		deps.svc.AssertNotCalled(t, "CancelOrder", mock.Anything, mock.Anything)
	})

	t.Run("Admin", func(t *testing.T) {
		deps := setupApp("s3cret")
		order := sampleOrder(t)
		deps.svc.On("CancelOrder", mock.Anything, order.ID).Return(order, nil).Once()

		resp := send(t, deps.app, "/orders/"+order.ID+"/cancel", "", bearer(t, deps.authn, "admin-1", auth.RoleAdmin))
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		deps.orders.AssertNotCalled(t, "Get", mock.Anything, mock.Anything)
	})

	t.Run("NoToken", func(t *testing.T) {
		deps := setupApp("s3cret")
		resp := send(t, deps.app, "/orders/order-1/cancel", "", nil)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})
}

func TestSettlementHandler_ReturnOrder(t *testing.T) {
	deps := setupApp("")
	order := sampleOrder(t)
	deps.svc.On("ReturnOrder", mock.Anything, order.ID).Return(order, nil).Once()

	resp := send(t, deps.app, "/orders/"+order.ID+"/return", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "Order returned successfully", decode(t, resp)["message"])
}

func TestSettlementHandler_ReturnProduct(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		deps := setupApp("")
		order := sampleOrder(t)
		deps.svc.On("ReturnProduct", mock.Anything, order.ID, "p1", "damaged").Return(order, nil).Once()

		body := fmt.Sprintf(`{"orderId":%q,"productId":"p1","reason":"damaged"}`, order.ID)
		resp := send(t, deps.app, "/orders/return-product", body, nil)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		deps.svc.AssertExpectations(t)
	})

	t.Run("LineNotFound", func(t *testing.T) {
		deps := setupApp("")
		deps.svc.On("ReturnProduct", mock.Anything, "order-1", "p9", "").
			Return(nil, fmt.Errorf("%w: product not found in order or already returned", apperr.ErrNotFound)).Once()

		resp := send(t, deps.app, "/orders/return-product", `{"orderId":"order-1","productId":"p9"}`, nil)
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})

	t.Run("MissingOrderID", func(t *testing.T) {
		deps := setupApp("")
		resp := send(t, deps.app, "/orders/return-product", `{"productId":"p1"}`, nil)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("InvalidBody", func(t *testing.T) {
		deps := setupApp("")
		resp := send(t, deps.app, "/orders/return-product", `{invalid`, nil)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})
}

func TestSettlementHandler_InitiatePayment(t *testing.T) {
	t.Run("Wallet", func(t *testing.T) {
		deps := setupApp("")
		order := sampleOrder(t)
		deps.svc.On("InitiatePayment", mock.Anything, order.ID, "wallet").
			Return(&ports.PaymentResult{Order: order, Message: "Payment successful using wallet"}, nil).Once()

		resp := send(t, deps.app, "/payments/initiate", fmt.Sprintf(`{"orderId":%q,"paymentMethod":"wallet"}`, order.ID), nil)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		body := decode(t, resp)
		assert.Equal(t, "Payment successful using wallet", body["message"])
		assert.NotNil(t, body["order"])
		assert.NotContains(t, body, "url")
	})

	t.Run("Checkout", func(t *testing.T) {
		deps := setupApp("")
		deps.svc.On("InitiatePayment", mock.Anything, "order-1", "stripe").
			Return(&ports.PaymentResult{CheckoutURL: "https://checkout.test/cs_1"}, nil).Once()

		resp := send(t, deps.app, "/payments/initiate", `{"orderId":"order-1","paymentMethod":"stripe"}`, nil)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		body := decode(t, resp)
		assert.Equal(t, "https://checkout.test/cs_1", body["url"])
		assert.NotContains(t, body, "order")
	})

	t.Run("InsufficientFunds", func(t *testing.T) {
		deps := setupApp("")
		deps.svc.On("InitiatePayment", mock.Anything, "order-1", "wallet").
			Return(nil, fmt.Errorf("%w: balance 10.00 is below 100.00", apperr.ErrInsufficientFunds)).Once()

		resp := send(t, deps.app, "/payments/initiate", `{"orderId":"order-1","paymentMethod":"wallet"}`, nil)
		assert.Equal(t, http.StatusPaymentRequired, resp.StatusCode)
		assert.Equal(t, "insufficient_funds", decode(t, resp)["kind"])
	})

	t.Run("UnsupportedMethod", func(t *testing.T) {
		deps := setupApp("")
		deps.svc.On("InitiatePayment", mock.Anything, "order-1", "bitcoin").
			Return(nil, fmt.Errorf("%w: invalid payment method", apperr.ErrUnsupportedMethod)).Once()

		resp := send(t, deps.app, "/payments/initiate", `{"orderId":"order-1","paymentMethod":"bitcoin"}`, nil)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		assert.Equal(t, "unsupported_method", decode(t, resp)["kind"])
	})

	t.Run("UnknownOrderForUser", func(t *testing.T) {
		deps := setupApp("s3cret")
		deps.orders.On("Get", mock.Anything, "missing").
			Return(nil, fmt.Errorf("%w: order missing", apperr.ErrNotFound)).Once()

		resp := send(t, deps.app, "/payments/initiate", `{"orderId":"missing","paymentMethod":"wallet"}`, bearer(t, deps.authn, "user-1", ""))
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})
}

func TestSettlementHandler_RefundPayment(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		deps := setupApp("")
		order := sampleOrder(t)
		deps.svc.On("RefundPayment", mock.Anything, order.ID).Return(order, nil).Once()

		resp := send(t, deps.app, "/payments/refund", fmt.Sprintf(`{"orderId":%q}`, order.ID), nil)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	})

	t.Run("GatewayFailure", func(t *testing.T) {
		deps := setupApp("")
		deps.svc.On("RefundPayment", mock.Anything, "order-1").
			Return(nil, fmt.Errorf("%w: gateway refund failed", apperr.ErrExternalService)).Once()

		resp := send(t, deps.app, "/payments/refund", `{"orderId":"order-1"}`, nil)
		assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
		assert.Equal(t, "external_service_error", decode(t, resp)["kind"])
	})
}

func TestSettlementHandler_Webhook(t *testing.T) {
	payload := `{"id":"evt_1","type":"checkout.session.completed"}`

	t.Run("Applied", func(t *testing.T) {
		deps := setupApp("s3cret")
		deps.webhooks.On("Handle", mock.Anything, []byte(payload), "t=1,v1=abc").
			Return(&ports.WebhookResult{Applied: true}, nil).Once()

		resp := send(t, deps.app, "/payments/webhook", payload, map[string]string{SignatureHeader: "t=1,v1=abc"})
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		body := decode(t, resp)
		assert.Equal(t, true, body["received"])
		assert.Equal(t, false, body["duplicate"])
		deps.webhooks.AssertExpectations(t)
	})

	t.Run("Duplicate", func(t *testing.T) {
		deps := setupApp("")
		deps.webhooks.On("Handle", mock.Anything, mock.Anything, "sig").
			Return(&ports.WebhookResult{Duplicate: true}, nil).Once()

		resp := send(t, deps.app, "/payments/webhook", payload, map[string]string{SignatureHeader: "sig"})
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, true, decode(t, resp)["duplicate"])
	})

	t.Run("BadSignature", func(t *testing.T) {
		deps := setupApp("")
		deps.webhooks.On("Handle", mock.Anything, mock.Anything, "forged").
			Return(nil, fmt.Errorf("%w: no valid signature", apperr.ErrSignature)).Once()

		resp := send(t, deps.app, "/payments/webhook", payload, map[string]string{SignatureHeader: "forged"})
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		assert.Equal(t, "signature_error", decode(t, resp)["kind"])
	})

	t.Run("MissingSignature", func(t *testing.T) {
		deps := setupApp("")
		resp := send(t, deps.app, "/payments/webhook", payload, nil)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		deps.webhooks.AssertNotCalled(t, "Handle", mock.Anything, mock.Anything, mock.Anything)
	})
}
