package adapters

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"commerce-backend/internal/core/apperr"
	"commerce-backend/internal/core/config"
	"commerce-backend/internal/core/httpclient"
	"commerce-backend/internal/features/settlement/domain"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
	"github.com/stripe/stripe-go/v76/webhook"
)

// metadataOrderID is the checkout metadata key carrying the order id.
const metadataOrderID = "orderId"

// StripeGateway implements the PaymentGateway interface with Stripe Checkout.
type StripeGateway struct {
	api           *client.API
	webhookSecret string
}

// NewStripeGateway creates a StripeGateway talking to the live Stripe API.
func NewStripeGateway(cfg config.StripeConfig) *StripeGateway {
	backend := stripe.GetBackendWithConfig(stripe.APIBackend, &stripe.BackendConfig{
		HTTPClient:        httpclient.NewClient("stripe", 30*time.Second),
		MaxNetworkRetries: stripe.Int64(2),
	})
	return newStripeGateway(cfg, backend)
}

func newStripeGateway(cfg config.StripeConfig, backend stripe.Backend) *StripeGateway {
	api := &client.API{}
	api.Init(cfg.SecretKey, &stripe.Backends{API: backend, Connect: backend, Uploads: backend})
	return &StripeGateway{api: api, webhookSecret: cfg.WebhookSecret}
}

// CreateCheckoutSession opens a hosted payment page for the request's lines.
func (g *StripeGateway) CreateCheckoutSession(ctx context.Context, req domain.CheckoutRequest) (*domain.CheckoutSession, error) {
	params := &stripe.CheckoutSessionParams{
		Mode:               stripe.String(string(stripe.CheckoutSessionModePayment)),
		PaymentMethodTypes: stripe.StringSlice([]string{"card"}),
		SuccessURL:         stripe.String(req.SuccessURL),
		CancelURL:          stripe.String(req.CancelURL),
		ClientReferenceID:  stripe.String(req.OrderID),
	}
	params.Context = ctx
	params.AddMetadata(metadataOrderID, req.OrderID)
	params.AddMetadata("userId", req.UserID)

	for _, l := range req.Lines {
		params.LineItems = append(params.LineItems, &stripe.CheckoutSessionLineItemParams{
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency: stripe.String(req.Currency),
				ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
					Name: stripe.String(l.Name),
				},
				UnitAmount: stripe.Int64(l.UnitAmount),
			},
			Quantity: stripe.Int64(l.Quantity),
		})
	}

	session, err := g.api.CheckoutSessions.New(params)
	if err != nil {
		return nil, gatewayError("checkout session", err)
	}
	return &domain.CheckoutSession{ID: session.ID, URL: session.URL}, nil
}

// Refund refunds the payment intent identified by paymentRef in full.
func (g *StripeGateway) Refund(ctx context.Context, paymentRef string) (*domain.Refund, error) {
	params := &stripe.RefundParams{PaymentIntent: stripe.String(paymentRef)}
	params.Context = ctx

	refund, err := g.api.Refunds.New(params)
	if err != nil {
		return nil, gatewayError("refund", err)
	}
	return &domain.Refund{ID: refund.ID, Status: string(refund.Status)}, nil
}

// ParseEvent verifies the Stripe-Signature header over payload and decodes the event.
func (g *StripeGateway) ParseEvent(payload []byte, signature string) (*domain.GatewayEvent, error) {
	event, err := webhook.ConstructEventWithOptions(payload, signature, g.webhookSecret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperr.ErrSignature, err)
	}

	out := &domain.GatewayEvent{ID: event.ID, Type: string(event.Type)}
	if out.Type != domain.EventCheckoutCompleted {
		return out, nil
	}
	if event.Data == nil {
		return nil, fmt.Errorf("%w: event %s has no data", apperr.ErrValidation, event.ID)
	}

	var session stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
		return nil, fmt.Errorf("%w: malformed checkout session: %v", apperr.ErrValidation, err)
	}

	out.OrderID = orderIDOf(&session)
	if out.OrderID == "" {
		return nil, fmt.Errorf("%w: checkout session %s carries no order id", apperr.ErrValidation, session.ID)
	}
	if session.PaymentIntent != nil {
		out.PaymentRef = session.PaymentIntent.ID
	}
	return out, nil
}

// orderIDOf reads the order id from metadata, the client reference or the success URL.
func orderIDOf(session *stripe.CheckoutSession) string {
	if id := session.Metadata[metadataOrderID]; id != "" {
		return id
	}
	if session.ClientReferenceID != "" {
		return session.ClientReferenceID
	}
	id, err := domain.OrderIDFromURL(session.SuccessURL)
	if err != nil {
		return ""
	}
	return id
}

func gatewayError(op string, err error) error {
	var stripeErr *stripe.Error
	if errors.As(err, &stripeErr) {
		return fmt.Errorf("%w: stripe %s failed (%d %s): %s",
			apperr.ErrExternalService, op, stripeErr.HTTPStatusCode, stripeErr.Code, stripeErr.Msg)
	}
	return fmt.Errorf("%w: stripe %s failed: %v", apperr.ErrExternalService, op, err)
}
