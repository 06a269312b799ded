package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/checkout/session"
	"github.com/stripe/stripe-go/v76/webhook"

	"github.com/example/crumb/internal/money"
)

// PaymentLineItem is one line on the hosted payment page, in minor units.
type PaymentLineItem struct {
	Name       string
	UnitAmount money.Cents
	Quantity   int
}

// PaymentSessionRequest asks the provider for a hosted checkout page.
type PaymentSessionRequest struct {
	OrderID       uuid.UUID
	OrderNumber   string
	CustomerEmail string
	Currency      string
	LineItems     []PaymentLineItem
	SuccessURL    string
	CancelURL     string
}

// PaymentSession is the provider's handle for a checkout page.
type PaymentSession struct {
	ID  string
	URL string
}

// PaymentProvider creates hosted checkout sessions.
type PaymentProvider interface {
	CreateCheckoutSession(ctx context.Context, req PaymentSessionRequest) (*PaymentSession, error)
}

// PaymentEventKind classifies a verified payment webhook.
type PaymentEventKind string

const (
	PaymentCompleted PaymentEventKind = "completed"
	PaymentExpired   PaymentEventKind = "expired"
	PaymentIgnored   PaymentEventKind = "ignored"
)

// PaymentEvent is a verified webhook reduced to what order handling needs.
type PaymentEvent struct {
	Kind      PaymentEventKind
	EventID   string
	OrderID   uuid.UUID
	SessionID string
}

var ErrPaymentsNotConfigured = errors.New("payment provider is not configured")

// StripePayments creates Stripe Checkout sessions and verifies Stripe webhooks.
type StripePayments struct {
	sessions      session.Client
	webhookSecret string
}

func NewStripePayments(secretKey, webhookSecret string) *StripePayments {
	return &StripePayments{
		sessions:      session.Client{B: stripe.GetBackend(stripe.APIBackend), Key: secretKey},
		webhookSecret: webhookSecret,
	}
}

// CreateCheckoutSession opens a hosted checkout page for the order.
func (p *StripePayments) CreateCheckoutSession(ctx context.Context, req PaymentSessionRequest) (*PaymentSession, error) {
	if p.sessions.Key == "" {
		return nil, ErrPaymentsNotConfigured
	}

	params := &stripe.CheckoutSessionParams{
		Mode:              stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL:        stripe.String(req.SuccessURL),
		CancelURL:         stripe.String(req.CancelURL),
		ClientReferenceID: stripe.String(req.OrderID.String()),
	}
	if req.CustomerEmail != "" {
		params.CustomerEmail = stripe.String(req.CustomerEmail)
	}
	for _, item := range req.LineItems {
		params.LineItems = append(params.LineItems, &stripe.CheckoutSessionLineItemParams{
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency: stripe.String(strings.ToLower(req.Currency)),
				ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
					Name: stripe.String(item.Name),
				},
				UnitAmount: stripe.Int64(int64(item.UnitAmount)),
			},
			Quantity: stripe.Int64(int64(item.Quantity)),
		})
	}
	params.AddMetadata("order_id", req.OrderID.String())
	params.AddMetadata("order_number", req.OrderNumber)
	params.Context = ctx

	s, err := p.sessions.New(params)
	if err != nil {
		return nil, fmt.Errorf("stripe checkout session: %w", err)
	}
	return &PaymentSession{ID: s.ID, URL: s.URL}, nil
}

// ParseWebhook verifies the Stripe-Signature header and extracts the order
// the event refers to. Event types other than completed and expired
// checkout sessions come back as PaymentIgnored.
func (p *StripePayments) ParseWebhook(payload []byte, signature string) (*PaymentEvent, error) {
	if p.webhookSecret == "" {
		return nil, ErrPaymentsNotConfigured
	}

	event, err := webhook.ConstructEventWithOptions(payload, signature, p.webhookSecret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return nil, fmt.Errorf("verify webhook: %w", err)
	}

	out := &PaymentEvent{Kind: PaymentIgnored, EventID: event.ID}
	switch event.Type {
	case "checkout.session.completed", "checkout.session.async_payment_succeeded":
		out.Kind = PaymentCompleted
	case "checkout.session.expired", "checkout.session.async_payment_failed":
		out.Kind = PaymentExpired
	default:
		return out, nil
	}

	var cs stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &cs); err != nil {
		return nil, fmt.Errorf("decode checkout session: %w", err)
	}
	out.SessionID = cs.ID

	ref := cs.Metadata["order_id"]
	if ref == "" {
		ref = cs.ClientReferenceID
	}
	orderID, err := uuid.Parse(ref)
	if err != nil {
		return nil, fmt.Errorf("checkout session %s has no order reference", cs.ID)
	}
	out.OrderID = orderID
	return out, nil
}
