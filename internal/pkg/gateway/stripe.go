package gateway

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/webhook"
	"github.com/streamvault/streamvault/app/models"
)

const stripeSignatureHeader = "Stripe-Signature"

// StripeNormalizer verifies the Stripe-Signature header scheme (t=..., v1=...)
// via the official webhook helper and maps checkout.session.completed events
// into the canonical shape.
type StripeNormalizer struct {
	webhookSecret string
}

func NewStripeNormalizer(webhookSecret string) *StripeNormalizer {
	return &StripeNormalizer{webhookSecret: webhookSecret}
}

func (n *StripeNormalizer) Provider() string {
	return models.GatewayStripe
}

func (n *StripeNormalizer) Normalize(payload []byte, headers map[string]string) (*CanonicalEvent, error) {
	sig := headerValue(headers, stripeSignatureHeader)
	if sig == "" || n.webhookSecret == "" {
		return nil, ErrInvalidSignature
	}

	event, err := webhook.ConstructEventWithOptions(payload, sig, n.webhookSecret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}

	if event.Type != "checkout.session.completed" {
		return &CanonicalEvent{
			Gateway:      models.GatewayStripe,
			EventKind:    EventKindIgnored,
			RawEventType: string(event.Type),
		}, nil
	}

	var session stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
		return nil, fmt.Errorf("stripe session parse failed: %w", err)
	}

	email := ""
	name := ""
	if session.CustomerDetails != nil {
		email = session.CustomerDetails.Email
		name = session.CustomerDetails.Name
	}
	if email == "" {
		email = session.CustomerEmail
	}

	return &CanonicalEvent{
		Gateway:       models.GatewayStripe,
		Reference:     session.ID,
		Amount:        decimal.New(session.AmountTotal, -2), // cents -> major units
		Currency:      strings.ToUpper(string(session.Currency)),
		CustomerEmail: strings.ToLower(strings.TrimSpace(email)),
		CustomerName:  strings.TrimSpace(name),
		PlanCode:      strings.TrimSpace(session.Metadata["plan_code"]),
		EventKind:     EventKindPaymentSucceeded,
		RawEventType:  string(event.Type),
		RawPayload:    payload,
	}, nil
}
