package gateway

import (
	"errors"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/streamvault/streamvault/app/models"
	"github.com/streamvault/streamvault/internal/pkg/env"
)

// ErrInvalidSignature is returned when a webhook payload fails (or is missing)
// its transport signature. Callers must reject with 401 and mutate nothing.
var ErrInvalidSignature = errors.New("invalid webhook signature")

// ErrUnknownGateway is returned for gateway names we have no adapter for.
var ErrUnknownGateway = errors.New("unknown payment gateway")

// EventKind classifies a normalized webhook event.
type EventKind string

const (
	// EventKindPaymentSucceeded is the single canonical success event all
	// provider-specific variants map onto.
	EventKindPaymentSucceeded EventKind = "payment_succeeded"
	// EventKindIgnored marks event types we acknowledge with 200 but do not
	// act on (providers retry on non-2xx, so unknown kinds are not errors).
	EventKindIgnored EventKind = "ignored"
)

// CanonicalEvent is the provider-agnostic representation of a webhook payload.
type CanonicalEvent struct {
	Gateway       string
	Reference     string
	Amount        decimal.Decimal
	Currency      string
	CustomerEmail string
	CustomerName  string
	PlanCode      string
	EventKind     EventKind
	RawEventType  string
	RawPayload    []byte
}

// RawPayloadJSON returns the verified raw webhook body for audit storage.
func (e *CanonicalEvent) RawPayloadJSON() string {
	return string(e.RawPayload)
}

// Normalizer verifies one provider's webhook transport signature and maps its
// payload into a CanonicalEvent.
type Normalizer interface {
	Provider() string
	Normalize(payload []byte, headers map[string]string) (*CanonicalEvent, error)
}

// ForGateway returns the adapter for a gateway name, configured from env.
func ForGateway(name string) (Normalizer, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case models.GatewayPaystack:
		return NewPaystackNormalizer(env.GetEnv("PAYSTACK_SECRET_KEY", "")), nil
	case models.GatewayStripe:
		return NewStripeNormalizer(env.GetEnv("STRIPE_WEBHOOK_SECRET", "")), nil
	case models.GatewayWooCommerce:
		return NewWooCommerceNormalizer(env.GetEnv("WOOCOMMERCE_WEBHOOK_SECRET", "")), nil
	default:
		return nil, ErrUnknownGateway
	}
}

// headerValue performs a case-insensitive header lookup. Providers and HTTP
// stacks disagree on canonicalization, so we cannot index the map directly.
func headerValue(headers map[string]string, key string) string {
	for k, v := range headers {
		if strings.EqualFold(k, key) {
			return strings.TrimSpace(v)
		}
	}
	return ""
}
