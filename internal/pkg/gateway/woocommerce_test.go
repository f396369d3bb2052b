package gateway

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"testing"

	"github.com/streamvault/streamvault/app/models"
)

func wooSign(payload []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

func TestWooCommerceNormalize_OrderCompleted(t *testing.T) {
	payload := []byte(`{
		"id": 7421,
		"status": "completed",
		"total": "30.00",
		"currency": "usd",
		"billing": { "email": "Shopper@Example.com", "first_name": "Sam", "last_name": "Shopper" },
		"line_items": [ { "sku": "basic_30" } ]
	}`)
	secret := "wc_secret"
	n := NewWooCommerceNormalizer(secret)

	ev, err := n.Normalize(payload, map[string]string{
		"X-WC-Webhook-Signature": wooSign(payload, secret),
		"X-WC-Webhook-Topic":     "order.completed",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ev.Gateway != models.GatewayWooCommerce {
		t.Fatalf("unexpected gateway %q", ev.Gateway)
	}
	if ev.Reference != "7421" {
		t.Fatalf("unexpected reference %q", ev.Reference)
	}
	if got := ev.Amount.StringFixed(2); got != "30.00" {
		t.Fatalf("expected 30.00, got %s", got)
	}
	if ev.PlanCode != "basic_30" {
		t.Fatalf("unexpected plan code %q", ev.PlanCode)
	}
	if ev.CustomerEmail != "shopper@example.com" {
		t.Fatalf("unexpected email %q", ev.CustomerEmail)
	}
}

func TestWooCommerceNormalize_NonCompletedIsIgnored(t *testing.T) {
	payload := []byte(`{"id":1,"status":"processing","total":"10.00","currency":"USD"}`)
	secret := "wc_secret"
	n := NewWooCommerceNormalizer(secret)

	tests := []struct {
		name  string
		topic string
	}{
		{"updated topic", "order.updated"},
		{"completed topic but non-completed status", "order.completed"},
	}
	for _, tt := range tests {
		ev, err := n.Normalize(payload, map[string]string{
			"x-wc-webhook-signature": wooSign(payload, secret),
			"x-wc-webhook-topic":     tt.topic,
		})
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", tt.name, err)
		}
		if ev.EventKind != EventKindIgnored {
			t.Fatalf("%s: expected ignored, got %q", tt.name, ev.EventKind)
		}
	}
}

func TestWooCommerceNormalize_SignatureFailures(t *testing.T) {
	payload := []byte(`{"id":1,"status":"completed","total":"10.00"}`)
	n := NewWooCommerceNormalizer("wc_secret")

	if _, err := n.Normalize(payload, map[string]string{"x-wc-webhook-topic": "order.completed"}); !errors.Is(err, ErrInvalidSignature) {
		t.Fatalf("missing header: expected ErrInvalidSignature, got %v", err)
	}
	headers := map[string]string{
		"x-wc-webhook-signature": wooSign(payload, "another-secret"),
		"x-wc-webhook-topic":     "order.completed",
	}
	if _, err := n.Normalize(payload, headers); !errors.Is(err, ErrInvalidSignature) {
		t.Fatalf("wrong secret: expected ErrInvalidSignature, got %v", err)
	}
}

func TestForGateway(t *testing.T) {
	for _, name := range []string{models.GatewayPaystack, models.GatewayStripe, models.GatewayWooCommerce} {
		n, err := ForGateway(name)
		if err != nil {
			t.Fatalf("ForGateway(%q) returned error: %v", name, err)
		}
		if n.Provider() != name {
			t.Fatalf("ForGateway(%q).Provider() = %q", name, n.Provider())
		}
	}
	if _, err := ForGateway("flutterwave"); !errors.Is(err, ErrUnknownGateway) {
		t.Fatalf("expected ErrUnknownGateway, got %v", err)
	}
}
