package gateway

import (
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"errors"
	"testing"
)

func paystackSign(payload []byte, secret string) string {
	mac := hmac.New(sha512.New, []byte(secret))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

func TestPaystackNormalize_ChargeSuccess(t *testing.T) {
	payload := []byte(`{
		"event": "charge.success",
		"data": {
			"reference": "ref_abc123",
			"amount": 300000,
			"currency": "NGN",
			"customer": { "email": "Jane@Example.com", "first_name": "Jane", "last_name": "Doe" },
			"metadata": { "plan_code": "premium_30" }
		}
	}`)
	secret := "sk_test_secret"
	n := NewPaystackNormalizer(secret)

	ev, err := n.Normalize(payload, map[string]string{
		"X-Paystack-Signature": paystackSign(payload, secret),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ev.EventKind != EventKindPaymentSucceeded {
		t.Fatalf("expected payment_succeeded, got %q", ev.EventKind)
	}
	if ev.Reference != "ref_abc123" {
		t.Fatalf("unexpected reference %q", ev.Reference)
	}
	if got := ev.Amount.StringFixed(2); got != "3000.00" {
		t.Fatalf("expected amount 3000.00 (kobo converted), got %s", got)
	}
	if ev.CustomerEmail != "jane@example.com" {
		t.Fatalf("expected lowercased email, got %q", ev.CustomerEmail)
	}
	if ev.PlanCode != "premium_30" {
		t.Fatalf("unexpected plan code %q", ev.PlanCode)
	}
	if ev.CustomerName != "Jane Doe" {
		t.Fatalf("unexpected customer name %q", ev.CustomerName)
	}
}

func TestPaystackNormalize_PlanCodeFallback(t *testing.T) {
	payload := []byte(`{
		"event": "charge.success",
		"data": {
			"reference": "ref_1",
			"amount": 1000,
			"currency": "NGN",
			"customer": { "email": "a@b.co" },
			"plan": { "plan_code": "basic_30" }
		}
	}`)
	secret := "sk"
	n := NewPaystackNormalizer(secret)

	ev, err := n.Normalize(payload, map[string]string{
		"x-paystack-signature": paystackSign(payload, secret),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ev.PlanCode != "basic_30" {
		t.Fatalf("expected fallback to data.plan.plan_code, got %q", ev.PlanCode)
	}
}

func TestPaystackNormalize_UnknownEventIsIgnored(t *testing.T) {
	payload := []byte(`{"event":"transfer.success","data":{"reference":"r"}}`)
	secret := "sk"
	n := NewPaystackNormalizer(secret)

	ev, err := n.Normalize(payload, map[string]string{
		"x-paystack-signature": paystackSign(payload, secret),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ev.EventKind != EventKindIgnored {
		t.Fatalf("expected ignored kind, got %q", ev.EventKind)
	}
	if ev.RawEventType != "transfer.success" {
		t.Fatalf("expected raw event type preserved, got %q", ev.RawEventType)
	}
}

func TestPaystackNormalize_SignatureFailures(t *testing.T) {
	payload := []byte(`{"event":"charge.success","data":{}}`)
	n := NewPaystackNormalizer("sk")

	tests := []struct {
		name    string
		headers map[string]string
	}{
		{"missing header", map[string]string{}},
		{"wrong signature", map[string]string{"x-paystack-signature": paystackSign(payload, "other-secret")}},
		{"garbage signature", map[string]string{"x-paystack-signature": "not-hex"}},
	}
	for _, tt := range tests {
		if _, err := n.Normalize(payload, tt.headers); !errors.Is(err, ErrInvalidSignature) {
			t.Fatalf("%s: expected ErrInvalidSignature, got %v", tt.name, err)
		}
	}
}
