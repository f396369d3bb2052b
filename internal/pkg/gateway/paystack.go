package gateway

import (
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/streamvault/streamvault/app/models"
)

const paystackSignatureHeader = "x-paystack-signature"

// PaystackNormalizer verifies Paystack webhooks (HMAC-SHA512 of the raw body,
// hex-encoded in the x-paystack-signature header) and maps charge.success
// events into the canonical shape. Paystack amounts arrive in kobo.
type PaystackNormalizer struct {
	secretKey string
}

func NewPaystackNormalizer(secretKey string) *PaystackNormalizer {
	return &PaystackNormalizer{secretKey: secretKey}
}

func (n *PaystackNormalizer) Provider() string {
	return models.GatewayPaystack
}

func (n *PaystackNormalizer) Normalize(payload []byte, headers map[string]string) (*CanonicalEvent, error) {
	sig := headerValue(headers, paystackSignatureHeader)
	if !n.verifySignature(payload, sig) {
		return nil, ErrInvalidSignature
	}

	var raw struct {
		Event string `json:"event"`
		Data  struct {
			Reference string `json:"reference"`
			Amount    int64  `json:"amount"`
			Currency  string `json:"currency"`
			Customer  struct {
				Email     string `json:"email"`
				FirstName string `json:"first_name"`
				LastName  string `json:"last_name"`
			} `json:"customer"`
			Metadata struct {
				PlanCode string `json:"plan_code"`
			} `json:"metadata"`
			Plan struct {
				PlanCode string `json:"plan_code"`
			} `json:"plan"`
		} `json:"data"`
	}
	if err := json.Unmarshal(payload, &raw); err != nil {
		return nil, fmt.Errorf("paystack payload parse failed: %w", err)
	}

	if raw.Event != "charge.success" {
		return &CanonicalEvent{
			Gateway:      models.GatewayPaystack,
			EventKind:    EventKindIgnored,
			RawEventType: raw.Event,
		}, nil
	}

	planCode := strings.TrimSpace(raw.Data.Metadata.PlanCode)
	if planCode == "" {
		planCode = strings.TrimSpace(raw.Data.Plan.PlanCode)
	}

	name := strings.TrimSpace(raw.Data.Customer.FirstName + " " + raw.Data.Customer.LastName)

	return &CanonicalEvent{
		Gateway:       models.GatewayPaystack,
		Reference:     strings.TrimSpace(raw.Data.Reference),
		Amount:        decimal.New(raw.Data.Amount, -2), // kobo -> major units
		Currency:      strings.ToUpper(strings.TrimSpace(raw.Data.Currency)),
		CustomerEmail: strings.ToLower(strings.TrimSpace(raw.Data.Customer.Email)),
		CustomerName:  name,
		PlanCode:      planCode,
		EventKind:     EventKindPaymentSucceeded,
		RawEventType:  raw.Event,
		RawPayload:    payload,
	}, nil
}

func (n *PaystackNormalizer) verifySignature(payload []byte, signature string) bool {
	if signature == "" || n.secretKey == "" {
		return false
	}
	expected, err := hex.DecodeString(strings.ToLower(signature))
	if err != nil {
		return false
	}
	mac := hmac.New(sha512.New, []byte(n.secretKey))
	mac.Write(payload)
	return hmac.Equal(mac.Sum(nil), expected)
}
