package gateway

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/streamvault/streamvault/app/models"
)

const (
	wooSignatureHeader = "x-wc-webhook-signature"
	wooTopicHeader     = "x-wc-webhook-topic"
)

// WooCommerceNormalizer verifies WooCommerce webhooks (base64 HMAC-SHA256 of
// the raw body) and maps completed-order deliveries into the canonical shape.
// The purchased plan is carried as the SKU of the first line item.
type WooCommerceNormalizer struct {
	secret string
}

func NewWooCommerceNormalizer(secret string) *WooCommerceNormalizer {
	return &WooCommerceNormalizer{secret: secret}
}

func (n *WooCommerceNormalizer) Provider() string {
	return models.GatewayWooCommerce
}

func (n *WooCommerceNormalizer) Normalize(payload []byte, headers map[string]string) (*CanonicalEvent, error) {
	sig := headerValue(headers, wooSignatureHeader)
	if !n.verifySignature(payload, sig) {
		return nil, ErrInvalidSignature
	}

	topic := strings.ToLower(headerValue(headers, wooTopicHeader))

	var raw struct {
		ID       int64  `json:"id"`
		Status   string `json:"status"`
		Total    string `json:"total"`
		Currency string `json:"currency"`
		Billing  struct {
			Email     string `json:"email"`
			FirstName string `json:"first_name"`
			LastName  string `json:"last_name"`
		} `json:"billing"`
		LineItems []struct {
			SKU string `json:"sku"`
		} `json:"line_items"`
	}
	if err := json.Unmarshal(payload, &raw); err != nil {
		return nil, fmt.Errorf("woocommerce payload parse failed: %w", err)
	}

	if topic != "order.completed" || raw.Status != "completed" {
		return &CanonicalEvent{
			Gateway:      models.GatewayWooCommerce,
			EventKind:    EventKindIgnored,
			RawEventType: topic,
		}, nil
	}

	amount, err := decimal.NewFromString(strings.TrimSpace(raw.Total))
	if err != nil {
		return nil, fmt.Errorf("woocommerce order total %q is not numeric: %w", raw.Total, err)
	}

	planCode := ""
	if len(raw.LineItems) > 0 {
		planCode = strings.TrimSpace(raw.LineItems[0].SKU)
	}

	name := strings.TrimSpace(raw.Billing.FirstName + " " + raw.Billing.LastName)

	return &CanonicalEvent{
		Gateway:       models.GatewayWooCommerce,
		Reference:     strconv.FormatInt(raw.ID, 10),
		Amount:        amount,
		Currency:      strings.ToUpper(strings.TrimSpace(raw.Currency)),
		CustomerEmail: strings.ToLower(strings.TrimSpace(raw.Billing.Email)),
		CustomerName:  name,
		PlanCode:      planCode,
		EventKind:     EventKindPaymentSucceeded,
		RawEventType:  topic,
		RawPayload:    payload,
	}, nil
}

func (n *WooCommerceNormalizer) verifySignature(payload []byte, signature string) bool {
	if signature == "" || n.secret == "" {
		return false
	}
	expected, err := base64.StdEncoding.DecodeString(signature)
	if err != nil {
		return false
	}
	mac := hmac.New(sha256.New, []byte(n.secret))
	mac.Write(payload)
	return hmac.Equal(mac.Sum(nil), expected)
}
