package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

const (
	GatewayPaystack    = "paystack"
	GatewayStripe      = "stripe"
	GatewayWooCommerce = "woocommerce"
)

const (
	OrderStatusPendingProvisioning = "pending_provisioning"
	OrderStatusProvisioned         = "provisioned"
	OrderStatusProvisioningFailed  = "provisioning_failed"
	OrderStatusRefunded            = "refunded"
)

// Order records one external payment. The unique (gateway, external_reference)
// index is the idempotency anchor for webhook redelivery: the constraint, not
// an application-level check, decides who wins a concurrent race.
type Order struct {
	ID                uint            `gorm:"primaryKey" json:"id"`
	UserID            uint            `gorm:"not null;index" json:"user_id"`
	SubscriptionID    uint            `gorm:"not null;index" json:"subscription_id"`
	PlanID            uint            `gorm:"not null" json:"plan_id"`
	Gateway           string          `gorm:"type:varchar(20);not null;index:ux_orders_gateway_reference,unique,priority:1" json:"gateway"`
	ExternalReference string          `gorm:"type:varchar(191);not null;index:ux_orders_gateway_reference,unique,priority:2" json:"external_reference"`
	Amount            decimal.Decimal `gorm:"type:decimal(10,2);not null" json:"amount"`
	Currency          string          `gorm:"type:varchar(3);not null" json:"currency"`
	Status            string          `gorm:"type:varchar(30);not null;default:'pending_provisioning';index" json:"status"`
	IsRenewal         bool            `gorm:"default:false" json:"is_renewal"`
	RawPayloadJSON    string          `gorm:"type:longtext" json:"raw_payload_json"`
	CreatedAt         time.Time       `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt         time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

// FindOrderByReference looks up an order by its idempotency key.
func FindOrderByReference(db *gorm.DB, gateway, externalReference string) (*Order, error) {
	var o Order
	err := db.Where("gateway = ? AND external_reference = ?", gateway, externalReference).First(&o).Error
	if err != nil {
		return nil, err
	}
	return &o, nil
}
