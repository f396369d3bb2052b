package models

import (
	"time"

	"gorm.io/gorm"
)

const (
	ProvisioningLogStatusPending  = "pending"
	ProvisioningLogStatusSuccess  = "success"
	ProvisioningLogStatusFailed   = "failed"
	ProvisioningLogStatusRetrying = "retrying"
)

const (
	ProvisioningActionCreate  = "create"
	ProvisioningActionExtend  = "extend"
	ProvisioningActionSuspend = "suspend"
	ProvisioningActionRenew   = "renew"
)

// ProvisioningLog is the append-only audit trail of external API attempts.
// Rows are never updated after insert; the retry history of a job is the
// ordered set of its rows.
type ProvisioningLog struct {
	ID               uint      `gorm:"primaryKey" json:"id"`
	SubscriptionID   uint      `gorm:"not null;index" json:"subscription_id"`
	OrderID          *uint     `gorm:"default:null;index" json:"order_id,omitempty"`
	ServiceAccountID *uint     `gorm:"default:null;index" json:"service_account_id,omitempty"`
	Action           string    `gorm:"type:varchar(20);not null;index" json:"action"`
	Status           string    `gorm:"type:varchar(20);not null;index" json:"status"`
	Attempt          int       `gorm:"not null;default:1" json:"attempt"`
	RequestJSON      string    `gorm:"type:longtext" json:"request_json"`
	ResponseJSON     string    `gorm:"type:longtext" json:"response_json"`
	ErrorCode        string    `gorm:"type:varchar(50)" json:"error_code"`
	ErrorMessage     string    `gorm:"type:text" json:"error_message"`
	DurationMS       int64     `gorm:"not null;default:0" json:"duration_ms"`
	CreatedAt        time.Time `gorm:"autoCreateTime;index" json:"created_at"`
}

// CountProvisioningAttempts returns how many attempts were logged for an
// order/action pair.
func CountProvisioningAttempts(db *gorm.DB, orderID uint, action string) (int64, error) {
	var n int64
	err := db.Model(&ProvisioningLog{}).
		Where("order_id = ? AND action = ?", orderID, action).
		Count(&n).Error
	return n, err
}
