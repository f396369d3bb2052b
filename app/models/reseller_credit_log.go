package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

const (
	CreditClassificationDebit    = "debit"
	CreditClassificationCredit   = "credit"
	CreditClassificationSnapshot = "snapshot"
)

// ResellerCreditLog is an append-only snapshot of the prepaid panel balance.
// Ordering by created_at/id defines the balance timeline; Delta carries the
// absolute change and Classification its direction.
type ResellerCreditLog struct {
	ID                uint            `gorm:"primaryKey" json:"id"`
	Balance           decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"balance"`
	PreviousBalance   decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"previous_balance"`
	Delta             decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"delta"`
	Classification    string          `gorm:"type:varchar(10);not null;index" json:"classification"`
	Reason            string          `gorm:"type:varchar(100)" json:"reason"`
	ProvisioningLogID *uint           `gorm:"default:null;index" json:"provisioning_log_id,omitempty"`
	CreatedAt         time.Time       `gorm:"autoCreateTime;index" json:"created_at"`
}

// FindLatestCreditLog returns the most recent balance row, or
// gorm.ErrRecordNotFound when the timeline is empty.
func FindLatestCreditLog(db *gorm.DB) (*ResellerCreditLog, error) {
	var l ResellerCreditLog
	err := db.Order("id DESC").First(&l).Error
	if err != nil {
		return nil, err
	}
	return &l, nil
}
