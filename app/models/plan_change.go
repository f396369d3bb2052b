package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

const (
	PlanChangeStatusPending   = "pending"
	PlanChangeStatusScheduled = "scheduled"
	PlanChangeStatusCompleted = "completed"
	PlanChangeStatusFailed    = "failed"
	PlanChangeStatusCancelled = "cancelled"
)

const (
	PlanChangeExecutionImmediate = "immediate"
	PlanChangeExecutionScheduled = "scheduled"
)

const (
	PlanChangeTypeUpgrade   = "upgrade"
	PlanChangeTypeDowngrade = "downgrade"
)

// PlanChange records one upgrade/downgrade request with the proration math
// that was in force when the user asked for it.
type PlanChange struct {
	ID             uint            `gorm:"primaryKey" json:"id"`
	SubscriptionID uint            `gorm:"not null;index" json:"subscription_id"`
	FromPlanID     uint            `gorm:"not null" json:"from_plan_id"`
	ToPlanID       uint            `gorm:"not null" json:"to_plan_id"`
	ChangeType     string          `gorm:"type:varchar(10);not null" json:"change_type"`
	DaysRemaining  int             `gorm:"not null" json:"days_remaining"`
	UnusedCredit   decimal.Decimal `gorm:"type:decimal(10,2);not null" json:"unused_credit"`
	ProratedCost   decimal.Decimal `gorm:"type:decimal(10,2);not null" json:"prorated_cost"`
	AmountDue      decimal.Decimal `gorm:"type:decimal(10,2);not null" json:"amount_due"`
	CreditToApply  decimal.Decimal `gorm:"type:decimal(10,2);not null" json:"credit_to_apply"`
	Status         string          `gorm:"type:varchar(20);not null;default:'pending';index" json:"status"`
	ExecutionType  string          `gorm:"type:varchar(20);not null;default:'immediate'" json:"execution_type"`
	ErrorMessage   string          `gorm:"type:text" json:"error_message"`
	CompletedAt    *time.Time      `gorm:"type:timestamp;default:null" json:"completed_at,omitempty"`
	CreatedAt      time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

// FindPlanChangeByID loads a plan change request.
func FindPlanChangeByID(db *gorm.DB, id uint) (*PlanChange, error) {
	var pc PlanChange
	err := db.First(&pc, id).Error
	if err != nil {
		return nil, err
	}
	return &pc, nil
}
