package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Plan is an immutable catalog entry. The core reads plans but never writes
// them; pricing/duration changes happen through the admin surface only.
type Plan struct {
	ID            uint            `gorm:"primaryKey" json:"id"`
	Code          string          `gorm:"type:varchar(100);uniqueIndex" json:"code"`
	Name          string          `gorm:"type:varchar(150);not null" json:"name"`
	Price         decimal.Decimal `gorm:"type:decimal(10,2);not null" json:"price"`
	Currency      string          `gorm:"type:varchar(3);not null;default:'USD'" json:"currency"`
	DurationDays  int             `gorm:"not null" json:"duration_days"`
	ProvisionCode string          `gorm:"type:varchar(100);not null" json:"provision_code"`
	MaxDevices    int             `gorm:"not null;default:1" json:"max_devices"`
	IsActive      bool            `gorm:"default:true;index" json:"is_active"`
	CreatedAt     time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

// FindActivePlanByCode resolves a gateway plan identifier to a sellable plan.
func FindActivePlanByCode(db *gorm.DB, code string) (*Plan, error) {
	var p Plan
	err := db.Where("code = ? AND is_active = ?", code, true).First(&p).Error
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// FindPlanByID loads a plan regardless of active flag (historical orders may
// reference retired plans).
func FindPlanByID(db *gorm.DB, id uint) (*Plan, error) {
	var p Plan
	err := db.First(&p, id).Error
	if err != nil {
		return nil, err
	}
	return &p, nil
}
