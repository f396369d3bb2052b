package models

import (
	"time"

	"gorm.io/gorm"
)

const (
	ServiceAccountStatusActive    = "active"
	ServiceAccountStatusSuspended = "suspended"
	ServiceAccountStatusExpired   = "expired"
)

// ServiceAccount mirrors the account provisioned on the external panel.
// Exactly one live account exists per subscription; the create action inserts
// it on first success and later jobs only mutate expiry/status by id.
type ServiceAccount struct {
	ID             uint       `gorm:"primaryKey" json:"id"`
	SubscriptionID uint       `gorm:"not null;uniqueIndex" json:"subscription_id"`
	ExternalID     string     `gorm:"type:varchar(100);index" json:"external_id"`
	Username       string     `gorm:"type:varchar(100);not null" json:"username"`
	Password       string     `gorm:"type:varchar(100);not null" json:"-"`
	ServerURL      string     `gorm:"type:varchar(255)" json:"server_url"`
	Status         string     `gorm:"type:varchar(20);not null;default:'active';index" json:"status"`
	ExpiresAt      *time.Time `gorm:"type:timestamp;default:null;index" json:"expires_at,omitempty"`
	CreatedAt      time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

// FindServiceAccountByID loads a provisioned account by id.
func FindServiceAccountByID(db *gorm.DB, id uint) (*ServiceAccount, error) {
	var sa ServiceAccount
	err := db.First(&sa, id).Error
	if err != nil {
		return nil, err
	}
	return &sa, nil
}

// FindServiceAccountBySubscription returns the live account for a subscription.
func FindServiceAccountBySubscription(db *gorm.DB, subscriptionID uint) (*ServiceAccount, error) {
	var sa ServiceAccount
	err := db.Where("subscription_id = ?", subscriptionID).First(&sa).Error
	if err != nil {
		return nil, err
	}
	return &sa, nil
}
