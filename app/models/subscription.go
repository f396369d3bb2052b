package models

import (
	"time"

	"gorm.io/gorm"
)

const (
	SubscriptionStatusPending   = "pending"
	SubscriptionStatusActive    = "active"
	SubscriptionStatusSuspended = "suspended"
	SubscriptionStatusExpired   = "expired"
	SubscriptionStatusCancelled = "cancelled"
)

// Subscription ties a user to a plan and carries the entitlement window.
// ServiceAccountID is set exactly once, after the first successful create
// provisioning. Status moves one way except active<->suspended; cancelled is
// terminal and is never overwritten by job side effects.
type Subscription struct {
	ID               uint       `gorm:"primaryKey" json:"id"`
	UserID           uint       `gorm:"not null;index" json:"user_id"`
	PlanID           uint       `gorm:"not null;index" json:"plan_id"`
	Status           string     `gorm:"type:varchar(20);not null;default:'pending';index" json:"status"`
	ExpiresAt        *time.Time `gorm:"type:timestamp;default:null;index" json:"expires_at,omitempty"`
	NextRenewalAt    *time.Time `gorm:"type:timestamp;default:null" json:"next_renewal_at,omitempty"`
	ServiceAccountID *uint      `gorm:"default:null;index" json:"service_account_id,omitempty"`
	CreatedAt        time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt        time.Time  `gorm:"autoUpdateTime" json:"updated_at"`

	User *User `gorm:"foreignKey:UserID" json:"user,omitempty"`
	Plan *Plan `gorm:"foreignKey:PlanID" json:"plan,omitempty"`
}

// IsActive reports whether the subscription currently entitles service.
func (s *Subscription) IsActive() bool {
	if s.Status != SubscriptionStatusActive {
		return false
	}
	return s.ExpiresAt == nil || s.ExpiresAt.After(time.Now())
}

// IsCancelled reports whether the subscription reached its terminal state.
func (s *Subscription) IsCancelled() bool {
	return s.Status == SubscriptionStatusCancelled
}

// FindSubscriptionByID loads a subscription with its plan.
func FindSubscriptionByID(db *gorm.DB, id uint) (*Subscription, error) {
	var sub Subscription
	err := db.Preload("Plan").First(&sub, id).Error
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

// FindActiveSubscription returns the user's active subscription for a plan, if any.
func FindActiveSubscription(db *gorm.DB, userID, planID uint) (*Subscription, error) {
	var sub Subscription
	err := db.Where("user_id = ? AND plan_id = ? AND status = ?", userID, planID, SubscriptionStatusActive).
		First(&sub).Error
	if err != nil {
		return nil, err
	}
	return &sub, nil
}
