package planchange

import (
	"time"

	"github.com/streamvault/streamvault/app/models"
	"gorm.io/gorm"
)

// Repository exposes the persistence commands plan changes need.
type Repository interface {
	GetSubscription(id uint) (*models.Subscription, error)
	GetPlan(id uint) (*models.Plan, error)
	GetPlanChange(id uint) (*models.PlanChange, error)
	GetServiceAccountForSubscription(subscriptionID uint) (*models.ServiceAccount, error)
	GetUser(id uint) (*models.User, error)

	CreatePlanChange(pc *models.PlanChange) error
	CompletePlanChange(id uint) error
	FailPlanChange(id uint, message string) error
	SwitchSubscriptionPlan(subscriptionID, planID uint) error
}

type gormRepository struct {
	db *gorm.DB
}

// NewRepository creates a plan change repository backed by GORM.
func NewRepository(db *gorm.DB) Repository {
	return &gormRepository{db: db}
}

func (r *gormRepository) GetSubscription(id uint) (*models.Subscription, error) {
	return models.FindSubscriptionByID(r.db, id)
}

func (r *gormRepository) GetPlan(id uint) (*models.Plan, error) {
	return models.FindPlanByID(r.db, id)
}

func (r *gormRepository) GetPlanChange(id uint) (*models.PlanChange, error) {
	return models.FindPlanChangeByID(r.db, id)
}

func (r *gormRepository) GetServiceAccountForSubscription(subscriptionID uint) (*models.ServiceAccount, error) {
	return models.FindServiceAccountBySubscription(r.db, subscriptionID)
}

func (r *gormRepository) GetUser(id uint) (*models.User, error) {
	var u models.User
	if err := r.db.First(&u, id).Error; err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *gormRepository) CreatePlanChange(pc *models.PlanChange) error {
	return r.db.Create(pc).Error
}

func (r *gormRepository) CompletePlanChange(id uint) error {
	now := time.Now()
	return r.db.Model(&models.PlanChange{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":        models.PlanChangeStatusCompleted,
			"completed_at":  now,
			"error_message": "",
		}).Error
}

func (r *gormRepository) FailPlanChange(id uint, message string) error {
	return r.db.Model(&models.PlanChange{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":        models.PlanChangeStatusFailed,
			"error_message": message,
		}).Error
}

func (r *gormRepository) SwitchSubscriptionPlan(subscriptionID, planID uint) error {
	return r.db.Model(&models.Subscription{}).
		Where("id = ?", subscriptionID).
		Update("plan_id", planID).Error
}
