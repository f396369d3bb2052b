package provisioning

import (
	"time"

	"github.com/streamvault/streamvault/app/models"
	"gorm.io/gorm"
)

// Repository exposes the explicit state commands the job engine applies.
// Every mutation takes entity ids and a field set; the engine never holds a
// live DB handle, which keeps attempt logic testable against fakes.
type Repository interface {
	AppendLog(l *models.ProvisioningLog) (*models.ProvisioningLog, error)

	GetSubscription(id uint) (*models.Subscription, error)
	GetServiceAccount(id uint) (*models.ServiceAccount, error)
	GetUser(id uint) (*models.User, error)
	FindAdmins() ([]models.User, error)

	CreateServiceAccount(sa *models.ServiceAccount) error
	ActivateSubscription(subscriptionID, serviceAccountID uint) error
	UpdateOrderStatus(orderID uint, status string) error
	ExtendServiceAccount(serviceAccountID uint, expiresAt time.Time) error
	ExtendSubscription(subscriptionID uint, expiresAt time.Time) error
	SuspendServiceAccount(serviceAccountID uint) error
	SuspendSubscription(subscriptionID uint) error
}

type gormRepository struct {
	db *gorm.DB
}

// NewRepository creates a provisioning repository backed by GORM.
func NewRepository(db *gorm.DB) Repository {
	return &gormRepository{db: db}
}

func (r *gormRepository) AppendLog(l *models.ProvisioningLog) (*models.ProvisioningLog, error) {
	if err := r.db.Create(l).Error; err != nil {
		return nil, err
	}
	return l, nil
}

func (r *gormRepository) GetSubscription(id uint) (*models.Subscription, error) {
	return models.FindSubscriptionByID(r.db, id)
}

func (r *gormRepository) GetServiceAccount(id uint) (*models.ServiceAccount, error) {
	return models.FindServiceAccountByID(r.db, id)
}

func (r *gormRepository) GetUser(id uint) (*models.User, error) {
	var u models.User
	if err := r.db.First(&u, id).Error; err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *gormRepository) FindAdmins() ([]models.User, error) {
	return models.FindAdmins(r.db)
}

func (r *gormRepository) CreateServiceAccount(sa *models.ServiceAccount) error {
	return r.db.Create(sa).Error
}

func (r *gormRepository) ActivateSubscription(subscriptionID, serviceAccountID uint) error {
	return r.db.Model(&models.Subscription{}).
		Where("id = ?", subscriptionID).
		Updates(map[string]interface{}{
			"service_account_id": serviceAccountID,
			"status":             models.SubscriptionStatusActive,
		}).Error
}

func (r *gormRepository) UpdateOrderStatus(orderID uint, status string) error {
	return r.db.Model(&models.Order{}).Where("id = ?", orderID).Update("status", status).Error
}

// ExtendServiceAccount moves expiry forward only; a stale panel response must
// never shorten an account.
func (r *gormRepository) ExtendServiceAccount(serviceAccountID uint, expiresAt time.Time) error {
	return r.db.Model(&models.ServiceAccount{}).
		Where("id = ? AND (expires_at IS NULL OR expires_at < ?)", serviceAccountID, expiresAt).
		Update("expires_at", expiresAt).Error
}

// ExtendSubscription mirrors a forward-only expiry advance onto the
// subscription's entitlement window.
func (r *gormRepository) ExtendSubscription(subscriptionID uint, expiresAt time.Time) error {
	return r.db.Model(&models.Subscription{}).
		Where("id = ? AND (expires_at IS NULL OR expires_at < ?)", subscriptionID, expiresAt).
		Updates(map[string]interface{}{
			"expires_at":      expiresAt,
			"next_renewal_at": expiresAt,
		}).Error
}

func (r *gormRepository) SuspendServiceAccount(serviceAccountID uint) error {
	return r.db.Model(&models.ServiceAccount{}).
		Where("id = ?", serviceAccountID).
		Update("status", models.ServiceAccountStatusSuspended).Error
}

// SuspendSubscription respects cancellation: a cancelled subscription stays
// cancelled even when a suspend job lands after the fact.
func (r *gormRepository) SuspendSubscription(subscriptionID uint) error {
	return r.db.Model(&models.Subscription{}).
		Where("id = ? AND status <> ?", subscriptionID, models.SubscriptionStatusCancelled).
		Update("status", models.SubscriptionStatusSuspended).Error
}
