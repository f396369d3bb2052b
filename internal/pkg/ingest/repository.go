package ingest

import (
	"errors"

	"github.com/streamvault/streamvault/app/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// errDuplicateOrder aborts the ingestion transaction when the order insert
// lost the (gateway, external_reference) uniqueness race.
var errDuplicateOrder = errors.New("order already exists for reference")

// Repository provides the DB operations used by the ingestion service.
type Repository interface {
	WithinTransaction(fn func(Repository) error) error
	FindOrderByReference(gateway, reference string) (*models.Order, error)
	FindActivePlanByCode(code string) (*models.Plan, error)
	FindOrCreateUserByEmail(email, name, hashedPassword string) (*models.User, bool, error)
	FindActiveSubscription(userID, planID uint) (*models.Subscription, error)
	CreateSubscription(sub *models.Subscription) error
	CreateOrderIfNotExists(order *models.Order) (bool, error)
}

type gormRepository struct {
	db *gorm.DB
}

// NewRepository creates an ingestion repository backed by GORM.
func NewRepository(db *gorm.DB) Repository {
	return &gormRepository{db: db}
}

func (r *gormRepository) WithinTransaction(fn func(Repository) error) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		return fn(&gormRepository{db: tx})
	})
}

func (r *gormRepository) FindOrderByReference(gateway, reference string) (*models.Order, error) {
	return models.FindOrderByReference(r.db, gateway, reference)
}

func (r *gormRepository) FindActivePlanByCode(code string) (*models.Plan, error) {
	return models.FindActivePlanByCode(r.db, code)
}

// FindOrCreateUserByEmail upserts a user keyed by email. A concurrent insert
// losing the unique-index race is not an error: DoNothing + re-fetch.
func (r *gormRepository) FindOrCreateUserByEmail(email, name, hashedPassword string) (*models.User, bool, error) {
	user := &models.User{
		Name:     name,
		Email:    email,
		Password: hashedPassword,
		Role:     models.ROLE_USER,
		Status:   models.STATUS_ACTIVE,
	}
	tx := r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "email"}},
		DoNothing: true,
	}).Create(user)
	if tx.Error != nil {
		return nil, false, tx.Error
	}

	created := tx.RowsAffected > 0
	var stored models.User
	if err := r.db.Where("email = ?", email).First(&stored).Error; err != nil {
		return nil, false, err
	}
	return &stored, created, nil
}

func (r *gormRepository) FindActiveSubscription(userID, planID uint) (*models.Subscription, error) {
	return models.FindActiveSubscription(r.db, userID, planID)
}

func (r *gormRepository) CreateSubscription(sub *models.Subscription) error {
	return r.db.Create(sub).Error
}

// CreateOrderIfNotExists inserts the order unless its idempotency key is
// already taken. Returns false without error when another delivery won.
func (r *gormRepository) CreateOrderIfNotExists(order *models.Order) (bool, error) {
	tx := r.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "gateway"},
			{Name: "external_reference"},
		},
		DoNothing: true,
	}).Create(order)
	if tx.Error != nil {
		return false, tx.Error
	}
	return tx.RowsAffected > 0, nil
}
