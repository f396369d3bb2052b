// Package resellerbalance keeps an append-only timeline of the prepaid panel
// credit and raises low-balance alerts against it.
package resellerbalance

import (
	"context"
	"errors"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"github.com/shopspring/decimal"
	"github.com/streamvault/streamvault/app/models"
	"github.com/streamvault/streamvault/internal/pkg/cache"
	"github.com/streamvault/streamvault/internal/pkg/notify"
	"gorm.io/gorm"
)

// ReasonScheduled tags snapshots taken by the periodic cron sweep rather than
// piggybacked on a provisioning call.
const ReasonScheduled = "scheduled"

const lastAlertCacheKey = "resellerbalance:last_alert_at"

// BalanceFetcher reads the live credit from the panel.
// *provisioning.Client satisfies it.
type BalanceFetcher interface {
	GetBalance(ctx context.Context) (decimal.Decimal, error)
}

// Repository is the persistence surface the tracker needs.
type Repository interface {
	LatestCreditLog() (*models.ResellerCreditLog, error)
	AppendCreditLog(l *models.ResellerCreditLog) error
	FindAdmins() ([]models.User, error)
}

// AlertStore remembers when the last low-balance alert went out.
type AlertStore interface {
	LastAlertAt() (time.Time, error)
	SetLastAlertAt(t time.Time) error
}

// Tracker snapshots the balance and alerts admins when it runs low.
type Tracker struct {
	fetcher  BalanceFetcher
	repo     Repository
	alerts   AlertStore
	notifier notify.Dispatcher
}

// NewTracker wires a balance tracker.
func NewTracker(fetcher BalanceFetcher, repo Repository, alerts AlertStore, notifier notify.Dispatcher) *Tracker {
	return &Tracker{fetcher: fetcher, repo: repo, alerts: alerts, notifier: notifier}
}

// Classify buckets a balance movement. previous is nil when the timeline is
// empty. Delta comes back as the absolute movement; the classification
// carries its direction.
func Classify(previous *decimal.Decimal, current decimal.Decimal) (string, decimal.Decimal) {
	if previous == nil {
		return models.CreditClassificationSnapshot, decimal.Zero
	}
	delta := current.Sub(*previous)
	switch {
	case delta.IsNegative():
		return models.CreditClassificationDebit, delta.Abs()
	case delta.IsPositive():
		return models.CreditClassificationCredit, delta
	default:
		return models.CreditClassificationSnapshot, decimal.Zero
	}
}

// Snapshot records the current panel balance and evaluates the alert bands.
// provisioningLogID links the row to the call that likely moved the balance;
// nil for scheduled sweeps.
func (t *Tracker) Snapshot(ctx context.Context, reason string, provisioningLogID *uint) (*models.ResellerCreditLog, error) {
	balance, err := t.fetcher.GetBalance(ctx)
	if err != nil {
		return nil, err
	}

	var previous *decimal.Decimal
	previousBalance := decimal.Zero
	latest, err := t.repo.LatestCreditLog()
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}
	if latest != nil {
		previous = &latest.Balance
		previousBalance = latest.Balance
	}

	classification, delta := Classify(previous, balance)
	row := &models.ResellerCreditLog{
		Balance:           balance,
		PreviousBalance:   previousBalance,
		Delta:             delta,
		Classification:    classification,
		Reason:            reason,
		ProvisioningLogID: provisioningLogID,
	}
	if err := t.repo.AppendCreditLog(row); err != nil {
		return nil, err
	}

	t.evaluateAlert(balance, false)
	return row, nil
}

// CheckNow forces an immediate alert evaluation regardless of the suppression
// window, without writing a snapshot row.
func (t *Tracker) CheckNow(ctx context.Context) error {
	balance, err := t.fetcher.GetBalance(ctx)
	if err != nil {
		return err
	}
	t.evaluateAlert(balance, true)
	return nil
}

func (t *Tracker) evaluateAlert(balance decimal.Decimal, force bool) {
	level := AlertLevel(balance)
	lastAlertAt, err := t.alerts.LastAlertAt()
	if err != nil {
		// A missing or unreadable timestamp must not mute a low-balance
		// warning; treat it as never-alerted.
		lastAlertAt = time.Time{}
	}

	now := time.Now()
	if !ShouldAlert(now, lastAlertAt, level, force) {
		return
	}

	admins, err := t.repo.FindAdmins()
	if err != nil {
		log.Errorf("[Balance] Admin lookup for low-balance alert failed: %v", err)
		return
	}

	data := map[string]interface{}{
		"balance": balance.StringFixed(2),
		"level":   level.String(),
	}
	sent := false
	for _, admin := range admins {
		if err := t.notifier.Send(admin.Email, notify.TemplateLowBalance, data); err != nil {
			log.Errorf("[Balance] Low-balance alert to %s failed: %v", admin.Email, err)
			continue
		}
		sent = true
	}
	if !sent {
		return
	}

	if err := t.alerts.SetLastAlertAt(now); err != nil {
		log.Warnf("[Balance] Could not persist last-alert timestamp: %v", err)
	}
	log.Warnf("[Balance] Low balance alert sent: balance=%s level=%s", balance.StringFixed(2), level)
}

type gormRepository struct {
	db *gorm.DB
}

// NewRepository creates a tracker repository backed by GORM.
func NewRepository(db *gorm.DB) Repository {
	return &gormRepository{db: db}
}

func (r *gormRepository) LatestCreditLog() (*models.ResellerCreditLog, error) {
	return models.FindLatestCreditLog(r.db)
}

func (r *gormRepository) AppendCreditLog(l *models.ResellerCreditLog) error {
	return r.db.Create(l).Error
}

func (r *gormRepository) FindAdmins() ([]models.User, error) {
	return models.FindAdmins(r.db)
}

type redisAlertStore struct{}

// NewRedisAlertStore keeps the last-alert timestamp in the shared Redis
// cache, so suppression survives restarts and spans replicas.
func NewRedisAlertStore() AlertStore {
	return &redisAlertStore{}
}

func (s *redisAlertStore) LastAlertAt() (time.Time, error) {
	return cache.GetTime(lastAlertCacheKey)
}

func (s *redisAlertStore) SetLastAlertAt(t time.Time) error {
	return cache.Set(lastAlertCacheKey, t.Format(time.RFC3339), 0)
}
