package ingest

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/streamvault/streamvault/app/models"
	"github.com/streamvault/streamvault/internal/pkg/gateway"
	"gorm.io/gorm"
)

// ErrPlanNotFound aborts ingestion loudly so the provider redelivers the
// webhook once the plan catalog is fixed.
var ErrPlanNotFound = errors.New("plan not found")

// ErrNotActionable is returned for events that carry no payment (callers
// should have filtered these out already).
var ErrNotActionable = errors.New("event is not an actionable payment")

// Result reports what ingestion did for one canonical event.
type Result struct {
	OrderID        uint
	SubscriptionID uint
	PlanID         uint
	UserID         uint
	UserWasCreated bool
	Duplicate      bool
	IsRenewal      bool
}

// Service turns canonical payment events into exactly one order, subscription
// and (if needed) user per external reference, regardless of delivery count.
type Service struct {
	repo Repository
}

// NewService creates an ingestion service from an injected repository.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// NewServiceFromDB creates an ingestion service from a GORM DB handle.
func NewServiceFromDB(db *gorm.DB) *Service {
	return NewService(NewRepository(db))
}

// Ingest processes one canonical event. The lookup by (gateway, reference) is
// the sole idempotency gate; everything after it runs in a single transaction
// that rolls back completely when the order insert loses the uniqueness race.
func (s *Service) Ingest(ctx context.Context, ev *gateway.CanonicalEvent) (*Result, error) {
	_ = ctx
	if ev == nil || ev.EventKind != gateway.EventKindPaymentSucceeded {
		return nil, ErrNotActionable
	}
	if strings.TrimSpace(ev.Reference) == "" {
		return nil, errors.New("event reference is required")
	}
	if strings.TrimSpace(ev.CustomerEmail) == "" {
		return nil, errors.New("event customer email is required")
	}

	if existing, err := s.repo.FindOrderByReference(ev.Gateway, ev.Reference); err == nil {
		return duplicateResult(existing), nil
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	res := &Result{}
	err := s.repo.WithinTransaction(func(r Repository) error {
		plan, err := r.FindActivePlanByCode(ev.PlanCode)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("%w: %q", ErrPlanNotFound, ev.PlanCode)
		}
		if err != nil {
			return err
		}
		res.PlanID = plan.ID

		user, created, err := s.resolveUser(r, ev)
		if err != nil {
			return err
		}
		res.UserID = user.ID
		res.UserWasCreated = created

		sub, isRenewal, err := s.resolveSubscription(r, user.ID, plan)
		if err != nil {
			return err
		}
		res.SubscriptionID = sub.ID
		res.IsRenewal = isRenewal

		order := &models.Order{
			UserID:            user.ID,
			SubscriptionID:    sub.ID,
			PlanID:            plan.ID,
			Gateway:           ev.Gateway,
			ExternalReference: ev.Reference,
			Amount:            ev.Amount,
			Currency:          ev.Currency,
			Status:            models.OrderStatusPendingProvisioning,
			IsRenewal:         isRenewal,
			RawPayloadJSON:    ev.RawPayloadJSON(),
		}
		inserted, err := r.CreateOrderIfNotExists(order)
		if err != nil {
			return err
		}
		if !inserted {
			// Concurrent redelivery committed first; roll everything back
			// and fall through to the duplicate path.
			return errDuplicateOrder
		}
		res.OrderID = order.ID
		return nil
	})

	if errors.Is(err, errDuplicateOrder) {
		existing, ferr := s.repo.FindOrderByReference(ev.Gateway, ev.Reference)
		if ferr != nil {
			return nil, ferr
		}
		return duplicateResult(existing), nil
	}
	if err != nil {
		return nil, err
	}
	return res, nil
}

// resolveUser finds or creates the paying user. Webhook-created users get a
// random password; they set a real one through the account-recovery flow.
func (s *Service) resolveUser(r Repository, ev *gateway.CanonicalEvent) (*models.User, bool, error) {
	name := strings.TrimSpace(ev.CustomerName)
	if name == "" {
		name = ev.CustomerEmail
	}
	pw, err := models.GenerateRandomPassword()
	if err != nil {
		return nil, false, err
	}
	hashed, err := models.HashPassword(pw)
	if err != nil {
		return nil, false, err
	}
	return r.FindOrCreateUserByEmail(ev.CustomerEmail, name, hashed)
}

// resolveSubscription reuses the user's active subscription for the same plan
// (a renewal payment) or creates a fresh pending one.
func (s *Service) resolveSubscription(r Repository, userID uint, plan *models.Plan) (*models.Subscription, bool, error) {
	existing, err := r.FindActiveSubscription(userID, plan.ID)
	if err == nil {
		return existing, true, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, err
	}

	expires := time.Now().AddDate(0, 0, plan.DurationDays)
	sub := &models.Subscription{
		UserID:        userID,
		PlanID:        plan.ID,
		Status:        models.SubscriptionStatusPending,
		ExpiresAt:     &expires,
		NextRenewalAt: &expires,
	}
	if err := r.CreateSubscription(sub); err != nil {
		return nil, false, err
	}
	return sub, false, nil
}

func duplicateResult(order *models.Order) *Result {
	return &Result{
		OrderID:        order.ID,
		SubscriptionID: order.SubscriptionID,
		PlanID:         order.PlanID,
		UserID:         order.UserID,
		Duplicate:      true,
		IsRenewal:      order.IsRenewal,
	}
}
