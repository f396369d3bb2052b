// Package planchange orchestrates mid-cycle plan upgrades and downgrades:
// proration math up front, panel repackaging through the job queue.
package planchange

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"github.com/streamvault/streamvault/app/models"
	"github.com/streamvault/streamvault/internal/pkg/notify"
	"github.com/streamvault/streamvault/internal/pkg/proration"
	"github.com/streamvault/streamvault/internal/pkg/provisioning"
)

var (
	ErrSubscriptionNotActive = errors.New("subscription is not active")
	ErrSamePlan              = errors.New("subscription already on this plan")
	ErrPlanNotAvailable      = errors.New("target plan does not exist or is inactive")
	ErrNothingRemaining      = errors.New("no paid days remaining to prorate")
)

// Enqueuer hands a persisted plan change to the background queue.
// *jobqueue.Queue satisfies it.
type Enqueuer interface {
	EnqueuePlanChange(planChangeID uint) error
}

// PanelClient is the slice of the panel API completion needs.
type PanelClient interface {
	RenewAccount(ctx context.Context, username, packageCode string, durationDays int) (*provisioning.AccountData, provisioning.CallRecord, error)
}

// Service validates, prices and executes plan changes.
type Service struct {
	repo     Repository
	client   PanelClient
	queue    Enqueuer
	notifier notify.Dispatcher
}

// NewService wires a plan change service.
func NewService(repo Repository, client PanelClient, queue Enqueuer, notifier notify.Dispatcher) *Service {
	return &Service{repo: repo, client: client, queue: queue, notifier: notifier}
}

// Request prices and persists a plan change. Immediate changes go straight to
// the queue; scheduled ones wait for an external trigger (end of cycle).
func (s *Service) Request(ctx context.Context, subscriptionID, newPlanID uint, executionType string) (*models.PlanChange, error) {
	sub, err := s.repo.GetSubscription(subscriptionID)
	if err != nil {
		return nil, fmt.Errorf("loading subscription %d: %w", subscriptionID, err)
	}
	if !sub.IsActive() {
		return nil, ErrSubscriptionNotActive
	}
	if sub.PlanID == newPlanID {
		return nil, ErrSamePlan
	}

	newPlan, err := s.repo.GetPlan(newPlanID)
	if err != nil || !newPlan.IsActive {
		return nil, ErrPlanNotAvailable
	}
	currentPlan := sub.Plan
	if currentPlan == nil {
		currentPlan, err = s.repo.GetPlan(sub.PlanID)
		if err != nil {
			return nil, fmt.Errorf("loading current plan %d: %w", sub.PlanID, err)
		}
	}

	calc := proration.Calculate(sub, currentPlan, newPlan, time.Now())
	if calc.Type == proration.ChangeTypeNone {
		return nil, ErrNothingRemaining
	}

	status := models.PlanChangeStatusPending
	if executionType == models.PlanChangeExecutionScheduled {
		status = models.PlanChangeStatusScheduled
	} else {
		executionType = models.PlanChangeExecutionImmediate
	}

	pc := &models.PlanChange{
		SubscriptionID: sub.ID,
		FromPlanID:     currentPlan.ID,
		ToPlanID:       newPlan.ID,
		ChangeType:     calc.Type,
		DaysRemaining:  calc.DaysRemaining,
		UnusedCredit:   calc.UnusedCredit,
		ProratedCost:   calc.ProratedCost,
		AmountDue:      calc.AmountDue,
		CreditToApply:  calc.CreditToApply,
		Status:         status,
		ExecutionType:  executionType,
	}
	if err := s.repo.CreatePlanChange(pc); err != nil {
		return nil, fmt.Errorf("persisting plan change: %w", err)
	}

	if executionType == models.PlanChangeExecutionImmediate {
		if err := s.queue.EnqueuePlanChange(pc.ID); err != nil {
			// The row is pending; a sweep or manual retry can pick it up.
			log.Errorf("[PlanChange] Could not enqueue completion for change %d: %v", pc.ID, err)
		}
	}

	log.Infof("[PlanChange] Requested %s %d->%d for subscription %d (due=%s credit=%s)",
		pc.ChangeType, pc.FromPlanID, pc.ToPlanID, sub.ID, pc.AmountDue, pc.CreditToApply)
	return pc, nil
}

// Complete executes one attempt of a plan change: repackage the panel account
// for the new plan, switch the subscription, mark the row. Retry bookkeeping
// lives in the queue; attempt is passed so terminal failures can mark the row
// failed exactly once.
func (s *Service) Complete(ctx context.Context, planChangeID uint, attempt int) error {
	pc, err := s.repo.GetPlanChange(planChangeID)
	if err != nil {
		return fmt.Errorf("%w: plan change %d not found: %v", provisioning.ErrPermanent, planChangeID, err)
	}
	switch pc.Status {
	case models.PlanChangeStatusCompleted, models.PlanChangeStatusCancelled:
		// Redelivered job; nothing to do.
		return nil
	}

	sub, err := s.repo.GetSubscription(pc.SubscriptionID)
	if err != nil {
		return s.fail(pc, attempt, fmt.Errorf("loading subscription %d: %w", pc.SubscriptionID, err))
	}
	if sub.IsCancelled() {
		return s.fail(pc, attempt, fmt.Errorf("%w: subscription %d was cancelled", provisioning.ErrPermanent, sub.ID))
	}
	newPlan, err := s.repo.GetPlan(pc.ToPlanID)
	if err != nil {
		return s.fail(pc, attempt, fmt.Errorf("loading plan %d: %w", pc.ToPlanID, err))
	}
	account, err := s.repo.GetServiceAccountForSubscription(sub.ID)
	if err != nil {
		return s.fail(pc, attempt, fmt.Errorf("%w: subscription %d has no service account", provisioning.ErrPermanent, sub.ID))
	}

	// Repackage the account for the remaining paid window; the entitlement
	// end does not move on a plan change.
	_, _, err = s.client.RenewAccount(ctx, account.Username, newPlan.ProvisionCode, pc.DaysRemaining)
	if err != nil {
		return s.fail(pc, attempt, err)
	}

	if err := s.repo.SwitchSubscriptionPlan(sub.ID, newPlan.ID); err != nil {
		return s.fail(pc, attempt, fmt.Errorf("switching subscription plan: %w", err))
	}
	if err := s.repo.CompletePlanChange(pc.ID); err != nil {
		return fmt.Errorf("marking plan change %d completed: %w", pc.ID, err)
	}

	s.notifyCompleted(sub, newPlan, pc)
	log.Infof("[PlanChange] Completed change %d: subscription %d now on plan %d", pc.ID, sub.ID, newPlan.ID)
	return nil
}

// fail classifies an attempt failure. Terminal failures mark the row failed;
// retryable ones leave it pending for the next attempt.
func (s *Service) fail(pc *models.PlanChange, attempt int, err error) error {
	terminal := !provisioning.IsRetryable(err) || attempt >= provisioning.MaxAttempts
	if !terminal {
		log.Warnf("[PlanChange] Attempt %d/%d for change %d failed, will retry: %v", attempt, provisioning.MaxAttempts, pc.ID, err)
		return err
	}

	if markErr := s.repo.FailPlanChange(pc.ID, err.Error()); markErr != nil {
		log.Errorf("[PlanChange] Could not mark change %d failed: %v", pc.ID, markErr)
	}
	log.Errorf("[PlanChange] Change %d failed terminally: %v", pc.ID, err)
	if errors.Is(err, provisioning.ErrPermanent) {
		return err
	}
	return fmt.Errorf("%w: plan change %d: %v", provisioning.ErrPermanent, pc.ID, err)
}

func (s *Service) notifyCompleted(sub *models.Subscription, newPlan *models.Plan, pc *models.PlanChange) {
	user, err := s.repo.GetUser(sub.UserID)
	if err != nil {
		log.Warnf("[PlanChange] User %d lookup for notification failed: %v", sub.UserID, err)
		return
	}
	data := map[string]interface{}{
		"plan_name":       newPlan.Name,
		"change_type":     pc.ChangeType,
		"amount_due":      pc.AmountDue.StringFixed(2),
		"credit_to_apply": pc.CreditToApply.StringFixed(2),
	}
	if err := s.notifier.Send(user.Email, notify.TemplatePlanChanged, data); err != nil {
		log.Warnf("[PlanChange] Plan change notification to %s failed: %v", user.Email, err)
	}
}
