package jobqueue

import (
	"context"
	"errors"
	"fmt"

	"github.com/streamvault/streamvault/app/models"
	"github.com/streamvault/streamvault/internal/pkg/database"
	"github.com/streamvault/streamvault/internal/pkg/provisioning"
	"gorm.io/gorm"
)

// Payload rows can vanish between enqueue and dequeue (admin cleanup, user
// deletion). A missing row is permanent: retrying cannot bring it back.
func permanentIfGone(err error, what string, id uint) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%w: %s %d no longer exists", provisioning.ErrPermanent, what, id)
	}
	return fmt.Errorf("loading %s %d: %w", what, id, err)
}

// processProvisionCreateJob provisions a new account for a paid order.
func (q *Queue) processProvisionCreateJob(ctx context.Context, job *Job, attempt int) error {
	payload, err := ProvisionCreateJobPayloadFromMap(job.Payload)
	if err != nil {
		return fmt.Errorf("%w: invalid create payload: %v", provisioning.ErrPermanent, err)
	}

	db := database.GetDB()

	sub, err := models.FindSubscriptionByID(db, payload.SubscriptionID)
	if err != nil {
		return permanentIfGone(err, "subscription", payload.SubscriptionID)
	}
	plan, err := models.FindPlanByID(db, payload.PlanID)
	if err != nil {
		return permanentIfGone(err, "plan", payload.PlanID)
	}
	var order models.Order
	if err := db.First(&order, payload.OrderID).Error; err != nil {
		return permanentIfGone(err, "order", payload.OrderID)
	}
	var user models.User
	if err := db.First(&user, payload.UserID).Error; err != nil {
		return permanentIfGone(err, "user", payload.UserID)
	}

	// A slow retry can arrive after an earlier attempt already provisioned
	// the subscription.
	if sub.ServiceAccountID != nil {
		return nil
	}

	action := &provisioning.CreateAction{
		Subscription: sub,
		Plan:         plan,
		Order:        &order,
		User:         &user,
	}
	return q.engine.RunAttempt(ctx, action, attempt)
}

// processProvisionExtendJob renews an existing account.
func (q *Queue) processProvisionExtendJob(ctx context.Context, job *Job, attempt int) error {
	payload, err := ProvisionExtendJobPayloadFromMap(job.Payload)
	if err != nil {
		return fmt.Errorf("%w: invalid extend payload: %v", provisioning.ErrPermanent, err)
	}

	db := database.GetDB()

	sub, err := models.FindSubscriptionByID(db, payload.SubscriptionID)
	if err != nil {
		return permanentIfGone(err, "subscription", payload.SubscriptionID)
	}
	plan, err := models.FindPlanByID(db, payload.PlanID)
	if err != nil {
		return permanentIfGone(err, "plan", payload.PlanID)
	}
	account, err := models.FindServiceAccountByID(db, payload.ServiceAccountID)
	if err != nil {
		return permanentIfGone(err, "service account", payload.ServiceAccountID)
	}

	action := &provisioning.ExtendAction{
		Subscription: sub,
		Plan:         plan,
		Account:      account,
	}
	if payload.OrderID != nil {
		var order models.Order
		if err := db.First(&order, *payload.OrderID).Error; err != nil {
			return permanentIfGone(err, "order", *payload.OrderID)
		}
		action.Order = &order
	}
	return q.engine.RunAttempt(ctx, action, attempt)
}

// processProvisionSuspendJob disables an account on the panel.
func (q *Queue) processProvisionSuspendJob(ctx context.Context, job *Job, attempt int) error {
	payload, err := ProvisionSuspendJobPayloadFromMap(job.Payload)
	if err != nil {
		return fmt.Errorf("%w: invalid suspend payload: %v", provisioning.ErrPermanent, err)
	}

	db := database.GetDB()

	sub, err := models.FindSubscriptionByID(db, payload.SubscriptionID)
	if err != nil {
		return permanentIfGone(err, "subscription", payload.SubscriptionID)
	}
	account, err := models.FindServiceAccountByID(db, payload.ServiceAccountID)
	if err != nil {
		return permanentIfGone(err, "service account", payload.ServiceAccountID)
	}

	action := &provisioning.SuspendAction{
		Subscription: sub,
		Account:      account,
	}
	return q.engine.RunAttempt(ctx, action, attempt)
}

// processPlanChangeJob hands a plan change to its completer, which owns the
// panel call and the final status of the PlanChange row.
func (q *Queue) processPlanChangeJob(ctx context.Context, job *Job, attempt int) error {
	payload, err := PlanChangeJobPayloadFromMap(job.Payload)
	if err != nil {
		return fmt.Errorf("%w: invalid plan change payload: %v", provisioning.ErrPermanent, err)
	}
	if q.planChanges == nil {
		return fmt.Errorf("%w: no plan change completer configured", provisioning.ErrPermanent)
	}
	return q.planChanges.Complete(ctx, payload.PlanChangeID, attempt)
}
