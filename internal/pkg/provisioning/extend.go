package provisioning

import (
	"context"
	"time"

	"github.com/streamvault/streamvault/app/models"
	"github.com/streamvault/streamvault/internal/pkg/notify"
)

// ExtendAction renews an existing account after a renewal payment or a plan
// change completion.
type ExtendAction struct {
	Subscription *models.Subscription
	Plan         *models.Plan
	Account      *models.ServiceAccount
	// Order is nil when the extension was not triggered by a payment
	// (e.g. an admin-granted courtesy extension).
	Order *models.Order
}

func (a *ExtendAction) Name() string {
	return models.ProvisioningActionExtend
}

func (a *ExtendAction) Refs() LogRefs {
	refs := LogRefs{SubscriptionID: a.Subscription.ID}
	if a.Order != nil {
		orderID := a.Order.ID
		refs.OrderID = &orderID
	}
	accountID := a.Account.ID
	refs.ServiceAccountID = &accountID
	return refs
}

func (a *ExtendAction) Call(ctx context.Context, client *Client) (*CallResult, error) {
	account, rec, err := client.RenewAccount(ctx, a.Account.Username, a.Plan.ProvisionCode, a.Plan.DurationDays)
	return &CallResult{Account: account, Record: rec}, err
}

// ApplySuccess advances the account expiry and mirrors it onto the
// subscription when it now reaches further. The forward-only guard lives in
// the repository commands: a stale response can never shorten an expiry.
func (a *ExtendAction) ApplySuccess(repo Repository, notifier notify.Dispatcher, res *CallResult) error {
	newExpiry := a.targetExpiry(res)

	if err := repo.ExtendServiceAccount(a.Account.ID, newExpiry); err != nil {
		return err
	}
	if a.Subscription.ExpiresAt == nil || newExpiry.After(*a.Subscription.ExpiresAt) {
		if err := repo.ExtendSubscription(a.Subscription.ID, newExpiry); err != nil {
			return err
		}
	}
	if a.Order != nil {
		if err := repo.UpdateOrderStatus(a.Order.ID, models.OrderStatusProvisioned); err != nil {
			return err
		}
	}
	return nil
}

// ApplyFinalFailure is log-only: the subscription keeps its prior window and
// either expires naturally or is picked up by reconciliation.
func (a *ExtendAction) ApplyFinalFailure(repo Repository, notifier notify.Dispatcher, callErr error) error {
	return nil
}

// targetExpiry prefers the panel's authoritative expire_date and falls back
// to extending the later of now/current expiry by the plan duration.
func (a *ExtendAction) targetExpiry(res *CallResult) time.Time {
	if res != nil && res.Account != nil {
		if t, ok := res.Account.ExpiresAt(); ok {
			return t
		}
	}

	base := time.Now()
	if a.Account.ExpiresAt != nil && a.Account.ExpiresAt.After(base) {
		base = *a.Account.ExpiresAt
	}
	return base.AddDate(0, 0, a.Plan.DurationDays)
}
