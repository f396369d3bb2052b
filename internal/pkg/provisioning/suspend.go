package provisioning

import (
	"context"

	"github.com/streamvault/streamvault/app/models"
	"github.com/streamvault/streamvault/internal/pkg/notify"
)

// SuspendAction disables an account on the panel (refund, abuse, dunning).
type SuspendAction struct {
	Subscription *models.Subscription
	Account      *models.ServiceAccount
}

func (a *SuspendAction) Name() string {
	return models.ProvisioningActionSuspend
}

func (a *SuspendAction) Refs() LogRefs {
	accountID := a.Account.ID
	return LogRefs{SubscriptionID: a.Subscription.ID, ServiceAccountID: &accountID}
}

func (a *SuspendAction) Call(ctx context.Context, client *Client) (*CallResult, error) {
	rec, err := client.SetDeviceStatus(ctx, a.Account.Username, "suspended")
	return &CallResult{Record: rec}, err
}

// ApplySuccess suspends both records. The subscription command is a no-op for
// cancelled subscriptions: cancellation outranks suspension and an in-flight
// suspend job must not resurrect it into a suspended state.
func (a *SuspendAction) ApplySuccess(repo Repository, notifier notify.Dispatcher, res *CallResult) error {
	if err := repo.SuspendServiceAccount(a.Account.ID); err != nil {
		return err
	}
	return repo.SuspendSubscription(a.Subscription.ID)
}

// ApplyFinalFailure is log-only; the account stays live until expiry or a
// later reconciliation pass.
func (a *SuspendAction) ApplyFinalFailure(repo Repository, notifier notify.Dispatcher, callErr error) error {
	return nil
}
