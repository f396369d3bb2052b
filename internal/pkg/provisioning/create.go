package provisioning

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"github.com/streamvault/streamvault/app/models"
	"github.com/streamvault/streamvault/internal/pkg/notify"
)

// CreateAction provisions a brand-new account for a freshly paid order.
type CreateAction struct {
	Subscription *models.Subscription
	Plan         *models.Plan
	Order        *models.Order
	User         *models.User
}

func (a *CreateAction) Name() string {
	return models.ProvisioningActionCreate
}

func (a *CreateAction) Refs() LogRefs {
	orderID := a.Order.ID
	return LogRefs{SubscriptionID: a.Subscription.ID, OrderID: &orderID}
}

func (a *CreateAction) Call(ctx context.Context, client *Client) (*CallResult, error) {
	account, rec, err := client.NewAccount(ctx, NewAccountParams{
		PackageCode:  a.Plan.ProvisionCode,
		DurationDays: a.Plan.DurationDays,
		MaxDevices:   a.Plan.MaxDevices,
		Note:         a.User.Email,
	})
	return &CallResult{Account: account, Record: rec}, err
}

// ApplySuccess persists the provisioned account, activates the subscription
// and delivers credentials. The account inherits the subscription's expiry:
// the order already paid for that window.
func (a *CreateAction) ApplySuccess(repo Repository, notifier notify.Dispatcher, res *CallResult) error {
	expiresAt := a.Subscription.ExpiresAt
	if panelExpiry, ok := res.Account.ExpiresAt(); ok {
		if expiresAt == nil || panelExpiry.After(*expiresAt) {
			expiresAt = &panelExpiry
		}
	}

	sa := &models.ServiceAccount{
		SubscriptionID: a.Subscription.ID,
		ExternalID:     res.Account.ExternalID,
		Username:       res.Account.Username,
		Password:       res.Account.Password,
		ServerURL:      res.Account.ServerURL,
		Status:         models.ServiceAccountStatusActive,
		ExpiresAt:      expiresAt,
	}
	if err := repo.CreateServiceAccount(sa); err != nil {
		return err
	}
	if err := repo.ActivateSubscription(a.Subscription.ID, sa.ID); err != nil {
		return err
	}
	if err := repo.UpdateOrderStatus(a.Order.ID, models.OrderStatusProvisioned); err != nil {
		return err
	}

	// Notification delivery is best-effort; a mail outage must not requeue a
	// provisioning call that already succeeded.
	data := map[string]interface{}{
		"username":   sa.Username,
		"password":   sa.Password,
		"server_url": sa.ServerURL,
		"expires_at": formatExpiry(sa.ExpiresAt),
	}
	if err := notifier.Send(a.User.Email, notify.TemplateCredentials, data); err != nil {
		log.Warnf("[Provisioning] Credentials notification for order %d failed: %v", a.Order.ID, err)
	}
	return nil
}

// ApplyFinalFailure marks the order failed and alerts every admin: a paid
// order without an account needs a human.
func (a *CreateAction) ApplyFinalFailure(repo Repository, notifier notify.Dispatcher, callErr error) error {
	if err := repo.UpdateOrderStatus(a.Order.ID, models.OrderStatusProvisioningFailed); err != nil {
		return err
	}

	admins, err := repo.FindAdmins()
	if err != nil {
		return err
	}
	data := map[string]interface{}{
		"order_id":      a.Order.ID,
		"reference":     a.Order.ExternalReference,
		"customer":      a.User.Email,
		"error_code":    ErrorCode(callErr),
		"error_message": callErr.Error(),
	}
	for _, admin := range admins {
		if err := notifier.Send(admin.Email, notify.TemplateProvisioningFailed, data); err != nil {
			log.Errorf("[Provisioning] Admin alert to %s for order %d failed: %v", admin.Email, a.Order.ID, err)
		}
	}
	return nil
}

func formatExpiry(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format("2006-01-02")
}
