package provisioning

import (
	"errors"
	"testing"
	"time"

	"github.com/streamvault/streamvault/app/models"
	"github.com/streamvault/streamvault/internal/pkg/notify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testCreateAction(subExpiry *time.Time) *CreateAction {
	return &CreateAction{
		Subscription: &models.Subscription{ID: 10, ExpiresAt: subExpiry},
		Plan:         &models.Plan{ID: 2, ProvisionCode: "prem-30", DurationDays: 30},
		Order:        &models.Order{ID: 55, ExternalReference: "ref-55"},
		User:         &models.User{ID: 4, Email: "customer@example.com"},
	}
}

func TestCreateApplySuccessPrefersLaterPanelExpiry(t *testing.T) {
	repo := newFakeRepo()
	dispatcher := &fakeDispatcher{}

	subExpiry := time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)
	action := testCreateAction(&subExpiry)

	res := &CallResult{Account: &AccountData{
		ExternalID: "ext-1",
		Username:   "sv_abc",
		Password:   "secret",
		ServerURL:  "http://panel.example.com",
		ExpireDate: "2026-10-15",
	}}
	require.NoError(t, action.ApplySuccess(repo, dispatcher, res))

	require.Len(t, repo.serviceAccounts, 1)
	sa := repo.serviceAccounts[0]
	require.NotNil(t, sa.ExpiresAt)
	assert.Equal(t, 2026, sa.ExpiresAt.Year())
	assert.Equal(t, time.October, sa.ExpiresAt.Month())

	assert.Equal(t, sa.ID, repo.activated[10])
	assert.Equal(t, models.OrderStatusProvisioned, repo.orderStatus[55])

	require.Len(t, dispatcher.sent, 1)
	assert.Equal(t, "customer@example.com", dispatcher.sent[0].recipient)
	assert.Equal(t, notify.TemplateCredentials, dispatcher.sent[0].kind)
	assert.Equal(t, "secret", dispatcher.sent[0].data["password"])
}

func TestCreateApplySuccessKeepsSubscriptionExpiryWhenPanelIsEarlier(t *testing.T) {
	repo := newFakeRepo()

	subExpiry := time.Date(2026, 12, 31, 0, 0, 0, 0, time.UTC)
	action := testCreateAction(&subExpiry)

	res := &CallResult{Account: &AccountData{Username: "sv_abc", ExpireDate: "2026-10-15"}}
	require.NoError(t, action.ApplySuccess(repo, &fakeDispatcher{}, res))

	require.Len(t, repo.serviceAccounts, 1)
	require.NotNil(t, repo.serviceAccounts[0].ExpiresAt)
	assert.True(t, repo.serviceAccounts[0].ExpiresAt.Equal(subExpiry))
}

func TestCreateFinalFailureAlertsAllAdmins(t *testing.T) {
	repo := newFakeRepo()
	repo.admins = []models.User{
		{ID: 1, Email: "ops@example.com"},
		{ID: 2, Email: "admin@example.com"},
	}
	dispatcher := &fakeDispatcher{}
	action := testCreateAction(nil)

	callErr := &BusinessError{Op: "new", Code: "NO_CREDIT", Message: "insufficient credit"}
	require.NoError(t, action.ApplyFinalFailure(repo, dispatcher, callErr))

	assert.Equal(t, models.OrderStatusProvisioningFailed, repo.orderStatus[55])
	require.Len(t, dispatcher.sent, 2)
	for _, mail := range dispatcher.sent {
		assert.Equal(t, notify.TemplateProvisioningFailed, mail.kind)
		assert.Equal(t, "NO_CREDIT", mail.data["error_code"])
		assert.Equal(t, "ref-55", mail.data["reference"])
	}
}

func TestExtendApplySuccessMirrorsOntoSubscription(t *testing.T) {
	repo := newFakeRepo()

	subExpiry := time.Date(2026, 9, 10, 0, 0, 0, 0, time.UTC)
	accExpiry := time.Date(2026, 9, 10, 0, 0, 0, 0, time.UTC)
	action := &ExtendAction{
		Subscription: &models.Subscription{ID: 10, ExpiresAt: &subExpiry},
		Plan:         &models.Plan{ID: 2, DurationDays: 30},
		Account:      &models.ServiceAccount{ID: 3, Username: "sv_abc", ExpiresAt: &accExpiry},
		Order:        &models.Order{ID: 60},
	}

	res := &CallResult{Account: &AccountData{ExpireDate: "2026-10-10"}}
	require.NoError(t, action.ApplySuccess(repo, &fakeDispatcher{}, res))

	want := time.Date(2026, 10, 10, 0, 0, 0, 0, time.UTC)
	assert.True(t, repo.extendedSA[3].Equal(want))
	assert.True(t, repo.extendedSub[10].Equal(want), "subscription window follows the later account expiry")
	assert.Equal(t, models.OrderStatusProvisioned, repo.orderStatus[60])
}

func TestExtendApplySuccessSkipsSubscriptionWhenAlreadyLater(t *testing.T) {
	repo := newFakeRepo()

	subExpiry := time.Date(2027, 1, 1, 0, 0, 0, 0, time.UTC)
	action := &ExtendAction{
		Subscription: &models.Subscription{ID: 10, ExpiresAt: &subExpiry},
		Plan:         &models.Plan{ID: 2, DurationDays: 30},
		Account:      &models.ServiceAccount{ID: 3, Username: "sv_abc"},
	}

	res := &CallResult{Account: &AccountData{ExpireDate: "2026-10-10"}}
	require.NoError(t, action.ApplySuccess(repo, &fakeDispatcher{}, res))

	assert.Contains(t, repo.extendedSA, uint(3))
	assert.NotContains(t, repo.extendedSub, uint(10))
	assert.Empty(t, repo.orderStatus, "no order on a courtesy extension")
}

func TestExtendTargetExpiryFallsBackToPlanDuration(t *testing.T) {
	past := time.Now().AddDate(0, 0, -10)
	action := &ExtendAction{
		Subscription: &models.Subscription{ID: 10},
		Plan:         &models.Plan{ID: 2, DurationDays: 30},
		Account:      &models.ServiceAccount{ID: 3, ExpiresAt: &past},
	}

	// No panel expire_date: extend from now, not from the lapsed expiry.
	got := action.targetExpiry(&CallResult{Account: &AccountData{}})
	min := time.Now().AddDate(0, 0, 29)
	assert.True(t, got.After(min), "lapsed accounts extend from now")
}

func TestSuspendApplySuccess(t *testing.T) {
	repo := newFakeRepo()
	action := &SuspendAction{
		Subscription: &models.Subscription{ID: 10},
		Account:      &models.ServiceAccount{ID: 3, Username: "sv_abc"},
	}

	require.NoError(t, action.ApplySuccess(repo, &fakeDispatcher{}, &CallResult{}))
	assert.True(t, repo.suspendedSA[3])
	assert.True(t, repo.suspendedSub[10])
}

func TestSuspendFinalFailureIsLogOnly(t *testing.T) {
	repo := newFakeRepo()
	action := &SuspendAction{
		Subscription: &models.Subscription{ID: 10},
		Account:      &models.ServiceAccount{ID: 3},
	}

	require.NoError(t, action.ApplyFinalFailure(repo, &fakeDispatcher{}, errors.New("timeout")))
	assert.Empty(t, repo.suspendedSA)
	assert.Empty(t, repo.suspendedSub)
}
