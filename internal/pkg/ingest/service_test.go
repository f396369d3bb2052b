package ingest

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/streamvault/streamvault/app/models"
	"github.com/streamvault/streamvault/internal/pkg/gateway"
	"gorm.io/gorm"
)

type fakeRepository struct {
	plans         map[string]*models.Plan
	usersByEmail  map[string]*models.User
	subscriptions map[uint]*models.Subscription
	orders        map[string]*models.Order

	nextUserID  uint
	nextSubID   uint
	nextOrderID uint

	// forceOrderConflict simulates a concurrent delivery winning the order
	// insert between the idempotency lookup and the transaction commit.
	forceOrderConflict bool
}

func newFakeRepository() *fakeRepository {
	return &fakeRepository{
		plans:         map[string]*models.Plan{},
		usersByEmail:  map[string]*models.User{},
		subscriptions: map[uint]*models.Subscription{},
		orders:        map[string]*models.Order{},
	}
}

func orderKey(gw, ref string) string { return gw + "|" + ref }

func (f *fakeRepository) WithinTransaction(fn func(Repository) error) error {
	return fn(f)
}

func (f *fakeRepository) FindOrderByReference(gw, ref string) (*models.Order, error) {
	if o, ok := f.orders[orderKey(gw, ref)]; ok {
		return o, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeRepository) FindActivePlanByCode(code string) (*models.Plan, error) {
	if p, ok := f.plans[code]; ok && p.IsActive {
		return p, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeRepository) FindOrCreateUserByEmail(email, name, hashedPassword string) (*models.User, bool, error) {
	if u, ok := f.usersByEmail[email]; ok {
		return u, false, nil
	}
	f.nextUserID++
	u := &models.User{ID: f.nextUserID, Name: name, Email: email, Password: hashedPassword, Role: models.ROLE_USER, Status: models.STATUS_ACTIVE}
	f.usersByEmail[email] = u
	return u, true, nil
}

func (f *fakeRepository) FindActiveSubscription(userID, planID uint) (*models.Subscription, error) {
	for _, s := range f.subscriptions {
		if s.UserID == userID && s.PlanID == planID && s.Status == models.SubscriptionStatusActive {
			return s, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeRepository) CreateSubscription(sub *models.Subscription) error {
	f.nextSubID++
	sub.ID = f.nextSubID
	f.subscriptions[sub.ID] = sub
	return nil
}

func (f *fakeRepository) CreateOrderIfNotExists(order *models.Order) (bool, error) {
	key := orderKey(order.Gateway, order.ExternalReference)
	if _, ok := f.orders[key]; ok || f.forceOrderConflict {
		if f.forceOrderConflict {
			// Materialize the row the concurrent winner committed.
			f.forceOrderConflict = false
			f.nextOrderID++
			winner := *order
			winner.ID = f.nextOrderID
			f.orders[key] = &winner
		}
		return false, nil
	}
	f.nextOrderID++
	order.ID = f.nextOrderID
	f.orders[key] = order
	return true, nil
}

func seedPlan(f *fakeRepository) *models.Plan {
	p := &models.Plan{
		ID:            1,
		Code:          "basic_30",
		Name:          "Basic 30",
		Price:         decimal.RequireFromString("30.00"),
		Currency:      "USD",
		DurationDays:  30,
		ProvisionCode: "BASIC",
		IsActive:      true,
	}
	f.plans[p.Code] = p
	return p
}

func paymentEvent(ref string) *gateway.CanonicalEvent {
	return &gateway.CanonicalEvent{
		Gateway:       models.GatewayPaystack,
		Reference:     ref,
		Amount:        decimal.RequireFromString("30.00"),
		Currency:      "USD",
		CustomerEmail: "jane@example.com",
		CustomerName:  "Jane Doe",
		PlanCode:      "basic_30",
		EventKind:     gateway.EventKindPaymentSucceeded,
		RawEventType:  "charge.success",
		RawPayload:    []byte(`{"event":"charge.success"}`),
	}
}

func TestIngest_FirstDeliveryCreatesGraph(t *testing.T) {
	repo := newFakeRepository()
	seedPlan(repo)
	svc := NewService(repo)

	res, err := svc.Ingest(context.Background(), paymentEvent("R1"))
	require.NoError(t, err)

	assert.False(t, res.Duplicate)
	assert.True(t, res.UserWasCreated)
	assert.False(t, res.IsRenewal)
	assert.NotZero(t, res.OrderID)
	assert.NotZero(t, res.SubscriptionID)
	assert.Equal(t, uint(1), res.PlanID)

	order := repo.orders[orderKey(models.GatewayPaystack, "R1")]
	require.NotNil(t, order)
	assert.Equal(t, models.OrderStatusPendingProvisioning, order.Status)
	assert.Equal(t, `{"event":"charge.success"}`, order.RawPayloadJSON)

	sub := repo.subscriptions[res.SubscriptionID]
	require.NotNil(t, sub)
	assert.Equal(t, models.SubscriptionStatusPending, sub.Status)
	require.NotNil(t, sub.ExpiresAt)
	wantExpiry := time.Now().AddDate(0, 0, 30)
	assert.WithinDuration(t, wantExpiry, *sub.ExpiresAt, time.Minute)
}

func TestIngest_RedeliveryIsDuplicate(t *testing.T) {
	repo := newFakeRepository()
	seedPlan(repo)
	svc := NewService(repo)

	first, err := svc.Ingest(context.Background(), paymentEvent("R1"))
	require.NoError(t, err)

	// Provider retry: same payload, any number of times.
	for i := 0; i < 3; i++ {
		again, err := svc.Ingest(context.Background(), paymentEvent("R1"))
		require.NoError(t, err)
		assert.True(t, again.Duplicate, "delivery %d should be flagged duplicate", i+2)
		assert.Equal(t, first.OrderID, again.OrderID)
		assert.Equal(t, first.SubscriptionID, again.SubscriptionID)
	}

	assert.Len(t, repo.orders, 1, "exactly one order regardless of delivery count")
	assert.Len(t, repo.subscriptions, 1)
	assert.Len(t, repo.usersByEmail, 1)
}

func TestIngest_ConcurrentRedeliveryRace(t *testing.T) {
	repo := newFakeRepository()
	seedPlan(repo)
	repo.forceOrderConflict = true
	svc := NewService(repo)

	res, err := svc.Ingest(context.Background(), paymentEvent("R1"))
	require.NoError(t, err)
	assert.True(t, res.Duplicate, "losing the insert race resolves to the duplicate path")
	assert.Len(t, repo.orders, 1)
}

func TestIngest_PlanNotFound(t *testing.T) {
	repo := newFakeRepository()
	svc := NewService(repo)

	_, err := svc.Ingest(context.Background(), paymentEvent("R1"))
	require.ErrorIs(t, err, ErrPlanNotFound)
	assert.Empty(t, repo.orders, "no partial state on failure")
	assert.Empty(t, repo.usersByEmail)
}

func TestIngest_RenewalReusesActiveSubscription(t *testing.T) {
	repo := newFakeRepository()
	plan := seedPlan(repo)
	svc := NewService(repo)

	user, _, err := repo.FindOrCreateUserByEmail("jane@example.com", "Jane Doe", "x")
	require.NoError(t, err)
	expires := time.Now().AddDate(0, 0, 10)
	sub := &models.Subscription{UserID: user.ID, PlanID: plan.ID, Status: models.SubscriptionStatusActive, ExpiresAt: &expires}
	require.NoError(t, repo.CreateSubscription(sub))

	res, err := svc.Ingest(context.Background(), paymentEvent("R2"))
	require.NoError(t, err)
	assert.True(t, res.IsRenewal)
	assert.False(t, res.UserWasCreated)
	assert.Equal(t, sub.ID, res.SubscriptionID)
	assert.Len(t, repo.subscriptions, 1, "renewal must not create a second subscription")
}

func TestIngest_RejectsNonActionableEvents(t *testing.T) {
	svc := NewService(newFakeRepository())

	tests := []struct {
		name string
		ev   *gateway.CanonicalEvent
	}{
		{"nil event", nil},
		{"ignored kind", &gateway.CanonicalEvent{EventKind: gateway.EventKindIgnored}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Ingest(context.Background(), tt.ev)
			assert.ErrorIs(t, err, ErrNotActionable)
		})
	}
}

func TestIngest_DistinctReferencesMakeDistinctOrders(t *testing.T) {
	repo := newFakeRepository()
	seedPlan(repo)
	svc := NewService(repo)

	for i := 1; i <= 3; i++ {
		_, err := svc.Ingest(context.Background(), paymentEvent(fmt.Sprintf("R%d", i)))
		require.NoError(t, err)
	}
	assert.Len(t, repo.orders, 3)
	assert.Len(t, repo.usersByEmail, 1, "same customer email must not duplicate users")
}
