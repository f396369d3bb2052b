package provisioning

import (
	"context"

	"github.com/streamvault/streamvault/internal/pkg/notify"
)

// LogRefs names the rows an attempt logs against.
type LogRefs struct {
	SubscriptionID   uint
	OrderID          *uint
	ServiceAccountID *uint
}

// CallResult is the outcome of one panel call. Record is populated even when
// the call failed, so every attempt lands in the audit trail verbatim.
type CallResult struct {
	Account *AccountData
	Record  CallRecord
}

// Action is one provisioning variant. The engine owns retries, logging and
// backoff; a variant supplies only the external call and its two side-effect
// hooks. The set is closed: create, extend, suspend.
type Action interface {
	Name() string
	Refs() LogRefs
	Call(ctx context.Context, client *Client) (*CallResult, error)

	// ApplySuccess runs after a successful call, before the balance snapshot.
	ApplySuccess(repo Repository, notifier notify.Dispatcher, res *CallResult) error

	// ApplyFinalFailure runs exactly once, when the attempt budget is spent
	// or the panel rejected the request outright.
	ApplyFinalFailure(repo Repository, notifier notify.Dispatcher, callErr error) error
}
