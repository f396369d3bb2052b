package provisioning

import (
	"context"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"github.com/streamvault/streamvault/app/models"
	"github.com/streamvault/streamvault/internal/pkg/notify"
)

// SnapshotFunc records a reseller credit balance snapshot after a successful
// panel call. Injected as a function to keep the balance tracker decoupled
// from the engine.
type SnapshotFunc func(ctx context.Context, reason string, provisioningLogID *uint) error

// Engine runs one provisioning attempt: call the panel, log the attempt,
// apply the action's side effects. Retry scheduling is owned by the job
// queue; the engine only classifies whether another attempt makes sense.
type Engine struct {
	repo     Repository
	client   *Client
	notifier notify.Dispatcher
	snapshot SnapshotFunc
}

// NewEngine creates a provisioning engine.
func NewEngine(repo Repository, client *Client, notifier notify.Dispatcher) *Engine {
	return &Engine{repo: repo, client: client, notifier: notifier}
}

// WithBalanceSnapshots attaches the best-effort credit snapshot hook.
func (e *Engine) WithBalanceSnapshots(fn SnapshotFunc) *Engine {
	e.snapshot = fn
	return e
}

// RunAttempt executes attempt n (1-based) of an action.
//
// Return values: nil means done; a retryable error means the caller should
// re-dispatch after BackoffDelay(attempt); an error wrapping ErrPermanent
// means the final-failure hook already ran and the job is finished.
func (e *Engine) RunAttempt(ctx context.Context, action Action, attempt int) error {
	start := time.Now()

	callCtx, cancel := context.WithTimeout(ctx, CallTimeout)
	res, callErr := e.invoke(callCtx, action)
	cancel()

	durationMS := time.Since(start).Milliseconds()

	if callErr == nil {
		logRow := e.appendLog(action, models.ProvisioningLogStatusSuccess, attempt, res, "", "", durationMS)

		if err := action.ApplySuccess(e.repo, e.notifier, res); err != nil {
			// The panel call succeeded but local state did not stick; the
			// retry re-runs the call, which the panel treats as idempotent
			// per reference/username.
			return fmt.Errorf("applying %s success side effects: %w", action.Name(), err)
		}

		e.recordBalance(ctx, action, logRow)
		return nil
	}

	retryable := IsRetryable(callErr)
	final := !retryable || attempt >= MaxAttempts

	status := models.ProvisioningLogStatusRetrying
	if final {
		status = models.ProvisioningLogStatusFailed
	}
	e.appendLog(action, status, attempt, res, ErrorCode(callErr), callErr.Error(), durationMS)

	if !final {
		log.Warnf("[Provisioning] %s attempt %d/%d failed, will retry: %v", action.Name(), attempt, MaxAttempts, callErr)
		return callErr
	}

	log.Errorf("[Provisioning] %s failed terminally after attempt %d: %v", action.Name(), attempt, callErr)
	if hookErr := action.ApplyFinalFailure(e.repo, e.notifier, callErr); hookErr != nil {
		log.Errorf("[Provisioning] %s final-failure hook failed: %v", action.Name(), hookErr)
	}
	return fmt.Errorf("%w: %s: %v", ErrPermanent, action.Name(), callErr)
}

// invoke shields the engine from panicking actions; a panic counts as a
// transient failure and consumes one attempt.
func (e *Engine) invoke(ctx context.Context, action Action) (res *CallResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			if res == nil {
				res = &CallResult{}
			}
			err = &TransientError{Op: action.Name(), Err: fmt.Errorf("panic: %v", r)}
		}
	}()
	return action.Call(ctx, e.client)
}

func (e *Engine) appendLog(action Action, status string, attempt int, res *CallResult, errCode, errMsg string, durationMS int64) *models.ProvisioningLog {
	refs := action.Refs()
	row := &models.ProvisioningLog{
		SubscriptionID:   refs.SubscriptionID,
		OrderID:          refs.OrderID,
		ServiceAccountID: refs.ServiceAccountID,
		Action:           action.Name(),
		Status:           status,
		Attempt:          attempt,
		ErrorCode:        errCode,
		ErrorMessage:     errMsg,
		DurationMS:       durationMS,
	}
	if res != nil {
		row.RequestJSON = res.Record.RequestJSON
		row.ResponseJSON = res.Record.ResponseJSON
	}

	stored, err := e.repo.AppendLog(row)
	if err != nil {
		// The audit row is best-effort on the success path; losing it must
		// not undo a provisioned account.
		log.Errorf("[Provisioning] Failed to append %s log (status=%s): %v", action.Name(), status, err)
		return row
	}
	return stored
}

// recordBalance piggybacks a credit snapshot on a successful call. It is
// observational, never transactional with provisioning: failures are logged
// and swallowed.
func (e *Engine) recordBalance(ctx context.Context, action Action, logRow *models.ProvisioningLog) {
	if e.snapshot == nil {
		return
	}
	var logID *uint
	if logRow != nil && logRow.ID != 0 {
		id := logRow.ID
		logID = &id
	}
	if err := e.snapshot(ctx, "provision_"+action.Name(), logID); err != nil {
		log.Warnf("[Provisioning] Balance snapshot after %s failed: %v", action.Name(), err)
	}
}
