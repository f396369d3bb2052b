// Package proration computes day-weighted charges and credits for mid-cycle
// plan changes. Everything here is pure: callers pass the clock in, nothing
// touches the database.
package proration

import (
	"math"
	"time"

	"github.com/shopspring/decimal"
	"github.com/streamvault/streamvault/app/models"
)

const (
	ChangeTypeUpgrade   = "upgrade"
	ChangeTypeDowngrade = "downgrade"
	ChangeTypeNone      = "none"
)

// Result is the money breakdown of a plan change. AmountDue and CreditToApply
// are mutually exclusive: at most one of them is non-zero.
type Result struct {
	Type          string
	DaysRemaining int
	UnusedCredit  decimal.Decimal
	ProratedCost  decimal.Decimal
	AmountDue     decimal.Decimal
	CreditToApply decimal.Decimal
}

// DaysRemaining counts the paid days left on a subscription, rounding partial
// days up. Anything not currently active counts as zero.
func DaysRemaining(sub *models.Subscription, now time.Time) int {
	if sub.Status != models.SubscriptionStatusActive || sub.ExpiresAt == nil {
		return 0
	}
	remaining := sub.ExpiresAt.Sub(now)
	if remaining <= 0 {
		return 0
	}
	return int(math.Ceil(remaining.Hours() / 24))
}

// UnusedCredit values the remaining days at the current plan's daily rate.
// The result is unrounded; rounding happens once, in Calculate.
func UnusedCredit(plan *models.Plan, daysRemaining int) decimal.Decimal {
	if daysRemaining <= 0 || plan.DurationDays <= 0 {
		return decimal.Zero
	}
	return plan.Price.
		Mul(decimal.NewFromInt(int64(daysRemaining))).
		Div(decimal.NewFromInt(int64(plan.DurationDays)))
}

// ProratedCost prices the remaining days at the new plan's daily rate,
// unrounded.
func ProratedCost(newPlan *models.Plan, daysRemaining int) decimal.Decimal {
	if daysRemaining <= 0 || newPlan.DurationDays <= 0 {
		return decimal.Zero
	}
	return newPlan.Price.
		Mul(decimal.NewFromInt(int64(daysRemaining))).
		Div(decimal.NewFromInt(int64(newPlan.DurationDays)))
}

// IsUpgrade reports a strictly more expensive target plan.
func IsUpgrade(currentPlan, newPlan *models.Plan) bool {
	return newPlan.Price.GreaterThan(currentPlan.Price)
}

// IsDowngrade reports a strictly cheaper target plan; equal price is neither.
func IsDowngrade(currentPlan, newPlan *models.Plan) bool {
	return newPlan.Price.LessThan(currentPlan.Price)
}

// Calculate produces the full proration breakdown for moving sub to newPlan.
// The classification follows the money, not the list price: a change that
// costs more for the remaining days than the unused credit covers is an
// upgrade with a balance due, anything else is a downgrade carrying credit
// forward. Monetary outputs round to 2 decimal places here and nowhere
// earlier, so intermediate division keeps full precision.
func Calculate(sub *models.Subscription, currentPlan, newPlan *models.Plan, now time.Time) Result {
	days := DaysRemaining(sub, now)
	if days == 0 {
		// Nothing left to prorate; the change takes effect as a plain
		// purchase of the new plan.
		return Result{
			Type:          ChangeTypeNone,
			UnusedCredit:  decimal.Zero,
			ProratedCost:  decimal.Zero,
			AmountDue:     decimal.Zero,
			CreditToApply: decimal.Zero,
		}
	}

	credit := UnusedCredit(currentPlan, days)
	cost := ProratedCost(newPlan, days)

	res := Result{
		DaysRemaining: days,
		UnusedCredit:  credit.Round(2),
		ProratedCost:  cost.Round(2),
	}
	if cost.GreaterThan(credit) {
		res.Type = ChangeTypeUpgrade
		res.AmountDue = cost.Sub(credit).Round(2)
		res.CreditToApply = decimal.Zero
	} else {
		res.Type = ChangeTypeDowngrade
		res.AmountDue = decimal.Zero
		res.CreditToApply = credit.Sub(cost).Round(2)
	}
	return res
}
