package resellerbalance

import (
	"time"

	"github.com/shopspring/decimal"
)

// Level grades how low the prepaid panel balance is. Higher is worse.
type Level int

const (
	LevelOK Level = iota
	LevelWarning
	LevelCritical
	LevelUrgent
)

func (l Level) String() string {
	switch l {
	case LevelUrgent:
		return "urgent"
	case LevelCritical:
		return "critical"
	case LevelWarning:
		return "warning"
	default:
		return "ok"
	}
}

// AlertSuppressWindow is the minimum gap between two low-balance alerts.
const AlertSuppressWindow = 12 * time.Hour

var (
	thresholdUrgent   = decimal.NewFromInt(50)
	thresholdCritical = decimal.NewFromInt(200)
	thresholdWarning  = decimal.NewFromInt(500)
)

// AlertLevel grades a raw balance against the threshold bands.
func AlertLevel(balance decimal.Decimal) Level {
	switch {
	case balance.LessThanOrEqual(thresholdUrgent):
		return LevelUrgent
	case balance.LessThanOrEqual(thresholdCritical):
		return LevelCritical
	case balance.LessThanOrEqual(thresholdWarning):
		return LevelWarning
	default:
		return LevelOK
	}
}

// ShouldAlert decides whether a low-balance notification goes out. It is a
// pure function of the inputs; the caller supplies the last-alert timestamp
// (zero when none was ever sent).
func ShouldAlert(now, lastAlertAt time.Time, level Level, force bool) bool {
	if level < LevelWarning {
		return false
	}
	if force || lastAlertAt.IsZero() {
		return true
	}
	return now.Sub(lastAlertAt) >= AlertSuppressWindow
}
