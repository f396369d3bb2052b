package provisioning

import "time"

// MaxAttempts is the attempt budget per provisioning job.
const MaxAttempts = 5

// backoffSchedule spreads retries against the rate-limited panel API; each
// delay is roughly 3x the previous one.
var backoffSchedule = [...]time.Duration{
	10 * time.Second,
	30 * time.Second,
	90 * time.Second,
	270 * time.Second,
	810 * time.Second,
}

// BackoffDelay returns the wait before re-dispatching after failed attempt n
// (1-based). Out-of-range attempts clamp to the last step.
func BackoffDelay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	if attempt > len(backoffSchedule) {
		attempt = len(backoffSchedule)
	}
	return backoffSchedule[attempt-1]
}
