package provisioning

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBackoffDelaySchedule(t *testing.T) {
	expected := []time.Duration{
		10 * time.Second,
		30 * time.Second,
		90 * time.Second,
		270 * time.Second,
		810 * time.Second,
	}
	for i, want := range expected {
		assert.Equal(t, want, BackoffDelay(i+1), "attempt %d", i+1)
	}
}

func TestBackoffDelayIsMonotonic(t *testing.T) {
	prev := time.Duration(0)
	for attempt := 1; attempt <= MaxAttempts; attempt++ {
		d := BackoffDelay(attempt)
		assert.Greater(t, d, prev)
		prev = d
	}
}

func TestBackoffDelayClampsOutOfRange(t *testing.T) {
	assert.Equal(t, BackoffDelay(1), BackoffDelay(0))
	assert.Equal(t, BackoffDelay(1), BackoffDelay(-3))
	assert.Equal(t, BackoffDelay(MaxAttempts), BackoffDelay(MaxAttempts+1))
	assert.Equal(t, BackoffDelay(MaxAttempts), BackoffDelay(100))
}
