package backoff

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDelay(t *testing.T) {
	tests := []struct {
		retryCount int
		want       time.Duration
	}{
		{0, 2 * time.Second},
		{1, 4 * time.Second},
		{2, 8 * time.Second},
		{3, 16 * time.Second},
		{4, 32 * time.Second},
		{5, 60 * time.Second},
		{10, 60 * time.Second},
		{-1, 2 * time.Second},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, Delay(tt.retryCount), "retryCount=%d", tt.retryCount)
	}
}

func TestDelayMonotonic(t *testing.T) {
	prev := Delay(0)
	for i := 1; i <= MaxAttempts; i++ {
		d := Delay(i)
		assert.GreaterOrEqual(t, d, prev, "delay must be non-decreasing")
		assert.LessOrEqual(t, d, 60*time.Second, "delay must be capped")
		prev = d
	}
}

func TestEligible(t *testing.T) {
	now := time.Now()

	t.Run("never attempted", func(t *testing.T) {
		assert.True(t, Eligible(0, nil, now))
		assert.True(t, Eligible(3, nil, now))
	})

	t.Run("inside window", func(t *testing.T) {
		last := now.Add(-1 * time.Second)
		assert.False(t, Eligible(0, &last, now))
	})

	t.Run("window elapsed", func(t *testing.T) {
		last := now.Add(-2 * time.Second)
		assert.True(t, Eligible(0, &last, now))

		last = now.Add(-5 * time.Second)
		assert.True(t, Eligible(1, &last, now))
	})

	t.Run("capped window", func(t *testing.T) {
		last := now.Add(-59 * time.Second)
		assert.False(t, Eligible(4, &last, now))

		last = now.Add(-61 * time.Second)
		assert.True(t, Eligible(4, &last, now))
	})
}
