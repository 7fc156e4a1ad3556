package ratelimit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type clock struct{ t time.Time }

func (c *clock) now() time.Time { return c.t }

func TestTokenBucket_DrainsAndRefills(t *testing.T) {
	c := &clock{t: time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)}
	tb := newTokenBucket(3, 1, c.now)

	for i := 0; i < 3; i++ {
		assert.True(t, tb.Allow(), "request %d", i)
	}
	assert.False(t, tb.Allow())

	c.t = c.t.Add(2 * time.Second)
	assert.InDelta(t, 2.0, tb.Available(), 0.001)
	assert.True(t, tb.AllowN(2))
	assert.False(t, tb.Allow())

	c.t = c.t.Add(time.Hour)
	assert.InDelta(t, 3.0, tb.Available(), 0.001)
}

func TestTokenBucket_SetRefillRate(t *testing.T) {
	c := &clock{t: time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)}
	tb := newTokenBucket(10, 1, c.now)
	assert.True(t, tb.AllowN(10))

	tb.SetRefillRate(5)
	c.t = c.t.Add(time.Second)

	assert.InDelta(t, 5.0, tb.Available(), 0.001)
	assert.Equal(t, 5.0, tb.RefillRate())
}

func TestIPRateLimiter_PerClient(t *testing.T) {
	l := NewIPRateLimiter(1, 0.001)
	defer l.Stop()

	assert.True(t, l.Allow("10.0.0.1"))
	assert.False(t, l.Allow("10.0.0.1"))
	assert.True(t, l.Allow("10.0.0.2"))
	assert.Equal(t, 2, l.Size())

	assert.Equal(t, 2, l.Sweep(time.Now().Add(time.Second)))
	assert.Equal(t, 0, l.Size())
}

func TestAdaptiveRateLimiter_Adapt(t *testing.T) {
	arl := NewAdaptiveRateLimiter(100, 100, 20, 0.5)
	defer arl.Stop()

	tests := []struct {
		load float64
		want float64
	}{
		{load: 0, want: 100},
		{load: 0.25, want: 100},
		{load: 0.5, want: 100},
		{load: 0.75, want: 60},
		{load: 1, want: 20},
	}

	for _, tt := range tests {
		assert.InDelta(t, tt.want, arl.Adapt(tt.load), 0.001, "load %v", tt.load)
	}

	arl.Reset()
	assert.Equal(t, 100.0, arl.GetMetrics()["current_rate"])
}
