// Package sim holds the latency and failure simulation shared by the mock providers.
package sim

import (
	"context"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Config tunes a Simulator
type Config struct {
	FailureRate float64
	MinLatency  time.Duration
	MaxLatency  time.Duration
	// Rand drives failures and latency. Nil seeds from the clock.
	Rand *rand.Rand
}

// Simulator injects random latency and failures. Safe for concurrent use.
type Simulator struct {
	failureRate float64
	minLatency  time.Duration
	maxLatency  time.Duration

	mu  sync.Mutex
	rnd *rand.Rand
}

// New creates a Simulator
func New(cfg Config) *Simulator {
	rnd := cfg.Rand
	if rnd == nil {
		rnd = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	if cfg.MaxLatency < cfg.MinLatency {
		cfg.MaxLatency = cfg.MinLatency
	}

	return &Simulator{
		failureRate: cfg.FailureRate,
		minLatency:  cfg.MinLatency,
		maxLatency:  cfg.MaxLatency,
		rnd:         rnd,
	}
}

// Float64 returns a number in [0, 1)
func (s *Simulator) Float64() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rnd.Float64()
}

// Uniform returns a number in [min, max)
func (s *Simulator) Uniform(min, max float64) float64 {
	return min + s.Float64()*(max-min)
}

// Intn returns a number in [0, n)
func (s *Simulator) Intn(n int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rnd.Intn(n)
}

// ShouldFail draws against the failure rate
func (s *Simulator) ShouldFail() bool {
	return s.Float64() < s.failureRate
}

// Sleep waits a uniformly distributed latency and returns it
func (s *Simulator) Sleep(ctx context.Context) (time.Duration, error) {
	latency := s.minLatency
	if spread := s.maxLatency - s.minLatency; spread > 0 {
		latency += time.Duration(s.Float64() * float64(spread))
	}

	if latency <= 0 {
		return 0, ctx.Err()
	}

	timer := time.NewTimer(latency)
	defer timer.Stop()

	select {
	case <-timer.C:
		return latency, nil
	case <-ctx.Done():
		return 0, ctx.Err()
	}
}

// ID returns prefix followed by n lowercase hex characters (n <= 32)
func ID(prefix string, n int) string {
	hex := strings.ReplaceAll(uuid.NewString(), "-", "")
	if n > len(hex) {
		n = len(hex)
	}
	return prefix + hex[:n]
}
