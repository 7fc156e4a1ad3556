package ratelimit

import (
	"runtime"
	"sync"
	"sync/atomic"
	"time"
)

// AdaptiveRateLimiter lowers its refill rate toward minRate as load rises above loadThreshold.
// Load is approximated by the goroutine count, which tracks in-flight requests and provider calls.
type AdaptiveRateLimiter struct {
	baseLimiter        *TokenBucket
	maxRate            float64
	minRate            float64
	currentRate        float64
	loadThreshold      float64 // 0.0-1.0
	currentLoad        float64
	maxGoroutines      int
	requestCount       int64
	successCount       int64
	rejectionCount     int64
	mutex              sync.Mutex
	stopChan           chan struct{}
	stopOnce           sync.Once
	adaptationInterval time.Duration
}

// NewAdaptiveRateLimiter creates a new adaptive rate limiter and starts its adaptation loop
func NewAdaptiveRateLimiter(maxTokens, maxRate, minRate float64, loadThreshold float64) *AdaptiveRateLimiter {
	if loadThreshold <= 0 || loadThreshold >= 1 {
		loadThreshold = 0.7
	}

	arl := &AdaptiveRateLimiter{
		baseLimiter:        NewTokenBucket(maxTokens, maxRate),
		maxRate:            maxRate,
		minRate:            minRate,
		currentRate:        maxRate,
		loadThreshold:      loadThreshold,
		maxGoroutines:      10000,
		adaptationInterval: 5 * time.Second,
		stopChan:           make(chan struct{}),
	}

	go arl.adaptationLoop()

	return arl
}

// Allow checks if a request can proceed based on the adaptive rate limit
func (arl *AdaptiveRateLimiter) Allow() bool {
	atomic.AddInt64(&arl.requestCount, 1)
	allowed := arl.baseLimiter.Allow()

	if allowed {
		atomic.AddInt64(&arl.successCount, 1)
	} else {
		atomic.AddInt64(&arl.rejectionCount, 1)
	}

	return allowed
}

func (arl *AdaptiveRateLimiter) adaptationLoop() {
	ticker := time.NewTicker(arl.adaptationInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			arl.Adapt(arl.sampleLoad())
		case <-arl.stopChan:
			return
		}
	}
}

func (arl *AdaptiveRateLimiter) sampleLoad() float64 {
	load := float64(runtime.NumGoroutine()) / float64(arl.maxGoroutines)
	if load > 1.0 {
		load = 1.0
	}
	return load
}

// Adapt sets the refill rate for the given load in [0, 1] and returns it. Below the threshold the
// full rate applies; above it the rate falls linearly to minRate at full load.
func (arl *AdaptiveRateLimiter) Adapt(load float64) float64 {
	arl.mutex.Lock()
	defer arl.mutex.Unlock()

	arl.currentLoad = load

	newRate := arl.maxRate

	if load > arl.loadThreshold {
		loadFactor := (load - arl.loadThreshold) / (1.0 - arl.loadThreshold)
		if loadFactor > 1.0 {
			loadFactor = 1.0
		}
		newRate = arl.maxRate - (arl.maxRate-arl.minRate)*loadFactor
	}

	arl.currentRate = newRate
	arl.baseLimiter.SetRefillRate(newRate)
	return newRate
}

// Stop stops the adaptation loop
func (arl *AdaptiveRateLimiter) Stop() {
	arl.stopOnce.Do(func() { close(arl.stopChan) })
}

// GetMetrics returns metrics about the rate limiter
func (arl *AdaptiveRateLimiter) GetMetrics() map[string]interface{} {
	arl.mutex.Lock()
	rate, load := arl.currentRate, arl.currentLoad
	arl.mutex.Unlock()

	return map[string]interface{}{
		"current_rate":     rate,
		"max_rate":         arl.maxRate,
		"min_rate":         arl.minRate,
		"current_load":     load,
		"load_threshold":   arl.loadThreshold,
		"request_count":    atomic.LoadInt64(&arl.requestCount),
		"success_count":    atomic.LoadInt64(&arl.successCount),
		"rejection_count":  atomic.LoadInt64(&arl.rejectionCount),
		"available_tokens": arl.baseLimiter.Available(),
	}
}

// Reset restores the maximum rate, refills the bucket and clears the counters
func (arl *AdaptiveRateLimiter) Reset() {
	arl.mutex.Lock()
	defer arl.mutex.Unlock()

	arl.baseLimiter.Reset()
	arl.currentRate = arl.maxRate
	arl.baseLimiter.SetRefillRate(arl.maxRate)

	atomic.StoreInt64(&arl.requestCount, 0)
	atomic.StoreInt64(&arl.successCount, 0)
	atomic.StoreInt64(&arl.rejectionCount, 0)
}
