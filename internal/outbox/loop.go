package outbox

import (
	"context"
	"sync"
	"time"

	"github.com/vaidashi/phone-order-api/pkg/logger"
)

// pollLoop runs tick on a fixed interval in one goroutine until stopped. It can be restarted.
type pollLoop struct {
	name   string
	logger logger.Logger

	mu      sync.Mutex
	wg      sync.WaitGroup
	cancel  context.CancelFunc
	running bool
}

// tick returns true when it found a full batch, in which case it runs again without waiting
type tickFunc func(ctx context.Context) (more bool)

func (l *pollLoop) start(interval time.Duration, tick tickFunc, fields ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.running {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	l.cancel = cancel
	l.running = true
	l.wg.Add(1)

	go func() {
		defer l.wg.Done()

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				for tick(ctx) && ctx.Err() == nil {
				}
			}
		}
	}()

	l.logger.Info(l.name+" started", append([]interface{}{"pollingInterval", interval}, fields...)...)
}

// stop cancels the loop and waits for the current tick
func (l *pollLoop) stop() {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.running {
		return
	}

	l.cancel()
	l.wg.Wait()
	l.running = false

	l.logger.Info(l.name + " stopped")
}

// handlerSet maps event types to handlers
type handlerSet struct {
	mu       sync.RWMutex
	handlers map[string]MessageHandler
}

func (h *handlerSet) register(eventType string, handler MessageHandler) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.handlers == nil {
		h.handlers = make(map[string]MessageHandler)
	}
	h.handlers[eventType] = handler
}

func (h *handlerSet) lookup(eventType string) (MessageHandler, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	handler, ok := h.handlers[eventType]
	return handler, ok
}
