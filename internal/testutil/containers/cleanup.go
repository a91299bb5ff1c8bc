package containers

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"
)

// CleanupManager runs registered cleanups in LIFO order (last added, first run).
type CleanupManager struct {
	mu       sync.Mutex
	cleanups []cleanupFunc
}

type cleanupFunc struct {
	name string
	fn   func(context.Context) error
}

// NewCleanupManager creates an empty CleanupManager.
func NewCleanupManager() *CleanupManager {
	return &CleanupManager{}
}

// Add registers a named cleanup.
func (cm *CleanupManager) Add(name string, fn func(context.Context) error) {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	cm.cleanups = append(cm.cleanups, cleanupFunc{name: name, fn: fn})
}

// Len reports how many cleanups are pending.
func (cm *CleanupManager) Len() int {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	return len(cm.cleanups)
}

// Cleanup runs every pending cleanup, newest first, and clears the list.
// All cleanups run even if some fail; their errors are returned in run order.
// The lock is released before running so a cleanup may call Add.
func (cm *CleanupManager) Cleanup(ctx context.Context) []error {
	cm.mu.Lock()
	pending := cm.cleanups
	cm.cleanups = nil
	cm.mu.Unlock()

	var errs []error
	for i := len(pending) - 1; i >= 0; i-- {
		c := pending[i]
		if err := c.fn(ctx); err != nil {
			errs = append(errs, fmt.Errorf("%s cleanup failed: %w", c.name, err))
		}
	}
	return errs
}

// RegisterTestCleanup runs the pending cleanups from t.Cleanup, so they run
// even when the test panics. t.Context is already cancelled at that point, so
// a fresh bounded context is used.
func (cm *CleanupManager) RegisterTestCleanup(t *testing.T, timeout time.Duration) {
	t.Helper()

	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		for _, err := range cm.Cleanup(ctx) {
			t.Errorf("Cleanup error: %v", err)
		}
	})
}

// CleanupOnce runs a cleanup at most once; later calls return the first result.
type CleanupOnce struct {
	once sync.Once
	fn   func(context.Context) error
	err  error
	done bool
	mu   sync.Mutex
}

// NewCleanupOnce wraps fn.
func NewCleanupOnce(fn func(context.Context) error) *CleanupOnce {
	return &CleanupOnce{fn: fn}
}

// Do runs the cleanup on the first call only.
func (co *CleanupOnce) Do(ctx context.Context) error {
	co.once.Do(func() {
		err := co.fn(ctx)
		co.mu.Lock()
		co.err = err
		co.done = true
		co.mu.Unlock()
	})
	co.mu.Lock()
	defer co.mu.Unlock()
	return co.err
}

// Done reports whether the cleanup has already run.
func (co *CleanupOnce) Done() bool {
	co.mu.Lock()
	defer co.mu.Unlock()
	return co.done
}
