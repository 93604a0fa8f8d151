// Package cache holds the in-memory caches behind the snapshot feeds and
// notification buffers, plus a manager that expires their entries.
package cache

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Cache is the key/value contract shared by the in-memory caches.
type Cache[K comparable, V any] interface {
	Get(key K) (V, bool)
	Set(key K, value V)
	Delete(key K)
	Size() int
}

// Cleaner is implemented by caches that can drop expired entries.
type Cleaner interface {
	CleanExpired() int
}

var _ Cache[int64, string] = (*LRUCache[int64, string])(nil)

// Manager periodically expires the entries of registered caches.
type Manager struct {
	mu     sync.Mutex
	caches map[string]Cleaner
	logger *slog.Logger
	done   chan struct{}
	cancel context.CancelFunc
}

func NewManager(logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{caches: make(map[string]Cleaner), logger: logger}
}

// Register adds a named cache to the cleanup rounds.
func (m *Manager) Register(name string, c Cleaner) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.caches[name] = c
}

// CleanOnce runs a single cleanup round and returns the removed entry count.
func (m *Manager) CleanOnce() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	total := 0
	for name, c := range m.caches {
		if n := c.CleanExpired(); n > 0 {
			m.logger.Debug("Expired cache entries removed", "cache", name, "count", n)
			total += n
		}
	}
	return total
}

// Start runs cleanup rounds every interval until ctx is done or Stop is called.
func (m *Manager) Start(ctx context.Context, interval time.Duration) {
	ctx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.done = make(chan struct{})

	go func() {
		defer close(m.done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				m.CleanOnce()
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stop ends the cleanup loop and waits for it to exit.
func (m *Manager) Stop() {
	if m.cancel == nil {
		return
	}
	m.cancel()
	<-m.done
}
