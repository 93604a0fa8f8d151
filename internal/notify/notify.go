// Package notify holds the short-lived, user-visible messages raised by the
// ledger (write confirmations, storage failures).
package notify

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"finan/internal/cache"
)

type Level string

const (
	LevelInfo  Level = "info"
	LevelError Level = "error"
)

type Notice struct {
	Level   Level     `json:"level"`
	Message string    `json:"message"`
	Time    time.Time `json:"time"`
}

// Buffer keeps the most recent notices per user until they are read or expire.
type Buffer struct {
	mu      sync.Mutex
	perUser int
	notices *cache.LRUCache[int64, []Notice]
	now     func() time.Time
}

// NewBuffer keeps up to perUser notices for at most users users, each for ttl.
func NewBuffer(users, perUser int, ttl time.Duration) *Buffer {
	if perUser <= 0 {
		perUser = 1
	}
	return &Buffer{
		perUser: perUser,
		notices: cache.NewLRUCache[int64, []Notice](users, ttl),
		now:     time.Now,
	}
}

func (b *Buffer) Cache() cache.Cleaner {
	return b.notices
}

// Notify appends a notice for userID, dropping the oldest beyond the limit.
func (b *Buffer) Notify(ctx context.Context, userID int64, level Level, message string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	list, _ := b.notices.Get(userID)
	next := make([]Notice, 0, len(list)+1)
	next = append(next, list...)
	next = append(next, Notice{Level: level, Message: message, Time: b.now()})
	if len(next) > b.perUser {
		next = next[len(next)-b.perUser:]
	}
	b.notices.Set(userID, next)

	if level == LevelError {
		slog.WarnContext(ctx, "User notified of failure", "user_id", userID, "message", message)
	}
}

// Recent returns and clears the pending notices of userID, oldest first.
func (b *Buffer) Recent(userID int64) []Notice {
	b.mu.Lock()
	defer b.mu.Unlock()

	list, ok := b.notices.Get(userID)
	if !ok {
		return []Notice{}
	}
	b.notices.Delete(userID)
	return list
}
