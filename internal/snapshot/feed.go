// Package snapshot publishes per-user listings to live subscribers.
//
// A Feed keeps only the latest value per user. Subscribers that fall behind
// see the newest value, never a queue of stale ones.
package snapshot

import (
	"sync"
	"time"

	"finan/internal/cache"
)

type userState struct {
	next      uint64
	published uint64
	touched   time.Time
}

// Feed is a last-value-wins publish/subscribe channel keyed by user id.
//
// Versions come from a single counter shared by all users, so a version
// reserved before a user's state was dropped still loses to any later one.
type Feed[T any] struct {
	mu     sync.Mutex
	latest *cache.LRUCache[int64, T]
	state  map[int64]*userState
	subs   map[int64]map[*subscriber[T]]struct{}
	seq    uint64
	ttl    time.Duration
	now    func() time.Time
}

type subscriber[T any] struct {
	ch     chan T
	closed bool
}

// NewFeed keeps up to size latest values for ttl each.
func NewFeed[T any](size int, ttl time.Duration) *Feed[T] {
	return &Feed[T]{
		latest: cache.NewLRUCache[int64, T](size, ttl),
		state:  make(map[int64]*userState),
		subs:   make(map[int64]map[*subscriber[T]]struct{}),
		ttl:    ttl,
		now:    time.Now,
	}
}

// Cache exposes the feed for expiry management.
func (f *Feed[T]) Cache() cache.Cleaner {
	return f
}

// CleanExpired drops expired values, then the version state of users nobody
// watches any more. A reservation older than the TTL is treated as abandoned.
func (f *Feed[T]) CleanExpired() int {
	n := f.latest.CleanExpired()

	f.mu.Lock()
	defer f.mu.Unlock()
	cutoff := f.now().Add(-f.ttl)
	for userID, st := range f.state {
		if st.next != st.published && st.touched.After(cutoff) {
			continue
		}
		if f.idle(userID) {
			delete(f.state, userID)
		}
	}
	return n
}

// NextVersion reserves a version for a refresh that is about to read the store.
func (f *Feed[T]) NextVersion(userID int64) uint64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seq++
	st := f.userState(userID)
	st.next = f.seq
	st.touched = f.now()
	return f.seq
}

// Publish stores v as the latest value for userID and fans it out.
// It returns false and drops v when a newer version was already published.
func (f *Feed[T]) Publish(userID int64, version uint64, v T) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	st := f.userState(userID)
	if version < st.published {
		return false
	}
	st.published = version
	if version > st.next {
		st.next = version
	}
	if version > f.seq {
		f.seq = version
	}
	st.touched = f.now()
	f.latest.Set(userID, v)

	for s := range f.subs[userID] {
		s.offer(v)
	}
	return true
}

// Latest returns the last published value, if still cached.
func (f *Feed[T]) Latest(userID int64) (T, bool) {
	return f.latest.Get(userID)
}

// Invalidate forgets the cached value for userID. Subscribers are kept.
func (f *Feed[T]) Invalidate(userID int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.latest.Delete(userID)
	f.forget(userID)
}

// Subscribe returns a channel receiving every value published for userID,
// starting with the current one when cached. The returned func releases the
// subscription and closes the channel.
func (f *Feed[T]) Subscribe(userID int64) (<-chan T, func()) {
	s := &subscriber[T]{ch: make(chan T, 1)}

	f.mu.Lock()
	if f.subs[userID] == nil {
		f.subs[userID] = make(map[*subscriber[T]]struct{})
	}
	f.subs[userID][s] = struct{}{}
	if v, ok := f.latest.Get(userID); ok {
		s.offer(v)
	}
	f.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			f.mu.Lock()
			defer f.mu.Unlock()
			delete(f.subs[userID], s)
			if len(f.subs[userID]) == 0 {
				delete(f.subs, userID)
			}
			s.closed = true
			close(s.ch)
			f.forget(userID)
		})
	}
	return s.ch, cancel
}

// Subscribers counts live subscriptions across all users.
func (f *Feed[T]) Subscribers() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, set := range f.subs {
		n += len(set)
	}
	return n
}

// forget drops the user's version state when no subscriber, cached value or
// pending reservation needs it. Called with the lock held.
func (f *Feed[T]) forget(userID int64) {
	st, ok := f.state[userID]
	if ok && st.next == st.published && f.idle(userID) {
		delete(f.state, userID)
	}
}

func (f *Feed[T]) idle(userID int64) bool {
	if len(f.subs[userID]) > 0 {
		return false
	}
	return !f.latest.Has(userID)
}

func (f *Feed[T]) userState(userID int64) *userState {
	st, ok := f.state[userID]
	if !ok {
		st = &userState{}
		f.state[userID] = st
	}
	return st
}

// offer replaces any unread value with v. Called with the feed lock held.
func (s *subscriber[T]) offer(v T) {
	if s.closed {
		return
	}
	select {
	case s.ch <- v:
		return
	default:
	}
	select {
	case <-s.ch:
	default:
	}
	select {
	case s.ch <- v:
	default:
	}
}
