// Package session keeps the per-chat navigation stack used by the Back button.
package session

import (
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/edgard/promobot/internal/callback"
)

// maxDepth bounds a single chat's stack.
const maxDepth = 20

// Store maps chat IDs to their stack of visited views. Entries expire after
// the TTL since the last write; the least recently used chat is evicted when
// the store is full.
type Store struct {
	mu    sync.Mutex
	cache *expirable.LRU[int64, []callback.Data]
}

// New creates a Store holding up to capacity chats.
func New(capacity int, ttl time.Duration) *Store {
	if capacity <= 0 {
		capacity = 10000
	}
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	return &Store{cache: expirable.NewLRU[int64, []callback.Data](capacity, nil, ttl)}
}

// Push records view as the chat's current view. Re-opening the current view
// does not grow the stack.
func (s *Store) Push(chatID int64, view callback.Data) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stack, _ := s.cache.Get(chatID)
	if n := len(stack); n > 0 && stack[n-1].String() == view.String() {
		s.cache.Add(chatID, stack)
		return
	}
	next := make([]callback.Data, 0, len(stack)+1)
	next = append(next, stack...)
	next = append(next, view)
	if len(next) > maxDepth {
		next = next[len(next)-maxDepth:]
	}
	s.cache.Add(chatID, next)
}

// Previous returns the view before the current one without changing the
// stack. It reports false when there is nothing to go back to, including
// after expiry.
func (s *Store) Previous(chatID int64) (callback.Data, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stack, ok := s.cache.Get(chatID)
	if !ok || len(stack) < 2 {
		return callback.Data{}, false
	}
	return stack[len(stack)-2], true
}

// Back drops the current view once the previous one has been shown.
func (s *Store) Back(chatID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stack, ok := s.cache.Get(chatID)
	if !ok || len(stack) == 0 {
		return
	}
	s.cache.Add(chatID, append([]callback.Data(nil), stack[:len(stack)-1]...))
}

// DropPrevious removes the view before the current one, so the next Back
// skips a view that can no longer be shown.
func (s *Store) DropPrevious(chatID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stack, ok := s.cache.Get(chatID)
	if !ok || len(stack) < 2 {
		return
	}
	n := len(stack)
	next := make([]callback.Data, 0, n-1)
	next = append(next, stack[:n-2]...)
	next = append(next, stack[n-1])
	s.cache.Add(chatID, next)
}

// Current returns the chat's current view.
func (s *Store) Current(chatID int64) (callback.Data, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stack, ok := s.cache.Get(chatID)
	if !ok || len(stack) == 0 {
		return callback.Data{}, false
	}
	return stack[len(stack)-1], true
}

// Reset forgets the chat's navigation.
func (s *Store) Reset(chatID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cache.Remove(chatID)
}

// Len returns the number of chats tracked.
func (s *Store) Len() int {
	return s.cache.Len()
}
