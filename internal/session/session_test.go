package session

import (
	"testing"
	"time"

	"github.com/edgard/promobot/internal/callback"
)

func view(action string, args ...int64) callback.Data {
	return callback.Data{Action: action, Args: args}
}

func TestPushBack(t *testing.T) {
	t.Parallel()
	s := New(10, time.Minute)

	s.Push(1, view(callback.ActionMenu, 3))
	s.Push(1, view(callback.ActionStores, 3, 0))
	s.Push(1, view(callback.ActionStores, 3, 0))
	s.Push(1, view(callback.ActionStore, 8))

	if cur, _ := s.Current(1); cur.String() != "store:8" {
		t.Errorf("Current() = %q, want store:8", cur.String())
	}

	prev, ok := s.Previous(1)
	if !ok || prev.String() != "stores:3:0" {
		t.Fatalf("Previous() = %q, %v; want stores:3:0", prev.String(), ok)
	}
	if cur, _ := s.Current(1); cur.String() != "store:8" {
		t.Errorf("Previous() changed the current view to %q", cur.String())
	}
	s.Back(1)

	prev, ok = s.Previous(1)
	if !ok || prev.String() != "menu:3" {
		t.Fatalf("second Previous() = %q, %v; want menu:3", prev.String(), ok)
	}
	s.Back(1)

	if cur, _ := s.Current(1); cur.String() != "menu:3" {
		t.Errorf("Current() = %q, want menu:3", cur.String())
	}
	if _, ok := s.Previous(1); ok {
		t.Error("Previous() at root should report false")
	}
}

func TestDropPrevious(t *testing.T) {
	t.Parallel()
	s := New(10, time.Minute)

	s.Push(1, view(callback.ActionMenu, 3))
	s.Push(1, view(callback.ActionStores, 3, 0))
	s.Push(1, view(callback.ActionStore, 8))

	s.DropPrevious(1)
	if cur, _ := s.Current(1); cur.String() != "store:8" {
		t.Errorf("Current() = %q, want store:8", cur.String())
	}
	if prev, ok := s.Previous(1); !ok || prev.String() != "menu:3" {
		t.Errorf("Previous() = %q, %v; want menu:3", prev.String(), ok)
	}
}

func TestChatsAreIsolated(t *testing.T) {
	t.Parallel()
	s := New(10, time.Minute)

	s.Push(1, view(callback.ActionMenu, 1))
	s.Push(2, view(callback.ActionMenu, 2))
	s.Reset(1)

	if _, ok := s.Current(1); ok {
		t.Error("Reset() kept chat 1")
	}
	if cur, ok := s.Current(2); !ok || cur.Arg(0) != 2 {
		t.Errorf("chat 2 view = %+v, %v", cur, ok)
	}
}

func TestDepthAndCapacity(t *testing.T) {
	t.Parallel()
	s := New(2, time.Minute)

	for i := range maxDepth + 5 {
		s.Push(1, view(callback.ActionStore, int64(i)))
	}
	s.Push(2, view(callback.ActionHome))
	s.Push(3, view(callback.ActionHome))

	if s.Len() != 2 {
		t.Errorf("Len() = %d, want 2", s.Len())
	}
	if _, ok := s.Current(1); ok {
		t.Error("least recently used chat should be evicted")
	}
}

func TestExpiry(t *testing.T) {
	t.Parallel()
	s := New(10, 20*time.Millisecond)

	s.Push(1, view(callback.ActionMenu, 1))
	s.Push(1, view(callback.ActionMenu, 2))
	time.Sleep(60 * time.Millisecond)

	if _, ok := s.Previous(1); ok {
		t.Error("Previous() after expiry should report false")
	}
}
