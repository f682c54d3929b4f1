// Package cooldown rate-limits actions per key, such as starting a game in a chat.
package cooldown

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"
)

// Store starts cooldowns. Acquire starts one for key and returns ok, or
// reports how long the running one still has left. Release gives back a
// cooldown whose action did not happen.
type Store interface {
	Acquire(ctx context.Context, key string, d time.Duration) (ok bool, remaining time.Duration, err error)
	Release(ctx context.Context, key string) error
}

// ChatKey is the key for starting games in chatID.
func ChatKey(chatID int64) string {
	return "blackjack:start:" + strconv.FormatInt(chatID, 10)
}

// MemoryStore keeps cooldowns in process. Used when no Redis is configured.
type MemoryStore struct {
	mu    sync.Mutex
	until map[string]time.Time
	now   func() time.Time
}

// NewMemoryStore creates an empty MemoryStore. A nil now uses time.Now.
func NewMemoryStore(now func() time.Time) *MemoryStore {
	if now == nil {
		now = time.Now
	}
	return &MemoryStore{until: make(map[string]time.Time), now: now}
}

func (s *MemoryStore) Acquire(_ context.Context, key string, d time.Duration) (bool, time.Duration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if until, ok := s.until[key]; ok && now.Before(until) {
		return false, until.Sub(now), nil
	}
	if d <= 0 {
		delete(s.until, key)
		return true, 0, nil
	}
	s.until[key] = now.Add(d)

	// Drop expired keys so the map does not grow with every chat ever seen.
	for k, until := range s.until {
		if !now.Before(until) {
			delete(s.until, k)
		}
	}
	return true, 0, nil
}

func (s *MemoryStore) Release(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.until, key)
	return nil
}

// errorf keeps error texts uniform across stores.
func errorf(op string, err error) error {
	return fmt.Errorf("cooldown %s: %w", op, err)
}
