package counter

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/pulsemetrics/guardrail/internal/clock"
	"github.com/pulsemetrics/guardrail/internal/models"
)

// MemoryStore is the in-process fallback used when the durable store is
// unreachable. Same window semantics, but counts are local to this
// instance: cross-instance limits are lost, each instance still enforces
// its own (fail open locally).
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]*memEntry
	clk     clock.Clock
}

type memEntry struct {
	index  int64
	window time.Duration
	count  int64
}

func NewMemoryStore(clk clock.Clock) *MemoryStore {
	return &MemoryStore{
		entries: make(map[string]*memEntry),
		clk:     clk,
	}
}

var _ Store = (*MemoryStore)(nil)

func (s *MemoryStore) Increment(ctx context.Context, identifier string, kind models.IdentifierKind, action string, window time.Duration) (int64, time.Time, error) {
	index := windowIndex(s.clk.Now(), window)
	k := key(identifier, kind, action, window, index)

	s.mu.Lock()
	defer s.mu.Unlock()

	entry := s.entries[k]
	if entry == nil {
		entry = &memEntry{index: index, window: window}
		s.entries[k] = entry
	}
	if entry.index != index {
		entry.index = index
		entry.count = 0
	}
	entry.count++

	return entry.count, windowStart(index, window), nil
}

func (s *MemoryStore) Peek(ctx context.Context, identifier string, kind models.IdentifierKind, action string, window time.Duration) (int64, time.Time, error) {
	index := windowIndex(s.clk.Now(), window)
	k := key(identifier, kind, action, window, index)

	s.mu.Lock()
	defer s.mu.Unlock()

	entry := s.entries[k]
	if entry == nil || entry.index != index {
		return 0, windowStart(index, window), nil
	}

	return entry.count, windowStart(index, window), nil
}

func (s *MemoryStore) Remove(ctx context.Context, identifier string, kind models.IdentifierKind, action string) error {
	prefix := fmt.Sprintf("counter:%s:%s:", kind, identifier)
	if action != "" {
		prefix = fmt.Sprintf("counter:%s:%s:%s:", kind, identifier, action)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for k := range s.entries {
		if strings.HasPrefix(k, prefix) {
			delete(s.entries, k)
		}
	}

	return nil
}

// StartSweeper evicts expired windows on a fixed interval until ctx is
// cancelled. Eviction locks per key, never across a whole sweep.
func (s *MemoryStore) StartSweeper(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.Sweep()
			}
		}
	}()
}

// Sweep removes every entry whose window has ended.
func (s *MemoryStore) Sweep() int {
	s.mu.Lock()
	keys := make([]string, 0, len(s.entries))
	for k := range s.entries {
		keys = append(keys, k)
	}
	s.mu.Unlock()

	evicted := 0
	for _, k := range keys {
		s.mu.Lock()
		entry := s.entries[k]
		if entry != nil && entry.index < windowIndex(s.clk.Now(), entry.window) {
			delete(s.entries, k)
			evicted++
		}
		s.mu.Unlock()
	}

	return evicted
}

// Len reports the number of live window entries.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}
