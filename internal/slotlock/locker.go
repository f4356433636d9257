// Package slotlock serialises writers on a shared slot pool. Locks are
// fail-fast: a held key is reported immediately instead of waited on.
package slotlock

import (
	"context"
	"fmt"
	"sync"

	"github.com/codr1/courtbook/internal/apperr"
)

// ErrSlotBusy is returned when another writer holds the key.
var ErrSlotBusy = fmt.Errorf("%w: slot pool is being booked by another request", apperr.ErrSlotConflict)

type Unlock func()

type Locker interface {
	TryLock(ctx context.Context, key string) (Unlock, error)
}

// Memory is an in-process Locker.
type Memory struct {
	mu   sync.Mutex
	held map[string]struct{}
}

func NewMemory() *Memory {
	return &Memory{held: make(map[string]struct{})}
}

func (m *Memory) TryLock(ctx context.Context, key string) (Unlock, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, busy := m.held[key]; busy {
		return nil, ErrSlotBusy
	}
	m.held[key] = struct{}{}

	var once sync.Once
	return func() {
		once.Do(func() {
			m.mu.Lock()
			delete(m.held, key)
			m.mu.Unlock()
		})
	}, nil
}

// TryLockAll acquires every key in order, releasing what it took on failure.
func TryLockAll(ctx context.Context, l Locker, keys ...string) (Unlock, error) {
	unlocks := make([]Unlock, 0, len(keys))
	release := func() {
		for i := len(unlocks) - 1; i >= 0; i-- {
			unlocks[i]()
		}
	}
	seen := make(map[string]bool, len(keys))
	for _, key := range keys {
		if seen[key] {
			continue
		}
		seen[key] = true
		unlock, err := l.TryLock(ctx, key)
		if err != nil {
			release()
			return nil, err
		}
		unlocks = append(unlocks, unlock)
	}
	return release, nil
}
