package booking

import (
	"context"
	"fmt"
	"sync"

	"github.com/iliyamo/table-reservation/internal/model"
)

// SlotLocker serializes admission check and write for one
// (restaurant, date, time) slot. The returned func releases the lock.
type SlotLocker interface {
	Lock(ctx context.Context, key string) (func(), error)
}

// SlotKey names the lock scope of a slot.
func SlotKey(restaurantID uint64, slot model.Slot) string {
	return fmt.Sprintf("%d:%s:%s", restaurantID, slot.Date, slot.Time)
}

// LocalSlotLocker is an in-process SlotLocker. It only serializes
// callers sharing the same process; the store's uniqueness rule still
// guards writers in other processes.
type LocalSlotLocker struct {
	mu    sync.Mutex
	slots map[string]*localSlot
}

type localSlot struct {
	ch   chan struct{}
	refs int
}

// NewLocalSlotLocker returns an empty LocalSlotLocker.
func NewLocalSlotLocker() *LocalSlotLocker {
	return &LocalSlotLocker{slots: make(map[string]*localSlot)}
}

// Lock blocks until the slot is free or ctx is done.
func (l *LocalSlotLocker) Lock(ctx context.Context, key string) (func(), error) {
	l.mu.Lock()
	s, ok := l.slots[key]
	if !ok {
		s = &localSlot{ch: make(chan struct{}, 1)}
		l.slots[key] = s
	}
	s.refs++
	l.mu.Unlock()

	select {
	case s.ch <- struct{}{}:
		var once sync.Once
		return func() {
			once.Do(func() {
				<-s.ch
				l.release(key, s)
			})
		}, nil
	case <-ctx.Done():
		l.release(key, s)
		return nil, ctx.Err()
	}
}

func (l *LocalSlotLocker) release(key string, s *localSlot) {
	l.mu.Lock()
	defer l.mu.Unlock()
	s.refs--
	if s.refs == 0 {
		delete(l.slots, key)
	}
}
