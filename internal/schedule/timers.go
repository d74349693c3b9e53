// Package schedule implements the deferred-action primitive trials use for
// hiding stimuli and ending on a deadline.
package schedule

import (
	"sync"
	"time"

	"kbtrial/internal/clock"
	"kbtrial/internal/trial"
)

// Timers schedules one-shot actions on a clock and can cancel all of them at
// once.
type Timers struct {
	clock clock.Clock

	mu      sync.Mutex
	nextID  uint64
	pending map[uint64]clock.Timer
}

var _ trial.Scheduler = (*Timers)(nil)

func New(c clock.Clock) *Timers {
	return &Timers{clock: c, pending: make(map[uint64]clock.Timer)}
}

// After runs action once delay has elapsed, unless it is cancelled first.
func (t *Timers) After(delay time.Duration, action func()) trial.Handle {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.nextID++
	id := t.nextID
	t.pending[id] = t.clock.AfterFunc(delay, func() {
		if !t.claim(id) {
			return
		}
		action()
	})
	return &handle{timers: t, id: id}
}

// claim removes id from the pending set and reports whether it was still
// there. An action only runs if it claims itself first.
func (t *Timers) claim(id uint64) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, ok := t.pending[id]; !ok {
		return false
	}
	delete(t.pending, id)
	return true
}

func (t *Timers) cancel(id uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if timer, ok := t.pending[id]; ok {
		timer.Stop()
		delete(t.pending, id)
	}
}

// CancelAll cancels every pending action.
func (t *Timers) CancelAll() {
	t.mu.Lock()
	defer t.mu.Unlock()

	for id, timer := range t.pending {
		timer.Stop()
		delete(t.pending, id)
	}
}

// Pending returns the number of actions that have neither run nor been
// cancelled.
func (t *Timers) Pending() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.pending)
}

type handle struct {
	timers *Timers
	id     uint64
}

func (h *handle) Cancel() {
	h.timers.cancel(h.id)
}
