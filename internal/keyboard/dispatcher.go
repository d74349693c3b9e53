// Package keyboard routes raw key events from a host (browser client or
// terminal) to the keyboard listeners registered by trials.
package keyboard

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"kbtrial/internal/clock"
	"kbtrial/internal/keys"
	"kbtrial/internal/trial"
)

// EventType distinguishes key presses from releases.
type EventType string

const (
	KeyDown EventType = "down"
	KeyUp   EventType = "up"
)

// Event is a raw keyboard event.
type Event struct {
	Key  string
	Type EventType
	// Repeat marks an auto-repeat key-down generated while the key is held.
	Repeat bool
	// At is when the event happened. The zero value means "now".
	At time.Time
}

type listener struct {
	id      uint64
	opts    trial.ListenOptions
	started time.Time
}

// Dispatcher implements trial.KeyboardListener.
type Dispatcher struct {
	clock clock.Clock
	log   *zap.Logger

	mu        sync.Mutex
	nextID    uint64
	listeners []*listener
	held      map[string]bool
}

var _ trial.KeyboardListener = (*Dispatcher)(nil)

func NewDispatcher(c clock.Clock, log *zap.Logger) *Dispatcher {
	if log == nil {
		log = zap.NewNop()
	}
	return &Dispatcher{clock: c, log: log, held: make(map[string]bool)}
}

// Listen registers opts and returns a handle that removes it again.
func (d *Dispatcher) Listen(opts trial.ListenOptions) trial.Handle {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.nextID++
	l := &listener{id: d.nextID, opts: opts, started: d.clock.Now()}
	d.listeners = append(d.listeners, l)
	return &handle{dispatcher: d, id: l.id}
}

// Dispatch delivers ev to every listener whose key set contains the key.
// Non-persistent listeners are removed after their first delivery. Handlers
// run after the dispatcher lock has been released.
func (d *Dispatcher) Dispatch(ev Event) {
	key := keys.Normalize(ev.Key)
	if key == "" {
		return
	}
	at := ev.At
	if at.IsZero() {
		at = d.clock.Now()
	}

	type delivery struct {
		handler  func(trial.KeyResponse)
		response trial.KeyResponse
	}

	d.mu.Lock()
	if ev.Type == KeyUp {
		delete(d.held, key)
		d.mu.Unlock()
		return
	}

	wasHeld := ev.Repeat || d.held[key]
	d.held[key] = true

	var deliveries []delivery
	kept := d.listeners[:0]
	for _, l := range d.listeners {
		if !l.opts.Keys.Contains(key) || (wasHeld && !l.opts.AllowHeldKey) {
			kept = append(kept, l)
			continue
		}
		deliveries = append(deliveries, delivery{
			handler:  l.opts.Handler,
			response: trial.KeyResponse{Key: key, RT: clock.Milliseconds(at.Sub(l.started))},
		})
		if l.opts.Persist {
			kept = append(kept, l)
		}
	}
	d.listeners = kept
	d.mu.Unlock()

	if len(deliveries) == 0 {
		d.log.Debug("Key matched no listener", zap.String("key", key), zap.Bool("held", wasHeld))
	}
	for _, dl := range deliveries {
		dl.handler(dl.response)
	}
}

// Press dispatches a key-down followed by a key-up, for hosts that cannot
// observe releases.
func (d *Dispatcher) Press(key string) {
	now := d.clock.Now()
	d.Dispatch(Event{Key: key, Type: KeyDown, At: now})
	d.Dispatch(Event{Key: key, Type: KeyUp, At: now})
}

// Active returns the number of registered listeners.
func (d *Dispatcher) Active() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.listeners)
}

func (d *Dispatcher) cancel(id uint64) {
	d.mu.Lock()
	defer d.mu.Unlock()

	for i, l := range d.listeners {
		if l.id == id {
			d.listeners = append(d.listeners[:i], d.listeners[i+1:]...)
			return
		}
	}
}

type handle struct {
	dispatcher *Dispatcher
	id         uint64
}

func (h *handle) Cancel() {
	h.dispatcher.cancel(h.id)
}
