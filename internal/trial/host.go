package trial

import (
	"time"

	"kbtrial/internal/keys"
)

// TimingMethod names how a keyboard listener measures reaction time.
type TimingMethod string

const (
	// TimingPerformance measures from listener registration using the
	// host's monotonic clock.
	TimingPerformance TimingMethod = "performance"
)

// KeyResponse is what a keyboard listener reports for a matching key press.
type KeyResponse struct {
	Key string
	// RT is the elapsed time in milliseconds from listener registration.
	RT float64
}

// ListenOptions configures a single keyboard listener registration.
type ListenOptions struct {
	Handler      func(KeyResponse)
	Keys         keys.Set
	TimingMethod TimingMethod
	// Persist keeps the listener active after its first response.
	Persist bool
	// AllowHeldKey delivers presses of a key that is already held down.
	AllowHeldKey bool
}

// Handle cancels a registration. Cancel must be safe to call more than once.
type Handle interface {
	Cancel()
}

// Display is the surface a trial draws on.
type Display interface {
	Show(stimulus, prompt string)
	HideStimulus()
	MarkResponded()
	Clear()
}

// KeyboardListener registers keyboard response handlers.
type KeyboardListener interface {
	Listen(opts ListenOptions) Handle
}

// Scheduler runs deferred actions.
type Scheduler interface {
	After(delay time.Duration, action func()) Handle
	// CancelAll cancels every action that has not run yet.
	CancelAll()
}

// Sink receives the result of a finished trial.
type Sink interface {
	Finish(Result)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(Result)

func (f SinkFunc) Finish(r Result) { f(r) }

// Host bundles the primitives a trial needs from its environment.
type Host struct {
	Display   Display
	Keyboard  KeyboardListener
	Scheduler Scheduler
	Sink      Sink
}
