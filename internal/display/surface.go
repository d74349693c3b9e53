// Package display holds the state of the surface a trial draws on and
// renders it for browser clients.
package display

import (
	"sync"

	"kbtrial/internal/trial"
)

// State is a snapshot of the surface.
type State struct {
	Stimulus  string `json:"stimulus"`
	Prompt    string `json:"prompt,omitempty"`
	Visible   bool   `json:"visible"`
	Responded bool   `json:"responded"`
	Blank     bool   `json:"blank"`
	// Version increases with every change so clients can poll cheaply.
	Version uint64 `json:"version"`
}

// Surface implements trial.Display by recording what should be on screen.
// Observers registered with OnChange are told about every change.
type Surface struct {
	mu        sync.RWMutex
	state     State
	observers []func(State)
}

var _ trial.Display = (*Surface)(nil)

func NewSurface() *Surface {
	return &Surface{state: State{Blank: true}}
}

// OnChange registers fn to be called with the new state after each change.
func (s *Surface) OnChange(fn func(State)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.observers = append(s.observers, fn)
}

func (s *Surface) Show(stimulus, prompt string) {
	s.update(func(st *State) {
		*st = State{Stimulus: stimulus, Prompt: prompt, Visible: true, Version: st.Version}
	})
}

func (s *Surface) HideStimulus() {
	s.update(func(st *State) { st.Visible = false })
}

func (s *Surface) MarkResponded() {
	s.update(func(st *State) { st.Responded = true })
}

func (s *Surface) Clear() {
	s.update(func(st *State) {
		*st = State{Blank: true, Version: st.Version}
	})
}

// Snapshot returns the current state.
func (s *Surface) Snapshot() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

func (s *Surface) update(fn func(*State)) {
	s.mu.Lock()
	fn(&s.state)
	s.state.Version++
	st := s.state
	observers := s.observers
	s.mu.Unlock()

	for _, o := range observers {
		o(st)
	}
}
