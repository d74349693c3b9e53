package services

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"kbtrial/internal/clock"
	"kbtrial/internal/display"
	"kbtrial/internal/keyboard"
	"kbtrial/internal/models"
	"kbtrial/internal/schedule"
	"kbtrial/internal/trial"
)

// ErrStaleTrial is returned for key events addressed to a trial that is no
// longer running.
var ErrStaleTrial = errors.New("trial is no longer running")

// SessionOptions configures a Session.
type SessionOptions struct {
	ID            string
	ParticipantID string
	Timeline      []models.TrialSpec
	Clock         clock.Clock
	// Surface is created when nil.
	Surface *display.Surface
	Log     *zap.Logger
	// OnResult is called once per finished trial, before the next one starts.
	OnResult func(s *Session, record models.TrialRecord)
	// OnFinish is called once, after the last trial or an abort.
	OnFinish func(s *Session)
}

// SessionState is a point-in-time view of a session.
type SessionState struct {
	ID            string        `json:"id"`
	ParticipantID string        `json:"participantId"`
	TrialIndex    int           `json:"trialIndex"`
	TrialCount    int           `json:"trialCount"`
	TrialID       string        `json:"trialId,omitempty"`
	IsComplete    bool          `json:"isComplete"`
	IsAborted     bool          `json:"isAborted"`
	Display       display.State `json:"display"`
}

// Session runs a timeline of trials one after another on a shared display.
// Each trial gets its own keyboard dispatcher and timers, so nothing a trial
// registered can outlive it.
type Session struct {
	ID            string
	ParticipantID string

	opts    SessionOptions
	surface *display.Surface
	log     *zap.Logger

	mu           sync.Mutex
	index        int
	trialStarted time.Time
	keyboard     *keyboard.Dispatcher
	current      *trial.Controller
	results      []trial.Result
	started      bool
	aborted      bool
	finished     bool
	finishedAt   time.Time
	done         chan struct{}
}

func NewSession(opts SessionOptions) *Session {
	if opts.Clock == nil {
		opts.Clock = clock.Real{}
	}
	if opts.Surface == nil {
		opts.Surface = display.NewSurface()
	}
	if opts.Log == nil {
		opts.Log = zap.NewNop()
	}
	return &Session{
		ID:            opts.ID,
		ParticipantID: opts.ParticipantID,
		opts:          opts,
		surface:       opts.Surface,
		log:           opts.Log.With(zap.String("session_id", opts.ID)),
		done:          make(chan struct{}),
	}
}

// Start runs the first trial. Calling Start more than once has no effect.
func (s *Session) Start() {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return
	}
	s.started = true
	s.mu.Unlock()

	s.log.Info("Session started", zap.Int("trials", len(s.opts.Timeline)))
	if len(s.opts.Timeline) == 0 {
		s.finish()
		return
	}
	s.startTrial(0)
}

func (s *Session) startTrial(i int) {
	spec := s.opts.Timeline[i]
	kb := keyboard.NewDispatcher(s.opts.Clock, s.log)
	host := trial.Host{
		Display:   s.surface,
		Keyboard:  kb,
		Scheduler: schedule.New(s.opts.Clock),
		Sink: trial.SinkFunc(func(r trial.Result) {
			s.finishTrial(i, spec, r)
		}),
	}

	s.mu.Lock()
	if s.aborted {
		s.mu.Unlock()
		s.finish()
		return
	}
	s.index = i
	s.keyboard = kb
	s.trialStarted = s.opts.Clock.Now()
	s.mu.Unlock()

	ctrl := trial.Run(spec.Config(), host, s.log.With(zap.String("trial_id", spec.ID), zap.Int("trial_index", i)))

	s.mu.Lock()
	s.current = ctrl
	aborted := s.aborted
	s.mu.Unlock()

	if aborted {
		ctrl.Abort()
	}
}

func (s *Session) finishTrial(i int, spec models.TrialSpec, r trial.Result) {
	s.mu.Lock()
	s.results = append(s.results, r)
	last := i+1 >= len(s.opts.Timeline) || s.aborted
	s.mu.Unlock()

	if s.opts.OnResult != nil {
		s.opts.OnResult(s, models.NewTrialRecord(s.ID, i, spec.ID, r))
	}

	if last {
		s.finish()
		return
	}
	s.startTrial(i + 1)
}

func (s *Session) finish() {
	s.mu.Lock()
	if s.finished {
		s.mu.Unlock()
		return
	}
	s.finished = true
	s.finishedAt = s.opts.Clock.Now()
	aborted := s.aborted
	count := len(s.results)
	close(s.done)
	s.mu.Unlock()

	s.log.Info("Session finished", zap.Bool("aborted", aborted), zap.Int("results", count))
	if s.opts.OnFinish != nil {
		s.opts.OnFinish(s)
	}
}

// Abort ends the running trial with what it has recorded and stops the
// session. It is a no-op on a finished session.
func (s *Session) Abort() {
	s.mu.Lock()
	if s.finished || s.aborted {
		s.mu.Unlock()
		return
	}
	s.aborted = true
	ctrl := s.current
	started := s.started
	s.mu.Unlock()

	if ctrl != nil {
		ctrl.Abort()
	}
	if !started {
		s.finish()
	}
}

// Dispatch feeds a raw key event to the running trial.
func (s *Session) Dispatch(ev keyboard.Event) {
	s.mu.Lock()
	kb := s.keyboard
	finished := s.finished
	s.mu.Unlock()

	if kb == nil || finished {
		return
	}
	kb.Dispatch(ev)
}

// DispatchTrial feeds ev to trial index only while that trial is running.
// A non-nil offset timestamps ev relative to the start of that trial.
func (s *Session) DispatchTrial(index int, ev keyboard.Event, offset *time.Duration) error {
	s.mu.Lock()
	kb := s.keyboard
	if kb == nil || s.finished || s.index != index {
		current := s.index
		s.mu.Unlock()
		return fmt.Errorf("%w: event for trial %d, running %d", ErrStaleTrial, index, current)
	}
	if offset != nil {
		ev.At = s.trialStarted.Add(*offset)
	}
	s.mu.Unlock()

	kb.Dispatch(ev)
	return nil
}

// Press feeds a key press (down and up) to the running trial.
func (s *Session) Press(key string) {
	s.mu.Lock()
	kb := s.keyboard
	finished := s.finished
	s.mu.Unlock()

	if kb == nil || finished {
		return
	}
	kb.Press(key)
}

// TrialStarted returns when the running trial started.
func (s *Session) TrialStarted() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.trialStarted
}

// Surface returns the display shared by the session's trials.
func (s *Session) Surface() *display.Surface {
	return s.surface
}

// Results returns a copy of the results emitted so far.
func (s *Session) Results() []trial.Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]trial.Result(nil), s.results...)
}

// Done is closed when the session has finished.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// FinishedBefore reports whether the session finished before t.
func (s *Session) FinishedBefore(t time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.finished && s.finishedAt.Before(t)
}

func (s *Session) State() SessionState {
	s.mu.Lock()
	st := SessionState{
		ID:            s.ID,
		ParticipantID: s.ParticipantID,
		TrialIndex:    s.index,
		TrialCount:    len(s.opts.Timeline),
		IsComplete:    s.finished && !s.aborted,
		IsAborted:     s.aborted,
	}
	if s.index < len(s.opts.Timeline) {
		st.TrialID = s.opts.Timeline[s.index].ID
	}
	s.mu.Unlock()

	st.Display = s.surface.Snapshot()
	return st
}
