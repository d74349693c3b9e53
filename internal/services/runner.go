package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/xid"
	"go.uber.org/zap"

	"kbtrial/internal/clock"
	"kbtrial/internal/display"
	"kbtrial/internal/models"
	"kbtrial/internal/repository"
)

// ResultStore is the persistence the runner needs. *repository.Repository
// satisfies it.
type ResultStore interface {
	CreateSession(ctx context.Context, session *models.Session) error
	SaveTrialRecord(ctx context.Context, record *models.TrialRecord) error
	CompleteSession(ctx context.Context, id string, aborted bool) error
}

var _ ResultStore = (*repository.Repository)(nil)

// Runner owns the live sessions of one protocol.
type Runner struct {
	log      *zap.Logger
	protocol *models.Protocol
	clock    clock.Clock
	store    ResultStore

	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewRunner creates a runner. store may be nil, in which case results are
// only kept in memory.
func NewRunner(log *zap.Logger, protocol *models.Protocol, c clock.Clock, store ResultStore) *Runner {
	if c == nil {
		c = clock.Real{}
	}
	return &Runner{
		log:      log,
		protocol: protocol,
		clock:    c,
		store:    store,
		sessions: make(map[string]*Session),
	}
}

// Protocol returns the protocol sessions run.
func (r *Runner) Protocol() *models.Protocol {
	return r.protocol
}

// StartOptions customize a single session.
type StartOptions struct {
	ParticipantID string
	// Configure, when set, can adjust the session before it starts, e.g. to
	// attach a display observer. The options it receives already carry the
	// session's surface.
	Configure func(*SessionOptions)
}

// Start creates, registers and starts a session.
func (r *Runner) Start(ctx context.Context, opts StartOptions) (*Session, error) {
	id := xid.New().String()
	timeline := r.protocol.Timeline()

	if r.store != nil {
		record := &models.Session{
			ID:            id,
			ParticipantID: opts.ParticipantID,
			Protocol:      r.protocol.Name,
			TrialCount:    len(timeline),
		}
		if err := r.store.CreateSession(ctx, record); err != nil {
			return nil, fmt.Errorf("failed to create session: %w", err)
		}
	}

	sessionOpts := SessionOptions{
		ID:            id,
		ParticipantID: opts.ParticipantID,
		Timeline:      timeline,
		Clock:         r.clock,
		Surface:       display.NewSurface(),
		Log:           r.log,
		OnResult:      r.saveResult,
		OnFinish:      r.sessionFinished,
	}
	if opts.Configure != nil {
		opts.Configure(&sessionOpts)
	}
	session := NewSession(sessionOpts)

	r.mu.Lock()
	r.sessions[id] = session
	r.mu.Unlock()

	session.Start()
	return session, nil
}

// Get returns a live session.
func (r *Runner) Get(id string) (*Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.sessions[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", repository.ErrSessionNotFound, id)
	}
	return s, nil
}

// Len returns the number of sessions held in memory.
func (r *Runner) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// Evict drops sessions that finished before cutoff and returns how many were
// dropped. Running sessions are never evicted.
func (r *Runner) Evict(cutoff time.Time) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	evicted := 0
	for id, s := range r.sessions {
		if s.FinishedBefore(cutoff) {
			delete(r.sessions, id)
			evicted++
		}
	}
	return evicted
}

// Shutdown aborts every running session.
func (r *Runner) Shutdown() {
	r.mu.RLock()
	sessions := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		sessions = append(sessions, s)
	}
	r.mu.RUnlock()

	for _, s := range sessions {
		s.Abort()
	}
}

func (r *Runner) saveResult(s *Session, record models.TrialRecord) {
	if r.store == nil {
		return
	}
	if err := r.store.SaveTrialRecord(context.Background(), &record); err != nil {
		r.log.Error("Failed to save trial result",
			zap.String("session_id", s.ID),
			zap.Int("trial_index", record.TrialIndex),
			zap.Error(err),
		)
	}
}

func (r *Runner) sessionFinished(s *Session) {
	if r.store == nil {
		return
	}
	if err := r.store.CompleteSession(context.Background(), s.ID, s.State().IsAborted); err != nil {
		r.log.Error("Failed to mark session finished", zap.String("session_id", s.ID), zap.Error(err))
	}
}
