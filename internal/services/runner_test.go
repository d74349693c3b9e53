package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"kbtrial/internal/clock"
	"kbtrial/internal/display"
	"kbtrial/internal/keyboard"
	"kbtrial/internal/models"
	"kbtrial/internal/repository"
)

var epoch = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

const twoTrialProtocol = `
name: demo
trials:
  - id: fixation
    stimulus: "+"
    choices: none
    trial_duration: 500
  - id: target
    stimulus: "X"
    choices: [f, j]
    invalid_choices: [space]
    stimulus_duration: 200
    trial_duration: 2000
`

type mockStore struct {
	mock.Mock
}

func (m *mockStore) CreateSession(ctx context.Context, session *models.Session) error {
	return m.Called(ctx, session).Error(0)
}

func (m *mockStore) SaveTrialRecord(ctx context.Context, record *models.TrialRecord) error {
	return m.Called(ctx, record).Error(0)
}

func (m *mockStore) CompleteSession(ctx context.Context, id string, aborted bool) error {
	return m.Called(ctx, id, aborted).Error(0)
}

func loadProtocol(t *testing.T) *models.Protocol {
	t.Helper()
	p, err := models.ParseProtocol([]byte(twoTrialProtocol))
	require.NoError(t, err)
	return p
}

func TestRunnerRunsTimelineAndPersists(t *testing.T) {
	c := clock.NewManual(epoch)
	store := &mockStore{}
	store.On("CreateSession", mock.Anything, mock.MatchedBy(func(s *models.Session) bool {
		return s.ParticipantID == "p1" && s.TrialCount == 2 && s.Protocol == "demo"
	})).Return(nil).Once()
	store.On("SaveTrialRecord", mock.Anything, mock.MatchedBy(func(r *models.TrialRecord) bool {
		return r.TrialIndex == 0 && r.TrialID == "fixation" && r.KeyPress == nil
	})).Return(nil).Once()
	store.On("SaveTrialRecord", mock.Anything, mock.MatchedBy(func(r *models.TrialRecord) bool {
		return r.TrialIndex == 1 && r.TrialID == "target" && r.KeyPress != nil && *r.KeyPress == "j" &&
			r.RT != nil && *r.RT == 300 && r.InvalidCount == 1
	})).Return(nil).Once()
	store.On("CompleteSession", mock.Anything, mock.Anything, false).Return(nil).Once()

	runner := NewRunner(zap.NewNop(), loadProtocol(t), c, store)
	s, err := runner.Start(context.Background(), StartOptions{ParticipantID: "p1"})
	require.NoError(t, err)

	st := s.State()
	assert.Equal(t, "fixation", st.TrialID)
	assert.Equal(t, "+", st.Display.Stimulus)

	// Keys during fixation have no effect.
	s.Press("f")
	c.Advance(500 * time.Millisecond)

	st = s.State()
	assert.Equal(t, 1, st.TrialIndex)
	assert.Equal(t, "X", st.Display.Stimulus)

	c.Advance(100 * time.Millisecond)
	s.Press("space")
	c.Advance(100 * time.Millisecond)
	assert.False(t, s.State().Display.Visible)
	c.Advance(100 * time.Millisecond)
	s.Press("J")

	select {
	case <-s.Done():
	default:
		t.Fatal("session did not finish")
	}
	st = s.State()
	assert.True(t, st.IsComplete)
	assert.True(t, st.Display.Blank)

	results := s.Results()
	require.Len(t, results, 2)
	assert.Nil(t, results[0].KeyPress)
	assert.Equal(t, "j", *results[1].KeyPress)
	assert.Equal(t, 300.0, *results[1].RT)
	store.AssertExpectations(t)

	got, err := runner.Get(s.ID)
	require.NoError(t, err)
	assert.Same(t, s, got)
}

func TestRunnerCreateSessionFailure(t *testing.T) {
	store := &mockStore{}
	store.On("CreateSession", mock.Anything, mock.Anything).Return(errors.New("db down"))

	runner := NewRunner(zap.NewNop(), loadProtocol(t), clock.NewManual(epoch), store)
	_, err := runner.Start(context.Background(), StartOptions{})
	assert.ErrorContains(t, err, "db down")
	assert.Zero(t, runner.Len())
}

func TestRunnerGetUnknown(t *testing.T) {
	runner := NewRunner(zap.NewNop(), loadProtocol(t), nil, nil)
	_, err := runner.Get("nope")
	assert.ErrorIs(t, err, repository.ErrSessionNotFound)
}

func TestAbortEndsCurrentTrialAndSession(t *testing.T) {
	c := clock.NewManual(epoch)
	store := &mockStore{}
	store.On("CreateSession", mock.Anything, mock.Anything).Return(nil)
	store.On("SaveTrialRecord", mock.Anything, mock.Anything).Return(nil).Once()
	store.On("CompleteSession", mock.Anything, mock.Anything, true).Return(nil).Once()

	runner := NewRunner(zap.NewNop(), loadProtocol(t), c, store)
	s, err := runner.Start(context.Background(), StartOptions{})
	require.NoError(t, err)

	runner.Shutdown()
	s.Abort()

	st := s.State()
	assert.True(t, st.IsAborted)
	assert.False(t, st.IsComplete)
	assert.Len(t, s.Results(), 1)

	// Nothing else runs afterwards.
	c.Advance(time.Hour)
	assert.Len(t, s.Results(), 1)
	assert.Zero(t, c.Pending())
	store.AssertExpectations(t)
}

func TestDispatchUsesExplicitTimestamps(t *testing.T) {
	c := clock.NewManual(epoch)
	runner := NewRunner(zap.NewNop(), loadProtocol(t), c, nil)
	s, err := runner.Start(context.Background(), StartOptions{})
	require.NoError(t, err)
	c.Advance(500 * time.Millisecond)

	s.Dispatch(keyboard.Event{Key: "f", Type: keyboard.KeyDown, At: s.TrialStarted().Add(275 * time.Millisecond)})
	results := s.Results()
	require.Len(t, results, 2)
	assert.Equal(t, 275.0, *results[1].RT)
}

func TestReaperEvictsOnlyFinishedSessions(t *testing.T) {
	c := clock.NewManual(epoch)
	// A single trial without a deadline keeps the second session running.
	p, err := models.ParseProtocol([]byte("name: open\ntrials:\n  - stimulus: wait\n"))
	require.NoError(t, err)
	runner := NewRunner(zap.NewNop(), p, c, nil)

	finished, err := runner.Start(context.Background(), StartOptions{})
	require.NoError(t, err)
	finished.Abort()
	assert.Zero(t, c.Pending())
	_, err = runner.Start(context.Background(), StartOptions{})
	require.NoError(t, err)

	reaper := NewReaper(zap.NewNop(), runner, time.Minute, 10*time.Minute)
	reaper.now = c.Now

	c.Advance(5 * time.Minute)
	assert.Zero(t, reaper.sweep())

	reaper.SetRetention(time.Hour)
	c.Advance(6 * time.Minute)
	assert.Zero(t, reaper.sweep())

	reaper.SetRetention(10 * time.Minute)
	assert.Equal(t, 1, reaper.sweep())
	assert.Equal(t, 1, runner.Len())
	_, err = runner.Get(finished.ID)
	assert.ErrorIs(t, err, repository.ErrSessionNotFound)
}

func TestConfigureAttachesObserverBeforeStart(t *testing.T) {
	c := clock.NewManual(epoch)
	runner := NewRunner(zap.NewNop(), loadProtocol(t), c, nil)

	var stimuli []string
	var configured *display.Surface
	s, err := runner.Start(context.Background(), StartOptions{
		Configure: func(o *SessionOptions) {
			require.NotNil(t, o.Surface)
			configured = o.Surface
			o.Surface.OnChange(func(st display.State) {
				if !st.Blank {
					stimuli = append(stimuli, st.Stimulus)
				}
			})
		},
	})
	require.NoError(t, err)
	assert.Same(t, configured, s.Surface())
	assert.Equal(t, []string{"+"}, stimuli)

	c.Advance(500 * time.Millisecond)
	assert.Equal(t, []string{"+", "X"}, stimuli)
}

func TestZeroDurationTrialDoesNotHang(t *testing.T) {
	c := clock.NewManual(epoch)
	p, err := models.ParseProtocol([]byte(`
name: blank
trials:
  - id: gap
    stimulus: ""
    choices: none
    trial_duration: 0
  - id: target
    stimulus: "?"
    choices: [space]
`))
	require.NoError(t, err)
	runner := NewRunner(zap.NewNop(), p, c, nil)

	s, err := runner.Start(context.Background(), StartOptions{})
	require.NoError(t, err)
	assert.Equal(t, "gap", s.State().TrialID)

	c.Advance(0)
	assert.Equal(t, "target", s.State().TrialID)
	require.Len(t, s.Results(), 1)
	assert.Nil(t, s.Results()[0].KeyPress)
}

func TestReaperFallsBackToDefaultInterval(t *testing.T) {
	runner := NewRunner(zap.NewNop(), loadProtocol(t), clock.NewManual(epoch), nil)
	for _, d := range []time.Duration{0, -time.Second} {
		r := NewReaper(zap.NewNop(), runner, d, time.Minute)
		assert.Equal(t, defaultSweepInterval, r.interval)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	NewReaper(zap.NewNop(), runner, 0, time.Minute).Start(ctx)
}
