package repository

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"kbtrial/internal/config"
	"kbtrial/internal/database"
	"kbtrial/internal/models"
	"kbtrial/internal/trial"
)

func newTestRepository(t *testing.T) *Repository {
	t.Helper()
	db, err := database.Open(config.DatabaseConfig{Driver: "sqlite", Path: ":memory:"}, zap.NewNop())
	require.NoError(t, err)
	return New(db)
}

func TestSessionLifecycle(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepository(t)

	require.NoError(t, repo.CreateSession(ctx, &models.Session{ID: "s1", ParticipantID: "p1", Protocol: "demo", TrialCount: 2}))

	got, err := repo.GetSession(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "p1", got.ParticipantID)
	assert.False(t, got.IsComplete)

	require.NoError(t, repo.CompleteSession(ctx, "s1", false))
	got, err = repo.GetSession(ctx, "s1")
	require.NoError(t, err)
	assert.True(t, got.IsComplete)
	assert.False(t, got.IsAborted)

	_, err = repo.GetSession(ctx, "missing")
	assert.ErrorIs(t, err, ErrSessionNotFound)
	assert.ErrorIs(t, repo.CompleteSession(ctx, "missing", true), ErrSessionNotFound)

	sessions, err := repo.ListSessions(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, sessions, 1)
}

func TestTrialRecordsRoundTrip(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepository(t)
	require.NoError(t, repo.CreateSession(ctx, &models.Session{ID: "s1"}))

	rt, key := 412.5, "j"
	responded := trial.Result{RT: &rt, Stimulus: "<p>X</p>", KeyPress: &key, InvalidCount: 1,
		InvalidResponses: []trial.InvalidResponse{{KeyPress: "space", RT: 100}}}
	missed := trial.Result{Stimulus: "<p>Y</p>"}

	second := models.NewTrialRecord("s1", 1, "t2", missed)
	first := models.NewTrialRecord("s1", 0, "t1", responded)
	require.NoError(t, repo.SaveTrialRecord(ctx, &second))
	require.NoError(t, repo.SaveTrialRecord(ctx, &first))

	dup := models.NewTrialRecord("s1", 0, "t1", responded)
	assert.Error(t, repo.SaveTrialRecord(ctx, &dup))

	records, err := repo.GetTrialRecords(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, responded, records[0].Result())
	assert.Nil(t, records[1].Result().RT)
	assert.Nil(t, records[1].Result().KeyPress)

	points, err := repo.GetReactionTimes(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, []ReactionTimePoint{{TrialIndex: 0, TrialID: "t1", RT: 412.5, InvalidCount: 1}}, points)
}
