package database

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"kbtrial/internal/config"
	"kbtrial/internal/models"
)

func TestOpenSQLiteMigrates(t *testing.T) {
	db, err := Open(config.DatabaseConfig{Driver: "sqlite", Path: ":memory:"}, zap.NewNop())
	require.NoError(t, err)

	assert.True(t, db.Migrator().HasTable(&models.Session{}))
	assert.True(t, db.Migrator().HasTable(&models.TrialRecord{}))
	assert.True(t, db.Migrator().HasIndex(&models.TrialRecord{}, "idx_session_trial"))
}

func TestOpenUnknownDriver(t *testing.T) {
	_, err := Open(config.DatabaseConfig{Driver: "oracle"}, zap.NewNop())
	assert.ErrorContains(t, err, "unsupported database driver")
}
