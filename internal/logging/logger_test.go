package logging

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"kbtrial/internal/config"
)

func TestInitWritesPerLevelFiles(t *testing.T) {
	root := t.TempDir()
	log, err := Init(root, config.LoggingConfig{Directory: "logs", Level: "info", MaxSize: 1})
	require.NoError(t, err)

	log.Debug("dropped")
	log.Info("kept")
	log.Error("also kept")
	require.NoError(t, log.Sync())

	entries, err := os.ReadDir(filepath.Join(root, "logs"))
	require.NoError(t, err)
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	today := time.Now().Format("2006-01-02")
	assert.Contains(t, names, today+"-info.log")
	assert.Contains(t, names, today+"-error.log")
	assert.NotContains(t, names, today+"-debug.log")
}

func TestInitRejectsUnknownLevel(t *testing.T) {
	_, err := Init(t.TempDir(), config.LoggingConfig{Directory: "logs", Level: "loud"})
	assert.Error(t, err)
}

func TestGormTrace(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	l := NewGormZapLogger(zap.New(core)).LogMode(logger.Info)

	query := func() (string, int64) { return "SELECT 1", 1 }
	l.Trace(context.Background(), time.Now(), query, nil)
	l.Trace(context.Background(), time.Now(), query, gorm.ErrRecordNotFound)
	l.Trace(context.Background(), time.Now(), query, errors.New("boom"))
	l.Trace(context.Background(), time.Now().Add(-time.Second), query, nil)

	require.Equal(t, 4, logs.Len())
	all := logs.All()
	assert.Equal(t, "Query", all[0].Message)
	assert.Equal(t, "Query", all[1].Message)
	assert.Equal(t, "Query failed", all[2].Message)
	assert.Equal(t, "Slow query", all[3].Message)

	silent := NewGormZapLogger(zap.New(core)).LogMode(logger.Silent)
	silent.Trace(context.Background(), time.Now(), query, errors.New("boom"))
	assert.Equal(t, 4, logs.Len())
}
