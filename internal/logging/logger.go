package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"

	"kbtrial/internal/config"
)

// Init builds a zap logger that writes one rotating JSON file per level
// under projectRoot/cfg.Directory and, optionally, a colored console stream.
func Init(projectRoot string, cfg config.LoggingConfig) (*zap.Logger, error) {
	minLevel, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
	}

	// Base encoder configuration for file logs (JSON format)
	encoderConfig := zapcore.EncoderConfig{
		MessageKey:   "message",
		LevelKey:     "level",
		TimeKey:      "time",
		CallerKey:    "caller",
		EncodeLevel:  zapcore.CapitalLevelEncoder,
		EncodeTime:   zapcore.ISO8601TimeEncoder,
		EncodeCaller: zapcore.ShortCallerEncoder,
	}

	logDir := cfg.Directory
	if !filepath.IsAbs(logDir) {
		logDir = filepath.Join(projectRoot, logDir)
	}
	if err := os.MkdirAll(logDir, 0755); err != nil {
		return nil, fmt.Errorf("could not create log directory: %w", err)
	}

	var cores []zapcore.Core
	for _, level := range []zapcore.Level{zapcore.DebugLevel, zapcore.InfoLevel, zapcore.WarnLevel, zapcore.ErrorLevel} {
		if level < minLevel {
			continue
		}
		cores = append(cores, newFileCore(logDir, level, cfg, encoderConfig))
	}

	if cfg.Console {
		cores = append(cores, newConsoleCore(minLevel))
	}

	return zap.New(zapcore.NewTee(cores...), zap.AddCaller()), nil
}

// newFileCore creates a core that writes exactly one log level to a rotating file.
func newFileCore(logDir string, level zapcore.Level, cfg config.LoggingConfig, encoderConfig zapcore.EncoderConfig) zapcore.Core {
	// Named like '2025-07-30-info.log'
	fileName := filepath.Join(logDir, fmt.Sprintf("%s-%s.log", time.Now().Format("2006-01-02"), level.String()))

	writer := zapcore.AddSync(&lumberjack.Logger{
		Filename:   fileName,
		MaxSize:    cfg.MaxSize, // megabytes
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAge, // days
		Compress:   cfg.Compress,
	})

	levelEnabler := zap.LevelEnablerFunc(func(l zapcore.Level) bool {
		return l == level
	})

	return zapcore.NewCore(zapcore.NewJSONEncoder(encoderConfig), writer, levelEnabler)
}

// newConsoleCore creates a core that writes to the console.
func newConsoleCore(minLevel zapcore.Level) zapcore.Core {
	consoleEncoderConfig := zap.NewDevelopmentEncoderConfig()
	consoleEncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder

	return zapcore.NewCore(
		zapcore.NewConsoleEncoder(consoleEncoderConfig),
		zapcore.AddSync(os.Stderr),
		zap.LevelEnablerFunc(func(l zapcore.Level) bool { return l >= minLevel }),
	)
}
