// Package logging configures the process-wide leveled logger backed by a
// size- and count-bounded rotating file.
//
// Lines are written as "<LEVEL> <file:line> <message>". The directory holding
// the log file is a deployment prerequisite: Init verifies it but never creates it.
package logging

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"newsportal/config"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// ErrSinkUnavailable is matched by every SinkUnavailableError
var ErrSinkUnavailable = errors.New("log sink unavailable")

// SinkUnavailableError is returned when the log file cannot be written
type SinkUnavailableError struct {
	Path string
	Err  error
}

func (e *SinkUnavailableError) Error() string {
	return fmt.Sprintf("log sink %s unavailable: %v (create the directory before starting)", e.Path, e.Err)
}

func (e *SinkUnavailableError) Unwrap() error { return e.Err }

// Is lets errors.Is(err, ErrSinkUnavailable) match
func (e *SinkUnavailableError) Is(target error) bool {
	return target == ErrSinkUnavailable
}

// Logger is the initialized global logger together with its rotating sink
type Logger struct {
	*zap.Logger
	Sugar *zap.SugaredLogger
	Level zap.AtomicLevel

	rotator *lumberjack.Logger
	restore func()
}

// Close flushes buffered entries, restores the previous global logger and
// closes the current log file.
func (l *Logger) Close() error {
	_ = l.Logger.Sync()
	if l.restore != nil {
		l.restore()
	}
	return l.rotator.Close()
}

// EncoderConfig returns the line format shared by the file and console sinks
func EncoderConfig() zapcore.EncoderConfig {
	return zapcore.EncoderConfig{
		LevelKey:         "level",
		CallerKey:        "caller",
		MessageKey:       "msg",
		LineEnding:       zapcore.DefaultLineEnding,
		EncodeLevel:      zapcore.CapitalLevelEncoder,
		EncodeCaller:     zapcore.ShortCallerEncoder,
		EncodeDuration:   zapcore.StringDurationEncoder,
		ConsoleSeparator: " ",
	}
}

// ParseLevel converts a configured level name into a zap level
func ParseLevel(s string) (zapcore.Level, error) {
	switch s {
	case "debug":
		return zapcore.DebugLevel, nil
	case "info":
		return zapcore.InfoLevel, nil
	case "warn":
		return zapcore.WarnLevel, nil
	case "error":
		return zapcore.ErrorLevel, nil
	default:
		return zapcore.InfoLevel, fmt.Errorf("unknown log level %q", s)
	}
}

// Init sets the global minimum level and attaches one rotating file sink.
// It must run once, before any other assembly step.
func Init(cfg config.Log) (*Logger, error) {
	level, err := ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}

	if err := checkWritable(cfg.Path); err != nil {
		return nil, &SinkUnavailableError{Path: cfg.Path, Err: err}
	}

	rotator := &lumberjack.Logger{
		Filename:   cfg.Path,
		MaxSize:    cfg.MaxSizeMB,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAgeDays,
		Compress:   cfg.Compress,
	}

	atomic := zap.NewAtomicLevelAt(level)
	encoder := zapcore.NewConsoleEncoder(EncoderConfig())

	core := zapcore.NewCore(encoder, zapcore.AddSync(rotator), atomic)
	if cfg.Console {
		core = zapcore.NewTee(core, zapcore.NewCore(encoder, zapcore.Lock(os.Stdout), atomic))
	}

	logger := zap.New(core, zap.AddCaller())
	restore := zap.ReplaceGlobals(logger)

	l := &Logger{
		Logger:  logger,
		Sugar:   logger.Sugar(),
		Level:   atomic,
		rotator: rotator,
		restore: restore,
	}

	l.Sugar.Infow("Logging initialized",
		"level", level.String(),
		"path", cfg.Path,
		"max_size_mb", cfg.MaxSizeMB,
		"max_backups", cfg.MaxBackups)

	return l, nil
}

// checkWritable verifies the log directory exists and the file can be opened
// for appending. The directory itself is never created here.
func checkWritable(path string) error {
	if path == "" {
		return errors.New("log path is empty")
	}

	dir := filepath.Dir(path)
	info, err := os.Stat(dir)
	if err != nil {
		return fmt.Errorf("log directory %s: %w", dir, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("log directory %s is not a directory", dir)
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	return f.Close()
}
