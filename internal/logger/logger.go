package logger

import (
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type LogLevel string

const (
	LogLevelDebug LogLevel = "debug"
	LogLevelInfo  LogLevel = "info"
	LogLevelWarn  LogLevel = "warn"
	LogLevelError LogLevel = "error"
)

var (
	mu   sync.RWMutex
	base = mustDevelopment()
)

func mustDevelopment() *zap.SugaredLogger {
	l, err := zap.NewDevelopment(zap.AddCallerSkip(1))
	if err != nil {
		return zap.NewNop().Sugar()
	}
	return l.Sugar()
}

// Init replaces the process-wide logger. mode "prod" selects the JSON encoder,
// anything else the console encoder.
func Init(mode string, level LogLevel) error {
	var cfg zap.Config
	switch strings.ToLower(mode) {
	case "prod", "production":
		cfg = zap.NewProductionConfig()
	default:
		cfg = zap.NewDevelopmentConfig()
	}
	cfg.Level = zap.NewAtomicLevelAt(toZapLevel(level))

	l, err := cfg.Build(zap.AddCallerSkip(1))
	if err != nil {
		return err
	}

	mu.Lock()
	base = l.Sugar()
	mu.Unlock()
	return nil
}

// Sync flushes buffered entries.
func Sync() {
	mu.RLock()
	defer mu.RUnlock()
	_ = base.Sync()
}

func toZapLevel(level LogLevel) zapcore.Level {
	switch LogLevel(strings.ToLower(string(level))) {
	case LogLevelDebug:
		return zap.DebugLevel
	case LogLevelWarn:
		return zap.WarnLevel
	case LogLevelError:
		return zap.ErrorLevel
	default:
		return zap.InfoLevel
	}
}

type Log struct {
	s *zap.SugaredLogger
}

func New() *Log {
	mu.RLock()
	defer mu.RUnlock()
	return &Log{s: base}
}

func (l *Log) With(keysAndValues ...interface{}) *Log {
	return &Log{s: l.s.With(keysAndValues...)}
}

func (l *Log) WithError(err error) *Log {
	return &Log{s: l.s.With("error", err)}
}

func (l *Log) Debug(msg string, keysAndValues ...interface{}) {
	l.s.Debugw(msg, keysAndValues...)
}

func (l *Log) Info(msg string, keysAndValues ...interface{}) {
	l.s.Infow(msg, keysAndValues...)
}

func (l *Log) Warn(msg string, keysAndValues ...interface{}) {
	l.s.Warnw(msg, keysAndValues...)
}

func (l *Log) Error(msg string, keysAndValues ...interface{}) {
	l.s.Errorw(msg, keysAndValues...)
}
