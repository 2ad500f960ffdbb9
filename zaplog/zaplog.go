// Package zaplog adapts a zap logger to the [types.Logger] interface.
package zaplog

import (
	"go.uber.org/zap"

	"github.com/osrsgoaltracker/goaldao/types"
)

// Logger wraps a zap.SugaredLogger so it satisfies [types.Logger].
type Logger struct {
	s *zap.SugaredLogger
}

var _ types.Logger = (*Logger)(nil)

// New wraps the given zap logger. The caller keeps ownership of l and is
// responsible for syncing it on shutdown.
func New(l *zap.Logger) *Logger {
	// Skip the adapter frame so call sites are reported correctly.
	return &Logger{s: l.WithOptions(zap.AddCallerSkip(1)).Sugar()}
}

// NewDevelopment builds a Logger on top of zap's development config. It is
// intended for local tooling and tests.
func NewDevelopment() (*Logger, error) {
	l, err := zap.NewDevelopment()
	if err != nil {
		return nil, err
	}
	return New(l), nil
}

func (l *Logger) Debug(args ...any) { l.s.Debug(args...) }
func (l *Logger) Info(args ...any)  { l.s.Info(args...) }
func (l *Logger) Warn(args ...any)  { l.s.Warn(args...) }
func (l *Logger) Error(args ...any) { l.s.Error(args...) }

func (l *Logger) Debugf(format string, args ...any) { l.s.Debugf(format, args...) }
func (l *Logger) Infof(format string, args ...any)  { l.s.Infof(format, args...) }
func (l *Logger) Warnf(format string, args ...any)  { l.s.Warnf(format, args...) }
func (l *Logger) Errorf(format string, args ...any) { l.s.Errorf(format, args...) }
