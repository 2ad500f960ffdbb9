package types

// Logger is the logging interface accepted by store and backend
// constructors. The zaplog package provides a zap-backed implementation;
// [NopLogger] discards everything.
type Logger interface {
	Debug(args ...any)
	Info(args ...any)
	Warn(args ...any)
	Error(args ...any)
	Debugf(format string, args ...any)
	Infof(format string, args ...any)
	Warnf(format string, args ...any)
	Errorf(format string, args ...any)
}

// NopLogger is a Logger that discards all messages.
type NopLogger struct{}

func (NopLogger) Debug(args ...any)                 {}
func (NopLogger) Info(args ...any)                  {}
func (NopLogger) Warn(args ...any)                  {}
func (NopLogger) Error(args ...any)                 {}
func (NopLogger) Debugf(format string, args ...any) {}
func (NopLogger) Infof(format string, args ...any)  {}
func (NopLogger) Warnf(format string, args ...any)  {}
func (NopLogger) Errorf(format string, args ...any) {}
