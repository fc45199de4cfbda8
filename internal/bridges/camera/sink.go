package camera

// AttributeSink is the controller-facing attribute store.
//
// LastValue returns the most recently stored value for an attribute of a
// node address. SetValue stores a value and reports it upstream; force
// reports even when the value is unchanged.
//
// The bridge calls SetValue only for changed or forced values and never
// while holding a device lock.
type AttributeSink interface {
	LastValue(address, name string) (float64, bool)
	SetValue(address, name string, value float64, force bool)
}

// Logger is the logging interface used throughout the package.
// Compatible with logging.Logger and slog.Logger.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Warn(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

type discardSink struct{}

func (discardSink) LastValue(string, string) (float64, bool) { return 0, false }
func (discardSink) SetValue(string, string, float64, bool)   {}
