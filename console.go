package jsembed

import (
	"strings"

	"go.uber.org/zap"
)

// NewConsole builds a console-shaped host object whose log, info, warn,
// error and debug methods write through the given logger. Register it with
// RegisterObject to give scripts a console backed by the host's logging.
func NewConsole(log *zap.Logger) *Object {
	console := NewObject()
	levels := []struct {
		name string
		emit func(string, ...zap.Field)
	}{
		{"log", log.Info},
		{"info", log.Info},
		{"warn", log.Warn},
		{"error", log.Error},
		{"debug", log.Debug},
	}
	for _, level := range levels {
		sink := level.emit
		console.SetMethod(level.name, func(this Value, args []Value) Value {
			parts := make([]string, len(args))
			for i, a := range args {
				parts[i] = a.String()
			}
			sink(strings.Join(parts, " "))
			return Undefined()
		})
	}
	return console
}

// SetupConsole is a pool setup function installing a console global.
func SetupConsole(log *zap.Logger) SetupFunc {
	return func(e *Engine) error {
		return e.RegisterObject("console", NewConsole(log))
	}
}
