// internal/logger/logger.go
package logger

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/samber/oops"
)

// Init configures the global logger. format "console" gives human-readable output, anything else JSON.
func Init(level, format string) {
	Setup(os.Stderr, level, format)
}

// Setup is Init with an explicit destination.
func Setup(out io.Writer, level, format string) {
	var w io.Writer = out
	if strings.EqualFold(format, "console") {
		// Use ConsoleWriter for human-readable, colorized output in development
		w = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	}

	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)

	// Add a hook to include the caller's file and line number
	log.Logger = zerolog.New(w).With().Timestamp().Caller().Logger()
}

// Error starts an error event for err, adding the oops code and context when present.
func Error(err error) *zerolog.Event {
	event := log.Error().Err(err)
	if oopsErr, ok := oops.AsOops(err); ok {
		if code := fmt.Sprint(oopsErr.Code()); code != "" && code != "<nil>" {
			event = event.Str("code", code)
		}
		if ctx := oopsErr.Context(); len(ctx) > 0 {
			event = event.Interface("context", ctx)
		}
	}
	return event
}
