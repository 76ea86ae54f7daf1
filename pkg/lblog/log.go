// Package lblog provides lbcore's structured logger.
//
// lbcore is instantiated once per process against a writeable path (see
// the root Config); Init wires a zerolog logger that writes to stderr (or to
// Config.Output when set), as a colored console stream or as JSON, matching
// the Config.Logs / Config.ColoredLogs switches. It does not write a log
// file under the writeable path.
package lblog

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Logger is the process-wide logger. Init must run before any subsystem
// logs; until then Logger discards everything.
var Logger = zerolog.New(io.Discard)

// Config controls how Init configures the global logger.
type Config struct {
	// Enabled turns logging on at all. Mirrors the root Config's Logs field.
	Enabled bool
	// Colored selects a human-readable colored console writer over JSON.
	Colored bool
	// Output overrides the destination; defaults to os.Stderr.
	Output io.Writer
}

// Init (re)configures the global logger. Safe to call multiple times; the
// last call wins.
func Init(cfg Config) {
	if !cfg.Enabled {
		Logger = zerolog.New(io.Discard)
		return
	}

	output := cfg.Output
	if output == nil {
		output = os.Stderr
	}

	if cfg.Colored {
		Logger = zerolog.New(zerolog.ConsoleWriter{
			Out:        output,
			TimeFormat: time.RFC3339,
		}).With().Timestamp().Logger()
	} else {
		Logger = zerolog.New(output).With().Timestamp().Logger()
	}
}

// WithComponent returns a child logger tagged with the owning subsystem,
// e.g. lblog.WithComponent("sync").
func WithComponent(component string) zerolog.Logger {
	return Logger.With().Str("component", component).Logger()
}

// WithFile returns a child logger tagged with a file id, for tree and sync
// code that logs per-file outcomes (e.g. a skipped corrupt file).
func WithFile(id string) zerolog.Logger {
	return Logger.With().Str("file_id", id).Logger()
}
