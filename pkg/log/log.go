package log

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Logger is the root logger. It defaults to console output at info
// level so packages constructed before Init still log sanely; Init
// replaces it with the configured logger.
var Logger = newLogger(Config{})

// Config selects output format and verbosity for the daemon's logs.
type Config struct {
	// Verbose drops the level from info to debug.
	Verbose bool

	// JSON emits raw JSON lines instead of the human console format.
	JSON bool

	// Output defaults to stdout. The --logfile flag hands a file in
	// here.
	Output io.Writer
}

// Init replaces the root logger. Call once at startup, before any
// component derives a child logger.
func Init(cfg Config) {
	Logger = newLogger(cfg)
}

func newLogger(cfg Config) zerolog.Logger {
	out := cfg.Output
	if out == nil {
		out = os.Stdout
	}
	if !cfg.JSON {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	}

	level := zerolog.InfoLevel
	if cfg.Verbose {
		level = zerolog.DebugLevel
	}

	return zerolog.New(out).Level(level).With().Timestamp().Logger()
}

// For returns a child logger tagged with the component that owns it
// (engine, client, stream, ...).
func For(component string) zerolog.Logger {
	return Logger.With().Str("component", component).Logger()
}

// With returns a child logger carrying one extra context field, for
// the domain vocabulary that recurs across components: the gerrit
// source name, an action name, an event id.
func With(field, value string) zerolog.Logger {
	return Logger.With().Str(field, value).Logger()
}
