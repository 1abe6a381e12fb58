// Package log provides the process-wide structured logger.
//
// The agent and broker run as long-lived daemons coordinating over shared
// storage; every log line needs enough structure (host id, service type,
// component) to correlate events across peers after the fact, so this
// wraps zerolog rather than writing straight to stderr.
package log

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Logger is the global logger instance. Init must be called once before use;
// until then it is a disabled no-op logger so packages can log at import
// time (e.g. in init funcs) without panicking.
var Logger zerolog.Logger = zerolog.Nop()

// Level is a logging verbosity level.
type Level string

const (
	DebugLevel Level = "debug"
	InfoLevel  Level = "info"
	WarnLevel  Level = "warn"
	ErrorLevel Level = "error"
)

// Config configures the global logger.
type Config struct {
	Level      Level
	JSONOutput bool
	Output     io.Writer
}

// Init initializes the global logger from cfg.
func Init(cfg Config) {
	var level zerolog.Level

	switch cfg.Level {
	case DebugLevel:
		level = zerolog.DebugLevel
	case InfoLevel:
		level = zerolog.InfoLevel
	case WarnLevel:
		level = zerolog.WarnLevel
	case ErrorLevel:
		level = zerolog.ErrorLevel
	default:
		level = zerolog.InfoLevel
	}

	zerolog.SetGlobalLevel(level)

	output := cfg.Output
	if output == nil {
		output = os.Stderr
	}

	if cfg.JSONOutput {
		Logger = zerolog.New(output).With().Timestamp().Logger()
		return
	}

	Logger = zerolog.New(zerolog.ConsoleWriter{
		Out:        output,
		TimeFormat: time.RFC3339,
	}).With().Timestamp().Logger()
}

// WithComponent returns a child logger tagged with the owning component
// (e.g. "broker", "lockspace", "backend.block").
func WithComponent(component string) zerolog.Logger {
	return Logger.With().Str("component", component).Logger()
}

// WithHostID returns a child logger tagged with a host id.
func WithHostID(hostID int) zerolog.Logger {
	return Logger.With().Int("host_id", hostID).Logger()
}

// WithServiceType returns a child logger tagged with a service name.
func WithServiceType(serviceType string) zerolog.Logger {
	return Logger.With().Str("service_type", serviceType).Logger()
}
