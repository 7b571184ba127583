// Package logging configures the process-wide zerolog logger and hands out
// per-component child loggers.
package logging

import (
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// LogLevel represents the logging level.
type LogLevel string

const (
	LevelDebug LogLevel = "debug"
	LevelInfo  LogLevel = "info"
	LevelWarn  LogLevel = "warn"
	LevelError LogLevel = "error"
)

// Component names attached to every child logger.
const (
	ComponentMain         = "main"
	ComponentServer       = "server"
	ComponentWorker       = "worker"
	ComponentRegistration = "registration"
	ComponentStrategy     = "strategy"
	ComponentRevalidator  = "revalidator"
	ComponentBucket       = "bucket"
)

// Config holds logger configuration.
type Config struct {
	// Level is the minimum level written. Unknown values mean info.
	Level LogLevel

	// Pretty switches from JSON lines to zerolog's console writer.
	Pretty bool

	// Output defaults to os.Stderr when nil.
	Output io.Writer
}

// DefaultConfig returns JSON output at info level on stderr.
func DefaultConfig() Config {
	return Config{
		Level:  LevelInfo,
		Output: os.Stderr,
	}
}

// Setup configures the global zerolog logger and returns it.
func Setup(cfg Config) zerolog.Logger {
	zerolog.SetGlobalLevel(ParseLevel(cfg.Level))

	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}
	if cfg.Pretty {
		out = zerolog.ConsoleWriter{Out: out}
	}

	logger := zerolog.New(out).With().Timestamp().Logger()
	log.Logger = logger
	return logger
}

// ParseLevel converts a level name to a zerolog.Level.
func ParseLevel(level LogLevel) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(string(level))) {
	case "debug":
		return zerolog.DebugLevel
	case "info", "":
		return zerolog.InfoLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// NewLogger returns a child of the global logger tagged with component.
func NewLogger(component string) zerolog.Logger {
	return log.With().Str("component", component).Logger()
}

// Levels used across the proxy:
//
// Debug: per-request strategy decisions, cache hits and misses, store
// writes, background revalidations that succeed.
//
// Info: startup and shutdown, worker install and activation, store
// pruning, version updates, control commands.
//
// Warn: precache retries, failed background revalidations, cache reads
// that fall back to the network, unreadable version files.
//
// Error: failed installs, requests that can be answered neither from the
// network nor from any store, storage outages.
//
// Common fields: url, store, strategy, version, worker_id, status_code,
// error_class, duration, cache (hit, miss or bypass).
