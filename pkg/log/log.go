package log

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Logger is the process-wide logger. Init replaces it.
var Logger = New(Config{})

// Level is a configured verbosity
type Level string

const (
	DebugLevel Level = "debug"
	InfoLevel  Level = "info"
	WarnLevel  Level = "warn"
	ErrorLevel Level = "error"
)

var zerologLevels = map[Level]zerolog.Level{
	DebugLevel: zerolog.DebugLevel,
	InfoLevel:  zerolog.InfoLevel,
	WarnLevel:  zerolog.WarnLevel,
	ErrorLevel: zerolog.ErrorLevel,
}

// ParseLevel converts a configuration string into a Level, defaulting to info
func ParseLevel(s string) Level {
	level := Level(strings.ToLower(strings.TrimSpace(s)))
	if level == "warning" {
		return WarnLevel
	}
	if _, ok := zerologLevels[level]; ok {
		return level
	}
	return InfoLevel
}

// Config controls the logger built by New and Init
type Config struct {
	Level      Level
	JSONOutput bool
	// Output defaults to stdout
	Output io.Writer
}

// New builds a logger without touching global state
func New(cfg Config) zerolog.Logger {
	out := cfg.Output
	if out == nil {
		out = os.Stdout
	}
	if !cfg.JSONOutput {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	}

	level, ok := zerologLevels[cfg.Level]
	if !ok {
		level = zerolog.InfoLevel
	}
	return zerolog.New(out).Level(level).With().Timestamp().Logger()
}

// Init replaces the global logger and sets the global level
func Init(cfg Config) {
	Logger = New(cfg)
	zerolog.SetGlobalLevel(Logger.GetLevel())
}

// WithComponent creates a child logger with component field
func WithComponent(component string) zerolog.Logger {
	return Logger.With().Str("component", component).Logger()
}

// WithNode creates a child logger with node field
func WithNode(node string) zerolog.Logger {
	return Logger.With().Str("node", node).Logger()
}

// WithArtifact creates a child logger with artifact_id field
func WithArtifact(id uint64) zerolog.Logger {
	return Logger.With().Uint64("artifact_id", id).Logger()
}

// WithTaskID creates a child logger with task_id field
func WithTaskID(taskID string) zerolog.Logger {
	return Logger.With().Str("task_id", taskID).Logger()
}

// Printer adapts a component logger to client libraries that only know
// Printf. Their chatter is logged at debug level.
type Printer struct {
	logger zerolog.Logger
}

// NewPrinter returns a Printer tagged with component
func NewPrinter(component string) Printer {
	return Printer{logger: WithComponent(component)}
}

// Printf implements the Printf-style logger interface
func (p Printer) Printf(format string, args ...interface{}) {
	p.logger.Debug().Msgf(strings.TrimSuffix(format, "\n"), args...)
}
