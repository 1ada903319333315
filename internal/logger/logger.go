package logger

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
)

var (
	mu  sync.Mutex
	log = newLogger(os.Stdout)
)

func newLogger(w io.Writer) zerolog.Logger {
	out := zerolog.ConsoleWriter{Out: w, TimeFormat: "15:04:05", NoColor: !isTerminal(w)}
	return zerolog.New(out).With().Timestamp().Logger()
}

// isTerminal reports whether w is a file attached to a terminal.
func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

func tagged(tag, msg string) string {
	if tag == "" {
		return msg
	}
	return "[" + tag + "] " + msg
}

// SetOutput redirects all log output (tests use this to keep stdout clean).
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	log = newLogger(w).Level(log.GetLevel())
}

// SetLevel sets the minimum level by name ("debug", "info", "warn", "error").
// Unknown names leave the level unchanged.
func SetLevel(name string) {
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(name)))
	if err != nil || name == "" {
		return
	}
	mu.Lock()
	defer mu.Unlock()
	log = log.Level(lvl)
}

func current() zerolog.Logger {
	mu.Lock()
	defer mu.Unlock()
	return log
}

// Debug logs a verbose diagnostic line.
func Debug(tag, msg string) {
	l := current()
	l.Debug().Msg(tagged(tag, msg))
}

// Info logs an informational line.
func Info(tag, msg string) {
	l := current()
	l.Info().Msg(tagged(tag, msg))
}

// Success logs a completed step.
func Success(tag, msg string) {
	l := current()
	l.Info().Msg(tagged(tag, "✓ "+msg))
}

// Warn logs a recoverable problem.
func Warn(tag, msg string) {
	l := current()
	l.Warn().Msg(tagged(tag, msg))
}

// Error logs a failure.
func Error(tag, msg string) {
	l := current()
	l.Error().Msg(tagged(tag, msg))
}

// Section prints a section header.
func Section(title string) {
	l := current()
	l.Info().Msg("── " + title + " ──")
}

// Stats prints a single key/value statistic line.
func Stats(key string, value interface{}) {
	l := current()
	l.Info().Msg(fmt.Sprintf("   %-20s %v", key, value))
}

// Timed logs how long a step took.
func Timed(tag, step string, started time.Time) {
	l := current()
	l.Debug().Msg(tagged(tag, fmt.Sprintf("%s took %s", step, time.Since(started).Round(time.Millisecond))))
}

// Banner prints the startup banner.
func Banner(version string) {
	if version == "" {
		version = "dev"
	}
	l := current()
	l.Info().Msg("eve-marketscan " + version)
}
