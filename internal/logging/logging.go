// Package logging configures the process-wide structured logger. It wraps
// github.com/charmbracelet/log the same way the teacher's cmd/root.go does:
// one global logger, level and caller-reporting toggled by a debug flag,
// rather than a logger instance threaded through every call site.
package logging

import (
	"io"
	"os"

	"github.com/charmbracelet/log"
)

// Configure sets the global logger's level and caller reporting. Grounded on
// cmd/root.go's runMCPHost, which flips log.SetLevel/log.SetReportCaller on
// a debug bool read from a CLI flag before anything else runs.
func Configure(debug bool) {
	if debug {
		log.SetLevel(log.DebugLevel)
		log.SetReportCaller(true)
		return
	}
	log.SetLevel(log.InfoLevel)
	log.SetReportCaller(false)
}

// New returns a logger writing to out with the given debug level, for call
// sites that want a scoped logger (e.g. a test) instead of mutating the
// package-global default.
func New(out io.Writer, debug bool) *log.Logger {
	opts := log.Options{ReportTimestamp: true}
	if debug {
		opts.Level = log.DebugLevel
		opts.ReportCaller = true
	} else {
		opts.Level = log.InfoLevel
	}
	return log.NewWithOptions(out, opts)
}

// Default returns the package-global logger, matching the teacher's style of
// calling log.Info/log.Error/log.Debug directly against charmbracelet/log's
// package-level default logger.
func Default() *log.Logger {
	return log.Default()
}

// Discard is a logger that drops everything, useful for tests that exercise
// code paths which log as a side effect.
func Discard() *log.Logger {
	return log.NewWithOptions(io.Discard, log.Options{})
}

func init() {
	log.SetOutput(os.Stderr)
}
