package main

import (
	"fmt"
	"io"
	"os"

	"github.com/sambeau/vivarium/config"
)

var logLevels = map[string]int{"debug": 0, "info": 1, "warn": 2, "error": 3}

// logger writes CLI diagnostics. Program output never goes through it.
type logger struct {
	out   io.Writer
	level int
}

// newLogger builds a logger from the logging config. The returned close
// function releases a log file when one was opened.
func newLogger(cfg config.LoggingConfig, stdout, stderr io.Writer) (*logger, func() error, error) {
	level, ok := logLevels[cfg.Level]
	if !ok {
		level = logLevels["info"]
	}
	if cfg.Quiet && level < logLevels["warn"] {
		level = logLevels["warn"]
	}

	l := &logger{out: stderr, level: level}
	noop := func() error { return nil }

	switch cfg.Output {
	case "", "stderr":
	case "stdout":
		l.out = stdout
	default:
		f, err := os.OpenFile(cfg.Output, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
		if err != nil {
			return nil, nil, fmt.Errorf("opening log file: %w", err)
		}
		l.out = f
		return l, f.Close, nil
	}
	return l, noop, nil
}

func (l *logger) logDebug(format string, args ...interface{}) {
	l.log(logLevels["debug"], "[DEBUG] ", format, args...)
}

// logInfo logs an informational message
func (l *logger) logInfo(format string, args ...interface{}) {
	l.log(logLevels["info"], "[INFO] ", format, args...)
}

// logWarn logs a warning message
func (l *logger) logWarn(format string, args ...interface{}) {
	l.log(logLevels["warn"], "[WARN] ", format, args...)
}

// logError logs an error message
func (l *logger) logError(format string, args ...interface{}) {
	l.log(logLevels["error"], "[ERROR] ", format, args...)
}

func (l *logger) log(level int, prefix, format string, args ...interface{}) {
	if level < l.level {
		return
	}
	fmt.Fprintf(l.out, prefix+format+"\n", args...)
}
