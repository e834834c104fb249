// Package logging builds the process logger and bridges the endpoint's
// event narration into it.
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/webmondiag/webmondiag/internal/config"
	"github.com/webmondiag/webmondiag/internal/diag"
	"github.com/webmondiag/webmondiag/pkg/types"
)

// New creates a logger from cfg writing to out, or to cfg.File when set.
// The returned closer releases the log file, if any.
func New(cfg config.LoggingConfig, out io.Writer) (*logrus.Logger, io.Closer, error) {
	logger := logrus.New()
	logger.Out = out

	level, err := logrus.ParseLevel(strings.ToLower(cfg.Level))
	if err != nil {
		return nil, nil, fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
	}
	logger.SetLevel(level)

	switch strings.ToLower(cfg.Format) {
	case "", "text":
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	case "json":
		logger.SetFormatter(&logrus.JSONFormatter{})
	default:
		return nil, nil, fmt.Errorf("invalid log format %q", cfg.Format)
	}

	var closer io.Closer = nopCloser{}
	if cfg.File != "" {
		if err := config.EnsureDir(cfg.File); err != nil {
			return nil, nil, fmt.Errorf("create log directory: %w", err)
		}
		f, err := os.OpenFile(cfg.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return nil, nil, fmt.Errorf("open log file: %w", err)
		}
		logger.Out = f
		closer = f
	}
	return logger, closer, nil
}

// Discard returns a logger that drops everything.
func Discard() *logrus.Logger {
	logger := logrus.New()
	logger.Out = io.Discard
	return logger
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// EventLog forwards narrated endpoint events to a logrus logger. Errors are
// logged at error level, everything else at info.
func EventLog(l logrus.FieldLogger) diag.EventLog {
	return diag.EventLogFunc(func(level types.EventLevel, text string) {
		entry := l.WithField("event", string(level))
		if level == types.EventLevelError {
			entry.Error(text)
			return
		}
		entry.Info(text)
	})
}
