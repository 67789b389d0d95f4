// Package logging builds the logrus logger shared by every node-janitor
// component.
//
// The text format prints a full timestamp before the level and message so
// that container logs read like the janitor's historical output:
//
//	time="2026-03-01 10:00:00.000" level=info msg="disk usage of /docker: ~42% [threshold: 70%]"
package logging

import (
	"fmt"
	"io"
	"strings"

	"github.com/sirupsen/logrus"
)

// TimestampFormat is the timestamp layout used by both formatters.
const TimestampFormat = "2006-01-02 15:04:05.000"

// New creates a logger writing to out at the given level and format.
// level is one of debug, info, warn, error; format is text or json.
func New(out io.Writer, level, format string) (*logrus.Logger, error) {
	lvl, err := logrus.ParseLevel(strings.ToLower(level))
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}

	logger := logrus.New()
	logger.SetOutput(out)
	logger.SetLevel(lvl)

	switch strings.ToLower(format) {
	case "", "text":
		logger.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: TimestampFormat,
			DisableColors:   true,
		})
	case "json":
		logger.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: TimestampFormat,
		})
	default:
		return nil, fmt.Errorf("invalid log format %q (valid: text, json)", format)
	}

	return logger, nil
}

// Discard returns a logger that drops everything. Useful as a default
// when a component is constructed without a logger.
func Discard() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}
