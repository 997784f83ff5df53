package logging

import (
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

// LogrusAdapter is the Logger used by the pocketbank binary. Every derived
// logger shares the underlying logrus.Logger, so level and output are set
// once when the session starts.
type LogrusAdapter struct {
	logger *logrus.Logger
	entry  *logrus.Entry
}

// NewLogrusAdapter creates a Logger writing to stderr, which keeps stdout
// free for command output such as CSV exports.
//
// level is a logrus level name ("debug", "info", "warn", "error"); format
// is "json" or "text".
func NewLogrusAdapter(level, format string) Logger {
	return NewLogrusAdapterTo(os.Stderr, level, format)
}

// NewLogrusAdapterTo is NewLogrusAdapter with an explicit destination. The
// commands pass cobra's error stream here so tests can capture it.
func NewLogrusAdapterTo(out io.Writer, level, format string) Logger {
	logger := logrus.New()
	logger.SetOutput(out)

	switch format {
	case "json":
		logger.SetFormatter(&logrus.JSONFormatter{})
	default:
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}

	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		// config validation rejects bad levels; this covers callers that skip it
		logger.WithField("level", level).Warn("unknown log level, using info")
		lvl = logrus.InfoLevel
	}
	logger.SetLevel(lvl)

	return &LogrusAdapter{logger: logger, entry: logrus.NewEntry(logger)}
}

func (l *LogrusAdapter) with(entry *logrus.Entry) Logger {
	return &LogrusAdapter{logger: l.logger, entry: entry}
}

// Debug logs store internals: commits, loads, session lifecycle.
func (l *LogrusAdapter) Debug(msg string, fields ...Field) {
	l.entry.WithFields(convertFields(fields)).Debug(msg)
}

// Info logs user-visible progress such as migrations and imports.
func (l *LogrusAdapter) Info(msg string, fields ...Field) {
	l.entry.WithFields(convertFields(fields)).Info(msg)
}

func (l *LogrusAdapter) Warn(msg string, fields ...Field) {
	l.entry.WithFields(convertFields(fields)).Warn(msg)
}

func (l *LogrusAdapter) Error(msg string, fields ...Field) {
	l.entry.WithFields(convertFields(fields)).Error(msg)
}

// WithError returns a logger that attaches err to every entry.
func (l *LogrusAdapter) WithError(err error) Logger { return l.with(l.entry.WithError(err)) }

// WithField returns a logger that attaches key=value to every entry.
func (l *LogrusAdapter) WithField(key string, value any) Logger {
	return l.with(l.entry.WithField(key, value))
}

// WithFields is WithField for several fields at once.
func (l *LogrusAdapter) WithFields(fields ...Field) Logger {
	return l.with(l.entry.WithFields(convertFields(fields)))
}

func convertFields(fields []Field) logrus.Fields {
	out := make(logrus.Fields, len(fields))
	for _, f := range fields {
		out[f.Key] = f.Value
	}
	return out
}
