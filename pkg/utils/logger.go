// Package utils provides the shared structured logger.
package utils

import (
	"os"

	"github.com/sirupsen/logrus"
)

// Logger is the process-wide logger, used by components that are not
// handed an injected one.
var Logger *logrus.Logger

func init() {
	Logger = NewLogger("info", "stdout")
}

// NewLogger builds a JSON-formatted logger at the given level, writing
// to stdout or to the named file. A file that cannot be opened falls
// back to stdout with a warning rather than failing startup.
func NewLogger(level, output string) *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(parseLevel(level))

	if output == "stdout" {
		logger.SetOutput(os.Stdout)
	} else {
		file, err := os.OpenFile(output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
		if err == nil {
			logger.SetOutput(file)
		} else {
			logger.SetOutput(os.Stdout)
			logger.WithError(err).Warnf("failed to open log file %s, using stdout", output)
		}
	}

	logger.SetFormatter(&logrus.JSONFormatter{
		TimestampFormat: "2006-01-02T15:04:05.000Z07:00",
	})

	return logger
}

func parseLevel(level string) logrus.Level {
	switch level {
	case "debug":
		return logrus.DebugLevel
	case "info":
		return logrus.InfoLevel
	case "warn":
		return logrus.WarnLevel
	case "error":
		return logrus.ErrorLevel
	default:
		return logrus.InfoLevel
	}
}

// SetLogLevel changes the global logger's level at runtime.
func SetLogLevel(level string) {
	Logger.SetLevel(parseLevel(level))
}
