package logging

import (
	"fmt"
	"github.com/sirupsen/logrus"
	"os"
	"strings"
	"sync"
)

var (
	logger *logrus.Logger
	mu     sync.Mutex
)

// InitLogger configures the shared logger. It may be called again to change the level or format.
func InitLogger(level logrus.Level, format string) *logrus.Logger {
	mu.Lock()
	defer mu.Unlock()
	if logger == nil {
		logger = logrus.New()
		logger.SetOutput(os.Stdout)
	}
	logger.SetLevel(level)
	switch strings.ToLower(format) {
	case "json":
		logger.SetFormatter(&logrus.JSONFormatter{})
	default:
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	return logger
}

// GetLogger returns the shared logger, creating it at info level if InitLogger was never called.
func GetLogger() *logrus.Logger {
	mu.Lock()
	l := logger
	mu.Unlock()
	if l == nil {
		return InitLogger(logrus.InfoLevel, "text")
	}
	return l
}

// ParseLevel maps a config string onto a logrus level.
func ParseLevel(level string, debug bool) (logrus.Level, error) {
	if debug {
		return logrus.DebugLevel, nil
	}
	if level == "" {
		return logrus.InfoLevel, nil
	}
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return logrus.InfoLevel, fmt.Errorf("invalid log level %q: %w", level, err)
	}
	return lvl, nil
}
