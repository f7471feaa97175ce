package logger

import (
	"os"

	"github.com/sirupsen/logrus"
)

var log = logrus.New()

// Setup configures the process logger. Unknown levels fall back to info.
func Setup(level, format string) {
	log.SetOutput(os.Stdout)

	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		lvl = logrus.InfoLevel
	}
	log.SetLevel(lvl)

	if format == "json" {
		log.SetFormatter(&logrus.JSONFormatter{})
	} else {
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
}

// Get returns the shared logger.
func Get() *logrus.Logger {
	return log
}
