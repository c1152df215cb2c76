package logging

import (
	"os"
	"time"

	"github.com/sirupsen/logrus"
)

// New returns a JSON logger on stdout tagged with the service name. An
// unparsable level falls back to info.
func New(service, level string) *logrus.Entry {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{
		TimestampFormat: time.RFC3339,
	})
	logger.SetOutput(os.Stdout)

	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		lvl = logrus.InfoLevel
	}
	logger.SetLevel(lvl)

	return logger.WithField("service", service)
}
