package logging

import (
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

// New returns a logger writing JSON in prod and text elsewhere. An unknown
// level falls back to info and is reported once through the logger itself.
func New(env, level string) *logrus.Logger {
	return newWithOutput(os.Stdout, env, level)
}

func newWithOutput(out io.Writer, env, level string) *logrus.Logger {
	log := logrus.New()
	log.SetOutput(out)

	if env == "prod" {
		log.SetFormatter(&logrus.JSONFormatter{})
	} else {
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}

	if level == "" {
		level = "info"
	}
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		lvl = logrus.InfoLevel
		defer log.WithField("level", level).Warn("unknown log level, using info")
	}
	log.SetLevel(lvl)

	return log
}
