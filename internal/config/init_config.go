// Package config loads application settings and sets up logging.
package config

import (
	"io"
	"log"
	"os"

	"github.com/sirupsen/logrus"
)

// InitLogging configures the standard logrus logger and routes the standard
// library logger through it. When a log file is configured, entries go to both
// stderr and the file; the returned closer releases the file.
func InitLogging(cfg LogConfig) (io.Closer, error) {
	logger := logrus.StandardLogger()

	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}
	logger.SetLevel(level)

	if cfg.Format == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}

	var closer io.Closer = nopCloser{}
	out := io.Writer(os.Stderr)
	if cfg.File != "" {
		f, err := os.OpenFile(cfg.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o666)
		if err != nil {
			return nil, err
		}
		out = io.MultiWriter(os.Stderr, f)
		closer = f
	}
	logger.SetOutput(out)

	log.SetFlags(0)
	log.SetOutput(logger.WriterLevel(logrus.InfoLevel))
	return closer, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
