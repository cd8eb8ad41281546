package cmd

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
)

// newLogger creates a logger at the level chosen by setLevel.
func newLogger(verbose bool) *logrus.Logger {
	log := logrus.New()
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	setLevel(log, verbose)

	return log
}

// setLevel applies DebugLevel when verbose is set, else LOG_LEVEL, else
// InfoLevel.
func setLevel(log *logrus.Logger, verbose bool) {
	if verbose {
		log.SetLevel(logrus.DebugLevel)
		return
	}

	logLevel := os.Getenv("LOG_LEVEL")
	if logLevel == "" {
		log.SetLevel(logrus.InfoLevel)
		return
	}

	level, err := logrus.ParseLevel(logLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid LOG_LEVEL '%s', defaulting to 'info'\n", logLevel)

		level = logrus.InfoLevel
	}

	log.SetLevel(level)
}
