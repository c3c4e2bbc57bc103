package logger

import (
	"os"

	"github.com/sirupsen/logrus"
)

const serviceName = "devconnector"

// global accessible logger
var (
	logger *logrus.Logger
	Log    *logrus.Entry
)

// Tests and packages used outside main still get a usable logger.
func init() {
	Init("dev", false)
}

// Init configures the process logger. Release mode switches to JSON output.
func Init(env string, release bool) {
	logger = logrus.New()
	logger.SetOutput(os.Stderr)

	if release {
		logger.SetFormatter(&logrus.JSONFormatter{})
		logger.SetLevel(logrus.InfoLevel)
	} else {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
		logger.SetLevel(logrus.DebugLevel)
	}

	if lvl, err := logrus.ParseLevel(os.Getenv("LOG_LEVEL")); err == nil {
		logger.SetLevel(lvl)
	}

	Log = logger.WithFields(logrus.Fields{"service": serviceName, "env": env})
}
