// Package log provides loggers for graph commands.
package log

import (
	"os"
	"strconv"

	"github.com/sirupsen/logrus"
)

// DebugEnv enables debug level for every logger when set to true.
const DebugEnv = "GRAPH_DEBUG"

var debug bool

func init() {
	var err error
	debug, err = strconv.ParseBool(os.Getenv(DebugEnv))
	if err != nil {
		debug = false
	}
}

// New returns a new text logger writing to stderr with provided level.
// Debug environment overrides the level.
func New(level logrus.Level) *logrus.Logger {
	l := logrus.New()
	l.SetOutput(os.Stderr)
	l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	l.SetLevel(level)
	if debug {
		l.SetLevel(logrus.DebugLevel)
	}
	return l
}
