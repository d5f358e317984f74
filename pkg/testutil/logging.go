package testutil

import (
	"io"
	"os"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
)

// Importing testutil turns on trace logging, written out only when tests run
// verbosely.
func init() {
	logrus.SetLevel(logrus.TraceLevel)

	for _, arg := range os.Args {
		if arg == "-test.v=true" || arg == "-test.v" {
			return
		}
	}
	logrus.SetOutput(io.Discard)
}

// CaptureLogs records every entry written to the standard logger for the
// rest of the test.
func CaptureLogs(t *testing.T) *test.Hook {
	logger := logrus.StandardLogger()

	hook := test.NewLocal(logger)
	t.Cleanup(func() {
		logger.ReplaceHooks(make(logrus.LevelHooks))
	})
	return hook
}
