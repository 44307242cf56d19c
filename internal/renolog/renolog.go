// Package renolog configures the single logrus logger shared by the CLI
// process and the re-exec'd child, the same way runc wires up logrus from
// its global --log/--log-format/--debug flags.
package renolog

import (
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

// Setup points the standard logger at path (or stderr if path is empty),
// selects the "text" or "json" formatter, and raises the level to Debug
// when debug is set.
func Setup(path, format string, debug bool) error {
	var out io.Writer = os.Stderr
	if path != "" {
		f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return err
		}
		out = f
	}
	logrus.SetOutput(out)

	if format == "json" {
		logrus.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logrus.SetFormatter(&logrus.TextFormatter{})
	}

	if debug {
		logrus.SetLevel(logrus.DebugLevel)
	}
	return nil
}
