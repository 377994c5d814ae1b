package cli

import (
	"io"
	"os"

	log "github.com/sirupsen/logrus"
)

// newLogger builds the logger shared by the gateway, controller and poller.
// Commands log warnings to stderr; --log-file redirects everything to a file.
func newLogger(app *App, stderr io.Writer) (*log.Logger, error) {
	l := log.New()
	l.SetFormatter(&log.TextFormatter{DisableColors: true, FullTimestamp: true})
	l.SetLevel(log.WarnLevel)
	if app.Debug {
		l.SetLevel(log.DebugLevel)
	}
	l.SetOutput(stderr)
	if app.LogFile != "" {
		f, err := os.OpenFile(app.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
		if err != nil {
			return nil, err
		}
		l.SetOutput(f)
		if !app.Debug {
			l.SetLevel(log.InfoLevel)
		}
	}
	return l, nil
}
