package logging

import (
	"fmt"
	"os"

	log "github.com/sirupsen/logrus"
)

// Setup configures the package-level logrus logger. Production gets JSON,
// everything else a human readable text format.
func Setup(level string, production bool) error {
	parsed, err := log.ParseLevel(level)
	if err != nil {
		return fmt.Errorf("invalid log level %q: %w", level, err)
	}

	log.SetOutput(os.Stdout)
	log.SetLevel(parsed)

	if production {
		log.SetFormatter(&log.JSONFormatter{
			TimestampFormat: "2006-01-02T15:04:05.000Z07:00",
		})
	} else {
		log.SetFormatter(&log.TextFormatter{
			FullTimestamp: true,
		})
	}

	return nil
}
