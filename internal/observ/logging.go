// Package observ is the structured-logging and metrics surface every stage
// of the pipeline reports through. Logging is zerolog (grounded on
// dummybox's logger package), metrics are a real Prometheus registry
// (grounded on dummybox's metrics package), scraped over /metrics.
package observ

import (
	"os"
	"time"

	"github.com/rs/zerolog"
)

var base = newBaseLogger()

func newBaseLogger() zerolog.Logger {
	zerolog.TimeFieldFormat = time.RFC3339Nano
	return zerolog.New(os.Stdout).With().Timestamp().Logger()
}

// Log writes one structured event line: the event name plus the supplied
// key/value pairs. Every pipeline stage uses this instead of a bespoke log
// format, so a cycle's decision codes can be grepped as a flat event stream.
func Log(event string, kv map[string]any) {
	e := base.Info()
	for k, v := range kv {
		e = e.Interface(k, v)
	}
	e.Msg(event)
}
