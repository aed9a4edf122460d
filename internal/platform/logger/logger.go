// Package logger constructs the process-wide structured logger.
package logger

import (
	"log/slog"
	"os"
)

// New returns a slog logger writing to stdout. JSON output is used in
// deployments where logs are shipped; text is friendlier locally.
func New(json bool) *slog.Logger {
	var handler slog.Handler
	if json {
		handler = slog.NewJSONHandler(os.Stdout, nil)
	} else {
		handler = slog.NewTextHandler(os.Stdout, nil)
	}
	return slog.New(handler)
}
