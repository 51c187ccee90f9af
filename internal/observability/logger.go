package observability

import (
	"log/slog"
	"os"
)

// NewLogger returns the application logger. JSON output so log lines stay
// machine-parseable when shipped off the device.
func NewLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stdout, nil))
}
