package notify

import (
	"strings"
	"time"

	"location-logger/internal/models"
)

// EventWindow is how long repeated events of the same kind stay suppressed.
const EventWindow = 3 * time.Minute

// Debouncer suppresses redundant start/stop events inside a fixed time
// window so a flapping sensor cannot spam the notification channel. The two
// timers are independent per event kind, except that a passed event resets
// the opposite timer. State is process-held only; a restart may legitimately
// re-notify an event inside the window.
type Debouncer struct {
	window    time.Duration
	lastStart int64 // ms
	lastStop  int64 // ms
}

// NewDebouncer creates a debouncer with the standard window.
func NewDebouncer() *Debouncer {
	return &Debouncer{window: EventWindow}
}

// TooFast reports whether the sample's event should be suppressed. Time is
// taken from the sample itself, which keeps the decision deterministic.
// Informational pushes (non-empty extra info) always pass.
func (d *Debouncer) TooFast(loc *models.Location) bool {
	if loc.ExtraInfo != "" {
		return false
	}
	if loc.Event == "" {
		return false
	}

	window := d.window.Milliseconds()

	if strings.Contains(loc.Event, models.EventStart) {
		if loc.Timestamp-d.lastStart < window {
			return true
		}
		d.lastStop = 0
		d.lastStart = loc.Timestamp
	} else if strings.Contains(loc.Event, models.EventStop) {
		if loc.Timestamp-d.lastStop < window {
			return true
		}
		d.lastStart = 0
		d.lastStop = loc.Timestamp
	}

	return false
}
