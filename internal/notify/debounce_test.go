package notify

import (
	"testing"
	"time"

	"location-logger/internal/models"
)

func sample(ts int64, event string) *models.Location {
	return &models.Location{Timestamp: ts, Event: event}
}

func TestDebounceSuppressesRepeatedStart(t *testing.T) {
	d := NewDebouncer()
	base := time.Now().UnixMilli()

	if d.TooFast(sample(base, models.EventStart)) {
		t.Error("first start should pass")
	}
	if !d.TooFast(sample(base+60_000, models.EventStart)) {
		t.Error("second start inside the window should be suppressed")
	}
	if d.TooFast(sample(base+EventWindow.Milliseconds(), models.EventStart)) {
		t.Error("start at the window boundary should pass")
	}
}

func TestDebounceTimersAreIndependent(t *testing.T) {
	d := NewDebouncer()
	base := time.Now().UnixMilli()

	if d.TooFast(sample(base, models.EventStart)) {
		t.Error("first start should pass")
	}
	// A stop right after a start is a distinct event kind
	if d.TooFast(sample(base+1000, models.EventStop)) {
		t.Error("stop after a passed start should pass")
	}
	if !d.TooFast(sample(base+2000, models.EventStop)) {
		t.Error("repeated stop inside the window should be suppressed")
	}
	// The passed stop reset the start timer (mutual reset rule)
	if d.TooFast(sample(base+3000, models.EventStart)) {
		t.Error("start after a passed stop should pass again")
	}
}

func TestDebounceRestartMatchesStartTimer(t *testing.T) {
	d := NewDebouncer()
	base := time.Now().UnixMilli()

	if d.TooFast(sample(base, models.EventStart)) {
		t.Error("start should pass")
	}
	if !d.TooFast(sample(base+1000, models.EventRestart)) {
		t.Error("restart inside the start window should be suppressed")
	}
}

func TestDebounceExtraInfoAlwaysPasses(t *testing.T) {
	d := NewDebouncer()
	base := time.Now().UnixMilli()

	d.TooFast(sample(base, models.EventStart))

	loc := sample(base+1000, models.EventStart)
	loc.ExtraInfo = "manual update"
	if d.TooFast(loc) {
		t.Error("sample with extra info must never be suppressed")
	}
}

func TestDebounceEmptyEventPasses(t *testing.T) {
	d := NewDebouncer()
	if d.TooFast(sample(time.Now().UnixMilli(), "")) {
		t.Error("empty event has nothing to debounce")
	}
}
