package notify

import (
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	"location-logger/internal/geocode"
	"location-logger/internal/models"
)

type fakeProbe struct {
	connected bool
	typeName  string
	calls     int
}

func (p *fakeProbe) IsConnected() (bool, string) {
	p.calls++
	return p.connected, p.typeName
}

type fakeMessenger struct {
	id    int64
	err   error
	calls int
	last  string
}

func (m *fakeMessenger) Send(dest, text string) (int64, error) {
	m.calls++
	m.last = text
	return m.id, m.err
}

type fakeTextSender struct {
	err   error
	calls int
	last  string
	num   string
}

func (s *fakeTextSender) Send(number, text string) error {
	s.calls++
	s.num = number
	s.last = text
	return s.err
}

type stubResolver struct {
	address string
	err     error
}

func (r *stubResolver) Resolve(lat, lon float64) (string, error) {
	return r.address, r.err
}

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(discardWriter{}, nil))
}

type discardWriter struct{}

func (discardWriter) Write(p []byte) (int, error) { return len(p), nil }

func newTestRelay(probe *fakeProbe, primary *fakeMessenger, fallback *fakeTextSender,
	resolver geocode.Resolver, number string) *Relay {
	log := discard()
	r := NewRelay(probe, primary, fallback, geocode.NewCache(resolver, log), "chat-1", number, log)
	r.waitDelay = 0
	r.sleep = func(time.Duration) {}
	return r
}

func eventSample(event string) *models.Location {
	return &models.Location{
		Timestamp:    time.Now().UnixMilli(),
		Latitude:     9.9281,
		Longitude:    -84.0907,
		Accuracy:     12.345,
		Provider:     "gps",
		BatteryLevel: 187,
		Event:        event,
	}
}

func TestNotifyNothingToSay(t *testing.T) {
	probe := &fakeProbe{connected: true, typeName: "wifi"}
	primary := &fakeMessenger{id: 1}
	fallback := &fakeTextSender{}
	r := newTestRelay(probe, primary, fallback, &stubResolver{}, "555")

	loc := eventSample("")
	if !r.Notify(loc) {
		t.Error("empty sample should report success")
	}
	if primary.calls != 0 || fallback.calls != 0 {
		t.Errorf("no transport should be invoked, got primary=%d fallback=%d",
			primary.calls, fallback.calls)
	}
}

func TestNotifySuppressedIsSuccess(t *testing.T) {
	probe := &fakeProbe{connected: true, typeName: "wifi"}
	primary := &fakeMessenger{id: 1}
	r := newTestRelay(probe, primary, &fakeTextSender{}, &stubResolver{}, "")

	if !r.Notify(eventSample(models.EventStart)) {
		t.Error("first start should deliver")
	}
	if !r.Notify(eventSample(models.EventStart)) {
		t.Error("suppressed start should still report success")
	}
	if primary.calls != 1 {
		t.Errorf("expected exactly one primary send, got %d", primary.calls)
	}
}

func TestNotifyFallbackOnPrimaryFailure(t *testing.T) {
	probe := &fakeProbe{connected: true, typeName: "wifi"}
	primary := &fakeMessenger{id: 0} // messageId 0 is a failure
	fallback := &fakeTextSender{}
	r := newTestRelay(probe, primary, fallback, &stubResolver{address: "Main St 1"}, "88887777")

	if !r.Notify(eventSample(models.EventStart)) {
		t.Error("fallback delivery should count as success")
	}
	if fallback.calls != 1 {
		t.Fatalf("expected exactly one fallback send, got %d", fallback.calls)
	}
	if fallback.num != "88887777" {
		t.Errorf("unexpected fallback number %q", fallback.num)
	}
	if strings.ContainsAny(fallback.last, "*_%") {
		t.Errorf("fallback message must have emphasis markers stripped: %q", fallback.last)
	}
}

func TestNotifyDroppedWithoutFallbackNumber(t *testing.T) {
	probe := &fakeProbe{connected: true, typeName: "wifi"}
	primary := &fakeMessenger{err: errors.New("timeout")}
	fallback := &fakeTextSender{}
	r := newTestRelay(probe, primary, fallback, &stubResolver{}, "")

	if r.Notify(eventSample(models.EventStop)) {
		t.Error("dropped notification should report failure")
	}
	if fallback.calls != 0 {
		t.Errorf("fallback must not be invoked without a number, got %d calls", fallback.calls)
	}
}

func TestNotifySendsDespiteNoNetwork(t *testing.T) {
	probe := &fakeProbe{connected: false}
	primary := &fakeMessenger{id: 7}
	r := newTestRelay(probe, primary, &fakeTextSender{}, &stubResolver{}, "")

	if !r.Notify(eventSample(models.EventStart)) {
		t.Error("notify should still attempt the send")
	}
	if probe.calls != 10 {
		t.Errorf("expected 10 reachability attempts, got %d", probe.calls)
	}
	if primary.calls != 1 {
		t.Errorf("primary send must still happen, got %d calls", primary.calls)
	}
	// Placeholder network label shows up as its initial
	if !strings.Contains(primary.last, "m g-") {
		t.Errorf("expected placeholder network initial in accuracy line: %q", primary.last)
	}
}

func TestEventMessageFormat(t *testing.T) {
	probe := &fakeProbe{connected: true, typeName: "wifi"}
	primary := &fakeMessenger{id: 1}
	r := newTestRelay(probe, primary, &fakeTextSender{}, &stubResolver{address: "San José"}, "")

	loc := eventSample(models.EventStart)
	loc.ExtraInfo = "  engine warm  "
	r.Notify(loc)

	msg := primary.last
	if !strings.HasPrefix(msg, "*START!*\n\n") {
		t.Errorf("expected bold uppercased event header, got %q", msg)
	}
	if !strings.Contains(msg, "_engine warm_") {
		t.Errorf("expected trimmed italic extra info, got %q", msg)
	}
	if !strings.Contains(msg, "[San José](https://www.google.com/maps/search/?api=1&query=9.9281,-84.0907)") {
		t.Errorf("expected map-linked resolved address, got %q", msg)
	}
	if !strings.Contains(msg, "*Accuracy:*\t12.35m gw") {
		t.Errorf("expected rounded accuracy with provider/network initials, got %q", msg)
	}
	if !strings.Contains(msg, "*Battery:*\t87%") {
		t.Errorf("expected normalized battery level, got %q", msg)
	}
}

func TestEventMessageInfoHeader(t *testing.T) {
	probe := &fakeProbe{connected: true, typeName: "wifi"}
	primary := &fakeMessenger{id: 1}
	r := newTestRelay(probe, primary, &fakeTextSender{}, &stubResolver{}, "")

	loc := eventSample("")
	loc.ExtraInfo = "ping"
	r.Notify(loc)

	if !strings.HasPrefix(primary.last, "*INFO!*\n\n") {
		t.Errorf("expected INFO header for event-less sample, got %q", primary.last)
	}
}

func TestAddressLabelFallsBackToCoordinates(t *testing.T) {
	probe := &fakeProbe{connected: true, typeName: "wifi"}
	primary := &fakeMessenger{id: 1}
	r := newTestRelay(probe, primary, &fakeTextSender{},
		&stubResolver{err: errors.New("unavailable")}, "")

	r.Notify(eventSample(models.EventStart))

	if !strings.Contains(primary.last, "[9.9281,-84.0907](") {
		t.Errorf("expected raw coordinate label when geocoding fails, got %q", primary.last)
	}
}

func TestAddressLabelPopulatesCache(t *testing.T) {
	probe := &fakeProbe{connected: true, typeName: "wifi"}
	primary := &fakeMessenger{id: 1}
	resolver := &stubResolver{address: "Cached Ave"}
	r := newTestRelay(probe, primary, &fakeTextSender{}, resolver, "")

	loc := eventSample(models.EventStart)
	loc.ExtraInfo = "first"
	r.Notify(loc)

	// Remote now fails, but the cache should answer
	resolver.address = ""
	resolver.err = errors.New("down")

	loc2 := eventSample(models.EventStart)
	loc2.ExtraInfo = "second"
	r.Notify(loc2)

	if !strings.Contains(primary.last, "[Cached Ave](") {
		t.Errorf("expected cached address on second notification, got %q", primary.last)
	}
}
