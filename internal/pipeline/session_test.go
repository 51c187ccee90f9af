package pipeline

import (
	"errors"
	"log/slog"
	"testing"

	"location-logger/internal/models"
)

type discardWriter struct{}

func (discardWriter) Write(p []byte) (int, error) { return len(p), nil }

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(discardWriter{}, nil))
}

type fakeStorer struct {
	openErr  error
	storeOK  bool
	closeErr error

	opened int
	stored []*models.Location
	closed int
}

func (f *fakeStorer) Open() error {
	f.opened++
	return f.openErr
}

func (f *fakeStorer) StoreLocation(loc *models.Location) bool {
	f.stored = append(f.stored, loc)
	return f.storeOK
}

func (f *fakeStorer) Close() error {
	f.closed++
	return f.closeErr
}

func TestSessionRoutesEverySampleToStore(t *testing.T) {
	store := &fakeStorer{storeOK: true}
	notifier := &fakeStorer{storeOK: true}
	s := NewSession(store, notifier, testLogger())

	if err := s.Open(); err != nil {
		t.Fatalf("open failed: %v", err)
	}

	plain := &models.Location{Timestamp: 1000}
	event := &models.Location{Timestamp: 2000, Event: models.EventStart}

	if !s.Write(plain) || !s.Write(event) {
		t.Error("writes should succeed")
	}
	if err := s.Close(); err != nil {
		t.Fatalf("close failed: %v", err)
	}

	if len(store.stored) != 2 {
		t.Errorf("every sample goes to the primary store, got %d", len(store.stored))
	}
	if len(notifier.stored) != 1 || notifier.stored[0].Timestamp != 2000 {
		t.Errorf("only event samples go to the notifier, got %v", notifier.stored)
	}
}

func TestSessionIndependentFailureDomains(t *testing.T) {
	// Notifier failure never fails the write
	store := &fakeStorer{storeOK: true}
	notifier := &fakeStorer{storeOK: false}
	s := NewSession(store, notifier, testLogger())
	s.Open()

	event := &models.Location{Timestamp: 1000, Event: models.EventStop}
	if !s.Write(event) {
		t.Error("notification failure must not fail the stored sample")
	}

	// Storage failure never blocks the notification
	store = &fakeStorer{storeOK: false}
	notifier = &fakeStorer{storeOK: true}
	s = NewSession(store, notifier, testLogger())
	s.Open()

	if s.Write(event) {
		t.Error("storage fault should be reported")
	}
	if len(notifier.stored) != 1 {
		t.Errorf("notification should still happen, got %d", len(notifier.stored))
	}
}

func TestSessionNilNotifier(t *testing.T) {
	store := &fakeStorer{storeOK: true}
	s := NewSession(store, nil, testLogger())

	if err := s.Open(); err != nil {
		t.Fatalf("open failed: %v", err)
	}
	if !s.Write(&models.Location{Timestamp: 1000, Event: models.EventStart}) {
		t.Error("write should succeed without a notifier")
	}
	if err := s.Close(); err != nil {
		t.Fatalf("close failed: %v", err)
	}
}

func TestSessionOpenFailureReleasesStore(t *testing.T) {
	store := &fakeStorer{storeOK: true}
	notifier := &fakeStorer{openErr: errors.New("boom")}
	s := NewSession(store, notifier, testLogger())

	if err := s.Open(); err == nil {
		t.Fatal("expected open error")
	}
	if store.closed != 1 {
		t.Errorf("store should be released when the notifier fails to open, closed=%d", store.closed)
	}
}

func TestSessionCloseJoinsErrors(t *testing.T) {
	store := &fakeStorer{storeOK: true, closeErr: errors.New("commit failed")}
	notifier := &fakeStorer{storeOK: true}
	s := NewSession(store, notifier, testLogger())
	s.Open()

	if err := s.Close(); err == nil {
		t.Error("commit error should surface from close")
	}
	if notifier.closed != 1 {
		t.Errorf("notifier should still be closed, closed=%d", notifier.closed)
	}
}
