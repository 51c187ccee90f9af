// Package pipeline composes the location event pipeline: every incoming
// sample is persisted, and samples carrying an event are relayed as
// notifications on the side.
package pipeline

import (
	"errors"
	"log/slog"

	"location-logger/internal/models"
)

// Storer is the capability shared by the storage backends a session
// composes: the durable location store and the notification relay.
type Storer interface {
	Open() error
	StoreLocation(loc *models.Location) bool
	Close() error
}

// Session is the lifecycle wrapper around one bulk-write cycle. All samples
// go through the primary store; the notifier is a side channel whose failures
// never affect the stored batch. Sessions are single-writer: the caller runs
// one session at a time.
type Session struct {
	store    Storer
	notifier Storer
	log      *slog.Logger
	open     bool
}

// NewSession creates a session over a primary store and an optional
// notifier. A nil notifier disables the side channel.
func NewSession(store, notifier Storer, log *slog.Logger) *Session {
	return &Session{
		store:    store,
		notifier: notifier,
		log:      log.With("component", "session"),
	}
}

// Open begins the bulk-write cycle on both channels.
func (s *Session) Open() error {
	if s.open {
		return nil
	}
	if err := s.store.Open(); err != nil {
		return err
	}
	if s.notifier != nil {
		if err := s.notifier.Open(); err != nil {
			s.store.Close()
			return err
		}
	}
	s.open = true
	return nil
}

// Write routes one sample through the pipeline. The return value reflects
// the primary store only; the notification outcome is observable through
// logs and counters but never fails the write.
func (s *Session) Write(loc *models.Location) bool {
	stored := s.store.StoreLocation(loc)
	if !stored {
		s.log.Warn("sample not stored", "timestamp", loc.Timestamp)
	}

	if s.notifier != nil && loc.HasEvent() {
		if !s.notifier.StoreLocation(loc) {
			s.log.Warn("event notification not delivered", "event", loc.Event)
		}
	}

	return stored
}

// Close flushes and commits the batch and releases both channels.
func (s *Session) Close() error {
	if !s.open {
		return nil
	}
	s.open = false

	err := s.store.Close()
	if s.notifier != nil {
		err = errors.Join(err, s.notifier.Close())
	}
	return err
}
