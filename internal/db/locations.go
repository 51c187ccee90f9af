package db

import (
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"location-logger/internal/models"
	"location-logger/internal/observability"
)

// LocationStore persists location samples with minimum-distance filtering and
// batched writes. A store is a single-writer resource: Open begins one bulk
// transaction, StoreLocation writes into it, Close commits. Storage faults are
// reported as booleans so one bad sample never aborts the batch.
type LocationStore struct {
	db  *Database
	log *slog.Logger

	minDistance float64

	tx     *sql.Tx
	insert *sql.Stmt

	haveLast bool
	lastLat  float64
	lastLon  float64

	// running totals for the current process, read by the stats surfaces
	// while a writer goroutine may still be storing
	attempted atomic.Int64
	succeeded atomic.Int64
	failed    atomic.Int64
}

// NewLocationStore creates a location store on top of an open database.
func NewLocationStore(database *Database, log *slog.Logger) *LocationStore {
	return &LocationStore{db: database, log: log.With("component", "locationstore")}
}

// Configure sets the minimum-distance threshold in meters. Zero disables
// the filter.
func (s *LocationStore) Configure(minDistance float64) *LocationStore {
	s.minDistance = minDistance
	return s
}

// Open begins a bulk-write session. Calling Open on an already open store is
// a no-op so session wiring can stay simple.
func (s *LocationStore) Open() error {
	if s.tx != nil {
		return nil
	}

	tx, err := s.db.conn.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin bulk insert: %w", err)
	}

	stmt, err := tx.Prepare(`
		INSERT OR REPLACE INTO locations
		(timestamp, latitude, longitude, accuracy, provider, battery_level, event, extra_info, upload_date)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, NULL)
	`)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("failed to prepare insert: %w", err)
	}

	s.tx = tx
	s.insert = stmt
	s.haveLast = false

	// Seed the distance filter from the newest committed row. Queried on the
	// transaction: the pool has a single connection and it belongs to the
	// transaction now.
	var lat, lon float64
	err = tx.QueryRow(
		"SELECT latitude, longitude FROM locations ORDER BY timestamp DESC LIMIT 1",
	).Scan(&lat, &lon)
	if err == nil {
		s.haveLast = true
		s.lastLat = lat
		s.lastLon = lon
	}

	return nil
}

// StoreLocation persists-or-rejects one sample. A sample skipped by the
// distance filter counts as success: it was intentionally deduplicated, not
// lost. Samples carrying an event or extra info are never filtered.
func (s *LocationStore) StoreLocation(loc *models.Location) bool {
	s.attempted.Add(1)
	observability.LocationsAttempted.Inc()

	if s.insert == nil {
		s.log.Warn("store not open", "timestamp", loc.Timestamp)
		s.failed.Add(1)
		observability.LocationsFailed.Inc()
		return false
	}

	if s.shouldFilter(loc) {
		observability.LocationsFiltered.Inc()
		s.succeeded.Add(1)
		return true
	}

	_, err := s.insert.Exec(
		loc.Timestamp, loc.Latitude, loc.Longitude, loc.Accuracy,
		loc.Provider, loc.BatteryLevel, loc.Event, loc.ExtraInfo,
	)
	if err != nil {
		s.log.Warn("location write failed", "timestamp", loc.Timestamp, "error", err)
		s.failed.Add(1)
		observability.LocationsFailed.Inc()
		return false
	}

	s.haveLast = true
	s.lastLat = loc.Latitude
	s.lastLon = loc.Longitude
	s.succeeded.Add(1)
	observability.LocationsStored.Inc()
	return true
}

// Totals reports the process-lifetime store counters. Safe to call from any
// goroutine.
func (s *LocationStore) Totals() (attempted, succeeded, failed int64) {
	return s.attempted.Load(), s.succeeded.Load(), s.failed.Load()
}

func (s *LocationStore) shouldFilter(loc *models.Location) bool {
	if s.minDistance <= 0 || !s.haveLast || loc.HasEvent() {
		return false
	}
	return models.DistanceMeters(s.lastLat, s.lastLon, loc.Latitude, loc.Longitude) < s.minDistance
}

// Close commits the bulk session. Safe to call when nothing was written or
// when the store was never opened.
func (s *LocationStore) Close() error {
	if s.tx == nil {
		return nil
	}

	s.insert.Close()
	err := s.tx.Commit()
	s.tx = nil
	s.insert = nil
	if err != nil {
		return fmt.Errorf("failed to commit bulk insert: %w", err)
	}
	return nil
}

// Last returns the most recent committed location, or nil when the table
// is empty.
func (s *LocationStore) Last() (*models.Location, error) {
	row := s.db.conn.QueryRow(`
		SELECT timestamp, latitude, longitude, accuracy, provider, battery_level, event, extra_info, upload_date
		FROM locations ORDER BY timestamp DESC LIMIT 1
	`)

	loc, err := scanLocation(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return loc, err
}

// Locations returns rows at or after q.Since, newest first. A limit of zero
// or less means unbounded.
func (s *LocationStore) Locations(q models.LocationQuery) ([]models.Location, error) {
	query := `
		SELECT timestamp, latitude, longitude, accuracy, provider, battery_level, event, extra_info, upload_date
		FROM locations
	`
	var args []interface{}
	if q.Since > 0 {
		query += " WHERE timestamp >= ?"
		args = append(args, q.Since)
	}
	query += " ORDER BY timestamp DESC"
	if q.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", q.Limit)
	}

	rows, err := s.db.conn.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []models.Location
	for rows.Next() {
		loc, err := scanLocation(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, *loc)
	}
	return results, rows.Err()
}

// PendingUpload returns rows not yet marked as relayed upstream, oldest first.
func (s *LocationStore) PendingUpload() ([]models.Location, error) {
	rows, err := s.db.conn.Query(`
		SELECT timestamp, latitude, longitude, accuracy, provider, battery_level, event, extra_info, upload_date
		FROM locations WHERE upload_date IS NULL ORDER BY timestamp
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []models.Location
	for rows.Next() {
		loc, err := scanLocation(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, *loc)
	}
	return results, rows.Err()
}

// SetUploadDate marks a row as relayed upstream as of now.
func (s *LocationStore) SetUploadDate(timestamp int64) error {
	_, err := s.db.conn.Exec(
		"UPDATE locations SET upload_date = ? WHERE timestamp = ?",
		time.Now().UnixMilli(), timestamp,
	)
	return err
}

// Count returns the total number of stored locations.
func (s *LocationStore) Count() (int64, error) {
	var count int64
	err := s.db.conn.QueryRow("SELECT COUNT(*) FROM locations").Scan(&count)
	return count, err
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanLocation(row rowScanner) (*models.Location, error) {
	var loc models.Location
	var uploadDate sql.NullInt64

	err := row.Scan(
		&loc.Timestamp, &loc.Latitude, &loc.Longitude, &loc.Accuracy,
		&loc.Provider, &loc.BatteryLevel, &loc.Event, &loc.ExtraInfo, &uploadDate,
	)
	if err != nil {
		return nil, err
	}
	if uploadDate.Valid {
		loc.UploadDate = uploadDate.Int64
	}

	loc.Event = strings.TrimSpace(loc.Event)
	return &loc, nil
}
