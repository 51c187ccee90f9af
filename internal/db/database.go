package db

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// Database wraps the SQLite connection
type Database struct {
	conn *sql.DB
}

// New creates a new database connection
func New(dbPath string) (*Database, error) {
	// Enable WAL mode and other optimizations via connection string
	connStr := fmt.Sprintf("%s?_journal_mode=WAL&_synchronous=NORMAL&_cache_size=10000", dbPath)

	conn, err := sql.Open("sqlite3", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite works best with a single writer
	conn.SetMaxOpenConns(1)
	conn.SetMaxIdleConns(1)
	conn.SetConnMaxLifetime(time.Hour)

	db := &Database{conn: conn}

	if err := db.initialize(); err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	return db, nil
}

// initialize creates tables, indexes and the fuel join view
func (db *Database) initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS locations (
		timestamp INTEGER PRIMARY KEY,
		latitude REAL NOT NULL,
		longitude REAL NOT NULL,
		accuracy REAL NOT NULL,
		provider TEXT NOT NULL DEFAULT '',
		battery_level INTEGER NOT NULL DEFAULT 0,
		event TEXT NOT NULL DEFAULT '',
		extra_info TEXT NOT NULL DEFAULT '',
		upload_date INTEGER
	);

	CREATE TABLE IF NOT EXISTS fuel_log (
		timestamp INTEGER PRIMARY KEY,
		location_id INTEGER NOT NULL,
		odo_value INTEGER NOT NULL,
		spend_amount REAL NOT NULL,
		price_per_litre REAL NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_locations_event ON locations(event);
	CREATE INDEX IF NOT EXISTS idx_locations_pending_upload ON locations(timestamp) WHERE upload_date IS NULL;

	-- A fuel purchase joins the location stream by time proximity: any trip
	-- boundary row within [-10s, +300s] of the purchase's location id, or an
	-- exact timestamp match as the fallback.
	CREATE VIEW IF NOT EXISTS fuel_log_view AS
	SELECT fl.timestamp, fl.odo_value, fl.spend_amount, fl.price_per_litre,
	       fl.spend_amount / fl.price_per_litre AS litres,
	       l.latitude, l.longitude
	FROM fuel_log AS fl
	LEFT JOIN locations AS l ON l.timestamp = fl.location_id
	   OR (l.timestamp BETWEEN fl.location_id - 10000 AND fl.location_id + 300000
	       AND l.event IN ('start', 'restart', 'restop'))
	GROUP BY fl.timestamp;
	`

	_, err := db.conn.Exec(schema)
	return err
}

// Close closes the database connection
func (db *Database) Close() error {
	return db.conn.Close()
}

// Stats returns row counts for the stats surfaces
func (db *Database) Stats() (map[string]interface{}, error) {
	stats := make(map[string]interface{})

	var totalLocations int64
	db.conn.QueryRow("SELECT COUNT(*) FROM locations").Scan(&totalLocations)
	stats["total_locations"] = totalLocations

	var pendingUpload int64
	db.conn.QueryRow("SELECT COUNT(*) FROM locations WHERE upload_date IS NULL").Scan(&pendingUpload)
	stats["pending_upload"] = pendingUpload

	var totalFuelLogs int64
	db.conn.QueryRow("SELECT COUNT(*) FROM fuel_log").Scan(&totalFuelLogs)
	stats["total_fuel_logs"] = totalFuelLogs

	return stats, nil
}
