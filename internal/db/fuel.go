package db

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"location-logger/internal/models"
)

// ErrNoFuelData is returned when a statistics query has nothing to divide by.
var ErrNoFuelData = errors.New("no fuel data recorded")

// Purchases before this point predate the odometer bookkeeping and are
// excluded from the overall average.
const consumptionEpochMs = 1540305476655

// FuelStore is the fuel-purchase table plus its derived statistics queries.
type FuelStore struct {
	db  *Database
	log *slog.Logger

	// purchase timestamps come from here so tests can pin the clock
	now func() time.Time
}

// NewFuelStore creates a fuel store on top of an open database.
func NewFuelStore(database *Database, log *slog.Logger) *FuelStore {
	return &FuelStore{
		db:  database,
		log: log.With("component", "fuelstore"),
		now: time.Now,
	}
}

// LogFuel upserts a purchase keyed by the current time. Logging twice in the
// same instant overwrites rather than duplicates. The paired location's
// timestamp is the join key into the location stream; when no location is
// available the purchase time stands in. Returns the new total row count.
func (f *FuelStore) LogFuel(loc *models.Location, odoValue int, spendAmount, pricePerLitre float64) (int64, error) {
	ts := f.now().UnixMilli()
	locationID := ts
	if loc != nil {
		locationID = loc.Timestamp
	}

	_, err := f.db.conn.Exec(`
		INSERT OR REPLACE INTO fuel_log
		(timestamp, location_id, odo_value, spend_amount, price_per_litre)
		VALUES (?, ?, ?, ?, ?)
	`, ts, locationID, odoValue, spendAmount, pricePerLitre)
	if err != nil {
		return 0, fmt.Errorf("failed to log fuel: %w", err)
	}

	return f.Count()
}

// GetByID returns one purchase through the join view, or nil when absent.
func (f *FuelStore) GetByID(id int64) (*models.FuelLog, error) {
	row := f.db.conn.QueryRow(`
		SELECT timestamp, odo_value, spend_amount, price_per_litre, litres, latitude, longitude
		FROM fuel_log_view WHERE timestamp = ?
	`, id)

	entry, err := scanFuelLog(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return entry, err
}

// GetLogs returns purchases through the join view, newest first. A limit of
// zero or less means unbounded.
func (f *FuelStore) GetLogs(limit int) ([]models.FuelLog, error) {
	query := `
		SELECT timestamp, odo_value, spend_amount, price_per_litre, litres, latitude, longitude
		FROM fuel_log_view ORDER BY timestamp DESC
	`
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", limit)
	}

	rows, err := f.db.conn.Query(query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []models.FuelLog
	for rows.Next() {
		entry, err := scanFuelLog(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, *entry)
	}
	return results, rows.Err()
}

// MostRecentStatics computes consumption statistics over the two newest
// purchases. Returns nil when the table is empty.
func (f *FuelStore) MostRecentStatics() (*models.Statics, error) {
	rows, err := f.db.conn.Query(`
		SELECT odo_value, price_per_litre, spend_amount, timestamp
		FROM fuel_log ORDER BY timestamp DESC LIMIT 2
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var currentOdo, prevOdo int
	var currentPrice, currentSpend float64
	var currentDate, prevDate int64

	if !rows.Next() {
		return nil, rows.Err()
	}
	if err := rows.Scan(&currentOdo, &currentPrice, &currentSpend, &currentDate); err != nil {
		return nil, err
	}
	if rows.Next() {
		var price, spend float64
		if err := rows.Scan(&prevOdo, &price, &spend, &prevDate); err != nil {
			return nil, err
		}
	}

	km := currentOdo - prevOdo
	litres := 0.0
	if currentPrice != 0 {
		litres = currentSpend / currentPrice
	}

	statics := models.NewStatics(km, litres, time.UnixMilli(prevDate), time.UnixMilli(currentDate))
	return &statics, rows.Err()
}

// AvgConsumption computes the overall km-per-litre average over all purchases
// after the epoch cutoff. Returns ErrNoFuelData when no litres are recorded,
// which SQLite surfaces as a NULL scalar.
func (f *FuelStore) AvgConsumption() (float64, error) {
	var avg sql.NullFloat64
	err := f.db.conn.QueryRow(`
		SELECT (MAX(odo_value) - MIN(odo_value)) /
		       (SELECT SUM(spend_amount / price_per_litre) FROM fuel_log WHERE timestamp > ?)
		FROM fuel_log
	`, consumptionEpochMs).Scan(&avg)
	if err != nil {
		return 0, err
	}
	if !avg.Valid {
		return 0, ErrNoFuelData
	}
	return models.Round2(avg.Float64), nil
}

// Delete removes one purchase by id. Deleting an absent id is not an error.
func (f *FuelStore) Delete(id int64) error {
	_, err := f.db.conn.Exec("DELETE FROM fuel_log WHERE timestamp = ?", id)
	return err
}

// Count returns the total number of purchases.
func (f *FuelStore) Count() (int64, error) {
	var count int64
	err := f.db.conn.QueryRow("SELECT COUNT(*) FROM fuel_log").Scan(&count)
	return count, err
}

func scanFuelLog(row rowScanner) (*models.FuelLog, error) {
	var entry models.FuelLog
	var litres float64
	var lat, lon sql.NullFloat64

	err := row.Scan(
		&entry.Timestamp, &entry.OdoValue, &entry.SpendAmount,
		&entry.PricePerLitre, &litres, &lat, &lon,
	)
	if err != nil {
		return nil, err
	}

	entry.Litres = models.Round2(litres)
	if lat.Valid {
		entry.Latitude = lat.Float64
	}
	if lon.Valid {
		entry.Longitude = lon.Float64
	}
	return &entry, nil
}
