package models

import (
	"math"
	"time"
)

// Trip boundary events carried on a location sample. Samples with an empty
// event are plain tracking pings.
const (
	EventStart   = "start"
	EventStop    = "stop"
	EventRestart = "restart"
	EventRestop  = "restop"
)

// Location represents a single observed position from the device.
// Timestamp is milliseconds since epoch and doubles as the record identity.
type Location struct {
	Timestamp    int64   `json:"timestamp"`
	Latitude     float64 `json:"latitude"`
	Longitude    float64 `json:"longitude"`
	Accuracy     float64 `json:"accuracy"` // meters
	Provider     string  `json:"provider"`
	BatteryLevel int     `json:"battery_level"`
	Event        string  `json:"event,omitempty"`
	ExtraInfo    string  `json:"extra_info,omitempty"`
	UploadDate   int64   `json:"upload_date,omitempty"` // 0 until relayed upstream
}

// HasEvent reports whether the sample carries anything worth notifying.
func (l *Location) HasEvent() bool {
	return l.Event != "" || l.ExtraInfo != ""
}

// Time returns the sample timestamp as a time.Time.
func (l *Location) Time() time.Time {
	return time.UnixMilli(l.Timestamp)
}

// DisplayBattery normalizes the raw battery level for display. Levels above
// 100 encode a charging state offset of +100.
func (l *Location) DisplayBattery() int {
	if l.BatteryLevel > 100 {
		return l.BatteryLevel - 100
	}
	return l.BatteryLevel
}

// LocationQuery represents query parameters for location searches.
type LocationQuery struct {
	Since int64
	Limit int
}

// Round2 rounds half-up to 2 decimal places. All derived statistics use this
// one helper so results are reproducible bit-for-bit.
func Round2(v float64) float64 {
	return math.Round(v*100.0) / 100.0
}

// DistanceMeters returns the great-circle distance between two coordinates.
func DistanceMeters(lat1, lon1, lat2, lon2 float64) float64 {
	const earthRadius = 6371000.0 // meters

	rlat1 := lat1 * math.Pi / 180
	rlat2 := lat2 * math.Pi / 180
	dlat := (lat2 - lat1) * math.Pi / 180
	dlon := (lon2 - lon1) * math.Pi / 180

	a := math.Sin(dlat/2)*math.Sin(dlat/2) +
		math.Cos(rlat1)*math.Cos(rlat2)*math.Sin(dlon/2)*math.Sin(dlon/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return earthRadius * c
}
