package models

import (
	"fmt"
	"strconv"
	"time"
)

// FuelLog is one fuel purchase as read back through the location join view.
// Litres is derived (spend/price) and rounded at query time. Latitude and
// Longitude are zero when no location row matched the purchase.
type FuelLog struct {
	Timestamp     int64   `json:"timestamp"`
	OdoValue      int     `json:"odo_value"`
	SpendAmount   float64 `json:"spend_amount"`
	PricePerLitre float64 `json:"price_per_litre"`
	Litres        float64 `json:"litres"`
	Latitude      float64 `json:"latitude,omitempty"`
	Longitude     float64 `json:"longitude,omitempty"`
}

// String renders a fuel log line, linking the date to a map when the joined
// location is known.
func (f *FuelLog) String() string {
	datestr := time.UnixMilli(f.Timestamp).Format("2006-01-02 15:04:05")
	if f.Latitude != 0 && f.Longitude != 0 {
		datestr = fmt.Sprintf("[%s](https://www.google.com/maps/search/?api=1&query=%s,%s)",
			datestr,
			strconv.FormatFloat(f.Latitude, 'f', -1, 64),
			strconv.FormatFloat(f.Longitude, 'f', -1, 64))
	}

	return fmt.Sprintf("%s  %dkm  %v CRC  %v CRC  %vL",
		datestr, f.OdoValue, f.SpendAmount, f.PricePerLitre, f.Litres)
}

// Statics holds consumption statistics derived from the two most recent
// fuel purchases.
type Statics struct {
	Km     int       `json:"km"`
	Litres float64   `json:"litres"`
	Avg    float64   `json:"avg"` // km per litre
	Start  time.Time `json:"start"`
	End    time.Time `json:"end"`
}

// NewStatics computes rounded consumption figures. Litres is rounded first
// and the average is derived from the rounded value so the same inputs
// always reproduce the same output.
func NewStatics(km int, litres float64, start, end time.Time) Statics {
	s := Statics{
		Km:     km,
		Litres: Round2(litres),
		Start:  start,
		End:    end,
	}
	if s.Litres > 0 {
		s.Avg = Round2(float64(km) / s.Litres)
	}
	return s
}
