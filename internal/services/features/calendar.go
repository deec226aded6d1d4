package features

import (
	"math"
	"time"
)

// CyclicalEncoding maps v on a cycle of the given period to (cos, sin).
func CyclicalEncoding(v, period float64) (float64, float64) {
	angle := 2 * math.Pi * v / period
	return math.Cos(angle), math.Sin(angle)
}

// CalendarEncoder produces cyclical date features. Year, month and day are
// zero-based before encoding; year cycles over YearPeriod years.
type CalendarEncoder struct {
	YearPeriod int
	Intraday   bool
}

// Columns returns the feature names in Encode order.
func (c CalendarEncoder) Columns() []string {
	cols := []string{"year_cos", "year_sin", "month_cos", "month_sin", "day_cos", "day_sin"}
	if c.Intraday {
		cols = append(cols, "hour_cos", "hour_sin", "minute_cos", "minute_sin")
	}
	return cols
}

// Encode returns the cyclical features for t.
func (c CalendarEncoder) Encode(t time.Time) []float64 {
	period := float64(c.YearPeriod)
	if period <= 0 {
		period = 10
	}
	out := make([]float64, 0, 10)
	yc, ys := CyclicalEncoding(float64(t.Year()-1), period)
	mc, ms := CyclicalEncoding(float64(t.Month()-1), 12)
	dc, ds := CyclicalEncoding(float64(t.Day()-1), 31)
	out = append(out, yc, ys, mc, ms, dc, ds)
	if c.Intraday {
		hc, hs := CyclicalEncoding(float64(t.Hour()), 24)
		nc, ns := CyclicalEncoding(float64(t.Minute()), 60)
		out = append(out, hc, hs, nc, ns)
	}
	return out
}
