package repository

// Timeframe is the bar resolution a model is trained and served on. One
// training sample consumes lookback+1 consecutive bars, so the timeframe also
// fixes the horizon of a forecast: one bar ahead.
type Timeframe string

const (
	TF1s Timeframe = "1s"
	TF1m Timeframe = "1m"
	TF5m Timeframe = "5m"
	TF1d Timeframe = "1d"
)

// Timeframes lists every resolution the candle store keeps a table for.
func Timeframes() []Timeframe {
	return []Timeframe{TF1s, TF1m, TF5m, TF1d}
}

// IsValidTimeframe reports whether tf has a candle table.
func IsValidTimeframe(tf Timeframe) bool {
	for _, known := range Timeframes() {
		if tf == known {
			return true
		}
	}
	return false
}

// DefaultTimeframe is daily bars. Finer resolutions also need the intraday
// calendar columns.
func DefaultTimeframe() Timeframe { return TF1d }

// NormalizeTimeframe maps a request or config value to a timeframe. Empty
// and unknown values fall back to daily bars so a run never trains on a
// resolution it did not ask for by accident.
func NormalizeTimeframe(s string) Timeframe {
	if tf := Timeframe(s); IsValidTimeframe(tf) {
		return tf
	}
	return DefaultTimeframe()
}
