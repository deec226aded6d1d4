package features

import (
	"math"
	"time"

	"FinGAN/internal/domain/models"
)

// ComputeLogReturns computes log returns r_t = ln(C_t / C_{t-1}).
// It returns a slice of length len(candles)-1, or nil if insufficient data.
func ComputeLogReturns(candles []models.Candle) []float64 {
	if len(candles) < 2 {
		return nil
	}
	out := make([]float64, 0, len(candles)-1)
	for i := 1; i < len(candles); i++ {
		prev := candles[i-1].Close
		cur := candles[i].Close
		if prev <= 0 || cur <= 0 {
			out = append(out, 0)
			continue
		}
		out = append(out, math.Log(cur/prev))
	}
	return out
}

// RealizedVolatility computes annualized realized volatility over the last
// window returns using the provided number of bars per year.
func RealizedVolatility(logReturns []float64, window int, barsPerYear float64) float64 {
	if window <= 1 || len(logReturns) < window {
		return 0
	}
	sum := 0.0
	sum2 := 0.0
	for i := len(logReturns) - window; i < len(logReturns); i++ {
		r := logReturns[i]
		sum += r
		sum2 += r * r
	}
	n := float64(window)
	mean := sum / n
	variance := (sum2 - n*mean*mean) / (n - 1)
	if variance < 0 {
		variance = 0
	}
	return math.Sqrt(variance * barsPerYear)
}

// BarsPerYearForTF returns the approximate number of bars per year for a timeframe.
func BarsPerYearForTF(tf string) float64 {
	switch tf {
	case "1s":
		return 365 * 24 * 60 * 60
	case "1m":
		return 365 * 24 * 60
	case "5m":
		return 365 * 24 * 12
	case "1d":
		return 252
	default:
		return 365 * 24 * 60
	}
}

// AlignFromTo rounds time range to candle boundaries based on timeframe.
func AlignFromTo(from, to time.Time, tf string) (time.Time, time.Time) {
	var d time.Duration
	switch tf {
	case "1s":
		d = time.Second
	case "5m":
		d = 5 * time.Minute
	case "1d":
		d = 24 * time.Hour
	default:
		d = time.Minute
	}
	return from.Truncate(d), to.Truncate(d)
}

// Indicator computes one feature column over a single instrument's candles.
// The result has len(candles) values; undefined leading values are NaN and
// the rows carrying them are dropped by the frame builder.
type Indicator interface {
	Name() string
	Compute(candles []models.Candle) []float64
}

// LogReturn is the one-bar log return of the close.
type LogReturn struct{}

func (LogReturn) Name() string { return "log_return" }

func (LogReturn) Compute(candles []models.Candle) []float64 {
	out := make([]float64, len(candles))
	if len(out) == 0 {
		return out
	}
	out[0] = math.NaN()
	copy(out[1:], ComputeLogReturns(candles))
	return out
}

// RollingVolatility is the annualized realized volatility of the trailing
// Window log returns.
type RollingVolatility struct {
	Window    int
	Timeframe string
}

func (v RollingVolatility) Name() string { return "realized_vol" }

func (v RollingVolatility) Compute(candles []models.Candle) []float64 {
	out := make([]float64, len(candles))
	rets := ComputeLogReturns(candles)
	bpy := BarsPerYearForTF(v.Timeframe)
	for i := range out {
		// returns up to and including bar i are rets[:i]
		if i < v.Window || v.Window <= 1 {
			out[i] = math.NaN()
			continue
		}
		out[i] = RealizedVolatility(rets[:i], v.Window, bpy)
	}
	return out
}
