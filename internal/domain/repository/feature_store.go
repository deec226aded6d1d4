package repository

import (
	"context"
	"time"

	"FinGAN/internal/domain/models"
)

// FeatureStore is the read side of the candle history. Training pulls a date
// range per instrument and forecasting pulls the lookback bars that precede
// the predicted one. Candles are returned oldest first.
type FeatureStore interface {
	// GetCandles returns bars with from <= bucket <= to.
	GetCandles(ctx context.Context, symbol string, from, to time.Time, tf Timeframe) ([]models.Candle, error)
	// GetLatestNCandles returns at most n of the newest bars.
	GetLatestNCandles(ctx context.Context, symbol string, n int, tf Timeframe) ([]models.Candle, error)
}
