package models

import "time"

// Candle represents an OHLCV record for feature engineering and training.
type Candle struct {
	Bucket time.Time `json:"bucket" validate:"required"`
	Symbol string    `json:"symbol"`
	Open   float64   `json:"open" validate:"gte=0"`
	High   float64   `json:"high" validate:"gte=0"`
	Low    float64   `json:"low" validate:"gte=0"`
	Close  float64   `json:"close" validate:"gt=0"`
	Volume float64   `json:"volume" validate:"gte=0"`
	OrgID  string    `json:"-"`
}
