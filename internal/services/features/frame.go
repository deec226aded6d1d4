package features

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"

	"FinGAN/internal/domain/models"
)

var (
	// ErrUnordered is returned when an instrument's candles are not strictly
	// increasing in time.
	ErrUnordered = errors.New("candles not strictly increasing in time")
	// ErrWidthMismatch is returned when a frame's width differs from the
	// width a model was trained on.
	ErrWidthMismatch = errors.New("feature width mismatch")
)

// FrameConfig is the serialisable description of a FrameBuilder.
type FrameConfig struct {
	YearPeriod       int    `json:"year_period" yaml:"year_period" default:"10" validate:"gte=1"`
	Intraday         bool   `json:"intraday" yaml:"intraday"`
	OneHot           bool   `json:"one_hot" yaml:"one_hot" default:"true"`
	VolatilityWindow int    `json:"volatility_window" yaml:"volatility_window" default:"0" validate:"gte=0"`
	Timeframe        string `json:"timeframe" yaml:"timeframe" default:"1m"`
}

// FrameBuilder turns per-instrument candles into a feature frame:
// open, high, low, volume, indicators, calendar encodings and the one-hot
// symbol columns. The target is the close.
type FrameBuilder struct {
	Calendar   CalendarEncoder
	Encoder    *OneHotEncoder
	Indicators []Indicator
}

// NewFrameBuilder builds a FrameBuilder from cfg. enc may be nil when one-hot
// encoding is disabled.
func NewFrameBuilder(cfg FrameConfig, enc *OneHotEncoder) *FrameBuilder {
	b := &FrameBuilder{
		Calendar:   CalendarEncoder{YearPeriod: cfg.YearPeriod, Intraday: cfg.Intraday},
		Indicators: []Indicator{LogReturn{}},
	}
	if cfg.OneHot {
		b.Encoder = enc
	}
	if cfg.VolatilityWindow > 1 {
		b.Indicators = append(b.Indicators, RollingVolatility{Window: cfg.VolatilityWindow, Timeframe: cfg.Timeframe})
	}
	return b
}

// Columns returns the feature names in row order.
func (b *FrameBuilder) Columns() []string {
	cols := []string{"open", "high", "low", "volume"}
	for _, ind := range b.Indicators {
		cols = append(cols, ind.Name())
	}
	cols = append(cols, b.Calendar.Columns()...)
	if b.Encoder != nil {
		cols = append(cols, b.Encoder.Columns()...)
	}
	return cols
}

// Build builds one frame from the given instrument series, appended in
// argument order. Rows with any non-finite value are dropped.
func (b *FrameBuilder) Build(series ...[]models.Candle) (*models.Frame, error) {
	f := &models.Frame{Columns: b.Columns()}
	for _, candles := range series {
		for i := 1; i < len(candles); i++ {
			if !candles[i].Bucket.After(candles[i-1].Bucket) {
				return nil, fmt.Errorf("%s at %s: %w", candles[i].Symbol, candles[i].Bucket, ErrUnordered)
			}
		}
		cols := make([][]float64, len(b.Indicators))
		for k, ind := range b.Indicators {
			cols[k] = ind.Compute(candles)
		}
		for i, c := range candles {
			row := make([]float64, 0, len(f.Columns))
			row = append(row, c.Open, c.High, c.Low, c.Volume)
			for k := range cols {
				row = append(row, cols[k][i])
			}
			row = append(row, b.Calendar.Encode(c.Bucket)...)
			if b.Encoder != nil {
				row = append(row, b.Encoder.Encode(c.Symbol)...)
			}
			if !finite(row) || !finite([]float64{c.Close}) {
				continue
			}
			f.Rows = append(f.Rows, models.FeatureRow{Symbol: c.Symbol, Time: c.Bucket, Values: row, Target: c.Close})
		}
	}
	return f, nil
}

func finite(xs []float64) bool {
	for _, v := range xs {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// Preprocessor is everything needed to turn raw candles into model inputs
// and model outputs back into prices. It is persisted with each checkpoint.
type Preprocessor struct {
	Frame    FrameConfig   `json:"frame"`
	Encoder  OneHotEncoder `json:"encoder"`
	Columns  []string      `json:"columns"`
	Lookback int           `json:"lookback"`
	X        MinMaxScaler  `json:"x_scaler"`
	Y        MinMaxScaler  `json:"y_scaler"`
}

// Builder returns the frame builder the preprocessor was fitted with.
func (p *Preprocessor) Builder() *FrameBuilder {
	return NewFrameBuilder(p.Frame, &p.Encoder)
}

// Check verifies a frame has the fitted columns.
func (p *Preprocessor) Check(f *models.Frame) error {
	if f.Width() != len(p.Columns) {
		return fmt.Errorf("frame has %d columns, model %d: %w", f.Width(), len(p.Columns), ErrWidthMismatch)
	}
	return nil
}

// Marshal encodes the preprocessor to JSON.
func (p *Preprocessor) Marshal() ([]byte, error) {
	return json.Marshal(p)
}

// UnmarshalPreprocessor decodes a preprocessor written by Marshal.
func UnmarshalPreprocessor(b []byte) (*Preprocessor, error) {
	var p Preprocessor
	if err := json.Unmarshal(b, &p); err != nil {
		return nil, fmt.Errorf("decode preprocessor: %w", err)
	}
	return &p, nil
}
