package features

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/floats"
)

// ErrNotFitted is returned by transforms on an unfitted scaler.
var ErrNotFitted = errors.New("scaler not fitted")

// MinMaxScaler rescales each column to [0,1] using the range seen in Fit.
// Constant columns map to 0.
type MinMaxScaler struct {
	Min []float64 `json:"min"`
	Max []float64 `json:"max"`
}

// Fit learns per-column minima and maxima.
func (s *MinMaxScaler) Fit(rows [][]float64) error {
	if len(rows) == 0 {
		return fmt.Errorf("fit on empty data")
	}
	d := len(rows[0])
	col := make([]float64, len(rows))
	s.Min = make([]float64, d)
	s.Max = make([]float64, d)
	for j := 0; j < d; j++ {
		for i, r := range rows {
			if len(r) != d {
				return fmt.Errorf("row %d has %d columns, want %d", i, len(r), d)
			}
			col[i] = r[j]
		}
		s.Min[j] = floats.Min(col)
		s.Max[j] = floats.Max(col)
	}
	return nil
}

// Transform returns scaled copies of rows.
func (s *MinMaxScaler) Transform(rows [][]float64) ([][]float64, error) {
	return s.apply(rows, func(v, lo, span float64) float64 {
		if span == 0 {
			return 0
		}
		return (v - lo) / span
	})
}

// InverseTransform maps scaled rows back to the original range.
func (s *MinMaxScaler) InverseTransform(rows [][]float64) ([][]float64, error) {
	return s.apply(rows, func(v, lo, span float64) float64 {
		return v*span + lo
	})
}

// FitTransform fits on rows and returns them scaled.
func (s *MinMaxScaler) FitTransform(rows [][]float64) ([][]float64, error) {
	if err := s.Fit(rows); err != nil {
		return nil, err
	}
	return s.Transform(rows)
}

func (s *MinMaxScaler) apply(rows [][]float64, f func(v, lo, span float64) float64) ([][]float64, error) {
	if len(s.Min) == 0 {
		return nil, ErrNotFitted
	}
	out := make([][]float64, len(rows))
	for i, r := range rows {
		if len(r) != len(s.Min) {
			return nil, fmt.Errorf("row %d has %d columns, want %d", i, len(r), len(s.Min))
		}
		o := make([]float64, len(r))
		for j, v := range r {
			o[j] = f(v, s.Min[j], s.Max[j]-s.Min[j])
		}
		out[i] = o
	}
	return out, nil
}
