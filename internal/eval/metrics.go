// Package eval scores forecasts against realised values.
package eval

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"FinGAN/internal/domain/models"
)

// ErrLengthMismatch is returned when predictions and actuals differ in length.
var ErrLengthMismatch = errors.New("length mismatch")

func check(pred, actual []float64) error {
	if len(pred) != len(actual) {
		return fmt.Errorf("%d predictions, %d actuals: %w", len(pred), len(actual), ErrLengthMismatch)
	}
	if len(pred) == 0 {
		return fmt.Errorf("no samples: %w", ErrLengthMismatch)
	}
	return nil
}

// RMSE is the root mean squared error.
func RMSE(pred, actual []float64) (float64, error) {
	if err := check(pred, actual); err != nil {
		return 0, err
	}
	return floats.Distance(pred, actual, 2) / math.Sqrt(float64(len(pred))), nil
}

// MAE is the mean absolute error.
func MAE(pred, actual []float64) (float64, error) {
	if err := check(pred, actual); err != nil {
		return 0, err
	}
	return floats.Distance(pred, actual, 1) / float64(len(pred)), nil
}

// R2 is the coefficient of determination of pred for actual.
func R2(pred, actual []float64) (float64, error) {
	if err := check(pred, actual); err != nil {
		return 0, err
	}
	return stat.RSquaredFrom(pred, actual, nil), nil
}

// Evaluate computes all metrics at once. R2 is undefined when actual has no
// variance and is then reported as 0.
func Evaluate(pred, actual []float64) (*models.Evaluation, error) {
	rmse, err := RMSE(pred, actual)
	if err != nil {
		return nil, err
	}
	mae, _ := MAE(pred, actual)
	r2, _ := R2(pred, actual)
	if math.IsNaN(r2) || math.IsInf(r2, 0) {
		r2 = 0
	}
	return &models.Evaluation{RMSE: rmse, MAE: mae, R2: r2, Samples: len(pred)}, nil
}
