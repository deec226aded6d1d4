package usecase

import "errors"

var (
	// ErrNoWindows is returned when no instrument has enough rows to form a
	// single training window.
	ErrNoWindows = errors.New("no training windows")
	// ErrNoModel is returned when no finished run can serve forecasts.
	ErrNoModel = errors.New("no trained model available")
	// ErrInsufficientHistory is returned when fewer than lookback usable
	// rows are available for a forecast.
	ErrInsufficientHistory = errors.New("insufficient history")
	// ErrTooManyBars is returned when a request carries more bars than
	// the serving limit.
	ErrTooManyBars = errors.New("too many bars")
	// ErrNoSymbols is returned for a training request without instruments.
	ErrNoSymbols = errors.New("no symbols")
)
