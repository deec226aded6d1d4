package dataset

import "errors"

var (
	// ErrShapeMismatch is returned when inputs disagree on row count or width.
	ErrShapeMismatch = errors.New("shape mismatch")
	// ErrInvalidLookback is returned for a lookback below one.
	ErrInvalidLookback = errors.New("invalid lookback")
	// ErrInvalidBatchSize is returned for a batch size below one.
	ErrInvalidBatchSize = errors.New("invalid batch size")
)
