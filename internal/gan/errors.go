package gan

import (
	"errors"

	"FinGAN/internal/domain/models"
)

var (
	// ErrDifferentiation is returned when gradients cannot be derived or
	// evaluated. It is fatal for a training run.
	ErrDifferentiation = errors.New("differentiation failed")
	// ErrShapeMismatch is returned when a batch does not fit the networks.
	ErrShapeMismatch = errors.New("shape mismatch")
	// ErrNoBatches is returned when an epoch has nothing to train on.
	ErrNoBatches = errors.New("no batches")
	// ErrNonFinite aliases the report validation error so callers can match
	// it from either package.
	ErrNonFinite = models.ErrNonFinite
)
