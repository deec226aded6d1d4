package api

import (
	"errors"

	"FinGAN/internal/dataset"
	"FinGAN/internal/domain/models"
	domrepo "FinGAN/internal/domain/repository"
	"FinGAN/internal/usecase"
	xhttp "FinGAN/pkg/http"
)

// toAppError maps usecase failures onto HTTP errors. Anything unrecognised
// is left for AppErrorResponse to turn into a 500.
func toAppError(err error) error {
	switch {
	case errors.Is(err, usecase.ErrNoModel):
		return xhttp.UnavailableError("no trained model available").WithError(err)
	case errors.Is(err, domrepo.ErrNotFound):
		return xhttp.NotFoundError("not found").WithError(err)
	case errors.Is(err, usecase.ErrInsufficientHistory),
		errors.Is(err, usecase.ErrTooManyBars),
		errors.Is(err, usecase.ErrNoSymbols),
		errors.Is(err, dataset.ErrShapeMismatch):
		return xhttp.BadRequestError(err.Error()).WithError(err)
	case errors.Is(err, models.ErrNonFinite):
		return xhttp.InternalError("model produced a non-finite forecast").WithError(err)
	}
	return err
}
