package api

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"FinGAN/internal/domain/models"
	domrepo "FinGAN/internal/domain/repository"
	"FinGAN/internal/service/metrics"
	xhttp "FinGAN/pkg/http"
	"FinGAN/pkg/http/middleware"
	xlogger "FinGAN/pkg/logger"
)

// Forecaster is implemented by *usecase.ForecastUseCase.
type Forecaster interface {
	Forecast(ctx context.Context, symbol string, tf domrepo.Timeframe, bars []models.Candle, runID string) (*models.Forecast, error)
}

// ForecastHandler serves model predictions.
type ForecastHandler struct {
	logger  *xlogger.Logger
	uc      Forecaster
	limiter middleware.Allower
}

// NewForecastHandler creates the handler. A nil limiter disables rate
// limiting.
func NewForecastHandler(logger *xlogger.Logger, uc Forecaster, limiter middleware.Allower) *ForecastHandler {
	if logger == nil {
		logger = xlogger.Nop()
	}
	return &ForecastHandler{logger: logger, uc: uc, limiter: limiter}
}

func (h *ForecastHandler) RegisterRoutes(e *echo.Echo) {
	var mw []echo.MiddlewareFunc
	if h.limiter != nil {
		mw = append(mw, middleware.RateLimit(h.limiter, func(route string) {
			metrics.RateLimited.WithLabelValues(route).Inc()
		}))
	}
	e.GET("/ping", h.Ping)
	e.POST("/invocations", h.Invoke, mw...)
	e.GET("/api/forecast", h.Forecast, mw...)
}

// Ping reports whether the process is up.
func (h *ForecastHandler) Ping(c echo.Context) error {
	return c.NoContent(http.StatusOK)
}

// Invoke predicts from the bars in the request body, or from the feature
// store when none are given.
func (h *ForecastHandler) Invoke(c echo.Context) error {
	start := time.Now()
	req := &models.InvocationRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	f, err := h.uc.Forecast(c.Request().Context(), req.Symbol, domrepo.NormalizeTimeframe(req.TF), req.Bars, "")
	observe("invocations", start, err)
	if err != nil {
		h.logger.Error("invocation failed", xlogger.String("symbol", req.Symbol), xlogger.Error(err))
		return xhttp.AppErrorResponse(c, toAppError(err))
	}
	return xhttp.SuccessResponse(c, f)
}

func (h *ForecastHandler) Forecast(c echo.Context) error {
	start := time.Now()
	req := &models.ForecastRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	f, err := h.uc.Forecast(c.Request().Context(), req.Symbol, domrepo.NormalizeTimeframe(req.TF), nil, req.RunID)
	observe("forecast", start, err)
	if err != nil {
		h.logger.Error("forecast failed", xlogger.String("symbol", req.Symbol), xlogger.Error(err))
		return xhttp.AppErrorResponse(c, toAppError(err))
	}
	c.Response().Header().Set(echo.HeaderCacheControl, "private, max-age=15")
	return xhttp.SuccessResponse(c, f)
}

func observe(endpoint string, start time.Time, err error) {
	metrics.ServingLatency.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.ServingErrors.WithLabelValues(endpoint).Inc()
	}
}
