package api

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"FinGAN/internal/domain/models"
	xhttp "FinGAN/pkg/http"
	xlogger "FinGAN/pkg/logger"
)

// RunScheduler is implemented by *usecase.TrainScheduler.
type RunScheduler interface {
	Schedule(ctx context.Context, req models.TrainingRequest) (*models.TrainingRun, error)
}

// RunStatusReader is implemented by *usecase.TrainUseCase.
type RunStatusReader interface {
	Status(ctx context.Context, runID string) (*models.TrainingRun, []models.EpochReport, error)
}

// RunStatusResponse is the body of GET /api/training/runs/:id.
type RunStatusResponse struct {
	Run     *models.TrainingRun    `json:"run"`
	Reports []models.ReportMessage `json:"reports"`
}

// TrainingHandler starts runs and exposes their progress.
type TrainingHandler struct {
	logger    *xlogger.Logger
	scheduler RunScheduler
	status    RunStatusReader
	live      http.Handler
}

// NewTrainingHandler creates the handler. live serves the websocket report
// stream and may be nil.
func NewTrainingHandler(logger *xlogger.Logger, scheduler RunScheduler, status RunStatusReader, live http.Handler) *TrainingHandler {
	if logger == nil {
		logger = xlogger.Nop()
	}
	return &TrainingHandler{logger: logger, scheduler: scheduler, status: status, live: live}
}

func (h *TrainingHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api/training")
	g.POST("/runs", h.StartRun)
	g.GET("/runs/:id", h.GetRun)
	if h.live != nil {
		e.GET("/ws/training", echo.WrapHandler(h.live))
	}
}

// StartRun queues a training run and answers 202 with the run record.
func (h *TrainingHandler) StartRun(c echo.Context) error {
	start := time.Now()
	req := &models.TrainingRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	run, err := h.scheduler.Schedule(c.Request().Context(), *req)
	observe("training_start", start, err)
	if err != nil {
		h.logger.Error("schedule training run", xlogger.Strings("symbols", req.Symbols), xlogger.Error(err))
		return xhttp.AppErrorResponse(c, toAppError(err))
	}
	h.logger.Info("training run queued", xlogger.String("run_id", run.ID))
	return xhttp.AcceptedResponse(c, run)
}

func (h *TrainingHandler) GetRun(c echo.Context) error {
	req := &models.RunRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	run, reports, err := h.status.Status(c.Request().Context(), req.ID)
	if err != nil {
		return xhttp.AppErrorResponse(c, toAppError(err))
	}
	now := time.Now().UTC()
	msgs := make([]models.ReportMessage, 0, len(reports))
	for _, r := range reports {
		msgs = append(msgs, r.Message(run.ID, now))
	}
	return xhttp.SuccessResponse(c, RunStatusResponse{Run: run, Reports: msgs})
}
