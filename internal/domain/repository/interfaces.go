package repository

import (
	"context"
	"errors"

	"FinGAN/internal/domain/models"
)

// ErrNotFound is returned by stores when a run or checkpoint does not exist.
var ErrNotFound = errors.New("not found")

// CheckpointStore is the registry of training runs and their per-epoch
// checkpoints.
type CheckpointStore interface {
	CreateRun(ctx context.Context, run *models.TrainingRun) error
	UpdateRun(ctx context.Context, run *models.TrainingRun) error
	GetRun(ctx context.Context, id string) (*models.TrainingRun, error)
	// LatestRun returns the most recently created run with the given status.
	LatestRun(ctx context.Context, status models.RunStatus) (*models.TrainingRun, error)
	SaveCheckpoint(ctx context.Context, cp *models.Checkpoint) error
	LatestCheckpoint(ctx context.Context, runID string) (*models.Checkpoint, error)
	ListReports(ctx context.Context, runID string) ([]models.EpochReport, error)
	Close() error
}

// ReportPublisher ships epoch reports to downstream consumers.
type ReportPublisher interface {
	PublishReport(ctx context.Context, runID string, r models.EpochReport) error
	Close() error
}

// ReportBroadcaster fans epoch reports out to live subscribers.
type ReportBroadcaster interface {
	Broadcast(runID string, r models.EpochReport)
}

// Metrics records training and serving telemetry.
type Metrics interface {
	RecordEpoch(runID string, r models.EpochReport)
	RecordWindows(runID string, windows, skipped int)
	RecordForecast(symbol string, cached bool)
	RecordError(kind string)
	RecordLatency(op string, seconds float64)
}
