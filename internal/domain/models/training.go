package models

import (
	"errors"
	"fmt"
	"math"
	"time"
)

// ErrNonFinite reports a NaN or infinite value in an epoch report.
var ErrNonFinite = errors.New("non-finite loss")

// EpochReport summarises one training epoch with the most recent values of
// each tracked series.
type EpochReport struct {
	Epoch            int     `json:"epoch_index"`
	CriticLoss       float64 `json:"critic_loss"`
	GeneratorLoss    float64 `json:"generator_loss"`
	GradientPenalty  float64 `json:"gradient_penalty"`
	MeanGradientNorm float64 `json:"mean_gradient_norm"`
	Steps            int     `json:"steps"`
}

// Validate returns ErrNonFinite naming the first field that is NaN or Inf.
func (r EpochReport) Validate() error {
	fields := []struct {
		name string
		v    float64
	}{
		{"critic_loss", r.CriticLoss},
		{"generator_loss", r.GeneratorLoss},
		{"gradient_penalty", r.GradientPenalty},
		{"mean_gradient_norm", r.MeanGradientNorm},
	}
	for _, f := range fields {
		if math.IsNaN(f.v) || math.IsInf(f.v, 0) {
			return fmt.Errorf("epoch %d %s=%v: %w", r.Epoch, f.name, f.v, ErrNonFinite)
		}
	}
	return nil
}

// ReportMessage is the wire format of an epoch report. Non-finite values are
// encoded as null since JSON has no NaN.
type ReportMessage struct {
	RunID            string    `json:"run_id"`
	Epoch            int       `json:"epoch_index"`
	CriticLoss       *float64  `json:"critic_loss"`
	GeneratorLoss    *float64  `json:"generator_loss"`
	GradientPenalty  *float64  `json:"gradient_penalty"`
	MeanGradientNorm *float64  `json:"mean_gradient_norm"`
	Steps            int       `json:"steps"`
	EmittedAt        time.Time `json:"emitted_at"`
}

// Message converts the report for publication.
func (r EpochReport) Message(runID string, at time.Time) ReportMessage {
	return ReportMessage{
		RunID:            runID,
		Epoch:            r.Epoch,
		CriticLoss:       finiteOrNil(r.CriticLoss),
		GeneratorLoss:    finiteOrNil(r.GeneratorLoss),
		GradientPenalty:  finiteOrNil(r.GradientPenalty),
		MeanGradientNorm: finiteOrNil(r.MeanGradientNorm),
		Steps:            r.Steps,
		EmittedAt:        at,
	}
}

func finiteOrNil(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}

// RunStatus is the lifecycle state of a training run.
type RunStatus string

const (
	RunQueued    RunStatus = "queued"
	RunRunning   RunStatus = "running"
	RunSucceeded RunStatus = "succeeded"
	RunFailed    RunStatus = "failed"
	RunCancelled RunStatus = "cancelled"
)

// TrainingRun is the registry entry for one training run.
type TrainingRun struct {
	ID         string      `json:"id"`
	Status     RunStatus   `json:"status"`
	Symbols    []string    `json:"symbols"`
	Timeframe  string      `json:"timeframe"`
	Lookback   int         `json:"lookback"`
	Epochs     int         `json:"epochs"`
	Windows    int         `json:"windows"`
	Skipped    []string    `json:"skipped,omitempty"`
	Error      string      `json:"error,omitempty"`
	CreatedAt  time.Time   `json:"created_at"`
	FinishedAt time.Time   `json:"finished_at,omitempty"`
	Evaluation *Evaluation `json:"evaluation,omitempty"`
}

// Evaluation holds held-out accuracy metrics in the original price scale.
type Evaluation struct {
	RMSE    float64 `json:"rmse"`
	MAE     float64 `json:"mae"`
	R2      float64 `json:"r2"`
	Samples int     `json:"samples"`
}

// Checkpoint is the persisted state after an epoch: the report plus opaque
// parameter and preprocessing blobs.
type Checkpoint struct {
	RunID        string
	Report       EpochReport
	Generator    []byte
	Critic       []byte
	Preprocessor []byte
	CreatedAt    time.Time
}

// Forecast is a single-step prediction for one instrument.
type Forecast struct {
	Symbol   string    `json:"symbol"`
	RunID    string    `json:"run_id"`
	AsOf     time.Time `json:"as_of"`
	Value    float64   `json:"value"`
	Lookback int       `json:"lookback"`
	Cached   bool      `json:"cached"`
}
