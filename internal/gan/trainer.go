package gan

import (
	"context"
	"fmt"

	"FinGAN/internal/dataset"
	"FinGAN/internal/domain/models"
	applogger "FinGAN/pkg/logger"
)

// Stepper performs single parameter updates. WGANGP is the production
// implementation.
type Stepper interface {
	CriticStep(b *dataset.Batch) (CriticStats, error)
	GeneratorStep(b *dataset.Batch) (float64, error)
}

// BatchSource yields the batches of one epoch in visiting order.
type BatchSource interface {
	Epoch(epoch int) ([]*dataset.Batch, error)
}

// EpochObserver receives the report emitted at the end of every epoch. An
// observer error stops training.
type EpochObserver interface {
	ObserveEpoch(ctx context.Context, report models.EpochReport) error
}

// EpochObserverFunc adapts a function to EpochObserver.
type EpochObserverFunc func(ctx context.Context, report models.EpochReport) error

func (f EpochObserverFunc) ObserveEpoch(ctx context.Context, report models.EpochReport) error {
	return f(ctx, report)
}

// TrainerConfig holds the loop settings.
type TrainerConfig struct {
	CriticIterations int
}

// Trainer runs the alternating protocol: for every batch, CriticIterations
// critic updates followed by exactly one generator update.
type Trainer struct {
	stepper   Stepper
	cfg       TrainerConfig
	history   History
	steps     int
	epochs    int
	observers []EpochObserver
	l         *applogger.Logger
}

// NewTrainer creates a trainer. CriticIterations below one defaults to 5.
func NewTrainer(stepper Stepper, cfg TrainerConfig, observers ...EpochObserver) *Trainer {
	if cfg.CriticIterations < 1 {
		cfg.CriticIterations = 5
	}
	return &Trainer{stepper: stepper, cfg: cfg, observers: observers}
}

// SetLogger injects a structured logger.
func (t *Trainer) SetLogger(l *applogger.Logger) { t.l = l }

// Observe registers an additional epoch observer.
func (t *Trainer) Observe(o EpochObserver) { t.observers = append(t.observers, o) }

// History returns the recorded losses. The returned value must not be
// modified.
func (t *Trainer) History() *History { return &t.history }

// Steps returns the number of completed generator updates.
func (t *Trainer) Steps() int { return t.steps }

// Epochs returns the number of completed epochs.
func (t *Trainer) Epochs() int { return t.epochs }

// Train runs a fixed number of epochs. Cancellation is honoured between
// batches and between epochs only, so the history is always consistent.
func (t *Trainer) Train(ctx context.Context, src BatchSource, epochs int) error {
	for e := 0; e < epochs; e++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		batches, err := src.Epoch(t.epochs)
		if err != nil {
			return fmt.Errorf("epoch %d batches: %w", t.epochs+1, err)
		}
		if _, err := t.TrainEpoch(ctx, batches); err != nil {
			return err
		}
	}
	return nil
}

// TrainEpoch trains on batches in the given order and emits the epoch report.
func (t *Trainer) TrainEpoch(ctx context.Context, batches []*dataset.Batch) (models.EpochReport, error) {
	if len(batches) == 0 {
		return models.EpochReport{}, fmt.Errorf("epoch %d: %w", t.epochs+1, ErrNoBatches)
	}
	for i, b := range batches {
		if err := ctx.Err(); err != nil {
			return models.EpochReport{}, err
		}
		for k := 0; k < t.cfg.CriticIterations; k++ {
			stats, err := t.stepper.CriticStep(b)
			if err != nil {
				return models.EpochReport{}, fmt.Errorf("epoch %d batch %d critic step %d: %w", t.epochs+1, i, k, err)
			}
			t.history.AppendCritic(stats)
		}
		loss, err := t.stepper.GeneratorStep(b)
		if err != nil {
			return models.EpochReport{}, fmt.Errorf("epoch %d batch %d generator step: %w", t.epochs+1, i, err)
		}
		t.history.AppendGenerator(loss)
		t.steps++
	}
	t.epochs++

	report := t.report()
	if t.l != nil {
		t.l.Info("epoch complete",
			applogger.Int("epoch", report.Epoch),
			applogger.Float64("critic_loss", report.CriticLoss),
			applogger.Float64("generator_loss", report.GeneratorLoss),
			applogger.Float64("gradient_penalty", report.GradientPenalty),
			applogger.Float64("gradient_norm", report.MeanGradientNorm),
			applogger.Int("steps", report.Steps),
		)
	}
	for _, o := range t.observers {
		if err := o.ObserveEpoch(ctx, report); err != nil {
			return report, fmt.Errorf("epoch %d observer: %w", report.Epoch, err)
		}
	}
	return report, nil
}

func (t *Trainer) report() models.EpochReport {
	c, g, p, n := t.history.Last()
	return models.EpochReport{
		Epoch:            t.epochs,
		CriticLoss:       c,
		GeneratorLoss:    g,
		GradientPenalty:  p,
		MeanGradientNorm: n,
		Steps:            t.steps,
	}
}
