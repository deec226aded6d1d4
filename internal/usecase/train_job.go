package usecase

import (
	"context"
	"fmt"
	"time"

	"FinGAN/internal/dataset"
	"FinGAN/internal/domain/models"
	domrepo "FinGAN/internal/domain/repository"
	applogger "FinGAN/pkg/logger"
	"FinGAN/pkg/queue"
)

// TrainJobType is the queue message type of a training run.
const TrainJobType = "training.run"

// TrainJobPayload is the queued form of TrainOptions.
type TrainJobPayload struct {
	RunID     string    `json:"run_id"`
	Symbols   []string  `json:"symbols"`
	TF        string    `json:"tf"`
	From      time.Time `json:"from"`
	To        time.Time `json:"to"`
	Lookback  int       `json:"lookback"`
	Epochs    int       `json:"epochs"`
	BatchSize int       `json:"batch_size"`
	Shuffle   string    `json:"shuffle"`
	Seed      int64     `json:"seed"`
}

func payloadFor(runID string, o TrainOptions) TrainJobPayload {
	return TrainJobPayload{
		RunID:     runID,
		Symbols:   o.Symbols,
		TF:        string(o.Timeframe),
		From:      o.From,
		To:        o.To,
		Lookback:  o.Lookback,
		Epochs:    o.Epochs,
		BatchSize: o.BatchSize,
		Shuffle:   string(o.Shuffle),
		Seed:      o.Seed,
	}
}

func (p TrainJobPayload) options() (TrainOptions, error) {
	policy, err := dataset.ParseShufflePolicy(p.Shuffle)
	if err != nil {
		return TrainOptions{}, err
	}
	return TrainOptions{
		RunID:     p.RunID,
		Symbols:   p.Symbols,
		Timeframe: domrepo.NormalizeTimeframe(p.TF),
		From:      p.From,
		To:        p.To,
		Lookback:  p.Lookback,
		Epochs:    p.Epochs,
		BatchSize: p.BatchSize,
		Shuffle:   policy,
		Seed:      p.Seed,
	}, nil
}

// TrainJob runs queued training requests.
type TrainJob struct {
	uc *TrainUseCase
}

func NewTrainJob(uc *TrainUseCase) *TrainJob { return &TrainJob{uc: uc} }

func (j *TrainJob) Name() string { return "train-wgangp" }
func (j *TrainJob) Type() string { return TrainJobType }

func (j *TrainJob) Handle(ctx context.Context, payload interface{}) error {
	p, err := queue.ParsePayload[TrainJobPayload](payload)
	if err != nil {
		return err
	}
	opts, err := p.options()
	if err != nil {
		return err
	}
	_, err = j.uc.Run(ctx, opts)
	return err
}

// TrainScheduler registers runs and hands them to the queue.
type TrainScheduler struct {
	uc *TrainUseCase
	q  queue.QueueService
}

func NewTrainScheduler(uc *TrainUseCase, q queue.QueueService) *TrainScheduler {
	return &TrainScheduler{uc: uc, q: q}
}

// Schedule creates a queued run for req and enqueues it. A run that cannot
// be enqueued is marked failed.
func (s *TrainScheduler) Schedule(ctx context.Context, req models.TrainingRequest) (*models.TrainingRun, error) {
	opts, err := s.uc.Options(req)
	if err != nil {
		return nil, err
	}
	run, err := s.uc.Submit(ctx, opts)
	if err != nil {
		return nil, err
	}
	if err := s.q.PublishMessage(ctx, TrainJobType, payloadFor(run.ID, opts)); err != nil {
		run.Status = models.RunFailed
		run.Error = err.Error()
		run.FinishedAt = s.uc.now().UTC()
		if uerr := s.uc.checkpoints.UpdateRun(context.WithoutCancel(ctx), run); uerr != nil {
			s.uc.l.Error("mark run failed",
				applogger.String("run_id", run.ID),
				applogger.Error(uerr),
			)
		}
		return nil, fmt.Errorf("enqueue run %s: %w", run.ID, err)
	}
	return run, nil
}
