package usecase

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"FinGAN/internal/dataset"
	"FinGAN/internal/domain/models"
	domrepo "FinGAN/internal/domain/repository"
	"FinGAN/internal/gan"
	"FinGAN/internal/services/features"
	applogger "FinGAN/pkg/logger"
)

func testTrainConfig() TrainConfig {
	return TrainConfig{
		Features:         features.FrameConfig{YearPeriod: 10, OneHot: true},
		SplitFraction:    0.8,
		History:          365 * 24 * time.Hour,
		CriticIterations: 1,
		Optimizer:        gan.DefaultOptimizerConfig(),
		GeneratorHidden:  4,
		CriticHidden:     4,
		Outputs:          1,
		AbortOnNonFinite: true,
	}
}

func testOptions() TrainOptions {
	return TrainOptions{
		Symbols:   []string{"AAPL", "MSFT"},
		Timeframe: domrepo.TF1d,
		Lookback:  3,
		Epochs:    2,
		BatchSize: 8,
		Shuffle:   dataset.ShufflePerEpoch,
		Seed:      7,
	}
}

func newTestStores() (*memFeatureStore, *memCheckpointStore) {
	fs := &memFeatureStore{candles: map[string][]models.Candle{
		"AAPL": dailyCandles("AAPL", 40, 150),
		"MSFT": dailyCandles("MSFT", 40, 300),
	}}
	return fs, newMemCheckpointStore()
}

func TestTrainUseCase_Run(t *testing.T) {
	fs, cps := newTestStores()
	pub := &recordingPublisher{err: errors.New("broker down")}
	bc := &recordingBroadcaster{}
	uc := NewTrainUseCase(fs, cps, testTrainConfig(), nil)
	uc.SetPublisher(pub)
	uc.SetBroadcaster(bc)

	res, err := uc.Run(context.Background(), testOptions())
	require.NoError(t, err, "publish failures are not fatal")

	// 40 bars lose the first row to the log return: 39 rows, 31 train rows
	// per symbol, 28 windows each.
	run := res.Run
	assert.Equal(t, models.RunSucceeded, run.Status)
	assert.Equal(t, 56, run.Windows)
	assert.Empty(t, run.Skipped)

	// ceil(56/8) = 7 batches per epoch.
	assert.Len(t, res.History.Generator, 14)
	assert.Len(t, res.History.Critic, 14)
	assert.Len(t, pub.reports, 2)
	assert.Equal(t, []string{run.ID, run.ID}, bc.runIDs)

	reports, err := cps.ListReports(context.Background(), run.ID)
	require.NoError(t, err)
	require.Len(t, reports, 2)
	assert.Equal(t, 1, reports[0].Epoch)
	assert.Equal(t, 14, reports[1].Steps)

	cp, err := cps.LatestCheckpoint(context.Background(), run.ID)
	require.NoError(t, err)
	assert.NotEmpty(t, cp.Generator)
	assert.NotEmpty(t, cp.Critic)
	pre, err := features.UnmarshalPreprocessor(cp.Preprocessor)
	require.NoError(t, err)
	assert.Equal(t, 3, pre.Lookback)
	assert.Equal(t, []string{"AAPL", "MSFT"}, pre.Encoder.Categories)

	// 8 held-out rows per symbol leave 5 windows each.
	require.NotNil(t, run.Evaluation)
	assert.Equal(t, 10, run.Evaluation.Samples)

	stored, err := cps.GetRun(context.Background(), run.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RunSucceeded, stored.Status)
	assert.False(t, stored.FinishedAt.IsZero())
}

func TestTrainUseCase_SkipsShortInstruments(t *testing.T) {
	fs, cps := newTestStores()
	fs.candles["TINY"] = dailyCandles("TINY", 4, 10)
	opts := testOptions()
	opts.Symbols = append(opts.Symbols, "TINY")
	opts.Epochs = 1

	res, err := NewTrainUseCase(fs, cps, testTrainConfig(), nil).Run(context.Background(), opts)
	require.NoError(t, err)
	assert.Equal(t, []string{"TINY"}, res.Run.Skipped)
	assert.Equal(t, 56, res.Run.Windows)
}

func TestTrainUseCase_NoWindows(t *testing.T) {
	fs := &memFeatureStore{candles: map[string][]models.Candle{"AAPL": dailyCandles("AAPL", 3, 100)}}
	cps := newMemCheckpointStore()
	opts := testOptions()
	opts.Symbols = []string{"AAPL"}

	res, err := NewTrainUseCase(fs, cps, testTrainConfig(), nil).Run(context.Background(), opts)
	require.ErrorIs(t, err, ErrNoWindows)
	assert.Equal(t, models.RunFailed, res.Run.Status)
}

func TestTrainUseCase_Cancelled(t *testing.T) {
	fs, cps := newTestStores()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := NewTrainUseCase(fs, cps, testTrainConfig(), nil).Run(ctx, testOptions())
	require.ErrorIs(t, err, context.Canceled)
	stored, gerr := cps.GetRun(context.Background(), res.Run.ID)
	require.NoError(t, gerr)
	assert.Equal(t, models.RunCancelled, stored.Status)
}

func TestTrainUseCase_NoSymbols(t *testing.T) {
	fs, cps := newTestStores()
	_, err := NewTrainUseCase(fs, cps, testTrainConfig(), nil).Run(context.Background(), TrainOptions{})
	assert.ErrorIs(t, err, ErrNoSymbols)
}

func TestTrainScheduler_ScheduleAndHandle(t *testing.T) {
	fs, cps := newTestStores()
	uc := NewTrainUseCase(fs, cps, testTrainConfig(), nil)
	q := &recordingQueue{}
	s := NewTrainScheduler(uc, q)

	run, err := s.Schedule(context.Background(), models.TrainingRequest{
		Symbols: []string{"AAPL"}, TF: "1d", Lookback: 3, Epochs: 1, BatchSize: 16, Shuffle: "sequential", Seed: 1,
	})
	require.NoError(t, err)
	assert.Equal(t, models.RunQueued, run.Status)
	require.Equal(t, []string{TrainJobType}, q.types)

	raw, err := json.Marshal(q.payloads[0])
	require.NoError(t, err)
	job := NewTrainJob(uc)
	require.NoError(t, job.Handle(context.Background(), json.RawMessage(raw)))

	stored, reports, err := uc.Status(context.Background(), run.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RunSucceeded, stored.Status)
	assert.Len(t, reports, 1)
}

func TestTrainScheduler_EnqueueFailureMarksRunFailed(t *testing.T) {
	fs, cps := newTestStores()
	uc := NewTrainUseCase(fs, cps, testTrainConfig(), nil)
	s := NewTrainScheduler(uc, &recordingQueue{err: errors.New("redis down")})

	_, err := s.Schedule(context.Background(), models.TrainingRequest{Symbols: []string{"AAPL"}, Lookback: 3, Epochs: 1, BatchSize: 8})
	require.Error(t, err)
	run, lerr := cps.LatestRun(context.Background(), models.RunFailed)
	require.NoError(t, lerr)
	assert.Contains(t, run.Error, "redis down")
}

// brokenUpdateStore accepts new runs but fails every status update.
type brokenUpdateStore struct {
	*memCheckpointStore
	err error
}

func (s brokenUpdateStore) UpdateRun(context.Context, *models.TrainingRun) error { return s.err }

func TestTrainScheduler_EnqueueFailureLogsLostStatus(t *testing.T) {
	fs, cps := newTestStores()
	var buf bytes.Buffer
	store := brokenUpdateStore{memCheckpointStore: cps, err: errors.New("disk full")}
	uc := NewTrainUseCase(fs, store, testTrainConfig(), applogger.NewWithWriter(&buf))
	s := NewTrainScheduler(uc, &recordingQueue{err: errors.New("redis down")})

	_, err := s.Schedule(context.Background(), models.TrainingRequest{Symbols: []string{"AAPL"}, Lookback: 3, Epochs: 1, BatchSize: 8})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "redis down")

	logged := buf.String()
	assert.Contains(t, logged, "mark run failed")
	assert.Contains(t, logged, "disk full")

	// the run is still recorded as queued since the update never landed
	run, lerr := cps.LatestRun(context.Background(), models.RunQueued)
	require.NoError(t, lerr)
	assert.Empty(t, run.Error)
}
