package gan_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"FinGAN/internal/dataset"
	"FinGAN/internal/domain/models"
	"FinGAN/internal/gan"
)

// recordingStepper logs every call and returns increasing losses.
type recordingStepper struct {
	calls     []string
	batches   []int
	failAt    int
	onCall    func(n int)
	criticErr error
}

func (s *recordingStepper) CriticStep(b *dataset.Batch) (gan.CriticStats, error) {
	s.record("critic", b)
	if s.failAt > 0 && len(s.calls) == s.failAt {
		return gan.CriticStats{}, s.criticErr
	}
	n := float64(len(s.calls))
	return gan.CriticStats{Loss: n, Penalty: n / 10, GradNorm: n / 100}, nil
}

func (s *recordingStepper) GeneratorStep(b *dataset.Batch) (float64, error) {
	s.record("generator", b)
	return -float64(len(s.calls)), nil
}

func (s *recordingStepper) record(kind string, b *dataset.Batch) {
	s.calls = append(s.calls, kind)
	s.batches = append(s.batches, b.Index[0])
	if s.onCall != nil {
		s.onCall(len(s.calls))
	}
}

type staticSource [][]*dataset.Batch

func (s staticSource) Epoch(epoch int) ([]*dataset.Batch, error) {
	return s[epoch%len(s)], nil
}

func threeBatches(t *testing.T) []*dataset.Batch {
	t.Helper()
	w := testWindows(t)
	out := make([]*dataset.Batch, 0, 3)
	for _, i := range []int{0, 3, 6} {
		b, err := w.Batch([]int{i, i + 1})
		require.NoError(t, err)
		out = append(out, b)
	}
	return out
}

func TestTrainer_CriticStepsPrecedeEachGeneratorStep(t *testing.T) {
	st := &recordingStepper{}
	tr := gan.NewTrainer(st, gan.TrainerConfig{CriticIterations: 3})

	_, err := tr.TrainEpoch(context.Background(), threeBatches(t))
	require.NoError(t, err)

	want := []string{}
	for i := 0; i < 3; i++ {
		want = append(want, "critic", "critic", "critic", "generator")
	}
	assert.Equal(t, want, st.calls)
	assert.Equal(t, []int{0, 0, 0, 0, 3, 3, 3, 3, 6, 6, 6, 6}, st.batches)
	assert.Equal(t, 3, tr.Steps())
	assert.Len(t, tr.History().Critic, 9)
	assert.Len(t, tr.History().Penalty, 9)
	assert.Len(t, tr.History().GradNorm, 9)
	assert.Len(t, tr.History().Generator, 3)
}

func TestTrainer_DefaultCriticIterations(t *testing.T) {
	st := &recordingStepper{}
	tr := gan.NewTrainer(st, gan.TrainerConfig{})
	_, err := tr.TrainEpoch(context.Background(), threeBatches(t)[:1])
	require.NoError(t, err)
	assert.Equal(t, []string{"critic", "critic", "critic", "critic", "critic", "generator"}, st.calls)
}

func TestTrainer_ReportCarriesLatestValues(t *testing.T) {
	st := &recordingStepper{}
	var reports []models.EpochReport
	obs := gan.EpochObserverFunc(func(_ context.Context, r models.EpochReport) error {
		reports = append(reports, r)
		return nil
	})
	tr := gan.NewTrainer(st, gan.TrainerConfig{CriticIterations: 2}, obs)

	batches := threeBatches(t)
	require.NoError(t, tr.Train(context.Background(), staticSource{batches}, 2))
	require.Len(t, reports, 2)

	// epoch 1: 9 calls; last critic call was #8, generator #9
	assert.Equal(t, models.EpochReport{
		Epoch: 1, CriticLoss: 8, GeneratorLoss: -9, GradientPenalty: 0.8, MeanGradientNorm: 0.08, Steps: 3,
	}, reports[0])
	assert.Equal(t, 2, reports[1].Epoch)
	assert.Equal(t, 6, reports[1].Steps)
	assert.Equal(t, -18.0, reports[1].GeneratorLoss)
	assert.NoError(t, reports[1].Validate())
}

func TestTrainer_CancellationBetweenBatches(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	st := &recordingStepper{}
	// cancel during the first generator step; the batch still completes
	st.onCall = func(n int) {
		if n == 2 {
			cancel()
		}
	}
	tr := gan.NewTrainer(st, gan.TrainerConfig{CriticIterations: 1})

	_, err := tr.TrainEpoch(ctx, threeBatches(t))
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, []string{"critic", "generator"}, st.calls)
	assert.Equal(t, 1, tr.Steps())
	assert.Len(t, tr.History().Generator, 1)
	assert.Len(t, tr.History().Critic, 1)
}

func TestTrainer_StepErrorPropagates(t *testing.T) {
	boom := errors.New("boom")
	st := &recordingStepper{failAt: 2, criticErr: boom}
	tr := gan.NewTrainer(st, gan.TrainerConfig{CriticIterations: 3})

	_, err := tr.TrainEpoch(context.Background(), threeBatches(t))
	require.ErrorIs(t, err, boom)
	assert.Len(t, st.calls, 2)
	assert.Zero(t, tr.Steps())
}

func TestTrainer_ObserverErrorStopsTraining(t *testing.T) {
	boom := errors.New("sink down")
	st := &recordingStepper{}
	tr := gan.NewTrainer(st, gan.TrainerConfig{CriticIterations: 1})
	tr.Observe(gan.EpochObserverFunc(func(context.Context, models.EpochReport) error { return boom }))

	err := tr.Train(context.Background(), staticSource{threeBatches(t)}, 3)
	require.ErrorIs(t, err, boom)
	assert.Equal(t, 1, tr.Epochs())
}

func TestTrainer_EmptyEpoch(t *testing.T) {
	tr := gan.NewTrainer(&recordingStepper{}, gan.TrainerConfig{})
	_, err := tr.TrainEpoch(context.Background(), nil)
	assert.ErrorIs(t, err, gan.ErrNoBatches)
}
