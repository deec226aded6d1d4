package gan_test

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorgonia.org/tensor"

	"FinGAN/internal/dataset"
	"FinGAN/internal/gan"
	"FinGAN/internal/nn"
)

const (
	testLookback = 3
	testFeatures = 2
)

func testWindows(t *testing.T) *dataset.Windows {
	t.Helper()
	var x, y [][]float64
	var ids []string
	for _, id := range []string{"A", "B"} {
		for i := 0; i < 8; i++ {
			v := float64(i) / 10
			x = append(x, []float64{v, 1 - v})
			y = append(y, []float64{math.Sin(v)})
			ids = append(ids, id)
		}
	}
	w, err := dataset.BuildWindows(x, y, testLookback, ids)
	require.NoError(t, err)
	return w
}

func newModel(t *testing.T) (*nn.MLP, *nn.MLP, *gan.WGANGP) {
	t.Helper()
	gen, err := nn.NewGenerator(testLookback, testFeatures, 6, 1, 1)
	require.NoError(t, err)
	critic, err := nn.NewCritic(testLookback, 1, 6, 2)
	require.NoError(t, err)
	cfg := gan.DefaultOptimizerConfig()
	cfg.GeneratorLR, cfg.CriticLR = 1e-2, 1e-2
	return gen, critic, gan.NewWGANGP(gen, critic, gan.NewUniformSampler(3), cfg)
}

func snapshotWeights(ws []*tensor.Dense) [][]float64 {
	out := make([][]float64, len(ws))
	for i, w := range ws {
		out[i] = append([]float64(nil), w.Data().([]float64)...)
	}
	return out
}

func TestWGANGP_CriticStepUpdatesOnlyCritic(t *testing.T) {
	gen, critic, model := newModel(t)
	b, err := testWindows(t).Batch([]int{0, 1, 2, 3})
	require.NoError(t, err)

	genBefore := snapshotWeights(gen.Weights())
	criticBefore := snapshotWeights(critic.Weights())

	stats, err := model.CriticStep(b)
	require.NoError(t, err)
	assert.False(t, math.IsNaN(stats.Loss))
	assert.GreaterOrEqual(t, stats.Penalty, 0.0)
	assert.Greater(t, stats.GradNorm, 0.0)

	assert.Equal(t, genBefore, snapshotWeights(gen.Weights()))
	assert.NotEqual(t, criticBefore, snapshotWeights(critic.Weights()))
}

func TestWGANGP_CriticStepMovesHiddenLayer(t *testing.T) {
	_, critic, model := newModel(t)
	b, err := testWindows(t).Batch([]int{0, 1, 2, 3})
	require.NoError(t, err)

	before := snapshotWeights(critic.Weights())
	for i := 0; i < 2; i++ {
		_, err = model.CriticStep(b)
		require.NoError(t, err)
	}
	after := snapshotWeights(critic.Weights())

	// w0, b0 and w1 receive both the Wasserstein and penalty terms.
	for _, i := range []int{0, 1, 2} {
		assert.NotEqual(t, before[i], after[i], "critic param %d", i)
	}
}

func TestWGANGP_GeneratorStepUpdatesOnlyGenerator(t *testing.T) {
	gen, critic, model := newModel(t)
	b, err := testWindows(t).Batch([]int{4, 5, 6})
	require.NoError(t, err)

	genBefore := snapshotWeights(gen.Weights())
	criticBefore := snapshotWeights(critic.Weights())

	loss, err := model.GeneratorStep(b)
	require.NoError(t, err)
	assert.False(t, math.IsNaN(loss))

	assert.NotEqual(t, genBefore, snapshotWeights(gen.Weights()))
	assert.Equal(t, criticBefore, snapshotWeights(critic.Weights()))
}

func TestWGANGP_PredictShape(t *testing.T) {
	_, _, model := newModel(t)
	b, err := testWindows(t).All()
	require.NoError(t, err)

	out, err := model.Predict(b.Windows)
	require.NoError(t, err)
	assert.Equal(t, []int{b.Size(), 1}, []int(out.Shape()))
}

func TestWGANGP_TrainsEndToEnd(t *testing.T) {
	_, _, model := newModel(t)
	batcher, err := dataset.NewBatcher(testWindows(t), 4, dataset.ShufflePerEpoch, 5)
	require.NoError(t, err)

	tr := gan.NewTrainer(model, gan.TrainerConfig{CriticIterations: 2})
	require.NoError(t, tr.Train(context.Background(), batcher, 2))

	// 10 windows in batches of 4 -> 3 batches per epoch
	assert.Equal(t, 6, tr.Steps())
	h := tr.History()
	assert.Len(t, h.Generator, 6)
	assert.Len(t, h.Critic, 12)
	for _, v := range h.Critic {
		assert.False(t, math.IsNaN(v))
	}
}
