package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"FinGAN/internal/domain/models"
)

func TestRecorder_RecordEpoch(t *testing.T) {
	r := New(prometheus.NewRegistry())
	r.RecordEpoch("r1", models.EpochReport{Epoch: 1, CriticLoss: -1.5, GeneratorLoss: 0.5, GradientPenalty: 0.02, MeanGradientNorm: 1.1})
	r.RecordEpoch("r1", models.EpochReport{Epoch: 2, CriticLoss: -1.0})

	assert.Equal(t, 2.0, testutil.ToFloat64(r.epochsTotal.WithLabelValues("r1")))
	assert.Equal(t, -1.0, testutil.ToFloat64(r.loss.WithLabelValues("r1", "critic_loss")))
}

func TestRecorder_CountersAndWindows(t *testing.T) {
	r := New(prometheus.NewRegistry())
	r.RecordWindows("r1", 120, 2)
	r.RecordForecast("AAPL", true)
	r.RecordForecast("AAPL", true)
	r.RecordError("forecast")

	assert.Equal(t, 120.0, testutil.ToFloat64(r.windows.WithLabelValues("r1", "windows")))
	assert.Equal(t, 2.0, testutil.ToFloat64(r.windows.WithLabelValues("r1", "skipped_instruments")))
	assert.Equal(t, 2.0, testutil.ToFloat64(r.forecastsTotal.WithLabelValues("AAPL", "true")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.errorsTotal.WithLabelValues("forecast")))
}
