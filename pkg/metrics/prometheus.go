package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"FinGAN/internal/domain/models"
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	epochsTotal    *prometheus.CounterVec
	loss           *prometheus.GaugeVec
	windows        *prometheus.GaugeVec
	forecastsTotal *prometheus.CounterVec
	errorsTotal    *prometheus.CounterVec
	latency        *prometheus.HistogramVec
}

// New creates a recorder registered with reg, or the default registry when
// reg is nil.
func New(reg prometheus.Registerer) *Recorder {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)
	return &Recorder{
		epochsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fingan_training_epochs_total",
				Help: "Completed training epochs",
			},
			[]string{"run_id"},
		),
		loss: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "fingan_training_loss",
				Help: "Latest value of each training series",
			},
			[]string{"run_id", "series"},
		),
		windows: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "fingan_training_windows",
				Help: "Windows built and instruments skipped for a run",
			},
			[]string{"run_id", "kind"},
		),
		forecastsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fingan_forecasts_total",
				Help: "Forecasts served",
			},
			[]string{"symbol", "cached"},
		),
		errorsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fingan_errors_total",
				Help: "Total number of errors encountered",
			},
			[]string{"type"},
		),
		latency: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "fingan_operation_duration_seconds",
				Help:    "Duration of operations in seconds",
				Buckets: prometheus.ExponentialBuckets(0.001, 4, 10),
			},
			[]string{"operation"},
		),
	}
}

// RecordEpoch exports the report's values.
func (r *Recorder) RecordEpoch(runID string, rep models.EpochReport) {
	r.epochsTotal.WithLabelValues(runID).Inc()
	r.loss.WithLabelValues(runID, "critic_loss").Set(rep.CriticLoss)
	r.loss.WithLabelValues(runID, "generator_loss").Set(rep.GeneratorLoss)
	r.loss.WithLabelValues(runID, "gradient_penalty").Set(rep.GradientPenalty)
	r.loss.WithLabelValues(runID, "gradient_norm").Set(rep.MeanGradientNorm)
}

// RecordWindows records the dataset size of a run.
func (r *Recorder) RecordWindows(runID string, windows, skipped int) {
	r.windows.WithLabelValues(runID, "windows").Set(float64(windows))
	r.windows.WithLabelValues(runID, "skipped_instruments").Set(float64(skipped))
}

// RecordForecast counts a served forecast.
func (r *Recorder) RecordForecast(symbol string, cached bool) {
	r.forecastsTotal.WithLabelValues(symbol, strconv.FormatBool(cached)).Inc()
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}

// RecordLatency records operation latency in seconds.
func (r *Recorder) RecordLatency(op string, seconds float64) {
	r.latency.WithLabelValues(op).Observe(seconds)
}
