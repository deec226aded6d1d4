package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	"gorgonia.org/tensor"

	"FinGAN/internal/domain/models"
	domrepo "FinGAN/internal/domain/repository"
	"FinGAN/internal/gan"
	"FinGAN/internal/nn"
	"FinGAN/internal/service/cache"
	"FinGAN/internal/services/features"
	applogger "FinGAN/pkg/logger"
)

// ForecastConfig controls serving.
type ForecastConfig struct {
	RunID    string
	CacheTTL time.Duration
	MaxBars  int
}

type servingModel struct {
	runID string
	epoch int
	gen   *nn.MLP
	pre   *features.Preprocessor
}

// ForecastUseCase serves one-step forecasts from the latest checkpoint of a
// finished run.
type ForecastUseCase struct {
	store       domrepo.FeatureStore
	checkpoints domrepo.CheckpointStore
	cache       cache.BytesCache
	metrics     domrepo.Metrics
	cfg         ForecastConfig
	l           *applogger.Logger

	mu    sync.Mutex
	model *servingModel
}

func NewForecastUseCase(store domrepo.FeatureStore, checkpoints domrepo.CheckpointStore, c cache.BytesCache, cfg ForecastConfig, l *applogger.Logger) *ForecastUseCase {
	if l == nil {
		l = applogger.Nop()
	}
	if cfg.MaxBars <= 0 {
		cfg.MaxBars = 5000
	}
	return &ForecastUseCase{store: store, checkpoints: checkpoints, cache: c, cfg: cfg, l: l}
}

func (u *ForecastUseCase) SetMetrics(m domrepo.Metrics) { u.metrics = m }

// Forecast predicts the next close of symbol. When bars is empty the most
// recent bars are read from the feature store. runID selects a model;
// empty means the configured run or else the latest succeeded one.
func (u *ForecastUseCase) Forecast(ctx context.Context, symbol string, tf domrepo.Timeframe, bars []models.Candle, runID string) (*models.Forecast, error) {
	start := time.Now()
	symbol = strings.ToUpper(symbol)
	if len(bars) > u.cfg.MaxBars {
		return nil, fmt.Errorf("%d bars, limit %d: %w", len(bars), u.cfg.MaxBars, ErrTooManyBars)
	}

	m, err := u.resolve(ctx, runID)
	if err != nil {
		u.recordError()
		return nil, err
	}
	if len(bars) == 0 {
		bars, err = u.store.GetLatestNCandles(ctx, symbol, u.barsNeeded(m.pre), tf)
		if err != nil {
			u.recordError()
			return nil, fmt.Errorf("load %s candles: %w", symbol, err)
		}
	}
	if len(bars) == 0 {
		return nil, fmt.Errorf("%s: no bars: %w", symbol, ErrInsufficientHistory)
	}
	for i := range bars {
		bars[i].Symbol = symbol
	}

	key := cache.ForecastKey(m.runID, symbol, string(tf), bars[len(bars)-1].Bucket)
	if f, ok := u.cached(ctx, key); ok {
		u.record(symbol, true, start)
		return f, nil
	}

	value, asOf, err := u.predict(m, bars)
	if err != nil {
		u.recordError()
		return nil, fmt.Errorf("%s: %w", symbol, err)
	}
	f := &models.Forecast{Symbol: symbol, RunID: m.runID, AsOf: asOf, Value: value, Lookback: m.pre.Lookback}
	u.remember(ctx, key, f)
	u.record(symbol, false, start)
	return f, nil
}

// resolve returns the serving model for runID, loading it when the run or
// its latest epoch changed since the last call.
func (u *ForecastUseCase) resolve(ctx context.Context, runID string) (*servingModel, error) {
	if runID == "" {
		runID = u.cfg.RunID
	}
	if runID == "" {
		run, err := u.checkpoints.LatestRun(ctx, models.RunSucceeded)
		if errors.Is(err, domrepo.ErrNotFound) {
			return nil, ErrNoModel
		}
		if err != nil {
			return nil, fmt.Errorf("latest run: %w", err)
		}
		runID = run.ID
	}

	cp, err := u.checkpoints.LatestCheckpoint(ctx, runID)
	if errors.Is(err, domrepo.ErrNotFound) {
		return nil, fmt.Errorf("run %s: %w", runID, ErrNoModel)
	}
	if err != nil {
		return nil, fmt.Errorf("load checkpoint: %w", err)
	}

	u.mu.Lock()
	defer u.mu.Unlock()
	if m := u.model; m != nil && m.runID == runID && m.epoch == cp.Report.Epoch {
		return m, nil
	}
	if len(cp.Generator) == 0 || len(cp.Preprocessor) == 0 {
		return nil, fmt.Errorf("run %s epoch %d has no parameters: %w", runID, cp.Report.Epoch, ErrNoModel)
	}
	gen, err := nn.FromSnapshot(cp.Generator)
	if err != nil {
		return nil, fmt.Errorf("restore generator: %w", err)
	}
	pre, err := features.UnmarshalPreprocessor(cp.Preprocessor)
	if err != nil {
		return nil, err
	}
	u.model = &servingModel{runID: runID, epoch: cp.Report.Epoch, gen: gen, pre: pre}
	u.l.Info("serving model loaded", applogger.String("run_id", runID), applogger.Int("epoch", cp.Report.Epoch))
	return u.model, nil
}

// barsNeeded covers the lookback plus the rows lost to indicator warm-up.
func (u *ForecastUseCase) barsNeeded(pre *features.Preprocessor) int {
	n := pre.Lookback + 1 + pre.Frame.VolatilityWindow
	return min(n, u.cfg.MaxBars)
}

func (u *ForecastUseCase) predict(m *servingModel, bars []models.Candle) (float64, time.Time, error) {
	frame, err := m.pre.Builder().Build(bars)
	if err != nil {
		return 0, time.Time{}, err
	}
	if err := m.pre.Check(frame); err != nil {
		return 0, time.Time{}, err
	}
	l := m.pre.Lookback
	if frame.Len() < l {
		return 0, time.Time{}, fmt.Errorf("%d usable rows, lookback %d: %w", frame.Len(), l, ErrInsufficientHistory)
	}

	recent := frame.Subset(tail(frame.Len(), l))
	x, _, _ := recent.Matrix()
	x, err = m.pre.X.Transform(x)
	if err != nil {
		return 0, time.Time{}, err
	}
	d := frame.Width()
	flat := make([]float64, 0, l*d)
	for _, r := range x {
		flat = append(flat, r...)
	}

	out, err := gan.Predict(m.gen, tensor.New(tensor.WithShape(1, l, d), tensor.WithBacking(flat)))
	if err != nil {
		return 0, time.Time{}, err
	}
	y, err := m.pre.Y.InverseTransform([][]float64{out.Data().([]float64)})
	if err != nil {
		return 0, time.Time{}, err
	}
	if v := y[0][0]; math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, time.Time{}, fmt.Errorf("forecast %v: %w", v, models.ErrNonFinite)
	}
	return y[0][0], recent.Rows[l-1].Time, nil
}

func (u *ForecastUseCase) cached(ctx context.Context, key string) (*models.Forecast, bool) {
	if u.cache == nil {
		return nil, false
	}
	b, ok, err := u.cache.GetBytes(ctx, key)
	if err != nil {
		u.l.Warn("forecast cache read failed", applogger.Error(err))
		return nil, false
	}
	if !ok {
		return nil, false
	}
	var f models.Forecast
	if err := json.Unmarshal(b, &f); err != nil {
		return nil, false
	}
	f.Cached = true
	return &f, true
}

func (u *ForecastUseCase) remember(ctx context.Context, key string, f *models.Forecast) {
	if u.cache == nil || u.cfg.CacheTTL <= 0 {
		return
	}
	b, err := json.Marshal(f)
	if err != nil {
		return
	}
	if err := u.cache.SetBytes(ctx, key, b, u.cfg.CacheTTL); err != nil {
		u.l.Warn("forecast cache write failed", applogger.Error(err))
	}
}

func (u *ForecastUseCase) record(symbol string, cached bool, start time.Time) {
	if u.metrics == nil {
		return
	}
	u.metrics.RecordForecast(symbol, cached)
	u.metrics.RecordLatency("forecast", time.Since(start).Seconds())
}

func (u *ForecastUseCase) recordError() {
	if u.metrics != nil {
		u.metrics.RecordError("forecast")
	}
}

func tail(n, k int) []int {
	idx := make([]int, k)
	for i := range idx {
		idx[i] = n - k + i
	}
	return idx
}
