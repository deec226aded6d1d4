package usecase

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"

	"FinGAN/internal/dataset"
	"FinGAN/internal/domain/models"
	domrepo "FinGAN/internal/domain/repository"
	"FinGAN/internal/eval"
	"FinGAN/internal/gan"
	"FinGAN/internal/nn"
	"FinGAN/internal/services/features"
	applogger "FinGAN/pkg/logger"
)

// TrainConfig holds the settings shared by every run.
type TrainConfig struct {
	Features         features.FrameConfig
	SplitFraction    float64
	History          time.Duration
	CriticIterations int
	Optimizer        gan.OptimizerConfig
	GeneratorHidden  int
	CriticHidden     int
	Outputs          int
	AbortOnNonFinite bool
}

// TrainOptions are the per-run settings.
type TrainOptions struct {
	RunID     string
	Symbols   []string
	Timeframe domrepo.Timeframe
	From, To  time.Time
	Lookback  int
	Epochs    int
	BatchSize int
	Shuffle   dataset.ShufflePolicy
	Seed      int64
}

// TrainResult is the outcome of a finished run.
type TrainResult struct {
	Run     *models.TrainingRun
	History *gan.History
}

// TrainUseCase loads candles, builds the windowed dataset, trains the
// WGAN-GP and records every epoch.
type TrainUseCase struct {
	store       domrepo.FeatureStore
	checkpoints domrepo.CheckpointStore
	publisher   domrepo.ReportPublisher
	broadcaster domrepo.ReportBroadcaster
	metrics     domrepo.Metrics
	cfg         TrainConfig
	l           *applogger.Logger
	now         func() time.Time
}

func NewTrainUseCase(store domrepo.FeatureStore, checkpoints domrepo.CheckpointStore, cfg TrainConfig, l *applogger.Logger) *TrainUseCase {
	if l == nil {
		l = applogger.Nop()
	}
	if cfg.SplitFraction <= 0 || cfg.SplitFraction > 1 {
		cfg.SplitFraction = 0.8
	}
	if cfg.Outputs == 0 {
		cfg.Outputs = 1
	}
	return &TrainUseCase{store: store, checkpoints: checkpoints, cfg: cfg, l: l, now: time.Now}
}

// SetPublisher enables publishing epoch reports. Publish failures are logged.
func (u *TrainUseCase) SetPublisher(p domrepo.ReportPublisher) { u.publisher = p }

// SetBroadcaster enables live report fan-out.
func (u *TrainUseCase) SetBroadcaster(b domrepo.ReportBroadcaster) { u.broadcaster = b }

func (u *TrainUseCase) SetMetrics(m domrepo.Metrics) { u.metrics = m }

// Options builds run options from an API request, resolving the history
// range against the current time.
func (u *TrainUseCase) Options(req models.TrainingRequest) (TrainOptions, error) {
	if len(req.Symbols) == 0 {
		return TrainOptions{}, ErrNoSymbols
	}
	policy, err := dataset.ParseShufflePolicy(req.Shuffle)
	if err != nil {
		return TrainOptions{}, err
	}
	to := u.now().UTC()
	return TrainOptions{
		Symbols:   req.Symbols,
		Timeframe: domrepo.NormalizeTimeframe(req.TF),
		From:      to.Add(-u.cfg.History),
		To:        to,
		Lookback:  req.Lookback,
		Epochs:    req.Epochs,
		BatchSize: req.BatchSize,
		Shuffle:   policy,
		Seed:      req.Seed,
	}, nil
}

// Submit registers a queued run for opts and returns it with its ID set.
func (u *TrainUseCase) Submit(ctx context.Context, opts TrainOptions) (*models.TrainingRun, error) {
	run := &models.TrainingRun{
		ID:        uuid.NewString(),
		Status:    models.RunQueued,
		Symbols:   opts.Symbols,
		Timeframe: string(opts.Timeframe),
		Lookback:  opts.Lookback,
		Epochs:    opts.Epochs,
		CreatedAt: u.now().UTC(),
	}
	if err := u.checkpoints.CreateRun(ctx, run); err != nil {
		return nil, fmt.Errorf("create run: %w", err)
	}
	return run, nil
}

// Run executes a training run. When opts.RunID names a submitted run that
// run is used, otherwise a new one is registered. The run's final status is
// persisted even when ctx is cancelled.
func (u *TrainUseCase) Run(ctx context.Context, opts TrainOptions) (*TrainResult, error) {
	if len(opts.Symbols) == 0 {
		return nil, ErrNoSymbols
	}
	run, err := u.begin(ctx, opts)
	if err != nil {
		return nil, err
	}
	l := u.l.With(applogger.String("run_id", run.ID))

	start := u.now()
	history, err := u.train(ctx, run, opts, l)
	u.finish(context.WithoutCancel(ctx), run, err, l)
	if u.metrics != nil {
		u.metrics.RecordLatency("train_run", u.now().Sub(start).Seconds())
		if err != nil {
			u.metrics.RecordError("train_run")
		}
	}
	return &TrainResult{Run: run, History: history}, err
}

func (u *TrainUseCase) begin(ctx context.Context, opts TrainOptions) (*models.TrainingRun, error) {
	if opts.RunID == "" {
		return u.Submit(ctx, opts)
	}
	run, err := u.checkpoints.GetRun(ctx, opts.RunID)
	if err != nil {
		return nil, fmt.Errorf("load run %s: %w", opts.RunID, err)
	}
	run.Error = ""
	return run, nil
}

// Status returns a run and every epoch report recorded for it.
func (u *TrainUseCase) Status(ctx context.Context, runID string) (*models.TrainingRun, []models.EpochReport, error) {
	run, err := u.checkpoints.GetRun(ctx, runID)
	if err != nil {
		return nil, nil, err
	}
	reports, err := u.checkpoints.ListReports(ctx, runID)
	if err != nil {
		return nil, nil, fmt.Errorf("list reports: %w", err)
	}
	return run, reports, nil
}

func (u *TrainUseCase) finish(ctx context.Context, run *models.TrainingRun, err error, l *applogger.Logger) {
	run.FinishedAt = u.now().UTC()
	switch {
	case err == nil:
		run.Status = models.RunSucceeded
	case errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded):
		run.Status = models.RunCancelled
		run.Error = err.Error()
	default:
		run.Status = models.RunFailed
		run.Error = err.Error()
	}
	if uerr := u.checkpoints.UpdateRun(ctx, run); uerr != nil {
		l.Error("update run failed", applogger.Error(uerr))
	}
	if err != nil {
		l.Warn("training run ended", applogger.String("status", string(run.Status)), applogger.Error(err))
		return
	}
	l.Info("training run succeeded", applogger.Int("windows", run.Windows), applogger.Any("evaluation", run.Evaluation))
}

func (u *TrainUseCase) train(ctx context.Context, run *models.TrainingRun, opts TrainOptions, l *applogger.Logger) (*gan.History, error) {
	frameCfg := u.cfg.Features
	frameCfg.Timeframe = string(opts.Timeframe)

	series, err := u.load(ctx, opts, l)
	if err != nil {
		return nil, err
	}
	enc := &features.OneHotEncoder{}
	enc.Fit(opts.Symbols)
	frame, err := features.NewFrameBuilder(frameCfg, enc).Build(series...)
	if err != nil {
		return nil, fmt.Errorf("build frame: %w", err)
	}

	_, _, ids := frame.Matrix()
	trainIdx, testIdx, err := dataset.SplitChronological(ids, u.cfg.SplitFraction)
	if err != nil {
		return nil, fmt.Errorf("split: %w", err)
	}
	if len(trainIdx) == 0 {
		run.Skipped = opts.Symbols
		return nil, ErrNoWindows
	}
	pre := &features.Preprocessor{Frame: frameCfg, Encoder: *enc, Columns: frame.Columns, Lookback: opts.Lookback}

	xTr, yTr, idsTr := frame.Subset(trainIdx).Matrix()
	if xTr, err = pre.X.FitTransform(xTr); err != nil {
		return nil, fmt.Errorf("fit feature scaler: %w", err)
	}
	if yTr, err = pre.Y.FitTransform(yTr); err != nil {
		return nil, fmt.Errorf("fit target scaler: %w", err)
	}
	windows, err := dataset.BuildWindows(xTr, yTr, opts.Lookback, idsTr)
	if err != nil {
		return nil, fmt.Errorf("build windows: %w", err)
	}
	if len(windows.Skipped) > 0 {
		l.Warn("instruments too short for lookback",
			applogger.Strings("skipped", windows.Skipped),
			applogger.Int("lookback", opts.Lookback))
	}
	run.Windows = windows.Len()
	run.Skipped = windows.Skipped
	if u.metrics != nil {
		u.metrics.RecordWindows(run.ID, windows.Len(), len(windows.Skipped))
	}
	if windows.Len() == 0 {
		return nil, ErrNoWindows
	}
	if windows.Outputs != u.cfg.Outputs {
		return nil, fmt.Errorf("targets have %d outputs, model %d: %w", windows.Outputs, u.cfg.Outputs, dataset.ErrShapeMismatch)
	}

	gen, err := nn.NewGenerator(opts.Lookback, windows.Features, u.cfg.GeneratorHidden, windows.Outputs, opts.Seed)
	if err != nil {
		return nil, err
	}
	critic, err := nn.NewCritic(opts.Lookback, windows.Outputs, u.cfg.CriticHidden, opts.Seed+1)
	if err != nil {
		return nil, err
	}
	model := gan.NewWGANGP(gen, critic, gan.NewUniformSampler(opts.Seed), u.cfg.Optimizer)
	batcher, err := dataset.NewBatcher(windows, opts.BatchSize, opts.Shuffle, opts.Seed)
	if err != nil {
		return nil, err
	}
	preBlob, err := pre.Marshal()
	if err != nil {
		return nil, fmt.Errorf("encode preprocessor: %w", err)
	}

	trainer := gan.NewTrainer(model, gan.TrainerConfig{CriticIterations: u.cfg.CriticIterations}, u.observers(run.ID, gen, critic, preBlob, l)...)
	trainer.SetLogger(l)

	run.Status = models.RunRunning
	if err := u.checkpoints.UpdateRun(ctx, run); err != nil {
		return nil, fmt.Errorf("mark run running: %w", err)
	}
	l.Info("training started",
		applogger.Int("windows", windows.Len()),
		applogger.Int("features", windows.Features),
		applogger.Int("epochs", opts.Epochs),
		applogger.Int("batch_size", opts.BatchSize))

	if err := trainer.Train(ctx, batcher, opts.Epochs); err != nil {
		return trainer.History().Clone(), err
	}

	run.Evaluation = u.evaluate(model, pre, frame.Subset(testIdx), opts.Lookback, l)
	return trainer.History().Clone(), nil
}

// load fetches each symbol's candles. Symbols without data are logged and
// left out of the frame.
func (u *TrainUseCase) load(ctx context.Context, opts TrainOptions, l *applogger.Logger) ([][]models.Candle, error) {
	series := make([][]models.Candle, 0, len(opts.Symbols))
	for _, sym := range opts.Symbols {
		cs, err := u.store.GetCandles(ctx, sym, opts.From, opts.To, opts.Timeframe)
		if err != nil {
			return nil, fmt.Errorf("load %s candles: %w", sym, err)
		}
		if len(cs) == 0 {
			l.Warn("no candles for symbol", applogger.String("symbol", sym))
			continue
		}
		for i := range cs {
			if cs[i].Symbol == "" {
				cs[i].Symbol = sym
			}
		}
		series = append(series, cs)
	}
	return series, nil
}

func (u *TrainUseCase) observers(runID string, gen, critic *nn.MLP, preBlob []byte, l *applogger.Logger) []gan.EpochObserver {
	return []gan.EpochObserver{
		gan.EpochObserverFunc(func(_ context.Context, r models.EpochReport) error {
			if err := r.Validate(); err != nil {
				if u.cfg.AbortOnNonFinite {
					return err
				}
				l.Warn("non-finite epoch report", applogger.Error(err))
			}
			return nil
		}),
		gan.EpochObserverFunc(func(ctx context.Context, r models.EpochReport) error {
			genBlob, err := gen.Snapshot()
			if err != nil {
				return err
			}
			criticBlob, err := critic.Snapshot()
			if err != nil {
				return err
			}
			cp := &models.Checkpoint{
				RunID:        runID,
				Report:       r,
				Generator:    genBlob,
				Critic:       criticBlob,
				Preprocessor: preBlob,
				CreatedAt:    u.now().UTC(),
			}
			if err := u.checkpoints.SaveCheckpoint(ctx, cp); err != nil {
				return fmt.Errorf("save checkpoint: %w", err)
			}
			l.Debug("checkpoint saved", applogger.Int("epoch", r.Epoch))
			return nil
		}),
		gan.EpochObserverFunc(func(ctx context.Context, r models.EpochReport) error {
			if u.publisher != nil {
				if err := u.publisher.PublishReport(ctx, runID, r); err != nil {
					l.Warn("publish epoch report failed", applogger.Int("epoch", r.Epoch), applogger.Error(err))
				}
			}
			if u.broadcaster != nil {
				u.broadcaster.Broadcast(runID, r)
			}
			if u.metrics != nil {
				u.metrics.RecordEpoch(runID, r)
			}
			return nil
		}),
	}
}

// evaluate scores the generator on the held-out rows in the original price
// scale. It returns nil when the split leaves no test windows or the
// predictions are not finite.
func (u *TrainUseCase) evaluate(model *gan.WGANGP, pre *features.Preprocessor, test *models.Frame, lookback int, l *applogger.Logger) *models.Evaluation {
	x, y, ids := test.Matrix()
	if len(x) == 0 {
		return nil
	}
	x, err := pre.X.Transform(x)
	if err != nil {
		l.Warn("scale test features", applogger.Error(err))
		return nil
	}
	y, err = pre.Y.Transform(y)
	if err != nil {
		l.Warn("scale test targets", applogger.Error(err))
		return nil
	}
	windows, err := dataset.BuildWindows(x, y, lookback, ids)
	if err != nil || windows.Len() == 0 {
		l.Info("no held-out windows to evaluate")
		return nil
	}
	all, err := windows.All()
	if err != nil {
		return nil
	}
	out, err := model.Predict(all.Windows)
	if err != nil {
		l.Warn("predict held-out windows", applogger.Error(err))
		return nil
	}

	pred, err := pre.Y.InverseTransform(rows(out.Data().([]float64), windows.Outputs))
	if err != nil {
		return nil
	}
	targets := make([][]float64, windows.Len())
	for i := range targets {
		targets[i] = windows.Target(i)
	}
	actual, err := pre.Y.InverseTransform(targets)
	if err != nil {
		return nil
	}

	p, a := column(pred, 0), column(actual, 0)
	for _, v := range p {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			l.Warn("non-finite held-out prediction")
			return nil
		}
	}
	ev, err := eval.Evaluate(p, a)
	if err != nil {
		return nil
	}
	l.Info("held-out evaluation",
		applogger.Float64("rmse", ev.RMSE),
		applogger.Float64("mae", ev.MAE),
		applogger.Float64("r2", ev.R2),
		applogger.Int("samples", ev.Samples))
	return ev
}

func rows(flat []float64, width int) [][]float64 {
	out := make([][]float64, len(flat)/width)
	for i := range out {
		out[i] = flat[i*width : (i+1)*width]
	}
	return out
}

func column(m [][]float64, j int) []float64 {
	out := make([]float64, len(m))
	for i := range m {
		out[i] = m[i][j]
	}
	return out
}
