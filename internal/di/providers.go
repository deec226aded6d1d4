package di

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"FinGAN/internal/dataset"
	domrepo "FinGAN/internal/domain/repository"
	"FinGAN/internal/gan"
	"FinGAN/internal/handler/api"
	internalrepo "FinGAN/internal/repository"
	"FinGAN/internal/service/cache"
	servingmetrics "FinGAN/internal/service/metrics"
	"FinGAN/internal/service/ratelimit"
	"FinGAN/internal/services/features"
	"FinGAN/internal/usecase"
	pkgch "FinGAN/pkg/clickhouse"
	"FinGAN/pkg/config"
	xhttp "FinGAN/pkg/http"
	pkgkafka "FinGAN/pkg/kafka"
	applogger "FinGAN/pkg/logger"
	"FinGAN/pkg/metrics"
	"FinGAN/pkg/queue"
	"FinGAN/pkg/server"
	"FinGAN/pkg/ws"
)

// ProvideLogger creates the application logger from the log section.
func ProvideLogger(cfg *config.Config) (*applogger.Logger, error) {
	l, err := applogger.New(&applogger.Config{Level: cfg.Log.Level, Format: cfg.Log.Format, Output: cfg.Log.Output})
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}
	return l.With(applogger.String("env", cfg.Environment)), nil
}

// ProvideClickHouseClient creates a read-only ClickHouse client, applying the
// candle schema first when asked to.
func ProvideClickHouseClient(cfg *config.Config) (*pkgch.Client, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := pkgch.NewClient(ctx,
		pkgch.WithHost(cfg.ClickHouse.Host),
		pkgch.WithPort(cfg.ClickHouse.Port),
		pkgch.WithDatabase(cfg.ClickHouse.Database),
		pkgch.WithCredentials(cfg.ClickHouse.User, cfg.ClickHouse.Password),
		pkgch.WithMaxConnections(10, 5),
		pkgch.WithHTTP(cfg.ClickHouse.UseHTTP),
		pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout),
		pkgch.WithReadOnly(!cfg.ClickHouse.InitSchema),
	)
	if err != nil {
		return nil, fmt.Errorf("clickhouse client: %w", err)
	}
	if cfg.ClickHouse.InitSchema {
		if err := client.InitSchema(ctx, internalrepo.CandleSchema(cfg.ClickHouse.Database)); err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("clickhouse schema: %w", err)
		}
	}
	return client, nil
}

// ProvideFeatureStore creates the candle reader.
func ProvideFeatureStore(ch *pkgch.Client, cfg *config.Config, l *applogger.Logger) domrepo.FeatureStore {
	store := internalrepo.NewCHFeatureStore(ch, cfg.ClickHouse.Database)
	store.SetLogger(l)
	return store
}

// ProvideCheckpointStore opens the SQLite run registry.
func ProvideCheckpointStore(cfg *config.Config) (domrepo.CheckpointStore, error) {
	return internalrepo.NewSQLiteCheckpointStore(cfg.Storage.Path, cfg.Storage.RetainBlobs)
}

// ProvideKafkaProducer creates a Kafka producer, or nil when Kafka is
// disabled.
func ProvideKafkaProducer(cfg *config.Config) (*pkgkafka.Producer, error) {
	if !cfg.Kafka.Enabled {
		return nil, nil
	}
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithDelivery(cfg.Kafka.RequiredAcks, cfg.Kafka.MaxAttempts),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithTimeouts(cfg.Kafka.WriteTimeout, cfg.Kafka.ReadTimeout),
		pkgkafka.WithBatching(cfg.Kafka.BatchSize, cfg.Kafka.BatchBytes, cfg.Kafka.Linger),
		pkgkafka.WithAsync(cfg.Kafka.Async),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}
	return producer, nil
}

// ProvideReportPublisher publishes epoch reports to Kafka. It returns nil
// when no producer is configured.
func ProvideReportPublisher(producer *pkgkafka.Producer, cfg *config.Config, l *applogger.Logger) domrepo.ReportPublisher {
	if producer == nil {
		return nil
	}
	pub := internalrepo.NewKafkaReportPublisher(producer, cfg.Kafka.ReportsTopic)
	pub.SetLogger(l)
	return pub
}

// ProvideRedisClient creates the client shared by the queue and the
// forecast cache.
func ProvideRedisClient(cfg *config.Config) *redis.Client {
	return cache.NewRedisClient(cache.RedisConfig{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
}

// ProvideQueue creates the training queue.
func ProvideQueue(cfg *config.Config, l *applogger.Logger, cli *redis.Client) *queue.RedisQueue {
	return queue.NewRedisQueue(l, &queue.QueueConfig{
		Workers:      cfg.Queue.Workers,
		RetryLimit:   cfg.Queue.MaxRetries,
		PollInterval: cfg.Queue.PollInterval,
	}, cli, queue.ModeProducerConsumer, queue.WithKeyPrefix(cfg.Queue.Name))
}

func ProvideHub(l *applogger.Logger) *ws.Hub {
	return ws.NewHub(l, nil)
}

// ProvideMetrics creates a Prometheus metrics recorder on the default
// registry and registers the serving collectors.
func ProvideMetrics() domrepo.Metrics {
	servingmetrics.Register()
	return metrics.New(nil)
}

// ProvideTrainConfig maps configuration onto the training settings.
func ProvideTrainConfig(cfg *config.Config) usecase.TrainConfig {
	return usecase.TrainConfig{
		Features: features.FrameConfig{
			YearPeriod:       cfg.Features.YearPeriod,
			Intraday:         cfg.Features.Intraday,
			OneHot:           cfg.Features.OneHot,
			VolatilityWindow: cfg.Features.VolatilityWindow,
			Timeframe:        cfg.Training.Timeframe,
		},
		SplitFraction:    cfg.Features.SplitFraction,
		History:          cfg.Training.History,
		CriticIterations: cfg.Training.CriticIterations,
		Optimizer: gan.OptimizerConfig{
			Lambda:      cfg.Training.Lambda,
			GeneratorLR: cfg.Training.GeneratorLR,
			CriticLR:    cfg.Training.CriticLR,
			Beta1:       cfg.Training.Beta1,
			Beta2:       cfg.Training.Beta2,
		},
		GeneratorHidden:  cfg.Model.GeneratorHidden,
		CriticHidden:     cfg.Model.CriticHidden,
		Outputs:          cfg.Model.Outputs,
		AbortOnNonFinite: cfg.Training.AbortOnNonFinite,
	}
}

// ProvideTrainOptions builds run options from the training section for
// runs started outside the API.
func ProvideTrainOptions(cfg *config.Config, now time.Time) (usecase.TrainOptions, error) {
	policy, err := dataset.ParseShufflePolicy(cfg.Training.Shuffle)
	if err != nil {
		return usecase.TrainOptions{}, err
	}
	return usecase.TrainOptions{
		Symbols:   cfg.Training.Symbols,
		Timeframe: domrepo.NormalizeTimeframe(cfg.Training.Timeframe),
		From:      now.Add(-cfg.Training.History),
		To:        now,
		Lookback:  cfg.Training.Lookback,
		Epochs:    cfg.Training.Epochs,
		BatchSize: cfg.Training.BatchSize,
		Shuffle:   policy,
		Seed:      cfg.Training.Seed,
	}, nil
}

// ProvideTrainUseCase creates the training use case. pub and hub may be nil.
func ProvideTrainUseCase(
	store domrepo.FeatureStore,
	checkpoints domrepo.CheckpointStore,
	pub domrepo.ReportPublisher,
	hub *ws.Hub,
	m domrepo.Metrics,
	tc usecase.TrainConfig,
	l *applogger.Logger,
) *usecase.TrainUseCase {
	uc := usecase.NewTrainUseCase(store, checkpoints, tc, l)
	if pub != nil {
		uc.SetPublisher(pub)
	}
	if hub != nil {
		uc.SetBroadcaster(internalrepo.NewWSReportBroadcaster(hub, l))
	}
	uc.SetMetrics(m)
	return uc
}

// ProvideForecastCache picks Redis or an in-process cache.
func ProvideForecastCache(cfg *config.Config, cli *redis.Client) cache.BytesCache {
	if cfg.Serving.RedisCache {
		return cache.NewRedisCache(cli, "fingan:")
	}
	return cache.NewTTLCache()
}

// ProvideForecastUseCase creates the serving use case.
func ProvideForecastUseCase(
	store domrepo.FeatureStore,
	checkpoints domrepo.CheckpointStore,
	c cache.BytesCache,
	m domrepo.Metrics,
	cfg *config.Config,
	l *applogger.Logger,
) *usecase.ForecastUseCase {
	uc := usecase.NewForecastUseCase(store, checkpoints, c, usecase.ForecastConfig{
		RunID:    cfg.Serving.RunID,
		CacheTTL: cfg.Serving.CacheTTL,
		MaxBars:  cfg.Serving.MaxBars,
	}, l)
	uc.SetMetrics(m)
	return uc
}

// ProvideTrainScheduler registers the training job on q and returns the
// scheduler that feeds it.
func ProvideTrainScheduler(uc *usecase.TrainUseCase, q *queue.RedisQueue) *usecase.TrainScheduler {
	q.RegisterJobs(usecase.NewTrainJob(uc))
	return usecase.NewTrainScheduler(uc, q)
}

// ProvideHTTPHandler composes the API routes.
func ProvideHTTPHandler(
	cfg *config.Config,
	l *applogger.Logger,
	forecast *usecase.ForecastUseCase,
	scheduler *usecase.TrainScheduler,
	training *usecase.TrainUseCase,
	hub *ws.Hub,
) xhttp.Handler {
	limiter := ratelimit.New(cfg.Serving.RateLimit, cfg.Serving.RateBurst)
	return api.Router{
		api.NewForecastHandler(l, forecast, limiter),
		api.NewTrainingHandler(l, scheduler, training, hub),
	}
}

// ProvideHTTPServer creates the Echo server.
func ProvideHTTPServer(cfg *config.Config, h xhttp.Handler, l *applogger.Logger) *xhttp.Server {
	metricsPath := ""
	if cfg.Metrics.Enabled {
		metricsPath = cfg.Metrics.Path
	}
	return xhttp.NewServer(h, l,
		xhttp.WithPort(cfg.Server.Port),
		xhttp.WithTimeouts(cfg.Server.ReadTimeout, cfg.Server.WriteTimeout, cfg.Server.ShutdownTimeout),
		xhttp.WithMetricsPath(metricsPath),
		xhttp.WithCORS(cfg.Server.CORS),
	)
}

// ProvideApp assembles the application and hands it every resource it must
// release on shutdown.
func ProvideApp(
	cfg *config.Config,
	l *applogger.Logger,
	srv *xhttp.Server,
	q *queue.RedisQueue,
	ch *pkgch.Client,
	checkpoints domrepo.CheckpointStore,
	producer *pkgkafka.Producer,
	cli *redis.Client,
	hub *ws.Hub,
	_ *usecase.TrainScheduler,
) *server.App {
	app := server.New(l, srv, cfg.Server.ShutdownTimeout)
	app.AddCloser(ch)
	app.AddCloser(checkpoints)
	if producer != nil {
		app.AddCloser(producer)
	}
	app.AddCloser(cli)
	app.AddCloser(hub)
	app.AddWorker(q)
	return app
}
