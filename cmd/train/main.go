// Command train runs one training job in the foreground and prints a loss
// summary when it finishes.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/olekukonko/tablewriter"

	"FinGAN/internal/dataset"
	"FinGAN/internal/di"
	"FinGAN/internal/usecase"
	"FinGAN/pkg/config"
	applogger "FinGAN/pkg/logger"
	"FinGAN/pkg/util"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "config file path")
	symbols := flag.String("symbols", "", "comma separated symbols, overrides training.symbols")
	from := flag.String("from", "", "history start (RFC3339, date or unix seconds)")
	to := flag.String("to", "", "history end, defaults to now")
	epochs := flag.Int("epochs", 0, "epochs, overrides training.epochs")
	shuffle := flag.String("shuffle", "", "sequential or shuffle, overrides training.shuffle")
	flag.Parse()

	cfg, err := config.LoadWithEnv(*configPath)
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}
	if *symbols != "" {
		cfg.Training.Symbols = strings.Split(*symbols, ",")
	}
	if *epochs > 0 {
		cfg.Training.Epochs = *epochs
	}

	if err := run(cfg, *from, *to, *shuffle); err != nil {
		log.Printf("training failed: %v", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, from, to, shuffle string) error {
	l, err := di.ProvideLogger(cfg)
	if err != nil {
		return err
	}
	start, end := util.HistoryRange(from, to, cfg.Training.History, time.Now().UTC())
	opts, err := di.ProvideTrainOptions(cfg, end)
	if err != nil {
		return err
	}
	opts.From = start
	if shuffle != "" {
		if opts.Shuffle, err = dataset.ParseShufflePolicy(shuffle); err != nil {
			return err
		}
	}

	ch, err := di.ProvideClickHouseClient(cfg)
	if err != nil {
		return err
	}
	defer ch.Close()
	checkpoints, err := di.ProvideCheckpointStore(cfg)
	if err != nil {
		return err
	}
	defer checkpoints.Close()
	producer, err := di.ProvideKafkaProducer(cfg)
	if err != nil {
		return err
	}
	if producer != nil {
		defer producer.Close()
	}

	uc := di.ProvideTrainUseCase(
		di.ProvideFeatureStore(ch, cfg, l),
		checkpoints,
		di.ProvideReportPublisher(producer, cfg, l),
		nil,
		di.ProvideMetrics(),
		di.ProvideTrainConfig(cfg),
		l,
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	l.Info("training",
		applogger.Strings("symbols", opts.Symbols),
		applogger.String("from", start.Format(time.RFC3339)),
		applogger.String("to", end.Format(time.RFC3339)))
	res, err := uc.Run(ctx, opts)
	if res != nil && res.History != nil {
		printSummary(res)
	}
	return err
}

func printSummary(res *usecase.TrainResult) {
	fmt.Printf("\nrun %s: %s, %d windows\n", res.Run.ID, res.Run.Status, res.Run.Windows)
	table := tablewriter.NewWriter(os.Stdout)
	table.Header("Series", "Count", "Last", "Mean", "Std", "Min", "Max")
	for _, s := range res.History.Summary() {
		_ = table.Append(s.Name, fmt.Sprintf("%d", s.Count),
			fmt.Sprintf("%.5f", s.Last), fmt.Sprintf("%.5f", s.Mean), fmt.Sprintf("%.5f", s.Std),
			fmt.Sprintf("%.5f", s.Min), fmt.Sprintf("%.5f", s.Max))
	}
	_ = table.Render()

	if ev := res.Run.Evaluation; ev != nil {
		fmt.Printf("held-out: rmse=%.5f mae=%.5f r2=%.4f samples=%d\n", ev.RMSE, ev.MAE, ev.R2, ev.Samples)
	}
}
