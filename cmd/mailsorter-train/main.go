package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joshsymonds/mailsorter/internal/classify"
	"github.com/joshsymonds/mailsorter/internal/config"
	"github.com/joshsymonds/mailsorter/internal/credential"
	"github.com/joshsymonds/mailsorter/internal/fetch"
	"github.com/joshsymonds/mailsorter/internal/runtime"
)

type trainConfig struct {
	csvPath     string
	modelPath   string
	export      bool
	exportCount int
	credentials string
	token       string
	maxIter     int
	c           float64
	rps         int
}

func main() {
	cfg := parseFlags()
	if err := run(cfg); err != nil {
		runtime.DefaultLogger().Error("mailsorter-train failed", "error", err)
		os.Exit(1)
	}
}

func parseFlags() trainConfig {
	csvPath := flag.String("csv", "emails.csv", "labeled training spreadsheet")
	modelPath := flag.String("model", "model.json", "where to write the trained model")
	export := flag.Bool("export", false, "write recent subjects to -csv for labeling instead of training")
	exportCount := flag.Int("count", 100, "number of subjects to export")
	credentials := flag.String("credentials", "credentials.json", "OAuth client secrets file")
	token := flag.String("token", "token.json", "cached OAuth token")
	maxIter := flag.Int("max-iter", 0, "gradient descent iterations (0 uses default)")
	c := flag.Float64("C", 0, "inverse regularisation strength (0 uses default)")
	rps := flag.Int("rps", 4, "max Gmail requests per second")
	flag.Parse()

	return trainConfig{
		csvPath:     *csvPath,
		modelPath:   *modelPath,
		export:      *export,
		exportCount: *exportCount,
		credentials: *credentials,
		token:       *token,
		maxIter:     *maxIter,
		c:           *c,
		rps:         *rps,
	}
}

func run(tc trainConfig) error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	logger := runtime.DefaultLogger()
	if tc.export {
		return exportSubjects(ctx, tc, logger)
	}

	examples, err := classify.LoadCSV(tc.csvPath)
	if err != nil {
		return fmt.Errorf("load training data: %w", err)
	}
	model, err := classify.Train(examples, classify.TrainOptions{MaxIter: tc.maxIter, C: tc.c})
	if err != nil {
		return fmt.Errorf("train: %w", err)
	}
	correct := 0
	for _, ex := range examples {
		if model.Predict(ex.Text).Label == ex.Label {
			correct++
		}
	}
	if err := model.Save(tc.modelPath); err != nil {
		return fmt.Errorf("save model: %w", err)
	}
	logger.Info("model trained",
		slog.Int("examples", len(examples)),
		slog.Int("features", model.Vectorizer.Dim()),
		slog.Float64("training_accuracy", float64(correct)/float64(len(examples))),
		slog.String("path", tc.modelPath),
	)
	return nil
}

func exportSubjects(ctx context.Context, tc trainConfig, logger *slog.Logger) error {
	oc, err := runtime.OAuthConfig(
		config.OAuth{CredentialsFile: tc.credentials},
		credential.NewScopeSet(credential.ScopeReadonly),
	)
	if err != nil {
		return fmt.Errorf("oauth config: %w", err)
	}
	client, err := runtime.LocalClient(ctx, oc, tc.token, os.Stdin, os.Stdout)
	if err != nil {
		return fmt.Errorf("create gmail client: %w", err)
	}
	fetcher := fetch.New(client, runtime.Limiter(tc.rps), logger)
	ids, err := fetcher.ListRecent(ctx, tc.exportCount)
	if err != nil {
		return err
	}
	msgs, _ := fetcher.FetchAll(ctx, ids)
	if err := ctx.Err(); err != nil {
		return err
	}
	subjects := make([]string, 0, len(msgs))
	for _, m := range msgs {
		subjects = append(subjects, m.Subject)
	}
	if err := classify.ExportCSV(tc.csvPath, subjects); err != nil {
		return fmt.Errorf("export subjects: %w", err)
	}
	logger.Info("exported subjects for labeling", slog.Int("count", len(subjects)), slog.String("path", tc.csvPath))
	return nil
}
