package runtime

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/joshsymonds/mailsorter/internal/classify"
	"github.com/joshsymonds/mailsorter/internal/config"
	"github.com/joshsymonds/mailsorter/internal/gmailctl"
	"github.com/joshsymonds/mailsorter/internal/pipeline"
	"github.com/joshsymonds/mailsorter/internal/rate"
)

// BuildClassifier selects and prepares the configured classifier. When a
// gmailctl config is set, its archive/trash subject filters extend the
// keyword list.
func BuildClassifier(ctx context.Context, cfg config.Classifier, logger *slog.Logger) (classify.Classifier, error) {
	opts := classify.BuildOptions{
		Kind:        cfg.Kind,
		ModelPath:   cfg.ModelPath,
		TrainingCSV: cfg.TrainingCSV,
		UseSeed:     cfg.UseSeed,
		Keywords:    cfg.Keywords,
		Train:       classify.TrainOptions{MaxIter: cfg.MaxIter},
	}
	if cfg.GmailctlConfig != "" {
		runner := gmailctl.Runner{Binary: cfg.GmailctlBinary, ConfigDir: cfg.GmailctlConfig}
		opts.Extra = func(ctx context.Context) ([]string, error) {
			export, err := runner.ExportFilters(ctx)
			if err != nil {
				return nil, err
			}
			return gmailctl.UnwantedKeywords(export), nil
		}
	}
	c, err := classify.Build(ctx, opts, logger)
	if err != nil {
		return nil, fmt.Errorf("build classifier: %w", err)
	}
	return c, nil
}

// PipelineOptions maps the [pipeline] section onto pass options.
func PipelineOptions(cfg config.Pipeline) pipeline.Options {
	return pipeline.Options{
		MaxResults:    cfg.MaxResults,
		Label:         cfg.Label,
		Concurrency:   cfg.Concurrency,
		DryRun:        cfg.DryRun,
		MoveThreshold: cfg.MoveThreshold,
		UseSnippet:    cfg.UseSnippet,
	}
}

// Limiter returns a token bucket for rps > 0 and nil (no limiting) otherwise.
func Limiter(rps int) rate.Limiter {
	if rps <= 0 {
		return nil
	}
	return rate.NewTokenBucket(rps)
}
