package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joshsymonds/mailsorter/internal/config"
	"github.com/joshsymonds/mailsorter/internal/credential"
	"github.com/joshsymonds/mailsorter/internal/pipeline"
	"github.com/joshsymonds/mailsorter/internal/report"
	"github.com/joshsymonds/mailsorter/internal/runtime"
)

type runConfig struct {
	configPath  string
	credentials string
	token       string
	maxResults  int
	label       string
	concurrency int
	threshold   float64
	rps         int
	dryRun      bool
	jsonOut     string
}

func main() {
	cfg := parseFlags()
	if err := run(cfg); err != nil {
		runtime.DefaultLogger().Error("mailsorter-run failed", "error", err)
		os.Exit(1)
	}
}

func parseFlags() runConfig {
	configPath := flag.String("config", "", "path to mailsorter TOML config")
	credentials := flag.String("credentials", "credentials.json", "OAuth client secrets file")
	token := flag.String("token", "token.json", "cached OAuth token")
	maxResults := flag.Int("max", 0, "number of recent messages to classify (0 uses config)")
	label := flag.String("label", "", "label for unwanted mail (empty uses config)")
	concurrency := flag.Int("concurrency", 0, "messages processed in parallel (0 uses config)")
	threshold := flag.Float64("threshold", -1, "minimum confidence to move unwanted mail (-1 uses config)")
	rps := flag.Int("rps", 0, "max Gmail requests per second (0 uses config)")
	dryRun := flag.Bool("dry-run", false, "classify only; skip label changes")
	jsonOut := flag.String("json", "", "write JSON report to path")
	flag.Parse()

	return runConfig{
		configPath:  *configPath,
		credentials: *credentials,
		token:       *token,
		maxResults:  *maxResults,
		label:       *label,
		concurrency: *concurrency,
		threshold:   *threshold,
		rps:         *rps,
		dryRun:      *dryRun,
		jsonOut:     *jsonOut,
	}
}

func run(rc runConfig) error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	logger := runtime.DefaultLogger()
	cfg, err := config.Load(rc.configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	applyOverrides(&cfg, rc)

	classifier, err := runtime.BuildClassifier(ctx, cfg.Classifier, logger)
	if err != nil {
		return err
	}

	scopes := credential.NewScopeSet(credential.ScopeModify)
	if cfg.Pipeline.DryRun {
		scopes = credential.NewScopeSet(credential.ScopeReadonly)
	}
	oc, err := runtime.OAuthConfig(config.OAuth{CredentialsFile: rc.credentials}, scopes)
	if err != nil {
		return fmt.Errorf("oauth config: %w", err)
	}
	client, err := runtime.LocalClient(ctx, oc, rc.token, os.Stdin, os.Stdout)
	if err != nil {
		return fmt.Errorf("create gmail client: %w", err)
	}
	user, err := client.Profile(ctx)
	if err != nil {
		return fmt.Errorf("lookup profile: %w", err)
	}

	svc := pipeline.NewService(nil, nil, classifier, runtime.Limiter(cfg.Pipeline.RPS), logger)
	rep, err := svc.Process(ctx, user, client, runtime.PipelineOptions(cfg.Pipeline))
	if err != nil {
		return fmt.Errorf("run pass: %w", err)
	}

	if err := report.PrintHuman(rep, os.Stdout); err != nil {
		return fmt.Errorf("print report: %w", err)
	}
	if rc.jsonOut == "" {
		return nil
	}
	if err := report.WriteJSON(rep, rc.jsonOut); err != nil {
		return fmt.Errorf("write json: %w", err)
	}
	return nil
}

func applyOverrides(cfg *config.Config, rc runConfig) {
	if rc.maxResults > 0 {
		cfg.Pipeline.MaxResults = rc.maxResults
	}
	if rc.label != "" {
		cfg.Pipeline.Label = rc.label
	}
	if rc.concurrency > 0 {
		cfg.Pipeline.Concurrency = rc.concurrency
	}
	if rc.threshold >= 0 {
		cfg.Pipeline.MoveThreshold = rc.threshold
	}
	if rc.rps > 0 {
		cfg.Pipeline.RPS = rc.rps
	}
	if rc.dryRun {
		cfg.Pipeline.DryRun = true
	}
}
