package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/sync/errgroup"

	"github.com/joshsymonds/mailsorter/internal/classify"
	"github.com/joshsymonds/mailsorter/internal/config"
	"github.com/joshsymonds/mailsorter/internal/credential"
	"github.com/joshsymonds/mailsorter/internal/httpapi"
	"github.com/joshsymonds/mailsorter/internal/pipeline"
	"github.com/joshsymonds/mailsorter/internal/runtime"
)

const shutdownTimeout = 10 * time.Second

type serveConfig struct {
	configPath  string
	addr        string
	poll        bool
	accessLog   bool
	placeholder bool
}

func main() {
	cfg := parseFlags()
	if err := run(cfg); err != nil {
		runtime.DefaultLogger().Error("mailsorter-serve failed", "error", err)
		os.Exit(1)
	}
}

func parseFlags() serveConfig {
	configPath := flag.String("config", "", "path to mailsorter TOML config")
	addr := flag.String("addr", "", "listen address (overrides config and PORT)")
	poll := flag.Bool("poll", false, "enable background polling regardless of config")
	accessLog := flag.Bool("access-log", true, "log every HTTP request")
	placeholder := flag.Bool("placeholder", false, "answer unauthenticated classify requests with tagged sample data")
	flag.Parse()

	return serveConfig{
		configPath:  *configPath,
		addr:        *addr,
		poll:        *poll,
		accessLog:   *accessLog,
		placeholder: *placeholder,
	}
}

func run(sc serveConfig) error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	logger := runtime.DefaultLogger()
	cfg, err := config.Load(sc.configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if sc.addr != "" {
		cfg.Server.Addr = sc.addr
	}

	scopes, err := credential.ParseScopes(cfg.OAuth.Scopes)
	if err != nil {
		return fmt.Errorf("parse scopes: %w", err)
	}

	classifier, err := runtime.BuildClassifier(ctx, cfg.Classifier, logger)
	if err != nil {
		if !errors.Is(err, classify.ErrNoTrainingData) {
			return err
		}
		// Passes report NoTrainingData until a model or CSV is supplied.
		logger.Warn("no classifier available", "error", err)
		classifier = nil
	}

	var oauthCfg *oauth2.Config
	if oc, oauthErr := runtime.OAuthConfig(cfg.OAuth, scopes); oauthErr != nil {
		logger.Warn("oauth login disabled", "error", oauthErr)
	} else {
		oauthCfg = oc
	}

	store := credential.NewMemoryStore()
	resolver := credential.NewResolver(store, credential.OAuthRefresher{}, logger)
	clients := runtime.OAuthClientFactory{}
	svc := pipeline.NewService(resolver, clients, classifier, runtime.Limiter(cfg.Pipeline.RPS), logger)
	opts := runtime.PipelineOptions(cfg.Pipeline)

	srv := httpapi.NewServer(store, svc, oauthCfg, scopes, clients.Profile, opts, httpapi.Config{
		CORSOrigins: cfg.Server.CORSOrigins,
		RateLimit:   cfg.Server.RateLimit,
		Placeholder: sc.placeholder || cfg.Fallback.Placeholder,
		AccessLog:   sc.accessLog,
	}, logger)
	app := srv.App()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("listening", slog.String("addr", cfg.Server.Addr))
		if err := app.Listen(cfg.Server.Addr); err != nil {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	})
	if sc.poll || cfg.Poll.Enabled {
		poller := pipeline.NewPoller(svc, store, opts, cfg.Poll.Interval.Duration, logger)
		g.Go(func() error { return poller.Run(gctx) })
	}
	g.Go(func() error {
		<-gctx.Done()
		if err := app.ShutdownWithTimeout(shutdownTimeout); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		return nil
	})
	return g.Wait()
}
