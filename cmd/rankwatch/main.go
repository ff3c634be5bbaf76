// Command rankwatch tracks a retail catalog's daily best-seller ranking.
//
// Usage:
//
//	rankwatch -once                       # one acquisition run, then exit
//	rankwatch -config rankwatch.yaml      # daily schedule + inspect server
//	rankwatch -serve                      # inspect server only (no schedule)
//
// Secrets come from the environment (a .env file is honoured):
//
//	SLACK_WEBHOOK_URL      trend report delivery
//	DROPBOX_ACCESS_TOKEN   snapshot uploads
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	_ "modernc.org/sqlite"

	"github.com/hazyhaar/rankwatch/acquire"
	"github.com/hazyhaar/rankwatch/artifact"
	"github.com/hazyhaar/rankwatch/diagnose"
	"github.com/hazyhaar/rankwatch/extract"
	"github.com/hazyhaar/rankwatch/notify"
	"github.com/hazyhaar/rankwatch/runlog"
	"github.com/hazyhaar/rankwatch/snapstore"
	"github.com/hazyhaar/rankwatch/tracker"
)

func main() {
	configPath := flag.String("config", "", "path to rankwatch.yaml config file")
	once := flag.Bool("once", false, "run one acquisition and exit")
	serve := flag.Bool("serve", false, "serve the inspect API without scheduling runs")
	logLevel := flag.String("log-level", "info", "log level: debug, info, warn, error")
	flag.Parse()

	// Local development keeps secrets in .env; absence is fine.
	_ = godotenv.Load()

	var level slog.Level
	switch *logLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, logger, *configPath, *once, *serve); err != nil && err != context.Canceled {
		logger.Error("rankwatch: fatal", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, logger *slog.Logger, configPath string, once, serve bool) error {
	cfg, err := tracker.LoadFile(configPath)
	if err != nil {
		return err
	}
	loc, err := cfg.Location()
	if err != nil {
		return err
	}

	svc, cleanup, err := buildService(cfg, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	if once {
		return svc.RunOnce(ctx)
	}

	if !serve {
		go func() {
			if err := svc.RunDaily(ctx, cfg.RunAt, loc); err != nil && err != context.Canceled {
				logger.Error("rankwatch: schedule loop stopped", "error", err)
			}
		}()
	}
	return svc.ServeInspect(ctx, cfg.Inspect.Listen)
}

// buildService assembles the production pipeline from config and
// environment. The returned cleanup closes the run-log database.
func buildService(cfg *tracker.Config, logger *slog.Logger) (*tracker.Service, func(), error) {
	extractCfg := extract.Config{
		BaseURL:        cfg.Extract.BaseURL,
		ListSelectors:  cfg.Extract.ListSelectors,
		NameSelectors:  cfg.Extract.NameSelectors,
		PriceSelectors: cfg.Extract.PriceSelectors,
		LinkSelectors:  cfg.Extract.LinkSelectors,
	}

	recorder, err := diagnose.NewRecorder(cfg.ArtifactDir, logger)
	if err != nil {
		return nil, nil, err
	}
	if err := recorder.Prune(cfg.ArtifactMaxAge); err != nil {
		logger.Warn("rankwatch: artifact prune failed", "error", err)
	}

	loc, err := cfg.Location()
	if err != nil {
		return nil, nil, err
	}

	probe := acquire.NewProbe(acquire.ProbeConfig{
		Targets: cfg.Acquire.ProbeTargetURLs(),
		Extract: extractCfg,
		Timeout: cfg.Acquire.ProbeTimeout,
		Retries: cfg.Acquire.ProbeRetries,
		Logger:  logger,
	})
	renderer := acquire.NewRenderer(acquire.RenderConfig{
		PageURLs:      cfg.Acquire.RenderPageURLs(),
		Attempts:      cfg.Acquire.RenderRetries,
		Extract:       extractCfg,
		ListWait:      cfg.Acquire.ListWait,
		RemoteBrowser: cfg.Acquire.RemoteBrowser,
		Diagnostics:   recorder,
		Logger:        logger,
	})
	coordinator := acquire.NewCoordinator(acquire.Config{
		MinViable: cfg.Acquire.MinViable,
		MaxItems:  cfg.Acquire.MaxItems,
		Location:  loc,
		Logger:    logger,
	}, probe, renderer)

	store, err := snapstore.NewFS(cfg.SnapshotDir, logger)
	if err != nil {
		return nil, nil, err
	}

	runs, runDB, err := runlog.Open(cfg.RunDB)
	if err != nil {
		return nil, nil, err
	}
	cleanup := func() { runDB.Close() }

	var sink notify.Sink
	if url := os.Getenv("SLACK_WEBHOOK_URL"); url != "" {
		slack, err := notify.NewSlack(url, logger)
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("SLACK_WEBHOOK_URL: %w", err)
		}
		sink = slack
	}

	var uploader artifact.Uploader
	if token := os.Getenv("DROPBOX_ACCESS_TOKEN"); token != "" {
		dropbox, err := artifact.NewDropbox(artifact.DropboxConfig{
			AccessToken: token,
			Folder:      cfg.Upload.Folder,
			Logger:      logger,
		})
		if err != nil {
			cleanup()
			return nil, nil, err
		}
		uploader = dropbox
	}

	svc := tracker.NewService(cfg, coordinator, store, store, runs, sink, uploader, logger)
	return svc, cleanup, nil
}
