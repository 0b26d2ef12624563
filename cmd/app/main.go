// File: cmd/app/main.go
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"heystak-spider/internal/config"
	"heystak-spider/internal/domain/ports/adapter"
	aiAdapters "heystak-spider/internal/infra/adapters/ai"
	"heystak-spider/internal/infra/adapters/scrape"
	pg "heystak-spider/internal/infra/db/postgres"
	"heystak-spider/internal/infra/logging"
	"heystak-spider/internal/infra/metrics"
	red "heystak-spider/internal/infra/redis"
	"heystak-spider/internal/infra/storage"
	"heystak-spider/internal/infra/telegram"
	"heystak-spider/internal/infra/web"
	"heystak-spider/internal/infra/worker"
)

var (
	version = "dev"
	commit  = "none"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// .env is optional; real deployments use the YAML config.
	_ = godotenv.Load()

	// ---- CLI flags ----
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	devMode := flag.Bool("dev", false, "enable developer mode (console logs, verbose)")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, *devMode)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger := logging.New(cfg.Log, cfg.Runtime.Dev)
	if cfg.Runtime.Dev {
		logger.Info().Msg("dev mode enabled")
	}

	metrics.MustRegister()
	metrics.SetBuildInfo(version, commit)

	// ---- Redis (job store) ----
	redisClient, err := red.NewClient(ctx, &cfg.Redis)
	if err != nil {
		// The store reconnects lazily; startup proceeds degraded.
		logger.Warn().Err(err).Msg("redis unreachable at startup, continuing degraded")
	}
	jobRepo := red.NewJobRepo(redisClient, logger)

	// ---- Postgres (relational sink, optional) ----
	var (
		adStore  adapter.AdStore
		adLister web.AdLister
	)
	if cfg.Database.URL != "" {
		pool, err := pg.NewPgxPool(ctx, cfg.Database.URL, 10)
		if err != nil {
			log.Fatalf("postgres: %v", err)
		}
		defer pool.Close()
		tm := pg.NewTxManager(pool)
		adRepo := pg.NewAdRepo(pool, tm)
		adStore = adRepo
		adLister = adRepo
	} else {
		logger.Warn().Msg("database.url not set; relational persistence disabled")
	}

	// ---- Object storage (raw batches, optional) ----
	var rawStore adapter.RawStore
	if cfg.Storage.Endpoint != "" {
		rawStore, err = storage.NewMinioRawStore(ctx,
			cfg.Storage.Endpoint, cfg.Storage.AccessKey, cfg.Storage.SecretKey,
			cfg.Storage.Bucket, cfg.Storage.UseSSL, logger)
		if err != nil {
			log.Fatalf("object storage: %v", err)
		}
	} else {
		logger.Warn().Msg("storage.endpoint not set; raw batch persistence disabled")
	}

	// ---- Scrape provider ----
	scraper, err := scrape.NewApifyProvider(cfg.Apify.Token, cfg.Apify.ActorID)
	if err != nil {
		log.Fatalf("apify provider: %v", err)
	}

	// ---- Analyzer (OpenAI primary, Gemini fallback) ----
	var analyzer adapter.Analyzer
	var primary, fallback adapter.Analyzer
	if cfg.AI.OpenAIKey != "" {
		primary, err = aiAdapters.NewOpenAIAdapter(cfg.AI.OpenAIKey, cfg.AI.DefaultModel, cfg.AI.WhisperModel, logger)
		if err != nil {
			log.Fatalf("openai adapter: %v", err)
		}
	}
	if cfg.AI.GeminiKey != "" {
		fallback, err = aiAdapters.NewGeminiAdapter(ctx, cfg.AI.GeminiKey, cfg.AI.GeminiURL, "")
		if err != nil {
			log.Fatalf("gemini adapter: %v", err)
		}
	}
	switch {
	case primary != nil && fallback != nil:
		analyzer = aiAdapters.NewMultiAnalyzer(primary, fallback, logger)
	case primary != nil:
		analyzer = primary
	case fallback != nil:
		analyzer = fallback
	default:
		logger.Warn().Msg("no AI provider configured; analysis disabled")
	}

	// ---- Notifier (optional) ----
	var notifier adapter.Notifier
	if cfg.Notify.TelegramToken != "" && cfg.Notify.ChatID != 0 {
		notifier, err = telegram.NewNotifier(cfg.Notify.TelegramToken, cfg.Notify.ChatID, logger)
		if err != nil {
			logger.Warn().Err(err).Msg("telegram notifier disabled")
			notifier = nil
		}
	}

	// ---- Pipeline + scheduler ----
	pipeline := worker.NewPipeline(jobRepo, scraper, analyzer, rawStore, adStore, notifier,
		cfg.Apify.PollInterval, cfg.Apify.MaxPolls, logger)
	scheduler := worker.NewScheduler(jobRepo, pipeline,
		cfg.Worker.Count, cfg.Worker.BusyInterval, cfg.Worker.IdleInterval, logger)
	go func() {
		if err := scheduler.Run(ctx); err != nil && err != context.Canceled {
			logger.Error().Err(err).Msg("scheduler stopped")
		}
	}()

	// ---- Admin API ----
	auth := web.NewAuthManager(cfg.Admin.SessionSecret, !cfg.Runtime.Dev, "", 30*time.Minute)
	srv := web.NewServer(jobRepo, adLister, auth, cfg.Admin.APIKey,
		fmt.Sprintf(":%d", cfg.Admin.Port), logger)
	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			logger.Error().Err(err).Msg("admin api stopped")
		}
	}()

	// ---- Graceful shutdown ----
	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	<-sigc
	logger.Info().Msg("shutdown requested")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	_ = srv.Shutdown(shutdownCtx)
	_ = redisClient.Close()
}
