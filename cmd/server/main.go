// Command server runs the group matchmaker: a webhook-driven interview bot
// that builds group profiles over chat and scores pairwise compatibility
// between them on demand.
//
// @title        Mandy Group Matcher API
// @version      1.0
// @description  Webhook-driven group interview and matchmaking service.
//
// @contact.name API Support
//
// @BasePath /api/v1
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/a1baseai/mandy-group-matcher/internal/agents"
	"github.com/a1baseai/mandy-group-matcher/internal/config"
	"github.com/a1baseai/mandy-group-matcher/internal/dedup"
	httpapi "github.com/a1baseai/mandy-group-matcher/internal/http"
	"github.com/a1baseai/mandy-group-matcher/internal/llm"
	"github.com/a1baseai/mandy-group-matcher/internal/observability"
	"github.com/a1baseai/mandy-group-matcher/internal/platform"
	"github.com/a1baseai/mandy-group-matcher/internal/repo"
	"github.com/a1baseai/mandy-group-matcher/internal/services"
	"github.com/a1baseai/mandy-group-matcher/internal/sysutil"
)

func main() {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	cfg := config.MustLoad()
	version := sysutil.FirstNonEmpty(os.Getenv("SERVICE_VERSION"), "dev")

	sysutil.SetLogLevel(cfg.LogLevel)
	if cfg.LogPretty {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}
	gin.SetMode(cfg.GinMode)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := observability.Setup(ctx, cfg.OTEL, version)
	if err != nil {
		log.Fatal().Err(err).Msg("otel setup failed")
	}

	db, err := repo.OpenSQLite(cfg.DBPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.DBPath).Msg("open database failed")
	}
	if err := repo.AutoMigrate(db); err != nil {
		log.Fatal().Err(err).Msg("migrate failed")
	}

	gen, err := llm.NewGenerator(ctx, cfg.LLM.APIKey, cfg.LLM.Model, cfg.LLM.Temperature, cfg.LLM.MaxTokens)
	if err != nil {
		log.Fatal().Err(err).Msg("llm client failed")
	}

	chat := platform.NewClient(
		cfg.Platform.BaseURL, cfg.Platform.APIKey, cfg.Platform.APISecret,
		cfg.Platform.AccountID, cfg.Platform.HTTPTimeout,
	)
	reg := agents.NewRegistry(cfg.DefaultAgent)

	interviewSvc := services.NewInterviewService(db, services.NewAnswerValidator(gen), gen, reg)
	webhookSvc := services.NewWebhookService(
		dedup.NewLedger(cfg.Webhook.DedupTTL),
		chat, chat, interviewSvc,
		reg, cfg.Webhook, cfg.Platform.HistoryLimit,
	)
	matchSvc := services.NewMatchingService(db, gen, cfg.Matching)

	router := gin.New()
	httpapi.RegisterRoutes(router, db, webhookSvc, matchSvc, cfg)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
		MaxHeaderBytes:    cfg.MaxHeaderBytes,
	}

	go func() {
		log.Info().Str("port", cfg.Port).Str("version", version).Msg("server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownGrace)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http shutdown")
	}

	// Webhook continuations keep replying during the grace window so accepted
	// messages are not silently dropped.
	if !webhookSvc.Drain(cfg.ShutdownGrace) {
		log.Warn().Msg("webhook continuations still in flight at shutdown")
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("tracing shutdown")
	}
	log.Info().Msg("bye")
}
