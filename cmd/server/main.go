package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"vn.io.arda/onboarding/internal/application"
	"vn.io.arda/onboarding/internal/config"
	"vn.io.arda/onboarding/internal/infrastructure/directory"
	"vn.io.arda/onboarding/internal/infrastructure/sqlite"
	kafkaconsumer "vn.io.arda/onboarding/internal/kafka"
	"vn.io.arda/onboarding/internal/schema"
	transporthttp "vn.io.arda/onboarding/internal/transport/http"
)

func main() {
	// ── Logging ──────────────────────────────────────────────────────────────
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	// ── Config ───────────────────────────────────────────────────────────────
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	if cfg.Server.Env == "production" {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	} else {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}
	if cfg.Server.Env == "production" && cfg.Auth.DevBypass {
		log.Fatal().Msg("dev auth bypass must not be enabled in production")
	}

	log.Info().Str("env", cfg.Server.Env).Str("port", cfg.Server.Port).Msg("starting onboarding directory service")

	desc, err := schema.Build(cfg.Schema)
	if err != nil {
		log.Fatal().Err(err).Msg("invalid remote schema configuration")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// ── Local store ──────────────────────────────────────────────────────────
	clk := clock.New()
	store, err := sqlite.Open(ctx, cfg.Database.Path, clk)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.Database.Path).Msg("failed to open local store")
	}
	defer store.Close()
	log.Info().Str("path", cfg.Database.Path).Msg("local store ready")

	// ── Remote directories ───────────────────────────────────────────────────
	dialer := directory.NewDialer(cfg.Remote)

	// ── Application Service ──────────────────────────────────────────────────
	svc := application.NewService(application.Deps{
		Schema:      desc,
		Cache:       cfg.Cache,
		Clock:       clk,
		Tenants:     directory.NewTenantDirectory(dialer, desc),
		Users:       directory.NewUserDirectory(dialer, desc),
		TenantCache: store,
		UserCache:   store,
		Customers:   store,
	})

	// ── HTTP Server ──────────────────────────────────────────────────────────
	handler := transporthttp.NewHandler(svc)
	router := transporthttp.NewRouter(handler, cfg.Auth)

	// ── Kafka Consumer ───────────────────────────────────────────────────────
	if cfg.Kafka.Enabled {
		consumer, err := kafkaconsumer.New(
			cfg.Kafka.Brokers,
			cfg.Kafka.ConsumerGroupID,
			cfg.Kafka.Topics,
			svc,
		)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to create kafka consumer")
		}
		go consumer.Start(ctx)
		log.Info().Strs("topics", cfg.Kafka.Topics).Msg("kafka consumer started")
	}

	// ── Start HTTP Server ────────────────────────────────────────────────────
	go func() {
		log.Info().Str("port", cfg.Server.Port).Msg("HTTP server listening")
		if err := router.Start(":" + cfg.Server.Port); err != nil {
			log.Info().Msg("HTTP server stopped")
		}
	}()

	// ── Graceful Shutdown ────────────────────────────────────────────────────
	<-ctx.Done()
	log.Info().Msg("shutting down gracefully...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := router.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown error")
	}

	log.Info().Msg("onboarding directory service stopped")
}
