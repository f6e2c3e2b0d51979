// transferdesk serves the ride sheet and price list of a transfer desk over
// HTTP, on top of the legacy MySQL tables.
//
// Usage:
//
//	transferdesk [--dev] [--config path] [--addr :5000]
//
// Flags:
//
//	--dev     in-process miniredis instead of a Redis endpoint, console logs
//	--config  optional YAML or JSON config file
//	--addr    override server.addr
//
// Every setting can also be given as TRANSFERDESK_<SECTION>_<KEY>, e.g.
// TRANSFERDESK_DATABASE_SCHEMA_NAME or TRANSFERDESK_AUTH_JWT_SECRET.
package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/rzpsarthak13/transferdesk/internal/api"
	"github.com/rzpsarthak13/transferdesk/internal/client"
	"github.com/rzpsarthak13/transferdesk/internal/registry"
)

func main() {
	dev := flag.Bool("dev", false, "dev mode: in-process miniredis and console logs")
	configPath := flag.String("config", "", "path to config file (.yaml, .yml or .json)")
	addrOverride := flag.String("addr", "", "listen address override (e.g. :5000)")
	debug := flag.Bool("debug", false, "log SQL statements")
	flag.Parse()

	zerolog.TimeFieldFormat = time.RFC3339
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if *debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}
	if *dev {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}

	cm := registry.NewConfigManager()
	if *configPath != "" {
		if err := cm.LoadFromFile(*configPath); err != nil {
			log.Fatal().Err(err).Str("config", *configPath).Msg("config load failed")
		}
	}
	if err := cm.LoadFromEnv(); err != nil {
		log.Fatal().Err(err).Msg("config load failed")
	}
	cfg := cm.GetConfig()
	if *addrOverride != "" {
		cfg.Server.Addr = *addrOverride
	}
	if err := cm.Validate(); err != nil {
		log.Fatal().Err(err).Msg("config invalid")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	c, err := client.New(ctx, cfg, client.Options{Dev: *dev})
	if err != nil {
		log.Fatal().Err(err).Msg("startup failed")
	}
	defer c.Close()

	if *dev {
		log.Warn().Msg("dev mode active: cache lives in process memory, do not use in production")
	}

	if err := c.Start(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to start change drainer")
	}

	srv := &http.Server{
		Addr: cfg.Server.Addr,
		Handler: api.NewRouter(cfg, api.Deps{
			Rides:  c.Rides(),
			Prices: c.Prices(),
			Ready:  c.Ready,
		}),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().
			Str("addr", cfg.Server.Addr).
			Bool("dev", *dev).
			Str("queue", cfg.WriteBack.QueueType).
			Str("kvstore", cfg.KVStore.Type).
			Msg("transferdesk started")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		log.Error().Err(err).Msg("server error")
	}
	log.Info().Msg("shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown error")
	}
	if err := c.Close(); err != nil {
		log.Error().Err(err).Msg("close failed")
	}
	log.Info().Msg("stopped")
}
