package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	log "github.com/sirupsen/logrus"

	"crashgame/internal/cache"
	"crashgame/internal/config"
	"crashgame/internal/database"
	"crashgame/internal/fairness"
	"crashgame/internal/game"
	"crashgame/internal/metrics"
	"crashgame/internal/ports"
	"crashgame/internal/scheduler"
	"crashgame/internal/server"
)

const drainTimeout = 10 * time.Second

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}
	log.SetLevel(cfg.LogLevel)
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	redisService, err := cache.New(cfg.Redis)
	if err != nil {
		log.Fatalf("redis is required for the wallet: %v", err)
	}
	defer redisService.Close()

	wallet := cache.NewWallet(redisService.GetClient())
	failed := cache.NewFailedEventStore(redisService.GetClient())

	health := map[string]server.HealthChecker{"cache": redisService}

	// The archive is optional; rounds still settle without it.
	var (
		archive ports.RoundArchive
		rounds  server.RoundReader
	)
	db, err := database.NewWithConfig(ctx, cfg.Database)
	if err != nil {
		log.WithError(err).Warn("round archive disabled")
	} else {
		defer db.Close()
		archive, rounds = db, db
		health["database"] = db
	}

	seeds, err := newSeedChain(cfg)
	if err != nil {
		log.Fatalf("failed to build seed chain: %v", err)
	}

	var clientSeeds ports.ClientSeedProvider = fairness.RandomClientSeed{}
	if cfg.ClientSeed != "" {
		clientSeeds = fairness.StaticClientSeed(cfg.ClientSeed)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	hub := server.NewHub()
	go hub.Run()

	timer := scheduler.NewTimer()
	defer timer.Stop()

	loop, err := game.NewLoop(cfg.Game, game.Deps{
		Wallet:       wallet,
		Publisher:    hub,
		Subscriber:   hub,
		Scheduler:    scheduler.NewTicker(cfg.Game.TickInterval),
		Timer:        timer,
		Seeds:        seeds,
		ClientSeeds:  clientSeeds,
		FailedEvents: failed,
		Archive:      archive,
		Metrics:      metrics.New(registry),
	})
	if err != nil {
		log.Fatalf("failed to create round loop: %v", err)
	}

	srv := server.New(server.Deps{
		Game:     loop,
		Hub:      hub,
		Rounds:   rounds,
		Balances: wallet,
		Health:   health,
		Gatherer: registry,
	})
	srv.RegisterFiberRoutes()

	go func() {
		if err := srv.Listen(fmt.Sprintf(":%d", cfg.Port)); err != nil {
			log.WithError(err).Error("http server stopped")
			stop()
		}
	}()

	// Wallet calls outlive the signal so in-flight payouts can finish.
	if err := loop.Start(context.Background()); err != nil {
		log.Fatalf("failed to start round loop: %v", err)
	}
	log.WithField("port", cfg.Port).Info("crash game running")

	<-ctx.Done()
	log.Info("shutting down")

	loop.Stop()

	drainCtx, cancel := context.WithTimeout(context.Background(), drainTimeout)
	defer cancel()
	if err := loop.Drain(drainCtx); err != nil {
		log.WithError(err).Warn("shutdown before every publish and credit finished")
	}

	if err := srv.Shutdown(); err != nil {
		log.WithError(err).Error("http shutdown failed")
	}
}

func newSeedChain(cfg *config.Config) (*fairness.SeedChain, error) {
	terminal := cfg.TerminalSeed
	if terminal == "" {
		seed, err := fairness.GenerateServerSeed()
		if err != nil {
			return nil, err
		}
		terminal = seed
	}
	return fairness.NewSeedChain(terminal, cfg.SeedChainLength)
}
