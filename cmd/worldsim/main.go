// Command worldsim serves an in-memory world over the world protocol so the
// spawner can run without an external simulator.
package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/turtlecatch/spawner/internal/config"
	"github.com/turtlecatch/spawner/internal/logging"
	"github.com/turtlecatch/spawner/internal/worldsvc"
	"go.uber.org/zap"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfgPath := "config/spawner.toml"
	if p := os.Getenv("SPAWNER_CONFIG"); p != "" {
		cfgPath = p
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log, err := logging.New(cfg.Logging)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer log.Sync()

	sim := worldsvc.NewSimWorld(cfg.Spawner.DefaultEntity)
	srv, err := worldsvc.NewServer(cfg.World.Address, sim, log)
	if err != nil {
		return fmt.Errorf("world server: %w", err)
	}
	go srv.Serve()
	log.Info("world simulator listening",
		zap.String("addr", srv.Addr().String()),
		zap.String("initial", cfg.Spawner.DefaultEntity),
	)

	shutdownCh := make(chan os.Signal, 1)
	signal.Notify(shutdownCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-shutdownCh
	log.Info("shutdown signal received", zap.String("signal", sig.String()))
	srv.Shutdown()
	log.Info("world simulator stopped", zap.Int("turtles", len(sim.Names())))
	return nil
}
