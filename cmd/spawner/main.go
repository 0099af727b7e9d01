package main

import (
	"context"
	"fmt"
	"math/rand"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/turtlecatch/spawner/internal/config"
	"github.com/turtlecatch/spawner/internal/core/event"
	coresys "github.com/turtlecatch/spawner/internal/core/system"
	"github.com/turtlecatch/spawner/internal/data"
	"github.com/turtlecatch/spawner/internal/gateway"
	"github.com/turtlecatch/spawner/internal/handler"
	"github.com/turtlecatch/spawner/internal/logging"
	gonet "github.com/turtlecatch/spawner/internal/net"
	"github.com/turtlecatch/spawner/internal/net/packet"
	"github.com/turtlecatch/spawner/internal/persist"
	"github.com/turtlecatch/spawner/internal/scripting"
	"github.com/turtlecatch/spawner/internal/spawn"
	"github.com/turtlecatch/spawner/internal/system"
	"github.com/turtlecatch/spawner/internal/world"
	"github.com/turtlecatch/spawner/internal/worldsvc"
	"go.uber.org/zap"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

// ── Startup display helpers ────────────────────────────────────────

func printSection(title string) {
	lineLen := 46 - len(title) - 1
	if lineLen < 3 {
		lineLen = 3
	}
	fmt.Printf("  \033[33m── %s %s\033[0m\n", title, strings.Repeat("─", lineLen))
}

func printOK(msg string) {
	fmt.Printf("  \033[32m✓\033[0m %s\n", msg)
}

func printReady(msg string) {
	fmt.Printf("  \033[32m▶\033[0m %s\n", msg)
}

// ── Main loop ──────────────────────────────────────────────────────

func run() error {
	// 1. Load config
	cfgPath := "config/spawner.toml"
	if p := os.Getenv("SPAWNER_CONFIG"); p != "" {
		cfgPath = p
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	// 2. Init logger
	log, err := logging.New(cfg.Logging)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer log.Sync()

	// 3. Spawn layout
	printSection("Data")
	layout, err := data.LoadSpawnLayout(cfg.Data.LayoutPath)
	if err != nil {
		return fmt.Errorf("spawn layout: %w", err)
	}
	printOK(fmt.Sprintf("spawn layout: %d corners", len(layout.Corners)))

	// 4. Optional journal database
	bus := event.NewBus()
	var journal *system.JournalSystem
	if cfg.Database.Enabled {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		db, err := persist.NewDB(ctx, cfg.Database, log)
		if err != nil {
			cancel()
			return fmt.Errorf("database: %w", err)
		}
		defer db.Close()
		version, err := persist.RunMigrations(ctx, db.Pool, log)
		cancel()
		if err != nil {
			return fmt.Errorf("migrations: %w", err)
		}
		journal = system.NewJournalSystem(bus, persist.NewEventRepo(db), cfg.Database.FlushInterval.Duration, log)
		printOK(fmt.Sprintf("journal database ready (schema v%d)", version))
	}

	// 5. Placement
	rng := rand.New(rand.NewSource(cfg.Spawner.Seed))
	var placement spawn.Placement = spawn.NewRandomPlacement(rng, layout.Random)
	if cfg.Spawner.CircularSpawn {
		placement = spawn.NewCornerPlacement(layout.Corners)
	}
	if cfg.Scripting.Enabled {
		engine, err := scripting.NewEngine(cfg.Scripting.Dir, log)
		if err != nil {
			return fmt.Errorf("scripting: %w", err)
		}
		defer engine.Close()
		if engine.HasSpawnPosition() {
			placement = spawn.NewScriptPlacement(engine, placement)
			printOK("lua placement loaded")
		}
	}
	scheduler := spawn.NewScheduler(cfg.Spawner.NamePrefix, cfg.Spawner.InitialCounter, placement, rng)
	fmt.Println()

	// 6. Registry, world client and gateway
	store := gonet.NewSessionStore()
	registry := world.NewRegistry(handler.NewBroadcaster(store), bus, log)

	client := worldsvc.NewClient(cfg.World.Address, worldsvc.ClientOptions{
		ReadyTimeout:  cfg.World.ReadyTimeout.Duration,
		ReadyAttempts: cfg.World.ReadyAttempts,
	}, log)
	defer client.Close()

	gw := gateway.New(client, registry, layout.Pen, gateway.Options{
		RequestTimeout: cfg.World.RequestTimeout.Duration,
	}, log)
	defer gw.Close()

	// 7. Packet handlers and observer server
	pktReg := packet.NewRegistry(log)
	handler.RegisterAll(pktReg, &handler.Deps{Registry: registry, Log: log})

	netServer, err := gonet.NewServer(cfg.Network.BindAddress, gonet.SessionOptions{
		InQueueSize:      cfg.Network.InQueueSize,
		OutQueueSize:     cfg.Network.OutQueueSize,
		PacketsPerSecond: cfg.Network.PacketsPerSecond,
		WriteTimeout:     cfg.Network.WriteTimeout.Duration,
	}, log)
	if err != nil {
		return fmt.Errorf("net server: %w", err)
	}
	go netServer.AcceptLoop()

	// 8. Systems
	runner := coresys.NewRunner()
	runner.Register(system.NewInputSystem(netServer, pktReg, store, cfg.Network.MaxPacketsPerTick, log))
	runner.Register(system.NewEventDispatchSystem(bus))
	runner.Register(system.NewCompletionSystem(gw))
	runner.Register(system.NewSpawnSystem(cfg.Spawner.SpawnInterval.Duration, scheduler, gw, log))
	runner.Register(system.NewOutputSystem(store))
	if journal != nil {
		runner.Register(journal)
	}

	// Hide the track of the entity the world starts with.
	if cfg.Spawner.DefaultEntity != "" {
		gw.HideTrack(cfg.Spawner.DefaultEntity)
	}

	// 9. Start loop
	shutdownCh := make(chan os.Signal, 1)
	signal.Notify(shutdownCh, syscall.SIGINT, syscall.SIGTERM)

	tick := cfg.Network.TickRate.Duration
	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	printSection("Ready")
	printReady(fmt.Sprintf("observers on %s", netServer.Addr().String()))
	printReady(fmt.Sprintf("world service at %s", cfg.World.Address))
	printReady(fmt.Sprintf("spawn every %s, %d systems (tick: %s)", cfg.Spawner.SpawnInterval.Duration, runner.Len(), tick))
	fmt.Println()

	for {
		select {
		case <-ticker.C:
			runner.Tick(tick)
		case sig := <-shutdownCh:
			log.Info("shutdown signal received", zap.String("signal", sig.String()))
			netServer.Shutdown()
			if journal != nil {
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				journal.Shutdown(ctx)
				cancel()
			}
			log.Info("spawner stopped",
				zap.Int("alive", registry.AliveCount()),
				zap.Int("queue", registry.QueueCount()),
			)
			return nil
		}
	}
}
