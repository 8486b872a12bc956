// Command swarmsim runs the delivery swarm: it builds the world, drives the
// engine, serves the HTTP API and keeps running totals in SQLite.
package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/talgya/swarmdrop/internal/api"
	"github.com/talgya/swarmdrop/internal/engine"
	"github.com/talgya/swarmdrop/internal/persistence"
	"github.com/talgya/swarmdrop/internal/world"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	cfg := loadConfig()
	dbPath := envOrDefault("SWARMDROP_DB", "data/swarmdrop.db")
	apiPort := envIntOrDefault("SWARMDROP_PORT", 8080)

	// ── World ─────────────────────────────────────────────────────────
	sim, err := engine.Build(cfg)
	if err != nil {
		slog.Error("failed to build world", "error", err)
		os.Exit(1)
	}

	// ── Database ──────────────────────────────────────────────────────
	// SWARMDROP_DB=off runs without persistence.
	var db *persistence.DB
	runID := persistence.NewRunID()
	if dbPath != "off" {
		if dir := filepath.Dir(dbPath); dir != "." {
			os.MkdirAll(dir, 0755)
		}
		db, err = persistence.Open(dbPath)
		if err != nil {
			slog.Error("failed to open database", "error", err)
			os.Exit(1)
		}
		defer db.Close()
		slog.Info("database opened", "path", dbPath)

		if prev, err := db.LatestRun(); err == nil {
			slog.Info("previous run", "run_id", prev.ID, "seed", prev.Seed, "last_tick", prev.LastTick)
		} else if !errors.Is(err, persistence.ErrNoRun) {
			slog.Warn("could not read previous run", "error", err)
		}

		if _, err := db.StartRun(runID, sim.Config); err != nil {
			slog.Error("failed to record run", "error", err)
			os.Exit(1)
		}
	}

	save := func() {
		if db == nil {
			return
		}
		if err := db.SaveTotals(runID, sim); err != nil {
			slog.Error("totals save failed", "error", err)
		}
	}

	// ── Engine ────────────────────────────────────────────────────────
	eng := engine.NewEngine()
	eng.Interval = time.Duration(envIntOrDefault("SWARMDROP_INTERVAL_MS", 50)) * time.Millisecond
	eng.MaxTicks = maxTicksFromEnv()

	eng.OnTick = func(uint64) { sim.Step() }
	eng.OnReport = func(uint64) { sim.Report() }
	eng.OnSave = func(uint64) { save() }

	// ── HTTP API ──────────────────────────────────────────────────────
	adminKey := os.Getenv("SWARMDROP_ADMIN_KEY")
	if adminKey == "" {
		slog.Warn("SWARMDROP_ADMIN_KEY not set, admin POST endpoints will be disabled")
	}

	apiServer := &api.Server{
		Sim:      sim,
		Eng:      eng,
		DB:       db,
		RunID:    runID,
		Port:     apiPort,
		AdminKey: adminKey,
	}
	apiServer.Start()

	// ── Start ─────────────────────────────────────────────────────────
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		slog.Info("received signal, shutting down", "signal", sig)
		eng.Stop()
	}()

	fmt.Printf("\nSwarm launched: %d agents, %d hazards, %d sites (seed %d).\n",
		len(sim.Agents), len(sim.Hazards), len(sim.Sites), sim.Config.Seed)
	fmt.Printf("Run: %s\n", runID)
	fmt.Printf("API: http://localhost:%d/api/v1/status\n", apiPort)
	fmt.Println("Starting simulation... (Ctrl+C to stop)")

	eng.Run()

	slog.Info("final save...")
	save()

	fmt.Println()
	fmt.Print(sim.Summary())
}

// loadConfig starts from the reference configuration and applies overrides
// from the environment.
func loadConfig() engine.Config {
	cfg := engine.DefaultConfig()
	cfg.Seed = envInt64OrDefault("SWARMDROP_SEED", cfg.Seed)
	cfg.NumAgents = envIntOrDefault("SWARMDROP_AGENTS", cfg.NumAgents)
	cfg.World.NumHazards = envIntOrDefault("SWARMDROP_HAZARDS", cfg.World.NumHazards)
	cfg.World.NumSites = envIntOrDefault("SWARMDROP_SITES", cfg.World.NumSites)
	cfg.UpdateMode = engine.UpdateMode(envOrDefault("SWARMDROP_UPDATE_MODE", string(cfg.UpdateMode)))
	cfg.World.Placement = world.Placement(envOrDefault("SWARMDROP_PLACEMENT", string(cfg.World.Placement)))
	return cfg
}

// maxTicksFromEnv reads SWARMDROP_MAX_TICKS. Zero or a negative value means
// no limit.
func maxTicksFromEnv() uint64 {
	n := envIntOrDefault("SWARMDROP_MAX_TICKS", 0)
	if n < 0 {
		slog.Warn("negative SWARMDROP_MAX_TICKS, running without a limit", "value", n)
		return 0
	}
	return uint64(n)
}

func envOrDefault(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func envIntOrDefault(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
		slog.Warn("ignoring malformed integer", "key", key, "value", v)
	}
	return defaultVal
}

func envInt64OrDefault(key string, defaultVal int64) int64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
		slog.Warn("ignoring malformed integer", "key", key, "value", v)
	}
	return defaultVal
}
