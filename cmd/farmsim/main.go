// Command farmsim runs the homestead farm simulation headless, with
// persistence and the HTTP API.
package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/dustin/go-humanize"

	"github.com/talgya/homestead/internal/api"
	"github.com/talgya/homestead/internal/config"
	"github.com/talgya/homestead/internal/content"
	"github.com/talgya/homestead/internal/engine"
	"github.com/talgya/homestead/internal/persistence"
	"github.com/talgya/homestead/internal/planner"
	"github.com/talgya/homestead/internal/saveslot"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	cfg, err := config.Load(os.Getenv("FARMSIM_CONFIG"))
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	// ── Content ───────────────────────────────────────────────────────
	c := content.Default()
	if cfg.ContentPath != "" {
		if c, err = content.Load(cfg.ContentPath); err != nil {
			slog.Error("failed to load content", "path", cfg.ContentPath, "error", err)
			os.Exit(1)
		}
	}
	slog.Info("content loaded",
		"buildings", len(c.Buildings),
		"crops", len(c.Crops),
		"tiers", len(c.Tiers),
		"grid", fmt.Sprintf("%dx%d", c.Grid.Rows, c.Grid.Columns),
	)

	// ── Store ─────────────────────────────────────────────────────────
	var (
		store engine.Store
		db    *persistence.DB
	)
	switch cfg.Store {
	case config.StoreSlot:
		slots, err := saveslot.Open(cfg.AppName)
		if err != nil {
			slog.Error("failed to open save slots", "error", err)
			os.Exit(1)
		}
		store = slots.Slot(cfg.Slot)
		slog.Info("save slot opened", "app", cfg.AppName, "slot", cfg.Slot)
	default:
		os.MkdirAll(filepath.Dir(cfg.DBPath), 0755)
		db, err = persistence.Open(cfg.DBPath)
		if err != nil {
			slog.Error("failed to open database", "error", err)
			os.Exit(1)
		}
		defer db.Close()
		store = db
		slog.Info("database opened", "path", cfg.DBPath)
	}

	// ── Load or Start Fresh ───────────────────────────────────────────
	farm := engine.NewFarm(c)
	snap, err := store.Load()
	switch {
	case err == nil:
		if err := farm.Restore(snap); err != nil {
			slog.Error("failed to restore farm", "error", err)
			os.Exit(1)
		}
	case errors.Is(err, persistence.ErrNoState), errors.Is(err, saveslot.ErrNoSlot):
		slog.Info("no saved farm found, starting fresh", "money", humanize.Comma(int64(c.StartingMoney)))
		if err := store.Save(farm.Snapshot()); err != nil {
			slog.Error("initial save failed", "error", err)
		}
	default:
		slog.Error("failed to load farm", "error", err)
		os.Exit(1)
	}

	// ── Simulation ────────────────────────────────────────────────────
	eng := engine.NewEngine()
	eng.Tick = farm.LastTick
	eng.SetSpeed(float64(cfg.Speed))

	save := func() {
		if err := store.Save(farm.Snapshot()); err != nil {
			slog.Error("save failed", "error", err)
		}
		if db != nil {
			if err := db.SaveEvents(farm.RecentEvents(0)); err != nil {
				slog.Error("event save failed", "error", err)
			}
		}
	}

	eng.OnTick = farm.Step
	eng.OnMinute = farm.TickMinute
	eng.OnDay = func(tick uint64) {
		farm.TickDay(tick)
		// Auto-save daily.
		save()
	}

	// ── HTTP API ──────────────────────────────────────────────────────
	if cfg.AdminKey == "" {
		slog.Warn("FARMSIM_ADMIN_KEY not set, admin POST endpoints will be disabled")
	}
	apiServer := &api.Server{
		Farm:           farm,
		Eng:            eng,
		Store:          store,
		DB:             db,
		Fertility:      planner.NewFertility(c.Grid.Rows, c.Grid.Columns, cfg.Seed),
		Port:           cfg.Port,
		AdminKey:       cfg.AdminKey,
		RelayKey:       cfg.RelayKey,
		RateLimit:      cfg.RateLimit,
		MaxStreamConns: cfg.MaxStreamConns,
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

	fmt.Printf("\nHomestead is growing: %d buildings, $%s in the bank, tier %s.\n",
		len(farm.Placement.Placements()), humanize.Comma(int64(farm.Ledger.Balance())), farm.Progression.TierName())
	fmt.Printf("API: http://localhost:%d/api/v1/status\n", cfg.Port)
	if farm.LastTick > 0 {
		fmt.Printf("Resuming from tick %d (%s)\n", farm.LastTick, engine.SimTime(farm.LastTick))
	}
	fmt.Println("Starting simulation... (Ctrl+C to stop)")

	eng.Run()

	// Final save on shutdown.
	slog.Info("final save...")
	eng.Do(save)

	fmt.Println("Simulation stopped. Farm saved.")
}
