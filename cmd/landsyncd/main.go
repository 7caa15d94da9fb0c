// Command landsyncd runs a small demo land keeper: one arena instance,
// synced to every connected viewer over WebSocket at a fixed tick rate, with
// every tick recorded for later deterministic replay.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/gmliao/landsync/internal/catalog"
	"github.com/gmliao/landsync/internal/config"
	"github.com/gmliao/landsync/internal/demoland"
	"github.com/gmliao/landsync/internal/enginelog"
	"github.com/gmliao/landsync/internal/ids"
	"github.com/gmliao/landsync/internal/replay"
	"github.com/gmliao/landsync/internal/syncbracket"
	"github.com/gmliao/landsync/internal/syncengine"
	"github.com/gmliao/landsync/internal/watch"
	"github.com/gmliao/landsync/internal/wsserver"
)

const tickInterval = 500 * time.Millisecond

func main() {
	warnings := enginelog.NewRingBuffer(64)
	base := slog.NewTextHandler(os.Stdout, nil)
	tee := enginelog.NewTeeHandler(base, slog.LevelWarn, warnings.Push)
	logger := slog.New(tee)
	slog.SetDefault(logger)

	cfgPath := config.DefaultPath()
	cfg, err := config.EnsureFile(cfgPath)
	if err != nil {
		logger.Error("failed to load config", "path", cfgPath, "error", err)
		os.Exit(1)
	}
	logger.Info("loaded config", "path", cfgPath, "listen_addr", cfg.ListenAddr)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	var wg sync.WaitGroup

	var useDirtyTracking atomic.Bool
	useDirtyTracking.Store(cfg.UseDirtyTracking)

	if cfg.WatchForChanges {
		// The active listen address and replay directory are fixed for the
		// life of this process; a reload only affects fields read per-tick
		// below (UseDirtyTracking).
		watcher, err := watch.NewConfigWatcher(cfgPath, func(next config.Config) {
			logger.Info("config reloaded", "listen_addr", next.ListenAddr, "use_dirty_tracking", next.UseDirtyTracking)
			useDirtyTracking.Store(next.UseDirtyTracking)
		})
		if err != nil {
			logger.Warn("config watch disabled", "error", err)
		} else {
			watcher.Run(ctx, &wg)
			defer watcher.Close()
		}
	}

	var cat *catalog.Catalog
	if cfg.CatalogPath != "" {
		cat, err = catalog.Open(cfg.CatalogPath)
		if err != nil {
			logger.Error("failed to open catalog", "path", cfg.CatalogPath, "error", err)
			os.Exit(1)
		}
		defer cat.Close()
	}

	if err := os.MkdirAll(cfg.ReplayDir, 0o755); err != nil {
		logger.Error("failed to create replay directory", "dir", cfg.ReplayDir, "error", err)
		os.Exit(1)
	}

	seed := cfg.DefaultRNGSeed
	if seed == 0 {
		seed = int64(time.Now().UnixNano())
	}
	arena := demoland.NewArena(seed)
	landID := ids.NewLandID()
	bracket := syncbracket.New(arena.Node)
	engine := syncengine.New()

	hub := wsserver.NewHub(wsserver.HubOptions{Addr: cfg.ListenAddr})
	if err := hub.Start(ctx); err != nil {
		logger.Error("failed to start hub", "error", err)
		os.Exit(1)
	}
	defer hub.Stop()
	logger.Info("listening", "url", hub.URL())

	runID := ids.NewRunID()
	initialHash, err := replay.StateHash(arena.Node)
	if err != nil {
		logger.Error("failed to hash initial state", "error", err)
		os.Exit(1)
	}
	recorder := replay.NewRecorder(replay.Metadata{
		LandID:        landID,
		LandType:      "arena",
		CreatedAt:     time.Now().UTC().Format(time.RFC3339),
		DefinitionID:  "demoland.arena.v1",
		InitialHash:   initialHash,
		RNGSeed:       seed,
		SchemaVersion: 1,
	})

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)

	var tick uint64
	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()

runLoop:
	for {
		select {
		case <-sig:
			logger.Info("shutdown requested")
			break runLoop
		case <-ticker.C:
			tick++
			runTick(arena, bracket, engine, hub, recorder, tick, useDirtyTracking.Load(), logger)
		}
	}

	cancel()
	wg.Wait()

	recordPath := filepath.Join(cfg.ReplayDir, fmt.Sprintf("%s.json", runID))
	if err := recorder.Save(recordPath); err != nil {
		logger.Error("failed to save replay record", "error", err)
	} else {
		logger.Info("saved replay record", "path", recordPath)
	}

	if cat != nil {
		finalHash, err := replay.StateHash(arena.Node)
		if err != nil {
			logger.Warn("failed to hash final state for catalog", "error", err)
			finalHash = ""
		}
		run := catalog.Run{
			RunID:        runID,
			LandID:       landID,
			LandType:     "arena",
			DefinitionID: "demoland.arena.v1",
			CreatedAt:    time.Now().UTC().Format(time.RFC3339),
			RecordPath:   recordPath,
			TickCount:    int64(tick),
			FinalHash:    finalHash,
		}
		if err := cat.Index(run); err != nil {
			logger.Error("failed to index run in catalog", "error", err)
		}
	}

	if recent := warnings.Recent(); len(recent) > 0 {
		logger.Info("warnings observed during this run", "count", len(recent))
		for _, e := range recent {
			fmt.Fprintf(os.Stderr, "  [%s] %s %s\n", e.Level, e.Time.Format(time.RFC3339), e.Message)
		}
	}
}

// runTick performs one sync round: begin a sync bracket, generate a diff for
// every connected viewer, push it over the hub, record the tick, and release
// the bracket.
func runTick(arena *demoland.Arena, bracket *syncbracket.Bracket, engine *syncengine.DiffEngine, hub *wsserver.Hub, recorder *replay.Recorder, tick uint64, useDirtyTracking bool, logger *slog.Logger) {
	session, ok := bracket.BeginSync()
	if !ok {
		logger.Warn("sync round contended, skipping tick", "tick", tick)
		return
	}
	defer session.Release()

	viewers := hub.ConnectedViewers()
	for _, viewer := range viewers {
		upd, err := engine.GenerateDiff(arena.Node, viewer, syncengine.Options{UseDirtyTracking: useDirtyTracking})
		if err != nil {
			logger.Error("generate_diff failed", "viewer", viewer, "error", err)
			continue
		}
		if upd.Kind == syncengine.KindNoChange {
			continue
		}
		if err := hub.Send(viewer, upd); err != nil {
			logger.Warn("send failed", "viewer", viewer, "error", err)
		}
	}

	hash, err := replay.StateHash(arena.Node)
	if err != nil {
		logger.Error("state_hash failed", "tick", tick, "error", err)
		hash = ""
	}
	recorder.AddFrame(replay.Frame{TickID: tick, Hash: hash}, nil)
}
