package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/l1jgo/behavior/internal/behavior"
	coresys "github.com/l1jgo/behavior/internal/core/system"
	"github.com/l1jgo/behavior/internal/data"
	"github.com/l1jgo/behavior/internal/persist"
	"github.com/l1jgo/behavior/internal/schedule"
	"github.com/l1jgo/behavior/internal/scene"
	"github.com/urfave/cli/v3"
	"go.uber.org/zap"
)

func runScene(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	log, err := newLogger(cfg.Logging)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer log.Sync()

	printBanner(cfg.Scene.Name)

	s, err := boot(cfg, log, true)
	if err != nil {
		return err
	}
	defer s.Close()

	printSection("Scene")
	sc := scene.New(scene.Options{
		Name:       cfg.Scene.Name,
		Runtime:    s.rt,
		Bus:        s.bus,
		Logger:     log,
		MaxObjects: cfg.Scene.MaxObjects,
		Factory:    s.prefabs.Factory(s.rt),
	})
	spawned, err := s.prefabs.Populate(sc)
	if err != nil {
		return fmt.Errorf("populate scene: %w", err)
	}
	printStat("Objects spawned", spawned)

	runner := coresys.NewRunner()
	runner.Register(schedule.NewSystem(s.sched))
	scene.Register(runner, sc, s.bus)

	var persistence *persist.PersistenceSystem
	if cfg.Database.Enabled {
		dbCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
		db, err := persist.Open(dbCtx, cfg.Database, log)
		cancel()
		if err != nil {
			return fmt.Errorf("database: %w", err)
		}
		defer db.Close()
		runID := uuid.New()
		persistence = persist.NewPersistenceSystem(sc, s.bus,
			persist.NewSnapshotRepo(db), persist.NewJournalRepo(db),
			runID, cfg.Database.SnapshotInterval, log)
		runner.Register(persistence)
		printOK("Snapshot database ready (run " + runID.String() + ")")
	}
	fmt.Println()

	shutdownCh := make(chan os.Signal, 1)
	signal.Notify(shutdownCh, syscall.SIGINT, syscall.SIGTERM)

	ticker := time.NewTicker(cfg.Scene.TickRate)
	defer ticker.Stop()

	printReady(fmt.Sprintf("Scene %q ticking every %s", cfg.Scene.Name, cfg.Scene.TickRate))

	for {
		select {
		case <-ticker.C:
			runner.Tick(cfg.Scene.TickRate)
		case sig := <-shutdownCh:
			log.Info("shutting down", zap.String("signal", sig.String()))
			return shutdown(s, sc, runner, persistence)
		case <-ctx.Done():
			return shutdown(s, sc, runner, persistence)
		}
	}
}

// shutdown saves every object before the scene is torn down.
func shutdown(s *stack, sc *scene.Scene, runner *coresys.Runner, persistence *persist.PersistenceSystem) error {
	if persistence != nil {
		persistence.SaveAll()
	}
	owners := make([]*behavior.Owner, 0, sc.Len())
	for _, obj := range sc.Objects() {
		owners = append(owners, obj.Owner)
	}
	n, err := data.SaveSnapshots(s.cfg.Data.SnapshotDir, owners)
	if err != nil {
		s.log.Error("snapshot files", zap.Error(err))
	}
	s.log.Info("scene stopped",
		zap.String("ticks", humanize.Comma(int64(runner.Ticks()))),
		zap.String("callbacks_fired", humanize.Comma(int64(s.sched.Fired()))),
		zap.Int("snapshots", n),
	)
	return err
}
