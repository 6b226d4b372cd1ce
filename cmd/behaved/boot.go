package main

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/l1jgo/behavior/internal/behavior"
	"github.com/l1jgo/behavior/internal/config"
	"github.com/l1jgo/behavior/internal/content"
	"github.com/l1jgo/behavior/internal/core/event"
	"github.com/l1jgo/behavior/internal/data"
	"github.com/l1jgo/behavior/internal/schedule"
	"github.com/l1jgo/behavior/internal/scripting"
	"go.uber.org/zap"
)

// stack is everything a command needs once templates are registered.
type stack struct {
	cfg     *config.Config
	log     *zap.Logger
	bus     *event.Bus
	sched   *schedule.TickScheduler
	rt      *behavior.Runtime
	lua     *scripting.Engine
	prefabs *data.PrefabTable
}

func (s *stack) Close() {
	if s.lua != nil {
		s.lua.Close()
	}
}

// boot builds the runtime and registers built-in, scripted and data
// templates. verbose prints the load summary.
func boot(cfg *config.Config, log *zap.Logger, verbose bool) (*stack, error) {
	policy, err := behavior.ParseDuplicatePolicy(cfg.Behavior.DuplicatePolicy)
	if err != nil {
		return nil, err
	}
	bus := event.NewBus()
	sched := schedule.New(log, cfg.Scheduler.MaxFiresPerTick)
	rt := behavior.NewRuntime(behavior.Options{
		Logger:          log,
		Bus:             bus,
		Scheduler:       sched,
		DuplicatePolicy: policy,
		StrictOrder:     cfg.Behavior.StrictSceneOrder,
	})
	s := &stack{cfg: cfg, log: log, bus: bus, sched: sched, rt: rt}

	if verbose {
		printSection("Templates")
	}
	if err := content.Register(rt); err != nil {
		return nil, fmt.Errorf("built-in templates: %w", err)
	}
	if verbose {
		printStat("Built-in templates", rt.Registry().Count())
	}

	var binder data.Binder
	if cfg.Scripting.Enabled {
		s.lua, err = scripting.NewEngine(cfg.Scripting.ScriptsDir, log)
		if err != nil {
			return nil, fmt.Errorf("lua engine: %w", err)
		}
		binder = s.lua
		if verbose {
			printOK("Lua scripts loaded")
		}
	}

	templates, err := data.LoadTemplateTable(cfg.Data.Templates)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		log.Warn("no template table", zap.String("path", cfg.Data.Templates))
	case err != nil:
		s.Close()
		return nil, err
	default:
		before := rt.Registry().Count()
		if err := templates.Define(rt, binder); err != nil {
			s.Close()
			return nil, fmt.Errorf("data templates: %w", err)
		}
		if verbose {
			printStat("Data templates", rt.Registry().Count()-before)
		}
	}
	if s.lua != nil && verbose {
		printStat("Scripted templates", s.lua.Bound())
	}

	s.prefabs, err = data.LoadPrefabTable(cfg.Data.Prefabs)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		log.Warn("no prefab table", zap.String("path", cfg.Data.Prefabs))
		s.prefabs, _ = data.ParsePrefabTable(nil)
	case err != nil:
		s.Close()
		return nil, err
	}
	if verbose {
		printStat("Prefabs", s.prefabs.Count())
		fmt.Println()
	}
	return s, nil
}
