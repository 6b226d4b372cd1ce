package main

import (
	"context"
	"fmt"
	"os"

	"github.com/l1jgo/behavior/internal/config"
	"github.com/urfave/cli/v3"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const (
	configKey = "config"
	itersKey  = "iters"
)

func main() {
	cmd := &cli.Command{
		Name:  "behaved",
		Usage: "Run and inspect behavior-driven scenes",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  configKey,
				Usage: "Path to the TOML config (default $BEHAVED_CONFIG or config/behaved.toml)",
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "run",
				Usage:  "Load templates and prefabs, then tick the scene until interrupted",
				Action: runScene,
			},
			{
				Name:   "templates",
				Usage:  "List every registered behavior template",
				Action: listTemplates,
			},
			{
				Name:  "bench",
				Usage: "Measure signal fan-out and chain latency",
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  itersKey,
						Usage: "Raises measured per row",
						Value: 1000,
					},
				},
				Action: bench,
			},
		},
	}
	if err := cmd.Run(context.Background(), os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func loadConfig(cmd *cli.Command) (*config.Config, error) {
	cfgPath := "config/behaved.toml"
	if p := os.Getenv("BEHAVED_CONFIG"); p != "" {
		cfgPath = p
	}
	if p := cmd.String(configKey); p != "" {
		cfgPath = p
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

func newLogger(cfg config.LoggingConfig) (*zap.Logger, error) {
	var level zapcore.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = zapcore.InfoLevel
	}

	var zapCfg zap.Config
	if cfg.Format == "json" {
		zapCfg = zap.NewProductionConfig()
	} else {
		zapCfg = zap.NewDevelopmentConfig()
		zapCfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		zapCfg.EncoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05")
		zapCfg.EncoderConfig.ConsoleSeparator = "  "
		zapCfg.DisableCaller = true
		zapCfg.DisableStacktrace = true
	}
	zapCfg.Level = zap.NewAtomicLevelAt(level)

	return zapCfg.Build()
}
