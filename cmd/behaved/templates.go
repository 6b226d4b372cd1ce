package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/l1jgo/behavior/internal/behavior"
	"github.com/urfave/cli/v3"
	"go.uber.org/zap"
)

func listTemplates(_ context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	cfg.Logging.Level = "warn"
	log, err := newLogger(cfg.Logging)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer log.Sync()

	s, err := boot(cfg, log, false)
	if err != nil {
		return err
	}
	defer s.Close()

	tbl := table.NewWriter()
	tbl.SetTitle("Behavior Templates")
	tbl.SetOutputMirror(os.Stdout)
	tbl.AppendHeader(table.Row{"template", "category", "fields", "inputs", "outputs", "requires"})
	for _, tpl := range s.rt.Registry().Templates() {
		tbl.AppendRow(table.Row{
			tpl.Name(),
			tpl.Category(),
			len(tpl.Fields()),
			portNames(tpl.Inputs()),
			portNames(tpl.Outputs()),
			strings.Join(tpl.Requires(), ", "),
		})
	}
	tbl.AppendFooter(table.Row{"total", s.rt.Registry().Count(), "", "", "", ""})
	tbl.Render()

	for _, d := range s.rt.Registry().Diagnostics() {
		log.Warn("template diagnostic", zap.String("template", d.Template), zap.Error(d.Err))
	}
	return nil
}

func portNames(ports []behavior.Port) string {
	names := make([]string, 0, len(ports))
	for _, p := range ports {
		names = append(names, p.Name)
	}
	return strings.Join(names, ", ")
}
