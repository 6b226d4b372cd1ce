package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/jamiealquiza/tachymeter"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/l1jgo/behavior/internal/behavior"
	"github.com/urfave/cli/v3"
)

var benchSizes = []int{1, 10, 100, 1_000}

func bench(_ context.Context, cmd *cli.Command) error {
	iters := int(cmd.Int(itersKey))
	if iters <= 0 {
		return fmt.Errorf("--%s must be positive", itersKey)
	}

	tbl := table.NewWriter()
	tbl.SetTitle("Signal Delivery")
	tbl.SetOutputMirror(os.Stdout)
	tbl.AppendHeader(table.Row{"benchmark", "deliveries", "avg", "min", "p75", "p99", "max"})

	for _, w := range benchSizes {
		row, err := measure(fmt.Sprintf("fan-out: %d", w), iters, w, func(rt *behavior.Runtime) (*behavior.Instance, error) {
			return fanOut(rt, w)
		})
		if err != nil {
			return err
		}
		tbl.AppendRow(row)
	}
	for _, h := range benchSizes {
		row, err := measure(fmt.Sprintf("chain: %d", h), iters, h, func(rt *behavior.Runtime) (*behavior.Instance, error) {
			return chain(rt, h)
		})
		if err != nil {
			return err
		}
		tbl.AppendRow(row)
	}
	tbl.Render()
	return nil
}

func measure(name string, iters, perRaise int, build func(rt *behavior.Runtime) (*behavior.Instance, error)) (table.Row, error) {
	rt, err := benchRuntime()
	if err != nil {
		return nil, err
	}
	src, err := build(rt)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}

	tach := tachymeter.New(&tachymeter.Config{Size: iters})
	for i := 0; i < iters; i++ {
		start := time.Now()
		if err := src.Raise("out", i); err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		tach.AddTime(time.Since(start))
	}

	calc := tach.Calc()
	return table.Row{
		name,
		humanize.Comma(int64(iters * perRaise)),
		calc.Time.Avg,
		calc.Time.Min,
		calc.Time.P75,
		calc.Time.P99,
		calc.Time.Max,
	}, nil
}

// benchRuntime defines a Relay template whose "in" method re-raises on
// "out", and a Sink whose "in" does nothing.
func benchRuntime() (*behavior.Runtime, error) {
	rt := behavior.NewRuntime(behavior.Options{})
	relay, err := rt.Registry().Define("Relay")
	if err != nil {
		return nil, err
	}
	sink, err := rt.Registry().Define("Sink")
	if err != nil {
		return nil, err
	}
	for _, tpl := range []*behavior.Template{relay, sink} {
		if _, err := tpl.AddInput("in", "In", ""); err != nil {
			return nil, err
		}
		if _, err := tpl.AddOutput("out", "Out", ""); err != nil {
			return nil, err
		}
	}
	if err := relay.Bind("in", func(inst *behavior.Instance, c behavior.Call) error {
		return inst.Raise("out", c.Args...)
	}); err != nil {
		return nil, err
	}
	if err := sink.Bind("in", func(*behavior.Instance, behavior.Call) error { return nil }); err != nil {
		return nil, err
	}
	return rt, nil
}

func fanOut(rt *behavior.Runtime, width int) (*behavior.Instance, error) {
	o := rt.NewOwner("fan")
	src, err := o.Attach("Sink")
	if err != nil {
		return nil, err
	}
	for i := 0; i < width; i++ {
		dst, err := o.Attach("Sink")
		if err != nil {
			return nil, err
		}
		if _, err := src.Connect("out", dst, "in"); err != nil {
			return nil, err
		}
	}
	return src, nil
}

func chain(rt *behavior.Runtime, depth int) (*behavior.Instance, error) {
	o := rt.NewOwner("chain")
	src, err := o.Attach("Relay")
	if err != nil {
		return nil, err
	}
	prev := src
	for i := 1; i < depth; i++ {
		next, err := o.Attach("Relay")
		if err != nil {
			return nil, err
		}
		if _, err := prev.Connect("out", next, "in"); err != nil {
			return nil, err
		}
		prev = next
	}
	last, err := o.Attach("Sink")
	if err != nil {
		return nil, err
	}
	if _, err := prev.Connect("out", last, "in"); err != nil {
		return nil, err
	}
	return src, nil
}
