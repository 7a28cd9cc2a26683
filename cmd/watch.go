package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"jobsmith/internal/pipeline"
	"jobsmith/internal/watch"
	"jobsmith/pkg/logging"

	"github.com/spf13/cobra"
)

func newWatchCmd(g *globalOptions) *cobra.Command {
	var (
		format   string
		apply    bool
		debounce time.Duration
		o        overrides
	)

	cmd := &cobra.Command{
		Use:   "watch [SOURCE...]",
		Short: "Re-plan whenever the sources change",
		Long: `Watches the sources and prints a fresh plan after every change. With --apply
each plan is also applied. Errors are reported and watching continues.
Stop with Ctrl+C.`,
		Args: cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := g.loadConfig(cmd, &o)
			if err != nil {
				return err
			}
			out, err := g.newFormatter(cmd, format)
			if err != nil {
				return err
			}
			client, err := newClient(cfg)
			if err != nil {
				return err
			}

			sources := args
			if len(sources) == 0 {
				sources = cfg.Sources
			}
			if len(sources) == 0 {
				return &pipeline.StageError{Stage: pipeline.StageLoad, Err: pipeline.ErrNoSources}
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			cycle := func() {
				// One run per change so every cycle gets its own id.
				run := pipeline.New(cfg, client)
				plan, err := planOnce(ctx, run, sources)
				if err != nil {
					logging.Error("CLI", err, "Plan failed")
					return
				}
				if err := out.FormatPlan(plan); err != nil {
					logging.Error("CLI", err, "Failed to print plan")
				}
				if !apply || plan.IsEmpty() {
					return
				}
				summary, err := run.Apply(ctx, plan)
				if err != nil {
					logging.Error("CLI", err, "Apply refused")
					return
				}
				if err := out.FormatSummary(summary); err != nil {
					logging.Error("CLI", err, "Failed to print summary")
				}
			}

			w := watch.NewWatcher(sources, debounce)
			changes := make(chan watch.Change, 1)
			if err := w.Start(ctx, changes); err != nil {
				return fmt.Errorf("failed to watch sources: %w", err)
			}
			defer func() { _ = w.Stop() }()

			cycle()
			return watchLoop(ctx, changes, cycle)
		},
	}

	cmd.Flags().StringVar(&format, "format", "table", "Output format (table, json, yaml)")
	cmd.Flags().BoolVar(&apply, "apply", false, "Apply every plan, not just print it")
	cmd.Flags().DurationVar(&debounce, "debounce", watch.DefaultDebounceInterval, "Quiet period before re-planning after a change")
	o.addPlanFlags(cmd)
	o.addApplyFlags(cmd)
	return cmd
}

// watchLoop calls cycle once per change until ctx is done.
func watchLoop(ctx context.Context, changes <-chan watch.Change, cycle func()) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case c := <-changes:
			logging.Info("CLI", "Sources changed: %v", c.Files)
			cycle()
		}
	}
}
