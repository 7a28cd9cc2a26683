package cmd

import (
	"fmt"
	"sync/atomic"
	"time"

	"jobsmith/internal/pipeline"
	"jobsmith/internal/publisher"

	"github.com/briandowns/spinner"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"
)

func newApplyCmd(g *globalOptions) *cobra.Command {
	var (
		format string
		dryRun bool
		o      overrides
	)

	cmd := &cobra.Command{
		Use:   "apply [SOURCE...]",
		Short: "Publish the job definitions to the orchestrator",
		Long: `Compiles the sources, plans against one snapshot of the orchestrator and
applies the plan: deletes first, then updates, then creates. A failing
action does not stop the others and nothing is rolled back.

Plans with conflicts are refused. Exits with code 3 when the plan has
conflicts or any action failed. --dry-run prints the plan and writes nothing.`,
		Args: cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out, err := g.newFormatter(cmd, format)
			if err != nil {
				return err
			}

			var done, total atomic.Int64
			var s *spinner.Spinner
			if !g.quiet {
				s = spinner.New(spinner.CharSets[14], 100*time.Millisecond, spinner.WithWriter(cmd.ErrOrStderr()))
			}
			onResult := func(publisher.Result) {
				n := done.Add(1)
				if s != nil {
					s.Lock()
					s.Suffix = fmt.Sprintf(" Applying %d/%d...", n, total.Load())
					s.Unlock()
				}
			}

			run, defs, err := g.compile(cmd, &o, args, pipeline.WithOnResult(onResult))
			if err != nil {
				return err
			}
			plan, err := run.Plan(cmd.Context(), defs)
			if err != nil {
				return err
			}

			if dryRun {
				if err := out.FormatPlan(plan); err != nil {
					return err
				}
				return plan.Err()
			}
			if err := plan.Err(); err != nil {
				_ = out.FormatPlan(plan)
				return err
			}

			total.Store(int64(len(plan.Actions())))
			if s != nil && total.Load() > 0 {
				s.Suffix = fmt.Sprintf(" Applying 0/%d...", total.Load())
				s.Start()
			}
			summary, err := run.Apply(cmd.Context(), plan)
			if s != nil {
				if err == nil && !summary.OK() {
					s.FinalMSG = text.FgRed.Sprint("Some actions did not complete") + "\n"
				}
				s.Stop()
			}
			if err != nil {
				return err
			}

			if err := out.FormatSummary(summary); err != nil {
				return err
			}
			if !summary.OK() {
				return &applyFailedError{err: summary.Err()}
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&format, "format", "table", "Output format (table, json, yaml)")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Print the plan without applying it")
	o.addPlanFlags(cmd)
	o.addApplyFlags(cmd)
	return cmd
}
