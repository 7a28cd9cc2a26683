package cmd

import (
	"context"

	"jobsmith/internal/formatting"
	"jobsmith/internal/job"
	"jobsmith/internal/pipeline"
	"jobsmith/internal/reconciler"
	"jobsmith/pkg/logging"

	"github.com/spf13/cobra"
)

func newPlanCmd(g *globalOptions) *cobra.Command {
	var (
		format string
		o      overrides
	)

	cmd := &cobra.Command{
		Use:   "plan [SOURCE...]",
		Short: "Show the changes apply would make",
		Long: `Compiles the sources, takes one snapshot of the orchestrator and prints the
creates, updates and deletes needed to converge. Nothing is written.

Exits with code 3 when a desired job collides with a remote job jobsmith
does not manage.`,
		Args: cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out, err := g.newFormatter(cmd, format)
			if err != nil {
				return err
			}
			run, defs, err := g.compile(cmd, &o, args)
			if err != nil {
				return err
			}
			plan, err := run.Plan(cmd.Context(), defs)
			if err != nil {
				return err
			}
			if err := out.FormatPlan(plan); err != nil {
				return err
			}
			return plan.Err()
		},
	}

	cmd.Flags().StringVar(&format, "format", "table", "Output format (table, json, yaml)")
	o.addPlanFlags(cmd)
	return cmd
}

// compile loads the configuration, creates the remote client and compiles
// the sources into a new run.
func (g *globalOptions) compile(cmd *cobra.Command, o *overrides, args []string, opts ...pipeline.Option) (*pipeline.Run, []job.Definition, error) {
	cfg, err := g.loadConfig(cmd, o)
	if err != nil {
		return nil, nil, err
	}
	client, err := newClient(cfg)
	if err != nil {
		return nil, nil, err
	}

	run := pipeline.New(cfg, client, opts...)
	compiled, err := run.Compile(cmd.Context(), args...)
	if err != nil {
		return nil, nil, err
	}
	return run, compiled.Definitions, nil
}

// planOnce compiles and plans without printing. Used by watch.
func planOnce(ctx context.Context, run *pipeline.Run, sources []string) (*reconciler.Plan, error) {
	compiled, err := run.Compile(ctx, sources...)
	if err != nil {
		return nil, err
	}
	plan, err := run.Plan(ctx, compiled.Definitions)
	if err != nil {
		return nil, err
	}
	logging.Debug("CLI", "Plan for run %s: %s", run.ID, formatting.PrettyJSON(plan))
	return plan, nil
}
