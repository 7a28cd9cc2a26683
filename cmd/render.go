package cmd

import (
	"jobsmith/internal/pipeline"

	"github.com/spf13/cobra"
)

func newRenderCmd(g *globalOptions) *cobra.Command {
	var (
		format string
		o      overrides
	)

	cmd := &cobra.Command{
		Use:   "render [SOURCE...]",
		Short: "Print the expanded job definitions",
		Long: `Loads the sources, expands every project and validates the result, then
prints the job definitions without contacting the orchestrator.

Sources are files or directories. Without arguments the sources listed in the
configuration file are used. The xml format renders list views as view XML
and fails for any other definition.`,
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

			// Rendering never touches the remote, so no client is created.
			compiled, err := pipeline.New(cfg, nil).Compile(cmd.Context(), args...)
			if err != nil {
				return err
			}
			return out.FormatDefinitions(compiled.Definitions)
		},
	}

	cmd.Flags().StringVar(&format, "format", "yaml", "Output format (table, json, yaml, xml)")
	o.addPlanFlags(cmd)
	return cmd
}
