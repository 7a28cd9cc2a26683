package cmd

import (
	"errors"
	"fmt"

	"jobsmith/internal/config"
	"jobsmith/internal/pipeline"

	"github.com/spf13/cobra"
)

func newValidateCmd(g *globalOptions) *cobra.Command {
	var o overrides

	cmd := &cobra.Command{
		Use:   "validate [SOURCE...]",
		Short: "Check that the sources expand into valid job definitions",
		Long: `Loads, renders, expands and validates the sources and reports every problem
found. Exits with code 2 when anything is invalid. The orchestrator is not
contacted.`,
		Args: cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := g.loadConfig(cmd, &o)
			if err != nil {
				return err
			}

			compiled, err := pipeline.New(cfg, nil).Compile(cmd.Context(), args...)
			if err != nil {
				var collection *config.ConfigurationErrorCollection
				if errors.As(err, &collection) && !g.quiet {
					fmt.Fprint(cmd.ErrOrStderr(), collection.GetDetailedReport())
				}
				return err
			}

			if !g.quiet {
				for _, w := range compiled.Warnings {
					fmt.Fprintf(cmd.ErrOrStderr(), "warning: %s\n", w)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%d job definitions from %d files are valid\n",
					len(compiled.Definitions), len(compiled.Files))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&o.schemaFile, "schema", "", "YAML schema file replacing the default job schema")
	return cmd
}
