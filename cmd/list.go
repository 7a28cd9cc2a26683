package cmd

import (
	"github.com/spf13/cobra"
)

func newListCmd(g *globalOptions) *cobra.Command {
	var (
		format      string
		managedOnly bool
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the jobs on the orchestrator",
		Long: `Lists every job the configured remote reports, with its ownership marker
and content hash. Use --managed to show only jobs this installation owns.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := g.loadConfig(cmd, nil)
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

			state, err := client.ListManagedJobs(cmd.Context())
			if err != nil {
				return err
			}
			if managedOnly {
				state = state.Managed()
			}
			return out.FormatRemoteState(state)
		},
	}

	cmd.Flags().StringVar(&format, "format", "table", "Output format (table, json, yaml)")
	cmd.Flags().BoolVar(&managedOnly, "managed", false, "Only show jobs managed by this installation")
	return cmd
}
