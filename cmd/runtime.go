package cmd

import (
	"fmt"
	"time"

	"jobsmith/internal/config"
	"jobsmith/internal/formatting"
	"jobsmith/internal/remote"
	"jobsmith/pkg/logging"

	"github.com/spf13/cobra"
)

// overrides are per-command flags that replace configuration file values when set.
type overrides struct {
	adoptUnmanaged bool
	concurrency    int
	timeout        time.Duration
	schemaFile     string
}

func (o *overrides) addPlanFlags(cmd *cobra.Command) {
	cmd.Flags().BoolVar(&o.adoptUnmanaged, "adopt-unmanaged", false, "Take over unmanaged remote jobs with the same name instead of reporting a conflict")
	cmd.Flags().StringVar(&o.schemaFile, "schema", "", "YAML schema file replacing the default job schema")
}

func (o *overrides) addApplyFlags(cmd *cobra.Command) {
	cmd.Flags().IntVar(&o.concurrency, "concurrency", 0, "Maximum number of remote calls in flight")
	cmd.Flags().DurationVar(&o.timeout, "timeout", 0, "Overall deadline for the apply run")
}

// loadConfig loads the configuration file and applies flag overrides.
func (g *globalOptions) loadConfig(cmd *cobra.Command, o *overrides) (*config.Config, error) {
	cfg, err := config.LoadConfig(g.configPath)
	if err != nil {
		return nil, err
	}
	if o == nil {
		return &cfg, nil
	}

	flags := cmd.Flags()
	if flags.Changed("adopt-unmanaged") {
		cfg.AdoptUnmanaged = o.adoptUnmanaged
	}
	if flags.Changed("schema") {
		cfg.SchemaFile = o.schemaFile
	}
	if flags.Changed("concurrency") {
		if o.concurrency < 1 {
			return nil, fmt.Errorf("--concurrency must be at least 1")
		}
		cfg.Publish.Concurrency = o.concurrency
	}
	if flags.Changed("timeout") {
		if o.timeout <= 0 {
			return nil, fmt.Errorf("--timeout must be positive")
		}
		cfg.Publish.Timeout = o.timeout
	}
	return &cfg, nil
}

// newClient creates the remote client selected by cfg.
func newClient(cfg *config.Config) (remote.Client, error) {
	if cfg.Remote.Type == config.RemoteTypeMemory || cfg.Remote.Type == "" {
		logging.Warn("CLI", "Using the in-memory remote: nothing is persisted between runs")
	}
	client, err := remote.New(cfg.Remote)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s remote: %w", cfg.Remote.Type, err)
	}
	return client, nil
}

// newFormatter creates a formatter writing to the command's output.
func (g *globalOptions) newFormatter(cmd *cobra.Command, format string) (formatting.Formatter, error) {
	f, err := formatting.ParseFormat(format)
	if err != nil {
		return nil, err
	}
	return formatting.New(cmd.OutOrStdout(), formatting.Options{
		Format: f,
		Quiet:  g.quiet,
		Color:  !g.noColor,
	})
}
