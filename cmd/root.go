package cmd

import (
	"errors"
	"os"

	"jobsmith/internal/config"
	"jobsmith/internal/pipeline"
	"jobsmith/internal/publisher"
	"jobsmith/internal/reconciler"
	"jobsmith/pkg/logging"

	"github.com/spf13/cobra"
)

// Exit codes for CLI commands.
const (
	// ExitCodeSuccess indicates successful execution.
	ExitCodeSuccess = 0
	// ExitCodeError indicates a general error (command failed, invalid arguments).
	ExitCodeError = 1
	// ExitCodeInvalid indicates a configuration, expansion or validation error.
	// Nothing was published.
	ExitCodeInvalid = 2
	// ExitCodeConflict indicates plan conflicts or failed remote actions.
	ExitCodeConflict = 3
)

// globalOptions holds the persistent flags shared by every command.
type globalOptions struct {
	configPath string
	logLevel   string
	debug      bool
	quiet      bool
	noColor    bool
}

// rootCmd represents the base command for the jobsmith application.
// It is the entry point when the application is called without any subcommands.
var rootCmd *cobra.Command

// Assigned in init to break the initialization cycle through runSelfUpdate.
func init() {
	rootCmd = newRootCmd()
}

func newRootCmd() *cobra.Command {
	opts := &globalOptions{}

	root := &cobra.Command{
		Use:   "jobsmith",
		Short: "Compile declarative job definitions and publish them to an orchestrator",
		Long: `jobsmith reads job templates and projects from YAML sources, expands every
parameter matrix into concrete jobs, validates them against a schema and
reconciles the orchestrator with the result. Only jobs jobsmith created are
ever updated or deleted.`,
		// SilenceUsage prevents Cobra from printing the usage message on errors that are handled by the application.
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			level := logging.LevelWarn
			switch {
			case opts.debug:
				level = logging.LevelDebug
			case opts.logLevel != "":
				parsed, err := logging.ParseLevel(opts.logLevel)
				if err != nil {
					return err
				}
				level = parsed
			case opts.quiet:
				level = logging.LevelError
			}
			logging.InitForCLI(level, cmd.ErrOrStderr())
			return nil
		},
	}

	root.PersistentFlags().StringVar(&opts.configPath, "config", config.DefaultConfigFileName, "Path to the jobsmith configuration file")
	root.PersistentFlags().BoolVar(&opts.debug, "debug", false, "Enable debug logging")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "Log level (debug, info, warn, error); --debug takes precedence")
	root.PersistentFlags().BoolVarP(&opts.quiet, "quiet", "q", false, "Suppress progress output and decorations")
	root.PersistentFlags().BoolVar(&opts.noColor, "no-color", false, "Disable colored output")

	root.AddCommand(newRenderCmd(opts))
	root.AddCommand(newValidateCmd(opts))
	root.AddCommand(newPlanCmd(opts))
	root.AddCommand(newApplyCmd(opts))
	root.AddCommand(newListCmd(opts))
	root.AddCommand(newWatchCmd(opts))
	root.AddCommand(newVersionCmd())
	root.AddCommand(newSelfUpdateCmd())

	return root
}

// SetVersion sets the version for the root command.
// This function is typically called from the main package to inject the application version at build time.
func SetVersion(v string) {
	rootCmd.Version = v
}

// GetVersion returns the current version of the application.
func GetVersion() string {
	return rootCmd.Version
}

// Execute is the main entry point for the CLI application.
// This function is called by main.main().
func Execute() {
	rootCmd.SetVersionTemplate(`{{printf "jobsmith version %s\n" .Version}}`)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(getExitCode(err))
	}
}

// applyFailedError reports an apply run in which some actions failed or were aborted.
type applyFailedError struct {
	err error
}

func (e *applyFailedError) Error() string { return "apply incomplete: " + e.err.Error() }
func (e *applyFailedError) Unwrap() error { return e.err }

// getExitCode determines the appropriate exit code based on the error type.
// This provides semantic exit codes for scripting and automation.
func getExitCode(err error) int {
	var conflict *reconciler.ConflictError
	if errors.As(err, &conflict) {
		return ExitCodeConflict
	}
	var applyErr *publisher.RemoteApplyError
	if errors.As(err, &applyErr) {
		return ExitCodeConflict
	}
	var incomplete *applyFailedError
	if errors.As(err, &incomplete) {
		return ExitCodeConflict
	}

	var stageErr *pipeline.StageError
	if errors.As(err, &stageErr) {
		switch stageErr.Stage {
		case pipeline.StageLoad, pipeline.StageRender, pipeline.StageExpand, pipeline.StageValidate:
			return ExitCodeInvalid
		}
	}

	var configErr config.ConfigurationError
	if errors.As(err, &configErr) {
		return ExitCodeInvalid
	}
	var configErrs *config.ConfigurationErrorCollection
	if errors.As(err, &configErrs) {
		return ExitCodeInvalid
	}
	var validationErrs config.ValidationErrors
	if errors.As(err, &validationErrs) {
		return ExitCodeInvalid
	}

	// Default to general error
	return ExitCodeError
}
