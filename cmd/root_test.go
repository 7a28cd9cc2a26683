package cmd

import (
	"errors"
	"fmt"
	"testing"

	"jobsmith/internal/config"
	"jobsmith/internal/pipeline"
	"jobsmith/internal/publisher"
	"jobsmith/internal/reconciler"

	"github.com/stretchr/testify/assert"
)

func TestSetVersion(t *testing.T) {
	originalVersion := rootCmd.Version
	defer func() { rootCmd.Version = originalVersion }()

	SetVersion("1.2.3-test")
	assert.Equal(t, "1.2.3-test", GetVersion())
}

func TestRootCommand(t *testing.T) {
	assert.Equal(t, "jobsmith", rootCmd.Use)
	assert.NotEmpty(t, rootCmd.Short)
	assert.NotEmpty(t, rootCmd.Long)
	assert.True(t, rootCmd.SilenceUsage)

	for _, flag := range []string{"config", "debug", "log-level", "quiet", "no-color"} {
		assert.NotNil(t, rootCmd.PersistentFlags().Lookup(flag), flag)
	}
}

func TestSubcommands(t *testing.T) {
	found := map[string]bool{}
	for _, c := range rootCmd.Commands() {
		found[c.Name()] = true
	}
	for _, expected := range []string{"render", "validate", "plan", "apply", "list", "watch", "version", "self-update"} {
		assert.True(t, found[expected], "subcommand %s", expected)
	}
}

func TestGetExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code int
	}{
		{"general", errors.New("boom"), ExitCodeError},
		{"config file", config.ConfigurationError{Message: "bad"}, ExitCodeInvalid},
		{"config values", fmt.Errorf("invalid config: %w", config.ValidationErrors{{Field: "x"}}), ExitCodeInvalid},
		{"source errors", &pipeline.StageError{Stage: pipeline.StageLoad, Err: config.NewConfigurationErrorCollection()}, ExitCodeInvalid},
		{"expansion", &pipeline.StageError{Stage: pipeline.StageExpand, Err: errors.New("empty matrix")}, ExitCodeInvalid},
		{"validation", &pipeline.StageError{Stage: pipeline.StageValidate, Err: errors.New("bad")}, ExitCodeInvalid},
		{"remote listing", &pipeline.StageError{Stage: pipeline.StagePlan, Err: errors.New("unreachable")}, ExitCodeError},
		{"conflict", &pipeline.StageError{Stage: pipeline.StageApply, Err: &reconciler.ConflictError{Names: []string{"a"}}}, ExitCodeConflict},
		{"apply failure", &applyFailedError{err: &publisher.RemoteApplyError{Name: "a", Op: reconciler.ActionCreate, Err: errors.New("no")}}, ExitCodeConflict},
		{"aborted", &applyFailedError{err: errors.New("2 actions aborted")}, ExitCodeConflict},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.code, getExitCode(tt.err))
		})
	}
}
