package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"jobsmith/internal/config"
	"jobsmith/internal/expand"
	"jobsmith/internal/publisher"
	"jobsmith/internal/reconciler"
	"jobsmith/internal/remote"
	"jobsmith/internal/schema"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const buildSource = `
- template:
    id: build
    params:
      branch:
      timeout: 30
    body:
      description: "Build {{ branch }}"
      timeout: "{{ timeout }}"
      scm:
        type: git
        branch: "{{ branch }}"
- project:
    template: build
    matrix:
      branch: [main, dev]
`

func writeSource(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "jobs.yaml"), []byte(content), 0o644))
	return dir
}

func testConfig() *config.Config {
	cfg := config.GetDefaultConfig()
	return &cfg
}

func TestRun_EndToEnd(t *testing.T) {
	dir := writeSource(t, buildSource)
	client := remote.NewMemoryClient(config.DefaultManagedBy)
	ctx := context.Background()

	var mu sync.Mutex
	var results []publisher.Result
	run := New(testConfig(), client, WithOnResult(func(r publisher.Result) {
		mu.Lock()
		defer mu.Unlock()
		results = append(results, r)
	}))
	assert.NotEmpty(t, run.ID)

	compiled, err := run.Compile(ctx, dir)
	require.NoError(t, err)
	require.Len(t, compiled.Definitions, 2)
	assert.Equal(t, "build-main", compiled.Definitions[0].Name)
	assert.Equal(t, "build-dev", compiled.Definitions[1].Name)
	assert.Equal(t, 30, compiled.Definitions[0].Body["timeout"])
	assert.Len(t, compiled.Files, 1)

	plan, err := run.Plan(ctx, compiled.Definitions)
	require.NoError(t, err)
	assert.Len(t, plan.Creates, 2)

	summary, err := run.Apply(ctx, plan)
	require.NoError(t, err)
	assert.True(t, summary.OK())
	assert.Equal(t, run.ID, summary.RunID)
	assert.Len(t, results, 2)

	// A second run over the same sources has nothing to do.
	second := New(testConfig(), client)
	compiled, err = second.Compile(ctx, dir)
	require.NoError(t, err)
	plan, err = second.Plan(ctx, compiled.Definitions)
	require.NoError(t, err)
	assert.True(t, plan.IsEmpty())
	assert.Equal(t, []string{"build-dev", "build-main"}, plan.Unchanged)
	assert.NotEqual(t, run.ID, second.ID)
}

func TestRun_PlanUpdatesChangedJob(t *testing.T) {
	dir := writeSource(t, buildSource)
	client := remote.NewMemoryClient(config.DefaultManagedBy)
	client.Seed("build-main", "stale", config.DefaultManagedBy)
	client.Seed("build-gone", "h", config.DefaultManagedBy)
	ctx := context.Background()

	run := New(testConfig(), client)
	compiled, err := run.Compile(ctx, dir)
	require.NoError(t, err)
	plan, err := run.Plan(ctx, compiled.Definitions)
	require.NoError(t, err)

	require.Len(t, plan.Updates, 1)
	assert.Equal(t, "build-main", plan.Updates[0].Name)
	require.Len(t, plan.Creates, 1)
	assert.Equal(t, "build-dev", plan.Creates[0].Name)
	require.Len(t, plan.Deletes, 1)
	assert.Equal(t, "build-gone", plan.Deletes[0].Name)
}

func TestRun_ConflictsAreRefused(t *testing.T) {
	dir := writeSource(t, buildSource)
	client := remote.NewMemoryClient(config.DefaultManagedBy)
	client.Seed("build-main", "h", "")
	ctx := context.Background()

	run := New(testConfig(), client)
	compiled, err := run.Compile(ctx, dir)
	require.NoError(t, err)
	plan, err := run.Plan(ctx, compiled.Definitions)
	require.NoError(t, err)
	require.Len(t, plan.Conflicts, 1)

	_, err = run.Apply(ctx, plan)
	var conflict *reconciler.ConflictError
	require.True(t, errors.As(err, &conflict))
	var stageErr *StageError
	require.True(t, errors.As(err, &stageErr))
	assert.Equal(t, StageApply, stageErr.Stage)

	cfg := testConfig()
	cfg.AdoptUnmanaged = true
	plan, err = New(cfg, client).Plan(ctx, compiled.Definitions)
	require.NoError(t, err)
	assert.Empty(t, plan.Conflicts)
	require.Len(t, plan.Updates, 1)
	assert.True(t, plan.Updates[0].Adopted)
}

func TestRun_CompileStages(t *testing.T) {
	tests := []struct {
		name   string
		source string
		stage  Stage
		check  func(t *testing.T, err error)
	}{
		{
			name:   "unknown template",
			source: "- project:\n    template: missing\n",
			stage:  StageLoad,
		},
		{
			name:   "empty matrix",
			source: "- template:\n    id: build\n    params:\n      branch:\n    body: {}\n- project:\n    template: build\n    matrix:\n      branch: []\n",
			stage:  StageExpand,
			check: func(t *testing.T, err error) {
				var empty *expand.EmptyMatrixError
				assert.True(t, errors.As(err, &empty))
			},
		},
		{
			name:   "validation",
			source: "- template:\n    id: build\n    body:\n      timeout: soon\n      unknown-field: 1\n- project:\n    template: build\n",
			stage:  StageValidate,
			check: func(t *testing.T, err error) {
				var verr *schema.ValidationError
				require.True(t, errors.As(err, &verr))
				assert.Len(t, verr.Violations, 2)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := writeSource(t, tt.source)
			_, err := New(testConfig(), remote.NewMemoryClient("jobsmith")).Compile(context.Background(), dir)
			require.Error(t, err)

			var stageErr *StageError
			require.True(t, errors.As(err, &stageErr))
			assert.Equal(t, tt.stage, stageErr.Stage)
			if tt.check != nil {
				tt.check(t, err)
			}
		})
	}
}

func TestRun_CompileUsesConfiguredSources(t *testing.T) {
	cfg := testConfig()
	_, err := New(cfg, remote.NewMemoryClient("jobsmith")).Compile(context.Background())
	assert.ErrorIs(t, err, ErrNoSources)

	cfg.Sources = []string{writeSource(t, buildSource)}
	compiled, err := New(cfg, remote.NewMemoryClient("jobsmith")).Compile(context.Background())
	require.NoError(t, err)
	assert.Len(t, compiled.Definitions, 2)
}

func TestRun_SchemaFile(t *testing.T) {
	dir := writeSource(t, buildSource)
	schemaPath := filepath.Join(t.TempDir(), "schema.yaml")
	require.NoError(t, os.WriteFile(schemaPath, []byte(`
name: strict
fields:
  - path: owner
    type: string
    required: true
allowUnknown: true
`), 0o644))

	cfg := testConfig()
	cfg.SchemaFile = schemaPath
	_, err := New(cfg, remote.NewMemoryClient("jobsmith")).Compile(context.Background(), dir)

	var verr *schema.ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, "strict", verr.Schema)
}

func TestRun_PlanListFailure(t *testing.T) {
	client := remote.NewMemoryClient("jobsmith")
	client.FailOn(remote.OpList, "", errors.New("unreachable"))

	_, err := New(testConfig(), client).Plan(context.Background(), nil)
	var stageErr *StageError
	require.True(t, errors.As(err, &stageErr))
	assert.Equal(t, StagePlan, stageErr.Stage)
}

func TestRun_CompileWarnings(t *testing.T) {
	dir := writeSource(t, `
- template:
    id: build
    params:
      branch:
      region: eu
    body:
      description: "Build {{ branch }}"
- template:
    id: nightly
    params:
      branch: [main, dev]
    body:
      description: "Nightly {{ branch }}"
- project:
    template: build
    matrix:
      branch: [main]
`)
	compiled, err := New(testConfig(), nil).Compile(context.Background(), dir)
	require.NoError(t, err)
	require.Len(t, compiled.Definitions, 1)

	require.Len(t, compiled.Warnings, 2)
	assert.Contains(t, compiled.Warnings[0], "template build declares param region but never uses it")
	assert.Contains(t, compiled.Warnings[1], "template nightly is never expanded")
	assert.Contains(t, compiled.Warnings[1], "[branch]")
}

func TestRun_ApplyRefusesForeignJobs(t *testing.T) {
	dir := writeSource(t, buildSource)
	client := remote.NewMemoryClient(config.DefaultManagedBy)
	ctx := context.Background()

	run := New(testConfig(), client)
	compiled, err := run.Compile(ctx, dir)
	require.NoError(t, err)
	plan, err := run.Plan(ctx, compiled.Definitions)
	require.NoError(t, err)
	require.Len(t, plan.Creates, 2)

	// Another tool claims build-dev between planning and applying.
	client.Seed("build-dev", "theirs", "someone-else")

	summary, err := run.Apply(ctx, plan)
	require.NoError(t, err)
	require.Len(t, summary.Failed(), 1)
	assert.Equal(t, "build-dev", summary.Failed()[0].Action.Name)
	assert.ErrorIs(t, summary.Failed()[0].Err, remote.ErrNotOwned)

	body, ok := client.Get("build-dev")
	require.True(t, ok)
	assert.Equal(t, "theirs", body.Hash)
}
