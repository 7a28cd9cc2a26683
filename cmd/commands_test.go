package cmd

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const commandSource = `
- template:
    id: build
    params:
      branch:
    body:
      description: "Build {{ branch }}"
- project:
    template: build
    matrix:
      branch: [main, dev]
- view:
    name: all-builds
    view-type: list
    regex: "build-.*"
`

type workspace struct {
	config  string
	sources string
	remote  string
}

func newWorkspace(t *testing.T, source string) workspace {
	t.Helper()
	dir := t.TempDir()
	ws := workspace{
		config:  filepath.Join(dir, "jobsmith.yaml"),
		sources: filepath.Join(dir, "jobs"),
		remote:  filepath.Join(dir, "remote"),
	}
	require.NoError(t, os.Mkdir(ws.sources, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(ws.sources, "jobs.yaml"), []byte(source), 0o644))
	cfg := fmt.Sprintf("sources: [%q]\nremote:\n  type: filesystem\n  filesystem:\n    path: %q\n", ws.sources, ws.remote)
	require.NoError(t, os.WriteFile(ws.config, []byte(cfg), 0o644))
	return ws
}

func (ws workspace) run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	var stdout, stderr bytes.Buffer
	root.SetOut(&stdout)
	root.SetErr(&stderr)
	root.SetArgs(append([]string{"--config", ws.config, "--quiet", "--no-color"}, args...))
	err := root.Execute()
	return stdout.String(), err
}

func TestRenderCommand(t *testing.T) {
	ws := newWorkspace(t, commandSource)

	out, err := ws.run(t, "render", "--format", "json")
	require.NoError(t, err)

	var defs []map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(out), &defs))
	require.Len(t, defs, 3)
	assert.Equal(t, "build-main", defs[0]["name"])
	assert.Equal(t, "build-dev", defs[1]["name"])
	assert.Equal(t, "all-builds", defs[2]["name"])
}

func TestRenderCommand_XMLRejectsJobs(t *testing.T) {
	ws := newWorkspace(t, commandSource)

	_, err := ws.run(t, "render", "--format", "xml")
	require.Error(t, err)
	assert.Equal(t, ExitCodeError, getExitCode(err))
}

func TestValidateCommand(t *testing.T) {
	ws := newWorkspace(t, commandSource)
	_, err := ws.run(t, "validate")
	require.NoError(t, err)

	bad := newWorkspace(t, "- project:\n    template: missing\n")
	_, err = bad.run(t, "validate")
	require.Error(t, err)
	assert.Equal(t, ExitCodeInvalid, getExitCode(err))
}

func TestValidateCommand_WarnsAboutUnexpandedTemplates(t *testing.T) {
	ws := newWorkspace(t, "- template:\n    id: build\n    params:\n      branch: [main, dev]\n    body:\n      description: \"Build {{ branch }}\"\n")

	root := newRootCmd()
	var stdout, stderr bytes.Buffer
	root.SetOut(&stdout)
	root.SetErr(&stderr)
	root.SetArgs([]string{"--config", ws.config, "--no-color", "validate"})
	require.NoError(t, root.Execute())

	assert.Contains(t, stdout.String(), "0 job definitions")
	assert.Contains(t, stderr.String(), "warning:")
	assert.Contains(t, stderr.String(), "template build is never expanded")
	assert.Contains(t, stderr.String(), "[branch]")
}

func TestLogLevelFlag(t *testing.T) {
	ws := newWorkspace(t, commandSource)
	_, err := ws.run(t, "--log-level", "info", "validate")
	require.NoError(t, err)

	_, err = ws.run(t, "--log-level", "loud", "validate")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown log level")
}

func TestPlanApplyList(t *testing.T) {
	ws := newWorkspace(t, commandSource)

	out, err := ws.run(t, "plan", "--format", "json")
	require.NoError(t, err)
	var plan struct {
		Creates []struct {
			Name string `json:"name"`
		} `json:"creates"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &plan))
	assert.Len(t, plan.Creates, 3)

	_, err = ws.run(t, "apply", "--dry-run")
	require.NoError(t, err)
	out, err = ws.run(t, "list", "--format", "json")
	require.NoError(t, err)
	assert.JSONEq(t, "[]", out, "dry run writes nothing")

	_, err = ws.run(t, "apply", "--concurrency", "2")
	require.NoError(t, err)

	out, err = ws.run(t, "list", "--managed", "--format", "json")
	require.NoError(t, err)
	var jobs []map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(out), &jobs))
	assert.Len(t, jobs, 3)

	out, err = ws.run(t, "plan")
	require.NoError(t, err)
	assert.Contains(t, out, "No changes. 3 jobs up to date.")
}

func TestApplyCommand_InvalidConcurrency(t *testing.T) {
	ws := newWorkspace(t, commandSource)
	_, err := ws.run(t, "apply", "--concurrency", "0")
	assert.Error(t, err)
}

func TestCommands_BadOutputFormat(t *testing.T) {
	ws := newWorkspace(t, commandSource)
	_, err := ws.run(t, "plan", "--format", "csv")
	assert.Error(t, err)
}
