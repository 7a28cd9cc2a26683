package source

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"jobsmith/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const buildSource = `
- template:
    id: build
    params:
      branch:
      timeout: 30
      labels:
        default: [linux]
        description: node labels
    body:
      description: "Build {{ branch }}"
      timeout: "{{ timeout }}"
- project:
    name: builds
    template: build
    matrix:
      branch: [main, dev]
      os: linux
    params:
      timeout: 60
`

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestParse_TemplateAndProject(t *testing.T) {
	set, err := Parse([]byte(buildSource), "jobs.yaml")
	require.NoError(t, err)

	require.Len(t, set.Templates, 1)
	tmpl := set.Templates[0]
	assert.Equal(t, "build", tmpl.ID)
	assert.Equal(t, "jobs.yaml:2", tmpl.Source)
	assert.Equal(t, []string{"branch"}, tmpl.Required())
	assert.Equal(t, map[string]interface{}{"timeout": 30, "labels": []interface{}{"linux"}}, tmpl.Defaults())

	require.Len(t, set.Projects, 1)
	proj := set.Projects[0]
	assert.Equal(t, "builds", proj.Name)
	assert.Equal(t, []string{"branch", "os"}, proj.Matrix.Names())
	assert.Equal(t, []interface{}{"main", "dev"}, proj.Matrix[0].Values)
	assert.Equal(t, []interface{}{"linux"}, proj.Matrix[1].Values, "scalar axis is a single value")
	assert.Equal(t, map[string]interface{}{"timeout": 60}, proj.Params)
}

func TestParse_MatrixOrderIsDeclarationOrder(t *testing.T) {
	src := `
- project:
    template: build
    matrix:
      zeta: [1]
      alpha: [2]
      mid: [3]
`
	set, err := Parse([]byte(src), "order.yaml")
	require.NoError(t, err)
	require.Len(t, set.Projects, 1)
	assert.Equal(t, []string{"zeta", "alpha", "mid"}, set.Projects[0].Matrix.Names())
}

func TestParse_TemplateWithMatrixIsAProject(t *testing.T) {
	src := `
- template:
    id: build
    params:
      branch:
    matrix:
      branch: [main, dev]
    body:
      description: "{{ branch }}"
`
	set, err := Parse([]byte(src), "inline.yaml")
	require.NoError(t, err)
	require.Len(t, set.Projects, 1)
	assert.Equal(t, "build", set.Projects[0].Template)
	assert.Equal(t, []interface{}{"main", "dev"}, set.Projects[0].Matrix[0].Values)
}

func TestParse_View(t *testing.T) {
	src := `
- view:
    name: all-builds
    regex: "build-.*"
`
	set, err := Parse([]byte(src), "views.yaml")
	require.NoError(t, err)
	require.Len(t, set.Templates, 1)
	require.Len(t, set.Projects, 1)
	assert.Equal(t, "list", set.Templates[0].Body["view-type"])
	assert.Equal(t, "all-builds", set.Projects[0].NameFormat)
	assert.Equal(t, set.Templates[0].ID, set.Projects[0].Template)
}

func TestParse_StructuralErrors(t *testing.T) {
	tests := []struct {
		name    string
		src     string
		message string
		line    int
	}{
		{name: "top level mapping", src: "template: {}\n", message: "top level must be a list", line: 1},
		{name: "unknown declaration", src: "- job: {}\n", message: `unknown declaration "job"`, line: 1},
		{name: "two keys", src: "- template: {}\n  project: {}\n", message: "exactly one key", line: 1},
		{name: "missing id", src: "- template:\n    body: {}\n", message: "id is required", line: 2},
		{name: "unknown field", src: "- project:\n    template: a\n    colour: red\n", message: `unknown field "colour"`, line: 3},
		{name: "bad param name", src: "- template:\n    id: a\n    params:\n      1bad:\n", message: "invalid parameter name", line: 4},
		{name: "builtin param name", src: "- template:\n    id: a\n    params:\n      job_name:\n", message: "invalid parameter name", line: 4},
		{name: "missing template", src: "- project:\n    matrix: {a: [1]}\n", message: "template is required", line: 2},
		{name: "view without name", src: "- view:\n    regex: x\n", message: "name is required", line: 2},
		{name: "bad yaml", src: "- template: [\n", message: "", line: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.src), "bad.yaml")
			require.Error(t, err)

			var coll *config.ConfigurationErrorCollection
			require.True(t, errors.As(err, &coll))
			require.NotEmpty(t, coll.Errors)
			first := coll.Errors[0]
			assert.Equal(t, "bad.yaml", first.FilePath)
			assert.Contains(t, first.Message, tt.message)
			if tt.line > 0 {
				assert.Equal(t, tt.line, first.LineNumber)
			}
		})
	}
}

func TestParse_CollectsAllErrors(t *testing.T) {
	src := `
- job: {}
- template:
    body: {}
- project:
    name: x
`
	_, err := Parse([]byte(src), "many.yaml")
	var coll *config.ConfigurationErrorCollection
	require.True(t, errors.As(err, &coll))
	assert.Equal(t, 3, coll.Count())
}

func TestParse_EmptyAndMultiDocument(t *testing.T) {
	set, err := Parse([]byte(""), "empty.yaml")
	require.NoError(t, err)
	assert.Empty(t, set.Templates)

	src := "- template: {id: a}\n---\n- template: {id: b}\n"
	set, err = Parse([]byte(src), "multi.yaml")
	require.NoError(t, err)
	assert.Len(t, set.Templates, 2)
}

func TestLoad_DirectoryInLexicalOrder(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "b.yaml", "- template: {id: second}\n")
	writeFile(t, dir, "a.yml", "- template: {id: first}\n")
	writeFile(t, dir, "nested/c.yaml", "- template: {id: third}\n")
	writeFile(t, dir, "notes.txt", "ignored")
	writeFile(t, dir, ".hidden/d.yaml", "- template: {id: hidden}\n")

	set, err := Load(dir)
	require.NoError(t, err)

	var ids []string
	for _, tmpl := range set.Templates {
		ids = append(ids, tmpl.ID)
	}
	assert.Equal(t, []string{"first", "second", "third"}, ids)
	assert.Len(t, set.Files, 3)
}

func TestLoad_DuplicateTemplateAcrossFiles(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.yaml", "- template: {id: build}\n")
	writeFile(t, dir, "b.yaml", "- template: {id: build}\n")

	_, err := Load(dir)
	var coll *config.ConfigurationErrorCollection
	require.True(t, errors.As(err, &coll))
	require.Equal(t, 1, coll.Count())
	assert.Equal(t, config.ErrorTypeDuplicate, coll.Errors[0].ErrorType)
	assert.Equal(t, filepath.Join(dir, "b.yaml"), coll.Errors[0].FilePath)
	assert.Equal(t, 1, coll.Errors[0].LineNumber)
}

func TestLoad_UnknownTemplateReference(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "jobs.yaml", "- project:\n    template: missing\n")

	_, err := Load(path)
	var coll *config.ConfigurationErrorCollection
	require.True(t, errors.As(err, &coll))
	assert.Equal(t, config.ErrorTypeReference, coll.Errors[0].ErrorType)
	assert.Contains(t, coll.Errors[0].Message, `unknown template "missing"`)
}

func TestLoad_MissingPath(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)

	_, err = Load()
	require.Error(t, err)
}
