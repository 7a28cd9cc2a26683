package expand

import (
	"context"
	"errors"
	"testing"

	"jobsmith/internal/template"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestExpander(t *testing.T, templates ...*template.Template) *Expander {
	t.Helper()
	engine, err := template.New(templates...)
	require.NoError(t, err)
	return NewExpander(engine, 2)
}

func buildTemplate() *template.Template {
	return &template.Template{
		ID: "build",
		Params: []template.ParamSpec{
			{Name: "branch"},
			{Name: "os", Default: "linux", HasDefault: true},
			{Name: "timeout", Default: 30, HasDefault: true},
		},
		Body: map[string]interface{}{
			"description": "Build {{ branch }} on {{ os }}",
			"name":        "{{ job_name }}",
			"timeout":     "{{ timeout }}",
		},
	}
}

func TestExpand_BranchMatrix(t *testing.T) {
	e := newTestExpander(t, buildTemplate())

	defs, err := e.Expand(Project{
		Template: "build",
		Matrix:   Matrix{{Name: "branch", Values: []interface{}{"main", "dev"}}},
	})
	require.NoError(t, err)
	require.Len(t, defs, 2)

	assert.Equal(t, "build-main", defs[0].Name)
	assert.Equal(t, "build-dev", defs[1].Name)
	assert.Equal(t, "Build main on linux", defs[0].Body["description"])
	assert.Equal(t, "build-dev", defs[1].Body["name"])
	assert.Equal(t, 30, defs[1].Body["timeout"])
}

func TestExpand_OrderAndSize(t *testing.T) {
	e := newTestExpander(t, buildTemplate())

	p := Project{
		Template: "build",
		Matrix: Matrix{
			{Name: "branch", Values: []interface{}{"main", "dev", "rel"}},
			{Name: "os", Values: []interface{}{"linux", "windows"}},
		},
	}
	defs, err := e.Expand(p)
	require.NoError(t, err)
	require.Len(t, defs, p.Matrix.Size())

	var names []string
	for _, d := range defs {
		names = append(names, d.Name)
	}
	assert.Equal(t, []string{
		"build-main-linux", "build-main-windows",
		"build-dev-linux", "build-dev-windows",
		"build-rel-linux", "build-rel-windows",
	}, names)
	assert.Equal(t, "branch", defs[0].Params[0].Name)
	assert.Equal(t, "os", defs[0].Params[1].Name)
}

func TestExpand_NamesAreStable(t *testing.T) {
	p := Project{
		Template: "build",
		Matrix: Matrix{
			{Name: "branch", Values: []interface{}{"main", "dev"}},
			{Name: "timeout", Values: []interface{}{10, 20}},
		},
	}

	first, err := newTestExpander(t, buildTemplate()).Expand(p)
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		again, err := newTestExpander(t, buildTemplate()).Expand(p)
		require.NoError(t, err)
		require.Len(t, again, len(first))
		for j := range first {
			assert.Equal(t, first[j].Name, again[j].Name)
			assert.Equal(t, first[j].Hash(), again[j].Hash())
		}
	}
}

func TestExpand_EmptyMatrix(t *testing.T) {
	e := newTestExpander(t, buildTemplate())

	defs, err := e.Expand(Project{
		Name:     "builds",
		Template: "build",
		Matrix:   Matrix{{Name: "branch", Values: []interface{}{}}},
	})
	var empty *EmptyMatrixError
	require.True(t, errors.As(err, &empty))
	assert.Equal(t, "builds", empty.Project)
	assert.Equal(t, "branch", empty.Axis)
	assert.Empty(t, defs)
}

func TestExpand_NoAxesGivesOneJob(t *testing.T) {
	e := newTestExpander(t, buildTemplate())

	defs, err := e.Expand(Project{
		Template: "build",
		Params:   map[string]interface{}{"branch": "main"},
	})
	require.NoError(t, err)
	require.Len(t, defs, 1)
	assert.Equal(t, "build", defs[0].Name)
}

func TestExpand_MatrixOverridesFixedParams(t *testing.T) {
	e := newTestExpander(t, buildTemplate())

	defs, err := e.Expand(Project{
		Template: "build",
		Params:   map[string]interface{}{"branch": "ignored", "os": "mac"},
		Matrix:   Matrix{{Name: "branch", Values: []interface{}{"main"}}},
	})
	require.NoError(t, err)
	require.Len(t, defs, 1)
	assert.Equal(t, "Build main on mac", defs[0].Body["description"])
}

func TestExpand_NameFormat(t *testing.T) {
	e := newTestExpander(t, buildTemplate())

	defs, err := e.Expand(Project{
		Template:   "build",
		Matrix:     Matrix{{Name: "branch", Values: []interface{}{"Main", "Dev"}}},
		NameFormat: "{{ .template_id }}-{{ .branch | lower }}",
	})
	require.NoError(t, err)
	require.Len(t, defs, 2)
	assert.Equal(t, "build-main", defs[0].Name)
	assert.Equal(t, "build-dev", defs[1].Name)
}

func TestExpand_NameFormatErrors(t *testing.T) {
	e := newTestExpander(t, buildTemplate())
	matrix := Matrix{{Name: "branch", Values: []interface{}{"main"}}}

	_, err := e.Expand(Project{Template: "build", Matrix: matrix, NameFormat: "{{ .branch "})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid name-format")

	_, err = e.Expand(Project{Template: "build", Matrix: matrix, NameFormat: "{{ .nope }}"})
	require.Error(t, err)

	_, err = e.Expand(Project{Template: "build", Matrix: matrix, NameFormat: "{{ now }}"})
	require.Error(t, err, "non-hermetic functions are unavailable")
}

func TestExpand_DuplicateNames(t *testing.T) {
	e := newTestExpander(t, buildTemplate())

	_, err := e.Expand(Project{
		Template:   "build",
		Matrix:     Matrix{{Name: "branch", Values: []interface{}{"main", "MAIN"}}},
		NameFormat: "build-{{ .branch | lower }}",
	})
	var dup *DuplicateJobNameError
	require.True(t, errors.As(err, &dup))
	assert.Equal(t, "build-main", dup.Name)
	assert.Contains(t, dup.First, "branch=main")
	assert.Contains(t, dup.Second, "branch=MAIN")
}

func TestExpand_RenderErrorsPropagate(t *testing.T) {
	e := newTestExpander(t, buildTemplate())

	_, err := e.Expand(Project{
		Template: "build",
		Matrix:   Matrix{{Name: "colour", Values: []interface{}{"red"}}},
	})
	var unknown *template.UnknownParameterError
	require.True(t, errors.As(err, &unknown))
	assert.Equal(t, "colour", unknown.Name)
}

func TestExpandAll(t *testing.T) {
	deploy := &template.Template{
		ID:     "deploy",
		Params: []template.ParamSpec{{Name: "env"}},
		Body:   map[string]interface{}{"env": "{{ env }}"},
	}
	e := newTestExpander(t, buildTemplate(), deploy)

	projects := []Project{
		{Template: "deploy", Matrix: Matrix{{Name: "env", Values: []interface{}{"prod", "staging"}}}},
		{Template: "build", Matrix: Matrix{{Name: "branch", Values: []interface{}{"main", "dev"}}}},
		{Template: "deploy", Matrix: Matrix{{Name: "env", Values: []interface{}{"qa"}}}},
	}

	defs, err := e.ExpandAll(context.Background(), projects)
	require.NoError(t, err)

	var names []string
	for _, d := range defs {
		names = append(names, d.Name)
	}
	assert.Equal(t, []string{"deploy-prod", "deploy-staging", "build-main", "build-dev", "deploy-qa"}, names)
}

func TestExpandAll_DuplicateAcrossProjects(t *testing.T) {
	e := newTestExpander(t, buildTemplate())

	_, err := e.ExpandAll(context.Background(), []Project{
		{Name: "a", Template: "build", Matrix: Matrix{{Name: "branch", Values: []interface{}{"main"}}}},
		{Name: "b", Template: "build", Matrix: Matrix{{Name: "branch", Values: []interface{}{"main"}}}},
	})
	var dup *DuplicateJobNameError
	require.True(t, errors.As(err, &dup))
	assert.Equal(t, "build-main", dup.Name)
	assert.Contains(t, dup.First, `"a"`)
	assert.Contains(t, dup.Second, `"b"`)
}

func TestExpandAll_FirstErrorInDeclarationOrder(t *testing.T) {
	e := newTestExpander(t, buildTemplate())

	_, err := e.ExpandAll(context.Background(), []Project{
		{Name: "ok", Template: "build", Matrix: Matrix{{Name: "branch", Values: []interface{}{"main"}}}},
		{Name: "first", Template: "build", Matrix: Matrix{{Name: "branch", Values: []interface{}{}}}},
		{Name: "second", Template: "build", Matrix: Matrix{{Name: "os", Values: []interface{}{}}}},
	})
	var empty *EmptyMatrixError
	require.True(t, errors.As(err, &empty))
	assert.Equal(t, "first", empty.Project)
}

func TestCombinations(t *testing.T) {
	combos, err := Combinations(Matrix{
		{Name: "a", Values: []interface{}{1, 2}},
		{Name: "b", Values: []interface{}{"x", "y", "z"}},
	})
	require.NoError(t, err)
	require.Len(t, combos, 6)
	assert.Equal(t, 1, combos[0][0].Value)
	assert.Equal(t, "x", combos[0][1].Value)
	assert.Equal(t, "y", combos[1][1].Value)
	assert.Equal(t, 2, combos[3][0].Value)

	combos, err = Combinations(nil)
	require.NoError(t, err)
	assert.Len(t, combos, 1)
}
