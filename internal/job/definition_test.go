package job

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefinition_HashIsStableAcrossKeyOrder(t *testing.T) {
	a := Definition{Name: "build-main", Body: map[string]any{
		"description": "build",
		"scm":         map[string]any{"url": "git://x", "branch": "main"},
		"builders":    []any{"make", "make test"},
	}}
	b := Definition{Name: "other-name", Body: map[string]any{
		"builders":    []any{"make", "make test"},
		"scm":         map[string]any{"branch": "main", "url": "git://x"},
		"description": "build",
	}}

	assert.Equal(t, a.Hash(), b.Hash(), "hash depends on body content only")
	assert.Len(t, a.Hash(), 64)
}

func TestDefinition_HashChangesWithContent(t *testing.T) {
	a := Definition{Body: map[string]any{"node": "linux"}}
	b := Definition{Body: map[string]any{"node": "windows"}}
	assert.NotEqual(t, a.Hash(), b.Hash())
}

func TestHashBody_NormalizesInterfaceKeyedMaps(t *testing.T) {
	h1, err := HashBody(map[string]any{"m": map[any]any{"k": 1}})
	require.NoError(t, err)
	h2, err := HashBody(map[string]any{"m": map[string]any{"k": 1}})
	require.NoError(t, err)
	assert.Equal(t, h1, h2)
}

func TestDefinition_ParamMap(t *testing.T) {
	d := Definition{Params: []Param{{Name: "branch", Value: "main"}, {Name: "os", Value: "linux"}}}
	assert.Equal(t, map[string]any{"branch": "main", "os": "linux"}, d.ParamMap())
}
