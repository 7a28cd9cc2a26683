// Package job holds the fully resolved job definition shared by the
// expander, validator, reconciler and publisher.
package job

import (
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/zeebo/blake3"
)

// Param is one resolved parameter assignment. Definitions keep parameters
// ordered so names and output are reproducible.
type Param struct {
	Name  string `json:"name" yaml:"name"`
	Value any    `json:"value" yaml:"value"`
}

// Definition is one fully resolved job.
type Definition struct {
	// Name is the derived unique job name.
	Name string `json:"name" yaml:"name"`

	// Template is the id of the template the job was rendered from.
	Template string `json:"template" yaml:"template"`

	// Params are the assignments used for this combination, in axis order.
	Params []Param `json:"params,omitempty" yaml:"params,omitempty"`

	// Body is the rendered job configuration.
	Body map[string]any `json:"body" yaml:"body"`

	// Source points at the project declaration that produced the job.
	Source string `json:"source,omitempty" yaml:"source,omitempty"`
}

// Hash returns the content hash of the definition body.
//
// The body is encoded as JSON first. encoding/json writes map keys in sorted
// order, which makes the encoding canonical for the value types a rendered
// body can contain.
func (d Definition) Hash() string {
	h, err := HashBody(d.Body)
	if err != nil {
		// Bodies come from YAML decoding and template substitution, so every
		// value is JSON-encodable. Fall back to the formatted value anyway.
		sum := blake3.Sum256([]byte(fmt.Sprintf("%#v", d.Body)))
		return hex.EncodeToString(sum[:])
	}
	return h
}

// HashBody hashes an arbitrary rendered body.
func HashBody(body map[string]any) (string, error) {
	data, err := json.Marshal(normalize(body))
	if err != nil {
		return "", fmt.Errorf("failed to encode job body: %w", err)
	}
	sum := blake3.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

// ParamMap returns the parameters as a map.
func (d Definition) ParamMap() map[string]any {
	m := make(map[string]any, len(d.Params))
	for _, p := range d.Params {
		m[p.Name] = p.Value
	}
	return m
}

// normalize converts map[any]any values, which some YAML decoders produce,
// into map[string]any so they can be JSON encoded.
func normalize(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[k] = normalize(val)
		}
		return out
	case map[any]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[fmt.Sprint(k)] = normalize(val)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = normalize(val)
		}
		return out
	default:
		return v
	}
}
