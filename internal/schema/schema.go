// Package schema validates resolved job definitions against a declared field schema.
//
// A schema is a list of fields addressed by dotted path. Validation never stops
// at the first problem: every violation in a definition is reported in one
// ValidationError.
package schema

import (
	"fmt"
	"math"
	"os"
	"sort"
	"strings"

	"jobsmith/internal/job"

	"gopkg.in/yaml.v3"
)

// Type is the expected kind of a field value.
type Type string

const (
	TypeString Type = "string"
	TypeInt    Type = "int"
	TypeBool   Type = "bool"
	TypeFloat  Type = "float"
	TypeList   Type = "list"
	TypeMap    Type = "map"
	TypeAny    Type = "any"
)

var validTypes = map[Type]bool{
	TypeString: true, TypeInt: true, TypeBool: true, TypeFloat: true,
	TypeList: true, TypeMap: true, TypeAny: true,
}

// Field declares one field of a job body.
type Field struct {
	// Path is the dotted path of the field, e.g. "scm.url".
	Path     string        `yaml:"path"`
	Type     Type          `yaml:"type"`
	Required bool          `yaml:"required,omitempty"`
	Enum     []interface{} `yaml:"enum,omitempty"`
	// Items is the element type for list fields.
	Items Type `yaml:"items,omitempty"`
}

// Schema is the set of fields a job body may carry.
type Schema struct {
	Name         string  `yaml:"name,omitempty"`
	Fields       []Field `yaml:"fields"`
	AllowUnknown bool    `yaml:"allowUnknown,omitempty"`
}

// Violation describes one field that does not satisfy the schema.
type Violation struct {
	Field    string `json:"field" yaml:"field"`
	Expected string `json:"expected" yaml:"expected"`
	Actual   string `json:"actual" yaml:"actual"`
}

func (v Violation) String() string {
	return fmt.Sprintf("%s: expected %s, got %s", v.Field, v.Expected, v.Actual)
}

// ValidationError carries every violation found in one job definition.
type ValidationError struct {
	Job        string
	Schema     string
	Violations []Violation
}

func (e *ValidationError) Error() string {
	parts := make([]string, len(e.Violations))
	for i, v := range e.Violations {
		parts[i] = v.String()
	}
	return fmt.Sprintf("job %q does not match schema %s: %s", e.Job, e.Schema, strings.Join(parts, "; "))
}

// Validate checks the definition body against the schema and returns a
// *ValidationError listing all violations, or nil.
func (s *Schema) Validate(def job.Definition) error {
	var violations []Violation

	for _, f := range s.Fields {
		value, present, blocked := lookup(def.Body, f.Path)
		if blocked != "" {
			violations = append(violations, Violation{Field: blocked, Expected: string(TypeMap), Actual: "non-mapping"})
			continue
		}
		if !present {
			if f.Required {
				violations = append(violations, Violation{Field: f.Path, Expected: string(f.Type), Actual: "missing"})
			}
			continue
		}
		violations = append(violations, checkField(f, value)...)
	}

	if !s.AllowUnknown {
		known := make(map[string]bool, len(s.Fields))
		for _, f := range s.Fields {
			known[strings.SplitN(f.Path, ".", 2)[0]] = true
		}
		keys := make([]string, 0, len(def.Body))
		for k := range def.Body {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			if !known[k] {
				violations = append(violations, Violation{Field: k, Expected: "no such field", Actual: describe(def.Body[k])})
			}
		}
	}

	if len(violations) == 0 {
		return nil
	}
	return &ValidationError{Job: def.Name, Schema: s.Name, Violations: violations}
}

// Check validates the schema declaration itself.
func (s *Schema) Check() error {
	seen := make(map[string]bool, len(s.Fields))
	for _, f := range s.Fields {
		if f.Path == "" {
			return fmt.Errorf("schema %s: field path is required", s.Name)
		}
		if seen[f.Path] {
			return fmt.Errorf("schema %s: duplicate field %q", s.Name, f.Path)
		}
		seen[f.Path] = true
		if !validTypes[f.Type] {
			return fmt.Errorf("schema %s: field %q has unknown type %q", s.Name, f.Path, f.Type)
		}
		if f.Items != "" && (f.Type != TypeList || !validTypes[f.Items]) {
			return fmt.Errorf("schema %s: field %q has invalid items type %q", s.Name, f.Path, f.Items)
		}
	}
	return nil
}

// lookup walks a dotted path. blocked names the first path prefix that exists
// but is not a mapping.
func lookup(body map[string]interface{}, path string) (value interface{}, present bool, blocked string) {
	parts := strings.Split(path, ".")
	current := body
	for i, part := range parts {
		v, ok := current[part]
		if !ok {
			return nil, false, ""
		}
		if i == len(parts)-1 {
			return v, true, ""
		}
		next, ok := v.(map[string]interface{})
		if !ok {
			return nil, false, strings.Join(parts[:i+1], ".")
		}
		current = next
	}
	return nil, false, ""
}

func checkField(f Field, value interface{}) []Violation {
	if !matches(f.Type, value) {
		return []Violation{{Field: f.Path, Expected: string(f.Type), Actual: describe(value)}}
	}

	var violations []Violation
	if len(f.Enum) > 0 {
		if list, ok := value.([]interface{}); ok {
			for i, item := range list {
				if !inEnum(f.Enum, item) {
					violations = append(violations, Violation{
						Field:    fmt.Sprintf("%s[%d]", f.Path, i),
						Expected: enumString(f.Enum),
						Actual:   fmt.Sprint(item),
					})
				}
			}
		} else if !inEnum(f.Enum, value) {
			violations = append(violations, Violation{Field: f.Path, Expected: enumString(f.Enum), Actual: fmt.Sprint(value)})
		}
	}

	if f.Items != "" {
		if list, ok := value.([]interface{}); ok {
			for i, item := range list {
				if !matches(f.Items, item) {
					violations = append(violations, Violation{
						Field:    fmt.Sprintf("%s[%d]", f.Path, i),
						Expected: string(f.Items),
						Actual:   describe(item),
					})
				}
			}
		}
	}
	return violations
}

func matches(t Type, value interface{}) bool {
	switch t {
	case TypeAny:
		return true
	case TypeString:
		_, ok := value.(string)
		return ok
	case TypeBool:
		_, ok := value.(bool)
		return ok
	case TypeInt:
		switch v := value.(type) {
		case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
			return true
		case float64:
			// JSON decoding yields float64 for every number
			return v == math.Trunc(v)
		}
		return false
	case TypeFloat:
		switch value.(type) {
		case float32, float64, int, int64:
			return true
		}
		return false
	case TypeList:
		_, ok := value.([]interface{})
		return ok
	case TypeMap:
		_, ok := value.(map[string]interface{})
		return ok
	}
	return false
}

func describe(value interface{}) string {
	switch value.(type) {
	case nil:
		return "null"
	case string:
		return string(TypeString)
	case bool:
		return string(TypeBool)
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return string(TypeInt)
	case float32, float64:
		return string(TypeFloat)
	case []interface{}:
		return string(TypeList)
	case map[string]interface{}:
		return string(TypeMap)
	default:
		return fmt.Sprintf("%T", value)
	}
}

func inEnum(enum []interface{}, value interface{}) bool {
	s := fmt.Sprint(value)
	for _, e := range enum {
		if fmt.Sprint(e) == s {
			return true
		}
	}
	return false
}

func enumString(enum []interface{}) string {
	parts := make([]string, len(enum))
	for i, e := range enum {
		parts[i] = fmt.Sprint(e)
	}
	return "one of [" + strings.Join(parts, ", ") + "]"
}

// LoadFile reads a schema declaration from a YAML file.
func LoadFile(path string) (*Schema, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read schema file %s: %w", path, err)
	}
	var s Schema
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("failed to parse schema file %s: %w", path, err)
	}
	if s.Name == "" {
		s.Name = path
	}
	if err := s.Check(); err != nil {
		return nil, err
	}
	return &s, nil
}
