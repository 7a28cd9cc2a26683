package template

import "regexp"

const (
	// NestedTemplateKey marks a mapping that is replaced by another template's body.
	NestedTemplateKey = "$template"
	// NestedParamsKey holds the assignment passed to a nested template.
	NestedParamsKey = "$params"

	// BuiltinTemplateID is always bound to the id of the template being rendered.
	BuiltinTemplateID = "template_id"
	// BuiltinJobName is bound by the expander to the derived job name.
	BuiltinJobName = "job_name"
)

var paramNamePattern = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// IsBuiltin reports whether name is provided by the renderer rather than declared.
func IsBuiltin(name string) bool {
	return name == BuiltinTemplateID || name == BuiltinJobName
}

// ValidParamName reports whether name can be used in a {{ reference }}.
func ValidParamName(name string) bool {
	return paramNamePattern.MatchString(name)
}

// ParamSpec declares one template parameter.
type ParamSpec struct {
	Name       string
	Default    any
	HasDefault bool
}

// Template is a reusable, parameterized job description. Templates are
// immutable once loaded.
type Template struct {
	ID     string
	Params []ParamSpec
	Body   map[string]any

	// Source is the file:line the template was declared at.
	Source string
}

// Param returns the declared parameter with the given name.
func (t *Template) Param(name string) (ParamSpec, bool) {
	for _, p := range t.Params {
		if p.Name == name {
			return p, true
		}
	}
	return ParamSpec{}, false
}

// Required returns the names of parameters without a default, in declaration order.
func (t *Template) Required() []string {
	var names []string
	for _, p := range t.Params {
		if !p.HasDefault {
			names = append(names, p.Name)
		}
	}
	return names
}

// Defaults returns the default assignment of the template.
func (t *Template) Defaults() map[string]interface{} {
	defaults := make(map[string]interface{})
	for _, p := range t.Params {
		if p.HasDefault {
			defaults[p.Name] = p.Default
		}
	}
	return defaults
}
