package template

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
)

// Engine renders templates by substituting parameter references.
// Substitution is structural and textual only. No expressions are evaluated.
type Engine struct {
	// Pattern to match template variables like {{ variableName }}
	templatePattern *regexp.Regexp
	// Pattern to match a string that is exactly one variable reference
	wholePattern *regexp.Regexp

	templates map[string]*Template
}

// New creates a new template engine over the given templates.
// Template ids must be unique.
func New(templates ...*Template) (*Engine, error) {
	e := &Engine{
		templatePattern: regexp.MustCompile(`\{\{\s*\.?([a-zA-Z_][a-zA-Z0-9_]*)\s*\}\}`),
		wholePattern:    regexp.MustCompile(`^\{\{\s*\.?([a-zA-Z_][a-zA-Z0-9_]*)\s*\}\}$`),
		templates:       make(map[string]*Template, len(templates)),
	}
	for _, t := range templates {
		if t == nil {
			continue
		}
		if _, exists := e.templates[t.ID]; exists {
			return nil, fmt.Errorf("duplicate template id %q", t.ID)
		}
		e.templates[t.ID] = t
	}
	return e, nil
}

// Template returns the template with the given id.
func (e *Engine) Template(id string) (*Template, bool) {
	t, ok := e.templates[id]
	return t, ok
}

// IDs returns all template ids in sorted order.
func (e *Engine) IDs() []string {
	ids := make([]string, 0, len(e.templates))
	for id := range e.templates {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Render renders the template with the given id using a concrete parameter
// assignment. Missing parameters are filled from defaults. The returned body
// contains no unresolved references.
func (e *Engine) Render(id string, assignment map[string]interface{}) (map[string]interface{}, error) {
	t, ok := e.templates[id]
	if !ok {
		return nil, &UnknownTemplateError{ID: id}
	}
	return e.render(t, assignment, nil)
}

func (e *Engine) render(t *Template, assignment map[string]interface{}, chain []string) (map[string]interface{}, error) {
	for _, seen := range chain {
		if seen == t.ID {
			cycle := append(append([]string{}, chain...), t.ID)
			return nil, &TemplateCycleError{Chain: cycle}
		}
	}
	chain = append(chain, t.ID)

	// Sorted so the reported error is the same on every run.
	keys := make([]string, 0, len(assignment))
	for k := range assignment {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if IsBuiltin(k) {
			continue
		}
		if _, declared := t.Param(k); !declared {
			return nil, &UnknownParameterError{Template: t.ID, Name: k}
		}
	}

	scope := MergeContexts(t.Defaults(), assignment, map[string]interface{}{BuiltinTemplateID: t.ID})

	var missing []string
	for _, name := range t.Required() {
		if _, ok := scope[name]; !ok {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return nil, &UnresolvedParameterError{Template: t.ID, Names: missing}
	}

	r := &renderState{engine: e, template: t, scope: scope, chain: chain}
	out, err := r.replace(t.Body)
	if err != nil {
		return nil, err
	}
	body, ok := out.(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("template %q: body must be a mapping", t.ID)
	}
	return body, nil
}

// renderState carries the scope of one template while walking its body.
type renderState struct {
	engine   *Engine
	template *Template
	scope    map[string]interface{}
	chain    []string
}

// replace substitutes references in value, resolving nested templates depth-first.
func (r *renderState) replace(value interface{}) (interface{}, error) {
	switch v := value.(type) {
	case string:
		return r.replaceStringTemplates(v)
	case map[string]interface{}:
		if _, ok := v[NestedTemplateKey]; ok {
			return r.renderNested(v)
		}
		return r.replaceMapTemplates(v)
	case []interface{}:
		return r.replaceSliceTemplates(v)
	default:
		// Non-templatable types are returned as-is
		return value, nil
	}
}

// replaceStringTemplates replaces template variables in a string. A string that
// is exactly one reference is replaced by the value itself, keeping its type.
func (r *renderState) replaceStringTemplates(template string) (interface{}, error) {
	if m := r.engine.wholePattern.FindStringSubmatch(template); m != nil {
		replacement, exists := r.scope[m[1]]
		if !exists {
			return nil, &UnresolvedParameterError{Template: r.template.ID, Names: []string{m[1]}}
		}
		return deepCopy(replacement), nil
	}

	var missingVars []string
	result := r.engine.templatePattern.ReplaceAllStringFunc(template, func(match string) string {
		sub := r.engine.templatePattern.FindStringSubmatch(match)
		replacement, exists := r.scope[sub[1]]
		if !exists {
			missingVars = append(missingVars, sub[1])
			return match
		}
		return stringify(replacement)
	})

	if len(missingVars) > 0 {
		return nil, &UnresolvedParameterError{Template: r.template.ID, Names: dedupe(missingVars)}
	}

	return result, nil
}

// replaceMapTemplates recursively replaces templates in a map
func (r *renderState) replaceMapTemplates(m map[string]interface{}) (map[string]interface{}, error) {
	result := make(map[string]interface{}, len(m))

	for _, key := range sortedKeys(m) {
		replacedValue, err := r.replace(m[key])
		if err != nil {
			return nil, fmt.Errorf("error in key '%s': %w", key, err)
		}
		result[key] = replacedValue
	}

	return result, nil
}

// replaceSliceTemplates recursively replaces templates in a slice
func (r *renderState) replaceSliceTemplates(s []interface{}) ([]interface{}, error) {
	result := make([]interface{}, len(s))

	for i, value := range s {
		replacedValue, err := r.replace(value)
		if err != nil {
			return nil, fmt.Errorf("error at index %d: %w", i, err)
		}
		result[i] = replacedValue
	}

	return result, nil
}

// renderNested resolves a {"$template": id, "$params": {...}} mapping.
// Parameters are rendered in the outer scope first. Any other keys in the
// mapping are rendered and laid over the nested body.
func (r *renderState) renderNested(m map[string]interface{}) (interface{}, error) {
	id, ok := m[NestedTemplateKey].(string)
	if !ok || id == "" {
		return nil, fmt.Errorf("template %q: %s must be a template id", r.template.ID, NestedTemplateKey)
	}
	nestedTemplate, ok := r.engine.templates[id]
	if !ok {
		return nil, &UnknownTemplateError{ID: id, Referrer: r.template.ID}
	}

	assignment := make(map[string]interface{})
	if raw, ok := m[NestedParamsKey]; ok && raw != nil {
		params, ok := raw.(map[string]interface{})
		if !ok {
			return nil, fmt.Errorf("template %q: %s must be a mapping", r.template.ID, NestedParamsKey)
		}
		rendered, err := r.replaceMapTemplates(params)
		if err != nil {
			return nil, err
		}
		assignment = rendered
	}
	if jobName, ok := r.scope[BuiltinJobName]; ok {
		if _, set := assignment[BuiltinJobName]; !set {
			assignment[BuiltinJobName] = jobName
		}
	}

	body, err := r.engine.render(nestedTemplate, assignment, r.chain)
	if err != nil {
		return nil, err
	}

	for _, key := range sortedKeys(m) {
		if key == NestedTemplateKey || key == NestedParamsKey {
			continue
		}
		value, err := r.replace(m[key])
		if err != nil {
			return nil, fmt.Errorf("error in key '%s': %w", key, err)
		}
		body[key] = value
	}
	return body, nil
}

// ExtractVariables extracts all template variable names from a value
func (e *Engine) ExtractVariables(value interface{}) []string {
	variables := make(map[string]bool)
	e.extractVariablesRecursive(value, variables)

	// Convert map to slice
	result := make([]string, 0, len(variables))
	for varName := range variables {
		result = append(result, varName)
	}
	sort.Strings(result)

	return result
}

// extractVariablesRecursive recursively extracts variables from any value type.
// Keys inside a nested template's $params are included because they are
// rendered in the enclosing scope.
func (e *Engine) extractVariablesRecursive(value interface{}, variables map[string]bool) {
	switch v := value.(type) {
	case string:
		matches := e.templatePattern.FindAllStringSubmatch(v, -1)
		for _, match := range matches {
			if len(match) >= 2 {
				variables[match[1]] = true
			}
		}
	case map[string]interface{}:
		for _, val := range v {
			e.extractVariablesRecursive(val, variables)
		}
	case []interface{}:
		for _, val := range v {
			e.extractVariablesRecursive(val, variables)
		}
	}
}

// UnusedParams returns declared parameters the template body never references.
func (e *Engine) UnusedParams(t *Template) []string {
	used := make(map[string]bool)
	for _, name := range e.ExtractVariables(t.Body) {
		used[name] = true
	}
	var unused []string
	for _, p := range t.Params {
		if !used[p.Name] {
			unused = append(unused, p.Name)
		}
	}
	return unused
}

func stringify(value interface{}) string {
	switch r := value.(type) {
	case string:
		return r
	case int:
		return strconv.Itoa(r)
	case int64:
		return strconv.FormatInt(r, 10)
	case float64:
		return strconv.FormatFloat(r, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(r)
	case nil:
		return ""
	default:
		return fmt.Sprintf("%v", r)
	}
}

func sortedKeys(m map[string]interface{}) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func dedupe(names []string) []string {
	seen := make(map[string]bool, len(names))
	out := names[:0]
	for _, n := range names {
		if !seen[n] {
			seen[n] = true
			out = append(out, n)
		}
	}
	return out
}
