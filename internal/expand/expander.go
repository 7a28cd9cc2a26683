package expand

import (
	"bytes"
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"text/template"

	"jobsmith/internal/job"
	tmpl "jobsmith/internal/template"
	"jobsmith/pkg/logging"

	"github.com/Masterminds/sprig/v3"
	"golang.org/x/sync/errgroup"
)

// Renderer renders a template body for one parameter assignment.
type Renderer interface {
	Render(id string, assignment map[string]interface{}) (map[string]interface{}, error)
}

// Expander turns projects into fully resolved job definitions.
type Expander struct {
	renderer    Renderer
	parallelism int

	// name-format templates are parsed once per distinct format string
	formats sync.Map
}

// NewExpander creates an expander. A parallelism below one expands projects
// sequentially.
func NewExpander(renderer Renderer, parallelism int) *Expander {
	if parallelism < 1 {
		parallelism = 1
	}
	return &Expander{renderer: renderer, parallelism: parallelism}
}

// combination is one point of the matrix product, in axis order.
type combination []job.Param

func (c combination) String() string {
	if len(c) == 0 {
		return "{}"
	}
	parts := make([]string, len(c))
	for i, p := range c {
		parts[i] = fmt.Sprintf("%s=%s", p.Name, formatValue(p.Value))
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

// Combinations returns the cartesian product of the matrix. The first axis is
// the outermost loop and values keep their declared order.
func Combinations(m Matrix) ([][]job.Param, error) {
	for _, axis := range m {
		if len(axis.Values) == 0 {
			return nil, &EmptyMatrixError{Axis: axis.Name}
		}
	}

	result := [][]job.Param{{}}
	for _, axis := range m {
		next := make([][]job.Param, 0, len(result)*len(axis.Values))
		for _, prefix := range result {
			for _, v := range axis.Values {
				combo := make([]job.Param, len(prefix), len(prefix)+1)
				copy(combo, prefix)
				next = append(next, append(combo, job.Param{Name: axis.Name, Value: v}))
			}
		}
		result = next
	}
	return result, nil
}

// Expand renders one definition per matrix combination of the project.
func (e *Expander) Expand(p Project) ([]job.Definition, error) {
	combos, err := Combinations(p.Matrix)
	if err != nil {
		if empty, ok := err.(*EmptyMatrixError); ok {
			empty.Project = p.DisplayName()
		}
		return nil, err
	}

	defs := make([]job.Definition, 0, len(combos))
	seen := make(map[string]combination, len(combos))
	for _, c := range combos {
		combo := combination(c)
		name, err := e.deriveName(p, combo)
		if err != nil {
			return nil, err
		}
		if prev, dup := seen[name]; dup {
			return nil, &DuplicateJobNameError{
				Name:   name,
				First:  fmt.Sprintf("%s %s", p.DisplayName(), prev),
				Second: fmt.Sprintf("%s %s", p.DisplayName(), combo),
			}
		}
		seen[name] = combo

		assignment := tmpl.MergeContexts(p.Params, paramMap(combo), map[string]interface{}{tmpl.BuiltinJobName: name})
		body, err := e.renderer.Render(p.Template, assignment)
		if err != nil {
			return nil, fmt.Errorf("project %q job %q: %w", p.DisplayName(), name, err)
		}

		defs = append(defs, job.Definition{
			Name:     name,
			Template: p.Template,
			Params:   c,
			Body:     body,
			Source:   p.Source,
		})
	}

	logging.Debug("Expander", "Project %s expanded to %d jobs", p.DisplayName(), len(defs))
	return defs, nil
}

// ExpandAll expands every project. Projects are expanded concurrently, but the
// output keeps project declaration order followed by combination order. Job
// names must be unique across all projects.
func (e *Expander) ExpandAll(ctx context.Context, projects []Project) ([]job.Definition, error) {
	results := make([][]job.Definition, len(projects))
	errs := make([]error, len(projects))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(e.parallelism)
	for i := range projects {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				errs[i] = err
				return nil
			}
			results[i], errs[i] = e.Expand(projects[i])
			return nil
		})
	}
	_ = g.Wait()

	// Report the first failure in declaration order so errors are stable.
	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}

	var all []job.Definition
	owner := make(map[string]string)
	for i, defs := range results {
		for _, d := range defs {
			if prev, dup := owner[d.Name]; dup {
				return nil, &DuplicateJobNameError{
					Name:   d.Name,
					First:  prev,
					Second: fmt.Sprintf("project %q (%s)", projects[i].DisplayName(), projects[i].Source),
				}
			}
			owner[d.Name] = fmt.Sprintf("project %q (%s)", projects[i].DisplayName(), projects[i].Source)
			all = append(all, d)
		}
	}
	return all, nil
}

// deriveName computes the job name for a combination. Without a name format
// the name is the template id followed by each value in axis order.
func (e *Expander) deriveName(p Project, combo combination) (string, error) {
	if p.NameFormat == "" {
		parts := make([]string, 0, len(combo)+1)
		parts = append(parts, p.Template)
		for _, param := range combo {
			parts = append(parts, formatValue(param.Value))
		}
		return strings.Join(parts, "-"), nil
	}

	t, err := e.nameTemplate(p.NameFormat)
	if err != nil {
		return "", fmt.Errorf("project %q: invalid name-format: %w", p.DisplayName(), err)
	}

	data := tmpl.MergeContexts(p.Params, paramMap(combo), map[string]interface{}{
		tmpl.BuiltinTemplateID: p.Template,
		"project":              p.DisplayName(),
	})
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("project %q: name-format failed for %s: %w", p.DisplayName(), combo, err)
	}
	name := strings.TrimSpace(buf.String())
	if name == "" {
		return "", fmt.Errorf("project %q: name-format produced an empty name for %s", p.DisplayName(), combo)
	}
	return name, nil
}

func (e *Expander) nameTemplate(format string) (*template.Template, error) {
	if cached, ok := e.formats.Load(format); ok {
		return cached.(*template.Template), nil
	}
	// Hermetic functions only, so names never depend on time, randomness
	// or the environment.
	t, err := template.New("name").
		Funcs(sprig.HermeticTxtFuncMap()).
		Option("missingkey=error").
		Parse(format)
	if err != nil {
		return nil, err
	}
	e.formats.Store(format, t)
	return t, nil
}

func paramMap(c combination) map[string]interface{} {
	m := make(map[string]interface{}, len(c))
	for _, p := range c {
		m[p.Name] = p.Value
	}
	return m
}

func formatValue(v interface{}) string {
	switch val := v.(type) {
	case string:
		return val
	case int:
		return strconv.Itoa(val)
	case int64:
		return strconv.FormatInt(val, 10)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(val)
	case nil:
		return "null"
	default:
		return fmt.Sprintf("%v", val)
	}
}
