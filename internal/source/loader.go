// Package source loads job-configuration files into templates and projects.
//
// A source file is a YAML sequence of single-key mappings:
//
//	- template:
//	    id: build
//	    params:
//	      branch:            # no default: required
//	      timeout: 30        # scalar: default value
//	      labels:
//	        default: [linux]
//	    body:
//	      description: "Build {{ branch }}"
//	      timeout: "{{ timeout }}"
//
//	- project:
//	    template: build
//	    matrix:
//	      branch: [main, dev]
//
//	- view:
//	    name: all-builds
//	    view-type: list
//	    regex: "build-.*"
//
// A template may carry its own matrix, in which case it also expands as a
// project. A list under params is a list-valued default, never a matrix
// axis: a template with neither a matrix nor a project that uses it produces
// no jobs. Multiple YAML documents per file are allowed.
package source

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"jobsmith/internal/config"
	"jobsmith/internal/expand"
	"jobsmith/internal/template"
	"jobsmith/pkg/logging"

	"gopkg.in/yaml.v3"
)

const (
	kindTemplate = "template"
	kindProject  = "project"
	kindView     = "view"
)

// Set is the merged result of loading one or more sources.
type Set struct {
	Templates []*template.Template
	Projects  []expand.Project
	Files     []string
}

// Load loads every file and directory in paths. Directories are walked
// recursively and *.yaml / *.yml files are read in lexical order. All
// structural errors across all files are collected and returned together as a
// *config.ConfigurationErrorCollection.
func Load(paths ...string) (*Set, error) {
	files, err := ResolveFiles(paths...)
	if err != nil {
		return nil, err
	}

	set := &Set{}
	errs := config.NewConfigurationErrorCollection()
	for _, file := range files {
		data, err := os.ReadFile(file)
		if err != nil {
			errs.Add(fileError(file, "", config.ErrorTypeIO, 0, err.Error()))
			continue
		}
		parsed, perr := Parse(data, file)
		if perr != nil {
			var coll *config.ConfigurationErrorCollection
			if errors.As(perr, &coll) {
				errs.Errors = append(errs.Errors, coll.Errors...)
			} else {
				errs.Add(fileError(file, "", config.ErrorTypeParse, 0, perr.Error()))
			}
		}
		if parsed != nil {
			set.Templates = append(set.Templates, parsed.Templates...)
			set.Projects = append(set.Projects, parsed.Projects...)
		}
		set.Files = append(set.Files, file)
	}

	set.checkReferences(errs)
	if err := errs.ErrOrNil(); err != nil {
		return nil, err
	}

	logging.Info("Loader", "Loaded %d templates and %d projects from %d files",
		len(set.Templates), len(set.Projects), len(set.Files))
	return set, nil
}

// ResolveFiles expands directories into the YAML files they contain.
func ResolveFiles(paths ...string) ([]string, error) {
	if len(paths) == 0 {
		return nil, fmt.Errorf("no configuration sources given")
	}

	var files []string
	seen := make(map[string]bool)
	add := func(p string) {
		if !seen[p] {
			seen[p] = true
			files = append(files, p)
		}
	}

	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			return nil, fmt.Errorf("failed to read source %s: %w", p, err)
		}
		if !info.IsDir() {
			add(p)
			continue
		}
		var found []string
		err = filepath.WalkDir(p, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				if path != p && strings.HasPrefix(d.Name(), ".") {
					return filepath.SkipDir
				}
				return nil
			}
			if isYAML(path) {
				found = append(found, path)
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("failed to walk source directory %s: %w", p, err)
		}
		sort.Strings(found)
		for _, f := range found {
			add(f)
		}
	}
	return files, nil
}

func isYAML(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".yaml" || ext == ".yml"
}

// Parse parses the content of one source file.
func Parse(data []byte, path string) (*Set, error) {
	p := &parser{path: path, errs: config.NewConfigurationErrorCollection(), set: &Set{}}

	dec := yaml.NewDecoder(strings.NewReader(string(data)))
	for {
		var doc yaml.Node
		err := dec.Decode(&doc)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			p.fail("", config.ErrorTypeParse, 0, "%s", err.Error())
			break
		}
		p.parseDocument(&doc)
	}

	return p.set, p.errs.ErrOrNil()
}

type parser struct {
	path string
	errs *config.ConfigurationErrorCollection
	set  *Set

	// line of the declaration being parsed
	declLine int
}

func (p *parser) fail(kind, errorType string, line int, format string, args ...interface{}) {
	p.errs.Add(fileError(p.path, kind, errorType, line, fmt.Sprintf(format, args...)))
}

func fileError(path, kind, errorType string, line int, message string) config.ConfigurationError {
	return config.ConfigurationError{
		FilePath:   path,
		FileName:   filepath.Base(path),
		Kind:       kind,
		ErrorType:  errorType,
		Message:    message,
		LineNumber: line,
	}
}

func (p *parser) location() string {
	return fmt.Sprintf("%s:%d", p.path, p.declLine)
}

func (p *parser) parseDocument(doc *yaml.Node) {
	if doc.Kind != yaml.DocumentNode || len(doc.Content) == 0 {
		return
	}
	root := doc.Content[0]
	if root.Kind == yaml.ScalarNode && root.Tag == "!!null" {
		return
	}
	if root.Kind != yaml.SequenceNode {
		p.fail("", config.ErrorTypeStructure, root.Line, "top level must be a list of declarations")
		return
	}

	for _, item := range root.Content {
		if item.Kind != yaml.MappingNode || len(item.Content) != 2 {
			p.fail("", config.ErrorTypeStructure, item.Line,
				"each declaration must be a mapping with exactly one key (template, project or view)")
			continue
		}
		key, value := item.Content[0], item.Content[1]
		p.declLine = key.Line
		switch key.Value {
		case kindTemplate:
			p.parseTemplate(value)
		case kindProject:
			if proj, ok := p.parseProject(value); ok {
				p.set.Projects = append(p.set.Projects, proj)
			}
		case kindView:
			p.parseView(value)
		default:
			p.errs.Add(config.ConfigurationError{
				FilePath:    p.path,
				FileName:    filepath.Base(p.path),
				ErrorType:   config.ErrorTypeStructure,
				Message:     fmt.Sprintf("unknown declaration %q", key.Value),
				LineNumber:  key.Line,
				Suggestions: []string{"use one of: template, project, view"},
			})
		}
	}
}

// fields maps the keys of a mapping node to their value nodes.
func (p *parser) fields(kind string, n *yaml.Node, allowed ...string) (map[string]*yaml.Node, bool) {
	if n.Kind != yaml.MappingNode {
		p.fail(kind, config.ErrorTypeStructure, n.Line, "%s must be a mapping", kind)
		return nil, false
	}
	allow := make(map[string]bool, len(allowed))
	for _, a := range allowed {
		allow[a] = true
	}
	out := make(map[string]*yaml.Node, len(n.Content)/2)
	ok := true
	for i := 0; i+1 < len(n.Content); i += 2 {
		k := n.Content[i]
		if len(allowed) > 0 && !allow[k.Value] {
			p.fail(kind, config.ErrorTypeStructure, k.Line, "unknown field %q", k.Value)
			ok = false
			continue
		}
		out[k.Value] = n.Content[i+1]
	}
	return out, ok
}

func (p *parser) scalar(kind, field string, n *yaml.Node) (string, bool) {
	if n == nil {
		return "", false
	}
	if n.Kind != yaml.ScalarNode {
		p.fail(kind, config.ErrorTypeStructure, n.Line, "%s must be a string", field)
		return "", false
	}
	return n.Value, true
}

func (p *parser) decodeMap(kind, field string, n *yaml.Node) (map[string]interface{}, bool) {
	if n == nil || (n.Kind == yaml.ScalarNode && n.Tag == "!!null") {
		return map[string]interface{}{}, true
	}
	if n.Kind != yaml.MappingNode {
		p.fail(kind, config.ErrorTypeStructure, n.Line, "%s must be a mapping", field)
		return nil, false
	}
	var out map[string]interface{}
	if err := n.Decode(&out); err != nil {
		p.fail(kind, config.ErrorTypeParse, n.Line, "%s: %v", field, err)
		return nil, false
	}
	if out == nil {
		out = map[string]interface{}{}
	}
	return out, true
}

func (p *parser) parseTemplate(n *yaml.Node) {
	f, ok := p.fields(kindTemplate, n, "id", "params", "body", "matrix", "name-format")
	if !ok {
		return
	}

	id, ok := p.scalar(kindTemplate, "id", f["id"])
	if !ok || id == "" {
		p.fail(kindTemplate, config.ErrorTypeStructure, n.Line, "id is required")
		return
	}

	params, ok := p.parseParams(f["params"])
	if !ok {
		return
	}

	body, ok := p.decodeMap(kindTemplate, "body", f["body"])
	if !ok {
		return
	}

	t := &template.Template{ID: id, Params: params, Body: body, Source: p.location()}
	p.set.Templates = append(p.set.Templates, t)

	if m, has := f["matrix"]; has {
		matrix, ok := p.parseMatrix(kindTemplate, m)
		if !ok {
			return
		}
		format, _ := p.scalar(kindTemplate, "name-format", f["name-format"])
		p.set.Projects = append(p.set.Projects, expand.Project{
			Name:       id,
			Template:   id,
			Matrix:     matrix,
			NameFormat: format,
			Source:     p.location(),
		})
	}
}

// parseParams reads a parameter declaration mapping. A null value declares a
// required parameter. A mapping with a "default" key declares a default. Any
// other value is itself the default.
func (p *parser) parseParams(n *yaml.Node) ([]template.ParamSpec, bool) {
	if n == nil || (n.Kind == yaml.ScalarNode && n.Tag == "!!null") {
		return nil, true
	}
	if n.Kind != yaml.MappingNode {
		p.fail(kindTemplate, config.ErrorTypeStructure, n.Line, "params must be a mapping")
		return nil, false
	}

	var specs []template.ParamSpec
	ok := true
	for i := 0; i+1 < len(n.Content); i += 2 {
		k, v := n.Content[i], n.Content[i+1]
		if !template.ValidParamName(k.Value) || template.IsBuiltin(k.Value) {
			p.fail(kindTemplate, config.ErrorTypeStructure, k.Line,
				"invalid parameter name %q", k.Value)
			ok = false
			continue
		}
		spec := template.ParamSpec{Name: k.Value}
		switch {
		case v.Kind == yaml.ScalarNode && v.Tag == "!!null":
		case v.Kind == yaml.MappingNode && hasKey(v, "default"):
			for j := 0; j+1 < len(v.Content); j += 2 {
				if v.Content[j].Value == "default" {
					var def interface{}
					if err := v.Content[j+1].Decode(&def); err != nil {
						p.fail(kindTemplate, config.ErrorTypeParse, v.Line, "param %s: %v", k.Value, err)
						ok = false
					}
					spec.Default, spec.HasDefault = def, true
				}
			}
		case v.Kind == yaml.MappingNode && len(v.Content) == 0:
		default:
			var def interface{}
			if err := v.Decode(&def); err != nil {
				p.fail(kindTemplate, config.ErrorTypeParse, v.Line, "param %s: %v", k.Value, err)
				ok = false
			}
			spec.Default, spec.HasDefault = def, true
		}
		specs = append(specs, spec)
	}
	return specs, ok
}

func hasKey(n *yaml.Node, key string) bool {
	for i := 0; i+1 < len(n.Content); i += 2 {
		if n.Content[i].Value == key {
			return true
		}
	}
	return false
}

// parseMatrix reads axes in declaration order. A scalar axis is a single-value axis.
func (p *parser) parseMatrix(kind string, n *yaml.Node) (expand.Matrix, bool) {
	if n.Kind == yaml.ScalarNode && n.Tag == "!!null" {
		return nil, true
	}
	if n.Kind != yaml.MappingNode {
		p.fail(kind, config.ErrorTypeStructure, n.Line, "matrix must be a mapping of parameter to values")
		return nil, false
	}

	var matrix expand.Matrix
	ok := true
	for i := 0; i+1 < len(n.Content); i += 2 {
		k, v := n.Content[i], n.Content[i+1]
		axis := expand.Axis{Name: k.Value, Values: []interface{}{}}
		switch v.Kind {
		case yaml.SequenceNode:
			for _, item := range v.Content {
				var val interface{}
				if err := item.Decode(&val); err != nil {
					p.fail(kind, config.ErrorTypeParse, item.Line, "matrix %s: %v", k.Value, err)
					ok = false
					continue
				}
				axis.Values = append(axis.Values, val)
			}
		case yaml.ScalarNode, yaml.MappingNode:
			var val interface{}
			if err := v.Decode(&val); err != nil {
				p.fail(kind, config.ErrorTypeParse, v.Line, "matrix %s: %v", k.Value, err)
				ok = false
				continue
			}
			axis.Values = append(axis.Values, val)
		default:
			p.fail(kind, config.ErrorTypeStructure, v.Line, "matrix %s must be a list of values", k.Value)
			ok = false
			continue
		}
		matrix = append(matrix, axis)
	}
	return matrix, ok
}

func (p *parser) parseProject(n *yaml.Node) (expand.Project, bool) {
	f, ok := p.fields(kindProject, n, "name", "template", "matrix", "params", "name-format")
	if !ok {
		return expand.Project{}, false
	}

	tmpl, ok := p.scalar(kindProject, "template", f["template"])
	if !ok || tmpl == "" {
		p.fail(kindProject, config.ErrorTypeStructure, n.Line, "template is required")
		return expand.Project{}, false
	}

	proj := expand.Project{Template: tmpl, Source: p.location()}
	if name, has := f["name"]; has {
		proj.Name, _ = p.scalar(kindProject, "name", name)
	}
	if format, has := f["name-format"]; has {
		proj.NameFormat, _ = p.scalar(kindProject, "name-format", format)
	}
	if m, has := f["matrix"]; has {
		matrix, ok := p.parseMatrix(kindProject, m)
		if !ok {
			return expand.Project{}, false
		}
		proj.Matrix = matrix
	}
	params, ok := p.decodeMap(kindProject, "params", f["params"])
	if !ok {
		return expand.Project{}, false
	}
	proj.Params = params
	return proj, true
}

// parseView turns a view declaration into a parameterless template plus a
// single-job project named after the view.
func (p *parser) parseView(n *yaml.Node) {
	body, ok := p.decodeMap(kindView, "view", n)
	if !ok {
		return
	}
	name, _ := body["name"].(string)
	if name == "" {
		p.fail(kindView, config.ErrorTypeStructure, n.Line, "name is required")
		return
	}
	if _, has := body["view-type"]; !has {
		body["view-type"] = "list"
	}

	id := "view:" + name
	p.set.Templates = append(p.set.Templates, &template.Template{ID: id, Body: body, Source: p.location()})
	p.set.Projects = append(p.set.Projects, expand.Project{
		Name:       name,
		Template:   id,
		NameFormat: name,
		Source:     p.location(),
	})
}

// checkReferences reports duplicate template ids and projects naming
// templates that do not exist.
func (s *Set) checkReferences(errs *config.ConfigurationErrorCollection) {
	byID := make(map[string]*template.Template, len(s.Templates))
	for _, t := range s.Templates {
		if prev, dup := byID[t.ID]; dup {
			errs.Add(sourceError(t.Source, kindTemplate, config.ErrorTypeDuplicate,
				fmt.Sprintf("template id %q already declared at %s", t.ID, prev.Source)))
			continue
		}
		byID[t.ID] = t
	}
	for _, proj := range s.Projects {
		if _, ok := byID[proj.Template]; !ok {
			errs.Add(sourceError(proj.Source, kindProject, config.ErrorTypeReference,
				fmt.Sprintf("project %q references unknown template %q", proj.DisplayName(), proj.Template)))
		}
	}
}

// sourceError builds a ConfigurationError from a "file:line" location.
func sourceError(location, kind, errorType, message string) config.ConfigurationError {
	path, line := location, 0
	if i := strings.LastIndex(location, ":"); i > 0 {
		if _, err := fmt.Sscanf(location[i+1:], "%d", &line); err == nil {
			path = location[:i]
		}
	}
	return fileError(path, kind, errorType, line, message)
}
