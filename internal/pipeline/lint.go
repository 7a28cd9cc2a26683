package pipeline

import (
	"fmt"

	"jobsmith/internal/source"
	"jobsmith/internal/template"
)

// lint reports source problems that are legal but almost certainly not
// intended. Warnings never fail a run.
func lint(set *source.Set, engine *template.Engine) []string {
	expanded := make(map[string]bool, len(set.Projects))
	for _, p := range set.Projects {
		expanded[p.Template] = true
	}

	var warnings []string
	for _, t := range set.Templates {
		if !expanded[t.ID] {
			msg := fmt.Sprintf("%s: template %s is never expanded: add a matrix or a project that uses it", t.Source, t.ID)
			if list := listDefaults(t); len(list) > 0 {
				msg += fmt.Sprintf(" (list-valued params %v are defaults, not matrix axes)", list)
			}
			warnings = append(warnings, msg)
		}
		for _, name := range engine.UnusedParams(t) {
			warnings = append(warnings, fmt.Sprintf("%s: template %s declares param %s but never uses it", t.Source, t.ID, name))
		}
	}
	return warnings
}

func listDefaults(t *template.Template) []string {
	var names []string
	for _, p := range t.Params {
		if _, ok := p.Default.([]interface{}); ok && p.HasDefault {
			names = append(names, p.Name)
		}
	}
	return names
}
