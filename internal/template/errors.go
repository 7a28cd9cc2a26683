package template

import (
	"fmt"
	"strings"
)

// UnresolvedParameterError is returned when a body references a parameter
// that has no assignment and no default.
type UnresolvedParameterError struct {
	Template string
	Names    []string
}

func (e *UnresolvedParameterError) Error() string {
	return fmt.Sprintf("template %q: unresolved parameters: %s", e.Template, strings.Join(e.Names, ", "))
}

// UnknownParameterError is returned when an assignment names a parameter the
// template does not declare.
type UnknownParameterError struct {
	Template string
	Name     string
}

func (e *UnknownParameterError) Error() string {
	return fmt.Sprintf("template %q: unknown parameter %q", e.Template, e.Name)
}

// TemplateCycleError is returned when nested template references form a cycle.
// Chain lists the template ids in resolution order, ending with the repeated id.
type TemplateCycleError struct {
	Chain []string
}

func (e *TemplateCycleError) Error() string {
	return fmt.Sprintf("template cycle: %s", strings.Join(e.Chain, " -> "))
}

// UnknownTemplateError is returned when a template id cannot be found.
type UnknownTemplateError struct {
	ID string
	// Referrer is the template containing the reference, empty for top-level renders.
	Referrer string
}

func (e *UnknownTemplateError) Error() string {
	if e.Referrer != "" {
		return fmt.Sprintf("template %q references unknown template %q", e.Referrer, e.ID)
	}
	return fmt.Sprintf("unknown template %q", e.ID)
}
