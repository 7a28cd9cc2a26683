package expand

import "fmt"

// Axis is one named value list of a parameter matrix.
type Axis struct {
	Name   string
	Values []interface{}
}

// Matrix is an ordered set of axes. Its cartesian product determines how many
// jobs a project expands to. Axis order determines derived-name order.
type Matrix []Axis

// Size returns the number of combinations the matrix produces.
func (m Matrix) Size() int {
	size := 1
	for _, axis := range m {
		size *= len(axis.Values)
	}
	return size
}

// Names returns the axis names in order.
func (m Matrix) Names() []string {
	names := make([]string, len(m))
	for i, axis := range m {
		names[i] = axis.Name
	}
	return names
}

// Project binds a template to a matrix and fixed parameters.
type Project struct {
	// Name identifies the project in logs and errors. Defaults to the template id.
	Name string

	// Template is the id of the template to render.
	Template string

	// Matrix drives expansion. An empty matrix expands to exactly one job.
	Matrix Matrix

	// Params are fixed assignments shared by every combination.
	Params map[string]interface{}

	// NameFormat optionally overrides the derived job name. It is a Go
	// text/template executed with the combination as data.
	NameFormat string

	// Source is the file:line the project was declared at.
	Source string
}

// DisplayName returns the project name or, failing that, its template id.
func (p Project) DisplayName() string {
	if p.Name != "" {
		return p.Name
	}
	return p.Template
}

// EmptyMatrixError is returned when an axis has no values.
type EmptyMatrixError struct {
	Project string
	Axis    string
}

func (e *EmptyMatrixError) Error() string {
	return fmt.Sprintf("project %q: matrix axis %q has no values", e.Project, e.Axis)
}

// DuplicateJobNameError is returned when two distinct combinations derive
// the same job name.
type DuplicateJobNameError struct {
	Name string
	// First and Second describe the colliding combinations.
	First  string
	Second string
}

func (e *DuplicateJobNameError) Error() string {
	return fmt.Sprintf("duplicate job name %q: produced by %s and %s", e.Name, e.First, e.Second)
}
