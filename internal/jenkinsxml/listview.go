// Package jenkinsxml renders list-view definitions as orchestrator view XML.
package jenkinsxml

import (
	"encoding/xml"
	"fmt"
	"strconv"

	"jobsmith/internal/job"
)

// ColumnClasses maps column names to their view column classes. Unknown
// column names are skipped.
var ColumnClasses = map[string]string{
	"status":        "hudson.views.StatusColumn",
	"weather":       "hudson.views.WeatherColumn",
	"job":           "hudson.views.JobColumn",
	"last-success":  "hudson.views.LastSuccessColumn",
	"last-failure":  "hudson.views.LastFailureColumn",
	"last-duration": "hudson.views.LastDurationColumn",
	"build-button":  "hudson.views.BuildButtonColumn",
	"last-stable":   "hudson.views.LastStableColumn",
}

const filterPlugin = "view-job-filters"

// fieldMapping maps one YAML option to an XML element with a default.
type fieldMapping struct {
	option  string
	element string
	def     interface{}
}

type filterSpec struct {
	option   string
	class    string
	mappings []fieldMapping
}

// jobFilters are rendered in this order.
var jobFilters = []filterSpec{
	{
		option: "most-recent",
		class:  "hudson.views.MostRecentJobsFilter",
		mappings: []fieldMapping{
			{"max-to-include", "maxToInclude", "0"},
			{"check-start-time", "checkStartTime", false},
		},
	},
	{
		option: "build-duration",
		class:  "hudson.views.BuildDurationFilter",
		mappings: []fieldMapping{
			{"match-type", "includeExcludeTypeString", "includeMatched"},
			{"build-duration-type", "buildCountTypeString", "Latest"},
			{"amount-type", "amountTypeString", "Hours"},
			{"amount", "amount", "0"},
			{"less-than", "lessThan", true},
			{"build-duration-minutes", "buildDurationMinutes", "0"},
		},
	},
	{
		option: "build-trend",
		class:  "hudson.views.BuildTrendFilter",
		mappings: []fieldMapping{
			{"match-type", "includeExcludeTypeString", "includeMatched"},
			{"build-trend-type", "buildCountTypeString", "Latest"},
			{"amount-type", "amountTypeString", "Hours"},
			{"amount", "amount", "0"},
			{"status", "statusTypeString", "Completed"},
		},
	},
	{
		option: "job-status",
		class:  "hudson.views.JobStatusFilter",
		mappings: []fieldMapping{
			{"match-type", "includeExcludeTypeString", "includeMatched"},
			{"unstable", "unstable", false},
			{"failed", "failed", false},
			{"aborted", "aborted", false},
			{"disabled", "disabled", false},
			{"stable", "stable", false},
		},
	},
}

type element struct {
	XMLName xml.Name
	Value   string `xml:",chardata"`
}

type filter struct {
	XMLName xml.Name
	Plugin  string    `xml:"plugin,attr"`
	Fields  []element `xml:",any"`
}

type classElement struct {
	XMLName xml.Name
	Class   string `xml:"class,attr"`
}

type jobNames struct {
	Comparator classElement `xml:"comparator"`
	Names      []string     `xml:"string"`
}

type listView struct {
	XMLName         xml.Name     `xml:"hudson.model.ListView"`
	Name            string       `xml:"name"`
	Description     *string      `xml:"description"`
	FilterExecutors bool         `xml:"filterExecutors"`
	FilterQueue     bool         `xml:"filterQueue"`
	Properties      classElement `xml:"properties"`
	JobNames        jobNames     `xml:"jobNames"`
	JobFilters      struct {
		Filters []filter `xml:",any"`
	} `xml:"jobFilters"`
	Columns struct {
		Columns []element `xml:",any"`
	} `xml:"columns"`
	IncludeRegex *string `xml:"includeRegex"`
	Recurse      bool    `xml:"recurse"`
	StatusFilter *bool   `xml:"statusFilter"`
}

// RenderListView renders a list-view definition as XML. The definition body
// uses the list-view field names (filter-executors, job-name, job-filters,
// columns, regex and so on). Missing filter options take their defaults.
func RenderListView(def job.Definition) ([]byte, error) {
	body := def.Body

	view := listView{Name: def.Name}
	if name, ok := body["name"].(string); ok && name != "" {
		view.Name = name
	}
	if desc, ok := body["description"]; ok && desc != nil {
		s := fmt.Sprint(desc)
		view.Description = &s
	}
	view.FilterExecutors = truthy(body["filter-executors"])
	view.FilterQueue = truthy(body["filter-queue"])
	view.Properties = classElement{Class: "hudson.model.View$PropertyList"}
	view.JobNames.Comparator = classElement{Class: "hudson.util.CaseInsensitiveComparator"}

	if names, ok := body["job-name"]; ok && names != nil {
		list, ok := names.([]interface{})
		if !ok {
			return nil, fmt.Errorf("view %s: job-name must be a list", view.Name)
		}
		for _, n := range list {
			view.JobNames.Names = append(view.JobNames.Names, fmt.Sprint(n))
		}
	}

	if raw, ok := body["job-filters"]; ok && raw != nil {
		filters, ok := raw.(map[string]interface{})
		if !ok {
			return nil, fmt.Errorf("view %s: job-filters must be a mapping", view.Name)
		}
		for _, spec := range jobFilters {
			data, present := filters[spec.option]
			if !present {
				continue
			}
			f, err := renderFilter(spec, data)
			if err != nil {
				return nil, fmt.Errorf("view %s: %w", view.Name, err)
			}
			view.JobFilters.Filters = append(view.JobFilters.Filters, f)
		}
	}

	if raw, ok := body["columns"]; ok && raw != nil {
		columns, ok := raw.([]interface{})
		if !ok {
			return nil, fmt.Errorf("view %s: columns must be a list", view.Name)
		}
		for _, c := range columns {
			if class, known := ColumnClasses[fmt.Sprint(c)]; known {
				view.Columns.Columns = append(view.Columns.Columns, element{XMLName: xml.Name{Local: class}})
			}
		}
	}

	if regex, ok := body["regex"]; ok && regex != nil {
		s := fmt.Sprint(regex)
		view.IncludeRegex = &s
	}
	view.Recurse = truthy(body["recurse"])
	if sf, ok := body["status-filter"]; ok && sf != nil {
		b := truthy(sf)
		view.StatusFilter = &b
	}

	out, err := xml.MarshalIndent(view, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("view %s: failed to encode XML: %w", view.Name, err)
	}
	return append([]byte(xml.Header), append(out, '\n')...), nil
}

func renderFilter(spec filterSpec, data interface{}) (filter, error) {
	options := map[string]interface{}{}
	if data != nil {
		m, ok := data.(map[string]interface{})
		if !ok {
			return filter{}, fmt.Errorf("job filter %s must be a mapping", spec.option)
		}
		options = m
	}

	f := filter{XMLName: xml.Name{Local: spec.class}, Plugin: filterPlugin}
	for _, m := range spec.mappings {
		value, ok := options[m.option]
		if !ok || value == nil {
			value = m.def
		}
		f.Fields = append(f.Fields, element{XMLName: xml.Name{Local: m.element}, Value: xmlText(value)})
	}
	return f, nil
}

// xmlText formats a value the way view XML expects: booleans lower case,
// everything else as its plain string form.
func xmlText(v interface{}) string {
	switch val := v.(type) {
	case bool:
		return strconv.FormatBool(val)
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	default:
		return fmt.Sprint(val)
	}
}

func truthy(v interface{}) bool {
	switch val := v.(type) {
	case nil:
		return false
	case bool:
		return val
	case string:
		return val != "" && val != "false"
	case int:
		return val != 0
	case float64:
		return val != 0
	default:
		return true
	}
}
