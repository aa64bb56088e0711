package main

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/goccy/go-json"
	"gopkg.in/yaml.v3"

	"github.com/gofhir/parser/pkg/batch"
	"github.com/gofhir/parser/pkg/document"
	"github.com/gofhir/parser/pkg/element"
	"github.com/gofhir/parser/pkg/issue"
	"github.com/gofhir/parser/pkg/query"
)

// report is the outcome of one input document, shared by every output
// format.
type report struct {
	Source       string        `json:"source" yaml:"source"`
	ResourceType string        `json:"resourceType,omitempty" yaml:"resourceType,omitempty"`
	ID           string        `json:"id,omitempty" yaml:"id,omitempty"`
	Valid        bool          `json:"valid" yaml:"valid"`
	Errors       int           `json:"errors" yaml:"errors"`
	Issues       []issue.Issue `json:"issues,omitempty" yaml:"issues,omitempty"`
	Queries      []queryResult `json:"fhirpath,omitempty" yaml:"fhirpath,omitempty"`
	Duration     string        `json:"duration" yaml:"duration"`

	// Content is the normalized resource in each encoding.
	Content     json.RawMessage `json:"content,omitempty" yaml:"-"`
	YAMLContent *yaml.Node      `json:"-" yaml:"content,omitempty"`

	resource *element.Resource
}

type queryResult struct {
	Expression string   `json:"expression" yaml:"expression"`
	Values     []string `json:"values" yaml:"values"`
	Error      string   `json:"error,omitempty" yaml:"error,omitempty"`
}

func buildReports(br *batch.Result, eval *query.Evaluator, expressions []string) []*report {
	reports := make([]*report, 0, len(br.Results))
	for _, jr := range br.Results {
		r := &report{
			Source:   jr.ID,
			Duration: jr.Duration.String(),
		}
		if jr.Issues != nil {
			r.Issues = jr.Issues.Issues
			r.Errors = jr.Issues.ErrorCount()
		}
		if jr.Error != nil && (jr.Issues == nil || !jr.Issues.IsFatal()) {
			r.Issues = append(r.Issues, issue.Issue{
				Severity:    issue.SeverityFatal,
				Code:        issue.CodeException,
				Diagnostics: jr.Error.Error(),
			})
			r.Errors++
		}
		r.Valid = r.Errors == 0

		if res, ok := jr.Object.(*element.Resource); ok {
			r.resource = res
			r.ResourceType = res.Type
			r.ID = res.ID()
			if data, err := element.Encode(res); err == nil {
				r.Content = data
			}
			for _, expr := range expressions {
				qr := queryResult{Expression: expr}
				values, err := eval.Strings(res, expr)
				if err != nil {
					qr.Error = err.Error()
				}
				qr.Values = values
				r.Queries = append(r.Queries, qr)
			}
		}
		reports = append(reports, r)
	}
	return reports
}

func render(w io.Writer, format string, reports []*report) error {
	switch format {
	case "text", "":
		for _, r := range reports {
			printText(w, r)
		}
		return nil
	case "json":
		return renderJSON(w, reports)
	case "yaml":
		return renderYAML(w, reports)
	case "tree":
		return renderTree(w, reports)
	case "fhir":
		return renderFHIR(w, reports)
	default:
		return fmt.Errorf("unknown output format %q", format)
	}
}

var (
	okColor      = color.New(color.FgGreen, color.Bold)
	failColor    = color.New(color.FgRed, color.Bold)
	errorColor   = color.New(color.FgRed)
	warnColor    = color.New(color.FgYellow)
	infoColor    = color.New(color.FgCyan)
	headingColor = color.New(color.Bold)
	dimColor     = color.New(color.Faint)
)

func printText(w io.Writer, r *report) {
	headingColor.Fprintf(w, "== %s ==\n", r.Source)

	label := r.ResourceType
	if r.ID != "" {
		label += "/" + r.ID
	}
	if label == "" {
		label = "(no resource)"
	}
	if r.Valid {
		fmt.Fprintf(w, "%s: %s", label, okColor.Sprint("OK"))
	} else {
		fmt.Fprintf(w, "%s: %s", label, failColor.Sprint("FAILED"))
	}
	fmt.Fprintf(w, " (%d issue(s), %s)\n", len(r.Issues), r.Duration)

	for _, iss := range r.Issues {
		where := ""
		if len(iss.Expression) > 0 {
			where = " @ " + strings.Join(iss.Expression, ", ")
		}
		if iss.Location != nil {
			where += dimColor.Sprintf(" (%d:%d)", iss.Location.Line, iss.Location.Column)
		}
		fmt.Fprintf(w, "  %s [%s] %s%s\n", severityLabel(iss.Severity), iss.Code, iss.Diagnostics, where)
	}

	for _, q := range r.Queries {
		if q.Error != "" {
			fmt.Fprintf(w, "  %s %s: %s\n", dimColor.Sprint("fhirpath"), q.Expression, errorColor.Sprint(q.Error))
			continue
		}
		fmt.Fprintf(w, "  %s %s: %s\n", dimColor.Sprint("fhirpath"), q.Expression, strings.Join(q.Values, ", "))
	}
	fmt.Fprintln(w)
}

func severityLabel(severity issue.Severity) string {
	switch severity {
	case issue.SeverityFatal:
		return failColor.Sprint("FATAL")
	case issue.SeverityError:
		return errorColor.Sprint("ERROR")
	case issue.SeverityWarning:
		return warnColor.Sprint("WARN ")
	case issue.SeverityInformation:
		return infoColor.Sprint("INFO ")
	default:
		return "     "
	}
}

func renderJSON(w io.Writer, reports []*report) error {
	data, err := json.MarshalIndent(reports, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}

func renderYAML(w io.Writer, reports []*report) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	for _, r := range reports {
		if r.Content != nil {
			root, err := document.Parse(r.Content)
			if err != nil {
				return err
			}
			r.YAMLContent = toYAML(root)
		}
		if err := enc.Encode(r); err != nil {
			return err
		}
	}
	return enc.Close()
}

func renderTree(w io.Writer, reports []*report) error {
	for _, r := range reports {
		headingColor.Fprintf(w, "== %s ==\n", r.Source)
		if r.resource == nil {
			for _, iss := range r.Issues {
				fmt.Fprintf(w, "  %s %s\n", severityLabel(iss.Severity), iss.Diagnostics)
			}
			continue
		}
		if err := element.Dump(w, r.resource); err != nil {
			return err
		}
	}
	return nil
}

// renderFHIR writes each parsed resource as indented FHIR JSON. Documents
// that failed to parse produce no output.
func renderFHIR(w io.Writer, reports []*report) error {
	for _, r := range reports {
		if r.Content == nil {
			continue
		}
		var buf bytes.Buffer
		if err := json.Indent(&buf, r.Content, "", "  "); err != nil {
			return err
		}
		buf.WriteByte('\n')
		if _, err := w.Write(buf.Bytes()); err != nil {
			return err
		}
	}
	return nil
}

// toYAML converts a document tree to a yaml.Node, keeping member order and
// scalar types.
func toYAML(n document.Node) *yaml.Node {
	switch v := n.(type) {
	case *document.Object:
		node := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
		for _, key := range v.Keys() {
			value, _ := v.Get(key)
			node.Content = append(node.Content,
				&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: key},
				toYAML(value),
			)
		}
		return node
	case *document.Array:
		node := &yaml.Node{Kind: yaml.SequenceNode, Tag: "!!seq"}
		for _, item := range v.Items() {
			node.Content = append(node.Content, toYAML(item))
		}
		return node
	case *document.Scalar:
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: scalarTag(v), Value: v.String()}
	default:
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!null", Value: "null"}
	}
}

func scalarTag(s *document.Scalar) string {
	switch s.Type() {
	case document.ScalarBoolean:
		return "!!bool"
	case document.ScalarNumber:
		if strings.ContainsAny(s.String(), ".eE") {
			return "!!float"
		}
		return "!!int"
	default:
		return "!!str"
	}
}
