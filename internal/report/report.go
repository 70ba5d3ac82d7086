// Package report renders a human readable summary of a session's matrix as
// Markdown, and as HTML through gomarkdown.
package report

import (
	"bytes"
	"fmt"
	"strings"

	"exprview/domain/matrix"
	"exprview/domain/sample"

	"github.com/gomarkdown/markdown"
	"github.com/gomarkdown/markdown/html"
	"github.com/gomarkdown/markdown/parser"
)

// Input is everything a report shows
type Input struct {
	Title  string
	Info   matrix.ManagedMatrixInfo
	Groups []sample.Group
	Schema sample.DataSchema
	// Requested and Unavailable come from the last build; zero when unknown
	Requested   int
	Unavailable int
}

// Markdown renders the report
func Markdown(in Input) []byte {
	var b bytes.Buffer
	title := in.Title
	if title == "" {
		title = "Expression matrix"
	}
	fmt.Fprintf(&b, "# %s\n\n", escape(title))

	info := in.Info
	b.WriteString("| Property | Value |\n|---|---|\n")
	fmt.Fprintf(&b, "| Value type | %s |\n", info.ValueType)
	fmt.Fprintf(&b, "| Visible rows | %d of %d |\n", info.NumRows, info.NumLoadedRows)
	fmt.Fprintf(&b, "| Columns | %d data, %d synthetic |\n", info.NumDataColumns, info.NumSyntheticColumns)
	if in.Requested > 0 {
		fmt.Fprintf(&b, "| Requested probes | %d |\n", in.Requested)
	}
	fmt.Fprintf(&b, "| Dropped probes | %d |\n", info.DroppedProbes)
	if info.SortKey.Kind != "" {
		dir := "descending"
		if info.SortAscending {
			dir = "ascending"
		}
		fmt.Fprintf(&b, "| Sorted by | %s (%s) |\n", escape(info.ColumnName(info.SortKey.Column)), dir)
	}
	fmt.Fprintf(&b, "| Fingerprint | `%s` |\n\n", info.Fingerprint)

	switch {
	case info.Degraded:
		b.WriteString("> No data was available for the selected samples and probes.\n\n")
	case info.Empty:
		b.WriteString("> The active filters leave no rows.\n\n")
	}

	if len(info.Columns) > 0 {
		b.WriteString("## Columns\n\n| # | Name | Description | Filter |\n|---|---|---|---|\n")
		for _, c := range info.Columns {
			fmt.Fprintf(&b, "| %d | %s | %s | %s |\n", c.Index, escape(c.Name), escape(c.Hint), describeFilter(c.Filter))
		}
		b.WriteString("\n")
	}

	if len(in.Groups) > 0 {
		major := in.Schema.Title(in.Schema.MajorParameter)
		fmt.Fprintf(&b, "## Groups\n\n| Group | Color | Samples | Treated | Control | %s |\n|---|---|---|---|---|---|\n", escape(major))
		for _, g := range in.Groups {
			fmt.Fprintf(&b, "| %s | %s | %d | %d | %d | %s |\n",
				escape(g.Name), g.Color, len(g.Samples()), len(g.TreatedSamples()), len(g.ControlSamples()),
				escape(strings.Join(sample.CollectMajors(g, in.Schema), ", ")))
		}
		b.WriteString("\n")
	}
	return b.Bytes()
}

// HTML renders the report as an HTML fragment
func HTML(in Input) []byte {
	p := parser.NewWithExtensions(parser.CommonExtensions)
	r := html.NewRenderer(html.RendererOptions{Flags: html.CommonFlags})
	return markdown.ToHTML(Markdown(in), p, r)
}

func describeFilter(f matrix.ColumnFilter) string {
	if !f.Active {
		return "none"
	}
	var op string
	switch f.Type {
	case matrix.AbsGreaterThan:
		op = "|x| ≥"
	case matrix.GreaterThan:
		op = "x ≥"
	case matrix.LowerThan:
		op = "x <"
	case matrix.AbsLowerThan:
		op = "|x| <"
	default:
		op = string(f.Type)
	}
	return escape(fmt.Sprintf("%s %g", op, f.Threshold))
}

// escape keeps cell text from breaking the table layout
func escape(s string) string {
	return strings.NewReplacer("|", "\\|", "\n", " ").Replace(s)
}
