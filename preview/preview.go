// Package preview renders datasets for inspection before they are committed.
package preview

import (
	"bytes"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"

	"github.com/sevigo/gwdata/schema"
)

// DefaultLimit is the number of rows shown when Options.Limit is zero.
const DefaultLimit = 20

type Options struct {
	// Limit caps the number of rows rendered. Negative means all rows.
	Limit int
	// ShowTypes adds the semantic type of each field under its name.
	ShowTypes bool
}

func (o Options) limit(total int) int {
	switch {
	case o.Limit < 0:
		return total
	case o.Limit == 0:
		return min(DefaultLimit, total)
	default:
		return min(o.Limit, total)
	}
}

var markdown = goldmark.New(
	goldmark.WithExtensions(
		extension.GFM,
		extension.Table,
	),
	goldmark.WithRendererOptions(
		html.WithXHTML(),
	),
)

// Ready reports whether ds has something to preview: at least one row and
// one field.
func Ready(ds schema.TabularDataset) bool {
	return len(ds.Rows) > 0 && len(ds.Fields) > 0
}

// Table writes ds as a box-drawn terminal table followed by a row count.
func Table(w io.Writer, ds schema.TabularDataset, opts Options) error {
	if !Ready(ds) {
		_, err := fmt.Fprintln(w, "(0 rows)")
		return err
	}

	t := newWriter(ds, opts)
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.Style().Format.Header = text.FormatDefault
	t.Render()

	_, err := fmt.Fprintln(w, footer(ds, opts))
	return err
}

// Markdown renders ds as a GitHub flavored markdown table.
func Markdown(ds schema.TabularDataset, opts Options) string {
	if !Ready(ds) {
		return "_(0 rows)_\n"
	}

	var b strings.Builder
	b.WriteString(newWriter(ds, opts).RenderMarkdown())
	b.WriteString("\n\n_")
	b.WriteString(footer(ds, opts))
	b.WriteString("_\n")
	return b.String()
}

// HTML renders the markdown table of ds to an HTML fragment. Raw HTML inside
// cells is not passed through.
func HTML(ds schema.TabularDataset, opts Options) (string, error) {
	var buf bytes.Buffer
	if err := markdown.Convert([]byte(Markdown(ds, opts)), &buf); err != nil {
		return "", fmt.Errorf("failed to render preview: %w", err)
	}
	return buf.String(), nil
}

// Summary describes ds in one line, e.g. "Sales 2024: 5 rows, 3 fields (1 measure, 2 dimensions)".
func Summary(name string, ds schema.TabularDataset) string {
	measures := 0
	for _, f := range ds.Fields {
		if f.AnalyticType == schema.AnalyticMeasure {
			measures++
		}
	}
	dimensions := len(ds.Fields) - measures

	if name == "" {
		name = "untitled"
	}
	return fmt.Sprintf("%s: %s, %s (%s, %s)",
		name,
		plural(len(ds.Rows), "row"),
		plural(len(ds.Fields), "field"),
		plural(measures, "measure"),
		plural(dimensions, "dimension"),
	)
}

func newWriter(ds schema.TabularDataset, opts Options) table.Writer {
	t := table.NewWriter()

	header := make(table.Row, len(ds.Fields))
	for i, f := range ds.Fields {
		header[i] = f.Name
	}
	t.AppendHeader(header)

	if opts.ShowTypes {
		types := make(table.Row, len(ds.Fields))
		for i, f := range ds.Fields {
			types[i] = string(f.SemanticType)
		}
		t.AppendHeader(types)
	}

	n := opts.limit(len(ds.Rows))
	for _, r := range ds.Rows[:n] {
		row := make(table.Row, len(ds.Fields))
		for i, f := range ds.Fields {
			row[i] = formatValue(r[f.Key])
		}
		t.AppendRow(row)
	}

	return t
}

func footer(ds schema.TabularDataset, opts Options) string {
	shown := opts.limit(len(ds.Rows))
	if shown < len(ds.Rows) {
		return fmt.Sprintf("showing %d of %d rows", shown, len(ds.Rows))
	}
	return fmt.Sprintf("(%s)", plural(len(ds.Rows), "row"))
}

func formatValue(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case string:
		return val
	default:
		return fmt.Sprintf("%v", val)
	}
}

func plural(n int, noun string) string {
	if n == 1 {
		return "1 " + noun
	}
	return strconv.Itoa(n) + " " + noun + "s"
}
