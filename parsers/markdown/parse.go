package markdown

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/yuin/goldmark/ast"
	extast "github.com/yuin/goldmark/extension/ast"
	"github.com/yuin/goldmark/text"

	"github.com/sevigo/gwdata/charset"
	"github.com/sevigo/gwdata/sampling"
	model "github.com/sevigo/gwdata/schema"
)

var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
	"01/02/2006",
}

// Parse extracts the first table. A document without a table yields an
// empty dataset.
func (p *MarkdownParser) Parse(ctx context.Context, r io.Reader, opts model.ParseOptions) (model.TabularDataset, error) {
	opts = opts.WithDefaults()

	decoded, err := charset.NewReader(r, opts.Encoding)
	if err != nil {
		return model.TabularDataset{}, err
	}
	source, err := io.ReadAll(decoded)
	if err != nil {
		return model.TabularDataset{}, fmt.Errorf("failed to read markdown: %w", err)
	}
	source = stripFrontMatter(source)

	doc := p.markdown.Parser().Parse(text.NewReader(source))

	var (
		header []string
		tables int
	)
	reservoir := sampling.FromConfig[[]string](opts.Sampling)

	err = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		if err := ctx.Err(); err != nil {
			return ast.WalkStop, err
		}

		table, ok := n.(*extast.Table)
		if !ok {
			return ast.WalkContinue, nil
		}
		tables++
		if tables > 1 {
			return ast.WalkSkipChildren, nil
		}

		for row := table.FirstChild(); row != nil; row = row.NextSibling() {
			cells := rowCells(row, source)
			switch row.Kind() {
			case extast.KindTableHeader:
				header = cells
			case extast.KindTableRow:
				reservoir.Add(cells)
			}
		}
		return ast.WalkSkipChildren, nil
	})
	if err != nil {
		return model.TabularDataset{}, err
	}

	if tables > 1 {
		p.logger.Debug("Only the first markdown table is used", "source", opts.SourceName, "tables", tables)
	}

	dataset := buildDataset(header, reservoir.Items())
	p.logger.Debug("Markdown parsing completed",
		"source", opts.SourceName,
		"rows", len(dataset.Rows),
		"total_rows", reservoir.Seen(),
		"columns", len(dataset.Fields),
	)
	return dataset, nil
}

func rowCells(row ast.Node, source []byte) []string {
	var cells []string
	for c := row.FirstChild(); c != nil; c = c.NextSibling() {
		if c.Kind() != extast.KindTableCell {
			continue
		}
		var b bytes.Buffer
		writeText(&b, c, source)
		cells = append(cells, strings.TrimSpace(b.String()))
	}
	return cells
}

// writeText collects the plain text below n, dropping emphasis and link markup.
func writeText(b *bytes.Buffer, n ast.Node, source []byte) {
	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		switch t := c.(type) {
		case *ast.Text:
			b.Write(t.Segment.Value(source))
			if t.SoftLineBreak() || t.HardLineBreak() {
				b.WriteByte(' ')
			}
		case *ast.String:
			b.Write(t.Value)
		case *ast.RawHTML:
			// skipped
		default:
			writeText(b, c, source)
		}
	}
}

func buildDataset(header []string, rows [][]string) model.TabularDataset {
	if len(header) == 0 {
		return model.TabularDataset{}
	}

	keys := uniqueKeys(header)
	fields := make([]model.FieldDescriptor, len(keys))
	for i, key := range keys {
		semantic := detectColumnType(rows, i)
		fields[i] = model.FieldDescriptor{
			Key:          key,
			Name:         key,
			SemanticType: semantic,
			AnalyticType: model.AnalyticFor(semantic),
		}
	}

	out := make([]model.Row, 0, len(rows))
	for _, cells := range rows {
		row := make(model.Row, len(keys))
		for i, key := range keys {
			row[key] = convertCell(cellAt(cells, i), fields[i].SemanticType)
		}
		out = append(out, row)
	}
	return model.TabularDataset{Rows: out, Fields: fields}
}

// uniqueKeys names blank headers col_N and suffixes repeats with _2, _3...
func uniqueKeys(header []string) []string {
	keys := make([]string, len(header))
	seen := make(map[string]int, len(header))
	for i, h := range header {
		key := h
		if key == "" {
			key = "col_" + strconv.Itoa(i+1)
		}
		seen[key]++
		if n := seen[key]; n > 1 {
			key = key + "_" + strconv.Itoa(n)
		}
		keys[i] = key
	}
	return keys
}

func detectColumnType(rows [][]string, column int) model.SemanticType {
	numbers, dates, nonEmpty := 0, 0, 0
	for _, cells := range rows {
		v := cellAt(cells, column)
		if v == "" {
			continue
		}
		nonEmpty++
		if _, ok := parseNumber(v); ok {
			numbers++
		} else if isDate(v) {
			dates++
		}
	}

	switch {
	case nonEmpty == 0:
		return model.SemanticNominal
	case numbers == nonEmpty:
		return model.SemanticQuantitative
	case dates == nonEmpty:
		return model.SemanticTemporal
	default:
		return model.SemanticNominal
	}
}

func convertCell(v string, semantic model.SemanticType) any {
	if v == "" {
		return nil
	}
	if semantic == model.SemanticQuantitative {
		if f, ok := parseNumber(v); ok {
			return f
		}
	}
	return v
}

// parseNumber accepts thousands separators, which tables written by hand
// often carry.
func parseNumber(v string) (float64, bool) {
	f, err := strconv.ParseFloat(strings.ReplaceAll(v, ",", ""), 64)
	return f, err == nil
}

func isDate(s string) bool {
	for _, layout := range dateLayouts {
		if _, err := time.Parse(layout, s); err == nil {
			return true
		}
	}
	return false
}

func cellAt(cells []string, i int) string {
	if i < len(cells) {
		return cells[i]
	}
	return ""
}

func stripFrontMatter(source []byte) []byte {
	lines := bytes.SplitAfter(source, []byte("\n"))
	if len(lines) < 2 || string(bytes.TrimSpace(lines[0])) != frontMatterSeparator {
		return source
	}
	offset := len(lines[0])
	for _, line := range lines[1:] {
		offset += len(line)
		if string(bytes.TrimSpace(line)) == frontMatterSeparator {
			return source[offset:]
		}
	}
	return source
}
