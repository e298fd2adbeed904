package csv

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/sevigo/gwdata/charset"
	"github.com/sevigo/gwdata/sampling"
	model "github.com/sevigo/gwdata/schema"
)

// CSVStructure represents the analyzed structure of a CSV payload
type CSVStructure struct {
	Headers     []string
	Records     [][]string
	Delimiter   rune
	HasHeaders  bool
	RowCount    int
	ColumnCount int
	TotalRows   int
}

// ctxCheckInterval is how many records are read between context checks.
const ctxCheckInterval = 1024

// Parse decodes r with the requested encoding and extracts every row (or a
// reservoir sample of them) together with the inferred field schema.
func (p *CSVParser) Parse(ctx context.Context, r io.Reader, opts model.ParseOptions) (model.TabularDataset, error) {
	opts = opts.WithDefaults()

	decoded, err := charset.NewReader(r, opts.Encoding)
	if err != nil {
		return model.TabularDataset{}, err
	}
	raw, err := io.ReadAll(decoded)
	if err != nil {
		return model.TabularDataset{}, fmt.Errorf("failed to decode payload as %s: %w", opts.Encoding, err)
	}
	content := string(raw)

	if strings.TrimSpace(content) == "" {
		p.logger.Debug("CSV payload is empty", "source", opts.SourceName)
		return model.TabularDataset{}, nil
	}

	structure, err := p.parseCSVStructure(ctx, content, opts)
	if err != nil {
		return model.TabularDataset{}, err
	}

	dataset := p.buildDataset(structure)

	p.logger.Debug("CSV parsing completed",
		"source", opts.SourceName,
		"rows", structure.RowCount,
		"total_rows", structure.TotalRows,
		"columns", structure.ColumnCount,
		"has_headers", structure.HasHeaders,
		"delimiter_name", delimiterName(structure.Delimiter),
		"empty_cells", p.countEmptyCells(structure),
	)
	return dataset, nil
}

// parseCSVStructure reads all records, separating the header row and sampling the rest
func (p *CSVParser) parseCSVStructure(ctx context.Context, content string, opts model.ParseOptions) (*CSVStructure, error) {
	delimiter := opts.Delimiter
	if delimiter == 0 {
		delimiter = p.detectDelimiter(content, opts.SourceName)
	}

	reader := csv.NewReader(strings.NewReader(content))
	reader.Comma = delimiter
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	// The first two records are needed up front to decide on headers.
	var head [][]string
	for len(head) < 2 {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to parse CSV: %w", err)
		}
		head = append(head, record)
	}

	if len(head) == 0 {
		return &CSVStructure{Delimiter: delimiter}, nil
	}

	structure := &CSVStructure{Delimiter: delimiter}
	switch opts.Header {
	case model.HeaderAbsent:
		structure.HasHeaders = false
	case model.HeaderAuto:
		structure.HasHeaders = p.detectHeaders(head)
	default:
		structure.HasHeaders = true
	}

	if structure.HasHeaders {
		structure.Headers = head[0]
		head = head[1:]
	}

	reservoir := sampling.FromConfig[[]string](opts.Sampling)
	for _, record := range head {
		reservoir.Add(record)
	}

	for n := 0; ; n++ {
		if n%ctxCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to parse CSV: %w", err)
		}
		reservoir.Add(record)
	}

	structure.Records = reservoir.Items()
	structure.RowCount = len(structure.Records)
	structure.TotalRows = reservoir.Seen()

	structure.ColumnCount = len(structure.Headers)
	for _, record := range structure.Records {
		if len(record) > structure.ColumnCount {
			structure.ColumnCount = len(record)
		}
	}

	return structure, nil
}

// detectDelimiter attempts to detect the CSV delimiter
func (p *CSVParser) detectDelimiter(content string, sourceName string) rune {
	if strings.HasSuffix(strings.ToLower(sourceName), ".tsv") {
		return '\t'
	}

	// Count occurrences of common delimiters in first few lines
	lines := strings.SplitN(content, "\n", 4)
	sampleLines := 3
	if len(lines) < sampleLines {
		sampleLines = len(lines)
	}

	sample := strings.Join(lines[:sampleLines], "\n")

	// Ordered so that ties resolve to the most common delimiter.
	candidates := []rune{',', ';', '\t', '|'}

	maxCount := 0
	bestDelimiter := ','

	for _, delim := range candidates {
		if count := strings.Count(sample, string(delim)); count > maxCount {
			maxCount = count
			bestDelimiter = delim
		}
	}

	return bestDelimiter
}

// detectHeaders determines if the first row contains headers
func (p *CSVParser) detectHeaders(records [][]string) bool {
	if len(records) < 2 {
		return true // Assume single row is headers
	}

	firstRow := records[0]
	secondRow := records[1]

	if len(firstRow) != len(secondRow) {
		return false
	}

	headerScore := 0
	for i, cell := range firstRow {
		if p.looksLikeText(cell) {
			headerScore++
		}

		if cell != secondRow[i] {
			headerScore++
		}

		if len(cell) < 30 {
			headerScore++
		}
	}

	// If more than half the criteria suggest headers, assume they exist
	return headerScore > len(firstRow)
}

// looksLikeText determines if a cell value looks like text rather than a number
func (p *CSVParser) looksLikeText(value string) bool {
	value = strings.TrimSpace(value)
	if value == "" {
		return false
	}

	_, err := strconv.ParseFloat(value, 64)
	return err != nil
}

// fieldKeys turns the header row into unique, non-empty field keys
func (p *CSVParser) fieldKeys(structure *CSVStructure) (keys []string, names []string) {
	keys = make([]string, structure.ColumnCount)
	names = make([]string, structure.ColumnCount)
	used := make(map[string]int, structure.ColumnCount)

	for i := range structure.ColumnCount {
		name := ""
		if i < len(structure.Headers) {
			name = strings.TrimSpace(structure.Headers[i])
		}
		if name == "" {
			name = "col_" + strconv.Itoa(i+1)
		}

		key := name
		if n := used[name]; n > 0 {
			key = name + "_" + strconv.Itoa(n+1)
		}
		used[name]++

		keys[i] = key
		names[i] = name
	}
	return keys, names
}

func delimiterName(delimiter rune) string {
	switch delimiter {
	case ',':
		return "comma"
	case ';':
		return "semicolon"
	case '\t':
		return "tab"
	case '|':
		return "pipe"
	default:
		return "other"
	}
}
