package json

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/sevigo/gwdata/charset"
	"github.com/sevigo/gwdata/sampling"
	model "github.com/sevigo/gwdata/schema"
)

// record is one JSON object with its keys in document order
type record struct {
	keys   []string
	values map[string]any
}

var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// Parse reads either a top-level array of objects or a stream of objects.
func (p *JSONParser) Parse(ctx context.Context, r io.Reader, opts model.ParseOptions) (model.TabularDataset, error) {
	opts = opts.WithDefaults()

	decoded, err := charset.NewReader(r, opts.Encoding)
	if err != nil {
		return model.TabularDataset{}, err
	}

	br := bufio.NewReader(decoded)
	first, err := peekNonSpace(br)
	if errors.Is(err, io.EOF) {
		return model.TabularDataset{}, nil
	}
	if err != nil {
		return model.TabularDataset{}, fmt.Errorf("failed to read JSON: %w", err)
	}

	dec := json.NewDecoder(br)
	dec.UseNumber()

	reservoir := sampling.FromConfig[record](opts.Sampling)

	switch first {
	case '[':
		if _, err := dec.Token(); err != nil {
			return model.TabularDataset{}, fmt.Errorf("failed to parse JSON: %w", err)
		}
		for dec.More() {
			if err := ctx.Err(); err != nil {
				return model.TabularDataset{}, err
			}
			rec, err := readObject(dec)
			if err != nil {
				return model.TabularDataset{}, err
			}
			reservoir.Add(rec)
		}
	case '{':
		for {
			if err := ctx.Err(); err != nil {
				return model.TabularDataset{}, err
			}
			rec, err := readObject(dec)
			if errors.Is(err, io.EOF) {
				break
			}
			if err != nil {
				return model.TabularDataset{}, err
			}
			reservoir.Add(rec)
		}
	default:
		return model.TabularDataset{}, fmt.Errorf("failed to parse JSON: expected array or object, found %q", first)
	}

	dataset := p.buildDataset(reservoir.Items())
	p.logger.Debug("JSON parsing completed",
		"source", opts.SourceName,
		"rows", len(dataset.Rows),
		"total_rows", reservoir.Seen(),
		"columns", len(dataset.Fields),
	)
	return dataset, nil
}

// readObject decodes the next object token by token to keep key order.
func readObject(dec *json.Decoder) (record, error) {
	tok, err := dec.Token()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return record{}, io.EOF
		}
		return record{}, fmt.Errorf("failed to parse JSON: %w", err)
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return record{}, fmt.Errorf("failed to parse JSON: expected object, found %v", tok)
	}

	rec := record{values: make(map[string]any)}
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return record{}, fmt.Errorf("failed to parse JSON: %w", unexpectedEOF(err))
		}
		key, ok := keyTok.(string)
		if !ok {
			return record{}, fmt.Errorf("failed to parse JSON: expected key, found %v", keyTok)
		}

		var value any
		if err := dec.Decode(&value); err != nil {
			return record{}, fmt.Errorf("failed to parse JSON value for %q: %w", key, unexpectedEOF(err))
		}
		if _, seen := rec.values[key]; !seen {
			rec.keys = append(rec.keys, key)
		}
		rec.values[key] = value
	}

	if _, err := dec.Token(); err != nil {
		return record{}, fmt.Errorf("failed to parse JSON: %w", unexpectedEOF(err))
	}
	return rec, nil
}

// buildDataset orders fields by first appearance and infers their types
func (p *JSONParser) buildDataset(records []record) model.TabularDataset {
	var keys []string
	seen := make(map[string]bool)
	for _, rec := range records {
		for _, k := range rec.keys {
			if !seen[k] {
				seen[k] = true
				keys = append(keys, k)
			}
		}
	}
	if len(keys) == 0 {
		return model.TabularDataset{}
	}

	fields := make([]model.FieldDescriptor, len(keys))
	for i, key := range keys {
		semantic := p.detectFieldType(records, key)
		fields[i] = model.FieldDescriptor{
			Key:          key,
			Name:         key,
			SemanticType: semantic,
			AnalyticType: model.AnalyticFor(semantic),
		}
	}

	rows := make([]model.Row, 0, len(records))
	for _, rec := range records {
		row := make(model.Row, len(keys))
		for _, key := range keys {
			row[key] = convertValue(rec.values[key])
		}
		rows = append(rows, row)
	}

	return model.TabularDataset{Rows: rows, Fields: fields}
}

// detectFieldType: numbers are quantitative, date strings temporal, the rest nominal
func (p *JSONParser) detectFieldType(records []record, key string) model.SemanticType {
	numbers, dates, nonNull := 0, 0, 0
	for _, rec := range records {
		v, ok := rec.values[key]
		if !ok || v == nil {
			continue
		}
		nonNull++
		switch tv := v.(type) {
		case json.Number:
			numbers++
		case string:
			if isDate(tv) {
				dates++
			}
		}
	}

	switch {
	case nonNull == 0:
		return model.SemanticNominal
	case numbers == nonNull:
		return model.SemanticQuantitative
	case dates == nonNull:
		return model.SemanticTemporal
	default:
		return model.SemanticNominal
	}
}

func convertValue(v any) any {
	switch tv := v.(type) {
	case json.Number:
		if f, err := tv.Float64(); err == nil {
			return f
		}
		return tv.String()
	case map[string]any, []any:
		b, err := json.Marshal(tv)
		if err != nil {
			return fmt.Sprint(tv)
		}
		return string(b)
	default:
		return tv
	}
}

func isDate(s string) bool {
	for _, layout := range dateLayouts {
		if _, err := time.Parse(layout, s); err == nil {
			return true
		}
	}
	return false
}

// unexpectedEOF keeps a truncated object from reading as the end of the stream.
func unexpectedEOF(err error) error {
	if errors.Is(err, io.EOF) {
		return io.ErrUnexpectedEOF
	}
	return err
}

func peekNonSpace(br *bufio.Reader) (byte, error) {
	for {
		b, err := br.ReadByte()
		if err != nil {
			return 0, err
		}
		switch b {
		case ' ', '\t', '\r', '\n':
			continue
		}
		return b, br.UnreadByte()
	}
}
