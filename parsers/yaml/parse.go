package yaml

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/sevigo/gwdata/charset"
	"github.com/sevigo/gwdata/sampling"
	model "github.com/sevigo/gwdata/schema"
)

const (
	tagNull      = "!!null"
	tagBool      = "!!bool"
	tagInt       = "!!int"
	tagFloat     = "!!float"
	tagTimestamp = "!!timestamp"
	tagString    = "!!str"
)

// cell is a resolved scalar plus what it looked like in the document
type cell struct {
	value    any
	numeric  bool
	temporal bool
}

type record struct {
	keys   []string
	values map[string]cell
}

var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// Parse reads one or more YAML documents. Each document is either a sequence
// of mappings (one row per mapping) or a single mapping (one row).
func (p *YAMLParser) Parse(ctx context.Context, r io.Reader, opts model.ParseOptions) (model.TabularDataset, error) {
	opts = opts.WithDefaults()

	decoded, err := charset.NewReader(r, opts.Encoding)
	if err != nil {
		return model.TabularDataset{}, err
	}

	reservoir := sampling.FromConfig[record](opts.Sampling)
	dec := yaml.NewDecoder(decoded)

	for doc := 0; ; doc++ {
		if err := ctx.Err(); err != nil {
			return model.TabularDataset{}, err
		}

		var node yaml.Node
		err := dec.Decode(&node)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return model.TabularDataset{}, fmt.Errorf("failed to parse YAML document %d: %w", doc, err)
		}
		if len(node.Content) == 0 {
			continue
		}

		root := resolve(node.Content[0])
		switch root.Kind {
		case yaml.SequenceNode:
			for i, item := range root.Content {
				rec, err := p.readMapping(resolve(item))
				if err != nil {
					return model.TabularDataset{}, fmt.Errorf("failed to parse YAML item %d: %w", i, err)
				}
				reservoir.Add(rec)
			}
		case yaml.MappingNode:
			rec, err := p.readMapping(root)
			if err != nil {
				return model.TabularDataset{}, fmt.Errorf("failed to parse YAML document %d: %w", doc, err)
			}
			reservoir.Add(rec)
		case yaml.ScalarNode:
			if root.ShortTag() == tagNull {
				continue
			}
			return model.TabularDataset{}, fmt.Errorf("failed to parse YAML document %d: expected sequence or mapping, found scalar at line %d", doc, root.Line)
		}
	}

	dataset := p.buildDataset(reservoir.Items())
	p.logger.Debug("YAML parsing completed",
		"source", opts.SourceName,
		"rows", len(dataset.Rows),
		"total_rows", reservoir.Seen(),
		"columns", len(dataset.Fields),
	)
	return dataset, nil
}

// readMapping keeps keys in document order; a repeated key keeps its first
// position and its last value.
func (p *YAMLParser) readMapping(node *yaml.Node) (record, error) {
	if node.Kind != yaml.MappingNode {
		return record{}, fmt.Errorf("expected mapping at line %d", node.Line)
	}

	rec := record{values: make(map[string]cell, len(node.Content)/2)}
	for i := 0; i+1 < len(node.Content); i += 2 {
		key := node.Content[i].Value
		value, err := p.convertNode(resolve(node.Content[i+1]))
		if err != nil {
			return record{}, fmt.Errorf("value for %q: %w", key, err)
		}
		if _, seen := rec.values[key]; !seen {
			rec.keys = append(rec.keys, key)
		}
		rec.values[key] = value
	}
	return rec, nil
}

// convertNode resolves scalars by their tag. Nested collections are flattened
// to their JSON text so every cell stays a scalar.
func (p *YAMLParser) convertNode(node *yaml.Node) (cell, error) {
	if node.Kind != yaml.ScalarNode {
		var nested any
		if err := node.Decode(&nested); err != nil {
			return cell{}, err
		}
		b, err := json.Marshal(nested)
		if err != nil {
			return cell{value: fmt.Sprint(nested)}, nil
		}
		return cell{value: string(b)}, nil
	}

	switch node.ShortTag() {
	case tagNull:
		return cell{}, nil
	case tagBool:
		var b bool
		if err := node.Decode(&b); err != nil {
			return cell{}, err
		}
		return cell{value: b}, nil
	case tagInt, tagFloat:
		var f float64
		if err := node.Decode(&f); err != nil {
			// .inf and .nan decode fine; anything else stays text
			return cell{value: node.Value}, nil
		}
		return cell{value: f, numeric: true}, nil
	case tagTimestamp:
		return cell{value: node.Value, temporal: true}, nil
	case tagString:
		return cell{value: node.Value, temporal: isDate(node.Value)}, nil
	default:
		return cell{value: node.Value}, nil
	}
}

func (p *YAMLParser) buildDataset(records []record) model.TabularDataset {
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
		semantic := detectFieldType(records, key)
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
			row[key] = rec.values[key].value
		}
		rows = append(rows, row)
	}

	return model.TabularDataset{Rows: rows, Fields: fields}
}

func detectFieldType(records []record, key string) model.SemanticType {
	numbers, dates, nonNull := 0, 0, 0
	for _, rec := range records {
		c, ok := rec.values[key]
		if !ok || c.value == nil {
			continue
		}
		nonNull++
		if c.numeric {
			numbers++
		}
		if c.temporal {
			dates++
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

// resolve follows aliases to the anchored node.
func resolve(node *yaml.Node) *yaml.Node {
	for node.Kind == yaml.AliasNode && node.Alias != nil {
		node = node.Alias
	}
	return node
}

func isDate(s string) bool {
	if _, err := strconv.ParseFloat(s, 64); err == nil {
		return false
	}
	for _, layout := range dateLayouts {
		if _, err := time.Parse(layout, s); err == nil {
			return true
		}
	}
	return false
}
