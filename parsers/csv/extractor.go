package csv

import (
	"math"
	"strconv"
	"strings"
	"time"

	model "github.com/sevigo/gwdata/schema"
)

// cellKind is the lexical class of a single cell
type cellKind int

const (
	kindEmpty cellKind = iota
	kindInteger
	kindFloat
	kindBoolean
	kindDate
	kindText
)

var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
	"2006/01/02",
	"01/02/2006",
	"02/01/2006",
	"02.01.2006",
	"Jan 2, 2006",
	"2 Jan 2006",
	"January 2, 2006",
	"2006-01",
}

// buildDataset converts the sampled records into rows keyed by field
func (p *CSVParser) buildDataset(structure *CSVStructure) model.TabularDataset {
	if structure.ColumnCount == 0 {
		return model.TabularDataset{}
	}

	keys, names := p.fieldKeys(structure)

	fields := make([]model.FieldDescriptor, structure.ColumnCount)
	for col := range structure.ColumnCount {
		semantic := p.detectColumnType(structure, col)
		fields[col] = model.FieldDescriptor{
			Key:          keys[col],
			Name:         names[col],
			SemanticType: semantic,
			AnalyticType: model.AnalyticFor(semantic),
		}
	}

	rows := make([]model.Row, 0, len(structure.Records))
	for _, record := range structure.Records {
		row := make(model.Row, structure.ColumnCount)
		for col, field := range fields {
			if col >= len(record) {
				row[field.Key] = nil
				continue
			}
			row[field.Key] = p.convertCell(record[col], field.SemanticType)
		}
		rows = append(rows, row)
	}

	return model.TabularDataset{Rows: rows, Fields: fields}
}

// convertCell turns numeric cells into float64 for quantitative fields
func (p *CSVParser) convertCell(cell string, semantic model.SemanticType) any {
	if semantic != model.SemanticQuantitative {
		return cell
	}
	trimmed := strings.TrimSpace(cell)
	if trimmed == "" {
		return nil
	}
	v, err := strconv.ParseFloat(trimmed, 64)
	if err != nil {
		return cell
	}
	return v
}

// detectColumnType analyzes a column to determine its semantic type.
// A column is quantitative or temporal only if every non-empty cell agrees.
func (p *CSVParser) detectColumnType(structure *CSVStructure, columnIndex int) model.SemanticType {
	counts := make(map[cellKind]int)
	nonEmpty := 0

	for _, row := range structure.Records {
		if columnIndex >= len(row) {
			continue
		}
		kind := p.classify(row[columnIndex])
		if kind == kindEmpty {
			continue
		}
		counts[kind]++
		nonEmpty++
	}

	switch {
	case nonEmpty == 0:
		return model.SemanticNominal
	case counts[kindInteger]+counts[kindFloat] == nonEmpty:
		return model.SemanticQuantitative
	case counts[kindDate] == nonEmpty:
		return model.SemanticTemporal
	default:
		return model.SemanticNominal
	}
}

// classify returns the lexical class of one cell
func (p *CSVParser) classify(value string) cellKind {
	cell := strings.TrimSpace(value)
	switch {
	case cell == "":
		return kindEmpty
	case p.isIntegerValue(cell):
		return kindInteger
	case p.isFloatValue(cell):
		return kindFloat
	case p.isBooleanValue(cell):
		return kindBoolean
	case p.isDateValue(cell):
		return kindDate
	default:
		return kindText
	}
}

func (p *CSVParser) isBooleanValue(value string) bool {
	switch strings.ToLower(value) {
	case "true", "false", "yes", "no", "y", "n", "on", "off":
		return true
	}
	return false
}

func (p *CSVParser) isIntegerValue(value string) bool {
	_, err := strconv.ParseInt(value, 10, 64)
	return err == nil
}

func (p *CSVParser) isFloatValue(value string) bool {
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return false
	}
	// NaN and Inf spellings are words, not measurements.
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

func (p *CSVParser) isDateValue(value string) bool {
	for _, layout := range dateLayouts {
		if _, err := time.Parse(layout, value); err == nil {
			return true
		}
	}
	return false
}

// countEmptyCells counts the number of empty cells in the sampled records
func (p *CSVParser) countEmptyCells(structure *CSVStructure) int {
	emptyCells := 0

	for _, row := range structure.Records {
		for _, cell := range row {
			if strings.TrimSpace(cell) == "" {
				emptyCells++
			}
		}
	}

	return emptyCells
}
