package schema

import (
	"fmt"
	"maps"
	"time"
)

// SemanticType is the visual encoding class a field is inferred to carry.
type SemanticType string

const (
	SemanticNominal      SemanticType = "nominal"
	SemanticOrdinal      SemanticType = "ordinal"
	SemanticQuantitative SemanticType = "quantitative"
	SemanticTemporal     SemanticType = "temporal"
)

// AnalyticType splits fields into dimensions (group by) and measures (aggregate).
type AnalyticType string

const (
	AnalyticDimension AnalyticType = "dimension"
	AnalyticMeasure   AnalyticType = "measure"
)

// AnalyticFor returns the analytic role charting components expect for t.
func AnalyticFor(t SemanticType) AnalyticType {
	if t == SemanticQuantitative {
		return AnalyticMeasure
	}
	return AnalyticDimension
}

type FieldDescriptor struct {
	Key          string       `json:"fid"`
	Name         string       `json:"name"`
	SemanticType SemanticType `json:"semanticType"`
	AnalyticType AnalyticType `json:"analyticType"`
}

// Row is a single record keyed by FieldDescriptor.Key.
type Row map[string]any

// TabularDataset is an ordered set of rows plus the schema inferred for them.
type TabularDataset struct {
	Rows   []Row             `json:"dataSource"`
	Fields []FieldDescriptor `json:"fields"`
}

func (d TabularDataset) Len() int {
	return len(d.Rows)
}

// IsEmpty reports whether the dataset has nothing to show: no rows or no fields.
func (d TabularDataset) IsEmpty() bool {
	return len(d.Rows) == 0 || len(d.Fields) == 0
}

// Clone returns a deep copy of the row maps and the field slice.
// Cell values are copied by assignment; parsers only emit scalars.
func (d TabularDataset) Clone() TabularDataset {
	out := TabularDataset{}
	if d.Fields != nil {
		out.Fields = make([]FieldDescriptor, len(d.Fields))
		copy(out.Fields, d.Fields)
	}
	if d.Rows != nil {
		out.Rows = make([]Row, len(d.Rows))
		for i, row := range d.Rows {
			out.Rows[i] = maps.Clone(row)
		}
	}
	return out
}

func (d TabularDataset) String() string {
	return fmt.Sprintf("dataset (%d rows, %d fields)", len(d.Rows), len(d.Fields))
}

// Snapshot is a committed dataset together with the name it was committed under.
type Snapshot struct {
	ID          string         `json:"id"`
	Name        string         `json:"name"`
	Dataset     TabularDataset `json:"dataset"`
	CommittedAt time.Time      `json:"committedAt"`
}

// IsZero reports whether nothing has been committed yet.
func (s Snapshot) IsZero() bool {
	return s.ID == ""
}
