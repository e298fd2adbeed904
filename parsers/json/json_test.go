package json_test

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	jsonparser "github.com/sevigo/gwdata/parsers/json"
	logger "github.com/sevigo/gwdata/parsers/testing"
	model "github.com/sevigo/gwdata/schema"
)

func TestJSONParser(t *testing.T) {
	log, _ := logger.NewTestLogger(t)
	parser := jsonparser.NewJSONParser(log)
	ctx := context.Background()

	t.Run("BasicInfo", func(t *testing.T) {
		assert.Equal(t, "json", parser.Name())
		assert.Contains(t, parser.Extensions(), ".json")
		assert.True(t, parser.CanHandle("rows.ndjson", ""))
		assert.True(t, parser.CanHandle("download", "application/json; charset=utf-8"))
		assert.False(t, parser.CanHandle("rows.csv", "text/csv"))
	})

	t.Run("ArrayOfObjects", func(t *testing.T) {
		content := `[
  {"region": "north", "sales": 10, "day": "2024-01-02", "active": true},
  {"region": "south", "sales": 12.5, "day": "2024-01-03", "active": false}
]`
		ds, err := parser.Parse(ctx, strings.NewReader(content), model.ParseOptions{})
		require.NoError(t, err)
		require.Len(t, ds.Rows, 2)
		require.Len(t, ds.Fields, 4)

		assert.Equal(t, "region", ds.Fields[0].Key)
		assert.Equal(t, "sales", ds.Fields[1].Key)
		assert.Equal(t, "day", ds.Fields[2].Key)
		assert.Equal(t, "active", ds.Fields[3].Key)

		assert.Equal(t, model.SemanticNominal, ds.Fields[0].SemanticType)
		assert.Equal(t, model.SemanticQuantitative, ds.Fields[1].SemanticType)
		assert.Equal(t, model.AnalyticMeasure, ds.Fields[1].AnalyticType)
		assert.Equal(t, model.SemanticTemporal, ds.Fields[2].SemanticType)
		assert.Equal(t, model.SemanticNominal, ds.Fields[3].SemanticType)

		assert.Equal(t, 12.5, ds.Rows[1]["sales"])
		assert.Equal(t, true, ds.Rows[0]["active"])
	})

	t.Run("NewlineDelimited", func(t *testing.T) {
		content := "{\"a\": 1}\n{\"a\": 2, \"b\": \"x\"}\n{\"b\": \"y\"}\n"
		ds, err := parser.Parse(ctx, strings.NewReader(content), model.ParseOptions{})
		require.NoError(t, err)
		require.Len(t, ds.Rows, 3)
		require.Len(t, ds.Fields, 2)

		assert.Nil(t, ds.Rows[0]["b"])
		assert.Nil(t, ds.Rows[2]["a"])
		assert.Equal(t, model.SemanticQuantitative, ds.Fields[0].SemanticType)
	})

	t.Run("NestedValuesBecomeText", func(t *testing.T) {
		ds, err := parser.Parse(ctx, strings.NewReader(`[{"tags": ["a","b"], "meta": {"k": 1}}]`), model.ParseOptions{})
		require.NoError(t, err)
		assert.Equal(t, `["a","b"]`, ds.Rows[0]["tags"])
		assert.Equal(t, `{"k":1}`, ds.Rows[0]["meta"])
	})

	t.Run("Empty", func(t *testing.T) {
		for _, content := range []string{"", "   \n", "[]"} {
			ds, err := parser.Parse(ctx, strings.NewReader(content), model.ParseOptions{})
			require.NoError(t, err)
			assert.True(t, ds.IsEmpty())
		}
	})

	t.Run("Invalid", func(t *testing.T) {
		for _, content := range []string{`[1, 2]`, `"text"`, `[{"a": }]`, `{"a": 1`} {
			_, err := parser.Parse(ctx, strings.NewReader(content), model.ParseOptions{})
			assert.Error(t, err, "content %q", content)
		}
	})

	t.Run("Reservoir", func(t *testing.T) {
		var b strings.Builder
		for i := range 200 {
			b.WriteString(`{"i": `)
			b.WriteString(strings.Repeat("1", 1+i%3))
			b.WriteString("}\n")
		}
		opts := model.ParseOptions{Sampling: model.SamplingConfig{Mode: model.SamplingReservoir, Size: 20, Seed: 1}}
		ds, err := parser.Parse(ctx, strings.NewReader(b.String()), opts)
		require.NoError(t, err)
		assert.Len(t, ds.Rows, 20)
	})
}
