package yaml_test

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/encoding/charmap"

	logger "github.com/sevigo/gwdata/parsers/testing"
	"github.com/sevigo/gwdata/parsers/yaml"
	model "github.com/sevigo/gwdata/schema"
)

func TestYAMLParser(t *testing.T) {
	log, _ := logger.NewTestLogger(t)
	parser := yaml.NewYAMLParser(log)
	ctx := context.Background()

	t.Run("BasicInfo", func(t *testing.T) {
		assert.Equal(t, "yaml", parser.Name())
		assert.Contains(t, parser.Extensions(), ".yaml")
		assert.Contains(t, parser.Extensions(), ".yml")
		assert.True(t, parser.CanHandle("rows.YML", ""))
		assert.True(t, parser.CanHandle("download", "application/yaml; charset=utf-8"))
		assert.False(t, parser.CanHandle("rows.csv", "text/csv"))
	})

	t.Run("SequenceOfMappings", func(t *testing.T) {
		content := `
- region: north
  sales: 10
  day: 2024-01-02
  active: true
- region: south
  sales: 12.5
  day: "2024-01-03"
  active: false
`
		ds, err := parser.Parse(ctx, strings.NewReader(content), model.ParseOptions{})
		require.NoError(t, err)
		require.Len(t, ds.Rows, 2)
		require.Len(t, ds.Fields, 4)

		assert.Equal(t, []string{"region", "sales", "day", "active"}, []string{
			ds.Fields[0].Key, ds.Fields[1].Key, ds.Fields[2].Key, ds.Fields[3].Key,
		})
		assert.Equal(t, model.SemanticNominal, ds.Fields[0].SemanticType)
		assert.Equal(t, model.SemanticQuantitative, ds.Fields[1].SemanticType)
		assert.Equal(t, model.AnalyticMeasure, ds.Fields[1].AnalyticType)
		assert.Equal(t, model.SemanticTemporal, ds.Fields[2].SemanticType)
		assert.Equal(t, model.SemanticNominal, ds.Fields[3].SemanticType)

		assert.Equal(t, 10.0, ds.Rows[0]["sales"])
		assert.Equal(t, 12.5, ds.Rows[1]["sales"])
		assert.Equal(t, "2024-01-02", ds.Rows[0]["day"])
		assert.Equal(t, true, ds.Rows[0]["active"])
	})

	t.Run("MissingKeysAndNulls", func(t *testing.T) {
		content := "- a: 1\n- a: ~\n  b: x\n- b: y\n"
		ds, err := parser.Parse(ctx, strings.NewReader(content), model.ParseOptions{})
		require.NoError(t, err)
		require.Len(t, ds.Rows, 3)
		require.Len(t, ds.Fields, 2)

		assert.Equal(t, model.SemanticQuantitative, ds.Fields[0].SemanticType)
		assert.Nil(t, ds.Rows[1]["a"])
		assert.Nil(t, ds.Rows[2]["a"])
		assert.Nil(t, ds.Rows[0]["b"])
	})

	t.Run("MultipleDocuments", func(t *testing.T) {
		content := "name: first\n---\nname: second\n---\n- name: third\n- name: fourth\n"
		ds, err := parser.Parse(ctx, strings.NewReader(content), model.ParseOptions{})
		require.NoError(t, err)
		require.Len(t, ds.Rows, 4)
		assert.Equal(t, "first", ds.Rows[0]["name"])
		assert.Equal(t, "fourth", ds.Rows[3]["name"])
	})

	t.Run("NestedValuesAreFlattened", func(t *testing.T) {
		content := "- id: 1\n  tags: [a, b]\n  owner: {name: ann}\n"
		ds, err := parser.Parse(ctx, strings.NewReader(content), model.ParseOptions{})
		require.NoError(t, err)
		require.Len(t, ds.Rows, 1)
		assert.Equal(t, `["a","b"]`, ds.Rows[0]["tags"])
		assert.Equal(t, `{"name":"ann"}`, ds.Rows[0]["owner"])
	})

	t.Run("Aliases", func(t *testing.T) {
		content := "- &base\n  region: north\n  sales: 1\n- *base\n"
		ds, err := parser.Parse(ctx, strings.NewReader(content), model.ParseOptions{})
		require.NoError(t, err)
		require.Len(t, ds.Rows, 2)
		assert.Equal(t, "north", ds.Rows[1]["region"])
	})

	t.Run("Encoding", func(t *testing.T) {
		encoded, err := charmap.Windows1252.NewEncoder().String("- city: Köln\n- city: Zürich\n")
		require.NoError(t, err)

		ds, err := parser.Parse(ctx, strings.NewReader(encoded), model.ParseOptions{Encoding: "windows-1252"})
		require.NoError(t, err)
		require.Len(t, ds.Rows, 2)
		assert.Equal(t, "Köln", ds.Rows[0]["city"])
	})

	t.Run("ReservoirSampling", func(t *testing.T) {
		var b strings.Builder
		for i := range 200 {
			b.WriteString("- n: ")
			b.WriteString(strings.Repeat("1", 1+i%3))
			b.WriteString("\n")
		}
		ds, err := parser.Parse(ctx, strings.NewReader(b.String()), model.ParseOptions{
			Sampling: model.SamplingConfig{Mode: model.SamplingReservoir, Size: 25, Seed: 3},
		})
		require.NoError(t, err)
		assert.Len(t, ds.Rows, 25)
	})

	t.Run("EmptyInput", func(t *testing.T) {
		for _, content := range []string{"", "---\n", "[]\n"} {
			ds, err := parser.Parse(ctx, strings.NewReader(content), model.ParseOptions{})
			require.NoError(t, err, content)
			assert.True(t, ds.IsEmpty(), content)
		}
	})

	t.Run("Errors", func(t *testing.T) {
		tests := []struct {
			name    string
			content string
			want    string
		}{
			{"scalar document", "just text\n", "found scalar"},
			{"sequence of scalars", "- 1\n- 2\n", "expected mapping"},
			{"malformed", "- a: [1, 2\n", "failed to parse YAML"},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				_, err := parser.Parse(ctx, strings.NewReader(tt.content), model.ParseOptions{})
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.want)
			})
		}
	})

	t.Run("ContextCancelled", func(t *testing.T) {
		cancelled, cancel := context.WithCancel(ctx)
		cancel()
		_, err := parser.Parse(cancelled, strings.NewReader("- a: 1\n"), model.ParseOptions{})
		require.ErrorIs(t, err, context.Canceled)
	})

	t.Run("UnknownEncoding", func(t *testing.T) {
		_, err := parser.Parse(ctx, strings.NewReader("- a: 1\n"), model.ParseOptions{Encoding: "klingon"})
		require.Error(t, err)
	})
}
