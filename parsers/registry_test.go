package parsers_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sevigo/gwdata/parsers"
	"github.com/sevigo/gwdata/parsers/csv"
	logger "github.com/sevigo/gwdata/parsers/testing"
)

func TestRegisterRowParsers(t *testing.T) {
	log, _ := logger.NewTestLogger(t)
	registry, err := parsers.RegisterRowParsers(log)
	require.NoError(t, err)

	all := registry.GetAllParsers()
	require.Len(t, all, 4)
	assert.Equal(t, "csv", all[0].Name())
	assert.Equal(t, "json", all[1].Name())
	assert.Equal(t, "markdown", all[2].Name())
	assert.Equal(t, "yaml", all[3].Name())
}

func TestRegistry_RegisterParserErrors(t *testing.T) {
	log, _ := logger.NewTestLogger(t)
	registry := parsers.NewRegistry(log)

	require.Error(t, registry.RegisterParser(nil))
	require.NoError(t, registry.RegisterParser(csv.NewCSVParser(log)))

	err := registry.RegisterParser(csv.NewCSVParser(log))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already registered")
}

func TestRegistry_Lookups(t *testing.T) {
	log, _ := logger.NewTestLogger(t)
	registry, err := parsers.RegisterRowParsers(log)
	require.NoError(t, err)

	p, err := registry.GetParserForExtension("TSV")
	require.NoError(t, err)
	assert.Equal(t, "csv", p.Name())

	p, err = registry.GetParserForContentType("application/json; charset=utf-8")
	require.NoError(t, err)
	assert.Equal(t, "json", p.Name())

	p, err = registry.GetParserForContentType("application/x-yaml")
	require.NoError(t, err)
	assert.Equal(t, "yaml", p.Name())

	_, err = registry.GetParserForContentType("text/plain")
	assert.ErrorIs(t, err, parsers.ErrParserNotFound)

	_, err = registry.GetParser("xlsx")
	assert.ErrorIs(t, err, parsers.ErrParserNotFound)

	_, err = registry.GetParserForExtension("")
	assert.ErrorIs(t, err, parsers.ErrParserNotFound)
}

func TestRegistry_ParserFor(t *testing.T) {
	log, _ := logger.NewTestLogger(t)
	registry, err := parsers.RegisterRowParsers(log)
	require.NoError(t, err)

	tests := []struct {
		name        string
		resource    string
		contentType string
		want        string
	}{
		{"content type wins", "https://example.org/data.csv", "application/json", "json"},
		{"extension from url path", "https://example.org/export/data.json?token=abc", "application/octet-stream", "json"},
		{"ndjson extension", "https://example.org/rows.ndjson", "", "json"},
		{"csv content type", "https://example.org/download?id=3", "text/csv", "csv"},
		{"fallback", "https://example.org/download?id=3", "text/plain", "csv"},
		{"unknown extension", "https://example.org/data.xlsx", "", "csv"},
		{"yaml extension", "https://example.org/rows.yml", "application/octet-stream", "yaml"},
		{"markdown content type", "https://example.org/report", "text/markdown", "markdown"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := registry.ParserFor(tt.resource, tt.contentType)
			require.NoError(t, err)
			assert.Equal(t, tt.want, p.Name())
		})
	}
}

func TestRegistry_ParserForWithoutFallback(t *testing.T) {
	log, _ := logger.NewTestLogger(t)
	registry := parsers.NewRegistry(log)

	_, err := registry.ParserFor("https://example.org/x", "")
	assert.ErrorIs(t, err, parsers.ErrParserNotFound)
}
