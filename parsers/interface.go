package parsers

import (
	"fmt"
	"log/slog"

	"github.com/sevigo/gwdata/parsers/csv"
	"github.com/sevigo/gwdata/parsers/json"
	"github.com/sevigo/gwdata/parsers/markdown"
	"github.com/sevigo/gwdata/parsers/yaml"
	"github.com/sevigo/gwdata/schema"
)

// ParserRegistry tracks registered row parsers
type ParserRegistry interface {
	RegisterParser(parser schema.RowParser) error
	GetParser(name string) (schema.RowParser, error)
	GetParserForExtension(ext string) (schema.RowParser, error)
	GetParserForContentType(contentType string) (schema.RowParser, error)
	ParserFor(resource string, contentType string) (schema.RowParser, error)
	GetAllParsers() []schema.RowParser
}

// FallbackParser is used when neither content type nor extension identify a
// resource; remote files are delimited text unless they say otherwise.
const FallbackParser = "csv"

// RegisterRowParsers initializes and populates a parser registry
func RegisterRowParsers(logger *slog.Logger) (ParserRegistry, error) {
	if logger == nil {
		logger = slog.Default()
	}
	registry := NewRegistry(logger)

	parserFactories := []struct {
		name    string
		factory func(*slog.Logger) schema.RowParser
	}{
		{"csv", csv.NewCSVParser},
		{"json", json.NewJSONParser},
		{"yaml", yaml.NewYAMLParser},
		{"markdown", markdown.NewMarkdownParser},
	}

	for _, pf := range parserFactories {
		parser := pf.factory(logger.With("parser", pf.name))
		if err := registry.RegisterParser(parser); err != nil {
			return registry, fmt.Errorf("failed to register parser %s: %w", pf.name, err)
		}
	}

	logger.Debug("Row parsers registered", "count", len(registry.GetAllParsers()))
	return registry, nil
}
