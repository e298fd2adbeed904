package json

import (
	"log/slog"
	"path"
	"strings"

	model "github.com/sevigo/gwdata/schema"
)

// JSONParser implements model.RowParser for arrays of JSON objects and
// newline-delimited JSON records
type JSONParser struct {
	logger *slog.Logger
}

// NewJSONParser creates a new JSON row parser
func NewJSONParser(logger *slog.Logger) model.RowParser {
	if logger == nil {
		logger = slog.Default()
	}
	return &JSONParser{
		logger: logger,
	}
}

// Name returns "json" as the format name
func (p *JSONParser) Name() string {
	return "json"
}

// Extensions returns file extensions for JSON records
func (p *JSONParser) Extensions() []string {
	return []string{".json", ".ndjson", ".jsonl"}
}

func (p *JSONParser) ContentTypes() []string {
	return []string{"application/json", "application/x-ndjson", "application/jsonl", "text/json"}
}

// CanHandle determines if this parser can process the given resource
func (p *JSONParser) CanHandle(resourcePath string, contentType string) bool {
	mediaType := strings.ToLower(strings.TrimSpace(strings.Split(contentType, ";")[0]))
	for _, ct := range p.ContentTypes() {
		if mediaType == ct {
			return true
		}
	}

	ext := strings.ToLower(path.Ext(resourcePath))
	for _, e := range p.Extensions() {
		if ext == e {
			return true
		}
	}
	return false
}
