package csv

import (
	"log/slog"
	"path"
	"strings"

	model "github.com/sevigo/gwdata/schema"
)

// CSVParser implements model.RowParser for delimited text files
type CSVParser struct {
	logger *slog.Logger
}

// NewCSVParser creates a new delimited text row parser
func NewCSVParser(logger *slog.Logger) model.RowParser {
	if logger == nil {
		logger = slog.Default()
	}
	return &CSVParser{
		logger: logger,
	}
}

// Name returns "csv" as the format name
func (p *CSVParser) Name() string {
	return "csv"
}

// Extensions returns file extensions for delimited text
func (p *CSVParser) Extensions() []string {
	return []string{".csv", ".tsv"}
}

// ContentTypes returns the media types served for delimited text
func (p *CSVParser) ContentTypes() []string {
	return []string{"text/csv", "application/csv", "text/tab-separated-values"}
}

// CanHandle determines if this parser can process the given resource
func (p *CSVParser) CanHandle(resourcePath string, contentType string) bool {
	mediaType := strings.ToLower(strings.TrimSpace(strings.Split(contentType, ";")[0]))
	for _, ct := range p.ContentTypes() {
		if mediaType == ct {
			return true
		}
	}

	ext := strings.ToLower(path.Ext(resourcePath))
	return ext == ".csv" || ext == ".tsv"
}
