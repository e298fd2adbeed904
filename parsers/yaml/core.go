package yaml

import (
	"log/slog"
	"path"
	"strings"

	model "github.com/sevigo/gwdata/schema"
)

// YAMLParser implements model.RowParser for YAML sequences of mappings
type YAMLParser struct {
	logger *slog.Logger
}

// NewYAMLParser creates a new YAML row parser
func NewYAMLParser(logger *slog.Logger) model.RowParser {
	if logger == nil {
		logger = slog.Default()
	}
	return &YAMLParser{
		logger: logger,
	}
}

// Name returns "yaml" as the format name
func (p *YAMLParser) Name() string {
	return "yaml"
}

// Extensions returns file extensions for YAML
func (p *YAMLParser) Extensions() []string {
	return []string{".yaml", ".yml"}
}

func (p *YAMLParser) ContentTypes() []string {
	return []string{"application/yaml", "application/x-yaml", "text/yaml", "text/x-yaml"}
}

// CanHandle determines if this parser can process the given resource
func (p *YAMLParser) CanHandle(resourcePath string, contentType string) bool {
	mediaType := strings.ToLower(strings.TrimSpace(strings.Split(contentType, ";")[0]))
	for _, ct := range p.ContentTypes() {
		if mediaType == ct {
			return true
		}
	}

	ext := strings.ToLower(path.Ext(resourcePath))
	return ext == ".yaml" || ext == ".yml"
}
