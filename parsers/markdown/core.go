// core.go - Markdown table row parser backed by goldmark
package markdown

import (
	"log/slog"
	"path"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	model "github.com/sevigo/gwdata/schema"
)

const frontMatterSeparator = "---"

// MarkdownParser implements model.RowParser for GitHub flavored markdown
// tables. The first table in the document supplies the rows.
type MarkdownParser struct {
	logger   *slog.Logger
	markdown goldmark.Markdown
}

// NewMarkdownParser creates a new markdown table parser
func NewMarkdownParser(logger *slog.Logger) model.RowParser {
	if logger == nil {
		logger = slog.Default()
	}
	return &MarkdownParser{
		logger:   logger,
		markdown: goldmark.New(goldmark.WithExtensions(extension.Table)),
	}
}

// Name returns "markdown" as the format name
func (p *MarkdownParser) Name() string {
	return "markdown"
}

func (p *MarkdownParser) Extensions() []string {
	return []string{".md", ".markdown"}
}

func (p *MarkdownParser) ContentTypes() []string {
	return []string{"text/markdown", "text/x-markdown"}
}

// CanHandle determines if this parser can process the given resource
func (p *MarkdownParser) CanHandle(resourcePath string, contentType string) bool {
	mediaType := strings.ToLower(strings.TrimSpace(strings.Split(contentType, ";")[0]))
	for _, ct := range p.ContentTypes() {
		if mediaType == ct {
			return true
		}
	}

	ext := strings.ToLower(path.Ext(resourcePath))
	return ext == ".md" || ext == ".markdown"
}
