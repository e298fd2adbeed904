package parsers

import (
	"errors"
	"fmt"
	"log/slog"
	"mime"
	"net/url"
	"path"
	"sort"
	"strings"
	"sync"

	"github.com/sevigo/gwdata/schema"
)

// ErrParserNotFound is returned when no parser matches
var ErrParserNotFound = errors.New("row parser not found")

// genericContentTypes say nothing about the payload format.
var genericContentTypes = map[string]bool{
	"":                         true,
	"text/plain":               true,
	"application/octet-stream": true,
	"binary/octet-stream":      true,
}

// registry implements the ParserRegistry interface
type registry struct {
	parsers      map[string]schema.RowParser // format name to parser
	extensions   map[string]schema.RowParser // file extension to parser
	contentTypes map[string]schema.RowParser // media type to parser
	logger       *slog.Logger
	mu           sync.RWMutex
}

// NewRegistry creates a new, empty parser registry
func NewRegistry(logger *slog.Logger) ParserRegistry {
	if logger == nil {
		logger = slog.Default()
	}
	return &registry{
		parsers:      make(map[string]schema.RowParser),
		extensions:   make(map[string]schema.RowParser),
		contentTypes: make(map[string]schema.RowParser),
		logger:       logger,
	}
}

// RegisterParser adds a row parser to the registry
func (r *registry) RegisterParser(parser schema.RowParser) error {
	if parser == nil {
		return errors.New("cannot register nil parser")
	}

	name := parser.Name()
	if name == "" {
		return errors.New("parser must have a non-empty name")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.parsers[name]; exists {
		return fmt.Errorf("parser with name %q already registered", name)
	}

	r.parsers[name] = parser

	for _, ext := range parser.Extensions() {
		if ext == "" {
			continue
		}
		if ext[0] != '.' {
			ext = "." + ext
		}
		r.extensions[strings.ToLower(ext)] = parser
	}

	for _, ct := range parser.ContentTypes() {
		r.contentTypes[strings.ToLower(ct)] = parser
	}

	r.logger.Debug("Registered row parser", "format", name, "extensions", parser.Extensions())
	return nil
}

// GetParser retrieves a parser by format name
func (r *registry) GetParser(name string) (schema.RowParser, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	parser, ok := r.parsers[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrParserNotFound, name)
	}
	return parser, nil
}

// GetParserForExtension returns a parser for a file extension
func (r *registry) GetParserForExtension(ext string) (schema.RowParser, error) {
	if ext == "" {
		return nil, fmt.Errorf("%w: empty extension", ErrParserNotFound)
	}

	if ext[0] != '.' {
		ext = "." + ext
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	parser, ok := r.extensions[strings.ToLower(ext)]
	if !ok {
		return nil, fmt.Errorf("%w for extension %s", ErrParserNotFound, ext)
	}
	return parser, nil
}

// GetParserForContentType returns a parser for a Content-Type header value
func (r *registry) GetParserForContentType(contentType string) (schema.RowParser, error) {
	mediaType := mediaTypeOf(contentType)
	if genericContentTypes[mediaType] {
		return nil, fmt.Errorf("%w for generic content type %q", ErrParserNotFound, contentType)
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	parser, ok := r.contentTypes[mediaType]
	if !ok {
		return nil, fmt.Errorf("%w for content type %s", ErrParserNotFound, mediaType)
	}
	return parser, nil
}

// ParserFor picks a parser for a remote resource: by content type, then by the
// extension of the URL path, then the fallback format.
func (r *registry) ParserFor(resource string, contentType string) (schema.RowParser, error) {
	if parser, err := r.GetParserForContentType(contentType); err == nil {
		return parser, nil
	}

	if ext := path.Ext(resourcePath(resource)); ext != "" {
		if parser, err := r.GetParserForExtension(ext); err == nil {
			return parser, nil
		}
	}

	parser, err := r.GetParser(FallbackParser)
	if err != nil {
		return nil, fmt.Errorf("%w for %s", ErrParserNotFound, resource)
	}
	return parser, nil
}

// GetAllParsers returns all registered parsers ordered by name
func (r *registry) GetAllParsers() []schema.RowParser {
	r.mu.RLock()
	defer r.mu.RUnlock()

	parsers := make([]schema.RowParser, 0, len(r.parsers))
	for _, parser := range r.parsers {
		parsers = append(parsers, parser)
	}
	sort.Slice(parsers, func(i, j int) bool { return parsers[i].Name() < parsers[j].Name() })

	return parsers
}

func mediaTypeOf(contentType string) string {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		mediaType = strings.TrimSpace(strings.Split(contentType, ";")[0])
	}
	return strings.ToLower(mediaType)
}

// resourcePath returns the path component of a URL, or the input unchanged
// when it does not parse.
func resourcePath(resource string) string {
	u, err := url.Parse(resource)
	if err != nil {
		return resource
	}
	return u.Path
}
