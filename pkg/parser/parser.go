// Package parser reconstructs a FHIR object graph from JSON that uses the
// primitive + sidecar extension convention.
//
// Any primitive field "x" may carry a sibling "_x" holding the element id and
// extensions of that value; for arrays "_x" is a parallel array aligned by
// index. The parser walks a document.Node tree and drives a caller-supplied
// State, which builds the actual output:
//
//	p := parser.New(parser.WithServerBaseURL("http://example.org/fhir"))
//	obj, result, err := p.ParseWithIssues(data, element.NewBuilder(nil))
//	if err != nil {
//	    // fatal: no object graph
//	}
//	for _, iss := range result.Issues {
//	    fmt.Println(iss.Diagnostics)
//	}
//
// Parsing is synchronous and single-threaded. A Parser holds only
// configuration and may be shared between goroutines as long as every call
// gets its own State (and, with WithErrorHandler, a handler that tolerates
// concurrent use).
package parser

import (
	"net/url"
	"strings"

	"github.com/gofhir/parser/pkg/document"
	"github.com/gofhir/parser/pkg/issue"
	"github.com/gofhir/parser/pkg/location"
	"github.com/gofhir/parser/pkg/logger"
)

// Config holds the parser configuration.
type Config struct {
	ServerBaseURL string       // Base for relative extension URLs
	ErrorHandler  ErrorHandler // Receives recoverable diagnostics in Parse
	MaxDepth      int          // Nesting limit, document.DefaultMaxDepth when <= 0
	ResourceType  string       // Expected resource type; empty accepts any
	StrictMode    bool         // ParseWithIssues aborts on the first diagnostic
	Logger        *logger.Logger
}

// Option is a functional option for configuring the parser.
type Option func(*Config)

// WithServerBaseURL sets the base URL relative extension URLs resolve against.
func WithServerBaseURL(base string) Option {
	return func(c *Config) {
		c.ServerBaseURL = base
	}
}

// WithErrorHandler sets the handler used by Parse and ParseDocument.
func WithErrorHandler(h ErrorHandler) Option {
	return func(c *Config) {
		c.ErrorHandler = h
	}
}

// WithMaxDepth limits document nesting.
func WithMaxDepth(depth int) Option {
	return func(c *Config) {
		c.MaxDepth = depth
	}
}

// WithResourceType requires the document's resourceType to equal resourceType.
func WithResourceType(resourceType string) Option {
	return func(c *Config) {
		c.ResourceType = resourceType
	}
}

// WithStrictMode makes ParseWithIssues treat every diagnostic as fatal.
func WithStrictMode(strict bool) Option {
	return func(c *Config) {
		c.StrictMode = strict
	}
}

// WithLogger sets the logger.
func WithLogger(l *logger.Logger) Option {
	return func(c *Config) {
		c.Logger = l
	}
}

// Parser parses FHIR JSON documents.
type Parser struct {
	config Config
}

// New creates a Parser with the given options.
func New(opts ...Option) *Parser {
	config := Config{
		MaxDepth: document.DefaultMaxDepth,
	}
	for _, opt := range opts {
		opt(&config)
	}
	if config.MaxDepth <= 0 {
		config.MaxDepth = document.DefaultMaxDepth
	}
	if config.Logger == nil {
		config.Logger = logger.Default()
	}
	return &Parser{config: config}
}

// Config returns a copy of the parser configuration.
func (p *Parser) Config() Config {
	return p.config
}

// Parse decodes data and parses it into state, reporting recoverable
// diagnostics to the configured ErrorHandler. Without one, diagnostics are
// only logged.
func (p *Parser) Parse(data []byte, state State) (any, error) {
	root, err := document.Parse(data, document.WithMaxDepth(p.config.MaxDepth))
	if err != nil {
		return nil, wrapDocumentError(err, p.config.MaxDepth)
	}
	return p.ParseDocument(root, state)
}

// ParseDocument parses an already decoded document into state.
func (p *Parser) ParseDocument(root document.Node, state State) (any, error) {
	handler := p.config.ErrorHandler
	if handler == nil {
		handler = NewLenientErrorHandler(nil).WithLogger(p.config.Logger)
	}
	return p.parse(root, state, handler)
}

// ParseWithIssues parses data into state and collects every diagnostic into
// a fresh issue.Result. On a fatal error the result also holds a fatal
// issue describing it, and the returned object is nil. Issues whose
// expression resolves in data carry its line and column.
func (p *Parser) ParseWithIssues(data []byte, state State) (any, *issue.Result, error) {
	result := issue.NewResult()

	root, err := document.Parse(data, document.WithMaxDepth(p.config.MaxDepth))
	if err != nil {
		err = wrapDocumentError(err, p.config.MaxDepth)
		result.AddIssue(AsIssue(err))
		return nil, result, err
	}

	var handler ErrorHandler = NewLenientErrorHandler(result).WithLogger(p.config.Logger)
	if p.config.StrictMode {
		handler = StrictErrorHandler{}
	}

	obj, err := p.parse(root, state, handler)
	if err != nil {
		result.AddIssue(AsIssue(err))
		location.Enrich(data, result)
		return nil, result, err
	}
	location.Enrich(data, result)
	return obj, result, nil
}

func (p *Parser) parse(root document.Node, state State, handler ErrorHandler) (any, error) {
	obj, ok := root.(*document.Object)
	if !ok {
		return nil, newFormatError(issue.DiagNotAnObject, map[string]any{"found": document.TypeName(root)}, "")
	}

	rt, _ := obj.Get("resourceType")
	if !document.IsStringScalar(rt) || strings.TrimSpace(rt.(*document.Scalar).String()) == "" {
		return nil, newFormatError(issue.DiagNoResourceType, nil, "")
	}
	resourceType := rt.(*document.Scalar).String()
	if p.config.ResourceType != "" && p.config.ResourceType != resourceType {
		return nil, newFormatError(issue.DiagIncorrectResourceType, map[string]any{
			"expected": p.config.ResourceType,
			"found":    resourceType,
		}, "")
	}

	w := newWalker(p, state, handler)
	if err := w.parseResource(resourceType, obj); err != nil {
		p.config.Logger.Debug("parse of %s aborted: %v", resourceType, err)
		return nil, err
	}
	return state.Finish()
}

// ResolveExtensionURL resolves a relative extension URL against base using
// RFC 3986 reference resolution. base is treated as a directory, so
// "StructureDefinition/x" against "http://example.org/fhir" becomes
// "http://example.org/fhir/StructureDefinition/x". Absolute URLs (any scheme,
// including urn:), blank inputs and unparseable URLs are returned unchanged.
func ResolveExtensionURL(extensionURL, base string) string {
	if strings.TrimSpace(extensionURL) == "" || strings.TrimSpace(base) == "" {
		return extensionURL
	}
	ref, err := url.Parse(extensionURL)
	if err != nil || ref.IsAbs() {
		return extensionURL
	}
	if !strings.HasSuffix(base, "/") {
		base += "/"
	}
	baseURL, err := url.Parse(base)
	if err != nil {
		return extensionURL
	}
	return baseURL.ResolveReference(ref).String()
}
