// Package server is the ngxgen language server. It runs the generator over
// open buffers and publishes its diagnostics, so unsupported declarations
// show up in the editor before go generate runs.
package server

import (
	"fmt"
	"go/scanner"
	"go/token"
	"net/url"
	"path/filepath"
	"strings"
	"sync"
	"unicode"

	"github.com/tliron/commonlog"
	"github.com/tliron/glsp"
	protocol "github.com/tliron/glsp/protocol_3_16"
	glspserver "github.com/tliron/glsp/server"

	"github.com/chazu/ngxgen/diag"
	"github.com/chazu/ngxgen/gen"
	"github.com/chazu/ngxgen/manifest"
	"github.com/chazu/ngxgen/sig"

	_ "github.com/tliron/commonlog/simple"
)

const lspName = "ngxgen-lsp"

var log = commonlog.GetLogger("ngxgen.lsp")

// LspServer runs the generator on every open Go document.
type LspServer struct {
	analyzer

	mu   sync.Mutex
	docs map[string]*document // URI → latest analysis

	handler protocol.Handler
	server  *glspserver.Server
	version string
}

// NewLSP creates a language server configured by m.
func NewLSP(m *manifest.Manifest) (*LspServer, error) {
	a, err := newAnalyzer(m)
	if err != nil {
		return nil, err
	}
	s := &LspServer{
		analyzer: a,
		docs:     make(map[string]*document),
		version:  "0.1.0",
	}

	s.handler = protocol.Handler{
		Initialize:  s.initialize,
		Initialized: s.initialized,
		Shutdown:    s.shutdown,
		SetTrace:    s.setTrace,

		TextDocumentDidOpen:   s.textDocumentDidOpen,
		TextDocumentDidChange: s.textDocumentDidChange,
		TextDocumentDidClose:  s.textDocumentDidClose,

		TextDocumentCompletion: s.textDocumentCompletion,
		TextDocumentHover:      s.textDocumentHover,
		TextDocumentDefinition: s.textDocumentDefinition,
	}

	s.server = glspserver.NewServer(&s.handler, lspName, false)

	return s, nil
}

// Run starts the LSP server on stdio. Blocks until the client disconnects.
func (s *LspServer) Run() error {
	return s.server.RunStdio()
}

// --- LSP lifecycle handlers ---

func (s *LspServer) initialize(ctx *glsp.Context, params *protocol.InitializeParams) (any, error) {
	log.Info("ngxgen LSP initializing")

	capabilities := s.handler.CreateServerCapabilities()

	syncKind := protocol.TextDocumentSyncKindFull
	capabilities.TextDocumentSync = &protocol.TextDocumentSyncOptions{
		OpenClose: boolPtr(true),
		Change:    &syncKind,
	}

	capabilities.CompletionProvider = &protocol.CompletionOptions{
		TriggerCharacters: []string{":", " "},
	}

	capabilities.HoverProvider = true
	capabilities.DefinitionProvider = true

	return protocol.InitializeResult{
		Capabilities: capabilities,
		ServerInfo: &protocol.InitializeResultServerInfo{
			Name:    lspName,
			Version: &s.version,
		},
	}, nil
}

func (s *LspServer) initialized(ctx *glsp.Context, params *protocol.InitializedParams) error {
	return nil
}

func (s *LspServer) shutdown(ctx *glsp.Context) error {
	return nil
}

func (s *LspServer) setTrace(ctx *glsp.Context, params *protocol.SetTraceParams) error {
	return nil
}

// --- Document synchronization ---

func (s *LspServer) textDocumentDidOpen(ctx *glsp.Context, params *protocol.DidOpenTextDocumentParams) error {
	uri := params.TextDocument.URI
	doc := s.update(uri, params.TextDocument.Text)
	s.publishDiagnostics(ctx, uri, doc.diags)
	return nil
}

func (s *LspServer) textDocumentDidChange(ctx *glsp.Context, params *protocol.DidChangeTextDocumentParams) error {
	uri := params.TextDocument.URI

	// With Full sync, the last change event contains the full text
	if len(params.ContentChanges) > 0 {
		last := params.ContentChanges[len(params.ContentChanges)-1]
		if whole, ok := last.(protocol.TextDocumentContentChangeEventWhole); ok {
			doc := s.update(uri, whole.Text)
			s.publishDiagnostics(ctx, uri, doc.diags)
		}
	}
	return nil
}

func (s *LspServer) textDocumentDidClose(ctx *glsp.Context, params *protocol.DidCloseTextDocumentParams) error {
	uri := params.TextDocument.URI

	s.mu.Lock()
	delete(s.docs, string(uri))
	s.mu.Unlock()

	// Clear diagnostics for the closed document
	s.publishDiagnostics(ctx, uri, []protocol.Diagnostic{})
	return nil
}

// update analyzes text and stores the result for uri.
func (s *LspServer) update(uri protocol.DocumentUri, text string) *document {
	doc := s.analyze(uriPath(uri), text)

	s.mu.Lock()
	s.docs[string(uri)] = doc
	s.mu.Unlock()
	return doc
}

func (s *LspServer) lookup(uri protocol.DocumentUri) *document {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.docs[string(uri)]
}

// --- Language features ---

func (s *LspServer) textDocumentCompletion(ctx *glsp.Context, params *protocol.CompletionParams) (any, error) {
	doc := s.lookup(params.TextDocument.URI)
	if doc == nil {
		return nil, nil
	}
	items := directiveCompletions(lineAt(doc.text, params.Position.Line), int(params.Position.Character))
	if len(items) == 0 {
		return nil, nil
	}
	return items, nil
}

func (s *LspServer) textDocumentHover(ctx *glsp.Context, params *protocol.HoverParams) (*protocol.Hover, error) {
	doc := s.lookup(params.TextDocument.URI)
	if doc == nil {
		return nil, nil
	}

	word := extractWord(doc.text, params.Position)
	if word == "" {
		return nil, nil
	}
	return doc.hover(word), nil
}

func (s *LspServer) textDocumentDefinition(ctx *glsp.Context, params *protocol.DefinitionParams) (any, error) {
	doc := s.lookup(params.TextDocument.URI)
	if doc == nil {
		return nil, nil
	}

	word := extractWord(doc.text, params.Position)
	if word == "" {
		return nil, nil
	}
	d := doc.declFor(word)
	if d == nil {
		return nil, nil
	}
	return []protocol.Location{{
		URI:   params.TextDocument.URI,
		Range: pointRange(d.Pos, len(d.Name)),
	}}, nil
}

// declFor finds the declaration named word, or the one that generates the
// symbol or wrapper named word.
func (doc *document) declFor(word string) *sig.Decl {
	for _, d := range doc.decls {
		if d.Name == word || d.Symbol == word {
			return d
		}
		if d.Kind == sig.Callback && (word == "New"+d.Symbol || word == d.Symbol+"Raw") {
			return d
		}
	}
	return nil
}

// hover describes what ngxgen generates for the declaration under word.
func (doc *document) hover(word string) *protocol.Hover {
	d := doc.declFor(word)
	if d == nil || doc.out == nil {
		return nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "**%s** `%s` → `%s`\n\n", d.Kind, d.Name, d.Symbol)

	for _, s := range doc.out.Shims {
		if s.Decl != d {
			continue
		}
		fmt.Fprintf(&b, "```go\n//export %s\n%s\n```\n\n", s.Symbol, s.Declaration())
		writeParams(&b, s.RawParams)
	}
	for _, w := range doc.out.Wrappers {
		if w.Decl != d {
			continue
		}
		fmt.Fprintf(&b, "```c\n%s\n```\n\n", w.CTypedef)
		writeParams(&b, w.Params)
	}

	return &protocol.Hover{
		Contents: protocol.MarkupContent{
			Kind:  protocol.MarkupKindMarkdown,
			Value: b.String(),
		},
	}
}

func writeParams(b *strings.Builder, params []gen.Param) {
	for _, p := range params {
		fmt.Fprintf(b, "- `%s` %s", p.Spec.Name, p.Category)
		if p.Pair.CType != "" {
			fmt.Fprintf(b, " (`%s`)", p.Pair.CType)
		}
		b.WriteString("\n")
	}
}

func (s *LspServer) publishDiagnostics(ctx *glsp.Context, uri protocol.DocumentUri, diagnostics []protocol.Diagnostic) {
	go ctx.Notify(protocol.ServerTextDocumentPublishDiagnostics, protocol.PublishDiagnosticsParams{
		URI:         uri,
		Diagnostics: diagnostics,
	})
}

// toProtocol converts generator and syntax errors to LSP diagnostics.
func toProtocol(err error) []protocol.Diagnostic {
	severity := protocol.DiagnosticSeverityError
	source := lspName
	out := []protocol.Diagnostic{}

	add := func(pos token.Position, width int, code, msg string) {
		d := protocol.Diagnostic{
			Range:    pointRange(pos, width),
			Severity: &severity,
			Source:   &source,
			Message:  msg,
		}
		if code != "" {
			d.Code = &protocol.IntegerOrString{Value: code}
		}
		out = append(out, d)
	}

	switch e := err.(type) {
	case diag.List:
		for _, d := range e {
			add(d.Pos, len(d.Decl), string(d.Kind), d.Detail)
		}
	case *diag.Diagnostic:
		add(e.Pos, len(e.Decl), string(e.Kind), e.Detail)
	case scanner.ErrorList:
		for _, se := range e {
			add(se.Pos, 0, "", se.Msg)
		}
	default:
		add(token.Position{}, 0, "", err.Error())
	}
	return out
}

// pointRange spans width characters from a 1-based token position.
func pointRange(pos token.Position, width int) protocol.Range {
	line, col := 0, 0
	if pos.IsValid() {
		line = pos.Line - 1
		if pos.Column > 0 {
			col = pos.Column - 1
		}
	}
	return protocol.Range{
		Start: protocol.Position{Line: protocol.UInteger(line), Character: protocol.UInteger(col)},
		End:   protocol.Position{Line: protocol.UInteger(line), Character: protocol.UInteger(col + width)},
	}
}

// --- Text extraction helpers ---

var (
	directiveKinds   = []string{"handler", "setter", "callback"}
	directiveOptions = []string{"name=", "log_err="}
)

// directiveCompletions proposes directive kinds after "//ngx:" and options
// after a complete directive word.
func directiveCompletions(line string, col int) []protocol.CompletionItem {
	if col > len(line) {
		col = len(line)
	}
	before := strings.TrimLeft(line[:col], " \t")
	if !strings.HasPrefix(before, sig.DirectivePrefix) {
		return nil
	}
	body := strings.TrimPrefix(before, sig.DirectivePrefix)
	kind := protocol.CompletionItemKindKeyword

	var items []protocol.CompletionItem
	if word, _, found := strings.Cut(body, " "); !found {
		for _, k := range directiveKinds {
			if strings.HasPrefix(k, word) {
				items = append(items, protocol.CompletionItem{Label: k, Kind: &kind})
			}
		}
		return items
	}

	prefix := extractPrefix(line[:col], protocol.Position{Character: protocol.UInteger(col)})
	for _, o := range directiveOptions {
		if strings.HasPrefix(o, prefix) && !strings.Contains(body, " "+o) {
			items = append(items, protocol.CompletionItem{Label: o, Kind: &kind})
		}
	}
	return items
}

func lineAt(text string, line protocol.UInteger) string {
	lines := strings.Split(text, "\n")
	if int(line) >= len(lines) {
		return ""
	}
	return lines[line]
}

func isIdent(ch rune) bool {
	return unicode.IsLetter(ch) || unicode.IsDigit(ch) || ch == '_'
}

// extractPrefix returns the identifier fragment before the cursor.
func extractPrefix(text string, pos protocol.Position) string {
	line := lineAt(text, pos.Line)
	col := int(pos.Character)
	if col > len(line) {
		col = len(line)
	}

	// Walk backwards from cursor to find the start of the identifier
	start := col
	for start > 0 && isIdent(rune(line[start-1])) {
		start--
	}
	return line[start:col]
}

// extractWord returns the full identifier under the cursor.
func extractWord(text string, pos protocol.Position) string {
	line := lineAt(text, pos.Line)
	col := int(pos.Character)
	if col > len(line) {
		col = len(line)
	}

	start := col
	for start > 0 && isIdent(rune(line[start-1])) {
		start--
	}
	end := col
	for end < len(line) && isIdent(rune(line[end])) {
		end++
	}
	return line[start:end]
}

// uriPath turns a file URI into a path for positions; other URIs are kept as is.
func uriPath(uri protocol.DocumentUri) string {
	u, err := url.Parse(string(uri))
	if err != nil || u.Scheme != "file" {
		return string(uri)
	}
	return filepath.FromSlash(u.Path)
}

func boolPtr(b bool) *bool {
	return &b
}
