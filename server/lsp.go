package server

import (
	"fmt"
	"maps"
	"net/url"
	"path"
	"slices"
	"strings"
	"sync"
	"unicode"

	"github.com/tliron/commonlog"
	"github.com/tliron/glsp"
	protocol "github.com/tliron/glsp/protocol_3_16"
	glspserver "github.com/tliron/glsp/server"

	"github.com/chazu/kiln/compiler"
	"github.com/chazu/kiln/hotload"
	"github.com/chazu/kiln/manifest"
	"github.com/chazu/kiln/vm"
)

const (
	lspName    = "kiln-lsp"
	lspVersion = "0.1.0"

	maxCompletions = 100
)

// LspServer publishes compile diagnostics for open Kiln documents and
// answers completion, hover and definition requests. Every open document
// is compiled together, so documents may refer to each other.
type LspServer struct {
	engine  *hotload.Engine
	log     commonlog.Logger
	docs    documents
	handler protocol.Handler
}

func NewLSP(engine *hotload.Engine) *LspServer {
	s := &LspServer{
		engine: engine,
		log:    commonlog.GetLogger("kiln.lsp"),
		docs:   documents{text: make(map[protocol.DocumentUri]string)},
	}
	s.handler = protocol.Handler{
		Initialize: s.initialize,
		Shutdown: func(*glsp.Context) error {
			protocol.SetTraceValue(protocol.TraceValueOff)
			return nil
		},
		SetTrace: func(_ *glsp.Context, params *protocol.SetTraceParams) error {
			protocol.SetTraceValue(params.Value)
			return nil
		},

		TextDocumentDidOpen:   s.didOpen,
		TextDocumentDidChange: s.didChange,
		TextDocumentDidClose:  s.didClose,

		TextDocumentCompletion: s.completion,
		TextDocumentHover:      s.hoverAt,
		TextDocumentDefinition: s.definitionAt,
	}
	return s
}

// Run serves the protocol on stdio until the client disconnects.
func (s *LspServer) Run() error {
	return glspserver.NewServer(&s.handler, lspName, false).RunStdio()
}

func (s *LspServer) initialize(_ *glsp.Context, _ *protocol.InitializeParams) (any, error) {
	s.log.Info("initializing")
	caps := s.handler.CreateServerCapabilities()
	caps.TextDocumentSync = &protocol.TextDocumentSyncOptions{
		OpenClose: ptr(true),
		Change:    ptr(protocol.TextDocumentSyncKindFull),
	}
	caps.CompletionProvider = &protocol.CompletionOptions{TriggerCharacters: []string{":"}}
	caps.HoverProvider = true
	caps.DefinitionProvider = true
	return protocol.InitializeResult{
		Capabilities: caps,
		ServerInfo:   &protocol.InitializeResultServerInfo{Name: lspName, Version: ptr(lspVersion)},
	}, nil
}

// ---------------------------------------------------------------------------
// Documents
// ---------------------------------------------------------------------------

// documents is the text of every open document.
type documents struct {
	mu   sync.Mutex
	text map[protocol.DocumentUri]string
}

func (d *documents) put(uri protocol.DocumentUri, text string) {
	d.mu.Lock()
	d.text[uri] = text
	d.mu.Unlock()
}

func (d *documents) drop(uri protocol.DocumentUri) {
	d.mu.Lock()
	delete(d.text, uri)
	d.mu.Unlock()
}

func (d *documents) get(uri protocol.DocumentUri) (string, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	text, ok := d.text[uri]
	return text, ok
}

func (d *documents) snapshot() map[protocol.DocumentUri]string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return maps.Clone(d.text)
}

func (s *LspServer) didOpen(ctx *glsp.Context, params *protocol.DidOpenTextDocumentParams) error {
	s.docs.put(params.TextDocument.URI, params.TextDocument.Text)
	s.publish(ctx)
	return nil
}

// didChange takes the last change, which under full sync holds the whole
// text.
func (s *LspServer) didChange(ctx *glsp.Context, params *protocol.DidChangeTextDocumentParams) error {
	if n := len(params.ContentChanges); n > 0 {
		if whole, ok := params.ContentChanges[n-1].(protocol.TextDocumentContentChangeEventWhole); ok {
			s.docs.put(params.TextDocument.URI, whole.Text)
			s.publish(ctx)
		}
	}
	return nil
}

func (s *LspServer) didClose(ctx *glsp.Context, params *protocol.DidCloseTextDocumentParams) error {
	uri := params.TextDocument.URI
	s.docs.drop(uri)
	ctx.Notify(protocol.ServerTextDocumentPublishDiagnostics, protocol.PublishDiagnosticsParams{
		URI:         uri,
		Diagnostics: []protocol.Diagnostic{},
	})
	s.publish(ctx)
	return nil
}

// ---------------------------------------------------------------------------
// Diagnostics
// ---------------------------------------------------------------------------

// unitName names the unit a document holds: the class it declares, or a
// name derived from the file name when the text does not parse.
func unitName(uri protocol.DocumentUri, text string) string {
	if name, ok := compiler.UnitName(text); ok {
		return name
	}
	p := string(uri)
	if u, err := url.Parse(p); err == nil && u.Path != "" {
		p = u.Path
	}
	return manifest.UnitNameForPath("", path.Base(p))
}

// diagnose compiles docs in one round and groups the diagnostics by
// document. Every document gets an entry, empty when it is clean. A
// document declaring a unit an earlier one (by URI) already declares is
// left out of the round.
func (s *LspServer) diagnose(docs map[protocol.DocumentUri]string) map[protocol.DocumentUri][]protocol.Diagnostic {
	out := make(map[protocol.DocumentUri][]protocol.Diagnostic, len(docs))
	sources := make(map[string]string, len(docs))
	owners := make(map[string]protocol.DocumentUri, len(docs))
	for _, uri := range slices.Sorted(maps.Keys(docs)) {
		text := docs[uri]
		out[uri] = []protocol.Diagnostic{}
		name := unitName(uri, text)
		if prev, dup := owners[name]; dup {
			out[uri] = append(out[uri], toDiagnostic(text, hotload.Diagnostic{
				Severity: hotload.SeverityError,
				Unit:     name,
				Line:     1,
				Column:   1,
				Message:  fmt.Sprintf("unit %s is already open in %s", name, prev),
			}))
			continue
		}
		owners[name] = uri
		sources[name] = text
	}
	if len(sources) == 0 {
		return out
	}

	diags, err := s.engine.Check(sources)
	if err != nil {
		s.log.Errorf("check failed: %v", err)
		return out
	}
	for _, d := range diags {
		if uri, ok := owners[d.Unit]; ok {
			out[uri] = append(out[uri], toDiagnostic(docs[uri], d))
		}
	}
	return out
}

// toDiagnostic maps a one-based compiler position to a zero-based range
// covering the word it points at.
func toDiagnostic(text string, d hotload.Diagnostic) protocol.Diagnostic {
	severity := protocol.DiagnosticSeverityError
	if d.Severity == hotload.SeverityWarning {
		severity = protocol.DiagnosticSeverityWarning
	}
	start := protocol.Position{
		Line:      protocol.UInteger(max(d.Line-1, 0)),
		Character: protocol.UInteger(max(d.Column-1, 0)),
	}
	end := start
	end.Character = protocol.UInteger(wordEnd(text, int(start.Line), int(start.Character)))
	return protocol.Diagnostic{
		Range:    protocol.Range{Start: start, End: end},
		Severity: &severity,
		Source:   ptr(lspName),
		Message:  d.Message,
	}
}

func (s *LspServer) publish(ctx *glsp.Context) {
	for uri, diags := range s.diagnose(s.docs.snapshot()) {
		ctx.Notify(protocol.ServerTextDocumentPublishDiagnostics, protocol.PublishDiagnosticsParams{
			URI:         uri,
			Diagnostics: diags,
		})
	}
}

// ---------------------------------------------------------------------------
// Completion, hover and definition
// ---------------------------------------------------------------------------

func (s *LspServer) completion(_ *glsp.Context, params *protocol.CompletionParams) (any, error) {
	text, ok := s.docs.get(params.TextDocument.URI)
	if !ok {
		return nil, nil
	}
	if prefix := extractPrefix(text, params.Position); prefix != "" {
		return s.complete(prefix), nil
	}
	return nil, nil
}

func (s *LspServer) hoverAt(_ *glsp.Context, params *protocol.HoverParams) (*protocol.Hover, error) {
	text, ok := s.docs.get(params.TextDocument.URI)
	if !ok {
		return nil, nil
	}
	return s.hover(extractWord(text, params.Position)), nil
}

func (s *LspServer) definitionAt(_ *glsp.Context, params *protocol.DefinitionParams) (any, error) {
	text, ok := s.docs.get(params.TextDocument.URI)
	if !ok {
		return nil, nil
	}
	word := extractWord(text, params.Position)
	if word == "" {
		return nil, nil
	}
	if locs := s.definition(word); len(locs) > 0 {
		return locs, nil
	}
	return nil, nil
}

// classNames lists every class a document could name: builtins, classes
// the engine has defined and units declared by open documents.
func (s *LspServer) classNames() []string {
	names := slices.Concat(s.engine.Runtime().BuiltinNames(), s.engine.Loader().DefinedNames())
	for uri, text := range s.docs.snapshot() {
		names = append(names, unitName(uri, text))
	}
	slices.Sort(names)
	return slices.Compact(names)
}

// complete offers classes whose simple or qualified name starts with
// prefix, ignoring case.
func (s *LspServer) complete(prefix string) []protocol.CompletionItem {
	prefix = strings.ToLower(prefix)
	var items []protocol.CompletionItem
	for _, name := range s.classNames() {
		simple := name[strings.LastIndexByte(name, '.')+1:]
		if !strings.HasPrefix(strings.ToLower(simple), prefix) && !strings.HasPrefix(strings.ToLower(name), prefix) {
			continue
		}
		items = append(items, protocol.CompletionItem{
			Label:      simple,
			Kind:       ptr(protocol.CompletionItemKindClass),
			Detail:     ptr(name),
			InsertText: ptr(simple),
		})
		if len(items) == maxCompletions {
			break
		}
	}
	return items
}

// lookup finds a defined class by qualified or simple name.
func (s *LspServer) lookup(word string) (*vm.Class, bool) {
	if cls, ok := s.engine.Runtime().Resolve(word); ok {
		return cls, true
	}
	loader := s.engine.Loader()
	for _, name := range loader.DefinedNames() {
		if name == word || strings.HasSuffix(name, "."+word) {
			return loader.Resolve(name)
		}
	}
	return nil, false
}

// hover describes a class: its superclass and selectors on both sides.
// Only capitalized words are looked up.
func (s *LspServer) hover(word string) *protocol.Hover {
	if word == "" || !unicode.IsUpper(rune(word[0])) {
		return nil
	}
	cls, ok := s.lookup(word)
	if !ok {
		return nil
	}
	var b strings.Builder
	fmt.Fprintf(&b, "**%s**", cls.Name)
	if cls.Superclass != nil {
		fmt.Fprintf(&b, " subclass of %s", cls.Superclass.Name)
	}
	for _, side := range []struct {
		label string
		sels  []string
	}{{"class side", cls.ClassSelectors()}, {"instance side", cls.Selectors()}} {
		if len(side.sels) > 0 {
			fmt.Fprintf(&b, "\n\n%s: %s", side.label, strings.Join(side.sels, " "))
		}
	}
	return &protocol.Hover{
		Contents: protocol.MarkupContent{Kind: protocol.MarkupKindMarkdown, Value: b.String()},
	}
}

// definition locates the class names declared by open documents whose
// class or unit is word.
func (s *LspServer) definition(word string) []protocol.Location {
	var locs []protocol.Location
	for uri, text := range s.docs.snapshot() {
		sf, errs := compiler.ParseUnit(text)
		if len(errs) > 0 || sf == nil {
			continue
		}
		unit := unitName(uri, text)
		for _, cls := range sf.Classes {
			if cls.Name == word || unit == word {
				locs = append(locs, protocol.Location{URI: uri, Range: toRange(cls.NameSpan)})
			}
		}
	}
	slices.SortFunc(locs, func(a, b protocol.Location) int { return strings.Compare(string(a.URI), string(b.URI)) })
	return locs
}

func toRange(span compiler.Span) protocol.Range {
	pos := func(p compiler.Position) protocol.Position {
		return protocol.Position{Line: protocol.UInteger(p.Line - 1), Character: protocol.UInteger(p.Column - 1)}
	}
	return protocol.Range{Start: pos(span.Start), End: pos(span.End)}
}

// ---------------------------------------------------------------------------
// Text
// ---------------------------------------------------------------------------

func isWordByte(c byte) bool {
	r := rune(c)
	return unicode.IsLetter(r) || unicode.IsDigit(r) || c == '_'
}

// line returns line n of text and col clamped to it.
func line(text string, n, col int) (string, int, bool) {
	lines := strings.Split(text, "\n")
	if n >= len(lines) {
		return "", 0, false
	}
	return lines[n], min(col, len(lines[n])), true
}

// extractPrefix returns what was typed of a name or keyword before the
// cursor.
func extractPrefix(text string, pos protocol.Position) string {
	l, col, ok := line(text, int(pos.Line), int(pos.Character))
	if !ok {
		return ""
	}
	start := col
	for start > 0 && (isWordByte(l[start-1]) || l[start-1] == ':') {
		start--
	}
	return l[start:col]
}

// extractWord returns the identifier touching the cursor.
func extractWord(text string, pos protocol.Position) string {
	l, col, ok := line(text, int(pos.Line), int(pos.Character))
	if !ok {
		return ""
	}
	start, end := col, col
	for start > 0 && isWordByte(l[start-1]) {
		start--
	}
	for end < len(l) && isWordByte(l[end]) {
		end++
	}
	return l[start:end]
}

// wordEnd returns the column just past the identifier starting at col, or
// col+1 when none starts there.
func wordEnd(text string, lineNo, col int) int {
	l, _, ok := line(text, lineNo, col)
	end := col
	for ok && end < len(l) && isWordByte(l[end]) {
		end++
	}
	if end == col {
		return col + 1
	}
	return end
}

func ptr[T any](v T) *T { return &v }
