package server

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"unicode"

	"github.com/tliron/glsp"
	protocol "github.com/tliron/glsp/protocol_3_16"
	glspserver "github.com/tliron/glsp/server"

	"github.com/tmbasic-lang/tmbasic-sub000/compiler"
	"github.com/tmbasic-lang/tmbasic-sub000/pkg/decimal"
)

const lspName = "tmbasic-lsp"

// LspServer provides diagnostics, hover, completion and go-to-definition
// for TMBASIC source documents.
type LspServer struct {
	worker     *Worker
	ownsWorker bool

	mu   sync.Mutex
	docs map[string]string // URI → full document content

	handler protocol.Handler
	server  *glspserver.Server
	version string
}

// NewLSP creates an LSP server. When worker is nil the server starts its
// own and stops it on shutdown.
func NewLSP(worker *Worker) *LspServer {
	s := &LspServer{
		worker:  worker,
		docs:    make(map[string]string),
		version: "0.1.0",
	}
	if s.worker == nil {
		s.worker = NewWorker(compiler.NewCompiler())
		s.ownsWorker = true
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
	return s
}

// Run starts the LSP server on stdio. Blocks until the client disconnects.
func (s *LspServer) Run() error {
	return s.server.RunStdio()
}

// --- LSP lifecycle handlers ---

func (s *LspServer) initialize(ctx *glsp.Context, params *protocol.InitializeParams) (any, error) {
	log.Info("LSP initializing")

	capabilities := s.handler.CreateServerCapabilities()

	syncKind := protocol.TextDocumentSyncKindFull
	capabilities.TextDocumentSync = &protocol.TextDocumentSyncOptions{
		OpenClose: boolPtr(true),
		Change:    &syncKind,
	}
	capabilities.CompletionProvider = &protocol.CompletionOptions{}
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
	if s.ownsWorker {
		s.worker.Stop()
	}
	return nil
}

func (s *LspServer) setTrace(ctx *glsp.Context, params *protocol.SetTraceParams) error {
	return nil
}

// --- Document synchronization ---

func (s *LspServer) textDocumentDidOpen(ctx *glsp.Context, params *protocol.DidOpenTextDocumentParams) error {
	uri := params.TextDocument.URI
	text := params.TextDocument.Text

	s.mu.Lock()
	s.docs[string(uri)] = text
	s.mu.Unlock()

	s.publishDiagnostics(ctx, uri, text)
	return nil
}

func (s *LspServer) textDocumentDidChange(ctx *glsp.Context, params *protocol.DidChangeTextDocumentParams) error {
	uri := params.TextDocument.URI

	// With Full sync, the last change event contains the full text
	if len(params.ContentChanges) == 0 {
		return nil
	}
	last := params.ContentChanges[len(params.ContentChanges)-1]
	whole, ok := last.(protocol.TextDocumentContentChangeEventWhole)
	if !ok {
		return nil
	}

	s.mu.Lock()
	s.docs[string(uri)] = whole.Text
	s.mu.Unlock()

	s.publishDiagnostics(ctx, uri, whole.Text)
	return nil
}

func (s *LspServer) textDocumentDidClose(ctx *glsp.Context, params *protocol.DidCloseTextDocumentParams) error {
	uri := params.TextDocument.URI

	s.mu.Lock()
	delete(s.docs, string(uri))
	s.mu.Unlock()

	// Clear diagnostics for the closed document
	go ctx.Notify(protocol.ServerTextDocumentPublishDiagnostics, protocol.PublishDiagnosticsParams{
		URI:         uri,
		Diagnostics: []protocol.Diagnostic{},
	})
	return nil
}

func (s *LspServer) document(uri protocol.DocumentUri) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	text, ok := s.docs[string(uri)]
	return text, ok
}

// --- Language features ---

func (s *LspServer) textDocumentCompletion(ctx *glsp.Context, params *protocol.CompletionParams) (any, error) {
	text, ok := s.document(params.TextDocument.URI)
	if !ok {
		return nil, nil
	}
	prefix := extractPrefix(text, params.Position)
	if prefix == "" {
		return nil, nil
	}
	return complete(text, prefix), nil
}

func (s *LspServer) textDocumentHover(ctx *glsp.Context, params *protocol.HoverParams) (*protocol.Hover, error) {
	text, ok := s.document(params.TextDocument.URI)
	if !ok {
		return nil, nil
	}
	word := extractWord(text, params.Position)
	if word == "" {
		return nil, nil
	}
	body := hoverText(text, word)
	if body == "" {
		return nil, nil
	}
	return &protocol.Hover{
		Contents: protocol.MarkupContent{
			Kind:  protocol.MarkupKindMarkdown,
			Value: body,
		},
	}, nil
}

func (s *LspServer) textDocumentDefinition(ctx *glsp.Context, params *protocol.DefinitionParams) (any, error) {
	uri := params.TextDocument.URI
	text, ok := s.document(uri)
	if !ok {
		return nil, nil
	}
	word := extractWord(text, params.Position)
	if word == "" {
		return nil, nil
	}
	locations := definition(uri, text, word)
	if len(locations) == 0 {
		return nil, nil
	}
	return locations, nil
}

// --- Document analysis ---

// complete lists the user procedures, globals, built-ins, constants and
// keywords that start with prefix, ignoring case.
func complete(text, prefix string) []protocol.CompletionItem {
	var items []protocol.CompletionItem
	seen := make(map[string]bool)
	lowerPrefix := strings.ToLower(prefix)

	add := func(label, detail string, kind protocol.CompletionItemKind) {
		key := strings.ToLower(label)
		if seen[key] || !strings.HasPrefix(key, lowerPrefix) {
			return
		}
		seen[key] = true
		labelCopy, detailCopy, kindCopy := label, detail, kind
		items = append(items, protocol.CompletionItem{
			Label:      label,
			Kind:       &kindCopy,
			Detail:     &detailCopy,
			InsertText: &labelCopy,
		})
	}

	procs := procedureMembers(text)
	names := make([]string, 0, len(procs))
	for name := range procs {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		m := procs[name][0]
		add(m.Identifier, m.DisplayName, protocol.CompletionItemKindFunction)
	}
	for _, g := range globalMembers(text) {
		add(g.name, g.member.DisplayName, protocol.CompletionItemKindVariable)
	}
	for _, b := range compiler.Builtins {
		add(b.Name, b.Signature(), protocol.CompletionItemKindFunction)
	}
	for _, c := range compiler.BuiltinConstants {
		add(c.Name, "const", protocol.CompletionItemKindConstant)
	}
	for _, kw := range compiler.Keywords() {
		add(kw, "keyword", protocol.CompletionItemKindKeyword)
	}

	const maxItems = 100
	if len(items) > maxItems {
		items = items[:maxItems]
	}
	return items
}

// hoverText describes word: the declarations of user procedures with
// that name, else the built-in overloads, else a built-in constant.
func hoverText(text, word string) string {
	var lines []string
	if members, ok := procedureMembers(text)[strings.ToLower(word)]; ok {
		for _, m := range members {
			lines = append(lines, m.DisplayName)
		}
	}
	if len(lines) == 0 {
		for _, b := range compiler.Builtins {
			if strings.EqualFold(b.Name, word) {
				lines = append(lines, b.Signature())
			}
		}
	}
	if len(lines) == 0 {
		for _, c := range compiler.BuiltinConstants {
			if strings.EqualFold(c.Name, word) {
				lines = append(lines, fmt.Sprintf("const %s = %s", c.Name, decimal.Format(c.Value)))
			}
		}
	}
	if len(lines) == 0 {
		return ""
	}
	return "```basic\n" + strings.Join(lines, "\n") + "\n```"
}

// definition locates the members that declare word.
func definition(uri protocol.DocumentUri, text, word string) []protocol.Location {
	key := strings.ToLower(word)
	var locations []protocol.Location
	at := func(line int) protocol.Location {
		pos := protocol.Position{Line: protocol.UInteger(line), Character: 0}
		return protocol.Location{URI: uri, Range: protocol.Range{Start: pos, End: pos}}
	}
	for _, m := range procedureMembers(text)[key] {
		locations = append(locations, at(m.StartLine))
	}
	for _, g := range globalMembers(text) {
		if strings.ToLower(g.name) == key {
			locations = append(locations, at(g.member.StartLine))
		}
	}
	return locations
}

type globalMember struct {
	name   string
	member *compiler.SourceMember
}

// globalMembers returns the dim and const members of text with the name
// each declares.
func globalMembers(text string) []globalMember {
	var out []globalMember
	for _, m := range compiler.LoadSourceProgram(text).Members {
		if m.MemberType != compiler.MemberGlobal {
			continue
		}
		fields := strings.Fields(m.DisplayName)
		if len(fields) < 2 {
			continue
		}
		name := fields[1]
		if strings.EqualFold(name, "shared") && len(fields) > 2 {
			name = fields[2]
		}
		out = append(out, globalMember{name: name, member: m})
	}
	return out
}

// --- Diagnostics ---

// diagnose compiles text on the worker and converts the result.
func (s *LspServer) diagnose(text string) ([]protocol.Diagnostic, error) {
	result, err := s.worker.Do(func(c *compiler.Compiler) any {
		_, compileErr := c.CompileText(text)
		return diagnosticsOf(compileErr)
	})
	if err != nil {
		return nil, err
	}

	diags := result.([]diagnostic)
	out := make([]protocol.Diagnostic, 0, len(diags))
	severity := protocol.DiagnosticSeverityError
	source := lspName
	for _, d := range diags {
		start := protocol.Position{Line: protocol.UInteger(d.Line), Character: protocol.UInteger(d.Column)}
		end := start
		end.Character += protocol.UInteger(max(d.Length, 1))
		out = append(out, protocol.Diagnostic{
			Range:    protocol.Range{Start: start, End: end},
			Severity: &severity,
			Source:   &source,
			Message:  d.Code + ": " + d.Message,
		})
	}
	return out, nil
}

func (s *LspServer) publishDiagnostics(ctx *glsp.Context, uri protocol.DocumentUri, text string) {
	diagnostics, err := s.diagnose(text)
	if err != nil {
		log.Warningf("diagnosing %s: %s", uri, err)
		return
	}
	go ctx.Notify(protocol.ServerTextDocumentPublishDiagnostics, protocol.PublishDiagnosticsParams{
		URI:         uri,
		Diagnostics: diagnostics,
	})
}

// --- Text extraction helpers ---

func isIdentRune(ch rune) bool {
	return unicode.IsLetter(ch) || unicode.IsDigit(ch) || ch == '_'
}

// extractPrefix returns the word fragment before the cursor for completion.
func extractPrefix(text string, pos protocol.Position) string {
	lines := strings.Split(text, "\n")
	if int(pos.Line) >= len(lines) {
		return ""
	}
	line := lines[pos.Line]
	col := min(int(pos.Character), len(line))

	start := col
	for start > 0 && isIdentRune(rune(line[start-1])) {
		start--
	}
	return line[start:col]
}

// extractWord returns the full identifier under the cursor.
func extractWord(text string, pos protocol.Position) string {
	lines := strings.Split(text, "\n")
	if int(pos.Line) >= len(lines) {
		return ""
	}
	line := lines[pos.Line]
	col := min(int(pos.Character), len(line))

	start := col
	for start > 0 && isIdentRune(rune(line[start-1])) {
		start--
	}
	end := col
	for end < len(line) && isIdentRune(rune(line[end])) {
		end++
	}
	return line[start:end]
}

func boolPtr(b bool) *bool {
	return &b
}
