package lsp

import (
	"strings"
	"sync"

	"github.com/tliron/glsp"
	protocol "github.com/tliron/glsp/protocol_3_16"
	"go.uber.org/zap"

	"github.com/teranos/verseblueprint/logger"
	"github.com/teranos/verseblueprint/version"
)

// ServerName is reported to clients during initialize
const ServerName = "vvbe Verse Language Server"

// Handler implements the LSP methods backed by an Index. Documents are
// synced in full.
type Handler struct {
	index     *Index
	logger    *zap.SugaredLogger
	mu        sync.RWMutex
	documents map[string]string
}

// NewHandler creates a handler over idx.
func NewHandler(idx *Index, log *zap.SugaredLogger) *Handler {
	return &Handler{
		index:     idx,
		logger:    logger.OrNop(log).Named("lsp"),
		documents: make(map[string]string),
	}
}

// Protocol wires the handler into a glsp protocol handler.
func (h *Handler) Protocol() *protocol.Handler {
	return &protocol.Handler{
		Initialize:             h.Initialize,
		Initialized:            h.Initialized,
		Shutdown:               h.Shutdown,
		TextDocumentDidOpen:    h.TextDocumentDidOpen,
		TextDocumentDidChange:  h.TextDocumentDidChange,
		TextDocumentDidClose:   h.TextDocumentDidClose,
		TextDocumentCompletion: h.TextDocumentCompletion,
		TextDocumentHover:      h.TextDocumentHover,
	}
}

// Initialize handles the LSP initialize request
func (h *Handler) Initialize(ctx *glsp.Context, params *protocol.InitializeParams) (any, error) {
	h.logger.Infow("LSP client initializing", "classes", h.index.Len())

	syncKind := protocol.TextDocumentSyncKindFull
	openClose := true
	return protocol.InitializeResult{
		Capabilities: protocol.ServerCapabilities{
			TextDocumentSync: &protocol.TextDocumentSyncOptions{
				OpenClose: &openClose,
				Change:    &syncKind,
			},
			CompletionProvider: &protocol.CompletionOptions{
				TriggerCharacters: []string{"."},
			},
			HoverProvider: true,
		},
		ServerInfo: &protocol.InitializeResultServerInfo{
			Name:    ServerName,
			Version: stringPtr(version.VersionTag),
		},
	}, nil
}

func (h *Handler) Initialized(ctx *glsp.Context, params *protocol.InitializedParams) error {
	h.logger.Debugw("LSP client initialized")
	return nil
}

func (h *Handler) Shutdown(ctx *glsp.Context) error {
	h.logger.Infow("LSP client shutting down")
	return nil
}

func (h *Handler) TextDocumentDidOpen(ctx *glsp.Context, params *protocol.DidOpenTextDocumentParams) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	uri := string(params.TextDocument.URI)
	h.documents[uri] = params.TextDocument.Text
	h.logger.Debugw("Document opened", logger.FieldURI, uri, logger.FieldSize, len(params.TextDocument.Text))
	return nil
}

func (h *Handler) TextDocumentDidChange(ctx *glsp.Context, params *protocol.DidChangeTextDocumentParams) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	uri := string(params.TextDocument.URI)
	for _, change := range params.ContentChanges {
		if whole, ok := change.(protocol.TextDocumentContentChangeEventWhole); ok {
			h.documents[uri] = whole.Text
		}
	}
	return nil
}

func (h *Handler) TextDocumentDidClose(ctx *glsp.Context, params *protocol.DidCloseTextDocumentParams) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.documents, string(params.TextDocument.URI))
	return nil
}

// TextDocumentCompletion offers class names, or members after a dot.
func (h *Handler) TextDocumentCompletion(ctx *glsp.Context, params *protocol.CompletionParams) (result any, err error) {
	defer func() {
		if r := recover(); r != nil {
			h.logger.Errorw("Panic in completion handler", "panic", r, logger.FieldURI, params.TextDocument.URI)
			result = []protocol.CompletionItem{}
			err = nil
		}
	}()

	document, line, ok := h.line(string(params.TextDocument.URI), params.Position.Line)
	if !ok {
		return []protocol.CompletionItem{}, nil
	}
	return h.index.Complete(document, line, int(params.Position.Character)), nil
}

// TextDocumentHover describes classes and members under the cursor.
func (h *Handler) TextDocumentHover(ctx *glsp.Context, params *protocol.HoverParams) (result *protocol.Hover, err error) {
	defer func() {
		if r := recover(); r != nil {
			h.logger.Errorw("Panic in hover handler", "panic", r, logger.FieldURI, params.TextDocument.URI)
			result = nil
			err = nil
		}
	}()

	document, line, ok := h.line(string(params.TextDocument.URI), params.Position.Line)
	if !ok {
		return nil, nil
	}

	text := h.index.Hover(document, line, int(params.Position.Character))
	if text == "" {
		return nil, nil
	}
	return &protocol.Hover{
		Contents: protocol.MarkupContent{
			Kind:  protocol.MarkupKindMarkdown,
			Value: text,
		},
	}, nil
}

func (h *Handler) line(uri string, n uint32) (string, string, bool) {
	h.mu.RLock()
	document, ok := h.documents[uri]
	h.mu.RUnlock()
	if !ok {
		return "", "", false
	}

	lines := strings.Split(strings.ReplaceAll(document, "\r\n", "\n"), "\n")
	if int(n) >= len(lines) {
		return document, "", true
	}
	return document, lines[n], true
}
