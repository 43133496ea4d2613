package lsp

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	protocol "github.com/tliron/glsp/protocol_3_16"
	"go.uber.org/zap/zaptest"
)

const testURI = "file:///project/counter_device.verse"

func openDocument(t *testing.T, h *Handler, text string) {
	t.Helper()
	require.NoError(t, h.TextDocumentDidOpen(nil, &protocol.DidOpenTextDocumentParams{
		TextDocument: protocol.TextDocumentItem{URI: testURI, LanguageID: "verse", Version: 1, Text: text},
	}))
}

func position(line, character uint32) protocol.TextDocumentPositionParams {
	return protocol.TextDocumentPositionParams{
		TextDocument: protocol.TextDocumentIdentifier{URI: testURI},
		Position:     protocol.Position{Line: line, Character: character},
	}
}

func TestHandler_Completion(t *testing.T) {
	h := NewHandler(newTestIndex(t), zaptest.NewLogger(t).Sugar())
	openDocument(t, h, userSource)

	// Line 7 is "        Button."
	result, err := h.TextDocumentCompletion(nil, &protocol.CompletionParams{
		TextDocumentPositionParams: position(7, 15),
	})
	require.NoError(t, err)
	items, ok := result.([]protocol.CompletionItem)
	require.True(t, ok)
	assert.Equal(t, []string{"InteractionTime", "SetInteractionText", "InteractedWithEvent"}, labels(items))
}

func TestHandler_CompletionUnknownDocument(t *testing.T) {
	h := NewHandler(newTestIndex(t), nil)

	result, err := h.TextDocumentCompletion(nil, &protocol.CompletionParams{
		TextDocumentPositionParams: position(0, 0),
	})
	require.NoError(t, err)
	assert.Empty(t, result)
}

func TestHandler_DidChangeReplacesDocument(t *testing.T) {
	h := NewHandler(newTestIndex(t), nil)
	openDocument(t, h, "")

	require.NoError(t, h.TextDocumentDidChange(nil, &protocol.DidChangeTextDocumentParams{
		TextDocument: protocol.VersionedTextDocumentIdentifier{
			TextDocumentIdentifier: protocol.TextDocumentIdentifier{URI: testURI},
			Version:                2,
		},
		ContentChanges: []any{protocol.TextDocumentContentChangeEventWhole{Text: "timer_device.\r\n"}},
	}))

	result, err := h.TextDocumentCompletion(nil, &protocol.CompletionParams{
		TextDocumentPositionParams: position(0, 13),
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"Start"}, labels(result.([]protocol.CompletionItem)))
}

func TestHandler_Hover(t *testing.T) {
	h := NewHandler(newTestIndex(t), nil)
	openDocument(t, h, userSource)

	// Line 4 is "    Button : button_device = button_device{}"
	hover, err := h.TextDocumentHover(nil, &protocol.HoverParams{TextDocumentPositionParams: position(4, 20)})
	require.NoError(t, err)
	require.NotNil(t, hover)
	content, ok := hover.Contents.(protocol.MarkupContent)
	require.True(t, ok)
	assert.Equal(t, protocol.MarkupKindMarkdown, content.Kind)
	assert.Contains(t, content.Value, "button_device := class")

	hover, err = h.TextDocumentHover(nil, &protocol.HoverParams{TextDocumentPositionParams: position(0, 2)})
	require.NoError(t, err)
	assert.Nil(t, hover)

	hover, err = h.TextDocumentHover(nil, &protocol.HoverParams{TextDocumentPositionParams: position(99, 0)})
	require.NoError(t, err)
	assert.Nil(t, hover)
}

func TestHandler_DidClose(t *testing.T) {
	h := NewHandler(newTestIndex(t), nil)
	openDocument(t, h, userSource)

	require.NoError(t, h.TextDocumentDidClose(nil, &protocol.DidCloseTextDocumentParams{
		TextDocument: protocol.TextDocumentIdentifier{URI: testURI},
	}))

	hover, err := h.TextDocumentHover(nil, &protocol.HoverParams{TextDocumentPositionParams: position(4, 20)})
	require.NoError(t, err)
	assert.Nil(t, hover)
}

func TestHandler_Initialize(t *testing.T) {
	h := NewHandler(newTestIndex(t), nil)

	result, err := h.Initialize(nil, &protocol.InitializeParams{})
	require.NoError(t, err)
	initResult, ok := result.(protocol.InitializeResult)
	require.True(t, ok)
	assert.Equal(t, ServerName, initResult.ServerInfo.Name)
	assert.Equal(t, true, initResult.Capabilities.HoverProvider)
	require.NotNil(t, initResult.Capabilities.CompletionProvider)
	assert.Equal(t, []string{"."}, initResult.Capabilities.CompletionProvider.TriggerCharacters)
}

func TestServer_WebSocketInitialize(t *testing.T) {
	srv := httptest.NewServer(NewServer(newTestIndex(t), zaptest.NewLogger(t).Sugar()))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + WebSocketPath
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	require.NoError(t, conn.WriteJSON(map[string]any{
		"jsonrpc": "2.0",
		"id":      1,
		"method":  "initialize",
		"params":  map[string]any{"capabilities": map[string]any{}},
	}))

	var response struct {
		ID     int `json:"id"`
		Result struct {
			Capabilities struct {
				HoverProvider bool `json:"hoverProvider"`
			} `json:"capabilities"`
			ServerInfo struct {
				Name string `json:"name"`
			} `json:"serverInfo"`
		} `json:"result"`
	}
	require.NoError(t, conn.ReadJSON(&response))
	assert.Equal(t, 1, response.ID)
	assert.True(t, response.Result.Capabilities.HoverProvider)
	assert.Equal(t, ServerName, response.Result.ServerInfo.Name)
}
