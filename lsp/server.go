package lsp

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	glspserver "github.com/tliron/glsp/server"
	"go.uber.org/zap"

	"github.com/teranos/verseblueprint/errors"
	"github.com/teranos/verseblueprint/logger"
)

// WebSocketPath is where the language server accepts WebSocket clients
const WebSocketPath = "/lsp"

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	// Editors connect from localhost webviews with arbitrary origins
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Server runs the language server over stdio or WebSocket.
type Server struct {
	index  *Index
	logger *zap.SugaredLogger
}

// NewServer creates a language server over idx.
func NewServer(idx *Index, log *zap.SugaredLogger) *Server {
	return &Server{index: idx, logger: logger.OrNop(log)}
}

func (s *Server) glsp() *glspserver.Server {
	return glspserver.NewServer(NewHandler(s.index, s.logger).Protocol(), ServerName, false)
}

// RunStdio serves a single client on stdin/stdout until it disconnects.
func (s *Server) RunStdio() error {
	s.logger.Infow("Serving LSP over stdio", "classes", s.index.Len())
	if err := s.glsp().RunStdio(); err != nil {
		return errors.Wrap(err, "lsp stdio")
	}
	return nil
}

// ServeHTTP upgrades the request and serves one client on the connection.
// Each connection gets its own document set.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Errorw("Failed to upgrade WebSocket", logger.FieldError, err)
		return
	}

	s.logger.Infow("LSP WebSocket client connected", "remote", r.RemoteAddr)
	s.glsp().ServeWebSocket(conn)
	s.logger.Infow("LSP WebSocket client disconnected", "remote", r.RemoteAddr)
}

// RunWebSocket listens on addr and serves clients at WebSocketPath until
// ctx is cancelled.
func (s *Server) RunWebSocket(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return errors.Wrapf(err, "failed to listen on %s", addr)
	}
	return s.Serve(ctx, ln)
}

// Serve accepts WebSocket clients on ln until ctx is cancelled.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	mux := http.NewServeMux()
	mux.Handle(WebSocketPath, s)

	srv := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	s.logger.Infow("Serving LSP over WebSocket", "addr", ln.Addr().String(), "path", WebSocketPath)
	if err := srv.Serve(ln); err != nil && err != http.ErrServerClosed {
		return errors.Wrap(err, "lsp websocket server")
	}
	return nil
}
