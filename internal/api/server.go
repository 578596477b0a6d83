// Package api exposes the concierge over HTTP: a JSON chat endpoint, the
// WhatsApp webhook, and a health probe.
package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/tuananhhust05/chatbot-visitrome/internal/chatql"
	"github.com/tuananhhust05/chatbot-visitrome/internal/conversation"
	"github.com/tuananhhust05/chatbot-visitrome/internal/orchestrator"
)

const (
	// ShutdownTimeout is the maximum time to wait for graceful shutdown.
	ShutdownTimeout = 10 * time.Second

	// ReadHeaderTimeout guards against slow-header clients.
	ReadHeaderTimeout = 10 * time.Second

	// WriteTimeout bounds a full turn: retrieval plus two model calls.
	WriteTimeout = 120 * time.Second
)

// Orchestrator runs one conversational turn on a thread.
type Orchestrator interface {
	Converse(ctx context.Context, req chatql.Request, threadID string) (*orchestrator.State, error)
}

// ConversationStore persists inbound and outbound messages.
type ConversationStore interface {
	SaveMessage(ctx context.Context, conversationID, sender, content string, fromAI bool) error
	FindOrCreate(ctx context.Context, userNumber, agentNumber string) (conversation.Conversation, error)
}

// Messenger delivers outbound replies. nil disables delivery.
type Messenger interface {
	SendText(ctx context.Context, to, body string) error
}

// Pinger reports backend liveness.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Server wires the HTTP surface together.
type Server struct {
	router        chi.Router
	orch          Orchestrator
	conversations ConversationStore
	messenger     Messenger
	pinger        Pinger
	separator     string
	verifyToken   string
	logger        *slog.Logger
}

// Config carries the server's collaborators.
type Config struct {
	Orchestrator  Orchestrator
	Conversations ConversationStore
	Messenger     Messenger
	Pinger        Pinger
	Separator     string
	VerifyToken   string
	Logger        *slog.Logger
}

// NewServer creates the HTTP server with all routes registered.
func NewServer(cfg Config) (*Server, error) {
	switch {
	case cfg.Orchestrator == nil:
		return nil, errors.New("api: nil orchestrator")
	case cfg.Conversations == nil:
		return nil, errors.New("api: nil conversation store")
	case cfg.Separator == "":
		return nil, errors.New("api: empty separator token")
	case cfg.Logger == nil:
		return nil, errors.New("api: nil logger")
	}

	s := &Server{
		orch:          cfg.Orchestrator,
		conversations: cfg.Conversations,
		messenger:     cfg.Messenger,
		pinger:        cfg.Pinger,
		separator:     cfg.Separator,
		verifyToken:   cfg.VerifyToken,
		logger:        cfg.Logger,
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(s.requestLogger)

	r.Post("/chat", s.handleChat)
	r.Get("/webhook", s.handleWebhookVerify)
	r.Post("/webhook", s.handleWebhook)
	r.Get("/healthz", s.handleHealth)

	s.router = r
	return s, nil
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run starts the server and blocks until the context is cancelled.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: ReadHeaderTimeout,
		WriteTimeout:      WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting HTTP server", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("shutting down HTTP server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

// requestLogger logs every request with method, path, status, and duration.
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Debug("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start))
	})
}
