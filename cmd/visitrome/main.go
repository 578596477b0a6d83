// Command visitrome runs the VisitRome concierge service: a conversational
// RAG pipeline over hotel and tour knowledge, served over HTTP and the
// WhatsApp webhook.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/firebase/genkit/go/genkit"
	"github.com/firebase/genkit/go/plugins/googlegenai"
	"golang.org/x/time/rate"

	"github.com/tuananhhust05/chatbot-visitrome/db"
	"github.com/tuananhhust05/chatbot-visitrome/internal/api"
	"github.com/tuananhhust05/chatbot-visitrome/internal/config"
	"github.com/tuananhhust05/chatbot-visitrome/internal/conversation"
	"github.com/tuananhhust05/chatbot-visitrome/internal/database"
	"github.com/tuananhhust05/chatbot-visitrome/internal/evidence"
	"github.com/tuananhhust05/chatbot-visitrome/internal/grader"
	"github.com/tuananhhust05/chatbot-visitrome/internal/llm"
	"github.com/tuananhhust05/chatbot-visitrome/internal/log"
	"github.com/tuananhhust05/chatbot-visitrome/internal/orchestrator"
	"github.com/tuananhhust05/chatbot-visitrome/internal/responder"
	"github.com/tuananhhust05/chatbot-visitrome/internal/whatsapp"
)

func main() {
	if err := run(); err != nil {
		slog.Error("service failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	logger := log.New(log.Config{Level: cfg.SlogLevel(), JSON: cfg.LogJSON})
	logger.Info("configuration loaded", "config", cfg.String())

	if err := db.Migrate(cfg.PostgresURL()); err != nil {
		return fmt.Errorf("migrating database: %w", err)
	}

	pool, err := database.Open(ctx, cfg.PostgresURL(), cfg.PoolMaxConns)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer pool.Close()

	g := genkit.Init(ctx, genkit.WithPlugins(&googlegenai.GoogleAI{}))
	embedder := googlegenai.GoogleAIEmbedder(g, cfg.EmbedderModel)

	// One model call per second with short bursts keeps the service inside
	// free-tier quotas; retries wait on the same limiter.
	limiter := rate.NewLimiter(rate.Limit(1), 3)
	client := llm.NewClient(g, cfg.ModelName, cfg.LLMTimeout, llm.DefaultRetryConfig(), limiter, logger.With("component", "llm"))

	conversations := conversation.NewStore(pool, logger.With("component", "conversation"))
	evidenceStore := evidence.NewStore(pool, logger.With("component", "evidence"))
	aggregator := evidence.NewAggregator(conversations, evidenceStore, embedder,
		cfg.Domains, cfg.TopK, logger.With("component", "aggregator"))

	orch, err := orchestrator.New(orchestrator.Config{
		Retriever:    aggregator,
		Grader:       grader.New(client, logger.With("component", "grader")),
		Grounded:     responder.NewGrounded(client, conversations, cfg.HistoryLimit, logger.With("component", "responder")),
		Ungrounded:   responder.NewUngrounded(client, conversations, cfg.HistoryLimit, logger.With("component", "responder")),
		Checkpointer: orchestrator.NewPostgresSaver(pool),
		Separator:    cfg.SeparatorToken,
		UATMode:      cfg.UATMode,
		Logger:       logger.With("component", "orchestrator"),
	})
	if err != nil {
		return err
	}

	var messenger api.Messenger
	if cfg.WhatsApp.Enabled() {
		messenger = whatsapp.New(cfg.WhatsApp.AccessToken, cfg.WhatsApp.PhoneNumberID,
			cfg.WhatsApp.GraphVersion, logger.With("component", "whatsapp"))
		logger.Info("whatsapp transport enabled", "phone_number_id", cfg.WhatsApp.PhoneNumberID)
	} else {
		logger.Info("whatsapp transport disabled")
	}

	server, err := api.NewServer(api.Config{
		Orchestrator:  orch,
		Conversations: conversations,
		Messenger:     messenger,
		Pinger:        pool,
		Separator:     cfg.SeparatorToken,
		VerifyToken:   cfg.WhatsApp.VerifyToken,
		Logger:        logger.With("component", "api"),
	})
	if err != nil {
		return err
	}

	return server.Run(ctx, cfg.HTTPAddr)
}
