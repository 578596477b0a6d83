// Package responder generates the assistant's reply, grounded in retrieved
// evidence or from general knowledge.
package responder

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/tuananhhust05/chatbot-visitrome/internal/chatql"
	"github.com/tuananhhust05/chatbot-visitrome/internal/conversation"
	"github.com/tuananhhust05/chatbot-visitrome/internal/evidence"
)

// Completer issues a text completion.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// HistoryFetcher loads recent conversation messages, newest first.
type HistoryFetcher interface {
	History(ctx context.Context, conversationID string, limit int) ([]conversation.Message, error)
}

// Grounded answers using retrieved evidence plus conversation history.
type Grounded struct {
	llm          Completer
	history      HistoryFetcher
	historyLimit int
	logger       *slog.Logger
}

// NewGrounded creates the evidence-backed responder.
func NewGrounded(llm Completer, history HistoryFetcher, historyLimit int, logger *slog.Logger) *Grounded {
	return &Grounded{llm: llm, history: history, historyLimit: historyLimit, logger: logger}
}

// Respond generates a reply grounded in the given evidence.
// History fetch failures are hard errors; an answer built on a silently
// missing conversation would contradict earlier turns.
func (r *Grounded) Respond(ctx context.Context, req chatql.Request, items []evidence.Item) (string, error) {
	history, err := r.fetchHistory(ctx, req)
	if err != nil {
		return "", err
	}

	prompt := fmt.Sprintf(groundedPrompt, history, evidence.Format(items), req.Text)
	reply, err := r.llm.Complete(ctx, prompt)
	if err != nil {
		return "", fmt.Errorf("generating grounded response: %w", err)
	}

	r.logger.Debug("grounded reply generated",
		"conversation_id", req.ConversationID,
		"documents", len(items))
	return reply, nil
}

// Ungrounded answers from general knowledge when no relevant evidence exists.
type Ungrounded struct {
	llm          Completer
	history      HistoryFetcher
	historyLimit int
	logger       *slog.Logger
}

// NewUngrounded creates the general-knowledge responder.
func NewUngrounded(llm Completer, history HistoryFetcher, historyLimit int, logger *slog.Logger) *Ungrounded {
	return &Ungrounded{llm: llm, history: history, historyLimit: historyLimit, logger: logger}
}

// Respond generates a reply without supporting documents.
func (r *Ungrounded) Respond(ctx context.Context, req chatql.Request) (string, error) {
	history, err := fetchHistory(ctx, r.history, req, r.historyLimit)
	if err != nil {
		return "", err
	}

	prompt := fmt.Sprintf(ungroundedPrompt, history, req.Text)
	reply, err := r.llm.Complete(ctx, prompt)
	if err != nil {
		return "", fmt.Errorf("generating response: %w", err)
	}

	r.logger.Debug("ungrounded reply generated",
		"conversation_id", req.ConversationID,
		"calendar_intent", req.CalendarIntent)
	return reply, nil
}

func (r *Grounded) fetchHistory(ctx context.Context, req chatql.Request) (string, error) {
	return fetchHistory(ctx, r.history, req, r.historyLimit)
}

// fetchHistory renders recent messages for the prompt, newest first.
// Calendar requests skip history: scheduling payloads pollute the context
// and the question is self-contained.
func fetchHistory(ctx context.Context, fetcher HistoryFetcher, req chatql.Request, limit int) (string, error) {
	if req.CalendarIntent {
		return noHistory, nil
	}

	messages, err := fetcher.History(ctx, req.ConversationID, limit)
	if err != nil {
		return "", fmt.Errorf("loading conversation history: %w", err)
	}
	if len(messages) == 0 {
		return noHistory, nil
	}

	var sb strings.Builder
	for _, m := range messages {
		role := "user"
		if m.FromAI {
			role = "assistant"
		}
		fmt.Fprintf(&sb, "%s: %s\n", role, m.Content)
	}
	return strings.TrimRight(sb.String(), "\n"), nil
}
