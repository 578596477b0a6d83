// Package conversation persists traveller/agent conversations and their
// message history.
package conversation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotFound is returned when a conversation does not exist.
var ErrNotFound = errors.New("conversation not found")

// Conversation links a traveller's number to an agent's number and carries
// the agent id that scopes knowledge retrieval.
type Conversation struct {
	ID         int64     `json:"id"`
	UserNumber string    `json:"user_number"`
	AgentNum   string    `json:"agent_number"`
	AgentID    string    `json:"agent_id"`
	CreatedAt  time.Time `json:"created_at"`
}

// Message is a single turn stored against a conversation.
type Message struct {
	ID        int64     `json:"id"`
	Sender    string    `json:"sender"`
	Content   string    `json:"content"`
	FromAI    bool      `json:"from_ai"`
	CreatedAt time.Time `json:"created_at"`
}

// Store provides conversation persistence on top of a pgx pool.
type Store struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewStore creates a conversation store.
func NewStore(pool *pgxpool.Pool, logger *slog.Logger) *Store {
	return &Store{pool: pool, logger: logger}
}

// AgentID returns the agent id owning the given conversation.
func (s *Store) AgentID(ctx context.Context, conversationID string) (string, error) {
	id, err := parseID(conversationID)
	if err != nil {
		return "", err
	}

	var agentID string
	err = s.pool.QueryRow(ctx,
		`SELECT agent_id FROM conversations WHERE id = $1`, id,
	).Scan(&agentID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", fmt.Errorf("conversation %s: %w", conversationID, ErrNotFound)
		}
		return "", fmt.Errorf("querying agent id: %w", err)
	}
	return agentID, nil
}

// History returns up to limit most recent messages, newest first.
func (s *Store) History(ctx context.Context, conversationID string, limit int) ([]Message, error) {
	id, err := parseID(conversationID)
	if err != nil {
		return nil, err
	}

	rows, err := s.pool.Query(ctx,
		`SELECT id, sender, content, from_ai, created_at
		 FROM messages
		 WHERE conversation_id = $1
		 ORDER BY id DESC
		 LIMIT $2`, id, limit)
	if err != nil {
		return nil, fmt.Errorf("querying message history: %w", err)
	}
	defer rows.Close()

	var messages []Message
	for rows.Next() {
		var m Message
		if err := rows.Scan(&m.ID, &m.Sender, &m.Content, &m.FromAI, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning message: %w", err)
		}
		messages = append(messages, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating messages: %w", err)
	}
	return messages, nil
}

// SaveMessage appends a message to a conversation.
func (s *Store) SaveMessage(ctx context.Context, conversationID, sender, content string, fromAI bool) error {
	id, err := parseID(conversationID)
	if err != nil {
		return err
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO messages (conversation_id, sender, content, from_ai)
		 VALUES ($1, $2, $3, $4)`, id, sender, content, fromAI)
	if err != nil {
		return fmt.Errorf("saving message: %w", err)
	}
	return nil
}

// FindOrCreate returns the conversation for a traveller/agent number pair,
// creating it when missing. New conversations adopt the agent number as the
// agent id until an operator reassigns it.
func (s *Store) FindOrCreate(ctx context.Context, userNumber, agentNumber string) (Conversation, error) {
	var c Conversation
	err := s.pool.QueryRow(ctx,
		`INSERT INTO conversations (user_number, agent_number, agent_id)
		 VALUES ($1, $2, $2)
		 ON CONFLICT (user_number, agent_number)
		 DO UPDATE SET user_number = EXCLUDED.user_number
		 RETURNING id, user_number, agent_number, agent_id, created_at`,
		userNumber, agentNumber,
	).Scan(&c.ID, &c.UserNumber, &c.AgentNum, &c.AgentID, &c.CreatedAt)
	if err != nil {
		return Conversation{}, fmt.Errorf("finding or creating conversation: %w", err)
	}

	s.logger.Debug("conversation resolved",
		"conversation_id", c.ID,
		"agent_id", c.AgentID)
	return c, nil
}

func parseID(conversationID string) (int64, error) {
	id, err := strconv.ParseInt(conversationID, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid conversation id %q: %w", conversationID, err)
	}
	return id, nil
}
