package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Checkpointer persists thread state between runs. Load returns a fresh
// empty state for unknown threads.
type Checkpointer interface {
	Load(ctx context.Context, threadID string) (*State, error)
	Save(ctx context.Context, threadID string, state *State) error
}

// MemorySaver keeps checkpoints in memory. Intended for tests and
// single-process setups; state is serialized so Load never aliases a
// caller's State.
type MemorySaver struct {
	mu     sync.Mutex
	states map[string][]byte
}

// NewMemorySaver creates an empty in-memory checkpointer.
func NewMemorySaver() *MemorySaver {
	return &MemorySaver{states: make(map[string][]byte)}
}

func (m *MemorySaver) Load(_ context.Context, threadID string) (*State, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	raw, ok := m.states[threadID]
	if !ok {
		return &State{}, nil
	}
	var state State
	if err := json.Unmarshal(raw, &state); err != nil {
		return nil, fmt.Errorf("decoding checkpoint for thread %s: %w", threadID, err)
	}
	return &state, nil
}

func (m *MemorySaver) Save(_ context.Context, threadID string, state *State) error {
	raw, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("encoding checkpoint for thread %s: %w", threadID, err)
	}
	m.mu.Lock()
	m.states[threadID] = raw
	m.mu.Unlock()
	return nil
}

// PostgresSaver stores checkpoints in the checkpoints table, one JSONB row
// per thread.
type PostgresSaver struct {
	pool *pgxpool.Pool
}

// NewPostgresSaver creates a Postgres-backed checkpointer.
func NewPostgresSaver(pool *pgxpool.Pool) *PostgresSaver {
	return &PostgresSaver{pool: pool}
}

func (p *PostgresSaver) Load(ctx context.Context, threadID string) (*State, error) {
	var raw []byte
	err := p.pool.QueryRow(ctx,
		`SELECT state FROM checkpoints WHERE thread_id = $1`, threadID,
	).Scan(&raw)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return &State{}, nil
		}
		return nil, fmt.Errorf("loading checkpoint for thread %s: %w", threadID, err)
	}

	var state State
	if err := json.Unmarshal(raw, &state); err != nil {
		return nil, fmt.Errorf("decoding checkpoint for thread %s: %w", threadID, err)
	}
	return &state, nil
}

func (p *PostgresSaver) Save(ctx context.Context, threadID string, state *State) error {
	raw, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("encoding checkpoint for thread %s: %w", threadID, err)
	}

	_, err = p.pool.Exec(ctx,
		`INSERT INTO checkpoints (thread_id, state, updated_at)
		 VALUES ($1, $2, now())
		 ON CONFLICT (thread_id)
		 DO UPDATE SET state = EXCLUDED.state, updated_at = now()`,
		threadID, raw)
	if err != nil {
		return fmt.Errorf("saving checkpoint for thread %s: %w", threadID, err)
	}
	return nil
}
