// Package orchestrator drives a single conversational turn through
// retrieval, relevance grading, and exactly one response generator,
// checkpointing state after every step.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/tuananhhust05/chatbot-visitrome/internal/chatql"
	"github.com/tuananhhust05/chatbot-visitrome/internal/evidence"
	"github.com/tuananhhust05/chatbot-visitrome/internal/grader"
)

// Retriever gathers supporting evidence for a request. Best-effort: it
// never fails the turn.
type Retriever interface {
	Retrieve(ctx context.Context, req chatql.Request) []evidence.Item
}

// RelevanceGrader decides whether evidence supports the query.
type RelevanceGrader interface {
	Grade(ctx context.Context, query string, items []evidence.Item) (grader.Verdict, error)
}

// GroundedResponder answers using retrieved evidence.
type GroundedResponder interface {
	Respond(ctx context.Context, req chatql.Request, items []evidence.Item) (string, error)
}

// UngroundedResponder answers from general knowledge.
type UngroundedResponder interface {
	Respond(ctx context.Context, req chatql.Request) (string, error)
}

// Config carries the orchestrator's collaborators.
type Config struct {
	Retriever    Retriever
	Grader       RelevanceGrader
	Grounded     GroundedResponder
	Ungrounded   UngroundedResponder
	Checkpointer Checkpointer
	Separator    string

	// UATMode is stamped into every run's state so downstream consumers can
	// tell acceptance-test traffic from production traffic.
	UATMode bool

	Logger *slog.Logger
}

func (c Config) validate() error {
	switch {
	case c.Retriever == nil:
		return errors.New("orchestrator: nil retriever")
	case c.Grader == nil:
		return errors.New("orchestrator: nil grader")
	case c.Grounded == nil:
		return errors.New("orchestrator: nil grounded responder")
	case c.Ungrounded == nil:
		return errors.New("orchestrator: nil ungrounded responder")
	case c.Checkpointer == nil:
		return errors.New("orchestrator: nil checkpointer")
	case c.Separator == "":
		return errors.New("orchestrator: empty separator token")
	case c.Logger == nil:
		return errors.New("orchestrator: nil logger")
	}
	return nil
}

// Orchestrator runs turns to completion. A run is not cancellable midway
// through the transition table: once started it either finishes with a
// reply or fails with an error, never half-applied.
type Orchestrator struct {
	cfg Config
}

// New creates an orchestrator, rejecting incomplete configuration.
func New(cfg Config) (*Orchestrator, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &Orchestrator{cfg: cfg}, nil
}

// Chat parses a composite query, runs one turn on the thread, and returns
// the assistant's reply.
func (o *Orchestrator) Chat(ctx context.Context, raw, threadID string) (string, error) {
	req, err := chatql.Parse(raw, o.cfg.Separator)
	if err != nil {
		return "", fmt.Errorf("parsing query: %w", err)
	}

	state, err := o.Converse(ctx, req, threadID)
	if err != nil {
		return "", err
	}
	return state.Reply(), nil
}

// Converse runs one turn and returns the resulting state, including the
// documents the reply was grounded on.
//
// The thread's checkpoint is loaded first, so repeated runs on one thread
// accumulate messages. State is saved after every node; a failed save
// fails the turn, since a lost checkpoint would silently fork the thread.
func (o *Orchestrator) Converse(ctx context.Context, req chatql.Request, threadID string) (*State, error) {
	state, err := o.cfg.Checkpointer.Load(ctx, threadID)
	if err != nil {
		return nil, err
	}

	state.Messages = append(state.Messages, Message{Role: RoleUser, Content: req.Text})
	state.Query = &req
	state.Documents = nil
	state.UAT = o.cfg.UATMode
	if err := o.cfg.Checkpointer.Save(ctx, threadID, state); err != nil {
		return nil, err
	}

	logger := o.cfg.Logger.With("thread_id", threadID, "run_id", uuid.NewString())

	current := nodeRetrieve
	for current != nodeEnd {
		next, err := o.step(ctx, current, req, state)
		if err != nil {
			return nil, err
		}
		if err := o.cfg.Checkpointer.Save(ctx, threadID, state); err != nil {
			return nil, err
		}
		logger.Debug("node completed", "node", current.String(), "next", next.String())
		current = next
	}

	return state, nil
}

// step executes one node and returns the next per the transition table:
//
//	retrieve           -> respond_grounded | respond_ungrounded
//	respond_grounded   -> end
//	respond_ungrounded -> end
func (o *Orchestrator) step(ctx context.Context, current node, req chatql.Request, state *State) (node, error) {
	switch current {
	case nodeRetrieve:
		state.Documents = o.cfg.Retriever.Retrieve(ctx, req)

		verdict, err := o.cfg.Grader.Grade(ctx, req.Text, state.Documents)
		if err != nil {
			return nodeEnd, err
		}
		if verdict == grader.Relevant {
			return nodeRespondGrounded, nil
		}
		return nodeRespondUngrounded, nil

	case nodeRespondGrounded:
		reply, err := o.cfg.Grounded.Respond(ctx, req, state.Documents)
		if err != nil {
			return nodeEnd, err
		}
		state.Messages = append(state.Messages, Message{Role: RoleAssistant, Content: reply})
		return nodeEnd, nil

	case nodeRespondUngrounded:
		reply, err := o.cfg.Ungrounded.Respond(ctx, req)
		if err != nil {
			return nodeEnd, err
		}
		state.Messages = append(state.Messages, Message{Role: RoleAssistant, Content: reply})
		return nodeEnd, nil

	default:
		return nodeEnd, fmt.Errorf("orchestrator: unexpected node %d", current)
	}
}
