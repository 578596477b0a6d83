package orchestrator

import (
	"github.com/tuananhhust05/chatbot-visitrome/internal/chatql"
	"github.com/tuananhhust05/chatbot-visitrome/internal/evidence"
)

// Role identifies who produced a message in the accumulated state.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one turn in the accumulated conversation state.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// State is the checkpointed state of a thread. Messages accumulate across
// runs; Query and Documents are set fresh each run.
type State struct {
	Messages  []Message       `json:"messages"`
	Query     *chatql.Request `json:"query,omitempty"`
	Documents []evidence.Item `json:"documents,omitempty"`
	UAT       bool            `json:"uat"`
}

// Reply returns the content of the most recent assistant message.
func (s *State) Reply() string {
	for i := len(s.Messages) - 1; i >= 0; i-- {
		if s.Messages[i].Role == RoleAssistant {
			return s.Messages[i].Content
		}
	}
	return ""
}

// node identifies a position in the run's transition table.
type node int

const (
	nodeRetrieve node = iota
	nodeRespondGrounded
	nodeRespondUngrounded
	nodeEnd
)

func (n node) String() string {
	switch n {
	case nodeRetrieve:
		return "retrieve"
	case nodeRespondGrounded:
		return "respond_grounded"
	case nodeRespondUngrounded:
		return "respond_ungrounded"
	default:
		return "end"
	}
}
