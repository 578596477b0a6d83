package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/tuananhhust05/chatbot-visitrome/internal/chatql"
	"github.com/tuananhhust05/chatbot-visitrome/internal/travel"
)

// ChatRequest is the JSON body of POST /chat.
type ChatRequest struct {
	Message        string `json:"message"`
	ConversationID string `json:"conversation_id"`
}

// ChatResponse is the JSON reply of POST /chat.
type ChatResponse struct {
	Reply      string      `json:"reply"`
	TravelData travel.Data `json:"travel_data"`
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var in ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", err.Error())
		return
	}
	if in.Message == "" {
		writeError(w, http.StatusBadRequest, "missing_message", "message is required")
		return
	}
	if in.ConversationID == "" {
		writeError(w, http.StatusBadRequest, "missing_conversation_id", "conversation_id is required")
		return
	}

	resp, err := s.runTurn(r.Context(), in.Message, in.ConversationID)
	if err != nil {
		var parseErr *parseError
		if errors.As(err, &parseErr) {
			writeError(w, http.StatusBadRequest, "invalid_query", parseErr.Error())
			return
		}
		s.logger.Error("chat turn failed",
			"conversation_id", in.ConversationID,
			"error", err)
		writeError(w, http.StatusInternalServerError, "turn_failed", "could not generate a reply")
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

// parseError marks composite-query parse failures so handlers can map them
// to 400 instead of 500.
type parseError struct{ err error }

func (e *parseError) Error() string { return e.err.Error() }
func (e *parseError) Unwrap() error { return e.err }

// runTurn persists the inbound message, runs the pipeline, persists the
// reply, and extracts structured travel data. Shared by /chat and the
// WhatsApp webhook.
func (s *Server) runTurn(ctx context.Context, message, conversationID string) (*ChatResponse, error) {
	req, err := chatql.Parse(message+s.separator+conversationID, s.separator)
	if err != nil {
		return nil, &parseError{err: err}
	}

	if err := s.conversations.SaveMessage(ctx, conversationID, "user", message, false); err != nil {
		return nil, err
	}

	state, err := s.orch.Converse(ctx, req, conversationID)
	if err != nil {
		return nil, err
	}
	reply := state.Reply()

	if err := s.conversations.SaveMessage(ctx, conversationID, "assistant", reply, true); err != nil {
		return nil, err
	}

	return &ChatResponse{
		Reply:      reply,
		TravelData: travel.Extract(state.Documents),
	}, nil
}
