package api

import (
	"encoding/json"
	"net/http"
	"strconv"
)

// webhookPayload mirrors the subset of Meta's webhook envelope we consume.
type webhookPayload struct {
	Entry []struct {
		Changes []struct {
			Value struct {
				Metadata struct {
					DisplayPhoneNumber string `json:"display_phone_number"`
				} `json:"metadata"`
				Messages []struct {
					From string `json:"from"`
					Type string `json:"type"`
					Text struct {
						Body string `json:"body"`
					} `json:"text"`
				} `json:"messages"`
			} `json:"value"`
		} `json:"changes"`
	} `json:"entry"`
}

// handleWebhookVerify answers Meta's subscription handshake.
func (s *Server) handleWebhookVerify(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if q.Get("hub.mode") != "subscribe" || q.Get("hub.verify_token") != s.verifyToken || s.verifyToken == "" {
		writeError(w, http.StatusForbidden, "verification_failed", "")
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(q.Get("hub.challenge")))
}

// handleWebhook processes inbound WhatsApp messages. It always returns 200:
// Meta retries non-2xx deliveries and a poison message would wedge the
// webhook queue.
func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	var payload webhookPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		s.logger.Warn("undecodable webhook payload", "error", err)
		w.WriteHeader(http.StatusOK)
		return
	}

	ctx := r.Context()
	for _, entry := range payload.Entry {
		for _, change := range entry.Changes {
			agentNumber := change.Value.Metadata.DisplayPhoneNumber
			for _, msg := range change.Value.Messages {
				if msg.Type != "text" || msg.Text.Body == "" {
					continue
				}

				conv, err := s.conversations.FindOrCreate(ctx, msg.From, agentNumber)
				if err != nil {
					s.logger.Error("resolving webhook conversation",
						"from", msg.From, "error", err)
					continue
				}

				convID := strconv.FormatInt(conv.ID, 10)
				resp, err := s.runTurn(ctx, msg.Text.Body, convID)
				if err != nil {
					s.logger.Error("webhook turn failed",
						"conversation_id", convID, "error", err)
					continue
				}

				if s.messenger == nil {
					continue
				}
				if err := s.messenger.SendText(ctx, msg.From, resp.Reply); err != nil {
					s.logger.Error("delivering reply",
						"to", msg.From, "error", err)
				}
			}
		}
	}

	w.WriteHeader(http.StatusOK)
}
