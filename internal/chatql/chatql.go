// Package chatql defines the composite-query contract shared by the HTTP
// boundary and the conversation engine.
//
// The wire form is a single string:
//
//	<userText><SEPARATOR><conversationId>
//
// optionally prefixed with the calendar-intent marker "calendar_". The
// separator is a shared token configured on both sides. The string is parsed
// exactly once at the boundary into a Request; every component downstream
// works with the typed form.
package chatql

import (
	"errors"
	"fmt"
	"strings"
)

// CalendarPrefix marks a calendar-intent query. It is routing metadata, not
// search text, and is stripped during parsing.
const CalendarPrefix = "calendar_"

var (
	// ErrNoSeparator indicates the raw input does not contain the separator
	// token, so no conversation id can be recovered.
	ErrNoSeparator = errors.New("composite query missing separator token")

	// ErrEmptyConversationID indicates the separator was present but nothing
	// followed it.
	ErrEmptyConversationID = errors.New("composite query missing conversation id")

	// ErrEmptySeparatorToken indicates the engine was configured without a
	// separator token.
	ErrEmptySeparatorToken = errors.New("separator token is empty")
)

// Request is the parsed, typed form of a composite query.
type Request struct {
	// Text is the user utterance with separator suffix and calendar prefix
	// removed.
	Text string `json:"text"`

	// ConversationID identifies the conversation in the relational store.
	// The engine treats it as an opaque string.
	ConversationID string `json:"conversation_id"`

	// CalendarIntent is true when the raw input carried the calendar prefix.
	// Calendar-intent turns skip the history fetch.
	CalendarIntent bool `json:"calendar_intent"`
}

// Parse decodes a composite query. It fails fast on a missing separator or
// conversation id rather than operating on wrong data.
func Parse(raw, separator string) (Request, error) {
	if separator == "" {
		return Request{}, ErrEmptySeparatorToken
	}

	idx := strings.Index(raw, separator)
	if idx < 0 {
		return Request{}, fmt.Errorf("%w (input length %d)", ErrNoSeparator, len(raw))
	}

	text := raw[:idx]
	conversationID := raw[idx+len(separator):]
	if conversationID == "" {
		return Request{}, ErrEmptyConversationID
	}

	req := Request{
		Text:           text,
		ConversationID: conversationID,
	}
	if stripped, ok := strings.CutPrefix(text, CalendarPrefix); ok {
		req.Text = strings.TrimSpace(stripped)
		req.CalendarIntent = true
	}

	return req, nil
}

// Encode produces the wire form of a request. It is the inverse of Parse for
// non-calendar requests; calendar requests re-gain the prefix.
func Encode(req Request, separator string) string {
	text := req.Text
	if req.CalendarIntent {
		text = CalendarPrefix + " " + text
	}
	return text + separator + req.ConversationID
}
