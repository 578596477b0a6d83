package responder

import (
	"context"
	"errors"
	"strings"
	"testing"

	"go.uber.org/goleak"

	"github.com/tuananhhust05/chatbot-visitrome/internal/chatql"
	"github.com/tuananhhust05/chatbot-visitrome/internal/conversation"
	"github.com/tuananhhust05/chatbot-visitrome/internal/evidence"
	"github.com/tuananhhust05/chatbot-visitrome/internal/testutil"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type fakeCompleter struct {
	reply   string
	err     error
	prompts []string
}

func (f *fakeCompleter) Complete(_ context.Context, prompt string) (string, error) {
	f.prompts = append(f.prompts, prompt)
	return f.reply, f.err
}

type fakeHistory struct {
	messages []conversation.Message
	err      error
	calls    int
}

func (f *fakeHistory) History(context.Context, string, int) ([]conversation.Message, error) {
	f.calls++
	return f.messages, f.err
}

func request() chatql.Request {
	return chatql.Request{Text: "Do you have tours in Rome?", ConversationID: "7"}
}

func TestGroundedIncludesEvidenceAndHistory(t *testing.T) {
	llm := &fakeCompleter{reply: "The Colosseum underground tour costs 45 EUR."}
	history := &fakeHistory{messages: []conversation.Message{
		{ID: 12, Content: "Any hotels near Termini?", FromAI: false},
		{ID: 11, Content: "Welcome to VisitRome!", FromAI: true},
	}}
	r := NewGrounded(llm, history, 10, testutil.Logger())

	items := []evidence.Item{
		{Content: "Colosseum underground tour, 45 EUR", Metadata: evidence.Metadata{SourceCategory: "tours", SourceID: "t-1"}},
	}

	reply, err := r.Respond(context.Background(), request(), items)
	if err != nil {
		t.Fatalf("Respond: %v", err)
	}
	if reply != llm.reply {
		t.Errorf("reply = %q", reply)
	}

	prompt := llm.prompts[0]
	for _, want := range []string{
		"Colosseum underground tour, 45 EUR",
		"user: Any hotels near Termini?",
		"assistant: Welcome to VisitRome!",
		"Do you have tours in Rome?",
	} {
		if !strings.Contains(prompt, want) {
			t.Errorf("prompt missing %q", want)
		}
	}

	// Newest first, as returned by the store.
	if strings.Index(prompt, "Any hotels") > strings.Index(prompt, "Welcome to VisitRome") {
		t.Error("history order not preserved")
	}
}

func TestGroundedEmptyEvidenceUsesSentinel(t *testing.T) {
	llm := &fakeCompleter{reply: "ok"}
	r := NewGrounded(llm, &fakeHistory{}, 10, testutil.Logger())

	if _, err := r.Respond(context.Background(), request(), nil); err != nil {
		t.Fatalf("Respond: %v", err)
	}
	if !strings.Contains(llm.prompts[0], evidence.NoDocumentsSentinel) {
		t.Error("prompt missing no-documents sentinel")
	}
}

func TestCalendarIntentSkipsHistory(t *testing.T) {
	llm := &fakeCompleter{reply: "ok"}
	history := &fakeHistory{messages: []conversation.Message{{Content: "old message"}}}
	r := NewUngrounded(llm, history, 10, testutil.Logger())

	req := request()
	req.CalendarIntent = true

	if _, err := r.Respond(context.Background(), req); err != nil {
		t.Fatalf("Respond: %v", err)
	}
	if history.calls != 0 {
		t.Error("history fetched despite calendar intent")
	}
	if !strings.Contains(llm.prompts[0], noHistory) {
		t.Error("prompt missing empty-history placeholder")
	}
}

func TestHistoryFailurePropagates(t *testing.T) {
	wantErr := errors.New("db down")
	r := NewUngrounded(&fakeCompleter{reply: "ok"}, &fakeHistory{err: wantErr}, 10, testutil.Logger())

	if _, err := r.Respond(context.Background(), request()); !errors.Is(err, wantErr) {
		t.Errorf("Respond error = %v, want wrapped %v", err, wantErr)
	}
}

func TestModelFailurePropagates(t *testing.T) {
	wantErr := errors.New("model down")
	r := NewGrounded(&fakeCompleter{err: wantErr}, &fakeHistory{}, 10, testutil.Logger())

	if _, err := r.Respond(context.Background(), request(), nil); !errors.Is(err, wantErr) {
		t.Errorf("Respond error = %v, want wrapped %v", err, wantErr)
	}
}
