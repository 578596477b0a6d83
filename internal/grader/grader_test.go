package grader

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/tuananhhust05/chatbot-visitrome/internal/evidence"
	"github.com/tuananhhust05/chatbot-visitrome/internal/testutil"
)

// fakeCompleter returns a canned JSON payload and records prompts.
type fakeCompleter struct {
	payload string
	err     error
	prompts []string
}

func (f *fakeCompleter) CompleteJSON(_ context.Context, prompt string, out any) error {
	f.prompts = append(f.prompts, prompt)
	if f.err != nil {
		return f.err
	}
	return json.Unmarshal([]byte(f.payload), out)
}

func items() []evidence.Item {
	return []evidence.Item{
		{Content: "Colosseum tour, 45 EUR", Metadata: evidence.Metadata{SourceCategory: "tours", SourceID: "t-1"}},
	}
}

func TestGradeYes(t *testing.T) {
	llm := &fakeCompleter{payload: `{"binary_score":"yes"}`}
	g := New(llm, testutil.Logger())

	verdict, err := g.Grade(context.Background(), "tours in Rome?", items())
	if err != nil {
		t.Fatalf("Grade: %v", err)
	}
	if verdict != Relevant {
		t.Errorf("verdict = %v, want Relevant", verdict)
	}
	if len(llm.prompts) != 1 {
		t.Fatalf("model called %d times, want 1", len(llm.prompts))
	}
	prompt := llm.prompts[0]
	if !strings.Contains(prompt, "Colosseum tour") || !strings.Contains(prompt, "tours in Rome?") {
		t.Error("prompt missing documents or question")
	}
}

func TestGradeNo(t *testing.T) {
	llm := &fakeCompleter{payload: `{"binary_score":"no"}`}
	g := New(llm, testutil.Logger())

	verdict, err := g.Grade(context.Background(), "weather tomorrow?", items())
	if err != nil {
		t.Fatalf("Grade: %v", err)
	}
	if verdict != NotRelevant {
		t.Errorf("verdict = %v, want NotRelevant", verdict)
	}
}

func TestGradeEmptyEvidenceSkipsModel(t *testing.T) {
	llm := &fakeCompleter{payload: `{"binary_score":"yes"}`}
	g := New(llm, testutil.Logger())

	verdict, err := g.Grade(context.Background(), "anything", nil)
	if err != nil {
		t.Fatalf("Grade: %v", err)
	}
	if verdict != NotRelevant {
		t.Errorf("verdict = %v, want NotRelevant for empty evidence", verdict)
	}
	if len(llm.prompts) != 0 {
		t.Error("model was called for empty evidence")
	}
}

func TestGradeModelFailurePropagates(t *testing.T) {
	wantErr := errors.New("model unavailable")
	g := New(&fakeCompleter{err: wantErr}, testutil.Logger())

	if _, err := g.Grade(context.Background(), "q", items()); !errors.Is(err, wantErr) {
		t.Errorf("Grade error = %v, want wrapped %v", err, wantErr)
	}
}

func TestGradeMalformedVerdict(t *testing.T) {
	for _, payload := range []string{`{"binary_score":"maybe"}`, `{"binary_score":""}`, `{"other":"yes"}`} {
		g := New(&fakeCompleter{payload: payload}, testutil.Logger())
		if _, err := g.Grade(context.Background(), "q", items()); !errors.Is(err, ErrMalformedVerdict) {
			t.Errorf("payload %s: error = %v, want ErrMalformedVerdict", payload, err)
		}
	}
}
