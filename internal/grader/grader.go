// Package grader decides whether retrieved evidence is relevant to a query.
package grader

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/tuananhhust05/chatbot-visitrome/internal/evidence"
)

// ErrMalformedVerdict is returned when the model's answer is not a valid
// binary score.
var ErrMalformedVerdict = errors.New("malformed relevance verdict")

// Verdict is the binary outcome of relevance grading.
type Verdict int

const (
	NotRelevant Verdict = iota
	Relevant
)

func (v Verdict) String() string {
	if v == Relevant {
		return "relevant"
	}
	return "not relevant"
}

// Completer issues a completion that must return JSON.
type Completer interface {
	CompleteJSON(ctx context.Context, prompt string, out any) error
}

const gradePrompt = `You are a grader assessing relevance of retrieved documents to a user question.
If the documents contain keywords or semantic meaning related to the question, grade them as relevant.
Give a binary score 'yes' or 'no' to indicate whether the documents are relevant to the question.

Return ONLY a JSON object of the form {"binary_score": "yes"} or {"binary_score": "no"} with no other text.

Retrieved documents:
%s

User question:
%s`

// Grader grades evidence relevance with a structured model call.
type Grader struct {
	llm    Completer
	logger *slog.Logger
}

// New creates a relevance grader.
func New(llm Completer, logger *slog.Logger) *Grader {
	return &Grader{llm: llm, logger: logger}
}

// Grade returns whether the items support answering the query.
//
// No items means nothing to grade: NotRelevant without a model call.
// A failed or malformed model call is a hard error; the caller must not
// guess a verdict.
func (g *Grader) Grade(ctx context.Context, query string, items []evidence.Item) (Verdict, error) {
	if len(items) == 0 {
		return NotRelevant, nil
	}

	prompt := fmt.Sprintf(gradePrompt, evidence.Format(items), query)

	var out struct {
		BinaryScore string `json:"binary_score"`
	}
	if err := g.llm.CompleteJSON(ctx, prompt, &out); err != nil {
		return NotRelevant, fmt.Errorf("grading relevance: %w", err)
	}

	switch out.BinaryScore {
	case "yes":
		g.logger.Debug("evidence graded", "verdict", Relevant, "items", len(items))
		return Relevant, nil
	case "no":
		g.logger.Debug("evidence graded", "verdict", NotRelevant, "items", len(items))
		return NotRelevant, nil
	default:
		return NotRelevant, fmt.Errorf("%w: binary_score=%q", ErrMalformedVerdict, out.BinaryScore)
	}
}
