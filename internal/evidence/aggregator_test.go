package evidence

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/firebase/genkit/go/genkit"

	"github.com/tuananhhust05/chatbot-visitrome/internal/chatql"
	"github.com/tuananhhust05/chatbot-visitrome/internal/testutil"
)

type stubResolver struct {
	agentID string
	err     error
}

func (r *stubResolver) AgentID(context.Context, string) (string, error) {
	return r.agentID, r.err
}

// stubSearcher returns canned items per domain and records agent ids.
// Search runs concurrently across domains, so the recording is locked.
type stubSearcher struct {
	mu       sync.Mutex
	byDomain map[string][]Item
	errs     map[string]error
	agentIDs []string
}

func (s *stubSearcher) Search(_ context.Context, domain, agentID string, _ []float32, _ int) ([]Item, error) {
	s.mu.Lock()
	s.agentIDs = append(s.agentIDs, agentID)
	s.mu.Unlock()
	if err := s.errs[domain]; err != nil {
		return nil, err
	}
	return s.byDomain[domain], nil
}

func (s *stubSearcher) recordedAgentIDs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := make([]string, len(s.agentIDs))
	copy(cp, s.agentIDs)
	return cp
}

func item(domain, id, content string) Item {
	return Item{Content: content, Metadata: Metadata{SourceCategory: domain, SourceID: id}}
}

func newTestAggregator(t *testing.T, resolver AgentResolver, searcher Searcher, k int) *Aggregator {
	t.Helper()
	g := genkit.Init(context.Background())
	embedder := testutil.NewMockEmbedder(8).RegisterEmbedder(g)
	return NewAggregator(resolver, searcher, embedder, []string{"hotels", "tours"}, k, testutil.Logger())
}

func req(text string) chatql.Request {
	return chatql.Request{Text: text, ConversationID: "7"}
}

func TestRetrieveMergesAndDeduplicates(t *testing.T) {
	shared := "Hotel Aurora also offers a Colosseum tour package"
	searcher := &stubSearcher{byDomain: map[string][]Item{
		"hotels": {item("hotels", "h-1", shared), item("hotels", "h-2", "Hotel Bella, 90 EUR")},
		"tours":  {item("tours", "t-1", shared), item("tours", "t-2", "Vatican tour, 60 EUR")},
	}}
	agg := newTestAggregator(t, &stubResolver{agentID: "agent-1"}, searcher, 10)

	items := agg.Retrieve(context.Background(), req("rome"))

	if len(items) != 3 {
		t.Fatalf("got %d items, want 3 (duplicate dropped)", len(items))
	}
	// First occurrence wins: the shared content keeps its hotels provenance.
	if items[0].Metadata.SourceCategory != "hotels" || items[0].Content != shared {
		t.Errorf("first item = %+v, want shared hotels item", items[0])
	}
	for _, got := range searcher.recordedAgentIDs() {
		if got != "agent-1" {
			t.Errorf("search used agent id %q, want agent-1", got)
		}
	}
}

func TestRetrieveCapsAtK(t *testing.T) {
	searcher := &stubSearcher{byDomain: map[string][]Item{
		"hotels": {item("hotels", "h-1", "a"), item("hotels", "h-2", "b")},
		"tours":  {item("tours", "t-1", "c"), item("tours", "t-2", "d")},
	}}
	agg := newTestAggregator(t, &stubResolver{agentID: "agent-1"}, searcher, 3)

	items := agg.Retrieve(context.Background(), req("rome"))
	if len(items) != 3 {
		t.Fatalf("got %d items, want cap of 3", len(items))
	}
}

func TestRetrieveNonPositiveKStillCaps(t *testing.T) {
	searcher := &stubSearcher{byDomain: map[string][]Item{
		"hotels": {item("hotels", "h-1", "a"), item("hotels", "h-2", "b"), item("hotels", "h-3", "c")},
		"tours":  {item("tours", "t-1", "d"), item("tours", "t-2", "e"), item("tours", "t-3", "f")},
	}}
	agg := newTestAggregator(t, &stubResolver{agentID: "agent-1"}, searcher, 0)

	items := agg.Retrieve(context.Background(), req("rome"))
	if len(items) != defaultTopK {
		t.Fatalf("got %d items, want default cap of %d", len(items), defaultTopK)
	}
}

func TestRetrieveToleratesDomainFailure(t *testing.T) {
	searcher := &stubSearcher{
		byDomain: map[string][]Item{
			"tours": {item("tours", "t-1", "Vatican tour")},
		},
		errs: map[string]error{"hotels": errors.New("connection refused")},
	}
	agg := newTestAggregator(t, &stubResolver{agentID: "agent-1"}, searcher, 5)

	items := agg.Retrieve(context.Background(), req("rome"))
	if len(items) != 1 || items[0].Metadata.SourceCategory != "tours" {
		t.Fatalf("got %+v, want the single tours item", items)
	}
}

func TestRetrieveAllDomainsFailYieldsEmpty(t *testing.T) {
	searcher := &stubSearcher{errs: map[string]error{
		"hotels": errors.New("down"),
		"tours":  errors.New("down"),
	}}
	agg := newTestAggregator(t, &stubResolver{agentID: "agent-1"}, searcher, 5)

	if items := agg.Retrieve(context.Background(), req("rome")); len(items) != 0 {
		t.Fatalf("got %+v, want no items", items)
	}
}

func TestRetrieveResolverFailureYieldsEmpty(t *testing.T) {
	searcher := &stubSearcher{byDomain: map[string][]Item{
		"hotels": {item("hotels", "h-1", "should not appear")},
	}}
	agg := newTestAggregator(t, &stubResolver{err: errors.New("not found")}, searcher, 5)

	if items := agg.Retrieve(context.Background(), req("rome")); len(items) != 0 {
		t.Fatalf("got %+v, want no items", items)
	}
	if len(searcher.recordedAgentIDs()) != 0 {
		t.Error("search ran despite resolver failure")
	}
}

func TestRetrieveEmptyQuery(t *testing.T) {
	searcher := &stubSearcher{}
	agg := newTestAggregator(t, &stubResolver{agentID: "agent-1"}, searcher, 5)

	if items := agg.Retrieve(context.Background(), req("")); len(items) != 0 {
		t.Fatalf("got %+v, want no items for empty query", items)
	}
}
