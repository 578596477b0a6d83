package evidence

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/firebase/genkit/go/ai"
	"golang.org/x/sync/errgroup"

	"github.com/tuananhhust05/chatbot-visitrome/internal/chatql"
)

// AgentResolver maps a conversation to the agent whose knowledge it searches.
type AgentResolver interface {
	AgentID(ctx context.Context, conversationID string) (string, error)
}

// Searcher runs a similarity search in one knowledge domain.
type Searcher interface {
	Search(ctx context.Context, domain, agentID string, embedding []float32, k int) ([]Item, error)
}

// Aggregator fans a query out across all knowledge domains and merges the
// results into at most k unique items.
//
// Retrieval is best-effort: any failure (agent lookup, embedding, a domain
// search) degrades to fewer or zero items rather than failing the turn.
type Aggregator struct {
	resolver AgentResolver
	searcher Searcher
	embedder ai.Embedder
	domains  []string
	k        int
	logger   *slog.Logger
}

// defaultTopK caps results when the caller passes a non-positive k.
const defaultTopK = 3

// NewAggregator creates an evidence aggregator over the given domains.
// A non-positive k would never hit the merge cap, so it is replaced
// with defaultTopK.
func NewAggregator(resolver AgentResolver, searcher Searcher, embedder ai.Embedder, domains []string, k int, logger *slog.Logger) *Aggregator {
	if k < 1 {
		k = defaultTopK
	}
	return &Aggregator{
		resolver: resolver,
		searcher: searcher,
		embedder: embedder,
		domains:  domains,
		k:        k,
		logger:   logger,
	}
}

// Retrieve returns up to k unique evidence items for the request.
// Duplicate contents across domains are dropped, first occurrence wins,
// with domains merged in configured order for determinism.
func (a *Aggregator) Retrieve(ctx context.Context, req chatql.Request) []Item {
	if req.Text == "" {
		return nil
	}

	agentID, err := a.resolver.AgentID(ctx, req.ConversationID)
	if err != nil {
		a.logger.Warn("resolving agent for retrieval",
			"conversation_id", req.ConversationID,
			"error", err)
		return nil
	}

	embedding, err := a.embedQuery(ctx, req.Text)
	if err != nil {
		a.logger.Warn("embedding query", "error", err)
		return nil
	}

	// Search each domain concurrently. Workers return nil on failure so one
	// broken domain never cancels its siblings; it just contributes nothing.
	results := make([][]Item, len(a.domains))
	group, groupCtx := errgroup.WithContext(ctx)
	for i, domain := range a.domains {
		group.Go(func() error {
			items, err := a.searcher.Search(groupCtx, domain, agentID, embedding, a.k)
			if err != nil {
				a.logger.Warn("domain search failed",
					"domain", domain,
					"agent_id", agentID,
					"error", err)
				return nil
			}
			results[i] = items
			return nil
		})
	}
	_ = group.Wait()

	seen := make(map[string]struct{})
	var merged []Item
	for _, items := range results {
		for _, item := range items {
			if _, dup := seen[item.Content]; dup {
				continue
			}
			seen[item.Content] = struct{}{}
			merged = append(merged, item)
			if len(merged) == a.k {
				return merged
			}
		}
	}
	return merged
}

// embedQuery runs the embedder in its own goroutine so cancellation is
// honored even if the underlying client ignores the context.
func (a *Aggregator) embedQuery(ctx context.Context, text string) ([]float32, error) {
	type embedResult struct {
		vec []float32
		err error
	}
	ch := make(chan embedResult, 1)

	go func() {
		resp, err := a.embedder.Embed(ctx, &ai.EmbedRequest{
			Input: []*ai.Document{
				{Content: []*ai.Part{ai.NewTextPart(text)}},
			},
		})
		if err != nil {
			ch <- embedResult{err: err}
			return
		}
		if len(resp.Embeddings) == 0 || len(resp.Embeddings[0].Embedding) == 0 {
			ch <- embedResult{err: fmt.Errorf("empty embedding returned")}
			return
		}
		ch <- embedResult{vec: resp.Embeddings[0].Embedding}
	}()

	select {
	case res := <-ch:
		return res.vec, res.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
