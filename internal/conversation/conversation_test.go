package conversation

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/tuananhhust05/chatbot-visitrome/internal/testutil"
)

func TestParseIDRejectsGarbage(t *testing.T) {
	for _, raw := range []string{"", "abc", "12.5", "１２"} {
		if _, err := parseID(raw); err == nil {
			t.Errorf("parseID(%q) accepted invalid id", raw)
		}
	}
	if id, err := parseID("42"); err != nil || id != 42 {
		t.Errorf("parseID(42) = %d, %v", id, err)
	}
}

func TestStoreIntegration(t *testing.T) {
	db, cleanup := testutil.SetupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewStore(db.Pool, testutil.Logger())

	conv, err := store.FindOrCreate(ctx, "+393331112222", "+390667778888")
	if err != nil {
		t.Fatalf("FindOrCreate: %v", err)
	}
	if conv.AgentID == "" {
		t.Fatal("new conversation has empty agent id")
	}

	again, err := store.FindOrCreate(ctx, "+393331112222", "+390667778888")
	if err != nil {
		t.Fatalf("FindOrCreate (repeat): %v", err)
	}
	if again.ID != conv.ID {
		t.Errorf("FindOrCreate created duplicate: %d vs %d", again.ID, conv.ID)
	}

	convID := fmt.Sprintf("%d", conv.ID)

	agentID, err := store.AgentID(ctx, convID)
	if err != nil {
		t.Fatalf("AgentID: %v", err)
	}
	if agentID != conv.AgentID {
		t.Errorf("AgentID = %q, want %q", agentID, conv.AgentID)
	}

	if _, err := store.AgentID(ctx, "999999"); !errors.Is(err, ErrNotFound) {
		t.Errorf("AgentID for missing conversation = %v, want ErrNotFound", err)
	}

	for i := range 12 {
		sender := "user"
		fromAI := false
		if i%2 == 1 {
			sender = "assistant"
			fromAI = true
		}
		content := fmt.Sprintf("message %d", i)
		if err := store.SaveMessage(ctx, convID, sender, content, fromAI); err != nil {
			t.Fatalf("SaveMessage %d: %v", i, err)
		}
	}

	history, err := store.History(ctx, convID, 10)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(history) != 10 {
		t.Fatalf("History returned %d messages, want 10", len(history))
	}
	// Newest first: the most recent message is "message 11".
	if history[0].Content != "message 11" {
		t.Errorf("first history entry = %q, want %q", history[0].Content, "message 11")
	}
	for i := 1; i < len(history); i++ {
		if history[i].ID >= history[i-1].ID {
			t.Fatalf("history not ordered newest first at index %d", i)
		}
	}
}
