package evidence

import (
	"strings"
	"testing"
)

func TestFormatEmpty(t *testing.T) {
	if got := Format(nil); got != NoDocumentsSentinel {
		t.Errorf("Format(nil) = %q, want sentinel", got)
	}
	if got := Format([]Item{}); got != NoDocumentsSentinel {
		t.Errorf("Format(empty) = %q, want sentinel", got)
	}
}

func TestFormatRendersEveryItemInOrder(t *testing.T) {
	items := []Item{
		{Content: "Hotel Aurora, via Nazionale 12, from 120 EUR", Metadata: Metadata{SourceCategory: "hotels", SourceID: "h-1", ChunkID: 0}},
		{Content: "Colosseum guided tour, 3 hours, 45 EUR", Metadata: Metadata{SourceCategory: "tours", SourceID: "t-7", ChunkID: 2}},
	}

	out := Format(items)

	if !strings.HasPrefix(out, documentsHeader) {
		t.Error("output missing header")
	}
	if !strings.HasSuffix(out, documentsFooter) {
		t.Error("output missing footer")
	}
	if got := strings.Count(out, entrySeparator); got != len(items) {
		t.Errorf("found %d entry separators, want %d", got, len(items))
	}

	first := strings.Index(out, "Hotel Aurora")
	second := strings.Index(out, "Colosseum guided tour")
	if first < 0 || second < 0 {
		t.Fatal("item content missing from output")
	}
	if first > second {
		t.Error("items rendered out of order")
	}

	for _, want := range []string{"Record ID: h-1", "Category: hotels", "Chunk: 2"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q", want)
		}
	}
}
