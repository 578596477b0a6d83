package evidence

import (
	"fmt"
	"strings"
)

// NoDocumentsSentinel is the exact text generators receive when retrieval
// produced nothing. Prompts reference it verbatim, so it must not change.
const NoDocumentsSentinel = "No supporting documents were retrieved."

const (
	documentsHeader = "==================Documents============================="
	documentsFooter = "===============End of Documents========================="
	entrySeparator  = "************************"
)

// Format renders retrieved items as a delimited context block for prompts.
// It is total: any input, including none, yields a usable string.
func Format(items []Item) string {
	if len(items) == 0 {
		return NoDocumentsSentinel
	}

	var sb strings.Builder
	sb.WriteString(documentsHeader)
	sb.WriteString("\n")
	for _, item := range items {
		sb.WriteString(entrySeparator)
		sb.WriteString("\n")
		fmt.Fprintf(&sb, "Record ID: %s\n", item.Metadata.SourceID)
		fmt.Fprintf(&sb, "Category: %s\n", item.Metadata.SourceCategory)
		fmt.Fprintf(&sb, "Chunk: %d\n", item.Metadata.ChunkID)
		sb.WriteString(item.Content)
		sb.WriteString("\n")
	}
	sb.WriteString(documentsFooter)
	return sb.String()
}
