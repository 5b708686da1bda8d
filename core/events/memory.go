package events

// KindMemorySummarized identifies working memory compaction.
const KindMemorySummarized Kind = "memory.summarized"

// MemorySummarized carries the updated notes after compaction.
type MemorySummarized struct {
	Base
	Notes   string
	Entries int
}

// NewMemorySummarized creates a memory summarized event.
func NewMemorySummarized(notes string, entries int) MemorySummarized {
	return MemorySummarized{Base: NewBase(KindMemorySummarized), Notes: notes, Entries: entries}
}
