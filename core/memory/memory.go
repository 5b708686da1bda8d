// Package memory holds the working memory of a soul: an ordered, append-only
// log of role-tagged entries that is passed through every generation step.
//
// WorkingMemory is a value type. Every operation that changes the memory
// returns a new WorkingMemory and leaves the receiver untouched, so a step
// that fails or is abandoned can always fall back to the memory it started
// with.
package memory

import (
	"maps"
	"slices"
)

type Role string

const (
	RoleSystem    Role = "system"
	RoleAssistant Role = "assistant"
	RoleUser      Role = "user"
)

// Entry is a single item of working memory.
type Entry struct {
	Role    Role
	Content string
	// Metadata is never interpreted by the language model, it is used to tag
	// entries (e.g. the invoking perception or a conversation summary).
	Metadata map[string]any
}

func (e Entry) clone() Entry {
	e.Metadata = maps.Clone(e.Metadata)
	return e
}

// Tagged reports whether the entry carries metadata key set to value.
func (e Entry) Tagged(key string, value any) bool {
	if e.Metadata == nil {
		return false
	}
	v, ok := e.Metadata[key]
	return ok && v == value
}

type WorkingMemory struct {
	soulName string
	entries  []Entry
}

func New(soulName string, entries ...Entry) WorkingMemory {
	m := WorkingMemory{soulName: soulName}
	return m.With(entries...)
}

func (m WorkingMemory) SoulName() string { return m.soulName }
func (m WorkingMemory) Len() int         { return len(m.entries) }

// Entries returns a copy of all entries, oldest first.
func (m WorkingMemory) Entries() []Entry {
	entries := make([]Entry, len(m.entries))
	for i, entry := range m.entries {
		entries[i] = entry.clone()
	}
	return entries
}

func (m WorkingMemory) At(i int) (Entry, bool) {
	if i < 0 || i >= len(m.entries) {
		return Entry{}, false
	}
	return m.entries[i].clone(), true
}

func (m WorkingMemory) Last() (Entry, bool) {
	return m.At(len(m.entries) - 1)
}

// With returns a new memory with entries appended.
func (m WorkingMemory) With(entries ...Entry) WorkingMemory {
	next := WorkingMemory{
		soulName: m.soulName,
		entries:  make([]Entry, 0, len(m.entries)+len(entries)),
	}
	next.entries = append(next.entries, m.entries...)
	for _, entry := range entries {
		next.entries = append(next.entries, entry.clone())
	}
	return next
}

// WithoutLast returns a new memory with the n most recent entries removed.
// Trimming more entries than exist yields an empty memory.
func (m WorkingMemory) WithoutLast(n int) WorkingMemory {
	if n <= 0 {
		return m.With()
	}
	keep := max(len(m.entries)-n, 0)
	return WorkingMemory{soulName: m.soulName, entries: slices.Clone(m.entries[:keep])}
}

// Compacted returns a memory made of the first entry, the summary entry and
// the keepLast most recent entries. Entries overlapping the first entry are
// not repeated.
func (m WorkingMemory) Compacted(summary Entry, keepLast int) WorkingMemory {
	if len(m.entries) == 0 {
		return New(m.soulName, summary)
	}

	tailStart := max(len(m.entries)-keepLast, 1)
	next := New(m.soulName, m.entries[0], summary)
	return next.With(m.entries[tailStart:]...)
}

// Equal reports whether both memories hold the same entries in the same
// order.
func (m WorkingMemory) Equal(other WorkingMemory) bool {
	if m.soulName != other.soulName || len(m.entries) != len(other.entries) {
		return false
	}
	for i := range m.entries {
		a, b := m.entries[i], other.entries[i]
		if a.Role != b.Role || a.Content != b.Content || !maps.Equal(a.Metadata, b.Metadata) {
			return false
		}
	}
	return true
}
