package transfer

import "time"

// ChatEntry is one line of the session's chat history.
type ChatEntry struct {
	From  string
	Text  string
	At    time.Time
	Local bool
}

// Transcript holds the chat history of a single session. It lives and
// dies with the session; nothing is persisted.
type Transcript struct {
	entries []ChatEntry
}

func (t *Transcript) Add(entry ChatEntry) {
	t.entries = append(t.entries, entry)
}

// Entries returns a copy of the history in arrival order.
func (t *Transcript) Entries() []ChatEntry {
	out := make([]ChatEntry, len(t.entries))
	copy(out, t.entries)
	return out
}

func (t *Transcript) Len() int { return len(t.entries) }

// Clear drops the history, for when a session ends.
func (t *Transcript) Clear() { t.entries = nil }
