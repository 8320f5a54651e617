package session

import "time"

// Role identifies who produced a chat entry.
type Role string

const (
	RoleAgent     Role = "agent"
	RoleCandidate Role = "candidate"
)

// ChatEntry is one line of the interview transcript.
type ChatEntry struct {
	Role Role
	Text string
	At   time.Time
}

// ChatLog is the append-only interview transcript. Entries are never edited
// or removed. Not safe for concurrent use; the orchestrator loop owns it and
// hands out copies.
type ChatLog struct {
	entries []ChatEntry
}

// Append records one entry.
func (l *ChatLog) Append(e ChatEntry) {
	l.entries = append(l.entries, e)
}

// Len returns the entry count.
func (l *ChatLog) Len() int { return len(l.entries) }

// All returns a copy of the transcript in append order.
func (l *ChatLog) All() []ChatEntry {
	if len(l.entries) == 0 {
		return nil
	}
	return append([]ChatEntry(nil), l.entries...)
}
