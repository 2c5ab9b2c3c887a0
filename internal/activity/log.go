// Package activity provides an append-only, time-ordered record of discrete
// events observed during chat orchestration.
//
// The log is purely observational: nothing in the control flow depends on
// it. Entries are never edited or removed; the only read operation returns
// the full log or a suffix of the most recent N entries in original order.
package activity

import (
	"encoding/json"
	"sync"
	"time"
)

// Role identifies the origin of a logged event.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// IsValid reports whether r is a recognised role.
func (r Role) IsValid() bool {
	switch r {
	case RoleUser, RoleAssistant, RoleSystem:
		return true
	}
	return false
}

// Entry is a single logged event. Field order is part of the serialized
// representation and must not change.
type Entry struct {
	Timestamp time.Time `json:"timestamp"`
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
}

// Log is an append-only event record safe for concurrent use. The zero
// value is not usable; create instances with [New].
type Log struct {
	mu      sync.RWMutex
	entries []Entry

	// now stamps appended entries. Overridable in tests.
	now func() time.Time
}

// New returns an empty, ready-to-use Log.
func New() *Log {
	return &Log{now: time.Now}
}

// Append records one event with a server-assigned UTC timestamp.
func (l *Log) Append(role Role, content string) {
	stamp := l.now().UTC()

	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, Entry{
		Timestamp: stamp,
		Role:      role,
		Content:   content,
	})
}

// Entries returns the last limit entries in insertion order. A limit <= 0
// or a limit at least the log size returns the whole log. The returned
// slice is a copy; mutating it does not affect the log.
func (l *Log) Entries(limit int) []Entry {
	l.mu.RLock()
	defer l.mu.RUnlock()

	start := 0
	if limit > 0 && limit < len(l.entries) {
		start = len(l.entries) - limit
	}

	out := make([]Entry, len(l.entries)-start)
	copy(out, l.entries[start:])
	return out
}

// Len returns the number of entries recorded so far.
func (l *Log) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.entries)
}

// JSON returns the last limit entries serialized as an indented JSON array,
// preserving field order (timestamp, role, content). A limit <= 0 returns
// the whole log.
func (l *Log) JSON(limit int) (string, error) {
	data, err := json.MarshalIndent(l.Entries(limit), "", "  ")
	if err != nil {
		return "", err
	}
	return string(data), nil
}
