// Package cache holds the per-conversation message logs. Each log is an
// ordered, deduplicated slice replaced wholesale on fetch and grown by
// idempotent appends from the push stream; logs live for the process lifetime.
package cache

import (
	"sync"

	"github.com/crmkit/wachat/internal/chat"
)

// Store maps conversation ids to their message logs.
type Store struct {
	mu   sync.RWMutex
	logs map[string][]chat.Message
}

// New creates an empty store.
func New() *Store {
	return &Store{logs: make(map[string][]chat.Message)}
}

// Get returns the log for a conversation, if one has been loaded.
func (s *Store) Get(chatID string) ([]chat.Message, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	log, ok := s.logs[chatID]
	return log, ok
}

// Init creates an empty log for a conversation, used for locally created
// chats that have no history yet. Existing logs are left alone.
func (s *Store) Init(chatID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.logs[chatID]; !ok {
		s.logs[chatID] = []chat.Message{}
	}
}

// Replace normalizes a fetched batch and installs it as the conversation's
// log, returning the normalized result.
func (s *Store) Replace(chatID string, batch []*chat.Message) []chat.Message {
	log := Normalize(batch)
	s.mu.Lock()
	s.logs[chatID] = log
	s.mu.Unlock()
	return log
}

// Append inserts a single message in timestamp order if its id is not already
// present. Returns the resulting log and whether anything was inserted.
// System-kind messages are rejected outright.
func (s *Store) Append(chatID string, m chat.Message) ([]chat.Message, bool) {
	if m.Type.IsSystem() {
		s.mu.RLock()
		defer s.mu.RUnlock()
		return s.logs[chatID], false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	prev := s.logs[chatID]
	for i := range prev {
		if prev[i].ID == m.ID {
			return prev, false
		}
	}

	// Insert after the last entry with a timestamp <= m's, preserving the
	// ascending order without disturbing equal-timestamp neighbors.
	pos := len(prev)
	for pos > 0 && prev[pos-1].Timestamp > m.Timestamp {
		pos--
	}
	next := make([]chat.Message, 0, len(prev)+1)
	next = append(next, prev[:pos]...)
	next = append(next, m)
	next = append(next, prev[pos:]...)
	s.logs[chatID] = next
	return next, true
}

// Normalize prepares an incoming batch for display: nil entries and
// system-kind messages are dropped, duplicates by id collapse to their first
// occurrence, and the result is stably sorted ascending by timestamp.
func Normalize(batch []*chat.Message) []chat.Message {
	out := make([]chat.Message, 0, len(batch))
	seen := make(map[string]struct{}, len(batch))
	for _, m := range batch {
		if m == nil || m.Type.IsSystem() {
			continue
		}
		if _, dup := seen[m.ID]; dup {
			continue
		}
		seen[m.ID] = struct{}{}
		out = append(out, *m)
	}
	stableSortByTimestamp(out)
	return out
}

func stableSortByTimestamp(msgs []chat.Message) {
	// Insertion sort keeps the relative order of equal timestamps; batches
	// are small (<= full fetch window).
	for i := 1; i < len(msgs); i++ {
		for j := i; j > 0 && msgs[j-1].Timestamp > msgs[j].Timestamp; j-- {
			msgs[j-1], msgs[j] = msgs[j], msgs[j-1]
		}
	}
}
