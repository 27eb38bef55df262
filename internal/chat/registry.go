package chat

import (
	"strings"
	"sync"
)

// Registry owns the canonical conversation snapshot. Every mutation builds a
// fresh slice and swaps it in whole, so a reader holding a snapshot never
// observes a half-applied update. Field-absent-means-untouched merge semantics
// guarantee a partial record can add information but never erase it.
type Registry struct {
	mu            sync.RWMutex
	chats         []Chat
	defaultAvatar string
}

// NewRegistry creates an empty registry. defaultAvatar seeds synthesized
// stubs and is re-stamped onto every record on avatar invalidation.
func NewRegistry(defaultAvatar string) *Registry {
	return &Registry{defaultAvatar: defaultAvatar}
}

// Snapshot returns the current conversation list. The slice is shared with
// the registry and must not be mutated by callers.
func (r *Registry) Snapshot() []Chat {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.chats
}

// Get returns the conversation with the given id, if known.
func (r *Registry) Get(id string) (Chat, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, c := range r.chats {
		if c.ID == id {
			return c, true
		}
	}
	return Chat{}, false
}

// Merge upserts a batch of partial records (a bulk pull) into the snapshot
// and returns the new snapshot. Unknown ids insert; fields a record does not
// mention keep their existing values.
func (r *Registry) Merge(patches []Patch) []Chat {
	r.mu.Lock()
	defer r.mu.Unlock()

	next := make([]Chat, len(r.chats))
	copy(next, r.chats)

	for _, p := range patches {
		if p.ID == "" {
			continue
		}
		if i := indexOf(next, p.ID); i >= 0 {
			apply(&next[i], p)
		} else {
			c := r.stub(p.ID)
			apply(&c, p)
			next = append(next, c)
		}
	}

	r.chats = next
	return next
}

// ApplyPatch merges a single partial record, synthesizing a stub conversation
// first when the id is unknown. Returns the new snapshot.
func (r *Registry) ApplyPatch(p Patch) []Chat {
	return r.Merge([]Patch{p})
}

// PatchExisting merges a partial record only if the conversation is already
// known; unknown ids are ignored rather than synthesized. Used for locally
// derived updates (fetch previews, unread resets) that must never create a
// conversation from message-only data.
func (r *Registry) PatchExisting(p Patch) ([]Chat, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	i := indexOf(r.chats, p.ID)
	if i < 0 {
		return r.chats, false
	}
	next := make([]Chat, len(r.chats))
	copy(next, r.chats)
	apply(&next[i], p)
	r.chats = next
	return next, true
}

// StampAvatars resets every conversation's avatar to the shared default and
// returns the new snapshot. The deployment serves one placeholder avatar, so
// invalidation is a uniform re-stamp.
func (r *Registry) StampAvatars() []Chat {
	r.mu.Lock()
	defer r.mu.Unlock()

	next := make([]Chat, len(r.chats))
	for i, c := range r.chats {
		c.AvatarURL = r.defaultAvatar
		next[i] = c
	}
	r.chats = next
	return next
}

// DefaultAvatar returns the shared placeholder avatar reference.
func (r *Registry) DefaultAvatar() string {
	return r.defaultAvatar
}

func (r *Registry) stub(id string) Chat {
	return Chat{
		ID:        id,
		Name:      "+" + digits(id),
		AvatarURL: r.defaultAvatar,
	}
}

func indexOf(chats []Chat, id string) int {
	for i := range chats {
		if chats[i].ID == id {
			return i
		}
	}
	return -1
}

func apply(c *Chat, p Patch) {
	if p.Name != nil {
		c.Name = *p.Name
	}
	if p.AvatarURL != nil {
		c.AvatarURL = *p.AvatarURL
	}
	if p.IsGroup != nil {
		c.IsGroup = *p.IsGroup
	}
	if p.Pinned != nil {
		c.Pinned = *p.Pinned
	}
	if p.UnreadCount != nil {
		c.UnreadCount = max(*p.UnreadCount, 0)
	}
	if p.LastPreview != nil {
		c.LastPreview = *p.LastPreview
	}
	if p.LastTS != nil {
		c.LastTS = *p.LastTS
	}
	if p.Status != nil {
		c.Status = *p.Status
	}
}

func digits(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
