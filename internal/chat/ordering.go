package chat

import (
	"slices"
	"strings"
)

// Category selects which conversations a view shows, applied before any
// free-text filtering.
type Category int

const (
	CategoryAll Category = iota
	CategoryUnread
	CategoryGroups
	CategoryDirect
)

// Compare orders two conversations for display: pinned first, then unread
// presence (count > 0, magnitude ignored), then last-message timestamp
// descending, then name ascending as a deterministic tiebreak.
func Compare(a, b Chat) int {
	if a.Pinned != b.Pinned {
		if a.Pinned {
			return -1
		}
		return 1
	}
	au, bu := a.UnreadCount > 0, b.UnreadCount > 0
	if au != bu {
		if au {
			return -1
		}
		return 1
	}
	if a.LastTS != b.LastTS {
		if a.LastTS > b.LastTS {
			return -1
		}
		return 1
	}
	return strings.Compare(a.Name, b.Name)
}

// Sort returns a new slice ordered by Compare.
func Sort(chats []Chat) []Chat {
	out := make([]Chat, len(chats))
	copy(out, chats)
	slices.SortStableFunc(out, Compare)
	return out
}

// Filter narrows the list to the category, then to rows whose name or id
// contains the query. Matching is case-insensitive with all whitespace
// removed from both sides of the comparison.
func Filter(chats []Chat, cat Category, query string) []Chat {
	var out []Chat
	q := squash(query)
	for _, c := range chats {
		switch cat {
		case CategoryUnread:
			if c.UnreadCount == 0 {
				continue
			}
		case CategoryGroups:
			if !c.IsGroup {
				continue
			}
		case CategoryDirect:
			if c.IsGroup {
				continue
			}
		}
		if q != "" && !strings.Contains(squash(c.Name), q) && !strings.Contains(squash(c.ID), q) {
			continue
		}
		out = append(out, c)
	}
	return out
}

// Page reveals the first page*pageSize entries of the list.
func Page(chats []Chat, page, pageSize int) []Chat {
	if page < 1 {
		page = 1
	}
	n := page * pageSize
	if n > len(chats) {
		n = len(chats)
	}
	return chats[:n]
}

func squash(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), ""))
}
