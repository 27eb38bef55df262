// Package search implements in-log substring search: occurrence scanning over
// a conversation's ordered message log, a cyclic navigation cursor, and run
// segmentation of message bodies for highlight rendering.
package search

import (
	"strings"

	"github.com/crmkit/wachat/internal/chat"
)

// Match locates one occurrence of the query inside a message body.
type Match struct {
	MessageID string
	Offset    int
}

// Scan finds every non-overlapping, case-insensitive occurrence of query in
// the bodies of log, in log order then left-to-right. An empty or
// whitespace-only query yields no matches. Occurrences are taken from the
// same segmentation the renderer highlights with, so a cursor over the
// result always lines up one-to-one with Segment's matched runs.
func Scan(log []chat.Message, query string) []Match {
	if strings.TrimSpace(query) == "" {
		return nil
	}
	var out []Match
	for _, m := range log {
		off := 0
		for _, r := range Segment(m.Body, query) {
			if r.Matched {
				out = append(out, Match{MessageID: m.ID, Offset: off})
			}
			off += len(r.Text)
		}
	}
	return out
}

// Cursor tracks the active match within a Match Set and navigates it
// cyclically. A nil or empty set has no active match and navigation no-ops.
type Cursor struct {
	matches []Match
	idx     int
}

// NewCursor builds a cursor over the given matches, active on the first match
// when the set is non-empty.
func NewCursor(matches []Match) *Cursor {
	c := &Cursor{matches: matches, idx: -1}
	if len(matches) > 0 {
		c.idx = 0
	}
	return c
}

// Len returns the number of matches.
func (c *Cursor) Len() int { return len(c.matches) }

// Index returns the zero-based active match index, or -1 when there is none.
func (c *Cursor) Index() int { return c.idx }

// Active returns the current match, if any.
func (c *Cursor) Active() (Match, bool) {
	if c.idx < 0 || c.idx >= len(c.matches) {
		return Match{}, false
	}
	return c.matches[c.idx], true
}

// Next advances to the following match, wrapping to the first.
func (c *Cursor) Next() (Match, bool) {
	if len(c.matches) == 0 {
		return Match{}, false
	}
	c.idx = (c.idx + 1) % len(c.matches)
	return c.matches[c.idx], true
}

// Prev retreats to the preceding match, wrapping to the last.
func (c *Cursor) Prev() (Match, bool) {
	if len(c.matches) == 0 {
		return Match{}, false
	}
	c.idx = (c.idx - 1 + len(c.matches)) % len(c.matches)
	return c.matches[c.idx], true
}

// Run is one segment of a message body: either literal text or a matched
// occurrence of the query, with the original casing preserved.
type Run struct {
	Text    string
	Matched bool
}

// Segment splits text into an ordered, gap-free sequence of literal and
// matched runs covering the string exactly once. Matching is case-insensitive
// and non-overlapping; an empty query yields a single literal run.
func Segment(text, query string) []Run {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return []Run{{Text: text}}
	}
	lower := strings.ToLower(text)
	if len(lower) != len(text) {
		// Case folding changed byte offsets; skip highlighting rather than
		// slice at misaligned positions.
		return []Run{{Text: text}}
	}

	var out []Run
	last := 0
	for i := 0; ; {
		p := strings.Index(lower[i:], q)
		if p < 0 {
			break
		}
		start := i + p
		end := start + len(q)
		if start > last {
			out = append(out, Run{Text: text[last:start]})
		}
		out = append(out, Run{Text: text[start:end], Matched: true})
		last = end
		i = end
	}
	if last < len(text) {
		out = append(out, Run{Text: text[last:]})
	}
	if len(out) == 0 {
		out = append(out, Run{Text: text})
	}
	return out
}
