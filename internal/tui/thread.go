package tui

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/crmkit/wachat/internal/chat"
	"github.com/crmkit/wachat/internal/search"
	"github.com/rivo/tview"
)

// Thread renders one conversation's message log with day separators and
// in-log search highlighting.
type Thread struct {
	*tview.TextView
	chatID   string
	chatName string
	log      []chat.Message
	query    string
	cursor   *search.Cursor
	now      func() time.Time
}

// NewThread creates the message pane.
func NewThread() *Thread {
	tv := tview.NewTextView().
		SetDynamicColors(true).
		SetRegions(true).
		SetScrollable(true).
		SetWordWrap(true)
	tv.SetBorder(true)
	tv.SetTitle(" Messages ")

	return &Thread{
		TextView: tv,
		now:      time.Now,
	}
}

// SetChat switches the pane to another conversation and drops search state.
func (th *Thread) SetChat(id, name string) {
	th.chatID = id
	th.chatName = name
	th.log = nil
	th.query = ""
	th.cursor = nil
	th.SetTitle(fmt.Sprintf(" %s ", tview.Escape(sanitizeForTerminal(name))))
	th.Clear()
}

// ChatID returns the conversation currently shown.
func (th *Thread) ChatID() string { return th.chatID }

// Update replaces the log. An active search re-scans the new log, keeping the
// match counter honest after appends.
func (th *Thread) Update(log []chat.Message, scrollEnd bool) {
	th.log = log
	if th.query != "" {
		th.cursor = search.NewCursor(search.Scan(log, th.query))
	}
	th.render()
	if th.cursor != nil {
		th.highlightActive()
	} else if scrollEnd {
		th.ScrollToEnd()
	}
}

// Search starts or updates an in-log search and returns the match count.
func (th *Thread) Search(query string) int {
	th.query = query
	if strings.TrimSpace(query) == "" {
		th.ClearSearch()
		return 0
	}
	th.cursor = search.NewCursor(search.Scan(th.log, query))
	th.render()
	th.highlightActive()
	return th.cursor.Len()
}

// NextMatch moves the active match forward, wrapping past the last.
func (th *Thread) NextMatch() {
	if th.cursor == nil {
		return
	}
	th.cursor.Next()
	th.highlightActive()
}

// PrevMatch moves the active match backward, wrapping past the first.
func (th *Thread) PrevMatch() {
	if th.cursor == nil {
		return
	}
	th.cursor.Prev()
	th.highlightActive()
}

// MatchStatus returns the 1-based active match and the total, or (0, 0) when
// no search is running.
func (th *Thread) MatchStatus() (int, int) {
	if th.cursor == nil {
		return 0, 0
	}
	return th.cursor.Index() + 1, th.cursor.Len()
}

// LastMessage returns the newest entry in the log, if any.
func (th *Thread) LastMessage() (chat.Message, bool) {
	if len(th.log) == 0 {
		return chat.Message{}, false
	}
	return th.log[len(th.log)-1], true
}

// ClearSearch drops the search state and re-renders plain.
func (th *Thread) ClearSearch() {
	th.query = ""
	th.cursor = nil
	th.Highlight()
	th.render()
	th.ScrollToEnd()
}

func (th *Thread) render() {
	th.Clear()
	_, _ = fmt.Fprint(th.TextView, renderLog(th.log, th.query, th.now()))
}

func (th *Thread) highlightActive() {
	if th.cursor == nil || th.cursor.Index() < 0 {
		th.Highlight()
		return
	}
	th.Highlight(strconv.Itoa(th.cursor.Index()))
	th.ScrollToHighlight()
}

// renderLog builds the tview markup for a message log. Matched substrings are
// wrapped in region tags numbered in scan order, so highlighting region N
// jumps to the Nth match.
func renderLog(log []chat.Message, query string, now time.Time) string {
	var sb strings.Builder
	matchIdx := 0
	var prevDay string

	for _, m := range log {
		day := dayLabel(m.Timestamp, now)
		if day != prevDay {
			fmt.Fprintf(&sb, "[::d]--- %s ---[-:-:-]\n", day)
			prevDay = day
		}

		sender := m.SenderName
		if m.FromMe {
			sender = "You"
		}
		if sender == "" {
			sender = m.ChatID
		}
		fmt.Fprintf(&sb, "[::b]%s[-:-:-] [::d]%s[-:-:-]\n",
			tview.Escape(sanitizeForTerminal(sender)), clock(m.Timestamp))

		if m.QuotedBody != "" {
			fmt.Fprintf(&sb, "[::d]> %s[-:-:-]\n", tview.Escape(sanitizeForTerminal(m.QuotedBody)))
		}

		if note := attachmentNote(m); note != "" {
			sb.WriteString("[::d]" + note + "[-:-:-]\n")
		}

		if m.Body != "" {
			for _, run := range search.Segment(m.Body, query) {
				text := tview.Escape(sanitizeForTerminal(run.Text))
				if run.Matched {
					fmt.Fprintf(&sb, `["%d"][black:yellow]%s[-:-][""]`, matchIdx, text)
					matchIdx++
				} else {
					sb.WriteString(text)
				}
			}
			sb.WriteString("\n")
		}
		sb.WriteString("\n")
	}
	return sb.String()
}

func attachmentNote(m chat.Message) string {
	switch {
	case m.Location != nil:
		return fmt.Sprintf("(location %.5f, %.5f)", m.Location.Latitude, m.Location.Longitude)
	case m.VCard != "":
		return "(contact card)"
	case m.Media != nil:
		name := m.Media.Filename
		if name == "" {
			name = m.Media.MimeType
		}
		return fmt.Sprintf("(%s) %s", m.Type, tview.Escape(sanitizeForTerminal(name)))
	case m.Body == "" && m.Type != chat.TypeText && m.Type != chat.TypeUnknown:
		return "(" + string(m.Type) + ")"
	default:
		return ""
	}
}
