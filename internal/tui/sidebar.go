package tui

import (
	"fmt"
	"time"

	"github.com/crmkit/wachat/internal/chat"
	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"
)

// Sidebar is the conversation list: sorted, filtered by category and query,
// and paged so a huge account does not render thousands of rows.
type Sidebar struct {
	*tview.Table
	chats    []chat.Chat
	visible  []chat.Chat
	category chat.Category
	query    string
	page     int
	pageSize int
	total    int
	now      func() time.Time
}

// NewSidebar creates the conversation list table.
func NewSidebar(pageSize int) *Sidebar {
	table := tview.NewTable().
		SetSelectable(true, false).
		SetBorders(false).
		SetFixed(1, 0)
	table.SetBorder(true)
	table.SetSelectedStyle(tcell.StyleDefault.
		Foreground(tcell.ColorBlack).
		Background(tcell.ColorWhite))
	table.SetTitle(" Chats ")

	return &Sidebar{
		Table:    table,
		pageSize: pageSize,
		now:      time.Now,
	}
}

// Update replaces the backing snapshot and re-renders.
func (s *Sidebar) Update(chats []chat.Chat) {
	s.chats = chats
	s.render()
}

// SetCategory switches the tab filter and rewinds paging.
func (s *Sidebar) SetCategory(cat chat.Category) {
	s.category = cat
	s.page = 0
	s.render()
}

// Category returns the active tab filter.
func (s *Sidebar) Category() chat.Category { return s.category }

// SetQuery sets the name filter and rewinds paging.
func (s *Sidebar) SetQuery(query string) {
	s.query = query
	s.page = 0
	s.render()
}

// Query returns the active name filter.
func (s *Sidebar) Query() string { return s.query }

// NextPage reveals another page of rows when more are hidden.
func (s *Sidebar) NextPage() {
	if len(s.visible) < s.total {
		s.page++
		s.render()
	}
}

// SelectedChat returns the conversation under the cursor, if any.
func (s *Sidebar) SelectedChat() (chat.Chat, bool) {
	row, _ := s.GetSelection()
	idx := row - 1
	if idx < 0 || idx >= len(s.visible) {
		return chat.Chat{}, false
	}
	return s.visible[idx], true
}

func (s *Sidebar) render() {
	row, _ := s.GetSelection()
	s.Clear()

	sorted := chat.Sort(s.chats)
	filtered := chat.Filter(sorted, s.category, s.query)
	s.total = len(filtered)
	s.visible = chat.Page(filtered, s.page, s.pageSize)

	headers := []struct {
		text string
		exp  int
	}{
		{" NAME", 1},
		{" LAST MESSAGE", 2},
		{" TIME", 0},
		{" TAG", 0},
	}
	for col, h := range headers {
		cell := tview.NewTableCell(h.text).
			SetSelectable(false).
			SetAttributes(tcell.AttrBold).
			SetExpansion(h.exp)
		s.SetCell(0, col, cell)
	}

	now := s.now()
	for i, c := range s.visible {
		name := c.Name
		if name == "" {
			name = c.ID
		}
		if c.Pinned {
			name = "* " + name
		}
		if c.UnreadCount > 0 {
			name = fmt.Sprintf("(%d) %s", c.UnreadCount, name)
		}

		tag := c.Status
		if tag == "" && c.IsGroup {
			tag = "group"
		}

		s.SetCell(i+1, 0, tview.NewTableCell(" "+tview.Escape(sanitizeForTerminal(name))).SetExpansion(1))
		s.SetCell(i+1, 1, tview.NewTableCell(" "+tview.Escape(sanitizeForTerminal(c.LastPreview))).SetExpansion(2))
		s.SetCell(i+1, 2, tview.NewTableCell(listTimestamp(c.LastTS, now)).SetAlign(tview.AlignRight))
		s.SetCell(i+1, 3, tview.NewTableCell(tag).SetAlign(tview.AlignRight))
	}

	title := fmt.Sprintf(" Chats [%s] %d/%d ", categoryName(s.category), len(s.visible), s.total)
	if s.query != "" {
		title += fmt.Sprintf("filter: %s ", s.query)
	}
	if len(s.visible) < s.total {
		title += "(] for more) "
	}
	s.SetTitle(title)

	if row > len(s.visible) {
		row = len(s.visible)
	}
	if row < 1 {
		row = 1
	}
	s.Select(row, 0)
}

func categoryName(cat chat.Category) string {
	switch cat {
	case chat.CategoryUnread:
		return "unread"
	case chat.CategoryGroups:
		return "groups"
	case chat.CategoryDirect:
		return "direct"
	default:
		return "all"
	}
}
