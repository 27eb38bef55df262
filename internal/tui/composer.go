package tui

import (
	"fmt"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"
)

// Composer is the message input. Unsent text survives switching away from a
// conversation and comes back when the user returns to it.
type Composer struct {
	*tview.InputField
	current      string
	drafts       map[string]string
	replyToID    string
	replyPreview string
	onSend       func(text, quotedID string)
}

// NewComposer creates the message input field.
func NewComposer() *Composer {
	input := tview.NewInputField().
		SetLabel(" > ").
		SetFieldWidth(0)
	input.SetBorder(true)
	input.SetTitle(" Compose (i to focus) ")

	c := &Composer{
		InputField: input,
		drafts:     make(map[string]string),
	}

	input.SetDoneFunc(func(key tcell.Key) {
		if key != tcell.KeyEnter || c.onSend == nil {
			return
		}
		text := c.GetText()
		if text == "" {
			return
		}
		c.onSend(text, c.replyToID)
		c.SetText("")
		delete(c.drafts, c.current)
		c.ClearReply()
	})

	return c
}

// SetOnSend sets the send callback; quotedID is empty unless replying.
func (c *Composer) SetOnSend(fn func(text, quotedID string)) {
	c.onSend = fn
}

// SwitchChat stashes the current draft and restores the target's, if any.
func (c *Composer) SwitchChat(chatID string) {
	if c.current != "" {
		if text := c.GetText(); text != "" {
			c.drafts[c.current] = text
		} else {
			delete(c.drafts, c.current)
		}
	}
	c.current = chatID
	c.SetText(c.drafts[chatID])
	c.ClearReply()
}

// Restore puts a failed send back as a draft so the user can retry. Anything
// typed since the send wins over the restored text.
func (c *Composer) Restore(chatID, text, quotedID string) {
	if chatID != c.current {
		if _, busy := c.drafts[chatID]; !busy {
			c.drafts[chatID] = text
		}
		return
	}
	if c.GetText() == "" {
		c.SetText(text)
	}
	if quotedID != "" && !c.Replying() {
		c.SetReply(quotedID, "")
	}
}

// SetReply arms a reply to the given message; preview shows in the title.
func (c *Composer) SetReply(messageID, preview string) {
	c.replyToID = messageID
	c.replyPreview = preview
	if preview == "" {
		c.SetTitle(" Reply armed (Esc to cancel) ")
		return
	}
	if r := []rune(preview); len(r) > 40 {
		preview = string(r[:40]) + "..."
	}
	c.SetTitle(fmt.Sprintf(" Reply to: %s (Esc to cancel) ", tview.Escape(sanitizeForTerminal(preview))))
}

// ClearReply disarms an armed reply.
func (c *Composer) ClearReply() {
	c.replyToID = ""
	c.replyPreview = ""
	c.SetTitle(" Compose (i to focus) ")
}

// Replying reports whether a reply is armed.
func (c *Composer) Replying() bool { return c.replyToID != "" }
