package tui

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/crmkit/wachat/internal/bus"
	"github.com/crmkit/wachat/internal/chat"
	"github.com/crmkit/wachat/internal/leads"
	"github.com/crmkit/wachat/internal/status"
	"github.com/crmkit/wachat/internal/sync"
	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"
	"go.uber.org/zap"
)

type promptMode int

const (
	promptNone promptMode = iota
	promptFilter
	promptSearch
	promptNewChat
	promptAttach
)

// App is the main TUI application shell. It owns no sync state: snapshots
// arrive over the bus and user intent goes back out through the engine.
type App struct {
	app     *tview.Application
	pages   *tview.Pages
	bus     *bus.Bus
	engine  *sync.Engine
	tracker *leads.Tracker
	logger  *zap.Logger
	flash   *Flash

	sidebar   *Sidebar
	thread    *Thread
	composer  *Composer
	authView  *AuthView
	statusBar *StatusBar
	prompt    *tview.InputField
	mode      promptMode

	chats []chat.Chat

	onStop  func()
	stopped atomic.Bool

	ctx    context.Context
	cancel context.CancelFunc
}

// NewApp creates the TUI application.
func NewApp(b *bus.Bus, engine *sync.Engine, tracker *leads.Tracker, sessionName string, pageSize int, logger *zap.Logger) *App {
	ctx, cancel := context.WithCancel(context.Background())

	a := &App{
		app:       tview.NewApplication(),
		pages:     tview.NewPages(),
		bus:       b,
		engine:    engine,
		tracker:   tracker,
		logger:    logger,
		flash:     &Flash{},
		sidebar:   NewSidebar(pageSize),
		thread:    NewThread(),
		composer:  NewComposer(),
		authView:  NewAuthView(),
		statusBar: NewStatusBar(),
		prompt:    tview.NewInputField().SetFieldWidth(0),
		ctx:       ctx,
		cancel:    cancel,
	}

	a.statusBar.SetSession(sessionName)
	a.statusBar.SetState(string(status.Disconnected))
	a.setupCallbacks()
	a.setupLayout()

	return a
}

// SetOnStop registers a callback invoked when the user quits.
func (a *App) SetOnStop(fn func()) { a.onStop = fn }

func (a *App) setupCallbacks() {
	a.sidebar.SetSelectedFunc(func(row, col int) {
		if c, ok := a.sidebar.SelectedChat(); ok {
			a.openChat(c)
		}
	})

	a.composer.SetOnSend(func(text, quotedID string) {
		chatID := a.thread.ChatID()
		if chatID == "" {
			return
		}
		a.engine.SendText(chatID, text, quotedID)
	})

	a.prompt.SetChangedFunc(func(text string) {
		// Filtering is live; the other modes apply on Enter.
		if a.mode == promptFilter {
			a.sidebar.SetQuery(text)
		}
	})

	a.prompt.SetDoneFunc(func(key tcell.Key) {
		if key != tcell.KeyEnter {
			return
		}
		text := a.prompt.GetText()
		switch a.mode {
		case promptSearch:
			n := a.thread.Search(text)
			a.statusBar.SetMatches(a.thread.MatchStatus())
			if n == 0 && text != "" {
				a.notify("no matches")
			}
			a.app.SetFocus(a.thread)
		case promptNewChat:
			a.startChat(text)
		case promptAttach:
			a.attachFile(text)
		default:
			a.app.SetFocus(a.sidebar)
		}
		a.closePrompt()
	})
}

func (a *App) setupLayout() {
	right := tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(a.thread, 0, 1, false).
		AddItem(a.composer, 3, 0, false)

	main := tview.NewFlex().
		AddItem(a.sidebar, 0, 1, true).
		AddItem(right, 0, 2, false)

	a.pages.AddPage("main", main, true, true)
	a.pages.AddPage("auth", a.authView, true, false)

	root := tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(a.pages, 0, 1, true).
		AddItem(a.prompt, 1, 0, false).
		AddItem(a.statusBar, 1, 0, false)

	a.app.SetRoot(root, true)
	a.app.SetInputCapture(a.handleKey)
}

func (a *App) handleKey(event *tcell.EventKey) *tcell.EventKey {
	focused := a.app.GetFocus()

	if event.Key() == tcell.KeyEscape {
		switch {
		case focused == a.prompt:
			if a.mode == promptFilter {
				a.sidebar.SetQuery("")
			}
			a.closePrompt()
			a.app.SetFocus(a.sidebar)
		case focused == a.composer.InputField && a.composer.Replying():
			a.composer.ClearReply()
		case focused == a.composer.InputField:
			a.app.SetFocus(a.thread)
		case focused == a.thread:
			if _, total := a.thread.MatchStatus(); total > 0 {
				a.thread.ClearSearch()
				a.statusBar.SetMatches(0, 0)
			} else {
				a.app.SetFocus(a.sidebar)
			}
		}
		return nil
	}

	// Text inputs own every other key.
	if _, ok := focused.(*tview.InputField); ok {
		return event
	}

	if event.Key() != tcell.KeyRune {
		return event
	}

	switch event.Rune() {
	case 'q':
		a.Stop()
		return nil
	case 'r':
		a.engine.Refresh()
		return nil
	case '1', '2', '3', '4':
		a.sidebar.SetCategory(chat.Category(event.Rune() - '1'))
		return nil
	case ']':
		a.sidebar.NextPage()
		return nil
	case '/':
		if focused == a.thread {
			a.openPrompt(promptSearch, " search log: ")
		} else {
			a.openPrompt(promptFilter, " filter: ")
		}
		return nil
	case 'n':
		if focused == a.thread {
			a.thread.NextMatch()
			a.statusBar.SetMatches(a.thread.MatchStatus())
			return nil
		}
	case 'N':
		if focused == a.thread {
			a.thread.PrevMatch()
			a.statusBar.SetMatches(a.thread.MatchStatus())
			return nil
		}
	case 'i':
		if a.thread.ChatID() != "" {
			a.app.SetFocus(a.composer.InputField)
			return nil
		}
	case 'R':
		if m, ok := a.thread.LastMessage(); ok {
			a.composer.SetReply(m.ID, chat.PreviewText(m))
			a.app.SetFocus(a.composer.InputField)
			return nil
		}
	case 'a':
		if a.thread.ChatID() != "" {
			a.openPrompt(promptAttach, " attach file path: ")
			return nil
		}
	case 'c':
		a.openPrompt(promptNewChat, " new chat, phone: ")
		return nil
	case 'l':
		a.createLead()
		return nil
	case 'X':
		a.engine.Logout()
		return nil
	}
	return event
}

func (a *App) openPrompt(mode promptMode, label string) {
	a.mode = mode
	a.prompt.SetLabel(label)
	a.prompt.SetText("")
	a.app.SetFocus(a.prompt)
}

func (a *App) closePrompt() {
	a.mode = promptNone
	a.prompt.SetLabel("")
	a.prompt.SetText("")
}

func (a *App) openChat(c chat.Chat) {
	name := c.Name
	if name == "" {
		name = leads.FormatNumber(c.ID)
	}
	a.thread.SetChat(c.ID, name)
	a.composer.SwitchChat(c.ID)
	a.statusBar.SetMatches(0, 0)
	a.engine.Select(c.ID)
	a.app.SetFocus(a.thread)
}

func (a *App) startChat(phone string) {
	id := a.engine.NewChat(phone)
	if id == "" {
		a.notify("no digits in phone number")
		return
	}
	if c, ok := a.findChat(id); ok {
		a.openChat(c)
	}
}

func (a *App) attachFile(path string) {
	chatID := a.thread.ChatID()
	if chatID == "" || path == "" {
		return
	}
	data, err := os.ReadFile(path)
	if err != nil {
		a.notify("attach failed: " + err.Error())
		return
	}
	a.engine.SendMedia(chatID, filepath.Base(path), data, "")
}

func (a *App) createLead() {
	c, ok := a.sidebar.SelectedChat()
	if !ok {
		return
	}
	if c.IsGroup {
		a.notify("groups cannot become leads")
		return
	}
	go func() {
		err := a.tracker.CreateLead(a.ctx, c)
		switch {
		case errors.Is(err, leads.ErrAlreadyTracked):
			a.queueNotify("already a lead")
		case errors.Is(err, leads.ErrEmptyKey):
			a.queueNotify("no phone number on this chat")
		case err != nil:
			a.queueNotify("lead creation failed: " + err.Error())
		default:
			a.queueNotify("lead created")
		}
	}()
}

func (a *App) findChat(id string) (chat.Chat, bool) {
	for _, c := range a.chats {
		if c.ID == id {
			return c, true
		}
	}
	return chat.Chat{}, false
}

func (a *App) notify(msg string) {
	a.flash.Set(msg, 5*time.Second)
	a.statusBar.SetFlash(a.flash.Get())
}

// queueNotify is notify for goroutines outside the UI thread.
func (a *App) queueNotify(msg string) {
	a.app.QueueUpdateDraw(func() { a.notify(msg) })
}

// Run starts the event pump and blocks in the tview main loop.
func (a *App) Run() error {
	events, unsub := a.bus.Subscribe("view.", 256)
	states, unsubStates := a.bus.Subscribe("session.", 64)

	go func() {
		defer unsub()
		defer unsubStates()
		ticker := time.NewTicker(time.Second)
		defer ticker.Stop()
		for {
			select {
			case evt := <-events:
				a.handleViewEvent(evt)
			case evt := <-states:
				if sc, ok := evt.Payload.(status.StateChange); ok {
					a.app.QueueUpdateDraw(func() {
						a.statusBar.SetState(string(sc.To))
					})
				}
			case <-ticker.C:
				a.app.QueueUpdateDraw(func() {
					a.statusBar.SetFlash(a.flash.Get())
				})
			case <-a.ctx.Done():
				return
			}
		}
	}()

	return a.app.Run()
}

func (a *App) handleViewEvent(evt bus.Event) {
	switch evt.Kind {
	case bus.ViewChats:
		upd, ok := evt.Payload.(sync.ChatsUpdate)
		if !ok {
			return
		}
		a.app.QueueUpdateDraw(func() {
			a.chats = upd.Chats
			a.sidebar.Update(upd.Chats)
		})

	case bus.ViewLog:
		upd, ok := evt.Payload.(sync.LogUpdate)
		if !ok {
			return
		}
		a.app.QueueUpdateDraw(func() {
			if upd.ChatID == "" {
				a.thread.SetChat("", "")
				a.composer.SwitchChat("")
				a.statusBar.SetMatches(0, 0)
				return
			}
			if upd.ChatID != a.thread.ChatID() {
				return
			}
			a.thread.Update(upd.Messages, upd.ScrollToEnd)
			a.statusBar.SetMatches(a.thread.MatchStatus())
		})

	case bus.ViewQR:
		code, ok := evt.Payload.(string)
		if !ok {
			return
		}
		a.app.QueueUpdateDraw(func() {
			a.authView.ShowQR(code)
			a.pages.SwitchToPage("auth")
		})

	case bus.ViewReady:
		a.app.QueueUpdateDraw(func() {
			a.pages.SwitchToPage("main")
			a.app.SetFocus(a.sidebar)
		})

	case bus.ViewNotice:
		msg, ok := evt.Payload.(string)
		if !ok {
			return
		}
		a.queueNotify(msg)

	case bus.ViewSendFailed:
		f, ok := evt.Payload.(sync.SendFailure)
		if !ok {
			return
		}
		a.app.QueueUpdateDraw(func() {
			a.composer.Restore(f.ChatID, f.Text, f.QuotedID)
			a.notify("message not sent: " + f.Reason)
		})
	}
}

// Stop gracefully shuts down the TUI. Safe to call more than once.
func (a *App) Stop() {
	if !a.stopped.CompareAndSwap(false, true) {
		return
	}
	a.cancel()
	a.app.Stop()
	if a.onStop != nil {
		a.onStop()
	}
}
