package sync

import (
	"context"
	gosync "sync"
	"sync/atomic"
	"time"

	"github.com/crmkit/wachat/internal/bus"
	"github.com/crmkit/wachat/internal/cache"
	"github.com/crmkit/wachat/internal/chat"
	"github.com/crmkit/wachat/internal/config"
	"github.com/crmkit/wachat/internal/gateway"
	"github.com/crmkit/wachat/internal/status"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Gateway is the slice of the REST client the engine drives.
type Gateway interface {
	Chats(ctx context.Context) ([]chat.Patch, error)
	Messages(ctx context.Context, chatID string, limit int) ([]*chat.Message, error)
	MarkSeen(ctx context.Context, chatID string) error
	SendText(ctx context.Context, cmd gateway.TextCommand) error
	SendMedia(ctx context.Context, cmd gateway.MediaCommand) error
	Logout(ctx context.Context) error
	QR(ctx context.Context) (string, error)
}

// ChatsUpdate carries a fresh conversation-list snapshot to the view.
type ChatsUpdate struct {
	Chats []chat.Chat
}

// LogUpdate carries a conversation's message log to the view. A zero update
// clears the thread pane.
type LogUpdate struct {
	ChatID      string
	Messages    []chat.Message
	ScrollToEnd bool
}

// SendFailure tells the view a send did not go through, carrying everything
// needed to restore the draft for a manual retry.
type SendFailure struct {
	ChatID   string
	Text     string
	QuotedID string
	Reason   string
}

// Engine is the sync core: it consumes gateway push events, keeps the
// registry and message cache current, and publishes view snapshots. All
// list pulls converge through it so the debounce and the fetch generation
// token live in one place.
type Engine struct {
	gw       Gateway
	registry *chat.Registry
	cache    *cache.Store
	bus      *bus.Bus
	machine  *status.Machine
	logger   *zap.Logger
	cfg      config.SyncConfig
	gate     *Gate

	// fetchSeq is bumped on every conversation open; a two-phase fetch
	// carries the value it started with and its cache writes are discarded
	// once a newer open has bumped past it.
	fetchSeq atomic.Int64

	mu       gosync.Mutex
	selected string
	ready    bool
	stopTick context.CancelFunc

	ctx    context.Context
	cancel context.CancelFunc

	// settle delays the full fetch behind the fast one; injectable for tests.
	settle func(ctx context.Context, d time.Duration)
}

// NewEngine creates the sync engine. Start must be called before use.
func NewEngine(gw Gateway, reg *chat.Registry, store *cache.Store, b *bus.Bus, machine *status.Machine, cfg config.SyncConfig, logger *zap.Logger) *Engine {
	return &Engine{
		gw:       gw,
		registry: reg,
		cache:    store,
		bus:      b,
		machine:  machine,
		logger:   logger,
		cfg:      cfg,
		gate:     NewGate(time.Duration(cfg.DebounceMS) * time.Millisecond),
		settle: func(ctx context.Context, d time.Duration) {
			select {
			case <-time.After(d):
			case <-ctx.Done():
			}
		},
	}
}

// Start subscribes to gateway events and runs the dispatch loop until Stop.
func (e *Engine) Start(ctx context.Context) {
	e.ctx, e.cancel = context.WithCancel(ctx)
	ch, unsub := e.bus.Subscribe("gateway.", 256)

	go func() {
		defer unsub()
		for {
			select {
			case evt := <-ch:
				e.handleEvent(evt)
			case <-e.ctx.Done():
				return
			}
		}
	}()
}

// Stop stops the engine and its refresh ticker.
func (e *Engine) Stop() {
	e.stopTicker()
	if e.cancel != nil {
		e.cancel()
	}
}

func (e *Engine) handleEvent(evt bus.Event) {
	switch evt.Kind {
	case bus.GatewayConnecting:
		if err := e.machine.Transition(status.Connecting); err != nil {
			e.logger.Debug("state transition rejected", zap.Error(err))
		}

	case bus.GatewayDown:
		e.setReady(false)
		if err := e.machine.Transition(status.Disconnected); err != nil {
			e.logger.Debug("state transition rejected", zap.Error(err))
		}

	case bus.GatewayStatus:
		st, ok := evt.Payload.(gateway.StatusUpdate)
		if !ok {
			return
		}
		if st.Ready {
			e.setReady(true)
		} else {
			e.setReady(false)
			go e.refreshQR()
		}

	case bus.GatewayQR:
		code, ok := evt.Payload.(string)
		if !ok || code == "" {
			return
		}
		if err := e.machine.Transition(status.AuthRequired); err != nil {
			e.logger.Debug("state transition rejected", zap.Error(err))
		}
		e.bus.Emit(bus.ViewQR, code)

	case bus.GatewayMessage:
		msg, ok := evt.Payload.(*chat.Message)
		if !ok {
			return
		}
		e.HandleArrival(msg)

	case bus.GatewayChatPatch:
		p, ok := evt.Payload.(chat.Patch)
		if !ok || p.ID == "" {
			return
		}
		e.publishChats(e.registry.ApplyPatch(p))

	case bus.GatewayAvatarReset:
		e.publishChats(e.registry.StampAvatars())

	case bus.GatewayRefresh:
		e.Refresh()
	}
}

// setReady flips the engine between the authenticated and the logged-out
// mode. Going ready triggers the initial pull and the periodic refresh;
// dropping out stops the refresh and clears the open conversation.
func (e *Engine) setReady(ready bool) {
	e.mu.Lock()
	was := e.ready
	e.ready = ready
	e.mu.Unlock()

	if ready {
		if err := e.machine.Transition(status.Ready); err != nil {
			e.logger.Debug("state transition rejected", zap.Error(err))
		}
		e.bus.Emit(bus.ViewReady, nil)
		if !was {
			e.pullChats()
			e.warmupPreviews()
			e.startTicker()
		}
		return
	}

	e.stopTicker()
	if was {
		e.mu.Lock()
		e.selected = ""
		e.mu.Unlock()
		e.bus.Emit(bus.ViewLog, LogUpdate{})
	}
}

// Refresh is the debounced list pull. Bursts of refresh triggers inside the
// window collapse to the pull that opened it.
func (e *Engine) Refresh() {
	if !e.gate.Allow() {
		return
	}
	e.pullChats()
}

func (e *Engine) pullChats() {
	ctx, cancel := context.WithTimeout(e.ctx, 30*time.Second)
	defer cancel()

	patches, err := e.gw.Chats(ctx)
	if err != nil {
		e.logger.Warn("chat list pull failed", zap.Error(err))
		return
	}

	filtered := make([]chat.Patch, 0, len(patches))
	for _, p := range patches {
		name := ""
		if p.Name != nil {
			name = *p.Name
		}
		if chat.IsStatusBroadcast(p.ID, name) {
			continue
		}
		filtered = append(filtered, p)
	}
	e.publishChats(e.registry.Merge(filtered))
}

// warmupPreviews backfills the list preview for conversations the bulk pull
// delivered without one, one cheap single-message fetch each.
func (e *Engine) warmupPreviews() {
	batch := make([]string, 0, e.cfg.WarmupBatch)
	for _, c := range e.registry.Snapshot() {
		if c.LastPreview != "" {
			continue
		}
		batch = append(batch, c.ID)
		if len(batch) == e.cfg.WarmupBatch {
			break
		}
	}
	if len(batch) == 0 {
		return
	}

	go func() {
		for _, id := range batch {
			ctx, cancel := context.WithTimeout(e.ctx, 15*time.Second)
			msgs, err := e.gw.Messages(ctx, id, 1)
			cancel()
			if err != nil {
				e.logger.Debug("preview warmup fetch failed", zap.String("chat", id), zap.Error(err))
				continue
			}
			log := cache.Normalize(msgs)
			if len(log) == 0 {
				continue
			}
			last := log[len(log)-1]
			preview := chat.PreviewText(last)
			ts := last.Timestamp
			if snap, ok := e.registry.PatchExisting(chat.Patch{ID: id, LastPreview: &preview, LastTS: &ts}); ok {
				e.publishChats(snap)
			}
		}
	}()
}

func (e *Engine) startTicker() {
	e.mu.Lock()
	if e.stopTick != nil {
		e.mu.Unlock()
		return
	}
	tctx, cancel := context.WithCancel(e.ctx)
	e.stopTick = cancel
	e.mu.Unlock()

	interval := time.Duration(e.cfg.RefreshSec) * time.Second
	go func() {
		t := time.NewTicker(interval)
		defer t.Stop()
		for {
			select {
			case <-t.C:
				e.pullChats()
			case <-tctx.Done():
				return
			}
		}
	}()
}

func (e *Engine) stopTicker() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.stopTick != nil {
		e.stopTick()
		e.stopTick = nil
	}
}

// Select opens a conversation: unread clears locally and on the server, the
// cached log shows immediately, and a two-phase fetch replaces it.
func (e *Engine) Select(chatID string) {
	e.mu.Lock()
	e.selected = chatID
	e.mu.Unlock()

	if chatID == "" {
		e.bus.Emit(bus.ViewLog, LogUpdate{})
		return
	}

	zero := 0
	if snap, ok := e.registry.PatchExisting(chat.Patch{ID: chatID, UnreadCount: &zero}); ok {
		e.publishChats(snap)
	}
	go e.markSeen(chatID)

	if log, ok := e.cache.Get(chatID); ok {
		e.bus.Emit(bus.ViewLog, LogUpdate{ChatID: chatID, Messages: log, ScrollToEnd: true})
	}
	go e.fetchLog(chatID)
}

// fetchLog runs the two-phase fetch: a small fast batch for perceived
// latency, then the full window after a short settle.
func (e *Engine) fetchLog(chatID string) {
	seq := e.fetchSeq.Add(1)

	ctx, cancel := context.WithTimeout(e.ctx, 30*time.Second)
	fast, err := e.gw.Messages(ctx, chatID, e.cfg.FastLimit)
	cancel()
	if err != nil {
		e.logger.Warn("fast fetch failed", zap.String("chat", chatID), zap.Error(err))
	} else {
		e.applyFetch(chatID, seq, fast)
	}

	e.settle(e.ctx, time.Duration(e.cfg.SettleMS)*time.Millisecond)

	ctx, cancel = context.WithTimeout(e.ctx, 60*time.Second)
	full, err := e.gw.Messages(ctx, chatID, e.cfg.FullLimit)
	cancel()
	if err != nil {
		e.logger.Warn("full fetch failed", zap.String("chat", chatID), zap.Error(err))
		return
	}
	e.applyFetch(chatID, seq, full)
}

// applyFetch lands a fetched batch. The list preview always advances to the
// batch's newest message, but the cache write and the view update only land
// when no newer open has superseded this fetch.
func (e *Engine) applyFetch(chatID string, seq int64, batch []*chat.Message) {
	log := cache.Normalize(batch)
	if len(log) > 0 {
		last := log[len(log)-1]
		preview := chat.PreviewText(last)
		ts := last.Timestamp
		if snap, ok := e.registry.PatchExisting(chat.Patch{ID: chatID, LastPreview: &preview, LastTS: &ts}); ok {
			e.publishChats(snap)
		}
	}

	if e.fetchSeq.Load() != seq {
		e.logger.Debug("stale fetch discarded", zap.String("chat", chatID), zap.Int64("seq", seq))
		return
	}
	stored := e.cache.Replace(chatID, batch)

	e.mu.Lock()
	sel := e.selected
	e.mu.Unlock()
	if sel == chatID {
		e.bus.Emit(bus.ViewLog, LogUpdate{ChatID: chatID, Messages: stored, ScrollToEnd: true})
	}
}

// HandleArrival applies one pushed message. Messages for conversations the
// registry has never seen are dropped; the next list pull introduces them
// with server-side counters intact.
func (e *Engine) HandleArrival(m *chat.Message) {
	if m == nil || m.Type.IsSystem() {
		return
	}
	if _, known := e.registry.Get(m.ChatID); !known {
		e.logger.Debug("message for unknown conversation dropped", zap.String("chat", m.ChatID))
		return
	}

	e.mu.Lock()
	sel := e.selected
	e.mu.Unlock()

	inserted := false
	var log []chat.Message
	if _, cached := e.cache.Get(m.ChatID); cached {
		log, inserted = e.cache.Append(m.ChatID, *m)
	}

	preview := chat.PreviewText(*m)
	ts := m.Timestamp
	p := chat.Patch{ID: m.ChatID, LastPreview: &preview, LastTS: &ts}
	if sel == m.ChatID {
		// The user is looking at it; the server's counter lags behind.
		zero := 0
		p.UnreadCount = &zero
	}
	if snap, ok := e.registry.PatchExisting(p); ok {
		e.publishChats(snap)
	}

	if sel != m.ChatID {
		return
	}
	if inserted {
		e.bus.Emit(bus.ViewLog, LogUpdate{ChatID: m.ChatID, Messages: log, ScrollToEnd: true})
	}
	go e.markSeen(m.ChatID)
}

// SendText fires a text send; failures surface as a view notice.
func (e *Engine) SendText(chatID, text, quotedID string) {
	cmd := gateway.TextCommand{
		ChatID:          chatID,
		Text:            text,
		QuotedMessageID: quotedID,
		ClientID:        uuid.NewString(),
	}
	go func() {
		ctx, cancel := context.WithTimeout(e.ctx, 30*time.Second)
		defer cancel()
		if err := e.gw.SendText(ctx, cmd); err != nil {
			e.logger.Warn("text send failed", zap.String("chat", chatID), zap.Error(err))
			e.bus.Emit(bus.ViewSendFailed, SendFailure{
				ChatID:   chatID,
				Text:     text,
				QuotedID: quotedID,
				Reason:   err.Error(),
			})
		}
	}()
}

// SendMedia fires a file send; failures surface as a view notice.
func (e *Engine) SendMedia(chatID, filename string, data []byte, quotedID string) {
	cmd := gateway.MediaCommand{
		ChatID:          chatID,
		Filename:        filename,
		Data:            data,
		QuotedMessageID: quotedID,
		ClientID:        uuid.NewString(),
	}
	go func() {
		ctx, cancel := context.WithTimeout(e.ctx, 60*time.Second)
		defer cancel()
		if err := e.gw.SendMedia(ctx, cmd); err != nil {
			e.logger.Warn("media send failed", zap.String("chat", chatID), zap.Error(err))
			e.bus.Emit(bus.ViewNotice, "file not sent: "+err.Error())
		}
	}()
}

// NewChat inserts a local stub conversation for a raw phone number and
// returns its id, or "" when the input has no digits. The stub becomes real
// once the first message round-trips through the gateway.
func (e *Engine) NewChat(phone string) string {
	ds := digitsOf(phone)
	if ds == "" {
		return ""
	}
	id := ds + "@c.us"
	e.cache.Init(id)
	e.publishChats(e.registry.Merge([]chat.Patch{{ID: id}}))
	return id
}

// Logout drops the server session and returns to the QR screen.
func (e *Engine) Logout() {
	go func() {
		ctx, cancel := context.WithTimeout(e.ctx, 30*time.Second)
		defer cancel()
		if err := e.gw.Logout(ctx); err != nil {
			e.logger.Warn("logout failed", zap.Error(err))
			e.bus.Emit(bus.ViewNotice, "logout failed: "+err.Error())
			return
		}
		e.setReady(false)
		if err := e.machine.Transition(status.AuthRequired); err != nil {
			e.logger.Debug("state transition rejected", zap.Error(err))
		}
		e.refreshQR()
	}()
}

func (e *Engine) refreshQR() {
	ctx, cancel := context.WithTimeout(e.ctx, 30*time.Second)
	defer cancel()
	code, err := e.gw.QR(ctx)
	if err != nil {
		e.logger.Warn("qr fetch failed", zap.Error(err))
		return
	}
	if code != "" {
		e.bus.Emit(bus.ViewQR, code)
	}
}

func (e *Engine) markSeen(chatID string) {
	ctx, cancel := context.WithTimeout(e.ctx, 15*time.Second)
	defer cancel()
	if err := e.gw.MarkSeen(ctx, chatID); err != nil {
		e.logger.Debug("mark seen failed", zap.String("chat", chatID), zap.Error(err))
	}
}

func (e *Engine) publishChats(snap []chat.Chat) {
	e.bus.Emit(bus.ViewChats, ChatsUpdate{Chats: snap})
}

func digitsOf(s string) string {
	var b []byte
	for i := 0; i < len(s); i++ {
		if s[i] >= '0' && s[i] <= '9' {
			b = append(b, s[i])
		}
	}
	return string(b)
}
