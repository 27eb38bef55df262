package gateway

import (
	"context"
	"encoding/json"
	"time"

	"github.com/crmkit/wachat/internal/bus"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// StatusUpdate is the payload of a gateway.status bus event.
type StatusUpdate struct {
	Ready bool `json:"ready"`
}

// Stream maintains the websocket connection to the gateway and republishes
// push events on the bus. Delivery is best effort: the gateway may duplicate
// events and interleave them arbitrarily with in-flight REST responses; the
// engine's idempotent merges absorb both.
type Stream struct {
	url    string
	bus    *bus.Bus
	logger *zap.Logger
	cancel context.CancelFunc
}

// NewStream creates a push stream client for the given websocket URL.
func NewStream(wsURL string, b *bus.Bus, logger *zap.Logger) *Stream {
	return &Stream{url: wsURL, bus: b, logger: logger}
}

// Start connects in the background and keeps reconnecting with backoff until
// Stop or context cancellation.
func (s *Stream) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)
	go s.run(ctx)
}

// Stop terminates the connection loop.
func (s *Stream) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
}

func (s *Stream) run(ctx context.Context) {
	backoff := time.Second
	for {
		if ctx.Err() != nil {
			return
		}
		s.bus.Emit(bus.GatewayConnecting, nil)

		conn, _, err := websocket.DefaultDialer.DialContext(ctx, s.url, nil)
		if err != nil {
			s.logger.Warn("gateway dial failed", zap.Error(err), zap.Duration("retry_in", backoff))
			s.bus.Emit(bus.GatewayDown, nil)
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return
			}
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}

		s.logger.Info("gateway stream connected", zap.String("url", s.url))
		backoff = time.Second

		// Close the connection when the context ends so ReadMessage unblocks.
		done := make(chan struct{})
		go func() {
			select {
			case <-ctx.Done():
				_ = conn.Close()
			case <-done:
			}
		}()

		s.readLoop(conn)
		close(done)
		_ = conn.Close()
		s.bus.Emit(bus.GatewayDown, nil)
	}
}

func (s *Stream) readLoop(conn *websocket.Conn) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			s.logger.Warn("gateway stream closed", zap.Error(err))
			return
		}
		s.dispatch(data)
	}
}

type envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

func (s *Stream) dispatch(raw []byte) {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		s.logger.Warn("malformed push frame", zap.Error(err))
		return
	}

	switch env.Event {
	case "status":
		var st StatusUpdate
		if err := json.Unmarshal(env.Data, &st); err != nil {
			s.logger.Warn("malformed status event", zap.Error(err))
			return
		}
		s.bus.Emit(bus.GatewayStatus, st)

	case "qr":
		var qr struct {
			Code    string `json:"code"`
			DataURL string `json:"dataUrl"`
		}
		if err := json.Unmarshal(env.Data, &qr); err != nil {
			s.logger.Warn("malformed qr event", zap.Error(err))
			return
		}
		payload := qr.Code
		if payload == "" {
			payload = qr.DataURL
		}
		s.bus.Emit(bus.GatewayQR, payload)

	case "message":
		var rec messageRecord
		if err := json.Unmarshal(env.Data, &rec); err != nil {
			s.logger.Warn("malformed message event", zap.Error(err))
			return
		}
		s.bus.Emit(bus.GatewayMessage, rec.toMessage())

	case "chat-patch":
		var rec chatRecord
		if err := json.Unmarshal(env.Data, &rec); err != nil {
			s.logger.Warn("malformed chat-patch event", zap.Error(err))
			return
		}
		if rec.ID == "" {
			return
		}
		s.bus.Emit(bus.GatewayChatPatch, rec.toPatch(false))

	case "chat-avatar":
		s.bus.Emit(bus.GatewayAvatarReset, nil)

	case "chats-refresh":
		s.bus.Emit(bus.GatewayRefresh, nil)

	default:
		s.logger.Debug("ignoring unknown push event", zap.String("event", env.Event))
	}
}
