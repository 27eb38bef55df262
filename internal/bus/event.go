package bus

import "time"

// Event kinds published on the bus. Gateway-facing kinds carry raw push data
// from the connection; view-facing kinds carry snapshots for the presentation
// layer. Subscribers filter by namespace prefix ("gateway.", "view.", ...).
const (
	GatewayConnecting  = "gateway.connecting"
	GatewayDown        = "gateway.down"
	GatewayStatus      = "gateway.status"
	GatewayQR          = "gateway.qr"
	GatewayMessage     = "gateway.message"
	GatewayChatPatch   = "gateway.chat_patch"
	GatewayAvatarReset = "gateway.avatar_reset"
	GatewayRefresh     = "gateway.refresh"

	ViewChats      = "view.chats"
	ViewLog        = "view.log"
	ViewQR         = "view.qr"
	ViewReady      = "view.ready"
	ViewNotice     = "view.notice"
	ViewSendFailed = "view.send_failed"

	SessionStateChanged = "session.state_changed"
)

// Event is a single message delivered through the bus.
type Event struct {
	Kind      string
	Timestamp time.Time
	Payload   any
}
