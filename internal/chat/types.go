package chat

import "strings"

// MessageType is the closed set of message kinds delivered by the gateway.
// Wire values follow the gateway's type field; anything unrecognized maps to
// TypeUnknown and renders as plain text.
type MessageType string

const (
	TypeUnknown   MessageType = ""
	TypeText      MessageType = "chat"
	TypeImage     MessageType = "image"
	TypeVideo     MessageType = "video"
	TypeAudio     MessageType = "audio"
	TypeVoice     MessageType = "ptt"
	TypeDocument  MessageType = "document"
	TypeSticker   MessageType = "sticker"
	TypeLocation  MessageType = "location"
	TypeContact   MessageType = "vcard"
	TypeRevoked   MessageType = "revoked"
	TypeButtons   MessageType = "buttons_response"
	TypeList      MessageType = "list_response"
	TypeReaction  MessageType = "reaction"
	TypeCall      MessageType = "call_log"
	TypeE2ENotice MessageType = "e2e_notification"
	TypeProtocol  MessageType = "protocolmessage"
	TypeTemplate  MessageType = "notification_template"
)

// ParseType maps a raw gateway type string onto the enum, falling back to
// TypeUnknown for values this client does not recognize.
func ParseType(raw string) MessageType {
	switch t := MessageType(strings.ToLower(raw)); t {
	case TypeText, TypeImage, TypeVideo, TypeAudio, TypeVoice, TypeDocument,
		TypeSticker, TypeLocation, TypeContact, TypeRevoked, TypeButtons,
		TypeList, TypeReaction, TypeCall, TypeE2ENotice, TypeProtocol,
		TypeTemplate:
		return t
	case "call":
		return TypeCall
	default:
		return TypeUnknown
	}
}

// IsSystem reports whether the type is protocol/notification noise that never
// enters a conversation's message log.
func (t MessageType) IsSystem() bool {
	switch t {
	case TypeE2ENotice, TypeProtocol, TypeTemplate, TypeCall:
		return true
	default:
		return false
	}
}

// Chat is one conversation row as known locally.
type Chat struct {
	ID          string
	Name        string
	AvatarURL   string
	IsGroup     bool
	Pinned      bool
	UnreadCount int
	LastPreview string
	LastTS      int64
	Status      string
}

// Patch is a partial conversation update. Nil fields are "not mentioned" and
// leave the existing value untouched when merged.
type Patch struct {
	ID          string
	Name        *string
	AvatarURL   *string
	IsGroup     *bool
	Pinned      *bool
	UnreadCount *int
	LastPreview *string
	LastTS      *int64
	Status      *string
}

// Media is an opaque attachment payload; Data is base64 as delivered.
type Media struct {
	MimeType string
	Data     string
	Filename string
}

// Location is a shared geo point.
type Location struct {
	Latitude  float64
	Longitude float64
}

// Message is one entry in a conversation's log.
type Message struct {
	ID         string
	ChatID     string
	Type       MessageType
	Body       string
	Timestamp  int64
	FromMe     bool
	IsGroup    bool
	SenderName string
	Preview    string
	Media      *Media
	Location   *Location
	VCard      string
	QuotedBody string
}

// PreviewText is the one-line summary shown in the conversation list.
func PreviewText(m Message) string {
	if m.Preview != "" {
		return m.Preview
	}
	if m.Body != "" {
		return m.Body
	}
	return "(" + string(m.Type) + ")"
}

// IsStatusBroadcast reports whether the conversation is the WhatsApp status
// feed, which is never shown in the list.
func IsStatusBroadcast(id, name string) bool {
	return strings.Contains(strings.ToLower(id), "status@broadcast") ||
		strings.EqualFold(strings.TrimSpace(name), "status")
}
