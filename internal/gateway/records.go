package gateway

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/crmkit/wachat/internal/chat"
)

// chatRecord is a conversation as the gateway serializes it. Pointer fields
// distinguish "absent" from zero so partial records merge without erasing.
type chatRecord struct {
	ID          string  `json:"id"`
	Name        *string `json:"name"`
	IsGroup     *bool   `json:"isGroup"`
	Pinned      *bool   `json:"pinned"`
	UnreadCount *int    `json:"unreadCount"`
	Last        *string `json:"last"`
	LastTS      *int64  `json:"lastTs"`
	Status      *string `json:"status"`
	IsLead      *bool   `json:"isLead"`
}

// toPatch converts the record to a registry patch. Bulk-pull records always
// carry a status tag: an absent one defaults to "client", or "lead" when the
// record is flagged as such.
func (r chatRecord) toPatch(bulk bool) chat.Patch {
	p := chat.Patch{
		ID:          r.ID,
		Name:        r.Name,
		IsGroup:     r.IsGroup,
		Pinned:      r.Pinned,
		UnreadCount: r.UnreadCount,
		LastPreview: r.Last,
		LastTS:      r.LastTS,
		Status:      r.Status,
	}
	if bulk && p.Status == nil {
		status := "client"
		if r.IsLead != nil && *r.IsLead {
			status = "lead"
		}
		p.Status = &status
	}
	return p
}

type mediaRecord struct {
	MimeType string `json:"mimetype"`
	Data     string `json:"data"`
	Filename string `json:"filename"`
}

type locationRecord struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// messageRecord is a message as the gateway serializes it.
type messageRecord struct {
	ID         string          `json:"id"`
	ChatID     string          `json:"chatId"`
	Type       string          `json:"type"`
	Body       string          `json:"body"`
	Timestamp  int64           `json:"timestamp"`
	FromMe     bool            `json:"fromMe"`
	IsGroup    bool            `json:"isGroup"`
	SenderName string          `json:"senderName"`
	Author     string          `json:"author"`
	Preview    string          `json:"preview"`
	Media      *mediaRecord    `json:"media"`
	Location   *locationRecord `json:"location"`
	VCard      string          `json:"vcard"`
	QuotedBody string          `json:"quotedBody"`
}

func (r *messageRecord) toMessage() *chat.Message {
	if r == nil {
		return nil
	}
	m := &chat.Message{
		ID:         r.ID,
		ChatID:     r.ChatID,
		Type:       chat.ParseType(r.Type),
		Body:       r.Body,
		Timestamp:  r.Timestamp,
		FromMe:     r.FromMe,
		IsGroup:    r.IsGroup,
		SenderName: r.SenderName,
		Preview:    r.Preview,
		VCard:      r.VCard,
		QuotedBody: r.QuotedBody,
	}
	if m.SenderName == "" {
		m.SenderName = r.Author
	}
	if r.Media != nil {
		m.Media = &chat.Media{MimeType: r.Media.MimeType, Data: r.Media.Data, Filename: r.Media.Filename}
	}
	if r.Location != nil {
		m.Location = &chat.Location{Latitude: r.Location.Latitude, Longitude: r.Location.Longitude}
	}
	return m
}

// decodeRecords accepts either a bare JSON array or a paginated
// {results: [...]} envelope, which the gateway uses interchangeably.
func decodeRecords[T any](body []byte) ([]T, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var out []T
		if err := json.Unmarshal(trimmed, &out); err != nil {
			return nil, fmt.Errorf("decode records: %w", err)
		}
		return out, nil
	}
	var envelope struct {
		Results []T `json:"results"`
	}
	if err := json.Unmarshal(trimmed, &envelope); err != nil {
		return nil, fmt.Errorf("decode records envelope: %w", err)
	}
	return envelope.Results, nil
}
