// Package gateway is the transport edge: a REST client for bulk pulls and
// commands, and a websocket stream republishing push events on the bus.
// Transport failures surface as errors to the caller; interpretation (retry,
// silent staleness) is the engine's concern.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/crmkit/wachat/internal/chat"
	"go.uber.org/zap"
)

// TextCommand is a send-text request.
type TextCommand struct {
	ChatID          string `json:"chatId"`
	Text            string `json:"text"`
	QuotedMessageID string `json:"quotedMessageId,omitempty"`
	ClientID        string `json:"clientMsgId,omitempty"`
}

// MediaCommand is a send-media request; Data is the raw file content.
type MediaCommand struct {
	ChatID          string
	Filename        string
	Data            []byte
	QuotedMessageID string
	ClientID        string
}

// Client issues REST calls against the gateway.
type Client struct {
	baseURL string
	http    *http.Client
	logger  *zap.Logger
}

// NewClient creates a gateway REST client for the given base URL.
func NewClient(baseURL string, logger *zap.Logger) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 30 * time.Second},
		logger:  logger,
	}
}

// Chats pulls the conversation list as partial records.
func (c *Client) Chats(ctx context.Context) ([]chat.Patch, error) {
	body, err := c.get(ctx, "/chats", nil)
	if err != nil {
		return nil, err
	}
	records, err := decodeRecords[chatRecord](body)
	if err != nil {
		return nil, err
	}
	patches := make([]chat.Patch, 0, len(records))
	for _, r := range records {
		patches = append(patches, r.toPatch(true))
	}
	return patches, nil
}

// Messages pulls up to limit recent messages for a conversation. Order is not
// guaranteed; callers normalize. Nil entries are preserved for the normalizer
// to drop.
func (c *Client) Messages(ctx context.Context, chatID string, limit int) ([]*chat.Message, error) {
	body, err := c.get(ctx, "/messages", url.Values{
		"chatId": {chatID},
		"limit":  {strconv.Itoa(limit)},
	})
	if err != nil {
		return nil, err
	}
	records, err := decodeRecords[*messageRecord](body)
	if err != nil {
		return nil, err
	}
	msgs := make([]*chat.Message, 0, len(records))
	for _, r := range records {
		msgs = append(msgs, r.toMessage())
	}
	return msgs, nil
}

// MarkSeen clears the server-side unread state for a conversation.
func (c *Client) MarkSeen(ctx context.Context, chatID string) error {
	return c.postJSON(ctx, "/mark-seen", map[string]string{"chatId": chatID})
}

// SendText submits an outgoing text message.
func (c *Client) SendText(ctx context.Context, cmd TextCommand) error {
	return c.postJSON(ctx, "/send", cmd)
}

// SendMedia submits an outgoing file as multipart form data.
func (c *Client) SendMedia(ctx context.Context, cmd MediaCommand) error {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	part, err := w.CreateFormFile("file", cmd.Filename)
	if err != nil {
		return err
	}
	if _, err := part.Write(cmd.Data); err != nil {
		return err
	}
	if err := w.WriteField("chatId", cmd.ChatID); err != nil {
		return err
	}
	if cmd.QuotedMessageID != "" {
		if err := w.WriteField("quotedMessageId", cmd.QuotedMessageID); err != nil {
			return err
		}
	}
	if cmd.ClientID != "" {
		if err := w.WriteField("clientMsgId", cmd.ClientID); err != nil {
			return err
		}
	}
	if err := w.Close(); err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/send-media", &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", w.FormDataContentType())
	return c.do(req)
}

// Logout ends the linked session on the gateway.
func (c *Client) Logout(ctx context.Context) error {
	return c.postJSON(ctx, "/logout", struct{}{})
}

// QR fetches the current link-device QR payload, if one is pending.
func (c *Client) QR(ctx context.Context) (string, error) {
	body, err := c.get(ctx, "/qr", nil)
	if err != nil {
		return "", err
	}
	var payload struct {
		Code    string `json:"code"`
		DataURL string `json:"dataUrl"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return "", fmt.Errorf("decode qr: %w", err)
	}
	if payload.Code != "" {
		return payload.Code, nil
	}
	return payload.DataURL, nil
}

func (c *Client) get(ctx context.Context, path string, query url.Values) ([]byte, error) {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("GET %s: %w", path, err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("GET %s: unexpected status %s", path, resp.Status)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("GET %s: read body: %w", path, err)
	}
	return body, nil
}

func (c *Client) postJSON(ctx context.Context, path string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req)
}

func (c *Client) do(req *http.Request) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", req.Method, req.URL.Path, err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("%s %s: unexpected status %s", req.Method, req.URL.Path, resp.Status)
	}
	return nil
}
