package leads

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Lead is one CRM record as sent to and read from the requests API.
type Lead struct {
	Name    string `json:"name"`
	Phone   string `json:"phone"`
	Channel string `json:"channel"`
	Status  string `json:"status"`
}

// Client talks to the external lead-tracking service.
type Client struct {
	baseURL string
	http    *http.Client
	logger  *zap.Logger
}

// NewClient creates a CRM client for the given base URL.
func NewClient(baseURL string, logger *zap.Logger) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 15 * time.Second},
		logger:  logger,
	}
}

// List fetches every known lead. The endpoint may answer with a bare array
// or a paginated {results: [...]} envelope.
func (c *Client) List(ctx context.Context) ([]Lead, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/requests/", nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("list leads: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("list leads: unexpected status %s", resp.Status)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read leads body: %w", err)
	}
	return decodeLeads(body)
}

// Create submits a new lead record.
func (c *Client) Create(ctx context.Context, lead Lead) error {
	payload, err := json.Marshal(lead)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/requests/", bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("create lead: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("create lead: unexpected status %s", resp.Status)
	}
	c.logger.Info("lead created", zap.String("phone", lead.Phone))
	return nil
}

func decodeLeads(body []byte) ([]Lead, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var out []Lead
		if err := json.Unmarshal(trimmed, &out); err != nil {
			return nil, fmt.Errorf("decode leads: %w", err)
		}
		return out, nil
	}
	var envelope struct {
		Results []Lead `json:"results"`
	}
	if err := json.Unmarshal(trimmed, &envelope); err != nil {
		return nil, fmt.Errorf("decode leads envelope: %w", err)
	}
	return envelope.Results, nil
}
