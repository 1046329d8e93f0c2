package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// Client talks to the hosted Kanux backend over its REST API.
type Client struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// NewClient creates a remote store client.
func NewClient(baseURL, apiKey string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		client:  &http.Client{Timeout: timeout},
	}
}

var _ Store = (*Client)(nil)

// InsertMessage persists a message remotely and returns the server copy with
// its issued id.
func (c *Client) InsertMessage(ctx context.Context, in NewMessage) (*Message, error) {
	var out Message
	if err := c.post(ctx, "/v1/messages", in, in.IdempotencyKey, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// InsertTicket persists a ticket remotely.
func (c *Client) InsertTicket(ctx context.Context, in NewTicket) (*Ticket, error) {
	var out Ticket
	if err := c.post(ctx, "/v1/tickets", in, in.IdempotencyKey, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// FetchMessages returns the most recent messages of a chat, oldest first.
func (c *Client) FetchMessages(ctx context.Context, chatID string, limit int) ([]Message, error) {
	path := "/v1/chats/" + url.PathEscape(chatID) + "/messages?limit=" + strconv.Itoa(limit)
	var out []Message
	if err := c.get(ctx, path, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// FetchTickets returns the most recent tickets of a company.
func (c *Client) FetchTickets(ctx context.Context, companyID string, limit int) ([]Ticket, error) {
	path := "/v1/companies/" + url.PathEscape(companyID) + "/tickets?limit=" + strconv.Itoa(limit)
	var out []Ticket
	if err := c.get(ctx, path, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// FetchCompany returns a tenant record.
func (c *Client) FetchCompany(ctx context.Context, id string) (*Company, error) {
	var out Company
	if err := c.get(ctx, "/v1/companies/"+url.PathEscape(id), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Ping probes backend reachability. Used by the connectivity monitor.
func (c *Client) Ping(ctx context.Context) error {
	return c.get(ctx, "/v1/health", nil)
}

func (c *Client) post(ctx context.Context, path string, body any, idempotencyKey string, out any) error {
	b, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(b))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if idempotencyKey != "" {
		req.Header.Set("Idempotency-Key", idempotencyKey)
	}
	return c.do(req, path, out)
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	return c.do(req, path, out)
}

func (c *Client) do(req *http.Request, path string, out any) error {
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return &NetworkError{Op: path, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	if retryable(resp.StatusCode) {
		return &NetworkError{Op: path, Err: fmt.Errorf("status %s", resp.Status)}
	}
	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &RemoteRejectedError{Status: resp.StatusCode, Body: string(body)}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &NetworkError{Op: path, Err: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}

// retryable classifies statuses the sync engine may retry: the backend was
// up but unable to serve, as opposed to refusing the payload.
func retryable(status int) bool {
	return status == http.StatusRequestTimeout ||
		status == http.StatusTooManyRequests ||
		status >= 500
}
