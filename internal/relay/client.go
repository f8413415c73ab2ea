package relay

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"veilchat/internal/domain"
)

// Client talks JSON over HTTP to a relayd instance.
type Client struct {
	base string
	http *http.Client
}

// NewClient returns a Client for the relay at base. A nil httpClient falls
// back to http.DefaultClient.
func NewClient(base string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{base: base, http: httpClient}
}

// Register publishes our prekey bundle.
func (c *Client) Register(ctx context.Context, b domain.PreKeyBundle) error {
	return c.post(ctx, "/v1/bundles", b, nil)
}

// FetchBundle retrieves a peer's bundle. The relay consumes and includes at
// most one one-time prekey.
func (c *Client) FetchBundle(ctx context.Context, username domain.Username) (domain.PreKeyBundle, error) {
	var out domain.PreKeyBundle
	err := c.get(ctx, "/v1/bundles/"+url.PathEscape(string(username)), &out)
	return out, err
}

// Send posts an envelope to the recipient's mailbox.
func (c *Client) Send(ctx context.Context, env domain.Envelope) error {
	return c.post(ctx, "/v1/messages/"+url.PathEscape(string(env.To)), env, nil)
}

// Fetch returns pending envelopes without removing them; callers ack what
// they processed.
func (c *Client) Fetch(ctx context.Context, username domain.Username, limit int) ([]domain.Envelope, error) {
	path := "/v1/messages/" + url.PathEscape(string(username))
	if limit > 0 {
		path += "?limit=" + strconv.Itoa(limit)
	}
	var out []domain.Envelope
	err := c.get(ctx, path, &out)
	return out, err
}

// Ack removes the first count envelopes from the mailbox.
func (c *Client) Ack(ctx context.Context, username domain.Username, count int) error {
	return c.post(ctx, "/v1/messages/"+url.PathEscape(string(username))+"/ack", struct {
		Count int `json:"count"`
	}{Count: count}, nil)
}

func (c *Client) post(ctx context.Context, path string, in, out any) error {
	buf := new(bytes.Buffer)
	if err := json.NewEncoder(buf).Encode(in); err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+path, buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+path, nil)
	if err != nil {
		return err
	}
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		return fmt.Errorf("relay %s %s: %s", req.Method, req.URL.Path, resp.Status)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// Compile-time assertion that Client implements domain.RelayClient.
var _ domain.RelayClient = (*Client)(nil)
