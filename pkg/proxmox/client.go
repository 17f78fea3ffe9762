// Package proxmox is a minimal client for the Proxmox VE management API,
// covering the operations the MCP tool catalog needs: node, VM and container
// inspection, lifecycle control, snapshots, backups, templates, task
// tracking and guest-agent command execution.
//
// Read-only calls are retried a small bounded number of times on transient
// upstream failures. State-changing calls are never retried automatically:
// a duplicate clone or delete on the hypervisor is worse than surfacing the
// failure to the caller.
package proxmox

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rcourtman/proxmox-mcp/pkg/tlsutil"
	"github.com/rs/zerolog/log"
)

const (
	readRetryAttempts = 3
	readRetryBackoff  = 250 * time.Millisecond
)

// ClientConfig holds connection settings for a Proxmox VE API endpoint.
// It is populated once at startup and treated as read-only afterwards.
type ClientConfig struct {
	Host        string // host[:port] or full https:// URL
	User        string // user@realm, e.g. "root@pam"
	TokenName   string // API token id, or full "user@realm!tokenid"
	TokenValue  string // API token secret
	Fingerprint string // optional pinned TLS certificate fingerprint
	VerifySSL   bool
	Timeout     time.Duration
}

// Client is a Proxmox VE API client. It is safe for concurrent use; the
// underlying transport is shared by all simultaneous calls and poll loops.
type Client struct {
	baseURL    string
	httpClient *http.Client
	tokenID    string // user@realm!tokenid
	tokenValue string
}

// NewClient creates a Proxmox API client using API token authentication.
func NewClient(cfg ClientConfig) (*Client, error) {
	host := cfg.Host
	if !strings.HasPrefix(host, "http://") && !strings.HasPrefix(host, "https://") {
		host = "https://" + host
	}
	if u, err := url.Parse(host); err == nil && u.Port() == "" {
		host = strings.TrimSuffix(host, "/") + ":8006"
	}

	if cfg.TokenName == "" || cfg.TokenValue == "" {
		return nil, fmt.Errorf("API token name and value are required")
	}

	tokenID := cfg.TokenName
	if !strings.Contains(tokenID, "!") {
		// Token id given separately from the user, e.g. User "root@pam"
		// plus TokenName "mcp".
		if cfg.User == "" || !strings.Contains(cfg.User, "@") {
			return nil, fmt.Errorf("user must be in user@realm format when token name is not fully qualified")
		}
		tokenID = cfg.User + "!" + cfg.TokenName
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	return &Client{
		baseURL:    strings.TrimSuffix(host, "/") + "/api2/json",
		httpClient: tlsutil.CreateHTTPClientWithTimeout(cfg.VerifySSL, cfg.Fingerprint, timeout),
		tokenID:    tokenID,
		tokenValue: cfg.TokenValue,
	}, nil
}

// request performs a single API request and maps failures into the error
// taxonomy. The caller owns the response body on success.
func (c *Client) request(ctx context.Context, method, path string, data url.Values) (*http.Response, error) {
	var body io.Reader
	if data != nil {
		body = strings.NewReader(data.Encode())
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, &APIError{Kind: KindUpstream, Message: "invalid request: " + err.Error(), cause: err}
	}
	if data != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	req.Header.Set("Authorization", fmt.Sprintf("PVEAPIToken=%s=%s", c.tokenID, c.tokenValue))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, newTransportError(err)
	}

	if resp.StatusCode >= 400 {
		defer resp.Body.Close()
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		msg := string(raw)
		// Proxmox puts the reason in the status line more often than the body.
		if strings.TrimSpace(msg) == "" || msg == "null" {
			msg = resp.Status
		}
		return nil, newHTTPError(resp.StatusCode, msg, path)
	}

	return resp, nil
}

// get performs a read-only request with bounded retry on transient failures.
func (c *Client) get(ctx context.Context, path string, out interface{}) error {
	var lastErr error
	for attempt := 1; attempt <= readRetryAttempts; attempt++ {
		resp, err := c.request(ctx, http.MethodGet, path, nil)
		if err == nil {
			err = decodeBody(resp, out)
		}
		if err == nil {
			return nil
		}
		lastErr = err

		if !retryable(err) || attempt == readRetryAttempts {
			break
		}
		log.Debug().
			Str("path", path).
			Int("attempt", attempt).
			Err(err).
			Msg("Retrying Proxmox read after transient failure")

		select {
		case <-time.After(time.Duration(attempt) * readRetryBackoff):
		case <-ctx.Done():
			return newTransportError(ctx.Err())
		}
	}
	return lastErr
}

// write performs a state-changing request. Never retried.
func (c *Client) write(ctx context.Context, method, path string, data url.Values, out interface{}) error {
	resp, err := c.request(ctx, method, path, data)
	if err != nil {
		return err
	}
	return decodeBody(resp, out)
}

func (c *Client) post(ctx context.Context, path string, data url.Values, out interface{}) error {
	return c.write(ctx, http.MethodPost, path, data, out)
}

func (c *Client) put(ctx context.Context, path string, data url.Values, out interface{}) error {
	return c.write(ctx, http.MethodPut, path, data, out)
}

func (c *Client) delete(ctx context.Context, path string, out interface{}) error {
	return c.write(ctx, http.MethodDelete, path, nil, out)
}

// decodeBody decodes the standard Proxmox {"data": ...} envelope into out.
// out may be nil when the response body is irrelevant.
func decodeBody(resp *http.Response, out interface{}) error {
	defer resp.Body.Close()
	if out == nil {
		io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return newDecodeError(err)
	}
	return nil
}

// postTask issues a state-changing request whose response body carries a task
// UPID, and returns that UPID.
func (c *Client) postTask(ctx context.Context, path string, data url.Values) (string, error) {
	var result struct {
		Data string `json:"data"`
	}
	if err := c.post(ctx, path, data, &result); err != nil {
		return "", err
	}
	if result.Data == "" {
		return "", &APIError{Kind: KindUpstream, Message: "Proxmox API did not return a task id"}
	}
	return result.Data, nil
}

func (c *Client) deleteTask(ctx context.Context, path string) (string, error) {
	var result struct {
		Data string `json:"data"`
	}
	if err := c.delete(ctx, path, &result); err != nil {
		return "", err
	}
	if result.Data == "" {
		return "", &APIError{Kind: KindUpstream, Message: "Proxmox API did not return a task id"}
	}
	return result.Data, nil
}
