// Package ctlclient is the suggestctl HTTP client: it dials the daemon's
// Unix socket and speaks the same /v1 JSON protocol internal/daemon.Server
// exposes, the way the teacher's CLI commands call into its daemon over a
// gRPC client stub.
package ctlclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/runger/suggestengine/internal/engine"
)

// Client talks to a running suggestd over its Unix domain socket.
type Client struct {
	http *http.Client
}

// New returns a Client dialing the socket at socketPath.
func New(socketPath string) *Client {
	transport := &http.Transport{
		DialContext: func(ctx context.Context, _, _ string) (net.Conn, error) {
			var d net.Dialer
			return d.DialContext(ctx, "unix", socketPath)
		},
	}
	return &Client{http: &http.Client{Transport: transport, Timeout: 10 * time.Second}}
}

// QueryResult mirrors the daemon's queryResponse.
type QueryResult struct {
	CursorID    string              `json:"cursor_id"`
	Suggestions []engine.Suggestion `json:"suggestions"`
	IsPending   bool                `json:"is_pending"`
	MoreIndex   int                 `json:"more_index,omitempty"`
}

// Query sends one keystroke of an incrementally-refined session.
func (c *Client) Query(ctx context.Context, sessionID, query string) (*QueryResult, error) {
	var result QueryResult
	body := map[string]string{"session_id": sessionID, "query": query}
	if err := c.post(ctx, "/v1/query", body, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Click reports that the suggestion at position was activated.
func (c *Client) Click(ctx context.Context, cursorID string, position int) error {
	body := map[string]interface{}{"cursor_id": cursorID, "position": position}
	return c.post(ctx, "/v1/click", body, nil)
}

// Close tears down a cursor, recording impressions up to maxDisplayPos.
func (c *Client) Close(ctx context.Context, cursorID string, maxDisplayPos int) error {
	body := map[string]interface{}{"cursor_id": cursorID, "max_display_pos": maxDisplayPos}
	return c.post(ctx, "/v1/close", body, nil)
}

// CloseSession ends an entire session, flushing its click/impression stats.
func (c *Client) CloseSession(ctx context.Context, sessionID string) error {
	body := map[string]string{"session_id": sessionID}
	return c.post(ctx, "/v1/session/close", body, nil)
}

// Stats reports the daemon's current active session count.
func (c *Client) Stats(ctx context.Context) (map[string]int, error) {
	var result map[string]int
	if err := c.get(ctx, "/debug/sessions", &result); err != nil {
		return nil, err
	}
	return result, nil
}

// Ranking reports the current promoted source ranking.
func (c *Client) Ranking(ctx context.Context) ([]string, error) {
	var result struct {
		Ranking []string `json:"ranking"`
	}
	if err := c.get(ctx, "/debug/ranking", &result); err != nil {
		return nil, err
	}
	return result.Ranking, nil
}

func (c *Client) post(ctx context.Context, path string, body interface{}, out interface{}) error {
	data, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, "http://unix"+path, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

func (c *Client) get(ctx context.Context, path string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, "http://unix"+path, nil)
	if err != nil {
		return err
	}
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out interface{}) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("daemon request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		data, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("daemon returned %d: %s", resp.StatusCode, data)
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
