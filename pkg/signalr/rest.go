package signalr

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Response strings returned by the REST endpoints.
const (
	ResponseStarted = "started"
	ResponsePong    = "pong"
)

// DefaultUserAgent identifies the client to the hub.
const DefaultUserAgent = "BestHTTP"

// maxResponseSize bounds REST response bodies.
const maxResponseSize = 1 << 20

// StatusError reports a non-2xx REST response.
type StatusError struct {
	Op   string
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: http status %d", e.Op, e.Code)
}

// Unwrap maps authentication failures to ErrUnauthorized.
func (e *StatusError) Unwrap() error {
	if e.Code == http.StatusUnauthorized || e.Code == http.StatusForbidden {
		return ErrUnauthorized
	}
	return nil
}

// REST performs the hub's HTTP calls. The http.Client should carry a cookie
// jar so that cookies set during negotiation reach the websocket dial.
type REST struct {
	Endpoint  *Endpoint
	HTTP      *http.Client
	UserAgent string
	Header    http.Header
}

// Negotiate requests a connection token.
func (c *REST) Negotiate(ctx context.Context) (NegotiateResponse, error) {
	body, err := c.do(ctx, "negotiate", http.MethodGet, c.Endpoint.NegotiateURL(time.Now()))
	if err != nil {
		return NegotiateResponse{}, err
	}
	return ParseNegotiate(body)
}

// Start confirms the websocket transport.
func (c *REST) Start(ctx context.Context, token string) error {
	return c.expect(ctx, "start", http.MethodGet, c.Endpoint.StartURL(token), ResponseStarted)
}

// Ping keeps the server side connection alive.
func (c *REST) Ping(ctx context.Context) error {
	return c.expect(ctx, "ping", http.MethodGet, c.Endpoint.PingURL(), ResponsePong)
}

// Abort tells the hub the connection is going away.
func (c *REST) Abort(ctx context.Context, token string) error {
	_, err := c.do(ctx, "abort", http.MethodPost, c.Endpoint.AbortURL(token))
	return err
}

func (c *REST) expect(ctx context.Context, op, method, url, want string) error {
	body, err := c.do(ctx, op, method, url)
	if err != nil {
		return err
	}
	var r struct {
		Response string `json:"Response"`
	}
	if err := json.Unmarshal(body, &r); err != nil {
		return fmt.Errorf("%s: %w: %v", op, ErrUnexpectedResponseBody, err)
	}
	if !strings.EqualFold(r.Response, want) {
		return fmt.Errorf("%s: %w: %q", op, ErrUnexpectedResponseBody, r.Response)
	}
	return nil
}

func (c *REST) do(ctx context.Context, op, method, url string) ([]byte, error) {
	var reqBody io.Reader
	if method == http.MethodPost {
		reqBody = strings.NewReader("{}")
	}
	req, err := http.NewRequestWithContext(ctx, method, url, reqBody)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	for k, vs := range c.Header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	ua := c.UserAgent
	if ua == "" {
		ua = DefaultUserAgent
	}
	req.Header.Set("User-Agent", ua)
	if reqBody != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	client := c.HTTP
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("%s: read body: %w", op, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{Op: op, Code: resp.StatusCode}
	}
	return body, nil
}
