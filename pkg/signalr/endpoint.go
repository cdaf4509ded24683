package signalr

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"sync/atomic"
	"time"
)

// Protocol constants.
const (
	// ClientProtocol is the protocol version sent with every request.
	ClientProtocol = "1.5"

	// DefaultURL is the public live-timing hub.
	DefaultURL = "https://livetiming.formula1.com/signalr"

	// DefaultHub is the hub name carrying the feed.
	DefaultHub = "Streaming"

	// TransportWebSockets is the only transport this client speaks.
	TransportWebSockets = "webSockets"
)

// Endpoint builds the URLs of one hub.
//
// Every REST request carries a "_" cache-busting counter that starts at the
// negotiation time in milliseconds and increments per request.
type Endpoint struct {
	base    *url.URL
	hub     string
	counter atomic.Int64
}

// NewEndpoint parses the hub base URL (http or https).
func NewEndpoint(rawURL, hub string) (*Endpoint, error) {
	u, err := url.Parse(strings.TrimRight(rawURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse hub url: %w", err)
	}
	switch u.Scheme {
	case "http", "https":
	default:
		return nil, fmt.Errorf("hub url %q: scheme must be http or https", rawURL)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("hub url %q: missing host", rawURL)
	}
	if hub == "" {
		hub = DefaultHub
	}
	return &Endpoint{base: u, hub: hub}, nil
}

// Hub returns the hub name.
func (e *Endpoint) Hub() string {
	return e.hub
}

// Base returns the REST base URL.
func (e *Endpoint) Base() string {
	return e.base.String()
}

// ConnectionData is the JSON hub list sent with every request.
func (e *Endpoint) ConnectionData() string {
	data, _ := json.Marshal([]map[string]string{{"name": e.hub}})
	return string(data)
}

func (e *Endpoint) next() string {
	return strconv.FormatInt(e.counter.Add(1), 10)
}

func (e *Endpoint) build(scheme, op string, q url.Values) string {
	u := *e.base
	if scheme != "" {
		u.Scheme = scheme
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/" + op
	u.RawQuery = q.Encode()
	return u.String()
}

func (e *Endpoint) wsScheme() string {
	if e.base.Scheme == "http" {
		return "ws"
	}
	return "wss"
}

// NegotiateURL returns the negotiation URL and resets the request counter
// to now.
func (e *Endpoint) NegotiateURL(now time.Time) string {
	e.counter.Store(now.UnixMilli())
	return e.build("", "negotiate", url.Values{
		"_":              {strconv.FormatInt(now.UnixMilli(), 10)},
		"clientProtocol": {ClientProtocol},
		"connectionData": {e.ConnectionData()},
	})
}

func (e *Endpoint) transportQuery(token string) url.Values {
	return url.Values{
		"transport":       {TransportWebSockets},
		"clientProtocol":  {ClientProtocol},
		"connectionToken": {token},
		"connectionData":  {e.ConnectionData()},
	}
}

// ConnectURL returns the websocket URL opening a new connection.
func (e *Endpoint) ConnectURL(token string, tid int) string {
	q := e.transportQuery(token)
	q.Set("tid", strconv.Itoa(tid))
	return e.build(e.wsScheme(), "connect", q)
}

// ReconnectURL returns the websocket URL resuming a connection from a
// message id.
func (e *Endpoint) ReconnectURL(token, groupsToken, messageID string, tid int) string {
	q := e.transportQuery(token)
	q.Set("groupsToken", groupsToken)
	q.Set("messageId", messageID)
	q.Set("tid", strconv.Itoa(tid))
	return e.build(e.wsScheme(), "reconnect", q)
}

// StartURL returns the URL confirming the transport after connect.
func (e *Endpoint) StartURL(token string) string {
	q := e.transportQuery(token)
	q.Set("_", e.next())
	return e.build("", "start", q)
}

// AbortURL returns the URL ending the connection server side.
func (e *Endpoint) AbortURL(token string) string {
	return e.build("", "abort", e.transportQuery(token))
}

// PingURL returns the REST keep-alive URL.
func (e *Endpoint) PingURL() string {
	return e.build("", "ping", url.Values{"_": {e.next()}})
}
