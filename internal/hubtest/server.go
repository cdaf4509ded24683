// Package hubtest runs an in-process live-timing hub for tests.
//
// The server answers negotiate, connect, start, ping and abort the way the
// public hub does, replies to Subscribe with configurable snapshots and
// lets the test push feed frames or drop the websocket at will.
package hubtest

import (
	"context"
	"encoding/json"
	"encoding/pem"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Path is the hub base path served by Server.
const Path = "/signalr"

// CookieName is the affinity cookie set during negotiation. Connect
// requests without it are refused.
const CookieName = "HubAffinity"

// ErrNotConnected is returned by Send when no client is connected.
var ErrNotConnected = errors.New("hubtest: no client connected")

// Request records one HTTP request the server received.
type Request struct {
	Method    string
	Op        string
	Query     url.Values
	UserAgent string
	Cookie    bool
}

// Server is a fake hub.
type Server struct {
	srv      *httptest.Server
	upgrader websocket.Upgrader

	mu                sync.Mutex
	snapshots         map[string]any
	reject            string
	negotiateFailures int
	keepAliveTimeout  float64
	tokens            int
	requests          []Request
	active            *hubConn
	connections       int
	aborts            int

	subscribed chan []string
}

type hubConn struct {
	ws      *websocket.Conn
	writeMu sync.Mutex
}

func (c *hubConn) write(data []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.ws.WriteMessage(websocket.TextMessage, data)
}

// New starts a plain HTTP hub. Close it when done.
func New() *Server {
	s := newServer()
	s.srv = httptest.NewServer(s.handler())
	return s
}

// NewTLS starts a hub behind a self-signed certificate.
func NewTLS() *Server {
	s := newServer()
	s.srv = httptest.NewTLSServer(s.handler())
	return s
}

func newServer() *Server {
	return &Server{
		snapshots:        make(map[string]any),
		keepAliveTimeout: 20,
		subscribed:       make(chan []string, 16),
	}
}

// URL returns the hub base URL.
func (s *Server) URL() string {
	return s.srv.URL + Path
}

// Client returns an HTTP client trusting the server certificate.
func (s *Server) Client() *http.Client {
	return s.srv.Client()
}

// Certificate returns the server certificate in PEM form, nil for plain
// HTTP.
func (s *Server) Certificate() []byte {
	if s.srv.TLS == nil {
		return nil
	}
	cert := s.srv.Certificate()
	return pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: cert.Raw})
}

// Close shuts the server down, dropping any client.
func (s *Server) Close() {
	s.Drop()
	s.srv.Close()
}

// SetSnapshot sets the value returned for topic in Subscribe results.
func (s *Server) SetSnapshot(topic string, value any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshots[topic] = value
}

// RejectSubscribe makes Subscribe fail with message. Empty accepts again.
func (s *Server) RejectSubscribe(message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reject = message
}

// FailNegotiate makes the next n negotiations fail with 503.
func (s *Server) FailNegotiate(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.negotiateFailures = n
}

// SetKeepAliveTimeout sets the negotiated keep-alive timeout in seconds.
func (s *Server) SetKeepAliveTimeout(seconds float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.keepAliveTimeout = seconds
}

// WaitSubscribed blocks until a client subscribes and returns the topics.
func (s *Server) WaitSubscribed(ctx context.Context) ([]string, error) {
	select {
	case topics := <-s.subscribed:
		return topics, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Send writes a raw frame to the connected client.
func (s *Server) Send(frame string) error {
	s.mu.Lock()
	c := s.active
	s.mu.Unlock()
	if c == nil {
		return ErrNotConnected
	}
	return c.write([]byte(frame))
}

// SendFeed sends one feed message.
func (s *Server) SendFeed(cursor, topic string, payload any, at time.Time) error {
	frame, err := FeedFrame(cursor, topic, payload, at)
	if err != nil {
		return err
	}
	return s.Send(frame)
}

// SendKeepAlive sends the empty keep-alive frame.
func (s *Server) SendKeepAlive() error {
	return s.Send("{}")
}

// Drop closes the client websocket without a close handshake.
func (s *Server) Drop() {
	s.mu.Lock()
	c := s.active
	s.active = nil
	s.mu.Unlock()
	if c != nil {
		c.ws.Close()
	}
}

// Requests returns the HTTP requests received so far.
func (s *Server) Requests() []Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Request(nil), s.requests...)
}

// Count returns how many requests were made for op.
func (s *Server) Count(op string) int {
	n := 0
	for _, r := range s.Requests() {
		if r.Op == op {
			n++
		}
	}
	return n
}

// Connections returns the number of websocket connections accepted.
func (s *Server) Connections() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connections
}

// Aborts returns the number of abort calls.
func (s *Server) Aborts() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.aborts
}

// FeedFrame builds a frame carrying one feed message.
func FeedFrame(cursor, topic string, payload any, at time.Time) (string, error) {
	frame := map[string]any{
		"C": cursor,
		"M": []any{map[string]any{
			"H": "Streaming",
			"M": "feed",
			"A": []any{topic, payload, at.UTC().Format("2006-01-02T15:04:05.000Z")},
		}},
	}
	data, err := json.Marshal(frame)
	if err != nil {
		return "", fmt.Errorf("hubtest: %w", err)
	}
	return string(data), nil
}

func (s *Server) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc(Path+"/negotiate", s.handleNegotiate)
	mux.HandleFunc(Path+"/connect", s.handleConnect)
	mux.HandleFunc(Path+"/start", s.handleResponse("started"))
	mux.HandleFunc(Path+"/ping", s.handleResponse("pong"))
	mux.HandleFunc(Path+"/abort", s.handleAbort)
	return mux
}

func (s *Server) record(r *http.Request) {
	_, err := r.Cookie(CookieName)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests = append(s.requests, Request{
		Method:    r.Method,
		Op:        strings.TrimPrefix(r.URL.Path, Path+"/"),
		Query:     r.URL.Query(),
		UserAgent: r.UserAgent(),
		Cookie:    err == nil,
	})
}

func (s *Server) handleNegotiate(w http.ResponseWriter, r *http.Request) {
	s.record(r)
	q := r.URL.Query()
	if q.Get("clientProtocol") != "1.5" || q.Get("connectionData") == "" {
		http.Error(w, "bad negotiate", http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	if s.negotiateFailures > 0 {
		s.negotiateFailures--
		s.mu.Unlock()
		http.Error(w, "unavailable", http.StatusServiceUnavailable)
		return
	}
	s.tokens++
	n := s.tokens
	token := fmt.Sprintf("token-%d", n)
	keepAlive := s.keepAliveTimeout
	s.mu.Unlock()

	http.SetCookie(w, &http.Cookie{Name: CookieName, Value: token, Path: "/"})
	writeJSON(w, map[string]any{
		"Url":                     Path,
		"ConnectionToken":         token,
		"ConnectionId":            fmt.Sprintf("conn-%d", n),
		"KeepAliveTimeout":        keepAlive,
		"DisconnectTimeout":       30.0,
		"ConnectionTimeout":       110.0,
		"TryWebSockets":           true,
		"ProtocolVersion":         "1.5",
		"TransportConnectTimeout": 10.0,
		"LongPollDelay":           1.0,
	})
}

func (s *Server) handleConnect(w http.ResponseWriter, r *http.Request) {
	s.record(r)
	q := r.URL.Query()
	if q.Get("transport") != "webSockets" || !strings.HasPrefix(q.Get("connectionToken"), "token-") {
		http.Error(w, "bad connect", http.StatusBadRequest)
		return
	}
	if _, err := r.Cookie(CookieName); err != nil {
		http.Error(w, "missing affinity cookie", http.StatusForbidden)
		return
	}

	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	c := &hubConn{ws: ws}

	s.mu.Lock()
	if s.active != nil {
		s.active.ws.Close()
	}
	s.active = c
	s.connections++
	n := s.connections
	s.mu.Unlock()

	_ = c.write([]byte(fmt.Sprintf(`{"C":"s-0,%X","S":1,"M":[]}`, n)))
	s.serve(c)
}

func (s *Server) serve(c *hubConn) {
	defer func() {
		s.mu.Lock()
		if s.active == c {
			s.active = nil
		}
		s.mu.Unlock()
		c.ws.Close()
	}()

	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			return
		}
		var inv struct {
			H string            `json:"H"`
			M string            `json:"M"`
			A []json.RawMessage `json:"A"`
			I json.RawMessage   `json:"I"`
		}
		if json.Unmarshal(data, &inv) != nil || inv.M != "Subscribe" || len(inv.A) == 0 {
			continue
		}
		var topics []string
		_ = json.Unmarshal(inv.A[0], &topics)

		s.mu.Lock()
		reject := s.reject
		result := make(map[string]any, len(topics))
		for _, t := range topics {
			if v, ok := s.snapshots[t]; ok {
				result[t] = v
			}
		}
		s.mu.Unlock()

		id := strings.Trim(string(inv.I), `"`)
		var reply []byte
		if reject != "" {
			reply, _ = json.Marshal(map[string]any{"I": id, "E": reject})
		} else {
			reply, _ = json.Marshal(map[string]any{"R": result, "I": id})
		}
		if err := c.write(reply); err != nil {
			return
		}

		select {
		case s.subscribed <- topics:
		default:
		}
	}
}

func (s *Server) handleAbort(w http.ResponseWriter, r *http.Request) {
	s.record(r)
	if r.Method != http.MethodPost {
		http.Error(w, "abort must be POST", http.StatusMethodNotAllowed)
		return
	}
	s.mu.Lock()
	s.aborts++
	s.mu.Unlock()
	w.WriteHeader(http.StatusOK)
}

func (s *Server) handleResponse(response string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.record(r)
		writeJSON(w, map[string]string{"Response": response})
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json; charset=UTF-8")
	_ = json.NewEncoder(w).Encode(v)
}
