package archive

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/livetiming/lt-go/pkg/signalr"
	"github.com/livetiming/lt-go/pkg/topic"
)

// DefaultBaseURL is the root of the public static archive.
const DefaultBaseURL = "https://livetiming.formula1.com/static"

// maxFileSize bounds a downloaded archive file. Telemetry streams of a
// full race are well below this.
const maxFileSize = 256 << 20

// Archive errors.
var (
	ErrNotFound     = errors.New("archive file not found")
	ErrNoStream     = errors.New("topic has no stream in this session")
	ErrInvalidIndex = errors.New("invalid archive index")
	ErrNoSession    = errors.New("no such archived session")
)

// byteOrderMark prefixes every file the archive serves.
var byteOrderMark = []byte{0xEF, 0xBB, 0xBF}

// Status is the hub's broadcast state.
type Status string

const (
	StatusAvailable Status = "Available"
	StatusOffline   Status = "Offline"
)

// HTTPError reports a non-2xx archive response.
type HTTPError struct {
	URL  string
	Code int
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("GET %s: http status %d", e.URL, e.Code)
}

// Unwrap maps 404 to ErrNotFound.
func (e *HTTPError) Unwrap() error {
	if e.Code == http.StatusNotFound {
		return ErrNotFound
	}
	return nil
}

// Client fetches archive files over HTTP.
type Client struct {
	// BaseURL is the archive root (default: DefaultBaseURL).
	BaseURL string

	// HTTP performs the requests (default: http.DefaultClient).
	HTTP *http.Client

	// UserAgent sent with every request (default: signalr.DefaultUserAgent).
	UserAgent string

	// Cache stores downloaded files. Nil disables caching.
	Cache *Cache
}

// StreamingStatus reports whether a session is being broadcast.
func (c *Client) StreamingStatus(ctx context.Context) (Status, error) {
	var body struct {
		Status Status `json:"Status"`
	}
	if err := c.getJSON(ctx, "StreamingStatus.json", &body, false); err != nil {
		return "", err
	}
	if body.Status == "" {
		return "", fmt.Errorf("%w: StreamingStatus.json has no Status", ErrInvalidIndex)
	}
	return body.Status, nil
}

// YearIndex returns the meetings of one season.
func (c *Client) YearIndex(ctx context.Context, year int) (YearIndex, error) {
	var idx YearIndex
	if err := c.getJSON(ctx, strconv.Itoa(year)+"/Index.json", &idx, true); err != nil {
		return YearIndex{}, err
	}
	if idx.Year != 0 && idx.Year != year {
		return YearIndex{}, fmt.Errorf("%w: asked for %d, got %d", ErrInvalidIndex, year, idx.Year)
	}
	idx.Year = year
	return idx, nil
}

// SessionIndex returns the topics recorded for a session. path is the
// session's Path as listed in the year index.
func (c *Client) SessionIndex(ctx context.Context, path string) (SessionIndex, error) {
	var idx SessionIndex
	if err := c.getJSON(ctx, joinPath(path, "Index.json"), &idx, true); err != nil {
		return SessionIndex{}, err
	}
	return idx, nil
}

// Stream downloads and parses one topic's stream file.
func (c *Client) Stream(ctx context.Context, path string, idx SessionIndex, t topic.Topic) ([]Line, error) {
	feed, ok := idx.Feeds[t.String()]
	if !ok || feed.StreamPath == "" {
		return nil, fmt.Errorf("%w: %s", ErrNoStream, t)
	}
	data, err := c.fetch(ctx, joinPath(path, feed.StreamPath), true)
	if err != nil {
		return nil, err
	}
	return ParseStream(bytes.NewReader(data), t)
}

// Session downloads the streams of every requested topic the session
// recorded and merges them by offset. Topics the session lacks are
// returned in missing.
func (c *Client) Session(ctx context.Context, path string, topics []topic.Topic) (lines []Line, missing []topic.Topic, err error) {
	idx, err := c.SessionIndex(ctx, path)
	if err != nil {
		return nil, nil, err
	}
	streams := make([][]Line, 0, len(topics))
	for _, t := range topics {
		s, err := c.Stream(ctx, path, idx, t)
		if errors.Is(err, ErrNoStream) || errors.Is(err, ErrNotFound) {
			missing = append(missing, t)
			continue
		}
		if err != nil {
			return nil, nil, err
		}
		streams = append(streams, s)
	}
	return Merge(streams...), missing, nil
}

func (c *Client) getJSON(ctx context.Context, path string, v any, cacheable bool) error {
	data, err := c.fetch(ctx, path, cacheable)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrInvalidIndex, path, err)
	}
	return nil
}

// fetch returns a file's body without its byte order mark. Only files of
// finished sessions are cacheable; StreamingStatus.json changes.
func (c *Client) fetch(ctx context.Context, path string, cacheable bool) ([]byte, error) {
	u, err := c.resolve(path)
	if err != nil {
		return nil, err
	}
	if cacheable && c.Cache != nil {
		if data, ok := c.Cache.Get(u); ok {
			return data, nil
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("archive: %w", err)
	}
	ua := c.UserAgent
	if ua == "" {
		ua = signalr.DefaultUserAgent
	}
	req.Header.Set("User-Agent", ua)

	client := c.HTTP
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("archive: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &HTTPError{URL: u, Code: resp.StatusCode}
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxFileSize))
	if err != nil {
		return nil, fmt.Errorf("archive: read %s: %w", path, err)
	}
	data = bytes.TrimPrefix(data, byteOrderMark)

	if cacheable && c.Cache != nil {
		// A cache write failure only costs a later download.
		_ = c.Cache.Put(u, data)
	}
	return data, nil
}

func (c *Client) resolve(path string) (string, error) {
	base := c.BaseURL
	if base == "" {
		base = DefaultBaseURL
	}
	u, err := url.Parse(strings.TrimSuffix(base, "/") + "/" + strings.TrimPrefix(path, "/"))
	if err != nil {
		return "", fmt.Errorf("archive: %w", err)
	}
	return u.String(), nil
}

func joinPath(dir, file string) string {
	return strings.TrimSuffix(dir, "/") + "/" + file
}
