// Package client talks to the threadfeed API: it pages comments for the
// discussion engine and follows the push stream.
package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/alphabot-ai/threadfeed/internal/discussion"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

// APIError is a non-2xx answer from the API.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("api: status %d", e.Status)
	}
	return fmt.Sprintf("api: status %d: %s", e.Status, e.Message)
}

// Client is an HTTP client for one API base URL. It never retries; failed
// requests are returned to the caller.
type Client struct {
	baseURL *url.URL
	http    *http.Client
	dialer  *websocket.Dialer
	log     *logrus.Entry
}

// New creates a Client. A nil httpClient uses a client with a 15s timeout.
func New(baseURL string, httpClient *http.Client, log *logrus.Entry) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	return &Client{
		baseURL: u,
		http:    httpClient,
		dialer:  websocket.DefaultDialer,
		log:     log.WithField("component", "client"),
	}, nil
}

// endpoint joins escaped path segments onto the base URL.
func (c *Client) endpoint(query url.Values, segments ...string) *url.URL {
	u := c.baseURL.JoinPath(segments...)
	u.RawQuery = query.Encode()
	return u
}

func discussionPath(discussionID, leaf string) []string {
	return []string{"api", "discussions", url.PathEscape(discussionID), leaf}
}

// FetchPage implements discussion.Fetcher.
func (c *Client) FetchPage(ctx context.Context, discussionID string, offset, limit int) (discussion.Page, error) {
	query := url.Values{}
	query.Set("offset", strconv.Itoa(offset))
	query.Set("limit", strconv.Itoa(limit))
	target := c.endpoint(query, discussionPath(discussionID, "comments")...).String()

	var page discussion.Page
	if err := c.getJSON(ctx, target, &page); err != nil {
		return discussion.Page{}, fmt.Errorf("fetch page at offset %d: %w", offset, err)
	}
	return page, nil
}

// Thread fetches the server-rendered thread of a discussion.
func (c *Client) Thread(ctx context.Context, discussionID string) ([]discussion.OrderedComment, error) {
	var resp struct {
		Comments []discussion.OrderedComment `json:"comments"`
	}
	target := c.endpoint(nil, discussionPath(discussionID, "thread")...).String()
	if err := c.getJSON(ctx, target, &resp); err != nil {
		return nil, fmt.Errorf("fetch thread: %w", err)
	}
	return resp.Comments, nil
}

func (c *Client) getJSON(ctx context.Context, target string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var body struct {
			Error string `json:"error"`
		}
		json.NewDecoder(resp.Body).Decode(&body)
		return &APIError{Status: resp.StatusCode, Message: body.Error}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// Subscribe follows a discussion's push stream and calls fn for every event
// until ctx is done or the connection fails. It returns nil when ctx ends
// the subscription.
func (c *Client) Subscribe(ctx context.Context, discussionID string, fn func(discussion.Event)) error {
	u := c.endpoint(nil, discussionPath(discussionID, "stream")...)
	if u.Scheme == "https" {
		u.Scheme = "wss"
	} else {
		u.Scheme = "ws"
	}

	conn, resp, err := c.dialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		if resp != nil {
			return fmt.Errorf("dial stream: %w", &APIError{Status: resp.StatusCode})
		}
		return fmt.Errorf("dial stream: %w", err)
	}
	defer conn.Close()

	stop := context.AfterFunc(ctx, func() {
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		conn.Close()
	})
	defer stop()

	log := c.log.WithField("discussion", discussionID)
	for {
		var ev discussion.Event
		if err := conn.ReadJSON(&ev); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return fmt.Errorf("read stream: %w", err)
		}
		log.WithField("type", ev.Type).Debug("event received")
		fn(ev)
	}
}

var _ discussion.Fetcher = (*Client)(nil)
