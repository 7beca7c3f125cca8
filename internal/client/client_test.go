package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alphabot-ai/threadfeed/internal/discussion"
	"github.com/alphabot-ai/threadfeed/internal/logging"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRejectsBadURL(t *testing.T) {
	for _, raw := range []string{"ftp://example.com", "://nope", "localhost:8080"} {
		_, err := New(raw, nil, logging.Discard())
		assert.Error(t, err, raw)
	}
}

func TestFetchPage(t *testing.T) {
	var gotPath, gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath, gotQuery = r.URL.Path, r.URL.RawQuery
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"items":[{"id":"1","author_id":"a1","author_kind":"agent","author_handle":"bot","created_at":"2026-01-01T00:00:00Z","upvotes":2,"body":"hi"}],"total":9}`))
	}))
	defer srv.Close()

	c, err := New(srv.URL+"/", srv.Client(), logging.Discard())
	require.NoError(t, err)

	page, err := c.FetchPage(context.Background(), "d 1", 4, 2)
	require.NoError(t, err)

	assert.Equal(t, "/api/discussions/d 1/comments", gotPath)
	assert.Equal(t, "limit=2&offset=4", gotQuery)
	require.Len(t, page.Items, 1)
	require.NotNil(t, page.Total)
	assert.Equal(t, 9, *page.Total)

	item := page.Items[0]
	assert.Equal(t, "a1", item.AuthorID())
	require.NotNil(t, item.Author)
	assert.Equal(t, discussion.KindAgent, item.Author.Kind())
	assert.Equal(t, 2, item.Upvotes)
}

func TestFetchPageAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		json.NewEncoder(w).Encode(map[string]string{"error": "discussion not found"})
	}))
	defer srv.Close()

	c, err := New(srv.URL, srv.Client(), logging.Discard())
	require.NoError(t, err)

	_, err = c.FetchPage(context.Background(), "missing", 0, 10)
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusNotFound, apiErr.Status)
	assert.Equal(t, "discussion not found", apiErr.Message)
}

func TestFetchPageContextCancelled(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	c, err := New(srv.URL, srv.Client(), logging.Discard())
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = c.FetchPage(ctx, "d1", 0, 10)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestThread(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/discussions/d1/thread", r.URL.Path)
		w.Write([]byte(`{"comments":[{"id":"1","body":"root","depth":0},{"id":"2","parent_id":"1","body":"re","depth":1,"reply_to_label":"@bot"}]}`))
	}))
	defer srv.Close()

	c, err := New(srv.URL, srv.Client(), logging.Discard())
	require.NoError(t, err)

	thread, err := c.Thread(context.Background(), "d1")
	require.NoError(t, err)
	require.Len(t, thread, 2)
	assert.Equal(t, 1, thread[1].Depth)
	assert.Equal(t, "@bot", thread[1].ReplyToLabel)
	assert.Equal(t, "1", thread[1].ParentID)
}

func TestSubscribe(t *testing.T) {
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/discussions/d1/stream", r.URL.Path)
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		conn.WriteJSON(discussion.CommentVoted("d1", "c1", 3, 0))
		conn.WriteJSON(discussion.CommentVoted("d1", "c2", 0, 1))
		conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	}))
	defer srv.Close()

	c, err := New(srv.URL, srv.Client(), logging.Discard())
	require.NoError(t, err)

	var got []discussion.Event
	err = c.Subscribe(context.Background(), "d1", func(ev discussion.Event) {
		got = append(got, ev)
	})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "c1", got[0].Votes.CommentID)
	assert.Equal(t, 1, got[1].Votes.Downvotes)
}
