package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"strconv"
	"testing"
	"time"

	"github.com/alphabot-ai/threadfeed/internal/client"
	"github.com/alphabot-ai/threadfeed/internal/discussion"
	"github.com/alphabot-ai/threadfeed/internal/logging"
	"github.com/alphabot-ai/threadfeed/internal/store"
	"github.com/alphabot-ai/threadfeed/internal/stream"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// liveServer runs the full router with a real stream hub.
func liveServer(t *testing.T) (*httptest.Server, *store.SQLiteStore, *stream.Hub) {
	t.Helper()

	tmpFile, err := os.CreateTemp("", "threadfeed-e2e-*.db")
	require.NoError(t, err)
	tmpFile.Close()
	t.Cleanup(func() { os.Remove(tmpFile.Name()) })

	sqliteStore, err := store.NewSQLiteStore(tmpFile.Name())
	require.NoError(t, err)
	t.Cleanup(func() { sqliteStore.Close() })

	log := logging.Discard()
	hub := stream.NewHub(log)
	mux := http.NewServeMux()
	NewHandler(sqliteStore, hub, nil, testConfig(), log).Register(mux)

	srv := httptest.NewServer(Recover(log)(LogRequests(log)(mux)))
	t.Cleanup(srv.Close)
	return srv, sqliteStore, hub
}

func TestFeedAgainstServer(t *testing.T) {
	srv, sqliteStore, _ := liveServer(t)
	ctx := t.Context()

	d := &store.Discussion{Title: "paging"}
	require.NoError(t, sqliteStore.CreateDiscussion(ctx, d))

	base := time.Now().UTC().Add(-time.Hour)
	var rootID string
	for i := 0; i < 7; i++ {
		c := &store.Comment{
			DiscussionID: d.ID,
			Body:         "c" + strconv.Itoa(i),
			AuthorID:     "agent-" + strconv.Itoa(i%2),
			AuthorKind:   "agent",
			AuthorHandle: "bot" + strconv.Itoa(i%2),
			CreatedAt:    base.Add(time.Duration(i) * time.Second),
		}
		if i > 0 {
			c.ParentID = rootID
		}
		require.NoError(t, sqliteStore.CreateComment(ctx, c))
		if i == 0 {
			rootID = c.ID
		}
	}

	c, err := client.New(srv.URL, srv.Client(), logging.Discard())
	require.NoError(t, err)

	feed := discussion.NewFeed(d.ID, c, discussion.WithPageLimit(3))
	added, err := feed.LoadAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 7, added)
	assert.Equal(t, 7, feed.Offset())
	assert.False(t, feed.HasMore())

	local := feed.Store().Thread()
	remote, err := c.Thread(ctx, d.ID)
	require.NoError(t, err)
	require.Len(t, remote, len(local))
	for i := range local {
		assert.Equal(t, local[i].ID, remote[i].ID, "position %d", i)
		assert.Equal(t, local[i].Depth, remote[i].Depth, "position %d", i)
		assert.Equal(t, local[i].ReplyToLabel, remote[i].ReplyToLabel, "position %d", i)
	}
	assert.Equal(t, "@bot0", local[1].ReplyToLabel)

	_, err = c.FetchPage(ctx, "missing", 0, 10)
	var apiErr *client.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusNotFound, apiErr.Status)
}

func TestStreamPushesEvents(t *testing.T) {
	srv, sqliteStore, hub := liveServer(t)
	ctx, cancel := context.WithTimeout(t.Context(), 10*time.Second)
	defer cancel()

	d := &store.Discussion{Title: "live"}
	require.NoError(t, sqliteStore.CreateDiscussion(ctx, d))

	c, err := client.New(srv.URL, srv.Client(), logging.Discard())
	require.NoError(t, err)
	feed := discussion.NewFeed(d.ID, c)

	received := make(chan discussion.Event, 4)
	done := make(chan error, 1)
	go func() {
		done <- c.Subscribe(ctx, d.ID, func(ev discussion.Event) { received <- ev })
	}()

	require.Eventually(t, func() bool { return hub.Subscribers(d.ID) == 1 }, 5*time.Second, 10*time.Millisecond)

	resp := postJSON(t, NewHandler(sqliteStore, hub, nil, testConfig(), logging.Discard()).CreateComment,
		"/api/comments", map[string]any{"discussion_id": d.ID, "body": "hello", "author_id": "agent-9", "author_kind": "agent"}, nil)
	require.Equal(t, http.StatusCreated, resp.Code)

	select {
	case ev := <-received:
		assert.Equal(t, discussion.EventCommentCreated, ev.Type)
		require.NotNil(t, ev.Comment)
		assert.Equal(t, "hello", ev.Comment.Body)
		assert.True(t, feed.Apply(ev))
		assert.Equal(t, 1, feed.Store().Len())
	case <-ctx.Done():
		t.Fatal("timed out waiting for pushed event")
	}

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Subscribe did not return after cancel")
	}
}

func TestStreamUnknownDiscussion(t *testing.T) {
	srv, _, _ := liveServer(t)

	c, err := client.New(srv.URL, srv.Client(), logging.Discard())
	require.NoError(t, err)

	err = c.Subscribe(t.Context(), "missing", func(discussion.Event) {})
	var apiErr *client.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusNotFound, apiErr.Status)
}
