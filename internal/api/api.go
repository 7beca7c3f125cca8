package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/alphabot-ai/threadfeed/internal/config"
	"github.com/alphabot-ai/threadfeed/internal/discussion"
	"github.com/alphabot-ai/threadfeed/internal/store"
	"github.com/sirupsen/logrus"
)

// Publisher delivers push events to stream subscribers.
type Publisher interface {
	Publish(ev discussion.Event)
	Serve(w http.ResponseWriter, r *http.Request, discussionID string)
}

// RankingCache caches leaderboard queries. It is optional.
type RankingCache interface {
	Get(ctx context.Context, discussionID string, agentsOnly bool, topN int) ([]discussion.RankedParticipant, error)
	Version(ctx context.Context, discussionID string) (int64, error)
	Put(ctx context.Context, discussionID string, version int64, agentsOnly bool, topN int, ranked []discussion.RankedParticipant) error
	Invalidate(ctx context.Context, discussionID string) error
	Ping(ctx context.Context) error
}

// Handler holds dependencies for API handlers
type Handler struct {
	store  store.Store
	events Publisher
	cache  RankingCache
	cfg    *config.Config
	log    *logrus.Entry
}

// NewHandler creates a new API handler. cache may be nil.
func NewHandler(s store.Store, events Publisher, cache RankingCache, cfg *config.Config, log *logrus.Entry) *Handler {
	return &Handler{
		store:  s,
		events: events,
		cache:  cache,
		cfg:    cfg,
		log:    log.WithField("component", "api"),
	}
}

// Register mounts every API route on mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /health", h.Health)

	mux.HandleFunc("POST /api/discussions", h.CreateDiscussion)
	mux.HandleFunc("GET /api/discussions/{id}", h.GetDiscussion)
	mux.HandleFunc("GET /api/discussions/{id}/comments", h.ListComments)
	mux.HandleFunc("GET /api/discussions/{id}/thread", h.Thread)
	mux.HandleFunc("GET /api/discussions/{id}/leaderboard", h.Leaderboard)
	mux.HandleFunc("GET /api/discussions/{id}/stream", h.Stream)

	mux.HandleFunc("POST /api/comments", h.CreateComment)
	mux.HandleFunc("POST /api/votes", h.CreateVote)
}

// Health handles GET /health
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	if h.cache != nil {
		if err := h.cache.Ping(r.Context()); err != nil {
			h.log.WithError(err).Warn("leaderboard cache unreachable")
			writeError(w, http.StatusServiceUnavailable, "leaderboard cache unavailable")
			return
		}
	}
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

// Response helpers

type ErrorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, ErrorResponse{Error: message})
}

// Request helpers

func (h *Handler) getAgentID(r *http.Request) string {
	return r.Header.Get("X-Agent-Id")
}

// queryInt reads a non-negative integer query parameter; ok is false when
// the parameter is present but malformed.
func queryInt(r *http.Request, name string, fallback int) (int, bool) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}

// requireDiscussion loads the discussion named by the {id} path value and
// writes the error response when it is missing.
func (h *Handler) requireDiscussion(w http.ResponseWriter, r *http.Request) (*store.Discussion, bool) {
	id := r.PathValue("id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "discussion id required")
		return nil, false
	}

	d, err := h.store.GetDiscussion(r.Context(), id)
	if err != nil {
		h.log.WithError(err).WithField("discussion", id).Error("get discussion")
		writeError(w, http.StatusInternalServerError, "database error")
		return nil, false
	}
	if d == nil {
		writeError(w, http.StatusNotFound, "discussion not found")
		return nil, false
	}
	return d, true
}

func (h *Handler) invalidateLeaderboard(ctx context.Context, discussionID string) {
	if h.cache == nil {
		return
	}
	if err := h.cache.Invalidate(ctx, discussionID); err != nil {
		h.log.WithError(err).WithField("discussion", discussionID).Warn("leaderboard invalidation failed")
	}
}
