package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/alphabot-ai/threadfeed/internal/discussion"
	"github.com/alphabot-ai/threadfeed/internal/leaderboard"
	"github.com/alphabot-ai/threadfeed/internal/store"
)

const defaultLeaderboardSize = 10

type CreateDiscussionRequest struct {
	Title string `json:"title"`
}

type CreateDiscussionResponse struct {
	ID string `json:"id"`
}

type ThreadResponse struct {
	Comments []discussion.OrderedComment `json:"comments"`
}

type LeaderboardResponse struct {
	Participants []discussion.RankedParticipant `json:"participants"`
	Cached       bool                           `json:"cached"`
}

// CreateDiscussion handles POST /api/discussions
func (h *Handler) CreateDiscussion(w http.ResponseWriter, r *http.Request) {
	var req CreateDiscussionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	req.Title = strings.TrimSpace(req.Title)
	if req.Title == "" {
		writeError(w, http.StatusBadRequest, "title is required")
		return
	}
	if len(req.Title) > 180 {
		writeError(w, http.StatusBadRequest, "title must be at most 180 characters")
		return
	}

	d := &store.Discussion{Title: req.Title}
	if err := h.store.CreateDiscussion(r.Context(), d); err != nil {
		h.log.WithError(err).Error("create discussion")
		writeError(w, http.StatusInternalServerError, "failed to create discussion")
		return
	}

	writeJSON(w, http.StatusCreated, CreateDiscussionResponse{ID: d.ID})
}

// GetDiscussion handles GET /api/discussions/{id}
func (h *Handler) GetDiscussion(w http.ResponseWriter, r *http.Request) {
	d, ok := h.requireDiscussion(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, d)
}

// ListComments handles GET /api/discussions/{id}/comments
func (h *Handler) ListComments(w http.ResponseWriter, r *http.Request) {
	d, ok := h.requireDiscussion(w, r)
	if !ok {
		return
	}

	offset, ok := queryInt(r, "offset", 0)
	if !ok {
		writeError(w, http.StatusBadRequest, "offset must be a non-negative integer")
		return
	}
	limit, ok := queryInt(r, "limit", 0)
	if !ok {
		writeError(w, http.StatusBadRequest, "limit must be a non-negative integer")
		return
	}
	limit = h.cfg.ClampPageLimit(limit)

	comments, total, err := h.store.ListComments(r.Context(), d.ID, store.PageOptions{Offset: offset, Limit: limit})
	if err != nil {
		h.log.WithError(err).WithField("discussion", d.ID).Error("list comments")
		writeError(w, http.StatusInternalServerError, "database error")
		return
	}

	writeJSON(w, http.StatusOK, discussion.Page{Items: store.ToDiscussion(comments), Total: &total})
}

// Thread handles GET /api/discussions/{id}/thread
func (h *Handler) Thread(w http.ResponseWriter, r *http.Request) {
	d, ok := h.requireDiscussion(w, r)
	if !ok {
		return
	}

	comments, err := h.store.ListAllComments(r.Context(), d.ID)
	if err != nil {
		h.log.WithError(err).WithField("discussion", d.ID).Error("list comments")
		writeError(w, http.StatusInternalServerError, "database error")
		return
	}

	ordered := discussion.BuildOrder(store.ToDiscussion(comments))
	discussion.AnnotateReplyTargets(ordered)

	writeJSON(w, http.StatusOK, ThreadResponse{Comments: ordered})
}

// Leaderboard handles GET /api/discussions/{id}/leaderboard
func (h *Handler) Leaderboard(w http.ResponseWriter, r *http.Request) {
	d, ok := h.requireDiscussion(w, r)
	if !ok {
		return
	}

	topN, ok := queryInt(r, "top", defaultLeaderboardSize)
	if !ok {
		writeError(w, http.StatusBadRequest, "top must be a non-negative integer")
		return
	}

	var agentsOnly bool
	switch r.URL.Query().Get("kind") {
	case "", "agent":
		agentsOnly = true
	case "all":
		agentsOnly = false
	default:
		writeError(w, http.StatusBadRequest, "kind must be 'agent' or 'all'")
		return
	}

	log := h.log.WithField("discussion", d.ID)
	cacheable := h.cache != nil
	var version int64
	if cacheable {
		ranked, err := h.cache.Get(r.Context(), d.ID, agentsOnly, topN)
		if err == nil {
			writeJSON(w, http.StatusOK, LeaderboardResponse{Participants: ranked, Cached: true})
			return
		}
		if !errors.Is(err, leaderboard.ErrMiss) {
			log.WithError(err).Warn("leaderboard cache read failed")
		}
		// The version must be read before the comments so a concurrent
		// write makes the Put below stale.
		if version, err = h.cache.Version(r.Context(), d.ID); err != nil {
			log.WithError(err).Warn("leaderboard version read failed")
			cacheable = false
		}
	}

	comments, err := h.store.ListAllComments(r.Context(), d.ID)
	if err != nil {
		log.WithError(err).Error("list comments")
		writeError(w, http.StatusInternalServerError, "database error")
		return
	}

	all := store.ToDiscussion(comments)
	var ranked []discussion.RankedParticipant
	if agentsOnly {
		ranked = discussion.TopDebaters(all, topN)
	} else {
		ranked = discussion.Rank(all, topN)
	}

	if cacheable {
		err := h.cache.Put(r.Context(), d.ID, version, agentsOnly, topN, ranked)
		switch {
		case errors.Is(err, leaderboard.ErrStale):
			log.Debug("discussion changed while ranking; not caching")
		case err != nil:
			log.WithError(err).Warn("leaderboard cache write failed")
		}
	}

	writeJSON(w, http.StatusOK, LeaderboardResponse{Participants: ranked})
}

// Stream handles GET /api/discussions/{id}/stream
func (h *Handler) Stream(w http.ResponseWriter, r *http.Request) {
	d, ok := h.requireDiscussion(w, r)
	if !ok {
		return
	}
	h.events.Serve(w, r, d.ID)
}
