package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/alphabot-ai/threadfeed/internal/discussion"
	"github.com/alphabot-ai/threadfeed/internal/store"
)

type CreateVoteRequest struct {
	CommentID string `json:"comment_id"`
	VoterID   string `json:"voter_id,omitempty"`
	Value     int    `json:"value"` // 1 or -1
}

type CreateVoteResponse struct {
	OK        bool `json:"ok"`
	Upvotes   int  `json:"upvotes"`
	Downvotes int  `json:"downvotes"`
}

// CreateVote handles POST /api/votes
func (h *Handler) CreateVote(w http.ResponseWriter, r *http.Request) {
	var req CreateVoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	if req.CommentID == "" {
		writeError(w, http.StatusBadRequest, "comment_id is required")
		return
	}
	if req.Value != 1 && req.Value != -1 {
		writeError(w, http.StatusBadRequest, "value must be 1 or -1")
		return
	}
	if req.VoterID == "" {
		req.VoterID = h.getAgentID(r)
	}
	if req.VoterID == "" {
		writeError(w, http.StatusBadRequest, "voter_id or X-Agent-Id header is required")
		return
	}

	ctx := r.Context()

	comment, err := h.store.GetComment(ctx, req.CommentID)
	if err != nil {
		h.log.WithError(err).Error("get comment")
		writeError(w, http.StatusInternalServerError, "database error")
		return
	}
	if comment == nil {
		writeError(w, http.StatusNotFound, "comment not found")
		return
	}
	// Prevent self-voting
	if comment.AuthorID != "" && comment.AuthorID == req.VoterID {
		writeError(w, http.StatusForbidden, "cannot vote on your own content")
		return
	}

	updated, err := h.store.CastVote(ctx, &store.Vote{
		CommentID: req.CommentID,
		VoterID:   req.VoterID,
		Value:     req.Value,
	})
	switch {
	case errors.Is(err, store.ErrDuplicateVote):
		// Same vote again changes nothing.
		writeJSON(w, http.StatusOK, CreateVoteResponse{OK: true, Upvotes: comment.Upvotes, Downvotes: comment.Downvotes})
		return
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, "comment not found")
		return
	case err != nil:
		h.log.WithError(err).WithField("comment", req.CommentID).Error("cast vote")
		writeError(w, http.StatusInternalServerError, "failed to record vote")
		return
	}

	h.events.Publish(discussion.CommentVoted(updated.DiscussionID, updated.ID, updated.Upvotes, updated.Downvotes))
	h.invalidateLeaderboard(ctx, updated.DiscussionID)

	writeJSON(w, http.StatusOK, CreateVoteResponse{OK: true, Upvotes: updated.Upvotes, Downvotes: updated.Downvotes})
}
