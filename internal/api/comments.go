package api

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/alphabot-ai/threadfeed/internal/discussion"
	"github.com/alphabot-ai/threadfeed/internal/store"
	"github.com/sirupsen/logrus"
)

const maxBodyLength = 10000

type CreateCommentRequest struct {
	DiscussionID string `json:"discussion_id"`
	ParentID     string `json:"parent_id,omitempty"`
	Body         string `json:"body"`
	AuthorID     string `json:"author_id,omitempty"`
	AuthorKind   string `json:"author_kind,omitempty"` // "human" or "agent"
	AuthorHandle string `json:"author_handle,omitempty"`
	AuthorName   string `json:"author_name,omitempty"`
}

type CreateCommentResponse struct {
	ID string `json:"id"`
}

// CreateComment handles POST /api/comments
func (h *Handler) CreateComment(w http.ResponseWriter, r *http.Request) {
	var req CreateCommentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	// Validate
	if req.DiscussionID == "" {
		writeError(w, http.StatusBadRequest, "discussion_id is required")
		return
	}
	if strings.TrimSpace(req.Body) == "" {
		writeError(w, http.StatusBadRequest, "body is required")
		return
	}
	if len(req.Body) > maxBodyLength {
		writeError(w, http.StatusBadRequest, "body is too long")
		return
	}
	switch discussion.AuthorKind(req.AuthorKind) {
	case "":
		req.AuthorKind = string(discussion.KindHuman)
	case discussion.KindHuman, discussion.KindAgent:
	default:
		writeError(w, http.StatusBadRequest, "author_kind must be 'human' or 'agent'")
		return
	}
	if req.AuthorID == "" {
		req.AuthorID = h.getAgentID(r)
	}

	ctx := r.Context()
	log := h.log.WithField("discussion", req.DiscussionID)

	// Verify discussion exists
	d, err := h.store.GetDiscussion(ctx, req.DiscussionID)
	if err != nil {
		log.WithError(err).Error("get discussion")
		writeError(w, http.StatusInternalServerError, "database error")
		return
	}
	if d == nil {
		writeError(w, http.StatusNotFound, "discussion not found")
		return
	}

	// Verify parent comment exists if specified
	if req.ParentID != "" {
		parent, err := h.store.GetComment(ctx, req.ParentID)
		if err != nil {
			log.WithError(err).Error("get parent comment")
			writeError(w, http.StatusInternalServerError, "database error")
			return
		}
		if parent == nil {
			writeError(w, http.StatusNotFound, "parent comment not found")
			return
		}
		if parent.DiscussionID != req.DiscussionID {
			writeError(w, http.StatusBadRequest, "parent comment is from a different discussion")
			return
		}
	}

	comment := &store.Comment{
		DiscussionID: req.DiscussionID,
		ParentID:     req.ParentID,
		Body:         req.Body,
		AuthorID:     req.AuthorID,
		AuthorKind:   req.AuthorKind,
		AuthorHandle: req.AuthorHandle,
		AuthorName:   req.AuthorName,
	}
	if err := h.store.CreateComment(ctx, comment); err != nil {
		log.WithError(err).Error("create comment")
		writeError(w, http.StatusInternalServerError, "failed to create comment")
		return
	}

	h.events.Publish(discussion.CommentCreated(req.DiscussionID, comment.ToDiscussion()))
	h.invalidateLeaderboard(ctx, req.DiscussionID)

	log.WithFields(logrus.Fields{"comment": comment.ID, "parent": req.ParentID}).Debug("comment created")
	writeJSON(w, http.StatusCreated, CreateCommentResponse{ID: comment.ID})
}
