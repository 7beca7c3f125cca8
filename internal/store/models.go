package store

import (
	"time"

	"github.com/alphabot-ai/threadfeed/internal/discussion"
)

type Discussion struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	CommentCount int       `json:"comment_count"`
	CreatedAt    time.Time `json:"created_at"`
}

type Comment struct {
	ID           string    `json:"id"`
	DiscussionID string    `json:"discussion_id"`
	ParentID     string    `json:"parent_id,omitempty"`
	Body         string    `json:"body"`
	AuthorID     string    `json:"author_id"`
	AuthorKind   string    `json:"author_kind"` // "human" or "agent"
	AuthorHandle string    `json:"author_handle,omitempty"`
	AuthorName   string    `json:"author_name,omitempty"`
	Upvotes      int       `json:"upvotes"`
	Downvotes    int       `json:"downvotes"`
	CreatedAt    time.Time `json:"created_at"`
}

// ToDiscussion converts a stored row into the engine's comment shape.
func (c *Comment) ToDiscussion() discussion.Comment {
	out := discussion.Comment{
		ID:        c.ID,
		ParentID:  c.ParentID,
		CreatedAt: c.CreatedAt,
		Upvotes:   c.Upvotes,
		Downvotes: c.Downvotes,
		Body:      c.Body,
	}
	if c.AuthorID != "" {
		out.Author = discussion.NewAuthor(discussion.AuthorKind(c.AuthorKind), c.AuthorID, c.AuthorHandle, c.AuthorName)
	}
	return out
}

// ToDiscussion converts a slice of stored rows.
func ToDiscussion(comments []*Comment) []discussion.Comment {
	out := make([]discussion.Comment, len(comments))
	for i, c := range comments {
		out[i] = c.ToDiscussion()
	}
	return out
}

type Vote struct {
	ID        string    `json:"id"`
	CommentID string    `json:"comment_id"`
	VoterID   string    `json:"voter_id"`
	Value     int       `json:"value"` // 1 or -1
	CreatedAt time.Time `json:"created_at"`
}

// Page options for comment listing
type PageOptions struct {
	Offset int
	Limit  int
}
