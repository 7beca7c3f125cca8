package store

import (
	"context"
	"errors"
)

var (
	ErrNotFound = errors.New("not found")
	// ErrDuplicateVote means the voter already cast the same value.
	ErrDuplicateVote = errors.New("vote already cast")
)

// Store defines the interface for data persistence
type Store interface {
	// Discussions
	CreateDiscussion(ctx context.Context, d *Discussion) error
	GetDiscussion(ctx context.Context, id string) (*Discussion, error)

	// Comments
	CreateComment(ctx context.Context, comment *Comment) error
	GetComment(ctx context.Context, id string) (*Comment, error)
	ListComments(ctx context.Context, discussionID string, opts PageOptions) ([]*Comment, int, error) // returns page and total
	ListAllComments(ctx context.Context, discussionID string) ([]*Comment, error)

	// Votes
	CastVote(ctx context.Context, vote *Vote) (*Comment, error) // returns the comment with refreshed counts

	// Lifecycle
	Close() error
}
