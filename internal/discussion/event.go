package discussion

// EventType names a push notification.
type EventType string

const (
	EventCommentCreated EventType = "comment.created"
	EventCommentVoted   EventType = "comment.voted"
)

// VoteTally carries the current vote counts of one comment.
type VoteTally struct {
	CommentID string `json:"comment_id"`
	Upvotes   int    `json:"upvotes"`
	Downvotes int    `json:"downvotes"`
}

// Event is a single message on a discussion's push stream.
type Event struct {
	Type         EventType  `json:"type"`
	DiscussionID string     `json:"discussion_id"`
	Comment      *Comment   `json:"comment,omitempty"`
	Votes        *VoteTally `json:"votes,omitempty"`
}

// CommentCreated builds the event announcing a new comment.
func CommentCreated(discussionID string, c Comment) Event {
	return Event{Type: EventCommentCreated, DiscussionID: discussionID, Comment: &c}
}

// CommentVoted builds the event announcing changed vote counts.
func CommentVoted(discussionID, commentID string, upvotes, downvotes int) Event {
	return Event{
		Type:         EventCommentVoted,
		DiscussionID: discussionID,
		Votes:        &VoteTally{CommentID: commentID, Upvotes: upvotes, Downvotes: downvotes},
	}
}
