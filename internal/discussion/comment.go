// Package discussion rebuilds threaded discussions from paged comment
// records and ranks their participants.
package discussion

import (
	"cmp"
	"encoding/json"
	"strconv"
	"strings"
	"time"
)

// AuthorKind distinguishes human participants from automated agents.
type AuthorKind string

const (
	KindHuman AuthorKind = "human"
	KindAgent AuthorKind = "agent"
)

// Author is a closed set: Human or Agent.
type Author interface {
	Kind() AuthorKind
	ID() string
	// Handle is the short name rendered as @handle.
	Handle() string
	Name() string
	sealed()
}

// Human is a registered user.
type Human struct {
	UserID      string
	Username    string
	DisplayName string
}

func (h Human) Kind() AuthorKind { return KindHuman }
func (h Human) ID() string       { return h.UserID }
func (h Human) Handle() string   { return h.Username }
func (h Human) Name() string     { return h.DisplayName }
func (Human) sealed()            {}

// Agent is an automated debater.
type Agent struct {
	AgentID     string
	AgentHandle string
	DisplayName string
}

func (a Agent) Kind() AuthorKind { return KindAgent }
func (a Agent) ID() string       { return a.AgentID }
func (a Agent) Handle() string   { return a.AgentHandle }
func (a Agent) Name() string     { return a.DisplayName }
func (Agent) sealed()            {}

// NewAuthor builds the variant matching kind. Unknown kinds are treated as human.
func NewAuthor(kind AuthorKind, id, handle, name string) Author {
	if kind == KindAgent {
		return Agent{AgentID: id, AgentHandle: handle, DisplayName: name}
	}
	return Human{UserID: id, Username: handle, DisplayName: name}
}

// Comment is a single record in a discussion.
type Comment struct {
	ID        string
	ParentID  string
	Author    Author
	CreatedAt time.Time
	Upvotes   int
	Downvotes int
	Body      string
}

// AuthorID returns the author's id or "" for anonymous comments.
func (c Comment) AuthorID() string {
	if c.Author == nil {
		return ""
	}
	return c.Author.ID()
}

// NetVotes is upvotes minus downvotes.
func (c Comment) NetVotes() int {
	return c.Upvotes - c.Downvotes
}

type wireComment struct {
	ID           string     `json:"id"`
	ParentID     string     `json:"parent_id,omitempty"`
	AuthorID     string     `json:"author_id,omitempty"`
	AuthorKind   AuthorKind `json:"author_kind,omitempty"`
	AuthorHandle string     `json:"author_handle,omitempty"`
	AuthorName   string     `json:"author_name,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	Upvotes      int        `json:"upvotes"`
	Downvotes    int        `json:"downvotes"`
	Body         string     `json:"body"`
}

func (c Comment) MarshalJSON() ([]byte, error) {
	w := wireComment{
		ID:        c.ID,
		ParentID:  c.ParentID,
		CreatedAt: c.CreatedAt,
		Upvotes:   c.Upvotes,
		Downvotes: c.Downvotes,
		Body:      c.Body,
	}
	if c.Author != nil {
		w.AuthorID = c.Author.ID()
		w.AuthorKind = c.Author.Kind()
		w.AuthorHandle = c.Author.Handle()
		w.AuthorName = c.Author.Name()
	}
	return json.Marshal(w)
}

func (c *Comment) UnmarshalJSON(data []byte) error {
	var w wireComment
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	*c = Comment{
		ID:        w.ID,
		ParentID:  w.ParentID,
		CreatedAt: w.CreatedAt,
		Upvotes:   w.Upvotes,
		Downvotes: w.Downvotes,
		Body:      w.Body,
	}
	if w.AuthorID != "" || w.AuthorHandle != "" || w.AuthorName != "" {
		c.Author = NewAuthor(w.AuthorKind, w.AuthorID, w.AuthorHandle, w.AuthorName)
	}
	return nil
}

// OrderedComment is a Comment positioned in a rendered thread.
type OrderedComment struct {
	Comment
	Depth        int
	ReplyToLabel string
}

func (o OrderedComment) MarshalJSON() ([]byte, error) {
	base, err := json.Marshal(o.Comment)
	if err != nil {
		return nil, err
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(base, &fields); err != nil {
		return nil, err
	}
	fields["depth"] = json.RawMessage(strconv.Itoa(o.Depth))
	if o.ReplyToLabel != "" {
		label, err := json.Marshal(o.ReplyToLabel)
		if err != nil {
			return nil, err
		}
		fields["reply_to_label"] = label
	}
	return json.Marshal(fields)
}

func (o *OrderedComment) UnmarshalJSON(data []byte) error {
	if err := o.Comment.UnmarshalJSON(data); err != nil {
		return err
	}
	var extra struct {
		Depth        int    `json:"depth"`
		ReplyToLabel string `json:"reply_to_label"`
	}
	if err := json.Unmarshal(data, &extra); err != nil {
		return err
	}
	o.Depth = extra.Depth
	o.ReplyToLabel = extra.ReplyToLabel
	return nil
}

// compareIDs orders numeric ids numerically and everything else lexically.
// Numeric ids sort before non-numeric ones.
func compareIDs(a, b string) int {
	ai, aErr := strconv.ParseInt(a, 10, 64)
	bi, bErr := strconv.ParseInt(b, 10, 64)
	switch {
	case aErr == nil && bErr == nil:
		if c := cmp.Compare(ai, bi); c != 0 {
			return c
		}
	case aErr == nil:
		return -1
	case bErr == nil:
		return 1
	}
	return strings.Compare(a, b)
}
