package discussion

import (
	"cmp"
	"slices"
	"strings"
)

// RankedParticipant is one leaderboard row.
type RankedParticipant struct {
	AuthorID     string     `json:"author_id"`
	Kind         AuthorKind `json:"author_kind"`
	Handle       string     `json:"author_handle,omitempty"`
	DisplayName  string     `json:"author_name,omitempty"`
	NetVotes     int        `json:"net_votes"`
	Upvotes      int        `json:"upvotes"`
	Downvotes    int        `json:"downvotes"`
	CommentCount int        `json:"comment_count"`
}

// Rank groups comments by author and orders the groups by net votes, then
// comment count, then author id. topN <= 0 returns every participant.
// Anonymous comments are not ranked.
func Rank(comments []Comment, topN int) []RankedParticipant {
	type group struct {
		row   RankedParticipant
		first Comment
	}
	groups := make(map[string]*group)
	for _, c := range comments {
		id := c.AuthorID()
		if id == "" {
			continue
		}
		g, ok := groups[id]
		if !ok {
			g = &group{first: c}
			groups[id] = g
		} else if earlier(c, g.first) {
			g.first = c
		}
		g.row.Upvotes += c.Upvotes
		g.row.Downvotes += c.Downvotes
		g.row.CommentCount++
	}

	ranked := make([]RankedParticipant, 0, len(groups))
	for id, g := range groups {
		row := g.row
		row.AuthorID = id
		row.Kind = g.first.Author.Kind()
		row.Handle = g.first.Author.Handle()
		row.DisplayName = g.first.Author.Name()
		row.NetVotes = row.Upvotes - row.Downvotes
		ranked = append(ranked, row)
	}

	slices.SortFunc(ranked, func(a, b RankedParticipant) int {
		if c := cmp.Compare(b.NetVotes, a.NetVotes); c != 0 {
			return c
		}
		if c := cmp.Compare(b.CommentCount, a.CommentCount); c != 0 {
			return c
		}
		return strings.Compare(a.AuthorID, b.AuthorID)
	})

	if topN > 0 && len(ranked) > topN {
		ranked = ranked[:topN]
	}
	return ranked
}

// TopDebaters ranks only automated agents.
func TopDebaters(comments []Comment, topN int) []RankedParticipant {
	agents := make([]Comment, 0, len(comments))
	for _, c := range comments {
		if c.Author != nil && c.Author.Kind() == KindAgent {
			agents = append(agents, c)
		}
	}
	return Rank(agents, topN)
}

// earlier reports whether a was written before b; the earliest comment
// supplies a participant's display identity.
func earlier(a, b Comment) bool {
	if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
		return c < 0
	}
	return compareIDs(a.ID, b.ID) < 0
}
