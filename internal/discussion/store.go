package discussion

import (
	"slices"
	"sync"
	"sync/atomic"
)

// Store holds every comment seen for one discussion. Comments are appended
// or have their votes updated; they are never removed.
//
// Writers serialize on a mutex and publish a fresh immutable view. Readers
// load the current view without locking.
type Store struct {
	mu      sync.Mutex
	index   map[string]int
	current atomic.Pointer[view]
}

type view struct {
	comments []Comment
	thread   *threadCache
}

// threadCache is shared by views that differ only in vote counts.
type threadCache struct {
	once  sync.Once
	slots []slot
	label []string
}

// NewStore creates an empty Store.
func NewStore() *Store {
	s := &Store{index: make(map[string]int)}
	s.current.Store(&view{thread: &threadCache{}})
	return s
}

// Upsert inserts unknown comments in batch order and refreshes the vote
// counts of known ones. It returns the number of inserted comments.
func (s *Store) Upsert(batch []Comment) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	old := s.current.Load()
	next := slices.Clone(old.comments)
	added := 0
	changed := false
	for _, c := range batch {
		if i, ok := s.index[c.ID]; ok {
			if next[i].Upvotes != c.Upvotes || next[i].Downvotes != c.Downvotes {
				next[i].Upvotes = c.Upvotes
				next[i].Downvotes = c.Downvotes
				changed = true
			}
			continue
		}
		s.index[c.ID] = len(next)
		next = append(next, c)
		added++
	}
	if added == 0 && !changed {
		return 0
	}

	thread := old.thread
	if added > 0 {
		thread = &threadCache{}
	}
	s.current.Store(&view{comments: next, thread: thread})
	return added
}

// Add inserts a single comment, typically one pushed by the stream. It
// reports whether the comment was new.
func (s *Store) Add(c Comment) bool {
	return s.Upsert([]Comment{c}) == 1
}

// UpdateVotes replaces the vote counts of a known comment.
func (s *Store) UpdateVotes(id string, upvotes, downvotes int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	i, ok := s.index[id]
	if !ok {
		return false
	}
	old := s.current.Load()
	if old.comments[i].Upvotes == upvotes && old.comments[i].Downvotes == downvotes {
		return true
	}
	next := slices.Clone(old.comments)
	next[i].Upvotes = upvotes
	next[i].Downvotes = downvotes
	s.current.Store(&view{comments: next, thread: old.thread})
	return true
}

// Snapshot returns the comments in insertion order. The slice is shared and
// must not be modified.
func (s *Store) Snapshot() []Comment {
	return s.current.Load().comments
}

// Get looks a comment up by id.
func (s *Store) Get(id string) (Comment, bool) {
	v := s.current.Load()
	s.mu.Lock()
	i, ok := s.index[id]
	s.mu.Unlock()
	if !ok || i >= len(v.comments) {
		return Comment{}, false
	}
	return v.comments[i], true
}

// Len is the number of distinct comments.
func (s *Store) Len() int {
	return len(s.current.Load().comments)
}

// Thread returns the current comments in thread order with depth and reply
// labels filled in. The layout is recomputed only after new comments arrive.
func (s *Store) Thread() []OrderedComment {
	v := s.current.Load()
	tc := v.thread
	tc.once.Do(func() {
		tc.slots = layout(v.comments)
		labels := ReplyTargets(v.comments)
		tc.label = make([]string, len(v.comments))
		for i, c := range v.comments {
			tc.label[i] = labels[c.ID]
		}
	})

	out := make([]OrderedComment, len(tc.slots))
	for i, sl := range tc.slots {
		out[i] = OrderedComment{
			Comment:      v.comments[sl.index],
			Depth:        sl.depth,
			ReplyToLabel: tc.label[sl.index],
		}
	}
	return out
}

// Leaderboard ranks the current comments. agentsOnly restricts it to agents.
func (s *Store) Leaderboard(topN int, agentsOnly bool) []RankedParticipant {
	if agentsOnly {
		return TopDebaters(s.Snapshot(), topN)
	}
	return Rank(s.Snapshot(), topN)
}
