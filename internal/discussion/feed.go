package discussion

import (
	"context"
	"errors"
	"sync"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/semaphore"
)

// DefaultPageLimit is used when a Feed is created without WithPageLimit.
const DefaultPageLimit = 50

// ErrSuperseded is returned by LoadMore when Rewind ran while its page was
// being fetched. The fetched page is discarded.
var ErrSuperseded = errors.New("page fetch superseded")

// Page is one batch of comments as served by the comments API.
type Page struct {
	Items []Comment `json:"items"`
	Total *int      `json:"total,omitempty"`
}

// Fetcher retrieves a page of a discussion's comments.
type Fetcher interface {
	FetchPage(ctx context.Context, discussionID string, offset, limit int) (Page, error)
}

// MergeResult reports what a merge changed.
type MergeResult struct {
	Added   int  `json:"added"`
	HasMore bool `json:"has_more"`
}

// Feed pages a discussion into its Store. It is the Store's owner.
type Feed struct {
	discussionID string
	fetcher      Fetcher
	store        *Store
	limit        int
	log          *logrus.Entry

	// inflight admits one LoadMore at a time; waiters queue.
	inflight *semaphore.Weighted

	mu         sync.Mutex
	offset     int
	hasMore    bool
	total      *int
	generation uint64
}

// Option configures a Feed.
type Option func(*Feed)

// WithPageLimit sets the number of comments requested per page.
func WithPageLimit(limit int) Option {
	return func(f *Feed) {
		if limit > 0 {
			f.limit = limit
		}
	}
}

// WithStore makes the Feed write into an existing Store.
func WithStore(s *Store) Option {
	return func(f *Feed) {
		if s != nil {
			f.store = s
		}
	}
}

// WithLogger sets the logger used for merge diagnostics.
func WithLogger(log *logrus.Entry) Option {
	return func(f *Feed) {
		if log != nil {
			f.log = log
		}
	}
}

// NewFeed creates a Feed for one discussion.
func NewFeed(discussionID string, fetcher Fetcher, opts ...Option) *Feed {
	f := &Feed{
		discussionID: discussionID,
		fetcher:      fetcher,
		store:        NewStore(),
		limit:        DefaultPageLimit,
		log:          logrus.NewEntry(logrus.StandardLogger()),
		inflight:     semaphore.NewWeighted(1),
		hasMore:      true,
	}
	for _, opt := range opts {
		opt(f)
	}
	f.log = f.log.WithField("discussion", discussionID)
	return f
}

// Store returns the Store the Feed writes into.
func (f *Feed) Store() *Store {
	return f.store
}

// DiscussionID returns the discussion being paged.
func (f *Feed) DiscussionID() string {
	return f.discussionID
}

// HasMore reports whether another page may exist.
func (f *Feed) HasMore() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.hasMore
}

// Offset is the server position the next page starts at.
func (f *Feed) Offset() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.offset
}

// Merge folds a batch into the Store. total is the server-reported size of
// the discussion when known.
func (f *Feed) Merge(batch []Comment, total *int) MergeResult {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.mergeLocked(batch, total)
}

func (f *Feed) mergeLocked(batch []Comment, total *int) MergeResult {
	added := f.store.Upsert(batch)
	f.offset += len(batch)
	if total != nil {
		t := *total
		f.total = &t
	}

	switch {
	case len(batch) == 0:
		f.hasMore = false
	case total != nil:
		// After Rewind the Store is already full; paging continues until
		// the cursor reaches the total so every page is refreshed.
		f.hasMore = f.store.Len() < *total || f.offset < *total
	default:
		f.hasMore = len(batch) == f.limit
	}

	f.log.WithFields(logrus.Fields{
		"batch":    len(batch),
		"added":    added,
		"offset":   f.offset,
		"has_more": f.hasMore,
	}).Debug("merged page")

	return MergeResult{Added: added, HasMore: f.hasMore}
}

// LoadMore fetches the next page and merges it. Calls are serialized; a call
// waiting its turn gives up when ctx is done. A failed or cancelled fetch
// leaves the Feed untouched.
func (f *Feed) LoadMore(ctx context.Context) (MergeResult, error) {
	if err := f.inflight.Acquire(ctx, 1); err != nil {
		return MergeResult{}, err
	}
	defer f.inflight.Release(1)

	f.mu.Lock()
	if !f.hasMore {
		f.mu.Unlock()
		return MergeResult{}, nil
	}
	offset, gen := f.offset, f.generation
	f.mu.Unlock()

	page, err := f.fetcher.FetchPage(ctx, f.discussionID, offset, f.limit)
	if err != nil {
		f.log.WithError(err).WithField("offset", offset).Warn("page fetch failed")
		return MergeResult{}, err
	}
	if err := ctx.Err(); err != nil {
		return MergeResult{}, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if gen != f.generation {
		f.log.WithField("offset", offset).Debug("discarding superseded page")
		return MergeResult{}, ErrSuperseded
	}
	return f.mergeLocked(page.Items, page.Total), nil
}

// LoadAll pages until the server reports no more comments. It returns the
// number of comments added across all pages.
func (f *Feed) LoadAll(ctx context.Context) (int, error) {
	added := 0
	for f.HasMore() {
		res, err := f.LoadMore(ctx)
		if errors.Is(err, ErrSuperseded) {
			continue
		}
		if err != nil {
			return added, err
		}
		added += res.Added
	}
	return added, nil
}

// Rewind restarts paging from the first page. Comments already in the Store
// stay; re-fetched pages refresh their votes. A fetch in flight when Rewind
// is called is discarded.
func (f *Feed) Rewind() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.generation++
	f.offset = 0
	f.hasMore = true
}

// Apply folds a push event into the Store. It reports whether the Store
// changed.
func (f *Feed) Apply(ev Event) bool {
	if ev.DiscussionID != "" && ev.DiscussionID != f.discussionID {
		return false
	}
	switch ev.Type {
	case EventCommentCreated:
		if ev.Comment == nil {
			return false
		}
		if f.store.Add(*ev.Comment) {
			return true
		}
		return f.store.UpdateVotes(ev.Comment.ID, ev.Comment.Upvotes, ev.Comment.Downvotes)
	case EventCommentVoted:
		if ev.Votes == nil {
			return false
		}
		return f.store.UpdateVotes(ev.Votes.CommentID, ev.Votes.Upvotes, ev.Votes.Downvotes)
	default:
		f.log.WithField("type", ev.Type).Debug("ignoring unknown event")
		return false
	}
}
