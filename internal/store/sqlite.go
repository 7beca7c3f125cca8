package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
)

const defaultPageLimit = 50

type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", path+"?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, err
	}

	store := &SQLiteStore{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, err
	}

	return store, nil
}

func (s *SQLiteStore) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS discussions (
		id TEXT PRIMARY KEY,
		title TEXT NOT NULL,
		comment_count INTEGER DEFAULT 0,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_discussions_created_at ON discussions(created_at);

	CREATE TABLE IF NOT EXISTS comments (
		id TEXT PRIMARY KEY,
		discussion_id TEXT NOT NULL,
		parent_id TEXT,
		body TEXT NOT NULL,
		author_id TEXT,
		author_kind TEXT NOT NULL DEFAULT 'human',
		author_handle TEXT,
		author_name TEXT,
		upvotes INTEGER DEFAULT 0,
		downvotes INTEGER DEFAULT 0,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		FOREIGN KEY (discussion_id) REFERENCES discussions(id)
	);

	CREATE INDEX IF NOT EXISTS idx_comments_discussion ON comments(discussion_id, created_at, id);
	CREATE INDEX IF NOT EXISTS idx_comments_parent_id ON comments(parent_id);

	CREATE TABLE IF NOT EXISTS votes (
		id TEXT PRIMARY KEY,
		comment_id TEXT NOT NULL,
		voter_id TEXT NOT NULL,
		value INTEGER NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		FOREIGN KEY (comment_id) REFERENCES comments(id),
		UNIQUE(comment_id, voter_id)
	);
	`

	_, err := s.db.Exec(schema)
	return err
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Discussions

func (s *SQLiteStore) CreateDiscussion(ctx context.Context, d *Discussion) error {
	if d.ID == "" {
		d.ID = uuid.New().String()
	}
	if d.CreatedAt.IsZero() {
		d.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO discussions (id, title, comment_count, created_at)
		VALUES (?, ?, ?, ?)
	`, d.ID, d.Title, d.CommentCount, d.CreatedAt)

	return err
}

func (s *SQLiteStore) GetDiscussion(ctx context.Context, id string) (*Discussion, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, title, comment_count, created_at
		FROM discussions WHERE id = ?
	`, id)

	var d Discussion
	err := row.Scan(&d.ID, &d.Title, &d.CommentCount, &d.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// Comments

func (s *SQLiteStore) CreateComment(ctx context.Context, comment *Comment) error {
	if comment.ID == "" {
		comment.ID = uuid.New().String()
	}
	if comment.CreatedAt.IsZero() {
		comment.CreatedAt = time.Now().UTC()
	}
	if comment.AuthorKind == "" {
		comment.AuthorKind = "human"
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO comments (id, discussion_id, parent_id, body, author_id, author_kind,
			author_handle, author_name, upvotes, downvotes, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, comment.ID, comment.DiscussionID, nullString(comment.ParentID), comment.Body,
		nullString(comment.AuthorID), comment.AuthorKind, nullString(comment.AuthorHandle),
		nullString(comment.AuthorName), comment.Upvotes, comment.Downvotes, comment.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert comment: %w", err)
	}

	_, err = tx.ExecContext(ctx, `UPDATE discussions SET comment_count = comment_count + 1 WHERE id = ?`, comment.DiscussionID)
	if err != nil {
		return fmt.Errorf("update comment count: %w", err)
	}

	return tx.Commit()
}

func (s *SQLiteStore) GetComment(ctx context.Context, id string) (*Comment, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+commentColumns+`
		FROM comments WHERE id = ?
	`, id)

	comment, err := scanComment(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return comment, err
}

// ListComments returns one page of a discussion in creation order together
// with the discussion's total comment count.
func (s *SQLiteStore) ListComments(ctx context.Context, discussionID string, opts PageOptions) ([]*Comment, int, error) {
	if opts.Limit <= 0 {
		opts.Limit = defaultPageLimit
	}
	if opts.Offset < 0 {
		opts.Offset = 0
	}

	var total int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM comments WHERE discussion_id = ?`, discussionID).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("count comments: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT `+commentColumns+`
		FROM comments WHERE discussion_id = ?
		ORDER BY created_at ASC, id ASC
		LIMIT ? OFFSET ?
	`, discussionID, opts.Limit, opts.Offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	comments, err := scanComments(rows)
	if err != nil {
		return nil, 0, err
	}
	return comments, total, nil
}

func (s *SQLiteStore) ListAllComments(ctx context.Context, discussionID string) ([]*Comment, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+commentColumns+`
		FROM comments WHERE discussion_id = ?
		ORDER BY created_at ASC, id ASC
	`, discussionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanComments(rows)
}

// Votes

// CastVote records a voter's +1/-1 on a comment. A changed vote moves the
// comment's counts by the difference; repeating the same value returns
// ErrDuplicateVote.
func (s *SQLiteStore) CastVote(ctx context.Context, vote *Vote) (*Comment, error) {
	if vote.ID == "" {
		vote.ID = uuid.New().String()
	}
	if vote.CreatedAt.IsZero() {
		vote.CreatedAt = time.Now().UTC()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	var exists int
	err = tx.QueryRowContext(ctx, `SELECT 1 FROM comments WHERE id = ?`, vote.CommentID).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	var previous int
	err = tx.QueryRowContext(ctx, `
		SELECT value FROM votes WHERE comment_id = ? AND voter_id = ?
	`, vote.CommentID, vote.VoterID).Scan(&previous)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		_, err = tx.ExecContext(ctx, `
			INSERT INTO votes (id, comment_id, voter_id, value, created_at)
			VALUES (?, ?, ?, ?, ?)
		`, vote.ID, vote.CommentID, vote.VoterID, vote.Value, vote.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("insert vote: %w", err)
		}
	case err != nil:
		return nil, err
	case previous == vote.Value:
		return nil, ErrDuplicateVote
	default:
		_, err = tx.ExecContext(ctx, `
			UPDATE votes SET value = ? WHERE comment_id = ? AND voter_id = ?
		`, vote.Value, vote.CommentID, vote.VoterID)
		if err != nil {
			return nil, fmt.Errorf("update vote: %w", err)
		}
	}

	up, down := tally(previous, vote.Value)
	_, err = tx.ExecContext(ctx, `
		UPDATE comments SET upvotes = upvotes + ?, downvotes = downvotes + ? WHERE id = ?
	`, up, down, vote.CommentID)
	if err != nil {
		return nil, fmt.Errorf("update comment votes: %w", err)
	}

	comment, err := scanComment(tx.QueryRowContext(ctx, `
		SELECT `+commentColumns+`
		FROM comments WHERE id = ?
	`, vote.CommentID))
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return comment, nil
}

// tally converts a vote change into upvote and downvote deltas. previous is
// 0 when the voter had not voted.
func tally(previous, next int) (up, down int) {
	switch previous {
	case 1:
		up--
	case -1:
		down--
	}
	switch next {
	case 1:
		up++
	case -1:
		down++
	}
	return up, down
}

// Helpers

const commentColumns = `id, discussion_id, parent_id, body, author_id, author_kind,
	author_handle, author_name, upvotes, downvotes, created_at`

type scanner interface {
	Scan(dest ...any) error
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func scanComment(row scanner) (*Comment, error) {
	var comment Comment
	var parentID, authorID, authorHandle, authorName sql.NullString

	err := row.Scan(&comment.ID, &comment.DiscussionID, &parentID, &comment.Body, &authorID,
		&comment.AuthorKind, &authorHandle, &authorName, &comment.Upvotes, &comment.Downvotes,
		&comment.CreatedAt)
	if err != nil {
		return nil, err
	}

	comment.ParentID = parentID.String
	comment.AuthorID = authorID.String
	comment.AuthorHandle = authorHandle.String
	comment.AuthorName = authorName.String

	return &comment, nil
}

func scanComments(rows *sql.Rows) ([]*Comment, error) {
	var comments []*Comment
	for rows.Next() {
		comment, err := scanComment(rows)
		if err != nil {
			return nil, err
		}
		comments = append(comments, comment)
	}
	return comments, rows.Err()
}

// Ensure SQLiteStore implements Store
var _ Store = (*SQLiteStore)(nil)
