// Package storage persists and queries articles and publishers.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"mailfeed/ingestor/internal/database"
	"mailfeed/ingestor/internal/models"
)

// ErrNotFound is returned when a requested row does not exist (or is not
// visible to the requesting user).
var ErrNotFound = errors.New("not found")

// ListOptions controls the article feed query.
type ListOptions struct {
	UnreadOnly bool
	Limit      int

	// Cursor fields point at the last item of the previous page; both must
	// be set together.
	CursorInternalDate *string
	CursorID           *string
}

// Repository defines persistence operations over articles and publishers.
// The ingestion pipeline consumes the first three; the rest serve the read
// API.
type Repository interface {
	FindExistingArticleIDs(ctx context.Context, userID string, ids []string) (map[string]struct{}, error)
	UpsertPublisherByEmail(ctx context.Context, email, name string) (string, error)
	BulkInsertArticles(ctx context.Context, articles []models.Article) error

	ListArticles(ctx context.Context, userID string, opts ListOptions) ([]models.ArticleSummary, error)
	ListArticlesByPublisher(ctx context.Context, userID, publisherID string, limit int) ([]models.ArticleSummary, error)
	GetArticle(ctx context.Context, userID, id string) (*models.Article, error)
	MarkArticleRead(ctx context.Context, userID, id string) error
	GetPublisher(ctx context.Context, id string) (*models.Publisher, error)
}

// sqlxRepository implements Repository using sqlx.
type sqlxRepository struct {
	db *database.DB
}

// NewRepository creates a new repository instance.
func NewRepository(db *database.DB) Repository {
	return &sqlxRepository{db: db}
}

// FindExistingArticleIDs runs one batched existence query over the given
// ids and returns the matches as a set.
func (r *sqlxRepository) FindExistingArticleIDs(ctx context.Context, userID string, ids []string) (map[string]struct{}, error) {
	existing := make(map[string]struct{}, len(ids))
	if len(ids) == 0 {
		return existing, nil
	}

	query, args, err := sqlx.In(`SELECT id FROM articles WHERE user_id = ? AND id IN (?)`, userID, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to build existence query: %w", err)
	}

	var found []string
	if err := r.db.SelectContext(ctx, &found, r.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("failed to query existing article ids: %w", err)
	}

	for _, id := range found {
		existing[id] = struct{}{}
	}
	return existing, nil
}

// UpsertPublisherByEmail resolves an email address to a publisher id,
// inserting a new row on first sighting. The conflict branch is a no-op
// write that only forces RETURNING to produce the existing id, so the
// uniqueness constraint serializes concurrent callers without in-process
// locking.
func (r *sqlxRepository) UpsertPublisherByEmail(ctx context.Context, email, name string) (string, error) {
	now := time.Now()

	var id string
	err := r.db.QueryRowxContext(ctx, `
		INSERT INTO publishers (id, name, email_address, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(email_address) DO UPDATE SET email_address = excluded.email_address
		RETURNING id`,
		uuid.NewString(), nullString(name), email, now, now,
	).Scan(&id)
	if err != nil {
		return "", fmt.Errorf("failed to upsert publisher %s: %w", email, err)
	}
	return id, nil
}

// BulkInsertArticles writes all articles inside one transaction. Any
// failure rolls the whole batch back; the dedup step has already filtered
// known ids, so a constraint violation here is a real fault.
func (r *sqlxRepository) BulkInsertArticles(ctx context.Context, articles []models.Article) error {
	if len(articles) == 0 {
		return nil
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PreparexContext(ctx, `
		INSERT INTO articles (id, publisher_id, user_id, title, snippet, content, is_read, internal_date, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare batch insert: %w", err)
	}
	defer stmt.Close()

	for _, a := range articles {
		if _, err := stmt.ExecContext(ctx,
			a.ID, a.PublisherID, a.UserID, a.Title, a.Snippet, a.Content,
			a.IsRead, a.InternalDate, a.CreatedAt, a.UpdatedAt,
		); err != nil {
			return fmt.Errorf("failed to insert article %s: %w", a.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit batch insert: %w", err)
	}
	return nil
}

const summaryColumns = `
	a.id, a.publisher_id, a.user_id, a.title, a.snippet, a.is_read, a.internal_date,
	p.name AS publisher_name, p.email_address AS publisher_email`

// ListArticles returns feed summaries for the user, newest first by
// internal date. internal_date is a fixed-width decimal string, so text
// comparison orders correctly; "" (unknown date) sorts last.
func (r *sqlxRepository) ListArticles(ctx context.Context, userID string, opts ListOptions) ([]models.ArticleSummary, error) {
	query := `SELECT ` + summaryColumns + `
		FROM articles a
		LEFT JOIN publishers p ON p.id = a.publisher_id
		WHERE a.user_id = ?`
	args := []any{userID}

	if opts.UnreadOnly {
		query += ` AND a.is_read = 0`
	}
	if opts.CursorInternalDate != nil && opts.CursorID != nil {
		query += ` AND (a.internal_date < ? OR (a.internal_date = ? AND a.id < ?))`
		args = append(args, *opts.CursorInternalDate, *opts.CursorInternalDate, *opts.CursorID)
	}

	query += ` ORDER BY a.internal_date DESC, a.id DESC LIMIT ?`
	args = append(args, opts.Limit)

	items := []models.ArticleSummary{}
	if err := r.db.SelectContext(ctx, &items, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list articles: %w", err)
	}
	return items, nil
}

// ListArticlesByPublisher returns the user's articles from one publisher,
// newest first.
func (r *sqlxRepository) ListArticlesByPublisher(ctx context.Context, userID, publisherID string, limit int) ([]models.ArticleSummary, error) {
	items := []models.ArticleSummary{}
	err := r.db.SelectContext(ctx, &items, `SELECT `+summaryColumns+`
		FROM articles a
		LEFT JOIN publishers p ON p.id = a.publisher_id
		WHERE a.user_id = ? AND a.publisher_id = ?
		ORDER BY a.internal_date DESC, a.id DESC LIMIT ?`,
		userID, publisherID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list articles for publisher %s: %w", publisherID, err)
	}
	return items, nil
}

// GetArticle returns one article with full content, scoped to the user.
func (r *sqlxRepository) GetArticle(ctx context.Context, userID, id string) (*models.Article, error) {
	var article models.Article
	err := r.db.GetContext(ctx, &article,
		`SELECT * FROM articles WHERE user_id = ? AND id = ?`, userID, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get article %s: %w", id, err)
	}
	return &article, nil
}

// MarkArticleRead flags one of the user's articles as read.
func (r *sqlxRepository) MarkArticleRead(ctx context.Context, userID, id string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE articles SET is_read = 1, updated_at = ? WHERE user_id = ? AND id = ?`,
		time.Now(), userID, id)
	if err != nil {
		return fmt.Errorf("failed to mark article %s read: %w", id, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected for article %s: %w", id, err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// GetPublisher returns one publisher by id.
func (r *sqlxRepository) GetPublisher(ctx context.Context, id string) (*models.Publisher, error) {
	var publisher models.Publisher
	err := r.db.GetContext(ctx, &publisher,
		`SELECT * FROM publishers WHERE id = ?`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get publisher %s: %w", id, err)
	}
	return &publisher, nil
}

// nullString maps "" to NULL for nullable text columns.
func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
