package models

import (
	"database/sql"
	"time"
)

// Article represents a row in the 'articles' table. The id is the
// provider-assigned message id and doubles as the primary key.
type Article struct {
	ID           string         `db:"id"`
	PublisherID  sql.NullString `db:"publisher_id"` // NULL when the sender address failed validation
	UserID       string         `db:"user_id"`
	Title        string         `db:"title"`
	Snippet      string         `db:"snippet"`
	Content      string         `db:"content"`
	IsRead       bool           `db:"is_read"`
	InternalDate string         `db:"internal_date"` // provider epoch millis as decimal string, "" when unknown
	CreatedAt    time.Time      `db:"created_at"`
	UpdatedAt    time.Time      `db:"updated_at"`
}

// NewArticle creates a new Article with default values
func NewArticle() *Article {
	now := time.Now()
	return &Article{
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// ArticleSummary is the feed-listing projection of an article: content is
// omitted and the publisher's display fields are joined in.
type ArticleSummary struct {
	ID             string         `db:"id"`
	PublisherID    sql.NullString `db:"publisher_id"`
	UserID         string         `db:"user_id"`
	Title          string         `db:"title"`
	Snippet        string         `db:"snippet"`
	IsRead         bool           `db:"is_read"`
	InternalDate   string         `db:"internal_date"`
	PublisherName  sql.NullString `db:"publisher_name"`
	PublisherEmail sql.NullString `db:"publisher_email"`
}
