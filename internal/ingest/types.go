// Package ingest normalizes remote inbox messages into article records.
package ingest

import (
	"context"

	"mailfeed/ingestor/internal/models"
)

// Header is a single name/value header pair from a remote message.
type Header struct {
	Name  string
	Value string
}

// BodyPart is one node of a message body tree. Data carries the
// base64url-encoded content, when present.
type BodyPart struct {
	MimeType string
	Data     string
	Parts    []BodyPart
}

// Message is a provider-neutral full message as returned by the mail
// provider. InternalDate is the provider's epoch millis encoded as a
// decimal string, empty when the provider omits it.
type Message struct {
	ID           string
	InternalDate string
	Snippet      string
	Headers      []Header
	Payload      *BodyPart
}

// Provider is the mail provider capability the pipeline consumes.
type Provider interface {
	// ListRecentMessageIDs returns up to max ids of the most recent
	// messages, newest first.
	ListRecentMessageIDs(ctx context.Context, max int64) ([]string, error)

	// GetFullMessage fetches one message with headers and body tree.
	GetFullMessage(ctx context.Context, id string) (*Message, error)
}

// Store is the persistence capability the pipeline consumes.
type Store interface {
	// FindExistingArticleIDs returns which of the given ids are already
	// persisted for the user, as a set.
	FindExistingArticleIDs(ctx context.Context, userID string, ids []string) (map[string]struct{}, error)

	// UpsertPublisherByEmail resolves an email address to a stable
	// publisher id, creating the row on first sighting.
	UpsertPublisherByEmail(ctx context.Context, email, name string) (string, error)

	// BulkInsertArticles persists all articles in one batched write.
	BulkInsertArticles(ctx context.Context, articles []models.Article) error
}
