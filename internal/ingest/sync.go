package ingest

import (
	"context"
	"database/sql"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"mailfeed/ingestor/internal/models"
)

const (
	defaultPageSize         = 200
	defaultFetchConcurrency = 8
	defaultFetchTimeout     = 30 * time.Second
)

// Result summarizes one sync run: how many articles were inserted and
// which messages failed individually.
type Result struct {
	Inserted int         `json:"inserted"`
	Errors   []ItemError `json:"errors"`
}

// Syncer drives the ingestion pipeline for one user: list recent ids,
// resolve the ones not yet stored, fetch them concurrently, normalize, and
// persist in one batched write.
type Syncer struct {
	provider Provider
	store    Store
	logger   zerolog.Logger

	pageSize         int64
	fetchConcurrency int
	fetchTimeout     time.Duration
}

// Option configures a Syncer.
type Option func(*Syncer)

// WithPageSize sets how many recent message ids are listed per run.
func WithPageSize(n int64) Option {
	return func(s *Syncer) {
		if n > 0 {
			s.pageSize = n
		}
	}
}

// WithFetchConcurrency bounds the number of in-flight message fetches.
func WithFetchConcurrency(n int) Option {
	return func(s *Syncer) {
		if n > 0 {
			s.fetchConcurrency = n
		}
	}
}

// WithFetchTimeout sets the per-message fetch timeout.
func WithFetchTimeout(d time.Duration) Option {
	return func(s *Syncer) {
		if d > 0 {
			s.fetchTimeout = d
		}
	}
}

// WithLogger sets the logger used during runs.
func WithLogger(logger zerolog.Logger) Option {
	return func(s *Syncer) {
		s.logger = logger
	}
}

// NewSyncer creates a Syncer over the given provider and store.
func NewSyncer(provider Provider, store Store, opts ...Option) *Syncer {
	s := &Syncer{
		provider:         provider,
		store:            store,
		logger:           zerolog.Nop(),
		pageSize:         defaultPageSize,
		fetchConcurrency: defaultFetchConcurrency,
		fetchTimeout:     defaultFetchTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Sync runs one ingestion pass for the user. A listing or bulk insert
// failure aborts the run; fetch and normalization failures are collected
// per message and reported in the Result.
func (s *Syncer) Sync(ctx context.Context, userID string) (*Result, error) {
	ids, err := s.provider.ListRecentMessageIDs(ctx, s.pageSize)
	if err != nil {
		return nil, &ProviderError{Op: "list messages", Err: err}
	}

	existing, err := s.store.FindExistingArticleIDs(ctx, userID, ids)
	if err != nil {
		return nil, &PersistenceError{Op: "find existing article ids", Err: err}
	}

	missing := Resolve(ids, existing)
	s.logger.Info().
		Str("user_id", userID).
		Int("listed", len(ids)).
		Int("new", len(missing)).
		Msg("Resolved messages to fetch")

	if len(missing) == 0 {
		return &Result{}, nil
	}

	fetched, fetchErrs := s.fetchAll(ctx, missing)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	result := &Result{}
	articles := make([]models.Article, 0, len(missing))
	now := time.Now()

	for i, id := range missing {
		if fetchErrs[i] != nil {
			s.logger.Warn().Str("id", id).Err(fetchErrs[i]).Msg("Skipping message")
			result.Errors = append(result.Errors, ItemError{ID: id, Reason: fetchErrs[i].Error()})
			continue
		}

		article, err := s.normalize(ctx, userID, fetched[i], now)
		if err != nil {
			s.logger.Warn().Str("id", id).Err(err).Msg("Skipping message")
			result.Errors = append(result.Errors, ItemError{ID: id, Reason: err.Error()})
			continue
		}
		articles = append(articles, *article)
	}

	if len(articles) > 0 {
		if err := s.store.BulkInsertArticles(ctx, articles); err != nil {
			return nil, &PersistenceError{Op: "bulk insert articles", Err: err}
		}
	}

	result.Inserted = len(articles)
	s.logger.Info().
		Str("user_id", userID).
		Int("inserted", result.Inserted).
		Int("failed", len(result.Errors)).
		Msg("Sync run finished")
	return result, nil
}

// fetchAll fetches every id concurrently, bounded by fetchConcurrency.
// Each slot of the returned slices belongs to one id, so the goroutines
// never contend; a failed fetch records its error and leaves siblings
// untouched.
func (s *Syncer) fetchAll(ctx context.Context, ids []string) ([]*Message, []error) {
	fetched := make([]*Message, len(ids))
	fetchErrs := make([]error, len(ids))

	var g errgroup.Group
	g.SetLimit(s.fetchConcurrency)

	for i, id := range ids {
		g.Go(func() error {
			fetchCtx, cancel := context.WithTimeout(ctx, s.fetchTimeout)
			defer cancel()

			msg, err := s.provider.GetFullMessage(fetchCtx, id)
			if err != nil {
				fetchErrs[i] = &ProviderError{Op: "get message", ID: id, Err: err}
				return nil
			}
			fetched[i] = msg
			return nil
		})
	}

	g.Wait()
	return fetched, fetchErrs
}

// normalize turns one fetched message into an article record, upserting
// its publisher when the sender address is well-formed.
func (s *Syncer) normalize(ctx context.Context, userID string, msg *Message, now time.Time) (*models.Article, error) {
	if msg.Payload == nil {
		return nil, ErrNoPayload
	}

	ident := ExtractIdentity(msg.Headers)

	var publisherID sql.NullString
	if ValidEmail(ident.SenderEmail) {
		id, err := s.store.UpsertPublisherByEmail(ctx, ident.SenderEmail, ident.SenderName)
		if err != nil {
			return nil, &PersistenceError{Op: "upsert publisher", Err: err}
		}
		publisherID = sql.NullString{String: id, Valid: true}
	} else if ident.SenderEmail != "" {
		s.logger.Debug().
			Str("id", msg.ID).
			Str("from", ident.SenderEmail).
			Msg("Sender address failed validation, storing article without publisher")
	}

	return &models.Article{
		ID:           msg.ID,
		PublisherID:  publisherID,
		UserID:       userID,
		Title:        ident.Title,
		Snippet:      msg.Snippet,
		Content:      ExtractContent(msg.Payload),
		InternalDate: msg.InternalDate,
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}
