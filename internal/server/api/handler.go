package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/rs/zerolog/hlog"
	"github.com/rs/zerolog/log"

	"mailfeed/ingestor/internal/auth"
	"mailfeed/ingestor/internal/ingest"
	"mailfeed/ingestor/internal/models"
	"mailfeed/ingestor/internal/server/pagination"
	"mailfeed/ingestor/internal/storage"
)

const defaultLimit = 10
const maxLimit = 100

// SyncRunner triggers one ingestion run for a user. The concrete runner is
// wired in main, where the provider client is built from the user's stored
// credentials.
type SyncRunner interface {
	Run(ctx context.Context, userID string) (*ingest.Result, error)
}

// RunnerFunc adapts a function to the SyncRunner interface.
type RunnerFunc func(ctx context.Context, userID string) (*ingest.Result, error)

// Run implements SyncRunner.
func (f RunnerFunc) Run(ctx context.Context, userID string) (*ingest.Result, error) {
	return f(ctx, userID)
}

// Handler holds dependencies for the API endpoints.
type Handler struct {
	repo   storage.Repository
	runner SyncRunner
}

// NewHandler creates a new handler instance.
func NewHandler(repo storage.Repository, runner SyncRunner) *Handler {
	return &Handler{repo: repo, runner: runner}
}

// articleSummary is the JSON feed row: no content, publisher joined in.
type articleSummary struct {
	ID           string        `json:"id"`
	Title        string        `json:"title"`
	Snippet      string        `json:"snippet"`
	IsRead       bool          `json:"isRead"`
	InternalDate string        `json:"internalDate"`
	Publisher    *publisherRef `json:"publisher,omitempty"`
}

type publisherRef struct {
	ID           string `json:"id"`
	Name         string `json:"name,omitempty"`
	EmailAddress string `json:"emailAddress"`
}

type articleResponse struct {
	articleSummary
	Content string `json:"content"`
}

// listResponse is the paginated feed envelope.
type listResponse struct {
	Items      []articleSummary `json:"items"`
	NextCursor *string          `json:"next_cursor,omitempty"`
}

// Sync handles POST /v1/sync: runs one ingestion pass for the user and
// reports the inserted count plus per-message failures.
func (h *Handler) Sync(w http.ResponseWriter, r *http.Request) {
	log := hlog.FromRequest(r)

	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		http.Error(w, "Missing 'user_id' parameter", http.StatusBadRequest)
		return
	}

	result, err := h.runner.Run(r.Context(), userID)
	if err != nil {
		var provErr *ingest.ProviderError
		switch {
		case errors.Is(err, auth.ErrNoAccount):
			log.Warn().Str("user_id", userID).Msg("Sync requested without a connected account")
			http.Error(w, "No mail account connected for user", http.StatusConflict)
		case errors.As(err, &provErr):
			log.Error().Err(err).Str("user_id", userID).Msg("Sync failed against mail provider")
			http.Error(w, "Mail provider error", http.StatusBadGateway)
		default:
			log.Error().Err(err).Str("user_id", userID).Msg("Sync failed")
			http.Error(w, "Internal server error", http.StatusInternalServerError)
		}
		return
	}

	log.Info().
		Str("user_id", userID).
		Int("inserted", result.Inserted).
		Int("failed", len(result.Errors)).
		Msg("Sync completed")
	writeJSON(w, http.StatusOK, result)
}

// ListArticles handles GET /v1/articles: the user's feed, newest first,
// unread-only unless ?unread=false, cursor-paginated.
func (h *Handler) ListArticles(w http.ResponseWriter, r *http.Request) {
	log := hlog.FromRequest(r)

	query := r.URL.Query()
	userID := query.Get("user_id")
	if userID == "" {
		http.Error(w, "Missing 'user_id' parameter", http.StatusBadRequest)
		return
	}

	opts := storage.ListOptions{UnreadOnly: true, Limit: defaultLimit}

	if unreadStr := query.Get("unread"); unreadStr != "" {
		unread, err := strconv.ParseBool(unreadStr)
		if err != nil {
			http.Error(w, "Invalid 'unread' parameter", http.StatusBadRequest)
			return
		}
		opts.UnreadOnly = unread
	}

	if limitStr := query.Get("limit"); limitStr != "" {
		limit, err := strconv.Atoi(limitStr)
		if err != nil || limit <= 0 || limit > maxLimit {
			log.Warn().Str("limit", limitStr).Msg("Invalid 'limit' parameter value")
			http.Error(w, fmt.Sprintf("Invalid 'limit' parameter: must be between 1 and %d", maxLimit), http.StatusBadRequest)
			return
		}
		opts.Limit = limit
	}

	if cursorStr := query.Get("cursor"); cursorStr != "" {
		internalDate, id, err := pagination.DecodeCursor(cursorStr)
		if err != nil {
			log.Warn().Err(err).Str("cursor", cursorStr).Msg("Invalid 'cursor' parameter")
			http.Error(w, "Invalid 'cursor' parameter", http.StatusBadRequest)
			return
		}
		opts.CursorInternalDate = &internalDate
		opts.CursorID = &id
	}

	items, err := h.repo.ListArticles(r.Context(), userID, opts)
	if err != nil {
		log.Error().Err(err).Str("user_id", userID).Msg("Failed to list articles")
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	resp := listResponse{Items: toSummaries(items)}
	if len(items) == opts.Limit {
		last := items[len(items)-1]
		cursor := pagination.EncodeCursor(last.InternalDate, last.ID)
		resp.NextCursor = &cursor
	}
	writeJSON(w, http.StatusOK, resp)
}

// GetArticle handles GET /v1/articles/{id}: one article with full content.
func (h *Handler) GetArticle(w http.ResponseWriter, r *http.Request) {
	log := hlog.FromRequest(r)

	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		http.Error(w, "Missing 'user_id' parameter", http.StatusBadRequest)
		return
	}
	id := r.PathValue("id")

	article, err := h.repo.GetArticle(r.Context(), userID, id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			http.Error(w, "Article not found", http.StatusNotFound)
			return
		}
		log.Error().Err(err).Str("id", id).Msg("Failed to get article")
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	resp := articleResponse{
		articleSummary: articleSummary{
			ID:           article.ID,
			Title:        article.Title,
			Snippet:      article.Snippet,
			IsRead:       article.IsRead,
			InternalDate: article.InternalDate,
		},
		Content: article.Content,
	}
	if article.PublisherID.Valid {
		resp.Publisher = &publisherRef{ID: article.PublisherID.String}
	}
	writeJSON(w, http.StatusOK, resp)
}

// MarkArticleRead handles POST /v1/articles/{id}/read.
func (h *Handler) MarkArticleRead(w http.ResponseWriter, r *http.Request) {
	log := hlog.FromRequest(r)

	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		http.Error(w, "Missing 'user_id' parameter", http.StatusBadRequest)
		return
	}
	id := r.PathValue("id")

	if err := h.repo.MarkArticleRead(r.Context(), userID, id); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			http.Error(w, "Article not found", http.StatusNotFound)
			return
		}
		log.Error().Err(err).Str("id", id).Msg("Failed to mark article read")
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// GetPublisher handles GET /v1/publishers/{id}.
func (h *Handler) GetPublisher(w http.ResponseWriter, r *http.Request) {
	log := hlog.FromRequest(r)
	id := r.PathValue("id")

	publisher, err := h.repo.GetPublisher(r.Context(), id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			http.Error(w, "Publisher not found", http.StatusNotFound)
			return
		}
		log.Error().Err(err).Str("id", id).Msg("Failed to get publisher")
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, publisherRef{
		ID:           publisher.ID,
		Name:         publisher.Name.String,
		EmailAddress: publisher.EmailAddress,
	})
}

// ListPublisherArticles handles GET /v1/publishers/{id}/articles.
func (h *Handler) ListPublisherArticles(w http.ResponseWriter, r *http.Request) {
	log := hlog.FromRequest(r)

	query := r.URL.Query()
	userID := query.Get("user_id")
	if userID == "" {
		http.Error(w, "Missing 'user_id' parameter", http.StatusBadRequest)
		return
	}
	publisherID := r.PathValue("id")

	limit := defaultLimit
	if limitStr := query.Get("limit"); limitStr != "" {
		parsed, err := strconv.Atoi(limitStr)
		if err != nil || parsed <= 0 || parsed > maxLimit {
			http.Error(w, fmt.Sprintf("Invalid 'limit' parameter: must be between 1 and %d", maxLimit), http.StatusBadRequest)
			return
		}
		limit = parsed
	}

	items, err := h.repo.ListArticlesByPublisher(r.Context(), userID, publisherID, limit)
	if err != nil {
		log.Error().Err(err).Str("publisher_id", publisherID).Msg("Failed to list publisher articles")
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, listResponse{Items: toSummaries(items)})
}

func toSummaries(items []models.ArticleSummary) []articleSummary {
	out := make([]articleSummary, 0, len(items))
	for _, item := range items {
		summary := articleSummary{
			ID:           item.ID,
			Title:        item.Title,
			Snippet:      item.Snippet,
			IsRead:       item.IsRead,
			InternalDate: item.InternalDate,
		}
		if item.PublisherID.Valid {
			summary.Publisher = &publisherRef{
				ID:           item.PublisherID.String,
				Name:         item.PublisherName.String,
				EmailAddress: item.PublisherEmail.String,
			}
		}
		out = append(out, summary)
	}
	return out
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		// Status is already written; nothing to do but log.
		log.Error().Err(err).Msg("Failed to encode response")
	}
}
