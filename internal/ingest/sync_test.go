package ingest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mailfeed/ingestor/internal/models"
)

type fakeProvider struct {
	ids     []string
	listErr error

	messages  map[string]*Message
	fetchErrs map[string]error

	mu         sync.Mutex
	fetchCalls int
}

func (f *fakeProvider) ListRecentMessageIDs(ctx context.Context, max int64) ([]string, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	if int64(len(f.ids)) > max {
		return f.ids[:max], nil
	}
	return f.ids, nil
}

func (f *fakeProvider) GetFullMessage(ctx context.Context, id string) (*Message, error) {
	f.mu.Lock()
	f.fetchCalls++
	f.mu.Unlock()

	if err := f.fetchErrs[id]; err != nil {
		return nil, err
	}
	msg, ok := f.messages[id]
	if !ok {
		return nil, fmt.Errorf("unknown message %s", id)
	}
	return msg, nil
}

type fakeStore struct {
	mu          sync.Mutex
	existing    map[string]struct{}
	publishers  map[string]string // email -> id
	upsertCalls int
	inserted    []models.Article
	insertErr   error
}

func newFakeStore(existing ...string) *fakeStore {
	s := &fakeStore{
		existing:   make(map[string]struct{}),
		publishers: make(map[string]string),
	}
	for _, id := range existing {
		s.existing[id] = struct{}{}
	}
	return s
}

func (f *fakeStore) FindExistingArticleIDs(ctx context.Context, userID string, ids []string) (map[string]struct{}, error) {
	found := make(map[string]struct{})
	for _, id := range ids {
		if _, ok := f.existing[id]; ok {
			found[id] = struct{}{}
		}
	}
	return found, nil
}

func (f *fakeStore) UpsertPublisherByEmail(ctx context.Context, email, name string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.upsertCalls++
	if id, ok := f.publishers[email]; ok {
		return id, nil
	}
	id := fmt.Sprintf("pub-%d", len(f.publishers)+1)
	f.publishers[email] = id
	return id, nil
}

func (f *fakeStore) BulkInsertArticles(ctx context.Context, articles []models.Article) error {
	if f.insertErr != nil {
		return f.insertErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.inserted = append(f.inserted, articles...)
	return nil
}

func htmlMessage(id, from, subject, body string) *Message {
	return &Message{
		ID:           id,
		InternalDate: "1700000000000",
		Snippet:      body,
		Headers: []Header{
			{Name: "From", Value: from},
			{Name: "Subject", Value: subject},
		},
		Payload: &BodyPart{
			MimeType: "multipart/alternative",
			Parts: []BodyPart{
				{MimeType: "text/html", Data: b64(body)},
			},
		},
	}
}

func TestSyncEndToEnd(t *testing.T) {
	provider := &fakeProvider{
		ids: []string{"A", "B", "C"},
		messages: map[string]*Message{
			"A": htmlMessage("A", "Bob <bob@y.com>", "Hi", "Hello"),
		},
		fetchErrs: map[string]error{
			"C": errors.New("quota exceeded"),
		},
	}
	store := newFakeStore("B")

	result, err := NewSyncer(provider, store).Sync(context.Background(), "user-1")
	require.NoError(t, err)

	assert.Equal(t, 1, result.Inserted)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, "C", result.Errors[0].ID)
	assert.Contains(t, result.Errors[0].Reason, "quota exceeded")

	require.Len(t, store.inserted, 1)
	article := store.inserted[0]
	assert.Equal(t, "A", article.ID)
	assert.Equal(t, "user-1", article.UserID)
	assert.Equal(t, "Hi", article.Title)
	assert.Equal(t, "Hello", article.Content)
	assert.Equal(t, "1700000000000", article.InternalDate)
	assert.False(t, article.IsRead)

	require.Contains(t, store.publishers, "bob@y.com")
	assert.Equal(t, store.publishers["bob@y.com"], article.PublisherID.String)
	assert.True(t, article.PublisherID.Valid)
}

func TestSyncNoNewMessages(t *testing.T) {
	provider := &fakeProvider{ids: []string{"A", "B"}}
	store := newFakeStore("A", "B")

	result, err := NewSyncer(provider, store).Sync(context.Background(), "user-1")
	require.NoError(t, err)

	assert.Equal(t, 0, result.Inserted)
	assert.Empty(t, result.Errors)
	assert.Equal(t, 0, provider.fetchCalls)
	assert.Empty(t, store.inserted)
}

func TestSyncListFailureIsFatal(t *testing.T) {
	provider := &fakeProvider{listErr: errors.New("token expired")}
	store := newFakeStore()

	result, err := NewSyncer(provider, store).Sync(context.Background(), "user-1")
	require.Error(t, err)
	assert.Nil(t, result)

	var provErr *ProviderError
	require.ErrorAs(t, err, &provErr)
	assert.Equal(t, "list messages", provErr.Op)
}

func TestSyncPartialFailure(t *testing.T) {
	provider := &fakeProvider{
		ids: []string{"m1", "m2", "m3"},
		messages: map[string]*Message{
			"m1": htmlMessage("m1", "a@x.com", "one", "body one"),
			"m3": htmlMessage("m3", "b@x.com", "three", "body three"),
		},
		fetchErrs: map[string]error{
			"m2": errors.New("connection reset"),
		},
	}
	store := newFakeStore()

	result, err := NewSyncer(provider, store).Sync(context.Background(), "user-1")
	require.NoError(t, err)

	assert.Equal(t, 2, result.Inserted)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, "m2", result.Errors[0].ID)
	assert.Len(t, store.inserted, 2)
}

func TestSyncMissingPayloadSkipsMessage(t *testing.T) {
	noPayload := htmlMessage("m2", "a@x.com", "empty", "x")
	noPayload.Payload = nil

	provider := &fakeProvider{
		ids: []string{"m1", "m2"},
		messages: map[string]*Message{
			"m1": htmlMessage("m1", "a@x.com", "ok", "body"),
			"m2": noPayload,
		},
	}
	store := newFakeStore()

	result, err := NewSyncer(provider, store).Sync(context.Background(), "user-1")
	require.NoError(t, err)

	assert.Equal(t, 1, result.Inserted)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, "m2", result.Errors[0].ID)
	assert.Contains(t, result.Errors[0].Reason, "no payload")
}

func TestSyncInvalidSenderDegradesToNoPublisher(t *testing.T) {
	provider := &fakeProvider{
		ids: []string{"m1"},
		messages: map[string]*Message{
			"m1": htmlMessage("m1", "Totally Not An Address", "subj", "body"),
		},
	}
	store := newFakeStore()

	result, err := NewSyncer(provider, store).Sync(context.Background(), "user-1")
	require.NoError(t, err)

	assert.Equal(t, 1, result.Inserted)
	assert.Empty(t, result.Errors)
	assert.Equal(t, 0, store.upsertCalls)

	require.Len(t, store.inserted, 1)
	assert.False(t, store.inserted[0].PublisherID.Valid)
}

func TestSyncSharedSenderResolvesToOnePublisher(t *testing.T) {
	provider := &fakeProvider{
		ids: []string{"m1", "m2"},
		messages: map[string]*Message{
			"m1": htmlMessage("m1", "News <news@x.com>", "one", "a"),
			"m2": htmlMessage("m2", "News <news@x.com>", "two", "b"),
		},
	}
	store := newFakeStore()

	result, err := NewSyncer(provider, store).Sync(context.Background(), "user-1")
	require.NoError(t, err)

	assert.Equal(t, 2, result.Inserted)
	assert.Len(t, store.publishers, 1)
	require.Len(t, store.inserted, 2)
	assert.Equal(t, store.inserted[0].PublisherID, store.inserted[1].PublisherID)
}

func TestSyncBulkInsertFailureIsFatal(t *testing.T) {
	provider := &fakeProvider{
		ids: []string{"m1"},
		messages: map[string]*Message{
			"m1": htmlMessage("m1", "a@x.com", "subj", "body"),
		},
	}
	store := newFakeStore()
	store.insertErr = errors.New("disk full")

	result, err := NewSyncer(provider, store).Sync(context.Background(), "user-1")
	require.Error(t, err)
	assert.Nil(t, result)

	var persErr *PersistenceError
	require.ErrorAs(t, err, &persErr)
	assert.Equal(t, "bulk insert articles", persErr.Op)
}

func TestSyncRespectsPageSize(t *testing.T) {
	provider := &fakeProvider{
		ids: []string{"m1", "m2", "m3"},
		messages: map[string]*Message{
			"m1": htmlMessage("m1", "a@x.com", "one", "a"),
			"m2": htmlMessage("m2", "a@x.com", "two", "b"),
		},
	}
	store := newFakeStore()

	result, err := NewSyncer(provider, store, WithPageSize(2)).Sync(context.Background(), "user-1")
	require.NoError(t, err)

	assert.Equal(t, 2, result.Inserted)
	assert.Equal(t, 2, provider.fetchCalls)
}
