// Package auth stores per-user mail provider credentials and turns them
// into refreshable oauth2 token sources. Session lifecycle lives outside
// this service; callers arrive with a userID already authenticated.
package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"mailfeed/ingestor/internal/config"
	"mailfeed/ingestor/internal/database"
	"mailfeed/ingestor/internal/models"
)

// Gmail read-only scope; the pipeline never writes to the mailbox.
const gmailReadonlyScope = "https://www.googleapis.com/auth/gmail.readonly"

// ErrNoAccount is returned when a user has no stored provider credential.
var ErrNoAccount = errors.New("no account connected for user")

// OAuthConfig builds the Google OAuth client configuration from service
// config.
func OAuthConfig(cfg *config.Config) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     cfg.GoogleClientID,
		ClientSecret: cfg.GoogleClientSecret,
		RedirectURL:  cfg.GoogleRedirectURL,
		Scopes:       []string{gmailReadonlyScope},
		Endpoint:     google.Endpoint,
	}
}

// AccountStore persists provider OAuth tokens per user.
type AccountStore struct {
	db    *database.DB
	oauth *oauth2.Config
}

// NewAccountStore creates an account store.
func NewAccountStore(db *database.DB, oauth *oauth2.Config) *AccountStore {
	return &AccountStore{db: db, oauth: oauth}
}

// Save upserts the user's provider token.
func (s *AccountStore) Save(ctx context.Context, userID string, token *oauth2.Token) error {
	now := time.Now()
	expiry := sql.NullTime{Time: token.Expiry, Valid: !token.Expiry.IsZero()}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO accounts (user_id, access_token, refresh_token, token_expiry, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
			access_token = excluded.access_token,
			refresh_token = excluded.refresh_token,
			token_expiry = excluded.token_expiry,
			updated_at = excluded.updated_at`,
		userID, token.AccessToken, token.RefreshToken, expiry, now, now)
	if err != nil {
		return fmt.Errorf("failed to save account for user %s: %w", userID, err)
	}
	return nil
}

// TokenSource loads the user's stored token and wraps it in a refreshing
// source. Refreshed tokens are written back so the next run starts from a
// valid access token.
func (s *AccountStore) TokenSource(ctx context.Context, userID string) (oauth2.TokenSource, error) {
	var account models.Account
	err := s.db.GetContext(ctx, &account, `SELECT * FROM accounts WHERE user_id = ?`, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNoAccount
		}
		return nil, fmt.Errorf("failed to load account for user %s: %w", userID, err)
	}

	token := &oauth2.Token{
		AccessToken:  account.AccessToken,
		RefreshToken: account.RefreshToken,
	}
	if account.TokenExpiry.Valid {
		token.Expiry = account.TokenExpiry.Time
	}

	return &persistingTokenSource{
		ctx:    ctx,
		store:  s,
		userID: userID,
		src:    s.oauth.TokenSource(ctx, token),
		last:   token,
	}, nil
}

// persistingTokenSource writes refreshed tokens back to the accounts
// table. Not safe for concurrent use across goroutines sharing one user;
// each sync run builds its own source.
type persistingTokenSource struct {
	ctx    context.Context
	store  *AccountStore
	userID string
	src    oauth2.TokenSource
	last   *oauth2.Token
}

func (t *persistingTokenSource) Token() (*oauth2.Token, error) {
	token, err := t.src.Token()
	if err != nil {
		return nil, err
	}
	if token.AccessToken != t.last.AccessToken {
		if err := t.store.Save(t.ctx, t.userID, token); err != nil {
			return nil, err
		}
		t.last = token
	}
	return token, nil
}
