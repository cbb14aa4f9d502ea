package models

import (
	"database/sql"
	"time"
)

// Account represents a row in the 'accounts' table holding a user's mail
// provider OAuth credentials. Token refresh happens through the oauth2
// token source; this row is only durable storage for it.
type Account struct {
	UserID       string       `db:"user_id"`
	AccessToken  string       `db:"access_token"`
	RefreshToken string       `db:"refresh_token"`
	TokenExpiry  sql.NullTime `db:"token_expiry"`
	CreatedAt    time.Time    `db:"created_at"`
	UpdatedAt    time.Time    `db:"updated_at"`
}
