package models

import (
	"database/sql"
	"time"
)

// Publisher represents a row in the 'publishers' table: a deduplicated
// sender identity keyed by email address.
type Publisher struct {
	ID           string         `db:"id"`
	Name         sql.NullString `db:"name"`
	EmailAddress string         `db:"email_address"`
	CreatedAt    time.Time      `db:"created_at"`
	UpdatedAt    time.Time      `db:"updated_at"`
}
