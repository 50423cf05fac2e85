// Package models defines server-side data models persisted in the database.
package models

import "time"

// Account is a registered link owner. Email is stored normalized
// (trimmed, lowercase) and unique.
type Account struct {
	ID           string
	Name         string
	Email        string
	PasswordHash string
	// SessionSecretHash is the fast digest of the current per-login secret.
	// Empty means no live session; overwriting it revokes any outstanding
	// session token for this account.
	SessionSecretHash string
	CreatedAt         time.Time
}
