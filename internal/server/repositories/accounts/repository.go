// Package accounts persists Account entities.
package accounts

import (
	"context"

	"github.com/avelichko/linkvault/internal/server/models"
)

// Repository is the storage contract for accounts.
//
// UpdateSessionSecretHash overwrites the single session-secret digest for an
// account; an empty digest clears it (logout / revocation). Both update
// operations touch one scalar column keyed by id, so no application-level
// locking is needed around them.
type Repository interface {
	Create(ctx context.Context, account *models.Account) (*models.Account, error)
	GetByEmail(ctx context.Context, email string) (*models.Account, error)
	GetByID(ctx context.Context, id string) (*models.Account, error)
	UpdateSessionSecretHash(ctx context.Context, accountID, digest string) error
	UpdatePasswordHash(ctx context.Context, accountID, hash string) error
}
