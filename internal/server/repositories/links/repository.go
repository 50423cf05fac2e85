// Package links persists Link entities.
//
// The store enforces the freshness rule itself: every read and mutation
// carries the `expires_at > now()` predicate, so an expired link is
// indistinguishable from one that never existed, on every path.
package links

import (
	"context"

	"github.com/avelichko/linkvault/internal/server/models"
)

// Repository is the storage contract for links.
//
// Update never writes the view-budget columns; they belong to ConsumeView and
// UpdateViewBudget alone, so a full-row update cannot resurrect views consumed
// after the caller's read.
//
// ConsumeView is the atomic conditional decrement of the view budget: it
// subtracts one from remaining_views only while the counter is still
// positive, deciding concurrent redemptions at the storage level. It returns
// false when no row qualified (budget exhausted, link expired, or absent).
type Repository interface {
	Create(ctx context.Context, link *models.Link) (*models.Link, error)
	GetByID(ctx context.Context, id string) (*models.Link, error)
	GetByIDForOwner(ctx context.Context, id, ownerID string) (*models.Link, error)
	ListByOwner(ctx context.Context, ownerID string) ([]*models.Link, error)
	Update(ctx context.Context, link *models.Link) error
	UpdateViewBudget(ctx context.Context, id string, maxViews, remainingViews *int) error
	DeleteByIDForOwner(ctx context.Context, id, ownerID string) error
	ConsumeView(ctx context.Context, id string) (bool, error)
}
