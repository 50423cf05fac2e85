package services

import (
	"context"
	"errors"

	"github.com/avelichko/linkvault/internal/common"
	"github.com/avelichko/linkvault/internal/dbx"
	"github.com/avelichko/linkvault/internal/logging"
	"github.com/avelichko/linkvault/internal/server/auth"
	"github.com/avelichko/linkvault/internal/server/models"
	"github.com/avelichko/linkvault/internal/server/repositories/repomanager"
)

// RedeemRequest is one anonymous (or identity-probed) redemption attempt.
//
// Kind is the route the caller used; it must match the stored kind.
// ClaimsProtected is the caller's declaration that it knows the link is
// password-protected. ViewerEmail is empty for anonymous viewers and carries
// the authenticated account's normalized email otherwise.
type RedeemRequest struct {
	ID              string
	Kind            models.LinkKind
	Password        string
	ClaimsProtected bool
	ViewerEmail     string
}

// Redemption is the payload handed back on success: the inline text for
// text links, the current signed download URL for blob links.
type Redemption struct {
	Kind        models.LinkKind
	Text        string
	DownloadURL string
}

// AccessService evaluates redemption attempts against the store in a fixed
// order where the first failure wins. Outcomes are deliberately coarse:
// an expired, missing, differently-typed, or protection-undeclared link all
// read as not found, so probing cannot distinguish them.
type AccessService struct {
	db          dbx.DBTX
	repomanager repomanager.RepositoryManager
	logger      logging.Logger
}

func NewAccessService(db dbx.DBTX, m repomanager.RepositoryManager, logger logging.Logger) *AccessService {
	return &AccessService{
		db:          db,
		repomanager: m,
		logger:      logger.With("module", "access"),
	}
}

// Redeem runs the decision pipeline:
//
//  1. existence+freshness (the store's expiry predicate makes expired and
//     missing identical);
//     — recipient gate, when the link restricts its viewer;
//  2. kind match;
//  3. protection-flag consistency;
//  4. password presence;
//  5. password verification;
//  6. view-budget consumption via the store's conditional decrement.
func (s *AccessService) Redeem(ctx context.Context, req RedeemRequest) (*Redemption, error) {
	repo := s.repomanager.Links(s.db)

	link, err := repo.GetByID(ctx, req.ID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrorNotFound
		}
		return nil, err
	}

	// Recipient restriction is an identity equality check, separate from the
	// anonymous pipeline proper. It sits directly after the fetch that loads
	// the stored address.
	if link.AllowedViewerEmail != "" && link.AllowedViewerEmail != req.ViewerEmail {
		return nil, common.ErrorForbidden
	}

	if link.Kind != req.Kind {
		return nil, common.ErrorNotFound
	}

	if link.Protected() && !req.ClaimsProtected {
		return nil, common.ErrorNotFound
	}

	if link.Protected() {
		if req.Password == "" {
			return nil, common.ErrorPasswordRequired
		}
		if !auth.VerifyPassword(req.Password, link.PasswordHash) {
			return nil, common.ErrorWrongPassword
		}
	}

	if link.RemainingViews != nil {
		if *link.RemainingViews <= 0 {
			return nil, common.ErrorViewLimitReached
		}
		// The decrement is conditional inside the store, never a
		// read-then-write of the value fetched above: under a race the
		// database decides which caller got the last view.
		ok, err := repo.ConsumeView(ctx, req.ID)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, common.ErrorViewLimitReached
		}
	}

	result := &Redemption{Kind: link.Kind}
	if link.Kind == models.KindText {
		result.Text = link.Payload
	} else {
		result.DownloadURL = link.RetrievalURL
	}
	return result, nil
}
