package services

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/avelichko/linkvault/internal/common"
	"github.com/avelichko/linkvault/internal/dbx"
	"github.com/avelichko/linkvault/internal/logging"
	"github.com/avelichko/linkvault/internal/server/auth"
	"github.com/avelichko/linkvault/internal/server/config"
	"github.com/avelichko/linkvault/internal/server/models"
	"github.com/avelichko/linkvault/internal/server/repositories/repomanager"
	"github.com/avelichko/linkvault/internal/server/storage"
)

const (
	// defaultLinkTTL applies when the creator supplies no expiry.
	defaultLinkTTL = 10 * time.Minute
	// defaultRetrievalDuration is the shortest meaningful presigned-URL life
	// at creation time.
	defaultRetrievalDuration = 10 * time.Minute
	// retrievalDurationFloor avoids degenerate near-zero URLs when an update
	// moves the expiry close to now.
	retrievalDurationFloor = time.Minute
	// maxDisplayNameLen caps the owner-facing link name.
	maxDisplayNameLen = 80
)

// CreateOptions are the optional constraints a creator may attach to a link.
type CreateOptions struct {
	ExpiresAt          *time.Time
	Password           string
	DisplayName        string
	AllowedViewerEmail string
	MaxViews           *int
}

// UpdatePatch describes an owner's partial update. Nil pointer fields are
// left untouched. ClearMaxViews removes the view budget entirely; a set
// MaxViews always restarts the remaining counter.
type UpdatePatch struct {
	ExpiresAt          *time.Time
	Password           *string
	DisplayName        *string
	AllowedViewerEmail *string
	MaxViews           *int
	ClearMaxViews      bool
}

// LinkSummary is the owner-dashboard projection of a link. It derives
// presentation fields and never carries the password hash.
type LinkSummary struct {
	ID                 string     `json:"id"`
	LinkName           string     `json:"linkName"`
	Type               string     `json:"type"`
	CreatedAt          time.Time  `json:"createdAt"`
	ExpiresAt          time.Time  `json:"expiresAt"`
	MaxViews           *int       `json:"maxViews"`
	ViewsLeft          *int       `json:"viewsLeft"`
	IsProtected        bool       `json:"isProtected"`
	AllowedViewerEmail string     `json:"allowedViewerEmail,omitempty"`
	ShareURL           string     `json:"shareUrl"`
}

// LinkService creates, normalizes, and mutates links on behalf of their
// owners.
type LinkService struct {
	db          dbx.DBTX
	repomanager repomanager.RepositoryManager
	blobs       storage.BlobStore
	config      *config.Config
	logger      logging.Logger
}

func NewLinkService(db dbx.DBTX, m repomanager.RepositoryManager, blobs storage.BlobStore, cfg *config.Config, logger logging.Logger) *LinkService {
	return &LinkService{
		db:          db,
		repomanager: m,
		blobs:       blobs,
		config:      cfg,
		logger:      logger.With("module", "links"),
	}
}

// CreateText mints a link whose payload is the inline text itself.
func (s *LinkService) CreateText(ctx context.Context, text string, opts CreateOptions, owner *models.Account) (*models.Link, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("%w: text must not be empty", common.ErrorValidation)
	}
	link, err := s.newLink(models.KindText, text, opts, owner)
	if err != nil {
		return nil, err
	}
	return s.repomanager.Links(s.db).Create(ctx, link)
}

// CreateBlob stores the payload in the blob store first, then mints a link
// referencing the returned key, with a signed retrieval URL that lasts at
// least as long as the link itself.
func (s *LinkService) CreateBlob(ctx context.Context, data []byte, contentType string, opts CreateOptions, owner *models.Account) (*models.Link, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: no file uploaded", common.ErrorValidation)
	}

	link, err := s.newLink(models.KindBlob, "", opts, owner)
	if err != nil {
		return nil, err
	}

	key, err := s.blobs.Put(ctx, data, contentType)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrorDependency, err)
	}
	link.Payload = key

	validFor := time.Until(link.ExpiresAt)
	if validFor < defaultRetrievalDuration {
		validFor = defaultRetrievalDuration
	}
	url, err := s.blobs.SignRetrievalURL(ctx, key, validFor)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrorDependency, err)
	}
	link.RetrievalURL = url

	return s.repomanager.Links(s.db).Create(ctx, link)
}

// Update applies a patch to a link owned by owner. Ownership is part of the
// lookup predicate, so a foreign id reads as not found.
func (s *LinkService) Update(ctx context.Context, linkID string, owner *models.Account, patch UpdatePatch) (*models.Link, error) {
	repo := s.repomanager.Links(s.db)

	link, err := repo.GetByIDForOwner(ctx, linkID, owner.ID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrorNotFound
		}
		return nil, err
	}

	expiryChanged := false
	budgetChanged := false

	if patch.ExpiresAt != nil {
		expiresAt, err := futureExpiry(*patch.ExpiresAt)
		if err != nil {
			return nil, err
		}
		link.ExpiresAt = expiresAt
		expiryChanged = true
	}

	switch {
	case patch.ClearMaxViews:
		link.MaxViews = nil
		link.RemainingViews = nil
		budgetChanged = true
	case patch.MaxViews != nil:
		maxViews, err := positiveViews(*patch.MaxViews)
		if err != nil {
			return nil, err
		}
		// A budget change is a reset, not a delta: the counter restarts.
		remaining := maxViews
		link.MaxViews = &maxViews
		link.RemainingViews = &remaining
		budgetChanged = true
	}

	if patch.Password != nil {
		trimmed := strings.TrimSpace(*patch.Password)
		if trimmed == "" {
			link.PasswordHash = ""
		} else {
			if err := validPasswordLength(trimmed); err != nil {
				return nil, err
			}
			hash, err := auth.HashPassword(trimmed)
			if err != nil {
				return nil, common.ErrorInternal
			}
			link.PasswordHash = hash
		}
	}

	if patch.AllowedViewerEmail != nil {
		email, err := normalizeViewerEmail(*patch.AllowedViewerEmail)
		if err != nil {
			return nil, err
		}
		link.AllowedViewerEmail = email
	}

	if patch.DisplayName != nil {
		link.DisplayName = normalizeDisplayName(*patch.DisplayName)
	}

	if link.Kind == models.KindBlob && expiryChanged {
		validFor := time.Until(link.ExpiresAt)
		if validFor < retrievalDurationFloor {
			validFor = retrievalDurationFloor
		}
		url, err := s.blobs.SignRetrievalURL(ctx, link.Payload, validFor)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", common.ErrorDependency, err)
		}
		link.RetrievalURL = url
	}

	if err := repo.Update(ctx, link); err != nil {
		return nil, err
	}

	// The budget columns are written only when the patch touched them;
	// writing back the counter fetched above would undo any view consumed
	// between the read and this update.
	if budgetChanged {
		if err := repo.UpdateViewBudget(ctx, link.ID, link.MaxViews, link.RemainingViews); err != nil {
			return nil, err
		}
	}
	return link, nil
}

// Delete removes a link owned by owner; a foreign or absent id is not found.
func (s *LinkService) Delete(ctx context.Context, linkID string, owner *models.Account) error {
	return s.repomanager.Links(s.db).DeleteByIDForOwner(ctx, linkID, owner.ID)
}

// ListOwned returns the owner's links, newest first, projected for the
// dashboard.
func (s *LinkService) ListOwned(ctx context.Context, owner *models.Account) ([]LinkSummary, error) {
	links, err := s.repomanager.Links(s.db).ListByOwner(ctx, owner.ID)
	if err != nil {
		return nil, err
	}

	result := make([]LinkSummary, 0, len(links))
	for _, link := range links {
		result = append(result, s.summarize(link))
	}
	return result, nil
}

// Summarize exposes the dashboard projection for a single link (used by the
// update handler's response).
func (s *LinkService) Summarize(link *models.Link) LinkSummary {
	return s.summarize(link)
}

// ShareURL builds the public redemption URL for a link. Protected links get
// a placeholder password parameter for the owner to fill in.
func (s *LinkService) ShareURL(link *models.Link) string {
	base := s.config.TextShareBaseURL
	if link.Kind == models.KindBlob {
		base = s.config.FileShareBaseURL
	}
	url := base + link.ID
	if link.Protected() {
		url += "?isProtected=true&password=<PASSWORD>"
	}
	return url
}

func (s *LinkService) summarize(link *models.Link) LinkSummary {
	name := link.DisplayName
	if name == "" {
		prefix := "Text"
		if link.Kind == models.KindBlob {
			prefix = "File"
		}
		name = fmt.Sprintf("%s link %s", prefix, idSuffix(link.ID))
	}

	kind := "text"
	if link.Kind == models.KindBlob {
		kind = "file"
	}

	return LinkSummary{
		ID:                 link.ID,
		LinkName:           name,
		Type:               kind,
		CreatedAt:          link.CreatedAt,
		ExpiresAt:          link.ExpiresAt,
		MaxViews:           link.MaxViews,
		ViewsLeft:          link.RemainingViews,
		IsProtected:        link.Protected(),
		AllowedViewerEmail: link.AllowedViewerEmail,
		ShareURL:           s.ShareURL(link),
	}
}

func (s *LinkService) newLink(kind models.LinkKind, payload string, opts CreateOptions, owner *models.Account) (*models.Link, error) {
	expiresAt := time.Now().Add(defaultLinkTTL)
	if opts.ExpiresAt != nil {
		validated, err := futureExpiry(*opts.ExpiresAt)
		if err != nil {
			return nil, err
		}
		expiresAt = validated
	}

	email, err := normalizeViewerEmail(opts.AllowedViewerEmail)
	if err != nil {
		return nil, err
	}

	link := &models.Link{
		Kind:               kind,
		Payload:            payload,
		ExpiresAt:          expiresAt,
		DisplayName:        normalizeDisplayName(opts.DisplayName),
		AllowedViewerEmail: email,
	}

	if owner != nil {
		link.OwnerID = owner.ID
	}

	if opts.Password != "" {
		if err := validPasswordLength(opts.Password); err != nil {
			return nil, err
		}
		hash, err := auth.HashPassword(opts.Password)
		if err != nil {
			return nil, common.ErrorInternal
		}
		link.PasswordHash = hash
	}

	if opts.MaxViews != nil {
		maxViews, err := positiveViews(*opts.MaxViews)
		if err != nil {
			return nil, err
		}
		remaining := maxViews
		link.MaxViews = &maxViews
		link.RemainingViews = &remaining
	}

	return link, nil
}

func futureExpiry(v time.Time) (time.Time, error) {
	if !v.After(time.Now()) {
		return time.Time{}, fmt.Errorf("%w: expiry must be in the future", common.ErrorValidation)
	}
	return v, nil
}

func positiveViews(v int) (int, error) {
	if v < 1 {
		return 0, fmt.Errorf("%w: maxViews must be at least 1", common.ErrorValidation)
	}
	return v, nil
}

func normalizeDisplayName(v string) string {
	trimmed := strings.TrimSpace(v)
	// The limit counts characters, not bytes; a byte slice could cut a rune
	// in half and hand the database invalid UTF-8.
	if runes := []rune(trimmed); len(runes) > maxDisplayNameLen {
		trimmed = string(runes[:maxDisplayNameLen])
	}
	return trimmed
}

func normalizeViewerEmail(v string) (string, error) {
	email := NormalizeEmail(v)
	if email == "" {
		return "", nil
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return "", fmt.Errorf("%w: allowed viewer email must be valid", common.ErrorValidation)
	}
	return email, nil
}

func idSuffix(id string) string {
	if len(id) <= 6 {
		return id
	}
	return id[len(id)-6:]
}
