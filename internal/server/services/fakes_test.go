package services

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/avelichko/linkvault/internal/common"
	"github.com/avelichko/linkvault/internal/dbx"
	"github.com/avelichko/linkvault/internal/logging"
	"github.com/avelichko/linkvault/internal/server/models"
	accountsrepo "github.com/avelichko/linkvault/internal/server/repositories/accounts"
	linksrepo "github.com/avelichko/linkvault/internal/server/repositories/links"
)

// --- in-memory fakes honoring the repository contracts ---

type fakeAccountsRepo struct {
	mu      sync.Mutex
	nextID  int
	byID    map[string]*models.Account
	byEmail map[string]*models.Account
}

func newFakeAccountsRepo() *fakeAccountsRepo {
	return &fakeAccountsRepo{
		byID:    make(map[string]*models.Account),
		byEmail: make(map[string]*models.Account),
	}
}

func (f *fakeAccountsRepo) Create(ctx context.Context, a *models.Account) (*models.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.byEmail[a.Email]; ok {
		return nil, common.ErrorEmailTaken
	}
	f.nextID++
	a.ID = fmt.Sprintf("acc-%d", f.nextID)
	a.CreatedAt = time.Now()
	clone := *a
	f.byID[a.ID] = &clone
	f.byEmail[a.Email] = &clone
	return a, nil
}

func (f *fakeAccountsRepo) GetByEmail(ctx context.Context, email string) (*models.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.byEmail[email]
	if !ok {
		return nil, common.ErrorNotFound
	}
	clone := *a
	return &clone, nil
}

func (f *fakeAccountsRepo) GetByID(ctx context.Context, id string) (*models.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.byID[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	clone := *a
	return &clone, nil
}

func (f *fakeAccountsRepo) UpdateSessionSecretHash(ctx context.Context, accountID, digest string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if a, ok := f.byID[accountID]; ok {
		a.SessionSecretHash = digest
	}
	return nil
}

func (f *fakeAccountsRepo) UpdatePasswordHash(ctx context.Context, accountID, hash string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if a, ok := f.byID[accountID]; ok {
		a.PasswordHash = hash
	}
	return nil
}

type fakeLinksRepo struct {
	mu     sync.Mutex
	nextID int
	byID   map[string]*models.Link
}

func newFakeLinksRepo() *fakeLinksRepo {
	return &fakeLinksRepo{byID: make(map[string]*models.Link)}
}

func (f *fakeLinksRepo) fresh(l *models.Link) bool {
	return l != nil && l.ExpiresAt.After(time.Now())
}

func (f *fakeLinksRepo) Create(ctx context.Context, l *models.Link) (*models.Link, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	l.ID = fmt.Sprintf("link-%d", f.nextID)
	l.CreatedAt = time.Now()
	clone := *l
	f.byID[l.ID] = &clone
	return l, nil
}

func (f *fakeLinksRepo) GetByID(ctx context.Context, id string) (*models.Link, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	l := f.byID[id]
	if !f.fresh(l) {
		return nil, common.ErrorNotFound
	}
	clone := *l
	return &clone, nil
}

func (f *fakeLinksRepo) GetByIDForOwner(ctx context.Context, id, ownerID string) (*models.Link, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	l := f.byID[id]
	if !f.fresh(l) || l.OwnerID != ownerID {
		return nil, common.ErrorNotFound
	}
	clone := *l
	return &clone, nil
}

func (f *fakeLinksRepo) ListByOwner(ctx context.Context, ownerID string) ([]*models.Link, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var result []*models.Link
	for _, l := range f.byID {
		if f.fresh(l) && l.OwnerID == ownerID {
			clone := *l
			result = append(result, &clone)
		}
	}
	return result, nil
}

// Update mirrors the store contract: the budget columns stay whatever the
// stored row holds, so a consumed view is never written back.
func (f *fakeLinksRepo) Update(ctx context.Context, l *models.Link) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	stored := f.byID[l.ID]
	if !f.fresh(stored) {
		return common.ErrorNotFound
	}
	clone := *l
	clone.MaxViews = stored.MaxViews
	clone.RemainingViews = stored.RemainingViews
	f.byID[l.ID] = &clone
	return nil
}

func (f *fakeLinksRepo) UpdateViewBudget(ctx context.Context, id string, maxViews, remainingViews *int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	stored := f.byID[id]
	if !f.fresh(stored) {
		return common.ErrorNotFound
	}
	stored.MaxViews = copyInt(maxViews)
	stored.RemainingViews = copyInt(remainingViews)
	return nil
}

func copyInt(v *int) *int {
	if v == nil {
		return nil
	}
	n := *v
	return &n
}

func (f *fakeLinksRepo) DeleteByIDForOwner(ctx context.Context, id, ownerID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	l := f.byID[id]
	if !f.fresh(l) || l.OwnerID != ownerID {
		return common.ErrorNotFound
	}
	delete(f.byID, id)
	return nil
}

// ConsumeView mirrors the store's conditional decrement: the check and the
// subtraction happen under one lock, so concurrent callers race exactly the
// way they do against the database.
func (f *fakeLinksRepo) ConsumeView(ctx context.Context, id string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	l := f.byID[id]
	if !f.fresh(l) || l.RemainingViews == nil || *l.RemainingViews <= 0 {
		return false, nil
	}
	*l.RemainingViews--
	return true, nil
}

type fakeRepoManager struct {
	accounts *fakeAccountsRepo
	links    *fakeLinksRepo
}

func newFakeRepoManager() *fakeRepoManager {
	return &fakeRepoManager{accounts: newFakeAccountsRepo(), links: newFakeLinksRepo()}
}

func (m *fakeRepoManager) Accounts(db dbx.DBTX) accountsrepo.Repository { return m.accounts }
func (m *fakeRepoManager) Links(db dbx.DBTX) linksrepo.Repository      { return m.links }
func (m *fakeRepoManager) RunMigrations(context.Context, *sql.DB) error {
	return nil
}

type fakeBlobStore struct {
	mu          sync.Mutex
	putErr      error
	signErr     error
	putCalls    int
	signCalls   int
	lastKey     string
	lastValid   time.Duration
	contentType string
}

func (f *fakeBlobStore) Put(ctx context.Context, data []byte, contentType string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.putErr != nil {
		return "", f.putErr
	}
	f.putCalls++
	f.contentType = contentType
	f.lastKey = fmt.Sprintf("links/test/%d", f.putCalls)
	return f.lastKey, nil
}

func (f *fakeBlobStore) SignRetrievalURL(ctx context.Context, key string, validFor time.Duration) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.signErr != nil {
		return "", f.signErr
	}
	f.signCalls++
	f.lastKey = key
	f.lastValid = validFor
	return "https://signed.example/" + key, nil
}

func discardLogger() logging.Logger {
	return logging.NewSlogLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
}
