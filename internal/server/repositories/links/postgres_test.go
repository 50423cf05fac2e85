package links

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/avelichko/linkvault/internal/common"
	"github.com/avelichko/linkvault/internal/server/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db, mock
}

func linkRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "kind", "payload", "retrieval_url", "created_at", "expires_at",
		"password_hash", "owner_id", "display_name", "allowed_viewer_email",
		"max_views", "remaining_views",
	})
}

func TestGetByID_AppliesExpiryPredicate(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewPostgresRepository(db)

	now := time.Now()
	mock.ExpectQuery(`SELECT .+ FROM links\s+WHERE id = \$1 AND expires_at > now\(\)`).
		WithArgs("link-1").
		WillReturnRows(linkRows().AddRow(
			"link-1", "text", "hello", "", now, now.Add(time.Hour),
			"", "acc-1", "name", "", nil, nil,
		))

	link, err := repo.GetByID(context.Background(), "link-1")
	require.NoError(t, err)
	assert.Equal(t, models.KindText, link.Kind)
	assert.Equal(t, "hello", link.Payload)
	assert.Equal(t, "acc-1", link.OwnerID)
	assert.Nil(t, link.MaxViews)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetByID_NoRowIsNotFound(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewPostgresRepository(db)

	mock.ExpectQuery(`SELECT .+ FROM links`).
		WithArgs("gone").
		WillReturnRows(linkRows())

	_, err := repo.GetByID(context.Background(), "gone")
	assert.ErrorIs(t, err, common.ErrorNotFound)
}

func TestGetByIDForOwner_ScopesByOwnerInQuery(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewPostgresRepository(db)

	mock.ExpectQuery(`WHERE id = \$1 AND owner_id = \$2 AND expires_at > now\(\)`).
		WithArgs("link-1", "acc-2").
		WillReturnRows(linkRows())

	_, err := repo.GetByIDForOwner(context.Background(), "link-1", "acc-2")
	assert.ErrorIs(t, err, common.ErrorNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestListByOwner_NewestFirst(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewPostgresRepository(db)

	now := time.Now()
	mock.ExpectQuery(`WHERE owner_id = \$1 AND expires_at > now\(\)\s+ORDER BY created_at DESC`).
		WithArgs("acc-1").
		WillReturnRows(linkRows().
			AddRow("l2", "blob", "key-2", "https://u", now, now.Add(time.Hour), "h", "acc-1", "", "v@e.com", 5, 3).
			AddRow("l1", "text", "hi", "", now.Add(-time.Hour), now.Add(time.Hour), "", "acc-1", "", "", nil, nil))

	out, err := repo.ListByOwner(context.Background(), "acc-1")
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, "l2", out[0].ID)
	require.NotNil(t, out[0].MaxViews)
	assert.Equal(t, 5, *out[0].MaxViews)
	assert.Equal(t, 3, *out[0].RemainingViews)
	assert.Equal(t, "v@e.com", out[0].AllowedViewerEmail)
}

func TestConsumeView_DecrementsWhilePositive(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewPostgresRepository(db)

	mock.ExpectExec(`UPDATE links SET remaining_views = remaining_views - 1\s+WHERE id = \$1 AND remaining_views > 0 AND expires_at > now\(\)`).
		WithArgs("link-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	ok, err := repo.ConsumeView(context.Background(), "link-1")
	require.NoError(t, err)
	assert.True(t, ok)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestConsumeView_ExhaustedBudget(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewPostgresRepository(db)

	mock.ExpectExec(`UPDATE links SET remaining_views`).
		WithArgs("link-1").
		WillReturnResult(sqlmock.NewResult(0, 0))

	ok, err := repo.ConsumeView(context.Background(), "link-1")
	require.NoError(t, err)
	assert.False(t, ok, "no qualifying row means the budget is spent")
}

func TestUpdate_LeavesViewBudgetColumnsAlone(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewPostgresRepository(db)

	mock.ExpectExec(`UPDATE links\s+SET expires_at = \$2, password_hash = \$3, retrieval_url = \$4,\s+display_name = \$5, allowed_viewer_email = \$6\s+WHERE id = \$1 AND expires_at > now\(\)`).
		WithArgs("link-1", sqlmock.AnyArg(), "hash", "https://u", "name", "v@e.com").
		WillReturnResult(sqlmock.NewResult(0, 1))

	link := &models.Link{
		ID: "link-1", ExpiresAt: time.Now().Add(time.Hour),
		PasswordHash: "hash", RetrievalURL: "https://u",
		DisplayName: "name", AllowedViewerEmail: "v@e.com",
	}
	require.NoError(t, repo.Update(context.Background(), link))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateViewBudget(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewPostgresRepository(db)

	maxViews := 4
	remaining := 4
	mock.ExpectExec(`UPDATE links SET max_views = \$2, remaining_views = \$3\s+WHERE id = \$1 AND expires_at > now\(\)`).
		WithArgs("link-1", int64(4), int64(4)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.UpdateViewBudget(context.Background(), "link-1", &maxViews, &remaining))
	require.NoError(t, mock.ExpectationsWereMet())

	mock.ExpectExec(`UPDATE links SET max_views`).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.UpdateViewBudget(context.Background(), "gone", nil, nil)
	assert.ErrorIs(t, err, common.ErrorNotFound)
}

func TestUpdate_MissingRowIsNotFound(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewPostgresRepository(db)

	mock.ExpectExec(`UPDATE links`).
		WillReturnResult(sqlmock.NewResult(0, 0))

	link := &models.Link{ID: "gone", ExpiresAt: time.Now().Add(time.Hour)}
	assert.ErrorIs(t, repo.Update(context.Background(), link), common.ErrorNotFound)
}

func TestDeleteByIDForOwner(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewPostgresRepository(db)

	mock.ExpectExec(`DELETE FROM links\s+WHERE id = \$1 AND owner_id = \$2 AND expires_at > now\(\)`).
		WithArgs("link-1", "acc-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.DeleteByIDForOwner(context.Background(), "link-1", "acc-1"))

	mock.ExpectExec(`DELETE FROM links`).
		WithArgs("link-1", "acc-2").
		WillReturnResult(sqlmock.NewResult(0, 0))

	assert.ErrorIs(t, repo.DeleteByIDForOwner(context.Background(), "link-1", "acc-2"), common.ErrorNotFound)
}

func TestCreate_ReturnsAssignedID(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewPostgresRepository(db)

	now := time.Now()
	mock.ExpectQuery(`INSERT INTO links`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).AddRow("link-9", now))

	maxViews := 2
	remaining := 2
	link := &models.Link{
		Kind:           models.KindText,
		Payload:        "hi",
		ExpiresAt:      now.Add(time.Hour),
		OwnerID:        "acc-1",
		MaxViews:       &maxViews,
		RemainingViews: &remaining,
	}
	out, err := repo.Create(context.Background(), link)
	require.NoError(t, err)
	assert.Equal(t, "link-9", out.ID)
}

func TestGetByID_DBErrorWrapped(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewPostgresRepository(db)

	mock.ExpectQuery(`SELECT .+ FROM links`).
		WillReturnError(errors.New("connection refused"))

	_, err := repo.GetByID(context.Background(), "x")
	require.Error(t, err)
	assert.NotErrorIs(t, err, common.ErrorNotFound)
}
