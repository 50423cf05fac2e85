package links

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/avelichko/linkvault/internal/common"
	"github.com/avelichko/linkvault/internal/dbx"
	"github.com/avelichko/linkvault/internal/server/models"
)

const linkColumns = `id, kind, payload, retrieval_url, created_at, expires_at,
	password_hash, owner_id, display_name, allowed_viewer_email, max_views, remaining_views`

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, link *models.Link) (*models.Link, error) {

	query :=
		`INSERT INTO links (kind, payload, retrieval_url, expires_at, password_hash,
		     owner_id, display_name, allowed_viewer_email, max_views, remaining_views)
         VALUES ($1, $2, $3, $4, $5, NULLIF($6, '')::uuid, $7, $8, $9, $10)
		 RETURNING id, created_at
		 `

	err := r.db.QueryRowContext(ctx, query,
		link.Kind, link.Payload, link.RetrievalURL, link.ExpiresAt, link.PasswordHash,
		link.OwnerID, link.DisplayName, link.AllowedViewerEmail,
		nullableInt(link.MaxViews), nullableInt(link.RemainingViews)).Scan(&link.ID, &link.CreatedAt)

	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	return link, nil
}

func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*models.Link, error) {
	query :=
		`SELECT ` + linkColumns + ` FROM links
		 WHERE id = $1 AND expires_at > now()
		 `
	return scanLink(r.db.QueryRowContext(ctx, query, id))
}

// GetByIDForOwner scopes the lookup by owner inside the query itself, so a
// foreign link and a missing link are the same ErrorNotFound.
func (r *PostgresRepository) GetByIDForOwner(ctx context.Context, id, ownerID string) (*models.Link, error) {
	query :=
		`SELECT ` + linkColumns + ` FROM links
		 WHERE id = $1 AND owner_id = $2 AND expires_at > now()
		 `
	return scanLink(r.db.QueryRowContext(ctx, query, id, ownerID))
}

func (r *PostgresRepository) ListByOwner(ctx context.Context, ownerID string) ([]*models.Link, error) {
	query :=
		`SELECT ` + linkColumns + ` FROM links
		 WHERE owner_id = $1 AND expires_at > now()
		 ORDER BY created_at DESC
		 `

	rows, err := r.db.QueryContext(ctx, query, ownerID)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var result []*models.Link
	for rows.Next() {
		link, err := scanLinkRow(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, link)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	return result, nil
}

// Update writes everything except the view-budget columns, which only
// ConsumeView and UpdateViewBudget may touch.
func (r *PostgresRepository) Update(ctx context.Context, link *models.Link) error {
	query :=
		`UPDATE links
		 SET expires_at = $2, password_hash = $3, retrieval_url = $4,
		     display_name = $5, allowed_viewer_email = $6
		 WHERE id = $1 AND expires_at > now()
		 `

	res, err := r.db.ExecContext(ctx, query,
		link.ID, link.ExpiresAt, link.PasswordHash, link.RetrievalURL,
		link.DisplayName, link.AllowedViewerEmail)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if affected == 0 {
		return common.ErrorNotFound
	}
	return nil
}

// UpdateViewBudget replaces both budget columns together, keeping the schema's
// paired-nullability check satisfied.
func (r *PostgresRepository) UpdateViewBudget(ctx context.Context, id string, maxViews, remainingViews *int) error {
	query :=
		`UPDATE links SET max_views = $2, remaining_views = $3
		 WHERE id = $1 AND expires_at > now()
		 `

	res, err := r.db.ExecContext(ctx, query, id, nullableInt(maxViews), nullableInt(remainingViews))
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if affected == 0 {
		return common.ErrorNotFound
	}
	return nil
}

func (r *PostgresRepository) DeleteByIDForOwner(ctx context.Context, id, ownerID string) error {
	query :=
		`DELETE FROM links
		 WHERE id = $1 AND owner_id = $2 AND expires_at > now()
		 `

	res, err := r.db.ExecContext(ctx, query, id, ownerID)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if affected == 0 {
		return common.ErrorNotFound
	}
	return nil
}

// ConsumeView decrements the remaining-view counter only while it is still
// positive. The guard lives in the WHERE clause: two concurrent calls with
// one view left race inside the database, and exactly one sees a row.
func (r *PostgresRepository) ConsumeView(ctx context.Context, id string) (bool, error) {
	query :=
		`UPDATE links SET remaining_views = remaining_views - 1
		 WHERE id = $1 AND remaining_views > 0 AND expires_at > now()
		 `

	res, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	return affected > 0, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanLink(row *sql.Row) (*models.Link, error) {
	link, err := scanLinkRow(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, err
	}
	return link, nil
}

func scanLinkRow(row rowScanner) (*models.Link, error) {
	link := &models.Link{}
	var ownerID sql.NullString
	var maxViews, remainingViews sql.NullInt64

	err := row.Scan(&link.ID, &link.Kind, &link.Payload, &link.RetrievalURL,
		&link.CreatedAt, &link.ExpiresAt, &link.PasswordHash, &ownerID,
		&link.DisplayName, &link.AllowedViewerEmail, &maxViews, &remainingViews)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	link.OwnerID = ownerID.String
	link.MaxViews = intPointer(maxViews)
	link.RemainingViews = intPointer(remainingViews)
	return link, nil
}

func nullableInt(v *int) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*v), Valid: true}
}

func intPointer(v sql.NullInt64) *int {
	if !v.Valid {
		return nil
	}
	n := int(v.Int64)
	return &n
}
