package accounts

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/avelichko/linkvault/internal/common"
	"github.com/avelichko/linkvault/internal/dbx"
	"github.com/avelichko/linkvault/internal/server/models"
	"github.com/jackc/pgx/v5/pgconn"
)

// pgUniqueViolation is the Postgres error code for unique constraint hits.
const pgUniqueViolation = "23505"

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, account *models.Account) (*models.Account, error) {

	query :=
		`INSERT INTO accounts (name, email, password_hash)
         VALUES ($1, $2, $3)
		 RETURNING id, created_at
		 `

	err := r.db.QueryRowContext(ctx, query,
		account.Name, account.Email, account.PasswordHash).Scan(&account.ID, &account.CreatedAt)

	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return nil, common.ErrorEmailTaken
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	return account, nil
}

func (r *PostgresRepository) GetByEmail(ctx context.Context, email string) (*models.Account, error) {
	query :=
		`SELECT id, name, email, password_hash, session_secret_hash, created_at FROM accounts
		 WHERE email = $1
		 `
	return r.scanAccount(r.db.QueryRowContext(ctx, query, email))
}

func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*models.Account, error) {
	query :=
		`SELECT id, name, email, password_hash, session_secret_hash, created_at FROM accounts
		 WHERE id = $1
		 `
	return r.scanAccount(r.db.QueryRowContext(ctx, query, id))
}

func (r *PostgresRepository) UpdateSessionSecretHash(ctx context.Context, accountID, digest string) error {
	query :=
		`UPDATE accounts SET session_secret_hash = NULLIF($2, '')
		 WHERE id = $1
		 `

	if _, err := r.db.ExecContext(ctx, query, accountID, digest); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) UpdatePasswordHash(ctx context.Context, accountID, hash string) error {
	query :=
		`UPDATE accounts SET password_hash = $2
		 WHERE id = $1
		 `

	if _, err := r.db.ExecContext(ctx, query, accountID, hash); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) scanAccount(row *sql.Row) (*models.Account, error) {
	account := &models.Account{}
	var secretHash sql.NullString

	err := row.Scan(&account.ID, &account.Name, &account.Email,
		&account.PasswordHash, &secretHash, &account.CreatedAt)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	account.SessionSecretHash = secretHash.String
	return account, nil
}
