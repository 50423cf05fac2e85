// Package services contains the server-side business logic: the session
// authority, the link lifecycle, and the redemption decision pipeline.
package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/avelichko/linkvault/internal/common"
	"github.com/avelichko/linkvault/internal/dbx"
	"github.com/avelichko/linkvault/internal/logging"
	"github.com/avelichko/linkvault/internal/server/auth"
	"github.com/avelichko/linkvault/internal/server/config"
	"github.com/avelichko/linkvault/internal/server/models"
	"github.com/avelichko/linkvault/internal/server/repositories/repomanager"
)

// sessionSecretBytes is the entropy of the per-login secret (hex doubles it
// on the wire).
const sessionSecretBytes = 32

// Session bundles a signed bearer token with the cookie lifetime the
// transport should apply to it.
type Session struct {
	Token    string
	Lifetime time.Duration
}

// SessionService is the session authority. It owns the Account lifecycle
// relevant to authentication: signup, login, logout, password change, and
// the validation of incoming session tokens.
//
// A token is valid only when its signature and expiry check out AND the
// fast digest of its embedded secret equals the digest currently stored on
// the account. Overwriting that one stored value is how a session is
// revoked; there is no token denylist.
type SessionService struct {
	db              dbx.DBTX
	repomanager     repomanager.RepositoryManager
	logger          logging.Logger
	jwtSecret       []byte
	sessionValidity time.Duration
}

func NewSessionService(db dbx.DBTX, m repomanager.RepositoryManager, cfg *config.Config, logger logging.Logger) *SessionService {
	return &SessionService{
		db:              db,
		repomanager:     m,
		logger:          logger.With("module", "session"),
		jwtSecret:       []byte(cfg.SecretKey),
		sessionValidity: cfg.SessionValidityDuration,
	}
}

// NormalizeEmail lowers and trims an email for storage and comparison.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// validPasswordLength rejects passwords bcrypt cannot hash. Shared by account
// and link passwords; the limit is in bytes because that is bcrypt's unit.
func validPasswordLength(password string) error {
	if len(password) > auth.MaxPasswordBytes {
		return fmt.Errorf("%w: password must be at most %d bytes", common.ErrorValidation, auth.MaxPasswordBytes)
	}
	return nil
}

// Signup creates an account with a normalized unique email and logs it in.
func (s *SessionService) Signup(ctx context.Context, name, email, password string) (*models.Account, *Session, error) {
	name = strings.TrimSpace(name)
	email = NormalizeEmail(email)

	if name == "" || email == "" || password == "" {
		return nil, nil, fmt.Errorf("%w: all fields are required", common.ErrorValidation)
	}
	if err := validPasswordLength(password); err != nil {
		return nil, nil, err
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return nil, nil, common.ErrorInternal
	}

	// The account insert and the first secret-digest write commit together:
	// no account row without a loggable-in state, and vice versa.
	var account *models.Account
	var session *Session
	err = s.withHandle(ctx, func(ctx context.Context, h dbx.DBTX) error {
		repo := s.repomanager.Accounts(h)
		account, err = repo.Create(ctx, &models.Account{Name: name, Email: email, PasswordHash: hash})
		if err != nil {
			if errors.Is(err, common.ErrorEmailTaken) {
				return err
			}
			return fmt.Errorf("error creating account: %w", err)
		}

		session, err = s.issueSession(ctx, h, account)
		return err
	})
	if err != nil {
		return nil, nil, err
	}
	return account, session, nil
}

// withHandle runs fn inside a transaction when the underlying handle can open
// one; test fakes fall through to the plain handle.
func (s *SessionService) withHandle(ctx context.Context, fn func(ctx context.Context, h dbx.DBTX) error) error {
	if b, ok := s.db.(dbx.Beginner); ok {
		return dbx.WithTx(ctx, b, nil, fn)
	}
	return fn(ctx, s.db)
}

// Login verifies the credentials and mints a fresh session. The new secret
// digest replaces any prior one, which silently revokes every other
// outstanding session for the account: at most one live session per account.
func (s *SessionService) Login(ctx context.Context, email, password string) (*models.Account, *Session, error) {
	repo := s.repomanager.Accounts(s.db)

	account, err := repo.GetByEmail(ctx, NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, nil, common.ErrorUnauthorized
		}
		return nil, nil, common.ErrorInternal
	}
	if !auth.VerifyPassword(password, account.PasswordHash) {
		return nil, nil, common.ErrorUnauthorized
	}

	session, err := s.issueSession(ctx, s.db, account)
	if err != nil {
		return nil, nil, err
	}
	return account, session, nil
}

// Authenticate resolves a session token to its account. Every failure mode
// (missing token, bad signature, expired, revoked, stale after re-login)
// collapses to ErrorUnauthenticated; the cause is logged, never returned.
func (s *SessionService) Authenticate(ctx context.Context, token string) (*models.Account, error) {
	if token == "" {
		return nil, common.ErrorUnauthenticated
	}

	accountID, secret, err := auth.ParseToken(token, s.jwtSecret)
	if err != nil {
		s.logger.Debug(ctx, "session token rejected", "reason", err.Error())
		return nil, common.ErrorUnauthenticated
	}
	if secret == "" {
		return nil, common.ErrorUnauthenticated
	}

	repo := s.repomanager.Accounts(s.db)
	account, err := repo.GetByID(ctx, accountID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrorUnauthenticated
		}
		return nil, common.ErrorInternal
	}

	if account.SessionSecretHash == "" {
		return nil, common.ErrorUnauthenticated
	}
	if !auth.SecretDigestEqual(auth.HashSecret(secret), account.SessionSecretHash) {
		return nil, common.ErrorUnauthenticated
	}

	return account, nil
}

// CurrentIdentity is the non-throwing probe behind "am I logged in" checks.
func (s *SessionService) CurrentIdentity(ctx context.Context, token string) (*models.Account, bool) {
	account, err := s.Authenticate(ctx, token)
	if err != nil {
		return nil, false
	}
	return account, true
}

// Logout clears the stored secret digest, permanently invalidating any
// outstanding token for the account. An unparsable token is tolerated:
// ending a session that never was is still a successful logout.
func (s *SessionService) Logout(ctx context.Context, token string) error {
	accountID, _, err := auth.ParseToken(token, s.jwtSecret)
	if err != nil {
		s.logger.Debug(ctx, "ignoring invalid token on logout")
		return nil
	}

	repo := s.repomanager.Accounts(s.db)
	if err := repo.UpdateSessionSecretHash(ctx, accountID, ""); err != nil {
		return fmt.Errorf("error clearing session: %w", err)
	}
	return nil
}

// ChangePassword verifies the current password, stores the new hash, and
// re-issues the session, revoking any other one as a side effect.
func (s *SessionService) ChangePassword(ctx context.Context, account *models.Account, currentPassword, newPassword string) (*Session, error) {
	if currentPassword == "" || newPassword == "" {
		return nil, fmt.Errorf("%w: all fields are required", common.ErrorValidation)
	}
	if err := validPasswordLength(newPassword); err != nil {
		return nil, err
	}
	if !auth.VerifyPassword(currentPassword, account.PasswordHash) {
		return nil, common.ErrorUnauthorized
	}

	hash, err := auth.HashPassword(newPassword)
	if err != nil {
		return nil, common.ErrorInternal
	}

	repo := s.repomanager.Accounts(s.db)
	if err := repo.UpdatePasswordHash(ctx, account.ID, hash); err != nil {
		return nil, fmt.Errorf("error updating password: %w", err)
	}
	account.PasswordHash = hash

	return s.issueSession(ctx, s.db, account)
}

// issueSession mints a fresh secret, durably stores its digest, and only
// then signs the token that carries the secret. The store happens-before
// the issue: no credential exists for a digest that was not written first.
func (s *SessionService) issueSession(ctx context.Context, h dbx.DBTX, account *models.Account) (*Session, error) {
	secret, err := common.MakeRandHexString(sessionSecretBytes)
	if err != nil {
		return nil, common.ErrorInternal
	}

	digest := auth.HashSecret(secret)
	repo := s.repomanager.Accounts(h)
	if err := repo.UpdateSessionSecretHash(ctx, account.ID, digest); err != nil {
		return nil, fmt.Errorf("error storing session: %w", err)
	}
	account.SessionSecretHash = digest

	token, err := auth.GenerateToken(account.ID, secret, s.jwtSecret, s.sessionValidity)
	if err != nil {
		return nil, common.ErrorInternal
	}

	return &Session{Token: token, Lifetime: s.sessionValidity}, nil
}
