package store

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"promptmarket/internal/models"
)

const userColumns = `id,username,email,password_hash,email_verified,is_admin,is_manager,verification_token_hash,verification_expires_at,reset_token_hash,reset_expires_at,created_at`

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func insertUser(ctx context.Context, ex execer, rebind func(string) string, u models.User) error {
	_, err := ex.ExecContext(ctx,
		rebind(`INSERT INTO users(`+userColumns+`) VALUES(?,?,?,?,?,?,?,?,?,?,?,?)`),
		u.ID, u.Username, u.Email, u.PasswordHash, u.EmailVerified, u.IsAdmin, u.IsManager,
		nullString(u.VerificationTokenHash), nullTime(u.VerificationExpiresAt), nullString(u.ResetTokenHash), nullTime(u.ResetExpiresAt), u.CreatedAt.UTC(),
	)
	return classifyDuplicate(err)
}

func scanUser(row scanner) (models.User, error) {
	var u models.User
	var verifyHash, resetHash sql.NullString
	var verifyExp, resetExp sql.NullTime
	if err := row.Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.EmailVerified, &u.IsAdmin, &u.IsManager,
		&verifyHash, &verifyExp, &resetHash, &resetExp, &u.CreatedAt); err != nil {
		return models.User{}, err
	}
	u.CreatedAt = u.CreatedAt.UTC()
	u.VerificationTokenHash = stringPtr(verifyHash)
	u.VerificationExpiresAt = timePtr(verifyExp)
	u.ResetTokenHash = stringPtr(resetHash)
	u.ResetExpiresAt = timePtr(resetExp)
	return u, nil
}

func (s *Store) getUserWhere(ctx context.Context, where string, args ...any) (models.User, error) {
	u, err := scanUser(s.db.QueryRowContext(ctx, s.q(`SELECT `+userColumns+` FROM users WHERE `+where), args...))
	if errors.Is(err, sql.ErrNoRows) {
		return models.User{}, ErrNotFound
	}
	return u, err
}

func (s *Store) CreateUser(ctx context.Context, u models.User) error {
	return insertUser(ctx, s.db, s.q, u)
}

func (s *Store) GetUserByID(ctx context.Context, id string) (models.User, error) {
	return s.getUserWhere(ctx, `id=?`, id)
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (models.User, error) {
	return s.getUserWhere(ctx, `email=?`, strings.ToLower(strings.TrimSpace(email)))
}

func (s *Store) GetUserByUsername(ctx context.Context, username string) (models.User, error) {
	return s.getUserWhere(ctx, `username=?`, strings.TrimSpace(username))
}

// FindUserByUsernameOrEmail returns the first user holding either identifier.
func (s *Store) FindUserByUsernameOrEmail(ctx context.Context, username, email string) (models.User, error) {
	return s.getUserWhere(ctx, `username=? OR email=? ORDER BY created_at ASC LIMIT 1`, username, email)
}

func (s *Store) GetUserByVerificationHash(ctx context.Context, tokenHash string) (models.User, error) {
	if tokenHash == "" {
		return models.User{}, ErrNotFound
	}
	return s.getUserWhere(ctx, `verification_token_hash=?`, tokenHash)
}

func (s *Store) GetUserByResetHash(ctx context.Context, tokenHash string) (models.User, error) {
	if tokenHash == "" {
		return models.User{}, ErrNotFound
	}
	return s.getUserWhere(ctx, `reset_token_hash=?`, tokenHash)
}

func (s *Store) SetVerificationToken(ctx context.Context, userID, tokenHash string, expiresAt time.Time) error {
	res, err := s.db.ExecContext(ctx,
		s.q(`UPDATE users SET verification_token_hash=?,verification_expires_at=? WHERE id=?`),
		tokenHash, expiresAt.UTC(), userID,
	)
	if err != nil {
		return err
	}
	if err := affectedOne(res); err != nil {
		return ErrNotFound
	}
	return nil
}

// MarkEmailVerified consumes the verification token; a token already used or
// replaced yields ErrConflict.
func (s *Store) MarkEmailVerified(ctx context.Context, userID, tokenHash string) error {
	res, err := s.db.ExecContext(ctx,
		s.q(`UPDATE users SET email_verified=?,verification_token_hash=NULL,verification_expires_at=NULL WHERE id=? AND verification_token_hash=?`),
		true, userID, tokenHash,
	)
	if err != nil {
		return err
	}
	return affectedOne(res)
}

func (s *Store) SetResetToken(ctx context.Context, userID, tokenHash string, expiresAt time.Time) error {
	res, err := s.db.ExecContext(ctx,
		s.q(`UPDATE users SET reset_token_hash=?,reset_expires_at=? WHERE id=?`),
		tokenHash, expiresAt.UTC(), userID,
	)
	if err != nil {
		return err
	}
	if err := affectedOne(res); err != nil {
		return ErrNotFound
	}
	return nil
}

// ConsumeResetToken replaces the password hash if the reset token is still
// the one on record.
func (s *Store) ConsumeResetToken(ctx context.Context, userID, tokenHash, passwordHash string) error {
	res, err := s.db.ExecContext(ctx,
		s.q(`UPDATE users SET password_hash=?,reset_token_hash=NULL,reset_expires_at=NULL WHERE id=? AND reset_token_hash=?`),
		passwordHash, userID, tokenHash,
	)
	if err != nil {
		return err
	}
	return affectedOne(res)
}

func (s *Store) EnsureAdmin(ctx context.Context, username, email, passwordHash string) error {
	email = strings.ToLower(strings.TrimSpace(email))
	username = strings.TrimSpace(username)
	if username == "" || email == "" || passwordHash == "" {
		return nil
	}
	u, err := s.GetUserByEmail(ctx, email)
	if errors.Is(err, ErrNotFound) {
		return s.CreateUser(ctx, models.User{
			ID:            uuid.NewString(),
			Username:      username,
			Email:         email,
			PasswordHash:  passwordHash,
			EmailVerified: true,
			IsAdmin:       true,
			CreatedAt:     time.Now().UTC(),
		})
	}
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		s.q(`UPDATE users SET is_admin=?,email_verified=?,password_hash=? WHERE id=?`),
		true, true, passwordHash, u.ID,
	)
	return err
}

func (s *Store) CountAdmins(ctx context.Context) (int, error) {
	var count int
	if err := s.db.QueryRowContext(ctx, s.q(`SELECT COUNT(1) FROM users WHERE is_admin=?`), true).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

func (s *Store) ListAdminEmails(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, s.q(`SELECT email FROM users WHERE is_admin=? ORDER BY created_at ASC`), true)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var email string
		if err := rows.Scan(&email); err != nil {
			return nil, err
		}
		out = append(out, email)
	}
	return out, rows.Err()
}
