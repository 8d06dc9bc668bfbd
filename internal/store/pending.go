package store

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"promptmarket/internal/models"
)

const pendingColumns = `id,username,email,password_hash,status,reviewed_at,reviewed_by,review_notes,approval_token,reject_token,token_expires_at,promoted_user_id,created_at`

func scanPending(row scanner) (models.PendingRegistration, error) {
	var p models.PendingRegistration
	var reviewedAt, expiresAt sql.NullTime
	var reviewedBy, notes, approveTok, rejectTok, promoted sql.NullString
	if err := row.Scan(&p.ID, &p.Username, &p.Email, &p.PasswordHash, &p.Status, &reviewedAt, &reviewedBy, &notes,
		&approveTok, &rejectTok, &expiresAt, &promoted, &p.CreatedAt); err != nil {
		return models.PendingRegistration{}, err
	}
	p.CreatedAt = p.CreatedAt.UTC()
	p.ReviewedAt = timePtr(reviewedAt)
	p.ReviewedBy = stringPtr(reviewedBy)
	p.ReviewNotes = stringPtr(notes)
	p.ApprovalToken = stringPtr(approveTok)
	p.RejectToken = stringPtr(rejectTok)
	p.TokenExpiresAt = timePtr(expiresAt)
	p.PromotedUserID = stringPtr(promoted)
	return p, nil
}

func (s *Store) getPendingWhere(ctx context.Context, where string, args ...any) (models.PendingRegistration, error) {
	row := s.db.QueryRowContext(ctx, s.q(`SELECT `+pendingColumns+` FROM pending_registrations WHERE `+where), args...)
	p, err := scanPending(row)
	if errors.Is(err, sql.ErrNoRows) {
		return models.PendingRegistration{}, ErrNotFound
	}
	return p, err
}

func (s *Store) GetPendingByID(ctx context.Context, id string) (models.PendingRegistration, error) {
	return s.getPendingWhere(ctx, `id=?`, id)
}

// GetPendingByApprovalToken looks the token up in the approval namespace only.
// Expiry and status are left to the caller.
func (s *Store) GetPendingByApprovalToken(ctx context.Context, token string) (models.PendingRegistration, error) {
	if strings.TrimSpace(token) == "" {
		return models.PendingRegistration{}, ErrNotFound
	}
	return s.getPendingWhere(ctx, `approval_token=?`, token)
}

func (s *Store) GetPendingByRejectToken(ctx context.Context, token string) (models.PendingRegistration, error) {
	if strings.TrimSpace(token) == "" {
		return models.PendingRegistration{}, ErrNotFound
	}
	return s.getPendingWhere(ctx, `reject_token=?`, token)
}

// FindPendingByUsernameOrEmail can return two rows when the username and the
// email belong to different records.
func (s *Store) FindPendingByUsernameOrEmail(ctx context.Context, username, email string) ([]models.PendingRegistration, error) {
	rows, err := s.db.QueryContext(ctx,
		s.q(`SELECT `+pendingColumns+` FROM pending_registrations WHERE username=? OR email=? ORDER BY created_at ASC`),
		username, email,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []models.PendingRegistration
	for rows.Next() {
		p, err := scanPending(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *Store) CreatePending(ctx context.Context, p models.PendingRegistration) error {
	_, err := s.db.ExecContext(ctx,
		s.q(`INSERT INTO pending_registrations(`+pendingColumns+`) VALUES(?,?,?,?,?,?,?,?,?,?,?,?,?)`),
		p.ID, p.Username, p.Email, p.PasswordHash, string(p.Status), nullTime(p.ReviewedAt), nullString(p.ReviewedBy), nullString(p.ReviewNotes),
		nullString(p.ApprovalToken), nullString(p.RejectToken), nullTime(p.TokenExpiresAt), nullString(p.PromotedUserID), p.CreatedAt.UTC(),
	)
	return classifyDuplicate(err)
}

// ResetPending rewrites a reviewed row in place for a new epoch. Only rows in
// a reviewed state are touched; ErrConflict means the row is pending again.
func (s *Store) ResetPending(ctx context.Context, p models.PendingRegistration) error {
	res, err := s.db.ExecContext(ctx,
		s.q(`UPDATE pending_registrations SET username=?,email=?,password_hash=?,status=?,reviewed_at=NULL,reviewed_by=NULL,review_notes=NULL,
 approval_token=?,reject_token=?,token_expires_at=?,promoted_user_id=NULL,created_at=?
 WHERE id=? AND status IN ('approved','rejected')`),
		p.Username, p.Email, p.PasswordHash, string(p.Status), nullString(p.ApprovalToken), nullString(p.RejectToken), nullTime(p.TokenExpiresAt), p.CreatedAt.UTC(), p.ID,
	)
	if err != nil {
		return classifyDuplicate(err)
	}
	return affectedOne(res)
}

func (s *Store) SetPendingTokens(ctx context.Context, id, approveToken, rejectToken string, expiresAt time.Time) error {
	res, err := s.db.ExecContext(ctx,
		s.q(`UPDATE pending_registrations SET approval_token=?,reject_token=?,token_expires_at=? WHERE id=? AND status='pending'`),
		approveToken, rejectToken, expiresAt.UTC(), id,
	)
	if err != nil {
		return classifyDuplicate(err)
	}
	return affectedOne(res)
}

// RejectPending records a rejection if the row is still pending.
func (s *Store) RejectPending(ctx context.Context, p models.PendingRegistration) error {
	res, err := s.db.ExecContext(ctx,
		s.q(`UPDATE pending_registrations SET status=?,reviewed_at=?,reviewed_by=?,review_notes=? WHERE id=? AND status='pending'`),
		string(p.Status), nullTime(p.ReviewedAt), nullString(p.ReviewedBy), nullString(p.ReviewNotes), p.ID,
	)
	if err != nil {
		return err
	}
	return affectedOne(res)
}

// PromotePending marks the row approved and inserts the user in one
// transaction. A lost race on the row yields ErrConflict; a user collision
// yields a duplicate error and leaves the row pending.
func (s *Store) PromotePending(ctx context.Context, p models.PendingRegistration, u models.User) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			s.q(`UPDATE pending_registrations SET status=?,reviewed_at=?,reviewed_by=?,review_notes=?,promoted_user_id=? WHERE id=? AND status='pending'`),
			string(p.Status), nullTime(p.ReviewedAt), nullString(p.ReviewedBy), nullString(p.ReviewNotes), u.ID, p.ID,
		)
		if err != nil {
			return err
		}
		if err := affectedOne(res); err != nil {
			return err
		}
		return insertUser(ctx, tx, s.q, u)
	})
}

func (s *Store) ListPending(ctx context.Context, q models.PendingQuery) ([]models.PendingRegistration, int, error) {
	limit, offset := clampPage(q.Limit, q.Offset)
	var where []string
	var args []any
	if st := strings.ToLower(strings.TrimSpace(q.Status)); st != "" && st != "all" {
		where = append(where, `status=?`)
		args = append(args, st)
	}
	if term := strings.TrimSpace(q.Q); term != "" {
		like := s.d.CaseInsensitiveLike()
		where = append(where, `(username `+like+` ? OR email `+like+` ?)`)
		pattern := "%" + term + "%"
		args = append(args, pattern, pattern)
	}
	clause := ""
	if len(where) > 0 {
		clause = ` WHERE ` + strings.Join(where, ` AND `)
	}

	var total int
	if err := s.db.QueryRowContext(ctx, s.q(`SELECT COUNT(1) FROM pending_registrations`+clause), args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := s.db.QueryContext(ctx,
		s.q(`SELECT `+pendingColumns+` FROM pending_registrations`+clause+` ORDER BY created_at ASC LIMIT ? OFFSET ?`),
		append(args, limit, offset)...,
	)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	out := make([]models.PendingRegistration, 0, limit)
	for rows.Next() {
		p, err := scanPending(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, p)
	}
	return out, total, rows.Err()
}

// DeletePromotedBefore removes approved rows whose user was created and whose
// review is older than cutoff. The age check runs in Go so sqlite text
// timestamps never need lexical comparison.
func (s *Store) DeletePromotedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	rows, err := s.db.QueryContext(ctx,
		s.q(`SELECT id,reviewed_at FROM pending_registrations WHERE status='approved' AND promoted_user_id IS NOT NULL`),
	)
	if err != nil {
		return 0, err
	}
	var ids []string
	for rows.Next() {
		var id string
		var reviewedAt sql.NullTime
		if err := rows.Scan(&id, &reviewedAt); err != nil {
			rows.Close()
			return 0, err
		}
		if reviewedAt.Valid && reviewedAt.Time.Before(cutoff) {
			ids = append(ids, id)
		}
	}
	if err := rows.Close(); err != nil {
		return 0, err
	}
	if err := rows.Err(); err != nil {
		return 0, err
	}

	var deleted int64
	for _, id := range ids {
		res, err := s.db.ExecContext(ctx,
			s.q(`DELETE FROM pending_registrations WHERE id=? AND status='approved' AND promoted_user_id IS NOT NULL`), id)
		if err != nil {
			return deleted, err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return deleted, err
		}
		deleted += n
	}
	return deleted, nil
}
