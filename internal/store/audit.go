package store

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/google/uuid"

	"promptmarket/internal/models"
)

func (s *Store) InsertAudit(ctx context.Context, actorID *string, action, target, metadata string) error {
	if strings.TrimSpace(metadata) == "" {
		metadata = "{}"
	}
	_, err := s.db.ExecContext(ctx,
		s.q(`INSERT INTO admin_audit_log(id,actor_user_id,action,target,metadata_json,created_at) VALUES(?,?,?,?,?,?)`),
		uuid.NewString(), nullString(actorID), action, target, metadata, time.Now().UTC(),
	)
	return err
}

func (s *Store) ListAudit(ctx context.Context, q models.AuditQuery) ([]models.AuditEntry, error) {
	limit, offset := clampPage(q.Limit, q.Offset)
	query := `SELECT id,actor_user_id,action,target,metadata_json,created_at FROM admin_audit_log`
	var args []any
	if action := strings.TrimSpace(q.Action); action != "" {
		query += ` WHERE action=?`
		args = append(args, action)
	}
	query += ` ORDER BY created_at DESC LIMIT ? OFFSET ?`
	rows, err := s.db.QueryContext(ctx, s.q(query), append(args, limit, offset)...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]models.AuditEntry, 0, limit)
	for rows.Next() {
		var e models.AuditEntry
		var actor sql.NullString
		if err := rows.Scan(&e.ID, &actor, &e.Action, &e.Target, &e.MetadataJSON, &e.CreatedAt); err != nil {
			return nil, err
		}
		e.ActorUserID = stringPtr(actor)
		e.CreatedAt = e.CreatedAt.UTC()
		out = append(out, e)
	}
	return out, rows.Err()
}
