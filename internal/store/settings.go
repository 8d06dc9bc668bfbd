package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"promptmarket/internal/models"
)

func (s *Store) GetSetting(ctx context.Context, key string) (models.Setting, bool, error) {
	var st models.Setting
	var updatedBy sql.NullString
	err := s.db.QueryRowContext(ctx,
		s.q(`SELECT setting_key,setting_value,description,updated_by,updated_at FROM settings WHERE setting_key=?`), key,
	).Scan(&st.Key, &st.Value, &st.Description, &updatedBy, &st.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Setting{}, false, nil
	}
	if err != nil {
		return models.Setting{}, false, err
	}
	st.UpdatedBy = stringPtr(updatedBy)
	st.UpdatedAt = st.UpdatedAt.UTC()
	return st, true, nil
}

func (s *Store) UpsertSetting(ctx context.Context, st models.Setting) error {
	if st.UpdatedAt.IsZero() {
		st.UpdatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, s.d.UpsertSetting(),
		st.Key, st.Value, st.Description, nullString(st.UpdatedBy), st.UpdatedAt.UTC(),
	)
	return err
}
