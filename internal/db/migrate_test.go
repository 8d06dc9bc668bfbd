package db

import (
	"database/sql"
	"path/filepath"
	"testing"
	"time"
)

func TestMigrateCreatesSchemaAndIsIdempotent(t *testing.T) {
	sqdb, err := OpenSQLite(filepath.Join(t.TempDir(), "app.db"), 1, 1, time.Minute)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { _ = sqdb.Close() })

	for i := 0; i < 2; i++ {
		if err := Migrate(sqdb, SQLite); err != nil {
			t.Fatalf("migrate run %d: %v", i+1, err)
		}
	}

	for _, tc := range []struct{ table, col string }{
		{"users", "email_verified"},
		{"users", "reset_token_hash"},
		{"pending_registrations", "approval_token"},
		{"pending_registrations", "promoted_user_id"},
		{"settings", "setting_value"},
		{"admin_audit_log", "metadata_json"},
	} {
		if !hasColumn(t, sqdb, tc.table, tc.col) {
			t.Fatalf("expected %s.%s after migrate", tc.table, tc.col)
		}
	}
}

func TestPendingEmailIsUnique(t *testing.T) {
	sqdb, err := OpenSQLite(filepath.Join(t.TempDir(), "app.db"), 1, 1, time.Minute)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { _ = sqdb.Close() })
	if err := Migrate(sqdb, SQLite); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	insert := `INSERT INTO pending_registrations(id,username,email,password_hash,status,created_at) VALUES(?,?,?,?,?,?)`
	now := time.Now().UTC()
	if _, err := sqdb.Exec(insert, "a", "alice", "a@x.test", "h", "pending", now); err != nil {
		t.Fatalf("first insert: %v", err)
	}
	if _, err := sqdb.Exec(insert, "b", "alicia", "a@x.test", "h", "pending", now); err == nil {
		t.Fatalf("expected unique violation on email")
	}
	if _, err := sqdb.Exec(insert, "c", "carol", "c@x.test", "h", "archived", now); err == nil {
		t.Fatalf("expected status check violation")
	}
}

func hasColumn(t *testing.T, sqdb *sql.DB, table, col string) bool {
	t.Helper()
	rows, err := sqdb.Query(`PRAGMA table_info(` + table + `)`)
	if err != nil {
		t.Fatalf("table_info %s: %v", table, err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			cid     int
			name    string
			typ     string
			notNull int
			dflt    sql.NullString
			pk      int
		)
		if err := rows.Scan(&cid, &name, &typ, &notNull, &dflt, &pk); err != nil {
			t.Fatalf("scan table_info: %v", err)
		}
		if name == col {
			return true
		}
	}
	return false
}
