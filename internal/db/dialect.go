package db

import (
	"fmt"
	"strconv"
	"strings"
)

// Dialect captures the few SQL differences between the supported drivers.
type Dialect struct {
	Name string
}

var (
	SQLite   = Dialect{Name: "sqlite"}
	Postgres = Dialect{Name: "postgres"}
	MySQL    = Dialect{Name: "mysql"}
)

func DialectFor(driver string) (Dialect, error) {
	switch strings.ToLower(strings.TrimSpace(driver)) {
	case "", "sqlite", "sqlite3":
		return SQLite, nil
	case "postgres", "postgresql", "pgx":
		return Postgres, nil
	case "mysql", "mariadb":
		return MySQL, nil
	}
	return Dialect{}, fmt.Errorf("unsupported db driver %q", driver)
}

// Rebind rewrites ? placeholders into the dialect's bind syntax.
func (d Dialect) Rebind(q string) string {
	if d.Name != "postgres" {
		return q
	}
	var b strings.Builder
	b.Grow(len(q) + 8)
	n := 0
	inQuote := false
	for i := 0; i < len(q); i++ {
		c := q[i]
		if c == '\'' {
			inQuote = !inQuote
		}
		if c == '?' && !inQuote {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteByte(c)
	}
	return b.String()
}

// UpsertSetting returns the insert-or-update statement for the settings table.
func (d Dialect) UpsertSetting() string {
	if d.Name == "mysql" {
		return `INSERT INTO settings(setting_key,setting_value,description,updated_by,updated_at) VALUES(?,?,?,?,?)
 ON DUPLICATE KEY UPDATE setting_value=VALUES(setting_value), description=VALUES(description), updated_by=VALUES(updated_by), updated_at=VALUES(updated_at)`
	}
	return d.Rebind(`INSERT INTO settings(setting_key,setting_value,description,updated_by,updated_at) VALUES(?,?,?,?,?)
 ON CONFLICT(setting_key) DO UPDATE SET setting_value=excluded.setting_value, description=excluded.description, updated_by=excluded.updated_by, updated_at=excluded.updated_at`)
}

// CaseInsensitiveLike returns the operator used for admin search filters.
func (d Dialect) CaseInsensitiveLike() string {
	if d.Name == "postgres" {
		return "ILIKE"
	}
	return "LIKE"
}
