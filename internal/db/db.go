package db

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"
)

type Options struct {
	Driver         string
	Path           string
	DSN            string
	MaxOpenConns   int
	MaxIdleConns   int
	MaxLifetime    time.Duration
	MaxIdleTime    time.Duration
	ConnectTimeout time.Duration
}

// Open returns the shared connection pool for the configured driver.
func Open(opts Options) (*sql.DB, Dialect, error) {
	d, err := DialectFor(opts.Driver)
	if err != nil {
		return nil, Dialect{}, err
	}
	var sqdb *sql.DB
	switch d.Name {
	case "sqlite":
		sqdb, err = openSQLite(opts.Path)
	case "postgres":
		sqdb, err = openPostgres(opts.DSN, opts.ConnectTimeout)
	case "mysql":
		sqdb, err = openMySQL(opts.DSN, opts.ConnectTimeout)
	}
	if err != nil {
		return nil, Dialect{}, err
	}
	applyPool(sqdb, opts)

	timeout := opts.ConnectTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := sqdb.PingContext(ctx); err != nil {
		_ = sqdb.Close()
		return nil, Dialect{}, fmt.Errorf("ping %s: %w", d.Name, err)
	}
	return sqdb, d, nil
}

// OpenSQLite opens a file-backed sqlite pool. Tests use it directly.
func OpenSQLite(path string, maxOpen, maxIdle int, maxLifetime time.Duration) (*sql.DB, error) {
	sqdb, err := openSQLite(path)
	if err != nil {
		return nil, err
	}
	sqdb.SetMaxOpenConns(maxOpen)
	sqdb.SetMaxIdleConns(maxIdle)
	sqdb.SetConnMaxLifetime(maxLifetime)
	if err := sqdb.Ping(); err != nil {
		_ = sqdb.Close()
		return nil, err
	}
	return sqdb, nil
}

func openSQLite(path string) (*sql.DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("mkdir db dir: %w", err)
	}
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_time_format=sqlite", path)
	return sql.Open("sqlite", dsn)
}

func openPostgres(dsn string, connectTimeout time.Duration) (*sql.DB, error) {
	connCfg, err := pgx.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if connectTimeout > 0 {
		connCfg.ConnectTimeout = connectTimeout
	}
	return stdlib.OpenDB(*connCfg), nil
}

func openMySQL(dsn string, connectTimeout time.Duration) (*sql.DB, error) {
	normalized, err := NormalizeMySQLDSN(dsn, connectTimeout)
	if err != nil {
		return nil, err
	}
	return sql.Open("mysql", normalized)
}

// NormalizeMySQLDSN forces the options the store and migrations rely on:
// time parsing in UTC and multi-statement migration files.
func NormalizeMySQLDSN(dsn string, connectTimeout time.Duration) (string, error) {
	mcfg, err := mysql.ParseDSN(strings.TrimSpace(dsn))
	if err != nil {
		return "", fmt.Errorf("parse mysql dsn: %w", err)
	}
	mcfg.ParseTime = true
	mcfg.MultiStatements = true
	mcfg.Loc = time.UTC
	if connectTimeout > 0 {
		mcfg.Timeout = connectTimeout
	}
	return mcfg.FormatDSN(), nil
}

func applyPool(sqdb *sql.DB, opts Options) {
	if opts.MaxOpenConns > 0 {
		sqdb.SetMaxOpenConns(opts.MaxOpenConns)
	}
	if opts.MaxIdleConns >= 0 {
		sqdb.SetMaxIdleConns(opts.MaxIdleConns)
	}
	if opts.MaxLifetime > 0 {
		sqdb.SetConnMaxLifetime(opts.MaxLifetime)
	}
	if opts.MaxIdleTime > 0 {
		sqdb.SetConnMaxIdleTime(opts.MaxIdleTime)
	}
}
