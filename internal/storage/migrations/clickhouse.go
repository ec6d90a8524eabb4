package migrations

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	chstore "solana-dao-lab/internal/storage/clickhouse"
)

// RunClickhouseMigrations creates the DSN's database if needed and applies the
// embedded migrations it has not seen yet. The returned connection targets
// that database and is ready for reuse.
func RunClickhouseMigrations(ctx context.Context, dsn string) (*chstore.Conn, error) {
	migs, err := Load(ClickhouseFS, "clickhouse")
	if err != nil {
		return nil, err
	}
	dbName, err := databaseFromDSN(dsn)
	if err != nil {
		return nil, err
	}

	adminConn, err := chstore.NewConnWithDatabase(ctx, dsn, "")
	if err != nil {
		return nil, fmt.Errorf("connect clickhouse admin: %w", err)
	}
	if err := adminConn.Exec(ctx, fmt.Sprintf("CREATE DATABASE IF NOT EXISTS %s", dbName)); err != nil {
		adminConn.Close()
		return nil, fmt.Errorf("create database %s: %w", dbName, err)
	}
	if err := adminConn.Close(); err != nil {
		return nil, fmt.Errorf("close admin connection: %w", err)
	}

	conn, err := chstore.NewConnWithDatabase(ctx, dsn, dbName)
	if err != nil {
		return nil, fmt.Errorf("connect clickhouse db: %w", err)
	}
	if _, err := run(ctx, clickhouseTarget{conn: conn}, migs); err != nil {
		conn.Close()
		return nil, err
	}
	return conn, nil
}

// clickhouseTarget has no transactions: a file that fails halfway is not
// recorded and is re-run from the top, so its statements use IF NOT EXISTS.
type clickhouseTarget struct {
	conn *chstore.Conn
}

func (t clickhouseTarget) ensureVersionTable(ctx context.Context) error {
	return t.conn.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version    String,
			applied_at DateTime DEFAULT now()
		) ENGINE = ReplacingMergeTree()
		ORDER BY version
	`)
}

func (t clickhouseTarget) appliedVersions(ctx context.Context) (map[string]bool, error) {
	rows, err := t.conn.Query(ctx, `SELECT DISTINCT version FROM schema_migrations`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	done := make(map[string]bool)
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		done[v] = true
	}
	return done, rows.Err()
}

func (t clickhouseTarget) apply(ctx context.Context, m Migration) error {
	// The native protocol does not accept multi-statement queries.
	for _, stmt := range m.Statements {
		if err := t.conn.Exec(ctx, stmt); err != nil {
			return err
		}
	}
	return t.conn.Exec(ctx, `INSERT INTO schema_migrations (version) VALUES (?)`, m.Version)
}

func databaseFromDSN(dsn string) (string, error) {
	u, err := url.Parse(dsn)
	if err != nil {
		return "", fmt.Errorf("parse clickhouse dsn: %w", err)
	}
	db := strings.TrimPrefix(u.Path, "/")
	if db == "" {
		return "", fmt.Errorf("clickhouse dsn missing database")
	}
	return db, nil
}
