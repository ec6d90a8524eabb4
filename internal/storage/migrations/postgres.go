package migrations

import (
	"context"

	"github.com/jackc/pgx/v5"

	"solana-dao-lab/internal/storage/postgres"
)

// RunPostgresMigrations applies the embedded migrations pool has not seen yet.
// Each file runs in its own transaction together with its schema_migrations row.
func RunPostgresMigrations(ctx context.Context, pool *postgres.Pool) error {
	migs, err := Load(PostgresFS, "postgres")
	if err != nil {
		return err
	}
	_, err = run(ctx, postgresTarget{pool: pool}, migs)
	return err
}

type postgresTarget struct {
	pool *postgres.Pool
}

func (t postgresTarget) ensureVersionTable(ctx context.Context) error {
	_, err := t.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version    TEXT PRIMARY KEY,
			applied_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)
	`)
	return err
}

func (t postgresTarget) appliedVersions(ctx context.Context) (map[string]bool, error) {
	rows, err := t.pool.Query(ctx, `SELECT version FROM schema_migrations`)
	if err != nil {
		return nil, err
	}
	versions, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, err
	}
	done := make(map[string]bool, len(versions))
	for _, v := range versions {
		done[v] = true
	}
	return done, nil
}

func (t postgresTarget) apply(ctx context.Context, m Migration) error {
	return pgx.BeginFunc(ctx, t.pool, func(tx pgx.Tx) error {
		for _, stmt := range m.Statements {
			if _, err := tx.Exec(ctx, stmt); err != nil {
				return err
			}
		}
		_, err := tx.Exec(ctx, `INSERT INTO schema_migrations (version) VALUES ($1)`, m.Version)
		return err
	})
}
