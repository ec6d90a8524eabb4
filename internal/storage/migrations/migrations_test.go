package migrations

import (
	"context"
	"errors"
	"io/fs"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmbeddedMigrationsPresent(t *testing.T) {
	pg, err := fs.Glob(PostgresFS, "postgres/*.sql")
	require.NoError(t, err)
	assert.Contains(t, pg, "postgres/001_accounts.sql")
	assert.Contains(t, pg, "postgres/002_program_events.sql")
	assert.Contains(t, pg, "postgres/003_account_version.sql")

	ch, err := fs.Glob(ClickhouseFS, "clickhouse/*.sql")
	require.NoError(t, err)
	assert.Contains(t, ch, "clickhouse/001_program_events.sql")
}

func TestLoad_Postgres(t *testing.T) {
	migs, err := Load(PostgresFS, "postgres")
	require.NoError(t, err)
	require.Len(t, migs, 3)
	assert.Equal(t, "001_accounts.sql", migs[0].Version)
	assert.Len(t, migs[0].Statements, 2)
	assert.Equal(t, "003_account_version.sql", migs[2].Version)
	assert.Equal(t, []string{"ALTER TABLE accounts ADD COLUMN IF NOT EXISTS version BIGINT NOT NULL DEFAULT 1"}, migs[2].Statements)

	events := migs[1]
	assert.Equal(t, "002_program_events.sql", events.Version)
	require.Len(t, events.Statements, 3)
	assert.Contains(t, events.Statements[0], "CREATE TABLE IF NOT EXISTS program_events")
	assert.Contains(t, events.Statements[0], "DEFAULT '{}'::jsonb")
	assert.Equal(t, "CREATE INDEX IF NOT EXISTS idx_program_events_address ON program_events (address, slot, id)", events.Statements[1])
	assert.Equal(t, "CREATE INDEX IF NOT EXISTS idx_program_events_slot ON program_events (slot, id)", events.Statements[2])
	for _, stmt := range events.Statements {
		assert.NotContains(t, stmt, "--")
		assert.NotContains(t, stmt, ";")
	}
}

func TestLoad_Clickhouse(t *testing.T) {
	migs, err := Load(ClickhouseFS, "clickhouse")
	require.NoError(t, err)
	require.Len(t, migs, 1)
	require.Len(t, migs[0].Statements, 1)
	assert.Contains(t, migs[0].Statements[0], "ENGINE = MergeTree()")
}

func TestLoad_OrdersAndSkipsEmptyFiles(t *testing.T) {
	fsys := fstest.MapFS{
		"sql/002_b.sql":   {Data: []byte("CREATE TABLE b (y INT);")},
		"sql/001_a.sql":   {Data: []byte("CREATE TABLE a (x INT);")},
		"sql/003_c.sql":   {Data: []byte("-- nothing yet\n")},
		"sql/README.md":   {Data: []byte("not sql")},
		"sql/old/004.sql": {Data: []byte("CREATE TABLE d (z INT);")},
	}
	migs, err := Load(fsys, "sql")
	require.NoError(t, err)
	require.Len(t, migs, 2)
	assert.Equal(t, "001_a.sql", migs[0].Version)
	assert.Equal(t, "002_b.sql", migs[1].Version)
}

func TestLoad_RejectsSemicolonInLiteral(t *testing.T) {
	fsys := fstest.MapFS{
		"sql/001_bad.sql": {Data: []byte("INSERT INTO t VALUES ('a;b');")},
	}
	_, err := Load(fsys, "sql")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "001_bad.sql")
}

func TestSplitStatements(t *testing.T) {
	input := `-- header comment
CREATE TABLE a (x UInt8) ENGINE = Memory;

-- second
CREATE TABLE b (y UInt8) ENGINE = Memory;
`
	stmts := splitStatements(input)
	require.Len(t, stmts, 2)
	assert.Equal(t, "CREATE TABLE a (x UInt8) ENGINE = Memory", stmts[0])
	assert.Equal(t, "CREATE TABLE b (y UInt8) ENGINE = Memory", stmts[1])
}

func TestValidateNoSemicolonInStrings(t *testing.T) {
	assert.NoError(t, validateNoSemicolonInStrings(`SELECT 'it''s fine'; SELECT 1;`))
	assert.NoError(t, validateNoSemicolonInStrings(`SELECT ''; SELECT 'x';`))
	assert.Error(t, validateNoSemicolonInStrings(`SELECT 'a;b';`))
}

func TestDatabaseFromDSN(t *testing.T) {
	db, err := databaseFromDSN("clickhouse://default@localhost:9000/launchlab")
	require.NoError(t, err)
	assert.Equal(t, "launchlab", db)

	_, err = databaseFromDSN("clickhouse://localhost:9000")
	assert.Error(t, err)
}

// fakeTarget records statements in memory.
type fakeTarget struct {
	versions []string
	executed []string
	failOn   string
}

func (f *fakeTarget) ensureVersionTable(context.Context) error { return nil }

func (f *fakeTarget) appliedVersions(context.Context) (map[string]bool, error) {
	done := make(map[string]bool)
	for _, v := range f.versions {
		done[v] = true
	}
	return done, nil
}

func (f *fakeTarget) apply(_ context.Context, m Migration) error {
	if m.Version == f.failOn {
		return errors.New("syntax error")
	}
	f.executed = append(f.executed, m.Statements...)
	f.versions = append(f.versions, m.Version)
	return nil
}

func TestRun_AppliesEachVersionOnce(t *testing.T) {
	ctx := context.Background()
	migs, err := Load(PostgresFS, "postgres")
	require.NoError(t, err)

	target := &fakeTarget{}
	applied, err := run(ctx, target, migs)
	require.NoError(t, err)
	assert.Equal(t, []string{"001_accounts.sql", "002_program_events.sql", "003_account_version.sql"}, applied)
	assert.Len(t, target.executed, 6)

	applied, err = run(ctx, target, migs)
	require.NoError(t, err)
	assert.Empty(t, applied)
	assert.Len(t, target.executed, 6)
}

func TestRun_StopsAtFailure(t *testing.T) {
	ctx := context.Background()
	migs, err := Load(PostgresFS, "postgres")
	require.NoError(t, err)

	target := &fakeTarget{failOn: "002_program_events.sql"}
	applied, err := run(ctx, target, migs)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "002_program_events.sql")
	assert.Equal(t, []string{"001_accounts.sql"}, applied)
	assert.Equal(t, []string{"001_accounts.sql"}, target.versions)

	// Once fixed, only the failed version runs.
	target.failOn = ""
	applied, err = run(ctx, target, migs)
	require.NoError(t, err)
	assert.Equal(t, []string{"002_program_events.sql", "003_account_version.sql"}, applied)
}
