package migrations

import (
	"context"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"
)

// Migration is one embedded SQL file, split into statements.
type Migration struct {
	Version    string // file name, e.g. 001_accounts.sql
	Statements []string
}

// target is a database that records which migrations it has applied.
type target interface {
	ensureVersionTable(ctx context.Context) error
	appliedVersions(ctx context.Context) (map[string]bool, error)
	// apply runs m's statements and records m.Version.
	apply(ctx context.Context, m Migration) error
}

// Load reads every .sql file in dir in lexical order and splits it into
// statements. Both backends execute statements one at a time.
func Load(fsys fs.FS, dir string) ([]Migration, error) {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return nil, fmt.Errorf("read embedded %s migrations: %w", dir, err)
	}

	var files []string
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".sql") {
			files = append(files, entry.Name())
		}
	}
	sort.Strings(files)

	var out []Migration
	for _, file := range files {
		data, err := fs.ReadFile(fsys, path.Join(dir, file))
		if err != nil {
			return nil, fmt.Errorf("read migration %s: %w", file, err)
		}
		if err := validateNoSemicolonInStrings(string(data)); err != nil {
			return nil, fmt.Errorf("validate migration %s: %w", file, err)
		}
		stmts := splitStatements(string(data))
		if len(stmts) == 0 {
			continue
		}
		out = append(out, Migration{Version: file, Statements: stmts})
	}
	return out, nil
}

// run applies every migration t has not recorded yet and returns the versions
// it applied. It stops at the first failure; the failed version stays unrecorded.
func run(ctx context.Context, t target, migs []Migration) ([]string, error) {
	if err := t.ensureVersionTable(ctx); err != nil {
		return nil, fmt.Errorf("create schema_migrations: %w", err)
	}
	done, err := t.appliedVersions(ctx)
	if err != nil {
		return nil, fmt.Errorf("read schema_migrations: %w", err)
	}

	var applied []string
	for _, m := range migs {
		if done[m.Version] {
			continue
		}
		if err := t.apply(ctx, m); err != nil {
			return applied, fmt.Errorf("apply migration %s: %w", m.Version, err)
		}
		applied = append(applied, m.Version)
	}
	return applied, nil
}

// splitStatements splits SQL content into individual statements by semicolon.
//
// The splitter does not understand semicolons inside string literals, block
// comments, or dollar-quoted strings. Migrations therefore use -- comments
// only and never put a semicolon in a literal; Load rejects files that do,
// see validateNoSemicolonInStrings.
func splitStatements(input string) []string {
	var filtered []string
	for _, line := range strings.Split(input, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "--") {
			continue
		}
		filtered = append(filtered, line)
	}
	joined := strings.Join(filtered, "\n")

	var stmts []string
	for _, part := range strings.Split(joined, ";") {
		stmt := strings.TrimSpace(part)
		if stmt != "" {
			stmts = append(stmts, stmt)
		}
	}
	return stmts
}

// validateNoSemicolonInStrings rejects SQL with a semicolon inside a
// single-quoted literal.
func validateNoSemicolonInStrings(sql string) error {
	inString := false
	for i := 0; i < len(sql); i++ {
		ch := sql[i]
		if ch == '\'' {
			// '' is an escaped quote
			if inString && i+1 < len(sql) && sql[i+1] == '\'' {
				i++
				continue
			}
			inString = !inString
		} else if ch == ';' && inString {
			return fmt.Errorf("semicolon inside string literal at offset %d", i)
		}
	}
	return nil
}
