package journal

import (
	"context"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"transfer-ever/deploy/migrations"
)

const (
	createSchemaTableSQL = `CREATE TABLE IF NOT EXISTS journal_schema (version VARCHAR(64) NOT NULL PRIMARY KEY, applied_at BIGINT NOT NULL)`
	selectSchemaSQL      = `SELECT version FROM journal_schema`
	recordSchemaSQL      = `INSERT INTO journal_schema (version, applied_at) VALUES (?, ?)`
)

// migrate brings the journal schema up to date. Every embedded *.sql file
// is a version named after its file; fs.Glob returns them in name order.
// MySQL commits DDL implicitly, so a version is recorded only after all of
// its statements succeeded and a failed file is retried from the start.
func (s *MySQLStore) migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, createSchemaTableSQL); err != nil {
		return fmt.Errorf("create journal_schema: %w", err)
	}
	done, err := s.schemaVersions(ctx)
	if err != nil {
		return err
	}
	names, err := fs.Glob(migrations.Files, "*.sql")
	if err != nil {
		return fmt.Errorf("list migrations: %w", err)
	}
	for _, name := range names {
		version := strings.TrimSuffix(name, ".sql")
		if done[version] {
			continue
		}
		body, err := migrations.Files.ReadFile(name)
		if err != nil {
			return fmt.Errorf("read migration %s: %w", name, err)
		}
		for _, stmt := range statements(string(body)) {
			if _, err := s.db.ExecContext(ctx, stmt); err != nil {
				return fmt.Errorf("migration %s: %w", version, err)
			}
		}
		if _, err := s.db.ExecContext(ctx, recordSchemaSQL, version, time.Now().UnixMilli()); err != nil {
			return fmt.Errorf("record migration %s: %w", version, err)
		}
	}
	return nil
}

func (s *MySQLStore) schemaVersions(ctx context.Context) (map[string]bool, error) {
	rows, err := s.db.QueryContext(ctx, selectSchemaSQL)
	if err != nil {
		return nil, fmt.Errorf("query journal_schema: %w", err)
	}
	defer rows.Close()

	done := make(map[string]bool)
	for rows.Next() {
		var version string
		if err := rows.Scan(&version); err != nil {
			return nil, fmt.Errorf("scan journal_schema: %w", err)
		}
		done[version] = true
	}
	return done, rows.Err()
}

// statements splits a migration on semicolons. The journal schema has no
// procedures or string literals containing ';'.
func statements(body string) []string {
	var out []string
	for _, stmt := range strings.Split(body, ";") {
		if stmt = strings.TrimSpace(stmt); stmt != "" {
			out = append(out, stmt)
		}
	}
	return out
}
