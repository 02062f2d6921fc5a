// Package supabase ships the SQL migrations for the Supabase hosted tables. The
// supabase CLI picks them up from migrations/, and venuectl applies the same files
// over DATABASE_URL.
package supabase

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"log/slog"
	"path"
	"sort"

	"github.com/jackc/pgx/v5/pgconn"
)

//go:embed migrations/*.sql
var Migrations embed.FS

// Execer is satisfied by *pgxpool.Pool and pgx.Tx.
type Execer interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
}

// Apply runs every .sql file in fsys in name order. Migrations are written to be
// idempotent and are reapplied on each run.
func Apply(ctx context.Context, db Execer, fsys fs.FS, logger *slog.Logger) ([]string, error) {
	names, err := fs.Glob(fsys, "migrations/*.sql")
	if err != nil {
		return nil, err
	}
	sort.Strings(names)

	applied := make([]string, 0, len(names))
	for _, name := range names {
		body, err := fs.ReadFile(fsys, name)
		if err != nil {
			return applied, fmt.Errorf("read %s: %w", name, err)
		}
		if _, err := db.Exec(ctx, string(body)); err != nil {
			return applied, fmt.Errorf("apply %s: %w", path.Base(name), err)
		}
		logger.Info("migration applied", "name", path.Base(name))
		applied = append(applied, path.Base(name))
	}
	return applied, nil
}
