package db

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"path"
	"slices"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"
)

// Schema changes are forward only. Each file in migrations/ is named
// NNNN_name.sql and versions must run 1..n without gaps. The applied version
// lives in SQLite's user_version header, so no tracking table is needed.

//go:embed migrations/*.sql
var migrationsFS embed.FS

type step struct {
	version int
	name    string
	sql     string
}

func loadSteps() ([]step, error) {
	files, err := fs.Glob(migrationsFS, "migrations/*.sql")
	if err != nil {
		return nil, fmt.Errorf("listing migrations: %w", err)
	}

	steps := make([]step, 0, len(files))
	for _, file := range files {
		version, name, err := parseStepName(path.Base(file))
		if err != nil {
			return nil, fmt.Errorf("migration %q: %w", file, err)
		}
		body, err := fs.ReadFile(migrationsFS, file)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", file, err)
		}
		steps = append(steps, step{version: version, name: name, sql: string(body)})
	}

	slices.SortFunc(steps, func(a, b step) int { return a.version - b.version })
	for i, s := range steps {
		if s.version != i+1 {
			return nil, fmt.Errorf("migration %04d (%s) out of sequence, want %04d", s.version, s.name, i+1)
		}
	}
	return steps, nil
}

// parseStepName splits "0001_events.sql" into 1 and "events".
func parseStepName(file string) (int, string, error) {
	base, ok := strings.CutSuffix(file, ".sql")
	if !ok {
		return 0, "", fmt.Errorf("missing .sql suffix")
	}
	num, name, ok := strings.Cut(base, "_")
	if !ok || name == "" {
		return 0, "", fmt.Errorf("want NNNN_name.sql")
	}
	version, err := strconv.Atoi(num)
	if err != nil || version <= 0 {
		return 0, "", fmt.Errorf("bad version %q", num)
	}
	return version, name, nil
}

func schemaVersion(ctx context.Context, conn *sql.DB) (int, error) {
	var v int
	if err := conn.QueryRowContext(ctx, "PRAGMA user_version").Scan(&v); err != nil {
		return 0, fmt.Errorf("reading schema version: %w", err)
	}
	return v, nil
}

// migrateUp brings the schema to the newest embedded version. A database
// written by a newer build is refused rather than downgraded.
func migrateUp(ctx context.Context, conn *sql.DB) error {
	steps, err := loadSteps()
	if err != nil {
		return err
	}

	current, err := schemaVersion(ctx, conn)
	if err != nil {
		return err
	}
	if current > len(steps) {
		return fmt.Errorf("database schema version %d is newer than this build (%d)", current, len(steps))
	}

	for _, s := range steps[current:] {
		log.Info().Int("version", s.version).Str("name", s.name).Msg("applying migration")
		if err := applyStep(ctx, conn, s); err != nil {
			return fmt.Errorf("migration %04d (%s): %w", s.version, s.name, err)
		}
	}
	return nil
}

func applyStep(ctx context.Context, conn *sql.DB, s step) error {
	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, s.sql); err != nil {
		return err
	}
	// PRAGMA takes no bind parameters; version is an int from loadSteps.
	if _, err := tx.ExecContext(ctx, fmt.Sprintf("PRAGMA user_version = %d", s.version)); err != nil {
		return fmt.Errorf("recording version: %w", err)
	}
	return tx.Commit()
}
