package postgres

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"regexp"
	"slices"
	"strconv"
	"strings"
)

// schemaLockID: ключ advisory lock, который сериализует запуски миграций из нескольких реплик.
const schemaLockID = int64(0x5109)

const schemaVersionsDDL = `
CREATE TABLE IF NOT EXISTS schema_migrations (
    version    BIGINT PRIMARY KEY,
    name       TEXT NOT NULL,
    applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`

//go:embed sql/migrations/*.sql
var embeddedMigrations embed.FS

var migrationName = regexp.MustCompile(`^(\d+)_([a-z0-9_]+)\.(up|down)\.sql$`)

type schemaStep struct {
	version int64
	name    string
	up      string
	down    string
}

func (s schemaStep) label() string {
	return fmt.Sprintf("%04d_%s", s.version, s.name)
}

// MigrateUp применяет ещё не применённые миграции по возрастанию версии.
// steps=0 применяет все.
func (s *Store) MigrateUp(ctx context.Context, steps int) error {
	return s.withSchemaLock(ctx, func(c *sql.Conn, plan []schemaStep) error {
		applied, err := appliedVersions(ctx, c)
		if err != nil {
			return err
		}

		done := 0
		for _, step := range plan {
			if steps > 0 && done == steps {
				break
			}
			if _, ok := applied[step.version]; ok {
				continue
			}
			err := execStep(ctx, c, step.up, `INSERT INTO schema_migrations (version, name) VALUES ($1, $2)`, step.version, step.name)
			if err != nil {
				return fmt.Errorf("apply %s: %w", step.label(), err)
			}
			done++
		}
		return nil
	})
}

// MigrateDown откатывает последние применённые миграции. steps<=0 откатывает одну.
func (s *Store) MigrateDown(ctx context.Context, steps int) error {
	if steps <= 0 {
		steps = 1
	}

	return s.withSchemaLock(ctx, func(c *sql.Conn, plan []schemaStep) error {
		applied, err := appliedVersions(ctx, c)
		if err != nil {
			return err
		}

		known := make(map[int64]schemaStep, len(plan))
		for _, step := range plan {
			known[step.version] = step
		}

		versions := make([]int64, 0, len(applied))
		for v := range applied {
			versions = append(versions, v)
		}
		slices.Sort(versions)
		slices.Reverse(versions)
		if len(versions) > steps {
			versions = versions[:steps]
		}

		for _, v := range versions {
			step, ok := known[v]
			if !ok {
				return fmt.Errorf("applied migration %d has no embedded source", v)
			}
			if err := execStep(ctx, c, step.down, `DELETE FROM schema_migrations WHERE version = $1`, step.version); err != nil {
				return fmt.Errorf("revert %s: %w", step.label(), err)
			}
		}
		return nil
	})
}

// MigrationStatus возвращает последнюю применённую версию и число применённых миграций.
func (s *Store) MigrationStatus(ctx context.Context) (int64, int, error) {
	if s == nil || s.db == nil {
		return 0, 0, errors.New("postgres store is not initialized")
	}

	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	if _, err := s.db.ExecContext(ctx, schemaVersionsDDL); err != nil {
		return 0, 0, fmt.Errorf("ensure schema_migrations: %w", err)
	}

	var (
		latest int64
		count  int
	)
	err := s.db.QueryRowContext(ctx, `SELECT COALESCE(MAX(version), 0), COUNT(*) FROM schema_migrations`).
		Scan(&latest, &count)
	if err != nil {
		return 0, 0, fmt.Errorf("read schema_migrations: %w", err)
	}
	return latest, count, nil
}

func (s *Store) withSchemaLock(ctx context.Context, fn func(c *sql.Conn, plan []schemaStep) error) error {
	if s == nil || s.db == nil {
		return errors.New("postgres store is not initialized")
	}

	plan, err := readMigrations(embeddedMigrations)
	if err != nil {
		return err
	}

	c, err := s.db.Conn(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer c.Close()

	lockCtx, cancel := context.WithTimeout(ctx, defaultConnTimeout)
	_, err = c.ExecContext(lockCtx, `SELECT pg_advisory_lock($1)`, schemaLockID)
	cancel()
	if err != nil {
		return fmt.Errorf("take schema lock: %w", err)
	}
	defer func() {
		_, _ = c.ExecContext(context.WithoutCancel(ctx), `SELECT pg_advisory_unlock($1)`, schemaLockID)
	}()

	if _, err := c.ExecContext(ctx, schemaVersionsDDL); err != nil {
		return fmt.Errorf("ensure schema_migrations: %w", err)
	}
	return fn(c, plan)
}

// execStep выполняет тело миграции и правку schema_migrations атомарно.
func execStep(ctx context.Context, c *sql.Conn, body, bookkeeping string, args ...any) (err error) {
	tx, err := c.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, body); err != nil {
		return err
	}
	if _, err = tx.ExecContext(ctx, bookkeeping, args...); err != nil {
		return err
	}
	return tx.Commit()
}

func appliedVersions(ctx context.Context, c *sql.Conn) (map[int64]struct{}, error) {
	rows, err := c.QueryContext(ctx, `SELECT version FROM schema_migrations`)
	if err != nil {
		return nil, fmt.Errorf("read applied versions: %w", err)
	}
	defer rows.Close()

	applied := make(map[int64]struct{})
	for rows.Next() {
		var v int64
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("scan applied version: %w", err)
		}
		applied[v] = struct{}{}
	}
	return applied, rows.Err()
}

// readMigrations собирает пары NNNN_name.up.sql / NNNN_name.down.sql в упорядоченный план.
func readMigrations(fsys fs.FS) ([]schemaStep, error) {
	files, err := fs.Glob(fsys, "sql/migrations/*.sql")
	if err != nil {
		return nil, fmt.Errorf("glob migrations: %w", err)
	}
	if len(files) == 0 {
		return nil, errors.New("no migration files found")
	}

	byVersion := make(map[int64]*schemaStep)
	for _, file := range files {
		base := path.Base(file)
		m := migrationName.FindStringSubmatch(base)
		if m == nil {
			return nil, fmt.Errorf("unexpected migration file name %q", base)
		}
		version, err := strconv.ParseInt(m[1], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("migration version in %q: %w", base, err)
		}

		raw, err := fs.ReadFile(fsys, file)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", file, err)
		}
		body := strings.TrimSpace(string(raw))
		if body == "" {
			return nil, fmt.Errorf("migration %q is empty", base)
		}

		step := byVersion[version]
		if step == nil {
			step = &schemaStep{version: version, name: m[2]}
			byVersion[version] = step
		}
		if step.name != m[2] {
			return nil, fmt.Errorf("version %d is used by both %q and %q", version, step.name, m[2])
		}

		target := &step.up
		if m[3] == "down" {
			target = &step.down
		}
		if *target != "" {
			return nil, fmt.Errorf("duplicate %s migration for version %d", m[3], version)
		}
		*target = body
	}

	plan := make([]schemaStep, 0, len(byVersion))
	for _, step := range byVersion {
		if step.up == "" || step.down == "" {
			return nil, fmt.Errorf("migration %s must have both up and down files", step.label())
		}
		plan = append(plan, *step)
	}
	slices.SortFunc(plan, func(a, b schemaStep) int {
		switch {
		case a.version < b.version:
			return -1
		case a.version > b.version:
			return 1
		default:
			return 0
		}
	})
	return plan, nil
}
