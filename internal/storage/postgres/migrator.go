package postgres

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"regexp"
	"sort"
	"strconv"
)

//go:embed sql/migrations/*.sql
var migrationFiles embed.FS

// advisoryLockKey сериализует одновременный запуск миграций из нескольких инстансов.
const advisoryLockKey = 20260831

var migrationNameRe = regexp.MustCompile(`^(\d+)_([a-zA-Z0-9_]+)\.(up|down)\.sql$`)

type migration struct {
	version int64
	name    string
	upSQL   string
	downSQL string
}

// MigrationState описывает одну миграцию и её статус в базе.
type MigrationState struct {
	Version int64
	Name    string
	Applied bool
}

// MigrateUp применяет up-миграции до версии target включительно.
// target == 0 означает "все доступные миграции".
func (s *Store) MigrateUp(ctx context.Context, target int64) error {
	return s.migrate(ctx, func(ctx context.Context, migrations []migration, applied map[int64]bool) error {
		for _, m := range migrations {
			if target != 0 && m.version > target {
				break
			}
			if applied[m.version] {
				continue
			}
			if err := s.applyOne(ctx, m, true); err != nil {
				return err
			}
		}
		return nil
	})
}

// MigrateDown откатывает down-миграции до версии target (не включая её).
// target == 0 означает полный откат.
func (s *Store) MigrateDown(ctx context.Context, target int64) error {
	return s.migrate(ctx, func(ctx context.Context, migrations []migration, applied map[int64]bool) error {
		for i := len(migrations) - 1; i >= 0; i-- {
			m := migrations[i]
			if m.version <= target {
				break
			}
			if !applied[m.version] {
				continue
			}
			if err := s.applyOne(ctx, m, false); err != nil {
				return err
			}
		}
		return nil
	})
}

// MigrationStatus возвращает список всех известных миграций и их статус.
func (s *Store) MigrationStatus(ctx context.Context) ([]MigrationState, error) {
	migrations, err := loadMigrations()
	if err != nil {
		return nil, err
	}
	if err := s.ensureMigrationsTable(ctx); err != nil {
		return nil, err
	}
	applied, err := s.loadAppliedVersions(ctx)
	if err != nil {
		return nil, err
	}

	states := make([]MigrationState, 0, len(migrations))
	for _, m := range migrations {
		states = append(states, MigrationState{
			Version: m.version,
			Name:    m.name,
			Applied: applied[m.version],
		})
	}
	return states, nil
}

func (s *Store) migrate(ctx context.Context, run func(context.Context, []migration, map[int64]bool) error) error {
	migrations, err := loadMigrations()
	if err != nil {
		return err
	}

	conn, err := s.db.Conn(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection for migrations: %w", err)
	}
	defer func() { _ = conn.Close() }()

	if _, err := conn.ExecContext(ctx, "SELECT pg_advisory_lock($1)", advisoryLockKey); err != nil {
		return fmt.Errorf("acquire migration lock: %w", err)
	}
	defer func() {
		_, _ = conn.ExecContext(ctx, "SELECT pg_advisory_unlock($1)", advisoryLockKey)
	}()

	if err := s.ensureMigrationsTable(ctx); err != nil {
		return err
	}
	applied, err := s.loadAppliedVersions(ctx)
	if err != nil {
		return err
	}

	return run(ctx, migrations, applied)
}

// applyOne выполняет одну миграцию и запись в schema_migrations в одной транзакции.
func (s *Store) applyOne(ctx context.Context, m migration, up bool) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin migration transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if up {
		if m.upSQL == "" {
			return fmt.Errorf("migration %d_%s has no up script", m.version, m.name)
		}
		if _, err := tx.ExecContext(ctx, m.upSQL); err != nil {
			return fmt.Errorf("apply migration %d_%s: %w", m.version, m.name, err)
		}
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO schema_migrations (version, name) VALUES ($1, $2)",
			m.version, m.name,
		); err != nil {
			return fmt.Errorf("record migration %d_%s: %w", m.version, m.name, err)
		}
	} else {
		if m.downSQL == "" {
			return fmt.Errorf("migration %d_%s has no down script", m.version, m.name)
		}
		if _, err := tx.ExecContext(ctx, m.downSQL); err != nil {
			return fmt.Errorf("revert migration %d_%s: %w", m.version, m.name, err)
		}
		if _, err := tx.ExecContext(ctx,
			"DELETE FROM schema_migrations WHERE version = $1",
			m.version,
		); err != nil {
			return fmt.Errorf("unrecord migration %d_%s: %w", m.version, m.name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit migration %d_%s: %w", m.version, m.name, err)
	}
	return nil
}

func (s *Store) ensureMigrationsTable(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version    BIGINT PRIMARY KEY,
			name       TEXT NOT NULL,
			applied_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`)
	if err != nil {
		return fmt.Errorf("ensure schema_migrations table: %w", err)
	}
	return nil
}

func (s *Store) loadAppliedVersions(ctx context.Context) (map[int64]bool, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT version FROM schema_migrations")
	if err != nil {
		return nil, fmt.Errorf("load applied migrations: %w", err)
	}
	defer func() { _ = rows.Close() }()

	applied := make(map[int64]bool)
	for rows.Next() {
		var version int64
		if err := rows.Scan(&version); err != nil {
			return nil, fmt.Errorf("scan migration version: %w", err)
		}
		applied[version] = true
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate applied migrations: %w", err)
	}
	return applied, nil
}

func loadMigrations() ([]migration, error) {
	entries, err := fs.ReadDir(migrationFiles, "sql/migrations")
	if err != nil {
		return nil, fmt.Errorf("read embedded migrations: %w", err)
	}

	byVersion := make(map[int64]*migration)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		parts := migrationNameRe.FindStringSubmatch(entry.Name())
		if parts == nil {
			return nil, fmt.Errorf("unexpected migration file name: %s", entry.Name())
		}
		version, err := strconv.ParseInt(parts[1], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("parse migration version in %s: %w", entry.Name(), err)
		}
		body, err := fs.ReadFile(migrationFiles, "sql/migrations/"+entry.Name())
		if err != nil {
			return nil, fmt.Errorf("read migration %s: %w", entry.Name(), err)
		}

		m, ok := byVersion[version]
		if !ok {
			m = &migration{version: version, name: parts[2]}
			byVersion[version] = m
		}
		if m.name != parts[2] {
			return nil, fmt.Errorf("migration %d has conflicting names: %s and %s", version, m.name, parts[2])
		}
		if parts[3] == "up" {
			m.upSQL = string(body)
		} else {
			m.downSQL = string(body)
		}
	}

	migrations := make([]migration, 0, len(byVersion))
	for _, m := range byVersion {
		migrations = append(migrations, *m)
	}
	sort.Slice(migrations, func(i, j int) bool { return migrations[i].version < migrations[j].version })
	return migrations, nil
}
