package database

import (
	"context"
	"database/sql"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/MaxymChyncha/house-security-system/pkg/logger"
)

// Migration represents a database migration
type Migration struct {
	Version   int
	Name      string
	Up        string
	Down      string
	AppliedAt time.Time
}

// MigrationRunner applies numbered SQL migrations and records them in schema_migrations.
type MigrationRunner struct {
	db  *sql.DB
	log *logger.Logger
}

// NewMigrationRunner creates a new migration runner
func NewMigrationRunner(db *sql.DB, log *logger.Logger) *MigrationRunner {
	return &MigrationRunner{
		db:  db,
		log: log,
	}
}

// RunMigrations executes every migration in dir newer than the recorded version.
// Files are named 001_name.up.sql / 001_name.down.sql.
func (m *MigrationRunner) RunMigrations(ctx context.Context, migrations fs.FS, dir string) (int, error) {
	if err := m.ensureMigrationTable(ctx); err != nil {
		return 0, fmt.Errorf("failed to create migration table: %w", err)
	}

	all, err := m.loadMigrations(migrations, dir)
	if err != nil {
		return 0, fmt.Errorf("failed to load migrations: %w", err)
	}

	current, err := m.currentVersion(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to get current migration version: %w", err)
	}

	m.log.WithField("current_version", current).Info("current database version")

	pending := pendingMigrations(all, current)
	if len(pending) == 0 {
		m.log.Info("database is up to date, no migrations to run")
		return 0, nil
	}

	for _, migration := range pending {
		if err := m.applyMigration(ctx, migration); err != nil {
			return 0, fmt.Errorf("failed to apply migration %03d_%s: %w", migration.Version, migration.Name, err)
		}
	}

	m.log.WithField("count", len(pending)).Info("migrations applied")
	return len(pending), nil
}

func (m *MigrationRunner) ensureMigrationTable(ctx context.Context) error {
	query := `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			name VARCHAR(255) NOT NULL,
			applied_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
		)
	`

	_, err := m.db.ExecContext(ctx, query)
	return err
}

func (m *MigrationRunner) currentVersion(ctx context.Context) (int, error) {
	var version sql.NullInt64

	err := m.db.QueryRowContext(ctx, `SELECT MAX(version) FROM schema_migrations`).Scan(&version)
	if err != nil && err != sql.ErrNoRows {
		return 0, err
	}

	if !version.Valid {
		return 0, nil
	}

	return int(version.Int64), nil
}

func (m *MigrationRunner) loadMigrations(migrations fs.FS, dir string) ([]Migration, error) {
	entries, err := fs.ReadDir(migrations, dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read migration directory: %w", err)
	}

	byVersion := make(map[int]*Migration)

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		filename := entry.Name()
		version, name, direction, err := parseMigrationFilename(filename)
		if err != nil {
			m.log.WithField("filename", filename).Warn("skipping invalid migration file")
			continue
		}

		content, err := fs.ReadFile(migrations, path.Join(dir, filename))
		if err != nil {
			return nil, fmt.Errorf("failed to read migration file %s: %w", filename, err)
		}

		if byVersion[version] == nil {
			byVersion[version] = &Migration{Version: version, Name: name}
		}

		if direction == "up" {
			byVersion[version].Up = string(content)
		} else {
			byVersion[version].Down = string(content)
		}
	}

	versions := make([]int, 0, len(byVersion))
	for version := range byVersion {
		versions = append(versions, version)
	}
	sort.Ints(versions)

	result := make([]Migration, 0, len(versions))
	for _, version := range versions {
		migration := byVersion[version]
		if migration.Up == "" {
			m.log.WithField("version", version).Warn("migration missing up file, skipping")
			continue
		}
		result = append(result, *migration)
	}

	return result, nil
}

// parseMigrationFilename parses 001_migration_name.up.sql into its parts.
func parseMigrationFilename(filename string) (version int, name string, direction string, err error) {
	if !strings.HasSuffix(filename, ".sql") {
		return 0, "", "", fmt.Errorf("not a SQL file")
	}
	filename = strings.TrimSuffix(filename, ".sql")

	switch {
	case strings.HasSuffix(filename, ".up"):
		direction = "up"
		filename = strings.TrimSuffix(filename, ".up")
	case strings.HasSuffix(filename, ".down"):
		direction = "down"
		filename = strings.TrimSuffix(filename, ".down")
	default:
		return 0, "", "", fmt.Errorf("missing .up or .down in filename")
	}

	parts := strings.SplitN(filename, "_", 2)
	if len(parts) != 2 {
		return 0, "", "", fmt.Errorf("invalid filename format")
	}

	if _, err = fmt.Sscanf(parts[0], "%d", &version); err != nil {
		return 0, "", "", fmt.Errorf("invalid version number: %w", err)
	}

	return version, parts[1], direction, nil
}

func pendingMigrations(all []Migration, current int) []Migration {
	pending := make([]Migration, 0)
	for _, migration := range all {
		if migration.Version > current {
			pending = append(pending, migration)
		}
	}
	return pending
}

// applyMigration applies a single migration within a transaction
func (m *MigrationRunner) applyMigration(ctx context.Context, migration Migration) error {
	m.log.WithField("version", migration.Version).
		WithField("name", migration.Name).
		Info("applying migration")

	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, migration.Up); err != nil {
		return fmt.Errorf("failed to execute migration SQL: %w", err)
	}

	query := `INSERT INTO schema_migrations (version, name) VALUES ($1, $2)`
	if _, err := tx.ExecContext(ctx, query, migration.Version, migration.Name); err != nil {
		return fmt.Errorf("failed to record migration: %w", err)
	}

	return tx.Commit()
}

// AppliedMigrations lists recorded migrations in version order.
func (m *MigrationRunner) AppliedMigrations(ctx context.Context) ([]Migration, error) {
	if err := m.ensureMigrationTable(ctx); err != nil {
		return nil, fmt.Errorf("failed to create migration table: %w", err)
	}

	rows, err := m.db.QueryContext(ctx, `SELECT version, name, applied_at FROM schema_migrations ORDER BY version ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	migrations := make([]Migration, 0)
	for rows.Next() {
		var migration Migration
		if err := rows.Scan(&migration.Version, &migration.Name, &migration.AppliedAt); err != nil {
			return nil, err
		}
		migrations = append(migrations, migration)
	}

	return migrations, rows.Err()
}
