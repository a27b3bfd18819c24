package migrate

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"sort"
	"strconv"
	"strings"
	"time"

	_ "github.com/lib/pq"
	"go.uber.org/zap"
)

// Migration is one numbered schema change. AppliedAt is set by Status.
type Migration struct {
	Version   int
	Name      string
	UpSQL     string
	DownSQL   string
	AppliedAt *time.Time
}

func (m Migration) applied() bool { return m.AppliedAt != nil }

// Manager applies the migrations found in an fs.FS to a database/sql handle.
type Manager struct {
	db     *sql.DB
	fsys   fs.FS
	logger *zap.Logger
}

// Open connects to PostgreSQL through lib/pq.
func Open(dsn string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return db, nil
}

func NewManager(db *sql.DB, fsys fs.FS, logger *zap.Logger) *Manager {
	return &Manager{db: db, fsys: fsys, logger: logger}
}

// Initialize creates the bookkeeping table.
func (m *Manager) Initialize(ctx context.Context) error {
	_, err := m.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			name TEXT NOT NULL,
			applied_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`)
	if err != nil {
		return fmt.Errorf("failed to create schema_migrations: %w", err)
	}
	return nil
}

// LoadMigrations reads NNN_name.sql / NNN_name_down.sql pairs, ordered by
// version.
func (m *Manager) LoadMigrations() ([]Migration, error) {
	entries, err := fs.ReadDir(m.fsys, ".")
	if err != nil {
		return nil, fmt.Errorf("failed to read migrations: %w", err)
	}

	byVersion := make(map[int]*Migration)
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".sql") {
			continue
		}

		base := strings.TrimSuffix(name, ".sql")
		down := strings.HasSuffix(base, "_down")
		base = strings.TrimSuffix(base, "_down")

		prefix, label, ok := strings.Cut(base, "_")
		if !ok {
			continue
		}
		version, err := strconv.Atoi(prefix)
		if err != nil || version <= 0 {
			continue
		}

		content, err := fs.ReadFile(m.fsys, name)
		if err != nil {
			return nil, fmt.Errorf("failed to read migration file %s: %w", name, err)
		}

		mig, exists := byVersion[version]
		if !exists {
			mig = &Migration{Version: version, Name: label}
			byVersion[version] = mig
		}
		if down {
			mig.DownSQL = string(content)
		} else {
			mig.UpSQL = string(content)
		}
	}

	result := make([]Migration, 0, len(byVersion))
	for _, mig := range byVersion {
		result = append(result, *mig)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Version < result[j].Version })

	return result, nil
}

func (m *Manager) appliedVersions(ctx context.Context) (map[int]time.Time, error) {
	rows, err := m.db.QueryContext(ctx, "SELECT version, applied_at FROM schema_migrations ORDER BY version")
	if err != nil {
		return nil, fmt.Errorf("failed to query applied migrations: %w", err)
	}
	defer rows.Close()

	versions := map[int]time.Time{}
	for rows.Next() {
		var (
			v  int
			at time.Time
		)
		if err := rows.Scan(&v, &at); err != nil {
			return nil, fmt.Errorf("failed to scan migration row: %w", err)
		}
		versions[v] = at
	}
	return versions, rows.Err()
}

// Status lists every known migration in version order, with AppliedAt set
// for applied ones.
func (m *Manager) Status(ctx context.Context) ([]Migration, error) {
	all, err := m.LoadMigrations()
	if err != nil {
		return nil, err
	}
	versions, err := m.appliedVersions(ctx)
	if err != nil {
		return nil, err
	}
	for i := range all {
		if at, ok := versions[all[i].Version]; ok {
			all[i].AppliedAt = &at
		}
	}
	return all, nil
}

// Up applies pending migrations in order, one transaction each, and returns
// how many ran.
func (m *Manager) Up(ctx context.Context) (int, error) {
	all, err := m.Status(ctx)
	if err != nil {
		return 0, err
	}

	n := 0
	for _, mig := range all {
		if mig.applied() {
			continue
		}
		if mig.UpSQL == "" {
			return n, fmt.Errorf("migration %d has no up script", mig.Version)
		}
		err := m.run(ctx, mig.UpSQL,
			"INSERT INTO schema_migrations (version, name) VALUES ($1, $2)", mig.Version, mig.Name)
		if err != nil {
			return n, fmt.Errorf("failed to apply migration %d: %w", mig.Version, err)
		}
		m.logger.Info("Applied migration", zap.Int("version", mig.Version), zap.String("name", mig.Name))
		n++
	}
	return n, nil
}

// Down reverts the highest applied migration.
func (m *Manager) Down(ctx context.Context) error {
	all, err := m.Status(ctx)
	if err != nil {
		return err
	}

	var last *Migration
	for i := len(all) - 1; i >= 0; i-- {
		if all[i].applied() {
			last = &all[i]
			break
		}
	}
	if last == nil {
		return errors.New("no migrations to roll back")
	}
	if last.DownSQL == "" {
		return fmt.Errorf("no down script for migration %d", last.Version)
	}

	err = m.run(ctx, last.DownSQL, "DELETE FROM schema_migrations WHERE version = $1", last.Version)
	if err != nil {
		return fmt.Errorf("failed to roll back migration %d: %w", last.Version, err)
	}
	m.logger.Info("Rolled back migration", zap.Int("version", last.Version), zap.String("name", last.Name))
	return nil
}

// run executes script and its bookkeeping statement in one transaction.
func (m *Manager) run(ctx context.Context, script, bookkeeping string, args ...any) error {
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	for _, stmt := range []struct {
		query string
		args  []any
	}{{script, nil}, {bookkeeping, args}} {
		if _, err := tx.ExecContext(ctx, stmt.query, stmt.args...); err != nil {
			_ = tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}
