package migration

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// DefaultLockID is the advisory lock key held while migrating.
const DefaultLockID int64 = 0x6d656d7261 // "memra"

// Executor applies migrations and tracks them in memra_migrations.
type Executor struct {
	pool   *pgxpool.Pool
	lockID int64
}

// NewExecutor creates a new migration executor.
func NewExecutor(pool *pgxpool.Pool) *Executor {
	return &Executor{
		pool:   pool,
		lockID: DefaultLockID,
	}
}

// WithLockID sets a custom advisory lock ID.
func (e *Executor) WithLockID(lockID int64) *Executor {
	e.lockID = lockID
	return e
}

// Initialize creates the tracking table if it doesn't exist.
func (e *Executor) Initialize(ctx context.Context) error {
	const query = `
		CREATE TABLE IF NOT EXISTS memra_migrations (
			version VARCHAR(14) PRIMARY KEY,
			name VARCHAR(255) NOT NULL,
			status VARCHAR(20) NOT NULL DEFAULT 'pending',
			applied_at TIMESTAMPTZ,
			error TEXT
		)`

	if _, err := e.pool.Exec(ctx, query); err != nil {
		return fmt.Errorf("failed to create memra_migrations table: %w", err)
	}
	return nil
}

// withLock runs fn while holding the session advisory lock on one
// connection, so concurrent migrators serialize.
func (e *Executor) withLock(ctx context.Context, fn func() error) error {
	conn, err := e.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("failed to acquire connection: %w", err)
	}
	defer conn.Release()

	if _, err := conn.Exec(ctx, "SELECT pg_advisory_lock($1)", e.lockID); err != nil {
		return fmt.Errorf("failed to acquire migration lock: %w", err)
	}
	defer func() {
		_, _ = conn.Exec(context.WithoutCancel(ctx), "SELECT pg_advisory_unlock($1)", e.lockID)
	}()

	return fn()
}

// Records returns every row of the tracking table, oldest first.
func (e *Executor) Records(ctx context.Context) ([]MigrationRecord, error) {
	rows, err := e.pool.Query(ctx, `
		SELECT version, name, status, applied_at, error
		FROM memra_migrations
		ORDER BY version ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query migrations: %w", err)
	}
	defer rows.Close()

	var records []MigrationRecord
	for rows.Next() {
		var r MigrationRecord
		if err := rows.Scan(&r.Version, &r.Name, &r.Status, &r.AppliedAt, &r.Error); err != nil {
			return nil, fmt.Errorf("failed to scan migration record: %w", err)
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

func (e *Executor) applied(ctx context.Context) (map[string]bool, error) {
	records, err := e.Records(ctx)
	if err != nil {
		return nil, err
	}
	out := make(map[string]bool, len(records))
	for _, r := range records {
		out[r.Version] = r.Status == StatusApplied
	}
	return out, nil
}

// apply runs one migration's up script in a transaction. A failing
// statement rolls the whole migration back and records the failure.
func (e *Executor) apply(ctx context.Context, m Migration) error {
	tx, err := e.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	for i, stmt := range splitSQL(m.UpSQL) {
		if _, err := tx.Exec(ctx, stmt); err != nil {
			_ = tx.Rollback(ctx)
			msg := fmt.Sprintf("statement %d failed: %v", i+1, err)
			_, _ = e.pool.Exec(ctx, `
				INSERT INTO memra_migrations (version, name, status, error) VALUES ($1, $2, 'failed', $3)
				ON CONFLICT (version) DO UPDATE SET status = 'failed', error = $3`,
				m.Version, m.Name, msg)
			return fmt.Errorf("migration %s failed at statement %d: %w", m.Version, i+1, err)
		}
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO memra_migrations (version, name, status, applied_at) VALUES ($1, $2, 'applied', $3)
		ON CONFLICT (version) DO UPDATE SET status = 'applied', applied_at = $3, error = NULL`,
		m.Version, m.Name, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to record migration: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit migration: %w", err)
	}
	return nil
}

// Up applies every pending migration in order and returns the versions it
// applied. With dryRun nothing is executed.
func (e *Executor) Up(ctx context.Context, migrations []Migration, dryRun bool) ([]string, error) {
	var done []string
	err := e.withLock(ctx, func() error {
		applied, err := e.applied(ctx)
		if err != nil {
			return err
		}
		for _, m := range migrations {
			if applied[m.Version] {
				continue
			}
			if !dryRun {
				if err := e.apply(ctx, m); err != nil {
					return err
				}
			}
			done = append(done, m.Version)
		}
		return nil
	})
	return done, err
}

// Down rolls back the most recently applied migration and returns its
// version, or "" when nothing is applied.
func (e *Executor) Down(ctx context.Context, migrations []Migration, dryRun bool) (string, error) {
	var version string
	err := e.withLock(ctx, func() error {
		applied, err := e.applied(ctx)
		if err != nil {
			return err
		}

		var last *Migration
		for i := len(migrations) - 1; i >= 0; i-- {
			if applied[migrations[i].Version] {
				last = &migrations[i]
				break
			}
		}
		if last == nil {
			return nil
		}
		version = last.Version
		if dryRun {
			return nil
		}

		tx, err := e.pool.Begin(ctx)
		if err != nil {
			return fmt.Errorf("failed to begin transaction: %w", err)
		}
		defer tx.Rollback(ctx)

		for i, stmt := range splitSQL(last.DownSQL) {
			if _, err := tx.Exec(ctx, stmt); err != nil {
				return fmt.Errorf("rollback of %s failed at statement %d: %w", last.Version, i+1, err)
			}
		}
		if _, err := tx.Exec(ctx, "DELETE FROM memra_migrations WHERE version = $1", last.Version); err != nil {
			return fmt.Errorf("failed to delete migration record: %w", err)
		}
		if err := tx.Commit(ctx); err != nil {
			return fmt.Errorf("failed to commit rollback: %w", err)
		}
		return nil
	})
	return version, err
}

// Status merges the tracking table with the migrations on disk. Files
// without a row are pending.
func (e *Executor) Status(ctx context.Context, migrations []Migration) ([]MigrationRecord, error) {
	records, err := e.Records(ctx)
	if err != nil {
		return nil, err
	}
	byVersion := make(map[string]MigrationRecord, len(records))
	for _, r := range records {
		byVersion[r.Version] = r
	}

	out := make([]MigrationRecord, 0, len(migrations))
	for _, m := range migrations {
		if r, ok := byVersion[m.Version]; ok {
			out = append(out, r)
			continue
		}
		out = append(out, MigrationRecord{Version: m.Version, Name: m.Name, Status: StatusPending})
	}
	return out, nil
}

// splitSQL splits a script on semicolons after dropping comment lines.
// Scripts with semicolons inside literals are not supported.
func splitSQL(sql string) []string {
	var kept []string
	for _, line := range strings.Split(sql, "\n") {
		if strings.HasPrefix(strings.TrimSpace(line), "--") {
			continue
		}
		kept = append(kept, line)
	}

	var out []string
	for _, stmt := range strings.Split(strings.Join(kept, "\n"), ";") {
		if stmt = strings.TrimSpace(stmt); stmt != "" {
			out = append(out, stmt)
		}
	}
	return out
}
