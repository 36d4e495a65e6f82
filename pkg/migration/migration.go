// Package migration turns entity descriptors into versioned SQL migration
// files and applies them to PostgreSQL.
package migration

import (
	"time"
)

// Migration is one versioned pair of up and down scripts.
type Migration struct {
	Version   string    // Version/timestamp (e.g., "20240101120000")
	Name      string    // Migration name (e.g., "create_tables")
	UpSQL     string    // SQL for applying the migration
	DownSQL   string    // SQL for rolling back the migration
	AppliedAt time.Time // When the migration was applied
}

// MigrationFile is a migration on disk.
type MigrationFile struct {
	Version  string
	Name     string
	UpPath   string
	DownPath string
}

// MigrationStatus is the state of a migration in the tracking table.
type MigrationStatus string

const (
	// StatusPending means the migration has not been applied.
	StatusPending MigrationStatus = "pending"
	// StatusApplied means the migration has been applied.
	StatusApplied MigrationStatus = "applied"
	// StatusFailed means the migration failed to apply.
	StatusFailed MigrationStatus = "failed"
)

// MigrationRecord is one row of the tracking table.
type MigrationRecord struct {
	Version   string
	Name      string
	Status    MigrationStatus
	AppliedAt *time.Time
	Error     *string
}

// versionLayout is YYYYMMDDHHmmss.
const versionLayout = "20060102150405"

// GenerateVersion generates a timestamp-based version string.
func GenerateVersion() string {
	return time.Now().UTC().Format(versionLayout)
}

// GenerateFileName generates a migration filename of the form
// {version}_{name}.{up|down}.sql.
func GenerateFileName(version, name, direction string) string {
	return version + "_" + name + "." + direction + ".sql"
}
