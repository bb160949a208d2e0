package database

import (
	"database/sql"
	"fmt"
	"log/slog"
	"sort"
	"time"
)

// Migration represents a database migration
type Migration struct {
	Version int
	Up      string
	Down    string
}

// Migrations contains all database migrations
var Migrations = []Migration{
	{
		Version: 1,
		Up: `
			CREATE TABLE IF NOT EXISTS users (
				uid TEXT PRIMARY KEY,
				email TEXT NOT NULL DEFAULT '',
				username VARCHAR(32) NOT NULL,
				display_name TEXT NOT NULL,
				photo_url TEXT,
				banner_color VARCHAR(16) NOT NULL DEFAULT '#5865f2',
				bio TEXT,
				pronouns TEXT,
				links JSONB NOT NULL DEFAULT '[]'::jsonb,
				created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
				last_seen TIMESTAMPTZ NOT NULL DEFAULT NOW()
			);

			CREATE UNIQUE INDEX IF NOT EXISTS idx_users_username ON users(username);
		`,
		Down: `
			DROP TABLE IF EXISTS users;
		`,
	},
	{
		Version: 2,
		Up: `
			CREATE TABLE IF NOT EXISTS messages (
				id TEXT PRIMARY KEY,
				sender_id TEXT NOT NULL,
				receiver_id TEXT NOT NULL,
				content TEXT NOT NULL,
				type VARCHAR(10) NOT NULL DEFAULT 'text' CHECK (type IN ('text', 'image')),
				image_id TEXT,
				timestamp TIMESTAMPTZ NOT NULL DEFAULT NOW(),
				read BOOLEAN NOT NULL DEFAULT FALSE
			);

			CREATE INDEX IF NOT EXISTS idx_messages_pair ON messages(sender_id, receiver_id, timestamp DESC);
			CREATE INDEX IF NOT EXISTS idx_messages_receiver ON messages(receiver_id);
			CREATE INDEX IF NOT EXISTS idx_messages_unread ON messages(sender_id, receiver_id) WHERE NOT read;
		`,
		Down: `
			DROP TABLE IF EXISTS messages;
		`,
	},
	{
		Version: 3,
		Up: `
			CREATE TABLE IF NOT EXISTS groups (
				id TEXT PRIMARY KEY,
				name TEXT NOT NULL,
				description TEXT NOT NULL DEFAULT '',
				avatar_url TEXT,
				created_by TEXT NOT NULL,
				members TEXT[] NOT NULL,
				admins TEXT[] NOT NULL,
				max_members INT NOT NULL CHECK (max_members BETWEEN 2 AND 10),
				created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
				updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
				CHECK (admins <@ members)
			);

			CREATE INDEX IF NOT EXISTS idx_groups_members ON groups USING GIN (members);
			CREATE INDEX IF NOT EXISTS idx_groups_updated_at ON groups(updated_at DESC);
		`,
		Down: `
			DROP TABLE IF EXISTS groups;
		`,
	},
	{
		Version: 4,
		Up: `
			CREATE TABLE IF NOT EXISTS group_messages (
				id TEXT PRIMARY KEY,
				group_id TEXT NOT NULL REFERENCES groups(id) ON DELETE CASCADE,
				sender_id TEXT NOT NULL,
				content TEXT NOT NULL,
				type VARCHAR(10) NOT NULL DEFAULT 'text' CHECK (type IN ('text', 'image')),
				image_id TEXT,
				timestamp TIMESTAMPTZ NOT NULL DEFAULT NOW(),
				read_by TEXT[] NOT NULL DEFAULT '{}'
			);

			CREATE INDEX IF NOT EXISTS idx_group_messages_group_ts ON group_messages(group_id, timestamp DESC);
		`,
		Down: `
			DROP TABLE IF EXISTS group_messages;
		`,
	},
}

// RunMigrations applies every migration newer than the recorded version
func RunMigrations(db *sql.DB) error {
	if err := ensureMigrationsTable(db); err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	currentVersion, err := getCurrentVersion(db)
	if err != nil {
		return fmt.Errorf("failed to get current version: %w", err)
	}

	// Run pending migrations in ascending order by version
	sorted := make([]Migration, len(Migrations))
	copy(sorted, Migrations)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Version < sorted[j].Version })

	for _, migration := range sorted {
		if migration.Version <= currentVersion {
			continue
		}

		slog.Info("running migration", "version", migration.Version)

		tx, err := db.Begin()
		if err != nil {
			return fmt.Errorf("failed to begin transaction: %w", err)
		}

		if _, err := tx.Exec(migration.Up); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to run migration %d: %w", migration.Version, err)
		}

		if _, err := tx.Exec("INSERT INTO schema_migrations (version) VALUES ($1)", migration.Version); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to record migration %d: %w", migration.Version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit migration %d: %w", migration.Version, err)
		}
	}

	return nil
}

// AppliedMigration is one row of schema_migrations.
type AppliedMigration struct {
	Version   int
	AppliedAt time.Time
}

// MigrationStatus lists the applied migrations, oldest first.
func MigrationStatus(db *sql.DB) ([]AppliedMigration, error) {
	if err := ensureMigrationsTable(db); err != nil {
		return nil, fmt.Errorf("failed to create migrations table: %w", err)
	}

	rows, err := db.Query("SELECT version, applied_at FROM schema_migrations ORDER BY version")
	if err != nil {
		return nil, fmt.Errorf("failed to read migrations: %w", err)
	}
	defer rows.Close()

	applied := []AppliedMigration{}
	for rows.Next() {
		var m AppliedMigration
		if err := rows.Scan(&m.Version, &m.AppliedAt); err != nil {
			return nil, fmt.Errorf("failed to scan migration: %w", err)
		}
		applied = append(applied, m)
	}

	return applied, rows.Err()
}

func ensureMigrationsTable(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INT PRIMARY KEY,
			applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)
	`)
	return err
}

func getCurrentVersion(db *sql.DB) (int, error) {
	var version int
	err := db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations").Scan(&version)
	if err != nil {
		return 0, err
	}
	return version, nil
}
