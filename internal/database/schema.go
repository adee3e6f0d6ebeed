package database

import (
	"fmt"

	"github.com/jmoiron/sqlx"
)

const (
	DriverMySQL  = "mysql"
	DriverSQLite = "sqlite"
)

// schemaStep is one versioned bootstrap statement set per dialect.
type schemaStep struct {
	version int
	mysql   []string
	sqlite  []string
}

var schema = []schemaStep{
	{
		version: 1,
		mysql: []string{
			`CREATE TABLE IF NOT EXISTS projects (
				id BIGINT AUTO_INCREMENT PRIMARY KEY,
				name VARCHAR(255) NOT NULL,
				slug VARCHAR(255) NOT NULL,
				description TEXT NOT NULL,
				owner_email VARCHAR(255) NOT NULL,
				created_at DATETIME NOT NULL,
				updated_at DATETIME NOT NULL,
				UNIQUE KEY uq_projects_slug (slug)
			)`,
			`CREATE TABLE IF NOT EXISTS project_members (
				project_id BIGINT NOT NULL,
				member_email VARCHAR(255) NOT NULL,
				role VARCHAR(32) NOT NULL,
				created_at DATETIME NOT NULL,
				PRIMARY KEY (project_id, member_email)
			)`,
			`CREATE TABLE IF NOT EXISTS tasks (
				id BIGINT AUTO_INCREMENT PRIMARY KEY,
				project_id BIGINT NOT NULL,
				title VARCHAR(255) NOT NULL,
				description TEXT NOT NULL,
				assignee_email VARCHAR(255) NOT NULL,
				status VARCHAR(32) NOT NULL,
				due_date DATETIME NULL,
				reminder_sent TINYINT(1) NOT NULL DEFAULT 0,
				overdue_notified TINYINT(1) NOT NULL DEFAULT 0,
				created_at DATETIME NOT NULL,
				updated_at DATETIME NOT NULL,
				KEY idx_tasks_due (status, due_date)
			)`,
			`CREATE TABLE IF NOT EXISTS notifications (
				id BIGINT AUTO_INCREMENT PRIMARY KEY,
				recipient_id VARCHAR(255) NOT NULL,
				type VARCHAR(32) NOT NULL,
				title VARCHAR(255) NOT NULL,
				message TEXT NOT NULL,
				is_read TINYINT(1) NOT NULL DEFAULT 0,
				project_id BIGINT NULL,
				project_name VARCHAR(255) NULL,
				task_id BIGINT NULL,
				task_title VARCHAR(255) NULL,
				created_at DATETIME NOT NULL,
				updated_at DATETIME NOT NULL,
				KEY idx_notifications_recipient (recipient_id, is_read, created_at)
			)`,
		},
		sqlite: []string{
			`CREATE TABLE IF NOT EXISTS projects (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				name TEXT NOT NULL,
				slug TEXT NOT NULL UNIQUE,
				description TEXT NOT NULL DEFAULT '',
				owner_email TEXT NOT NULL,
				created_at DATETIME NOT NULL,
				updated_at DATETIME NOT NULL
			)`,
			`CREATE TABLE IF NOT EXISTS project_members (
				project_id INTEGER NOT NULL,
				member_email TEXT NOT NULL,
				role TEXT NOT NULL,
				created_at DATETIME NOT NULL,
				PRIMARY KEY (project_id, member_email)
			)`,
			`CREATE TABLE IF NOT EXISTS tasks (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				project_id INTEGER NOT NULL,
				title TEXT NOT NULL,
				description TEXT NOT NULL DEFAULT '',
				assignee_email TEXT NOT NULL,
				status TEXT NOT NULL,
				due_date DATETIME NULL,
				reminder_sent INTEGER NOT NULL DEFAULT 0,
				overdue_notified INTEGER NOT NULL DEFAULT 0,
				created_at DATETIME NOT NULL,
				updated_at DATETIME NOT NULL
			)`,
			`CREATE INDEX IF NOT EXISTS idx_tasks_due ON tasks(status, due_date)`,
			`CREATE TABLE IF NOT EXISTS notifications (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				recipient_id TEXT NOT NULL,
				type TEXT NOT NULL,
				title TEXT NOT NULL,
				message TEXT NOT NULL,
				is_read INTEGER NOT NULL DEFAULT 0,
				project_id INTEGER NULL,
				project_name TEXT NULL,
				task_id INTEGER NULL,
				task_title TEXT NULL,
				created_at DATETIME NOT NULL,
				updated_at DATETIME NOT NULL
			)`,
			`CREATE INDEX IF NOT EXISTS idx_notifications_recipient ON notifications(recipient_id, is_read, created_at)`,
		},
	},
}

// ApplySchema brings the database up to the latest schema version. It is safe
// to run on every start.
func ApplySchema(db *sqlx.DB, driver string) error {
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS schema_version (version INTEGER NOT NULL)`); err != nil {
		return fmt.Errorf("creating schema_version table: %w", err)
	}

	var current int
	if err := db.Get(&current, `SELECT COALESCE(MAX(version), 0) FROM schema_version`); err != nil {
		return fmt.Errorf("reading schema version: %w", err)
	}

	for _, step := range schema {
		if step.version <= current {
			continue
		}

		var stmts []string
		switch driver {
		case DriverMySQL:
			stmts = step.mysql
		case DriverSQLite:
			stmts = step.sqlite
		default:
			return fmt.Errorf("unsupported database driver %q", driver)
		}

		for _, stmt := range stmts {
			if _, err := db.Exec(stmt); err != nil {
				return fmt.Errorf("applying schema v%d: %w", step.version, err)
			}
		}
		if _, err := db.Exec(`INSERT INTO schema_version (version) VALUES (?)`, step.version); err != nil {
			return fmt.Errorf("recording schema v%d: %w", step.version, err)
		}
	}

	return nil
}
