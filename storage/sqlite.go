package storage

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

// SQLite holds the metadata database connections. WAL mode supports many
// concurrent readers with a single writer, so the pools are split: the
// write pool is capped at one connection and the read pool fans out.
type SQLite struct {
	WriteDB *sql.DB
	ReadDB  *sql.DB
	Path    string
	Logger  *zap.SugaredLogger
}

func configureConnection(db *sql.DB, dbPath string) error {
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		return fmt.Errorf("enable WAL mode: %w", err)
	}
	// SQLite disables foreign keys unless asked.
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		return fmt.Errorf("enable foreign keys: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		return fmt.Errorf("set busy timeout: %w", err)
	}
	if err := db.Ping(); err != nil {
		return fmt.Errorf("ping database: %w", err)
	}

	var journalMode string
	if err := db.QueryRow("PRAGMA journal_mode").Scan(&journalMode); err != nil {
		return fmt.Errorf("query journal mode: %w", err)
	}
	// In-memory databases report "memory", not "wal".
	if dbPath != ":memory:" && journalMode != "wal" {
		return fmt.Errorf("WAL mode not enabled, journal mode is %q", journalMode)
	}
	return nil
}

// NewSQLite opens the metadata database and runs migrations.
func NewSQLite(dbPath string, logger *zap.SugaredLogger) (*SQLite, error) {
	dir := filepath.Dir(dbPath)
	if dir != "." && dir != "" && dbPath != ":memory:" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	dsn := dbPath
	if dbPath == ":memory:" {
		// Shared cache so the read and write pools see the same database.
		dsn = "file::memory:?cache=shared"
	}

	writeDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open write pool: %w", err)
	}
	writeDB.SetMaxOpenConns(1)
	writeDB.SetConnMaxLifetime(time.Hour)
	if err := configureConnection(writeDB, dbPath); err != nil {
		writeDB.Close()
		return nil, fmt.Errorf("configure write pool: %w", err)
	}

	readDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		writeDB.Close()
		return nil, fmt.Errorf("open read pool: %w", err)
	}
	readDB.SetMaxOpenConns(10)
	readDB.SetConnMaxLifetime(time.Hour)
	if err := configureConnection(readDB, dbPath); err != nil {
		writeDB.Close()
		readDB.Close()
		return nil, fmt.Errorf("configure read pool: %w", err)
	}

	s := &SQLite{
		WriteDB: writeDB,
		ReadDB:  readDB,
		Path:    dbPath,
		Logger:  logger,
	}
	if err := s.migrate(); err != nil {
		s.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	logger.Infow("sqlite ready", "path", dbPath)
	return s, nil
}

// Close shuts down both pools.
func (s *SQLite) Close() error {
	var firstErr error
	if err := s.WriteDB.Close(); err != nil {
		firstErr = err
	}
	if err := s.ReadDB.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}

func (s *SQLite) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS projects (
			id TEXT PRIMARY KEY,
			organization_id TEXT NOT NULL,
			name TEXT NOT NULL,
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_projects_org ON projects(organization_id)`,

		`CREATE TABLE IF NOT EXISTS detection_rules (
			id TEXT PRIMARY KEY,
			organization_id TEXT NOT NULL,
			project_id TEXT,
			title TEXT NOT NULL,
			status TEXT NOT NULL,
			level TEXT NOT NULL,
			enabled BOOLEAN NOT NULL DEFAULT 1,
			yaml_content TEXT NOT NULL,
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			FOREIGN KEY (project_id) REFERENCES projects(id) ON DELETE CASCADE
		)`,
		`CREATE INDEX IF NOT EXISTS idx_detection_rules_org ON detection_rules(organization_id)`,
		`CREATE INDEX IF NOT EXISTS idx_detection_rules_project ON detection_rules(project_id)`,

		`CREATE TABLE IF NOT EXISTS alert_rules (
			id TEXT PRIMARY KEY,
			organization_id TEXT NOT NULL,
			project_id TEXT,
			name TEXT NOT NULL,
			enabled BOOLEAN NOT NULL DEFAULT 1,
			service TEXT NOT NULL DEFAULT '',
			levels TEXT NOT NULL DEFAULT '',
			threshold INTEGER NOT NULL,
			time_window_minutes INTEGER NOT NULL,
			email_recipients TEXT NOT NULL DEFAULT '',
			webhook_url TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			FOREIGN KEY (project_id) REFERENCES projects(id) ON DELETE CASCADE
		)`,
		`CREATE INDEX IF NOT EXISTS idx_alert_rules_org ON alert_rules(organization_id)`,
		`CREATE INDEX IF NOT EXISTS idx_alert_rules_enabled ON alert_rules(enabled)`,

		`CREATE TABLE IF NOT EXISTS alert_history (
			id TEXT PRIMARY KEY,
			rule_id TEXT NOT NULL,
			triggered_at TIMESTAMP NOT NULL,
			log_count INTEGER NOT NULL,
			notified BOOLEAN NOT NULL DEFAULT 0,
			error TEXT NOT NULL DEFAULT '',
			FOREIGN KEY (rule_id) REFERENCES alert_rules(id) ON DELETE CASCADE
		)`,
		`CREATE INDEX IF NOT EXISTS idx_alert_history_rule_time ON alert_history(rule_id, triggered_at DESC)`,
	}
	for _, stmt := range stmts {
		if _, err := s.WriteDB.Exec(stmt); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}
	return nil
}
