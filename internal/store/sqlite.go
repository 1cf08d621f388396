// Package store provides storage backends for waflow.
//
// This file implements the SQLite-backed store for flows and conversations.
package store

import (
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	_ "embed"

	"github.com/sendloop/waflow/internal/models"
	_ "github.com/mattn/go-sqlite3"
)

// Constants for SQLite store configuration
const (
	// DefaultDirPermissions defines the default permissions for database directories
	DefaultDirPermissions = 0755
)

//go:embed migrations_sqlite.sql
var sqliteMigrations string

type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite store with the given DSN.
// The DSN should be a file path to the SQLite database file.
// If the directory doesn't exist, it will be created.
func NewSQLiteStore(opts ...Option) (*SQLiteStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("NewSQLiteStore invoked", "DSN_set", cfg.DSN != "")

	dsn := cfg.DSN
	if dsn == "" {
		slog.Error("SQLiteStore DSN not set")
		return nil, fmt.Errorf("database DSN not set")
	}

	dir := filepath.Dir(dsn)
	if err := os.MkdirAll(dir, DefaultDirPermissions); err != nil {
		slog.Error("Failed to create database directory", "error", err, "dir", dir)
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		slog.Error("Failed to open SQLite connection", "error", err)
		return nil, err
	}

	if err := db.Ping(); err != nil {
		slog.Error("SQLite ping failed", "error", err)
		return nil, err
	}

	slog.Debug("Running SQLite migrations")
	if _, err := db.Exec(sqliteMigrations); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// SaveFlow inserts or replaces a flow definition.
func (s *SQLiteStore) SaveFlow(f models.Flow) error {
	stepsJSON, err := flowArgs(f)
	if err != nil {
		slog.Error("SQLiteStore.SaveFlow marshal failed", "error", err, "tenant", f.Tenant, "name", f.Name)
		return err
	}
	_, err = s.db.Exec(`
		INSERT OR REPLACE INTO flows (tenant, name, version, steps, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		f.Tenant, f.Name, f.Version, stepsJSON, f.CreatedAt, f.UpdatedAt)
	if err != nil {
		slog.Error("SQLiteStore.SaveFlow failed", "error", err, "tenant", f.Tenant, "name", f.Name)
		return fmt.Errorf("failed to save flow %s/%s: %w", f.Tenant, f.Name, err)
	}
	slog.Debug("SQLiteStore.SaveFlow succeeded", "tenant", f.Tenant, "name", f.Name, "version", f.Version)
	return nil
}

// CreateFlowIfAbsent inserts the flow only if it does not already exist.
// INSERT OR IGNORE makes the check-and-insert atomic under concurrency.
func (s *SQLiteStore) CreateFlowIfAbsent(f models.Flow) (bool, error) {
	stepsJSON, err := flowArgs(f)
	if err != nil {
		return false, err
	}
	res, err := s.db.Exec(`
		INSERT OR IGNORE INTO flows (tenant, name, version, steps, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		f.Tenant, f.Name, f.Version, stepsJSON, f.CreatedAt, f.UpdatedAt)
	if err != nil {
		slog.Error("SQLiteStore.CreateFlowIfAbsent failed", "error", err, "tenant", f.Tenant, "name", f.Name)
		return false, fmt.Errorf("failed to create flow %s/%s: %w", f.Tenant, f.Name, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	created := affected > 0
	slog.Debug("SQLiteStore.CreateFlowIfAbsent", "tenant", f.Tenant, "name", f.Name, "created", created)
	return created, nil
}

// GetFlow retrieves a flow definition, or nil if absent.
func (s *SQLiteStore) GetFlow(tenant, name string) (*models.Flow, error) {
	row := s.db.QueryRow(`
		SELECT tenant, name, version, steps, created_at, updated_at
		FROM flows WHERE tenant = ? AND name = ?`, tenant, name)
	f, err := scanFlowRow(row)
	if err != nil {
		slog.Error("SQLiteStore.GetFlow failed", "error", err, "tenant", tenant, "name", name)
		return nil, err
	}
	return f, nil
}

// ListFlows returns the names of all flows for a tenant.
func (s *SQLiteStore) ListFlows(tenant string) ([]string, error) {
	rows, err := s.db.Query(`SELECT name FROM flows WHERE tenant = ? ORDER BY name`, tenant)
	if err != nil {
		slog.Error("SQLiteStore.ListFlows query failed", "error", err, "tenant", tenant)
		return nil, fmt.Errorf("failed to list flows: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("failed to scan flow name: %w", err)
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate flow rows: %w", err)
	}
	return names, nil
}

// GetConversation retrieves conversation state, or nil if absent.
func (s *SQLiteStore) GetConversation(tenant, counterparty string) (*models.Conversation, error) {
	key := models.NormalizeCounterparty(counterparty)
	row := s.db.QueryRow(`
		SELECT tenant, counterparty, flow, step_index, waiting, data,
		       started_at, updated_at, last_inbound_at, completed_at, handoff
		FROM conversations WHERE tenant = ? AND counterparty = ?`, tenant, key)
	c, err := scanConversationRow(row)
	if err != nil {
		slog.Error("SQLiteStore.GetConversation failed", "error", err, "tenant", tenant, "counterparty", key)
		return nil, err
	}
	return c, nil
}

// SaveConversation inserts or replaces conversation state, keyed by the
// normalized counterparty identifier.
func (s *SQLiteStore) SaveConversation(c models.Conversation) error {
	key := models.NormalizeCounterparty(c.Counterparty)
	waitingJSON, dataJSON, handoffJSON, err := conversationArgs(c)
	if err != nil {
		slog.Error("SQLiteStore.SaveConversation marshal failed", "error", err, "tenant", c.Tenant, "counterparty", key)
		return err
	}
	_, err = s.db.Exec(`
		INSERT OR REPLACE INTO conversations
			(tenant, counterparty, flow, step_index, waiting, data,
			 started_at, updated_at, last_inbound_at, completed_at, handoff)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.Tenant, key, c.Flow, c.StepIndex, waitingJSON, dataJSON,
		c.StartedAt, c.UpdatedAt, c.LastInboundAt, c.CompletedAt, handoffJSON)
	if err != nil {
		slog.Error("SQLiteStore.SaveConversation failed", "error", err, "tenant", c.Tenant, "counterparty", key)
		return fmt.Errorf("failed to save conversation %s/%s: %w", c.Tenant, key, err)
	}
	slog.Debug("SQLiteStore.SaveConversation succeeded", "tenant", c.Tenant, "counterparty", key, "step", c.StepIndex)
	return nil
}

// DeleteConversation removes conversation state.
func (s *SQLiteStore) DeleteConversation(tenant, counterparty string) error {
	key := models.NormalizeCounterparty(counterparty)
	_, err := s.db.Exec(`DELETE FROM conversations WHERE tenant = ? AND counterparty = ?`, tenant, key)
	if err != nil {
		slog.Error("SQLiteStore.DeleteConversation failed", "error", err, "tenant", tenant, "counterparty", key)
		return err
	}
	return nil
}

// Close closes the SQLite database connection.
func (s *SQLiteStore) Close() error {
	slog.Debug("Closing SQLite database connection")
	return s.db.Close()
}
