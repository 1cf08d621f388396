// Package store provides storage backends for waflow.
//
// This file implements the PostgreSQL-backed store for flows and conversations.
package store

import (
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "embed"

	"github.com/sendloop/waflow/internal/models"
	_ "github.com/lib/pq"
)

// Constants for PostgreSQL connection pool configuration
const (
	// DefaultMaxOpenConns defines the maximum number of open connections
	DefaultMaxOpenConns = 10
	// DefaultMaxIdleConns defines the maximum number of idle connections
	DefaultMaxIdleConns = 5
	// DefaultConnMaxLifetime defines the maximum lifetime of a connection
	DefaultConnMaxLifetime = 5 * time.Minute
)

//go:embed migrations_postgres.sql
var postgresMigrations string

type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new Postgres store based on provided options.
func NewPostgresStore(opts ...Option) (*PostgresStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("NewPostgresStore invoked", "DSN_set", cfg.DSN != "")

	dsn := cfg.DSN
	if dsn == "" {
		slog.Error("PostgresStore DSN not set")
		return nil, fmt.Errorf("database DSN not set")
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		slog.Error("Failed to open Postgres connection", "error", err)
		return nil, err
	}
	db.SetMaxOpenConns(DefaultMaxOpenConns)
	db.SetMaxIdleConns(DefaultMaxIdleConns)
	db.SetConnMaxLifetime(DefaultConnMaxLifetime)

	if err := db.Ping(); err != nil {
		slog.Error("Postgres ping failed", "error", err)
		return nil, err
	}

	slog.Debug("Running Postgres migrations")
	if _, err := db.Exec(postgresMigrations); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &PostgresStore{db: db}, nil
}

// SaveFlow inserts or replaces a flow definition.
func (s *PostgresStore) SaveFlow(f models.Flow) error {
	stepsJSON, err := flowArgs(f)
	if err != nil {
		slog.Error("PostgresStore.SaveFlow marshal failed", "error", err, "tenant", f.Tenant, "name", f.Name)
		return err
	}
	_, err = s.db.Exec(`
		INSERT INTO flows (tenant, name, version, steps, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (tenant, name) DO UPDATE SET
			version = EXCLUDED.version,
			steps = EXCLUDED.steps,
			updated_at = EXCLUDED.updated_at`,
		f.Tenant, f.Name, f.Version, stepsJSON, f.CreatedAt, f.UpdatedAt)
	if err != nil {
		slog.Error("PostgresStore.SaveFlow failed", "error", err, "tenant", f.Tenant, "name", f.Name)
		return fmt.Errorf("failed to save flow %s/%s: %w", f.Tenant, f.Name, err)
	}
	slog.Debug("PostgresStore.SaveFlow succeeded", "tenant", f.Tenant, "name", f.Name, "version", f.Version)
	return nil
}

// CreateFlowIfAbsent inserts the flow only if it does not already exist.
// ON CONFLICT DO NOTHING makes the check-and-insert atomic under concurrency.
func (s *PostgresStore) CreateFlowIfAbsent(f models.Flow) (bool, error) {
	stepsJSON, err := flowArgs(f)
	if err != nil {
		return false, err
	}
	res, err := s.db.Exec(`
		INSERT INTO flows (tenant, name, version, steps, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (tenant, name) DO NOTHING`,
		f.Tenant, f.Name, f.Version, stepsJSON, f.CreatedAt, f.UpdatedAt)
	if err != nil {
		slog.Error("PostgresStore.CreateFlowIfAbsent failed", "error", err, "tenant", f.Tenant, "name", f.Name)
		return false, fmt.Errorf("failed to create flow %s/%s: %w", f.Tenant, f.Name, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	created := affected > 0
	slog.Debug("PostgresStore.CreateFlowIfAbsent", "tenant", f.Tenant, "name", f.Name, "created", created)
	return created, nil
}

// GetFlow retrieves a flow definition, or nil if absent.
func (s *PostgresStore) GetFlow(tenant, name string) (*models.Flow, error) {
	row := s.db.QueryRow(`
		SELECT tenant, name, version, steps, created_at, updated_at
		FROM flows WHERE tenant = $1 AND name = $2`, tenant, name)
	f, err := scanFlowRow(row)
	if err != nil {
		slog.Error("PostgresStore.GetFlow failed", "error", err, "tenant", tenant, "name", name)
		return nil, err
	}
	return f, nil
}

// ListFlows returns the names of all flows for a tenant.
func (s *PostgresStore) ListFlows(tenant string) ([]string, error) {
	rows, err := s.db.Query(`SELECT name FROM flows WHERE tenant = $1 ORDER BY name`, tenant)
	if err != nil {
		slog.Error("PostgresStore.ListFlows query failed", "error", err, "tenant", tenant)
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
func (s *PostgresStore) GetConversation(tenant, counterparty string) (*models.Conversation, error) {
	key := models.NormalizeCounterparty(counterparty)
	row := s.db.QueryRow(`
		SELECT tenant, counterparty, flow, step_index, waiting, data,
		       started_at, updated_at, last_inbound_at, completed_at, handoff
		FROM conversations WHERE tenant = $1 AND counterparty = $2`, tenant, key)
	c, err := scanConversationRow(row)
	if err != nil {
		slog.Error("PostgresStore.GetConversation failed", "error", err, "tenant", tenant, "counterparty", key)
		return nil, err
	}
	return c, nil
}

// SaveConversation inserts or replaces conversation state, keyed by the
// normalized counterparty identifier.
func (s *PostgresStore) SaveConversation(c models.Conversation) error {
	key := models.NormalizeCounterparty(c.Counterparty)
	waitingJSON, dataJSON, handoffJSON, err := conversationArgs(c)
	if err != nil {
		slog.Error("PostgresStore.SaveConversation marshal failed", "error", err, "tenant", c.Tenant, "counterparty", key)
		return err
	}
	_, err = s.db.Exec(`
		INSERT INTO conversations
			(tenant, counterparty, flow, step_index, waiting, data,
			 started_at, updated_at, last_inbound_at, completed_at, handoff)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (tenant, counterparty) DO UPDATE SET
			flow = EXCLUDED.flow,
			step_index = EXCLUDED.step_index,
			waiting = EXCLUDED.waiting,
			data = EXCLUDED.data,
			started_at = EXCLUDED.started_at,
			updated_at = EXCLUDED.updated_at,
			last_inbound_at = EXCLUDED.last_inbound_at,
			completed_at = EXCLUDED.completed_at,
			handoff = EXCLUDED.handoff`,
		c.Tenant, key, c.Flow, c.StepIndex, waitingJSON, dataJSON,
		c.StartedAt, c.UpdatedAt, c.LastInboundAt, c.CompletedAt, handoffJSON)
	if err != nil {
		slog.Error("PostgresStore.SaveConversation failed", "error", err, "tenant", c.Tenant, "counterparty", key)
		return fmt.Errorf("failed to save conversation %s/%s: %w", c.Tenant, key, err)
	}
	slog.Debug("PostgresStore.SaveConversation succeeded", "tenant", c.Tenant, "counterparty", key, "step", c.StepIndex)
	return nil
}

// DeleteConversation removes conversation state.
func (s *PostgresStore) DeleteConversation(tenant, counterparty string) error {
	key := models.NormalizeCounterparty(counterparty)
	_, err := s.db.Exec(`DELETE FROM conversations WHERE tenant = $1 AND counterparty = $2`, tenant, key)
	if err != nil {
		slog.Error("PostgresStore.DeleteConversation failed", "error", err, "tenant", tenant, "counterparty", key)
		return err
	}
	return nil
}

// Close closes the Postgres database connection.
func (s *PostgresStore) Close() error {
	slog.Debug("Closing Postgres database connection")
	return s.db.Close()
}
