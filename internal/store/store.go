// Package store provides storage backends for waflow.
//
// Flows and conversations are stored as independently addressable records
// keyed by (tenant, name) and (tenant, normalized counterparty) so that
// concurrent updates to different conversations never overwrite each other.
// An in-memory store is provided for tests and DSN-less operation, with
// SQLite and PostgreSQL backends for persistence.
package store

import (
	"log/slog"
	"sort"
	"strings"
	"sync"

	"github.com/sendloop/waflow/internal/models"
)

// Store is the persistence abstraction shared by the flow service and the
// execution engine. Lookups for missing records return (nil, nil).
type Store interface {
	// SaveFlow inserts or replaces a flow definition.
	SaveFlow(f models.Flow) error
	// CreateFlowIfAbsent inserts the flow only if no flow with the same
	// tenant-scoped name exists. It reports whether the insert happened.
	// The operation is atomic so concurrent callers cannot both create.
	CreateFlowIfAbsent(f models.Flow) (bool, error)
	// GetFlow retrieves a flow definition, or nil if absent.
	GetFlow(tenant, name string) (*models.Flow, error)
	// ListFlows returns the names of all flows for a tenant, sorted.
	ListFlows(tenant string) ([]string, error)
	// GetConversation retrieves conversation state, or nil if absent.
	GetConversation(tenant, counterparty string) (*models.Conversation, error)
	// SaveConversation inserts or replaces conversation state.
	SaveConversation(c models.Conversation) error
	// DeleteConversation removes conversation state.
	DeleteConversation(tenant, counterparty string) error
	// Close releases any underlying resources.
	Close() error
}

// Opts holds configuration options for store backends.
type Opts struct {
	DSN string
}

// Option defines a configuration option for store backends.
type Option func(*Opts)

// WithSQLiteDSN sets the SQLite database file path.
func WithSQLiteDSN(dsn string) Option {
	return func(o *Opts) {
		o.DSN = dsn
	}
}

// WithPostgresDSN sets the PostgreSQL connection string.
func WithPostgresDSN(dsn string) Option {
	return func(o *Opts) {
		o.DSN = dsn
	}
}

// DetectDSNType returns "postgres" for PostgreSQL connection strings and
// "sqlite3" for anything else (assumed to be a file path).
func DetectDSNType(dsn string) string {
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") || strings.Contains(dsn, "host=") {
		return "postgres"
	}
	return "sqlite3"
}

// InMemoryStore is a mutex-guarded map-based Store for tests and for
// running without a database DSN.
type InMemoryStore struct {
	mu            sync.RWMutex
	flows         map[string]map[string]models.Flow         // tenant -> name -> flow
	conversations map[string]map[string]models.Conversation // tenant -> counterparty -> conversation
}

// NewInMemoryStore creates an empty in-memory store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		flows:         make(map[string]map[string]models.Flow),
		conversations: make(map[string]map[string]models.Conversation),
	}
}

func (s *InMemoryStore) SaveFlow(f models.Flow) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.flows[f.Tenant] == nil {
		s.flows[f.Tenant] = make(map[string]models.Flow)
	}
	s.flows[f.Tenant][f.Name] = f
	slog.Debug("InMemoryStore.SaveFlow succeeded", "tenant", f.Tenant, "name", f.Name, "version", f.Version)
	return nil
}

func (s *InMemoryStore) CreateFlowIfAbsent(f models.Flow) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.flows[f.Tenant] == nil {
		s.flows[f.Tenant] = make(map[string]models.Flow)
	}
	if _, exists := s.flows[f.Tenant][f.Name]; exists {
		return false, nil
	}
	s.flows[f.Tenant][f.Name] = f
	slog.Debug("InMemoryStore.CreateFlowIfAbsent created", "tenant", f.Tenant, "name", f.Name)
	return true, nil
}

func (s *InMemoryStore) GetFlow(tenant, name string) (*models.Flow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	f, ok := s.flows[tenant][name]
	if !ok {
		return nil, nil
	}
	return &f, nil
}

func (s *InMemoryStore) ListFlows(tenant string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.flows[tenant]))
	for name := range s.flows[tenant] {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

func (s *InMemoryStore) GetConversation(tenant, counterparty string) (*models.Conversation, error) {
	key := models.NormalizeCounterparty(counterparty)
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.conversations[tenant][key]
	if !ok {
		return nil, nil
	}
	return &c, nil
}

func (s *InMemoryStore) SaveConversation(c models.Conversation) error {
	key := models.NormalizeCounterparty(c.Counterparty)
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conversations[c.Tenant] == nil {
		s.conversations[c.Tenant] = make(map[string]models.Conversation)
	}
	s.conversations[c.Tenant][key] = c
	slog.Debug("InMemoryStore.SaveConversation succeeded", "tenant", c.Tenant, "counterparty", key, "step", c.StepIndex)
	return nil
}

func (s *InMemoryStore) DeleteConversation(tenant, counterparty string) error {
	key := models.NormalizeCounterparty(counterparty)
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.conversations[tenant], key)
	return nil
}

// Close is a no-op for the in-memory store.
func (s *InMemoryStore) Close() error {
	return nil
}
