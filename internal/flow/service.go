package flow

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/sendloop/waflow/internal/models"
	"github.com/sendloop/waflow/internal/store"
	"github.com/sendloop/waflow/internal/util"
)

// assignStepIDs gives informational ids to steps that lack one. Steps are
// addressed by index; the id only helps operators tell steps apart.
func assignStepIDs(steps []models.Step) {
	for i := range steps {
		if steps[i].ID == "" {
			steps[i].ID = util.GenerateRandomID("step-", 8)
		}
	}
}

// Service manages flow scripts on top of a Store: authoring operations,
// versioning, and idempotent preset materialization.
type Service struct {
	store store.Store
}

// NewService creates a flow Service backed by the given store.
func NewService(st store.Store) *Service {
	return &Service{store: st}
}

// Load retrieves a flow by tenant-scoped name, or nil if absent.
func (s *Service) Load(tenant, name string) (*models.Flow, error) {
	return s.store.GetFlow(tenant, name)
}

// Save validates and persists a flow, incrementing its version and
// refreshing UpdatedAt when it already exists. It returns the storage
// location of the flow.
func (s *Service) Save(tenant string, f models.Flow) (string, error) {
	f.Tenant = tenant
	if err := f.Validate(); err != nil {
		slog.Error("Service.Save validation failed", "error", err, "tenant", tenant, "name", f.Name)
		return "", err
	}

	assignStepIDs(f.Steps)
	now := time.Now()
	existing, err := s.store.GetFlow(tenant, f.Name)
	if err != nil {
		return "", err
	}
	if existing != nil {
		f.Version = existing.Version + 1
		f.CreatedAt = existing.CreatedAt
		f.UpdatedAt = &now
	} else {
		f.Version = 1
		f.CreatedAt = now
		f.UpdatedAt = nil
	}

	if err := s.store.SaveFlow(f); err != nil {
		return "", err
	}
	location := fmt.Sprintf("%s/%s", tenant, f.Name)
	slog.Info("Service.Save persisted flow", "location", location, "version", f.Version, "steps", len(f.Steps))
	return location, nil
}

// List returns the names of all flows for a tenant, sorted by name.
func (s *Service) List(tenant string) ([]string, error) {
	return s.store.ListFlows(tenant)
}

// EnsurePreset materializes the built-in lead qualification script under the
// given name if no flow with that name exists yet. It reports whether a new
// flow was created. The underlying conditional insert makes concurrent calls
// safe: exactly one caller observes created=true.
func (s *Service) EnsurePreset(tenant, name string) (bool, error) {
	if name == "" {
		name = PresetFlowName
	}
	preset := BuildPreset(tenant, name, time.Now())
	created, err := s.store.CreateFlowIfAbsent(preset)
	if err != nil {
		slog.Error("Service.EnsurePreset failed", "error", err, "tenant", tenant, "name", name)
		return false, err
	}
	slog.Debug("Service.EnsurePreset", "tenant", tenant, "name", name, "created", created)
	return created, nil
}

// AppendStep appends a step to the named flow, incrementing its version.
// If the flow does not exist yet it is first materialized from the preset.
func (s *Service) AppendStep(tenant, name string, step models.Step) (*models.Flow, error) {
	if err := step.Validate(); err != nil {
		slog.Error("Service.AppendStep invalid step", "error", err, "tenant", tenant, "name", name)
		return nil, err
	}

	f, err := s.store.GetFlow(tenant, name)
	if err != nil {
		return nil, err
	}
	if f == nil {
		if _, err := s.EnsurePreset(tenant, name); err != nil {
			return nil, err
		}
		f, err = s.store.GetFlow(tenant, name)
		if err != nil {
			return nil, err
		}
		if f == nil {
			return nil, fmt.Errorf("flow %s/%s vanished after preset materialization", tenant, name)
		}
	}

	if step.ID == "" {
		step.ID = util.GenerateRandomID("step-", 8)
	}
	now := time.Now()
	f.Steps = append(f.Steps, step)
	f.Version++
	f.UpdatedAt = &now
	if err := s.store.SaveFlow(*f); err != nil {
		return nil, err
	}
	slog.Info("Service.AppendStep appended step", "tenant", tenant, "name", name, "type", step.Type, "version", f.Version, "steps", len(f.Steps))
	return f, nil
}
