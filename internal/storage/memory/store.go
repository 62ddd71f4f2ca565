// Package memory provides an in-process Storer used by tests and by
// ephemeral runs that need no durability.
package memory

import (
	"context"
	"sort"
	"sync"

	"upwatch/internal/models"
	"upwatch/internal/storage"
)

// MemoryStore implements storage.Storer with mutex-guarded maps.
type MemoryStore struct {
	mu       sync.RWMutex
	targets  map[string]models.Target
	byURL    map[string]string
	health   map[string]models.HealthRecord
	settings storage.Settings
}

// New creates an empty MemoryStore.
func New() *MemoryStore {
	return &MemoryStore{
		targets: make(map[string]models.Target),
		byURL:   make(map[string]string),
		health:  make(map[string]models.HealthRecord),
	}
}

// Close is a no-op.
func (s *MemoryStore) Close() error { return nil }

// CreateTarget registers a new target, rejecting duplicate URLs.
func (s *MemoryStore) CreateTarget(ctx context.Context, target *models.Target) (*models.Target, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existingID, ok := s.byURL[target.URL]; ok {
		existing := s.targets[existingID]
		return &existing, storage.ErrDuplicateKey
	}
	s.targets[target.ID] = *target
	s.byURL[target.URL] = target.ID
	t := *target
	return &t, nil
}

// GetTargetByID retrieves a single target.
func (s *MemoryStore) GetTargetByID(ctx context.Context, id string) (*models.Target, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if t, ok := s.targets[id]; ok {
		return &t, nil
	}
	return nil, storage.ErrNotFound
}

// ListTargets retrieves all targets in registration order.
func (s *MemoryStore) ListTargets(ctx context.Context) ([]models.Target, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	targets := make([]models.Target, 0, len(s.targets))
	for _, t := range s.targets {
		targets = append(targets, t)
	}
	sort.Slice(targets, func(i, j int) bool {
		if targets[i].CreatedAt.Equal(targets[j].CreatedAt) {
			return targets[i].ID < targets[j].ID
		}
		return targets[i].CreatedAt.Before(targets[j].CreatedAt)
	})
	return targets, nil
}

// DeleteTarget removes a target and its health record.
func (s *MemoryStore) DeleteTarget(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.targets[id]
	if !ok {
		return storage.ErrNotFound
	}
	delete(s.targets, id)
	delete(s.byURL, t.URL)
	delete(s.health, id)
	return nil
}

// UpsertHealth replaces the health record for a target.
func (s *MemoryStore) UpsertHealth(ctx context.Context, record *models.HealthRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.health[record.TargetID] = *record
	return nil
}

// GetHealth retrieves the health record for a target.
func (s *MemoryStore) GetHealth(ctx context.Context, targetID string) (*models.HealthRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if r, ok := s.health[targetID]; ok {
		return &r, nil
	}
	return nil, storage.ErrNotFound
}

// ListHealth retrieves the health records of all targets.
func (s *MemoryStore) ListHealth(ctx context.Context) ([]models.HealthRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	records := make([]models.HealthRecord, 0, len(s.health))
	for _, r := range s.health {
		records = append(records, r)
	}
	sort.Slice(records, func(i, j int) bool { return records[i].TargetID < records[j].TargetID })
	return records, nil
}

// GetSettings loads the persisted engine settings.
func (s *MemoryStore) GetSettings(ctx context.Context) (*storage.Settings, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	settings := s.settings
	return &settings, nil
}

// SetMonitoring persists the desired monitoring schedule.
func (s *MemoryStore) SetMonitoring(ctx context.Context, enabled bool, intervalMinutes int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.settings.MonitoringEnabled = enabled
	s.settings.IntervalMinutes = intervalMinutes
	return nil
}

// SetSessionToken persists the stored credential.
func (s *MemoryStore) SetSessionToken(ctx context.Context, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.settings.SessionToken = token
	return nil
}
