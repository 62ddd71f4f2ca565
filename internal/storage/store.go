package storage

import (
	"context"
	"errors"

	"upwatch/internal/models"
)

var (
	// ErrDuplicateKey is returned when attempting to create a duplicate resource
	ErrDuplicateKey = errors.New("duplicate")
	// ErrNotFound is returned when a requested resource is not found
	ErrNotFound = errors.New("not found")
)

// Settings holds the engine state that must survive process restarts:
// the desired monitoring schedule and the stored session token.
type Settings struct {
	MonitoringEnabled bool
	IntervalMinutes   int
	SessionToken      string
}

// Storer defines the interface for storage operations on targets,
// health records and persisted engine settings.
type Storer interface {
	CreateTarget(ctx context.Context, target *models.Target) (*models.Target, error)
	GetTargetByID(ctx context.Context, id string) (*models.Target, error)
	ListTargets(ctx context.Context) ([]models.Target, error)
	DeleteTarget(ctx context.Context, id string) error

	// UpsertHealth writes the health record for record.TargetID, replacing
	// any previous record for the same target. It never creates duplicates.
	UpsertHealth(ctx context.Context, record *models.HealthRecord) error
	GetHealth(ctx context.Context, targetID string) (*models.HealthRecord, error)
	ListHealth(ctx context.Context) ([]models.HealthRecord, error)

	GetSettings(ctx context.Context) (*Settings, error)
	SetMonitoring(ctx context.Context, enabled bool, intervalMinutes int) error
	SetSessionToken(ctx context.Context, token string) error

	Close() error
}
