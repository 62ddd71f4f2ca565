package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"upwatch/internal/models"
	"upwatch/internal/storage"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := New(context.Background(), filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("New() returned unexpected error: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func int64Ptr(v int64) *int64 { return &v }

func TestTargetLifecycle(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	target := &models.Target{
		ID:        "t_1",
		Name:      "API",
		URL:       "https://ok.example",
		CreatedAt: time.Now().UTC(),
	}
	if _, err := store.CreateTarget(ctx, target); err != nil {
		t.Fatalf("CreateTarget() returned unexpected error: %v", err)
	}

	// Registering the same URL again returns the existing target.
	dup := &models.Target{ID: "t_2", Name: "API again", URL: "https://ok.example", CreatedAt: time.Now().UTC()}
	existing, err := store.CreateTarget(ctx, dup)
	if !errors.Is(err, storage.ErrDuplicateKey) {
		t.Fatalf("CreateTarget(duplicate url) error = %v, want ErrDuplicateKey", err)
	}
	if existing.ID != "t_1" {
		t.Errorf("duplicate create returned id %q, want t_1", existing.ID)
	}

	got, err := store.GetTargetByID(ctx, "t_1")
	if err != nil {
		t.Fatalf("GetTargetByID() returned unexpected error: %v", err)
	}
	if got.Name != "API" || got.URL != "https://ok.example" {
		t.Errorf("GetTargetByID() = %+v, want name API url https://ok.example", got)
	}

	targets, err := store.ListTargets(ctx)
	if err != nil {
		t.Fatalf("ListTargets() returned unexpected error: %v", err)
	}
	if len(targets) != 1 {
		t.Errorf("ListTargets() returned %d targets, want 1", len(targets))
	}

	if err := store.DeleteTarget(ctx, "t_1"); err != nil {
		t.Fatalf("DeleteTarget() returned unexpected error: %v", err)
	}
	if _, err := store.GetTargetByID(ctx, "t_1"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("GetTargetByID() after delete error = %v, want ErrNotFound", err)
	}
	if err := store.DeleteTarget(ctx, "t_1"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("DeleteTarget() on a missing target error = %v, want ErrNotFound", err)
	}
}

func TestUpsertHealthIsIdempotentPerTarget(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if _, err := store.CreateTarget(ctx, &models.Target{ID: "t1", Name: "a", URL: "https://a.example", CreatedAt: time.Now().UTC()}); err != nil {
		t.Fatalf("CreateTarget() returned unexpected error: %v", err)
	}

	now := time.Now().UTC().Truncate(time.Millisecond)
	first := &models.HealthRecord{
		TargetID:           "t1",
		Status:             models.StatusDown,
		LastCheckedAt:      now,
		LastResponseTimeMS: int64Ptr(10000),
		UpdatedAt:          now,
	}
	if err := store.UpsertHealth(ctx, first); err != nil {
		t.Fatalf("UpsertHealth() returned unexpected error: %v", err)
	}

	later := now.Add(15 * time.Minute)
	second := &models.HealthRecord{
		TargetID:           "t1",
		Status:             models.StatusUp,
		LastCheckedAt:      later,
		LastResponseTimeMS: int64Ptr(120),
		UpdatedAt:          later,
	}
	if err := store.UpsertHealth(ctx, second); err != nil {
		t.Fatalf("second UpsertHealth() returned unexpected error: %v", err)
	}

	records, err := store.ListHealth(ctx)
	if err != nil {
		t.Fatalf("ListHealth() returned unexpected error: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("got %d health records for one target, want 1", len(records))
	}

	record := records[0]
	if record.Status != models.StatusUp {
		t.Errorf("status = %s, want UP (latest write wins)", record.Status)
	}
	if record.LastResponseTimeMS == nil || *record.LastResponseTimeMS != 120 {
		t.Errorf("response time = %v, want 120", record.LastResponseTimeMS)
	}
	if !record.LastCheckedAt.Equal(later) {
		t.Errorf("last checked at = %v, want %v", record.LastCheckedAt, later)
	}
}

func TestGetHealthNotFound(t *testing.T) {
	store := newTestStore(t)
	if _, err := store.GetHealth(context.Background(), "missing"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("GetHealth(missing) error = %v, want ErrNotFound", err)
	}
}

func TestDeleteTargetCascadesHealthRecord(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if _, err := store.CreateTarget(ctx, &models.Target{ID: "t1", Name: "a", URL: "https://a.example", CreatedAt: time.Now().UTC()}); err != nil {
		t.Fatalf("CreateTarget() returned unexpected error: %v", err)
	}
	now := time.Now().UTC()
	if err := store.UpsertHealth(ctx, &models.HealthRecord{TargetID: "t1", Status: models.StatusUp, LastCheckedAt: now, UpdatedAt: now}); err != nil {
		t.Fatalf("UpsertHealth() returned unexpected error: %v", err)
	}

	if err := store.DeleteTarget(ctx, "t1"); err != nil {
		t.Fatalf("DeleteTarget() returned unexpected error: %v", err)
	}
	if _, err := store.GetHealth(ctx, "t1"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("GetHealth() after target delete error = %v, want ErrNotFound", err)
	}
	records, err := store.ListHealth(ctx)
	if err != nil {
		t.Fatalf("ListHealth() returned unexpected error: %v", err)
	}
	if len(records) != 0 {
		t.Errorf("ListHealth() returned %d orphaned records after target delete, want 0", len(records))
	}
}

func TestSettingsRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	// A fresh database reads as monitoring off, logged out.
	settings, err := store.GetSettings(ctx)
	if err != nil {
		t.Fatalf("GetSettings() returned unexpected error: %v", err)
	}
	if settings.MonitoringEnabled || settings.IntervalMinutes != 0 || settings.SessionToken != "" {
		t.Errorf("fresh settings = %+v, want zero values", settings)
	}

	if err := store.SetMonitoring(ctx, true, 30); err != nil {
		t.Fatalf("SetMonitoring() returned unexpected error: %v", err)
	}
	if err := store.SetSessionToken(ctx, "tok-1"); err != nil {
		t.Fatalf("SetSessionToken() returned unexpected error: %v", err)
	}

	settings, err = store.GetSettings(ctx)
	if err != nil {
		t.Fatalf("GetSettings() returned unexpected error: %v", err)
	}
	if !settings.MonitoringEnabled || settings.IntervalMinutes != 30 || settings.SessionToken != "tok-1" {
		t.Errorf("settings = %+v, want enabled at 30 with token tok-1", settings)
	}

	// Overwrites replace, never duplicate.
	if err := store.SetMonitoring(ctx, false, 60); err != nil {
		t.Fatalf("SetMonitoring() returned unexpected error: %v", err)
	}
	if err := store.SetSessionToken(ctx, ""); err != nil {
		t.Fatalf("SetSessionToken() returned unexpected error: %v", err)
	}
	settings, _ = store.GetSettings(ctx)
	if settings.MonitoringEnabled || settings.IntervalMinutes != 60 || settings.SessionToken != "" {
		t.Errorf("settings = %+v, want disabled at 60 with empty token", settings)
	}
}
