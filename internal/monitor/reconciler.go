package monitor

import (
	"context"
	"fmt"
	"log"
	"time"

	"upwatch/internal/models"
	"upwatch/internal/storage"
)

// StatusReporter propagates a target's new health state to the remote
// authority.
type StatusReporter interface {
	ReportStatus(ctx context.Context, targetID string, status models.Status, responseTimeMS int64) error
}

// CredentialSource exposes the current session credential, if any.
type CredentialSource interface {
	Token() (string, bool)
}

// Reconciler merges probe outcomes into the durable status store and
// best-effort-propagates state changes to the remote authority.
type Reconciler struct {
	store    storage.Storer
	reporter StatusReporter
	creds    CredentialSource
	now      func() time.Time
}

// NewReconciler creates a Reconciler.
func NewReconciler(store storage.Storer, reporter StatusReporter, creds CredentialSource) *Reconciler {
	return &Reconciler{
		store:    store,
		reporter: reporter,
		creds:    creds,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Reconcile applies one probe outcome. The local upsert is unconditional;
// remote propagation is best-effort and its failure never rolls the upsert
// back. Without a credential the engine degrades to local visibility only.
func (r *Reconciler) Reconcile(ctx context.Context, outcome models.ProbeOutcome) error {
	status := models.StatusDown
	if outcome.Success {
		status = models.StatusUp
	}

	elapsed := outcome.ElapsedMS
	if elapsed < 0 {
		elapsed = 0
	}

	now := r.now()
	record := &models.HealthRecord{
		TargetID:           outcome.TargetID,
		Status:             status,
		LastCheckedAt:      now,
		LastResponseTimeMS: &elapsed,
		UpdatedAt:          now,
	}
	if err := r.store.UpsertHealth(ctx, record); err != nil {
		return fmt.Errorf("failed to upsert health for target %s: %w", outcome.TargetID, err)
	}

	if _, ok := r.creds.Token(); !ok {
		// No session; the local cache stays authoritative until login.
		return nil
	}

	if err := r.reporter.ReportStatus(ctx, outcome.TargetID, status, elapsed); err != nil {
		log.Printf("failed to report status for target %s: %v", outcome.TargetID, err)
	}
	return nil
}
