package models

import "time"

// Status is the last known health classification of a target.
type Status string

const (
	StatusUnknown Status = "UNKNOWN"
	StatusUp      Status = "UP"
	StatusDown    Status = "DOWN"
)

// Target represents a registered HTTP endpoint to be health-checked.
// Targets are created and edited by the management layer; the monitoring
// engine only reads the current list.
type Target struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	URL       string    `json:"url"`
	GroupRef  string    `json:"group_ref,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// HealthRecord is the durable last-known health state of a target.
// Exactly one record exists per target id; writes are idempotent upserts.
type HealthRecord struct {
	TargetID           string    `json:"target_id"`
	Status             Status    `json:"status"`
	LastCheckedAt      time.Time `json:"last_checked_at"`
	LastResponseTimeMS *int64    `json:"last_response_time_ms"` // nil until the first probe completes
	UpdatedAt          time.Time `json:"updated_at"`
}

// ProbeOutcome is the transient result of a single HTTP probe. It is
// produced by the prober, consumed immediately by the reconciler, and
// never stored verbatim.
type ProbeOutcome struct {
	TargetID   string
	Success    bool
	StatusCode *int    // nil on transport errors
	ElapsedMS  int64
	Error      *string // nil on success
}

// User is the authenticated operator identity returned by the authority.
type User struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
}
