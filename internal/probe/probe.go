package probe

import (
	"context"
	"errors"
	"net/http"
	"time"

	"upwatch/internal/models"
)

// Prober issues a single HTTP GET per target and classifies the outcome.
type Prober struct {
	client  *http.Client
	timeout time.Duration
}

// New creates a Prober whose probes each carry the given timeout.
func New(timeout time.Duration) *Prober {
	return &Prober{
		client: &http.Client{
			Timeout: timeout,
		},
		timeout: timeout,
	}
}

// Probe performs one GET against the target URL and returns the classified
// outcome. Any transport failure or timeout is captured in the outcome;
// Probe never fails a cycle and never panics out of a single check.
func (p *Prober) Probe(ctx context.Context, target models.Target) models.ProbeOutcome {
	outcome := models.ProbeOutcome{TargetID: target.ID}

	probeCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	start := time.Now()
	req, err := http.NewRequestWithContext(probeCtx, http.MethodGet, target.URL, nil)
	if err != nil {
		msg := err.Error()
		outcome.Error = &msg
		return outcome
	}

	resp, err := p.client.Do(req)
	elapsed := time.Since(start).Milliseconds()
	if err != nil {
		msg := err.Error()
		if errors.Is(err, context.DeadlineExceeded) || probeCtx.Err() != nil {
			msg = "request timed out"
			// A timed-out probe records the configured timeout as its
			// time-to-failure.
			elapsed = p.timeout.Milliseconds()
		}
		outcome.Error = &msg
		outcome.ElapsedMS = clampElapsed(elapsed)
		return outcome
	}
	defer resp.Body.Close()

	status := resp.StatusCode
	outcome.StatusCode = &status
	outcome.ElapsedMS = clampElapsed(elapsed)
	if status >= 200 && status < 300 {
		outcome.Success = true
	} else {
		msg := http.StatusText(status)
		outcome.Error = &msg
	}
	return outcome
}

func clampElapsed(ms int64) int64 {
	if ms < 0 {
		return 0
	}
	return ms
}
