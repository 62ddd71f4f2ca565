package probe

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"upwatch/internal/models"
)

func TestProbe_SuccessOn2xx(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	p := New(5 * time.Second)
	outcome := p.Probe(context.Background(), models.Target{ID: "t1", URL: server.URL})

	if !outcome.Success {
		t.Errorf("Probe() success = false, want true")
	}
	if outcome.StatusCode == nil || *outcome.StatusCode != http.StatusOK {
		t.Errorf("Probe() status code = %v, want 200", outcome.StatusCode)
	}
	if outcome.Error != nil {
		t.Errorf("Probe() error = %q, want nil", *outcome.Error)
	}
	if outcome.ElapsedMS < 0 {
		t.Errorf("Probe() elapsed = %d, want >= 0", outcome.ElapsedMS)
	}
	if outcome.TargetID != "t1" {
		t.Errorf("Probe() target id = %q, want t1", outcome.TargetID)
	}
}

func TestProbe_FailureOnNon2xx(t *testing.T) {
	for _, status := range []int{http.StatusMovedPermanently, http.StatusNotFound, http.StatusInternalServerError} {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(status)
		}))

		p := New(5 * time.Second)
		outcome := p.Probe(context.Background(), models.Target{ID: "t1", URL: server.URL})
		server.Close()

		if outcome.Success {
			t.Errorf("Probe() with status %d: success = true, want false", status)
		}
		if outcome.StatusCode == nil || *outcome.StatusCode != status {
			t.Errorf("Probe() status code = %v, want %d", outcome.StatusCode, status)
		}
		if outcome.Error == nil || *outcome.Error == "" {
			t.Errorf("Probe() with status %d: want a non-empty error reason", status)
		}
	}
}

func TestProbe_TransportErrorIsCaptured(t *testing.T) {
	// Closed server: connection refused.
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	p := New(2 * time.Second)
	outcome := p.Probe(context.Background(), models.Target{ID: "t1", URL: url})

	if outcome.Success {
		t.Errorf("Probe() success = true, want false")
	}
	if outcome.StatusCode != nil {
		t.Errorf("Probe() status code = %d, want nil", *outcome.StatusCode)
	}
	if outcome.Error == nil || *outcome.Error == "" {
		t.Error("Probe() want a non-empty error reason for transport failure")
	}
}

func TestProbe_TimeoutRecordsConfiguredTimeout(t *testing.T) {
	block := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-block
	}))
	defer server.Close()
	defer close(block)

	timeout := 100 * time.Millisecond
	p := New(timeout)
	outcome := p.Probe(context.Background(), models.Target{ID: "t2", URL: server.URL})

	if outcome.Success {
		t.Errorf("Probe() success = true, want false")
	}
	if outcome.ElapsedMS != timeout.Milliseconds() {
		t.Errorf("Probe() elapsed = %d, want configured timeout %d", outcome.ElapsedMS, timeout.Milliseconds())
	}
	if outcome.Error == nil || *outcome.Error != "request timed out" {
		t.Errorf("Probe() error = %v, want \"request timed out\"", outcome.Error)
	}
}

func TestProbe_InvalidURL(t *testing.T) {
	p := New(time.Second)
	outcome := p.Probe(context.Background(), models.Target{ID: "t3", URL: "http://\x00invalid"})

	if outcome.Success {
		t.Errorf("Probe() success = true, want false")
	}
	if outcome.Error == nil {
		t.Error("Probe() want an error reason for an unparsable url")
	}
}
