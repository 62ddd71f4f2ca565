package api

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"upwatch/internal/authority"
	"upwatch/internal/models"
	"upwatch/internal/monitor"
	"upwatch/internal/session"
	"upwatch/internal/storage"
	"upwatch/internal/urlutil"
)

// AuthorityClient is the slice of the remote authority the handlers need.
type AuthorityClient interface {
	Login(ctx context.Context, email, password string) (string, *models.User, error)
	Logout(ctx context.Context) error
}

// Handlers holds dependencies for the API handlers.
type Handlers struct {
	store     storage.Storer
	scheduler *monitor.Scheduler
	sessions  *session.Controller
	authority AuthorityClient
}

// NewHandlers creates a new Handlers struct.
func NewHandlers(store storage.Storer, scheduler *monitor.Scheduler, sessions *session.Controller, auth AuthorityClient) *Handlers {
	return &Handlers{store: store, scheduler: scheduler, sessions: sessions, authority: auth}
}

// CreateTarget registers a new target to monitor.
func (h *Handlers) CreateTarget(w http.ResponseWriter, r *http.Request) {
	var reqBody struct {
		Name     string `json:"name"`
		URL      string `json:"url"`
		GroupRef string `json:"group_ref"`
	}
	if err := json.NewDecoder(r.Body).Decode(&reqBody); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	normalized, err := urlutil.Normalize(reqBody.URL)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	target := &models.Target{
		ID:        "t_" + uuid.NewString(),
		Name:      reqBody.Name,
		URL:       normalized,
		GroupRef:  reqBody.GroupRef,
		CreatedAt: time.Now().UTC(),
	}

	created, err := h.store.CreateTarget(r.Context(), target)
	if err != nil && !errors.Is(err, storage.ErrDuplicateKey) {
		log.Printf("error creating target: %v", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	statusCode := http.StatusCreated
	if errors.Is(err, storage.ErrDuplicateKey) {
		statusCode = http.StatusOK
	}
	writeJSON(w, statusCode, created)
}

// ListTargets returns all registered targets.
func (h *Handlers) ListTargets(w http.ResponseWriter, r *http.Request) {
	targets, err := h.store.ListTargets(r.Context())
	if err != nil {
		log.Printf("list targets error: %v", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, struct {
		Items []models.Target `json:"items"`
	}{Items: targets})
}

// GetTarget returns a single target by id.
func (h *Handlers) GetTarget(w http.ResponseWriter, r *http.Request) {
	targetID := mux.Vars(r)["target_id"]
	target, err := h.store.GetTargetByID(r.Context(), targetID)
	if errors.Is(err, storage.ErrNotFound) {
		http.Error(w, "target not found", http.StatusNotFound)
		return
	}
	if err != nil {
		log.Printf("get target error: %v", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, target)
}

// DeleteTarget removes a target. Its health record goes with it; the engine
// simply sees one fewer target next cycle.
func (h *Handlers) DeleteTarget(w http.ResponseWriter, r *http.Request) {
	targetID := mux.Vars(r)["target_id"]
	err := h.store.DeleteTarget(r.Context(), targetID)
	if errors.Is(err, storage.ErrNotFound) {
		http.Error(w, "target not found", http.StatusNotFound)
		return
	}
	if err != nil {
		log.Printf("delete target error: %v", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListHealth returns the last known health of every target.
func (h *Handlers) ListHealth(w http.ResponseWriter, r *http.Request) {
	records, err := h.store.ListHealth(r.Context())
	if err != nil {
		log.Printf("list health error: %v", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, struct {
		Items []models.HealthRecord `json:"items"`
	}{Items: records})
}

// GetHealth returns the health record for one target.
func (h *Handlers) GetHealth(w http.ResponseWriter, r *http.Request) {
	targetID := mux.Vars(r)["target_id"]
	record, err := h.store.GetHealth(r.Context(), targetID)
	if errors.Is(err, storage.ErrNotFound) {
		http.Error(w, "no health record for target", http.StatusNotFound)
		return
	}
	if err != nil {
		log.Printf("get health error: %v", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, record)
}

// MonitoringStatus reports the persisted schedule and whether the timer is
// currently armed.
func (h *Handlers) MonitoringStatus(w http.ResponseWriter, r *http.Request) {
	settings, err := h.store.GetSettings(r.Context())
	if err != nil {
		log.Printf("get settings error: %v", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, struct {
		Enabled         bool `json:"enabled"`
		IntervalMinutes int  `json:"interval_minutes"`
		Running         bool `json:"running"`
	}{
		Enabled:         settings.MonitoringEnabled,
		IntervalMinutes: settings.IntervalMinutes,
		Running:         h.scheduler.Running(),
	})
}

// StartMonitoring arms the monitoring schedule.
func (h *Handlers) StartMonitoring(w http.ResponseWriter, r *http.Request) {
	var reqBody struct {
		IntervalMinutes int `json:"interval_minutes"`
	}
	if err := json.NewDecoder(r.Body).Decode(&reqBody); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if err := h.scheduler.Start(r.Context(), reqBody.IntervalMinutes); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// StopMonitoring disables the monitoring schedule.
func (h *Handlers) StopMonitoring(w http.ResponseWriter, r *http.Request) {
	if err := h.scheduler.Stop(r.Context()); err != nil {
		log.Printf("stop monitoring error: %v", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// SessionStatus reports the current session state.
func (h *Handlers) SessionStatus(w http.ResponseWriter, r *http.Request) {
	user, _ := h.sessions.CurrentUser()
	writeJSON(w, http.StatusOK, struct {
		LoggedIn bool         `json:"logged_in"`
		User     *models.User `json:"user,omitempty"`
	}{
		LoggedIn: h.sessions.LoggedIn(),
		User:     user,
	})
}

// Login authenticates against the remote authority and stores the issued
// credential.
func (h *Handlers) Login(w http.ResponseWriter, r *http.Request) {
	var reqBody struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&reqBody); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	token, user, err := h.authority.Login(r.Context(), reqBody.Email, reqBody.Password)
	if errors.Is(err, authority.ErrInvalidCredentials) {
		http.Error(w, "invalid credentials", http.StatusUnauthorized)
		return
	}
	if err != nil {
		log.Printf("login error: %v", err)
		http.Error(w, "authority unavailable", http.StatusBadGateway)
		return
	}

	if err := h.sessions.Login(r.Context(), token, user); err != nil {
		log.Printf("failed to store session: %v", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, struct {
		User *models.User `json:"user"`
	}{User: user})
}

// Logout invalidates the remote credential best-effort and always clears
// the local session.
func (h *Handlers) Logout(w http.ResponseWriter, r *http.Request) {
	if h.sessions.LoggedIn() {
		if err := h.authority.Logout(r.Context()); err != nil {
			log.Printf("remote logout failed: %v", err)
		}
	}
	h.sessions.Logout(r.Context())
	w.WriteHeader(http.StatusNoContent)
}

// Healthz is a simple health check endpoint.
func (h *Handlers) Healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf("failed to encode response: %v", err)
	}
}
