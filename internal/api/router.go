package api

import (
	"net/http"

	"github.com/gorilla/mux"
)

// NewRouter creates the router for the engine's local API.
func NewRouter(h *Handlers) *mux.Router {
	r := mux.NewRouter()

	r.HandleFunc("/v1/targets", h.CreateTarget).Methods(http.MethodPost)
	r.HandleFunc("/v1/targets", h.ListTargets).Methods(http.MethodGet)
	r.HandleFunc("/v1/targets/{target_id}", h.GetTarget).Methods(http.MethodGet)
	r.HandleFunc("/v1/targets/{target_id}", h.DeleteTarget).Methods(http.MethodDelete)

	r.HandleFunc("/v1/health", h.ListHealth).Methods(http.MethodGet)
	r.HandleFunc("/v1/health/{target_id}", h.GetHealth).Methods(http.MethodGet)

	r.HandleFunc("/v1/monitoring", h.MonitoringStatus).Methods(http.MethodGet)
	r.HandleFunc("/v1/monitoring/start", h.StartMonitoring).Methods(http.MethodPost)
	r.HandleFunc("/v1/monitoring/stop", h.StopMonitoring).Methods(http.MethodPost)

	r.HandleFunc("/v1/session", h.SessionStatus).Methods(http.MethodGet)
	r.HandleFunc("/v1/session/login", h.Login).Methods(http.MethodPost)
	r.HandleFunc("/v1/session/logout", h.Logout).Methods(http.MethodPost)

	r.HandleFunc("/v1/events", h.Events).Methods(http.MethodGet)
	r.HandleFunc("/healthz", h.Healthz).Methods(http.MethodGet)

	return r
}
