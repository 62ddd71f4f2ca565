package api

import (
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"
)

const eventWriteTimeout = 5 * time.Second

var eventUpgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		u, err := url.Parse(origin)
		if err != nil {
			return false
		}
		host := strings.ToLower(strings.TrimSpace(r.Host))
		originHost := strings.ToLower(strings.TrimSpace(u.Host))
		return host == originHost
	},
}

type event struct {
	Type string    `json:"type"`
	At   time.Time `json:"at"`
}

// Events upgrades to a websocket and pushes engine events to the UI layer.
// The only event today is session_revoked; a signal emitted before the UI
// connected is retained by the session controller and delivered here once.
func (h *Handlers) Events(w http.ResponseWriter, r *http.Request) {
	conn, err := eventUpgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-h.sessions.Revoked():
			payload := event{Type: "session_revoked", At: time.Now().UTC()}
			_ = conn.SetWriteDeadline(time.Now().Add(eventWriteTimeout))
			if err := conn.WriteJSON(payload); err != nil {
				return
			}
		case <-done:
			return
		}
	}
}
