package authority

import (
	"log"
	"net/http"
	"strings"

	"upwatch/internal/session"
)

// credentialPaths are the authority endpoints that issue credentials. A 401
// from one of these means "bad credentials", not "session expired", and must
// pass through without touching the current session.
var credentialPaths = []string{loginPath, registerPath}

// authTransport wraps every outbound authority call: it attaches the bearer
// credential before sending and turns authentication rejections on
// non-credential endpoints into a session revocation.
type authTransport struct {
	base     http.RoundTripper
	sessions *session.Controller
}

func (t *authTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.Header.Get("Authorization") == "" {
		if token, ok := t.sessions.Token(); ok {
			req = req.Clone(req.Context())
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	resp, err := t.base.RoundTrip(req)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode == http.StatusUnauthorized && !isCredentialPath(req.URL.Path) {
		// Concurrent 401s race here; Revoke is compare-and-clear, so only
		// the first caller observes a transition.
		if t.sessions.Revoke(req.Context()) {
			log.Printf("session revoked after unauthorized response from %s", req.URL.Path)
		}
	}
	return resp, nil
}

func isCredentialPath(path string) bool {
	for _, p := range credentialPaths {
		if strings.HasSuffix(path, p) {
			return true
		}
	}
	return false
}
