// Package session owns the current credential and its lifecycle. The
// session is a single guarded cell: reads never observe a torn value and
// clearing an already-cleared session is a no-op, so a burst of failing
// requests can only revoke once.
package session

import (
	"context"
	"log"
	"sync"
	"time"

	"upwatch/internal/models"
	"upwatch/internal/storage"
)

// Controller holds the current credential and broadcasts revocation.
type Controller struct {
	store storage.Storer

	mu       sync.Mutex
	token    string
	user     *models.User
	issuedAt time.Time

	// revoked is a one-slot broadcast: a signal sent while nobody is
	// listening is retained for exactly one later delivery, and
	// concurrent signals collapse into that one slot.
	revoked chan struct{}
}

// New creates a logged-out Controller backed by the given store.
func New(store storage.Storer) *Controller {
	return &Controller{
		store:   store,
		revoked: make(chan struct{}, 1),
	}
}

// Restore loads a previously persisted token into the cell without
// emitting any event. Called once at process start before validation.
func (c *Controller) Restore(ctx context.Context) error {
	settings, err := c.store.GetSettings(ctx)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.token = settings.SessionToken
	return nil
}

// Login stores the credential and transitions to the logged-in state.
func (c *Controller) Login(ctx context.Context, token string, user *models.User) error {
	if err := c.store.SetSessionToken(ctx, token); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.token = token
	c.user = user
	c.issuedAt = time.Now().UTC()
	return nil
}

// Confirm records the validated user identity for an already-restored
// token (startup validation success path).
func (c *Controller) Confirm(user *models.User) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.user = user
}

// Token returns the current credential, if any.
func (c *Controller) Token() (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.token, c.token != ""
}

// CurrentUser returns the authenticated operator, if known.
func (c *Controller) CurrentUser() (*models.User, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.user, c.user != nil
}

// LoggedIn reports whether a credential is present.
func (c *Controller) LoggedIn() bool {
	_, ok := c.Token()
	return ok
}

// Revoke clears the credential in response to an authentication rejection
// and emits the session-revoked signal. The clear is compare-and-clear:
// it returns false, without re-emitting, if the session was already gone.
func (c *Controller) Revoke(ctx context.Context) bool {
	return c.clear(ctx, true)
}

// Logout clears the credential at the operator's request. Like Revoke it
// emits the session-revoked signal so the UI returns to the login screen.
func (c *Controller) Logout(ctx context.Context) bool {
	return c.clear(ctx, true)
}

// ClearSilently clears the credential without emitting the revoked signal.
// Used by cold-start validation, where no subscriber is listening yet and a
// retained signal would cause a spurious navigation later. Any signal the
// request pipeline emitted while validating is drained as well.
func (c *Controller) ClearSilently(ctx context.Context) bool {
	cleared := c.clear(ctx, false)
	select {
	case <-c.revoked:
	default:
	}
	return cleared
}

func (c *Controller) clear(ctx context.Context, notify bool) bool {
	c.mu.Lock()
	if c.token == "" {
		c.mu.Unlock()
		return false
	}
	c.token = ""
	c.user = nil
	c.issuedAt = time.Time{}
	c.mu.Unlock()

	if err := c.store.SetSessionToken(ctx, ""); err != nil {
		log.Printf("failed to clear persisted session token: %v", err)
	}

	if notify {
		select {
		case c.revoked <- struct{}{}:
		default:
			// slot already holds an undelivered signal
		}
	}
	return true
}

// Revoked exposes the one-slot session-revoked signal channel.
func (c *Controller) Revoked() <-chan struct{} {
	return c.revoked
}
