package session

import (
	"context"
	"sync"
	"testing"

	"upwatch/internal/models"
	"upwatch/internal/storage/memory"
)

func TestLoginStoresAndPersistsToken(t *testing.T) {
	store := memory.New()
	c := New(store)
	ctx := context.Background()

	user := &models.User{ID: "u1", Email: "op@example.com"}
	if err := c.Login(ctx, "tok-abc", user); err != nil {
		t.Fatalf("Login() returned unexpected error: %v", err)
	}

	token, ok := c.Token()
	if !ok || token != "tok-abc" {
		t.Errorf("Token() = %q, %v, want tok-abc, true", token, ok)
	}
	if !c.LoggedIn() {
		t.Error("LoggedIn() = false, want true")
	}

	settings, err := store.GetSettings(ctx)
	if err != nil {
		t.Fatalf("GetSettings() returned unexpected error: %v", err)
	}
	if settings.SessionToken != "tok-abc" {
		t.Errorf("persisted token = %q, want tok-abc", settings.SessionToken)
	}
}

func TestRestoreLoadsPersistedToken(t *testing.T) {
	store := memory.New()
	ctx := context.Background()
	if err := store.SetSessionToken(ctx, "tok-persisted"); err != nil {
		t.Fatalf("SetSessionToken() returned unexpected error: %v", err)
	}

	c := New(store)
	if err := c.Restore(ctx); err != nil {
		t.Fatalf("Restore() returned unexpected error: %v", err)
	}

	token, ok := c.Token()
	if !ok || token != "tok-persisted" {
		t.Errorf("Token() after Restore = %q, %v, want tok-persisted, true", token, ok)
	}

	// No event is emitted by restoring.
	select {
	case <-c.Revoked():
		t.Error("Restore() emitted a revoked signal")
	default:
	}
}

func TestRevokeClearsSessionAndEmitsOnce(t *testing.T) {
	store := memory.New()
	c := New(store)
	ctx := context.Background()

	if err := c.Login(ctx, "tok", &models.User{ID: "u1"}); err != nil {
		t.Fatalf("Login() returned unexpected error: %v", err)
	}

	if !c.Revoke(ctx) {
		t.Error("Revoke() = false, want true for a live session")
	}
	if c.LoggedIn() {
		t.Error("LoggedIn() = true after Revoke, want false")
	}

	settings, _ := store.GetSettings(ctx)
	if settings.SessionToken != "" {
		t.Errorf("persisted token = %q after Revoke, want empty", settings.SessionToken)
	}

	select {
	case <-c.Revoked():
	default:
		t.Fatal("Revoke() did not emit a revoked signal")
	}

	// The second revoke is a no-op against an already-cleared session.
	if c.Revoke(ctx) {
		t.Error("second Revoke() = true, want false")
	}
	select {
	case <-c.Revoked():
		t.Error("second Revoke() emitted another signal")
	default:
	}
}

func TestConcurrentRevokesEmitExactlyOneSignal(t *testing.T) {
	store := memory.New()
	c := New(store)
	ctx := context.Background()

	if err := c.Login(ctx, "tok", &models.User{ID: "u1"}); err != nil {
		t.Fatalf("Login() returned unexpected error: %v", err)
	}

	const n = 32
	transitions := make(chan bool, n)
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func() {
			defer wg.Done()
			transitions <- c.Revoke(ctx)
		}()
	}
	wg.Wait()
	close(transitions)

	var transitioned int
	for ok := range transitions {
		if ok {
			transitioned++
		}
	}
	if transitioned != 1 {
		t.Errorf("concurrent Revoke() produced %d transitions, want exactly 1", transitioned)
	}

	var delivered int
	for {
		select {
		case <-c.Revoked():
			delivered++
			continue
		default:
		}
		break
	}
	if delivered != 1 {
		t.Errorf("delivered %d revoked signals, want exactly 1", delivered)
	}
}

func TestSignalIsRetainedForOneLateSubscriber(t *testing.T) {
	store := memory.New()
	c := New(store)
	ctx := context.Background()

	if err := c.Login(ctx, "tok", &models.User{ID: "u1"}); err != nil {
		t.Fatalf("Login() returned unexpected error: %v", err)
	}
	c.Revoke(ctx)

	// Nobody was listening when the signal fired; it is delivered once now.
	select {
	case <-c.Revoked():
	default:
		t.Fatal("retained signal was not delivered to a late subscriber")
	}
	select {
	case <-c.Revoked():
		t.Error("signal was replayed more than once")
	default:
	}
}

func TestLogoutEmitsRevokedSignal(t *testing.T) {
	store := memory.New()
	c := New(store)
	ctx := context.Background()

	if err := c.Login(ctx, "tok", &models.User{ID: "u1"}); err != nil {
		t.Fatalf("Login() returned unexpected error: %v", err)
	}
	if !c.Logout(ctx) {
		t.Error("Logout() = false, want true for a live session")
	}
	select {
	case <-c.Revoked():
	default:
		t.Error("Logout() did not emit a revoked signal")
	}
}

func TestClearSilentlyEmitsNothingAndDrains(t *testing.T) {
	store := memory.New()
	c := New(store)
	ctx := context.Background()

	if err := c.Login(ctx, "tok", &models.User{ID: "u1"}); err != nil {
		t.Fatalf("Login() returned unexpected error: %v", err)
	}

	// A pipeline revoke raced the cold-start validation and left a
	// retained signal behind.
	c.Revoke(ctx)

	c.ClearSilently(ctx)
	select {
	case <-c.Revoked():
		t.Error("ClearSilently() left a revoked signal behind")
	default:
	}
	if c.LoggedIn() {
		t.Error("LoggedIn() = true after ClearSilently, want false")
	}
}
