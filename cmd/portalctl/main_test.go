package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"portalctl/internal/app"
	"portalctl/internal/config"
	"portalctl/internal/model"
	"portalctl/internal/notify"
	"portalctl/internal/router"
)

func newGuardTestApp(t *testing.T, admin bool) *app.App {
	t.Helper()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/csrf":
			json.NewEncoder(w).Encode("test-token")
		case "/auth/login":
			json.NewEncoder(w).Encode(model.User{Identifier: "tester", IsAdmin: admin})
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(server.Close)

	cfg := config.Config{Portal: &config.PortalConfig{BaseURL: server.URL, StateDir: t.TempDir()}}
	a, err := app.New(cfg, &notify.Recorder{})
	if err != nil {
		t.Fatalf("app.New() error = %v", err)
	}
	return a
}

func TestGuardRouteRequiresLogin(t *testing.T) {
	t.Parallel()

	a := newGuardTestApp(t, false)
	err := guardRoute(context.Background(), a, router.PathAudit)
	if err == nil || !strings.Contains(err.Error(), "not logged in") {
		t.Fatalf("guardRoute(audit) error = %v, want login hint", err)
	}
}

func TestGuardRouteKeepsAdminPagesFromRegularUsers(t *testing.T) {
	t.Parallel()

	a := newGuardTestApp(t, false)
	if _, err := a.Session.Login(context.Background(), "tester", "secret"); err != nil {
		t.Fatalf("Login() error = %v", err)
	}

	err := guardRoute(context.Background(), a, router.PathAudit)
	if err == nil || !strings.Contains(err.Error(), "access denied") {
		t.Fatalf("guardRoute(audit) error = %v, want access denied", err)
	}
	if err := guardRoute(context.Background(), a, router.PathProfile); err != nil {
		t.Fatalf("guardRoute(profile) error = %v", err)
	}
}

func TestGuardRouteAllowsAdmins(t *testing.T) {
	t.Parallel()

	a := newGuardTestApp(t, true)
	if _, err := a.Session.Login(context.Background(), "tester", "secret"); err != nil {
		t.Fatalf("Login() error = %v", err)
	}

	for _, path := range []string{router.PathInterfaces, router.PathUsers, router.PathAudit} {
		if err := guardRoute(context.Background(), a, path); err != nil {
			t.Fatalf("guardRoute(%s) error = %v", path, err)
		}
	}
}
