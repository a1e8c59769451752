package app

import (
	"path/filepath"
	"testing"

	"portalctl/internal/config"
	"portalctl/internal/notify"
)

func testConfig(t *testing.T) config.Config {
	t.Helper()
	return config.Config{Portal: &config.PortalConfig{
		BaseURL:  "https://vpn.example.com/api/v0",
		StateDir: filepath.Join(t.TempDir(), "state"),
	}}
}

func TestNewWiresComponents(t *testing.T) {
	t.Parallel()

	a, err := New(testConfig(t), &notify.Recorder{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if a.Client == nil || a.Session == nil || a.Security == nil {
		t.Fatalf("core components missing: %+v", a)
	}
	if a.Interfaces == nil || a.Peers == nil || a.Users == nil || a.Audit == nil || a.Profile == nil || a.Settings == nil {
		t.Fatalf("stores missing: %+v", a)
	}
	if a.Navigator == nil || a.Jobs == nil || a.Samples == nil {
		t.Fatalf("support components missing: %+v", a)
	}
	if got := a.Realtime.URL(); got != "wss://vpn.example.com/api/v0/ws" {
		t.Fatalf("realtime url = %q", got)
	}
	if a.Session.IsAuthenticated() {
		t.Fatalf("fresh state dir produced an authenticated session")
	}
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	t.Parallel()

	if _, err := New(config.Config{}, nil); err == nil {
		t.Fatalf("New accepted an empty config")
	}

	cfg := testConfig(t)
	cfg.Portal.BaseURL = "ftp://vpn.example.com"
	if _, err := New(cfg, nil); err == nil {
		t.Fatalf("New accepted a non-http base url")
	}
}
