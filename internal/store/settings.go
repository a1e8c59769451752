package store

import (
	"context"
	"log"
	"sync"

	"portalctl/internal/api"
	"portalctl/internal/model"
	"portalctl/internal/notify"
)

// SettingsStore holds backend-controlled feature toggles. It is loaded
// once after login and read all over the place, so it keeps the last
// good value on fetch failure instead of clearing.
type SettingsStore struct {
	client *api.Client
	notes  notify.Notifier

	mu       sync.RWMutex
	settings model.Settings
}

func NewSettingsStore(client *api.Client, notes notify.Notifier) *SettingsStore {
	return &SettingsStore{client: client, notes: notes}
}

// LoadSettings refreshes the toggles from the backend.
func (s *SettingsStore) LoadSettings(ctx context.Context) {
	var settings model.Settings
	err := s.client.Get(ctx, "/config/settings", &settings)
	if err != nil {
		log.Printf("settings fetch failed: %v", err)
		s.notes.Notify(notify.New("Backend Connection Failure", "Failed to load settings!", notify.TypeInfo))
		return
	}

	s.mu.Lock()
	s.settings = settings
	s.mu.Unlock()
}

// Settings returns the current toggles.
func (s *SettingsStore) Settings() model.Settings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.settings
}

// Setting returns a single toggle by its backend name, or nil for an
// unknown key.
func (s *SettingsStore) Setting(key string) any {
	v := s.Settings()
	switch key {
	case "MailLinkOnly":
		return v.MailLinkOnly
	case "PersistentConfigSupported":
		return v.PersistentConfigSupported
	case "SelfProvisioning":
		return v.SelfProvisioning
	case "ApiAdminOnly":
		return v.ApiAdminOnly
	case "WebAuthnEnabled":
		return v.WebAuthnEnabled
	case "MinPasswordLength":
		return v.MinPasswordLength
	case "LoginFormVisible":
		return v.LoginFormVisible
	default:
		return nil
	}
}
