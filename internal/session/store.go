// Package session tracks the authentication state of the portal client:
// LoggedOut or LoggedIn. It rehydrates from the durable state file at
// startup; a background session check reconciles it opportunistically.
package session

import (
	"context"
	"errors"
	"log"
	"sync"

	"portalctl/internal/api"
	"portalctl/internal/model"
	"portalctl/internal/notify"
)

// ErrNotAuthenticated is returned by LoadSession when the backend reports
// an unauthenticated session.
var ErrNotAuthenticated = errors.New("session not authenticated")

// Store holds the session record, the login providers and the pending
// return URL.
type Store struct {
	mu        sync.RWMutex
	path      string
	state     State
	providers []model.LoginProviderInfo

	client *api.Client
	notes  notify.Notifier
}

// NewStore rehydrates the session from the state file at path. No network
// request is made.
func NewStore(path string, notes notify.Notifier) (*Store, error) {
	st, err := LoadState(path)
	if err != nil {
		return nil, err
	}
	return &Store{path: path, state: *st, notes: notes}, nil
}

// AttachClient wires the API client. The store exists before the client
// because the client sources its identity header from here.
func (s *Store) AttachClient(client *api.Client) {
	s.client = client
}

// Identity implements api.IdentitySource.
func (s *Store) Identity() (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.state.User == nil {
		return "", false
	}
	return s.state.User.UserIdentifier, true
}

// IsAuthenticated reports whether a user record is present.
func (s *Store) IsAuthenticated() bool {
	_, ok := s.Identity()
	return ok
}

// IsAdmin reports the admin flag of the logged-in user.
func (s *Store) IsAdmin() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.User != nil && s.state.User.IsAdmin
}

// UserIdentifier returns the logged-in user id, or "unknown".
func (s *Store) UserIdentifier() string {
	if uid, ok := s.Identity(); ok {
		return uid
	}
	return "unknown"
}

// User returns a copy of the session record, or nil while logged out.
func (s *Store) User() *model.Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.state.User == nil {
		return nil
	}
	u := *s.state.User
	return &u
}

// SetReturnURL records the intended destination before a login redirect.
func (s *Store) SetReturnURL(link string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.ReturnURL = link
	s.persistLocked()
}

// ResetReturnURL clears the pending return URL.
func (s *Store) ResetReturnURL() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.ReturnURL = ""
	s.persistLocked()
}

// ReturnURL returns the pending return URL, or "/" if none is set.
func (s *Store) ReturnURL() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.state.ReturnURL == "" {
		return "/"
	}
	return s.state.ReturnURL
}

// Language returns the persisted language preference.
func (s *Store) Language() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.Language
}

// SetLanguage persists the language preference.
func (s *Store) SetLanguage(lang string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.Language = lang
	s.persistLocked()
}

// Providers returns the external login providers from the last fetch.
func (s *Store) Providers() []model.LoginProviderInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.LoginProviderInfo, len(s.providers))
	copy(out, s.providers)
	return out
}

// LoadProviders fetches the external login providers. Read semantics: the
// list is emptied and the user notified on failure, no error is returned.
func (s *Store) LoadProviders(ctx context.Context) {
	var providers []model.LoginProviderInfo
	if err := s.client.Get(ctx, "/auth/providers", &providers); err != nil {
		providers = nil
		log.Printf("auth providers fetch failed: %v", err)
		s.notes.Notify(notify.New("Backend Connection Failure", "Failed to load external authentication providers!", notify.TypeInfo))
	}
	s.mu.Lock()
	s.providers = providers
	s.mu.Unlock()
}

// LoadSession reconciles the local session against the backend. A response
// that reports LoggedIn=false clears the local state and returns
// ErrNotAuthenticated.
func (s *Store) LoadSession(ctx context.Context) (string, error) {
	var info model.SessionInfo
	if err := s.client.Get(ctx, "/auth/session", &info); err != nil {
		s.setUser(nil)
		return "", err
	}
	if !info.LoggedIn {
		s.setUser(nil)
		return "", ErrNotAuthenticated
	}

	s.ResetReturnURL()
	s.setUser(&model.Session{
		UserIdentifier: deref(info.UserIdentifier),
		Firstname:      deref(info.UserFirstname),
		Lastname:       deref(info.UserLastname),
		Email:          deref(info.UserEmail),
		IsAdmin:        info.IsAdmin,
	})
	return deref(info.UserIdentifier), nil
}

// Login performs a credential login. On failure the local state is cleared
// and the error propagated so the caller can keep the form open.
func (s *Store) Login(ctx context.Context, username, password string) (string, error) {
	var user model.User
	err := s.client.Post(ctx, "/auth/login", model.LoginRequest{Username: username, Password: password}, &user)
	if err != nil {
		log.Printf("login failed: %v", err)
		s.setUser(nil)
		return "", errors.New("login failed")
	}

	s.ResetReturnURL()
	s.setUser(&model.Session{
		UserIdentifier: user.Identifier,
		Firstname:      user.Firstname,
		Lastname:       user.Lastname,
		Email:          user.Email,
		IsAdmin:        user.IsAdmin,
	})
	return user.Identifier, nil
}

// Logout clears the local session first, then tells the backend on a best
// effort basis.
func (s *Store) Logout(ctx context.Context) {
	s.setUser(nil)
	s.ResetReturnURL()

	if err := s.client.Post(ctx, "/auth/logout", nil, nil); err != nil {
		log.Printf("logout request failed: %v", err)
	}

	s.notes.Notify(notify.New("Logged Out", "Logout successful!", notify.TypeWarn))
}

// ForceLogout is the 401/403 side effect: it drops the local session
// without a network round trip. Wired as the API client's auth failure
// hook, so it must not call back into the client.
func (s *Store) ForceLogout() {
	if !s.IsAuthenticated() {
		return
	}
	log.Printf("automatic logout initiated")
	s.setUser(nil)
	s.ResetReturnURL()
	s.notes.Notify(notify.New("Logged Out", "Session expired, please log in again.", notify.TypeWarn))
}

func (s *Store) setUser(user *model.Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.User = user
	s.persistLocked()
}

func (s *Store) persistLocked() {
	if s.path == "" {
		return
	}
	st := s.state
	if err := SaveState(s.path, &st); err != nil {
		log.Printf("session state save failed: %v", err)
	}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
