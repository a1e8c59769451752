// Package security holds the CSRF token required for mutating API calls.
package security

import (
	"context"
	"log"
	"sync"

	"portalctl/internal/api"
	"portalctl/internal/notify"
)

// Store caches the backend-issued anti-forgery token.
type Store struct {
	mu     sync.RWMutex
	token  string
	client *api.Client
	notes  notify.Notifier
}

func NewStore(notes notify.Notifier) *Store {
	return &Store{notes: notes}
}

// AttachClient wires the API client. The store is created before the client
// because the client sources its CSRF header from here.
func (s *Store) AttachClient(client *api.Client) {
	s.client = client
}

// CsrfToken returns the last fetched token, or "" if none is known.
func (s *Store) CsrfToken() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

// SetCsrfToken replaces the cached token.
func (s *Store) SetCsrfToken(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = token
}

// LoadToken refreshes the token from the backend. Read semantics: the
// token is cleared and the user notified on failure, no error is returned.
func (s *Store) LoadToken(ctx context.Context) {
	var token string
	if err := s.client.Get(ctx, "/csrf", &token); err != nil {
		s.SetCsrfToken("")
		log.Printf("csrf token fetch failed: %v", err)
		s.notes.Notify(notify.New("Backend Connection Failure", "Failed to load csrf token!", notify.TypeInfo))
		return
	}
	s.SetCsrfToken(token)
}
