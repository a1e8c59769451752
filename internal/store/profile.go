package store

import (
	"context"
	"log"
	"strings"
	"sync"

	"portalctl/internal/api"
	"portalctl/internal/encoding"
	"portalctl/internal/model"
	"portalctl/internal/notify"
)

// Identity names whose session the profile store operates on. It is a
// small slice of the session store so the two packages stay decoupled.
type Identity interface {
	UserIdentifier() string
}

// ProfileStore caches the calling user's own account and peers. Unlike
// UserStore it works for non-admins too.
type ProfileStore struct {
	*Collection[model.Peer]

	client *api.Client
	notes  notify.Notifier
	who    Identity

	mu           sync.RWMutex
	user         model.User
	statsEnabled bool
	stats        map[string]model.PeerStatus
}

func NewProfileStore(client *api.Client, notes notify.Notifier, who Identity) *ProfileStore {
	return &ProfileStore{
		Collection: NewCollection(
			func(p model.Peer) string { return p.Identifier },
			func(p model.Peer, filter string) bool {
				return strings.Contains(p.DisplayName, filter) || strings.Contains(p.Identifier, filter)
			},
		),
		client: client,
		notes:  notes,
		who:    who,
		stats:  map[string]model.PeerStatus{},
	}
}

func (s *ProfileStore) selfPath(suffix string) string {
	return "/user/" + encoding.Base64URL(s.who.UserIdentifier()) + suffix
}

// LoadUser refreshes the calling user's own account record.
func (s *ProfileStore) LoadUser(ctx context.Context) {
	var user model.User
	err := s.client.Get(ctx, s.selfPath(""), &user)
	if err != nil {
		user = model.User{}
		log.Printf("profile fetch failed: %v", err)
		s.notes.Notify(notify.New("Backend Connection Failure", "Failed to load user!", notify.TypeInfo))
	}

	s.mu.Lock()
	s.user = user
	s.mu.Unlock()
}

// User returns the cached account record.
func (s *ProfileStore) User() model.User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.user
}

// LoadPeers replaces the collection with the calling user's own peers.
func (s *ProfileStore) LoadPeers(ctx context.Context) {
	s.SetFetching(true)

	var peers []model.Peer
	err := s.client.Get(ctx, s.selfPath("/peers"), &peers)
	if err != nil {
		peers = nil
		log.Printf("profile peer fetch failed: %v", err)
		s.notes.Notify(notify.New("Backend Connection Failure", "Failed to load peers!", notify.TypeInfo))
	}
	s.SetItems(peers)
}

// LoadStats replaces the stats snapshot for the calling user's peers.
func (s *ProfileStore) LoadStats(ctx context.Context) {
	var stats model.PeerStats
	err := s.client.Get(ctx, s.selfPath("/stats"), &stats)
	if err != nil {
		log.Printf("profile stats fetch failed: %v", err)
		s.notes.Notify(notify.New("Backend Connection Failure", "Failed to load peer stats!", notify.TypeInfo))
		stats = model.PeerStats{}
	}

	s.mu.Lock()
	s.statsEnabled = stats.Enabled
	if stats.Stats == nil {
		s.stats = map[string]model.PeerStatus{}
	} else {
		s.stats = stats.Stats
	}
	s.mu.Unlock()
}

// Statistics returns the snapshot for one of the user's peers, or a
// zero value when stats are disabled or the id is unknown.
func (s *ProfileStore) Statistics(id string) model.PeerStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.statsEnabled {
		return model.PeerStatus{}
	}
	return s.stats[id]
}

// EnableApi requests a fresh API token for the calling user.
func (s *ProfileStore) EnableApi(ctx context.Context) error {
	var user model.User
	if err := s.client.Post(ctx, s.selfPath("/api/enable"), nil, &user); err != nil {
		s.notes.Notify(notify.New("Backend Connection Failure", "Failed to enable API!", notify.TypeInfo))
		return err
	}

	s.mu.Lock()
	s.user = user
	s.mu.Unlock()
	s.notes.Notify(notify.New("API enabled", "Successfully enabled API access!", notify.TypeSuccess))
	return nil
}

// DisableApi revokes the calling user's API token.
func (s *ProfileStore) DisableApi(ctx context.Context) error {
	var user model.User
	if err := s.client.Post(ctx, s.selfPath("/api/disable"), nil, &user); err != nil {
		s.notes.Notify(notify.New("Backend Connection Failure", "Failed to disable API!", notify.TypeInfo))
		return err
	}

	s.mu.Lock()
	s.user = user
	s.mu.Unlock()
	s.notes.Notify(notify.New("API disabled", "Successfully disabled API access!", notify.TypeSuccess))
	return nil
}
