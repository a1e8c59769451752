package store

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"

	"portalctl/internal/api"
	"portalctl/internal/encoding"
	"portalctl/internal/model"
	"portalctl/internal/notify"
)

// UserStore caches all portal accounts, admin only.
type UserStore struct {
	*Collection[model.User]

	client *api.Client
	notes  notify.Notifier

	mu    sync.RWMutex
	peers map[string][]model.Peer // peers per user id
}

func NewUserStore(client *api.Client, notes notify.Notifier) *UserStore {
	return &UserStore{
		Collection: NewCollection(
			func(u model.User) string { return u.Identifier },
			func(u model.User, filter string) bool {
				return strings.Contains(u.Firstname, filter) ||
					strings.Contains(u.Lastname, filter) ||
					strings.Contains(u.Email, filter) ||
					strings.Contains(u.Identifier, filter)
			},
		),
		client: client,
		notes:  notes,
		peers:  map[string][]model.Peer{},
	}
}

// LoadUsers replaces the collection with all portal accounts.
func (s *UserStore) LoadUsers(ctx context.Context) {
	s.SetFetching(true)

	var users []model.User
	err := s.client.Get(ctx, "/user/all", &users)
	if err != nil {
		users = nil
		log.Printf("user list fetch failed: %v", err)
		s.notes.Notify(notify.New("Backend Connection Failure", "Failed to load users!", notify.TypeInfo))
	}
	s.SetItems(users)
}

// LoadUserPeers caches the peers that belong to the given account.
func (s *UserStore) LoadUserPeers(ctx context.Context, id string) {
	var peers []model.Peer
	err := s.client.Get(ctx, "/user/"+encoding.Base64URL(id)+"/peers", &peers)
	if err != nil {
		peers = nil
		log.Printf("user peer fetch failed id=%s: %v", id, err)
		s.notes.Notify(notify.New("Backend Connection Failure", "Failed to load peers for user!", notify.TypeInfo))
	}

	s.mu.Lock()
	s.peers[id] = peers
	s.mu.Unlock()
}

// UserPeers returns the cached peers of the account.
func (s *UserStore) UserPeers(id string) []model.Peer {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.peers[id]
}

// CreateUser creates the account and inserts the backend's version.
func (s *UserStore) CreateUser(ctx context.Context, user model.User) error {
	s.SetFetching(true)

	var created model.User
	err := s.client.Post(ctx, "/user/new", user, &created)
	if err != nil {
		s.SetFetching(false)
		return err
	}
	s.Insert(created)
	return nil
}

// UpdateUser stores the account and replaces it in the collection.
func (s *UserStore) UpdateUser(ctx context.Context, id string, user model.User) error {
	s.SetFetching(true)

	var updated model.User
	err := s.client.Put(ctx, "/user/"+encoding.Base64URL(id), user, &updated)
	if err != nil {
		s.SetFetching(false)
		return err
	}
	s.Replace(id, updated)
	return nil
}

// DeleteUser removes the account from the backend and the collection.
func (s *UserStore) DeleteUser(ctx context.Context, id string) error {
	s.SetFetching(true)

	if err := s.client.Delete(ctx, "/user/"+encoding.Base64URL(id), nil); err != nil {
		s.SetFetching(false)
		return err
	}
	s.Remove(id)
	s.mu.Lock()
	delete(s.peers, id)
	s.mu.Unlock()
	return nil
}

// BulkDisable disables several accounts at once, storing the given
// reason. Exactly one notification is fired for the whole batch.
func (s *UserStore) BulkDisable(ctx context.Context, ids []string, reason string) error {
	s.SetFetching(true)

	err := s.client.Post(ctx, "/user/bulk-disable", model.BulkUserRequest{Identifiers: ids, Reason: reason}, nil)
	if err != nil {
		s.SetFetching(false)
		s.notes.Notify(notify.New("Backend Connection Failure", "Failed to disable users!", notify.TypeInfo))
		return err
	}
	s.Update(ids, func(u *model.User) {
		u.Disabled = true
		u.DisabledReason = reason
	})
	s.notes.Notify(notify.New("Users disabled", fmt.Sprintf("%d users disabled!", len(ids)), notify.TypeSuccess))
	return nil
}
