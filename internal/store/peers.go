package store

import (
	"context"
	"fmt"
	"log"
	"net/netip"
	"strings"
	"sync"

	"portalctl/internal/api"
	"portalctl/internal/encoding"
	"portalctl/internal/model"
	"portalctl/internal/notify"
)

// Peer sort keys. Addresses sorts by the numeric value of the first
// address; IsConnected and Traffic pull from the stats side-table.
const (
	PeerSortDisplayName = "DisplayName"
	PeerSortIdentifier  = "Identifier"
	PeerSortUser        = "UserIdentifier"
	PeerSortAddresses   = "Addresses"
	PeerSortConnected   = "IsConnected"
	PeerSortTraffic     = "Traffic"
)

// PeerStore caches the peers of the selected interface.
type PeerStore struct {
	*Collection[model.Peer]

	client *api.Client
	notes  notify.Notifier

	mu           sync.RWMutex
	prepared     model.Peer
	statsEnabled bool
	stats        map[string]model.PeerStatus
	traffic      map[string]model.TrafficDelta
}

func NewPeerStore(client *api.Client, notes notify.Notifier) *PeerStore {
	s := &PeerStore{
		Collection: NewCollection(
			func(p model.Peer) string { return p.Identifier },
			func(p model.Peer, filter string) bool {
				return strings.Contains(p.DisplayName, filter) || strings.Contains(p.Identifier, filter)
			},
		),
		client:  client,
		notes:   notes,
		stats:   map[string]model.PeerStatus{},
		traffic: map[string]model.TrafficDelta{},
	}
	return s
}

// LoadPeers replaces the collection with the peers of the given interface.
// Read semantics: failures empty the collection and notify, no error is
// returned. The realtime traffic overlay is discarded either way.
func (s *PeerStore) LoadPeers(ctx context.Context, interfaceId string) {
	s.SetFetching(true)

	var peers []model.Peer
	err := s.client.Get(ctx, "/peer/iface/"+encoding.Base64URL(interfaceId)+"/all", &peers)
	if err != nil {
		peers = nil
		log.Printf("peer list fetch failed iface=%s: %v", interfaceId, err)
		s.notes.Notify(notify.New("Backend Connection Failure", "Failed to load peers!", notify.TypeInfo))
	}
	s.SetItems(peers)

	s.mu.Lock()
	s.traffic = map[string]model.TrafficDelta{}
	s.mu.Unlock()
}

// LoadStats replaces the authoritative stats snapshot for the interface.
func (s *PeerStore) LoadStats(ctx context.Context, interfaceId string) {
	var stats model.PeerStats
	err := s.client.Get(ctx, "/peer/stats/"+encoding.Base64URL(interfaceId), &stats)
	if err != nil {
		log.Printf("peer stats fetch failed iface=%s: %v", interfaceId, err)
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

// PreparePeer fetches a peer template with interface defaults applied.
func (s *PeerStore) PreparePeer(ctx context.Context, interfaceId string) {
	var peer model.Peer
	err := s.client.Get(ctx, "/peer/iface/"+encoding.Base64URL(interfaceId)+"/prepare", &peer)
	if err != nil {
		peer = model.Peer{}
		log.Printf("prepared peer fetch failed iface=%s: %v", interfaceId, err)
		s.notes.Notify(notify.New("Backend Connection Failure", "Failed to load prepared peer!", notify.TypeInfo))
	}

	s.mu.Lock()
	s.prepared = peer
	s.mu.Unlock()
}

// Prepared returns the last prepared peer template.
func (s *PeerStore) Prepared() model.Peer {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.prepared
}

// CreatePeer creates a peer on the given interface and inserts the
// backend's version into the collection.
func (s *PeerStore) CreatePeer(ctx context.Context, interfaceId string, peer model.Peer) error {
	s.SetFetching(true)

	var created model.Peer
	err := s.client.Post(ctx, "/peer/iface/"+encoding.Base64URL(interfaceId)+"/new", peer, &created)
	if err != nil {
		s.SetFetching(false)
		return err
	}
	s.Insert(created)
	return nil
}

// CreateMultiplePeers asks the backend to create one peer per identifier
// (e.g. one per selected user) and reloads nothing; the backend returns
// the created peers which are appended to the collection.
func (s *PeerStore) CreateMultiplePeers(ctx context.Context, interfaceId string, req model.MultiPeerRequest) error {
	s.SetFetching(true)

	var created []model.Peer
	err := s.client.Post(ctx, "/peer/iface/"+encoding.Base64URL(interfaceId)+"/multiplenew", req, &created)
	if err != nil {
		s.SetFetching(false)
		s.notes.Notify(notify.New("Backend Connection Failure", "Failed to create peers!", notify.TypeInfo))
		return err
	}
	for _, p := range created {
		s.Insert(p)
	}
	s.SetFetching(false)
	s.notes.Notify(notify.New("Peers created", fmt.Sprintf("%d peers created!", len(created)), notify.TypeSuccess))
	return nil
}

// UpdatePeer stores the peer and replaces it in the collection.
func (s *PeerStore) UpdatePeer(ctx context.Context, id string, peer model.Peer) error {
	s.SetFetching(true)

	var updated model.Peer
	err := s.client.Put(ctx, "/peer/"+encoding.Base64URL(id), peer, &updated)
	if err != nil {
		s.SetFetching(false)
		return err
	}
	s.Replace(id, updated)
	return nil
}

// DeletePeer removes the peer from the backend and the collection.
func (s *PeerStore) DeletePeer(ctx context.Context, id string) error {
	s.SetFetching(true)

	if err := s.client.Delete(ctx, "/peer/"+encoding.Base64URL(id), nil); err != nil {
		s.SetFetching(false)
		return err
	}
	s.Remove(id)
	return nil
}

// BulkDelete removes several peers at once.
func (s *PeerStore) BulkDelete(ctx context.Context, ids []string) error {
	s.SetFetching(true)

	err := s.client.Post(ctx, "/peer/bulk-delete", model.BulkPeerRequest{Identifiers: ids}, nil)
	if err != nil {
		s.SetFetching(false)
		s.notes.Notify(notify.New("Backend Connection Failure", "Failed to delete peers!", notify.TypeInfo))
		return err
	}
	s.Remove(ids...)
	s.notes.Notify(notify.New("Peers deleted", fmt.Sprintf("%d peers deleted!", len(ids)), notify.TypeSuccess))
	return nil
}

// BulkEnable re-enables several peers at once.
func (s *PeerStore) BulkEnable(ctx context.Context, ids []string) error {
	s.SetFetching(true)

	err := s.client.Post(ctx, "/peer/bulk-enable", model.BulkPeerRequest{Identifiers: ids}, nil)
	if err != nil {
		s.SetFetching(false)
		s.notes.Notify(notify.New("Backend Connection Failure", "Failed to enable peers!", notify.TypeInfo))
		return err
	}
	s.Update(ids, func(p *model.Peer) {
		p.Disabled = false
		p.DisabledReason = ""
	})
	s.notes.Notify(notify.New("Peers enabled", fmt.Sprintf("%d peers enabled!", len(ids)), notify.TypeSuccess))
	return nil
}

// BulkDisable disables several peers at once, storing the given reason.
func (s *PeerStore) BulkDisable(ctx context.Context, ids []string, reason string) error {
	s.SetFetching(true)

	err := s.client.Post(ctx, "/peer/bulk-disable", model.BulkPeerRequest{Identifiers: ids, Reason: reason}, nil)
	if err != nil {
		s.SetFetching(false)
		s.notes.Notify(notify.New("Backend Connection Failure", "Failed to disable peers!", notify.TypeInfo))
		return err
	}
	s.Update(ids, func(p *model.Peer) {
		p.Disabled = true
		p.DisabledReason = reason
	})
	s.notes.Notify(notify.New("Peers disabled", fmt.Sprintf("%d peers disabled!", len(ids)), notify.TypeSuccess))
	return nil
}

// ConfigText fetches the peer's WireGuard configuration in the given
// style (e.g. "wgquick").
func (s *PeerStore) ConfigText(ctx context.Context, id, style string) (string, error) {
	var cfg string
	path := "/peer/config/" + encoding.Base64URL(id)
	if style != "" {
		path += "?style=" + style
	}
	if err := s.client.Get(ctx, path, &cfg); err != nil {
		return "", err
	}
	return cfg, nil
}

// ConfigQR fetches the peer's configuration as a QR code image.
func (s *PeerStore) ConfigQR(ctx context.Context, id string) ([]byte, error) {
	return s.client.GetRaw(ctx, "/peer/config-qr/"+encoding.Base64URL(id))
}

// Statistics returns the authoritative snapshot for the peer, or a zero
// value when stats are disabled or the id is unknown.
func (s *PeerStore) Statistics(id string) model.PeerStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.statsEnabled {
		return model.PeerStatus{}
	}
	return s.stats[id]
}

// PeerIds returns the identifiers of all cached peers.
func (s *PeerStore) PeerIds() []string {
	items := s.All()
	ids := make([]string, 0, len(items))
	for _, p := range items {
		ids = append(ids, p.Identifier)
	}
	return ids
}

// TrafficTotals returns the authoritative byte counters for the peer.
func (s *PeerStore) TrafficTotals(id string) (uint64, uint64, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.statsEnabled {
		return 0, 0, false
	}
	st, ok := s.stats[id]
	if !ok {
		return 0, 0, false
	}
	return st.BytesReceived, st.BytesTransmitted, true
}

// StatsEnabled reports whether the backend collects peer stats.
func (s *PeerStore) StatsEnabled() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.statsEnabled
}

// TrafficStats returns the realtime traffic overlay for the peer. It is
// independent of the authoritative snapshot and reset on every reload.
func (s *PeerStore) TrafficStats(id string) model.TrafficDelta {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.traffic[id]
}

// ApplyTrafficDelta records an incremental realtime update.
func (s *PeerStore) ApplyTrafficDelta(delta model.TrafficDelta) {
	if delta.EntityId == "" {
		return
	}
	s.mu.Lock()
	s.traffic[delta.EntityId] = delta
	s.mu.Unlock()
}

// SetSortKey installs the sort order for filtered views. An empty key
// removes sorting; descending reverses the order.
func (s *PeerStore) SetSortKey(key string, descending bool) {
	if key == "" {
		s.SetSorter(nil)
		return
	}

	less := s.peerLess(key)
	s.SetSorter(func(items []model.Peer) {
		if descending {
			stableSort(items, func(a, b model.Peer) bool { return less(b, a) })
			return
		}
		stableSort(items, less)
	})
}

func (s *PeerStore) peerLess(key string) func(a, b model.Peer) bool {
	switch key {
	case PeerSortAddresses:
		return func(a, b model.Peer) bool {
			return firstAddr(a.Addresses).Less(firstAddr(b.Addresses))
		}
	case PeerSortConnected:
		return func(a, b model.Peer) bool {
			// disconnected before connected, ascending
			ac, bc := s.Statistics(a.Identifier).IsConnected, s.Statistics(b.Identifier).IsConnected
			return !ac && bc
		}
	case PeerSortTraffic:
		return func(a, b model.Peer) bool {
			return s.trafficTotal(a.Identifier) < s.trafficTotal(b.Identifier)
		}
	case PeerSortIdentifier:
		return func(a, b model.Peer) bool { return a.Identifier < b.Identifier }
	case PeerSortUser:
		return func(a, b model.Peer) bool { return a.UserIdentifier < b.UserIdentifier }
	default:
		return func(a, b model.Peer) bool { return a.DisplayName < b.DisplayName }
	}
}

func (s *PeerStore) trafficTotal(id string) uint64 {
	st := s.Statistics(id)
	return st.BytesReceived + st.BytesTransmitted
}

// firstAddr parses the numeric value of the first address of a peer.
// Peers without addresses sort first.
func firstAddr(addresses []string) netip.Addr {
	if len(addresses) == 0 {
		return netip.Addr{}
	}
	raw := addresses[0]
	if prefix, err := netip.ParsePrefix(raw); err == nil {
		return prefix.Addr()
	}
	if addr, err := netip.ParseAddr(raw); err == nil {
		return addr
	}
	return netip.Addr{}
}
