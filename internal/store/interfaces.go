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

// InterfaceStore caches all managed interfaces and tracks which one is
// selected. Peer and stats loads are scoped to the selection.
type InterfaceStore struct {
	*Collection[model.Interface]

	client *api.Client
	notes  notify.Notifier

	mu           sync.RWMutex
	selected     string
	prepared     model.Interface
	statsEnabled bool
	stats        map[string]model.InterfaceStatus
	traffic      map[string]model.TrafficDelta
}

func NewInterfaceStore(client *api.Client, notes notify.Notifier) *InterfaceStore {
	return &InterfaceStore{
		Collection: NewCollection(
			func(i model.Interface) string { return i.Identifier },
			func(i model.Interface, filter string) bool {
				return strings.Contains(i.DisplayName, filter) || strings.Contains(i.Identifier, filter)
			},
		),
		client:  client,
		notes:   notes,
		stats:   map[string]model.InterfaceStatus{},
		traffic: map[string]model.TrafficDelta{},
	}
}

// LoadInterfaces replaces the collection. The selection is kept when the
// selected interface still exists, otherwise it falls back to the first
// interface of the new list.
func (s *InterfaceStore) LoadInterfaces(ctx context.Context) {
	s.SetFetching(true)

	var interfaces []model.Interface
	err := s.client.Get(ctx, "/interface/all", &interfaces)
	if err != nil {
		interfaces = nil
		log.Printf("interface list fetch failed: %v", err)
		s.notes.Notify(notify.New("Backend Connection Failure", "Failed to load interfaces!", notify.TypeInfo))
	}
	s.SetItems(interfaces)

	s.mu.Lock()
	s.traffic = map[string]model.TrafficDelta{}
	if _, ok := s.Find(s.selected); !ok {
		s.selected = ""
		if len(interfaces) > 0 {
			s.selected = interfaces[0].Identifier
		}
	}
	s.mu.Unlock()
}

// LoadStats replaces the authoritative interface stats snapshot.
func (s *InterfaceStore) LoadStats(ctx context.Context) {
	var stats model.InterfaceStats
	err := s.client.Get(ctx, "/interface/stats", &stats)
	if err != nil {
		log.Printf("interface stats fetch failed: %v", err)
		s.notes.Notify(notify.New("Backend Connection Failure", "Failed to load interface stats!", notify.TypeInfo))
		stats = model.InterfaceStats{}
	}

	s.mu.Lock()
	s.statsEnabled = stats.Enabled
	if stats.Stats == nil {
		s.stats = map[string]model.InterfaceStatus{}
	} else {
		s.stats = stats.Stats
	}
	s.mu.Unlock()
}

// Select marks the interface as the current one. Unknown ids are ignored.
func (s *InterfaceStore) Select(id string) {
	if _, ok := s.Find(id); !ok {
		return
	}
	s.mu.Lock()
	s.selected = id
	s.mu.Unlock()
}

// Selected returns the currently selected interface.
func (s *InterfaceStore) Selected() (model.Interface, bool) {
	s.mu.RLock()
	id := s.selected
	s.mu.RUnlock()
	if id == "" {
		return model.Interface{}, false
	}
	return s.Find(id)
}

// SelectedId returns the id of the selected interface, or "".
func (s *InterfaceStore) SelectedId() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.selected
}

// PrepareInterface fetches an interface template with fresh keys.
func (s *InterfaceStore) PrepareInterface(ctx context.Context) {
	var iface model.Interface
	err := s.client.Get(ctx, "/interface/prepare", &iface)
	if err != nil {
		iface = model.Interface{}
		log.Printf("prepared interface fetch failed: %v", err)
		s.notes.Notify(notify.New("Backend Connection Failure", "Failed to load prepared interface!", notify.TypeInfo))
	}

	s.mu.Lock()
	s.prepared = iface
	s.mu.Unlock()
}

// Prepared returns the last prepared interface template.
func (s *InterfaceStore) Prepared() model.Interface {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.prepared
}

// InterfaceConfig fetches the rendered configuration file contents.
func (s *InterfaceStore) InterfaceConfig(ctx context.Context, id string) (string, error) {
	var cfg string
	if err := s.client.Get(ctx, "/interface/config/"+encoding.Base64URL(id), &cfg); err != nil {
		return "", err
	}
	return cfg, nil
}

// CreateInterface creates the interface and selects it.
func (s *InterfaceStore) CreateInterface(ctx context.Context, iface model.Interface) error {
	s.SetFetching(true)

	var created model.Interface
	err := s.client.Post(ctx, "/interface/new", iface, &created)
	if err != nil {
		s.SetFetching(false)
		return err
	}
	s.Insert(created)
	s.mu.Lock()
	s.selected = created.Identifier
	s.mu.Unlock()
	return nil
}

// UpdateInterface stores the interface and replaces it in the collection.
func (s *InterfaceStore) UpdateInterface(ctx context.Context, id string, iface model.Interface) error {
	s.SetFetching(true)

	var updated model.Interface
	err := s.client.Put(ctx, "/interface/"+encoding.Base64URL(id), iface, &updated)
	if err != nil {
		s.SetFetching(false)
		return err
	}
	s.Replace(id, updated)
	return nil
}

// DeleteInterface removes the interface. A deleted selection falls back
// to the first remaining interface.
func (s *InterfaceStore) DeleteInterface(ctx context.Context, id string) error {
	s.SetFetching(true)

	if err := s.client.Delete(ctx, "/interface/"+encoding.Base64URL(id), nil); err != nil {
		s.SetFetching(false)
		return err
	}
	s.Remove(id)

	s.mu.Lock()
	if s.selected == id {
		s.selected = ""
		if all := s.All(); len(all) > 0 {
			s.selected = all[0].Identifier
		}
	}
	s.mu.Unlock()
	return nil
}

// ApplyPeerDefaults pushes the interface's peer defaults to all of its
// existing peers.
func (s *InterfaceStore) ApplyPeerDefaults(ctx context.Context, id string, iface model.Interface) error {
	s.SetFetching(true)
	err := s.client.Post(ctx, "/interface/"+encoding.Base64URL(id)+"/apply-peer-defaults", iface, nil)
	s.SetFetching(false)
	if err != nil {
		s.notes.Notify(notify.New("Backend Connection Failure", "Failed to apply peer defaults!", notify.TypeInfo))
		return err
	}
	s.notes.Notify(notify.New("Peer Defaults Applied", "Applied defaults to all available peers!", notify.TypeSuccess))
	return nil
}

// Statistics returns the authoritative snapshot for the interface, or a
// zero value when stats are disabled or the id is unknown.
func (s *InterfaceStore) Statistics(id string) model.InterfaceStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.statsEnabled {
		return model.InterfaceStatus{}
	}
	return s.stats[id]
}

// InterfaceIds returns the identifiers of all cached interfaces.
func (s *InterfaceStore) InterfaceIds() []string {
	items := s.All()
	ids := make([]string, 0, len(items))
	for _, i := range items {
		ids = append(ids, i.Identifier)
	}
	return ids
}

// TrafficTotals returns the authoritative byte counters for the
// interface.
func (s *InterfaceStore) TrafficTotals(id string) (uint64, uint64, bool) {
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

// StatsEnabled reports whether the backend collects interface stats.
func (s *InterfaceStore) StatsEnabled() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.statsEnabled
}

// TrafficStats returns the realtime traffic overlay for the interface.
func (s *InterfaceStore) TrafficStats(id string) model.TrafficDelta {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.traffic[id]
}

// ApplyTrafficDelta records an incremental realtime update.
func (s *InterfaceStore) ApplyTrafficDelta(delta model.TrafficDelta) {
	if delta.EntityId == "" {
		return
	}
	s.mu.Lock()
	s.traffic[delta.EntityId] = delta
	s.mu.Unlock()
}
