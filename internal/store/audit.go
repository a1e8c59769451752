package store

import (
	"context"
	"log"
	"strconv"
	"strings"

	"portalctl/internal/api"
	"portalctl/internal/model"
	"portalctl/internal/notify"
)

// AuditStore caches the read-only portal audit log.
type AuditStore struct {
	*Collection[model.AuditEntry]

	client *api.Client
	notes  notify.Notifier
}

func NewAuditStore(client *api.Client, notes notify.Notifier) *AuditStore {
	return &AuditStore{
		Collection: NewCollection(
			func(e model.AuditEntry) string { return strconv.FormatUint(e.Id, 10) },
			func(e model.AuditEntry, filter string) bool {
				return strings.Contains(e.Timestamp, filter) ||
					strings.Contains(e.Severity, filter) ||
					strings.Contains(e.Origin, filter) ||
					strings.Contains(e.Message, filter) ||
					strings.Contains(e.ContextUser, filter)
			},
		),
		client: client,
		notes:  notes,
	}
}

// LoadEntries replaces the collection with all audit records.
func (s *AuditStore) LoadEntries(ctx context.Context) {
	s.SetFetching(true)

	var entries []model.AuditEntry
	err := s.client.Get(ctx, "/audit/entries", &entries)
	if err != nil {
		entries = nil
		log.Printf("audit fetch failed: %v", err)
		s.notes.Notify(notify.New("Backend Connection Failure", "Failed to load audit entries!", notify.TypeInfo))
	}
	s.SetItems(entries)
}
