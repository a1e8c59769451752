// Package notify delivers user-visible notifications raised by the stores.
// Read operations report backend failures here instead of returning errors,
// so callers always have renderable (possibly empty) state.
package notify

import (
	"log"
	"sync"

	"github.com/google/uuid"
)

const (
	TypeInfo    = ""
	TypeSuccess = "success"
	TypeWarn    = "warn"
	TypeError   = "error"
)

// Notification is a single user-visible message.
type Notification struct {
	ID    string
	Title string
	Text  string
	Type  string
}

// Notifier receives notifications. Implementations must be safe for
// concurrent use.
type Notifier interface {
	Notify(n Notification)
}

// New builds a notification with a fresh unique id.
func New(title, text, typ string) Notification {
	return Notification{
		ID:    uuid.NewString(),
		Title: title,
		Text:  text,
		Type:  typ,
	}
}

// LogNotifier writes notifications to the process log. It is the default
// sink for CLI usage.
type LogNotifier struct{}

func (LogNotifier) Notify(n Notification) {
	if n.Type == TypeInfo {
		log.Printf("notify: %s: %s", n.Title, n.Text)
		return
	}
	log.Printf("notify [%s]: %s: %s", n.Type, n.Title, n.Text)
}

// Recorder collects notifications for inspection in tests.
type Recorder struct {
	mu   sync.Mutex
	seen []Notification
}

func (r *Recorder) Notify(n Notification) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seen = append(r.seen, n)
}

// All returns a copy of the recorded notifications.
func (r *Recorder) All() []Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Notification, len(r.seen))
	copy(out, r.seen)
	return out
}

// Count returns how many notifications were recorded.
func (r *Recorder) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.seen)
}
