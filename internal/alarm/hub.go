package alarm

import (
	"log/slog"
	"sync"

	"github.com/msomdec/merchtrax/internal/domain"
)

// Deliverer receives alarms when they come due.
type Deliverer interface {
	Deliver(a domain.Alarm)
}

// Hub fans delivered alarms out to subscribers. A subscriber that is not
// keeping up misses alarms rather than blocking delivery.
type Hub struct {
	mu   sync.Mutex
	subs map[chan domain.Alarm]struct{}
}

// NewHub creates an empty Hub.
func NewHub() *Hub {
	return &Hub{subs: make(map[chan domain.Alarm]struct{})}
}

// Subscribe returns a channel of delivered alarms and a function that
// unsubscribes and closes it.
func (h *Hub) Subscribe() (<-chan domain.Alarm, func()) {
	ch := make(chan domain.Alarm, 16)
	h.mu.Lock()
	h.subs[ch] = struct{}{}
	h.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs, ch)
			h.mu.Unlock()
			close(ch)
		})
	}
}

func (h *Hub) Deliver(a domain.Alarm) {
	slog.Info("notification delivered", "alarm_id", a.ID, "title", a.Title, "body", a.Body)

	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.subs {
		select {
		case ch <- a:
		default:
			slog.Warn("notification subscriber lagging, alarm dropped", "alarm_id", a.ID)
		}
	}
}
