package progress

import (
	"context"
	"sync"

	"github.com/jonathan/cover-letter-studio/internal/logger"
)

// Bus delivers updates to in-process subscribers keyed by owner id.
// It implements Publisher so a Tracker can feed it directly.
type Bus struct {
	log  *logger.Logger
	mu   sync.RWMutex
	subs map[string][]chan Update
}

// NewBus creates an empty bus.
func NewBus(log *logger.Logger) *Bus {
	if log == nil {
		log = logger.Nop()
	}
	return &Bus{
		log:  log.With("component", "progress_bus"),
		subs: make(map[string][]chan Update),
	}
}

// Subscribe returns a channel receiving updates for owner.
func (b *Bus) Subscribe(owner string) (<-chan Update, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan Update, subscriberBuffer)
	b.subs[owner] = append(b.subs[owner], ch)

	var once sync.Once
	unsub := func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()

			subscribers := b.subs[owner]
			for i, sub := range subscribers {
				if sub == ch {
					close(ch)
					b.subs[owner] = append(subscribers[:i], subscribers[i+1:]...)
					break
				}
			}
			if len(b.subs[owner]) == 0 {
				delete(b.subs, owner)
			}
		})
	}
	return ch, unsub
}

// Publish sends u to every subscriber of u.Owner, dropping it for full channels.
func (b *Bus) Publish(_ context.Context, u Update) error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, ch := range b.subs[u.Owner] {
		select {
		case ch <- u:
		default:
			b.log.Warn("progress bus channel full, dropping update", "owner_id", u.Owner)
		}
	}
	return nil
}
