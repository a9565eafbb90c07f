package rpc

import (
	"sync"

	"github.com/asaskevich/EventBus"
	"github.com/marcopiovanello/ytdl-eta/server/internal/downloads"
	"github.com/marcopiovanello/ytdl-eta/server/internal/progress"
)

// Hub holds the only bus subscription for progress updates and forwards
// them to every connected client. Publishing happens on the download
// goroutine, so a client whose buffer is full loses its oldest pending
// update instead of blocking it. The newest update, and with it the final
// state of a download, always reaches the client.
type Hub struct {
	bus EventBus.Bus

	mu      sync.RWMutex
	clients map[chan progress.Update]struct{}
}

func NewHub(bus EventBus.Bus) *Hub {
	return &Hub{
		bus:     bus,
		clients: make(map[chan progress.Update]struct{}),
	}
}

func (h *Hub) Listen() error {
	return h.bus.Subscribe(downloads.TopicUpdate, h.broadcast)
}

func (h *Hub) Close() error {
	h.mu.Lock()
	for ch := range h.clients {
		delete(h.clients, ch)
		close(ch)
	}
	h.mu.Unlock()

	return h.bus.Unsubscribe(downloads.TopicUpdate, h.broadcast)
}

func (h *Hub) broadcast(u progress.Update) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	// broadcast is the only sender, so after evicting one update the send
	// cannot block
	for ch := range h.clients {
		select {
		case ch <- u:
			continue
		default:
		}
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- u:
		default:
		}
	}
}

func (h *Hub) subscribe(buffer int) (<-chan progress.Update, func()) {
	ch := make(chan progress.Update, buffer)

	h.mu.Lock()
	h.clients[ch] = struct{}{}
	h.mu.Unlock()

	return ch, func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		if _, ok := h.clients[ch]; ok {
			delete(h.clients, ch)
			close(ch)
		}
	}
}

func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
