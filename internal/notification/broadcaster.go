package notification

import (
	"encoding/json"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Broadcaster fans envelopes out to every websocket client registered
// for a tenant. It never blocks callers: a client whose send buffer is
// full is dropped rather than back-pressuring the order flow.
type Broadcaster struct {
	register   chan *Client
	unregister chan *Client
	broadcast  chan tenantMessage
	done       chan struct{}

	mu      sync.RWMutex
	tenants map[uuid.UUID]map[*Client]struct{}

	logger *zap.Logger
}

type tenantMessage struct {
	tenantID uuid.UUID
	payload  []byte
}

// NewBroadcaster creates a broadcaster. Call Start before publishing.
func NewBroadcaster(logger *zap.Logger) *Broadcaster {
	return &Broadcaster{
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan tenantMessage, 64),
		done:       make(chan struct{}),
		tenants:    make(map[uuid.UUID]map[*Client]struct{}),
		logger:     logger,
	}
}

// Start runs the hub loop until Stop is called.
func (b *Broadcaster) Start() {
	go b.run()
}

// Stop shuts the hub down and closes every connected client.
func (b *Broadcaster) Stop() {
	close(b.done)
}

func (b *Broadcaster) run() {
	for {
		select {
		case client := <-b.register:
			b.mu.Lock()
			room, ok := b.tenants[client.tenantID]
			if !ok {
				room = make(map[*Client]struct{})
				b.tenants[client.tenantID] = room
			}
			room[client] = struct{}{}
			b.mu.Unlock()
			b.logger.Info("station connected",
				zap.String("tenant_id", client.tenantID.String()),
				zap.Int("connected", len(room)))

		case client := <-b.unregister:
			b.removeClient(client)

		case msg := <-b.broadcast:
			b.mu.RLock()
			room := b.tenants[msg.tenantID]
			var stale []*Client
			for client := range room {
				select {
				case client.send <- msg.payload:
				default:
					stale = append(stale, client)
				}
			}
			b.mu.RUnlock()
			for _, client := range stale {
				b.logger.Warn("dropping slow station",
					zap.String("tenant_id", client.tenantID.String()))
				b.removeClient(client)
			}

		case <-b.done:
			b.mu.Lock()
			for _, room := range b.tenants {
				for client := range room {
					close(client.send)
				}
			}
			b.tenants = make(map[uuid.UUID]map[*Client]struct{})
			b.mu.Unlock()
			return
		}
	}
}

func (b *Broadcaster) removeClient(client *Client) {
	b.mu.Lock()
	defer b.mu.Unlock()
	room, ok := b.tenants[client.tenantID]
	if !ok {
		return
	}
	if _, ok := room[client]; !ok {
		return
	}
	delete(room, client)
	close(client.send)
	if len(room) == 0 {
		delete(b.tenants, client.tenantID)
	}
}

// Publish fans an envelope out to the tenant's stations. A marshal
// failure is logged and swallowed; notification delivery must never
// fail the request that produced it.
func (b *Broadcaster) Publish(tenantID uuid.UUID, envelope *Envelope) {
	payload, err := json.Marshal(envelope)
	if err != nil {
		b.logger.Error("failed to marshal notification envelope",
			zap.String("tenant_id", tenantID.String()),
			zap.Error(err))
		return
	}

	select {
	case b.broadcast <- tenantMessage{tenantID: tenantID, payload: payload}:
	case <-b.done:
	}
}

// ClientCount reports how many stations a tenant has connected.
func (b *Broadcaster) ClientCount(tenantID uuid.UUID) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.tenants[tenantID])
}
