package notification

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tablelane/tablelane-api/internal/domain/entity"
	"go.uber.org/zap"
)

func newTestClient(tenantID uuid.UUID, buffer int) *Client {
	return &Client{
		tenantID: tenantID,
		send:     make(chan []byte, buffer),
		logger:   zap.NewNop(),
	}
}

func startBroadcaster(t *testing.T) *Broadcaster {
	t.Helper()
	b := NewBroadcaster(zap.NewNop())
	b.Start()
	t.Cleanup(b.Stop)
	return b
}

func register(t *testing.T, b *Broadcaster, client *Client, want int) {
	t.Helper()
	b.register <- client
	require.Eventually(t, func() bool {
		return b.ClientCount(client.tenantID) == want
	}, time.Second, 5*time.Millisecond)
}

func TestPublishReachesTenantClients(t *testing.T) {
	b := startBroadcaster(t)
	tenantID := uuid.New()

	first := newTestClient(tenantID, 4)
	second := newTestClient(tenantID, 4)
	register(t, b, first, 1)
	register(t, b, second, 2)

	envelope := NewEnvelope(PrintReceipt, &entity.Order{ID: uuid.New()}, nil)
	b.Publish(tenantID, envelope)

	for _, client := range []*Client{first, second} {
		select {
		case payload := <-client.send:
			var got Envelope
			require.NoError(t, json.Unmarshal(payload, &got))
			assert.Equal(t, PrintReceipt, got.Type)
			assert.Equal(t, envelope.NotificationID, got.NotificationID)
		case <-time.After(time.Second):
			t.Fatal("client did not receive the envelope")
		}
	}
}

func TestPublishIsScopedToTenant(t *testing.T) {
	b := startBroadcaster(t)

	mine := newTestClient(uuid.New(), 4)
	other := newTestClient(uuid.New(), 4)
	register(t, b, mine, 1)
	register(t, b, other, 1)

	b.Publish(mine.tenantID, NewEnvelope(PrintReceipt, &entity.Order{ID: uuid.New()}, nil))

	select {
	case <-mine.send:
	case <-time.After(time.Second):
		t.Fatal("tenant's own client did not receive the envelope")
	}

	select {
	case <-other.send:
		t.Fatal("envelope leaked across tenants")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestPublishWithoutClientsDoesNotBlock(t *testing.T) {
	b := startBroadcaster(t)

	done := make(chan struct{})
	go func() {
		for i := 0; i < 100; i++ {
			b.Publish(uuid.New(), NewEnvelope(PrintReceipt, &entity.Order{ID: uuid.New()}, nil))
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Publish blocked with no clients connected")
	}
}

func TestSlowClientIsDropped(t *testing.T) {
	b := startBroadcaster(t)
	tenantID := uuid.New()

	// Buffer of one: the second publish finds it full.
	slow := newTestClient(tenantID, 1)
	register(t, b, slow, 1)

	b.Publish(tenantID, NewEnvelope(PrintReceipt, &entity.Order{ID: uuid.New()}, nil))
	b.Publish(tenantID, NewEnvelope(PrintReceipt, &entity.Order{ID: uuid.New()}, nil))

	require.Eventually(t, func() bool {
		return b.ClientCount(tenantID) == 0
	}, time.Second, 5*time.Millisecond)
}

func TestUnregisterClosesSendChannel(t *testing.T) {
	b := startBroadcaster(t)
	tenantID := uuid.New()

	client := newTestClient(tenantID, 4)
	register(t, b, client, 1)

	b.unregister <- client
	require.Eventually(t, func() bool {
		return b.ClientCount(tenantID) == 0
	}, time.Second, 5*time.Millisecond)

	_, open := <-client.send
	assert.False(t, open)
}
