package enum

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOrderStatusTransitions(t *testing.T) {
	assert.True(t, OrderStatusPending.CanTransitionTo(OrderStatusActive))
	assert.True(t, OrderStatusPending.CanTransitionTo(OrderStatusClosed))
	assert.True(t, OrderStatusPending.CanTransitionTo(OrderStatusCancelled))
	assert.True(t, OrderStatusActive.CanTransitionTo(OrderStatusClosed))
	assert.True(t, OrderStatusActive.CanTransitionTo(OrderStatusCancelled))
	assert.True(t, OrderStatusClosed.CanTransitionTo(OrderStatusCancelled))

	// No state ever re-enters pending.
	assert.False(t, OrderStatusActive.CanTransitionTo(OrderStatusPending))
	assert.False(t, OrderStatusClosed.CanTransitionTo(OrderStatusPending))
	assert.False(t, OrderStatusClosed.CanTransitionTo(OrderStatusActive))
	assert.False(t, OrderStatusCancelled.CanTransitionTo(OrderStatusPending))
	assert.False(t, OrderStatusCancelled.CanTransitionTo(OrderStatusActive))
	assert.False(t, OrderStatusCancelled.CanTransitionTo(OrderStatusClosed))
}

func TestOrderStatusTerminal(t *testing.T) {
	assert.False(t, OrderStatusPending.IsTerminal())
	assert.False(t, OrderStatusActive.IsTerminal())
	assert.False(t, OrderStatusClosed.IsTerminal())
	assert.True(t, OrderStatusCancelled.IsTerminal())
}

func TestOrderStatusMutable(t *testing.T) {
	assert.True(t, OrderStatusPending.Mutable())
	assert.True(t, OrderStatusActive.Mutable())
	assert.False(t, OrderStatusClosed.Mutable())
	assert.False(t, OrderStatusCancelled.Mutable())
}

func TestOrderStatusJSONRoundTrip(t *testing.T) {
	data, err := json.Marshal(OrderStatusActive)
	require.NoError(t, err)
	assert.Equal(t, `"active"`, string(data))

	var status OrderStatus
	require.NoError(t, json.Unmarshal([]byte(`"cancelled"`), &status))
	assert.Equal(t, OrderStatusCancelled, status)
}

func TestOrderSourcePaidStatus(t *testing.T) {
	// QR orders still need the kitchen after payment; counter orders
	// were already served and close immediately.
	assert.Equal(t, OrderStatusActive, OrderSourceQR.PaidStatus())
	assert.Equal(t, OrderStatusClosed, OrderSourceCounter.PaidStatus())
}
