package ws

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHubBroadcastAll(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	a := NewConnection(nil, zerolog.Nop())
	b := NewConnection(nil, zerolog.Nop())
	hub.Register(a)
	hub.Register(b)
	require.Equal(t, 2, hub.Count())

	msg, err := NewMessage(TypeLeaderboardUpdate, LeaderboardUpdatePayload{Mode: "exam"})
	require.NoError(t, err)
	require.NoError(t, hub.BroadcastAll(msg))

	for _, conn := range []*Connection{a, b} {
		got := <-conn.sendCh
		assert.Equal(t, TypeLeaderboardUpdate, got.Type)
		assert.JSONEq(t, `{"mode":"exam","top":null,"champion":null}`, string(got.Payload))
	}
}

func TestHubDropsSlowConsumers(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	slow := NewConnection(nil, zerolog.Nop())
	fast := NewConnection(nil, zerolog.Nop())
	hub.Register(slow)
	hub.Register(fast)

	msg, _ := NewMessage(TypePong, nil)
	for i := 0; i < cap(slow.sendCh); i++ {
		require.NoError(t, slow.Send(msg))
	}

	err := hub.BroadcastAll(msg)
	assert.ErrorIs(t, err, ErrSendQueueFull)
	assert.Equal(t, 1, hub.Count())
	assert.ErrorIs(t, slow.Send(msg), ErrConnectionClosed)

	got := <-fast.sendCh
	assert.Equal(t, TypePong, got.Type)
}

func TestHubUnregisterAndCloseAll(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	a := NewConnection(nil, zerolog.Nop())
	id := hub.Register(a)
	hub.Unregister(id)
	hub.Unregister(id)
	assert.Equal(t, 0, hub.Count())

	_, open := <-a.sendCh
	assert.False(t, open)

	b := NewConnection(nil, zerolog.Nop())
	hub.Register(b)
	hub.CloseAll()
	assert.Equal(t, 0, hub.Count())
	assert.ErrorIs(t, b.Send(Message{Type: TypePong}), ErrConnectionClosed)
}

func TestNewMessageWithoutPayload(t *testing.T) {
	msg, err := NewMessage(TypePong, nil)
	require.NoError(t, err)
	assert.Equal(t, TypePong, msg.Type)
	assert.Nil(t, msg.Payload)
}
