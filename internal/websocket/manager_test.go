package websocket

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourusername/lucky-wheel/internal/config"
)

func TestManager_HandleMessageDispatches(t *testing.T) {
	h := startHub(t, config.WebSocketConfig{}, nil)
	m := NewManager(h)
	c := connect(t, h, 8)

	var got json.RawMessage
	m.RegisterHandler(SYNC_REQUEST, func(data json.RawMessage, client *Client) error {
		got = data
		return nil
	})

	require.NoError(t, m.HandleMessage([]byte(`{"type":"sync:request","data":{"reason":"reconnect"}}`), c))
	assert.JSONEq(t, `{"reason":"reconnect"}`, string(got))
}

func TestManager_UnknownTypeSendsErrorButKeepsConnection(t *testing.T) {
	h := startHub(t, config.WebSocketConfig{}, nil)
	m := NewManager(h)
	c := connect(t, h, 8)

	assert.NoError(t, m.HandleMessage([]byte(`{"type":"nope"}`), c))

	ev := receive(t, c)
	assert.Equal(t, SERVER_ERROR, ev.Type)
	assert.Equal(t, "unknown_message_type", ev.Data.(map[string]interface{})["code"])
}

func TestManager_InvalidJSONClosesConnection(t *testing.T) {
	h := startHub(t, config.WebSocketConfig{}, nil)
	m := NewManager(h)
	c := connect(t, h, 8)

	assert.Error(t, m.HandleMessage([]byte(`not json`), c))
	assert.Equal(t, SERVER_ERROR, receive(t, c).Type)
}

func TestManager_HandlerErrorPropagates(t *testing.T) {
	h := startHub(t, config.WebSocketConfig{}, nil)
	m := NewManager(h)
	c := connect(t, h, 8)

	m.RegisterHandler(SYNC_REQUEST, func(json.RawMessage, *Client) error {
		return errors.New("boom")
	})
	assert.EqualError(t, m.HandleMessage([]byte(`{"type":"sync:request"}`), c), "boom")
}

func TestManager_BroadcastAndDirect(t *testing.T) {
	h := startHub(t, config.WebSocketConfig{}, nil)
	m := NewManager(h)
	a := connect(t, h, 8)
	b := connect(t, h, 8)

	require.NoError(t, m.SendEventToClient(b.ConnectionID, SYNC_SNAPSHOT, map[string]int{"n": 1}))
	require.NoError(t, m.BroadcastEvent(CHECKIN_LOCKED, nil))

	assert.Equal(t, CHECKIN_LOCKED, receive(t, a).Type)
	assert.Equal(t, SYNC_SNAPSHOT, receive(t, b).Type)
	assert.Equal(t, CHECKIN_LOCKED, receive(t, b).Type)

	metrics := m.GetMetrics()
	assert.Equal(t, 2, metrics["client_count"])
}

func TestSafeHandleMessage_RecoversPanic(t *testing.T) {
	c := NewClient(nil, nil, "", DefaultClientConfig())
	assert.Equal(t, RoleSpectator, c.Role)

	err := safeHandleMessage([]byte("x"), c, func([]byte, *Client) error {
		panic("handler exploded")
	})
	assert.ErrorContains(t, err, "handler exploded")
}
