package stream

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vmihailenco/msgpack/v5"

	"dronevis/internal/telemetry"
)

type fakeConn struct {
	mu     sync.Mutex
	sent   []Message
	err    error
	closed bool
}

func (c *fakeConn) Send(m Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return c.err
	}
	c.sent = append(c.sent, m)
	return nil
}

func (c *fakeConn) Close() error {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
	return nil
}

func frame() telemetry.Frame {
	return telemetry.Frame{Time: 2.5, Drones: []telemetry.DroneState{{ID: "d1", Lat: 33.75, Lon: -84.39, Health: telemetry.HealthOK}}}
}

func TestPublishDeliversToAll(t *testing.T) {
	h := NewHub(nil)
	a, b := &fakeConn{}, &fakeConn{}
	subA := h.Subscribe(a)
	subB := h.Subscribe(b)
	assert.NotEqual(t, subA.ID, subB.ID)

	assert.Equal(t, 2, h.Publish(frame()))
	require.Len(t, a.sent, 1)
	require.Len(t, b.sent, 1)
	assert.Equal(t, TypeTelemetry, a.sent[0].Type)
	assert.Equal(t, frame(), a.sent[0].Data)
}

func TestFailedDeliveryDropsSubscriber(t *testing.T) {
	h := NewHub(nil)
	good := &fakeConn{}
	bad := &fakeConn{err: errors.New("broken pipe")}
	h.Subscribe(good)
	h.Subscribe(bad)

	assert.Equal(t, 1, h.Publish(frame()))
	assert.Equal(t, 1, h.Len())
	assert.True(t, bad.closed)

	assert.Equal(t, 1, h.Publish(frame()))
	assert.Len(t, good.sent, 2)
}

func TestUnsubscribe(t *testing.T) {
	h := NewHub(nil)
	c := &fakeConn{}
	sub := h.Subscribe(c)
	assert.True(t, h.Unsubscribe(sub))
	assert.False(t, h.Unsubscribe(sub))
	assert.Zero(t, h.Publish(frame()))
	assert.Empty(t, c.sent)
}

func TestParseFormat(t *testing.T) {
	assert.Equal(t, FormatMsgpack, ParseFormat("MsgPack"))
	assert.Equal(t, FormatJSON, ParseFormat(""))
	assert.Equal(t, FormatJSON, ParseFormat("cbor"))
	assert.Equal(t, "msgpack", FormatMsgpack.String())
}

// wsPair starts a server that publishes one frame through a WSConn and
// returns the client side of the connection.
func wsPair(t *testing.T, format Format) *websocket.Conn {
	t.Helper()
	h := NewHub(nil)
	up := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := up.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		h.Subscribe(NewWSConn(ws, format))
		h.Publish(frame())
	}))
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	client, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })
	return client
}

func TestWSConnJSON(t *testing.T) {
	client := wsPair(t, FormatJSON)
	var got struct {
		Type string          `json:"type"`
		Data telemetry.Frame `json:"data"`
	}
	typ, data, err := client.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, websocket.TextMessage, typ)
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, TypeTelemetry, got.Type)
	assert.Equal(t, frame(), got.Data)
}

func TestWSConnMsgpack(t *testing.T) {
	client := wsPair(t, FormatMsgpack)
	typ, data, err := client.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, websocket.BinaryMessage, typ)

	var got struct {
		Type string          `msgpack:"type"`
		Data telemetry.Frame `msgpack:"data"`
	}
	require.NoError(t, msgpack.Unmarshal(data, &got))
	assert.Equal(t, TypeTelemetry, got.Type)
	require.Len(t, got.Data.Drones, 1)
	assert.Equal(t, "d1", got.Data.Drones[0].ID)
	assert.Equal(t, 2.5, got.Data.Time)
}
