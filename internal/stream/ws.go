package stream

import (
	"bytes"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/vmihailenco/msgpack/v5"
)

// Format selects the wire encoding for a WebSocket subscriber.
type Format int

const (
	// FormatJSON sends JSON text messages.
	FormatJSON Format = iota
	// FormatMsgpack sends msgpack binary messages.
	FormatMsgpack
)

// ParseFormat maps a client's requested format onto a Format. Anything other
// than "msgpack" selects JSON.
func ParseFormat(s string) Format {
	if strings.EqualFold(strings.TrimSpace(s), "msgpack") {
		return FormatMsgpack
	}
	return FormatJSON
}

func (f Format) String() string {
	if f == FormatMsgpack {
		return "msgpack"
	}
	return "json"
}

// DefaultWriteTimeout bounds a single WebSocket write.
const DefaultWriteTimeout = 5 * time.Second

// WSConn adapts a gorilla WebSocket connection to Conn. Writes are
// serialized; reads are left to the owner of the connection.
type WSConn struct {
	mu           sync.Mutex
	ws           *websocket.Conn
	format       Format
	writeTimeout time.Duration
}

// NewWSConn wraps ws.
func NewWSConn(ws *websocket.Conn, format Format) *WSConn {
	return &WSConn{ws: ws, format: format, writeTimeout: DefaultWriteTimeout}
}

// Format is the encoding used for outgoing messages.
func (c *WSConn) Format() Format { return c.format }

// Send encodes m and writes it as a single WebSocket message.
func (c *WSConn) Send(m Message) error {
	var (
		buf bytes.Buffer
		typ = websocket.TextMessage
	)
	switch c.format {
	case FormatMsgpack:
		typ = websocket.BinaryMessage
		enc := msgpack.NewEncoder(&buf)
		enc.SetCustomStructTag("json")
		if err := enc.Encode(m); err != nil {
			return err
		}
	default:
		if err := json.NewEncoder(&buf).Encode(m); err != nil {
			return err
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.ws.SetWriteDeadline(time.Now().Add(c.writeTimeout)); err != nil {
		return err
	}
	w, err := c.ws.NextWriter(typ)
	if err != nil {
		return err
	}
	if _, err := w.Write(buf.Bytes()); err != nil {
		w.Close()
		return err
	}
	return w.Close()
}

// Close closes the underlying connection.
func (c *WSConn) Close() error { return c.ws.Close() }
