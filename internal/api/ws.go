package api

import (
	"encoding/json"
	"net/http"

	"dronevis/internal/stream"
)

// inbound is a client WebSocket message. A message without a type is
// treated as a bare telemetry update.
type inbound struct {
	Type     string          `json:"type"`
	DroneID  string          `json:"drone_id"`
	Metadata map[string]any  `json:"metadata"`
	Data     json.RawMessage `json:"data"`
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("websocket upgrade failed", "err", err)
		return
	}
	conn := stream.NewWSConn(ws, stream.ParseFormat(r.URL.Query().Get("format")))
	sub := s.hub.Subscribe(conn)
	log := s.log.With("subscription", sub.ID, "format", conn.Format())
	log.Info("websocket connected", "remote", r.RemoteAddr)
	defer func() {
		s.hub.Unsubscribe(sub)
		conn.Close()
		log.Info("websocket closed")
	}()

	if err := sub.Send(stream.Message{Type: stream.TypeTelemetry, Data: s.live.CurrentFrame()}); err != nil {
		return
	}
	ws.SetReadLimit(maxTelemetryBody)
	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			return
		}
		if reply, ok := s.handleInbound(data); ok {
			if err := sub.Send(reply); err != nil {
				return
			}
		}
	}
}

// handleInbound applies one client message and returns the reply to send
// back, if any. Successful updates are acknowledged through the broadcast
// frame rather than a reply.
func (s *Server) handleInbound(data []byte) (stream.Message, bool) {
	var msg inbound
	if err := json.Unmarshal(data, &msg); err != nil {
		return stream.Message{Type: stream.TypeError, Error: "invalid message: " + err.Error()}, true
	}
	switch msg.Type {
	case "register":
		reg, err := s.live.Register(msg.DroneID, msg.Metadata)
		if err != nil {
			return stream.Message{Type: stream.TypeError, Error: err.Error()}, true
		}
		return stream.Message{Type: stream.TypeRegistered, Data: reg}, true
	case "update", "telemetry":
		data = msg.Data
	case "":
	case "ping":
		return stream.Message{Type: stream.TypePong}, true
	default:
		return stream.Message{Type: stream.TypeError, Error: "unknown message type " + msg.Type}, true
	}
	if _, err := s.live.Update(data); err != nil {
		return stream.Message{Type: stream.TypeError, Error: err.Error()}, true
	}
	s.publishLive()
	return stream.Message{}, false
}
