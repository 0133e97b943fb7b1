package api

import (
	"fmt"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"dronevis/internal/telemetry"
)

const maxTelemetryBody = 1 << 20

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	p, err := readParams(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	id, ok := p.str("drone_id")
	if !ok {
		id, _ = p.str("id")
	}
	reg, err := s.live.Register(id, p.object("metadata"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, reg)
}

func (s *Server) handleUnregister(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if !s.live.Remove(id) {
		s.writeError(w, r, fmt.Errorf("drone %s: %w", id, telemetry.ErrNotFound))
		return
	}
	s.video.Drop(id)
	s.publishLive()
	WriteJSON(w, http.StatusOK, map[string]any{"success": true, "drone_id": id})
}

func (s *Server) handleDrone(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	d, ok := s.live.Drone(id)
	if !ok {
		s.writeError(w, r, fmt.Errorf("drone %s: %w", id, telemetry.ErrNotFound))
		return
	}
	WriteJSON(w, http.StatusOK, d)
}

func (s *Server) handleDroneList(w http.ResponseWriter, r *http.Request) {
	ids := s.live.IDs()
	WriteJSON(w, http.StatusOK, map[string]any{"drones": ids, "count": len(ids)})
}

func (s *Server) handleLiveUpdate(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxTelemetryBody))
	if err != nil {
		s.writeError(w, r, &telemetry.ValidationError{Field: "body", Reason: err.Error()})
		return
	}
	d, err := s.live.Update(body)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.publishLive()
	WriteJSON(w, http.StatusOK, map[string]any{"success": true, "drone": d})
}

func (s *Server) handleLiveCurrent(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, s.live.CurrentFrame())
}
