package api

import (
	"net/http"

	"dronevis/internal/altitude"
	"dronevis/internal/geo"
	"dronevis/internal/playback"
	"dronevis/internal/telemetry"
)

// LoadRequest names the files of a playback scenario.
type LoadRequest struct {
	SimulationFile  string
	Origin          geo.Origin
	FacilityMapFile string
}

// LoadScenario replaces the active playback scenario. A facility map, when
// given, replaces the ceiling service first so frames carry its ground
// elevations. On error the previous scenario stays active.
func (s *Server) LoadScenario(req LoadRequest) (*ScenarioInfo, error) {
	if req.SimulationFile == "" {
		return nil, &telemetry.ValidationError{Field: "simulation_file", Reason: "is required"}
	}
	alt := s.Altitude()
	if req.FacilityMapFile != "" {
		svc, err := altitude.Load(req.FacilityMapFile)
		if err != nil {
			return nil, err
		}
		alt = svc
	}
	store, err := playback.Load(req.SimulationFile, req.Origin, playback.WithElevation(alt), playback.WithLogger(s.log))
	if err != nil {
		return nil, err
	}
	info := &ScenarioInfo{
		SimulationFile:  req.SimulationFile,
		FacilityMapFile: req.FacilityMapFile,
		OriginLat:       req.Origin.Lat,
		OriginLon:       req.Origin.Lon,
		Start:           store.Start(),
		End:             store.End(),
		Duration:        store.Duration(),
		Frames:          store.Len(),
		Drones:          store.DroneIDs(),
		Metadata:        store.Metadata(),
	}

	s.mu.Lock()
	s.playback = store
	s.scenario = info
	s.altitude = alt
	s.mu.Unlock()

	s.log.Info("scenario loaded",
		"file", req.SimulationFile,
		"frames", info.Frames,
		"drones", len(info.Drones),
		"duration", info.Duration,
		"cells", alt.Len(),
	)
	return info, nil
}

func (s *Server) handleLoadScenario(w http.ResponseWriter, r *http.Request) {
	p, err := readParams(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var req LoadRequest
	req.SimulationFile, _ = p.str("simulation_file")
	req.FacilityMapFile, _ = p.str("facility_map_file")
	if req.Origin.Lat, err = p.requireFloat("origin_lat"); err != nil {
		s.writeError(w, r, err)
		return
	}
	if req.Origin.Lon, err = p.requireFloat("origin_lon"); err != nil {
		s.writeError(w, r, err)
		return
	}
	info, err := s.LoadScenario(req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	store, _, _ := s.current()
	WriteJSON(w, http.StatusOK, map[string]any{
		"success":   true,
		"scenario":  info,
		"corridors": store.Corridors(),
	})
}

func (s *Server) handleScenarioInfo(w http.ResponseWriter, r *http.Request) {
	_, info, err := s.current()
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, info)
}

func (s *Server) handleCorridors(w http.ResponseWriter, r *http.Request) {
	store, _, err := s.current()
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{"corridors": store.Corridors()})
}

func (s *Server) handleFrame(w http.ResponseWriter, r *http.Request) {
	store, _, err := s.current()
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	raw := r.URL.Query().Get("time")
	if raw == "" {
		s.writeError(w, r, &telemetry.ValidationError{Field: "time", Reason: "is required"})
		return
	}
	t, err := parseFinite("time", raw)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	f, err := store.FrameAtTime(t)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, f)
}

func (s *Server) handleAllFrames(w http.ResponseWriter, r *http.Request) {
	store, _, err := s.current()
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	frames := make([]telemetry.Frame, 0, store.Len())
	for f := range store.Frames() {
		frames = append(frames, f)
	}
	WriteJSON(w, http.StatusOK, map[string]any{"frames": frames, "count": len(frames)})
}

func (s *Server) handleCeiling(w http.ResponseWriter, r *http.Request) {
	p, err := readParams(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	lat, err := p.requireFloat("lat")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	lon, err := p.requireFloat("lon")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	alt := s.Altitude()
	_, inCell := alt.LookupCell(lat, lon)
	WriteJSON(w, http.StatusOK, map[string]any{
		"lat":        lat,
		"lon":        lon,
		"ceilingAgl": alt.Ceiling(lat, lon),
		"inCell":     inCell,
	})
}

func (s *Server) handleFacilityMap(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, map[string]any{"cells": s.Altitude().Cells()})
}

func (s *Server) handleAltitudeCheck(w http.ResponseWriter, r *http.Request) {
	p, err := readParams(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var vals [3]float64
	for i, name := range []string{"lat", "lon", "alt_agl"} {
		if vals[i], err = p.requireFloat(name); err != nil {
			s.writeError(w, r, err)
			return
		}
	}
	WriteJSON(w, http.StatusOK, s.Altitude().CheckViolation(vals[0], vals[1], vals[2]))
}
