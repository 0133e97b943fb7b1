// Package api exposes playback, live telemetry, airspace and video routes
// over HTTP and WebSocket.
package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"

	"dronevis/internal/altitude"
	"dronevis/internal/live"
	"dronevis/internal/playback"
	"dronevis/internal/sink"
	"dronevis/internal/stream"
	"dronevis/internal/telemetry"
	"dronevis/internal/video"
)

// Options wires the stores a Server serves. Nil stores are replaced with
// empty defaults.
type Options struct {
	Live     *live.Store
	Hub      *stream.Hub
	Video    *video.Relay
	Altitude *altitude.Service
	// Sink, when set, receives the live frame after every update.
	Sink   sink.FrameWriter
	Logger *slog.Logger
}

// ScenarioInfo describes the loaded playback scenario.
type ScenarioInfo struct {
	SimulationFile  string         `json:"simulationFile"`
	FacilityMapFile string         `json:"facilityMapFile,omitempty"`
	OriginLat       float64        `json:"originLat"`
	OriginLon       float64        `json:"originLon"`
	Start           float64        `json:"start"`
	End             float64        `json:"end"`
	Duration        float64        `json:"duration"`
	Frames          int            `json:"frames"`
	Drones          []string       `json:"drones"`
	Metadata        map[string]any `json:"metadata"`
}

// Server holds the application state behind the HTTP routes.
type Server struct {
	live  *live.Store
	hub   *stream.Hub
	video *video.Relay
	sink  sink.FrameWriter
	log   *slog.Logger

	upgrader websocket.Upgrader

	mu       sync.RWMutex
	altitude *altitude.Service
	playback *playback.Store
	scenario *ScenarioInfo
}

// NewServer builds a Server from opts.
func NewServer(opts Options) *Server {
	s := &Server{
		live:     opts.Live,
		hub:      opts.Hub,
		video:    opts.Video,
		altitude: opts.Altitude,
		sink:     opts.Sink,
		log:      opts.Logger,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
	if s.log == nil {
		s.log = slog.New(slog.DiscardHandler)
	}
	if s.live == nil {
		s.live = live.New(live.WithLogger(s.log))
	}
	if s.hub == nil {
		s.hub = stream.NewHub(s.log)
	}
	if s.video == nil {
		s.video = video.NewRelay(0, s.log)
	}
	if s.altitude == nil {
		s.altitude = altitude.NewService()
	}
	return s
}

// Live is the live telemetry store.
func (s *Server) Live() *live.Store { return s.live }

// Hub is the subscriber hub.
func (s *Server) Hub() *stream.Hub { return s.hub }

// Altitude returns the current ceiling service.
func (s *Server) Altitude() *altitude.Service {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.altitude
}

func (s *Server) current() (*playback.Store, *ScenarioInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.playback == nil {
		return nil, nil, errNoScenario
	}
	return s.playback, s.scenario, nil
}

// Handler returns the router with every route mounted.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.logRequests)
	r.Use(cors)

	r.Get("/", s.handleRoot)
	r.Route("/api", func(r chi.Router) {
		r.Get("/health", s.handleHealth)

		r.Post("/scenario/load", s.handleLoadScenario)
		r.Get("/scenario/info", s.handleScenarioInfo)
		r.Get("/scenario/corridors", s.handleCorridors)

		r.Get("/telemetry/frame", s.handleFrame)
		r.Get("/telemetry/all", s.handleAllFrames)
		r.Post("/telemetry/live/update", s.handleLiveUpdate)
		r.Get("/telemetry/live/current", s.handleLiveCurrent)

		r.Get("/airspace/ceiling", s.handleCeiling)
		r.Get("/airspace/facility-map", s.handleFacilityMap)
		r.Post("/altitude/check", s.handleAltitudeCheck)

		r.Post("/drones/register", s.handleRegister)
		r.Get("/drones", s.handleDroneList)
		r.Get("/drones/{id}", s.handleDrone)
		r.Delete("/drones/{id}", s.handleUnregister)

		r.Post("/video/{id}/frame", s.handleVideoUpload)
		r.Get("/video/{id}/frame", s.handleVideoFrame)
	})
	r.Get("/ws/telemetry", s.handleWS)
	r.Get("/ws/telemetry/live", s.handleWS)
	return r
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		s.log.Info("api listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()
	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}

func cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("Access-Control-Allow-Origin", "*")
		h.Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		h.Set("Access-Control-Allow-Headers", "*")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.log.Debug("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, map[string]any{
		"name":   "dronevis",
		"status": "operational",
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	loaded := s.playback != nil
	s.mu.RUnlock()
	WriteJSON(w, http.StatusOK, map[string]any{
		"status":          "healthy",
		"playback_loaded": loaded,
		"scenario_loaded": loaded,
		"live_drones":     s.live.Count(),
		"subscribers":     s.hub.Len(),
	})
}

// publishLive pushes the current live frame to subscribers and the sink.
// Sink failures are logged and do not fail the update.
func (s *Server) publishLive() telemetry.Frame {
	f := s.live.CurrentFrame()
	s.hub.Publish(f)
	if s.sink == nil {
		return f
	}
	if err := s.sink.WriteFrame(f); err != nil {
		s.log.Warn("sink write failed", "err", err)
	}
	if vw, ok := s.sink.(sink.ViolationWriter); ok {
		if rows := sink.Violations(f, s.Altitude()); len(rows) > 0 {
			if err := sink.WriteViolations(vw, rows); err != nil {
				s.log.Warn("violation write failed", "err", err)
			}
		}
	}
	return f
}
