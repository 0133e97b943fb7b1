// Package live tracks the latest reported state of drones streaming
// telemetry in real time.
package live

import (
	"log/slog"
	"maps"
	"slices"
	"strings"
	"sync"
	"time"

	"dronevis/internal/telemetry"
)

// DefaultTimeout is how long a drone may stay silent before it is reported
// OFFLINE.
const DefaultTimeout = 30 * time.Second

// Clock abstracts time for staleness checks.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// Registration confirms a Register call.
type Registration struct {
	DroneID      string         `json:"drone_id"`
	RegisteredAt time.Time      `json:"registered_at"`
	Status       string         `json:"status"`
	Metadata     map[string]any `json:"metadata,omitempty"`
}

type entry struct {
	state    telemetry.DroneState
	lastSeen time.Time
	metadata map[string]any
}

// Store holds one entry per drone id. All methods are safe for concurrent
// use. Entries are replaced whole, so readers never observe a partially
// applied update.
type Store struct {
	mu      sync.Mutex
	clock   Clock
	timeout time.Duration
	log     *slog.Logger
	start   time.Time
	drones  map[string]entry
}

// Option configures a Store.
type Option func(*Store)

// WithClock replaces the wall clock.
func WithClock(c Clock) Option {
	return func(s *Store) { s.clock = c }
}

// WithTimeout sets the staleness threshold. Non-positive values are ignored.
func WithTimeout(d time.Duration) Option {
	return func(s *Store) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// WithLogger sets the logger used for registration and removal events.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) { s.log = l }
}

// New creates an empty store whose frame clock starts now.
func New(opts ...Option) *Store {
	s := &Store{
		clock:   systemClock{},
		timeout: DefaultTimeout,
		log:     slog.New(slog.DiscardHandler),
		drones:  make(map[string]entry),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.start = s.clock.Now()
	return s
}

// Timeout is the configured staleness threshold.
func (s *Store) Timeout() time.Duration { return s.timeout }

// Register announces a drone. A new id gets a placeholder OFFLINE state with
// zero link quality; an id already tracked keeps its state untouched.
func (s *Store) Register(id string, metadata map[string]any) (Registration, error) {
	if strings.TrimSpace(id) == "" {
		return Registration{}, &telemetry.ValidationError{Field: "drone_id", Reason: "is required"}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.clock.Now()
	if _, ok := s.drones[id]; !ok {
		s.drones[id] = entry{
			state: telemetry.DroneState{
				ID:     id,
				Health: telemetry.HealthOffline,
			},
			lastSeen: now,
			metadata: maps.Clone(metadata),
		}
		s.log.Info("drone registered", "drone", id)
	}
	return Registration{
		DroneID:      id,
		RegisteredAt: now.UTC(),
		Status:       "registered",
		Metadata:     maps.Clone(metadata),
	}, nil
}

// Update decodes and applies one raw telemetry message.
func (s *Store) Update(raw []byte) (telemetry.DroneState, error) {
	rec, err := telemetry.DecodeLive(raw)
	if err != nil {
		return telemetry.DroneState{}, err
	}
	return s.UpdateRecord(rec)
}

// UpdateRecord normalizes rec and replaces the drone's entry. Concurrent
// updates for the same id are last-write-wins.
func (s *Store) UpdateRecord(rec telemetry.LiveRecord) (telemetry.DroneState, error) {
	d, err := telemetry.NormalizeLive(rec)
	if err != nil {
		return telemetry.DroneState{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	prev := s.drones[d.ID]
	s.drones[d.ID] = entry{state: d, lastSeen: s.clock.Now(), metadata: prev.metadata}
	return d.Clone(), nil
}

// Remove stops tracking id. It reports whether the drone was known.
func (s *Store) Remove(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.drones[id]; !ok {
		return false
	}
	delete(s.drones, id)
	s.log.Info("drone removed", "drone", id)
	return true
}

// Drone returns the current state of id.
func (s *Store) Drone(id string) (telemetry.DroneState, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.drones[id]
	if !ok {
		return telemetry.DroneState{}, false
	}
	return e.state.Clone(), true
}

// IDs lists tracked drones in sorted order.
func (s *Store) IDs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Sorted(maps.Keys(s.drones))
}

// Count is the number of tracked drones.
func (s *Store) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.drones)
}

// Clear drops every drone and restarts the frame clock.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	clear(s.drones)
	s.start = s.clock.Now()
}

// CurrentFrame snapshots every tracked drone. Drones silent for longer than
// the timeout are marked OFFLINE in place first; the flag sticks until the
// next update. The frame time is seconds since the store started.
func (s *Store) CurrentFrame() telemetry.Frame {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.clock.Now()
	for id, e := range s.drones {
		if now.Sub(e.lastSeen) > s.timeout && e.state.Health != telemetry.HealthOffline {
			e.state.Health = telemetry.HealthOffline
			s.drones[id] = e
			s.log.Warn("drone timed out", "drone", id, "last_seen", e.lastSeen)
		}
	}
	drones := make([]telemetry.DroneState, 0, len(s.drones))
	for _, id := range slices.Sorted(maps.Keys(s.drones)) {
		drones = append(drones, s.drones[id].state.Clone())
	}
	return telemetry.Frame{Time: now.Sub(s.start).Seconds(), Drones: drones}
}
