// Package playback loads recorded simulation exports and serves their
// frames by time.
package playback

import (
	"cmp"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"iter"
	"log/slog"
	"maps"
	"math"
	"os"
	"slices"
	"sort"
	"strings"

	"github.com/klauspost/compress/zstd"

	"dronevis/internal/geo"
	"dronevis/internal/telemetry"
)

type export struct {
	Metadata  map[string]any    `json:"metadata"`
	Timesteps []rawTimestep     `json:"timesteps"`
	Corridors []json.RawMessage `json:"corridors"`
}

type rawTimestep struct {
	Time *float64                   `json:"time"`
	UAVs map[string]json.RawMessage `json:"uavs"`
}

type entry struct {
	id  string
	rec telemetry.PlaybackRecord
}

type timestep struct {
	time    float64
	entries []entry // sorted by id
}

// Store is an immutable, loaded simulation export. Frames are normalized on
// demand, so a Store is safe for concurrent readers.
type Store struct {
	log       *slog.Logger
	path      string
	norm      telemetry.Normalizer
	metadata  map[string]any
	steps     []timestep
	corridors []telemetry.Corridor
}

// Option configures Load.
type Option func(*Store)

// WithElevation makes frames carry MSL altitudes derived from src.
func WithElevation(src telemetry.ElevationSource) Option {
	return func(s *Store) { s.norm.Elevation = src }
}

// WithLogger reports skipped drone records to l.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) { s.log = l }
}

// Load reads a simulation export relative to origin. Files ending in .zst
// are zstd-decompressed. All failures are returned as *telemetry.LoadError.
func Load(path string, origin geo.Origin, opts ...Option) (*Store, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &telemetry.LoadError{Path: path, Err: err}
	}
	defer f.Close()

	var r io.Reader = f
	if strings.HasSuffix(path, ".zst") {
		zr, err := zstd.NewReader(f)
		if err != nil {
			return nil, &telemetry.LoadError{Path: path, Err: err}
		}
		defer zr.Close()
		r = zr
	}

	s, err := Read(r, origin, opts...)
	if err != nil {
		return nil, &telemetry.LoadError{Path: path, Err: err}
	}
	s.path = path
	return s, nil
}

// Read decodes an uncompressed export from r.
func Read(r io.Reader, origin geo.Origin, opts ...Option) (*Store, error) {
	s := &Store{norm: telemetry.Normalizer{Origin: origin}, log: slog.New(slog.DiscardHandler)}
	for _, opt := range opts {
		opt(s)
	}

	var ex export
	if err := json.NewDecoder(r).Decode(&ex); err != nil {
		return nil, fmt.Errorf("decode export: %w", err)
	}
	if len(ex.Timesteps) == 0 {
		return nil, errors.New("export contains no timesteps")
	}

	s.steps = make([]timestep, 0, len(ex.Timesteps))
	for i, raw := range ex.Timesteps {
		if raw.Time == nil {
			return nil, fmt.Errorf("timestep %d: missing time", i)
		}
		if math.IsNaN(*raw.Time) || math.IsInf(*raw.Time, 0) {
			return nil, fmt.Errorf("timestep %d: time is not finite", i)
		}
		ts := timestep{time: *raw.Time, entries: make([]entry, 0, len(raw.UAVs))}
		for _, id := range sortedKeys(raw.UAVs) {
			rec, err := telemetry.DecodePlayback(raw.UAVs[id])
			if err != nil {
				s.log.Warn("skipping drone record", "timestep", i, "drone", id, "err", err)
				continue
			}
			ts.entries = append(ts.entries, entry{id: id, rec: rec})
		}
		s.steps = append(s.steps, ts)
	}
	// out-of-order exports are played in time order; equal times keep file order
	slices.SortStableFunc(s.steps, func(a, b timestep) int {
		return cmp.Compare(a.time, b.time)
	})

	s.corridors = make([]telemetry.Corridor, 0, len(ex.Corridors))
	for i, raw := range ex.Corridors {
		c, err := parseCorridor(raw, s.norm.Origin)
		if err != nil {
			return nil, fmt.Errorf("corridor %d: %w", i, err)
		}
		s.corridors = append(s.corridors, c)
	}
	s.metadata = ex.Metadata
	return s, nil
}

func sortedKeys(m map[string]json.RawMessage) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Path is the file the store was loaded from, empty for Read.
func (s *Store) Path() string { return s.path }

// Origin is the scenario origin used for ENU conversion.
func (s *Store) Origin() geo.Origin { return s.norm.Origin }

// Len is the number of timesteps.
func (s *Store) Len() int { return len(s.steps) }

// Start is the first sample time in seconds.
func (s *Store) Start() float64 { return s.steps[0].time }

// End is the last sample time in seconds.
func (s *Store) End() float64 { return s.steps[len(s.steps)-1].time }

// Duration is End minus Start.
func (s *Store) Duration() float64 { return s.End() - s.Start() }

// Metadata returns a shallow copy of the export's metadata object.
func (s *Store) Metadata() map[string]any {
	if s.metadata == nil {
		return map[string]any{}
	}
	return maps.Clone(s.metadata)
}

// DroneIDs lists every drone that appears in any timestep, sorted.
func (s *Store) DroneIDs() []string {
	seen := make(map[string]struct{})
	for _, ts := range s.steps {
		for _, e := range ts.entries {
			seen[e.id] = struct{}{}
		}
	}
	ids := make([]string, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// FrameAtTime returns the sample nearest to t. Ties resolve to the earlier
// sample. NaN and times outside [Start, End] return telemetry.ErrNotFound. There is
// no interpolation between samples.
func (s *Store) FrameAtTime(t float64) (telemetry.Frame, error) {
	if math.IsNaN(t) || t < s.Start() || t > s.End() {
		return telemetry.Frame{}, fmt.Errorf("time %g outside [%g, %g]: %w", t, s.Start(), s.End(), telemetry.ErrNotFound)
	}
	i := sort.Search(len(s.steps), func(i int) bool { return s.steps[i].time >= t })
	if i > 0 && t-s.steps[i-1].time <= s.steps[i].time-t {
		i--
	}
	return s.frame(i), nil
}

// Frames yields every sample in chronological order. Each call starts from
// the first sample.
func (s *Store) Frames() iter.Seq[telemetry.Frame] {
	return func(yield func(telemetry.Frame) bool) {
		for i := range s.steps {
			if !yield(s.frame(i)) {
				return
			}
		}
	}
}

func (s *Store) frame(i int) telemetry.Frame {
	ts := s.steps[i]
	drones := make([]telemetry.DroneState, 0, len(ts.entries))
	for _, e := range ts.entries {
		drones = append(drones, s.norm.Playback(e.id, e.rec))
	}
	return telemetry.Frame{Time: ts.time, Drones: drones}
}

// Corridors returns a copy of the corridors parsed at load.
func (s *Store) Corridors() []telemetry.Corridor {
	out := make([]telemetry.Corridor, len(s.corridors))
	for i, c := range s.corridors {
		c.Centerline = append([][3]float64{}, c.Centerline...)
		c.Connections = append([]string{}, c.Connections...)
		out[i] = c
	}
	return out
}
