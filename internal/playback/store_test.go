package playback

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/klauspost/compress/zstd"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dronevis/internal/altitude"
	"dronevis/internal/geo"
	"dronevis/internal/sink"
	"dronevis/internal/telemetry"
)

var testOrigin = geo.Origin{Lat: 33.755489, Lon: -84.401993}

const testExport = `{
  "metadata": {"region": "Test", "uav_count": 2, "timesteps": 3},
  "corridors": [
    {
      "id": "corridor_001",
      "centerline": [[0, 0, 50], [100, 0, 50], [100, 100, 50]],
      "width": 25.0,
      "altitude_range": [40, 60],
      "capacity": 4,
      "type": "specific",
      "risk_score": 0.1,
      "rf_quality": 0.95,
      "connections": ["corridor_002"]
    },
    {"id": "corridor_002", "centerline": [[33.76, -84.40], [33.77, -84.41]]}
  ],
  "uav_ids": ["drone_001", "drone_002"],
  "timesteps": [
    {"time": 0.0, "uavs": {
      "drone_002": {"position": [50, 50, 60], "velocity": [0, 10, 0], "battery": 0.95, "operational_state": "active"},
      "drone_001": {"position": [0, 0, 50], "velocity": [10, 0, 0], "battery": 1.0, "operational_state": "active"}
    }},
    {"time": 1.0, "uavs": {
      "drone_001": {"position": [10, 0, 50], "velocity": [10, 0, 0], "battery": 99, "operational_state": "active"},
      "drone_002": {"position": [50, 60, 60], "velocity": [0, 10, 0], "battery": 0.94, "operational_state": "returning"}
    }},
    {"time": 2.0, "uavs": {
      "drone_001": {"position": [20, 0, 50], "velocity": [10, 0, 0], "battery": 0.98, "operational_state": "active"},
      "drone_002": {"position": [50, 70, 60], "velocity": [0, 10, 0], "battery": 0.93, "operational_state": "active"}
    }}
  ]
}`

func writeExport(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write export: %v", err)
	}
	return path
}

func loadTestStore(t *testing.T, opts ...Option) *Store {
	t.Helper()
	s, err := Load(writeExport(t, "sim.json", testExport), testOrigin, opts...)
	require.NoError(t, err)
	return s
}

func collect(s *Store) []telemetry.Frame {
	var frames []telemetry.Frame
	for f := range s.Frames() {
		frames = append(frames, f)
	}
	return frames
}

func TestLoad(t *testing.T) {
	s := loadTestStore(t)
	assert.Equal(t, 3, s.Len())
	assert.Equal(t, 0.0, s.Start())
	assert.Equal(t, 2.0, s.End())
	assert.Equal(t, 2.0, s.Duration())
	assert.Equal(t, "Test", s.Metadata()["region"])
	assert.Equal(t, []string{"drone_001", "drone_002"}, s.DroneIDs())
	assert.Equal(t, testOrigin, s.Origin())
	assert.Len(t, s.Corridors(), 2)
}

func TestDurationIsLastMinusFirst(t *testing.T) {
	body := `{"timesteps": [{"time": 10, "uavs": {}}, {"time": 12.5, "uavs": {}}]}`
	s, err := Load(writeExport(t, "offset.json", body), testOrigin)
	require.NoError(t, err)
	assert.Equal(t, 2.5, s.Duration())
}

func TestFramesDeterministic(t *testing.T) {
	a := collect(loadTestStore(t))
	b := collect(loadTestStore(t))
	require.Len(t, a, 3)
	round := cmp.Comparer(func(x, y float64) bool { return math.Abs(x-y) < 1e-6 })
	if diff := cmp.Diff(a, b, round); diff != "" {
		t.Fatalf("frames differ between loads (-a +b):\n%s", diff)
	}
}

func TestFramesMonotonicAndRestartable(t *testing.T) {
	s := loadTestStore(t)
	prev := math.Inf(-1)
	for f := range s.Frames() {
		assert.Greater(t, f.Time, prev)
		prev = f.Time
	}
	// breaking out early must not affect the next iteration
	for range s.Frames() {
		break
	}
	assert.Len(t, collect(s), 3)
}

func TestFramesSortedByID(t *testing.T) {
	f, err := loadTestStore(t).FrameAtTime(0)
	require.NoError(t, err)
	require.Len(t, f.Drones, 2)
	assert.Equal(t, "drone_001", f.Drones[0].ID)
	assert.Equal(t, "drone_002", f.Drones[1].ID)
}

func TestFrameAtTimeBoundaries(t *testing.T) {
	s := loadTestStore(t)

	for _, bad := range []float64{-0.001, 2.0001, 100, math.NaN(), math.Inf(1), math.Inf(-1)} {
		_, err := s.FrameAtTime(bad)
		assert.ErrorIs(t, err, telemetry.ErrNotFound, "t=%v", bad)
	}

	all := collect(s)
	for i, want := range all {
		got, err := s.FrameAtTime(want.Time)
		require.NoError(t, err)
		if diff := cmp.Diff(want, got); diff != "" {
			t.Fatalf("sample %d not returned unmodified:\n%s", i, diff)
		}
	}
}

func TestFrameAtTimeNearest(t *testing.T) {
	s := loadTestStore(t)
	cases := []struct {
		t    float64
		want float64
	}{
		{0.4, 0},
		{0.5, 0}, // tie goes to the earlier sample
		{0.6, 1},
		{1.5, 1},
		{1.51, 2},
	}
	for _, tc := range cases {
		f, err := s.FrameAtTime(tc.t)
		require.NoError(t, err)
		assert.Equal(t, tc.want, f.Time, "t=%v", tc.t)
	}
}

func TestFrameNormalization(t *testing.T) {
	s := loadTestStore(t)
	f, err := s.FrameAtTime(1)
	require.NoError(t, err)
	d1, d2 := f.Drones[0], f.Drones[1]

	lat, lon := testOrigin.ToGeodetic(10, 0)
	assert.InDelta(t, lat, d1.Lat, 1e-12)
	assert.InDelta(t, lon, d1.Lon, 1e-12)
	assert.InDelta(t, 90, d1.Heading, 1e-9)
	assert.InDelta(t, 10, d1.Speed, 1e-12)
	assert.InDelta(t, 0.99, d1.Payload.Battery, 1e-12)
	assert.Equal(t, telemetry.HealthOK, d1.Health)
	assert.InDelta(t, 50+telemetry.StaggerOffset("drone_001"), d1.AltAGL, 1e-12)

	assert.InDelta(t, 0, d2.Heading, 1e-9)
	assert.Equal(t, telemetry.HealthWarning, d2.Health)
}

func TestWithElevation(t *testing.T) {
	svc := altitude.NewService()
	s := loadTestStore(t, WithElevation(svc))
	f, err := s.FrameAtTime(0)
	require.NoError(t, err)
	d := f.Drones[0]
	assert.InDelta(t, d.AltAGL+svc.GroundElevation(d.Lat, d.Lon), d.AltMSL, 1e-9)
}

func TestCorridors(t *testing.T) {
	s := loadTestStore(t)
	cs := s.Corridors()
	c := cs[0]
	assert.Equal(t, "corridor_001", c.ID)
	assert.Equal(t, 25.0, c.Width)
	assert.Equal(t, [2]float64{40, 60}, c.AltitudeRange)
	assert.Equal(t, 0.1, c.RiskScore)
	assert.Equal(t, 0.95, c.RFQuality)
	assert.Equal(t, []string{"corridor_002"}, c.Connections)
	require.Len(t, c.Centerline, 3)
	lat, lon := testOrigin.ToGeodetic(100, 100)
	assert.InDelta(t, lat, c.Centerline[2][0], 1e-12)
	assert.InDelta(t, lon, c.Centerline[2][1], 1e-12)
	assert.Equal(t, 50.0, c.Centerline[2][2])

	d := cs[1]
	assert.Equal(t, telemetry.DefaultCorridorWidth, d.Width)
	assert.Equal(t, telemetry.DefaultCorridorAltitude, d.AltitudeRange)
	assert.Equal(t, telemetry.DefaultCorridorCapacity, d.Capacity)
	assert.Equal(t, telemetry.DefaultCorridorType, d.Type)
	assert.Equal(t, telemetry.DefaultCorridorRF, d.RFQuality)
	assert.Equal(t, [3]float64{33.76, -84.40, 0}, d.Centerline[0])
	assert.Equal(t, []string{}, d.Connections)

	// callers get copies
	cs[0].Centerline[0][0] = 0
	assert.NotEqual(t, 0.0, s.Corridors()[0].Centerline[0][0])
}

func TestLoadErrors(t *testing.T) {
	cases := map[string]string{
		"invalid json":     `{"timesteps": [`,
		"no timesteps":     `{"metadata": {}}`,
		"empty timesteps":  `{"timesteps": []}`,
		"missing time":     `{"timesteps": [{"uavs": {}}]}`,
		"corridor no id":   `{"timesteps": [{"time": 0, "uavs": {}}], "corridors": [{"centerline": []}]}`,
		"corridor 4d":      `{"timesteps": [{"time": 0, "uavs": {}}], "corridors": [{"id": "c", "centerline": [[1,2,3,4]]}]}`,
		"corridor inverse": `{"timesteps": [{"time": 0, "uavs": {}}], "corridors": [{"id": "c", "altitudeRange": [60, 40]}]}`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Load(writeExport(t, "bad.json", body), testOrigin)
			require.Error(t, err)
			var le *telemetry.LoadError
			assert.True(t, errors.As(err, &le), "want LoadError, got %T", err)
		})
	}

	_, err := Load(filepath.Join(t.TempDir(), "missing.json"), testOrigin)
	assert.True(t, telemetry.IsLoad(err))
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestReadSkipsMalformedDrone(t *testing.T) {
	var logBuf bytes.Buffer
	s, err := Read(strings.NewReader(`{"timesteps": [
	  {"time": 0, "uavs": {
	    "good": {"position": [10, 0, 50], "velocity": [1, 0, 0]},
	    "nopos": {"velocity": [1, 0, 0]},
	    "broken": {"position": [1]}
	  }}
	]}`), testOrigin, WithLogger(slog.New(slog.NewTextHandler(&logBuf, nil))))
	require.NoError(t, err)

	f, err := s.FrameAtTime(0)
	require.NoError(t, err)
	require.Len(t, f.Drones, 2)
	assert.Equal(t, "good", f.Drones[0].ID)
	assert.Equal(t, "nopos", f.Drones[1].ID)
	// a missing position sits on the origin
	assert.InDelta(t, testOrigin.Lat, f.Drones[1].Lat, 1e-12)
	assert.InDelta(t, testOrigin.Lon, f.Drones[1].Lon, 1e-12)
	assert.Contains(t, logBuf.String(), "drone=broken")
}

func TestReadOrdersTimesteps(t *testing.T) {
	s, err := Read(strings.NewReader(`{"timesteps": [
	  {"time": 2, "uavs": {"a": {"position": [2, 0, 0]}}},
	  {"time": 0, "uavs": {"a": {"position": [0, 0, 0]}}},
	  {"time": 1, "uavs": {"a": {"position": [1, 0, 0]}}},
	  {"time": 1, "uavs": {"b": {"position": [1, 0, 0]}}}
	]}`), testOrigin)
	require.NoError(t, err)
	assert.Equal(t, 0.0, s.Start())
	assert.Equal(t, 2.0, s.End())

	var times []float64
	for f := range s.Frames() {
		times = append(times, f.Time)
	}
	assert.Equal(t, []float64{0, 1, 1, 2}, times)

	// equal times resolve to the first one in the file
	f, err := s.FrameAtTime(1)
	require.NoError(t, err)
	require.Len(t, f.Drones, 1)
	assert.Equal(t, "a", f.Drones[0].ID)
}

func TestLoadZstd(t *testing.T) {
	var buf bytes.Buffer
	zw, err := zstd.NewWriter(&buf)
	require.NoError(t, err)
	_, err = zw.Write([]byte(testExport))
	require.NoError(t, err)
	require.NoError(t, zw.Close())

	path := writeExport(t, "sim.json.zst", buf.String())
	s, err := Load(path, testOrigin)
	require.NoError(t, err)
	assert.Equal(t, path, s.Path())
	if diff := cmp.Diff(collect(loadTestStore(t)), collect(s), cmpopts.EquateApprox(0, 1e-12)); diff != "" {
		t.Fatalf("compressed export differs:\n%s", diff)
	}
}

type frameCollector struct {
	frames     []telemetry.Frame
	violations []sink.ViolationRow
}

func (c *frameCollector) WriteFrame(f telemetry.Frame) error {
	c.frames = append(c.frames, f)
	return nil
}

func (c *frameCollector) WriteViolation(v sink.ViolationRow) error {
	c.violations = append(c.violations, v)
	return nil
}

func TestReplay(t *testing.T) {
	s := loadTestStore(t)
	c := &frameCollector{}
	ceilings := altitude.NewService(altitude.Cell{LatMin: 33, LatMax: 34, LonMin: -85, LonMax: -84, MaxAltitudeAGL: 60})
	require.NoError(t, Replay(context.Background(), s, c, ReplayOptions{Ceilings: ceilings}))
	assert.Len(t, c.frames, 3)
	// drone_001 peaks at 56 m with its offset, drone_002 at 69 m
	assert.Len(t, c.violations, 3)
	for _, v := range c.violations {
		assert.Equal(t, "drone_002", v.DroneID)
	}
}

func TestReplayCancelled(t *testing.T) {
	s := loadTestStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	c := &frameCollector{}
	err := Replay(ctx, s, c, ReplayOptions{Speed: 1})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, c.frames)
}

func TestReplayLog(t *testing.T) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for f := range loadTestStore(t).Frames() {
		require.NoError(t, enc.Encode(f))
	}
	c := &frameCollector{}
	require.NoError(t, ReplayLog(context.Background(), &buf, c, ReplayOptions{}))
	require.Len(t, c.frames, 3)
	assert.Equal(t, "drone_002", c.frames[2].Drones[1].ID)

	err := ReplayLog(context.Background(), strings.NewReader(`{"time": 0}`+"\n{oops"), c, ReplayOptions{})
	assert.Error(t, err)
}
