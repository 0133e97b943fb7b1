package demo

import (
	"bytes"
	"math"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dronevis/internal/geo"
	"dronevis/internal/playback"
	"dronevis/internal/scenario"
)

var origin = geo.Origin{Lat: 33.755489, Lon: -84.401993}

func TestGenerateDefaultPatrols(t *testing.T) {
	ex, err := Generate(Options{Region: "Mercedes-Benz Stadium", Origin: origin, Step: 1})
	require.NoError(t, err)
	assert.Equal(t, []string{"PATROL_001", "PATROL_002", "PATROL_003"}, ex.UAVIDs)
	assert.Len(t, ex.Corridors, 3)
	assert.Equal(t, len(ex.Timesteps), ex.Metadata.Timesteps)
	assert.Equal(t, []float64{-700, 700}, ex.Metadata.SpatialBounds["x"])

	first := ex.Timesteps[0].UAVs["PATROL_001"]
	assert.InDelta(t, 500, first.Position[0], 1e-9)
	assert.InDelta(t, 0, first.Position[1], 1e-9)
	assert.Equal(t, 60.0, first.Position[2])
	assert.InDelta(t, 12, math.Hypot(first.Velocity[0], first.Velocity[1]), 1e-9)
	assert.Equal(t, 1.0, first.Battery)

	for i := 1; i < len(ex.Timesteps); i++ {
		require.Greater(t, ex.Timesteps[i].Time, ex.Timesteps[i-1].Time)
	}
	last := ex.Timesteps[len(ex.Timesteps)-1]
	assert.Contains(t, last.UAVs, "PATROL_002", "the widest loop finishes last")
	assert.Less(t, last.UAVs["PATROL_002"].Battery, 1.0)
}

func TestGenerateStaysOnCircle(t *testing.T) {
	ex, err := Generate(Options{Patrols: []Patrol{{ID: "p", Radius: 100, AltitudeAGL: 40, Speed: 5}}, Step: 0.5})
	require.NoError(t, err)
	chord := 2 * 100 * math.Sin(math.Pi/defaultWaypoints)
	sagitta := 100 - math.Sqrt(100*100-chord*chord/4)
	for _, ts := range ex.Timesteps {
		s := ts.UAVs["p"]
		r := math.Hypot(s.Position[0], s.Position[1])
		require.InDelta(t, 100-sagitta/2, r, sagitta/2+1e-9)
	}
}

func TestGeneratePresetPaths(t *testing.T) {
	north := 33.755489 + 200/geo.MetersPerDegreeLat
	ex, err := Generate(Options{
		Origin: origin,
		Paths: []scenario.DronePath{{
			ID:    "scripted",
			Speed: 10,
			Path:  [][]float64{{-84.401993, 33.755489, 30}, {-84.401993, north, 50}},
		}},
		Step: 1,
	})
	require.NoError(t, err)
	require.Len(t, ex.Timesteps, 20)
	s := ex.Timesteps[10].UAVs["scripted"]
	assert.InDelta(t, 0, s.Position[0], 1e-6)
	assert.InDelta(t, 100, s.Position[1], 1e-6)
	assert.InDelta(t, 40, s.Position[2], 1e-9)
	assert.Equal(t, [2]float64{10, 70}, ex.Corridors[0].AltitudeRange)
}

func TestGenerateRejectsBadInput(t *testing.T) {
	_, err := Generate(Options{Patrols: []Patrol{{ID: "p", Radius: 0, Speed: 1}}})
	assert.Error(t, err)
	_, err = Generate(Options{Paths: []scenario.DronePath{{ID: "d", Speed: 1, Path: [][]float64{{0, 0}}}}})
	assert.Error(t, err)
}

func TestExportLoadsInPlayback(t *testing.T) {
	ex, err := Generate(Options{Origin: origin, Step: 2})
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, Write(&buf, ex))
	store, err := playback.Read(&buf, origin)
	require.NoError(t, err)
	assert.Equal(t, len(ex.Timesteps), store.Len())
	assert.Equal(t, ex.UAVIDs, store.DroneIDs())

	f, err := store.FrameAtTime(0)
	require.NoError(t, err)
	require.Len(t, f.Drones, 3)
	d := f.Drones[0]
	assert.Equal(t, "PATROL_001", d.ID)
	assert.InDelta(t, 500, geo.HaversineDistance(origin.Lat, origin.Lon, d.Lat, d.Lon), 1)
	assert.Equal(t, "corridor_PATROL_001", d.CorridorID)

	cors := store.Corridors()
	require.Len(t, cors, 3)
	assert.Len(t, cors[0].Centerline, defaultWaypoints+1)
}

func TestWriteFileCompressed(t *testing.T) {
	ex, err := Generate(Options{Origin: origin, Step: 5})
	require.NoError(t, err)
	for _, name := range []string{"demo.json", "demo.json.zst"} {
		p := filepath.Join(t.TempDir(), name)
		require.NoError(t, WriteFile(p, ex))
		store, err := playback.Load(p, origin)
		require.NoError(t, err, name)
		assert.Equal(t, len(ex.Timesteps), store.Len(), name)
	}
}
