package altitude

import (
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dronevis/internal/telemetry"
)

const testFacilityMap = `{
  "cells": [
    {"latMin": 33.750, "latMax": 33.760, "lonMin": -84.410, "lonMax": -84.395, "maxAltitudeAgl": 121.92},
    {"latMin": 33.760, "latMax": 33.770, "lonMin": -84.410, "lonMax": -84.395, "maxAltitudeAgl": 60.96}
  ]
}`

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func loadTestService(t *testing.T) *Service {
	t.Helper()
	svc, err := Load(writeFile(t, "facility_map.json", testFacilityMap))
	require.NoError(t, err)
	return svc
}

func TestLoadFacilityMap(t *testing.T) {
	svc := loadTestService(t)
	assert.Equal(t, 2, svc.Len())
	cells := svc.Cells()
	assert.Equal(t, 60.96, cells[1].MaxAltitudeAGL)
	assert.Nil(t, cells[0].Ground)
}

func TestCeilingContainment(t *testing.T) {
	svc := loadTestService(t)
	assert.Equal(t, 121.92, svc.Ceiling(33.755, -84.402))
	assert.Equal(t, DefaultCeilingAGL, svc.Ceiling(40.0, -74.0))

	_, ok := svc.LookupCell(40.0, -74.0)
	assert.False(t, ok)
}

func TestCeilingFirstCellWins(t *testing.T) {
	svc := loadTestService(t)
	// 33.760 lies on the shared edge; bounds are inclusive so the first cell wins.
	assert.Equal(t, 121.92, svc.Ceiling(33.760, -84.400))
	assert.Equal(t, 60.96, svc.Ceiling(33.765, -84.400))
	// corners are inclusive
	assert.Equal(t, 121.92, svc.Ceiling(33.750, -84.410))
	assert.Equal(t, 60.96, svc.Ceiling(33.770, -84.395))
}

func TestCheckViolation(t *testing.T) {
	svc := loadTestService(t)

	v := svc.CheckViolation(33.755, -84.402, 100.0)
	assert.False(t, v.Violation)
	assert.Greater(t, v.Margin, 0.0)
	assert.Equal(t, 100.0, v.CurrentAltAGL)
	assert.Equal(t, 121.92, v.CeilingAGL)

	v = svc.CheckViolation(33.755, -84.402, 150.0)
	assert.True(t, v.Violation)
	assert.Less(t, v.Margin, 0.0)

	// exactly at the ceiling is not a violation
	v = svc.CheckViolation(33.755, -84.402, 121.92)
	assert.False(t, v.Violation)
	assert.Zero(t, v.Margin)
}

func TestCheckViolationWithoutCellsUsesDefault(t *testing.T) {
	svc := NewService()
	v := svc.CheckViolation(40.0, -74.0, 130)
	assert.True(t, v.Violation)
	assert.Equal(t, DefaultCeilingAGL, v.CeilingAGL)
}

func TestAddCell(t *testing.T) {
	svc := NewService()
	svc.AddCell(Cell{LatMin: 33, LatMax: 34, LonMin: -85, LonMax: -84, MaxAltitudeAGL: 100})
	assert.Equal(t, 1, svc.Len())
	assert.Equal(t, 100.0, svc.Ceiling(33.5, -84.5))
}

func TestGroundElevationEstimate(t *testing.T) {
	svc := NewService()
	assert.InDelta(t, 300.0, svc.GroundElevation(33.755489, -84.401993), 1e-9)
	assert.Equal(t, 350.0, svc.GroundElevation(40, -74))
	assert.Equal(t, 250.0, svc.GroundElevation(30, -84))
}

func TestGroundElevationCached(t *testing.T) {
	svc := NewService()
	e1 := svc.GroundElevation(33.755489, -84.401993)
	e2 := svc.GroundElevation(33.755489, -84.401993)
	assert.Equal(t, e1, e2)
	assert.Equal(t, 1, svc.cache.Len())

	// a sub-micro-degree difference hits the same key
	svc.GroundElevation(33.7554891, -84.4019931)
	assert.Equal(t, 1, svc.cache.Len())
}

func TestGroundElevationFromCell(t *testing.T) {
	ground := 280.5
	svc := NewService(
		Cell{LatMin: 0, LatMax: 1, LonMin: 0, LonMax: 1, MaxAltitudeAGL: 50},
		Cell{LatMin: 0, LatMax: 1, LonMin: 0, LonMax: 1, MaxAltitudeAGL: 90, Ground: &ground},
	)
	assert.Equal(t, 280.5, svc.GroundElevation(0.5, 0.5))
	// ceiling still comes from the first containing cell
	assert.Equal(t, 50.0, svc.Ceiling(0.5, 0.5))
}

func TestMSLAGLConversion(t *testing.T) {
	svc := NewService()
	lat, lon := 33.755489, -84.401993

	agl := svc.MSLToAGL(lat, lon, 400)
	assert.Greater(t, agl, 0.0)
	assert.Less(t, agl, 400.0)

	msl := svc.AGLToMSL(lat, lon, 100)
	assert.Greater(t, msl, 100.0)
	assert.InDelta(t, 100.0, svc.MSLToAGL(lat, lon, msl), 1e-9)
}

func TestLoadCellsLegacyLayout(t *testing.T) {
	path := writeFile(t, "legacy.json", `[
	  {"latRange": [33.75, 33.76], "lonRange": [-84.41, -84.39], "maxAltitudeAgl": 30.48, "ground": 301}
	]`)
	cells, err := LoadCells(path)
	require.NoError(t, err)
	require.Len(t, cells, 1)
	assert.Equal(t, 33.75, cells[0].LatMin)
	assert.Equal(t, -84.39, cells[0].LonMax)
	require.NotNil(t, cells[0].Ground)
	assert.Equal(t, 301.0, *cells[0].Ground)
}

func TestLoadCellsErrors(t *testing.T) {
	cases := map[string]string{
		"invalid json":    `{"cells": [`,
		"no cells list":   `{"zones": []}`,
		"missing bounds":  `{"cells": [{"latMin": 1, "maxAltitudeAgl": 10}]}`,
		"missing ceiling": `{"cells": [{"latMin": 1, "latMax": 2, "lonMin": 1, "lonMax": 2}]}`,
		"inverted":        `{"cells": [{"latMin": 2, "latMax": 1, "lonMin": 1, "lonMax": 2, "maxAltitudeAgl": 10}]}`,
		"negative":        `{"cells": [{"latMin": 1, "latMax": 2, "lonMin": 1, "lonMax": 2, "maxAltitudeAgl": -1}]}`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := LoadCells(writeFile(t, "map.json", body))
			require.Error(t, err)
			assert.True(t, telemetry.IsLoad(err), "want LoadError, got %T", err)
		})
	}

	_, err := Load(filepath.Join(t.TempDir(), "missing.json"))
	assert.True(t, telemetry.IsLoad(err))
}

func TestLoadEmptyFacilityMap(t *testing.T) {
	for name, body := range map[string]string{"object": `{"cells": []}`, "array": `[]`} {
		t.Run(name, func(t *testing.T) {
			svc, err := Load(writeFile(t, "empty.json", body))
			require.NoError(t, err)
			assert.Equal(t, 0, svc.Len())
			_, inCell := svc.LookupCell(33.755, -84.4)
			assert.False(t, inCell)
			assert.Equal(t, DefaultCeilingAGL, svc.Ceiling(33.755, -84.4))
		})
	}
}

func TestAddCellDropsStaleGroundDuringReads(t *testing.T) {
	svc := NewService()
	lat, lon := 0.5, 0.5
	stop := make(chan struct{})
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
					svc.GroundElevation(lat, lon)
				}
			}
		}()
	}
	ground := 123.0
	svc.AddCell(Cell{LatMin: 0, LatMax: 1, LonMin: 0, LonMax: 1, MaxAltitudeAGL: 50, Ground: &ground})
	got := svc.GroundElevation(lat, lon)
	close(stop)
	wg.Wait()
	assert.Equal(t, ground, got)
	assert.Equal(t, ground, svc.GroundElevation(lat, lon))
}

func TestMarshalCellsRoundTrip(t *testing.T) {
	svc := loadTestService(t)
	data, err := MarshalCells(svc.Cells())
	require.NoError(t, err)
	cells, err := ParseCells(data)
	require.NoError(t, err)
	assert.Equal(t, svc.Cells(), cells)
}

func TestConcurrentQueries(t *testing.T) {
	svc := loadTestService(t)
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				lat := 33.75 + float64(j)*0.0001
				svc.GroundElevation(lat, -84.4)
				svc.CheckViolation(lat, -84.4, float64(i*10))
				if j == 100 {
					svc.AddCell(Cell{LatMin: 0, LatMax: 1, LonMin: 0, LonMax: 1, MaxAltitudeAGL: 10})
				}
			}
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 10, svc.Len())
}
