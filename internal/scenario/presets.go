package scenario

// BuiltIn returns the venue presets shipped with the binary. Their drone
// lists are empty; demo exports fill them with patrol circles.
func BuiltIn() map[string]Preset {
	return map[string]Preset{
		"benz-stadium": {
			Name:        "benz-stadium",
			Description: "Perimeter patrol around Mercedes-Benz Stadium, Atlanta.",
			OriginLat:   33.755489,
			OriginLon:   -84.401993,
			Bounds:      Bounds{Min: []float64{-1000, -1000, 0}, Max: []float64{1000, 1000, 150}},
			Timeline: &Timeline{
				Phases: []Phase{
					{Name: "setup", Start: 0, Description: "Patrols launch and climb to station."},
					{Name: "patrol", Start: 30, Description: "Perimeter loops at assigned altitudes."},
					{Name: "recovery", Start: 240, Description: "Patrols return for battery swap."},
				},
			},
		},
		"centennial-park": {
			Name:        "centennial-park",
			Description: "Event overwatch above Centennial Olympic Park.",
			OriginLat:   33.760330,
			OriginLon:   -84.393250,
			Bounds:      Bounds{Min: []float64{-600, -600, 0}, Max: []float64{600, 600, 120}},
			Timeline: &Timeline{
				Phases: []Phase{
					{Name: "setup", Start: 0},
					{Name: "overwatch", Start: 20},
				},
			},
		},
	}
}

// Lookup finds a built-in preset by name.
func Lookup(name string) (Preset, bool) {
	p, ok := BuiltIn()[name]
	return p, ok
}
