package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"dronevis/internal/altitude"
)

var (
	ceilingFacility string
	ceilingLat      float64
	ceilingLon      float64
	ceilingAlt      float64
)

var ceilingCmd = &cobra.Command{
	Use:   "ceiling",
	Short: "Look up the altitude ceiling at a point",
	RunE: func(cmd *cobra.Command, args []string) error {
		svc := altitude.NewService()
		if ceilingFacility != "" {
			var err error
			if svc, err = altitude.Load(ceilingFacility); err != nil {
				return err
			}
		}
		_, inCell := svc.LookupCell(ceilingLat, ceilingLon)
		out := map[string]any{
			"lat":             ceilingLat,
			"lon":             ceilingLon,
			"ceilingAgl":      svc.Ceiling(ceilingLat, ceilingLon),
			"groundElevation": svc.GroundElevation(ceilingLat, ceilingLon),
			"inCell":          inCell,
		}
		if cmd.Flags().Changed("alt") {
			out["check"] = svc.CheckViolation(ceilingLat, ceilingLon, ceilingAlt)
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(out); err != nil {
			return fmt.Errorf("encode result: %w", err)
		}
		return nil
	},
}

func init() {
	ceilingCmd.Flags().StringVar(&ceilingFacility, "facility-map", "", "Facility map file")
	ceilingCmd.Flags().Float64Var(&ceilingLat, "lat", 0, "Latitude")
	ceilingCmd.Flags().Float64Var(&ceilingLon, "lon", 0, "Longitude")
	ceilingCmd.Flags().Float64Var(&ceilingAlt, "alt", 0, "Altitude above ground to check, meters")
	ceilingCmd.MarkFlagRequired("lat")
	ceilingCmd.MarkFlagRequired("lon")
}
