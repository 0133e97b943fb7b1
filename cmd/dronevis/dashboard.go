package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"dronevis/internal/dashboard"
)

var dashboardOut string

var dashboardCmd = &cobra.Command{
	Use:   "dashboard",
	Short: "Render Grafana dashboards for the GreptimeDB tables",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return fmt.Errorf("config load failed: %w", err)
		}
		files, err := dashboard.Render(dashboardOut, dashboard.Options{
			Database:       cfg.Greptime.Database,
			TelemetryTable: cfg.Greptime.Table,
			ViolationTable: cfg.Greptime.ViolationTable,
		})
		if err != nil {
			return err
		}
		for _, f := range files {
			fmt.Fprintln(cmd.OutOrStdout(), f)
		}
		return nil
	},
}

func init() {
	dashboardCmd.Flags().StringVar(&dashboardOut, "out", "build", "Output directory")
}
