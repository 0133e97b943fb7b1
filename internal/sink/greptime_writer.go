package sink

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	gpb "github.com/GreptimeTeam/greptime-proto/go/greptime/v1"
	greptime "github.com/GreptimeTeam/greptimedb-ingester-go"
	"github.com/GreptimeTeam/greptimedb-ingester-go/table"
	"github.com/GreptimeTeam/greptimedb-ingester-go/table/types"

	"dronevis/internal/telemetry"
)

// Default GreptimeDB table names.
const (
	DefaultTelemetryTable = "drone_telemetry"
	DefaultViolationTable = "ceiling_violations"
)

const defaultGreptimePort = 4001

type greptimeClient interface {
	Write(ctx context.Context, tables ...*table.Table) (*gpb.GreptimeResponse, error)
}

// GreptimeDBWriter writes one row per drone per frame to GreptimeDB.
// Frame times are seconds relative to Epoch.
type GreptimeDBWriter struct {
	client         greptimeClient
	table          string
	violationTable string
	scenario       string
	epoch          time.Time
	log            *slog.Logger
}

// GreptimeOptions configures NewGreptimeDBWriter.
type GreptimeOptions struct {
	Endpoint       string // host or host:port of the gRPC endpoint
	Database       string
	Table          string
	ViolationTable string
	Scenario       string    // tag attached to every row
	Epoch          time.Time // wall time of frame time 0; defaults to now
	Logger         *slog.Logger
}

// NewGreptimeDBWriter creates a writer connected to opts.Endpoint.
func NewGreptimeDBWriter(opts GreptimeOptions) (*GreptimeDBWriter, error) {
	host, port, err := splitEndpoint(opts.Endpoint)
	if err != nil {
		return nil, err
	}
	cfg := greptime.NewConfig(host).WithPort(port).WithDatabase(opts.Database)
	client, err := greptime.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("greptime client: %w", err)
	}
	return newGreptimeDBWriter(client, opts), nil
}

func newGreptimeDBWriter(client greptimeClient, opts GreptimeOptions) *GreptimeDBWriter {
	w := &GreptimeDBWriter{
		client:         client,
		table:          opts.Table,
		violationTable: opts.ViolationTable,
		scenario:       opts.Scenario,
		epoch:          opts.Epoch,
		log:            opts.Logger,
	}
	if w.table == "" {
		w.table = DefaultTelemetryTable
	}
	if w.violationTable == "" {
		w.violationTable = DefaultViolationTable
	}
	if w.epoch.IsZero() {
		w.epoch = time.Now().UTC()
	}
	if w.log == nil {
		w.log = slog.Default()
	}
	return w
}

func splitEndpoint(endpoint string) (string, int, error) {
	host, portStr, found := strings.Cut(endpoint, ":")
	if host == "" {
		return "", 0, fmt.Errorf("greptime endpoint %q has no host", endpoint)
	}
	if !found {
		return host, defaultGreptimePort, nil
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return "", 0, fmt.Errorf("greptime endpoint %q: %w", endpoint, err)
	}
	return host, port, nil
}

func (w *GreptimeDBWriter) at(t float64) time.Time {
	return w.epoch.Add(time.Duration(t * float64(time.Second)))
}

// WriteFrame inserts the drones of a single frame.
func (w *GreptimeDBWriter) WriteFrame(f telemetry.Frame) error {
	return w.WriteFrames([]telemetry.Frame{f})
}

// WriteFrames inserts the drones of multiple frames in one request.
func (w *GreptimeDBWriter) WriteFrames(frames []telemetry.Frame) error {
	tbl, err := table.New(w.table)
	if err != nil {
		return err
	}
	for _, c := range []struct {
		name string
		tag  bool
		typ  types.ColumnType
	}{
		{"scenario", true, types.STRING},
		{"drone_id", true, types.STRING},
		{"lat", false, types.FLOAT64},
		{"lon", false, types.FLOAT64},
		{"alt_msl", false, types.FLOAT64},
		{"alt_agl", false, types.FLOAT64},
		{"heading", false, types.FLOAT64},
		{"speed", false, types.FLOAT64},
		{"vertical_speed", false, types.FLOAT64},
		{"battery", false, types.FLOAT64},
		{"link_quality", false, types.FLOAT64},
		{"health", false, types.STRING},
		{"corridor_id", false, types.STRING},
	} {
		if c.tag {
			err = tbl.AddTagColumn(c.name, c.typ)
		} else {
			err = tbl.AddFieldColumn(c.name, c.typ)
		}
		if err != nil {
			return err
		}
	}
	if err := tbl.AddTimestampColumn("ts", types.TIMESTAMP_MILLISECOND); err != nil {
		return err
	}

	rows := 0
	for _, f := range frames {
		ts := w.at(f.Time)
		for _, d := range f.Drones {
			battery := 0.0
			if d.Payload != nil {
				battery = d.Payload.Battery
			}
			if err := tbl.AddRow(w.scenario, d.ID, d.Lat, d.Lon, d.AltMSL, d.AltAGL,
				d.Heading, d.Speed, d.VerticalSpeed, battery, d.LinkQuality,
				string(d.Health), d.CorridorID, ts); err != nil {
				return err
			}
			rows++
		}
	}
	if rows == 0 {
		return nil
	}

	if _, err := w.client.Write(context.Background(), tbl); err != nil {
		w.log.Error("greptime write failed", "table", w.table, "err", err)
		return err
	}
	w.log.Debug("greptime wrote rows", "table", w.table, "rows", rows)
	return nil
}

// WriteViolation inserts a single ceiling violation.
func (w *GreptimeDBWriter) WriteViolation(row ViolationRow) error {
	return w.WriteViolations([]ViolationRow{row})
}

// WriteViolations inserts multiple ceiling violations.
func (w *GreptimeDBWriter) WriteViolations(rows []ViolationRow) error {
	if len(rows) == 0 {
		return nil
	}
	tbl, err := table.New(w.violationTable)
	if err != nil {
		return err
	}
	if err := tbl.AddTagColumn("scenario", types.STRING); err != nil {
		return err
	}
	if err := tbl.AddTagColumn("drone_id", types.STRING); err != nil {
		return err
	}
	for _, name := range []string{"lat", "lon", "alt_agl", "ceiling_agl", "margin"} {
		if err := tbl.AddFieldColumn(name, types.FLOAT64); err != nil {
			return err
		}
	}
	if err := tbl.AddTimestampColumn("ts", types.TIMESTAMP_MILLISECOND); err != nil {
		return err
	}
	for _, r := range rows {
		if err := tbl.AddRow(w.scenario, r.DroneID, r.Lat, r.Lon, r.AltAGL, r.CeilingAGL, r.Margin, w.at(r.Time)); err != nil {
			return err
		}
	}
	if _, err := w.client.Write(context.Background(), tbl); err != nil {
		w.log.Error("greptime write failed", "table", w.violationTable, "err", err)
		return err
	}
	return nil
}
