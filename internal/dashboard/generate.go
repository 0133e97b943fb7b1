// Package dashboard renders Grafana dashboards over the GreptimeDB tables
// written by the sink package.
package dashboard

import (
	"embed"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"
	"text/template"

	"dronevis/internal/sink"
)

//go:embed templates/*.json.tmpl
var templates embed.FS

// Options names the tables the dashboards query.
type Options struct {
	Database       string
	TelemetryTable string
	ViolationTable string
}

func (o Options) withDefaults() Options {
	if o.Database == "" {
		o.Database = "public"
	}
	if o.TelemetryTable == "" {
		o.TelemetryTable = sink.DefaultTelemetryTable
	}
	if o.ViolationTable == "" {
		o.ViolationTable = sink.DefaultViolationTable
	}
	return o
}

var funcMap = template.FuncMap{
	"env": func(key string) (string, error) {
		v := os.Getenv(key)
		if v == "" {
			return "", fmt.Errorf("environment variable %s not set", key)
		}
		return v, nil
	},
}

// Render executes every embedded template and writes the dashboards to
// outDir. Templates read the datasource uid from GREPTIMEDB_DATASOURCE_UID.
func Render(outDir string, opts Options) ([]string, error) {
	opts = opts.withDefaults()
	names, err := fs.Glob(templates, "templates/*.json.tmpl")
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return nil, err
	}
	var written []string
	for _, name := range names {
		t, err := template.New(path.Base(name)).Funcs(funcMap).ParseFS(templates, name)
		if err != nil {
			return nil, err
		}
		var b strings.Builder
		if err := t.Execute(&b, opts); err != nil {
			return nil, fmt.Errorf("render %s: %w", path.Base(name), err)
		}
		outPath := filepath.Join(outDir, strings.TrimSuffix(path.Base(name), ".tmpl"))
		if err := os.WriteFile(outPath, []byte(b.String()), 0o644); err != nil {
			return nil, err
		}
		written = append(written, outPath)
	}
	return written, nil
}
