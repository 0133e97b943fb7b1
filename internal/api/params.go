package api

import (
	"encoding/json"
	"fmt"
	"io"
	"math"
	"mime"
	"net/http"
	"net/url"
	"strconv"

	"dronevis/internal/telemetry"
)

const maxParamBody = 1 << 20

// params merges query values with a JSON object body. Body values win.
type params struct {
	query url.Values
	body  map[string]any
}

func readParams(r *http.Request) (params, error) {
	p := params{query: r.URL.Query()}
	if r.Body == nil || r.ContentLength == 0 {
		return p, nil
	}
	if ct, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type")); ct != "application/json" {
		return p, nil
	}
	dec := json.NewDecoder(io.LimitReader(r.Body, maxParamBody))
	dec.UseNumber()
	if err := dec.Decode(&p.body); err != nil && err != io.EOF {
		return p, &telemetry.ValidationError{Field: "body", Reason: err.Error()}
	}
	return p, nil
}

func (p params) str(name string) (string, bool) {
	if v, ok := p.body[name]; ok && v != nil {
		switch v := v.(type) {
		case string:
			return v, true
		case json.Number:
			return v.String(), true
		default:
			return fmt.Sprint(v), true
		}
	}
	if p.query.Has(name) {
		return p.query.Get(name), true
	}
	return "", false
}

// float returns the named number. ok is false when the parameter is absent.
func (p params) float(name string) (v float64, ok bool, err error) {
	s, ok := p.str(name)
	if !ok {
		return 0, false, nil
	}
	v, err = parseFinite(name, s)
	return v, true, err
}

// parseFinite parses s, rejecting NaN and infinities.
func parseFinite(name, s string) (float64, error) {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, &telemetry.ValidationError{Field: name, Reason: "must be a finite number"}
	}
	return v, nil
}

func (p params) requireFloat(name string) (float64, error) {
	v, ok, err := p.float(name)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, &telemetry.ValidationError{Field: name, Reason: "is required"}
	}
	return v, nil
}

func (p params) object(name string) map[string]any {
	m, _ := p.body[name].(map[string]any)
	return m
}
