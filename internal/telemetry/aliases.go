package telemetry

import (
	"bytes"
	"encoding/json"
	"fmt"
	"maps"
	"slices"
)

// AliasSet maps accepted alternative JSON keys onto their canonical key.
// Nested holds alias sets for object-valued canonical keys.
type AliasSet struct {
	Fields map[string]string
	Nested map[string]AliasSet
}

// Compatibility tables. Canonical keys are the ones on the decode structs;
// when a record carries both a canonical key and an alias, the canonical key
// wins. Between two aliases of one key, the lexically first alias wins.
var (
	PayloadAliases = AliasSet{Fields: map[string]string{
		"camera_streams":  "cameraStreams",
		"gimbal_yaw":      "gimbalYaw",
		"gimbal_pitch":    "gimbalPitch",
		"thermal_enabled": "thermalEnabled",
	}}

	LiveAliases = AliasSet{
		Fields: map[string]string{
			"drone_id":      "id",
			"droneId":       "id",
			"altMsl":        "alt_msl",
			"altAgl":        "alt_agl",
			"linkQuality":   "link_quality",
			"verticalSpeed": "vertical_speed",
			"corridorId":    "corridor_id",
			"routeIndex":    "route_index",
		},
		Nested: map[string]AliasSet{"payload": PayloadAliases},
	}

	PlaybackAliases = AliasSet{Fields: map[string]string{
		"altAgl":           "alt_agl",
		"operationalState": "operational_state",
		"corridorId":       "corridor_id",
		"routeIndex":       "route_index",
	}}

	CorridorAliases = AliasSet{Fields: map[string]string{
		"altitude_range": "altitudeRange",
		"risk_score":     "riskScore",
		"rf_quality":     "rfQuality",
	}}
)

// Canonicalize rewrites the keys of a JSON object according to s and returns
// the re-encoded object. Unknown keys are kept unchanged.
func Canonicalize(data []byte, s AliasSet) ([]byte, error) {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(data, &obj); err != nil {
		return nil, err
	}
	if obj == nil {
		return nil, fmt.Errorf("expected a JSON object")
	}
	if err := canonicalizeObject(obj, s); err != nil {
		return nil, err
	}
	return json.Marshal(obj)
}

func canonicalizeObject(obj map[string]json.RawMessage, s AliasSet) error {
	// sorted so colliding aliases resolve deterministically
	for _, alias := range slices.Sorted(maps.Keys(s.Fields)) {
		canonical := s.Fields[alias]
		v, ok := obj[alias]
		if !ok {
			continue
		}
		delete(obj, alias)
		if _, exists := obj[canonical]; !exists {
			obj[canonical] = v
		}
	}
	for key, nested := range s.Nested {
		v, ok := obj[key]
		if !ok || isNull(v) {
			continue
		}
		out, err := Canonicalize(v, nested)
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		obj[key] = out
	}
	return nil
}

func isNull(v json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(v), []byte("null"))
}
