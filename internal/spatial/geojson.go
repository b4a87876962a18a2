// Package spatial normalizes GeoJSON payloads into the geometry stored with
// forms and requests, and assembles feature collections for responses.
package spatial

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// Geometry is a GeoJSON geometry object.
type Geometry struct {
	Type        string          `json:"type"`
	Coordinates json.RawMessage `json:"coordinates,omitempty"`
	Geometries  []Geometry      `json:"geometries,omitempty"`
}

// Feature is a GeoJSON feature.
type Feature struct {
	Type       string                 `json:"type"`
	ID         string                 `json:"id,omitempty"`
	Geometry   *Geometry              `json:"geometry"`
	Properties map[string]interface{} `json:"properties"`
}

// FeatureCollection is a GeoJSON feature collection.
type FeatureCollection struct {
	Type     string    `json:"type"`
	Features []Feature `json:"features"`
}

var geometryTypes = map[string]bool{
	"Point":              true,
	"MultiPoint":         true,
	"LineString":         true,
	"MultiLineString":    true,
	"Polygon":            true,
	"MultiPolygon":       true,
	"GeometryCollection": true,
}

// ErrEmptyGeometry is returned when a payload carries no geometry at all.
var ErrEmptyGeometry = errors.New("geometry is empty")

// Normalizer turns raw GeoJSON into a single geometry document.
type Normalizer struct{}

// Normalize accepts a FeatureCollection, a Feature or a bare geometry and
// returns one geometry encoded as JSON. Several features become a GeometryCollection.
func (Normalizer) Normalize(raw json.RawMessage) (string, error) {
	return Normalize(raw)
}

// Normalize is the function form of Normalizer.Normalize.
func Normalize(raw json.RawMessage) (string, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return "", ErrEmptyGeometry
	}

	var probe struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(raw, &probe); err != nil {
		return "", fmt.Errorf("invalid geojson: %w", err)
	}

	var geoms []Geometry
	switch probe.Type {
	case "FeatureCollection":
		var fc FeatureCollection
		if err := json.Unmarshal(raw, &fc); err != nil {
			return "", fmt.Errorf("invalid feature collection: %w", err)
		}
		for _, f := range fc.Features {
			if f.Geometry != nil {
				geoms = append(geoms, *f.Geometry)
			}
		}
	case "Feature":
		var f Feature
		if err := json.Unmarshal(raw, &f); err != nil {
			return "", fmt.Errorf("invalid feature: %w", err)
		}
		if f.Geometry != nil {
			geoms = append(geoms, *f.Geometry)
		}
	default:
		var g Geometry
		if err := json.Unmarshal(raw, &g); err != nil {
			return "", fmt.Errorf("invalid geometry: %w", err)
		}
		geoms = append(geoms, g)
	}

	if len(geoms) == 0 {
		return "", ErrEmptyGeometry
	}
	for _, g := range geoms {
		if err := validate(g); err != nil {
			return "", err
		}
	}

	out := geoms[0]
	if len(geoms) > 1 {
		out = Geometry{Type: "GeometryCollection", Geometries: geoms}
	}
	b, err := json.Marshal(out)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func validate(g Geometry) error {
	if !geometryTypes[g.Type] {
		return fmt.Errorf("unsupported geometry type %q", g.Type)
	}
	if g.Type == "GeometryCollection" {
		if len(g.Geometries) == 0 {
			return ErrEmptyGeometry
		}
		for _, child := range g.Geometries {
			if err := validate(child); err != nil {
				return err
			}
		}
		return nil
	}
	var coords []interface{}
	if err := json.Unmarshal(g.Coordinates, &coords); err != nil || len(coords) == 0 {
		return fmt.Errorf("%s has no coordinates", g.Type)
	}
	return nil
}

// Row is one stored geometry and the id of the entity it belongs to.
type Row struct {
	ID       string
	Geometry string
}

// ToFeatureCollection wraps stored geometries into a FeatureCollection.
// Rows with empty or unparsable geometry are skipped.
func ToFeatureCollection(rows []Row) FeatureCollection {
	fc := FeatureCollection{Type: "FeatureCollection", Features: []Feature{}}
	for _, r := range rows {
		if r.Geometry == "" {
			continue
		}
		var g Geometry
		if err := json.Unmarshal([]byte(r.Geometry), &g); err != nil {
			continue
		}
		fc.Features = append(fc.Features, Feature{
			Type:       "Feature",
			ID:         r.ID,
			Geometry:   &g,
			Properties: map[string]interface{}{"id": r.ID},
		})
	}
	return fc
}
