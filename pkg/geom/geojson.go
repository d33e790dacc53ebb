package geom

import (
	"encoding/json"
	"fmt"

	gogeom "github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"
)

// GeoJSONFeature represents a GeoJSON Feature carrying a Geometry
type GeoJSONFeature struct {
	Type       string          `json:"type"`
	Geometry   json.RawMessage `json:"geometry"`
	Properties map[string]any  `json:"properties"`
}

// MarshalGeoJSON encodes g as a GeoJSON geometry object.
func MarshalGeoJSON(g Geometry) ([]byte, error) {
	t, err := ToT(g)
	if err != nil {
		return nil, err
	}
	return geojson.Marshal(t)
}

// UnmarshalGeoJSON decodes a GeoJSON geometry object. Structural problems in
// the decoded value are reported as ErrInvalidGeometry.
func UnmarshalGeoJSON(data []byte) (Geometry, error) {
	var t gogeom.T
	if err := geojson.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("%w: failed to unmarshal geojson: %v", ErrInvalidGeometry, err)
	}
	if t == nil {
		return nil, invalid("geojson geometry is null")
	}
	return FromT(t)
}

// NewGeoJSONFeature wraps g into a Feature with the given properties.
func NewGeoJSONFeature(g Geometry, properties map[string]any) (GeoJSONFeature, error) {
	raw, err := MarshalGeoJSON(g)
	if err != nil {
		return GeoJSONFeature{}, err
	}
	if properties == nil {
		properties = make(map[string]any)
	}
	return GeoJSONFeature{
		Type:       "Feature",
		Geometry:   raw,
		Properties: properties,
	}, nil
}
