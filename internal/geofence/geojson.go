package geofence

import (
	"fmt"
	"io"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// ReadPOIs reads a GeoJSON FeatureCollection of Point features. Each feature
// needs an "id" property (or feature id) and may carry a "name".
func ReadPOIs(r io.Reader) ([]POI, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read POI file: %w", err)
	}

	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse POI GeoJSON: %w", err)
	}

	pois := make([]POI, 0, len(fc.Features))
	for i, f := range fc.Features {
		pt, ok := f.Geometry.(orb.Point)
		if !ok {
			return nil, fmt.Errorf("feature %d: expected Point geometry, got %T", i, f.Geometry)
		}

		id := f.Properties.MustString("id", "")
		if id == "" {
			if fid, ok := f.ID.(string); ok {
				id = fid
			}
		}
		if id == "" {
			return nil, fmt.Errorf("feature %d: missing id", i)
		}

		pois = append(pois, POI{
			ID:        id,
			Name:      f.Properties.MustString("name", id),
			Latitude:  pt.Lat(),
			Longitude: pt.Lon(),
		})
	}

	return pois, nil
}
