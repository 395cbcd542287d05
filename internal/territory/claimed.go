package territory

import (
	"encoding/json"
	"fmt"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

type claimedFields Claimed

type claimedJSON struct {
	claimedFields
	Boundary *geojson.Geometry `json:"boundary,omitempty"`
}

// MarshalJSON encodes the claim with its boundary as a GeoJSON geometry
func (c Claimed) MarshalJSON() ([]byte, error) {
	out := claimedJSON{claimedFields: claimedFields(c)}
	if len(c.Boundary) > 0 {
		out.Boundary = geojson.NewGeometry(c.Boundary)
	}
	return json.Marshal(out)
}

// UnmarshalJSON decodes a claim written by MarshalJSON
func (c *Claimed) UnmarshalJSON(data []byte) error {
	var in claimedJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}

	claimed := Claimed(in.claimedFields)
	if in.Boundary != nil {
		poly, ok := in.Boundary.Geometry().(orb.Polygon)
		if !ok {
			return fmt.Errorf("territory boundary: expected Polygon, got %T", in.Boundary.Geometry())
		}
		claimed.Boundary = poly
	}

	*c = claimed
	return nil
}
