package geofence

import (
	"fmt"

	"github.com/stuartshay/geo-session-engine/internal/gps"
)

// POI is a point of interest the player can walk up to
type POI struct {
	ID        string  `json:"id"`
	Name      string  `json:"name"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Catalog is an immutable set of POIs shared by every player session
type Catalog struct {
	pois []POI
	byID map[string]int
}

// NewCatalog validates the POIs and builds the lookup index
func NewCatalog(pois []POI) (*Catalog, error) {
	c := &Catalog{
		pois: make([]POI, 0, len(pois)),
		byID: make(map[string]int, len(pois)),
	}

	for _, p := range pois {
		if p.ID == "" {
			return nil, fmt.Errorf("poi %q: id is required", p.Name)
		}
		if _, dup := c.byID[p.ID]; dup {
			return nil, fmt.Errorf("poi %s: duplicate id", p.ID)
		}
		point := gps.Fix{Latitude: p.Latitude, Longitude: p.Longitude}
		if !point.Valid() {
			return nil, fmt.Errorf("poi %s: invalid coordinate %f,%f", p.ID, p.Latitude, p.Longitude)
		}
		c.byID[p.ID] = len(c.pois)
		c.pois = append(c.pois, p)
	}

	return c, nil
}

// Len returns the number of POIs
func (c *Catalog) Len() int {
	return len(c.pois)
}

// Lookup returns the POI with the given id
func (c *Catalog) Lookup(id string) (POI, bool) {
	i, ok := c.byID[id]
	if !ok {
		return POI{}, false
	}
	return c.pois[i], true
}

// POIs returns a copy of the catalog contents
func (c *Catalog) POIs() []POI {
	return append([]POI(nil), c.pois...)
}

func (p POI) distanceTo(fix gps.Fix) float64 {
	return fix.DistanceTo(gps.Fix{Latitude: p.Latitude, Longitude: p.Longitude})
}
