package geofence

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadPOIs(t *testing.T) {
	input := `{
	  "type": "FeatureCollection",
	  "features": [
	    {"type": "Feature", "geometry": {"type": "Point", "coordinates": [-73.9857, 40.7484]}, "properties": {"id": "esb", "name": "Empire State"}},
	    {"type": "Feature", "id": "bryant", "geometry": {"type": "Point", "coordinates": [-73.9832, 40.7536]}, "properties": {}}
	  ]
	}`

	pois, err := ReadPOIs(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, pois, 2)

	assert.Equal(t, POI{ID: "esb", Name: "Empire State", Latitude: 40.7484, Longitude: -73.9857}, pois[0])
	assert.Equal(t, "bryant", pois[1].ID)
	assert.Equal(t, "bryant", pois[1].Name)

	_, err = NewCatalog(pois)
	assert.NoError(t, err)
}

func TestReadPOIs_Errors(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr string
	}{
		{"not json", "nope", "failed to parse POI GeoJSON"},
		{"polygon", `{"type":"FeatureCollection","features":[{"type":"Feature","geometry":{"type":"Polygon","coordinates":[[[0,0],[1,0],[1,1],[0,0]]]},"properties":{"id":"x"}}]}`, "expected Point"},
		{"no id", `{"type":"FeatureCollection","features":[{"type":"Feature","geometry":{"type":"Point","coordinates":[0,0]},"properties":{}}]}`, "missing id"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ReadPOIs(strings.NewReader(tt.input))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
