package models

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    Level
		wantErr bool
	}{
		{"province", Province, false},
		{"City", City, false},
		{" district ", District, false},
		{"", District, false},
		{"county", District, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseLevel(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestLevelText(t *testing.T) {
	b, err := json.Marshal(map[string]Level{"l": City})
	require.NoError(t, err)
	assert.JSONEq(t, `{"l":"city"}`, string(b))

	var out map[string]Level
	require.NoError(t, json.Unmarshal(b, &out))
	assert.Equal(t, City, out["l"])

	_, err = Level(7).MarshalText()
	assert.Error(t, err)
	assert.Equal(t, "level(7)", Level(7).String())
}

func TestLocationValid(t *testing.T) {
	assert.True(t, Location{Lat: 90, Lon: 180}.Valid())
	assert.True(t, Location{Lat: -90, Lon: -180}.Valid())
	assert.False(t, Location{Lat: 90.0001, Lon: 0}.Valid())
	assert.False(t, Location{Lat: 0, Lon: -180.5}.Valid())
	assert.False(t, Location{Lat: math.NaN(), Lon: 0}.Valid())
	assert.False(t, Location{Lat: 0, Lon: math.Inf(1)}.Valid())
}

func TestBoundingBox(t *testing.T) {
	a := BoundingBox{BottomLeft: Location{Lat: 0, Lon: 0}, TopRight: Location{Lat: 1, Lon: 2}}
	b := BoundingBox{BottomLeft: Location{Lat: -1, Lon: 1}, TopRight: Location{Lat: 0.5, Lon: 3}}

	assert.True(t, a.Contains(1, 2))
	assert.True(t, a.Contains(0, 0))
	assert.False(t, a.Contains(1.01, 1))
	assert.Equal(t, 2.0, a.Width())
	assert.Equal(t, 1.0, a.Height())

	u := a.Union(b)
	assert.Equal(t, Location{Lat: -1, Lon: 0}, u.BottomLeft)
	assert.Equal(t, Location{Lat: 1, Lon: 3}, u.TopRight)
}

func TestGeoInfo(t *testing.T) {
	var empty *GeoInfo
	assert.True(t, empty.Empty())
	assert.Equal(t, "", empty.Adcode())
	assert.Equal(t, "", empty.FormatAddress())

	info := &GeoInfo{Regions: []RegionSummary{
		{Level: Province, Code: "320000", Name: "江苏省"},
		{Level: City, Code: "320100", Name: "南京市"},
	}}
	assert.False(t, info.Empty())
	assert.Equal(t, "320100", info.Adcode())
	assert.Equal(t, "江苏省南京市", info.FormatAddress())

	r, ok := info.At(Province)
	require.True(t, ok)
	assert.Equal(t, "320000", r.Code)

	_, ok = info.At(District)
	assert.False(t, ok)
}
