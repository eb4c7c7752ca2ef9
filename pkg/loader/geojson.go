package loader

import (
	"encoding/json"
	"os"
	"strconv"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"

	"github.com/1F47E/geo-region-index/pkg/models"
	"github.com/1F47E/geo-region-index/pkg/region"
)

// readGeoJSON reads a FeatureCollection of Polygon or MultiPolygon features.
// Coordinates follow GeoJSON order ([lng, lat]). The code is taken from the
// "code" or "adcode" property, the parent from "parentCode" or "parent"
// (which may be an object carrying its own adcode).
func readGeoJSON(path string, level models.Level) ([]*region.Region, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrap(err, "read")
	}

	var fc geojson.FeatureCollection
	if err := json.Unmarshal(data, &fc); err != nil {
		return nil, eris.Wrap(err, "decode feature collection")
	}

	out := make([]*region.Region, 0, len(fc.Features))
	for i, f := range fc.Features {
		code := property(f.Properties, "code", "adcode")
		if code == "" {
			code = f.ID
		}
		r := &region.Region{
			Code:       code,
			Name:       property(f.Properties, "name"),
			ParentCode: property(f.Properties, "parentCode", "parent"),
		}
		if level == models.Province {
			r.ParentCode = ""
		}

		polys, err := geomPolygons(f.Geometry)
		if err != nil {
			return nil, eris.Wrapf(err, "feature %d (%s)", i, code)
		}
		for j, p := range polys {
			rp, err := region.PolygonFromGeom(p)
			if err != nil {
				return nil, eris.Wrapf(err, "feature %d (%s) polygon %d", i, code, j)
			}
			r.Polygons = append(r.Polygons, rp)
		}
		out = append(out, r)
	}
	return out, nil
}

func geomPolygons(g geom.T) ([]*geom.Polygon, error) {
	switch t := g.(type) {
	case *geom.Polygon:
		return []*geom.Polygon{t}, nil
	case *geom.MultiPolygon:
		out := make([]*geom.Polygon, 0, t.NumPolygons())
		for i := 0; i < t.NumPolygons(); i++ {
			out = append(out, t.Polygon(i))
		}
		return out, nil
	case nil:
		return nil, eris.New("missing geometry")
	default:
		return nil, eris.Errorf("unsupported geometry %T", g)
	}
}

// property returns the first present key rendered as a string. Numeric
// codes are common in published datasets.
func property(props map[string]interface{}, keys ...string) string {
	for _, k := range keys {
		v, ok := props[k]
		if !ok || v == nil {
			continue
		}
		switch t := v.(type) {
		case string:
			return t
		case float64:
			return strconv.FormatFloat(t, 'f', -1, 64)
		case json.Number:
			return t.String()
		case map[string]interface{}:
			if s := property(t, "code", "adcode"); s != "" {
				return s
			}
		}
	}
	return ""
}
