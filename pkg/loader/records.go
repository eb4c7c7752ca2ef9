package loader

import (
	"bufio"
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"

	"github.com/1F47E/geo-region-index/pkg/models"
	"github.com/1F47E/geo-region-index/pkg/region"
)

// record is one region in a <level>.json dataset. Rings hold [lat, lng]
// pairs; the first ring is the outer boundary and the rest are holes.
// Polygons, when present, lists additional parts in the same layout.
type record struct {
	Code       string          `json:"code"`
	Name       string          `json:"name"`
	ParentCode string          `json:"parentCode"`
	Rings      [][][]float64   `json:"rings"`
	Polygons   [][][][]float64 `json:"polygons"`
}

// UnmarshalJSON rejects null coordinates, which would otherwise decode as 0.
func (r *record) UnmarshalJSON(b []byte) error {
	var raw struct {
		Code       string           `json:"code"`
		Name       string           `json:"name"`
		ParentCode string           `json:"parentCode"`
		Rings      [][][]*float64   `json:"rings"`
		Polygons   [][][][]*float64 `json:"polygons"`
	}
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}

	rings, err := derefRings(raw.Rings)
	if err != nil {
		return eris.Wrapf(err, "record %s", raw.Code)
	}
	var polys [][][][]float64
	for i, p := range raw.Polygons {
		rs, err := derefRings(p)
		if err != nil {
			return eris.Wrapf(err, "record %s polygon %d", raw.Code, i)
		}
		polys = append(polys, rs)
	}
	*r = record{Code: raw.Code, Name: raw.Name, ParentCode: raw.ParentCode, Rings: rings, Polygons: polys}
	return nil
}

func derefRings(in [][][]*float64) ([][][]float64, error) {
	if in == nil {
		return nil, nil
	}
	out := make([][][]float64, len(in))
	for i, ring := range in {
		out[i] = make([][]float64, len(ring))
		for j, pt := range ring {
			vals := make([]float64, len(pt))
			for k, v := range pt {
				if v == nil {
					return nil, eris.Errorf("ring %d point %d: null coordinate", i, j)
				}
				vals[k] = *v
			}
			out[i][j] = vals
		}
	}
	return out, nil
}

func readRecords(path string) ([]*region.Region, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrap(err, "open")
	}
	defer f.Close()

	var records []record
	if err := json.NewDecoder(bufio.NewReader(f)).Decode(&records); err != nil {
		return nil, eris.Wrap(err, "decode records")
	}

	out := make([]*region.Region, 0, len(records))
	for i, rec := range records {
		r := &region.Region{Code: rec.Code, Name: rec.Name, ParentCode: rec.ParentCode}

		parts := rec.Polygons
		if len(rec.Rings) > 0 {
			parts = append([][][][]float64{rec.Rings}, parts...)
		}
		if len(parts) == 0 {
			return nil, eris.Errorf("record %d (%s): no rings", i, rec.Code)
		}
		for j, rings := range parts {
			p, err := polygonFromPairs(rings)
			if err != nil {
				return nil, eris.Wrapf(err, "record %d (%s) polygon %d", i, rec.Code, j)
			}
			r.Polygons = append(r.Polygons, p)
		}
		out = append(out, r)
	}
	return out, nil
}

// polygonFromPairs validates [lat, lng] rings and builds a polygon.
func polygonFromPairs(rings [][][]float64) (region.Polygon, error) {
	if len(rings) == 0 {
		return region.Polygon{}, eris.New("empty polygon")
	}
	pairs := make([][][2]float64, 0, len(rings))
	for i, ring := range rings {
		pts := make([][2]float64, 0, len(ring))
		for j, pt := range ring {
			if len(pt) != 2 {
				return region.Polygon{}, eris.Errorf("ring %d point %d: want [lat, lng], got %d values", i, j, len(pt))
			}
			if !(models.Location{Lat: pt[0], Lon: pt[1]}).Valid() {
				return region.Polygon{}, eris.Errorf("ring %d point %d: coordinate (%v, %v) out of range", i, j, pt[0], pt[1])
			}
			pts = append(pts, [2]float64{pt[0], pt[1]})
		}
		pairs = append(pairs, pts)
	}
	return region.NewPolygon(pairs), nil
}

// checkFlat validates a flat lon,lat ring.
func checkFlat(flat []float64) error {
	if len(flat)%2 != 0 {
		return eris.Errorf("odd coordinate count %d", len(flat))
	}
	for i := 0; i < len(flat); i += 2 {
		if !(models.Location{Lat: flat[i+1], Lon: flat[i]}).Valid() {
			return eris.Errorf("point %d: coordinate (%v, %v) out of range", i/2, flat[i+1], flat[i])
		}
	}
	return nil
}
