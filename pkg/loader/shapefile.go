package loader

import (
	"strings"

	"github.com/jonas-p/go-shp"
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/xy"

	"github.com/1F47E/geo-region-index/pkg/models"
	"github.com/1F47E/geo-region-index/pkg/region"
)

// Attribute columns read from the .dbf next to a shapefile.
const (
	fieldCode   = "CODE"
	fieldName   = "NAME"
	fieldParent = "PARENT"
)

// readShapefile reads polygon shapes. Following the ESRI convention, clockwise
// rings are outer boundaries and counter-clockwise rings are holes of the
// outer ring that contains them.
func readShapefile(path string, level models.Level) ([]*region.Region, error) {
	reader, err := shp.Open(path)
	if err != nil {
		return nil, eris.Wrap(err, "open shapefile")
	}
	defer reader.Close()

	cols := map[string]int{}
	for i, f := range reader.Fields() {
		cols[strings.ToUpper(strings.TrimSpace(f.String()))] = i
	}
	codeIdx, ok := cols[fieldCode]
	if !ok {
		return nil, eris.Errorf("missing %s attribute", fieldCode)
	}
	nameIdx, ok := cols[fieldName]
	if !ok {
		return nil, eris.Errorf("missing %s attribute", fieldName)
	}
	parentIdx, hasParent := cols[fieldParent]

	var out []*region.Region
	for reader.Next() {
		n, shape := reader.Shape()
		poly, ok := shape.(*shp.Polygon)
		if !ok {
			return nil, eris.Errorf("shape %d: unsupported type %T", n, shape)
		}

		r := &region.Region{
			Code: attr(reader.Attribute(codeIdx)),
			Name: attr(reader.Attribute(nameIdx)),
		}
		if hasParent && level != models.Province {
			r.ParentCode = attr(reader.Attribute(parentIdx))
		}

		r.Polygons, err = shapePolygons(poly)
		if err != nil {
			return nil, eris.Wrapf(err, "shape %d (%s)", n, r.Code)
		}
		out = append(out, r)
	}
	if err := reader.Err(); err != nil {
		return nil, eris.Wrap(err, "read shapefile")
	}
	return out, nil
}

func attr(s string) string {
	return strings.TrimSpace(strings.Trim(s, "\x00"))
}

func shapePolygons(poly *shp.Polygon) ([]region.Polygon, error) {
	var (
		out   []region.Polygon
		holes [][]float64
	)
	for i := 0; i < int(poly.NumParts); i++ {
		start := int(poly.Parts[i])
		end := len(poly.Points)
		if i+1 < int(poly.NumParts) {
			end = int(poly.Parts[i+1])
		}
		if start < 0 || end > len(poly.Points) || start >= end {
			return nil, eris.Errorf("part %d: bad point range [%d, %d)", i, start, end)
		}

		flat := make([]float64, 0, 2*(end-start)+2)
		for _, pt := range poly.Points[start:end] {
			flat = append(flat, pt.X, pt.Y)
		}
		if err := checkFlat(flat); err != nil {
			return nil, eris.Wrapf(err, "part %d", i)
		}
		flat = region.CloseRing(flat)
		if region.DistinctVertices(flat) < 3 {
			return nil, eris.Errorf("part %d: fewer than 3 vertices", i)
		}

		if xy.IsRingCounterClockwise(geom.XY, flat) {
			holes = append(holes, flat)
			continue
		}
		out = append(out, region.Polygon{Outer: flat})
	}
	if len(out) == 0 {
		return nil, eris.New("no outer ring")
	}

	for _, hole := range holes {
		owner := len(out) - 1
		for i, p := range out {
			if (region.Polygon{Outer: p.Outer}).Contains(hole[1], hole[0]) {
				owner = i
				break
			}
		}
		out[owner].Holes = append(out[owner].Holes, hole)
	}
	return out, nil
}
