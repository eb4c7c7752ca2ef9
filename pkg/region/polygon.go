package region

import (
	"math"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/xy"
	"github.com/twpayne/go-geom/xy/location"

	"github.com/1F47E/geo-region-index/pkg/models"
)

const layout = geom.XY

// Polygon is one part of a region boundary. Rings are closed and stored as
// flat x,y (lon,lat) coordinates so they can be handed to go-geom directly.
type Polygon struct {
	Outer []float64
	Holes [][]float64
}

// NewPolygon builds a polygon from rings of lat,lng pairs. The first ring is
// the outer boundary and the rest are holes. Open rings are closed.
func NewPolygon(rings [][][2]float64) Polygon {
	var p Polygon
	for i, ring := range rings {
		flat := FlatRing(ring)
		if i == 0 {
			p.Outer = flat
			continue
		}
		p.Holes = append(p.Holes, flat)
	}
	return p
}

// FlatRing converts lat,lng pairs into a closed flat lon,lat ring.
func FlatRing(ring [][2]float64) []float64 {
	flat := make([]float64, 0, 2*len(ring)+2)
	for _, pt := range ring {
		flat = append(flat, pt[1], pt[0])
	}
	return CloseRing(flat)
}

// CloseRing appends the first vertex when the ring is not already closed.
func CloseRing(flat []float64) []float64 {
	n := len(flat)
	if n < 2 {
		return flat
	}
	if flat[0] != flat[n-2] || flat[1] != flat[n-1] {
		flat = append(flat, flat[0], flat[1])
	}
	return flat
}

// DistinctVertices counts the vertices of a closed ring, ignoring the
// closing one and consecutive repeats.
func DistinctVertices(flat []float64) int {
	n := 0
	for i := 0; i+1 < len(flat)-2; i += 2 {
		if i > 0 && flat[i] == flat[i-2] && flat[i+1] == flat[i-1] {
			continue
		}
		n++
	}
	return n
}

// Contains reports whether the point is inside the outer ring and not
// strictly inside any hole. Points on either boundary count as contained.
func (p Polygon) Contains(lat, lon float64) bool {
	pt := geom.Coord{lon, lat}
	if xy.LocatePointInRing(layout, pt, p.Outer) == location.Exterior {
		return false
	}
	for _, hole := range p.Holes {
		if xy.LocatePointInRing(layout, pt, hole) == location.Interior {
			return false
		}
	}
	return true
}

// Area is the planar area in square degrees, holes subtracted.
func (p Polygon) Area() float64 {
	area := math.Abs(geom.NewLinearRingFlat(layout, p.Outer).Area())
	for _, hole := range p.Holes {
		area -= math.Abs(geom.NewLinearRingFlat(layout, hole).Area())
	}
	if area < 0 {
		return 0
	}
	return area
}

// Bounds returns the bounding box of the outer ring.
func (p Polygon) Bounds() models.BoundingBox {
	b := geom.NewBounds(layout).Extend(geom.NewLinearRingFlat(layout, p.Outer))
	return models.BoundingBox{
		BottomLeft: models.Location{Lat: b.Min(1), Lon: b.Min(0)},
		TopRight:   models.Location{Lat: b.Max(1), Lon: b.Max(0)},
	}
}

// Geom returns the polygon as a go-geom value.
func (p Polygon) Geom() *geom.Polygon {
	flat := make([]float64, 0, len(p.Outer))
	flat = append(flat, p.Outer...)
	ends := []int{len(flat)}
	for _, hole := range p.Holes {
		flat = append(flat, hole...)
		ends = append(ends, len(flat))
	}
	return geom.NewPolygonFlat(layout, flat, ends)
}

// PolygonFromGeom converts a go-geom polygon of any layout, keeping x and y.
// Rings are closed and checked against the WGS84 range.
func PolygonFromGeom(g *geom.Polygon) (Polygon, error) {
	var out Polygon
	if g == nil || g.NumLinearRings() == 0 {
		return out, eris.Wrap(ErrInvalidGeometry, "empty polygon")
	}
	stride := g.Layout().Stride()
	for i := 0; i < g.NumLinearRings(); i++ {
		src := g.LinearRing(i).FlatCoords()
		flat := make([]float64, 0, len(src)/stride*2+2)
		for j := 0; j+1 < len(src); j += stride {
			if !(models.Location{Lat: src[j+1], Lon: src[j]}).Valid() {
				return out, eris.Wrapf(ErrInvalidGeometry, "ring %d: coordinate (%v, %v) out of range", i, src[j+1], src[j])
			}
			flat = append(flat, src[j], src[j+1])
		}
		flat = CloseRing(flat)
		if i == 0 {
			out.Outer = flat
		} else {
			out.Holes = append(out.Holes, flat)
		}
	}
	return out, nil
}
