package region

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twpayne/go-geom"

	"github.com/1F47E/geo-region-index/pkg/models"
)

// rect returns an open lat,lng ring for the box.
func rect(minLat, minLon, maxLat, maxLon float64) [][2]float64 {
	return [][2]float64{
		{minLat, minLon},
		{minLat, maxLon},
		{maxLat, maxLon},
		{maxLat, minLon},
	}
}

func newRegion(code, parent string, level models.Level, rings ...[][2]float64) *Region {
	return &Region{
		Code:       code,
		Name:       "name-" + code,
		Level:      level,
		ParentCode: parent,
		Polygons:   []Polygon{NewPolygon(rings)},
	}
}

func buildNested(t *testing.T) *Hierarchy {
	t.Helper()
	b := NewBuilder()
	require.NoError(t, b.Add(newRegion("P1", "", models.Province, rect(0, 0, 10, 10))))
	require.NoError(t, b.Add(newRegion("C2", "P1", models.City, rect(5, 5, 10, 10))))
	require.NoError(t, b.Add(newRegion("C1", "P1", models.City, rect(0, 0, 5, 5))))
	require.NoError(t, b.Add(newRegion("D1", "C1", models.District, rect(1, 1, 2, 2))))
	h, err := b.Build()
	require.NoError(t, err)
	return h
}

func TestPolygonContains(t *testing.T) {
	p := NewPolygon([][][2]float64{rect(0, 0, 10, 10), rect(4, 4, 6, 6)})

	tests := []struct {
		name     string
		lat, lon float64
		want     bool
	}{
		{"interior", 1, 1, true},
		{"outer edge", 0, 5, true},
		{"outer corner", 10, 10, true},
		{"inside hole", 5, 5, false},
		{"hole edge", 4, 5, true},
		{"outside", 11, 5, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, p.Contains(tt.lat, tt.lon))
		})
	}
}

func TestPolygonArea(t *testing.T) {
	p := NewPolygon([][][2]float64{rect(0, 0, 10, 10), rect(4, 4, 6, 6)})
	assert.InDelta(t, 96.0, p.Area(), 1e-9)

	b := p.Bounds()
	assert.Equal(t, models.Location{Lat: 0, Lon: 0}, b.BottomLeft)
	assert.Equal(t, models.Location{Lat: 10, Lon: 10}, b.TopRight)
}

func TestCloseRing(t *testing.T) {
	flat := FlatRing(rect(0, 0, 1, 2))
	require.Len(t, flat, 10)
	assert.Equal(t, flat[0], flat[8])
	assert.Equal(t, flat[1], flat[9])
	// lon first
	assert.Equal(t, []float64{0, 0, 2, 0}, flat[:4])

	again := CloseRing(flat)
	assert.Len(t, again, 10)
	assert.Equal(t, 4, DistinctVertices(flat))
}

func TestPolygonGeom(t *testing.T) {
	p := NewPolygon([][][2]float64{rect(0, 0, 10, 10), rect(4, 4, 6, 6)})

	g := p.Geom()
	assert.Equal(t, 2, g.NumLinearRings())
	assert.Equal(t, []int{10, 20}, g.Ends())

	back, err := PolygonFromGeom(g)
	require.NoError(t, err)
	assert.Equal(t, p, back)

	xyz := geom.NewPolygon(geom.XYZ).MustSetCoords([][]geom.Coord{{{0, 0, 7}, {1, 0, 7}, {1, 1, 7}}})
	open, err := PolygonFromGeom(xyz)
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 0, 1, 0, 1, 1, 0, 0}, open.Outer)

	bad := geom.NewPolygon(geom.XY).MustSetCoords([][]geom.Coord{{{0, 0}, {200, 0}, {1, 1}}})
	_, err = PolygonFromGeom(bad)
	assert.True(t, errors.Is(err, ErrInvalidGeometry))

	_, err = PolygonFromGeom(geom.NewPolygon(geom.XY))
	assert.True(t, errors.Is(err, ErrInvalidGeometry))
}

func TestMultiPartRegion(t *testing.T) {
	r := &Region{
		Code:  "X",
		Name:  "islands",
		Level: models.Province,
		Polygons: []Polygon{
			NewPolygon([][][2]float64{rect(0, 0, 1, 1)}),
			NewPolygon([][][2]float64{rect(5, 5, 6, 6)}),
		},
	}
	b := NewBuilder()
	require.NoError(t, b.Add(r))

	assert.InDelta(t, 2.0, r.Area, 1e-9)
	assert.Equal(t, models.Location{Lat: 6, Lon: 6}, r.Bounds.TopRight)
	assert.True(t, r.Contains(5.5, 5.5))
	assert.False(t, r.Contains(3, 3))
}

func TestBuilderRejects(t *testing.T) {
	t.Run("duplicate code", func(t *testing.T) {
		b := NewBuilder()
		require.NoError(t, b.Add(newRegion("P1", "", models.Province, rect(0, 0, 1, 1))))
		err := b.Add(newRegion("P1", "", models.Province, rect(2, 2, 3, 3)))
		assert.True(t, errors.Is(err, ErrDuplicateCode))
	})

	t.Run("degenerate ring", func(t *testing.T) {
		b := NewBuilder()
		err := b.Add(newRegion("P1", "", models.Province, [][2]float64{{0, 0}, {1, 1}, {0, 0}}))
		assert.True(t, errors.Is(err, ErrInvalidGeometry))
	})

	t.Run("empty name", func(t *testing.T) {
		r := newRegion("P1", "", models.Province, rect(0, 0, 1, 1))
		r.Name = ""
		assert.True(t, errors.Is(NewBuilder().Add(r), ErrInvalidRegion))
	})

	t.Run("missing parent", func(t *testing.T) {
		b := NewBuilder()
		require.NoError(t, b.Add(newRegion("C1", "P9", models.City, rect(0, 0, 1, 1))))
		_, err := b.Build()
		assert.True(t, errors.Is(err, ErrUnknownParent))
	})

	t.Run("failed build links nothing", func(t *testing.T) {
		b := NewBuilder()
		p1 := newRegion("P1", "", models.Province, rect(0, 0, 10, 10))
		require.NoError(t, b.Add(p1))
		require.NoError(t, b.Add(newRegion("C1", "P1", models.City, rect(0, 0, 1, 1))))
		require.NoError(t, b.Add(newRegion("C2", "P9", models.City, rect(2, 2, 3, 3))))

		for i := 0; i < 2; i++ {
			_, err := b.Build()
			assert.True(t, errors.Is(err, ErrUnknownParent))
			assert.Empty(t, p1.Children)
		}
	})

	t.Run("parent skips a level", func(t *testing.T) {
		b := NewBuilder()
		require.NoError(t, b.Add(newRegion("P1", "", models.Province, rect(0, 0, 1, 1))))
		require.NoError(t, b.Add(newRegion("D1", "P1", models.District, rect(0, 0, 1, 1))))
		_, err := b.Build()
		assert.True(t, errors.Is(err, ErrUnknownParent))
	})
}

func TestHierarchy(t *testing.T) {
	h := buildNested(t)

	assert.Equal(t, 4, h.Len())
	assert.Equal(t, models.District, h.Finest())
	assert.Equal(t, []string{"C1", "C2"}, h.Level(models.City))
	assert.Equal(t, map[models.Level]int{models.Province: 1, models.City: 2, models.District: 1}, h.Counts())

	roots := h.Roots()
	require.Len(t, roots, 1)
	assert.Equal(t, "P1", roots[0].Code)
	assert.Equal(t, []string{"C1", "C2"}, roots[0].Children)

	parent, ok := h.Parent("D1")
	require.True(t, ok)
	assert.Equal(t, "C1", parent.Code)

	_, ok = h.Parent("P1")
	assert.False(t, ok)

	children := h.Children("C1")
	require.Len(t, children, 1)
	assert.Equal(t, "D1", children[0].Code)
	assert.Nil(t, h.Children("nope"))

	chain := h.Chain("D1")
	require.Len(t, chain, 3)
	assert.Equal(t, "P1", chain[0].Code)
	assert.Equal(t, "D1", chain[2].Code)
}

func TestSnapshot(t *testing.T) {
	h := buildNested(t)
	path := filepath.Join(t.TempDir(), "regions.gob")

	require.NoError(t, SaveSnapshot(path, h))

	loaded, err := LoadSnapshot(path)
	require.NoError(t, err)
	assert.Equal(t, h.Len(), loaded.Len())
	assert.Equal(t, h.Counts(), loaded.Counts())

	d1, ok := loaded.Get("D1")
	require.True(t, ok)
	assert.Equal(t, models.District, d1.Level)
	assert.Equal(t, "C1", d1.ParentCode)
	assert.True(t, d1.Contains(1.5, 1.5))

	_, err = LoadSnapshot(filepath.Join(t.TempDir(), "missing.gob"))
	assert.Error(t, err)
}
