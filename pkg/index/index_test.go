package index

import (
	"fmt"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/1F47E/geo-region-index/pkg/models"
)

func box(code string, minLat, minLon, maxLat, maxLon float64) Entry {
	return Entry{
		Code: code,
		Bounds: models.BoundingBox{
			BottomLeft: models.Location{Lat: minLat, Lon: minLon},
			TopRight:   models.Location{Lat: maxLat, Lon: maxLon},
		},
	}
}

func kinds() map[Kind]func([]Entry) Index {
	return map[Kind]func([]Entry) Index{
		KindGrid:  func(e []Entry) Index { return NewGrid(e) },
		KindRTree: func(e []Entry) Index { return NewRTree(e) },
	}
}

func TestCandidates(t *testing.T) {
	entries := []Entry{
		box("B", 0, 10, 10, 20),
		box("A", 0, 0, 10, 10),
		box("C", 20, 20, 30, 30),
		box("BIG", -5, -5, 35, 35),
	}

	tests := []struct {
		name     string
		lat, lon float64
		want     []string
	}{
		{"inside A", 5, 5, []string{"A", "BIG"}},
		{"shared edge", 5, 10, []string{"A", "B", "BIG"}},
		{"corner", 30, 30, []string{"BIG", "C"}},
		{"only big", 15, 25, []string{"BIG"}},
		{"outside extent", 50, 50, nil},
		{"east of extent", 0, 40, nil},
	}

	for kind, build := range kinds() {
		idx := build(entries)
		assert.Equal(t, 4, idx.Len())
		for _, tt := range tests {
			t.Run(fmt.Sprintf("%s/%s", kind, tt.name), func(t *testing.T) {
				assert.Equal(t, tt.want, idx.Candidates(tt.lat, tt.lon))
			})
		}
	}
}

func TestEmptyIndex(t *testing.T) {
	for kind, build := range kinds() {
		t.Run(string(kind), func(t *testing.T) {
			idx := build(nil)
			assert.Equal(t, 0, idx.Len())
			assert.Nil(t, idx.Candidates(0, 0))
		})
	}
}

func TestDegenerateEntries(t *testing.T) {
	entries := []Entry{
		box("P1", 1, 1, 1, 1),
		box("P2", 2, 2, 2, 2),
	}
	for kind, build := range kinds() {
		t.Run(string(kind), func(t *testing.T) {
			idx := build(entries)
			assert.Equal(t, []string{"P1"}, idx.Candidates(1, 1))
			assert.Nil(t, idx.Candidates(1.5, 1.5))
		})
	}

	g := NewGrid([]Entry{box("X", 3, 3, 3, 3)})
	assert.Equal(t, 1.0, g.Stats().CellSize)
	assert.Equal(t, []string{"X"}, g.Candidates(3, 3))
}

func TestGridResolutionFollowsEntrySize(t *testing.T) {
	var coarse, fine []Entry
	for i := 0; i < 10; i++ {
		for j := 0; j < 10; j++ {
			lat, lon := float64(i)*10, float64(j)*10
			coarse = append(coarse, box(fmt.Sprintf("p%d-%d", i, j), lat, lon, lat+10, lon+10))
			lat, lon = float64(i)*0.1, float64(j)*0.1
			fine = append(fine, box(fmt.Sprintf("d%d-%d", i, j), lat, lon, lat+0.1, lon+0.1))
		}
	}

	cs := NewGrid(coarse).Stats()
	fs := NewGrid(fine).Stats()

	assert.InDelta(t, 5.0, cs.CellSize, 1e-9)
	assert.InDelta(t, 0.05, fs.CellSize, 1e-9)
	// an entry spans about cellsPerRegion+1 cells per side
	assert.LessOrEqual(t, cs.MaxBucket, 4)
	assert.LessOrEqual(t, fs.MaxBucket, 4)
}

func TestGridCellCap(t *testing.T) {
	entries := []Entry{
		box("tiny1", 0, 0, 1e-6, 1e-6),
		box("tiny2", 1, 1, 1+1e-6, 1+1e-6),
		box("tiny3", 80, 170, 80+1e-6, 170+1e-6),
	}
	g := NewGrid(entries)
	s := g.Stats()
	assert.LessOrEqual(t, s.Cols*s.Rows, maxCells)
	assert.Equal(t, []string{"tiny3"}, g.Candidates(80, 170))
}

func TestGridMatchesRTree(t *testing.T) {
	r := rand.New(rand.NewSource(42))
	entries := make([]Entry, 0, 500)
	for i := 0; i < 500; i++ {
		lat := r.Float64()*60 + 10
		lon := r.Float64()*60 + 70
		entries = append(entries, box(fmt.Sprintf("r%03d", i), lat, lon, lat+r.Float64()*3, lon+r.Float64()*3))
	}

	g := NewGrid(entries)
	rt := NewRTree(entries)
	require.Equal(t, g.Len(), rt.Len())

	for i := 0; i < 2000; i++ {
		lat := r.Float64()*70 + 5
		lon := r.Float64()*70 + 65
		require.Equal(t, rt.Candidates(lat, lon), g.Candidates(lat, lon), "lat=%f lon=%f", lat, lon)
	}
	// exact corners
	for _, e := range entries[:50] {
		assert.Equal(t, rt.Candidates(e.Bounds.TopRight.Lat, e.Bounds.TopRight.Lon),
			g.Candidates(e.Bounds.TopRight.Lat, e.Bounds.TopRight.Lon))
	}
}

func TestParseKind(t *testing.T) {
	k, err := ParseKind("")
	require.NoError(t, err)
	assert.Equal(t, KindGrid, k)

	k, err = ParseKind("RTree")
	require.NoError(t, err)
	assert.Equal(t, KindRTree, k)

	_, err = ParseKind("quadtree")
	assert.ErrorIs(t, err, ErrUnknownKind)

	idx, err := New(KindRTree, []Entry{box("A", 0, 0, 1, 1)})
	require.NoError(t, err)
	assert.IsType(t, &RTree{}, idx)

	_, err = New(Kind("nope"), nil)
	assert.Error(t, err)
}

func BenchmarkCandidates(b *testing.B) {
	r := rand.New(rand.NewSource(1))
	entries := make([]Entry, 0, 3000)
	for i := 0; i < 3000; i++ {
		lat := r.Float64()*40 + 18
		lon := r.Float64()*60 + 73
		entries = append(entries, box(fmt.Sprintf("d%04d", i), lat, lon, lat+0.5, lon+0.5))
	}

	for kind, build := range kinds() {
		idx := build(entries)
		b.Run(string(kind), func(b *testing.B) {
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				idx.Candidates(r.Float64()*40+18, r.Float64()*60+73)
			}
		})
	}
}
