package index

import (
	"math"
	"sort"

	"github.com/1F47E/geo-region-index/pkg/models"
)

const (
	// cellsPerRegion is how many cells the median entry spans along its
	// longer side.
	cellsPerRegion = 2
	// maxCells caps the grid size; the cell is widened until it fits.
	maxCells = 1 << 20
)

// Grid is a uniform grid over the extent of its entries. Each entry is
// registered in every cell its bounding box touches, so a lookup costs one
// cell fetch plus a box check per registered entry.
type Grid struct {
	entries  []Entry
	extent   models.BoundingBox
	cellSize float64
	cols     int
	rows     int
	cells    map[int][]int32
}

// NewGrid builds a grid whose cell size follows the median entry span:
// provinces get coarse cells, districts fine ones.
func NewGrid(entries []Entry) *Grid {
	g := &Grid{
		entries: sortedEntries(entries),
		cells:   make(map[int][]int32),
	}
	if len(g.entries) == 0 {
		return g
	}

	g.extent = extentOf(g.entries)
	g.cellSize = chooseCellSize(g.entries, g.extent)
	for cellCount(g.extent, g.cellSize) > maxCells {
		g.cellSize *= 2
	}
	g.cols = int(math.Floor(g.extent.Width()/g.cellSize)) + 1
	g.rows = int(math.Floor(g.extent.Height()/g.cellSize)) + 1

	for i, e := range g.entries {
		c0, r0 := g.cell(e.Bounds.BottomLeft.Lat, e.Bounds.BottomLeft.Lon)
		c1, r1 := g.cell(e.Bounds.TopRight.Lat, e.Bounds.TopRight.Lon)
		for r := r0; r <= r1; r++ {
			for c := c0; c <= c1; c++ {
				key := r*g.cols + c
				g.cells[key] = append(g.cells[key], int32(i))
			}
		}
	}
	return g
}

// chooseCellSize picks median span / cellsPerRegion. When every entry is
// degenerate it falls back to splitting the extent into about sqrt(n) cells
// per side.
func chooseCellSize(entries []Entry, extent models.BoundingBox) float64 {
	spans := make([]float64, 0, len(entries))
	for _, e := range entries {
		spans = append(spans, math.Max(e.Bounds.Width(), e.Bounds.Height()))
	}
	sort.Float64s(spans)
	median := spans[len(spans)/2]
	if len(spans)%2 == 0 {
		median = (spans[len(spans)/2-1] + median) / 2
	}

	size := median / cellsPerRegion
	if size > 0 {
		return size
	}
	side := math.Max(extent.Width(), extent.Height())
	size = side / math.Ceil(math.Sqrt(float64(len(entries))))
	if size > 0 {
		return size
	}
	return 1
}

func cellCount(extent models.BoundingBox, size float64) float64 {
	return (math.Floor(extent.Width()/size) + 1) * (math.Floor(extent.Height()/size) + 1)
}

// cell maps a point to its column and row, clamped to the grid.
func (g *Grid) cell(lat, lon float64) (col, row int) {
	col = int(math.Floor((lon - g.extent.BottomLeft.Lon) / g.cellSize))
	row = int(math.Floor((lat - g.extent.BottomLeft.Lat) / g.cellSize))
	return clamp(col, g.cols-1), clamp(row, g.rows-1)
}

func clamp(v, hi int) int {
	if v < 0 {
		return 0
	}
	if v > hi {
		return hi
	}
	return v
}

// Candidates returns codes whose bounding box contains the point, ordered
// by code. Points outside the grid extent have none.
func (g *Grid) Candidates(lat, lon float64) []string {
	if len(g.entries) == 0 || !g.extent.Contains(lat, lon) {
		return nil
	}
	col, row := g.cell(lat, lon)
	var out []string
	for _, i := range g.cells[row*g.cols+col] {
		e := g.entries[i]
		if e.Bounds.Contains(lat, lon) {
			out = append(out, e.Code)
		}
	}
	return out
}

// Len returns the number of indexed entries.
func (g *Grid) Len() int { return len(g.entries) }

// GridStats describes the shape of a built grid.
type GridStats struct {
	CellSize  float64
	Cols      int
	Rows      int
	Populated int
	MaxBucket int
}

// Stats reports the chosen resolution and bucket occupancy.
func (g *Grid) Stats() GridStats {
	s := GridStats{CellSize: g.cellSize, Cols: g.cols, Rows: g.rows, Populated: len(g.cells)}
	for _, bucket := range g.cells {
		if len(bucket) > s.MaxBucket {
			s.MaxBucket = len(bucket)
		}
	}
	return s
}
