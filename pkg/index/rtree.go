package index

import (
	"sort"

	"github.com/dhconnelly/rtreego"
)

const (
	minChildren = 25
	maxChildren = 50
	dimensions  = 2
	// tolerance pads a query point into a tiny box; rtreego treats touching
	// rectangles as disjoint.
	tolerance = 1e-9
)

// spatialEntry wraps an entry to implement rtreego.Spatial
type spatialEntry struct {
	idx  int
	rect rtreego.Rect
}

func (s *spatialEntry) Bounds() rtreego.Rect {
	return s.rect
}

// RTree indexes entry bounding boxes in an R-tree. Coordinates are stored
// as (lon, lat).
type RTree struct {
	entries []Entry
	tree    *rtreego.Rtree
}

// NewRTree bulk loads entries into an R-tree.
func NewRTree(entries []Entry) *RTree {
	sorted := sortedEntries(entries)
	objs := make([]rtreego.Spatial, 0, len(sorted))
	for i, e := range sorted {
		rect, err := rtreego.NewRectFromPoints(
			rtreego.Point{e.Bounds.BottomLeft.Lon, e.Bounds.BottomLeft.Lat},
			rtreego.Point{e.Bounds.TopRight.Lon, e.Bounds.TopRight.Lat},
		)
		if err != nil {
			// only returned on a dimension mismatch
			continue
		}
		objs = append(objs, &spatialEntry{idx: i, rect: rect})
	}
	return &RTree{
		entries: sorted,
		tree:    rtreego.NewTree(dimensions, minChildren, maxChildren, objs...),
	}
}

// Candidates returns codes whose bounding box contains the point, ordered
// by code.
func (t *RTree) Candidates(lat, lon float64) []string {
	if len(t.entries) == 0 {
		return nil
	}
	hits := t.tree.SearchIntersect(rtreego.Point{lon, lat}.ToRect(tolerance))
	if len(hits) == 0 {
		return nil
	}

	idx := make([]int, 0, len(hits))
	for _, hit := range hits {
		item, ok := hit.(*spatialEntry)
		if !ok {
			continue
		}
		// Strict boundary check
		if t.entries[item.idx].Bounds.Contains(lat, lon) {
			idx = append(idx, item.idx)
		}
	}
	if len(idx) == 0 {
		return nil
	}
	sort.Ints(idx)

	out := make([]string, len(idx))
	for i, n := range idx {
		out[i] = t.entries[n].Code
	}
	return out
}

// Len returns the number of indexed entries.
func (t *RTree) Len() int { return t.tree.Size() }
