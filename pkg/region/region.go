// Package region holds the immutable administrative hierarchy: regions keyed
// by code, linked parent to children, each carrying its boundary polygons.
package region

import (
	"sort"

	"github.com/rotisserie/eris"

	"github.com/1F47E/geo-region-index/pkg/models"
)

var (
	ErrDuplicateCode   = eris.New("region: duplicate code")
	ErrUnknownParent   = eris.New("region: unknown parent")
	ErrInvalidGeometry = eris.New("region: invalid geometry")
	ErrInvalidRegion   = eris.New("region: invalid region")
)

// Region is a named administrative area at one level. ParentCode is a lookup
// key into the owning Hierarchy, not a pointer.
type Region struct {
	Code       string
	Name       string
	Level      models.Level
	ParentCode string
	Children   []string
	Polygons   []Polygon
	Bounds     models.BoundingBox
	Area       float64
}

// Contains runs the exact point-in-polygon test over every part.
func (r *Region) Contains(lat, lon float64) bool {
	if !r.Bounds.Contains(lat, lon) {
		return false
	}
	for _, p := range r.Polygons {
		if p.Contains(lat, lon) {
			return true
		}
	}
	return false
}

// Summary returns the level, code and name triple used in results.
func (r *Region) Summary() models.RegionSummary {
	return models.RegionSummary{Level: r.Level, Code: r.Code, Name: r.Name}
}

// finalize validates the geometry and computes bounds and area.
func (r *Region) finalize() error {
	if r.Code == "" || r.Name == "" {
		return eris.Wrapf(ErrInvalidRegion, "code %q name %q", r.Code, r.Name)
	}
	if !r.Level.Valid() {
		return eris.Wrapf(ErrInvalidRegion, "%s: level %d", r.Code, int(r.Level))
	}
	if len(r.Polygons) == 0 {
		return eris.Wrapf(ErrInvalidGeometry, "%s: no polygons", r.Code)
	}

	var area float64
	for i, p := range r.Polygons {
		if DistinctVertices(p.Outer) < 3 {
			return eris.Wrapf(ErrInvalidGeometry, "%s: polygon %d outer ring has fewer than 3 vertices", r.Code, i)
		}
		for j, hole := range p.Holes {
			if DistinctVertices(hole) < 3 {
				return eris.Wrapf(ErrInvalidGeometry, "%s: polygon %d hole %d has fewer than 3 vertices", r.Code, i, j)
			}
		}
		if i == 0 {
			r.Bounds = p.Bounds()
		} else {
			r.Bounds = r.Bounds.Union(p.Bounds())
		}
		area += p.Area()
	}
	r.Area = area
	return nil
}

// Builder collects regions and links them into a Hierarchy. It is not safe
// for concurrent use.
type Builder struct {
	regions map[string]*Region
}

func NewBuilder() *Builder {
	return &Builder{regions: make(map[string]*Region)}
}

// Add validates r and registers it. Codes are unique across all levels.
func (b *Builder) Add(r *Region) error {
	if err := r.finalize(); err != nil {
		return err
	}
	if _, ok := b.regions[r.Code]; ok {
		return eris.Wrapf(ErrDuplicateCode, "%s (%s)", r.Code, r.Name)
	}
	r.Children = nil
	b.regions[r.Code] = r
	return nil
}

// Len returns the number of regions added so far.
func (b *Builder) Len() int { return len(b.regions) }

// Build links children to parents and freezes the hierarchy. Every region
// below province must name an existing parent one level up.
func (b *Builder) Build() (*Hierarchy, error) {
	h := &Hierarchy{
		regions: b.regions,
		byLevel: make(map[models.Level][]string, len(models.Levels)),
	}

	for code, r := range b.regions {
		h.byLevel[r.Level] = append(h.byLevel[r.Level], code)
		if r.Level == models.Province {
			if r.ParentCode != "" {
				return nil, eris.Wrapf(ErrInvalidRegion, "%s: province with parent %q", code, r.ParentCode)
			}
			continue
		}
		if r.ParentCode == "" {
			return nil, eris.Wrapf(ErrUnknownParent, "%s: %s without parent code", code, r.Level)
		}
		parent, ok := b.regions[r.ParentCode]
		if !ok {
			return nil, eris.Wrapf(ErrUnknownParent, "%s: parent %s", code, r.ParentCode)
		}
		if parent.Level != r.Level-1 {
			return nil, eris.Wrapf(ErrUnknownParent, "%s: parent %s is a %s, want %s", code, r.ParentCode, parent.Level, r.Level-1)
		}
	}

	// Links are made only once every parent checks out, so a failed Build
	// leaves the added regions untouched.
	for _, r := range b.regions {
		r.Children = nil
	}
	for code, r := range b.regions {
		if r.ParentCode != "" {
			parent := b.regions[r.ParentCode]
			parent.Children = append(parent.Children, code)
		}
	}
	for _, r := range b.regions {
		sort.Strings(r.Children)
	}
	for level := range h.byLevel {
		sort.Strings(h.byLevel[level])
	}

	b.regions = make(map[string]*Region)
	return h, nil
}

// Hierarchy owns every loaded region. It is read-only once built and safe
// for concurrent use.
type Hierarchy struct {
	regions map[string]*Region
	byLevel map[models.Level][]string
}

// Get returns the region with the given code.
func (h *Hierarchy) Get(code string) (*Region, bool) {
	r, ok := h.regions[code]
	return r, ok
}

// Parent returns the parent of the region, or false for provinces.
func (h *Hierarchy) Parent(code string) (*Region, bool) {
	r, ok := h.regions[code]
	if !ok || r.ParentCode == "" {
		return nil, false
	}
	return h.Get(r.ParentCode)
}

// Children returns the child regions ordered by code.
func (h *Hierarchy) Children(code string) []*Region {
	r, ok := h.regions[code]
	if !ok {
		return nil
	}
	out := make([]*Region, 0, len(r.Children))
	for _, c := range r.Children {
		out = append(out, h.regions[c])
	}
	return out
}

// Level returns the codes at the given level in ascending order.
func (h *Hierarchy) Level(level models.Level) []string {
	return h.byLevel[level]
}

// Roots returns the province regions ordered by code.
func (h *Hierarchy) Roots() []*Region {
	codes := h.byLevel[models.Province]
	out := make([]*Region, 0, len(codes))
	for _, c := range codes {
		out = append(out, h.regions[c])
	}
	return out
}

// Finest returns the deepest level that has any region.
func (h *Hierarchy) Finest() models.Level {
	finest := models.Province
	for level, codes := range h.byLevel {
		if len(codes) > 0 && level > finest {
			finest = level
		}
	}
	return finest
}

// Counts returns the number of regions per level.
func (h *Hierarchy) Counts() map[models.Level]int {
	out := make(map[models.Level]int, len(h.byLevel))
	for level, codes := range h.byLevel {
		out[level] = len(codes)
	}
	return out
}

// Len returns the total number of regions.
func (h *Hierarchy) Len() int { return len(h.regions) }

// Chain walks parents from code up to the province and returns the regions
// ordered coarsest first.
func (h *Hierarchy) Chain(code string) []*Region {
	var chain []*Region
	for code != "" {
		r, ok := h.regions[code]
		if !ok {
			break
		}
		chain = append(chain, r)
		code = r.ParentCode
	}
	for i, j := 0, len(chain)-1; i < j; i, j = i+1, j-1 {
		chain[i], chain[j] = chain[j], chain[i]
	}
	return chain
}
