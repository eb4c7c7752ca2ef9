package engine

import (
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/1F47E/geo-region-index/pkg/index"
	"github.com/1F47E/geo-region-index/pkg/models"
	"github.com/1F47E/geo-region-index/pkg/region"
)

// Resolve returns the chain of regions enclosing the point, coarsest first.
// A point outside every province yields an empty GeoInfo and no error. The
// walk stops at the first level with no enclosing region and never
// backtracks.
func (e *Engine) Resolve(lat, lon float64) (*models.GeoInfo, error) {
	if !(models.Location{Lat: lat, Lon: lon}).Valid() {
		return nil, eris.Wrapf(ErrValidation, "lat=%v lon=%v", lat, lon)
	}

	start := time.Now()
	chain, warnings := e.walk(lat, lon)
	info := assemble(chain, warnings)

	e.resolves.Add(1)
	if len(chain) == 0 {
		e.notFound.Add(1)
	}
	e.observer.ObserveResolve(len(chain), time.Since(start))
	return info, nil
}

// walk descends one level at a time, only ever considering the children of
// the region found at the level above.
func (e *Engine) walk(lat, lon float64) ([]*region.Region, []models.AmbiguityWarning) {
	var (
		chain    = make([]*region.Region, 0, int(e.finest)+1)
		warnings []models.AmbiguityWarning
		parent   = rootKey
	)
	for level := models.Province; level <= e.finest; level++ {
		idx, ok := e.indexes[parent]
		if !ok {
			break
		}
		r, warn := e.pick(level, idx, lat, lon)
		if r == nil {
			break
		}
		chain = append(chain, r)
		if warn != nil {
			warnings = append(warnings, *warn)
			e.ambiguous.Add(1)
			e.observer.ObserveAmbiguity(level)
			e.log.Warn("ambiguous boundary data",
				zap.Stringer("level", level),
				zap.Float64("lat", lat),
				zap.Float64("lon", lon),
				zap.String("chosen", warn.Chosen),
				zap.Strings("candidates", warn.Candidates),
			)
		}
		parent = r.Code
	}
	return chain, warnings
}

// pick runs the exact polygon test over the index candidates. When several
// regions contain the point the one with the smallest area wins, then the
// smallest code, and a warning is returned alongside it.
func (e *Engine) pick(level models.Level, idx index.Index, lat, lon float64) (*region.Region, *models.AmbiguityWarning) {
	var (
		best       *region.Region
		containing []string
	)
	for _, code := range idx.Candidates(lat, lon) {
		r, ok := e.hierarchy.Get(code)
		if !ok || !r.Contains(lat, lon) {
			continue
		}
		containing = append(containing, code)
		// candidates arrive sorted by code, so strict < keeps the smaller code on ties
		if best == nil || r.Area < best.Area {
			best = r
		}
	}
	if len(containing) < 2 {
		return best, nil
	}
	return best, &models.AmbiguityWarning{Level: level, Chosen: best.Code, Candidates: containing}
}

// Lookup returns the chain for a known region code, coarsest first. Codes
// below the finest level are unknown to the engine.
func (e *Engine) Lookup(code string) (*models.GeoInfo, bool) {
	if r, ok := e.hierarchy.Get(code); !ok || r.Level > e.finest {
		return nil, false
	}
	return assemble(e.hierarchy.Chain(code), nil), true
}

// assemble turns a resolved chain into the caller-facing result.
func assemble(chain []*region.Region, warnings []models.AmbiguityWarning) *models.GeoInfo {
	info := &models.GeoInfo{
		Regions:  make([]models.RegionSummary, 0, len(chain)),
		Warnings: warnings,
	}
	for _, r := range chain {
		info.Regions = append(info.Regions, r.Summary())
	}
	return info
}
