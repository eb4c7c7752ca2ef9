package engine

import (
	"sync/atomic"

	"github.com/rotisserie/eris"

	"github.com/1F47E/geo-region-index/pkg/models"
)

// ErrNotLoaded is returned by a Holder that has no engine yet.
var ErrNotLoaded = eris.New("engine: not loaded")

// Holder serves queries from whichever engine was stored last. Swapping in
// a freshly built engine never disturbs queries already running against
// the old one.
type Holder struct {
	current atomic.Pointer[Engine]
}

// NewHolder returns a holder serving e, which may be nil.
func NewHolder(e *Engine) *Holder {
	h := &Holder{}
	if e != nil {
		h.current.Store(e)
	}
	return h
}

// Load returns the current engine or nil.
func (h *Holder) Load() *Engine { return h.current.Load() }

// Swap installs e and returns the engine it replaced.
func (h *Holder) Swap(e *Engine) *Engine { return h.current.Swap(e) }

// Resolve resolves against the current engine, or returns ErrNotLoaded
// before the first engine is installed.
func (h *Holder) Resolve(lat, lon float64) (*models.GeoInfo, error) {
	e := h.current.Load()
	if e == nil {
		return nil, ErrNotLoaded
	}
	return e.Resolve(lat, lon)
}

// Lookup looks code up in the current engine; false when none is loaded.
func (h *Holder) Lookup(code string) (*models.GeoInfo, bool) {
	e := h.current.Load()
	if e == nil {
		return nil, false
	}
	return e.Lookup(code)
}

// Stats reports the current engine, or zero values when none is loaded.
func (h *Holder) Stats() Stats {
	e := h.current.Load()
	if e == nil {
		return Stats{}
	}
	return e.Stats()
}
