// Package engine answers reverse lookups: given a coordinate it walks the
// region hierarchy from province down to the configured finest level.
//
// An Engine is built once and never mutated afterwards, so Resolve may be
// called from any number of goroutines without locking. Reloading means
// building a new Engine and swapping it in through a Holder.
package engine

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/1F47E/geo-region-index/pkg/index"
	"github.com/1F47E/geo-region-index/pkg/loader"
	"github.com/1F47E/geo-region-index/pkg/models"
	"github.com/1F47E/geo-region-index/pkg/region"
)

// ErrValidation is returned by Resolve for coordinates outside the WGS84
// range or not finite.
var ErrValidation = eris.New("engine: invalid coordinate")

// rootKey is the index key for the province level.
const rootKey = ""

// Observer receives engine events. The metrics collector implements it.
type Observer interface {
	ObserveLoad(counts map[models.Level]int)
	ObserveResolve(depth int, elapsed time.Duration)
	ObserveAmbiguity(level models.Level)
}

type nopObserver struct{}

func (nopObserver) ObserveLoad(map[models.Level]int)  {}
func (nopObserver) ObserveResolve(int, time.Duration) {}
func (nopObserver) ObserveAmbiguity(models.Level)     {}

type options struct {
	logger   *zap.Logger
	kind     index.Kind
	observer Observer
	workers  int
	maxLevel *models.Level
}

// Option configures an Engine.
type Option func(*options)

// WithLogger sets the logger. Defaults to zap.L().
func WithLogger(l *zap.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithIndexKind selects the spatial index. Defaults to index.KindGrid.
func WithIndexKind(k index.Kind) Option {
	return func(o *options) { o.kind = k }
}

// WithObserver registers an observer for load, resolve and ambiguity events.
func WithObserver(obs Observer) Option {
	return func(o *options) {
		if obs != nil {
			o.observer = obs
		}
	}
}

// WithLoadWorkers bounds parallel file parsing during New.
func WithLoadWorkers(n int) Option {
	return func(o *options) { o.workers = n }
}

// WithMaxLevel caps the finest level FromHierarchy resolves to, so a
// district snapshot can serve city-level lookups. New ignores it.
func WithMaxLevel(level models.Level) Option {
	return func(o *options) { o.maxLevel = &level }
}

// Engine resolves coordinates against an immutable hierarchy.
type Engine struct {
	hierarchy *region.Hierarchy
	finest    models.Level
	kind      index.Kind
	// indexes holds one index per parent code, over that parent's
	// children. rootKey indexes the provinces.
	indexes  map[string]index.Index
	log      *zap.Logger
	observer Observer

	loadDuration time.Duration
	resolves     atomic.Int64
	notFound     atomic.Int64
	ambiguous    atomic.Int64
}

// New loads dataDir down to finest and builds the spatial indexes. Errors
// wrap loader.ErrConfiguration or loader.ErrDataFormat.
func New(ctx context.Context, dataDir string, finest models.Level, opts ...Option) (*Engine, error) {
	o := newOptions(opts)
	start := time.Now()

	loadOpts := []loader.Option{loader.WithLogger(o.logger)}
	if o.workers > 0 {
		loadOpts = append(loadOpts, loader.WithWorkers(o.workers))
	}
	h, err := loader.Load(ctx, dataDir, finest, loadOpts...)
	if err != nil {
		return nil, err
	}

	e, err := build(h, finest, o)
	if err != nil {
		return nil, err
	}
	e.loadDuration = time.Since(start)
	return e, nil
}

// FromHierarchy builds an engine over an already loaded hierarchy, such as
// one read from a snapshot. The finest level is the deepest level present,
// capped by WithMaxLevel.
func FromHierarchy(h *region.Hierarchy, opts ...Option) (*Engine, error) {
	if h == nil || h.Len() == 0 {
		return nil, eris.Wrap(loader.ErrConfiguration, "engine: empty hierarchy")
	}
	o := newOptions(opts)
	finest := h.Finest()
	if o.maxLevel != nil {
		if !o.maxLevel.Valid() {
			return nil, eris.Wrapf(loader.ErrConfiguration, "engine: invalid level %d", int(*o.maxLevel))
		}
		finest = min(finest, *o.maxLevel)
	}
	start := time.Now()
	e, err := build(h, finest, o)
	if err != nil {
		return nil, err
	}
	e.loadDuration = time.Since(start)
	return e, nil
}

func newOptions(opts []Option) options {
	o := options{logger: zap.L(), kind: index.KindGrid, observer: nopObserver{}}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

func build(h *region.Hierarchy, finest models.Level, o options) (*Engine, error) {
	kind, err := index.ParseKind(string(o.kind))
	if err != nil {
		return nil, eris.Wrapf(loader.ErrConfiguration, "engine: %v", err)
	}

	e := &Engine{
		hierarchy: h,
		finest:    finest,
		kind:      kind,
		indexes:   make(map[string]index.Index),
		log:       o.logger.With(zap.String("component", "engine")),
		observer:  o.observer,
	}

	start := time.Now()
	roots := h.Roots()
	if e.indexes[rootKey], err = index.New(kind, entries(roots)); err != nil {
		return nil, eris.Wrap(err, "engine: build province index")
	}
	for level := models.Province; level < finest; level++ {
		for _, code := range h.Level(level) {
			children := h.Children(code)
			if len(children) == 0 {
				continue
			}
			if e.indexes[code], err = index.New(kind, entries(children)); err != nil {
				return nil, eris.Wrapf(err, "engine: build index for %s", code)
			}
		}
	}

	counts := e.counts()
	e.observer.ObserveLoad(counts)
	e.log.Info("engine ready",
		zap.Stringer("finest", finest),
		zap.String("index", string(kind)),
		zap.Int("indexes", len(e.indexes)),
		zap.Int("provinces", counts[models.Province]),
		zap.Int("cities", counts[models.City]),
		zap.Int("districts", counts[models.District]),
		zap.Duration("index_elapsed", time.Since(start)),
	)
	return e, nil
}

func entries(regions []*region.Region) []index.Entry {
	out := make([]index.Entry, len(regions))
	for i, r := range regions {
		out[i] = index.Entry{Code: r.Code, Bounds: r.Bounds}
	}
	return out
}

// counts reports regions per level down to the finest level.
func (e *Engine) counts() map[models.Level]int {
	out := e.hierarchy.Counts()
	for level := range out {
		if level > e.finest {
			delete(out, level)
		}
	}
	return out
}

// Finest returns the deepest level this engine resolves to.
func (e *Engine) Finest() models.Level { return e.finest }

// Hierarchy exposes the loaded regions, read-only.
func (e *Engine) Hierarchy() *region.Hierarchy { return e.hierarchy }

// Stats is a point-in-time view of an engine.
type Stats struct {
	Finest       models.Level         `json:"finest"`
	IndexKind    index.Kind           `json:"indexKind"`
	Regions      map[models.Level]int `json:"regions"`
	Indexes      int                  `json:"indexes"`
	Resolves     int64                `json:"resolves"`
	NotFound     int64                `json:"notFound"`
	Ambiguous    int64                `json:"ambiguous"`
	LoadDuration time.Duration        `json:"loadDurationNs"`
}

// Stats returns region counts down to the finest level plus the query
// counters accumulated since the engine was built.
func (e *Engine) Stats() Stats {
	return Stats{
		Finest:       e.finest,
		IndexKind:    e.kind,
		Regions:      e.counts(),
		Indexes:      len(e.indexes),
		Resolves:     e.resolves.Load(),
		NotFound:     e.notFound.Load(),
		Ambiguous:    e.ambiguous.Load(),
		LoadDuration: e.loadDuration,
	}
}
