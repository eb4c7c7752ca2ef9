// Package httpapi serves reverse lookups over HTTP.
package httpapi

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/1F47E/geo-region-index/pkg/engine"
	"github.com/1F47E/geo-region-index/pkg/metrics"
	"github.com/1F47E/geo-region-index/pkg/models"
)

// Resolver is what the handlers need from an engine. *engine.Holder and
// *engine.Engine both satisfy it.
type Resolver interface {
	Resolve(lat, lon float64) (*models.GeoInfo, error)
	Lookup(code string) (*models.GeoInfo, bool)
	Stats() engine.Stats
}

// Options configures NewRouter. The zero value serves without metrics,
// CORS or rate limiting and logs to zap.L().
type Options struct {
	Logger      *zap.Logger
	Metrics     *metrics.Collector
	CORSOrigins []string
	RateLimit   float64
	RateBurst   int
}

type handler struct {
	resolver Resolver
	log      *zap.Logger
}

// NewRouter builds the HTTP routes.
func NewRouter(res Resolver, opts Options) *chi.Mux {
	log := opts.Logger
	if log == nil {
		log = zap.L()
	}
	h := &handler{resolver: res, log: log.With(zap.String("component", "http"))}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(RequestLogger(h.log, opts.Metrics))
	if len(opts.CORSOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: opts.CORSOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodOptions},
			MaxAge:         300,
		}))
	}

	r.Get("/healthz", h.health)
	r.Handle("/metrics", opts.Metrics.Handler())
	r.Group(func(r chi.Router) {
		r.Use(RateLimit(opts.RateLimit, opts.RateBurst))
		r.Get("/api/reverse", h.reverse)
		r.Get("/api/region/{code}", h.region)
		r.Get("/api/stats", h.stats)
	})
	return r
}

func (h *handler) health(w http.ResponseWriter, _ *http.Request) {
	if h.resolver.Stats().Regions == nil {
		http.Error(w, "not loaded", http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (h *handler) reverse(w http.ResponseWriter, r *http.Request) {
	latStr := r.URL.Query().Get("lat")
	lngStr := r.URL.Query().Get("lng")
	if latStr == "" || lngStr == "" {
		writeJSON(w, http.StatusBadRequest, fail(CodeMissingParam, "missing lat or lng"))
		return
	}
	lat, err1 := strconv.ParseFloat(latStr, 64)
	lng, err2 := strconv.ParseFloat(lngStr, 64)
	if err1 != nil || err2 != nil {
		writeJSON(w, http.StatusBadRequest, fail(CodeInvalidParam, "invalid lat or lng"))
		return
	}

	info, err := h.resolver.Resolve(lat, lng)
	switch {
	case errors.Is(err, engine.ErrValidation):
		writeJSON(w, http.StatusBadRequest, fail(CodeOutOfRange, "lat or lng out of range"))
		return
	case errors.Is(err, engine.ErrNotLoaded):
		writeJSON(w, http.StatusServiceUnavailable, fail(CodeNotLoaded, "boundary data not loaded"))
		return
	case err != nil:
		h.log.Error("resolve failed", zap.Float64("lat", lat), zap.Float64("lng", lng), zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, fail(CodeInternal, "internal error"))
		return
	}
	if info.Empty() {
		h.log.Debug("reverse not found", zap.Float64("lat", lat), zap.Float64("lng", lng))
		writeJSON(w, http.StatusNotFound, fail(CodeNotFound, "not found"))
		return
	}
	writeJSON(w, http.StatusOK, ok(newReverseData(info)))
}

func (h *handler) region(w http.ResponseWriter, r *http.Request) {
	info, found := h.resolver.Lookup(chi.URLParam(r, "code"))
	if !found {
		writeJSON(w, http.StatusNotFound, fail(CodeNotFound, "not found"))
		return
	}
	writeJSON(w, http.StatusOK, ok(newReverseData(info)))
}

func (h *handler) stats(w http.ResponseWriter, _ *http.Request) {
	s := h.resolver.Stats()
	writeJSON(w, http.StatusOK, ok(&s))
}
