package metrics

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/1F47E/geo-region-index/pkg/engine"
	"github.com/1F47E/geo-region-index/pkg/models"
)

func TestCollectorObserves(t *testing.T) {
	reg := prometheus.NewRegistry()
	c, err := NewCollector(reg)
	require.NoError(t, err)

	c.ObserveLoad(map[models.Level]int{models.Province: 34, models.City: 333})
	c.ObserveResolve(3, 20*time.Microsecond)
	c.ObserveResolve(3, 30*time.Microsecond)
	c.ObserveResolve(0, time.Microsecond)
	c.ObserveAmbiguity(models.City)
	c.ObserveRequest("/api/reverse", http.StatusOK)
	c.ObserveRequest("", http.StatusNotFound)

	assert.Equal(t, 34.0, testutil.ToFloat64(c.RegionsLoaded.WithLabelValues("province")))
	assert.Equal(t, 333.0, testutil.ToFloat64(c.RegionsLoaded.WithLabelValues("city")))
	assert.Equal(t, 0.0, testutil.ToFloat64(c.RegionsLoaded.WithLabelValues("district")))
	assert.Equal(t, 2.0, testutil.ToFloat64(c.Resolves.WithLabelValues("3")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.Resolves.WithLabelValues("0")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.Ambiguous.WithLabelValues("city")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.HTTPRequests.WithLabelValues("/api/reverse", "200")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.HTTPRequests.WithLabelValues("unknown", "404")))
	assert.Equal(t, 1, testutil.CollectAndCount(c.ResolveDuration))
}

func TestCollectorReusesRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	first, err := NewCollector(reg)
	require.NoError(t, err)
	second, err := NewCollector(reg)
	require.NoError(t, err)

	first.ObserveAmbiguity(models.Province)
	second.ObserveAmbiguity(models.Province)
	assert.Equal(t, 2.0, testutil.ToFloat64(first.Ambiguous.WithLabelValues("province")))
}

func TestCollectorIncompatibleRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "revgeo_resolve_total",
		Help: "clash",
	}))
	_, err := NewCollector(reg)
	assert.Error(t, err)
}

func TestNilCollector(t *testing.T) {
	var c *Collector
	assert.NotPanics(t, func() {
		c.ObserveLoad(map[models.Level]int{models.Province: 1})
		c.ObserveResolve(1, time.Millisecond)
		c.ObserveAmbiguity(models.District)
		c.ObserveRequest("/healthz", http.StatusOK)
	})
	assert.NotNil(t, c.Handler())
}

func TestCollectorDrivenByEngine(t *testing.T) {
	reg := prometheus.NewRegistry()
	c, err := NewCollector(reg)
	require.NoError(t, err)

	e, err := engine.New(context.Background(), "../engine/testdata", models.District,
		engine.WithLogger(zap.NewNop()), engine.WithObserver(c))
	require.NoError(t, err)

	_, err = e.Resolve(32.053197915979325, 118.85999259252777)
	require.NoError(t, err)
	_, err = e.Resolve(30, 120)
	require.NoError(t, err)

	assert.Equal(t, 2.0, testutil.ToFloat64(c.RegionsLoaded.WithLabelValues("province")))
	assert.Equal(t, 3.0, testutil.ToFloat64(c.RegionsLoaded.WithLabelValues("district")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.Resolves.WithLabelValues("3")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.Resolves.WithLabelValues("2")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.Ambiguous.WithLabelValues("province")))
}

func TestHandler(t *testing.T) {
	reg := prometheus.NewRegistry()
	c, err := NewCollector(reg)
	require.NoError(t, err)
	c.ObserveResolve(2, time.Millisecond)

	srv := httptest.NewServer(c.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, strings.Contains(string(body), `revgeo_resolve_total{depth="2"} 1`))
}
