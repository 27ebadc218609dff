package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/LJTian/RiverReport/internal/collector"
	"github.com/LJTian/RiverReport/internal/processor"
	"github.com/LJTian/RiverReport/internal/river"
	"github.com/LJTian/RiverReport/internal/storage"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeStore struct {
	snapshots []storage.Snapshot
	err       error
	passes    []storage.Pass

	gauges []river.Gauge
	cache  map[string]river.GaugeReport
	saved  []river.GaugeReport
}

func (f *fakeStore) LatestSnapshot(context.Context) (storage.Snapshot, error) {
	if f.err != nil {
		return storage.Snapshot{}, f.err
	}
	if len(f.snapshots) == 0 {
		return storage.Snapshot{}, storage.ErrNoSnapshot
	}
	return f.snapshots[len(f.snapshots)-1], nil
}

func (f *fakeStore) ListPasses(context.Context, int) ([]storage.Pass, error) {
	return f.passes, nil
}

func (f *fakeStore) ListGauges(context.Context) ([]river.Gauge, error) { return f.gauges, nil }

func (f *fakeStore) FindGauge(_ context.Context, site string) (river.Gauge, bool) {
	for _, g := range f.gauges {
		if g.Site == site {
			return g, true
		}
	}
	return river.Gauge{}, false
}

func (f *fakeStore) GetGaugeCache(_ context.Context, site string) (river.GaugeReport, bool) {
	rep, ok := f.cache[site]
	return rep, ok
}

func (f *fakeStore) SaveGaugeCache(_ context.Context, rep river.GaugeReport) error {
	f.saved = append(f.saved, rep)
	return nil
}

// fakeRefresher 模拟一轮采集，store 不为 nil 时把结果当作已落库
type fakeRefresher struct {
	calls   int
	records []processor.Record
	store   *fakeStore
}

func (f *fakeRefresher) RunOnce(context.Context) ([]processor.Record, error) {
	f.calls++
	if f.store != nil {
		f.store.snapshots = append(f.store.snapshots, storage.Snapshot{PassID: uint(f.calls), Records: f.records})
	}
	return f.records, nil
}

type fakeReporter struct{ calls int }

func (f *fakeReporter) Report(_ context.Context, g river.Gauge) river.GaugeReport {
	f.calls++
	return river.GaugeReport{
		Gauge:      g,
		River:      collector.PlaceholderReading(g.Site),
		Forecast:   collector.Forecast{Summary: "Sunny, 70°F"},
		Conditions: river.Assess(1000, 12),
		FetchedAt:  time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
	}
}

type envelope struct {
	Code    string          `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func newTestEngine(store *fakeStore, refresher *fakeRefresher, reporter *fakeReporter) *gin.Engine {
	r := gin.New()
	NewServer(store, refresher, store, reporter).RegisterRoutes(r)
	return r
}

func do(t *testing.T, r http.Handler, method, path string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, path, nil)
	r.ServeHTTP(w, req)
	var env envelope
	if w.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	}
	return w, env
}

var sampleRecords = []processor.Record{
	{Source: "A", Title: "Morning Report", Date: "2024-05-01T07:30:00Z", Link: "/a/1"},
	{Source: "B", Title: processor.FallbackTitle("B"), Link: "https://b.example/", Fallback: true},
}

func TestLatestReportsFromStore(t *testing.T) {
	store := &fakeStore{snapshots: []storage.Snapshot{{PassID: 7, Records: sampleRecords}}}
	refresher := &fakeRefresher{}
	r := newTestEngine(store, refresher, &fakeReporter{})

	w, env := do(t, r, http.MethodGet, "/api/v1/reports")
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "ok", env.Code)

	var snap storage.Snapshot
	require.NoError(t, json.Unmarshal(env.Data, &snap))
	require.Equal(t, uint(7), snap.PassID)
	require.Equal(t, sampleRecords, snap.Records)
	require.Zero(t, refresher.calls)
}

func TestLatestReportsRunsPassWhenEmpty(t *testing.T) {
	store := &fakeStore{}
	refresher := &fakeRefresher{records: sampleRecords, store: store}
	r := newTestEngine(store, refresher, &fakeReporter{})

	w, env := do(t, r, http.MethodGet, "/api/v1/reports")
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, 1, refresher.calls)

	var snap storage.Snapshot
	require.NoError(t, json.Unmarshal(env.Data, &snap))
	require.Equal(t, uint(1), snap.PassID)
	require.Len(t, snap.Records, 2)
}

func TestLatestReportsStoreError(t *testing.T) {
	store := &fakeStore{err: errors.New("db down")}
	w, env := do(t, newTestEngine(store, &fakeRefresher{}, &fakeReporter{}), http.MethodGet, "/api/v1/reports")
	require.Equal(t, http.StatusInternalServerError, w.Code)
	require.Equal(t, "internal_error", env.Code)
}

func TestRefreshReports(t *testing.T) {
	store := &fakeStore{}
	refresher := &fakeRefresher{records: sampleRecords, store: store}
	w, env := do(t, newTestEngine(store, refresher, &fakeReporter{}), http.MethodPost, "/api/v1/reports/refresh")
	require.Equal(t, http.StatusOK, w.Code)

	var records []processor.Record
	require.NoError(t, json.Unmarshal(env.Data, &records))
	require.Equal(t, sampleRecords, records)
	require.Len(t, store.snapshots, 1)
}

func TestListGaugesFallsBackToDefaults(t *testing.T) {
	w, env := do(t, newTestEngine(&fakeStore{}, &fakeRefresher{}, &fakeReporter{}), http.MethodGet, "/api/v1/gauges")
	require.Equal(t, http.StatusOK, w.Code)

	var gauges []river.Gauge
	require.NoError(t, json.Unmarshal(env.Data, &gauges))
	require.Len(t, gauges, len(river.DefaultGauges))
}

func TestGaugeReportCacheAndLive(t *testing.T) {
	cached := river.GaugeReport{Gauge: river.Gauge{Site: "01427000"}, Forecast: collector.Forecast{Summary: "cached"}}
	store := &fakeStore{cache: map[string]river.GaugeReport{"01427000": cached}}
	reporter := &fakeReporter{}
	r := newTestEngine(store, &fakeRefresher{}, reporter)

	_, env := do(t, r, http.MethodGet, "/api/v1/gauges/01427000")
	var rep river.GaugeReport
	require.NoError(t, json.Unmarshal(env.Data, &rep))
	require.Equal(t, "cached", rep.Forecast.Summary)
	require.Zero(t, reporter.calls)

	_, env = do(t, r, http.MethodGet, "/api/v1/gauges/01427000?live=1")
	require.NoError(t, json.Unmarshal(env.Data, &rep))
	require.Equal(t, "Sunny, 70°F", rep.Forecast.Summary)
	require.Equal(t, "Hancock, NY", rep.Gauge.Name)
	require.Equal(t, 1, reporter.calls)
	require.Len(t, store.saved, 1)
}

func TestGaugeReportErrors(t *testing.T) {
	r := newTestEngine(&fakeStore{}, &fakeRefresher{}, &fakeReporter{})

	w, env := do(t, r, http.MethodGet, "/api/v1/gauges/abc")
	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Equal(t, "invalid_site", env.Code)

	w, env = do(t, r, http.MethodGet, "/api/v1/gauges/99999999")
	require.Equal(t, http.StatusNotFound, w.Code)
	require.Equal(t, "not_found", env.Code)
}

func TestBasicAuth(t *testing.T) {
	r := gin.New()
	r.Use(BasicAuth("angler", "secret"))
	NewServer(&fakeStore{}, &fakeRefresher{}, &fakeStore{}, &fakeReporter{}).RegisterRoutes(r)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/gauges", nil))
	require.Equal(t, http.StatusUnauthorized, w.Code)
	require.Contains(t, w.Header().Get("WWW-Authenticate"), "Basic")
	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	require.Equal(t, "unauthorized", env.Code)

	w = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/gauges", nil)
	req.SetBasicAuth("angler", "wrong")
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusUnauthorized, w.Code)

	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/api/v1/gauges", nil)
	req.SetBasicAuth("angler", "secret")
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
}

func TestBasicAuthCustomPublicPaths(t *testing.T) {
	r := gin.New()
	r.Use(BasicAuth("angler", "secret", "/api/v1/gauges"))
	NewServer(&fakeStore{}, &fakeRefresher{}, &fakeStore{}, &fakeReporter{}).RegisterRoutes(r)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/gauges", nil))
	require.Equal(t, http.StatusOK, w.Code)

	// 显式列出公开路径后 /health 不再默认放行
	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusUnauthorized, w.Code)

	// 用户名与密码的拼接方式不能互相串位
	w = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/reports/passes", nil)
	req.SetBasicAuth("anglers", "ecret")
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusUnauthorized, w.Code)
}
