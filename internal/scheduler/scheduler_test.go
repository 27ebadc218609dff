package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/LJTian/RiverReport/internal/collector"
	"github.com/LJTian/RiverReport/internal/extract"
	"github.com/LJTian/RiverReport/internal/processor"
	"github.com/LJTian/RiverReport/internal/river"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

// stubFetcher 按源名返回预设内容，delay 用于打乱完成顺序
type stubFetcher struct {
	pages  map[string]string
	delays map[string]time.Duration
	failed map[string]bool
}

func (f *stubFetcher) Fetch(ctx context.Context, src collector.Source) collector.FetchOutcome {
	if d := f.delays[src.Name]; d > 0 {
		time.Sleep(d)
	}
	if f.failed[src.Name] {
		return collector.FetchOutcome{Source: src.Name, Err: fmt.Errorf("%w: stub", collector.ErrFetchFailed)}
	}
	return collector.FetchOutcome{Source: src.Name, Content: f.pages[src.Name]}
}

func page(title, link string) string {
	return `<html><body><article><h2><a href="` + link + `">` + title + `</a></h2><p>Water is up.</p></article></body></html>`
}

func testSources(names ...string) []collector.Source {
	out := make([]collector.Source, 0, len(names))
	for _, n := range names {
		out = append(out, collector.Source{
			Name:       n,
			Locator:    "https://" + n + ".example/",
			Strategies: []extract.Descriptor{{Kind: "dom"}},
		})
	}
	return out
}

func newAggregator(f collector.Fetcher, mode Mode) *Aggregator {
	return &Aggregator{
		Fetcher: f,
		Runner:  &processor.Runner{Now: func() time.Time { return fixedNow }, Marker: processor.DefaultMarker},
		Mode:    mode,
	}
}

func TestPassKeepsInputOrder(t *testing.T) {
	f := &stubFetcher{
		pages: map[string]string{
			"a": page("A report", "/a"),
			"b": page("B report", "/b"),
			"c": page("C report", "/c"),
		},
		// 先完成的反而排在后面
		delays: map[string]time.Duration{"a": 60 * time.Millisecond, "b": 30 * time.Millisecond},
	}

	records := newAggregator(f, ModeDrop).Pass(context.Background(), testSources("a", "b", "c"))
	require.Len(t, records, 3)
	for i, want := range []string{"a", "b", "c"} {
		require.Equal(t, want, records[i].Source)
		require.False(t, records[i].Fallback)
	}
	require.Equal(t, "A report", records[0].Title)
	require.Equal(t, "/c", records[2].Link)
}

func TestPassFetchFailureModes(t *testing.T) {
	f := &stubFetcher{
		pages:  map[string]string{"a": page("A report", "/a"), "c": page("C report", "/c")},
		failed: map[string]bool{"b": true},
	}
	sources := testSources("a", "b", "c")

	dropped := newAggregator(f, ModeDrop).Pass(context.Background(), sources)
	require.Len(t, dropped, 2)
	require.Equal(t, "a", dropped[0].Source)
	require.Equal(t, "c", dropped[1].Source)

	withFallback := newAggregator(f, ModeFallback).Pass(context.Background(), sources)
	require.Len(t, withFallback, 3)
	b := withFallback[1]
	require.Equal(t, processor.Record{
		Source:   "b",
		Title:    processor.FallbackTitle("b"),
		Date:     fixedNow.Format(time.RFC3339),
		Link:     "https://b.example/",
		Fallback: true,
	}, b)
}

func TestPassEmptyContentYieldsFallbackInBothModes(t *testing.T) {
	f := &stubFetcher{pages: map[string]string{"a": ""}}
	for _, mode := range []Mode{ModeDrop, ModeFallback} {
		records := newAggregator(f, mode).Pass(context.Background(), testSources("a"))
		require.Len(t, records, 1, "mode %s", mode)
		require.True(t, records[0].Fallback)
	}
}

func TestPassNoSources(t *testing.T) {
	records := newAggregator(&stubFetcher{}, ModeDrop).Pass(context.Background(), nil)
	require.Empty(t, records)
}

func TestParseMode(t *testing.T) {
	for in, want := range map[string]Mode{"": ModeDrop, "drop": ModeDrop, " Fallback ": ModeFallback} {
		got, err := ParseMode(in)
		require.NoError(t, err)
		require.Equal(t, want, got)
	}
	_, err := ParseMode("retry")
	require.Error(t, err)
}

type memorySink struct {
	mu      sync.Mutex
	calls   int
	mode    string
	records []processor.Record
	gauges  []river.GaugeReport
	err     error
}

func (m *memorySink) SaveSnapshot(_ context.Context, records []processor.Record, mode string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	m.mode = mode
	m.records = records
	return m.err
}

func (m *memorySink) SaveGaugeCache(_ context.Context, rep river.GaugeReport) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gauges = append(m.gauges, rep)
	return m.err
}

func TestRunOnceSavesSnapshot(t *testing.T) {
	sink := &memorySink{}
	f := &stubFetcher{pages: map[string]string{"a": page("A report", "/a")}}
	s, err := New("*/15 * * * *", newAggregator(f, ModeFallback), testSources("a"), sink)
	require.NoError(t, err)

	records, err := s.RunOnce(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 1)
	require.Equal(t, 1, sink.calls)
	require.Equal(t, "fallback", sink.mode)
	require.Equal(t, records, sink.records)
}

func TestRunOnceReturnsRecordsWhenSaveFails(t *testing.T) {
	sink := &memorySink{err: errors.New("db down")}
	f := &stubFetcher{pages: map[string]string{"a": page("A report", "/a")}}
	s, err := New("@every 1h", newAggregator(f, ModeDrop), testSources("a"), sink)
	require.NoError(t, err)

	records, err := s.RunOnce(context.Background())
	require.Error(t, err)
	require.Len(t, records, 1)
}

func (m *memorySink) snapshotCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

func TestStartRunsFirstPassAfterDelay(t *testing.T) {
	sink := &memorySink{}
	f := &stubFetcher{pages: map[string]string{"a": page("A report", "/a")}}
	s, err := New("@every 1h", newAggregator(f, ModeDrop), testSources("a"), sink)
	require.NoError(t, err)
	s.startupDelay = 10 * time.Millisecond

	s.Start()
	defer s.Stop()
	require.Eventually(t, func() bool { return sink.snapshotCalls() == 1 }, 2*time.Second, 10*time.Millisecond)
}

func TestStopCancelsPendingFirstPass(t *testing.T) {
	sink := &memorySink{}
	f := &stubFetcher{pages: map[string]string{"a": page("A report", "/a")}}
	s, err := New("@every 1h", newAggregator(f, ModeDrop), testSources("a"), sink)
	require.NoError(t, err)
	s.startupDelay = 30 * time.Millisecond

	s.Start()
	s.Stop()
	time.Sleep(100 * time.Millisecond)
	require.Zero(t, sink.snapshotCalls())

	// 停止后的定时触发同样不执行
	s.tick()
	require.Zero(t, sink.snapshotCalls())
}

func TestNewRejectsBadSpec(t *testing.T) {
	_, err := New("not a cron spec", newAggregator(&stubFetcher{}, ModeDrop), nil, nil)
	require.Error(t, err)
}

type staticRiver struct{}

func (staticRiver) Latest(_ context.Context, site string) (collector.RiverReading, error) {
	return collector.PlaceholderReading(site), nil
}

type staticWeather struct{}

func (staticWeather) ByZone(context.Context, string) (collector.Forecast, error) {
	return collector.Forecast{Summary: "Cloudy, 60°F"}, nil
}

func (staticWeather) ByPoint(context.Context, float64, float64) (collector.Forecast, error) {
	return collector.Forecast{Summary: "Cloudy, 60°F"}, nil
}

func TestRefreshGauges(t *testing.T) {
	sink := &memorySink{}
	reporter := &river.Reporter{River: staticRiver{}, Weather: staticWeather{}}
	RefreshGauges(context.Background(), reporter, river.DefaultGauges[:3], sink)

	require.Len(t, sink.gauges, 3)
	for _, rep := range sink.gauges {
		require.Equal(t, "Cloudy, 60°F", rep.Forecast.Summary)
	}
}
