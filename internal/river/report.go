package river

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/LJTian/RiverReport/internal/collector"
)

// RiverSource 水文数据来源，由 collector.RiverClient 实现
type RiverSource interface {
	Latest(ctx context.Context, site string) (collector.RiverReading, error)
}

// WeatherSource 天气预报来源，由 collector.WeatherClient 实现
type WeatherSource interface {
	ByZone(ctx context.Context, zone string) (collector.Forecast, error)
	ByPoint(ctx context.Context, lat, lon float64) (collector.Forecast, error)
}

// GaugeReport 某个测站当前的水情、天气与钓况
type GaugeReport struct {
	Gauge      Gauge                  `json:"gauge"`
	River      collector.RiverReading `json:"river"`
	Forecast   collector.Forecast     `json:"forecast"`
	Conditions Conditions             `json:"conditions"`
	FetchedAt  time.Time              `json:"fetchedAt"`
}

// Reporter 并行查询水文与天气，任何一边失败都退化为占位值
type Reporter struct {
	River   RiverSource
	Weather WeatherSource
	Now     func() time.Time
}

func (r *Reporter) Report(ctx context.Context, g Gauge) GaugeReport {
	var (
		wg       sync.WaitGroup
		reading  collector.RiverReading
		forecast collector.Forecast
	)

	wg.Add(2)
	go func() {
		defer wg.Done()
		var err error
		reading, err = r.River.Latest(ctx, g.Site)
		if err != nil {
			slog.Warn("river reading failed", "site", g.Site, "error", err)
			reading = collector.PlaceholderReading(g.Site)
		}
	}()
	go func() {
		defer wg.Done()
		forecast = r.forecast(ctx, g)
	}()
	wg.Wait()

	now := time.Now
	if r.Now != nil {
		now = r.Now
	}
	return GaugeReport{
		Gauge:      g,
		River:      reading,
		Forecast:   forecast,
		Conditions: Assess(valueOrNaN(reading.FlowCFS), valueOrNaN(reading.TempC)),
		FetchedAt:  now(),
	}
}

func (r *Reporter) forecast(ctx context.Context, g Gauge) collector.Forecast {
	var (
		f   collector.Forecast
		err error
	)
	switch {
	case g.Zone != "":
		f, err = r.Weather.ByZone(ctx, g.Zone)
	case g.HasPoint():
		f, err = r.Weather.ByPoint(ctx, g.Lat, g.Lon)
	default:
		return collector.Forecast{Summary: collector.NoForecast}
	}
	if err != nil {
		slog.Warn("weather forecast failed", "site", g.Site, "error", err)
		return collector.Forecast{Summary: collector.WeatherUnavailable}
	}
	if f.Summary == "" {
		f.Summary = collector.NoForecast
	}
	return f
}
