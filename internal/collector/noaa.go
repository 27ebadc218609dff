package collector

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

const (
	DefaultNOAABaseURL = "https://api.weather.gov"

	// NoForecast 返回结构里没有可用时段
	NoForecast = "No forecast available"
	// WeatherUnavailable 请求本身失败
	WeatherUnavailable = "Error fetching weather"
)

// Forecast 预报的第一个时段
type Forecast struct {
	Summary       string `json:"summary"`
	Period        string `json:"period,omitempty"`
	ShortForecast string `json:"shortForecast,omitempty"`
	Temperature   *int   `json:"temperature,omitempty"`
	Unit          string `json:"unit,omitempty"`
	Icon          string `json:"icon,omitempty"`
}

type noaaForecastResponse struct {
	Properties struct {
		Periods []struct {
			Name             string `json:"name"`
			ShortForecast    string `json:"shortForecast"`
			DetailedForecast string `json:"detailedForecast"`
			Temperature      *int   `json:"temperature"`
			TemperatureUnit  string `json:"temperatureUnit"`
			Icon             string `json:"icon"`
		} `json:"periods"`
	} `json:"properties"`
}

type noaaPointResponse struct {
	Properties struct {
		Forecast string `json:"forecast"`
	} `json:"properties"`
}

// WeatherClient 查询 api.weather.gov；NOAA 要求请求带 User-Agent
type WeatherClient struct {
	BaseURL string
	client  *resty.Client
}

func NewWeatherClient(baseURL string, timeout time.Duration) *WeatherClient {
	if baseURL == "" {
		baseURL = DefaultNOAABaseURL
	}
	if timeout <= 0 {
		timeout = defaultFetchTimeout
	}
	client := resty.New()
	client.SetTimeout(timeout)
	client.SetHeader("User-Agent", defaultUserAgent)
	client.SetHeader("Accept", "application/geo+json")
	return &WeatherClient{BaseURL: strings.TrimRight(baseURL, "/"), client: client}
}

// ByZone 按预报区（如 NYZ057）查询
func (c *WeatherClient) ByZone(ctx context.Context, zone string) (Forecast, error) {
	body, err := c.get(ctx, c.BaseURL+"/zones/forecast/"+zone+"/forecast")
	if err != nil {
		return Forecast{Summary: WeatherUnavailable}, err
	}
	return ParseForecast(body)
}

// ByPoint 按坐标查询：先取 points 元数据中的 forecast 地址，再取预报
func (c *WeatherClient) ByPoint(ctx context.Context, lat, lon float64) (Forecast, error) {
	point := strconv.FormatFloat(lat, 'f', 4, 64) + "," + strconv.FormatFloat(lon, 'f', 4, 64)
	body, err := c.get(ctx, c.BaseURL+"/points/"+point)
	if err != nil {
		return Forecast{Summary: WeatherUnavailable}, err
	}
	var meta noaaPointResponse
	if err := json.Unmarshal(body, &meta); err != nil {
		return Forecast{Summary: WeatherUnavailable}, fmt.Errorf("noaa points %s: decode: %w", point, err)
	}
	if meta.Properties.Forecast == "" {
		return Forecast{Summary: NoForecast}, nil
	}

	body, err = c.get(ctx, meta.Properties.Forecast)
	if err != nil {
		return Forecast{Summary: WeatherUnavailable}, err
	}
	return ParseForecast(body)
}

func (c *WeatherClient) get(ctx context.Context, u string) ([]byte, error) {
	res, err := c.client.R().SetContext(ctx).Get(u)
	if err != nil {
		return nil, fmt.Errorf("%w: noaa %s: %v", ErrFetchFailed, u, err)
	}
	if res.IsError() {
		return nil, fmt.Errorf("%w: noaa %s: unexpected status %d", ErrFetchFailed, u, res.StatusCode())
	}
	return res.Body(), nil
}

// ParseForecast 取第一个时段，生成 "Sunny, 72°F" 形式的摘要。
// 区域预报没有温度字段，此时退回到 shortForecast 或 detailedForecast。
func ParseForecast(body []byte) (Forecast, error) {
	var payload noaaForecastResponse
	if err := json.Unmarshal(body, &payload); err != nil {
		return Forecast{Summary: WeatherUnavailable}, fmt.Errorf("noaa forecast: decode: %w", err)
	}
	if len(payload.Properties.Periods) == 0 {
		return Forecast{Summary: NoForecast}, nil
	}

	p := payload.Properties.Periods[0]
	f := Forecast{
		Period:        p.Name,
		ShortForecast: strings.TrimSpace(p.ShortForecast),
		Temperature:   p.Temperature,
		Unit:          p.TemperatureUnit,
		Icon:          p.Icon,
	}
	switch {
	case f.ShortForecast != "" && p.Temperature != nil:
		f.Summary = fmt.Sprintf("%s, %d°%s", f.ShortForecast, *p.Temperature, p.TemperatureUnit)
	case f.ShortForecast != "":
		f.Summary = f.ShortForecast
	case strings.TrimSpace(p.DetailedForecast) != "":
		f.Summary = strings.TrimSpace(p.DetailedForecast)
	default:
		f.Summary = NoForecast
	}
	return f, nil
}
