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
	DefaultUSGSBaseURL = "https://waterservices.usgs.gov"

	ParamFlow  = "00060" // 流量 cfs
	ParamLevel = "00065" // 水位 ft
	ParamTemp  = "00010" // 水温 °C

	// Placeholder 缺字段时展示的占位值
	Placeholder = "--"

	usgsNoDataValue = "-999999"
)

// RiverReading 单个测站各参数的最新值（展示用字符串 + 可选数值）
type RiverReading struct {
	Site       string   `json:"site"`
	Flow       string   `json:"flow"`
	Level      string   `json:"level"`
	Temp       string   `json:"temp"`
	FlowCFS    *float64 `json:"flowCfs,omitempty"`
	LevelFt    *float64 `json:"levelFt,omitempty"`
	TempC      *float64 `json:"tempC,omitempty"`
	ObservedAt string   `json:"observedAt,omitempty"`
}

// PlaceholderReading 全部为占位值的读数
func PlaceholderReading(site string) RiverReading {
	return RiverReading{Site: site, Flow: Placeholder, Level: Placeholder, Temp: Placeholder}
}

// 对应 waterservices.usgs.gov/nwis/iv 的 JSON 结构，只取用到的字段
type usgsResponse struct {
	Value struct {
		TimeSeries []struct {
			Variable struct {
				VariableCode []struct {
					Value string `json:"value"`
				} `json:"variableCode"`
			} `json:"variable"`
			Values []struct {
				Value []struct {
					Value    string `json:"value"`
					DateTime string `json:"dateTime"`
				} `json:"value"`
			} `json:"values"`
		} `json:"timeSeries"`
	} `json:"value"`
}

// RiverClient 查询 USGS 实时水文数据
type RiverClient struct {
	BaseURL string
	client  *resty.Client
}

func NewRiverClient(baseURL string, timeout time.Duration) *RiverClient {
	if baseURL == "" {
		baseURL = DefaultUSGSBaseURL
	}
	if timeout <= 0 {
		timeout = defaultFetchTimeout
	}
	client := resty.New()
	client.SetTimeout(timeout)
	client.SetHeader("User-Agent", defaultUserAgent)
	return &RiverClient{BaseURL: strings.TrimRight(baseURL, "/"), client: client}
}

// Latest 拉取测站最新的流量、水位、水温；出错时仍返回占位读数
func (c *RiverClient) Latest(ctx context.Context, site string) (RiverReading, error) {
	res, err := c.client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"sites":       site,
			"format":      "json",
			"parameterCd": strings.Join([]string{ParamFlow, ParamLevel, ParamTemp}, ","),
		}).
		Get(c.BaseURL + "/nwis/iv/")
	if err != nil {
		return PlaceholderReading(site), fmt.Errorf("%w: usgs %s: %v", ErrFetchFailed, site, err)
	}
	if res.IsError() {
		return PlaceholderReading(site), fmt.Errorf("%w: usgs %s: unexpected status %d", ErrFetchFailed, site, res.StatusCode())
	}
	return ParseRiverReading(site, res.Body())
}

// ParseRiverReading 每个参数取第一组 values 的第一个值；缺失或无效值为占位符
func ParseRiverReading(site string, body []byte) (RiverReading, error) {
	reading := PlaceholderReading(site)

	var payload usgsResponse
	if err := json.Unmarshal(body, &payload); err != nil {
		return reading, fmt.Errorf("usgs %s: decode: %w", site, err)
	}

	// 同一参数可能有多条序列（多个探头），只取第一条
	seen := make(map[string]bool, 3)
	for _, ts := range payload.Value.TimeSeries {
		if len(ts.Variable.VariableCode) == 0 || len(ts.Values) == 0 || len(ts.Values[0].Value) == 0 {
			continue
		}
		code := ts.Variable.VariableCode[0].Value
		if seen[code] {
			continue
		}
		v := ts.Values[0].Value[0]
		raw := strings.TrimSpace(v.Value)
		if raw == "" || raw == usgsNoDataValue {
			continue
		}
		num := parseFloatPtr(raw)

		switch code {
		case ParamFlow:
			reading.Flow = raw + " cfs"
			reading.FlowCFS = num
		case ParamLevel:
			reading.Level = raw + " ft"
			reading.LevelFt = num
		case ParamTemp:
			reading.Temp = raw + "°C"
			reading.TempC = num
		default:
			continue
		}
		seen[code] = true
		if v.DateTime > reading.ObservedAt {
			reading.ObservedAt = v.DateTime
		}
	}
	return reading, nil
}

func parseFloatPtr(s string) *float64 {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil
	}
	return &f
}
