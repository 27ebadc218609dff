package collector

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

type renderRequest struct {
	URL string `json:"url"`
}

type renderResponse struct {
	OK    bool   `json:"ok"`
	HTML  string `json:"html,omitempty"`
	Error string `json:"error,omitempty"`
}

// BrowserFetcher 通过 cmd/browser-scraper 获取 JS 渲染后的页面
type BrowserFetcher struct {
	Endpoint string
	client   *resty.Client
}

func NewBrowserFetcher(endpoint string, timeout time.Duration) *BrowserFetcher {
	if timeout <= 0 {
		timeout = defaultFetchTimeout
	}
	client := resty.New()
	client.SetTimeout(timeout)
	client.SetHeader("Content-Type", "application/json")
	return &BrowserFetcher{
		Endpoint: strings.TrimRight(endpoint, "/"),
		client:   client,
	}
}

func (f *BrowserFetcher) Fetch(ctx context.Context, src Source) FetchOutcome {
	out := FetchOutcome{Source: src.Name}

	var payload renderResponse
	res, err := f.client.R().
		SetContext(ctx).
		SetBody(renderRequest{URL: src.Locator}).
		SetResult(&payload).
		Post(f.Endpoint + "/render")
	if err != nil {
		out.Err = fmt.Errorf("%w: render %s: %v", ErrFetchFailed, src.Locator, err)
		slog.Warn("render source failed", "source", src.Name, "error", err)
		return out
	}
	if res.IsError() {
		out.Err = fmt.Errorf("%w: render %s: unexpected status %d", ErrFetchFailed, src.Locator, res.StatusCode())
		slog.Warn("render source failed", "source", src.Name, "status", res.StatusCode())
		return out
	}
	if !payload.OK {
		out.Err = fmt.Errorf("%w: render %s: %s", ErrFetchFailed, src.Locator, payload.Error)
		slog.Warn("render source failed", "source", src.Name, "error", payload.Error)
		return out
	}

	out.Content = payload.HTML
	return out
}
