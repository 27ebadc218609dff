package collector

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/gocolly/colly/v2"
)

const (
	defaultFetchTimeout = 10 * time.Second
	defaultUserAgent    = "RiverReportBot/1.0"
)

// ErrFetchFailed 网络错误或非 2xx 状态码，统一归到这一类
var ErrFetchFailed = errors.New("fetch failed")

// FetchOutcome 单个源一次抓取的结果：要么有内容，要么有 Err
type FetchOutcome struct {
	Source  string
	Content string
	Err     error
}

// Failed 抓取是否失败（Err 一定包装了 ErrFetchFailed）
func (o FetchOutcome) Failed() bool {
	return o.Err != nil
}

// Fetcher 抽象对一个源的单次抓取；实现内部不重试，也不把错误抛到外面
type Fetcher interface {
	Fetch(ctx context.Context, src Source) FetchOutcome
}

// CollyFetcher 每次抓取新建一个 colly collector，超时由 SetRequestTimeout 控制
type CollyFetcher struct {
	Timeout   time.Duration
	UserAgent string
}

func NewCollyFetcher(timeout time.Duration) *CollyFetcher {
	return &CollyFetcher{Timeout: timeout, UserAgent: defaultUserAgent}
}

func (f *CollyFetcher) Fetch(ctx context.Context, src Source) FetchOutcome {
	out := FetchOutcome{Source: src.Name}
	if err := ctx.Err(); err != nil {
		out.Err = fmt.Errorf("%w: %s: %v", ErrFetchFailed, src.Locator, err)
		return out
	}

	ua := f.UserAgent
	if ua == "" {
		ua = defaultUserAgent
	}
	timeout := f.Timeout
	if timeout <= 0 {
		timeout = defaultFetchTimeout
	}

	c := colly.NewCollector(
		colly.UserAgent(ua),
		// 每轮刷新都会访问同一个地址
		colly.AllowURLRevisit(),
	)
	c.SetRequestTimeout(timeout)
	// 非 2xx 也走 OnResponse，状态码由下面统一判断
	c.ParseHTTPErrorResponse = true

	var (
		status int
		body   []byte
	)
	c.OnResponse(func(r *colly.Response) {
		status = r.StatusCode
		body = r.Body
	})

	start := time.Now()
	if err := c.Visit(src.Locator); err != nil {
		out.Err = fmt.Errorf("%w: %s: %v", ErrFetchFailed, src.Locator, err)
		slog.Warn("fetch source failed", "source", src.Name, "url", src.Locator, "error", err)
		return out
	}
	if status < 200 || status > 299 {
		out.Err = fmt.Errorf("%w: %s: unexpected status %d", ErrFetchFailed, src.Locator, status)
		slog.Warn("fetch source failed", "source", src.Name, "url", src.Locator, "status", status)
		return out
	}

	out.Content = string(body)
	slog.Debug("fetched source", "source", src.Name, "bytes", len(body), "elapsed", time.Since(start))
	return out
}

// RoutingFetcher 需要浏览器渲染的源交给 Browser，其余走 Direct
type RoutingFetcher struct {
	Direct  Fetcher
	Browser Fetcher
}

func (f *RoutingFetcher) Fetch(ctx context.Context, src Source) FetchOutcome {
	if src.Render && f.Browser != nil {
		return f.Browser.Fetch(ctx, src)
	}
	return f.Direct.Fetch(ctx, src)
}
