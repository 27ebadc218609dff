package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/LJTian/RiverReport/internal/config"
	"github.com/chromedp/chromedp"
)

func main() {
	config.InitLogger(getEnv("LOG_LEVEL", "info"))

	// 创建浏览器执行器与顶层上下文，整个进程复用一个 headless 实例
	allocCtx, cancelAlloc := chromedp.NewExecAllocator(context.Background(), chromedp.DefaultExecAllocatorOptions[:]...)
	defer cancelAlloc()

	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx)
	defer cancelBrowser()

	// 预热浏览器，避免首个请求耗时过长
	if err := chromedp.Run(browserCtx); err != nil {
		slog.Warn("warmup chromedp failed", "error", err)
	}

	timeout := 20 * time.Second
	if d, err := time.ParseDuration(os.Getenv("RENDER_TIMEOUT")); err == nil && d > 0 {
		timeout = d
	}

	mux := http.NewServeMux()
	mux.Handle("/render", renderHandler(chromeRenderer(browserCtx), timeout))
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	addr := ":" + getEnv("PORT", "4000")
	slog.Info("browser-scraper listening", "addr", addr, "timeout", timeout)
	if err := http.ListenAndServe(addr, mux); err != nil {
		slog.Error("http server error", "error", err)
		os.Exit(1)
	}
}

// chromeRenderer 每个请求开一个新 tab，复用同一个浏览器实例
func chromeRenderer(browserCtx context.Context) renderFunc {
	return func(ctx context.Context, url string) (string, error) {
		tabCtx, cancelTab := chromedp.NewContext(browserCtx)
		defer cancelTab()

		// 请求方断开或超时时同时取消 tab
		stop := context.AfterFunc(ctx, cancelTab)
		defer stop()

		var html string
		err := chromedp.Run(tabCtx,
			chromedp.Navigate(url),
			chromedp.WaitReady("body", chromedp.ByQuery),
			chromedp.OuterHTML("html", &html, chromedp.ByQuery),
		)
		return html, err
	}
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
