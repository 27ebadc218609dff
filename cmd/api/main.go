package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/LJTian/RiverReport/internal/api"
	"github.com/LJTian/RiverReport/internal/collector"
	"github.com/LJTian/RiverReport/internal/config"
	"github.com/LJTian/RiverReport/internal/processor"
	"github.com/LJTian/RiverReport/internal/river"
	"github.com/LJTian/RiverReport/internal/scheduler"
	"github.com/LJTian/RiverReport/internal/storage"
	"github.com/gin-gonic/gin"
)

func main() {
	config.InitLogger(os.Getenv("LOG_LEVEL"))
	cfg := config.Load()

	sources, err := config.LoadSources(cfg.SourcesFile)
	if err != nil {
		fatal("load sources failed", err)
	}
	mode, err := scheduler.ParseMode(cfg.PassMode)
	if err != nil {
		fatal("invalid PASS_MODE", err)
	}

	store, err := storage.NewStore(cfg.PostgresDSN, cfg.RedisAddr)
	if err != nil {
		fatal("init store failed", err)
	}

	// 确保各个站点与测站存在
	for _, src := range sources {
		if _, err := store.EnsureSite(src.Name, src.Locator); err != nil {
			fatal("ensure site failed", err, "site", src.Name)
		}
	}
	for _, g := range river.DefaultGauges {
		if err := store.EnsureGauge(g); err != nil {
			slog.Warn("ensure gauge failed", "site", g.Site, "error", err)
		}
	}

	var fetcher collector.Fetcher = collector.NewCollyFetcher(cfg.FetchTimeout)
	if cfg.BrowserScraperURL != "" {
		fetcher = &collector.RoutingFetcher{
			Direct:  fetcher,
			Browser: collector.NewBrowserFetcher(cfg.BrowserScraperURL, 3*cfg.FetchTimeout),
		}
	}
	agg := &scheduler.Aggregator{
		Fetcher: fetcher,
		Runner:  processor.NewRunner(cfg.SummaryMarker),
		Mode:    mode,
	}

	s, err := scheduler.New(cfg.CronSpec, agg, sources, store)
	if err != nil {
		fatal("init scheduler failed", err)
	}

	reporter := &river.Reporter{
		River:   collector.NewRiverClient(cfg.USGSBaseURL, cfg.FetchTimeout),
		Weather: collector.NewWeatherClient(cfg.NOAABaseURL, cfg.FetchTimeout),
		Now:     time.Now,
	}
	listGauges := func() []river.Gauge {
		gauges, err := store.ListGauges(context.Background())
		if err != nil || len(gauges) == 0 {
			return river.DefaultGauges
		}
		return gauges
	}
	if err := s.AddGaugeRefresh(cfg.GaugeCronSpec, reporter, listGauges, store); err != nil {
		slog.Warn("add gauge refresh cron failed", "error", err)
	}
	s.Start()
	defer s.Stop()

	// 启动时在后台预取测站数据，不阻塞主流程
	go scheduler.RefreshGauges(context.Background(), reporter, listGauges(), store)

	// API
	r := gin.Default()
	// 若配置了全局访问密码，则启用 Basic Auth 保护（/health 仍然免认证）
	if cfg.BasicAuthUser != "" && cfg.BasicAuthPass != "" {
		r.Use(api.BasicAuth(cfg.BasicAuthUser, cfg.BasicAuthPass))
	}

	apiServer := api.NewServer(store, s, store, reporter)
	apiServer.RegisterRoutes(r)

	go func() {
		addr := ":" + cfg.AppPort
		slog.Info("starting api server", "addr", addr, "sources", len(sources), "mode", string(mode))
		if err := r.Run(addr); err != nil {
			fatal("server exit", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	slog.Info("shutting down")
}

func fatal(msg string, err error, args ...any) {
	slog.Error(msg, append([]any{"error", err}, args...)...)
	os.Exit(1)
}
