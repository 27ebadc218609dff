package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"time"

	"github.com/LJTian/RiverReport/internal/collector"
	"github.com/LJTian/RiverReport/internal/config"
	"github.com/LJTian/RiverReport/internal/processor"
	"github.com/LJTian/RiverReport/internal/scheduler"
	"github.com/LJTian/RiverReport/internal/storage"
	"github.com/alecthomas/kong"
)

// CLI 只执行一轮采集的命令行入口：结果以 JSON 输出到 stdout，适合手动触发或调试站点表
type CLI struct {
	Sources  string        `help:"YAML sources file; built-in table when empty." env:"SOURCES_FILE" type:"path"`
	Mode     string        `help:"What to do when a fetch fails: drop or fallback." enum:"drop,fallback" default:"drop" env:"PASS_MODE"`
	Timeout  time.Duration `help:"Per-source fetch timeout." default:"10s" env:"FETCH_TIMEOUT"`
	Marker   string        `help:"Summary prefix; empty disables it." default:"🎣"`
	Browser  string        `help:"Browser render service URL for sources marked render." env:"BROWSER_SCRAPER_URL"`
	Debug    bool          `help:"Enable debug logging." short:"d"`
	Save     bool          `help:"Also store the pass as a snapshot (POSTGRES_DSN / REDIS_ADDR)."`
	Validate bool          `help:"Only validate the sources table and exit."`
}

func main() {
	var cli CLI
	kctx := kong.Parse(&cli,
		kong.Name("collect"),
		kong.Description("Run one report pass over all sources and print the records as JSON."),
		kong.UsageOnError(),
	)

	level := "info"
	if cli.Debug {
		level = "debug"
	}
	config.InitLogger(level)

	kctx.FatalIfErrorf(cli.Run())
}

func (c *CLI) Run() error {
	sources, err := config.LoadSources(c.Sources)
	if err != nil {
		return err
	}
	if c.Validate {
		slog.Info("sources table is valid", "count", len(sources))
		return nil
	}

	mode, err := scheduler.ParseMode(c.Mode)
	if err != nil {
		return err
	}

	var fetcher collector.Fetcher = collector.NewCollyFetcher(c.Timeout)
	if c.Browser != "" {
		fetcher = &collector.RoutingFetcher{Direct: fetcher, Browser: collector.NewBrowserFetcher(c.Browser, 3*c.Timeout)}
	}
	agg := &scheduler.Aggregator{
		Fetcher: fetcher,
		Runner:  processor.NewRunner(c.Marker),
		Mode:    mode,
	}

	ctx := context.Background()
	records := agg.Pass(ctx, sources)

	if c.Save {
		cfg := config.Load()
		store, err := storage.NewStore(cfg.PostgresDSN, cfg.RedisAddr)
		if err != nil {
			return err
		}
		if err := store.SaveSnapshot(ctx, records, string(mode)); err != nil {
			return err
		}
		slog.Info("snapshot saved", "records", len(records))
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(records)
}
