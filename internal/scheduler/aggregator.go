package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/LJTian/RiverReport/internal/collector"
	"github.com/LJTian/RiverReport/internal/processor"
)

// Mode 抓取失败时的处理方式
type Mode string

const (
	// ModeDrop 抓取失败的源不出现在结果里
	ModeDrop Mode = "drop"
	// ModeFallback 抓取失败的源输出一条占位记录
	ModeFallback Mode = "fallback"
)

// ParseMode 解析 PASS_MODE / --mode，空值按 drop 处理
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case "", ModeDrop:
		return ModeDrop, nil
	case ModeFallback:
		return ModeFallback, nil
	default:
		return "", fmt.Errorf("unknown pass mode %q (want drop or fallback)", s)
	}
}

// Aggregator 对所有源并发抓取并抽取，结果按源的输入顺序返回
type Aggregator struct {
	Fetcher collector.Fetcher
	Runner  *processor.Runner
	Mode    Mode
}

// Pass 每个源一个 goroutine，全部同时发起；结果写入各自下标，等全部结束后按顺序收集。
// 单个源的失败不会影响其他源。
func (a *Aggregator) Pass(ctx context.Context, sources []collector.Source) []processor.Record {
	start := time.Now()
	slots := make([]*processor.Record, len(sources))

	var wg sync.WaitGroup
	for i := range sources {
		i := i
		src := sources[i]
		wg.Add(1)
		go func() {
			defer wg.Done()
			slots[i] = a.one(ctx, src)
		}()
	}
	wg.Wait()

	out := make([]processor.Record, 0, len(sources))
	fallbacks := 0
	for _, r := range slots {
		if r == nil {
			continue
		}
		if r.Fallback {
			fallbacks++
		}
		out = append(out, *r)
	}
	slog.Info("pass done",
		"sources", len(sources),
		"records", len(out),
		"fallbacks", fallbacks,
		"mode", string(a.mode()),
		"elapsed", time.Since(start))
	return out
}

func (a *Aggregator) one(ctx context.Context, src collector.Source) *processor.Record {
	outcome := a.Fetcher.Fetch(ctx, src)
	if outcome.Failed() {
		slog.Warn("source fetch failed", "source", src.Name, "mode", string(a.mode()), "error", outcome.Err)
		if a.mode() == ModeFallback {
			r := a.Runner.Fallback(src)
			return &r
		}
		return nil
	}
	r := a.Runner.Run(src, outcome.Content)
	return &r
}

func (a *Aggregator) mode() Mode {
	if a.Mode == "" {
		return ModeDrop
	}
	return a.Mode
}
