package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/LJTian/RiverReport/internal/collector"
	"github.com/LJTian/RiverReport/internal/processor"
	"github.com/LJTian/RiverReport/internal/river"
	"github.com/robfig/cron/v3"
)

const (
	// 延迟执行首轮采集，避免和服务启动时的首批请求争抢
	startupDelay = 15 * time.Second
	// 一轮采集的整体上限；单个源另有 FETCH_TIMEOUT
	passTimeout  = 2 * time.Minute
	gaugeTimeout = 30 * time.Second
)

// ReportSink 保存一轮采集结果，由 storage.Store 实现
type ReportSink interface {
	SaveSnapshot(ctx context.Context, records []processor.Record, mode string) error
}

// GaugeSink 保存测站报告，由 storage.Store 实现
type GaugeSink interface {
	SaveGaugeCache(ctx context.Context, report river.GaugeReport) error
}

// Scheduler 按 cron 周期执行 Aggregator.Pass 并落库
type Scheduler struct {
	cron    *cron.Cron
	agg     *Aggregator
	sources []collector.Source
	sink    ReportSink

	// 上一轮还没结束时跳过本次定时触发
	running atomic.Bool
	// Stop 之后不再执行任何一轮，包括尚未触发的首轮
	stopped atomic.Bool

	startupDelay time.Duration
	mu           sync.Mutex
	startTimer   *time.Timer
}

// New sink 可以为 nil（只采集不落库，例如本地调试）
func New(spec string, agg *Aggregator, sources []collector.Source, sink ReportSink) (*Scheduler, error) {
	c := cron.New()

	s := &Scheduler{
		cron:    c,
		agg:     agg,
		sources: sources,
		sink:    sink,

		startupDelay: startupDelay,
	}

	if _, err := c.AddFunc(spec, s.tick); err != nil {
		return nil, err
	}
	return s, nil
}

// Cron 暴露底层 cron，便于注册其他周期任务
func (s *Scheduler) Cron() *cron.Cron {
	return s.cron
}

func (s *Scheduler) Start() {
	s.cron.Start()
	s.mu.Lock()
	s.startTimer = time.AfterFunc(s.startupDelay, s.tick)
	s.mu.Unlock()
}

// Stop 取消尚未触发的首轮，停止调度并等待正在执行的任务结束
func (s *Scheduler) Stop() {
	s.stopped.Store(true)
	s.mu.Lock()
	if s.startTimer != nil {
		s.startTimer.Stop()
	}
	s.mu.Unlock()
	<-s.cron.Stop().Done()
}

// RunOnce 手动触发一轮采集（不受定时任务的互斥限制），返回本轮记录
func (s *Scheduler) RunOnce(ctx context.Context) ([]processor.Record, error) {
	records := s.agg.Pass(ctx, s.sources)
	if s.sink == nil {
		return records, nil
	}
	if err := s.sink.SaveSnapshot(ctx, records, string(s.agg.mode())); err != nil {
		slog.Error("save snapshot failed", "records", len(records), "error", err)
		return records, err
	}
	return records, nil
}

func (s *Scheduler) tick() {
	if s.stopped.Load() {
		return
	}
	if !s.running.CompareAndSwap(false, true) {
		slog.Warn("previous pass still running, skip")
		return
	}
	defer s.running.Store(false)

	ctx, cancel := context.WithTimeout(context.Background(), passTimeout)
	defer cancel()

	slog.Info("start scheduled pass", "sources", len(s.sources))
	if _, err := s.RunOnce(ctx); err != nil {
		return
	}
	slog.Info("scheduled pass done")
}

// AddGaugeRefresh 注册测站刷新任务：按 cron 表达式并发查询所有测站并写入缓存
func (s *Scheduler) AddGaugeRefresh(spec string, reporter *river.Reporter, gauges func() []river.Gauge, sink GaugeSink) error {
	_, err := s.cron.AddFunc(spec, func() {
		RefreshGauges(context.Background(), reporter, gauges(), sink)
	})
	return err
}

// RefreshGauges 并发刷新一组测站；单个测站失败只记录日志
func RefreshGauges(ctx context.Context, reporter *river.Reporter, gauges []river.Gauge, sink GaugeSink) {
	if len(gauges) == 0 {
		return
	}
	slog.Info("refreshing gauges", "count", len(gauges))

	var (
		wg    sync.WaitGroup
		saved atomic.Int32
	)
	for _, g := range gauges {
		g := g
		wg.Add(1)
		go func() {
			defer wg.Done()
			gctx, cancel := context.WithTimeout(ctx, gaugeTimeout)
			defer cancel()
			rep := reporter.Report(gctx, g)
			if err := sink.SaveGaugeCache(gctx, rep); err != nil {
				slog.Warn("cache gauge report failed", "site", g.Site, "error", err)
				return
			}
			saved.Add(1)
		}()
	}
	wg.Wait()
	slog.Info("gauge refresh done", "count", len(gauges), "saved", saved.Load())
}
