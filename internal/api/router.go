package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"sync"

	"github.com/LJTian/RiverReport/internal/processor"
	"github.com/LJTian/RiverReport/internal/river"
	"github.com/LJTian/RiverReport/internal/storage"
	"github.com/gin-gonic/gin"
)

// ReportStore 读取已落库的采集结果，由 storage.Store 实现
type ReportStore interface {
	LatestSnapshot(ctx context.Context) (storage.Snapshot, error)
	ListPasses(ctx context.Context, limit int) ([]storage.Pass, error)
}

// Refresher 执行一轮采集并落库，由 scheduler.Scheduler 实现
type Refresher interface {
	RunOnce(ctx context.Context) ([]processor.Record, error)
}

// GaugeStore 测站列表与报告缓存，由 storage.Store 实现
type GaugeStore interface {
	ListGauges(ctx context.Context) ([]river.Gauge, error)
	FindGauge(ctx context.Context, site string) (river.Gauge, bool)
	GetGaugeCache(ctx context.Context, site string) (river.GaugeReport, bool)
	SaveGaugeCache(ctx context.Context, rep river.GaugeReport) error
}

// GaugeReporter 实时查询一个测站，由 river.Reporter 实现
type GaugeReporter interface {
	Report(ctx context.Context, g river.Gauge) river.GaugeReport
}

type Server struct {
	reports   ReportStore
	refresher Refresher
	gauges    GaugeStore
	reporter  GaugeReporter

	// 同一时间只允许一个手动刷新
	refreshMu sync.Mutex
}

func NewServer(reports ReportStore, refresher Refresher, gauges GaugeStore, reporter GaugeReporter) *Server {
	return &Server{reports: reports, refresher: refresher, gauges: gauges, reporter: reporter}
}

func (s *Server) RegisterRoutes(r *gin.Engine) {
	r.GET("/health", s.health)

	v1 := r.Group("/api/v1")
	{
		v1.GET("/reports", s.latestReports)
		v1.POST("/reports/refresh", s.refreshReports)
		v1.GET("/reports/passes", s.listPasses)
		v1.GET("/gauges", s.listGauges)
		v1.GET("/gauges/:site", s.gaugeReport)
	}
}

func ok(c *gin.Context, data any) {
	c.JSON(http.StatusOK, gin.H{
		"code":    "ok",
		"message": "success",
		"data":    data,
	})
}

func fail(c *gin.Context, status int, code, message string) {
	c.JSON(status, gin.H{
		"code":    code,
		"message": message,
	})
}

func internalError(c *gin.Context, err error) {
	slog.Error("request failed", "path", c.FullPath(), "error", err)
	fail(c, http.StatusInternalServerError, "internal_error", "internal server error")
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// latestReports 返回最近一轮结果；还没有任何一轮时现场跑一轮
func (s *Server) latestReports(c *gin.Context) {
	ctx := c.Request.Context()
	snap, err := s.reports.LatestSnapshot(ctx)
	if err == nil {
		ok(c, snap)
		return
	}
	if !errors.Is(err, storage.ErrNoSnapshot) {
		internalError(c, err)
		return
	}

	records, runErr := s.refresher.RunOnce(ctx)
	if runErr != nil {
		// 落库失败不影响本次返回
		slog.Warn("first pass not stored", "error", runErr)
	}
	if snap, err := s.reports.LatestSnapshot(ctx); err == nil {
		ok(c, snap)
		return
	}
	ok(c, storage.Snapshot{Records: records})
}

func (s *Server) refreshReports(c *gin.Context) {
	if !s.refreshMu.TryLock() {
		fail(c, http.StatusTooManyRequests, "refresh_in_progress", "a refresh is already running")
		return
	}
	defer s.refreshMu.Unlock()

	records, err := s.refresher.RunOnce(c.Request.Context())
	if err != nil {
		slog.Warn("refreshed pass not stored", "error", err)
	}
	ok(c, records)
}

func (s *Server) listPasses(c *gin.Context) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "20"))
	if err != nil || limit <= 0 {
		limit = 20
	}
	passes, err := s.reports.ListPasses(c.Request.Context(), limit)
	if err != nil {
		internalError(c, err)
		return
	}
	ok(c, passes)
}

func (s *Server) listGauges(c *gin.Context) {
	gauges, err := s.gauges.ListGauges(c.Request.Context())
	if err != nil {
		internalError(c, err)
		return
	}
	if len(gauges) == 0 {
		gauges = river.DefaultGauges
	}
	ok(c, gauges)
}

// gaugeReport 优先返回缓存；未命中或 ?live=1 时实时查询并回写缓存
func (s *Server) gaugeReport(c *gin.Context) {
	ctx := c.Request.Context()
	site := storage.NormalizeSiteCode(c.Param("site"))
	if site == "" {
		fail(c, http.StatusBadRequest, "invalid_site", "site must be a numeric USGS site code")
		return
	}

	live := c.Query("live") == "1" || c.Query("live") == "true"
	if !live {
		if rep, found := s.gauges.GetGaugeCache(ctx, site); found {
			ok(c, rep)
			return
		}
	}

	g, found := s.gauges.FindGauge(ctx, site)
	if !found {
		g, found = river.Lookup(site)
	}
	if !found {
		fail(c, http.StatusNotFound, "not_found", "unknown gauge")
		return
	}

	rep := s.reporter.Report(ctx, g)
	if err := s.gauges.SaveGaugeCache(ctx, rep); err != nil {
		slog.Warn("cache gauge report failed", "site", site, "error", err)
	}
	ok(c, rep)
}
