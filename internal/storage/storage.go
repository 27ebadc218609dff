package storage

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/LJTian/RiverReport/internal/processor"
	"github.com/redis/go-redis/v9"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// ErrNoSnapshot 还没有任何一轮采集落库
var ErrNoSnapshot = errors.New("no report snapshot stored")

const (
	latestCacheKey = "reports:latest"
	latestCacheTTL = time.Hour
	// 摘要最长 300 字符 + 前缀 + 省略号，这里留足余量
	summaryColumnLimit = 600
)

// Site 一个报告站点，按名称唯一
type Site struct {
	ID      uint   `gorm:"primaryKey" json:"id"`
	Name    string `gorm:"size:128;uniqueIndex" json:"name"`
	Locator string `gorm:"size:1024" json:"locator"`
	Status  string `gorm:"size:32;index" json:"status"` // active / disabled

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Pass 一轮采集
type Pass struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Mode      string    `gorm:"size:16" json:"mode"`
	Total     int       `json:"total"`
	Fallbacks int       `json:"fallbacks"`
	CreatedAt time.Time `gorm:"index" json:"createdAt"`
}

// Report 某轮采集中的一条记录，Position 保持源的输入顺序
type Report struct {
	ID       uint   `gorm:"primaryKey" json:"id"`
	PassID   uint   `gorm:"index" json:"passId"`
	Position int    `json:"position"`
	RecordID string `gorm:"size:40;index" json:"recordId"`
	Source   string `gorm:"size:128;index" json:"source"`
	Title    string `gorm:"size:512" json:"title"`
	Date     string `gorm:"size:64" json:"date"`
	Summary  string `gorm:"size:600" json:"summary"`
	Link     string `gorm:"size:1024" json:"link"`
	Fallback bool   `json:"fallback"`

	CreatedAt time.Time `json:"createdAt"`
}

// Snapshot 最近一轮采集的结果，API 直接返回
type Snapshot struct {
	PassID    uint               `json:"passId"`
	Mode      string             `json:"mode"`
	CreatedAt time.Time          `json:"createdAt"`
	Records   []processor.Record `json:"records"`
}

type Store struct {
	DB    *gorm.DB
	Redis *redis.Client
}

// NewStore redisAddr 为空时不启用缓存
func NewStore(dsn, redisAddr string) (*Store, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, err
	}

	if err := db.AutoMigrate(&Site{}, &Pass{}, &Report{}, &GaugeSite{}, &GaugeCache{}); err != nil {
		return nil, err
	}

	s := &Store{DB: db}
	if redisAddr == "" {
		return s, nil
	}

	rdb := redis.NewClient(&redis.Options{
		Addr: redisAddr,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		slog.Warn("redis ping failed", "addr", redisAddr, "error", err)
	}
	s.Redis = rdb
	return s, nil
}

// EnsureSite 确保站点存在，地址变化时更新
func (s *Store) EnsureSite(name, locator string) (*Site, error) {
	site := &Site{}
	if err := s.DB.Where("name = ?", name).First(site).Error; err == nil {
		if site.Locator != locator {
			site.Locator = locator
			if err := s.DB.Save(site).Error; err != nil {
				return nil, err
			}
		}
		return site, nil
	}

	site = &Site{
		Name:    name,
		Locator: locator,
		Status:  "active",
	}
	if err := s.DB.Create(site).Error; err != nil {
		return nil, err
	}
	return site, nil
}

// toValidUTF8 将字符串规范为合法 UTF-8，避免 PostgreSQL invalid byte sequence 错误
func toValidUTF8(s string) string {
	return strings.ToValidUTF8(s, "\uFFFD")
}

// truncateRunesDB 按 rune 数截断，确保不超过字段长度
func truncateRunesDB(s string, limit int) string {
	if limit <= 0 {
		return ""
	}
	rs := []rune(s)
	if len(rs) <= limit {
		return s
	}
	return string(rs[:limit])
}

func toReportRows(records []processor.Record) []Report {
	rows := make([]Report, 0, len(records))
	for i, r := range records {
		rows = append(rows, Report{
			Position: i,
			RecordID: r.ID(),
			Source:   toValidUTF8(r.Source),
			Title:    truncateRunesDB(toValidUTF8(r.Title), 512),
			Date:     truncateRunesDB(toValidUTF8(r.Date), 64),
			Summary:  truncateRunesDB(toValidUTF8(r.Summary), summaryColumnLimit),
			Link:     truncateRunesDB(toValidUTF8(r.Link), 1024),
			Fallback: r.Fallback,
		})
	}
	return rows
}

func fromReportRows(rows []Report) []processor.Record {
	out := make([]processor.Record, 0, len(rows))
	for _, r := range rows {
		out = append(out, processor.Record{
			Source:   r.Source,
			Title:    r.Title,
			Date:     r.Date,
			Summary:  r.Summary,
			Link:     r.Link,
			Fallback: r.Fallback,
		})
	}
	return out
}

// SaveSnapshot 在一个事务里写入本轮采集及其记录，然后刷新 Redis 中的最新快照
func (s *Store) SaveSnapshot(ctx context.Context, records []processor.Record, mode string) error {
	pass := Pass{Mode: mode, Total: len(records)}
	for _, r := range records {
		if r.Fallback {
			pass.Fallbacks++
		}
	}
	rows := toReportRows(records)

	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&pass).Error; err != nil {
			return err
		}
		if len(rows) == 0 {
			return nil
		}
		for i := range rows {
			rows[i].PassID = pass.ID
		}
		return tx.Create(&rows).Error
	})
	if err != nil {
		return err
	}

	s.cacheSnapshot(ctx, Snapshot{
		PassID:    pass.ID,
		Mode:      pass.Mode,
		CreatedAt: pass.CreatedAt,
		Records:   fromReportRows(rows),
	})
	return nil
}

func (s *Store) cacheSnapshot(ctx context.Context, snap Snapshot) {
	if s.Redis == nil {
		return
	}
	bs, err := json.Marshal(snap)
	if err != nil {
		return
	}
	if err := s.Redis.Set(ctx, latestCacheKey, bs, latestCacheTTL).Err(); err != nil {
		slog.Warn("cache latest snapshot failed", "error", err)
	}
}

// LatestSnapshot 先查 Redis，未命中再查库并回写缓存；一轮都没有时返回 ErrNoSnapshot
func (s *Store) LatestSnapshot(ctx context.Context) (Snapshot, error) {
	if s.Redis != nil {
		if bs, err := s.Redis.Get(ctx, latestCacheKey).Bytes(); err == nil {
			var cached Snapshot
			if err := json.Unmarshal(bs, &cached); err == nil {
				return cached, nil
			}
		}
	}

	var pass Pass
	err := s.DB.WithContext(ctx).Order("id DESC").First(&pass).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Snapshot{}, ErrNoSnapshot
	}
	if err != nil {
		return Snapshot{}, err
	}

	var rows []Report
	if err := s.DB.WithContext(ctx).Where("pass_id = ?", pass.ID).Order("position ASC").Find(&rows).Error; err != nil {
		return Snapshot{}, err
	}

	snap := Snapshot{
		PassID:    pass.ID,
		Mode:      pass.Mode,
		CreatedAt: pass.CreatedAt,
		Records:   fromReportRows(rows),
	}
	s.cacheSnapshot(ctx, snap)
	return snap, nil
}

const (
	defaultPassLimit = 20
	maxPassLimit     = 500
)

// passLimit 非正数用默认值，超过上限按上限
func passLimit(limit int) int {
	switch {
	case limit <= 0:
		return defaultPassLimit
	case limit > maxPassLimit:
		return maxPassLimit
	default:
		return limit
	}
}

// ListPasses 最近的若干轮采集（倒序）
func (s *Store) ListPasses(ctx context.Context, limit int) ([]Pass, error) {
	var list []Pass
	err := s.DB.WithContext(ctx).Order("id DESC").Limit(passLimit(limit)).Find(&list).Error
	return list, err
}
