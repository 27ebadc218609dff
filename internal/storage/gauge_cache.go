package storage

import (
	"context"
	"encoding/json"
	"time"

	"github.com/LJTian/RiverReport/internal/river"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// GaugeCache 每个测站最近一次的水情 + 天气报告
type GaugeCache struct {
	Site      string         `gorm:"primaryKey;size:16" json:"site"`
	Report    datatypes.JSON `gorm:"type:jsonb" json:"report"`
	Perfect   bool           `gorm:"index" json:"perfect"`
	FetchedAt time.Time      `gorm:"index" json:"fetchedAt"`
}

// SaveGaugeCache 写入或更新指定测站的缓存
func (s *Store) SaveGaugeCache(ctx context.Context, rep river.GaugeReport) error {
	bs, err := json.Marshal(rep)
	if err != nil {
		return err
	}
	fetched := rep.FetchedAt
	if fetched.IsZero() {
		fetched = time.Now()
	}
	cache := GaugeCache{
		Site:      rep.Gauge.Site,
		Report:    datatypes.JSON(bs),
		Perfect:   rep.Conditions.Perfect,
		FetchedAt: fetched,
	}
	return s.DB.WithContext(ctx).Save(&cache).Error
}

// GetGaugeCache 获取指定测站的缓存，不做过期判断
func (s *Store) GetGaugeCache(ctx context.Context, site string) (river.GaugeReport, bool) {
	var cache GaugeCache
	silent := s.DB.Session(&gorm.Session{Logger: s.DB.Logger.LogMode(logger.Silent)})
	if err := silent.WithContext(ctx).Where("site = ?", NormalizeSiteCode(site)).First(&cache).Error; err != nil {
		return river.GaugeReport{}, false
	}
	var rep river.GaugeReport
	if err := json.Unmarshal(cache.Report, &rep); err != nil {
		return river.GaugeReport{}, false
	}
	return rep, true
}

// ListGaugeCache 所有测站的缓存，最新的在前
func (s *Store) ListGaugeCache(ctx context.Context) ([]river.GaugeReport, error) {
	var list []GaugeCache
	err := s.DB.WithContext(ctx).
		Where("site IN (?)", s.DB.Model(&GaugeSite{}).Select("site")).
		Order("fetched_at DESC").
		Find(&list).Error
	if err != nil {
		return nil, err
	}
	out := make([]river.GaugeReport, 0, len(list))
	for _, c := range list {
		var rep river.GaugeReport
		if err := json.Unmarshal(c.Report, &rep); err != nil {
			continue
		}
		out = append(out, rep)
	}
	return out, nil
}
