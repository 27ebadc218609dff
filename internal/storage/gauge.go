package storage

import (
	"context"
	"strings"
	"time"

	"github.com/LJTian/RiverReport/internal/river"
)

// GaugeSite 关注的 USGS 测站，启动时由默认测站表写入
type GaugeSite struct {
	Site      string    `gorm:"primaryKey;size:16" json:"site"`
	Name      string    `gorm:"size:128" json:"name"`
	Zone      string    `gorm:"size:16" json:"zone"`
	Lat       float64   `json:"lat"`
	Lon       float64   `json:"lon"`
	CreatedAt time.Time `json:"createdAt"`
}

func (g GaugeSite) toGauge() river.Gauge {
	return river.Gauge{Site: g.Site, Name: g.Name, Zone: g.Zone, Lat: g.Lat, Lon: g.Lon}
}

// EnsureGauge 添加测站（已存在则忽略）
func (s *Store) EnsureGauge(g river.Gauge) error {
	code := NormalizeSiteCode(g.Site)
	if code == "" {
		return nil
	}
	r := GaugeSite{Site: code, Name: g.Name, Zone: g.Zone, Lat: g.Lat, Lon: g.Lon, CreatedAt: time.Now()}
	return s.DB.Where("site = ?", code).FirstOrCreate(&r).Error
}

// ListGauges 返回所有测站（按添加顺序）
func (s *Store) ListGauges(ctx context.Context) ([]river.Gauge, error) {
	var list []GaugeSite
	if err := s.DB.WithContext(ctx).Order("created_at ASC").Find(&list).Error; err != nil {
		return nil, err
	}
	out := make([]river.Gauge, 0, len(list))
	for _, r := range list {
		out = append(out, r.toGauge())
	}
	return out, nil
}

// FindGauge 按站号查找测站
func (s *Store) FindGauge(ctx context.Context, site string) (river.Gauge, bool) {
	code := NormalizeSiteCode(site)
	if code == "" {
		return river.Gauge{}, false
	}
	var r GaugeSite
	if err := s.DB.WithContext(ctx).Where("site = ?", code).First(&r).Error; err != nil {
		return river.Gauge{}, false
	}
	return r.toGauge(), true
}

// NormalizeSiteCode 规范为 8 位数字站号（不足左补 0），不合法返回空串
func NormalizeSiteCode(code string) string {
	code = strings.TrimSpace(code)
	if len(code) == 0 {
		return ""
	}
	for _, c := range code {
		if c < '0' || c > '9' {
			return ""
		}
	}
	if len(code) == 8 {
		return code
	}
	if len(code) < 8 {
		return strings.Repeat("0", 8-len(code)) + code
	}
	// USGS 也有 15 位站号
	if len(code) == 15 {
		return code
	}
	return ""
}
