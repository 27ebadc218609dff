package processor

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/LJTian/RiverReport/internal/collector"
	"github.com/LJTian/RiverReport/internal/extract"
)

const (
	// SummaryLimit 摘要最多保留的字符数（按 rune 计）
	SummaryLimit = 300
	// Ellipsis 截断标记
	Ellipsis = "..."
	// DefaultMarker 摘要前缀装饰
	DefaultMarker = "🎣"
)

// Record 交给渲染层的统一结构
type Record struct {
	Source  string `json:"source"`
	Title   string `json:"title"`
	Date    string `json:"date"`
	Summary string `json:"summary"`
	Link    string `json:"link"`
	// Fallback 为 true 表示所有策略都没命中，这是一条占位记录
	Fallback bool `json:"fallback"`
}

// ID 由来源、链接和标题生成的稳定标识
func (r Record) ID() string {
	return hashKey(r.Source + "\x00" + r.Link + "\x00" + r.Title)
}

// Runner 对一个源依次尝试抽取策略，命中即停止；全部失败时给出占位记录
type Runner struct {
	Now    func() time.Time
	Marker string
}

func NewRunner(marker string) *Runner {
	return &Runner{Now: time.Now, Marker: marker}
}

func (r *Runner) now() time.Time {
	if r.Now == nil {
		return time.Now()
	}
	return r.Now()
}

// Run 使用源自身配置的策略
func (r *Runner) Run(src collector.Source, content string) Record {
	return r.RunStrategies(src, src.Extractors(), content)
}

// RunStrategies 使用给定的策略列表；策略的错误和 panic 都只算作未命中
func (r *Runner) RunStrategies(src collector.Source, strategies []extract.Strategy, content string) Record {
	if strings.TrimSpace(content) == "" {
		slog.Info("empty content, using fallback record", "source", src.Name)
		return r.Fallback(src)
	}

	kind := src.ContentKind()
	for i, s := range strategies {
		c, err := attempt(s, content, kind)
		if err != nil {
			slog.Debug("strategy did not match", "source", src.Name, "strategy", s.Name(), "index", i, "error", err)
			continue
		}
		if !c.Usable() {
			continue
		}
		slog.Debug("strategy matched", "source", src.Name, "strategy", s.Name(), "index", i)
		return r.normalize(src, c)
	}

	slog.Info("all strategies exhausted, using fallback record", "source", src.Name, "strategies", len(strategies))
	return r.Fallback(src)
}

func attempt(s extract.Strategy, content string, kind extract.Kind) (c extract.Candidate, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("%w: strategy panicked: %v", extract.ErrMalformedDescriptor, p)
		}
	}()
	return s.Extract(content, kind)
}

// Fallback 固定形状的占位记录：指向源首页，日期为当前处理时间
func (r *Runner) Fallback(src collector.Source) Record {
	return Record{
		Source:   src.Name,
		Title:    FallbackTitle(src.Name),
		Date:     r.now().Format(time.RFC3339),
		Summary:  "",
		Link:     src.Locator,
		Fallback: true,
	}
}

// FallbackTitle 占位记录的标题
func FallbackTitle(source string) string {
	return "Visit " + source + " for the latest report"
}

func (r *Runner) normalize(src collector.Source, c extract.Candidate) Record {
	return Record{
		Source:  src.Name,
		Title:   strings.TrimSpace(c.Title),
		Date:    NormalizeDate(c.Date, r.now()),
		Summary: NormalizeSummary(c.Summary, r.Marker),
		Link:    src.ResolveLink(strings.TrimSpace(c.Link)),
	}
}

// NormalizeSummary 先装饰再截断，重复调用结果不变
func NormalizeSummary(s, marker string) string {
	return Truncate(Decorate(strings.TrimSpace(s), marker))
}

// Decorate 非空摘要且尚未带前缀时加上 marker
func Decorate(s, marker string) string {
	if s == "" || marker == "" || strings.HasPrefix(s, marker) {
		return s
	}
	return marker + " " + s
}

// Truncate 超过 SummaryLimit 个字符时截断并追加 Ellipsis
func Truncate(s string) string {
	return truncateRunes(s, SummaryLimit)
}

// truncateRunes 按 rune 截断，避免切断多字节字符
func truncateRunes(s string, limit int) string {
	rs := []rune(s)
	if len(rs) <= limit {
		return s
	}
	return string(rs[:limit]) + Ellipsis
}

var dateLayouts = []string{
	time.RFC3339,
	time.RFC3339Nano,
	time.RFC1123Z,
	time.RFC1123,
	time.RFC822Z,
	time.RFC822,
	"Mon, 2 Jan 2006 15:04:05 -0700",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
	"January 2, 2006",
	"Jan 2, 2006",
	"01/02/2006",
}

// 北美时区缩写对应的固定偏移（秒）。time.Parse 遇到不认识的缩写会给出 0 偏移。
var zoneOffsets = map[string]int{
	"EST": -5 * 3600, "EDT": -4 * 3600,
	"CST": -6 * 3600, "CDT": -5 * 3600,
	"MST": -7 * 3600, "MDT": -6 * 3600,
	"PST": -8 * 3600, "PDT": -7 * 3600,
	"AKST": -9 * 3600, "AKDT": -8 * 3600,
	"HST": -10 * 3600,
}

// NormalizeDate 可识别的日期转成 ISO-8601，识别不了保留原文，空值用当前时间。
// 时区缩写既不是 UTC 也不在 zoneOffsets 里时保留原文，避免换算出错误的时刻。
func NormalizeDate(raw string, now time.Time) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return now.Format(time.RFC3339)
	}
	for _, layout := range dateLayouts {
		t, err := time.Parse(layout, raw)
		if err != nil {
			continue
		}
		t, ok := fixZone(t)
		if !ok {
			return raw
		}
		return t.Format(time.RFC3339)
	}
	return raw
}

func fixZone(t time.Time) (time.Time, bool) {
	name, offset := t.Zone()
	if off, known := zoneOffsets[strings.ToUpper(name)]; known {
		return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), t.Nanosecond(),
			time.FixedZone(name, off)), true
	}
	if offset != 0 {
		return t, true
	}
	switch name {
	case "", "UTC", "GMT", "UT", "Z":
		return t.UTC(), true
	}
	return t, false
}

func hashKey(s string) string {
	h := sha1.New()
	h.Write([]byte(s))
	return hex.EncodeToString(h.Sum(nil))
}
