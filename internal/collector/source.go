package collector

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/LJTian/RiverReport/internal/extract"
)

// Source 一个报告站点：名称唯一，策略按顺序尝试
type Source struct {
	Name       string               `mapstructure:"name" json:"name"`
	Locator    string               `mapstructure:"locator" json:"locator"`
	Kind       extract.Kind         `mapstructure:"kind" json:"kind"`
	Strategies []extract.Descriptor `mapstructure:"strategies" json:"strategies"`
	// Render 为 true 时通过 browser-scraper 取渲染后的 HTML
	Render bool `mapstructure:"render" json:"render,omitempty"`
	// AbsoluteLinks 为 true 时把相对链接按 Locator 补全
	AbsoluteLinks bool `mapstructure:"absolute_links" json:"absoluteLinks,omitempty"`
}

// Extractors 按顺序构造抽取策略
func (s Source) Extractors() []extract.Strategy {
	out := make([]extract.Strategy, 0, len(s.Strategies))
	for _, d := range s.Strategies {
		out = append(out, extract.New(d))
	}
	return out
}

// ContentKind 未配置时按 html 处理
func (s Source) ContentKind() extract.Kind {
	if s.Kind == "" {
		return extract.KindHTML
	}
	return s.Kind
}

// ResolveLink 将 link 按 Locator 解析为绝对地址；解析失败时原样返回
func (s Source) ResolveLink(link string) string {
	if !s.AbsoluteLinks || link == "" {
		return link
	}
	base, err := url.Parse(s.Locator)
	if err != nil {
		return link
	}
	ref, err := url.Parse(link)
	if err != nil {
		return link
	}
	return base.ResolveReference(ref).String()
}

// ValidateSources 检查名称唯一、地址合法、类型可识别
func ValidateSources(sources []Source) error {
	seen := make(map[string]struct{}, len(sources))
	var errs []error
	for i, s := range sources {
		name := strings.TrimSpace(s.Name)
		if name == "" {
			errs = append(errs, fmt.Errorf("source #%d: empty name", i))
			continue
		}
		if _, ok := seen[name]; ok {
			errs = append(errs, fmt.Errorf("source %q: duplicate name", name))
		}
		seen[name] = struct{}{}

		u, err := url.Parse(s.Locator)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			errs = append(errs, fmt.Errorf("source %q: invalid locator %q", name, s.Locator))
		}
		switch s.Kind {
		case "", extract.KindHTML, extract.KindXML:
		default:
			errs = append(errs, fmt.Errorf("source %q: unknown content kind %q", name, s.Kind))
		}
	}
	return errors.Join(errs...)
}

// DefaultSources 内置的报告站点表。新增站点只需要在这里（或 SOURCES_FILE）加一行数据，
// 每个站点先走站点专用的选择器，最后都用 dom 兜底。
func DefaultSources() []Source {
	return []Source{
		{
			Name:    "Delaware River Club",
			Locator: "https://thedelawareriverclub.com/blog/",
			Kind:    extract.KindHTML,
			Strategies: []extract.Descriptor{
				{
					Kind:    "css",
					Item:    "article",
					Title:   extract.Rule{Selector: "h2.entry-title a"},
					Date:    extract.Rule{Selector: "time.entry-date", Attr: "datetime"}.Or(extract.Rule{Selector: "time"}),
					Summary: extract.Rule{Selector: ".entry-content p"},
					Link:    extract.Rule{Selector: "h2.entry-title a", Attr: "href"},
				},
				{
					Kind:    "css",
					Item:    ".post",
					Title:   extract.Rule{Selector: ".post-title a"}.Or(extract.Rule{Selector: "h2 a"}),
					Date:    extract.Rule{Selector: "time", Attr: "datetime"}.Or(extract.Rule{Selector: ".post-date"}),
					Summary: extract.Rule{Selector: ".post-excerpt"}.Or(extract.Rule{Selector: "p"}),
					Link:    extract.Rule{Selector: ".post-title a", Attr: "href"}.Or(extract.Rule{Selector: "h2 a", Attr: "href"}),
				},
				{Kind: "dom"},
			},
		},
		{
			Name:    "West Branch Resort",
			Locator: "https://www.westbranchresort.com/delaware-fishing-report",
			Kind:    extract.KindHTML,
			Strategies: []extract.Descriptor{
				{
					Kind:    "css",
					Item:    ".post",
					Title:   extract.Rule{Selector: ".post-title a"},
					Date:    extract.Rule{Selector: ".post-date"},
					Summary: extract.Rule{Selector: ".post-excerpt"},
					Link:    extract.Rule{Selector: ".post-title a", Attr: "href"},
				},
				{
					Kind:    "xpath",
					Item:    "//article",
					Title:   extract.Rule{Selector: ".//h1|.//h2"},
					Date:    extract.Rule{Selector: ".//time", Attr: "datetime"},
					Summary: extract.Rule{Selector: ".//p"},
					Link:    extract.Rule{Selector: ".//a[@href]", Attr: "href"},
				},
				{Kind: "dom"},
			},
			AbsoluteLinks: true,
		},
		{
			Name:    "Delaware River Fishing",
			Locator: "http://www.delawareriverfishing.com",
			Kind:    extract.KindHTML,
			Strategies: []extract.Descriptor{
				{
					Kind:    "css",
					Item:    "article",
					Title:   extract.Rule{Selector: "h2"},
					Date:    extract.Rule{Selector: "time", Attr: "datetime"}.Or(extract.Rule{Selector: "time"}),
					Summary: extract.Rule{Selector: "p"},
					Link:    extract.Rule{Selector: "a", Attr: "href"},
				},
				{Kind: "dom"},
			},
			AbsoluteLinks: true,
		},
	}
}
